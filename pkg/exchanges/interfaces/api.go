// Package interfaces defines the exchange-agnostic lending API contract.
// All exchange-specific adapters must satisfy this interface; they differ
// only in request shaping and response parsing, never in semantics.
package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Account identifies a balance segment on the exchange.
type Account string

const (
	// AccountExchange holds funds available for spot trading and deposits.
	AccountExchange Account = "exchange"

	// AccountLending holds funds available to be lent out.
	AccountLending Account = "lending"

	// AccountMargin holds margin trading collateral.
	AccountMargin Account = "margin"
)

// AccountBalances maps an account segment to the available amount per
// currency. It is a read-only snapshot refreshed every cycle.
type AccountBalances map[Account]map[string]decimal.Decimal

// Available returns the available amount of currency in the given account
// segment, or zero when the segment or currency is absent.
func (b AccountBalances) Available(account Account, currency string) decimal.Decimal {
	if m, ok := b[account]; ok {
		if amount, ok := m[currency]; ok {
			return amount
		}
	}
	return decimal.Zero
}

// LoanOffer is an advertised willingness to lend a currency amount at a
// rate and duration, cancelable until filled.
type LoanOffer struct {
	ID       int64
	Currency string
	Amount   decimal.Decimal

	// Rate is the daily interest rate, e.g. 0.0005 for 0.05% per day.
	// Adapters convert exchange-native quote conventions to this one.
	Rate decimal.Decimal

	// Duration is the loan period in days.
	Duration int

	AutoRenew bool
	Date      time.Time
}

// LoanOrder is a single level in the loan order book.
type LoanOrder struct {
	Rate     decimal.Decimal
	Amount   decimal.Decimal
	RangeMin int
	RangeMax int
}

// LoanOrderBook is the market's current view of loan supply and demand for
// one currency. Offers are sorted ascending by rate (best offer first).
type LoanOrderBook struct {
	Currency string
	Offers   []LoanOrder
	Demands  []LoanOrder
}

// BestOfferRate returns the lowest offered rate, the rate a new competitive
// offer has to match. The second return value is false when the book has
// no offers.
func (b *LoanOrderBook) BestOfferRate() (decimal.Decimal, bool) {
	if len(b.Offers) == 0 {
		return decimal.Zero, false
	}
	best := b.Offers[0].Rate
	for _, o := range b.Offers[1:] {
		if o.Rate.LessThan(best) {
			best = o.Rate
		}
	}
	return best, true
}

// OpenLoan is an already-active loan resulting from a filled offer. The
// core tracks open loans for reporting; return and auto-renew decisions
// belong to the lending policy.
type OpenLoan struct {
	ID        int64
	Currency  string
	Amount    decimal.Decimal
	Rate      decimal.Decimal
	Duration  int
	AutoRenew bool
	Date      time.Time
}

// ExchangeAPI is the polymorphic exchange contract. Every operation routes
// through the rate-limited signing transport; errors carry a normalized
// Kind assigned at the transport boundary (see errors.go).
type ExchangeAPI interface {
	// Name returns the adapter's exchange identifier, e.g. "poloniex".
	Name() string

	// GetBalances returns the available balance per account segment.
	GetBalances(ctx context.Context) (AccountBalances, error)

	// GetLoanOrders returns the public loan order book for a currency.
	GetLoanOrders(ctx context.Context, currency string) (*LoanOrderBook, error)

	// GetOpenLoanOffers returns the caller's unfilled loan offers keyed
	// by currency.
	GetOpenLoanOffers(ctx context.Context) (map[string][]LoanOffer, error)

	// GetActiveLoans returns the caller's currently lent-out funds.
	GetActiveLoans(ctx context.Context) ([]OpenLoan, error)

	// CreateLoanOffer places a new loan offer and returns its id.
	// Rate is a daily rate; duration is in days.
	CreateLoanOffer(ctx context.Context, currency string, amount, rate decimal.Decimal, duration int, autoRenew bool) (int64, error)

	// CancelLoanOffer cancels an unfilled loan offer.
	CancelLoanOffer(ctx context.Context, currency string, id int64) error

	// TransferBalance moves funds between account segments.
	TransferBalance(ctx context.Context, currency string, amount decimal.Decimal, from, to Account) error

	// ReturnOpenLoan closes an active loan early. Exchanges without an
	// early-close call return ErrUnsupportedOperation.
	ReturnOpenLoan(ctx context.Context, id int64) error

	// ReqPeriod reports the adapter's self-imposed delay between calls,
	// applied on top of the shared hard rate limit.
	ReqPeriod() time.Duration

	// RaiseReqPeriod increases the self-imposed delay in response to soft
	// rate pressure from the exchange. Capped at 1.5x the default; the
	// delay never decreases automatically.
	RaiseReqPeriod()
}

// Options configures an exchange adapter.
type Options struct {
	// APIKey and APISecret authenticate private calls. Immutable for the
	// process lifetime; the secret never leaves the transport.
	APIKey    string
	APISecret string

	// BaseURL overrides the adapter's default private endpoint; PublicURL
	// overrides the public one. Used by tests to point at mock servers.
	BaseURL   string
	PublicURL string

	// HTTPTimeout bounds each outbound request.
	HTTPTimeout time.Duration

	// RateLimitRequests per RateLimitWindow is the hard request budget
	// shared by all calls through this adapter.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// ReqPeriod is the default self-imposed delay between calls.
	ReqPeriod time.Duration
}

// NewOptions returns adapter options with the defaults used in production:
// 15s HTTP timeout, 6 requests per second, no self-imposed delay until the
// exchange signals rate pressure.
func NewOptions() *Options {
	return &Options{
		HTTPTimeout:       15 * time.Second,
		RateLimitRequests: 6,
		RateLimitWindow:   time.Second,
	}
}
