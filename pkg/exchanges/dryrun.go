package exchanges

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/veiloq/lending-bot/pkg/exchanges/interfaces"
	"github.com/veiloq/lending-bot/pkg/logging"
)

// DryRun decorates an ExchangeAPI so that reads pass through to the real
// exchange while every mutating call is logged and faked. Used to observe
// what the bot would do with live market data before trusting it with
// funds.
type DryRun struct {
	api    interfaces.ExchangeAPI
	logger logging.Logger
	nextID atomic.Int64
}

// NewDryRun wraps api in a dry-run decorator.
func NewDryRun(api interfaces.ExchangeAPI, logger logging.Logger) *DryRun {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &DryRun{
		api:    api,
		logger: logger.WithFields(logging.Bool("dry_run", true)),
	}
	d.nextID.Store(1)
	return d
}

// Name implements the ExchangeAPI interface.
func (d *DryRun) Name() string { return d.api.Name() }

// GetBalances implements the ExchangeAPI interface.
func (d *DryRun) GetBalances(ctx context.Context) (interfaces.AccountBalances, error) {
	return d.api.GetBalances(ctx)
}

// GetLoanOrders implements the ExchangeAPI interface.
func (d *DryRun) GetLoanOrders(ctx context.Context, currency string) (*interfaces.LoanOrderBook, error) {
	return d.api.GetLoanOrders(ctx, currency)
}

// GetOpenLoanOffers implements the ExchangeAPI interface.
func (d *DryRun) GetOpenLoanOffers(ctx context.Context) (map[string][]interfaces.LoanOffer, error) {
	return d.api.GetOpenLoanOffers(ctx)
}

// GetActiveLoans implements the ExchangeAPI interface.
func (d *DryRun) GetActiveLoans(ctx context.Context) ([]interfaces.OpenLoan, error) {
	return d.api.GetActiveLoans(ctx)
}

// CreateLoanOffer implements the ExchangeAPI interface. The offer is not
// placed; a locally generated id is returned.
func (d *DryRun) CreateLoanOffer(ctx context.Context, currency string, amount, rate decimal.Decimal, duration int, autoRenew bool) (int64, error) {
	id := d.nextID.Add(1)
	d.logger.Info("would create loan offer",
		logging.String("currency", currency),
		logging.String("amount", amount.String()),
		logging.String("rate", rate.String()),
		logging.Int("duration", duration),
		logging.Int64("fake_id", id))
	return id, nil
}

// CancelLoanOffer implements the ExchangeAPI interface.
func (d *DryRun) CancelLoanOffer(ctx context.Context, currency string, id int64) error {
	d.logger.Info("would cancel loan offer",
		logging.String("currency", currency),
		logging.Int64("id", id))
	return nil
}

// TransferBalance implements the ExchangeAPI interface.
func (d *DryRun) TransferBalance(ctx context.Context, currency string, amount decimal.Decimal, from, to interfaces.Account) error {
	d.logger.Info("would transfer balance",
		logging.String("currency", currency),
		logging.String("amount", amount.String()),
		logging.String("from", string(from)),
		logging.String("to", string(to)))
	return nil
}

// ReturnOpenLoan implements the ExchangeAPI interface.
func (d *DryRun) ReturnOpenLoan(ctx context.Context, id int64) error {
	d.logger.Info("would return open loan", logging.Int64("id", id))
	return nil
}

// ReqPeriod implements the ExchangeAPI interface.
func (d *DryRun) ReqPeriod() time.Duration { return d.api.ReqPeriod() }

// RaiseReqPeriod implements the ExchangeAPI interface.
func (d *DryRun) RaiseReqPeriod() { d.api.RaiseReqPeriod() }
