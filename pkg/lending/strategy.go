// Package lending implements the default lending policy: keep the full
// lending balance offered at the best competitive rate, and re-offer when
// the market moves away from an open offer.
package lending

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/veiloq/lending-bot/pkg/exchanges/interfaces"
	"github.com/veiloq/lending-bot/pkg/logging"
)

// Config tunes the default lending policy.
type Config struct {
	// Currencies lists the currencies to lend out.
	Currencies []string

	// TransferCurrencies lists currencies swept from the exchange segment
	// into the lending segment every cycle, so deposits and trade proceeds
	// start earning without operator action.
	TransferCurrencies []string

	// MinDailyRate is the floor below which no offer is placed. Offers are
	// clamped up to this rate when the market's best is lower.
	MinDailyRate decimal.Decimal

	// MaxRateSpread is how far an open offer's rate may sit above the
	// market's best before it is considered stale and re-offered.
	MaxRateSpread decimal.Decimal

	// MinLoanSize is the exchange's minimum offer amount; smaller lending
	// balances are left idle until they accumulate.
	MinLoanSize decimal.Decimal

	// Duration is the offer period in days.
	Duration int

	// AutoRenew asks the exchange to re-lend automatically when a loan
	// expires.
	AutoRenew bool
}

// NewConfig returns a policy configuration with production defaults:
// 0.005% daily rate floor, 10% spread tolerance, 0.005 minimum offer and
// 2-day offers.
func NewConfig(currencies ...string) Config {
	return Config{
		Currencies:    currencies,
		MinDailyRate:  decimal.RequireFromString("0.00005"),
		MaxRateSpread: decimal.RequireFromString("0.1"),
		MinLoanSize:   decimal.RequireFromString("0.005"),
		Duration:      2,
	}
}

// Strategy is the default lending policy. It satisfies the control loop's
// Strategy interface.
type Strategy struct {
	api    interfaces.ExchangeAPI
	cfg    Config
	logger logging.Logger
}

// NewStrategy creates the default policy over the given exchange API.
func NewStrategy(api interfaces.ExchangeAPI, cfg Config, logger logging.Logger) *Strategy {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 2
	}
	return &Strategy{api: api, cfg: cfg, logger: logger}
}

// TransferBalances sweeps the configured currencies from the exchange
// segment into the lending segment.
func (s *Strategy) TransferBalances(ctx context.Context) error {
	if len(s.cfg.TransferCurrencies) == 0 {
		return nil
	}

	balances, err := s.api.GetBalances(ctx)
	if err != nil {
		return err
	}

	for _, currency := range s.cfg.TransferCurrencies {
		amount := balances.Available(interfaces.AccountExchange, currency)
		if !amount.IsPositive() {
			continue
		}
		err := s.api.TransferBalance(ctx, currency, amount, interfaces.AccountExchange, interfaces.AccountLending)
		if err != nil {
			return fmt.Errorf("sweeping %s %s to lending: %w", amount, currency, err)
		}
		s.logger.Info("swept balance to lending",
			logging.String("currency", currency),
			logging.String("amount", amount.String()))
	}
	return nil
}

// CancelStaleOffers cancels open offers priced too far above the market's
// best rate or below the configured floor. Freed funds are re-offered by
// PlaceOffers in the same cycle.
func (s *Strategy) CancelStaleOffers(ctx context.Context) (int, error) {
	open, err := s.api.GetOpenLoanOffers(ctx)
	if err != nil {
		return 0, err
	}
	if len(open) == 0 {
		return 0, nil
	}

	cancelled := 0
	for _, currency := range s.cfg.Currencies {
		offers := open[currency]
		if len(offers) == 0 {
			continue
		}

		book, err := s.api.GetLoanOrders(ctx, currency)
		if err != nil {
			return cancelled, err
		}
		best, ok := book.BestOfferRate()

		for _, offer := range offers {
			if !s.isStale(offer.Rate, best, ok) {
				continue
			}
			if err := s.api.CancelLoanOffer(ctx, currency, offer.ID); err != nil {
				return cancelled, fmt.Errorf("cancelling offer %d: %w", offer.ID, err)
			}
			cancelled++
			s.logger.Info("cancelled stale offer",
				logging.String("currency", currency),
				logging.Int64("offer_id", offer.ID),
				logging.String("rate", offer.Rate.String()),
				logging.String("best_rate", best.String()))
		}
	}
	return cancelled, nil
}

// isStale reports whether an open offer at rate should be re-offered given
// the market's best rate.
func (s *Strategy) isStale(rate, best decimal.Decimal, hasBest bool) bool {
	if rate.LessThan(s.cfg.MinDailyRate) {
		return true
	}
	if !hasBest {
		return false
	}
	return rate.Sub(best).GreaterThan(s.cfg.MaxRateSpread.Mul(best))
}

// PlaceOffers offers the full available lending balance of each configured
// currency at the better of the market's best rate and the configured
// floor.
func (s *Strategy) PlaceOffers(ctx context.Context) (int, error) {
	balances, err := s.api.GetBalances(ctx)
	if err != nil {
		return 0, err
	}

	placed := 0
	for _, currency := range s.cfg.Currencies {
		amount := balances.Available(interfaces.AccountLending, currency)
		if amount.LessThan(s.cfg.MinLoanSize) {
			continue
		}

		book, err := s.api.GetLoanOrders(ctx, currency)
		if err != nil {
			return placed, err
		}

		rate := s.cfg.MinDailyRate
		if best, ok := book.BestOfferRate(); ok && best.GreaterThan(rate) {
			rate = best
		}

		id, err := s.api.CreateLoanOffer(ctx, currency, amount, rate, s.cfg.Duration, s.cfg.AutoRenew)
		if err != nil {
			return placed, fmt.Errorf("offering %s %s: %w", amount, currency, err)
		}
		placed++
		s.logger.Info("placed loan offer",
			logging.String("currency", currency),
			logging.Int64("offer_id", id),
			logging.String("amount", amount.String()),
			logging.String("rate", rate.String()),
			logging.Int("duration_days", s.cfg.Duration))
	}
	return placed, nil
}
