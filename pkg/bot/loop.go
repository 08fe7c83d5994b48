// Package bot contains the control loop that keeps the lending process
// running unattended, and the classifier that turns every failure into a
// recovery action.
//
// The loop runs single-threaded and cooperative: one cycle executes to
// completion (or failure) before the next begins. Each cycle refreshes
// rates, runs the plugin hooks, rebalances, cancels stale offers, places
// new ones, publishes status and sleeps. Any failure inside the cycle is
// routed through exactly one recovery dispatch point; a fatal verdict
// terminates the loop, everything else adjusts the sleep and continues.
// Operator interrupts are observed between cycles and during sleeps only,
// and are never swallowed by the recovery path.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veiloq/lending-bot/pkg/exchanges/interfaces"
	"github.com/veiloq/lending-bot/pkg/logging"
)

// Config holds control-loop settings.
type Config struct {
	// CycleInterval is the sleep between lending cycles.
	CycleInterval time.Duration

	// RateLimitPause overrides the pause after a rate-limit ban.
	// Zero means DefaultRateLimitPause.
	RateLimitPause time.Duration

	// Label names this bot instance in logs and status output.
	Label string
}

// Bot drives one lending cycle per iteration until the context is
// cancelled or a fatal failure occurs.
type Bot struct {
	api        interfaces.ExchangeAPI
	strategy   Strategy
	rates      RatesSource
	plugins    Plugins
	status     StatusReporter
	classifier *Classifier
	logger     logging.Logger

	interval time.Duration
	label    string
}

// Option configures optional collaborators on the Bot.
type Option func(*Bot)

// WithRates sets the conversion-rates collaborator.
func WithRates(rates RatesSource) Option {
	return func(b *Bot) { b.rates = rates }
}

// WithPlugins sets the plugin lifecycle collaborator.
func WithPlugins(plugins Plugins) Option {
	return func(b *Bot) { b.plugins = plugins }
}

// WithStatus sets the status persistence collaborator.
func WithStatus(status StatusReporter) Option {
	return func(b *Bot) { b.status = status }
}

// New creates a control loop over the given exchange API and strategy.
func New(api interfaces.ExchangeAPI, strategy Strategy, cfg Config, logger logging.Logger, opts ...Option) *Bot {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := cfg.CycleInterval
	if interval <= 0 {
		interval = time.Minute
	}

	classifier := NewClassifier(interval)
	if cfg.RateLimitPause > 0 {
		classifier.RateLimitPause = cfg.RateLimitPause
	}

	b := &Bot{
		api:        api,
		strategy:   strategy,
		rates:      NopRates,
		plugins:    NopPlugins{},
		status:     NopStatus{},
		classifier: classifier,
		logger:     logger,
		interval:   interval,
		label:      cfg.Label,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes lending cycles until ctx is cancelled or a fatal failure
// occurs. It returns nil on an operator-requested stop and the fatal error
// otherwise. The plugin exit hook runs exactly once in either case.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("lending bot started",
		logging.String("exchange", b.api.Name()),
		logging.String("label", b.label),
		logging.Duration("cycle_interval", b.interval))

	defer b.plugins.OnExit()

	for {
		if ctx.Err() != nil {
			b.logger.Info("lending bot stopped")
			return nil
		}

		sleep := b.interval

		if err := b.cycle(ctx); err != nil {
			// Cancellation surfacing through a remote call is a stop
			// request, not a failure to recover from.
			if errors.Is(err, context.Canceled) {
				b.logger.Info("lending bot stopped")
				return nil
			}

			decision := b.classifier.Classify(err)
			switch decision.Class {
			case ClassFatal:
				b.status.LogError(err)
				if perr := b.status.PersistStatus(); perr != nil {
					b.logger.Warn("failed to persist status", logging.Error(perr))
				}
				b.logger.Error("fatal error, shutting down",
					logging.Error(err),
					logging.String("hint", decision.Hint))
				return fmt.Errorf("%s: %w", decision.Hint, err)

			case ClassIgnorable:
				b.logger.Warn("transport fault, continuing", logging.Error(err))
				continue

			case ClassRateLimited:
				b.api.RaiseReqPeriod()
				b.status.LogError(fmt.Errorf("rate limited, sleeping %s: %w", decision.Sleep, err))
				b.logger.Warn("rate limited by exchange",
					logging.Error(err),
					logging.Duration("sleep", decision.Sleep),
					logging.Duration("req_period", b.api.ReqPeriod()))
				sleep = decision.Sleep

			default: // ClassTransient
				b.status.LogError(err)
				if perr := b.status.PersistStatus(); perr != nil {
					b.logger.Warn("failed to persist status", logging.Error(perr))
				}
				if decision.Notify {
					b.status.Notify(fmt.Sprintf("unhandled error in lending cycle: %v", err))
				}
				b.logger.Warn("cycle failed, will retry",
					logging.Error(err),
					logging.Duration("sleep", decision.Sleep))
				sleep = decision.Sleep
			}
		}

		if err := b.sleep(ctx, sleep); err != nil {
			b.logger.Info("lending bot stopped")
			return nil
		}
	}
}

// cycle runs one full lending iteration. Any error aborts the remaining
// steps; recovery happens in Run's single dispatch point.
func (b *Bot) cycle(ctx context.Context) error {
	start := time.Now()

	if err := b.rates.UpdateConversionRates(ctx); err != nil {
		return fmt.Errorf("updating conversion rates: %w", err)
	}

	b.plugins.BeforeLending()

	if err := b.strategy.TransferBalances(ctx); err != nil {
		return fmt.Errorf("transferring balances: %w", err)
	}

	cancelled, err := b.strategy.CancelStaleOffers(ctx)
	if err != nil {
		return fmt.Errorf("cancelling stale offers: %w", err)
	}

	placed, err := b.strategy.PlaceOffers(ctx)
	if err != nil {
		return fmt.Errorf("placing offers: %w", err)
	}

	b.plugins.AfterLending()

	duration := time.Since(start)
	summary := fmt.Sprintf("cancelled %d, placed %d offers", cancelled, placed)
	b.status.RefreshStatus(summary, duration)
	if err := b.status.PersistStatus(); err != nil {
		b.logger.Warn("failed to persist status", logging.Error(err))
	}

	b.logger.Info("cycle complete",
		logging.Int("cancelled", cancelled),
		logging.Int("placed", placed),
		logging.Duration("duration", duration))
	return nil
}

// sleep pauses between cycles, waking immediately on cancellation.
func (b *Bot) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
