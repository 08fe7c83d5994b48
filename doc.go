// Package lendingbot automates currency lending on cryptocurrency exchanges.
//
// The bot repeatedly queries account balances and market loan-offer books,
// places and cancels loan offers to keep funds lent at favorable rates, and
// is designed to survive the inherent unreliability of a remote trading API:
// network faults, rate limiting, transient server errors and authentication
// failures. It is built around a resilient exchange-access layer and a
// control loop that classifies every failure into a recovery action.
//
// Core Components:
//
//   - pkg/exchanges/interfaces: the exchange-agnostic ExchangeAPI contract
//     (balances, loan order books, offer placement/cancellation, balance
//     transfers) plus the normalized error taxonomy shared by all adapters
//
//   - pkg/exchanges/poloniex, pkg/exchanges/bitfinex: exchange adapters that
//     differ only in request shaping and response parsing
//
//   - pkg/exchanges: the factory that selects an adapter by exchange name,
//     and a dry-run decorator that fakes all mutating calls
//
//   - pkg/common: the rate-limited, retrying HTTP transport and the strictly
//     increasing nonce source shared by authenticated requests
//
//   - pkg/ratelimit: request-budget rate limiting safe for concurrent callers
//
//   - pkg/bot: the control loop driving one lending cycle per iteration and
//     the error classifier deciding between ignore, back off and abort
//
//   - pkg/lending: the default pluggable lending strategy (cancel stale
//     offers, offer available balance at the best book rate)
//
// # Error Handling
//
// Every failure raised by an adapter carries a normalized Kind assigned once
// at the transport boundary. The control loop never inspects message strings
// itself; it asks the classifier for a recovery decision:
//
//   - network faults are logged and the next cycle starts immediately
//   - timeouts and unknown remote errors retry after the cycle interval
//   - rate-limit bans pause well beyond the cycle interval and raise the
//     adapter's self-imposed request delay
//   - authentication and nonce-ordering failures abort the bot with a
//     troubleshooting hint, since they cannot self-heal
//
// # Example
//
// Minimal setup against Poloniex:
//
//	logger := logging.NewLogger()
//
//	api, err := exchanges.New("poloniex", &interfaces.Options{
//	    APIKey:    os.Getenv("LENDINGBOT_API_KEY"),
//	    APISecret: os.Getenv("LENDINGBOT_API_SECRET"),
//	}, logger)
//	if err != nil {
//	    log.Fatalf("failed to create exchange client: %v", err)
//	}
//
//	strategy := lending.NewStrategy(api, lending.Config{
//	    Currencies: []string{"BTC"},
//	    Duration:   2,
//	}, logger)
//
//	b := bot.New(api, strategy, bot.Config{CycleInterval: time.Minute}, logger)
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := b.Run(ctx); err != nil {
//	    os.Exit(1)
//	}
//
// See cmd/lendingbot for the complete wiring including configuration,
// status persistence and plugin hooks.
package lendingbot
