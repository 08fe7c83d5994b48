// Command lendingbot runs the automated lending loop against a configured
// exchange. It loads YAML configuration, builds the exchange adapter and
// lending policy, and runs until interrupted or a fatal error occurs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/veiloq/lending-bot/pkg/bot"
	"github.com/veiloq/lending-bot/pkg/config"
	"github.com/veiloq/lending-bot/pkg/exchanges"
	"github.com/veiloq/lending-bot/pkg/exchanges/interfaces"
	"github.com/veiloq/lending-bot/pkg/exchanges/poloniex"
	"github.com/veiloq/lending-bot/pkg/lending"
	"github.com/veiloq/lending-bot/pkg/logging"
	"github.com/veiloq/lending-bot/pkg/status"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML configuration file")
	dryRun := flag.Bool("dryrun", false, "log intended offers instead of placing them")
	flag.Parse()

	// Credentials may live in a .env file next to the binary. Absence is
	// fine; the config file or real environment can carry them instead.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logOpts := []logging.Option{logging.WithLevel(logging.ParseLevel(cfg.Log.Level))}
	if cfg.Log.File != "" {
		logOpts = append(logOpts, logging.WithRotatingFile(cfg.Log.File))
	}
	if cfg.Log.Development {
		logOpts = append(logOpts, logging.WithDevelopmentMode())
	}
	logger := logging.NewLogger(logOpts...)
	defer logger.Close()

	api, err := exchanges.New(cfg.Exchange.Name, cfg.ExchangeOptions(), logger)
	if err != nil {
		logger.Error("building exchange adapter", logging.Error(err))
		os.Exit(1)
	}
	// Resolve the ticker capability before any wrapping; dry-run only
	// decorates mutations.
	rates := tickerRates(api, logger)

	if *dryRun || cfg.Bot.DryRun {
		logger.Info("dry-run mode, no offers will be placed")
		api = exchanges.NewDryRun(api, logger)
	}

	statusWriter := status.NewWriter(cfg.Bot.StatusFile, cfg.Bot.Label, api.Name(), nil, logger)
	strategy := lending.NewStrategy(api, cfg.LendingConfig(), logger)

	botOpts := []bot.Option{bot.WithStatus(statusWriter)}
	if rates != nil {
		botOpts = append(botOpts, bot.WithRates(rates))
	}

	b := bot.New(api, strategy, bot.Config{
		CycleInterval:  cfg.CycleInterval(),
		RateLimitPause: cfg.RateLimitPause(),
		Label:          cfg.Bot.Label,
	}, logger, botOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil {
		logger.Error("lending bot terminated", logging.Error(err))
		logger.Close()
		os.Exit(1)
	}
}

// tickerRates builds a rates refresh from the adapter's public ticker when
// it exposes one. Adapters without a ticker get no refresh step.
func tickerRates(api interfaces.ExchangeAPI, logger logging.Logger) bot.RatesSource {
	t, ok := api.(interface {
		GetTicker(ctx context.Context) (map[string]poloniex.TickerEntry, error)
	})
	if !ok {
		return nil
	}
	return bot.RatesFunc(func(ctx context.Context) error {
		ticker, err := t.GetTicker(ctx)
		if err != nil {
			return err
		}
		logger.Debug("refreshed ticker", logging.Int("markets", len(ticker)))
		return nil
	})
}
