// Package exchanges selects and decorates concrete ExchangeAPI adapters.
package exchanges

import (
	"fmt"
	"strings"

	"github.com/veiloq/lending-bot/pkg/exchanges/bitfinex"
	"github.com/veiloq/lending-bot/pkg/exchanges/interfaces"
	"github.com/veiloq/lending-bot/pkg/exchanges/poloniex"
	"github.com/veiloq/lending-bot/pkg/logging"
)

// New constructs the adapter for the named exchange. The known set is
// closed; an unknown name fails with ErrUnsupportedExchange and constructs
// nothing. Pure selection; retry and recovery logic live elsewhere.
func New(name string, opts *interfaces.Options, logger logging.Logger) (interfaces.ExchangeAPI, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "poloniex":
		return poloniex.NewClient(opts, logger), nil
	case "bitfinex":
		return bitfinex.NewClient(opts, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", interfaces.ErrUnsupportedExchange, name)
	}
}

// Names returns the supported exchange identifiers.
func Names() []string {
	return []string{"poloniex", "bitfinex"}
}
