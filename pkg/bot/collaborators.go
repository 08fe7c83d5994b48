package bot

import (
	"context"
	"time"
)

// Strategy is the pluggable lending policy driven by the control loop.
// The loop fixes the order of the steps; the strategy decides amounts and
// rates. See pkg/lending for the default implementation.
type Strategy interface {
	// TransferBalances rebalances funds between account segments before
	// lending, e.g. moving deposits into the lending account.
	TransferBalances(ctx context.Context) error

	// CancelStaleOffers cancels open offers that no longer fit the
	// policy (rate drifted out of range). Calling it when no offers
	// exist is a no-op. Returns the number of offers cancelled.
	CancelStaleOffers(ctx context.Context) (int, error)

	// PlaceOffers places new loan offers from the available lending
	// balances and the current order books. Returns the number placed.
	PlaceOffers(ctx context.Context) (int, error)
}

// RatesSource refreshes conversion/market rates used for reporting. The
// market-analysis machinery behind it is an external collaborator; the
// loop only triggers the refresh.
type RatesSource interface {
	UpdateConversionRates(ctx context.Context) error
}

// RatesFunc adapts a function to the RatesSource interface.
type RatesFunc func(ctx context.Context) error

func (f RatesFunc) UpdateConversionRates(ctx context.Context) error { return f(ctx) }

// NopRates is a RatesSource that does nothing.
var NopRates RatesSource = RatesFunc(func(context.Context) error { return nil })

// Plugins receives lifecycle hooks at fixed points of the cycle. Plugin
// internals are opaque to the loop.
type Plugins interface {
	BeforeLending()
	AfterLending()
	OnExit()
}

// NopPlugins is a Plugins implementation that does nothing.
type NopPlugins struct{}

func (NopPlugins) BeforeLending() {}
func (NopPlugins) AfterLending()  {}
func (NopPlugins) OnExit()        {}

// StatusReporter receives status summaries and error reports. Storage
// format and delivery are the collaborator's business.
type StatusReporter interface {
	// LogError records a recovered or fatal failure.
	LogError(err error)

	// RefreshStatus publishes a cycle summary and its duration.
	RefreshStatus(summary string, cycleTime time.Duration)

	// PersistStatus flushes the current status to durable storage.
	PersistStatus() error

	// Notify pushes a message to the operator, when configured.
	Notify(message string)
}

// NopStatus is a StatusReporter that discards everything.
type NopStatus struct{}

func (NopStatus) LogError(error)                      {}
func (NopStatus) RefreshStatus(string, time.Duration) {}
func (NopStatus) PersistStatus() error                { return nil }
func (NopStatus) Notify(string)                       {}
