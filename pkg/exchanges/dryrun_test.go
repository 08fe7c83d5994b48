package exchanges

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veiloq/lending-bot/pkg/exchanges/interfaces"
)

// fakeAPI records mutating calls so tests can assert the dry-run wrapper
// never forwards them.
type fakeAPI struct {
	balances    interfaces.AccountBalances
	createCalls int
	cancelCalls int
	raiseCalls  int
}

func (f *fakeAPI) Name() string { return "fake" }

func (f *fakeAPI) GetBalances(ctx context.Context) (interfaces.AccountBalances, error) {
	return f.balances, nil
}

func (f *fakeAPI) GetLoanOrders(ctx context.Context, currency string) (*interfaces.LoanOrderBook, error) {
	return &interfaces.LoanOrderBook{Currency: currency}, nil
}

func (f *fakeAPI) GetOpenLoanOffers(ctx context.Context) (map[string][]interfaces.LoanOffer, error) {
	return map[string][]interfaces.LoanOffer{}, nil
}

func (f *fakeAPI) GetActiveLoans(ctx context.Context) ([]interfaces.OpenLoan, error) {
	return nil, nil
}

func (f *fakeAPI) CreateLoanOffer(ctx context.Context, currency string, amount, rate decimal.Decimal, duration int, autoRenew bool) (int64, error) {
	f.createCalls++
	return 99, nil
}

func (f *fakeAPI) CancelLoanOffer(ctx context.Context, currency string, id int64) error {
	f.cancelCalls++
	return nil
}

func (f *fakeAPI) TransferBalance(ctx context.Context, currency string, amount decimal.Decimal, from, to interfaces.Account) error {
	return nil
}

func (f *fakeAPI) ReturnOpenLoan(ctx context.Context, id int64) error { return nil }

func (f *fakeAPI) ReqPeriod() time.Duration { return 0 }

func (f *fakeAPI) RaiseReqPeriod() { f.raiseCalls++ }

func TestDryRunReadsPassThrough(t *testing.T) {
	inner := &fakeAPI{
		balances: interfaces.AccountBalances{
			interfaces.AccountLending: {"BTC": decimal.NewFromInt(1)},
		},
	}
	d := NewDryRun(inner, nil)

	balances, err := d.GetBalances(context.Background())
	require.NoError(t, err)
	assert.True(t, balances.Available(interfaces.AccountLending, "BTC").Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "fake", d.Name())
}

func TestDryRunFakesMutations(t *testing.T) {
	inner := &fakeAPI{}
	d := NewDryRun(inner, nil)
	ctx := context.Background()

	id, err := d.CreateLoanOffer(ctx, "BTC", decimal.NewFromInt(1), decimal.RequireFromString("0.001"), 2, false)
	require.NoError(t, err)
	assert.NotZero(t, id)

	require.NoError(t, d.CancelLoanOffer(ctx, "BTC", id))
	require.NoError(t, d.TransferBalance(ctx, "BTC", decimal.NewFromInt(1), interfaces.AccountExchange, interfaces.AccountLending))
	require.NoError(t, d.ReturnOpenLoan(ctx, 7))

	assert.Zero(t, inner.createCalls)
	assert.Zero(t, inner.cancelCalls)
}

func TestDryRunThrottleForwarded(t *testing.T) {
	inner := &fakeAPI{}
	d := NewDryRun(inner, nil)

	// Rate-limit pressure still tunes the real adapter's throttle.
	d.RaiseReqPeriod()
	assert.Equal(t, 1, inner.raiseCalls)
}
