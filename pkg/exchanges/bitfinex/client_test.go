package bitfinex

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veiloq/lending-bot/pkg/exchanges/interfaces"
)

const (
	testKey    = "bfx-key"
	testSecret = "bfx-secret"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts := interfaces.NewOptions()
	opts.APIKey = testKey
	opts.APISecret = testSecret
	opts.BaseURL = server.URL
	opts.RateLimitRequests = 100

	return NewClient(opts, nil)
}

// decodePayload verifies the auth headers and returns the decoded JSON
// payload carried in X-BFX-PAYLOAD.
func decodePayload(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()

	require.Equal(t, testKey, r.Header.Get("X-BFX-APIKEY"))

	b64 := r.Header.Get("X-BFX-PAYLOAD")
	require.NotEmpty(t, b64)

	mac := hmac.New(sha512.New384, []byte(testSecret))
	mac.Write([]byte(b64))
	require.Equal(t, hex.EncodeToString(mac.Sum(nil)), r.Header.Get("X-BFX-SIGNATURE"))

	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &payload))
	return payload
}

func TestGetBalancesMapsWallets(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := decodePayload(t, r)
		assert.Equal(t, "/v1/balances", payload["request"])
		assert.NotEmpty(t, payload["nonce"])

		w.Write([]byte(`[
			{"type":"deposit","currency":"btc","amount":"1.5","available":"1.25"},
			{"type":"exchange","currency":"btc","amount":"0.6","available":"0.5"},
			{"type":"trading","currency":"usd","amount":"100","available":"90"}
		]`))
	}))

	balances, err := c.GetBalances(context.Background())
	require.NoError(t, err)

	// The deposit wallet is the lending segment.
	assert.True(t, balances.Available(interfaces.AccountLending, "BTC").Equal(decimal.RequireFromString("1.25")))
	assert.True(t, balances.Available(interfaces.AccountExchange, "BTC").Equal(decimal.RequireFromString("0.5")))
	assert.True(t, balances.Available(interfaces.AccountMargin, "USD").Equal(decimal.RequireFromString("90")))
}

func TestGetLoanOrdersConvertsRates(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/lendbook/btc", r.URL.Path)
		assert.Empty(t, r.Header.Get("X-BFX-APIKEY"))

		w.Write([]byte(`{
			"bids":[{"rate":"5.475","amount":"10.0","period":30}],
			"asks":[{"rate":"7.3","amount":"2.0","period":2}]
		}`))
	}))

	book, err := c.GetLoanOrders(context.Background(), "BTC")
	require.NoError(t, err)

	require.Len(t, book.Offers, 1)
	require.Len(t, book.Demands, 1)

	// 7.3% per 365 days is 0.0002 per day.
	assert.True(t, book.Offers[0].Rate.Equal(decimal.RequireFromString("0.0002")),
		"got %s", book.Offers[0].Rate)
	// 5.475% per 365 days is 0.00015 per day.
	assert.True(t, book.Demands[0].Rate.Equal(decimal.RequireFromString("0.00015")),
		"got %s", book.Demands[0].Rate)
}

func TestCreateLoanOfferQuotesYearlyRate(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := decodePayload(t, r)
		assert.Equal(t, "/v1/offer/new", payload["request"])
		assert.Equal(t, "BTC", payload["currency"])
		assert.Equal(t, "1", payload["amount"])
		// 0.0002 daily is quoted as 7.3% per year.
		assert.Equal(t, "7.3", payload["rate"])
		assert.Equal(t, float64(2), payload["period"])
		assert.Equal(t, "lend", payload["direction"])

		w.Write([]byte(`{"id":13800585,"currency":"BTC","rate":"7.3","period":2,"direction":"lend","is_live":true,"is_cancelled":false,"remaining_amount":"1.0","timestamp":"1444279698.21175971"}`))
	}))

	id, err := c.CreateLoanOffer(context.Background(), "BTC",
		decimal.NewFromInt(1), decimal.RequireFromString("0.0002"), 2, false)
	require.NoError(t, err)
	assert.Equal(t, int64(13800585), id)
}

func TestGetOpenLoanOffersFiltersDeadOffers(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":1,"currency":"btc","rate":"7.3","period":2,"direction":"lend","is_live":true,"is_cancelled":false,"remaining_amount":"1.0","timestamp":"1444279698.0"},
			{"id":2,"currency":"btc","rate":"7.3","period":2,"direction":"lend","is_live":false,"is_cancelled":true,"remaining_amount":"1.0","timestamp":"1444279698.0"},
			{"id":3,"currency":"usd","rate":"10.95","period":2,"direction":"loan","is_live":true,"is_cancelled":false,"remaining_amount":"5.0","timestamp":"1444279698.0"}
		]`))
	}))

	offers, err := c.GetOpenLoanOffers(context.Background())
	require.NoError(t, err)

	require.Len(t, offers, 1)
	require.Len(t, offers["BTC"], 1)
	assert.Equal(t, int64(1), offers["BTC"][0].ID)
}

func TestErrorResponseBecomesAPIError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Could not find a key matching the given X-BFX-APIKEY."}`))
	}))

	_, err := c.GetBalances(context.Background())

	var apiErr *interfaces.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, interfaces.KindAuth, apiErr.Kind)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "bitfinex", apiErr.Exchange)
}

func TestReturnOpenLoan(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := decodePayload(t, r)
		assert.Equal(t, "/v1/funding/close", payload["request"])
		assert.Equal(t, float64(42), payload["swap_id"])
		w.Write([]byte(`{"id":42}`))
	}))

	require.NoError(t, c.ReturnOpenLoan(context.Background(), 42))
}

func TestRateConversionRoundTrip(t *testing.T) {
	daily := decimal.RequireFromString("0.0005")
	assert.True(t, yearlyToDaily(dailyToYearly(daily)).Equal(daily))
}
