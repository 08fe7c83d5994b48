// Package bitfinex implements the ExchangeAPI contract for Bitfinex.
//
// Authenticated v1 calls carry a base64-encoded JSON payload (request path,
// nonce and parameters) in the X-BFX-PAYLOAD header, signed with HMAC-SHA384
// into X-BFX-SIGNATURE. Bitfinex quotes funding rates as percent per 365
// days; the adapter converts to the daily-rate convention used by the rest
// of the bot.
package bitfinex

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/veiloq/lending-bot/pkg/common"
	"github.com/veiloq/lending-bot/pkg/exchanges/interfaces"
	"github.com/veiloq/lending-bot/pkg/logging"
	"github.com/veiloq/lending-bot/pkg/ratelimit"
)

const defaultBaseURL = "https://api.bitfinex.com"

// daysPerYear converts between Bitfinex's yearly percent rate quotes and
// daily rates.
var daysPerYear = decimal.NewFromInt(365)

var hundred = decimal.NewFromInt(100)

// Client implements the interfaces.ExchangeAPI contract for Bitfinex.
type Client struct {
	key    string
	secret string

	baseURL string

	http     common.HTTPClient
	nonces   *common.NonceSource
	throttle *interfaces.Throttle
	logger   logging.Logger
}

// NewClient creates a Bitfinex client with the given options.
func NewClient(opts *interfaces.Options, logger logging.Logger) *Client {
	if opts == nil {
		opts = interfaces.NewOptions()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	baseURL := defaultBaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}

	return &Client{
		key:     opts.APIKey,
		secret:  opts.APISecret,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: common.NewHTTPClient(&common.ClientConfig{
			Timeout: opts.HTTPTimeout,
			RateLimit: ratelimit.Rate{
				Limit:    opts.RateLimitRequests,
				Interval: opts.RateLimitWindow,
			},
			MaxRetries: 3,
			RetryDelay: time.Second,
			Logger:     logger,
		}),
		nonces:   common.NewNonceSource(),
		throttle: interfaces.NewThrottle(opts.ReqPeriod),
		logger:   logger.WithFields(logging.String("exchange", "bitfinex")),
	}
}

// Name implements the ExchangeAPI interface.
func (c *Client) Name() string { return "bitfinex" }

// ReqPeriod implements the ExchangeAPI interface.
func (c *Client) ReqPeriod() time.Duration { return c.throttle.Period() }

// RaiseReqPeriod implements the ExchangeAPI interface.
func (c *Client) RaiseReqPeriod() {
	c.throttle.Raise()
	c.logger.Warn("raised self-imposed request delay",
		logging.Duration("req_period", c.throttle.Period()))
}

// walletSegments maps Bitfinex wallet names to account segments. The
// "deposit" wallet is where lendable funds live.
var walletSegments = map[string]interfaces.Account{
	"exchange": interfaces.AccountExchange,
	"deposit":  interfaces.AccountLending,
	"trading":  interfaces.AccountMargin,
}

func walletName(account interfaces.Account) string {
	for wallet, segment := range walletSegments {
		if segment == account {
			return wallet
		}
	}
	return string(account)
}

// GetBalances implements the ExchangeAPI interface.
func (c *Client) GetBalances(ctx context.Context) (interfaces.AccountBalances, error) {
	var raw []struct {
		Type      string          `json:"type"`
		Currency  string          `json:"currency"`
		Available decimal.Decimal `json:"available"`
	}
	if err := c.private(ctx, "/v1/balances", nil, &raw); err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}

	balances := make(interfaces.AccountBalances)
	for _, w := range raw {
		segment, ok := walletSegments[w.Type]
		if !ok {
			continue
		}
		if balances[segment] == nil {
			balances[segment] = make(map[string]decimal.Decimal)
		}
		balances[segment][strings.ToUpper(w.Currency)] = w.Available
	}
	return balances, nil
}

// GetLoanOrders implements the ExchangeAPI interface.
func (c *Client) GetLoanOrders(ctx context.Context, currency string) (*interfaces.LoanOrderBook, error) {
	var raw struct {
		Bids []rawLendbookEntry `json:"bids"`
		Asks []rawLendbookEntry `json:"asks"`
	}
	path := "/v1/lendbook/" + strings.ToLower(currency)
	if err := c.public(ctx, path, &raw); err != nil {
		return nil, fmt.Errorf("get loan orders for %s: %w", currency, err)
	}

	book := &interfaces.LoanOrderBook{
		Currency: currency,
		Offers:   make([]interfaces.LoanOrder, 0, len(raw.Asks)),
		Demands:  make([]interfaces.LoanOrder, 0, len(raw.Bids)),
	}
	// Asks are what lenders offer, bids what borrowers demand.
	for _, a := range raw.Asks {
		book.Offers = append(book.Offers, a.toLoanOrder())
	}
	for _, b := range raw.Bids {
		book.Demands = append(book.Demands, b.toLoanOrder())
	}
	return book, nil
}

// GetOpenLoanOffers implements the ExchangeAPI interface.
func (c *Client) GetOpenLoanOffers(ctx context.Context) (map[string][]interfaces.LoanOffer, error) {
	var raw []rawOffer
	if err := c.private(ctx, "/v1/offers", nil, &raw); err != nil {
		return nil, fmt.Errorf("get open loan offers: %w", err)
	}

	offers := make(map[string][]interfaces.LoanOffer)
	for _, o := range raw {
		if o.Direction != "lend" || o.IsCancelled || !o.IsLive {
			continue
		}
		currency := strings.ToUpper(o.Currency)
		offers[currency] = append(offers[currency], interfaces.LoanOffer{
			ID:       o.ID,
			Currency: currency,
			Amount:   o.RemainingAmount,
			Rate:     yearlyToDaily(o.Rate),
			Duration: o.Period,
			Date:     parseTimestamp(o.Timestamp),
		})
	}
	return offers, nil
}

// GetActiveLoans implements the ExchangeAPI interface.
func (c *Client) GetActiveLoans(ctx context.Context) ([]interfaces.OpenLoan, error) {
	var raw []struct {
		ID        int64           `json:"id"`
		Currency  string          `json:"currency"`
		Rate      decimal.Decimal `json:"rate"`
		Amount    decimal.Decimal `json:"amount"`
		Period    int             `json:"period"`
		AutoRenew int             `json:"auto_renew"`
		Timestamp string          `json:"timestamp"`
	}
	if err := c.private(ctx, "/v1/credits", nil, &raw); err != nil {
		return nil, fmt.Errorf("get active loans: %w", err)
	}

	loans := make([]interfaces.OpenLoan, 0, len(raw))
	for _, l := range raw {
		loans = append(loans, interfaces.OpenLoan{
			ID:        l.ID,
			Currency:  strings.ToUpper(l.Currency),
			Amount:    l.Amount,
			Rate:      yearlyToDaily(l.Rate),
			Duration:  l.Period,
			AutoRenew: l.AutoRenew == 1,
			Date:      parseTimestamp(l.Timestamp),
		})
	}
	return loans, nil
}

// CreateLoanOffer implements the ExchangeAPI interface.
func (c *Client) CreateLoanOffer(ctx context.Context, currency string, amount, rate decimal.Decimal, duration int, autoRenew bool) (int64, error) {
	params := map[string]interface{}{
		"currency":  strings.ToUpper(currency),
		"amount":    amount.String(),
		"rate":      dailyToYearly(rate).String(),
		"period":    duration,
		"direction": "lend",
	}

	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.private(ctx, "/v1/offer/new", params, &resp); err != nil {
		return 0, fmt.Errorf("create loan offer %s %s: %w", currency, amount, err)
	}
	return resp.ID, nil
}

// CancelLoanOffer implements the ExchangeAPI interface.
func (c *Client) CancelLoanOffer(ctx context.Context, currency string, id int64) error {
	params := map[string]interface{}{"offer_id": id}
	if err := c.private(ctx, "/v1/offer/cancel", params, nil); err != nil {
		return fmt.Errorf("cancel loan offer %d: %w", id, err)
	}
	return nil
}

// TransferBalance implements the ExchangeAPI interface.
func (c *Client) TransferBalance(ctx context.Context, currency string, amount decimal.Decimal, from, to interfaces.Account) error {
	params := map[string]interface{}{
		"currency":   strings.ToUpper(currency),
		"amount":     amount.String(),
		"walletfrom": walletName(from),
		"walletto":   walletName(to),
	}

	var resp []struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := c.private(ctx, "/v1/transfer", params, &resp); err != nil {
		return fmt.Errorf("transfer %s %s from %s to %s: %w", amount, currency, from, to, err)
	}
	if len(resp) > 0 && resp[0].Status != "success" {
		return interfaces.NewAPIError(c.Name(), resp[0].Message, 0)
	}
	return nil
}

// ReturnOpenLoan implements the ExchangeAPI interface.
func (c *Client) ReturnOpenLoan(ctx context.Context, id int64) error {
	params := map[string]interface{}{"swap_id": id}
	if err := c.private(ctx, "/v1/funding/close", params, nil); err != nil {
		return fmt.Errorf("return loan %d: %w", id, err)
	}
	return nil
}

// private performs a signed v1 call and decodes the response into out.
func (c *Client) private(ctx context.Context, path string, params map[string]interface{}, out interface{}) error {
	if err := c.throttle.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		payload := map[string]interface{}{
			"request": path,
			// A fresh nonce per attempt, covered by the signature.
			"nonce": strconv.FormatInt(c.nonces.Next(), 10),
		}
		for k, v := range params {
			payload[k] = v
		}

		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		b64 := base64.StdEncoding.EncodeToString(encoded)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-BFX-APIKEY", c.key)
		req.Header.Set("X-BFX-PAYLOAD", b64)
		req.Header.Set("X-BFX-SIGNATURE", c.sign(b64))
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", path, err)
	}
	if err := exchangeError(c.Name(), body, resp.StatusCode); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// public performs an unauthenticated call.
func (c *Client) public(ctx context.Context, path string, out interface{}) error {
	if err := c.throttle.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.http.Get(ctx, c.baseURL+path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", path, err)
	}
	if err := exchangeError(c.Name(), body, resp.StatusCode); err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// sign computes the hex HMAC-SHA384 signature over the base64 payload.
func (c *Client) sign(payload string) string {
	mac := hmac.New(sha512.New384, []byte(c.secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// exchangeError converts an error-bearing response into a typed APIError.
// Bitfinex reports failures as {"message": "..."} with a non-200 status.
func exchangeError(exchange string, body []byte, statusCode int) error {
	if statusCode == http.StatusOK {
		return nil
	}
	var probe struct {
		Message string `json:"message"`
	}
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &probe); err == nil && probe.Message != "" {
		message = probe.Message
	}
	return interfaces.NewAPIError(exchange, message, statusCode)
}

// yearlyToDaily converts a percent-per-365-days rate quote to a daily rate.
func yearlyToDaily(yearly decimal.Decimal) decimal.Decimal {
	return yearly.Div(hundred).Div(daysPerYear)
}

// dailyToYearly converts a daily rate to the percent-per-365-days quote
// Bitfinex expects.
func dailyToYearly(daily decimal.Decimal) decimal.Decimal {
	return daily.Mul(daysPerYear).Mul(hundred)
}

func parseTimestamp(ts string) time.Time {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(int64(f), 0)
}

type rawLendbookEntry struct {
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
	Period int             `json:"period"`
}

func (e rawLendbookEntry) toLoanOrder() interfaces.LoanOrder {
	return interfaces.LoanOrder{
		Rate:     yearlyToDaily(e.Rate),
		Amount:   e.Amount,
		RangeMin: e.Period,
		RangeMax: e.Period,
	}
}

type rawOffer struct {
	ID              int64           `json:"id"`
	Currency        string          `json:"currency"`
	Rate            decimal.Decimal `json:"rate"`
	Period          int             `json:"period"`
	Direction       string          `json:"direction"`
	Timestamp       string          `json:"timestamp"`
	IsLive          bool            `json:"is_live"`
	IsCancelled     bool            `json:"is_cancelled"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
}
