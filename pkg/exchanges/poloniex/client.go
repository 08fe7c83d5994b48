// Package poloniex implements the ExchangeAPI contract for Poloniex.
//
// Private calls go to the trading API as form-encoded POSTs carrying a
// command name, command parameters and a strictly increasing nonce, signed
// with HMAC-SHA512 over the encoded body. Public market data (the loan
// order book, the ticker) is fetched unauthenticated from the public API.
package poloniex

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/veiloq/lending-bot/pkg/common"
	"github.com/veiloq/lending-bot/pkg/exchanges/interfaces"
	"github.com/veiloq/lending-bot/pkg/logging"
	"github.com/veiloq/lending-bot/pkg/ratelimit"
)

const (
	defaultBaseURL   = "https://poloniex.com/tradingApi"
	defaultPublicURL = "https://poloniex.com/public"

	dateLayout = "2006-01-02 15:04:05"
)

// Client implements the interfaces.ExchangeAPI contract for Poloniex.
type Client struct {
	key    string
	secret string

	baseURL   string
	publicURL string

	http     common.HTTPClient
	nonces   *common.NonceSource
	throttle *interfaces.Throttle
	logger   logging.Logger
}

// NewClient creates a Poloniex client with the given options.
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
	publicURL := defaultPublicURL
	if opts.PublicURL != "" {
		publicURL = opts.PublicURL
	}

	return &Client{
		key:       opts.APIKey,
		secret:    opts.APISecret,
		baseURL:   baseURL,
		publicURL: publicURL,
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
		logger:   logger.WithFields(logging.String("exchange", "poloniex")),
	}
}

// Name implements the ExchangeAPI interface.
func (c *Client) Name() string { return "poloniex" }

// ReqPeriod implements the ExchangeAPI interface.
func (c *Client) ReqPeriod() time.Duration { return c.throttle.Period() }

// RaiseReqPeriod implements the ExchangeAPI interface.
func (c *Client) RaiseReqPeriod() {
	c.throttle.Raise()
	c.logger.Warn("raised self-imposed request delay",
		logging.Duration("req_period", c.throttle.Period()))
}

// GetBalances implements the ExchangeAPI interface.
func (c *Client) GetBalances(ctx context.Context) (interfaces.AccountBalances, error) {
	var raw map[string]map[string]decimal.Decimal
	if err := c.private(ctx, "returnAvailableAccountBalances", nil, &raw); err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}

	balances := make(interfaces.AccountBalances, len(raw))
	for segment, currencies := range raw {
		account := interfaces.Account(segment)
		balances[account] = make(map[string]decimal.Decimal, len(currencies))
		for currency, amount := range currencies {
			balances[account][currency] = amount
		}
	}
	return balances, nil
}

// GetLoanOrders implements the ExchangeAPI interface.
func (c *Client) GetLoanOrders(ctx context.Context, currency string) (*interfaces.LoanOrderBook, error) {
	var raw struct {
		Offers  []rawLoanOrder `json:"offers"`
		Demands []rawLoanOrder `json:"demands"`
	}
	params := url.Values{"currency": {currency}}
	if err := c.public(ctx, "returnLoanOrders", params, &raw); err != nil {
		return nil, fmt.Errorf("get loan orders for %s: %w", currency, err)
	}

	book := &interfaces.LoanOrderBook{
		Currency: currency,
		Offers:   make([]interfaces.LoanOrder, 0, len(raw.Offers)),
		Demands:  make([]interfaces.LoanOrder, 0, len(raw.Demands)),
	}
	for _, o := range raw.Offers {
		book.Offers = append(book.Offers, o.toLoanOrder())
	}
	for _, d := range raw.Demands {
		book.Demands = append(book.Demands, d.toLoanOrder())
	}
	return book, nil
}

// GetOpenLoanOffers implements the ExchangeAPI interface.
func (c *Client) GetOpenLoanOffers(ctx context.Context) (map[string][]interfaces.LoanOffer, error) {
	body, err := c.privateRaw(ctx, "returnOpenLoanOffers", nil)
	if err != nil {
		return nil, fmt.Errorf("get open loan offers: %w", err)
	}

	// An account with no offers gets "[]" instead of an object.
	if isEmptyJSONArray(body) {
		return map[string][]interfaces.LoanOffer{}, nil
	}

	var raw map[string][]rawLoanOffer
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("get open loan offers: decoding response: %w", err)
	}

	offers := make(map[string][]interfaces.LoanOffer, len(raw))
	for currency, list := range raw {
		converted := make([]interfaces.LoanOffer, 0, len(list))
		for _, o := range list {
			converted = append(converted, o.toLoanOffer(currency))
		}
		offers[currency] = converted
	}
	return offers, nil
}

// GetActiveLoans implements the ExchangeAPI interface.
func (c *Client) GetActiveLoans(ctx context.Context) ([]interfaces.OpenLoan, error) {
	var raw struct {
		Provided []rawActiveLoan `json:"provided"`
	}
	if err := c.private(ctx, "returnActiveLoans", nil, &raw); err != nil {
		return nil, fmt.Errorf("get active loans: %w", err)
	}

	loans := make([]interfaces.OpenLoan, 0, len(raw.Provided))
	for _, l := range raw.Provided {
		date, _ := time.Parse(dateLayout, l.Date)
		loans = append(loans, interfaces.OpenLoan{
			ID:        l.ID,
			Currency:  l.Currency,
			Amount:    l.Amount,
			Rate:      l.Rate,
			Duration:  l.Duration,
			AutoRenew: l.AutoRenew == 1,
			Date:      date,
		})
	}
	return loans, nil
}

// CreateLoanOffer implements the ExchangeAPI interface.
func (c *Client) CreateLoanOffer(ctx context.Context, currency string, amount, rate decimal.Decimal, duration int, autoRenew bool) (int64, error) {
	renew := "0"
	if autoRenew {
		renew = "1"
	}
	params := url.Values{
		"currency":    {currency},
		"amount":      {amount.String()},
		"lendingRate": {rate.String()},
		"duration":    {strconv.Itoa(duration)},
		"autoRenew":   {renew},
	}

	var resp struct {
		Success int    `json:"success"`
		Message string `json:"message"`
		OrderID int64  `json:"orderID"`
	}
	if err := c.private(ctx, "createLoanOffer", params, &resp); err != nil {
		return 0, fmt.Errorf("create loan offer %s %s: %w", currency, amount, err)
	}
	if resp.Success != 1 {
		return 0, interfaces.NewAPIError(c.Name(), resp.Message, 0)
	}
	return resp.OrderID, nil
}

// CancelLoanOffer implements the ExchangeAPI interface.
func (c *Client) CancelLoanOffer(ctx context.Context, currency string, id int64) error {
	params := url.Values{"orderNumber": {strconv.FormatInt(id, 10)}}

	var resp struct {
		Success int    `json:"success"`
		Message string `json:"message"`
	}
	if err := c.private(ctx, "cancelLoanOffer", params, &resp); err != nil {
		return fmt.Errorf("cancel loan offer %d: %w", id, err)
	}
	if resp.Success != 1 {
		return interfaces.NewAPIError(c.Name(), resp.Message, 0)
	}
	return nil
}

// TransferBalance implements the ExchangeAPI interface.
func (c *Client) TransferBalance(ctx context.Context, currency string, amount decimal.Decimal, from, to interfaces.Account) error {
	params := url.Values{
		"currency":    {currency},
		"amount":      {amount.String()},
		"fromAccount": {string(from)},
		"toAccount":   {string(to)},
	}

	var resp struct {
		Success int    `json:"success"`
		Message string `json:"message"`
	}
	if err := c.private(ctx, "transferBalance", params, &resp); err != nil {
		return fmt.Errorf("transfer %s %s from %s to %s: %w", amount, currency, from, to, err)
	}
	if resp.Success != 1 {
		return interfaces.NewAPIError(c.Name(), resp.Message, 0)
	}
	return nil
}

// ReturnOpenLoan implements the ExchangeAPI interface. Poloniex has no call
// to close an active loan early; loans run to term or auto-renew.
func (c *Client) ReturnOpenLoan(ctx context.Context, id int64) error {
	return fmt.Errorf("return loan %d: %w", id, interfaces.ErrUnsupportedOperation)
}

// ToggleAutoRenew flips the auto-renew flag on an active loan. Not part of
// the exchange-agnostic contract; used by Poloniex-specific policies.
func (c *Client) ToggleAutoRenew(ctx context.Context, id int64) error {
	params := url.Values{"orderNumber": {strconv.FormatInt(id, 10)}}

	var resp struct {
		Success int    `json:"success"`
		Message string `json:"message"`
	}
	if err := c.private(ctx, "toggleAutoRenew", params, &resp); err != nil {
		return fmt.Errorf("toggle auto-renew on %d: %w", id, err)
	}
	if resp.Success != 1 {
		return interfaces.NewAPIError(c.Name(), resp.Message, 0)
	}
	return nil
}

// TickerEntry is one market's snapshot from the public ticker.
type TickerEntry struct {
	Last          decimal.Decimal `json:"last"`
	LowestAsk     decimal.Decimal `json:"lowestAsk"`
	HighestBid    decimal.Decimal `json:"highestBid"`
	PercentChange decimal.Decimal `json:"percentChange"`
	BaseVolume    decimal.Decimal `json:"baseVolume"`
}

// GetTicker returns the public ticker for all markets, keyed by pair name
// such as "BTC_ETH". Not part of the exchange-agnostic contract; used by
// rate refresh collaborators for currency conversion.
func (c *Client) GetTicker(ctx context.Context) (map[string]TickerEntry, error) {
	var raw map[string]TickerEntry
	if err := c.public(ctx, "returnTicker", nil, &raw); err != nil {
		return nil, fmt.Errorf("get ticker: %w", err)
	}
	return raw, nil
}

// private performs a signed trading-API call and decodes the response
// into out.
func (c *Client) private(ctx context.Context, command string, params url.Values, out interface{}) error {
	body, err := c.privateRaw(ctx, command, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", command, err)
	}
	return nil
}

func (c *Client) privateRaw(ctx context.Context, command string, params url.Values) ([]byte, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		form := url.Values{}
		for k, vs := range params {
			for _, v := range vs {
				form.Add(k, v)
			}
		}
		form.Set("command", command)
		// A fresh nonce per attempt; the signature covers the body, so
		// signing happens after the nonce is attached.
		form.Set("nonce", strconv.FormatInt(c.nonces.Next(), 10))
		encoded := form.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Key", c.key)
		req.Header.Set("Sign", c.sign(encoded))
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", command, err)
	}
	if err := exchangeError(c.Name(), body, resp.StatusCode); err != nil {
		return nil, err
	}
	return body, nil
}

// public performs an unauthenticated public-API call.
func (c *Client) public(ctx context.Context, command string, params url.Values, out interface{}) error {
	if err := c.throttle.Wait(ctx); err != nil {
		return err
	}

	query := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	query.Set("command", command)

	resp, err := c.http.Get(ctx, c.publicURL+"?"+query.Encode())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", command, err)
	}
	if err := exchangeError(c.Name(), body, resp.StatusCode); err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// sign computes the hex HMAC-SHA512 signature over the encoded form body.
func (c *Client) sign(body string) string {
	mac := hmac.New(sha512.New, []byte(c.secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// exchangeError converts an error-bearing response body into a typed
// APIError. Poloniex reports failures as {"error": "..."} with varying
// HTTP statuses, including 200.
func exchangeError(exchange string, body []byte, statusCode int) error {
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && probe.Error != "" {
		return interfaces.NewAPIError(exchange, probe.Error, statusCode)
	}
	if statusCode != http.StatusOK {
		return interfaces.NewAPIError(exchange, strings.TrimSpace(string(body)), statusCode)
	}
	return nil
}

func isEmptyJSONArray(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	return trimmed == "[]"
}

// Wire shapes. Poloniex quotes amounts and rates as strings and booleans
// as 0/1 integers.

type rawLoanOrder struct {
	Rate     decimal.Decimal `json:"rate"`
	Amount   decimal.Decimal `json:"amount"`
	RangeMin int             `json:"rangeMin"`
	RangeMax int             `json:"rangeMax"`
}

func (o rawLoanOrder) toLoanOrder() interfaces.LoanOrder {
	return interfaces.LoanOrder{
		Rate:     o.Rate,
		Amount:   o.Amount,
		RangeMin: o.RangeMin,
		RangeMax: o.RangeMax,
	}
}

type rawLoanOffer struct {
	ID        int64           `json:"id"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    decimal.Decimal `json:"amount"`
	Duration  int             `json:"duration"`
	AutoRenew int             `json:"autoRenew"`
	Date      string          `json:"date"`
}

func (o rawLoanOffer) toLoanOffer(currency string) interfaces.LoanOffer {
	date, _ := time.Parse(dateLayout, o.Date)
	return interfaces.LoanOffer{
		ID:        o.ID,
		Currency:  currency,
		Amount:    o.Amount,
		Rate:      o.Rate,
		Duration:  o.Duration,
		AutoRenew: o.AutoRenew == 1,
		Date:      date,
	}
}

type rawActiveLoan struct {
	ID        int64           `json:"id"`
	Currency  string          `json:"currency"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    decimal.Decimal `json:"amount"`
	Duration  int             `json:"duration"`
	AutoRenew int             `json:"autoRenew"`
	Date      string          `json:"date"`
}
