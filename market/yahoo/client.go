// Package yahoo is a market.Provider backed by the public Yahoo Finance
// chart and quoteSummary endpoints.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/pkg/circuit"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	// DefaultURL is the public query endpoint.
	DefaultURL = "https://query1.finance.yahoo.com"
	// NSESuffix maps a bare NSE ticker to its Yahoo symbol.
	NSESuffix = ".NS"
	// DefaultMaxBody caps how much of a response is read.
	DefaultMaxBody int64 = 4 << 20
)

// Client fetches quotes, daily history and fundamentals.
type Client struct {
	baseURL    string
	suffix     string
	httpClient *http.Client
	maxBody    int64
	breaker    *circuit.Breaker
	log        logrus.FieldLogger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithSuffix sets the exchange suffix appended to every symbol.
func WithSuffix(s string) Option {
	return func(c *Client) { c.suffix = s }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithMaxBody(n int64) Option {
	return func(c *Client) { c.maxBody = n }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultURL,
		suffix:  NSESuffix,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxBody: DefaultMaxBody,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuit.New("yahoo", 5, 30*time.Second, c.log)
	}
	return c
}

func (c *Client) ticker(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + c.suffix
}

var errNotFound = errors.New("symbol not found")

// get performs a GET through the breaker. A 404 is reported as errNotFound
// and does not count as a breaker failure.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	apiURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	var (
		body     []byte
		notFound bool
	)
	err := c.breaker.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if int64(len(data)) > c.maxBody {
			return fmt.Errorf("read response: body exceeds %d bytes", c.maxBody)
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			notFound = true
			return nil
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(data))
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, errNotFound
	}
	return body, nil
}

// Quote returns the latest market price, falling back to the previous close.
func (c *Client) Quote(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	params := url.Values{}
	params.Set("range", "1d")
	params.Set("interval", "1d")

	body, err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(c.ticker(symbol)), params)
	if errors.Is(err, errNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("quote %s: %w", symbol, err)
	}

	meta := gjson.GetBytes(body, "chart.result.0.meta")
	for _, field := range []string{"regularMarketPrice", "chartPreviousClose", "previousClose"} {
		if p, ok := number(meta.Get(field)); ok && p.IsPositive() {
			return p, true, nil
		}
	}
	return decimal.Zero, false, nil
}

// History returns daily candles for period. Days without a close are skipped.
func (c *Client) History(ctx context.Context, symbol string, period market.Period) ([]market.Candle, bool, error) {
	params := url.Values{}
	params.Set("range", period.String())
	params.Set("interval", "1d")

	body, err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(c.ticker(symbol)), params)
	if errors.Is(err, errNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("history %s: %w", symbol, err)
	}

	result := gjson.GetBytes(body, "chart.result.0")
	stamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	candles := make([]market.Candle, 0, len(stamps))
	for i, ts := range stamps {
		cl, ok := number(at(closes, i))
		if !ok {
			continue
		}
		open, _ := number(at(opens, i))
		high, _ := number(at(highs, i))
		low, _ := number(at(lows, i))
		candles = append(candles, market.Candle{
			Time:   time.Unix(ts.Int(), 0).UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cl,
			Volume: at(volumes, i).Int(),
		})
	}
	if len(candles) == 0 {
		return nil, false, nil
	}
	return candles, true, nil
}

var fundamentalModules = strings.Join([]string{
	"summaryDetail", "defaultKeyStatistics", "financialData", "assetProfile",
}, ",")

// Fundamentals returns whatever metrics Yahoo reports; absent ones stay nil.
func (c *Client) Fundamentals(ctx context.Context, symbol string) (market.Fundamentals, error) {
	params := url.Values{}
	params.Set("modules", fundamentalModules)

	body, err := c.get(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(c.ticker(symbol)), params)
	if errors.Is(err, errNotFound) {
		return market.Fundamentals{}, nil
	}
	if err != nil {
		return market.Fundamentals{}, fmt.Errorf("fundamentals %s: %w", symbol, err)
	}

	r := gjson.GetBytes(body, "quoteSummary.result.0")
	return market.Fundamentals{
		PERatio:       optNumber(r.Get("summaryDetail.trailingPE.raw")),
		PBRatio:       optNumber(r.Get("defaultKeyStatistics.priceToBook.raw")),
		MarketCap:     optNumber(r.Get("summaryDetail.marketCap.raw")),
		ROE:           optNumber(r.Get("financialData.returnOnEquity.raw")),
		DebtToEquity:  optNumber(r.Get("financialData.debtToEquity.raw")),
		DividendYield: optNumber(r.Get("summaryDetail.dividendYield.raw")),
		Week52High:    optNumber(r.Get("summaryDetail.fiftyTwoWeekHigh.raw")),
		Week52Low:     optNumber(r.Get("summaryDetail.fiftyTwoWeekLow.raw")),
		AvgVolume:     optNumber(r.Get("summaryDetail.averageVolume.raw")),
		Sector:        optString(r.Get("assetProfile.sector")),
		Industry:      optString(r.Get("assetProfile.industry")),
	}, nil
}

func at(arr []gjson.Result, i int) gjson.Result {
	if i < len(arr) {
		return arr[i]
	}
	return gjson.Result{}
}

// number parses the raw JSON literal so no float rounding is introduced.
func number(r gjson.Result) (decimal.Decimal, bool) {
	if r.Type != gjson.Number {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(r.Raw)
	if err != nil {
		return decimal.NewFromFloat(r.Float()), true
	}
	return d, true
}

func optNumber(r gjson.Result) *decimal.Decimal {
	d, ok := number(r)
	if !ok {
		return nil
	}
	return &d
}

func optString(r gjson.Result) *string {
	if r.Type != gjson.String || strings.TrimSpace(r.Str) == "" {
		return nil
	}
	s := r.Str
	return &s
}

var _ market.Provider = (*Client)(nil)
