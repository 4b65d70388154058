// Package marketdata fetches quotes and short price histories from the
// Yahoo Finance chart API.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finance-chatbot/internal/domain"
	"finance-chatbot/internal/integrations/rest"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// ErrNoData is returned when the chart API has no price data for a symbol.
var ErrNoData = errors.New("marketdata: no price data for symbol")

// chartResponse is the minimal response shape of /v8/finance/chart/{symbol}.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				ShortName string `json:"shortName"`
				Currency  string `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a chart API client. The endpoint is public and
// unauthenticated.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: rest.DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote returns the most recent daily quote for a ticker symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	bars, meta, err := c.dailyBars(ctx, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	last := bars[len(bars)-1]
	return domain.Quote{
		Symbol:   meta.symbol,
		Name:     meta.name,
		Currency: meta.currency,
		Time:     last.Time,
		Close:    last.Close,
		High:     last.high,
		Low:      last.low,
		Volume:   last.volume,
	}, nil
}

// History returns the daily closing prices of the last seven days, oldest
// first.
func (c *Client) History(ctx context.Context, symbol string) ([]domain.Bar, error) {
	bars, _, err := c.dailyBars(ctx, symbol)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, domain.Bar{Time: b.Time, Close: b.Close})
	}
	return out, nil
}

type chartMeta struct {
	symbol   string
	name     string
	currency string
}

type dailyBar struct {
	domain.Bar
	high   float64
	low    float64
	volume int64
}

func (c *Client) dailyBars(ctx context.Context, symbol string) ([]dailyBar, chartMeta, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, chartMeta{}, errors.New("marketdata: symbol must not be empty")
	}

	params := url.Values{}
	params.Set("range", "7d")
	params.Set("interval", "1d")
	u := c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, chartMeta{}, fmt.Errorf("marketdata: create request: %w", err)
	}
	req.Header.Set("User-Agent", "finance-chatbot/1.0")

	var payload chartResponse
	if err := rest.DoJSON(c.httpClient, req, &payload); err != nil {
		return nil, chartMeta{}, fmt.Errorf("marketdata: request failed: %w", err)
	}
	if payload.Chart.Error != nil {
		return nil, chartMeta{}, fmt.Errorf("marketdata: chart error %s: %s",
			payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, chartMeta{}, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	result := payload.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, chartMeta{}, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	quote := result.Indicators.Quote[0]

	bars := make([]dailyBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Sparse series: the chart API reports null entries for days
		// without a close (holidays, pre-listing).
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		b := dailyBar{Bar: domain.Bar{
			Time:  time.Unix(ts, 0).UTC(),
			Close: *quote.Close[i],
		}}
		if i < len(quote.High) && quote.High[i] != nil {
			b.high = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			b.low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			b.volume = *quote.Volume[i]
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, chartMeta{}, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	meta := chartMeta{
		symbol:   result.Meta.Symbol,
		name:     result.Meta.ShortName,
		currency: result.Meta.Currency,
	}
	if meta.symbol == "" {
		meta.symbol = symbol
	}
	if meta.name == "" {
		meta.name = meta.symbol
	}
	return bars, meta, nil
}
