// Package openexchange resolves currency cross rates via openexchangerates.org.
//
// The free tier serves a single USD-base rate table, so one fetch answers
// every currency pair. The table is cached for a short TTL to keep repeated
// lookups within a session off the network.
package openexchange

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"finance-chatbot/internal/domain"
	"finance-chatbot/internal/integrations/rest"
)

const (
	defaultBaseURL = "https://openexchangerates.org"
	cacheTTL       = 5 * time.Minute
)

// ErrUnknownCurrency is returned when a requested currency code is not in
// the rate table.
var ErrUnknownCurrency = errors.New("openexchange: unknown currency code")

// latestResponse is the minimal response shape of /api/latest.json.
type latestResponse struct {
	Timestamp int64              `json:"timestamp"`
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
}

type rateTable struct {
	rates     map[string]float64
	asOf      time.Time
	fetchedAt time.Time
}

type Client struct {
	baseURL    string
	appID      string
	httpClient *http.Client

	mu    sync.Mutex
	table *rateTable
	now   func() time.Time
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

func NewClient(appID string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(appID) == "" {
		return nil, errors.New("openexchange: app id must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		appID:      appID,
		httpClient: &http.Client{Timeout: rest.DefaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Pair returns the cross rate from one currency to another, rounded to four
// decimals, along with the upstream rate timestamp. Currency codes are
// case-insensitive.
func (c *Client) Pair(ctx context.Context, from, to string) (domain.Rate, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return domain.Rate{}, errors.New("openexchange: both currency codes are required")
	}

	table, err := c.latest(ctx)
	if err != nil {
		return domain.Rate{}, err
	}

	rateFrom, ok := table.rates[from]
	if !ok {
		return domain.Rate{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	rateTo, ok := table.rates[to]
	if !ok {
		return domain.Rate{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}
	if rateFrom == 0 {
		return domain.Rate{}, fmt.Errorf("openexchange: zero rate for %s", from)
	}

	return domain.Rate{
		From:  from,
		To:    to,
		Value: math.Round(rateTo/rateFrom*10000) / 10000,
		Time:  table.asOf,
	}, nil
}

// latest returns the cached USD-base rate table, refreshing it once the TTL
// has expired.
func (c *Client) latest(ctx context.Context) (*rateTable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.table != nil && c.now().Sub(c.table.fetchedAt) < cacheTTL {
		return c.table, nil
	}

	params := url.Values{}
	params.Set("app_id", c.appID)
	u := c.baseURL + "/api/latest.json?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("openexchange: create request: %w", err)
	}

	var payload latestResponse
	if err := rest.DoJSON(c.httpClient, req, &payload); err != nil {
		return nil, fmt.Errorf("openexchange: request failed: %w", err)
	}
	if len(payload.Rates) == 0 {
		return nil, errors.New("openexchange: empty rate table")
	}

	c.table = &rateTable{
		rates:     payload.Rates,
		asOf:      time.Unix(payload.Timestamp, 0).UTC(),
		fetchedAt: c.now(),
	}
	return c.table, nil
}
