// Package newsapi looks up recent company news via newsapi.org.
package newsapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finance-chatbot/internal/domain"
	"finance-chatbot/internal/integrations/rest"
)

const defaultBaseURL = "https://newsapi.org"

// searchResponse is the minimal response shape of /v2/everything.
type searchResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

type Client struct {
	baseURL    string
	apiKey     string
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

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("newsapi: api key must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: rest.DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Search returns up to limit recent English articles matching query, newest
// first. Articles with an unparseable timestamp keep a zero PublishedAt.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("newsapi: query must not be empty")
	}
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(limit))
	params.Set("apiKey", c.apiKey)
	u := c.baseURL + "/v2/everything?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi: create request: %w", err)
	}

	var payload searchResponse
	if err := rest.DoJSON(c.httpClient, req, &payload); err != nil {
		return nil, fmt.Errorf("newsapi: request failed: %w", err)
	}
	if payload.Status != "ok" {
		return nil, fmt.Errorf("newsapi: unexpected response status %q", payload.Status)
	}

	articles := make([]domain.Article, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		published, _ := time.Parse(time.RFC3339, a.PublishedAt)
		articles = append(articles, domain.Article{
			Source:      a.Source.Name,
			Title:       a.Title,
			URL:         a.URL,
			PublishedAt: published,
		})
	}
	return articles, nil
}
