// Package rest holds the HTTP plumbing shared by the upstream API clients.
package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	maxErrorBody    = 4096
	maxResponseBody = 1 << 20
)

// DefaultTimeout is the per-call timeout applied when a client does not
// bring its own *http.Client.
const DefaultTimeout = 10 * time.Second

// StatusError captures non-2xx upstream responses with status-aware context.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// DefaultClient returns client, or a fresh client with DefaultTimeout when
// client is nil.
func DefaultClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// DoJSON executes req, enforces a 2xx status and decodes the bounded
// response body into out. A non-2xx status is returned as a *StatusError.
func DoJSON(client *http.Client, req *http.Request, out any) error {
	res, err := DefaultClient(client).Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &StatusError{
			StatusCode: res.StatusCode,
			URL:        req.URL.String(),
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
