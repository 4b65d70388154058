package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorRateLimited  ErrorCode = "RATE_LIMITED"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// Upstream service names carried on upstream errors.
const (
	ServiceAzureOpenAI  = "azure-openai"
	ServiceNewsAPI      = "newsapi"
	ServiceOpenExchange = "openexchangerates"
	ServiceMarketData   = "yahoo-finance"
)

// Error is the typed per-turn failure returned by ChatService. Service names
// the upstream service that failed when Code is ErrorUpstream or
// ErrorRateLimited.
type Error struct {
	Code    ErrorCode
	Service string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	if e.Service != "" {
		msg = fmt.Sprintf("usecase: %s [%s] (%s)", e.Code, e.Service, e.Reason)
	}
	if e.Err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// newServiceError tags an upstream failure with the failing service, mapping
// HTTP 429 to ErrorRateLimited.
func newServiceError(service, reason string, err error) *Error {
	code := ErrorUpstream
	if status, ok := upstreamStatusCode(err); ok && status == 429 {
		code = ErrorRateLimited
	}
	return &Error{Code: code, Service: service, Reason: reason, Err: err}
}
