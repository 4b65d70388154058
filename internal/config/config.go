// Package config loads the immutable process configuration, either from a
// local KEY=VALUE file or from SSM Parameter Store. Loading is one-shot and
// fail-fast: a missing required key aborts startup before any chat turn is
// served.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Keys recognized in config.txt.
const (
	KeyAzureOpenAIKey      = "AZURE_OPENAI_API_KEY"
	KeyAzureOpenAIEndpoint = "AZURE_OPENAI_API_ENDPOINT"
	KeyOpenAIAPIVersion    = "OPENAI_API_VERSION"
	KeyNewsAPIKey          = "NEWSAPI_KEY"
	KeyOpenExchangeKey     = "OPENEXCHANGE_API_KEY"
	KeyDeployment          = "AZURE_OPENAI_DEPLOYMENT"
)

// DefaultDeployment is the chat model deployment used when none is configured.
const DefaultDeployment = "gpt-4o"

var requiredKeys = []string{
	KeyAzureOpenAIKey,
	KeyAzureOpenAIEndpoint,
	KeyOpenAIAPIVersion,
	KeyNewsAPIKey,
	KeyOpenExchangeKey,
}

// Config holds the secrets and endpoints for the three upstream APIs. It is
// constructed once at startup and treated as immutable afterwards.
type Config struct {
	AzureOpenAIKey      string
	AzureOpenAIEndpoint string
	OpenAIAPIVersion    string
	NewsAPIKey          string
	OpenExchangeKey     string
	Deployment          string
}

// Error is a startup-fatal configuration failure. Key names the offending
// configuration key when one is known.
type Error struct {
	Key    string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := "config: " + e.Reason
	if e.Key != "" {
		msg = fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ParseFile reads a line-oriented KEY=VALUE file, skipping blank lines and
// lines starting with '#'. Values may be wrapped in single or double quotes.
// The file is never written back.
func ParseFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &Error{Reason: "read config file", Err: err}
	}

	values := make(map[string]string)
	for i, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Config{}, &Error{Reason: fmt.Sprintf("malformed line %d: missing '='", i+1)}
		}
		values[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	return fromValues(values)
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// fromValues validates the required keys and assembles the Config.
func fromValues(values map[string]string) (Config, error) {
	for _, key := range requiredKeys {
		if strings.TrimSpace(values[key]) == "" {
			return Config{}, &Error{Key: key, Reason: "required key missing or empty"}
		}
	}
	cfg := Config{
		AzureOpenAIKey:      values[KeyAzureOpenAIKey],
		AzureOpenAIEndpoint: values[KeyAzureOpenAIEndpoint],
		OpenAIAPIVersion:    values[KeyOpenAIAPIVersion],
		NewsAPIKey:          values[KeyNewsAPIKey],
		OpenExchangeKey:     values[KeyOpenExchangeKey],
		Deployment:          values[KeyDeployment],
	}
	if strings.TrimSpace(cfg.Deployment) == "" {
		cfg.Deployment = DefaultDeployment
	}
	return cfg, nil
}
