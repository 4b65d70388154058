// Package azureopenai is a focused client for the Azure OpenAI Chat
// Completions endpoint, including legacy function calling.
package azureopenai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"finance-chatbot/internal/domain"
	"finance-chatbot/internal/integrations/rest"
)

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Messages     []domain.ChatMessage  `json:"messages"`
	Functions    []domain.FunctionSpec `json:"functions,omitempty"`
	FunctionCall string                `json:"function_call,omitempty"`
	Temperature  *float64              `json:"temperature,omitempty"`
}

// chatResponse is the minimal response shape returned by the endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Choices []struct {
		Index   int                `json:"index"`
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

// Client calls one Azure OpenAI resource. The endpoint is the resource base
// URL (https://<resource>.openai.azure.com); the deployment is chosen per
// call.
type Client struct {
	endpoint   string
	apiKey     string
	apiVersion string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for the given Azure OpenAI resource.
func NewClient(endpoint, apiKey, apiVersion string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("azureopenai: endpoint must not be empty")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("azureopenai: api key must not be empty")
	}
	if strings.TrimSpace(apiVersion) == "" {
		return nil, errors.New("azureopenai: api version must not be empty")
	}
	c := &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: rest.DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func chatURL(endpoint, deployment, apiVersion string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(endpoint, "/"), deployment, apiVersion)
}

// Chat sends the conversation to the given deployment and returns the
// assistant message. When functions are provided, function selection is left
// to the model ("auto") and the returned message may carry a FunctionCall
// instead of content.
func (c *Client) Chat(ctx context.Context, deployment string, messages []domain.ChatMessage, functions []domain.FunctionSpec) (domain.ChatMessage, error) {
	if deployment == "" {
		return domain.ChatMessage{}, errors.New("azureopenai: deployment must not be empty")
	}

	reqBody := chatRequest{
		Messages:  messages,
		Functions: functions,
	}
	if len(functions) > 0 {
		reqBody.FunctionCall = "auto"
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("azureopenai: marshal request: %w", err)
	}

	url := chatURL(c.endpoint, deployment, c.apiVersion)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return domain.ChatMessage{}, fmt.Errorf("azureopenai: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	var payload chatResponse
	if err := rest.DoJSON(c.httpClient, req, &payload); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("azureopenai: request failed: %w", err)
	}
	if len(payload.Choices) == 0 {
		return domain.ChatMessage{}, errors.New("azureopenai: no choices in response")
	}
	msg := payload.Choices[0].Message
	if msg.Content == "" && msg.FunctionCall == nil {
		return domain.ChatMessage{}, errors.New("azureopenai: empty assistant message")
	}
	return msg, nil
}
