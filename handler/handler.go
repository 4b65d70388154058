// Package handler adapts API Gateway proxy events to the chat use case.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"finance-chatbot/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// UseCase is the chat capability the handler exposes over HTTP.
type UseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	Transcript(ctx context.Context, conversationID string) (string, error)
}

type Handler struct {
	uc UseCase
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

type chatResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversationId"`
}

type transcriptResponse struct {
	ConversationID string `json:"conversationId"`
	Transcript     string `json:"transcript"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Service string `json:"service,omitempty"`
}

func NewHandler(uc UseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

// Handle routes one API Gateway proxy event. Errors from the use case are
// mapped to HTTP statuses and never returned to the Lambda runtime.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := correlationIDFrom(event.Headers)
	log := slog.With("correlationId", correlationID, "method", event.HTTPMethod, "path", event.Path)

	switch {
	case event.HTTPMethod == http.MethodPost && event.Path == "/chat":
		return h.handleChat(ctx, log, correlationID, event.Body), nil
	case event.HTTPMethod == http.MethodGet && event.Path == "/transcript":
		return h.handleTranscript(ctx, log, correlationID, event.QueryStringParameters["conversationId"]), nil
	default:
		log.Info("route not found")
		return respond(http.StatusNotFound, correlationID, errorResponse{Error: "NOT_FOUND"}), nil
	}
}

func (h *Handler) handleChat(ctx context.Context, log *slog.Logger, correlationID, body string) events.APIGatewayProxyResponse {
	var req chatRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		log.Info("invalid request body", "err", err)
		return respond(http.StatusBadRequest, correlationID, errorResponse{Error: string(usecase.ErrorInvalidInput)})
	}

	out, err := h.uc.Chat(ctx, usecase.ChatInput{
		Message:        req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return errorResult(log, correlationID, err)
	}

	log.Info("chat turn completed", "conversationId", out.ConversationID)
	return respond(http.StatusOK, correlationID, chatResponse{
		Reply:          out.Reply,
		ConversationID: out.ConversationID,
	})
}

func (h *Handler) handleTranscript(ctx context.Context, log *slog.Logger, correlationID, conversationID string) events.APIGatewayProxyResponse {
	transcript, err := h.uc.Transcript(ctx, conversationID)
	if err != nil {
		return errorResult(log, correlationID, err)
	}

	log.Info("transcript served", "conversationId", conversationID)
	return respond(http.StatusOK, correlationID, transcriptResponse{
		ConversationID: conversationID,
		Transcript:     transcript,
	})
}

func errorResult(log *slog.Logger, correlationID string, err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		log.Error("unexpected error", "err", err)
		return respond(http.StatusInternalServerError, correlationID, errorResponse{Error: string(usecase.ErrorInternal)})
	}

	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorRateLimited:
		status = http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		status = http.StatusBadGateway
	}

	log.Error("chat request failed", "code", ucErr.Code, "service", ucErr.Service, "reason", ucErr.Reason, "err", ucErr.Err)
	return respond(status, correlationID, errorResponse{
		Error:   string(ucErr.Code),
		Service: ucErr.Service,
	})
}

func respond(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(raw),
	}
}

func correlationIDFrom(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
