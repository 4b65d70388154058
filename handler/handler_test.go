package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"finance-chatbot/internal/usecase"
)

type stubUseCase struct {
	out           usecase.ChatOutput
	err           error
	in            usecase.ChatInput
	transcript    string
	transcriptErr error
	transcriptID  string
}

func (s *stubUseCase) Chat(_ context.Context, in usecase.ChatInput) (usecase.ChatOutput, error) {
	s.in = in
	return s.out, s.err
}

func (s *stubUseCase) Transcript(_ context.Context, conversationID string) (string, error) {
	s.transcriptID = conversationID
	return s.transcript, s.transcriptErr
}

func makeChatEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/chat",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_Chat_HappyPath(t *testing.T) {
	uc := &stubUseCase{out: usecase.ChatOutput{Reply: "Hello!", ConversationID: "conv-1"}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeChatEvent(`{"message":"Hi","conversationId":"conv-1"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.ChatInput{Message: "Hi", ConversationID: "conv-1"}, uc.in)

	out := parseBody[chatResponse](t, resp.Body)
	require.Equal(t, "Hello!", out.Reply)
	require.Equal(t, "conv-1", out.ConversationID)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_Chat_InvalidBody(t *testing.T) {
	uc := &stubUseCase{}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeChatEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		service string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_message"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Service: usecase.ServiceAzureOpenAI, Reason: "completion_error"}, status: http.StatusTooManyRequests, code: string(usecase.ErrorRateLimited), service: usecase.ServiceAzureOpenAI},
		{name: "upstream news", err: &usecase.Error{Code: usecase.ErrorUpstream, Service: usecase.ServiceNewsAPI, Reason: "function_get_financial_news"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream), service: usecase.ServiceNewsAPI},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "state_write_error"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := &stubUseCase{err: tc.err}
			h, err := NewHandler(uc)
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), makeChatEvent(`{"message":"Hi"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
			require.Equal(t, tc.service, out.Service)
		})
	}
}

func TestHandle_Transcript(t *testing.T) {
	uc := &stubUseCase{transcript: "User: Hi\nAssistant: Hello!\n"}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodGet,
		Path:                  "/transcript",
		QueryStringParameters: map[string]string{"conversationId": "conv-1"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "conv-1", uc.transcriptID)

	out := parseBody[transcriptResponse](t, resp.Body)
	require.Equal(t, "conv-1", out.ConversationID)
	require.Equal(t, "User: Hi\nAssistant: Hello!\n", out.Transcript)
}

func TestHandle_UnknownRoute(t *testing.T) {
	uc := &stubUseCase{}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/chat",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	uc := &stubUseCase{out: usecase.ChatOutput{Reply: "ok", ConversationID: "conv-1"}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	event := makeChatEvent(`{"message":"Hi"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}
