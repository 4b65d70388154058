// Package usecase orchestrates a single chat turn: validation, prompt
// assembly, the LLM round trip with optional finance lookups, and turn
// persistence. Each turn is an independent request/response cycle; the
// service carries no per-turn state.
package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"finance-chatbot/internal/domain"
)

const (
	defaultMaxContext    = 20
	defaultMaxMessageLen = 500
	maxConversationTurns = 20
)

// LLMClient is the chat completion capability.
type LLMClient interface {
	Chat(ctx context.Context, deployment string, messages []domain.ChatMessage, functions []domain.FunctionSpec) (domain.ChatMessage, error)
}

// NewsClient looks up recent company news.
type NewsClient interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Article, error)
}

// RatesClient resolves currency cross rates.
type RatesClient interface {
	Pair(ctx context.Context, from, to string) (domain.Rate, error)
}

// MarketDataClient serves quotes and short price histories.
type MarketDataClient interface {
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
	History(ctx context.Context, symbol string) ([]domain.Bar, error)
}

// StateReadWriter is the conversation state store.
type StateReadWriter interface {
	GetConversationTurnCount(ctx context.Context, conversationID string) (int, error)
	GetHistory(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	SaveCompletedTurn(ctx context.Context, conversationID, question, answer string, turns int) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type ChatService struct {
	llm    LLMClient
	news   NewsClient
	rates  RatesClient
	market MarketDataClient
	state  StateReadWriter

	deployment      string
	maxContextItems int
	maxMessageLen   int
}

type ChatInput struct {
	Message        string
	ConversationID string
}

type ChatOutput struct {
	Reply          string
	ConversationID string
}

func NewChatService(llm LLMClient, news NewsClient, rates RatesClient, market MarketDataClient, state StateReadWriter, deployment string, maxContextItems, maxMessageLen int) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if news == nil {
		return nil, errors.New("usecase: news client must not be nil")
	}
	if rates == nil {
		return nil, errors.New("usecase: rates client must not be nil")
	}
	if market == nil {
		return nil, errors.New("usecase: market data client must not be nil")
	}
	if state == nil {
		return nil, errors.New("usecase: state store must not be nil")
	}
	if strings.TrimSpace(deployment) == "" {
		return nil, errors.New("usecase: deployment must not be empty")
	}
	if maxContextItems <= 0 {
		maxContextItems = defaultMaxContext
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessageLen
	}
	return &ChatService{
		llm:             llm,
		news:            news,
		rates:           rates,
		market:          market,
		state:           state,
		deployment:      deployment,
		maxContextItems: maxContextItems,
		maxMessageLen:   maxMessageLen,
	}, nil
}

// Chat runs one turn. When the model requests a finance lookup, the lookup
// result is fed back as a function message and a second completion produces
// the final answer. A failed lookup fails the turn; the follow-up completion
// is not attempted.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(message) > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		convID = newUUID()
	}

	existingTurns := 0
	if strings.TrimSpace(in.ConversationID) != "" {
		turnCount, err := s.state.GetConversationTurnCount(ctx, convID)
		if err != nil {
			return ChatOutput{}, newError(ErrorInternal, "state_turn_count_error", err)
		}
		existingTurns = turnCount
		if existingTurns >= maxConversationTurns {
			return ChatOutput{}, newError(ErrorInvalidInput, "conversation_turn_limit", nil)
		}
	}

	history, err := s.state.GetHistory(ctx, convID, s.maxContextItems)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "state_history_error", err)
	}

	messages := buildPromptMessages(message, history)

	assistant, err := s.llm.Chat(ctx, s.deployment, messages, financeFunctions())
	if err != nil {
		return ChatOutput{}, newServiceError(ServiceAzureOpenAI, "completion_error", err)
	}

	reply := assistant.Content
	if assistant.FunctionCall != nil {
		reply, err = s.completeWithFunctionResult(ctx, messages, assistant)
		if err != nil {
			return ChatOutput{}, err
		}
	}
	if strings.TrimSpace(reply) == "" {
		return ChatOutput{}, newServiceError(ServiceAzureOpenAI, "empty_completion", nil)
	}

	if err := s.state.SaveCompletedTurn(ctx, convID, message, reply, existingTurns+1); err != nil {
		return ChatOutput{}, newError(ErrorInternal, "state_write_error", err)
	}

	return ChatOutput{
		Reply:          reply,
		ConversationID: convID,
	}, nil
}

// completeWithFunctionResult dispatches the requested lookup, appends the
// function exchange to the conversation and asks the model for the final
// answer. No function specs are sent on the second call.
func (s *ChatService) completeWithFunctionResult(ctx context.Context, messages []domain.ChatMessage, assistant domain.ChatMessage) (string, error) {
	result, service, err := s.dispatchFunctionCall(ctx, assistant.FunctionCall)
	if err != nil {
		return "", newServiceError(service, "function_"+assistant.FunctionCall.Name, err)
	}

	messages = append(messages, assistant, domain.ChatMessage{
		Role:    domain.RoleFunction,
		Name:    assistant.FunctionCall.Name,
		Content: result,
	})

	final, err := s.llm.Chat(ctx, s.deployment, messages, nil)
	if err != nil {
		return "", newServiceError(ServiceAzureOpenAI, "completion_error", err)
	}
	return final.Content, nil
}

// Transcript renders the completed turns of a conversation as plain text.
func (s *ChatService) Transcript(ctx context.Context, conversationID string) (string, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return "", newError(ErrorInvalidInput, "empty_conversation_id", nil)
	}

	history, err := s.state.GetHistory(ctx, conversationID, s.maxContextItems)
	if err != nil {
		return "", newError(ErrorInternal, "state_history_error", err)
	}

	var b strings.Builder
	for _, m := range history {
		pair := historyToPromptMessages(m)
		if len(pair) == 0 {
			continue
		}
		b.WriteString("User: " + pair[0].Content + "\n")
		b.WriteString("Assistant: " + pair[1].Content + "\n")
	}
	return b.String(), nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
