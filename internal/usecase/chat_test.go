package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finance-chatbot/internal/domain"
	"finance-chatbot/internal/integrations/rest"
	"finance-chatbot/internal/repository"
)

type llmResponse struct {
	msg domain.ChatMessage
	err error
}

// mockLLM replays scripted responses and records every call.
type mockLLM struct {
	responses []llmResponse
	calls     [][]domain.ChatMessage
	functions [][]domain.FunctionSpec
}

func (m *mockLLM) Chat(_ context.Context, _ string, messages []domain.ChatMessage, functions []domain.FunctionSpec) (domain.ChatMessage, error) {
	m.calls = append(m.calls, messages)
	m.functions = append(m.functions, functions)
	if len(m.responses) == 0 {
		return domain.ChatMessage{}, errors.New("no llm response configured")
	}
	idx := len(m.calls) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx].msg, m.responses[idx].err
}

func assistantText(content string) llmResponse {
	return llmResponse{msg: domain.ChatMessage{Role: domain.RoleAssistant, Content: content}}
}

func assistantCall(name, arguments string) llmResponse {
	return llmResponse{msg: domain.ChatMessage{
		Role:         domain.RoleAssistant,
		FunctionCall: &domain.FunctionCall{Name: name, Arguments: arguments},
	}}
}

type mockNews struct {
	articles  []domain.Article
	err       error
	lastQuery string
	calls     int
}

func (m *mockNews) Search(_ context.Context, query string, _ int) ([]domain.Article, error) {
	m.calls++
	m.lastQuery = query
	return m.articles, m.err
}

type mockRates struct {
	rate  domain.Rate
	err   error
	calls int
}

func (m *mockRates) Pair(_ context.Context, _, _ string) (domain.Rate, error) {
	m.calls++
	return m.rate, m.err
}

type mockMarket struct {
	quote      domain.Quote
	bars       []domain.Bar
	quoteErr   error
	historyErr error
	lastSymbol string
}

func (m *mockMarket) Quote(_ context.Context, symbol string) (domain.Quote, error) {
	m.lastSymbol = symbol
	return m.quote, m.quoteErr
}

func (m *mockMarket) History(_ context.Context, symbol string) ([]domain.Bar, error) {
	m.lastSymbol = symbol
	return m.bars, m.historyErr
}

type mockState struct {
	history              []domain.Message
	turnCount            int
	historyErr           error
	turnCountErr         error
	saveErr              error
	savedConversationID  string
	savedQuestion        string
	savedAnswer          string
	savedTurns           int
	saveCompletedInvoked bool
}

func (m *mockState) GetConversationTurnCount(_ context.Context, _ string) (int, error) {
	return m.turnCount, m.turnCountErr
}

func (m *mockState) GetHistory(_ context.Context, _ string, _ int) ([]domain.Message, error) {
	return m.history, m.historyErr
}

func (m *mockState) SaveCompletedTurn(_ context.Context, conversationID, question, answer string, turns int) error {
	m.savedConversationID = conversationID
	m.savedQuestion = question
	m.savedAnswer = answer
	m.savedTurns = turns
	m.saveCompletedInvoked = true
	return m.saveErr
}

type serviceDeps struct {
	llm    *mockLLM
	news   *mockNews
	rates  *mockRates
	market *mockMarket
	state  *mockState
}

func defaultDeps() *serviceDeps {
	return &serviceDeps{
		llm:    &mockLLM{},
		news:   &mockNews{},
		rates:  &mockRates{},
		market: &mockMarket{},
		state:  &mockState{},
	}
}

func newTestService(t *testing.T, d *serviceDeps) *ChatService {
	t.Helper()
	svc, err := NewChatService(d.llm, d.news, d.rates, d.market, d.state, "gpt-4o", 20, 500)
	require.NoError(t, err)
	return svc
}

func expectChatError(t *testing.T, err error, code ErrorCode, service string) {
	t.Helper()
	var chatErr *Error
	require.ErrorAs(t, err, &chatErr)
	require.Equal(t, code, chatErr.Code)
	require.Equal(t, service, chatErr.Service)
}

func TestNewChatService_ValidatesDependencies(t *testing.T) {
	d := defaultDeps()

	_, err := NewChatService(nil, d.news, d.rates, d.market, d.state, "gpt-4o", 20, 500)
	require.Error(t, err)

	_, err = NewChatService(d.llm, nil, d.rates, d.market, d.state, "gpt-4o", 20, 500)
	require.Error(t, err)

	_, err = NewChatService(d.llm, d.news, nil, d.market, d.state, "gpt-4o", 20, 500)
	require.Error(t, err)

	_, err = NewChatService(d.llm, d.news, d.rates, nil, d.state, "gpt-4o", 20, 500)
	require.Error(t, err)

	_, err = NewChatService(d.llm, d.news, d.rates, d.market, nil, "gpt-4o", 20, 500)
	require.Error(t, err)

	_, err = NewChatService(d.llm, d.news, d.rates, d.market, d.state, "  ", 20, 500)
	require.Error(t, err)
}

func TestChat_PlainAnswer(t *testing.T) {
	d := defaultDeps()
	d.llm.responses = []llmResponse{assistantText("Hello!")}
	svc := newTestService(t, d)

	out, err := svc.Chat(context.Background(), ChatInput{Message: "Hi", ConversationID: "conv-1"})
	require.NoError(t, err)
	require.Equal(t, "Hello!", out.Reply)
	require.Equal(t, "conv-1", out.ConversationID)
	require.Len(t, d.llm.calls, 1)
	require.True(t, d.state.saveCompletedInvoked)
	require.Equal(t, "Hi", d.state.savedQuestion)
	require.Equal(t, "Hello!", d.state.savedAnswer)
	require.Equal(t, 1, d.state.savedTurns)
}

func TestChat_AdvertisesFunctionsOnFirstCallOnly(t *testing.T) {
	d := defaultDeps()
	d.rates.rate = domain.Rate{From: "EUR", To: "USD", Value: 1.083, Time: time.Now()}
	d.llm.responses = []llmResponse{
		assistantCall(fnExchangeRate, `{"from_currency":"EUR","to_currency":"USD"}`),
		assistantText("One euro buys about 1.08 dollars."),
	}
	svc := newTestService(t, d)

	_, err := svc.Chat(context.Background(), ChatInput{Message: "EUR to USD?"})
	require.NoError(t, err)
	require.Len(t, d.llm.functions, 2)
	require.Len(t, d.llm.functions[0], 4)
	require.Nil(t, d.llm.functions[1])
}

func TestChat_ExchangeRateFlow(t *testing.T) {
	d := defaultDeps()
	asOf := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	d.rates.rate = domain.Rate{From: "EUR", To: "USD", Value: 1.083, Time: asOf}
	d.llm.responses = []llmResponse{
		assistantCall(fnExchangeRate, `{"from_currency":"EUR","to_currency":"USD"}`),
		assistantText("One euro buys about 1.08 dollars."),
	}
	svc := newTestService(t, d)

	out, err := svc.Chat(context.Background(), ChatInput{Message: "What is the EUR to USD rate?"})
	require.NoError(t, err)
	require.Equal(t, "One euro buys about 1.08 dollars.", out.Reply)
	require.Equal(t, 1, d.rates.calls)

	// The second completion must see the function exchange.
	second := d.llm.calls[1]
	require.Equal(t, domain.RoleAssistant, second[len(second)-2].Role)
	require.NotNil(t, second[len(second)-2].FunctionCall)
	fnMsg := second[len(second)-1]
	require.Equal(t, domain.RoleFunction, fnMsg.Role)
	require.Equal(t, fnExchangeRate, fnMsg.Name)
	require.Contains(t, fnMsg.Content, "1 EUR = **1.0830 USD**")
}

func TestChat_StockPriceFlow(t *testing.T) {
	d := defaultDeps()
	d.market.quote = domain.Quote{
		Symbol: "AAPL", Name: "Apple Inc.", Currency: "USD",
		Time:  time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		Close: 233.10, High: 234.50, Low: 231.90, Volume: 48000000,
	}
	d.llm.responses = []llmResponse{
		assistantCall(fnStockPrice, `{"ticker":"AAPL"}`),
		assistantText("Apple closed at 233.10 USD."),
	}
	svc := newTestService(t, d)

	out, err := svc.Chat(context.Background(), ChatInput{Message: "What is the current price of Apple stock?"})
	require.NoError(t, err)
	require.Equal(t, "Apple closed at 233.10 USD.", out.Reply)
	require.Equal(t, "AAPL", d.market.lastSymbol)

	fnMsg := d.llm.calls[1][len(d.llm.calls[1])-1]
	require.Contains(t, fnMsg.Content, "Apple Inc. (AAPL)")
	require.Contains(t, fnMsg.Content, "233.10 USD")
}

func TestChat_NewsFlow(t *testing.T) {
	d := defaultDeps()
	d.news.articles = []domain.Article{{
		Source:      "Reuters",
		Title:       "Apple releases results",
		URL:         "https://example.com/apple",
		PublishedAt: time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC),
	}}
	d.llm.responses = []llmResponse{
		assistantCall(fnNews, `{"ticker":"AAPL"}`),
		assistantText("Apple released its quarterly results."),
	}
	svc := newTestService(t, d)

	out, err := svc.Chat(context.Background(), ChatInput{Message: "What's new with Apple?"})
	require.NoError(t, err)
	require.Equal(t, "Apple released its quarterly results.", out.Reply)
	require.Equal(t, "AAPL", d.news.lastQuery)

	fnMsg := d.llm.calls[1][len(d.llm.calls[1])-1]
	require.Contains(t, fnMsg.Content, "Reuters")
	require.Contains(t, fnMsg.Content, "[Apple releases results](https://example.com/apple)")
}

func TestChat_NewsFailure_FailsTurnWithoutSecondCompletion(t *testing.T) {
	d := defaultDeps()
	d.news.err = errors.New("connection refused")
	d.llm.responses = []llmResponse{
		assistantCall(fnNews, `{"ticker":"AAPL"}`),
		assistantText("should never be produced"),
	}
	svc := newTestService(t, d)

	_, err := svc.Chat(context.Background(), ChatInput{Message: "What's new with Apple?"})
	expectChatError(t, err, ErrorUpstream, ServiceNewsAPI)
	require.Len(t, d.llm.calls, 1, "no follow-up completion after a failed lookup")
	require.False(t, d.state.saveCompletedInvoked)
}

func TestChat_MarketDataFailure(t *testing.T) {
	d := defaultDeps()
	d.market.quoteErr = errors.New("no price data")
	d.llm.responses = []llmResponse{assistantCall(fnStockPrice, `{"ticker":"XXXX"}`)}
	svc := newTestService(t, d)

	_, err := svc.Chat(context.Background(), ChatInput{Message: "Price of XXXX?"})
	expectChatError(t, err, ErrorUpstream, ServiceMarketData)
}

func TestChat_RatesFailure(t *testing.T) {
	d := defaultDeps()
	d.rates.err = errors.New("unknown currency code")
	d.llm.responses = []llmResponse{assistantCall(fnExchangeRate, `{"from_currency":"EUR","to_currency":"XXX"}`)}
	svc := newTestService(t, d)

	_, err := svc.Chat(context.Background(), ChatInput{Message: "EUR to XXX?"})
	expectChatError(t, err, ErrorUpstream, ServiceOpenExchange)
}

func TestChat_CompletionErrors(t *testing.T) {
	d := defaultDeps()
	d.llm.responses = []llmResponse{{err: &rest.StatusError{StatusCode: 500}}}
	svc := newTestService(t, d)
	_, err := svc.Chat(context.Background(), ChatInput{Message: "Hi"})
	expectChatError(t, err, ErrorUpstream, ServiceAzureOpenAI)

	d = defaultDeps()
	d.llm.responses = []llmResponse{{err: &rest.StatusError{StatusCode: 429}}}
	svc = newTestService(t, d)
	_, err = svc.Chat(context.Background(), ChatInput{Message: "Hi"})
	expectChatError(t, err, ErrorRateLimited, ServiceAzureOpenAI)
}

func TestChat_RateLimitOnSecondCompletion(t *testing.T) {
	d := defaultDeps()
	d.rates.rate = domain.Rate{From: "EUR", To: "USD", Value: 1.083, Time: time.Now()}
	d.llm.responses = []llmResponse{
		assistantCall(fnExchangeRate, `{"from_currency":"EUR","to_currency":"USD"}`),
		{err: &rest.StatusError{StatusCode: 429}},
	}
	svc := newTestService(t, d)

	_, err := svc.Chat(context.Background(), ChatInput{Message: "EUR to USD?"})
	expectChatError(t, err, ErrorRateLimited, ServiceAzureOpenAI)
	require.False(t, d.state.saveCompletedInvoked)
}

func TestChat_UnknownFunctionName(t *testing.T) {
	d := defaultDeps()
	d.llm.responses = []llmResponse{assistantCall("get_weather", `{}`)}
	svc := newTestService(t, d)

	_, err := svc.Chat(context.Background(), ChatInput{Message: "Weather in Berlin?"})
	expectChatError(t, err, ErrorUpstream, ServiceAzureOpenAI)
	require.Contains(t, err.Error(), "unknown function")
}

func TestChat_MalformedFunctionArguments(t *testing.T) {
	d := defaultDeps()
	d.llm.responses = []llmResponse{assistantCall(fnStockPrice, `not-json`)}
	svc := newTestService(t, d)

	_, err := svc.Chat(context.Background(), ChatInput{Message: "Price of Apple?"})
	expectChatError(t, err, ErrorUpstream, ServiceAzureOpenAI)
	require.Contains(t, err.Error(), "parse function arguments")
}

func TestChat_ValidationErrors(t *testing.T) {
	svc := newTestService(t, defaultDeps())

	_, err := svc.Chat(context.Background(), ChatInput{Message: "   "})
	expectChatError(t, err, ErrorInvalidInput, "")

	_, err = svc.Chat(context.Background(), ChatInput{Message: strings.Repeat("a", 501)})
	expectChatError(t, err, ErrorInvalidInput, "")
}

func TestChat_MissingConversationID_GeneratesID(t *testing.T) {
	d := defaultDeps()
	d.llm.responses = []llmResponse{assistantText("Sure.")}
	svc := newTestService(t, d)

	out, err := svc.Chat(context.Background(), ChatInput{Message: "Hi"})
	require.NoError(t, err)
	require.NotEmpty(t, out.ConversationID)
}

func TestChat_ConversationTurnLimit(t *testing.T) {
	d := defaultDeps()
	d.state.turnCount = maxConversationTurns
	d.llm.responses = []llmResponse{assistantText("ok")}
	svc := newTestService(t, d)

	_, err := svc.Chat(context.Background(), ChatInput{Message: "Hi", ConversationID: "conv-1"})
	expectChatError(t, err, ErrorInvalidInput, "")
	require.Empty(t, d.llm.calls)
	require.False(t, d.state.saveCompletedInvoked)
}

func TestChat_StateErrors(t *testing.T) {
	d := defaultDeps()
	d.llm.responses = []llmResponse{assistantText("ok")}
	d.state.historyErr = errors.New("table unavailable")
	svc := newTestService(t, d)
	_, err := svc.Chat(context.Background(), ChatInput{Message: "Hi"})
	expectChatError(t, err, ErrorInternal, "")

	d = defaultDeps()
	d.llm.responses = []llmResponse{assistantText("ok")}
	d.state.turnCountErr = errors.New("meta read failed")
	svc = newTestService(t, d)
	_, err = svc.Chat(context.Background(), ChatInput{Message: "Hi", ConversationID: "conv-1"})
	expectChatError(t, err, ErrorInternal, "")

	d = defaultDeps()
	d.llm.responses = []llmResponse{assistantText("ok")}
	d.state.saveErr = errors.New("write failed")
	svc = newTestService(t, d)
	_, err = svc.Chat(context.Background(), ChatInput{Message: "Hi"})
	expectChatError(t, err, ErrorInternal, "")
}

func TestChat_ReplaysOnlyCompletedTurns(t *testing.T) {
	d := defaultDeps()
	d.state.history = []domain.Message{
		{Question: "EUR to USD?", Answer: "1 EUR = 1.0830 USD", Status: repository.StatusComplete},
		{Question: "pending question", Status: "pending"},
		{Question: "half a turn", Answer: "", Status: repository.StatusComplete},
	}
	d.llm.responses = []llmResponse{assistantText("ok")}
	svc := newTestService(t, d)

	_, err := svc.Chat(context.Background(), ChatInput{Message: "And to JPY?"})
	require.NoError(t, err)

	msgs := d.llm.calls[0]
	require.Len(t, msgs, 4)
	require.Equal(t, domain.RoleSystem, msgs[0].Role)
	require.Equal(t, "EUR to USD?", msgs[1].Content)
	require.Equal(t, "1 EUR = 1.0830 USD", msgs[2].Content)
	require.Equal(t, "And to JPY?", msgs[3].Content)
}

func TestChat_IdenticalInputsYieldIdenticalOutputs(t *testing.T) {
	run := func() string {
		d := defaultDeps()
		d.rates.rate = domain.Rate{From: "EUR", To: "USD", Value: 1.083, Time: time.Unix(1787654321, 0).UTC()}
		d.llm.responses = []llmResponse{
			assistantCall(fnExchangeRate, `{"from_currency":"EUR","to_currency":"USD"}`),
			assistantText("One euro buys about 1.08 dollars."),
		}
		svc := newTestService(t, d)
		out, err := svc.Chat(context.Background(), ChatInput{Message: "EUR to USD?", ConversationID: "conv-1"})
		require.NoError(t, err)
		return out.Reply
	}
	require.Equal(t, run(), run())
}

func TestTranscript_RendersCompletedTurns(t *testing.T) {
	d := defaultDeps()
	d.state.history = []domain.Message{
		{Question: "Hi", Answer: "Hello!", Status: repository.StatusComplete},
		{Question: "pending", Status: "pending"},
		{Question: "EUR to USD?", Answer: "1 EUR = 1.0830 USD", Status: repository.StatusComplete},
	}
	svc := newTestService(t, d)

	transcript, err := svc.Transcript(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Equal(t, "User: Hi\nAssistant: Hello!\nUser: EUR to USD?\nAssistant: 1 EUR = 1.0830 USD\n", transcript)
}

func TestTranscript_Validation(t *testing.T) {
	svc := newTestService(t, defaultDeps())
	_, err := svc.Transcript(context.Background(), "  ")
	expectChatError(t, err, ErrorInvalidInput, "")
}

func TestTranscript_StateError(t *testing.T) {
	d := defaultDeps()
	d.state.historyErr = errors.New("table unavailable")
	svc := newTestService(t, d)
	_, err := svc.Transcript(context.Background(), "conv-1")
	expectChatError(t, err, ErrorInternal, "")
}
