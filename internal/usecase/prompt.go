package usecase

import (
	"strings"

	"finance-chatbot/internal/domain"
	"finance-chatbot/internal/repository"
)

const supportPhoneNumber = "070-1234-5678"

func buildPromptMessages(question string, history []domain.Message) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildSystemPrompt()},
	}

	for _, m := range history {
		messages = append(messages, historyToPromptMessages(m)...)
	}

	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: question,
	})
	return messages
}

func buildSystemPrompt() string {
	return strings.Join([]string{
		"You are a helpful financial assistant.",
		"Only answer questions about stocks, markets, financial data, financial news, and exchange rates.",
		"For all other topics, politely explain that you can only answer financial questions.",
		"If users ask about current stock prices, price histories, or market data, use get_stock_price or get_stock_history.",
		"For company news, use get_financial_news.",
		"For currency and exchange rates, use get_exchange_rate.",
		"For all other topics, DO NOT answer, but inform users that you are only responsible for finance and market inquiries.",
		"If data is missing, kindly refer users to the support hotline " + supportPhoneNumber + ".",
	}, " ")
}

// historyToPromptMessages replays one persisted turn. Only completed turns
// with both sides present are replayed.
func historyToPromptMessages(m domain.Message) []domain.ChatMessage {
	if m.Status != repository.StatusComplete {
		return nil
	}
	question := strings.TrimSpace(m.Question)
	answer := strings.TrimSpace(m.Answer)
	if question == "" || answer == "" {
		return nil
	}
	return []domain.ChatMessage{
		{Role: domain.RoleUser, Content: question},
		{Role: domain.RoleAssistant, Content: answer},
	}
}
