package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"finance-chatbot/internal/domain"
)

// Function names advertised to the model.
const (
	fnStockPrice   = "get_stock_price"
	fnStockHistory = "get_stock_history"
	fnNews         = "get_financial_news"
	fnExchangeRate = "get_exchange_rate"
)

const newsArticleLimit = 5

var tickerParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"ticker": {
			"type": "string",
			"description": "The ticker symbol, e.g., AAPL or TSLA."
		}
	},
	"required": ["ticker"]
}`)

var exchangeRateParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"from_currency": {
			"type": "string",
			"description": "Base currency, e.g., EUR"
		},
		"to_currency": {
			"type": "string",
			"description": "Target currency, e.g., USD"
		}
	},
	"required": ["from_currency", "to_currency"]
}`)

// financeFunctions lists the lookups the model may request. Function
// selection is left entirely to the model; there is no local intent
// detection.
func financeFunctions() []domain.FunctionSpec {
	return []domain.FunctionSpec{
		{
			Name:        fnStockPrice,
			Description: "Returns the current stock price for a given ticker symbol.",
			Parameters:  tickerParameters,
		},
		{
			Name:        fnStockHistory,
			Description: "Shows the stock price history (closing prices for the last 7 days) for a given ticker symbol.",
			Parameters:  tickerParameters,
		},
		{
			Name:        fnNews,
			Description: "Returns the latest news for a given company or ticker.",
			Parameters:  tickerParameters,
		},
		{
			Name:        fnExchangeRate,
			Description: "Returns the current exchange rate between two currencies.",
			Parameters:  exchangeRateParameters,
		},
	}
}

type tickerArgs struct {
	Ticker string `json:"ticker"`
}

type exchangeRateArgs struct {
	FromCurrency string `json:"from_currency"`
	ToCurrency   string `json:"to_currency"`
}

// dispatchFunctionCall executes the lookup the model requested and renders
// its result as the function message content. The returned service names the
// upstream used, for error attribution.
func (s *ChatService) dispatchFunctionCall(ctx context.Context, call *domain.FunctionCall) (result, service string, err error) {
	switch call.Name {
	case fnStockPrice:
		var args tickerArgs
		if err := parseArguments(call.Arguments, &args); err != nil {
			return "", ServiceAzureOpenAI, err
		}
		quote, err := s.market.Quote(ctx, args.Ticker)
		if err != nil {
			return "", ServiceMarketData, err
		}
		return renderQuote(quote), ServiceMarketData, nil

	case fnStockHistory:
		var args tickerArgs
		if err := parseArguments(call.Arguments, &args); err != nil {
			return "", ServiceAzureOpenAI, err
		}
		bars, err := s.market.History(ctx, args.Ticker)
		if err != nil {
			return "", ServiceMarketData, err
		}
		return renderHistory(args.Ticker, bars), ServiceMarketData, nil

	case fnNews:
		var args tickerArgs
		if err := parseArguments(call.Arguments, &args); err != nil {
			return "", ServiceAzureOpenAI, err
		}
		articles, err := s.news.Search(ctx, args.Ticker, newsArticleLimit)
		if err != nil {
			return "", ServiceNewsAPI, err
		}
		return renderNews(args.Ticker, articles), ServiceNewsAPI, nil

	case fnExchangeRate:
		var args exchangeRateArgs
		if err := parseArguments(call.Arguments, &args); err != nil {
			return "", ServiceAzureOpenAI, err
		}
		rate, err := s.rates.Pair(ctx, args.FromCurrency, args.ToCurrency)
		if err != nil {
			return "", ServiceOpenExchange, err
		}
		return renderRate(rate), ServiceOpenExchange, nil

	default:
		return "", ServiceAzureOpenAI, fmt.Errorf("unknown function %q", call.Name)
	}
}

func parseArguments(raw string, out any) error {
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("parse function arguments: %w", err)
	}
	return nil
}

func renderQuote(q domain.Quote) string {
	return fmt.Sprintf(
		"**%s (%s) as of %s**\nClosing price: **%.2f %s**\nHigh: %.2f %s, Low: %.2f %s, Volume: %d\n\n_Source: Yahoo Finance, as of %s_",
		q.Name, q.Symbol, q.Time.Format("02.01.2006"),
		q.Close, q.Currency,
		q.High, q.Currency, q.Low, q.Currency, q.Volume,
		q.Time.Format("02.01.2006"),
	)
}

// renderHistory lists daily closes newest first.
func renderHistory(symbol string, bars []domain.Bar) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Price history for %s over the last seven days:\n\n", strings.ToUpper(strings.TrimSpace(symbol)))
	for i := len(bars) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "* **%s: %.2f**\n", bars[i].Time.Format("02.01.2006"), bars[i].Close)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderNews(query string, articles []domain.Article) string {
	if len(articles) == 0 {
		return fmt.Sprintf("No recent news found for **%s**.", query)
	}
	var b strings.Builder
	for _, a := range articles {
		published := ""
		if !a.PublishedAt.IsZero() {
			published = a.PublishedAt.Format("02.01.2006 15:04") + " "
		}
		fmt.Fprintf(&b, "- %s(%s): [%s](%s)\n", published, a.Source, a.Title, a.URL)
	}
	b.WriteString("\n_Source: newsapi.org_")
	return b.String()
}

func renderRate(r domain.Rate) string {
	return fmt.Sprintf(
		"1 %s = **%.4f %s**\n_Source: Open Exchange Rates, as of %s UTC_",
		r.From, r.Value, r.To, r.Time.Format("02.01.2006 15:04"),
	)
}
