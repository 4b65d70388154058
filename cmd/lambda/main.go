package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"finance-chatbot/handler"
	"finance-chatbot/internal/config"
	"finance-chatbot/internal/integrations/azureopenai"
	"finance-chatbot/internal/integrations/marketdata"
	"finance-chatbot/internal/integrations/newsapi"
	"finance-chatbot/internal/integrations/openexchange"
	"finance-chatbot/internal/repository"
	"finance-chatbot/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	maxContextItems := envInt("MAX_CONTEXT_ITEMS", 20)
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 500)

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	params, err := config.NewParameterSource(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create parameter source", "err", err)
		os.Exit(1)
	}
	cfg, err := config.FromParameters(ctx, params, paramPrefix)
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	stateClient, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), stateTable)
	if err != nil {
		slog.Error("failed to create state client", "err", err)
		os.Exit(1)
	}

	llmClient, err := azureopenai.NewClient(cfg.AzureOpenAIEndpoint, cfg.AzureOpenAIKey, cfg.OpenAIAPIVersion)
	if err != nil {
		slog.Error("failed to create Azure OpenAI client", "err", err)
		os.Exit(1)
	}
	newsClient, err := newsapi.NewClient(cfg.NewsAPIKey)
	if err != nil {
		slog.Error("failed to create news client", "err", err)
		os.Exit(1)
	}
	ratesClient, err := openexchange.NewClient(cfg.OpenExchangeKey)
	if err != nil {
		slog.Error("failed to create exchange rates client", "err", err)
		os.Exit(1)
	}
	marketClient := marketdata.NewClient()

	// ---- Handler ----
	chatService, err := usecase.NewChatService(llmClient, newsClient, ratesClient, marketClient, stateClient, cfg.Deployment, maxContextItems, maxMessageLen)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chatService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
