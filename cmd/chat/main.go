// Command chat runs the finance chatbot as an interactive terminal session
// backed by an in-memory conversation store.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"finance-chatbot/internal/config"
	"finance-chatbot/internal/integrations/azureopenai"
	"finance-chatbot/internal/integrations/marketdata"
	"finance-chatbot/internal/integrations/newsapi"
	"finance-chatbot/internal/integrations/openexchange"
	"finance-chatbot/internal/repository"
	"finance-chatbot/internal/usecase"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("chat session failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath      string
		deployment      string
		maxContextItems int
		maxMessageLen   int
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive finance chatbot session",
		Long: "Starts an interactive chat session with the finance assistant. " +
			"Credentials are read from a KEY=VALUE configuration file. " +
			"Type /transcript to print the conversation so far and /quit to leave.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ParseFile(configPath)
			if err != nil {
				return err
			}
			if deployment != "" {
				cfg.Deployment = deployment
			}
			svc, err := buildService(cfg, maxContextItems, maxMessageLen)
			if err != nil {
				return err
			}
			return runSession(cmd.Context(), svc, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.txt", "path to the KEY=VALUE configuration file")
	cmd.Flags().StringVar(&deployment, "deployment", "", "Azure OpenAI deployment name override")
	cmd.Flags().IntVar(&maxContextItems, "max-context", 20, "number of past turns replayed into the prompt")
	cmd.Flags().IntVar(&maxMessageLen, "max-message-length", 500, "maximum user message length")
	return cmd
}

func buildService(cfg config.Config, maxContextItems, maxMessageLen int) (*usecase.ChatService, error) {
	llmClient, err := azureopenai.NewClient(cfg.AzureOpenAIEndpoint, cfg.AzureOpenAIKey, cfg.OpenAIAPIVersion)
	if err != nil {
		return nil, err
	}
	newsClient, err := newsapi.NewClient(cfg.NewsAPIKey)
	if err != nil {
		return nil, err
	}
	ratesClient, err := openexchange.NewClient(cfg.OpenExchangeKey)
	if err != nil {
		return nil, err
	}
	return usecase.NewChatService(
		llmClient,
		newsClient,
		ratesClient,
		marketdata.NewClient(),
		repository.NewMemoryStore(),
		cfg.Deployment,
		maxContextItems,
		maxMessageLen,
	)
}

func runSession(ctx context.Context, svc *usecase.ChatService, in io.Reader, out io.Writer) error {
	conversationID := uuid.NewString()
	fmt.Fprintln(out, "Finance chatbot. Ask about stocks, news, and exchange rates.")
	fmt.Fprintln(out, "Commands: /transcript, /quit")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/transcript":
			transcript, err := svc.Transcript(ctx, conversationID)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			if transcript == "" {
				fmt.Fprintln(out, "(no completed turns yet)")
				continue
			}
			fmt.Fprint(out, transcript)
			continue
		}

		answer, err := svc.Chat(ctx, usecase.ChatInput{
			Message:        line,
			ConversationID: conversationID,
		})
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, answer.Reply)
	}
	return scanner.Err()
}
