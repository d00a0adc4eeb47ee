package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/follow-the-money/internal/cli"
	"github.com/Veraticus/follow-the-money/internal/insights"
)

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your spending",
		Long: `Ask a natural-language question about your expenses, for example:

  money ask "How much did I spend on groceries in June?"
  money ask "Show me total spend by category this year."

The model can read the ledger through a fixed set of reporting tools; it
never writes anything.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			question := strings.Join(args, " ")

			apiKey := viper.GetString("llm.openai_api_key")
			if apiKey == "" {
				apiKey = os.Getenv("OPENAI_API_KEY")
			}
			if apiKey == "" {
				return fmt.Errorf("OpenAI API key not found in config or OPENAI_API_KEY environment variable")
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			agent, err := insights.New(store, insights.Config{
				APIKey: apiKey,
				Model:  viper.GetString("llm.model"),
			})
			if err != nil {
				return err
			}

			answer, err := agent.Ask(ctx, question)
			if err != nil {
				return fmt.Errorf("failed to answer question: %w", err)
			}

			fmt.Println(answer.Text)
			if len(answer.ToolsUsed) > 0 {
				fmt.Println(cli.SubtleStyle.Render("(consulted: " + strings.Join(answer.ToolsUsed, ", ") + ")"))
			}
			return nil
		},
	}
}
