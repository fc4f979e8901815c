package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"healthcare-rag/internal/bootstrap"
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Answer a question from the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	return withApp(bootstrap.Options{}, func(ctx context.Context, a *bootstrap.App) error {
		answer, err := a.RAGService.GenerateAnswer(ctx, question)
		if err != nil {
			return fmt.Errorf("ask failed: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd, answer)
		}
		cmd.Println(answer.Answer)
		cmd.Println()
		cmd.Printf("Query type: %s\n", answer.Category)
		cmd.Println("Sources:")
		for _, line := range answer.SourceLines {
			cmd.Printf("  %s\n", line)
		}
		return nil
	})
}
