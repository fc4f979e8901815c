package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"healthcare-rag/internal/bootstrap"
	"healthcare-rag/internal/pkg/jwtutil"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest URL...",
	Short: "Rebuild the knowledge base from source URLs",
	Long: `Fetches every URL, splits and embeds the text and replaces the knowledge
base with the result. The previous knowledge base stays live if any step fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every entry from the knowledge base",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator token for the corpus endpoints",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default auth.jwt_expire_minute)")
	rootCmd.AddCommand(ingestCmd, resetCmd, statsCmd, tokenCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	return withApp(bootstrap.Options{}, func(ctx context.Context, a *bootstrap.App) error {
		summary, err := a.RAGService.ProcessURLs(ctx, args, func(status string) error {
			if !jsonOutput {
				cmd.Println(status)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd, summary)
		}
		return nil
	})
}

func runReset(cmd *cobra.Command, args []string) error {
	return withApp(bootstrap.Options{}, func(ctx context.Context, a *bootstrap.App) error {
		if err := a.RAGService.Reset(ctx); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		cmd.Println("🗑️ Knowledge base cleared.")
		return nil
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	return withApp(bootstrap.Options{}, func(ctx context.Context, a *bootstrap.App) error {
		stats, err := a.RAGService.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats failed: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd, stats)
		}
		cmd.Printf("Collection:      %s\n", stats.Collection)
		cmd.Printf("Entries:         %d\n", stats.EntryCount)
		cmd.Printf("Embedding model: %s\n", stats.EmbeddingModel)
		if stats.LiveGeneration != "" {
			cmd.Printf("Generation:      %s\n", stats.LiveGeneration)
			cmd.Printf("Updated:         %s\n", stats.UpdatedAt.Format(time.RFC3339))
		}
		return nil
	})
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ttl := tokenTTL
	if ttl <= 0 {
		ttl = time.Duration(cfg.Auth.JWTExpireMinute) * time.Minute
	}
	token, err := jwtutil.GenerateToken(cfg.Auth.JWTSecret, tokenSubject, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
