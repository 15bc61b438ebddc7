package commands

import (
	"context"
	"jobdash-backend/lib/serviceutil"
	"jobdash-backend/services/combine"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(combineCmd)
}

func runCombine(ctx context.Context, cfg Config) error {
	start := time.Now()
	summary, err := combine.Run(ctx, cfg.combineOptions())
	slog.Info("combine finished",
		"sources", summary.SourcesLoaded,
		"skipped", summary.SourcesSkipped,
		"records", summary.Records,
		"merged", summary.Merged,
	)
	recordExecution(cfg, "combine", start, summary.Records, 0, err)
	return err
}

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Combines the per-source stores into the canonical dashboard CSV.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if err := runCombine(cmd.Context(), cfg); err != nil {
			serviceutil.Fatal("combine failed", err)
		}
	},
}
