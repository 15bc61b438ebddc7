package commands

import (
	"context"
	"jobdash-backend/lib/serviceutil"
	"jobdash-backend/lib/telemetry"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var runEvery *string

func init() {
	runEvery = runCmd.Flags().String("every", "", "Cron spec (e.g. \"@every 6h\" or \"0 7 * * *\") to keep running on a schedule instead of once.")
	rootCmd.AddCommand(runCmd)
}

// runPipeline executes one full cycle. Scrape failures degrade: the
// combine still runs over whatever the stores hold, so one flaky source
// never blanks the dashboard. Only a failed canonical write is fatal.
func runPipeline(ctx context.Context, cfg Config) error {
	if err := scrapeAmazon(ctx, cfg); err != nil {
		slog.Error("amazon scrape failed, continuing with stored data", "err", err)
	}
	if err := scrapeTheirstack(ctx, cfg); err != nil {
		slog.Error("theirstack scrape failed, continuing with stored data", "err", err)
	}
	return runCombine(ctx, cfg)
}

var runCmd = &cobra.Command{
	Use:   "run [--every <cron spec>]",
	Short: "Runs the full pipeline: scrape both sources, then combine.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		if *runEvery == "" {
			if err := runPipeline(cmd.Context(), cfg); err != nil {
				serviceutil.Fatal("pipeline failed", err)
			}
			return
		}

		ctx := serviceutil.SignalContext()
		telemetry.InstrumentPerfStats(ctx)

		scheduler := cron.New(cron.WithLogger(cron.DefaultLogger))
		_, err := scheduler.AddFunc(*runEvery, func() {
			if err := runPipeline(ctx, cfg); err != nil {
				slog.Error("scheduled pipeline run failed", "err", err)
			}
		})
		if err != nil {
			serviceutil.Fatal("invalid cron spec", err)
		}

		scheduler.Start()
		slog.Info("pipeline scheduler started", "spec", *runEvery)

		// populate stores immediately instead of waiting for the first tick
		if err := runPipeline(ctx, cfg); err != nil {
			slog.Error("initial pipeline run failed", "err", err)
		}

		<-ctx.Done()
		scheduler.Stop()
		slog.Info("pipeline scheduler stopped")
	},
}
