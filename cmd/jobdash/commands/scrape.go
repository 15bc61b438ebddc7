package commands

import (
	"context"
	"jobdash-backend/lib/jobstore"
	"jobdash-backend/lib/runmetrics"
	"jobdash-backend/lib/serviceutil"
	"jobdash-backend/services/amazon"
	"jobdash-backend/services/theirstack"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	scrapeCmd.AddCommand(scrapeAmazonCmd)
	scrapeCmd.AddCommand(scrapeTheirstackCmd)
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrapes one source into its raw store.",
}

func recordExecution(cfg Config, stage string, start time.Time, total, active int, err error) {
	exec := runmetrics.Execution{
		Stage:      stage,
		TotalJobs:  total,
		ActiveJobs: active,
		Duration:   time.Since(start).Seconds(),
		Success:    err == nil,
	}
	if err != nil {
		exec.ErrorDetail = err.Error()
	}
	if recordErr := runmetrics.NewLog(cfg.metricsPath()).Record(exec); recordErr != nil {
		slog.Warn("failed to record run metrics", "stage", stage, "err", recordErr)
	}
}

func scrapeAmazon(ctx context.Context, cfg Config) error {
	start := time.Now()

	store, err := jobstore.Open(cfg.amazonStorePath(), jobstore.SourceAmazon)
	if err != nil {
		return err
	}
	client, err := amazon.NewClient(cfg.Amazon)
	if err != nil {
		return err
	}

	summary, err := amazon.NewService(client, store, cfg.mapper()).Scrape(ctx)
	slog.Info("amazon scrape finished",
		"fetched", summary.Fetched,
		"upserted", summary.Upserted,
		"dropped", summary.Dropped,
		"marked_inactive", summary.MarkedInactive,
		"complete", summary.RunComplete,
	)
	recordExecution(cfg, "amazon", start, store.Len(), store.ActiveLen(), err)
	return err
}

func scrapeTheirstack(ctx context.Context, cfg Config) error {
	start := time.Now()

	store, err := jobstore.Open(cfg.theirstackStorePath(), jobstore.SourceTheirStack)
	if err != nil {
		return err
	}
	client, err := theirstack.NewClient(os.Getenv("THEIRSTACK_API_KEY"), cfg.TheirStack)
	if err != nil {
		return err
	}
	tracker := theirstack.OpenTracker(cfg.theirstackStatePath())

	summary, err := theirstack.NewService(client, store, tracker, cfg.mapper()).Scrape(ctx)
	slog.Info("theirstack scrape finished",
		"precheck_total", summary.PrecheckTotal,
		"fetched", summary.Fetched,
		"upserted", summary.Upserted,
		"dropped", summary.Dropped,
		"wide_fallback", summary.WideFallback,
		"resumed_at_page", summary.ResumedAtPage,
	)
	recordExecution(cfg, "theirstack", start, store.Len(), store.ActiveLen(), err)
	return err
}

var scrapeAmazonCmd = &cobra.Command{
	Use:   "amazon",
	Short: "Scrapes the amazon.jobs board.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if err := scrapeAmazon(cmd.Context(), cfg); err != nil {
			serviceutil.Fatal("amazon scrape failed", err)
		}
	},
}

var scrapeTheirstackCmd = &cobra.Command{
	Use:   "theirstack",
	Short: "Fetches new postings from the TheirStack api. Requires THEIRSTACK_API_KEY.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if err := scrapeTheirstack(cmd.Context(), cfg); err != nil {
			serviceutil.Fatal("theirstack scrape failed", err)
		}
	},
}
