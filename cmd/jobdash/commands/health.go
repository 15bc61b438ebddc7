package commands

import (
	"fmt"
	"jobdash-backend/lib/jobstore"
	"jobdash-backend/lib/runmetrics"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// maxStoreAge is how stale a store file may get before the pipeline is
// considered unhealthy. The scheduler runs far more often than this.
const maxStoreAge = 8 * time.Hour

func init() {
	rootCmd.AddCommand(healthCmd)
}

func checkStore(path string, source jobstore.Source) []string {
	var problems []string

	info, err := os.Stat(path)
	if err != nil {
		return []string{fmt.Sprintf("%s: store missing at %s", source, path)}
	}
	age := time.Since(info.ModTime())
	fmt.Printf("%s: last updated %s (%.1f hours ago)\n",
		source, info.ModTime().Format("2006-01-02 15:04:05"), age.Hours())
	if age > maxStoreAge {
		problems = append(problems, fmt.Sprintf("%s: store is stale (%.1f hours old)", source, age.Hours()))
	}

	store, err := jobstore.Open(path, source)
	if err != nil {
		return append(problems, fmt.Sprintf("%s: %v", source, err))
	}
	if store.Len() == 0 {
		return append(problems, fmt.Sprintf("%s: store is empty", source))
	}

	recent := 0
	cutoff := time.Now().AddDate(0, 0, -30)
	for _, rec := range store.Records() {
		if !rec.PostingDate.IsZero() && rec.PostingDate.After(cutoff) {
			recent++
		}
	}
	fmt.Printf("%s: %d jobs, %d active, %d posted in the last 30 days\n",
		source, store.Len(), store.ActiveLen(), recent)
	return problems
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Checks data freshness and store integrity, exits non-zero when unhealthy.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		var problems []string
		problems = append(problems, checkStore(cfg.amazonStorePath(), jobstore.SourceAmazon)...)
		problems = append(problems, checkStore(cfg.theirstackStorePath(), jobstore.SourceTheirStack)...)

		if _, err := os.Stat(cfg.combinedPath()); err != nil {
			problems = append(problems, fmt.Sprintf("combined: missing at %s", cfg.combinedPath()))
		}

		metrics := runmetrics.NewLog(cfg.metricsPath())
		for _, stage := range []string{"amazon", "theirstack", "combine"} {
			last, ok := metrics.Last(stage)
			if !ok {
				continue
			}
			status := "ok"
			if !last.Success {
				status = "failed: " + last.ErrorDetail
				problems = append(problems, fmt.Sprintf("%s: last run failed", stage))
			}
			fmt.Printf("last %s run: %s (%s)\n", stage, last.Timestamp.Format("2006-01-02 15:04"), status)
		}

		if len(problems) > 0 {
			fmt.Println("\nunhealthy:")
			for _, p := range problems {
				fmt.Println("  -", p)
			}
			os.Exit(1)
		}
		fmt.Println("\nhealthy")
	},
}
