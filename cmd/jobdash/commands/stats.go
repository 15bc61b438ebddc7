package commands

import (
	"fmt"
	"jobdash-backend/lib/jobstore"
	"jobdash-backend/lib/runmetrics"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Shows store sizes and recent pipeline executions.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		stores := table.NewWriter()
		stores.SetOutputMirror(os.Stdout)
		stores.AppendHeader(table.Row{"Source", "Total", "Active", "Inactive"})
		for _, src := range []struct {
			source jobstore.Source
			path   string
		}{
			{jobstore.SourceAmazon, cfg.amazonStorePath()},
			{jobstore.SourceTheirStack, cfg.theirstackStorePath()},
		} {
			store, err := jobstore.Open(src.path, src.source)
			if err != nil {
				stores.AppendRow(table.Row{src.source, "?", "?", "?"})
				continue
			}
			stores.AppendRow(table.Row{
				src.source, store.Len(), store.ActiveLen(), store.Len() - store.ActiveLen(),
			})
		}
		stores.SetStyle(table.StyleRounded)
		stores.Render()

		executions, err := runmetrics.NewLog(cfg.metricsPath()).Read()
		if err != nil {
			fmt.Println("no run metrics recorded yet")
			return
		}

		runs := table.NewWriter()
		runs.SetOutputMirror(os.Stdout)
		runs.AppendHeader(table.Row{"When", "Stage", "Jobs", "Active", "Duration", "OK", "Error"})
		start := max(0, len(executions)-15)
		for _, exec := range executions[start:] {
			runs.AppendRow(table.Row{
				exec.Timestamp.Local().Format("2006-01-02 15:04"),
				exec.Stage,
				exec.TotalJobs,
				exec.ActiveJobs,
				fmt.Sprintf("%.1fs", exec.Duration),
				exec.Success,
				exec.ErrorDetail,
			})
		}
		runs.SetStyle(table.StyleRounded)
		runs.Render()
	},
}
