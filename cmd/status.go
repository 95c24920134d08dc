package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/opengov-in/parivesh-sync/internal/model"
	"github.com/opengov-in/parivesh-sync/internal/report"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database contents and recent sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runLimit, _ := cmd.Flags().GetInt("runs")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "status: stats")
		}
		if err := report.RenderStats(os.Stdout, stats); err != nil {
			return err
		}

		runs, err := st.ListSyncRuns(ctx, runLimit)
		if err != nil {
			return eris.Wrap(err, "status: sync runs")
		}
		if len(runs) == 0 {
			return nil
		}

		fmt.Println()
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tSTATE\tYEAR\tSTATUS\tCREATED\tCHANGED\tUNCHANGED\tFAILED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\t%d\t%d\n",
				r.StartedAt.Format("2006-01-02 15:04"),
				r.State, r.Year, r.Status,
				r.Summary.Created, r.Summary.Updated, r.Summary.Unchanged, r.Summary.Failed,
			)
			if r.Status == model.SyncFailed && r.Error != "" {
				fmt.Fprintf(tw, "\terror: %s\n", r.Error)
			}
		}
		return eris.Wrap(tw.Flush(), "status: render runs")
	},
}

func init() {
	statusCmd.Flags().Int("runs", 10, "number of recent sync runs to show")
	rootCmd.AddCommand(statusCmd)
}
