package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	syncpkg "github.com/opengov-in/parivesh-sync/internal/sync"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the portal and re-sync on an interval",
	Long: `Watch runs an immediate sync for the given state and years, then
repeats on the configured interval until interrupted. Status changes are
accumulated in the timeline across passes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		stateFlag, _ := cmd.Flags().GetString("state")
		yearsFlag, _ := cmd.Flags().GetString("years")
		interval, _ := cmd.Flags().GetDuration("interval")
		details, _ := cmd.Flags().GetBool("details")

		years, err := parseYears(yearsFlag)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "watch: migrate")
		}

		client := initPortal()
		stateID, err := resolveState(ctx, client, stateFlag)
		if err != nil {
			return err
		}

		targets := make([]syncpkg.WatchTarget, 0, len(years))
		for _, year := range years {
			targets = append(targets, syncpkg.WatchTarget{StateID: stateID, Year: year})
		}

		rec := syncpkg.NewReconciler(st, client)
		svc := syncpkg.NewService(st, client, rec)
		opts := syncpkg.Options{
			FetchDetails: details,
			Pace:         cfg.Sync.Pace(),
		}

		syncpkg.NewWatcher(svc, targets, interval, opts).Run(ctx)
		return nil
	},
}

func init() {
	watchCmd.Flags().String("state", "", "state id or name (required)")
	watchCmd.Flags().String("years", "", "year or inclusive range; defaults to the current year")
	watchCmd.Flags().Duration("interval", time.Hour, "time between sync passes")
	watchCmd.Flags().Bool("details", true, "fetch second-tier data for changed proposals")
	_ = watchCmd.MarkFlagRequired("state")
	rootCmd.AddCommand(watchCmd)
}
