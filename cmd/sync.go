package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opengov-in/parivesh-sync/internal/portal"
	syncpkg "github.com/opengov-in/parivesh-sync/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync proposals for a state into the database",
	Long: `Sync fetches every proposal the portal lists for a state and year,
then reconciles the results against the local database: new proposals are
inserted, status changes are recorded in the timeline, and unchanged
proposals are left untouched. Re-running a sync is safe.

--state accepts either a numeric state id or a state name.
--years accepts a single year or an inclusive range like 2022-2024.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "sync"))

		stateFlag, _ := cmd.Flags().GetString("state")
		yearsFlag, _ := cmd.Flags().GetString("years")
		details, _ := cmd.Flags().GetBool("details")
		force, _ := cmd.Flags().GetBool("force")
		pace, _ := cmd.Flags().GetDuration("pace")

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
			return eris.Wrap(err, "sync: migrate")
		}

		client := initPortal()
		stateID, err := resolveState(ctx, client, stateFlag)
		if err != nil {
			return err
		}

		rec := syncpkg.NewReconciler(st, client)
		svc := syncpkg.NewService(st, client, rec)
		opts := syncpkg.Options{
			FetchDetails: details,
			Force:        force,
			Pace:         pace,
		}

		for _, year := range years {
			log.Info("syncing", zap.String("state", stateID), zap.Int("year", year))
			report, err := svc.SyncState(ctx, stateID, year, opts)
			if err != nil {
				return eris.Wrapf(err, "sync %s/%d", stateID, year)
			}
			fmt.Printf("%d: %d created, %d status changes, %d unchanged, %d failed\n",
				year, report.Created, report.Updated, report.Unchanged, report.Failed)
		}

		return nil
	},
}

func init() {
	syncCmd.Flags().String("state", "", "state id or name (required)")
	syncCmd.Flags().String("years", strconv.Itoa(time.Now().Year()), "year or inclusive range, e.g. 2024 or 2022-2024")
	syncCmd.Flags().Bool("details", true, "fetch detail blobs, timelines, forms, documents and locations")
	syncCmd.Flags().Bool("force", false, "re-fetch details even for unchanged proposals")
	syncCmd.Flags().Duration("pace", 500*time.Millisecond, "delay after each proposal that hit the portal")
	_ = syncCmd.MarkFlagRequired("state")
	rootCmd.AddCommand(syncCmd)
}

// parseYears expands "2024" or "2022-2024" into a year list.
func parseYears(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int{time.Now().Year()}, nil
	}

	if from, to, found := strings.Cut(s, "-"); found {
		start, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil {
			return nil, eris.Errorf("invalid year range %q", s)
		}
		end, err := strconv.Atoi(strings.TrimSpace(to))
		if err != nil {
			return nil, eris.Errorf("invalid year range %q", s)
		}
		if end < start {
			return nil, eris.Errorf("year range %q runs backwards", s)
		}
		years := make([]int, 0, end-start+1)
		for y := start; y <= end; y++ {
			years = append(years, y)
		}
		return years, nil
	}

	year, err := strconv.Atoi(s)
	if err != nil {
		return nil, eris.Errorf("invalid year %q", s)
	}
	return []int{year}, nil
}

// resolveState passes numeric ids through and looks names up in the state
// master list.
func resolveState(ctx context.Context, client *portal.Client, flag string) (string, error) {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		return "", eris.New("--state is required")
	}
	if _, err := strconv.Atoi(flag); err == nil {
		return flag, nil
	}

	states, err := client.States(ctx)
	if err != nil {
		return "", eris.Wrap(err, "resolve state name")
	}
	for _, s := range states {
		if strings.EqualFold(s.Name, flag) || strings.EqualFold(s.Code, flag) {
			return strconv.Itoa(s.ID), nil
		}
	}
	return "", eris.Errorf("unknown state %q", flag)
}
