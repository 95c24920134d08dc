package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/opengov-in/parivesh-sync/internal/model"
	"github.com/opengov-in/parivesh-sync/internal/normalize"
	"github.com/opengov-in/parivesh-sync/internal/store"
	syncpkg "github.com/opengov-in/parivesh-sync/internal/sync"
)

// timelineBulkImporter is the fast path the Postgres store provides.
type timelineBulkImporter interface {
	ImportTimelines(ctx context.Context, entries []model.TimelineEntry) (int64, error)
}

// timelineCopier streams rows in with COPY, skipping deduplication.
type timelineCopier interface {
	CopyTimelines(ctx context.Context, entries []model.TimelineEntry) (int64, error)
}

var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Import proposal dumps from JSON files",
	Long: `Import reconciles previously saved search result dumps into the
database without touching the portal. Each file holds either a JSON array
of search records or a {"data": [...]} page dump.

With --timelines, the file instead holds an array of timeline entries
({"proposal_id", "status", "date", "remarks"}) appended with the usual
deduplication. Adding --copy streams them in over the COPY protocol with
no dedup at all, for first loads into an empty timeline table.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		timelines, _ := cmd.Flags().GetBool("timelines")
		useCopy, _ := cmd.Flags().GetBool("copy")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "import: migrate")
		}

		if timelines {
			return importTimelines(ctx, st, args, useCopy)
		}
		if useCopy {
			return eris.New("import: --copy only applies with --timelines")
		}
		return importRecords(ctx, st, args)
	},
}

func init() {
	importCmd.Flags().Bool("timelines", false, "files hold timeline entries instead of search records")
	importCmd.Flags().Bool("copy", false, "bulk-load timelines via COPY without dedup (postgres, empty table only)")
	rootCmd.AddCommand(importCmd)
}

func importRecords(ctx context.Context, st store.Store, files []string) error {
	rec := syncpkg.NewReconciler(st, nil)

	for _, file := range files {
		raws, err := readRecordDump(file)
		if err != nil {
			return err
		}

		report, err := rec.Reconcile(ctx, raws, syncpkg.Options{})
		if err != nil {
			return eris.Wrapf(err, "import %s", file)
		}
		fmt.Printf("%s: %d created, %d status changes, %d unchanged, %d failed\n",
			file, report.Created, report.Updated, report.Unchanged, report.Failed)
	}
	return nil
}

// readRecordDump accepts both a bare array and the portal's page envelope.
func readRecordDump(file string) ([]normalize.RawRecord, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, eris.Wrapf(err, "import: read %s", file)
	}

	var raws []normalize.RawRecord
	if err := json.Unmarshal(data, &raws); err == nil {
		return raws, nil
	}

	var page struct {
		Data []normalize.RawRecord `json:"data"`
	}
	if err := json.Unmarshal(data, &page); err != nil || page.Data == nil {
		return nil, eris.Errorf("import: %s is neither a record array nor a page dump", file)
	}
	return page.Data, nil
}

func importTimelines(ctx context.Context, st store.Store, files []string, useCopy bool) error {
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return eris.Wrapf(err, "import: read %s", file)
		}

		var entries []model.TimelineEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return eris.Wrapf(err, "import: decode %s", file)
		}

		var added int64
		if useCopy {
			copier, ok := st.(timelineCopier)
			if !ok {
				return eris.New("import: --copy requires the postgres store")
			}
			added, err = copier.CopyTimelines(ctx, entries)
			if err != nil {
				return eris.Wrapf(err, "import %s", file)
			}
		} else if bulk, ok := st.(timelineBulkImporter); ok {
			added, err = bulk.ImportTimelines(ctx, entries)
			if err != nil {
				return eris.Wrapf(err, "import %s", file)
			}
		} else {
			byProposal := make(map[string][]model.TimelineEntry)
			var order []string
			for _, e := range entries {
				if e.ProposalID == "" {
					continue
				}
				if _, seen := byProposal[e.ProposalID]; !seen {
					order = append(order, e.ProposalID)
				}
				byProposal[e.ProposalID] = append(byProposal[e.ProposalID], e)
			}
			for _, id := range order {
				n, err := st.AppendTimeline(ctx, id, byProposal[id])
				if err != nil {
					return eris.Wrapf(err, "import %s: proposal %s", file, id)
				}
				added += int64(n)
			}
		}

		fmt.Printf("%s: %d timeline entries added\n", file, added)
	}
	return nil
}
