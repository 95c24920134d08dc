package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/opengov-in/parivesh-sync/internal/report"
	"github.com/opengov-in/parivesh-sync/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export proposals to CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")
		state, _ := cmd.Flags().GetString("state")
		status, _ := cmd.Flags().GetString("status")
		year, _ := cmd.Flags().GetInt("year")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		proposals, err := st.ListProposals(ctx, store.ProposalFilter{
			State:  state,
			Status: status,
			Year:   year,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "export: list proposals")
		}

		switch format {
		case "csv":
			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return eris.Wrapf(err, "export: create %s", out)
				}
				defer f.Close() //nolint:errcheck
				w = f
			}
			if err := report.WriteCSV(w, proposals); err != nil {
				return err
			}
		case "xlsx":
			if out == "" {
				out = "proposals.xlsx"
			}
			if err := report.WriteXLSX(out, proposals); err != nil {
				return err
			}
		default:
			return eris.Errorf("unsupported format %q (want csv or xlsx)", format)
		}

		if out != "" {
			fmt.Printf("Wrote %d proposals to %s\n", len(proposals), out)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "csv", "output format: csv or xlsx")
	exportCmd.Flags().String("out", "", "output file; csv defaults to stdout")
	exportCmd.Flags().String("state", "", "filter by state name")
	exportCmd.Flags().String("status", "", "filter by current status")
	exportCmd.Flags().Int("year", 0, "filter by year")
	exportCmd.Flags().Int("limit", 10000, "maximum rows to export")
	rootCmd.AddCommand(exportCmd)
}
