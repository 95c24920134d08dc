package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/opengov-in/parivesh-sync/internal/model"
	"github.com/opengov-in/parivesh-sync/internal/store"
)

// exportHeader is the column order shared by the CSV and XLSX exports.
var exportHeader = []string{
	"proposal_id", "sw_no", "project_name", "company_name", "state",
	"category", "sector", "current_status", "proposal_type", "clearance_type",
	"submission_date", "status_date", "year", "last_synced",
}

func exportRow(p model.Proposal) []string {
	return []string{
		p.ID, p.SWNo, p.ProjectName, p.Company, p.State,
		p.Category, p.Sector, p.Status, p.ProposalType, p.ClearanceType,
		p.SubmissionDate, p.StatusDate, strconv.Itoa(p.Year),
		p.LastSynced.Format("2006-01-02 15:04:05"),
	}
}

// WriteCSV writes the proposals as CSV with a header row.
func WriteCSV(w io.Writer, proposals []model.Proposal) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, p := range proposals {
		if err := cw.Write(exportRow(p)); err != nil {
			return eris.Wrapf(err, "report: write csv row for %s", p.ID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

// WriteXLSX writes the proposals to an XLSX workbook at path.
func WriteXLSX(path string, proposals []model.Proposal) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Proposals")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range exportHeader {
		header.AddCell().SetString(col)
	}
	for _, p := range proposals {
		row := sheet.AddRow()
		for _, val := range exportRow(p) {
			row.AddCell().SetString(val)
		}
	}

	return eris.Wrapf(f.Save(path), "report: save %s", path)
}

// RenderStats writes a readable stats summary.
func RenderStats(w io.Writer, st *store.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "TABLE\tROWS")
	fmt.Fprintf(tw, "proposals\t%d\n", st.Tables.Proposals)
	fmt.Fprintf(tw, "proposal_details\t%d\n", st.Tables.Details)
	fmt.Fprintf(tw, "proposal_timelines\t%d\n", st.Tables.Timelines)
	fmt.Fprintf(tw, "project_locations\t%d\n", st.Tables.Locations)
	fmt.Fprintf(tw, "proposal_forms\t%d\n", st.Tables.Forms)
	fmt.Fprintf(tw, "documents\t%d\n", st.Tables.Documents)

	if len(st.ByYear) > 0 {
		fmt.Fprintln(tw, "\nYEAR\tPROPOSALS")
		for _, yc := range st.ByYear {
			fmt.Fprintf(tw, "%d\t%d\n", yc.Year, yc.Count)
		}
	}

	if len(st.ByStatus) > 0 {
		fmt.Fprintln(tw, "\nSTATUS\tPROPOSALS")
		for _, sc := range st.ByStatus {
			fmt.Fprintf(tw, "%s\t%d\n", sc.Status, sc.Count)
		}
	}

	if st.LastSync != nil {
		fmt.Fprintf(tw, "\nlast sync\t%s\n", st.LastSync.Format("2006-01-02 15:04:05"))
	}

	return eris.Wrap(tw.Flush(), "report: render stats")
}
