// Package normalize maps raw portal records onto the canonical Proposal
// shape. The portal's endpoints disagree on key names across versions, so
// every field is resolved through an alias list.
package normalize

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/opengov-in/parivesh-sync/internal/model"
)

// RawRecord is one undecoded record as returned by the listing or detail
// endpoints.
type RawRecord map[string]any

// ErrMissingIdentifier marks a raw record with no identifier-bearing field.
// It is the only condition under which Normalize fails.
var ErrMissingIdentifier = eris.New("normalize: record has no proposal identifier")

// Alias lists per canonical field, in lookup order. The first list entry is
// the name used by the current advanceSearchData endpoint.
var (
	idKeys             = []string{"proposalNo", "proposal_no", "proposalId", "proposal_id"}
	swNoKeys           = []string{"swNo", "singleWindowNumber", "sw_no"}
	projectNameKeys    = []string{"projectName", "project_name", "proposalName"}
	companyKeys        = []string{"companyName", "nameOfUserAgency", "proponentName", "company_name"}
	stateKeys          = []string{"stateName", "state"}
	categoryKeys       = []string{"categoryName", "category"}
	sectorKeys         = []string{"sectorName", "sector"}
	statusKeys         = []string{"proposalStatus", "currentStatus", "current_status"}
	proposalTypeKeys   = []string{"proposalType", "proposal_type"}
	clearanceTypeKeys  = []string{"clearanceTypeName", "clearanceType", "clearance_type"}
	submissionDateKeys = []string{"lastSubmissionDate", "dateOfSubmission", "submission_date"}
	statusDateKeys     = []string{"lastStatusDate", "last_updated"}
	yearKeys           = []string{"year"}
)

// Normalize converts a raw record into a Proposal. Missing optional fields
// default to empty values; only a missing identifier is an error. now feeds
// the year fallback and the last-synced stamp, keeping the transformation
// pure.
func Normalize(raw RawRecord, now time.Time) (model.Proposal, error) {
	id := firstString(raw, idKeys)
	if id == "" {
		return model.Proposal{}, ErrMissingIdentifier
	}

	p := model.Proposal{
		ID:             id,
		SWNo:           firstString(raw, swNoKeys),
		ProjectName:    firstString(raw, projectNameKeys),
		Company:        firstString(raw, companyKeys),
		State:          firstString(raw, stateKeys),
		Category:       firstString(raw, categoryKeys),
		Sector:         firstString(raw, sectorKeys),
		Status:         firstString(raw, statusKeys),
		ProposalType:   firstString(raw, proposalTypeKeys),
		ClearanceType:  firstString(raw, clearanceTypeKeys),
		SubmissionDate: firstString(raw, submissionDateKeys),
		StatusDate:     firstString(raw, statusDateKeys),
		LastSynced:     now.UTC(),
	}
	p.Year = deriveYear(raw, id, now)
	return p, nil
}

// deriveYear prefers an explicit year field, then the trailing 4 characters
// of the identifier, then the current calendar year. The identifier parse is
// a heuristic: most identifiers end in "/<year>", but the portal does not
// guarantee it.
func deriveYear(raw RawRecord, id string, now time.Time) int {
	if y, ok := firstInt(raw, yearKeys); ok && y > 0 {
		return y
	}
	if len(id) >= 4 {
		if y, err := strconv.Atoi(id[len(id)-4:]); err == nil {
			return y
		}
	}
	return now.Year()
}

func firstString(raw RawRecord, keys []string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			// Numeric identifiers show up on some endpoints.
			return strconv.FormatFloat(s, 'f', -1, 64)
		default:
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

func firstInt(raw RawRecord, keys []string) (int, bool) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n), true
		case int:
			return n, true
		case string:
			if i, err := strconv.Atoi(n); err == nil {
				return i, true
			}
		}
	}
	return 0, false
}
