package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/opengov-in/parivesh-sync/internal/model"
)

// ProposalFilter specifies criteria for listing proposals.
type ProposalFilter struct {
	State  string `json:"state,omitempty"`
	Status string `json:"status,omitempty"`
	Year   int    `json:"year,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// StatusCount is one row of a status breakdown.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// YearCount is one row of a year breakdown.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// TableCounts holds the row count of each table.
type TableCounts struct {
	Proposals int `json:"proposals"`
	Details   int `json:"details"`
	Timelines int `json:"timelines"`
	Locations int `json:"locations"`
	Forms     int `json:"forms"`
	Documents int `json:"documents"`
}

// Stats is the read-only projection served by the status command and API.
type Stats struct {
	Tables   TableCounts   `json:"tables"`
	ByYear   []YearCount   `json:"by_year"`
	ByStatus []StatusCount `json:"by_status"`
	LastSync *time.Time    `json:"last_sync,omitempty"`
}

// Store defines the persistence interface for the reconciliation pipeline.
// Every write operation is transactional: it commits in full or not at all,
// and a failure aborts only the identifier it was serving.
type Store interface {
	// UpsertProposal inserts a new proposal, records a status change (with
	// exactly one timeline append), or does nothing when the status is
	// unchanged. Repeating it with identical input performs zero writes.
	UpsertProposal(ctx context.Context, p model.Proposal) (model.ChangeResult, error)

	// ReplaceDetail stores the full normalized record blob for a proposal,
	// overwriting any previous blob.
	ReplaceDetail(ctx context.Context, id string, raw json.RawMessage) error

	// ReplaceSubRecords deletes all sub-records of the given kind for the
	// proposal and inserts the supplied set, in one transaction. Kind must
	// be a replaceable family; the timeline is append-only and rejected.
	ReplaceSubRecords(ctx context.Context, id string, kind model.SubRecordKind, recs []model.SubRecord) error

	// AppendTimeline appends externally-sourced timeline entries,
	// deduplicated by (proposal, status, date). Returns how many were
	// actually inserted.
	AppendTimeline(ctx context.Context, id string, entries []model.TimelineEntry) (int, error)

	// ListIdentifiers returns a snapshot of all known proposal identifiers.
	ListIdentifiers(ctx context.Context) ([]string, error)

	// StatusBaseline returns the identifier -> current_status map used as
	// the reconciler's baseline. Loaded once per batch.
	StatusBaseline(ctx context.Context) (map[string]string, error)

	// Read-only projections.
	GetProposal(ctx context.Context, id string) (*model.Proposal, error)
	GetDetail(ctx context.Context, id string) (json.RawMessage, error)
	ListProposals(ctx context.Context, f ProposalFilter) ([]model.Proposal, error)
	ListTimeline(ctx context.Context, id string) ([]model.TimelineEntry, error)
	ListSubRecords(ctx context.Context, id string, kind model.SubRecordKind) ([]model.SubRecord, error)
	Stats(ctx context.Context) (*Stats, error)

	// Sync run bookkeeping.
	StartSyncRun(ctx context.Context, state string, year int) (string, error)
	CompleteSyncRun(ctx context.Context, runID string, sum model.SyncSummary) error
	FailSyncRun(ctx context.Context, runID string, errMsg string) error
	ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
