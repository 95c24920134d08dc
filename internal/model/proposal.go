// Package model defines the entities persisted by the proposal store.
package model

import (
	"encoding/json"
	"time"
)

// Proposal is the tier-1 summary record, keyed by the portal's stable
// proposal identifier (e.g. "SIA/TG/INFRA2/51332/2024").
type Proposal struct {
	ID             string    `json:"proposal_id"`
	SWNo           string    `json:"sw_no,omitempty"`
	ProjectName    string    `json:"project_name,omitempty"`
	Company        string    `json:"company_name,omitempty"`
	State          string    `json:"state,omitempty"`
	Category       string    `json:"category,omitempty"`
	Sector         string    `json:"sector,omitempty"`
	Status         string    `json:"current_status,omitempty"`
	ProposalType   string    `json:"proposal_type,omitempty"`
	ClearanceType  string    `json:"clearance_type,omitempty"`
	SubmissionDate string    `json:"submission_date,omitempty"`
	StatusDate     string    `json:"status_date,omitempty"`
	Year           int       `json:"year,omitempty"`
	LastSynced     time.Time `json:"last_synced"`
}

// TimelineEntry is one append-only status transition for a proposal.
// Entries are never updated or deleted; a correction is a new entry.
type TimelineEntry struct {
	ProposalID string    `json:"proposal_id"`
	Status     string    `json:"status"`
	Date       string    `json:"date,omitempty"`
	Remarks    string    `json:"remarks,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubRecordKind tags the tier-2b sub-record families that share the
// delete-then-reinsert refresh policy.
type SubRecordKind string

const (
	SubRecordLocation SubRecordKind = "location"
	SubRecordForm     SubRecordKind = "form"
	SubRecordDocument SubRecordKind = "document"
)

// Valid reports whether k names a replaceable sub-record family.
func (k SubRecordKind) Valid() bool {
	switch k {
	case SubRecordLocation, SubRecordForm, SubRecordDocument:
		return true
	}
	return false
}

// Form kinds returned by the portal's four sub-form endpoints.
const (
	FormCAF   = "caf"
	FormPartA = "part_a"
	FormPartB = "part_b"
	FormPartC = "part_c"
)

// FormKinds lists the fixed form categories in fetch order.
var FormKinds = []string{FormCAF, FormPartA, FormPartB, FormPartC}

// SubRecord is a generic tier-2b row. Which fields are populated depends on
// the kind: locations and forms carry Payload (forms also Category),
// documents carry Category, Name and URL.
type SubRecord struct {
	Kind     SubRecordKind   `json:"kind"`
	Category string          `json:"category,omitempty"`
	Name     string          `json:"name,omitempty"`
	URL      string          `json:"url,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// ChangeKind classifies the outcome of a proposal upsert.
type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangeStatus    ChangeKind = "status_changed"
	ChangeUnchanged ChangeKind = "unchanged"
)

// ChangeResult reports what an upsert did. OldStatus and NewStatus are set
// only for status_changed.
type ChangeResult struct {
	Kind      ChangeKind `json:"kind"`
	OldStatus string     `json:"old_status,omitempty"`
	NewStatus string     `json:"new_status,omitempty"`
}

// SyncSummary holds the per-run counters recorded in sync_runs.
type SyncSummary struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// SyncRun is one row of the sync_runs bookkeeping table.
type SyncRun struct {
	ID          string      `json:"id"`
	State       string      `json:"state,omitempty"`
	Year        int         `json:"year,omitempty"`
	Status      string      `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Summary     SyncSummary `json:"summary"`
	Error       string      `json:"error,omitempty"`
}

// Sync run statuses.
const (
	SyncRunning  = "running"
	SyncComplete = "complete"
	SyncFailed   = "failed"
)
