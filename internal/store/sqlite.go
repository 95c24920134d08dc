package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/opengov-in/parivesh-sync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS proposals (
	proposal_id     TEXT PRIMARY KEY,
	sw_no           TEXT NOT NULL DEFAULT '',
	project_name    TEXT NOT NULL DEFAULT '',
	company_name    TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	sector          TEXT NOT NULL DEFAULT '',
	current_status  TEXT NOT NULL DEFAULT '',
	proposal_type   TEXT NOT NULL DEFAULT '',
	clearance_type  TEXT NOT NULL DEFAULT '',
	submission_date TEXT NOT NULL DEFAULT '',
	status_date     TEXT NOT NULL DEFAULT '',
	year            INTEGER NOT NULL DEFAULT 0,
	last_synced     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS proposal_details (
	proposal_id TEXT PRIMARY KEY REFERENCES proposals(proposal_id),
	raw_json    TEXT NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS proposal_timelines (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	proposal_id TEXT NOT NULL REFERENCES proposals(proposal_id),
	status      TEXT NOT NULL,
	date        TEXT NOT NULL DEFAULT '',
	remarks     TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT 'import',
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS project_locations (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	proposal_id   TEXT NOT NULL REFERENCES proposals(proposal_id),
	location_data TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS proposal_forms (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	proposal_id TEXT NOT NULL REFERENCES proposals(proposal_id),
	form_type   TEXT NOT NULL,
	form_data   TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	proposal_id   TEXT NOT NULL REFERENCES proposals(proposal_id),
	document_type TEXT NOT NULL DEFAULT '',
	document_name TEXT NOT NULL DEFAULT '',
	document_url  TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id           TEXT PRIMARY KEY,
	state        TEXT NOT NULL DEFAULT '',
	year         INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	created      INTEGER NOT NULL DEFAULT 0,
	updated      INTEGER NOT NULL DEFAULT 0,
	unchanged    INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_timelines_dedup
	ON proposal_timelines(proposal_id, status, date) WHERE source = 'import';
CREATE INDEX IF NOT EXISTS idx_proposals_state ON proposals(state);
CREATE INDEX IF NOT EXISTS idx_proposals_year ON proposals(year);
CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(current_status);
CREATE INDEX IF NOT EXISTS idx_locations_proposal ON project_locations(proposal_id);
CREATE INDEX IF NOT EXISTS idx_forms_proposal ON proposal_forms(proposal_id);
CREATE INDEX IF NOT EXISTS idx_documents_proposal ON documents(proposal_id);
CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at);
`

// Timeline rows carry their source. Entries witnessed as live status
// transitions are history and always append; entries imported from the
// portal's approval history are deduplicated on (proposal, status, date).
const (
	timelineSourceObserved = "observed"
	timelineSourceImport   = "import"
)

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertProposal classifies p against the stored row and applies the
// minimal write: insert on first sight, status update plus one timeline
// append on a status change, nothing at all otherwise.
func (s *SQLiteStore) UpsertProposal(ctx context.Context, p model.Proposal) (model.ChangeResult, error) {
	var none model.ChangeResult

	var current string
	err := s.db.QueryRowContext(ctx,
		`SELECT current_status FROM proposals WHERE proposal_id = ?`, p.ID,
	).Scan(&current)

	switch {
	case err == sql.ErrNoRows:
		if err := s.insertProposal(ctx, p); err != nil {
			return none, err
		}
		return model.ChangeResult{Kind: model.ChangeCreated}, nil

	case err != nil:
		return none, eris.Wrapf(err, "sqlite: lookup proposal %s", p.ID)

	case current == p.Status:
		// Idempotence guarantee: identical status means zero writes.
		return model.ChangeResult{Kind: model.ChangeUnchanged}, nil
	}

	if err := s.recordStatusChange(ctx, p, current); err != nil {
		return none, err
	}
	return model.ChangeResult{
		Kind:      model.ChangeStatus,
		OldStatus: current,
		NewStatus: p.Status,
	}, nil
}

func (s *SQLiteStore) insertProposal(ctx context.Context, p model.Proposal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO proposals (
			proposal_id, sw_no, project_name, company_name, state, category,
			sector, current_status, proposal_type, clearance_type,
			submission_date, status_date, year, last_synced
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SWNo, p.ProjectName, p.Company, p.State, p.Category,
		p.Sector, p.Status, p.ProposalType, p.ClearanceType,
		p.SubmissionDate, p.StatusDate, p.Year, s.now(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert proposal %s", p.ID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert")
}

func (s *SQLiteStore) recordStatusChange(ctx context.Context, p model.Proposal, old string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := s.now()
	_, err = tx.ExecContext(ctx,
		`UPDATE proposals SET current_status = ?, status_date = ?, last_synced = ?
		 WHERE proposal_id = ?`,
		p.Status, p.StatusDate, now, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update status for %s", p.ID)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO proposal_timelines (proposal_id, status, date, remarks, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Status, now.Format("2006-01-02"), fmt.Sprintf("status changed from %q", old),
		timelineSourceObserved, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: append timeline for %s", p.ID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit status change")
}

func (s *SQLiteStore) ReplaceDetail(ctx context.Context, id string, raw json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO proposal_details (proposal_id, raw_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(proposal_id) DO UPDATE SET raw_json = excluded.raw_json, updated_at = excluded.updated_at`,
		id, string(raw), s.now(),
	)
	return eris.Wrapf(err, "sqlite: replace detail for %s", id)
}

func (s *SQLiteStore) ReplaceSubRecords(ctx context.Context, id string, kind model.SubRecordKind, recs []model.SubRecord) error {
	if !kind.Valid() {
		return eris.Errorf("sqlite: sub-record kind %q is not replaceable", kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := s.now()
	switch kind {
	case model.SubRecordLocation:
		if _, err := tx.ExecContext(ctx, `DELETE FROM project_locations WHERE proposal_id = ?`, id); err != nil {
			return eris.Wrapf(err, "sqlite: clear locations for %s", id)
		}
		for _, r := range recs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO project_locations (proposal_id, location_data, created_at) VALUES (?, ?, ?)`,
				id, string(r.Payload), now,
			); err != nil {
				return eris.Wrapf(err, "sqlite: insert location for %s", id)
			}
		}

	case model.SubRecordForm:
		if _, err := tx.ExecContext(ctx, `DELETE FROM proposal_forms WHERE proposal_id = ?`, id); err != nil {
			return eris.Wrapf(err, "sqlite: clear forms for %s", id)
		}
		for _, r := range recs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO proposal_forms (proposal_id, form_type, form_data, created_at) VALUES (?, ?, ?, ?)`,
				id, r.Category, string(r.Payload), now,
			); err != nil {
				return eris.Wrapf(err, "sqlite: insert form %s for %s", r.Category, id)
			}
		}

	case model.SubRecordDocument:
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE proposal_id = ?`, id); err != nil {
			return eris.Wrapf(err, "sqlite: clear documents for %s", id)
		}
		for _, r := range recs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO documents (proposal_id, document_type, document_name, document_url, created_at)
				 VALUES (?, ?, ?, ?, ?)`,
				id, r.Category, r.Name, r.URL, now,
			); err != nil {
				return eris.Wrapf(err, "sqlite: insert document for %s", id)
			}
		}
	}

	return eris.Wrapf(tx.Commit(), "sqlite: commit sub-records for %s", id)
}

func (s *SQLiteStore) AppendTimeline(ctx context.Context, id string, entries []model.TimelineEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := s.now()
	inserted := 0
	for _, e := range entries {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO proposal_timelines (proposal_id, status, date, remarks, source, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, e.Status, e.Date, e.Remarks, timelineSourceImport, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: append timeline for %s", id)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: commit timeline for %s", id)
	}
	return inserted, nil
}

func (s *SQLiteStore) ListIdentifiers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT proposal_id FROM proposals ORDER BY proposal_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list identifiers")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan identifier")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate identifiers")
}

func (s *SQLiteStore) StatusBaseline(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT proposal_id, current_status FROM proposals`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load baseline")
	}
	defer rows.Close()

	baseline := make(map[string]string)
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan baseline row")
		}
		baseline[id] = status
	}
	return baseline, eris.Wrap(rows.Err(), "sqlite: iterate baseline")
}

const proposalColumns = `proposal_id, sw_no, project_name, company_name, state, category,
	sector, current_status, proposal_type, clearance_type, submission_date, status_date,
	year, last_synced`

func (s *SQLiteStore) GetProposal(ctx context.Context, id string) (*model.Proposal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE proposal_id = ?`, id)

	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get proposal %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) GetDetail(ctx context.Context, id string) (json.RawMessage, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT raw_json FROM proposal_details WHERE proposal_id = ?`, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get detail %s", id)
	}
	return json.RawMessage(raw), nil
}

func (s *SQLiteStore) ListProposals(ctx context.Context, f ProposalFilter) ([]model.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE 1=1`
	var args []any

	if f.State != "" {
		query += ` AND state = ?`
		args = append(args, f.State)
	}
	if f.Status != "" {
		query += ` AND current_status = ?`
		args = append(args, f.Status)
	}
	if f.Year != 0 {
		query += ` AND year = ?`
		args = append(args, f.Year)
	}
	query += ` ORDER BY proposal_id`

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if f.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list proposals")
	}
	defer rows.Close()

	var out []model.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan proposal")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate proposals")
}

// ListTimeline returns entries in insertion order, with a stable secondary
// ordering by date where dates are present.
func (s *SQLiteStore) ListTimeline(ctx context.Context, id string) ([]model.TimelineEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT proposal_id, status, date, remarks, created_at
		 FROM proposal_timelines WHERE proposal_id = ? ORDER BY date, id`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list timeline %s", id)
	}
	defer rows.Close()

	var out []model.TimelineEntry
	for rows.Next() {
		var e model.TimelineEntry
		if err := rows.Scan(&e.ProposalID, &e.Status, &e.Date, &e.Remarks, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan timeline entry")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate timeline")
}

func (s *SQLiteStore) ListSubRecords(ctx context.Context, id string, kind model.SubRecordKind) ([]model.SubRecord, error) {
	if !kind.Valid() {
		return nil, eris.Errorf("sqlite: unknown sub-record kind %q", kind)
	}

	var (
		query string
		scan  func(*sql.Rows) (model.SubRecord, error)
	)
	switch kind {
	case model.SubRecordLocation:
		query = `SELECT location_data FROM project_locations WHERE proposal_id = ? ORDER BY id`
		scan = func(rows *sql.Rows) (model.SubRecord, error) {
			var payload string
			err := rows.Scan(&payload)
			return model.SubRecord{Kind: kind, Payload: json.RawMessage(payload)}, err
		}
	case model.SubRecordForm:
		query = `SELECT form_type, form_data FROM proposal_forms WHERE proposal_id = ? ORDER BY id`
		scan = func(rows *sql.Rows) (model.SubRecord, error) {
			var category, payload string
			err := rows.Scan(&category, &payload)
			return model.SubRecord{Kind: kind, Category: category, Payload: json.RawMessage(payload)}, err
		}
	case model.SubRecordDocument:
		query = `SELECT document_type, document_name, document_url FROM documents WHERE proposal_id = ? ORDER BY id`
		scan = func(rows *sql.Rows) (model.SubRecord, error) {
			var r model.SubRecord
			r.Kind = kind
			err := rows.Scan(&r.Category, &r.Name, &r.URL)
			return r, err
		}
	}

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s records for %s", kind, id)
	}
	defer rows.Close()

	var out []model.SubRecord
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s record", kind)
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate sub-records")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats

	tables := []struct {
		name string
		dst  *int
	}{
		{"proposals", &st.Tables.Proposals},
		{"proposal_details", &st.Tables.Details},
		{"proposal_timelines", &st.Tables.Timelines},
		{"project_locations", &st.Tables.Locations},
		{"proposal_forms", &st.Tables.Forms},
		{"documents", &st.Tables.Documents},
	}
	for _, tbl := range tables {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+tbl.name).Scan(tbl.dst); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", tbl.name)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT year, COUNT(*) FROM proposals GROUP BY year ORDER BY year DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats by year")
	}
	defer rows.Close()
	for rows.Next() {
		var yc YearCount
		if err := rows.Scan(&yc.Year, &yc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan year count")
		}
		st.ByYear = append(st.ByYear, yc)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate year counts")
	}

	srows, err := s.db.QueryContext(ctx,
		`SELECT current_status, COUNT(*) FROM proposals GROUP BY current_status ORDER BY COUNT(*) DESC, current_status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats by status")
	}
	defer srows.Close()
	for srows.Next() {
		var sc StatusCount
		if err := srows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		st.ByStatus = append(st.ByStatus, sc)
	}
	if err := srows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate status counts")
	}

	var last sql.NullTime
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(last_synced) FROM proposals`).Scan(&last); err != nil {
		return nil, eris.Wrap(err, "sqlite: last sync")
	}
	if last.Valid {
		t := last.Time
		st.LastSync = &t
	}

	return &st, nil
}

func (s *SQLiteStore) StartSyncRun(ctx context.Context, state string, year int) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, state, year, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, state, year, model.SyncRunning, s.now(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: start sync run")
	}
	return id, nil
}

func (s *SQLiteStore) CompleteSyncRun(ctx context.Context, runID string, sum model.SyncSummary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, completed_at = ?, created = ?, updated = ?, unchanged = ?, failed = ?
		 WHERE id = ?`,
		model.SyncComplete, s.now(), sum.Created, sum.Updated, sum.Unchanged, sum.Failed, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete sync run %s", runID)
	}
	return checkRowsAffected(res, "sync run", runID)
}

func (s *SQLiteStore) FailSyncRun(ctx context.Context, runID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		model.SyncFailed, s.now(), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail sync run %s", runID)
	}
	return checkRowsAffected(res, "sync run", runID)
}

func (s *SQLiteStore) ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, year, status, started_at, completed_at, created, updated, unchanged, failed, error
		 FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sync runs")
	}
	defer rows.Close()

	var out []model.SyncRun
	for rows.Next() {
		var r model.SyncRun
		var completed sql.NullTime
		if err := rows.Scan(&r.ID, &r.State, &r.Year, &r.Status, &r.StartedAt, &completed,
			&r.Summary.Created, &r.Summary.Updated, &r.Summary.Unchanged, &r.Summary.Failed, &r.Error); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync run")
		}
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate sync runs")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProposal(row scannable) (*model.Proposal, error) {
	var p model.Proposal
	err := row.Scan(
		&p.ID, &p.SWNo, &p.ProjectName, &p.Company, &p.State, &p.Category,
		&p.Sector, &p.Status, &p.ProposalType, &p.ClearanceType,
		&p.SubmissionDate, &p.StatusDate, &p.Year, &p.LastSynced,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
