package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/opengov-in/parivesh-sync/internal/db"
	"github.com/opengov-in/parivesh-sync/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
	now  func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot paths of a reconcile batch.
var preparedStatements = map[string]string{
	"lookup_status":   `SELECT current_status FROM proposals WHERE proposal_id = $1`,
	"update_status":   `UPDATE proposals SET current_status = $1, status_date = $2, last_synced = $3 WHERE proposal_id = $4`,
	"append_timeline": `INSERT INTO proposal_timelines (proposal_id, status, date, remarks, source, created_at) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (proposal_id, status, date) WHERE source = 'import' DO NOTHING`,
	"replace_detail":  `INSERT INTO proposal_details (proposal_id, raw_json, updated_at) VALUES ($1, $2, $3) ON CONFLICT (proposal_id) DO UPDATE SET raw_json = EXCLUDED.raw_json, updated_at = EXCLUDED.updated_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

const postgresMigration = `
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
	last_synced     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS proposal_details (
	proposal_id TEXT PRIMARY KEY REFERENCES proposals(proposal_id),
	raw_json    JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS proposal_timelines (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	proposal_id TEXT NOT NULL REFERENCES proposals(proposal_id),
	status      TEXT NOT NULL,
	date        TEXT NOT NULL DEFAULT '',
	remarks     TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT 'import',
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_timelines_dedup
	ON proposal_timelines(proposal_id, status, date) WHERE source = 'import';

CREATE TABLE IF NOT EXISTS project_locations (
	id            BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	proposal_id   TEXT NOT NULL REFERENCES proposals(proposal_id),
	location_data JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS proposal_forms (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	proposal_id TEXT NOT NULL REFERENCES proposals(proposal_id),
	form_type   TEXT NOT NULL,
	form_data   JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id            BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	proposal_id   TEXT NOT NULL REFERENCES proposals(proposal_id),
	document_type TEXT NOT NULL DEFAULT '',
	document_name TEXT NOT NULL DEFAULT '',
	document_url  TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id           TEXT PRIMARY KEY,
	state        TEXT NOT NULL DEFAULT '',
	year         INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	created      INTEGER NOT NULL DEFAULT 0,
	updated      INTEGER NOT NULL DEFAULT 0,
	unchanged    INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_proposals_state ON proposals(state);
CREATE INDEX IF NOT EXISTS idx_proposals_year ON proposals(year);
CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(current_status);
CREATE INDEX IF NOT EXISTS idx_locations_proposal ON project_locations(proposal_id);
CREATE INDEX IF NOT EXISTS idx_forms_proposal ON proposal_forms(proposal_id);
CREATE INDEX IF NOT EXISTS idx_documents_proposal ON documents(proposal_id);
CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertProposal(ctx context.Context, p model.Proposal) (model.ChangeResult, error) {
	var none model.ChangeResult

	var current string
	err := s.pool.QueryRow(ctx,
		`SELECT current_status FROM proposals WHERE proposal_id = $1`, p.ID,
	).Scan(&current)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if err := s.insertProposal(ctx, p); err != nil {
			return none, err
		}
		return model.ChangeResult{Kind: model.ChangeCreated}, nil

	case err != nil:
		return none, eris.Wrapf(err, "postgres: lookup proposal %s", p.ID)

	case current == p.Status:
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

func (s *PostgresStore) insertProposal(ctx context.Context, p model.Proposal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO proposals (
			proposal_id, sw_no, project_name, company_name, state, category,
			sector, current_status, proposal_type, clearance_type,
			submission_date, status_date, year, last_synced
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.SWNo, p.ProjectName, p.Company, p.State, p.Category,
		p.Sector, p.Status, p.ProposalType, p.ClearanceType,
		p.SubmissionDate, p.StatusDate, p.Year, s.now(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert proposal %s", p.ID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit insert")
}

func (s *PostgresStore) recordStatusChange(ctx context.Context, p model.Proposal, old string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := s.now()
	_, err = tx.Exec(ctx,
		`UPDATE proposals SET current_status = $1, status_date = $2, last_synced = $3 WHERE proposal_id = $4`,
		p.Status, p.StatusDate, now, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update status for %s", p.ID)
	}

	// An observed transition is always appended, even when the proposal
	// re-enters a status it held earlier the same day.
	_, err = tx.Exec(ctx,
		`INSERT INTO proposal_timelines (proposal_id, status, date, remarks, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Status, now.Format("2006-01-02"), fmt.Sprintf("status changed from %q", old),
		timelineSourceObserved, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: append timeline for %s", p.ID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit status change")
}

func (s *PostgresStore) ReplaceDetail(ctx context.Context, id string, raw json.RawMessage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO proposal_details (proposal_id, raw_json, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (proposal_id) DO UPDATE SET raw_json = EXCLUDED.raw_json, updated_at = EXCLUDED.updated_at`,
		id, string(raw), s.now(),
	)
	return eris.Wrapf(err, "postgres: replace detail for %s", id)
}

func (s *PostgresStore) ReplaceSubRecords(ctx context.Context, id string, kind model.SubRecordKind, recs []model.SubRecord) error {
	if !kind.Valid() {
		return eris.Errorf("postgres: sub-record kind %q is not replaceable", kind)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := s.now()
	switch kind {
	case model.SubRecordLocation:
		if _, err := tx.Exec(ctx, `DELETE FROM project_locations WHERE proposal_id = $1`, id); err != nil {
			return eris.Wrapf(err, "postgres: clear locations for %s", id)
		}
		for _, r := range recs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO project_locations (proposal_id, location_data, created_at) VALUES ($1, $2, $3)`,
				id, string(r.Payload), now,
			); err != nil {
				return eris.Wrapf(err, "postgres: insert location for %s", id)
			}
		}

	case model.SubRecordForm:
		if _, err := tx.Exec(ctx, `DELETE FROM proposal_forms WHERE proposal_id = $1`, id); err != nil {
			return eris.Wrapf(err, "postgres: clear forms for %s", id)
		}
		for _, r := range recs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO proposal_forms (proposal_id, form_type, form_data, created_at) VALUES ($1, $2, $3, $4)`,
				id, r.Category, string(r.Payload), now,
			); err != nil {
				return eris.Wrapf(err, "postgres: insert form %s for %s", r.Category, id)
			}
		}

	case model.SubRecordDocument:
		if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE proposal_id = $1`, id); err != nil {
			return eris.Wrapf(err, "postgres: clear documents for %s", id)
		}
		for _, r := range recs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO documents (proposal_id, document_type, document_name, document_url, created_at)
				 VALUES ($1, $2, $3, $4, $5)`,
				id, r.Category, r.Name, r.URL, now,
			); err != nil {
				return eris.Wrapf(err, "postgres: insert document for %s", id)
			}
		}
	}

	return eris.Wrapf(tx.Commit(ctx), "postgres: commit sub-records for %s", id)
}

func (s *PostgresStore) AppendTimeline(ctx context.Context, id string, entries []model.TimelineEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := s.now()
	inserted := 0
	for _, e := range entries {
		tag, err := tx.Exec(ctx,
			`INSERT INTO proposal_timelines (proposal_id, status, date, remarks, source, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (proposal_id, status, date) WHERE source = 'import' DO NOTHING`,
			id, e.Status, e.Date, e.Remarks, timelineSourceImport, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: append timeline for %s", id)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "postgres: commit timeline for %s", id)
	}
	return inserted, nil
}

// ImportTimelines bulk-loads timeline entries via COPY and a staging
// table, skipping rows already present. Entries must carry ProposalID.
func (s *PostgresStore) ImportTimelines(ctx context.Context, entries []model.TimelineEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	now := s.now()
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.ProposalID, e.Status, e.Date, e.Remarks, timelineSourceImport, now})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:         "proposal_timelines",
		Columns:       []string{"proposal_id", "status", "date", "remarks", "source", "created_at"},
		ConflictKeys:  []string{"proposal_id", "status", "date"},
		ConflictWhere: "source = 'import'",
		DoNothing:     true,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import timelines")
	}
	return n, nil
}

// CopyTimelines streams timeline entries straight into the table with the
// COPY protocol, with no conflict handling at all. Only safe for pristine
// loads where none of the rows exist yet.
func (s *PostgresStore) CopyTimelines(ctx context.Context, entries []model.TimelineEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	now := s.now()
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.ProposalID, e.Status, e.Date, e.Remarks, timelineSourceImport, now})
	}

	n, err := db.CopyFrom(ctx, s.pool, "proposal_timelines",
		[]string{"proposal_id", "status", "date", "remarks", "source", "created_at"}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: copy timelines")
	}
	return n, nil
}

func (s *PostgresStore) ListIdentifiers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT proposal_id FROM proposals ORDER BY proposal_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list identifiers")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan identifier")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate identifiers")
}

func (s *PostgresStore) StatusBaseline(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT proposal_id, current_status FROM proposals`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load baseline")
	}
	defer rows.Close()

	baseline := make(map[string]string)
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan baseline row")
		}
		baseline[id] = status
	}
	return baseline, eris.Wrap(rows.Err(), "postgres: iterate baseline")
}

func (s *PostgresStore) GetProposal(ctx context.Context, id string) (*model.Proposal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE proposal_id = $1`, id)

	p, err := scanProposal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get proposal %s", id)
	}
	return p, nil
}

func (s *PostgresStore) GetDetail(ctx context.Context, id string) (json.RawMessage, error) {
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT raw_json FROM proposal_details WHERE proposal_id = $1`, id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get detail %s", id)
	}
	return json.RawMessage(raw), nil
}

func (s *PostgresStore) ListProposals(ctx context.Context, f ProposalFilter) ([]model.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE 1=1`
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.State != "" {
		query += ` AND state = ` + arg(f.State)
	}
	if f.Status != "" {
		query += ` AND current_status = ` + arg(f.Status)
	}
	if f.Year != 0 {
		query += ` AND year = ` + arg(f.Year)
	}
	query += ` ORDER BY proposal_id`

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if f.Offset > 0 {
		query += ` OFFSET ` + arg(f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list proposals")
	}
	defer rows.Close()

	var out []model.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan proposal")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate proposals")
}

func (s *PostgresStore) ListTimeline(ctx context.Context, id string) ([]model.TimelineEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT proposal_id, status, date, remarks, created_at
		 FROM proposal_timelines WHERE proposal_id = $1 ORDER BY date, id`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list timeline %s", id)
	}
	defer rows.Close()

	var out []model.TimelineEntry
	for rows.Next() {
		var e model.TimelineEntry
		if err := rows.Scan(&e.ProposalID, &e.Status, &e.Date, &e.Remarks, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan timeline entry")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate timeline")
}

func (s *PostgresStore) ListSubRecords(ctx context.Context, id string, kind model.SubRecordKind) ([]model.SubRecord, error) {
	if !kind.Valid() {
		return nil, eris.Errorf("postgres: unknown sub-record kind %q", kind)
	}

	var query string
	switch kind {
	case model.SubRecordLocation:
		query = `SELECT '' AS category, '' AS name, '' AS url, location_data::text FROM project_locations WHERE proposal_id = $1 ORDER BY id`
	case model.SubRecordForm:
		query = `SELECT form_type, '' AS name, '' AS url, form_data::text FROM proposal_forms WHERE proposal_id = $1 ORDER BY id`
	case model.SubRecordDocument:
		query = `SELECT document_type, document_name, document_url, '' AS payload FROM documents WHERE proposal_id = $1 ORDER BY id`
	}

	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s records for %s", kind, id)
	}
	defer rows.Close()

	var out []model.SubRecord
	for rows.Next() {
		var r model.SubRecord
		var payload string
		if err := rows.Scan(&r.Category, &r.Name, &r.URL, &payload); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s record", kind)
		}
		r.Kind = kind
		if payload != "" {
			r.Payload = json.RawMessage(payload)
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate sub-records")
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
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
		if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+tbl.name).Scan(tbl.dst); err != nil {
			return nil, eris.Wrapf(err, "postgres: count %s", tbl.name)
		}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT year, COUNT(*) FROM proposals GROUP BY year ORDER BY year DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats by year")
	}
	defer rows.Close()
	for rows.Next() {
		var yc YearCount
		if err := rows.Scan(&yc.Year, &yc.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan year count")
		}
		st.ByYear = append(st.ByYear, yc)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate year counts")
	}

	srows, err := s.pool.Query(ctx,
		`SELECT current_status, COUNT(*) FROM proposals GROUP BY current_status ORDER BY COUNT(*) DESC, current_status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats by status")
	}
	defer srows.Close()
	for srows.Next() {
		var sc StatusCount
		if err := srows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		st.ByStatus = append(st.ByStatus, sc)
	}
	if err := srows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate status counts")
	}

	var last *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MAX(last_synced) FROM proposals`).Scan(&last); err != nil {
		return nil, eris.Wrap(err, "postgres: last sync")
	}
	st.LastSync = last

	return &st, nil
}

func (s *PostgresStore) StartSyncRun(ctx context.Context, state string, year int) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_runs (id, state, year, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, state, year, model.SyncRunning, s.now(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: start sync run")
	}
	return id, nil
}

func (s *PostgresStore) CompleteSyncRun(ctx context.Context, runID string, sum model.SyncSummary) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_runs SET status = $1, completed_at = $2, created = $3, updated = $4, unchanged = $5, failed = $6
		 WHERE id = $7`,
		model.SyncComplete, s.now(), sum.Created, sum.Updated, sum.Unchanged, sum.Failed, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete sync run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("sync run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailSyncRun(ctx context.Context, runID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_runs SET status = $1, completed_at = $2, error = $3 WHERE id = $4`,
		model.SyncFailed, s.now(), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail sync run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("sync run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, state, year, status, started_at, completed_at, created, updated, unchanged, failed, error
		 FROM sync_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sync runs")
	}
	defer rows.Close()

	var out []model.SyncRun
	for rows.Next() {
		var r model.SyncRun
		if err := rows.Scan(&r.ID, &r.State, &r.Year, &r.Status, &r.StartedAt, &r.CompletedAt,
			&r.Summary.Created, &r.Summary.Updated, &r.Summary.Unchanged, &r.Summary.Failed, &r.Error); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate sync runs")
}
