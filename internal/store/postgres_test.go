package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengov-in/parivesh-sync/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{
		pool: mock,
		now:  func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	return s, mock
}

func TestPostgresStore_UpsertProposal_Created(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	p := testProposal("EC/1001/2023", "Pending")

	mock.ExpectQuery(`SELECT current_status FROM proposals`).
		WithArgs(p.ID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO proposals`).
		WithArgs(p.ID, p.SWNo, p.ProjectName, p.Company, p.State, p.Category,
			p.Sector, p.Status, p.ProposalType, p.ClearanceType,
			p.SubmissionDate, p.StatusDate, p.Year, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := s.UpsertProposal(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, model.ChangeCreated, res.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertProposal_Unchanged(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	p := testProposal("EC/1001/2023", "Pending")

	mock.ExpectQuery(`SELECT current_status FROM proposals`).
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows([]string{"current_status"}).AddRow("Pending"))

	res, err := s.UpsertProposal(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, model.ChangeUnchanged, res.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertProposal_StatusChanged(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	p := testProposal("EC/1001/2023", "Approved")

	mock.ExpectQuery(`SELECT current_status FROM proposals`).
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows([]string{"current_status"}).AddRow("Pending"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE proposals SET current_status`).
		WithArgs("Approved", p.StatusDate, pgxmock.AnyArg(), p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO proposal_timelines`).
		WithArgs(p.ID, "Approved", "2024-06-01", pgxmock.AnyArg(), timelineSourceObserved, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := s.UpsertProposal(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, model.ChangeStatus, res.Kind)
	assert.Equal(t, "Pending", res.OldStatus)
	assert.Equal(t, "Approved", res.NewStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertProposal_StatusFlipSameDay(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// each transition appends a timeline row, repeats included
	for _, step := range []struct{ from, to string }{
		{"Pending", "Approved"},
		{"Approved", "Pending"},
		{"Pending", "Approved"},
	} {
		p := testProposal("EC/1001/2023", step.to)
		mock.ExpectQuery(`SELECT current_status FROM proposals`).
			WithArgs(p.ID).
			WillReturnRows(pgxmock.NewRows([]string{"current_status"}).AddRow(step.from))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE proposals SET current_status`).
			WithArgs(step.to, p.StatusDate, pgxmock.AnyArg(), p.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO proposal_timelines`).
			WithArgs(p.ID, step.to, "2024-06-01", pgxmock.AnyArg(), timelineSourceObserved, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		res, err := s.UpsertProposal(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, model.ChangeStatus, res.Kind)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProposal_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM proposals WHERE proposal_id`).
		WithArgs("EC/nope/2023").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetProposal(context.Background(), "EC/nope/2023")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceDetail_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs("EC/1001/2023", `{"form_id":42}`, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.ReplaceDetail(context.Background(), "EC/1001/2023", json.RawMessage(`{"form_id":42}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendTimeline_Dedup(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO proposal_timelines`).
		WithArgs("EC/1001/2023", "Submitted", "2024-01-15", "initial filing", timelineSourceImport, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO proposal_timelines`).
		WithArgs("EC/1001/2023", "Under Review", "2024-02-01", "", timelineSourceImport, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	n, err := s.AppendTimeline(context.Background(), "EC/1001/2023", []model.TimelineEntry{
		{Status: "Submitted", Date: "2024-01-15", Remarks: "initial filing"},
		{Status: "Under Review", Date: "2024-02-01"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StatusBaseline(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT proposal_id, current_status FROM proposals`).
		WillReturnRows(pgxmock.NewRows([]string{"proposal_id", "current_status"}).
			AddRow("EC/1/2023", "Pending").
			AddRow("EC/2/2023", "Approved"))

	baseline, err := s.StatusBaseline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"EC/1/2023": "Pending",
		"EC/2/2023": "Approved",
	}, baseline)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceSubRecords_Documents(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM documents`).
		WithArgs("EC/1001/2023").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("EC/1001/2023", "EIA", "report.pdf", "https://example.org/report.pdf", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.ReplaceSubRecords(context.Background(), "EC/1001/2023", model.SubRecordDocument, []model.SubRecord{
		{Kind: model.SubRecordDocument, Category: "EIA", Name: "report.pdf", URL: "https://example.org/report.pdf"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportTimelines(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_proposal_timelines"},
		[]string{"proposal_id", "status", "date", "remarks", "source", "created_at"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "proposal_timelines" .+ ON CONFLICT .+ WHERE source = 'import' DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.ImportTimelines(context.Background(), []model.TimelineEntry{
		{ProposalID: "EC/1/2024", Status: "Submitted", Date: "2024-01-15"},
		{ProposalID: "EC/1/2024", Status: "Pending", Date: "2024-02-01"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CopyTimelines(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"proposal_timelines"},
		[]string{"proposal_id", "status", "date", "remarks", "source", "created_at"}).
		WillReturnResult(2)

	n, err := s.CopyTimelines(context.Background(), []model.TimelineEntry{
		{ProposalID: "EC/1/2024", Status: "Submitted", Date: "2024-01-15"},
		{ProposalID: "EC/1/2024", Status: "Pending", Date: "2024-02-01"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteSyncRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE sync_runs`).
		WithArgs(model.SyncComplete, pgxmock.AnyArg(), 0, 0, 0, 0, "no-such-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteSyncRun(context.Background(), "no-such-run", model.SyncSummary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
