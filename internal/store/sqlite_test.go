package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengov-in/parivesh-sync/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testProposal(id, status string) model.Proposal {
	return model.Proposal{
		ID:             id,
		SWNo:           "SW/101",
		ProjectName:    "Test Highway Expansion",
		Company:        "Sample Infra Ltd",
		State:          "Telangana",
		Category:       "Infrastructure",
		Sector:         "Roads",
		Status:         status,
		ProposalType:   "New",
		ClearanceType:  "EC",
		SubmissionDate: "2024-01-15",
		StatusDate:     "2024-02-01",
		Year:           2024,
	}
}

func TestUpsertProposalCreated(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := s.UpsertProposal(ctx, testProposal("SIA/TG/INFRA2/51332/2024", "Pending"))
	require.NoError(t, err)
	assert.Equal(t, model.ChangeCreated, res.Kind)

	got, err := s.GetProposal(ctx, "SIA/TG/INFRA2/51332/2024")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Pending", got.Status)
	assert.Equal(t, "Telangana", got.State)
	assert.False(t, got.LastSynced.IsZero())

	// a brand-new proposal gets no synthesized timeline entry
	entries, err := s.ListTimeline(ctx, "SIA/TG/INFRA2/51332/2024")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpsertProposalUnchanged(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	p := testProposal("SIA/TG/INFRA2/51332/2024", "Pending")
	_, err := s.UpsertProposal(ctx, p)
	require.NoError(t, err)

	before, err := s.GetProposal(ctx, p.ID)
	require.NoError(t, err)

	res, err := s.UpsertProposal(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, model.ChangeUnchanged, res.Kind)

	after, err := s.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, before.LastSynced, after.LastSynced, "unchanged upsert must not touch the row")

	entries, err := s.ListTimeline(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpsertProposalStatusChanged(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	p := testProposal("SIA/TG/INFRA2/51332/2024", "Pending")
	_, err := s.UpsertProposal(ctx, p)
	require.NoError(t, err)

	p.Status = "Approved"
	p.StatusDate = "2024-03-10"
	res, err := s.UpsertProposal(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, model.ChangeStatus, res.Kind)
	assert.Equal(t, "Pending", res.OldStatus)
	assert.Equal(t, "Approved", res.NewStatus)

	got, err := s.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Approved", got.Status)
	assert.Equal(t, "2024-03-10", got.StatusDate)

	entries, err := s.ListTimeline(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Approved", entries[0].Status)
	assert.Contains(t, entries[0].Remarks, "Pending")
}

func TestUpsertProposalStatusFlipSameDayKeepsFullHistory(t *testing.T) {
	s := newTestSQLiteStore(t)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	p := testProposal("EC/1001/2023", "Pending")
	_, err := s.UpsertProposal(ctx, p)
	require.NoError(t, err)

	// Pending -> Approved -> Pending -> Approved, all on one day. The
	// repeated transition is history too.
	for _, status := range []string{"Approved", "Pending", "Approved"} {
		p.Status = status
		res, err := s.UpsertProposal(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, model.ChangeStatus, res.Kind)
	}

	entries, err := s.ListTimeline(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Approved", entries[0].Status)
	assert.Equal(t, "Pending", entries[1].Status)
	assert.Equal(t, "Approved", entries[2].Status)

	// imported entries still dedup among themselves, untouched by the
	// observed rows above
	n, err := s.AppendTimeline(ctx, p.ID, []model.TimelineEntry{{Status: "Approved", Date: "2024-06-01"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.AppendTimeline(ctx, p.ID, []model.TimelineEntry{{Status: "Approved", Date: "2024-06-01"}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUpsertProposalIdempotentRerun(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	batch := []model.Proposal{
		testProposal("EC/1001/2023", "Pending"),
		testProposal("EC/1002/2023", "Approved"),
		testProposal("EC/1003/2023", "Rejected"),
	}
	for _, p := range batch {
		res, err := s.UpsertProposal(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, model.ChangeCreated, res.Kind)
	}

	// identical second pass produces no writes
	for _, p := range batch {
		res, err := s.UpsertProposal(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, model.ChangeUnchanged, res.Kind)
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tables.Proposals)
	assert.Equal(t, 0, stats.Tables.Timelines)
}

func TestReplaceDetailOverwrites(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	p := testProposal("EC/1001/2023", "Pending")
	_, err := s.UpsertProposal(ctx, p)
	require.NoError(t, err)

	require.NoError(t, s.ReplaceDetail(ctx, p.ID, json.RawMessage(`{"form_id": 42}`)))
	require.NoError(t, s.ReplaceDetail(ctx, p.ID, json.RawMessage(`{"form_id": 99}`)))

	raw, err := s.GetDetail(ctx, p.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"form_id": 99}`, string(raw))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Tables.Details)
}

func TestGetDetailMissing(t *testing.T) {
	s := newTestSQLiteStore(t)

	raw, err := s.GetDetail(context.Background(), "EC/nope/2023")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestReplaceSubRecordsDeleteThenInsert(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	p := testProposal("EC/1001/2023", "Pending")
	_, err := s.UpsertProposal(ctx, p)
	require.NoError(t, err)

	docs := []model.SubRecord{
		{Kind: model.SubRecordDocument, Category: "EIA", Name: "report.pdf", URL: "https://example.org/report.pdf"},
		{Kind: model.SubRecordDocument, Category: "KML", Name: "site.kml", URL: "https://example.org/site.kml"},
	}
	require.NoError(t, s.ReplaceSubRecords(ctx, p.ID, model.SubRecordDocument, docs))
	require.NoError(t, s.ReplaceSubRecords(ctx, p.ID, model.SubRecordDocument, docs))

	got, err := s.ListSubRecords(ctx, p.ID, model.SubRecordDocument)
	require.NoError(t, err)
	require.Len(t, got, 2, "re-sync must replace, not accumulate")
	assert.Equal(t, "report.pdf", got[0].Name)
	assert.Equal(t, "site.kml", got[1].Name)
}

func TestReplaceSubRecordsForms(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	p := testProposal("EC/1001/2023", "Pending")
	_, err := s.UpsertProposal(ctx, p)
	require.NoError(t, err)

	forms := []model.SubRecord{
		{Kind: model.SubRecordForm, Category: model.FormCAF, Payload: json.RawMessage(`{"a":1}`)},
		{Kind: model.SubRecordForm, Category: model.FormPartA, Payload: json.RawMessage(`{"b":2}`)},
	}
	require.NoError(t, s.ReplaceSubRecords(ctx, p.ID, model.SubRecordForm, forms))

	got, err := s.ListSubRecords(ctx, p.ID, model.SubRecordForm)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.FormCAF, got[0].Category)
	assert.JSONEq(t, `{"a":1}`, string(got[0].Payload))
}

func TestReplaceSubRecordsRejectsUnknownKind(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.ReplaceSubRecords(context.Background(), "EC/1001/2023", model.SubRecordKind("bogus"), nil)
	require.Error(t, err)
}

func TestAppendTimelineDedup(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	p := testProposal("EC/1001/2023", "Pending")
	_, err := s.UpsertProposal(ctx, p)
	require.NoError(t, err)

	entries := []model.TimelineEntry{
		{Status: "Submitted", Date: "2024-01-15", Remarks: "initial filing"},
		{Status: "Under Review", Date: "2024-02-01"},
	}
	n, err := s.AppendTimeline(ctx, p.ID, entries)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// same entries again are deduplicated on (proposal, status, date)
	n, err = s.AppendTimeline(ctx, p.ID, entries)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// same status on a new date is a new entry
	n, err = s.AppendTimeline(ctx, p.ID, []model.TimelineEntry{
		{Status: "Under Review", Date: "2024-02-15"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.ListTimeline(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Submitted", got[0].Status)
	assert.Equal(t, "initial filing", got[0].Remarks)
}

func TestListIdentifiersAndBaseline(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.UpsertProposal(ctx, testProposal("EC/2/2023", "Approved"))
	require.NoError(t, err)
	_, err = s.UpsertProposal(ctx, testProposal("EC/1/2023", "Pending"))
	require.NoError(t, err)

	ids, err := s.ListIdentifiers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"EC/1/2023", "EC/2/2023"}, ids)

	baseline, err := s.StatusBaseline(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"EC/1/2023": "Pending",
		"EC/2/2023": "Approved",
	}, baseline)
}

func TestListProposalsFiltered(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testProposal("EC/1/2023", "Pending")
	a.State = "Kerala"
	a.Year = 2023
	b := testProposal("EC/2/2024", "Approved")
	b.Year = 2024

	for _, p := range []model.Proposal{a, b} {
		_, err := s.UpsertProposal(ctx, p)
		require.NoError(t, err)
	}

	got, err := s.ListProposals(ctx, ProposalFilter{State: "Kerala"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "EC/1/2023", got[0].ID)

	got, err = s.ListProposals(ctx, ProposalFilter{Year: 2024, Status: "Approved"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "EC/2/2024", got[0].ID)

	got, err = s.ListProposals(ctx, ProposalFilter{Status: "Withdrawn"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetProposalMissing(t *testing.T) {
	s := newTestSQLiteStore(t)

	got, err := s.GetProposal(context.Background(), "EC/nope/2023")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStats(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	p := testProposal("EC/1/2023", "Pending")
	p.Year = 2023
	_, err := s.UpsertProposal(ctx, p)
	require.NoError(t, err)

	q := testProposal("EC/2/2024", "Pending")
	q.Year = 2024
	_, err = s.UpsertProposal(ctx, q)
	require.NoError(t, err)

	require.NoError(t, s.ReplaceDetail(ctx, p.ID, json.RawMessage(`{}`)))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Tables.Proposals)
	assert.Equal(t, 1, stats.Tables.Details)
	require.Len(t, stats.ByYear, 2)
	assert.Equal(t, 2024, stats.ByYear[0].Year)
	require.Len(t, stats.ByStatus, 1)
	assert.Equal(t, StatusCount{Status: "Pending", Count: 2}, stats.ByStatus[0])
	require.NotNil(t, stats.LastSync)
}

func TestSyncRunLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	runID, err := s.StartSyncRun(ctx, "Telangana", 2024)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	sum := model.SyncSummary{Created: 5, Updated: 2, Unchanged: 10, Failed: 1}
	require.NoError(t, s.CompleteSyncRun(ctx, runID, sum))

	runs, err := s.ListSyncRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "Telangana", runs[0].State)
	assert.Equal(t, model.SyncComplete, runs[0].Status)
	assert.Equal(t, sum, runs[0].Summary)
	require.NotNil(t, runs[0].CompletedAt)
}

func TestSyncRunFailure(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	runID, err := s.StartSyncRun(ctx, "", 0)
	require.NoError(t, err)

	require.NoError(t, s.FailSyncRun(ctx, runID, "portal unreachable"))

	runs, err := s.ListSyncRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.SyncFailed, runs[0].Status)
	assert.Equal(t, "portal unreachable", runs[0].Error)

	require.Error(t, s.CompleteSyncRun(ctx, "no-such-run", model.SyncSummary{}))
}

func TestStatusChangeTimelineDate(t *testing.T) {
	s := newTestSQLiteStore(t)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	p := testProposal("EC/1/2023", "Pending")
	_, err := s.UpsertProposal(ctx, p)
	require.NoError(t, err)

	p.Status = "Approved"
	_, err = s.UpsertProposal(ctx, p)
	require.NoError(t, err)

	entries, err := s.ListTimeline(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-06-01", entries[0].Date)
}
