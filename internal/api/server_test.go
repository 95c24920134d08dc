package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengov-in/parivesh-sync/internal/model"
	"github.com/opengov-in/parivesh-sync/internal/portal"
	"github.com/opengov-in/parivesh-sync/internal/store"
)

type fakeStateLister struct {
	states []portal.State
	err    error
}

func (f *fakeStateLister) States(ctx context.Context) ([]portal.State, error) {
	return f.states, f.err
}

func newTestServer(t *testing.T) (*httptest.Server, *store.SQLiteStore) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	lister := &fakeStateLister{states: []portal.State{{ID: 36, Name: "Telangana", Code: "TG"}}}
	srv := httptest.NewServer(NewServer(st, lister).Router())
	t.Cleanup(srv.Close)
	return srv, st
}

func getJSON(t *testing.T, rawURL string, out any) int {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func seedProposal(t *testing.T, st *store.SQLiteStore, id, status string) {
	t.Helper()
	_, err := st.UpsertProposal(context.Background(), model.Proposal{
		ID:     id,
		State:  "Telangana",
		Status: status,
		Year:   2024,
	})
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	code := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestListProposals(t *testing.T) {
	srv, st := newTestServer(t)
	seedProposal(t, st, "EC/1/2024", "Pending")
	seedProposal(t, st, "EC/2/2024", "Approved")

	var body struct {
		Count int              `json:"count"`
		Data  []model.Proposal `json:"data"`
	}
	code := getJSON(t, srv.URL+"/proposals?status=Pending", &body)
	assert.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "EC/1/2024", body.Data[0].ID)

	code = getJSON(t, srv.URL+"/proposals?year=nope", &body)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetProposal(t *testing.T) {
	srv, st := newTestServer(t)
	seedProposal(t, st, "SIA/TG/INFRA2/51332/2024", "Pending")
	require.NoError(t, st.ReplaceDetail(context.Background(), "SIA/TG/INFRA2/51332/2024",
		json.RawMessage(`{"form_id": 42}`)))

	var body struct {
		Proposal model.Proposal  `json:"proposal"`
		Detail   json.RawMessage `json:"detail"`
	}
	code := getJSON(t, srv.URL+"/proposal?id="+url.QueryEscape("SIA/TG/INFRA2/51332/2024"), &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "SIA/TG/INFRA2/51332/2024", body.Proposal.ID)
	assert.JSONEq(t, `{"form_id": 42}`, string(body.Detail))
}

func TestGetProposalNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	code := getJSON(t, srv.URL+"/proposal?id=EC/nope/2024", &body)
	assert.Equal(t, http.StatusNotFound, code)

	code = getJSON(t, srv.URL+"/proposal", &body)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTimelineEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	seedProposal(t, st, "EC/1/2024", "Pending")
	_, err := st.AppendTimeline(context.Background(), "EC/1/2024", []model.TimelineEntry{
		{Status: "Submitted", Date: "2024-01-15"},
	})
	require.NoError(t, err)

	var body struct {
		Count int                   `json:"count"`
		Data  []model.TimelineEntry `json:"data"`
	}
	code := getJSON(t, srv.URL+"/proposal/timeline?id="+url.QueryEscape("EC/1/2024"), &body)
	assert.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "Submitted", body.Data[0].Status)
}

func TestDocumentsEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	seedProposal(t, st, "EC/1/2024", "Pending")
	require.NoError(t, st.ReplaceSubRecords(context.Background(), "EC/1/2024", model.SubRecordDocument,
		[]model.SubRecord{{Kind: model.SubRecordDocument, Category: "EIA", Name: "r.pdf", URL: "https://x/r.pdf"}}))

	var body struct {
		Count int               `json:"count"`
		Data  []model.SubRecord `json:"data"`
	}
	code := getJSON(t, srv.URL+"/proposal/documents?id="+url.QueryEscape("EC/1/2024"), &body)
	assert.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "r.pdf", body.Data[0].Name)
}

func TestLocationEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	seedProposal(t, st, "EC/1/2024", "Pending")
	require.NoError(t, st.ReplaceSubRecords(context.Background(), "EC/1/2024", model.SubRecordLocation,
		[]model.SubRecord{{
			Kind:    model.SubRecordLocation,
			Payload: json.RawMessage(`{"type": "Point", "coordinates": [78.4, 17.4]}`),
		}}))

	var body struct {
		Location json.RawMessage `json:"location"`
		Summary  struct {
			Features int      `json:"features"`
			Types    []string `json:"types"`
		} `json:"summary"`
	}
	code := getJSON(t, srv.URL+"/proposal/location?id="+url.QueryEscape("EC/1/2024"), &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, body.Summary.Features)
	assert.Equal(t, []string{"Point"}, body.Summary.Types)

	var errBody map[string]string
	code = getJSON(t, srv.URL+"/proposal/location?id=EC/other/2024", &errBody)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStatesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var body struct {
		Count int            `json:"count"`
		Data  []portal.State `json:"data"`
	}
	code := getJSON(t, srv.URL+"/states", &body)
	assert.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "Telangana", body.Data[0].Name)
}

func TestStatsAndRuns(t *testing.T) {
	srv, st := newTestServer(t)
	seedProposal(t, st, "EC/1/2024", "Pending")

	runID, err := st.StartSyncRun(context.Background(), "36", 2024)
	require.NoError(t, err)
	require.NoError(t, st.CompleteSyncRun(context.Background(), runID, model.SyncSummary{Created: 1}))

	var stats store.Stats
	code := getJSON(t, srv.URL+"/stats", &stats)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, stats.Tables.Proposals)

	var runs struct {
		Count int             `json:"count"`
		Data  []model.SyncRun `json:"data"`
	}
	code = getJSON(t, srv.URL+"/runs", &runs)
	assert.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, runs.Count)
	assert.Equal(t, model.SyncComplete, runs.Data[0].Status)
}
