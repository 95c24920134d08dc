package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/opengov-in/parivesh-sync/internal/geo"
	"github.com/opengov-in/parivesh-sync/internal/model"
	"github.com/opengov-in/parivesh-sync/internal/portal"
	"github.com/opengov-in/parivesh-sync/internal/store"
)

// StateLister serves the state master list. *portal.Client satisfies it.
type StateLister interface {
	States(ctx context.Context) ([]portal.State, error)
}

// Server exposes the synced proposal data over HTTP.
type Server struct {
	store  store.Store
	states StateLister
	log    *zap.Logger
}

// NewServer creates a read-only API server. states may be nil, in which
// case /states responds 503.
func NewServer(st store.Store, states StateLister) *Server {
	return &Server{
		store:  st,
		states: states,
		log:    zap.L().With(zap.String("component", "api")),
	}
}

// Router builds the chi routing tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/proposals", s.handleListProposals)
	// Proposal identifiers contain slashes, so subresources key on ?id=.
	r.Route("/proposal", func(r chi.Router) {
		r.Get("/", s.handleGetProposal)
		r.Get("/timeline", s.handleTimeline)
		r.Get("/documents", s.handleDocuments)
		r.Get("/forms", s.handleForms)
		r.Get("/location", s.handleLocation)
	})
	r.Get("/states", s.handleStates)
	r.Get("/runs", s.handleRuns)

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.log.Error("stats query failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ProposalFilter{
		State:  q.Get("state"),
		Status: q.Get("status"),
	}
	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "year must be an integer")
			return
		}
		filter.Year = year
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		filter.Offset = offset
	}

	proposals, err := s.store.ListProposals(r.Context(), filter)
	if err != nil {
		s.log.Error("list proposals failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if proposals == nil {
		proposals = []model.Proposal{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count": len(proposals),
		"data":  proposals,
	})
}

// requireID extracts the ?id= parameter or responds 400.
func (s *Server) requireID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "id parameter is required")
		return "", false
	}
	return id, true
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}

	p, err := s.store.GetProposal(r.Context(), id)
	if err != nil {
		s.log.Error("get proposal failed", zap.String("proposal", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if p == nil {
		s.writeError(w, http.StatusNotFound, "proposal not found")
		return
	}

	detail, err := s.store.GetDetail(r.Context(), id)
	if err != nil {
		s.log.Warn("detail lookup failed", zap.String("proposal", id), zap.Error(err))
	}

	resp := map[string]any{"proposal": p}
	if len(detail) > 0 {
		resp["detail"] = detail
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}

	entries, err := s.store.ListTimeline(r.Context(), id)
	if err != nil {
		s.log.Error("timeline query failed", zap.String("proposal", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if entries == nil {
		entries = []model.TimelineEntry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count": len(entries),
		"data":  entries,
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	s.handleSubRecords(w, r, model.SubRecordDocument)
}

func (s *Server) handleForms(w http.ResponseWriter, r *http.Request) {
	s.handleSubRecords(w, r, model.SubRecordForm)
}

func (s *Server) handleSubRecords(w http.ResponseWriter, r *http.Request, kind model.SubRecordKind) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}

	recs, err := s.store.ListSubRecords(r.Context(), id, kind)
	if err != nil {
		s.log.Error("sub-record query failed",
			zap.String("proposal", id),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if recs == nil {
		recs = []model.SubRecord{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count": len(recs),
		"data":  recs,
	})
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}

	recs, err := s.store.ListSubRecords(r.Context(), id, model.SubRecordLocation)
	if err != nil {
		s.log.Error("location query failed", zap.String("proposal", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if len(recs) == 0 {
		s.writeError(w, http.StatusNotFound, "no location stored for proposal")
		return
	}

	payload := recs[0].Payload
	resp := map[string]any{"location": payload}
	if summary, err := geo.Summarize(payload); err == nil {
		resp["summary"] = summary
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	if s.states == nil {
		s.writeError(w, http.StatusServiceUnavailable, "state list not configured")
		return
	}

	states, err := s.states.States(r.Context())
	if err != nil {
		s.log.Error("state list failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "state list unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count": len(states),
		"data":  states,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	runs, err := s.store.ListSyncRuns(r.Context(), limit)
	if err != nil {
		s.log.Error("runs query failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if runs == nil {
		runs = []model.SyncRun{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count": len(runs),
		"data":  runs,
	})
}
