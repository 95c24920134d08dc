package sync

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/opengov-in/parivesh-sync/internal/normalize"
	"github.com/opengov-in/parivesh-sync/internal/portal"
	"github.com/opengov-in/parivesh-sync/internal/store"
)

// Searcher pages through the portal's advance search. *portal.Client
// satisfies it.
type Searcher interface {
	SearchAll(ctx context.Context, q portal.SearchQuery) ([]map[string]any, error)
}

// Service runs a full sync pass: search, reconcile, and run bookkeeping.
type Service struct {
	store    store.Store
	searcher Searcher
	rec      *Reconciler
	log      *zap.Logger
}

// NewService wires the sync pipeline together.
func NewService(st store.Store, searcher Searcher, rec *Reconciler) *Service {
	return &Service{
		store:    st,
		searcher: searcher,
		rec:      rec,
		log:      zap.L().With(zap.String("component", "sync")),
	}
}

// SyncState searches all proposals for one state and year and reconciles
// them into the store. The pass is recorded in sync_runs either way.
func (s *Service) SyncState(ctx context.Context, stateID string, year int, opts Options) (*Report, error) {
	runID, err := s.store.StartSyncRun(ctx, stateID, year)
	if err != nil {
		return nil, eris.Wrap(err, "sync: start run")
	}

	s.log.Info("sync started",
		zap.String("run", runID),
		zap.String("state", stateID),
		zap.Int("year", year),
	)

	records, err := s.searcher.SearchAll(ctx, portal.SearchQuery{StateID: stateID, Year: year})
	if err != nil {
		s.failRun(runID, err)
		return nil, eris.Wrap(err, "sync: search")
	}

	raws := make([]normalize.RawRecord, len(records))
	for i, rec := range records {
		raws[i] = normalize.RawRecord(rec)
	}

	report, err := s.rec.Reconcile(ctx, raws, opts)
	if err != nil {
		s.failRun(runID, err)
		return nil, err
	}

	if err := s.store.CompleteSyncRun(ctx, runID, report.Summary()); err != nil {
		return report, eris.Wrap(err, "sync: complete run")
	}

	s.log.Info("sync complete",
		zap.String("run", runID),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// failRun marks the run failed on its own context: the pass often dies
// with the caller's context, and the bookkeeping write still has to land.
func (s *Service) failRun(runID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.FailSyncRun(ctx, runID, eris.ToString(cause, false)); err != nil {
		s.log.Error("could not mark run failed", zap.String("run", runID), zap.Error(err))
	}
}
