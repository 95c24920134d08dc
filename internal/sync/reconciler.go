package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/opengov-in/parivesh-sync/internal/model"
	"github.com/opengov-in/parivesh-sync/internal/normalize"
	"github.com/opengov-in/parivesh-sync/internal/portal"
	"github.com/opengov-in/parivesh-sync/internal/store"
)

// Orchestrator fetches the second-tier data for a single proposal.
// *portal.Client satisfies it.
type Orchestrator interface {
	Detail(ctx context.Context, proposalNo string) (json.RawMessage, error)
	Timeline(ctx context.Context, proposalNo string) ([]portal.TimelineItem, error)
	Location(ctx context.Context, formID int64) (json.RawMessage, error)
	Forms(ctx context.Context, proposalNo string) (portal.FormSet, error)
	Documents(ctx context.Context, proposalNo string) ([]portal.Document, error)
}

// Options tunes a reconcile pass.
type Options struct {
	// FetchDetails enables the second-tier fetches (detail blob, timeline,
	// location, forms, documents) for created and status-changed proposals.
	FetchDetails bool
	// Force re-fetches details even for unchanged proposals.
	Force bool
	// Pace is slept after each proposal that caused portal traffic.
	Pace time.Duration
}

// Failure records one record that could not be processed.
type Failure struct {
	ID  string `json:"id"`
	Err string `json:"error"`
}

// Report summarizes a reconcile pass over a batch of search records.
type Report struct {
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Unchanged int       `json:"unchanged"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Summary converts the report to the persisted sync-run counters.
func (r *Report) Summary() model.SyncSummary {
	return model.SyncSummary{
		Created:   r.Created,
		Updated:   r.Updated,
		Unchanged: r.Unchanged,
		Failed:    r.Failed,
	}
}

// Reconciler folds batches of raw search records into the store.
type Reconciler struct {
	store store.Store
	orch  Orchestrator
	log   *zap.Logger
	now   func() time.Time

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// NewReconciler creates a Reconciler. orch may be nil when details are
// never fetched.
func NewReconciler(st store.Store, orch Orchestrator) *Reconciler {
	return &Reconciler{
		store: st,
		orch:  orch,
		log:   zap.L().With(zap.String("component", "reconciler")),
		now:   func() time.Time { return time.Now().UTC() },
		sleep: func(ctx context.Context, d time.Duration) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
			case <-t.C:
			}
		},
	}
}

// Reconcile normalizes the raw records, classifies each against the stored
// baseline, and applies the resulting writes. A bad record fails alone;
// only store-wide errors abort the pass.
func (r *Reconciler) Reconcile(ctx context.Context, raws []normalize.RawRecord, opts Options) (*Report, error) {
	baseline, err := r.store.StatusBaseline(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: load baseline")
	}

	report := &Report{}

	// Normalize up front so the batch can be deduplicated before any write.
	// When the same identifier appears more than once the later record wins,
	// keeping the position it first appeared at.
	order := make([]string, 0, len(raws))
	byID := make(map[string]model.Proposal, len(raws))
	now := r.now()
	for i, raw := range raws {
		p, err := normalize.Normalize(raw, now)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{
				ID:  "",
				Err: eris.ToString(eris.Wrapf(err, "record %d", i), false),
			})
			r.log.Warn("skipping malformed record", zap.Int("index", i), zap.Error(err))
			continue
		}
		if _, seen := byID[p.ID]; !seen {
			order = append(order, p.ID)
		}
		byID[p.ID] = p
	}

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return report, eris.Wrap(err, "reconcile: canceled")
		}

		p := byID[id]

		// The baseline answers the common case without touching the store.
		if status, known := baseline[id]; known && status == p.Status {
			report.Unchanged++
			if opts.FetchDetails && opts.Force {
				r.enrich(ctx, id)
				if opts.Pace > 0 {
					r.sleep(ctx, opts.Pace)
				}
			}
			continue
		}

		res, err := r.store.UpsertProposal(ctx, p)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{ID: id, Err: eris.ToString(err, false)})
			r.log.Warn("upsert failed", zap.String("proposal", id), zap.Error(err))
			continue
		}

		switch res.Kind {
		case model.ChangeCreated:
			report.Created++
			r.log.Info("proposal created", zap.String("proposal", id), zap.String("status", p.Status))
		case model.ChangeStatus:
			report.Updated++
			r.log.Info("status changed",
				zap.String("proposal", id),
				zap.String("from", res.OldStatus),
				zap.String("to", res.NewStatus),
			)
		case model.ChangeUnchanged:
			report.Unchanged++
		}

		needDetails := opts.FetchDetails && (opts.Force || res.Kind != model.ChangeUnchanged)
		if !needDetails {
			continue
		}

		r.enrich(ctx, id)
		if opts.Pace > 0 {
			r.sleep(ctx, opts.Pace)
		}
	}

	return report, nil
}

// enrich pulls the second-tier data for one proposal. Each fetch fails
// independently; a missing form or location never blocks the rest.
func (r *Reconciler) enrich(ctx context.Context, id string) {
	if r.orch == nil {
		return
	}
	log := r.log.With(zap.String("proposal", id))

	detail, err := r.orch.Detail(ctx, id)
	if err != nil {
		log.Warn("detail fetch failed", zap.Error(err))
	} else if len(detail) > 0 {
		if err := r.store.ReplaceDetail(ctx, id, detail); err != nil {
			log.Warn("detail store failed", zap.Error(err))
		}
		if formID, ok := portal.ExtractFormID(detail); ok {
			r.enrichLocation(ctx, log, id, formID)
		} else {
			log.Debug("no form id in detail blob")
		}
	}

	if items, err := r.orch.Timeline(ctx, id); err != nil {
		log.Warn("timeline fetch failed", zap.Error(err))
	} else if len(items) > 0 {
		entries := make([]model.TimelineEntry, 0, len(items))
		for _, it := range items {
			entries = append(entries, model.TimelineEntry{
				Status:  it.Status,
				Date:    it.Date,
				Remarks: it.Remarks,
			})
		}
		n, err := r.store.AppendTimeline(ctx, id, entries)
		if err != nil {
			log.Warn("timeline store failed", zap.Error(err))
		} else if n > 0 {
			log.Debug("timeline entries added", zap.Int("count", n))
		}
	}

	if forms, err := r.orch.Forms(ctx, id); err != nil {
		log.Warn("forms fetch failed", zap.Error(err))
	} else if len(forms) > 0 {
		recs := make([]model.SubRecord, 0, len(forms))
		for _, kind := range model.FormKinds {
			payload, ok := forms[kind]
			if !ok {
				continue
			}
			recs = append(recs, model.SubRecord{
				Kind:     model.SubRecordForm,
				Category: kind,
				Payload:  payload,
			})
		}
		if err := r.store.ReplaceSubRecords(ctx, id, model.SubRecordForm, recs); err != nil {
			log.Warn("forms store failed", zap.Error(err))
		}
	}

	if docs, err := r.orch.Documents(ctx, id); err != nil {
		log.Warn("documents fetch failed", zap.Error(err))
	} else if len(docs) > 0 {
		recs := make([]model.SubRecord, 0, len(docs))
		for _, d := range docs {
			recs = append(recs, model.SubRecord{
				Kind:     model.SubRecordDocument,
				Category: d.Type,
				Name:     d.Name,
				URL:      d.URL,
			})
		}
		if err := r.store.ReplaceSubRecords(ctx, id, model.SubRecordDocument, recs); err != nil {
			log.Warn("documents store failed", zap.Error(err))
		}
	}
}

func (r *Reconciler) enrichLocation(ctx context.Context, log *zap.Logger, id string, formID int64) {
	loc, err := r.orch.Location(ctx, formID)
	if err != nil {
		log.Warn("location fetch failed", zap.Int64("form_id", formID), zap.Error(err))
		return
	}
	if len(loc) == 0 {
		return
	}
	rec := model.SubRecord{Kind: model.SubRecordLocation, Payload: loc}
	if err := r.store.ReplaceSubRecords(ctx, id, model.SubRecordLocation, []model.SubRecord{rec}); err != nil {
		log.Warn("location store failed", zap.Error(err))
	}
}
