package sightings

import (
	"context"
	"sync"
	"time"

	"github.com/findrapp/findr/internal/datastore/entities"
	"github.com/findrapp/findr/internal/datastore/repository"
	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/logger"
	"github.com/findrapp/findr/internal/observability/metrics"
)

// Report summarizes one reconciliation pass.
type Report struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
}

// Reconciler pushes queued local sightings to the hosted store.
type Reconciler struct {
	svc *Service
	mu  sync.Mutex // one pass at a time
}

// NewReconciler creates a Reconciler over svc's queue and store.
func NewReconciler(svc *Service) *Reconciler {
	return &Reconciler{svc: svc}
}

// Run retries every queued sighting once. Each success is removed from the
// queue and replaces its local copy in the collection. It returns
// ErrNotConfigured when there is no hosted store to sync to.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.svc
	if s.pending == nil {
		return Report{}, nil
	}
	if !s.Configured() {
		return Report{}, notConfigured("reconcile")
	}

	queued, err := s.pending.List(ctx)
	if err != nil {
		return Report{}, err
	}

	var report Report
	for i := range queued {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p := &queued[i]
		report.Attempted++
		if err := r.sync(ctx, p); err != nil {
			report.Failed++
			if s.metrics != nil {
				s.metrics.RecordReconciled(metrics.StatusError)
			}
			s.log.Warn("pending sighting not synced",
				logger.String("local_id", p.LocalID),
				logger.Int("attempts", p.Attempts+1),
				logger.Error(err))
			if rerr := s.pending.RecordFailure(ctx, p.LocalID, err.Error(), s.now()); rerr != nil {
				s.log.Error("failed to record sync failure", logger.String("local_id", p.LocalID), logger.Error(rerr))
			}
			continue
		}
		report.Synced++
		if s.metrics != nil {
			s.metrics.RecordReconciled(metrics.StatusSuccess)
		}
	}

	s.refreshPendingGauge(ctx)
	if report.Attempted > 0 {
		s.log.Info("reconciliation finished",
			logger.Int("attempted", report.Attempted),
			logger.Int("synced", report.Synced),
			logger.Int("failed", report.Failed))
	}
	return report, nil
}

// sync uploads and inserts one queued sighting, keeping its capture time.
func (r *Reconciler) sync(ctx context.Context, p *entities.PendingSighting) error {
	s := r.svc
	start := s.now()
	d, ai := draftOf(p)

	var photoRef string
	if p.ImageRef != nil {
		photoRef = *p.ImageRef
	}
	imageURI := s.uploadOrKeep(ctx, d.UserID, photoRef)

	var row Row
	if err := s.store.Insert(ctx, s.cfg.Table, newInsertRow(d, ai, imageURI, p.Timestamp), &row); err != nil {
		s.record(metrics.OpReconcile, metrics.StatusError, start)
		return err
	}
	synced := row.ToSighting()
	s.record(metrics.OpReconcile, metrics.StatusSuccess, start)

	if err := s.pending.Delete(ctx, p.LocalID); err != nil && !errors.Is(err, repository.ErrPendingSightingNotFound) {
		// The row exists remotely now; a leftover queue entry would duplicate it.
		s.log.Error("synced sighting still queued",
			logger.String("local_id", p.LocalID),
			logger.String("id", synced.ID),
			logger.Error(err))
	}

	if s.collection != nil && !s.collection.Replace(p.LocalID, synced) {
		s.collection.Prepend(synced)
	}
	s.publish(ctx, Event{Event: EventSightingCreated, Sighting: synced, LocalID: p.LocalID})
	return nil
}

// Loop runs a pass immediately and then every interval until ctx is done.
func (r *Reconciler) Loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Run(ctx); err != nil && !errors.Is(err, ErrNotConfigured) && ctx.Err() == nil {
			r.svc.log.Warn("reconciliation pass failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
