package identity

import (
	"context"
	"net/http"
	"sync"

	"github.com/findrapp/findr/internal/datastore/entities"
	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/logger"
	"github.com/findrapp/findr/internal/observability/metrics"
	"github.com/findrapp/findr/internal/supabase"
)

// MirrorReport summarizes one mirror pass.
type MirrorReport struct {
	Attempted int `json:"attempted"`
	Mirrored  int `json:"mirrored"`
	Failed    int `json:"failed"`
}

// Mirror retries remote creation of accounts that are not mirrored yet.
type Mirror struct {
	svc *Service
	mu  sync.Mutex
}

// NewMirror creates a Mirror over svc's credentials and store.
func NewMirror(svc *Service) *Mirror {
	return &Mirror{svc: svc}
}

// Reconcile re-attempts every pending or failed credential once.
func (m *Mirror) Reconcile(ctx context.Context) (MirrorReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.svc
	if !s.store.IsConfigured() {
		return MirrorReport{}, errors.New(supabase.ErrNotConfigured).
			Component("identity").
			Category(errors.CategoryNotConfigured).
			Context("operation", metrics.OpMirror).
			Build()
	}

	creds, err := s.creds.ListBySyncStatus(ctx, entities.SyncPending, entities.SyncFailed)
	if err != nil {
		return MirrorReport{}, s.storeFailure(metrics.OpMirror, err)
	}

	var report MirrorReport
	for i := range creds {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		c := &creds[i]
		report.Attempted++

		now := s.now()
		id, err := m.mirror(ctx, c)
		if err != nil {
			report.Failed++
			s.recordMirror(entities.SyncFailed)
			s.log.Warn("account still not mirrored", logger.String("username", c.Username), logger.Error(err))
			if uerr := s.creds.UpdateSync(ctx, c.Email, entities.SyncFailed, nil, err.Error(), now); uerr != nil {
				s.log.Error("failed to record mirror failure", logger.Error(uerr))
			}
			continue
		}

		report.Mirrored++
		s.recordMirror(entities.SyncMirrored)
		if uerr := s.creds.UpdateSync(ctx, c.Email, entities.SyncMirrored, &id, "", now); uerr != nil {
			s.log.Error("failed to record mirrored account", logger.Error(uerr))
		}
		m.adoptRemoteID(ctx, c.Email, id)
	}

	if report.Attempted > 0 {
		s.log.Info("account mirror finished",
			logger.Int("attempted", report.Attempted),
			logger.Int("mirrored", report.Mirrored),
			logger.Int("failed", report.Failed))
	}
	return report, nil
}

// mirror creates the remote row. A conflict means an earlier attempt reached
// the store, so the existing row is adopted.
func (m *Mirror) mirror(ctx context.Context, c *entities.Credential) (string, error) {
	s := m.svc
	id, err := s.createRemote(ctx, c.Email, c.Username, c.RemoteHash)
	if err == nil {
		return id, nil
	}
	if !supabase.IsStatus(err, http.StatusConflict) {
		return "", err
	}
	existing, ok := s.remoteByEmail(ctx, c.Email)
	if !ok {
		return "", err
	}
	return existing.ID, nil
}

// adoptRemoteID moves a signed in offline account to its new remote id.
func (m *Mirror) adoptRemoteID(ctx context.Context, email, id string) {
	s := m.svc
	u, ok, err := s.sessions.load(ctx)
	if err != nil || !ok || u.Email != email || u.ID == id {
		return
	}
	u.ID = id
	if err := s.sessions.save(ctx, u); err != nil {
		s.log.Warn("failed to update session id", logger.Error(err))
	}
}
