package sightings

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/findrapp/findr/internal/classifier"
	"github.com/findrapp/findr/internal/conf"
	"github.com/findrapp/findr/internal/datastore/repository"
	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/httpclient"
	"github.com/findrapp/findr/internal/logger"
	"github.com/findrapp/findr/internal/observability/metrics"
	"github.com/findrapp/findr/internal/supabase"
)

const (
	DefaultTable  = "creature_sightings"
	DefaultBucket = "animals"

	// DefaultRadiusKm is used by InRadius when the radius is not positive.
	DefaultRadiusKm = 10.0

	// kmPerDegree approximates one degree of latitude.
	kmPerDegree = 111.0

	maxPhotoBytes = 20 << 20
)

// Fallback reasons.
const (
	reasonUnconfigured = "unconfigured"
	reasonInsert       = "insert_failed"
)

// Config names the hosted table and bucket.
type Config struct {
	Table  string
	Bucket string
}

// Service creates and queries sightings. Safe for concurrent use.
type Service struct {
	store      *supabase.Client
	pending    repository.PendingSightingRepository
	cfg        Config
	fs         afero.Fs
	http       *httpclient.Client
	collection *Collection
	publisher  Publisher
	topic      string
	metrics    *metrics.SightingsMetrics
	log        logger.Logger
	now        func() time.Time

	seedOnce sync.Once
}

// Option configures a Service.
type Option func(*Service)

// WithFs sets the filesystem local photo references are read from.
func WithFs(fs afero.Fs) Option {
	return func(s *Service) { s.fs = fs }
}

// WithHTTPClient sets the client used to fetch remote photo references.
func WithHTTPClient(hc *httpclient.Client) Option {
	return func(s *Service) { s.http = hc }
}

// WithCollection keeps c in step with every successful write.
func WithCollection(c *Collection) Option {
	return func(s *Service) { s.collection = c }
}

// WithPublisher publishes a created event to topic after each remote create.
func WithPublisher(p Publisher, topic string) Option {
	return func(s *Service) {
		s.publisher = p
		s.topic = topic
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.SightingsMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. A nil store behaves as unconfigured and a nil
// pending repository disables the local queue.
func NewService(store *supabase.Client, pending repository.PendingSightingRepository, cfg Config, opts ...Option) *Service {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	s := &Service{
		store:   store,
		pending: pending,
		cfg:     cfg,
		fs:      afero.NewOsFs(),
		log:     logger.NewNopLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.http == nil {
		s.http = httpclient.New(nil)
	}
	return s
}

// ConfigFromSettings extracts the table and bucket names.
func ConfigFromSettings(s *conf.SupabaseSettings) Config {
	return Config{Table: s.SightingsTable, Bucket: s.Bucket}
}

// Configured reports whether a hosted store is available.
func (s *Service) Configured() bool {
	return s.store.IsConfigured()
}

// Collection returns the attached collection, or nil.
func (s *Service) Collection() *Collection {
	return s.collection
}

// Create stores a new sighting. The photo, when given, is uploaded first; an
// upload failure keeps the local reference. When the hosted store is
// unconfigured or the insert fails, a local sighting is returned instead and
// queued for reconciliation. Create only fails when ctx is done.
func (s *Service) Create(ctx context.Context, d Draft, result *classifier.Result, photoRef string) (Sighting, error) {
	start := s.now()
	ai := fromClassification(result)

	if !s.Configured() {
		return s.fallback(ctx, d, ai, photoRef, reasonUnconfigured, nil)
	}

	imageURI := s.uploadOrKeep(ctx, d.UserID, photoRef)

	var row Row
	err := s.store.Insert(ctx, s.cfg.Table, newInsertRow(d, ai, imageURI, start), &row)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Sighting{}, ctxErr
		}
		return s.fallback(ctx, d, ai, photoRef, reasonInsert, err)
	}

	created := row.ToSighting()
	s.record(metrics.OpCreate, metrics.StatusSuccess, start)
	s.log.Info("sighting created",
		logger.String("id", created.ID),
		logger.String("user_id", created.UserID),
		logger.String("name", created.Name))

	if s.collection != nil {
		s.collection.Prepend(created)
	}
	s.publishCreated(ctx, created)
	return created, nil
}

// uploadOrKeep uploads the photo and returns its public URL, or the local
// reference when the upload cannot be done.
func (s *Service) uploadOrKeep(ctx context.Context, userID, photoRef string) *string {
	if photoRef == "" {
		return nil
	}
	url, err := s.upload(ctx, userID, photoRef)
	if err != nil {
		s.log.Warn("photo upload failed, keeping local reference",
			logger.String("user_id", userID),
			logger.Error(err))
		return &photoRef
	}
	return &url
}

func (s *Service) upload(ctx context.Context, userID, photoRef string) (string, error) {
	if isRemoteRef(photoRef) && s.store.IsPublicURL(photoRef) {
		return photoRef, nil
	}
	start := s.now()
	data, err := s.readPhoto(ctx, photoRef)
	if err != nil {
		s.record(metrics.OpUpload, metrics.StatusError, start)
		return "", err
	}
	path := ObjectPath(userID, start, photoRef)
	if err := s.store.Upload(ctx, s.cfg.Bucket, path, data, ContentType(Extension(photoRef))); err != nil {
		s.record(metrics.OpUpload, metrics.StatusError, start)
		return "", err
	}
	s.record(metrics.OpUpload, metrics.StatusSuccess, start)
	return s.store.PublicURL(s.cfg.Bucket, path), nil
}

func isRemoteRef(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// readPhoto loads the bytes behind a photo reference.
func (s *Service) readPhoto(ctx context.Context, ref string) ([]byte, error) {
	if isRemoteRef(ref) {
		resp, err := s.http.Get(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("fetch photo: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("fetch photo: unexpected status %d", resp.StatusCode)
		}
		return httpclient.ReadBody(resp, maxPhotoBytes)
	}

	path := strings.TrimPrefix(ref, "file://")
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("read photo: %w", err)).
			Component("sightings").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	return data, nil
}

// seedLocalIDs keeps new local ids above the ones still queued from an
// earlier run, which may have had a clock ahead of this one.
func (s *Service) seedLocalIDs(ctx context.Context) {
	if s.pending == nil {
		return
	}
	queued, err := s.pending.List(ctx)
	if err != nil {
		s.log.Warn("failed to read queued ids", logger.Error(err))
		return
	}
	for i := range queued {
		localIDs.observe(queued[i].LocalID)
	}
}

// fallback synthesizes a local sighting and queues it.
func (s *Service) fallback(ctx context.Context, d Draft, ai aiFields, photoRef, reason string, cause error) (Sighting, error) {
	s.seedOnce.Do(func() { s.seedLocalIDs(ctx) })
	now := s.now()
	local := Sighting{
		ID:                 localIDs.next(now),
		UserID:             d.UserID,
		Name:               d.Name,
		Type:               d.Type,
		Latitude:           d.Latitude,
		Longitude:          d.Longitude,
		Timestamp:          now,
		Confidence:         ai.confidence,
		Description:        ai.description,
		Species:            ai.species,
		CreatureType:       ai.creatureType,
		KeyCharacteristics: ai.keyCharacteristics,
		Rarity:             ai.rarity,
		IsAnimal:           ai.isAnimal,
		ImageURI:           nonEmpty(&photoRef),
		Origin:             OriginLocalPending,
	}

	fields := []logger.Field{
		logger.String("local_id", local.ID),
		logger.String("reason", reason),
	}
	if cause != nil {
		fields = append(fields, logger.Error(cause))
	}
	s.log.Warn("hosted store unavailable, saved sighting locally", fields...)

	if s.pending != nil {
		if err := s.pending.Save(ctx, toPending(local)); err != nil {
			s.log.Error("failed to queue local sighting",
				logger.String("local_id", local.ID),
				logger.Error(err))
		}
		s.refreshPendingGauge(ctx)
	}
	if s.metrics != nil {
		s.metrics.RecordFallback(reason)
	}
	s.record(metrics.OpCreate, metrics.StatusFallback, now)

	if s.collection != nil {
		s.collection.Prepend(local)
	}
	return local, nil
}

// Update applies patch to the sighting and returns the stored record.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (Sighting, error) {
	start := s.now()
	if !s.Configured() {
		return Sighting{}, notConfigured("update")
	}
	if patch.IsEmpty() {
		return Sighting{}, errors.Newf("update of sighting %s has no fields", id).
			Component("sightings").
			Category(errors.CategoryValidation).
			Build()
	}

	var row Row
	err := s.store.Update(ctx, s.cfg.Table, supabase.NewQuery().Eq("id", id), patch.columns(), &row)
	if err != nil {
		s.record(metrics.OpUpdate, metrics.StatusError, start)
		if supabase.IsNoRows(err) {
			return Sighting{}, ErrSightingNotFound
		}
		return Sighting{}, storeError("update", err)
	}

	updated := row.ToSighting()
	s.record(metrics.OpUpdate, metrics.StatusSuccess, start)
	if s.collection != nil {
		s.collection.Replace(id, updated)
	}
	return updated, nil
}

// Delete removes the sighting. A sighting still waiting in the local queue
// was never stored remotely, so dropping it from the queue is enough and works
// without a hosted store.
func (s *Service) Delete(ctx context.Context, id string) error {
	start := s.now()
	if s.pending != nil {
		err := s.pending.Delete(ctx, id)
		switch {
		case err == nil:
			s.refreshPendingGauge(ctx)
			s.record(metrics.OpDelete, metrics.StatusSuccess, start)
			if s.collection != nil {
				s.collection.Remove(id)
			}
			return nil
		case !errors.Is(err, repository.ErrPendingSightingNotFound):
			s.record(metrics.OpDelete, metrics.StatusError, start)
			return errors.New(err).
				Component("sightings").
				Category(errors.CategoryDatabase).
				Context("operation", "delete").
				Build()
		}
	}
	if !s.Configured() {
		return notConfigured("delete")
	}
	if err := s.store.Delete(ctx, s.cfg.Table, supabase.NewQuery().Eq("id", id)); err != nil {
		s.record(metrics.OpDelete, metrics.StatusError, start)
		return storeError("delete", err)
	}
	s.record(metrics.OpDelete, metrics.StatusSuccess, start)
	if s.collection != nil {
		s.collection.Remove(id)
	}
	return nil
}

// ListByOwner returns the owner's sightings, newest first. It is empty when
// the hosted store is unconfigured.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Sighting, error) {
	return s.list(ctx, metrics.OpListByOwner, s.selectAll().Eq("user_id", ownerID))
}

// ListAll returns every sighting, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Sighting, error) {
	return s.list(ctx, metrics.OpListAll, s.selectAll())
}

// InRadius returns sightings inside a square of radiusKm around the point,
// newest first. A non-positive radius uses DefaultRadiusKm.
func (s *Service) InRadius(ctx context.Context, lat, lng, radiusKm float64) ([]Sighting, error) {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	delta := radiusKm / kmPerDegree
	q := s.selectAll().
		Gte("latitude", lat-delta).
		Lte("latitude", lat+delta).
		Gte("longitude", lng-delta).
		Lte("longitude", lng+delta)
	return s.list(ctx, metrics.OpInRadius, q)
}

func (s *Service) selectAll() *supabase.Query {
	return supabase.NewQuery().Columns(Columns...).Order("timestamp", true)
}

func (s *Service) list(ctx context.Context, op string, q *supabase.Query) ([]Sighting, error) {
	start := s.now()
	if !s.Configured() {
		return []Sighting{}, nil
	}
	var rows []Row
	if err := s.store.Select(ctx, s.cfg.Table, q, &rows); err != nil {
		s.record(op, metrics.StatusError, start)
		return nil, storeError(op, err)
	}
	s.record(op, metrics.StatusSuccess, start)
	return MapRows(rows), nil
}

// Get returns the sighting with id. Local pending sightings are found in the
// queue. Without a hosted store only the queue is consulted.
func (s *Service) Get(ctx context.Context, id string) (Sighting, bool, error) {
	if s.pending != nil {
		p, err := s.pending.Get(ctx, id)
		switch {
		case err == nil:
			return fromPending(p), true, nil
		case !errors.Is(err, repository.ErrPendingSightingNotFound):
			s.log.Warn("pending queue lookup failed", logger.String("id", id), logger.Error(err))
		}
	}
	if !s.Configured() {
		return Sighting{}, false, nil
	}

	start := s.now()
	var row Row
	err := s.store.SelectSingle(ctx, s.cfg.Table, supabase.NewQuery().Columns(Columns...).Eq("id", id), &row)
	if err != nil {
		if supabase.IsNoRows(err) {
			s.record(metrics.OpGet, metrics.StatusSuccess, start)
			return Sighting{}, false, nil
		}
		s.record(metrics.OpGet, metrics.StatusError, start)
		return Sighting{}, false, storeError("get", err)
	}
	s.record(metrics.OpGet, metrics.StatusSuccess, start)
	return row.ToSighting(), true, nil
}

// Snapshot returns every known sighting, hosted and queued, newest first.
// The attached collection is reset to the result.
func (s *Service) Snapshot(ctx context.Context) ([]Sighting, error) {
	remote, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	local, err := s.Pending(ctx)
	if err != nil {
		return nil, err
	}
	merged := mergeNewestFirst(local, remote)
	if s.collection != nil {
		s.collection.Reset(merged)
	}
	return merged, nil
}

// Pending returns the queued local sightings, oldest first.
func (s *Service) Pending(ctx context.Context) ([]Sighting, error) {
	if s.pending == nil {
		return nil, nil
	}
	records, err := s.pending.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Sighting, 0, len(records))
	for i := range records {
		out = append(out, fromPending(&records[i]))
	}
	return out, nil
}

func (s *Service) refreshPendingGauge(ctx context.Context) {
	if s.metrics == nil || s.pending == nil {
		return
	}
	if n, err := s.pending.Count(ctx); err == nil {
		s.metrics.SetPending(n)
	}
}

func (s *Service) record(op, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordOperation(op, status, s.now().Sub(start).Seconds())
	}
}

func notConfigured(op string) error {
	return errors.New(ErrNotConfigured).
		Component("sightings").
		Category(errors.CategoryNotConfigured).
		Context("operation", op).
		Build()
}

func storeError(op string, err error) error {
	if errors.Is(err, supabase.ErrNotConfigured) {
		return notConfigured(op)
	}
	return errors.New(fmt.Errorf("%s sighting: %w", op, err)).
		Component("sightings").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Build()
}
