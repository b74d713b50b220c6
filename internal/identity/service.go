package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/findrapp/findr/internal/conf"
	"github.com/findrapp/findr/internal/datastore/entities"
	"github.com/findrapp/findr/internal/datastore/repository"
	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/logger"
	"github.com/findrapp/findr/internal/observability/metrics"
	"github.com/findrapp/findr/internal/supabase"
)

const (
	DefaultUsersTable = "users"
	DefaultCacheTTL   = 5 * time.Minute

	// reservedSelfID is the placeholder id the app uses for the signed in
	// user in sample data; it never names a stored account.
	reservedSelfID = "you"

	usernameLookups = 8
)

// Config names the hosted users table and bounds the lookup cache.
type Config struct {
	UsersTable string
	CacheTTL   time.Duration
}

// ConfigFromSettings extracts the users table name.
func ConfigFromSettings(s *conf.SupabaseSettings) Config {
	return Config{UsersTable: s.UsersTable}
}

// Service implements sign-up, sign-in and user lookups. Safe for concurrent use.
type Service struct {
	creds    repository.CredentialRepository
	sessions sessionStore
	store    *supabase.Client
	cfg      Config
	cache    *cache.Cache
	group    singleflight.Group
	signupMu sync.Mutex
	cost     int
	metrics  *metrics.IdentityMetrics
	log      logger.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.IdentityMetrics) Option {
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

// WithPasswordCost sets the bcrypt cost of new credentials.
func WithPasswordCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService creates a Service. A nil store behaves as unconfigured.
func NewService(creds repository.CredentialRepository, sessions repository.SessionRepository, store *supabase.Client, cfg Config, opts ...Option) *Service {
	if cfg.UsersTable == "" {
		cfg.UsersTable = DefaultUsersTable
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	s := &Service{
		creds: creds,
		store: store,
		cfg:   cfg,
		cache: cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		cost:  bcrypt.DefaultCost,
		log:   logger.NewNopLogger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = sessionStore{repo: sessions, log: s.log}
	return s
}

// SignUp registers a local account, mirrors it remotely when possible and
// signs the new user in. Remote failures never fail the sign-up.
func (s *Service) SignUp(ctx context.Context, email, password, username string) (User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" || password == "" || username == "" {
		s.record(metrics.OpSignUp, metrics.StatusError)
		return User{}, validationError("email, password and username are required")
	}

	s.signupMu.Lock()
	defer s.signupMu.Unlock()

	exists, err := s.creds.EmailExists(ctx, email)
	if err != nil {
		return User{}, s.storeFailure(metrics.OpSignUp, err)
	}
	if exists {
		s.record(metrics.OpSignUp, metrics.StatusError)
		return User{}, ErrDuplicateEmail
	}
	if exists, err = s.creds.UsernameExists(ctx, username); err != nil {
		return User{}, s.storeFailure(metrics.OpSignUp, err)
	}
	if exists {
		s.record(metrics.OpSignUp, metrics.StatusError)
		return User{}, ErrDuplicateUsername
	}

	hash, err := hashPassword(password, s.cost)
	if err != nil {
		return User{}, s.storeFailure(metrics.OpSignUp, err)
	}

	now := s.now()
	cred := &entities.Credential{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		RemoteHash:   remoteHash(password),
		SyncStatus:   entities.SyncPending,
	}
	user := User{ID: email, Email: email, Username: username, JoinDate: now}

	if s.store.IsConfigured() {
		cred.LastSyncAttempt = &now
		id, err := s.createRemote(ctx, email, username, cred.RemoteHash)
		if err != nil {
			s.log.Warn("failed to mirror account, continuing with local account",
				logger.String("username", username),
				logger.Error(err))
			cred.SyncStatus = entities.SyncFailed
			cred.SyncError = err.Error()
		} else {
			cred.SyncStatus = entities.SyncMirrored
			cred.RemoteID = &id
			user.ID = id
		}
		s.recordMirror(cred.SyncStatus)
	}

	if err := s.creds.Create(ctx, cred); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateKey):
			s.record(metrics.OpSignUp, metrics.StatusError)
			return User{}, ErrDuplicateEmail
		default:
			return User{}, s.storeFailure(metrics.OpSignUp, err)
		}
	}

	if err := s.sessions.save(ctx, user); err != nil {
		s.log.Error("failed to store session", logger.Error(err))
	}
	s.record(metrics.OpSignUp, metrics.StatusSuccess)
	s.log.Info("account created",
		logger.String("username", username),
		logger.String("sync_status", string(cred.SyncStatus)))
	return user, nil
}

// createRemote inserts a users row and returns its id.
func (s *Service) createRemote(ctx context.Context, email, username, hash string) (string, error) {
	var row remoteUser
	err := s.store.Insert(ctx, s.cfg.UsersTable, newRemoteUser{Email: email, Username: username, PasswordHash: hash}, &row)
	if err != nil {
		return "", err
	}
	if row.ID == "" {
		return "", errors.Newf("users insert returned no id").
			Component("identity").
			Category(errors.CategoryHTTP).
			Build()
	}
	return row.ID, nil
}

// SignIn checks the password against the local credential and signs the
// user in. The hosted store only contributes the id and join date.
func (s *Service) SignIn(ctx context.Context, email, password string) (User, error) {
	email = strings.TrimSpace(email)
	cred, err := s.creds.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrCredentialNotFound):
		s.record(metrics.OpSignIn, metrics.StatusError)
		return User{}, ErrInvalidCredentials
	case err != nil:
		return User{}, s.storeFailure(metrics.OpSignIn, err)
	}
	if !checkPassword(cred.PasswordHash, password) {
		s.record(metrics.OpSignIn, metrics.StatusError)
		return User{}, ErrInvalidCredentials
	}

	user := User{ID: email, Email: email, Username: cred.Username, JoinDate: s.now()}
	if remote, ok := s.remoteByEmail(ctx, email); ok {
		user.ID = remote.ID
		if joined := supabase.ParseTimestamp(remote.CreatedAt); !joined.IsZero() {
			user.JoinDate = joined
		}
		s.touchLastLogin(ctx, remote.ID)
	}

	if err := s.sessions.save(ctx, user); err != nil {
		s.log.Error("failed to store session", logger.Error(err))
	}
	s.record(metrics.OpSignIn, metrics.StatusSuccess)
	return user, nil
}

// remoteByEmail is a best effort lookup; errors are logged.
func (s *Service) remoteByEmail(ctx context.Context, email string) (remoteUser, bool) {
	if !s.store.IsConfigured() {
		return remoteUser{}, false
	}
	var row remoteUser
	q := supabase.NewQuery().Columns(signInColumns...).Eq("email", email)
	if err := s.store.SelectSingle(ctx, s.cfg.UsersTable, q, &row); err != nil {
		if !supabase.IsNoRows(err) {
			s.log.Warn("remote user lookup failed", logger.Error(err))
		}
		return remoteUser{}, false
	}
	return row, true
}

func (s *Service) touchLastLogin(ctx context.Context, id string) {
	patch := map[string]string{"last_login": s.now().UTC().Format(time.RFC3339Nano)}
	err := s.store.Update(ctx, s.cfg.UsersTable, supabase.NewQuery().Eq("id", id), patch, nil)
	if err != nil {
		s.log.Warn("failed to update last login", logger.String("user_id", id), logger.Error(err))
	}
}

// SignOut clears the session.
func (s *Service) SignOut(ctx context.Context) error {
	if err := s.sessions.clear(ctx); err != nil {
		return s.storeFailure(metrics.OpSignOut, err)
	}
	s.record(metrics.OpSignOut, metrics.StatusSuccess)
	return nil
}

// CurrentUser returns the signed in user, if any.
func (s *Service) CurrentUser(ctx context.Context) (User, bool, error) {
	return s.sessions.load(ctx)
}

// UserByID looks the user up remotely, first by id and then by email. It
// reports false when the store is unconfigured, nothing matches, or the
// lookup fails.
func (s *Service) UserByID(ctx context.Context, id string) (User, bool) {
	if id == "" || id == reservedSelfID || !s.store.IsConfigured() {
		return User{}, false
	}
	if cached, ok := s.cache.Get(id); ok {
		if s.metrics != nil {
			s.metrics.IncrementCacheHits()
		}
		return cached.(User), true
	}

	v, _, _ := s.group.Do(id, func() (any, error) {
		u, ok := s.lookup(ctx, id)
		if !ok {
			return nil, nil
		}
		s.cache.SetDefault(id, u)
		return u, nil
	})
	u, ok := v.(User)
	return u, ok
}

func (s *Service) lookup(ctx context.Context, id string) (User, bool) {
	if _, err := uuid.Parse(id); err == nil {
		u, found, err := s.lookupBy(ctx, "id", id)
		if err != nil {
			s.log.Warn("user lookup by id failed", logger.String("user_id", id), logger.Error(err))
			s.record(metrics.OpLookup, metrics.StatusError)
			return User{}, false
		}
		if found {
			s.record(metrics.OpLookup, metrics.StatusSuccess)
			return u, true
		}
	}

	u, found, err := s.lookupBy(ctx, "email", id)
	if err != nil {
		s.log.Warn("user lookup by email failed", logger.Error(err))
		s.record(metrics.OpLookup, metrics.StatusError)
		return User{}, false
	}
	s.record(metrics.OpLookup, metrics.StatusSuccess)
	return u, found
}

func (s *Service) lookupBy(ctx context.Context, column, value string) (User, bool, error) {
	var row remoteUser
	q := supabase.NewQuery().Columns(lookupColumns...).Eq(column, value).Eq("is_active", true)
	if err := s.store.SelectSingle(ctx, s.cfg.UsersTable, q, &row); err != nil {
		if supabase.IsNoRows(err) {
			return User{}, false, nil
		}
		return User{}, false, err
	}
	return row.toUser(), true, nil
}

// Username returns the username for id. The caller picks the fallback
// display when it is absent.
func (s *Service) Username(ctx context.Context, id string) (string, bool) {
	u, ok := s.UserByID(ctx, id)
	if !ok || u.Username == "" {
		return "", false
	}
	return u.Username, true
}

// Usernames resolves ids concurrently. Unresolved ids are absent from the
// result.
func (s *Service) Usernames(ctx context.Context, ids []string) map[string]string {
	names := make([]string, len(ids))
	var g errgroup.Group
	g.SetLimit(usernameLookups)
	for i, id := range ids {
		g.Go(func() error {
			if name, ok := s.Username(ctx, id); ok {
				names[i] = name
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]string, len(ids))
	for i, id := range ids {
		if names[i] != "" {
			out[id] = names[i]
		}
	}
	return out
}

// AllUsers lists active remote users, newest first. Failures yield an empty list.
func (s *Service) AllUsers(ctx context.Context) []User {
	if !s.store.IsConfigured() {
		return []User{}
	}
	var rows []remoteUser
	q := supabase.NewQuery().Columns(lookupColumns...).Eq("is_active", true).Order("created_at", true)
	if err := s.store.Select(ctx, s.cfg.UsersTable, q, &rows); err != nil {
		s.log.Warn("failed to list users", logger.Error(err))
		s.record(metrics.OpListUser, metrics.StatusError)
		return []User{}
	}
	s.record(metrics.OpListUser, metrics.StatusSuccess)
	users := make([]User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users
}

func (s *Service) record(op, status string) {
	if s.metrics != nil {
		s.metrics.RecordOperation(op, status)
	}
}

func (s *Service) recordMirror(status entities.SyncStatus) {
	if s.metrics != nil {
		s.metrics.RecordMirror(string(status))
	}
}

func (s *Service) storeFailure(op string, err error) error {
	s.record(op, metrics.StatusError)
	return errors.New(err).
		Component("identity").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Build()
}

func validationError(msg string) error {
	return errors.Newf("%s", msg).
		Component("identity").
		Category(errors.CategoryValidation).
		Build()
}
