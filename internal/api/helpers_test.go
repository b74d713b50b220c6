package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"

	"github.com/findrapp/findr/internal/classifier"
	"github.com/findrapp/findr/internal/datastore"
	"github.com/findrapp/findr/internal/datastore/repository"
	"github.com/findrapp/findr/internal/httpclient"
	"github.com/findrapp/findr/internal/identity"
	"github.com/findrapp/findr/internal/logger"
	"github.com/findrapp/findr/internal/observability"
	"github.com/findrapp/findr/internal/sightings"
	"github.com/findrapp/findr/internal/supabase"
)

const (
	testURL      = "https://project.supabase.co"
	sightingsURL = testURL + "/rest/v1/creature_sightings"
	usersURL     = testURL + "/rest/v1/users"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

// mockClassifier is a testify mock of the Classifier interface.
type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) ClassifyBytes(ctx context.Context, data []byte) (classifier.Result, error) {
	args := m.Called(ctx, data)
	return args.Get(0).(classifier.Result), args.Error(1)
}

type testEnv struct {
	server     *Server
	sightings  *sightings.Service
	identity   *identity.Service
	classifier *mockClassifier
	mock       *httpmock.MockTransport
	metrics    *observability.Metrics
}

// newTestEnv wires real services to a private in-memory store. A false
// configured leaves the hosted store unset.
func newTestEnv(t *testing.T, configured bool) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := datastore.OpenDialector(sqlite.Open(dsn), logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hc := httpclient.New(nil)
	mt := httpmock.NewMockTransport()
	hc.HTTPClient().Transport = mt

	var store *supabase.Client
	if configured {
		store = supabase.New(supabase.Config{URL: testURL, AnonKey: "anon-key"}, hc, nil)
	}

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	clock := func() time.Time { return testNow }
	sightingSvc := sightings.NewService(store, repository.NewPendingSightingRepository(db.DB),
		sightings.Config{},
		sightings.WithHTTPClient(hc),
		sightings.WithMetrics(m.Sightings),
		sightings.WithLogger(logger.NewNopLogger()),
		sightings.WithClock(clock))
	identitySvc := identity.NewService(repository.NewCredentialRepository(db.DB),
		repository.NewSessionRepository(db.DB), store, identity.Config{},
		identity.WithPasswordCost(bcrypt.MinCost),
		identity.WithLogger(logger.NewNopLogger()))
	mc := &mockClassifier{}

	srv := New(DefaultConfig(), Deps{
		Classifier: mc,
		Sightings:  sightingSvc,
		Identity:   identitySvc,
		Reconciler: sightings.NewReconciler(sightingSvc),
		Mirror:     identity.NewMirror(identitySvc),
		Metrics:    m,
	}, WithLogger(logger.NewNopLogger()), WithClock(clock))

	return &testEnv{
		server:     srv,
		sightings:  sightingSvc,
		identity:   identitySvc,
		classifier: mc,
		mock:       mt,
		metrics:    m,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Echo().ServeHTTP(rec, req)
	return rec
}

func multipartImage(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, "photo.jpg")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func strPtr(s string) *string { return &s }
