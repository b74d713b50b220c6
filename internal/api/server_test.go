package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/findrapp/findr/internal/classifier"
	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/identity"
	"github.com/findrapp/findr/internal/sightings"
	"github.com/findrapp/findr/internal/stats"
)

func TestHealth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echoRequestIDHeader))

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Version)
	assert.True(t, resp.Classify)
}

const echoRequestIDHeader = "X-Request-Id"

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	const id = "0f8fad5b-d9cb-469f-a165-70867728950e"
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sightings/missing", http.NoBody)
	req.Header.Set(echoRequestIDHeader, id)
	rec := httptest.NewRecorder()
	env.server.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, id, rec.Header().Get(echoRequestIDHeader))
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, id, resp.CorrelationID)
	assert.Equal(t, sightings.ErrSightingNotFound.Error(), resp.Error)
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	env.do(t, http.MethodGet, "/api/v1/health", nil)
	rec := env.do(t, http.MethodGet, "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `path="/api/v1/health"`)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	t.Run("auto log above threshold", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, false)
		image := []byte("\xff\xd8\xff fake jpeg")
		env.classifier.On("ClassifyBytes", mock.Anything, image).Return(classifier.Result{
			Detected: true, Name: "Red Fox", Confidence: 92, Species: strPtr("Vulpes vulpes"),
		}, nil).Once()

		body, ct := multipartImage(t, "image", image)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		env.server.Echo().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[ClassifyResponse](t, rec)
		assert.True(t, resp.AutoLog)
		assert.Equal(t, "Red Fox", resp.Result.Name)
		env.classifier.AssertExpectations(t)
	})

	t.Run("low confidence needs confirmation", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, false)
		env.classifier.On("ClassifyBytes", mock.Anything, mock.Anything).
			Return(classifier.Result{Detected: true, Name: "Sparrow", Confidence: 30}, nil).Once()

		body, ct := multipartImage(t, "image", []byte("img"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		env.server.Echo().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[ClassifyResponse](t, rec).AutoLog)
	})

	t.Run("classification failure hides transport detail", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, false)
		cause := errors.New(errors.Join(classifier.ErrClassificationFailed,
			errors.NewStd("dial tcp 10.0.0.1:443: connection refused?key=secret"))).
			Category(errors.CategoryClassification).Build()
		env.classifier.On("ClassifyBytes", mock.Anything, mock.Anything).Return(classifier.Result{}, cause).Once()

		body, ct := multipartImage(t, "image", []byte("img"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		env.server.Echo().ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadGateway, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, classifier.ErrClassificationFailed.Error(), resp.Error)
		assert.NotContains(t, rec.Body.String(), "secret")
	})

	t.Run("missing image field", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, false)
		body, ct := multipartImage(t, "photo", []byte("img"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		env.server.Echo().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env.classifier.AssertNotCalled(t, "ClassifyBytes", mock.Anything, mock.Anything)
	})
}

func TestSightingLifecycleWithoutStore(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/v1/sightings", CreateSightingRequest{
		Draft:    sightings.Draft{UserID: "alice", Name: "Red Fox", Type: "Mammal", Latitude: 51.5, Longitude: -0.12},
		Result:   &classifier.Result{Detected: true, Name: "Red Fox", Confidence: 88, Rarity: strPtr(sightings.RarityRare)},
		PhotoRef: "file:///photos/fox.jpg",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[sightings.Sighting](t, rec)
	assert.Equal(t, sightings.OriginLocalPending, created.Origin)
	assert.Equal(t, 88.0, created.Confidence)

	rec = env.do(t, http.MethodGet, "/api/v1/sightings/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[sightings.Sighting](t, rec).ID)

	// Without a hosted store lists are empty and mutations are unavailable.
	rec = env.do(t, http.MethodGet, "/api/v1/sightings?owner=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodPatch, "/api/v1/sightings/"+created.ID, map[string]any{"name": "Fox"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/sightings/remote-row-7", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// Queued sightings still count towards stats.
	rec = env.do(t, http.MethodGet, "/api/v1/stats/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[StatsResponse](t, rec)
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 1, st.Rare)
	assert.Equal(t, 3, st.Score)
	assert.Equal(t, 1, st.Rank)
	require.Len(t, st.Badges, 8)
	assert.Len(t, stats.Earned(st.Badges), 2) // first_spot and top_ten

	// A queued sighting can be deleted locally and disappears from every read.
	rec = env.do(t, http.MethodDelete, "/api/v1/sightings/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/sightings/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/stats/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[StatsResponse](t, rec).Total)
}

func TestCreateSightingValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/v1/sightings", map[string]any{"userId": "alice"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name is required", decode[ErrorResponse](t, rec).Error)
}

func TestSightingsAgainstStore(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	env.mock.RegisterResponder(http.MethodPatch, `=~^`+sightingsURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "eq.row-1", req.URL.Query().Get("id"))
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
			"id": "row-1", "user_id": "alice", "name": "Fox", "type": "Mammal",
			"timestamp": "2025-06-01T08:00:00Z",
		})
	})
	env.mock.RegisterResponder(http.MethodDelete, `=~^`+sightingsURL,
		httpmock.NewStringResponder(http.StatusNoContent, ""))
	env.mock.RegisterResponder(http.MethodGet, `=~^`+sightingsURL, func(req *http.Request) (*http.Response, error) {
		q := req.URL.Query()
		if q.Get("latitude") != "" {
			assert.Equal(t, []string{"gte.50", "lte.52"}, q["latitude"])
		}
		return httpmock.NewJsonResponse(http.StatusOK, []map[string]any{
			{"id": "row-1", "user_id": "alice", "name": "Fox", "type": "Mammal", "timestamp": "2025-06-01T08:00:00Z"},
		})
	})

	rec := env.do(t, http.MethodPatch, "/api/v1/sightings/row-1", map[string]any{"name": "Fox"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Fox", decode[sightings.Sighting](t, rec).Name)

	rec = env.do(t, http.MethodPatch, "/api/v1/sightings/row-1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sightings/nearby?lat=51&lng=0&radius=111", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]sightings.Sighting](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/v1/sightings/nearby?lng=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/sightings/row-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStoreFailureIsGeneric(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)
	env.mock.RegisterResponder(http.MethodGet, `=~^`+sightingsURL,
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"message":"relation \"creature_sightings\" does not exist"}`))

	rec := env.do(t, http.MethodGet, "/api/v1/sightings", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "internal server error", resp.Error)
	assert.NotEmpty(t, resp.CorrelationID)
	assert.NotContains(t, rec.Body.String(), "creature_sightings")
	assert.NotContains(t, rec.Body.String(), "does not exist")
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/signup", SignUpRequest{
		Email: "alice@example.com", Password: "hunter2", Username: "alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "alice", decode[identity.User](t, rec).Username)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/signup", SignUpRequest{
		Email: "alice@example.com", Password: "other", Username: "alice2",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, identity.ErrDuplicateEmail.Error(), decode[ErrorResponse](t, rec).Error)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/signout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/signin", SignInRequest{Email: "alice@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/signin", SignInRequest{Email: "alice@example.com", Password: "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", decode[identity.User](t, rec).Email)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/signup", SignUpRequest{Email: "bob@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsersWithoutStore(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/v1/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/users/alice@example.com", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaderboardResolvesUsernames(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	rare := sightings.RarityRare
	env.mock.RegisterResponder(http.MethodGet, `=~^`+sightingsURL, httpmock.NewJsonResponderOrPanic(http.StatusOK, []map[string]any{
		{"id": "s1", "user_id": "bob@example.com", "name": "Wren", "type": "Bird", "timestamp": "2025-06-03T08:00:00Z"},
		{"id": "s2", "user_id": "alice@example.com", "name": "Otter", "type": "Mammal", "timestamp": "2025-06-02T08:00:00Z", "rarity": rare},
		{"id": "s3", "user_id": "ghost@example.com", "name": "Owl", "type": "Bird", "timestamp": "2025-06-01T08:00:00Z"},
	}))
	env.mock.RegisterResponder(http.MethodGet, `=~^`+usersURL, func(req *http.Request) (*http.Response, error) {
		email := strings.TrimPrefix(req.URL.Query().Get("email"), "eq.")
		if email == "ghost@example.com" {
			return httpmock.NewJsonResponse(http.StatusNotAcceptable, map[string]any{"code": "PGRST116", "message": "no rows"})
		}
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
			"id": "id-" + email, "email": email, "username": strings.Split(email, "@")[0],
			"created_at": "2025-01-01T00:00:00Z",
		})
	})

	rec := env.do(t, http.MethodGet, "/api/v1/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	board := decode[[]LeaderboardEntry](t, rec)
	require.Len(t, board, 3)

	assert.Equal(t, "alice@example.com", board[0].UserID)
	assert.Equal(t, 3, board[0].Score)
	require.NotNil(t, board[0].Username)
	assert.Equal(t, "alice", *board[0].Username)
	assert.Equal(t, "bob@example.com", board[1].UserID)
	assert.Nil(t, board[2].Username)
	assert.Contains(t, rec.Body.String(), `"username":null`)

	rec = env.do(t, http.MethodGet, "/api/v1/leaderboard?metric=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	t.Run("unavailable without store", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, false)
		rec := env.do(t, http.MethodPost, "/api/v1/reconcile", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("empty queues", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, true)
		rec := env.do(t, http.MethodPost, "/api/v1/reconcile", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"sightings":{"attempted":0,"synced":0,"failed":0},"users":{"attempted":0,"mirrored":0,"failed":0}}`,
			rec.Body.String())
	})
}

func TestUnknownRouteUsesErrorBody(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodGet, "/api/v1/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid credentials", identity.ErrInvalidCredentials, http.StatusUnauthorized},
		{"duplicate username", identity.ErrDuplicateUsername, http.StatusConflict},
		{"not configured", errors.New(sightings.ErrNotConfigured).Category(errors.CategoryNotConfigured).Build(), http.StatusServiceUnavailable},
		{"validation", errors.Newf("bad").Category(errors.CategoryValidation).Build(), http.StatusBadRequest},
		{"database", errors.Newf("boom").Category(errors.CategoryDatabase).Build(), http.StatusInternalServerError},
		{"plain", errors.NewStd("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			code, _ := statusFor(tc.err)
			assert.Equal(t, tc.code, code)
		})
	}
}
