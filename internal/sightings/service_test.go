package sightings

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findrapp/findr/internal/classifier"
	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/supabase"
)

var foxDraft = Draft{UserID: "user-1", Name: "Red Fox", Type: "Mammal", Latitude: 51.5, Longitude: -0.12}

func TestCreateUnconfiguredFallsBackToLocal(t *testing.T) {
	t.Parallel()
	repo := newPendingRepo(t)
	coll := NewCollection()
	svc := NewService(supabase.New(supabase.Config{URL: "YOUR_SUPABASE_URL", AnonKey: "YOUR_SUPABASE_ANON_KEY"}, nil, nil),
		repo, Config{}, WithCollection(coll))
	ctx := t.Context()

	first, err := svc.Create(ctx, foxDraft, nil, "")
	require.NoError(t, err)
	second, err := svc.Create(ctx, foxDraft, nil, "")
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, OriginLocalPending, first.Origin)
	assert.Nil(t, first.ImageURI)
	assert.Equal(t, "Red Fox", first.Name)
	assert.WithinDuration(t, time.Now(), first.Timestamp, 5*time.Second)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	snap := coll.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, second.ID, snap[0].ID, "new sightings are prepended")
}

func TestCreateUnreachableKeepsPhotoReference(t *testing.T) {
	t.Parallel()
	store, hc, mock := newStore(t)
	mock.RegisterResponder(http.MethodPost, uploadURL, httpmock.NewErrorResponder(errors.NewStd("dial tcp: no route to host")))
	mock.RegisterResponder(http.MethodPost, tableURL, httpmock.NewErrorResponder(errors.NewStd("dial tcp: no route to host")))

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/photos/fox.PNG", []byte("png-bytes"), 0o644))

	repo := newPendingRepo(t)
	svc := NewService(store, repo, Config{}, WithFs(fs), WithHTTPClient(hc))

	result := &classifier.Result{Detected: true, Name: "Red Fox", Confidence: 88, Rarity: strPtr(RarityRare)}
	got, err := svc.Create(t.Context(), foxDraft, result, "/photos/fox.PNG")
	require.NoError(t, err)

	assert.Equal(t, OriginLocalPending, got.Origin)
	require.NotNil(t, got.ImageURI)
	assert.Equal(t, "/photos/fox.PNG", *got.ImageURI)
	assert.InDelta(t, 88, got.Confidence, 0.001)
	assert.True(t, got.IsAnimal)
	assert.Equal(t, RarityRare, *got.Rarity)

	queued, err := repo.Get(t.Context(), got.ID)
	require.NoError(t, err)
	require.NotNil(t, queued.ImageRef)
	assert.Equal(t, "/photos/fox.PNG", *queued.ImageRef)
}

func TestCreateUploadsThenInserts(t *testing.T) {
	t.Parallel()
	store, hc, mock := newStore(t)
	table := newFakeTable(mock)

	var uploadedPath, uploadedType string
	mock.RegisterResponder(http.MethodPost, uploadURL, func(req *http.Request) (*http.Response, error) {
		uploadedPath = req.URL.Path
		uploadedType = req.Header.Get("Content-Type")
		return httpmock.NewStringResponse(http.StatusOK, `{"Key":"ok"}`), nil
	})

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/photos/fox.PNG", []byte("png-bytes"), 0o644))

	now := time.UnixMilli(1_700_000_000_000).UTC()
	pub := &recordingPublisher{}
	coll := NewCollection()
	svc := NewService(store, newPendingRepo(t), Config{},
		WithFs(fs), WithHTTPClient(hc), WithClock(fixedClock(now)),
		WithCollection(coll), WithPublisher(pub, "findr/sightings"))

	result := &classifier.Result{Detected: true, Name: "Red Fox", Confidence: 91, CreatureType: strPtr("Mammal"), Description: strPtr("")}
	got, err := svc.Create(t.Context(), foxDraft, result, "/photos/fox.PNG")
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/animals/user-1/1700000000000.png", uploadedPath)
	assert.Equal(t, "image/png", uploadedType)

	assert.Equal(t, "row-1", got.ID)
	assert.Equal(t, OriginRemote, got.Origin)
	require.NotNil(t, got.ImageURI)
	assert.Equal(t, testURL+"/storage/v1/object/public/animals/user-1/1700000000000.png", *got.ImageURI)
	assert.Equal(t, "Mammal", *got.CreatureType)
	assert.Nil(t, got.Description, "empty text is stored as null")
	assert.True(t, got.Timestamp.Equal(now))
	assert.Equal(t, 1, table.len())

	require.Len(t, coll.Snapshot(), 1)
	events := pub.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, EventSightingCreated, events[0].Event)
	assert.Equal(t, "row-1", events[0].Sighting.ID)
	assert.Equal(t, []string{"findr/sightings"}, pub.topics)
}

func TestCreateUploadFailureDegrades(t *testing.T) {
	t.Parallel()
	store, hc, mock := newStore(t)
	newFakeTable(mock)
	mock.RegisterResponder(http.MethodPost, uploadURL,
		httpmock.NewStringResponder(http.StatusForbidden, `{"statusCode":"403","error":"Unauthorized","message":"new row violates row-level security policy"}`))

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/photos/owl.jpg", []byte("jpeg"), 0o644))
	svc := NewService(store, newPendingRepo(t), Config{}, WithFs(fs), WithHTTPClient(hc))

	got, err := svc.Create(t.Context(), foxDraft, nil, "/photos/owl.jpg")
	require.NoError(t, err)
	assert.Equal(t, OriginRemote, got.Origin)
	require.NotNil(t, got.ImageURI)
	assert.Equal(t, "/photos/owl.jpg", *got.ImageURI)
	assert.Zero(t, got.Confidence)
	assert.False(t, got.IsAnimal)
}

func TestCreateMissingPhotoDegrades(t *testing.T) {
	t.Parallel()
	store, hc, mock := newStore(t)
	newFakeTable(mock)
	svc := NewService(store, nil, Config{}, WithFs(afero.NewMemMapFs()), WithHTTPClient(hc))

	got, err := svc.Create(t.Context(), foxDraft, nil, "/photos/missing.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/photos/missing.jpg", *got.ImageURI)
	assert.Equal(t, 1, mock.GetTotalCallCount(), "only the insert is sent")
}

func TestCreateInsertRejectedFallsBack(t *testing.T) {
	t.Parallel()
	store, hc, mock := newStore(t)
	mock.RegisterResponder(http.MethodPost, tableURL,
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"code":"42501","message":"permission denied for table creature_sightings"}`))
	repo := newPendingRepo(t)
	svc := NewService(store, repo, Config{}, WithHTTPClient(hc))

	got, err := svc.Create(t.Context(), foxDraft, nil, "")
	require.NoError(t, err)
	assert.Equal(t, OriginLocalPending, got.Origin)

	n, err := repo.Count(t.Context())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUpdateIsIdempotent(t *testing.T) {
	t.Parallel()
	store, hc, mock := newStore(t)
	newFakeTable(mock)
	coll := NewCollection()
	svc := NewService(store, nil, Config{}, WithHTTPClient(hc), WithCollection(coll))
	ctx := t.Context()

	created, err := svc.Create(ctx, foxDraft, nil, "")
	require.NoError(t, err)

	patch := Patch{Name: strPtr("X")}
	for range 2 {
		updated, err := svc.Update(ctx, created.ID, patch)
		require.NoError(t, err)
		assert.Equal(t, "X", updated.Name)
		assert.Equal(t, "Mammal", updated.Type, "unset fields are unchanged")

		owned, err := svc.ListByOwner(ctx, "user-1")
		require.NoError(t, err)
		var matches []Sighting
		for _, s := range owned {
			if s.ID == created.ID {
				matches = append(matches, s)
			}
		}
		require.Len(t, matches, 1)
		assert.Equal(t, "X", matches[0].Name)
	}

	snap := coll.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "X", snap[0].Name)
}

func TestUpdateSendsOnlySetFields(t *testing.T) {
	t.Parallel()
	store, hc, mock := newStore(t)
	var body map[string]any
	mock.RegisterResponder(http.MethodPatch, `=~^`+tableURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "eq.abc", req.URL.Query().Get("id"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"id": "abc", "name": "Badger", "rarity": nil})
	})
	svc := NewService(store, nil, Config{}, WithHTTPClient(hc))

	got, err := svc.Update(t.Context(), "abc", Patch{Name: strPtr("Badger"), Rarity: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, "Badger", got.Name)
	assert.Equal(t, map[string]any{"name": "Badger", "rarity": nil}, body)
}

func TestUpdateErrors(t *testing.T) {
	t.Parallel()

	t.Run("unconfigured", func(t *testing.T) {
		t.Parallel()
		svc := NewService(nil, nil, Config{})
		_, err := svc.Update(t.Context(), "abc", Patch{Name: strPtr("X")})
		require.ErrorIs(t, err, ErrNotConfigured)
		assert.True(t, errors.IsCategory(err, errors.CategoryNotConfigured))
	})

	t.Run("empty patch", func(t *testing.T) {
		t.Parallel()
		store, hc, _ := newStore(t)
		svc := NewService(store, nil, Config{}, WithHTTPClient(hc))
		_, err := svc.Update(t.Context(), "abc", Patch{})
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		store, hc, mock := newStore(t)
		newFakeTable(mock)
		svc := NewService(store, nil, Config{}, WithHTTPClient(hc))
		_, err := svc.Update(t.Context(), "nope", Patch{Name: strPtr("X")})
		require.ErrorIs(t, err, ErrSightingNotFound)
	})

	t.Run("transport failure propagates", func(t *testing.T) {
		t.Parallel()
		store, hc, mock := newStore(t)
		mock.RegisterResponder(http.MethodPatch, `=~^`+tableURL, httpmock.NewErrorResponder(errors.NewStd("connection reset")))
		svc := NewService(store, nil, Config{}, WithHTTPClient(hc))
		_, err := svc.Update(t.Context(), "abc", Patch{Name: strPtr("X")})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrSightingNotFound)
	})
}

func TestDeleteRemovesFromEveryRead(t *testing.T) {
	t.Parallel()
	store, hc, mock := newStore(t)
	newFakeTable(mock)
	coll := NewCollection()
	svc := NewService(store, nil, Config{}, WithHTTPClient(hc), WithCollection(coll))
	ctx := t.Context()

	keep, err := svc.Create(ctx, foxDraft, nil, "")
	require.NoError(t, err)
	gone, err := svc.Create(ctx, Draft{UserID: "user-2", Name: "Heron", Type: "Bird"}, nil, "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, gone.ID))

	_, found, err := svc.Get(ctx, gone.ID)
	require.NoError(t, err)
	assert.False(t, found)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keep.ID, all[0].ID)

	owned, err := svc.ListByOwner(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, owned)

	for _, s := range coll.Snapshot() {
		assert.NotEqual(t, gone.ID, s.ID)
	}
}

func TestDeleteFailsWithoutStore(t *testing.T) {
	t.Parallel()
	svc := NewService(nil, nil, Config{})
	require.ErrorIs(t, svc.Delete(t.Context(), "abc"), ErrNotConfigured)

	store, hc, mock := newStore(t)
	mock.RegisterResponder(http.MethodDelete, `=~^`+tableURL, httpmock.NewErrorResponder(errors.NewStd("connection refused")))
	svc = NewService(store, nil, Config{}, WithHTTPClient(hc))
	require.Error(t, svc.Delete(t.Context(), "abc"))
}

func TestDeleteDropsQueuedSighting(t *testing.T) {
	t.Parallel()
	store, hc, mock := newStore(t)
	mock.RegisterResponder(http.MethodPost, tableURL,
		httpmock.NewStringResponder(http.StatusServiceUnavailable, `{"message":"upstream unavailable"}`))
	mock.RegisterResponder(http.MethodGet, `=~^`+tableURL, httpmock.NewStringResponder(http.StatusOK, `[]`))
	repo := newPendingRepo(t)
	coll := NewCollection()
	svc := NewService(store, repo, Config{}, WithHTTPClient(hc), WithCollection(coll))
	ctx := t.Context()

	local, err := svc.Create(ctx, foxDraft, nil, "")
	require.NoError(t, err)
	require.Equal(t, OriginLocalPending, local.Origin)

	require.NoError(t, svc.Delete(ctx, local.ID))
	assert.Equal(t, 1, mock.GetTotalCallCount(), "a queued sighting has no remote row to delete")

	_, found, err := svc.Get(ctx, local.ID)
	require.NoError(t, err)
	assert.False(t, found)

	all, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, coll.Snapshot())

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	report, err := NewReconciler(svc).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Attempted)
}

func TestDeleteQueuedSightingWithoutStore(t *testing.T) {
	t.Parallel()
	repo := newPendingRepo(t)
	svc := NewService(nil, repo, Config{})
	ctx := t.Context()

	local, err := svc.Create(ctx, foxDraft, nil, "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, local.ID))
	_, found, err := svc.Get(ctx, local.ID)
	require.NoError(t, err)
	assert.False(t, found)

	// anything not queued still needs the hosted store
	require.ErrorIs(t, svc.Delete(ctx, local.ID), ErrNotConfigured)
}

func TestListsWithoutStoreAreEmpty(t *testing.T) {
	t.Parallel()
	svc := NewService(nil, nil, Config{})
	ctx := t.Context()

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	owned, err := svc.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, owned)

	_, found, err := svc.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListPropagatesStoreErrors(t *testing.T) {
	t.Parallel()
	store, hc, mock := newStore(t)
	mock.RegisterResponder(http.MethodGet, `=~^`+tableURL,
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"message":"boom"}`))
	svc := NewService(store, nil, Config{}, WithHTTPClient(hc))

	_, err := svc.ListAll(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
}

func TestListOrdersNewestFirst(t *testing.T) {
	t.Parallel()
	store, hc, mock := newStore(t)
	newFakeTable(mock)
	ctx := t.Context()

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i, name := range []string{"Wren", "Robin", "Kite"} {
		svc := NewService(store, nil, Config{}, WithHTTPClient(hc), WithClock(fixedClock(base.Add(time.Duration(i)*time.Hour))))
		_, err := svc.Create(ctx, Draft{UserID: "user-1", Name: name, Type: "Bird"}, nil, "")
		require.NoError(t, err)
	}

	svc := NewService(store, nil, Config{}, WithHTTPClient(hc))
	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Kite", "Robin", "Wren"}, []string{all[0].Name, all[1].Name, all[2].Name})
}

func TestInRadiusQuery(t *testing.T) {
	t.Parallel()
	store, hc, mock := newStore(t)
	var query map[string][]string
	mock.RegisterResponder(http.MethodGet, `=~^`+tableURL, func(req *http.Request) (*http.Response, error) {
		query = req.URL.Query()
		return httpmock.NewJsonResponse(http.StatusOK, []map[string]any{})
	})
	svc := NewService(store, nil, Config{}, WithHTTPClient(hc))

	got, err := svc.InRadius(t.Context(), 10, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	delta := DefaultRadiusKm / kmPerDegree
	assert.ElementsMatch(t, []string{"gte." + fmtFloat(10-delta), "lte." + fmtFloat(10+delta)}, query["latitude"])
	assert.ElementsMatch(t, []string{"gte." + fmtFloat(20-delta), "lte." + fmtFloat(20+delta)}, query["longitude"])
	assert.Equal(t, []string{"timestamp.desc"}, query["order"])
}

func TestGetFindsQueuedSighting(t *testing.T) {
	t.Parallel()
	repo := newPendingRepo(t)
	svc := NewService(nil, repo, Config{})
	ctx := t.Context()

	local, err := svc.Create(ctx, foxDraft, nil, "file:///tmp/fox.jpg")
	require.NoError(t, err)

	got, found, err := svc.Get(ctx, local.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, OriginLocalPending, got.Origin)
	assert.Equal(t, "file:///tmp/fox.jpg", *got.ImageURI)
}

func TestCreateFetchesRemotePhoto(t *testing.T) {
	t.Parallel()
	store, hc, mock := newStore(t)
	newFakeTable(mock)
	mock.RegisterResponder(http.MethodGet, "https://cdn.example.com/heron.webp",
		httpmock.NewBytesResponder(http.StatusOK, []byte("webp-bytes")))
	var contentType string
	mock.RegisterResponder(http.MethodPost, uploadURL, func(req *http.Request) (*http.Response, error) {
		contentType = req.Header.Get("Content-Type")
		return httpmock.NewStringResponse(http.StatusOK, `{}`), nil
	})
	svc := NewService(store, nil, Config{}, WithHTTPClient(hc))

	got, err := svc.Create(t.Context(), foxDraft, nil, "https://cdn.example.com/heron.webp")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", contentType)
	assert.Contains(t, *got.ImageURI, "/storage/v1/object/public/animals/user-1/")
}

func TestSnapshotMergesQueueAndStore(t *testing.T) {
	t.Parallel()
	repo := newPendingRepo(t)
	coll := NewCollection()
	ctx := t.Context()

	offline := NewService(nil, repo, Config{}, WithClock(fixedClock(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))))
	local, err := offline.Create(ctx, foxDraft, nil, "")
	require.NoError(t, err)

	store, hc, mock := newStore(t)
	newFakeTable(mock)
	online := NewService(store, repo, Config{}, WithHTTPClient(hc), WithCollection(coll),
		WithClock(fixedClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))))
	_, err = online.Create(ctx, Draft{UserID: "user-2", Name: "Heron", Type: "Bird"}, nil, "")
	require.NoError(t, err)

	all, err := online.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, local.ID, all[0].ID, "the newer local sighting sorts first")
	assert.Equal(t, "Heron", all[1].Name)
	assert.Equal(t, all, coll.Snapshot())
}
