package sightings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/findrapp/findr/internal/datastore"
	"github.com/findrapp/findr/internal/datastore/repository"
	"github.com/findrapp/findr/internal/httpclient"
	"github.com/findrapp/findr/internal/logger"
	"github.com/findrapp/findr/internal/supabase"
)

const (
	testURL   = "https://project.supabase.co"
	tableURL  = testURL + "/rest/v1/creature_sightings"
	uploadURL = `=~^https://project\.supabase\.co/storage/v1/object/animals/`
)

func strPtr(s string) *string { return &s }

// newPendingRepo opens a private in-memory store.
func newPendingRepo(t *testing.T) repository.PendingSightingRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	store, err := datastore.OpenDialector(sqlite.Open(dsn), logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return repository.NewPendingSightingRepository(store.DB)
}

// newStore returns a configured store client over a fresh mock transport,
// plus the matching http client for photo fetches.
func newStore(t *testing.T) (*supabase.Client, *httpclient.Client, *httpmock.MockTransport) {
	t.Helper()
	hc := httpclient.New(nil)
	mock := httpmock.NewMockTransport()
	hc.HTTPClient().Transport = mock
	return supabase.New(supabase.Config{URL: testURL, AnonKey: "anon-key"}, hc, nil), hc, mock
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// fakeTable emulates the subset of PostgREST the service uses.
type fakeTable struct {
	mu     sync.Mutex
	rows   []map[string]any
	nextID int
	base   time.Time
}

func newFakeTable(mock *httpmock.MockTransport) *fakeTable {
	ft := &fakeTable{base: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	mock.RegisterResponder(http.MethodGet, `=~^`+tableURL, ft.get)
	mock.RegisterResponder(http.MethodPost, tableURL, ft.insert)
	mock.RegisterResponder(http.MethodPatch, `=~^`+tableURL, ft.patch)
	mock.RegisterResponder(http.MethodDelete, `=~^`+tableURL, ft.delete)
	return ft
}

func noRows() (*http.Response, error) {
	return httpmock.NewJsonResponse(http.StatusNotAcceptable, map[string]any{
		"code":    "PGRST116",
		"message": "JSON object requested, multiple (or no) rows returned",
	})
}

func (ft *fakeTable) matches(req *http.Request, row map[string]any) bool {
	for col, vals := range req.URL.Query() {
		if col == "select" || col == "order" || col == "limit" {
			continue
		}
		for _, v := range vals {
			if want, ok := strings.CutPrefix(v, "eq."); ok && fmt.Sprint(row[col]) != want {
				return false
			}
		}
	}
	return true
}

func (ft *fakeTable) get(req *http.Request) (*http.Response, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	var out []map[string]any
	for _, row := range ft.rows {
		if ft.matches(req, row) {
			out = append(out, row)
		}
	}
	slices.SortStableFunc(out, func(a, b map[string]any) int {
		return strings.Compare(b["timestamp"].(string), a["timestamp"].(string))
	})
	if req.Header.Get("Accept") == "application/vnd.pgrst.object+json" {
		if len(out) != 1 {
			return noRows()
		}
		return httpmock.NewJsonResponse(http.StatusOK, out[0])
	}
	if out == nil {
		out = []map[string]any{}
	}
	return httpmock.NewJsonResponse(http.StatusOK, out)
}

func (ft *fakeTable) insert(req *http.Request) (*http.Response, error) {
	var row map[string]any
	if err := json.NewDecoder(req.Body).Decode(&row); err != nil {
		return httpmock.NewStringResponse(http.StatusBadRequest, `{"message":"bad json"}`), nil
	}
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.nextID++
	row["id"] = fmt.Sprintf("row-%d", ft.nextID)
	row["created_at"] = ft.base.Format(time.RFC3339Nano)
	ft.rows = append(ft.rows, row)
	return httpmock.NewJsonResponse(http.StatusCreated, row)
}

func (ft *fakeTable) patch(req *http.Request) (*http.Response, error) {
	var patch map[string]any
	if err := json.NewDecoder(req.Body).Decode(&patch); err != nil {
		return httpmock.NewStringResponse(http.StatusBadRequest, `{"message":"bad json"}`), nil
	}
	ft.mu.Lock()
	defer ft.mu.Unlock()
	for _, row := range ft.rows {
		if ft.matches(req, row) {
			for k, v := range patch {
				row[k] = v
			}
			return httpmock.NewJsonResponse(http.StatusOK, row)
		}
	}
	return noRows()
}

func (ft *fakeTable) delete(req *http.Request) (*http.Response, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.rows = slices.DeleteFunc(ft.rows, func(row map[string]any) bool { return ft.matches(req, row) })
	return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
}

func (ft *fakeTable) len() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.rows)
}

// recordingPublisher captures published payloads.
type recordingPublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic, payload string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) events(t *testing.T) []Event {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, 0, len(p.payloads))
	for _, raw := range p.payloads {
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(raw), &ev))
		out = append(out, ev)
	}
	return out
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// httpmockBody re-encodes a decoded request body so it can be read again.
func httpmockBody(v any) io.ReadCloser {
	data, _ := json.Marshal(v)
	return io.NopCloser(bytes.NewReader(data))
}
