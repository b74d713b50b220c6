// Package supabase is a small PostgREST and Storage client for the hosted
// sightings and users tables.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/findrapp/findr/internal/conf"
	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/httpclient"
	"github.com/findrapp/findr/internal/logger"
)

const (
	restPath    = "/rest/v1/"
	storagePath = "/storage/v1/object/"

	// maxResponseSize bounds table responses read into memory.
	maxResponseSize = 8 << 20

	defaultRequestTimeout = 15 * time.Second
	defaultMaxUpload      = 10 << 20

	mimeObject = "application/vnd.pgrst.object+json"
	mimeJSON   = "application/json"
)

// ErrNotConfigured is returned by operations that need the hosted store when
// no real URL and key are set.
var ErrNotConfigured = errors.NewStd("supabase is not configured")

// Config configures a Client.
type Config struct {
	URL            string
	AnonKey        string
	MaxUploadBytes int64
	Timeout        time.Duration
}

// Client talks to one Supabase project. Safe for concurrent use.
type Client struct {
	baseURL   string
	key       string
	http      *httpclient.Client
	timeout   time.Duration
	maxUpload int64
	log       logger.Logger
}

// New creates a client. A nil hc gets a fresh httpclient.
func New(cfg Config, hc *httpclient.Client, log logger.Logger) *Client {
	if hc == nil {
		hc = httpclient.New(nil)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		key:       cfg.AnonKey,
		http:      hc,
		timeout:   cfg.Timeout,
		maxUpload: cfg.MaxUploadBytes,
		log:       log,
	}
}

// NewFromSettings builds a client from the supabase config section.
func NewFromSettings(s *conf.SupabaseSettings, hc *httpclient.Client, log logger.Logger) (*Client, error) {
	maxUpload, err := s.MaxUploadBytes()
	if err != nil {
		return nil, errors.New(err).
			Component("supabase").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return New(Config{
		URL:            s.URL,
		AnonKey:        s.AnonKey,
		MaxUploadBytes: maxUpload,
		Timeout:        s.Timeout,
	}, hc, log), nil
}

// IsConfigured reports whether URL and key hold real values.
func (c *Client) IsConfigured() bool {
	if c == nil || c.baseURL == "" || c.key == "" {
		return false
	}
	return c.baseURL != conf.SupabaseURLPlaceholder && c.key != conf.SupabaseAnonKeyPlaceholder
}

// MaxUploadBytes returns the configured upload limit.
func (c *Client) MaxUploadBytes() int64 {
	return c.maxUpload
}

// Select fetches rows matching q into out, which must be a pointer to a slice.
func (c *Client) Select(ctx context.Context, table string, q *Query, out any) error {
	return c.doJSON(ctx, http.MethodGet, c.tableURL(table, q), nil, mimeJSON, "", out)
}

// SelectSingle fetches exactly one row. Zero rows yield an APIError that
// IsNoRows recognizes.
func (c *Client) SelectSingle(ctx context.Context, table string, q *Query, out any) error {
	return c.doJSON(ctx, http.MethodGet, c.tableURL(table, q), nil, mimeObject, "", out)
}

// Insert inserts one row and decodes the stored representation into out.
func (c *Client) Insert(ctx context.Context, table string, row, out any) error {
	return c.doJSON(ctx, http.MethodPost, c.tableURL(table, nil), row, mimeObject, "return=representation", out)
}

// Update patches the single row matched by q and decodes the result into out.
func (c *Client) Update(ctx context.Context, table string, q *Query, patch, out any) error {
	return c.doJSON(ctx, http.MethodPatch, c.tableURL(table, q), patch, mimeObject, "return=representation", out)
}

// Delete removes the rows matched by q.
func (c *Client) Delete(ctx context.Context, table string, q *Query) error {
	return c.doJSON(ctx, http.MethodDelete, c.tableURL(table, q), nil, mimeJSON, "return=minimal", nil)
}

func (c *Client) tableURL(table string, q *Query) string {
	u := c.baseURL + restPath + table
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
}

func (c *Client) doJSON(ctx context.Context, method, url string, body any, accept, prefer string, out any) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := httpclient.NewRequest(ctx, method, url, body)
	if err != nil {
		return errors.New(err).
			Component("supabase").
			Category(errors.CategoryValidation).
			Build()
	}
	c.authorize(req)
	req.Header.Set("Accept", accept)
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	start := time.Now()
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return c.transportError(err, method, url)
	}
	data, err := httpclient.ReadBody(resp, maxResponseSize)
	if err != nil {
		return c.transportError(err, method, url)
	}

	c.log.Debug("supabase request",
		logger.String("method", method),
		logger.String("path", pathOf(url)),
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return wrapAPIError(decodeAPIError(resp.StatusCode, resp.Header.Get("Content-Type"), data))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.New(fmt.Errorf("decode %s response: %w", pathOf(url), err)).
			Component("supabase").
			Category(errors.CategoryHTTP).
			Build()
	}
	return nil
}

func (c *Client) transportError(err error, method, url string) error {
	category := errors.CategoryNetwork
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		category = errors.CategoryTimeout
	case errors.Is(err, context.Canceled):
		category = errors.CategoryCancellation
	}
	return errors.New(fmt.Errorf("supabase %s %s: %w", method, pathOf(url), err)).
		Component("supabase").
		Category(category).
		NetworkContext(url, c.timeout).
		Build()
}

// pathOf strips scheme, host and query for logging.
func pathOf(rawURL string) string {
	if i := strings.Index(rawURL, restPath); i >= 0 {
		rawURL = rawURL[i:]
	} else if i := strings.Index(rawURL, storagePath); i >= 0 {
		rawURL = rawURL[i:]
	}
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		rawURL = rawURL[:i]
	}
	return rawURL
}
