package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/findrapp/findr/internal/conf"
	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/httpclient"
	"github.com/findrapp/findr/internal/logger"
	"github.com/findrapp/findr/internal/observability/metrics"
)

const (
	DefaultEncodeTimeout = 10 * time.Second
	DefaultTimeout       = 30 * time.Second

	maxImageBytes   = 20 << 20
	defaultMimeType = "image/jpeg"
)

// Config bounds and throttles classification.
type Config struct {
	EncodeTimeout time.Duration // reading and base64 encoding the image
	Timeout       time.Duration // the whole call
	CacheTTL      time.Duration // 0 disables the result cache
	RateLimit     float64       // requests per second, 0 disables limiting
	Burst         int
}

// Classifier turns images into Results. Safe for concurrent use.
type Classifier struct {
	model   Model
	cfg     Config
	fs      afero.Fs
	http    *httpclient.Client
	cache   *cache.Cache
	limiter *rate.Limiter
	metrics *metrics.ClassifierMetrics
	log     logger.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithFs sets the filesystem image paths are read from.
func WithFs(fs afero.Fs) Option {
	return func(c *Classifier) { c.fs = fs }
}

// WithHTTPClient sets the client used to fetch http(s) image references.
func WithHTTPClient(hc *httpclient.Client) Option {
	return func(c *Classifier) { c.http = hc }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.ClassifierMetrics) Option {
	return func(c *Classifier) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Classifier) { c.log = l }
}

// New creates a Classifier around model.
func New(model Model, cfg Config, opts ...Option) *Classifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.EncodeTimeout <= 0 {
		cfg.EncodeTimeout = DefaultEncodeTimeout
	}

	c := &Classifier{
		model: model,
		cfg:   cfg,
		fs:    afero.NewOsFs(),
		log:   logger.Global().Module("classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.New(nil)
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	if cfg.RateLimit > 0 {
		burst := max(cfg.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// NewFromSettings wires a Gemini backed classifier from configuration.
func NewFromSettings(ctx context.Context, s *conf.GeminiSettings, hc *httpclient.Client, opts ...Option) (*Classifier, error) {
	model, err := NewGemini(ctx, GeminiConfig{APIKey: s.APIKey, Model: s.Model, Endpoint: s.Endpoint}, hc)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Build()
	}
	opts = append([]Option{WithHTTPClient(hc)}, opts...)
	return New(model, Config{
		EncodeTimeout: s.EncodeTimeout,
		Timeout:       s.Timeout,
		CacheTTL:      s.CacheTTL,
		RateLimit:     s.RateLimit,
		Burst:         s.Burst,
	}, opts...), nil
}

// Classify reads the image at ref (a path on the configured filesystem or an
// http(s) URL) and classifies it.
func (c *Classifier) Classify(ctx context.Context, ref string) (Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	encodeCtx, cancelEncode := context.WithTimeout(ctx, c.cfg.EncodeTimeout)
	data, err := c.load(encodeCtx, ref)
	cancelEncode()
	if err != nil {
		return Result{}, c.fail(metrics.ReasonEncode, err, start)
	}
	return c.classify(ctx, data, start)
}

// ClassifyBytes classifies an in-memory image.
func (c *Classifier) ClassifyBytes(ctx context.Context, data []byte) (Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	return c.classify(ctx, data, start)
}

func (c *Classifier) classify(ctx context.Context, data []byte, start time.Time) (Result, error) {
	if len(data) == 0 {
		return Result{}, c.fail(metrics.ReasonEncode, errors.NewStd("image is empty"), start)
	}
	if c.metrics != nil {
		c.metrics.ObserveImageSize(len(data))
	}

	key := cacheKey(data)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			if c.metrics != nil {
				c.metrics.IncrementCacheHits()
			}
			c.log.Debug("classification cache hit", logger.String("image_hash", key[:12]))
			return cached.(Result), nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{}, c.fail(metrics.ReasonRateLimit, err, start)
		}
	}

	encodeCtx, cancelEncode := context.WithTimeout(ctx, c.cfg.EncodeTimeout)
	encoded, mimeType, err := encode(encodeCtx, data)
	cancelEncode()
	if err != nil {
		return Result{}, c.fail(metrics.ReasonEncode, err, start)
	}

	reply, err := c.model.Generate(ctx, prompt, mimeType, encoded)
	if err != nil {
		return Result{}, c.fail(failureReason(ctx, err), err, start)
	}

	result, err := Parse(reply)
	if err != nil {
		return Result{}, c.fail(metrics.ReasonEmpty, err, start)
	}

	if c.cache != nil {
		c.cache.SetDefault(key, result)
	}
	if c.metrics != nil {
		c.metrics.RecordParseTier(string(result.Tier))
		c.metrics.RecordRequest(metrics.StatusSuccess, time.Since(start).Seconds())
	}

	c.log.Info("image classified",
		logger.String("name", result.Name),
		logger.Float64("confidence", result.Confidence),
		logger.Bool("detected", result.Detected),
		logger.String("tier", string(result.Tier)),
		logger.Duration("elapsed", time.Since(start)))

	return result, nil
}

// fail records the failure and returns the single surfaced error.
func (c *Classifier) fail(reason string, cause error, start time.Time) error {
	if c.metrics != nil {
		c.metrics.RecordFailure(reason)
		c.metrics.RecordRequest(metrics.StatusError, time.Since(start).Seconds())
	}
	c.log.Warn("classification failed",
		logger.String("reason", reason),
		logger.Error(cause),
		logger.Duration("elapsed", time.Since(start)))

	return errors.New(fmt.Errorf("%w: %w", ErrClassificationFailed, cause)).
		Component("classifier").
		Category(errors.CategoryClassification).
		Context("reason", reason).
		Timing("classify", time.Since(start)).
		Build()
}

func failureReason(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return metrics.ReasonTimeout
	case errors.Is(err, context.Canceled):
		return metrics.ReasonCanceled
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return metrics.ReasonStatus
	}
	return metrics.ReasonTransport
}

// load reads the raw image bytes for ref.
func (c *Classifier) load(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, errors.NewStd("empty image reference")
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		resp, err := c.http.Get(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("fetch image: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
		}
		return httpclient.ReadBody(resp, maxImageBytes)
	}

	path := strings.TrimPrefix(ref, "file://")
	info, err := c.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if info.Size() > maxImageBytes {
		return nil, fmt.Errorf("image %s is larger than %d bytes", path, maxImageBytes)
	}
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return data, nil
}

// encode base64 encodes data and sniffs its MIME type.
func encode(ctx context.Context, data []byte) (encoded, mimeType string, err error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	mimeType = http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = defaultMimeType
	}
	encoded = base64.StdEncoding.EncodeToString(data)
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	return encoded, mimeType, nil
}

func cacheKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
