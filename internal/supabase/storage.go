package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/gommon/bytes"

	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/httpclient"
	"github.com/findrapp/findr/internal/logger"
)

// Upload stores data at bucket/path. Existing objects are not overwritten.
func (c *Client) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	if len(data) == 0 {
		return errors.Newf("refusing to upload empty object %s", path).
			Component("supabase").
			Category(errors.CategoryValidation).
			Build()
	}
	if int64(len(data)) > c.maxUpload {
		return errors.Newf("object of %s exceeds upload limit of %s",
			bytes.Format(int64(len(data))), bytes.Format(c.maxUpload)).
			Component("supabase").
			Category(errors.CategoryStorageUpload).
			FileContext(path, int64(len(data))).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	objectURL := c.baseURL + storagePath + bucket + "/" + escapePath(path)
	req, err := httpclient.NewRequest(ctx, http.MethodPost, objectURL, data)
	if err != nil {
		return errors.New(err).Component("supabase").Category(errors.CategoryStorageUpload).Build()
	}
	c.authorize(req)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")
	req.Header.Set("Cache-Control", "3600")

	start := time.Now()
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return errors.New(fmt.Errorf("upload %s/%s: %w", bucket, path, err)).
			Component("supabase").
			Category(errors.CategoryStorageUpload).
			NetworkContext(objectURL, c.timeout).
			Build()
	}
	body, err := httpclient.ReadBody(resp, maxResponseSize)
	if err != nil {
		return errors.New(err).Component("supabase").Category(errors.CategoryStorageUpload).Build()
	}

	c.log.Debug("storage upload",
		logger.String("bucket", bucket),
		logger.String("path", path),
		logger.String("size", bytes.Format(int64(len(data)))),
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp.StatusCode, resp.Header.Get("Content-Type"), body)
		return errors.New(apiErr).
			Component("supabase").
			Category(errors.CategoryStorageUpload).
			Context("status", apiErr.Status).
			Build()
	}
	return nil
}

// PublicURL returns the public download URL of an object.
func (c *Client) PublicURL(bucket, path string) string {
	return c.baseURL + storagePath + "public/" + bucket + "/" + escapePath(path)
}

// IsPublicURL reports whether ref already points into this project's public
// storage.
func (c *Client) IsPublicURL(ref string) bool {
	if !c.IsConfigured() {
		return false
	}
	return strings.HasPrefix(ref, c.baseURL+storagePath+"public/")
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
