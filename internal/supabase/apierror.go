package supabase

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/antonholmquist/jason"
	"github.com/k3a/html2text"

	"github.com/findrapp/findr/internal/errors"
)

// codeNoRows is the PostgREST code for a single-object request that matched nothing.
const codeNoRows = "PGRST116"

const maxErrorMessage = 300

// APIError is a non-2xx reply from PostgREST or Storage.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "supabase: status %d", e.Status)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// IsNoRows reports whether err is a PostgREST "no rows" reply.
func IsNoRows(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == codeNoRows
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// decodeAPIError parses a PostgREST or Storage error body. Gateway pages in
// HTML are reduced to text.
func decodeAPIError(status int, contentType string, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	trimmed := strings.TrimSpace(string(body))
	if strings.Contains(contentType, "text/html") || strings.HasPrefix(trimmed, "<") {
		apiErr.Message = truncate(strings.Join(strings.Fields(html2text.HTML2Text(trimmed)), " "))
		return apiErr
	}

	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		apiErr.Message = truncate(trimmed)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	apiErr.Code = optString(obj, "code")
	apiErr.Message = optString(obj, "message")
	apiErr.Details = optString(obj, "details")
	apiErr.Hint = optString(obj, "hint")

	// Storage replies use {"statusCode","error","message"}
	if apiErr.Code == "" {
		apiErr.Code = optString(obj, "error")
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func optString(obj *jason.Object, key string) string {
	if s, err := obj.GetString(key); err == nil {
		return s
	}
	if n, err := obj.GetNumber(key); err == nil {
		return n.String()
	}
	return ""
}

func truncate(s string) string {
	if len(s) <= maxErrorMessage {
		return s
	}
	return s[:maxErrorMessage] + "..."
}

func wrapAPIError(apiErr *APIError) error {
	category := errors.CategoryHTTP
	switch {
	case apiErr.Code == codeNoRows || apiErr.Status == http.StatusNotFound:
		category = errors.CategoryNotFound
	case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
		category = errors.CategoryAuthentication
	case apiErr.Status == http.StatusConflict:
		category = errors.CategoryConflict
	}
	return errors.New(apiErr).
		Component("supabase").
		Category(category).
		Context("status", apiErr.Status).
		Context("code", apiErr.Code).
		Build()
}
