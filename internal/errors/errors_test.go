package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuilderCarriesContext(t *testing.T) {
	t.Parallel()

	ee := Newf("upload failed: %s", "boom").
		Component("sightings").
		Category(CategoryStorageUpload).
		Priority("nonsense").
		Context("bucket", "animals").
		NetworkContext("https://example.supabase.co/storage/v1", 5*time.Second).
		FileContext("/tmp/photo.HEIC", 2048).
		Build()

	assert.Equal(t, "sightings", ee.GetComponent())
	assert.Equal(t, CategoryStorageUpload, ee.Category)
	assert.Equal(t, PriorityMedium, ee.Priority)

	ctx := ee.GetContext()
	assert.Equal(t, "animals", ctx["bucket"])
	assert.Equal(t, "https-endpoint", ctx["url_category"])
	assert.InDelta(t, 5.0, ctx["timeout_seconds"], 0.001)
	assert.Equal(t, "heic", ctx["file_extension"])
	assert.Equal(t, "small", ctx["file_size_category"])
}

func TestEnhancedErrorUnwrap(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("not configured")
	wrapped := New(fmt.Errorf("update sighting: %w", sentinel)).
		Category(CategoryNotConfigured).
		Build()

	require.ErrorIs(t, wrapped, sentinel)
	assert.True(t, IsCategory(wrapped, CategoryNotConfigured))
	assert.False(t, IsNotFound(wrapped))

	outer := fmt.Errorf("api: %w", wrapped)
	assert.True(t, IsCategory(outer, CategoryNotConfigured))
}

func TestDetectCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"timeout", fmt.Errorf("context deadline exceeded"), CategoryTimeout},
		{"canceled", fmt.Errorf("context canceled"), CategoryCancellation},
		{"network", fmt.Errorf("dial tcp: connection refused"), CategoryNetwork},
		{"not configured", fmt.Errorf("store not configured"), CategoryNotConfigured},
		{"validation", fmt.Errorf("invalid latitude"), CategoryValidation},
		{"generic", fmt.Errorf("something odd"), CategoryGeneric},
		{"nil", nil, CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, detectCategory(tt.err))
		})
	}
}

func TestScrubMessage(t *testing.T) {
	t.Parallel()

	scrubbed := scrubMessage("GET https://generativelanguage.googleapis.com/v1beta/models?key=AIzaSyDUMMYDUMMYDUMMYDUMMY1234 failed")
	assert.NotContains(t, scrubbed, "AIzaSy")
	assert.Contains(t, scrubbed, "[REDACTED]")

	scrubbed = scrubMessage("sign in failed for birder@example.com with token=abc123")
	assert.NotContains(t, scrubbed, "birder@example.com")
	assert.NotContains(t, scrubbed, "abc123")
}

type countingReporter struct {
	reports int
}

func (r *countingReporter) ReportError(ee *EnhancedError) {
	r.reports++
	ee.MarkReported()
}

func (r *countingReporter) IsEnabled() bool { return true }

func TestReporterReceivesBuiltErrors(t *testing.T) {
	reporter := &countingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(fmt.Errorf("dial tcp: connection refused")).Component("supabase").Build()

	assert.Equal(t, 1, reporter.reports)
	assert.True(t, ee.IsReported())
	assert.Equal(t, CategoryNetwork, ee.Category)
}

func TestErrorTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Classifier classification", errorTitle("classifier", CategoryClassification))
	assert.Equal(t, "generic", errorTitle(ComponentUnknown, CategoryGeneric))
}
