package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrentFillsUnknown(t *testing.T) {
	info := Current()
	assert.Equal(t, UnknownValue, info.Version)
	assert.Equal(t, UnknownValue, info.Commit)
	assert.Equal(t, "findr@unknown", info.Release())
}

func TestCurrentUsesInjectedValues(t *testing.T) {
	version, commit, buildDate = "v1.4.0", "abc123", "2025-06-01"
	t.Cleanup(func() { version, commit, buildDate = "", "", "" })

	info := Current()
	assert.Equal(t, "v1.4.0 (commit abc123, built 2025-06-01)", info.String())
	assert.Equal(t, "findr@v1.4.0", info.Release())
}
