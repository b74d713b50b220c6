package classify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/findrapp/findr/internal/classifier"
)

func TestPrintDetected(t *testing.T) {
	t.Parallel()
	species := "Vulpes vulpes"
	var buf bytes.Buffer
	Print(&buf, Output{
		Result:  classifier.Result{Detected: true, Name: "Red Fox", Confidence: 91, Species: &species},
		AutoLog: true,
	})

	out := buf.String()
	assert.Contains(t, out, "Red Fox")
	assert.Contains(t, out, "91%")
	assert.Contains(t, out, "Vulpes vulpes")
	assert.Contains(t, out, "yes")
	assert.NotContains(t, out, "Rarity", "absent fields are skipped")
}

func TestPrintNotDetected(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	Print(&buf, Output{Result: classifier.Result{Name: "Unknown Creature"}})

	assert.Contains(t, buf.String(), "No animal detected")
	assert.Contains(t, buf.String(), "confirm before logging")
}
