// Package classifier identifies creatures in photos using a hosted
// multimodal model and parses its reply into a structured Result.
package classifier

import "github.com/findrapp/findr/internal/errors"

// ErrClassificationFailed is the single error surfaced for every hard failure:
// transport, non-2xx, timeout, encode failure or an empty reply.
var ErrClassificationFailed = errors.NewStd("failed to analyze image with AI")

// AutoLogThreshold is the confidence a detection must exceed to be logged
// without confirmation.
const AutoLogThreshold = 30

// Tier records which parser produced a result.
type Tier string

const (
	TierJSON    Tier = "json"
	TierPattern Tier = "pattern"
)

// Default labels for fields missing from a reply.
const (
	DefaultName            = "Unknown Creature"
	DefaultCreatureType    = "Unknown"
	DefaultCharacteristics = "No characteristics identified"
	DefaultRarity          = "Unknown"
	defaultPatternScore    = 50
)

// Result is a parsed classification.
type Result struct {
	Detected           bool    `json:"isAnimal"`
	Name               string  `json:"name"`
	Confidence         float64 `json:"confidence"`
	Description        *string `json:"description,omitempty"`
	Species            *string `json:"species,omitempty"`
	CreatureType       *string `json:"creatureType,omitempty"`
	KeyCharacteristics *string `json:"keyCharacteristics,omitempty"`
	Rarity             *string `json:"rarity,omitempty"`
	Tier               Tier    `json:"tier"`
}

// ShouldAutoLog reports whether r is confident enough to be logged directly.
func ShouldAutoLog(r Result) bool {
	return r.Detected && r.Confidence > AutoLogThreshold
}

// StringValue dereferences an optional field, returning "" when absent.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
