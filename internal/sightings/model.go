// Package sightings persists wildlife sightings to the hosted store, falls
// back to a local pending queue when it cannot, and keeps the in-memory
// collection the aggregation layer reads from.
package sightings

import (
	"time"

	"github.com/findrapp/findr/internal/classifier"
	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/supabase"
)

// Sentinel errors.
var (
	// ErrNotConfigured is returned by Update and Delete without a hosted store.
	ErrNotConfigured = supabase.ErrNotConfigured

	// ErrSightingNotFound is returned when no sighting has the requested id.
	ErrSightingNotFound = errors.NewStd("sighting not found")
)

// Origin records where a sighting lives.
type Origin string

const (
	OriginRemote       Origin = "remote"
	OriginLocalPending Origin = "local_pending"
)

// Rarity labels produced by the classifier.
const (
	RarityCommon     = "Commonly found in the area"
	RarityRare       = "Rarely found in the area"
	RarityUnexpected = "Not supposed to be found in the area"
)

// IsRare reports whether a rarity label counts as a rare find.
func IsRare(rarity *string) bool {
	if rarity == nil {
		return false
	}
	return *rarity == RarityRare || *rarity == RarityUnexpected
}

// Sighting is one logged observation.
type Sighting struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Timestamp          time.Time `json:"timestamp"`
	Confidence         float64   `json:"confidence"`
	Description        *string   `json:"description,omitempty"`
	Species            *string   `json:"species,omitempty"`
	CreatureType       *string   `json:"creatureType,omitempty"`
	KeyCharacteristics *string   `json:"keyCharacteristics,omitempty"`
	Rarity             *string   `json:"rarity,omitempty"`
	IsAnimal           bool      `json:"isAnimal"`
	ImageURI           *string   `json:"imageUri,omitempty"`
	Origin             Origin    `json:"origin"`
}

// Draft holds the user supplied fields of a new sighting.
type Draft struct {
	UserID    string  `json:"userId"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the fields a row cannot be stored without.
func (d Draft) Validate() error {
	switch {
	case d.UserID == "":
		return errors.Newf("userId is required").Component("sightings").Category(errors.CategoryValidation).Build()
	case d.Name == "":
		return errors.Newf("name is required").Component("sightings").Category(errors.CategoryValidation).Build()
	}
	return nil
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name               *string  `json:"name,omitempty"`
	Type               *string  `json:"type,omitempty"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	Confidence         *float64 `json:"confidence,omitempty"`
	Description        *string  `json:"description,omitempty"`
	Species            *string  `json:"species,omitempty"`
	CreatureType       *string  `json:"creatureType,omitempty"`
	KeyCharacteristics *string  `json:"keyCharacteristics,omitempty"`
	Rarity             *string  `json:"rarity,omitempty"`
	IsAnimal           *bool    `json:"isAnimal,omitempty"`
	ImageURI           *string  `json:"imageUri,omitempty"`
}

// IsEmpty reports whether no field is set.
func (p Patch) IsEmpty() bool {
	return len(p.columns()) == 0
}

// columns maps the set fields to table columns. Empty optional text is
// stored as null.
func (p Patch) columns() map[string]any {
	cols := make(map[string]any)
	setIf := func(col string, ok bool, v any) {
		if ok {
			cols[col] = v
		}
	}
	setIf("name", p.Name != nil, p.Name)
	setIf("type", p.Type != nil, p.Type)
	setIf("latitude", p.Latitude != nil, p.Latitude)
	setIf("longitude", p.Longitude != nil, p.Longitude)
	setIf("confidence", p.Confidence != nil, p.Confidence)
	setIf("description", p.Description != nil, nonEmpty(p.Description))
	setIf("species", p.Species != nil, nonEmpty(p.Species))
	setIf("creature_type", p.CreatureType != nil, nonEmpty(p.CreatureType))
	setIf("key_characteristics", p.KeyCharacteristics != nil, nonEmpty(p.KeyCharacteristics))
	setIf("rarity", p.Rarity != nil, nonEmpty(p.Rarity))
	setIf("is_animal", p.IsAnimal != nil, p.IsAnimal)
	setIf("image_uri", p.ImageURI != nil, nonEmpty(p.ImageURI))
	return cols
}

// aiFields are the classifier derived columns of a new sighting.
type aiFields struct {
	confidence         float64
	isAnimal           bool
	description        *string
	species            *string
	creatureType       *string
	keyCharacteristics *string
	rarity             *string
}

func fromClassification(r *classifier.Result) aiFields {
	if r == nil {
		return aiFields{}
	}
	return aiFields{
		confidence:         r.Confidence,
		isAnimal:           r.Detected,
		description:        nonEmpty(r.Description),
		species:            nonEmpty(r.Species),
		creatureType:       nonEmpty(r.CreatureType),
		keyCharacteristics: nonEmpty(r.KeyCharacteristics),
		rarity:             nonEmpty(r.Rarity),
	}
}

// nonEmpty returns nil for nil or empty strings, and a copy otherwise.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
