package sightings

import (
	"time"

	"github.com/findrapp/findr/internal/supabase"
)

// Columns is the select list for the sightings table.
var Columns = []string{
	"id", "user_id", "name", "type", "latitude", "longitude", "timestamp",
	"confidence", "description", "species", "creature_type", "key_characteristics",
	"rarity", "is_animal", "image_uri", "created_at", "updated_at",
}

// Row is a sightings table row as returned by PostgREST. Nullable columns
// are pointers so that mapping never fails.
type Row struct {
	ID                 string   `json:"id"`
	UserID             string   `json:"user_id"`
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	Latitude           float64  `json:"latitude"`
	Longitude          float64  `json:"longitude"`
	Timestamp          string   `json:"timestamp"`
	Confidence         *float64 `json:"confidence"`
	Description        *string  `json:"description"`
	Species            *string  `json:"species"`
	CreatureType       *string  `json:"creature_type"`
	KeyCharacteristics *string  `json:"key_characteristics"`
	Rarity             *string  `json:"rarity"`
	IsAnimal           *bool    `json:"is_animal"`
	ImageURI           *string  `json:"image_uri"`
	CreatedAt          string   `json:"created_at,omitempty"`
	UpdatedAt          string   `json:"updated_at,omitempty"`
}

// ToSighting maps a row to the model. Empty optional columns become absent
// and an unparsable timestamp becomes the zero time.
func (r Row) ToSighting() Sighting {
	s := Sighting{
		ID:                 r.ID,
		UserID:             r.UserID,
		Name:               r.Name,
		Type:               r.Type,
		Latitude:           r.Latitude,
		Longitude:          r.Longitude,
		Timestamp:          supabase.ParseTimestamp(r.Timestamp),
		Description:        nonEmpty(r.Description),
		Species:            nonEmpty(r.Species),
		CreatureType:       nonEmpty(r.CreatureType),
		KeyCharacteristics: nonEmpty(r.KeyCharacteristics),
		Rarity:             nonEmpty(r.Rarity),
		ImageURI:           nonEmpty(r.ImageURI),
		Origin:             OriginRemote,
	}
	if r.Confidence != nil {
		s.Confidence = *r.Confidence
	}
	if r.IsAnimal != nil {
		s.IsAnimal = *r.IsAnimal
	}
	return s
}

// MapRows maps every row.
func MapRows(rows []Row) []Sighting {
	out := make([]Sighting, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToSighting())
	}
	return out
}

// insertRow is the body of a sightings insert.
type insertRow struct {
	UserID             string  `json:"user_id"`
	Name               string  `json:"name"`
	Type               string  `json:"type"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Timestamp          string  `json:"timestamp"`
	Confidence         float64 `json:"confidence"`
	Description        *string `json:"description"`
	Species            *string `json:"species"`
	CreatureType       *string `json:"creature_type"`
	KeyCharacteristics *string `json:"key_characteristics"`
	Rarity             *string `json:"rarity"`
	IsAnimal           bool    `json:"is_animal"`
	ImageURI           *string `json:"image_uri"`
}

func newInsertRow(d Draft, ai aiFields, imageURI *string, at time.Time) insertRow {
	return insertRow{
		UserID:             d.UserID,
		Name:               d.Name,
		Type:               d.Type,
		Latitude:           d.Latitude,
		Longitude:          d.Longitude,
		Timestamp:          at.UTC().Format(time.RFC3339Nano),
		Confidence:         ai.confidence,
		Description:        ai.description,
		Species:            ai.species,
		CreatureType:       ai.creatureType,
		KeyCharacteristics: ai.keyCharacteristics,
		Rarity:             ai.rarity,
		IsAnimal:           ai.isAnimal,
		ImageURI:           imageURI,
	}
}
