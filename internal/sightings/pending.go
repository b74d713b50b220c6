package sightings

import (
	"slices"

	"github.com/findrapp/findr/internal/datastore/entities"
)

func toPending(s Sighting) *entities.PendingSighting {
	return &entities.PendingSighting{
		LocalID:            s.ID,
		UserID:             s.UserID,
		Name:               s.Name,
		Type:               s.Type,
		Latitude:           s.Latitude,
		Longitude:          s.Longitude,
		Timestamp:          s.Timestamp,
		Confidence:         s.Confidence,
		Description:        s.Description,
		Species:            s.Species,
		CreatureType:       s.CreatureType,
		KeyCharacteristics: s.KeyCharacteristics,
		Rarity:             s.Rarity,
		IsAnimal:           s.IsAnimal,
		ImageRef:           s.ImageURI,
	}
}

func fromPending(p *entities.PendingSighting) Sighting {
	return Sighting{
		ID:                 p.LocalID,
		UserID:             p.UserID,
		Name:               p.Name,
		Type:               p.Type,
		Latitude:           p.Latitude,
		Longitude:          p.Longitude,
		Timestamp:          p.Timestamp,
		Confidence:         p.Confidence,
		Description:        nonEmpty(p.Description),
		Species:            nonEmpty(p.Species),
		CreatureType:       nonEmpty(p.CreatureType),
		KeyCharacteristics: nonEmpty(p.KeyCharacteristics),
		Rarity:             nonEmpty(p.Rarity),
		IsAnimal:           p.IsAnimal,
		ImageURI:           nonEmpty(p.ImageRef),
		Origin:             OriginLocalPending,
	}
}

// draftOf recovers the user supplied fields of a queued sighting.
func draftOf(p *entities.PendingSighting) (Draft, aiFields) {
	d := Draft{
		UserID:    p.UserID,
		Name:      p.Name,
		Type:      p.Type,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
	}
	ai := aiFields{
		confidence:         p.Confidence,
		isAnimal:           p.IsAnimal,
		description:        nonEmpty(p.Description),
		species:            nonEmpty(p.Species),
		creatureType:       nonEmpty(p.CreatureType),
		keyCharacteristics: nonEmpty(p.KeyCharacteristics),
		rarity:             nonEmpty(p.Rarity),
	}
	return d, ai
}

// mergeNewestFirst combines two lists into one ordered by timestamp,
// newest first. Equal timestamps keep a before b.
func mergeNewestFirst(a, b []Sighting) []Sighting {
	out := make([]Sighting, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.SortStableFunc(out, func(x, y Sighting) int {
		return y.Timestamp.Compare(x.Timestamp)
	})
	return out
}
