// Package stats derives per-user statistics, streaks, leaderboards and badges
// from a snapshot of sightings. Everything is recomputed on each call.
package stats

import (
	"math"
	"time"

	"github.com/findrapp/findr/internal/sightings"
)

const (
	TypeBird   = "Bird"
	TypeMammal = "Mammal"

	noFavorite = "None"
)

// OwnerStats summarizes one user's sightings.
type OwnerStats struct {
	OwnerID           string         `json:"ownerId"`
	Total             int            `json:"total"`
	CountsByType      map[string]int `json:"countsByType"`
	Birds             int            `json:"birds"`
	Mammals           int            `json:"mammals"`
	FavoriteType      string         `json:"favoriteType"`
	UniqueSpecies     int            `json:"uniqueSpecies"`
	Rare              int            `json:"rare"`
	AIDetected        int            `json:"aiDetected"`
	AverageConfidence int            `json:"averageConfidence"`
	Streak            int            `json:"streak"`
	Score             int            `json:"score"`
}

// ForOwner computes the stats of ownerID's sightings. now anchors the streak.
func ForOwner(all []sightings.Sighting, ownerID string, now time.Time) OwnerStats {
	own := Owned(all, ownerID)

	st := OwnerStats{
		OwnerID:      ownerID,
		Total:        len(own),
		CountsByType: make(map[string]int),
		FavoriteType: noFavorite,
	}

	names := make(map[string]struct{})
	var typeOrder []string
	var confidenceSum float64
	for _, s := range own {
		if _, seen := st.CountsByType[s.Type]; !seen {
			typeOrder = append(typeOrder, s.Type)
		}
		st.CountsByType[s.Type]++
		names[s.Name] = struct{}{}

		if sightings.IsRare(s.Rarity) {
			st.Rare++
		}
		if isAIDetected(s) {
			st.AIDetected++
			confidenceSum += s.Confidence
		}
	}

	st.Birds = st.CountsByType[TypeBird]
	st.Mammals = st.CountsByType[TypeMammal]
	st.UniqueSpecies = len(names)
	st.FavoriteType = favorite(st.CountsByType, typeOrder)
	if st.AIDetected > 0 {
		st.AverageConfidence = roundHalfUp(confidenceSum / float64(st.AIDetected))
	}
	st.Streak = Streak(own, now)
	st.Score = Score(st.Total, st.Rare)
	return st
}

// Owned filters the sightings of ownerID, keeping order.
func Owned(all []sightings.Sighting, ownerID string) []sightings.Sighting {
	var out []sightings.Sighting
	for _, s := range all {
		if s.UserID == ownerID {
			out = append(out, s)
		}
	}
	return out
}

func isAIDetected(s sightings.Sighting) bool {
	return s.IsAnimal && s.Confidence > 0
}

// favorite returns the most frequent type; ties go to the type seen first.
func favorite(counts map[string]int, order []string) string {
	best, bestN := noFavorite, 0
	for _, t := range order {
		if counts[t] > bestN {
			best, bestN = t, counts[t]
		}
	}
	return best
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Score weights rare finds double: total + 2*rare.
func Score(total, rare int) int {
	return total + 2*rare
}

// Streak counts consecutive calendar days, in now's location, that have a
// sighting, walking back from today. No sighting today means 0.
func Streak(list []sightings.Sighting, now time.Time) int {
	loc := now.Location()
	days := make(map[civilDay]struct{}, len(list))
	for _, s := range list {
		days[dayOf(s.Timestamp.In(loc))] = struct{}{}
	}

	streak := 0
	for day := now; ; day = day.AddDate(0, 0, -1) {
		if _, ok := days[dayOf(day)]; !ok {
			return streak
		}
		streak++
	}
}

type civilDay struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time) civilDay {
	y, m, d := t.Date()
	return civilDay{y, m, d}
}
