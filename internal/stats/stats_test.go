package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findrapp/findr/internal/sightings"
)

var now = time.Date(2025, 7, 14, 15, 0, 0, 0, time.UTC)

func rarity(s string) *string { return &s }

func sighting(user, name, typ string, daysAgo int) sightings.Sighting {
	return sightings.Sighting{
		ID:        user + "-" + name,
		UserID:    user,
		Name:      name,
		Type:      typ,
		Timestamp: now.AddDate(0, 0, -daysAgo),
	}
}

func TestStreak(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		daysAgo []int
		want    int
	}{
		{"empty", nil, 0},
		{"today only", []int{0}, 1},
		{"today yesterday and three days ago", []int{0, 1, 3}, 2},
		{"gap today", []int{1, 2, 3}, 0},
		{"week", []int{0, 1, 2, 3, 4, 5, 6}, 7},
		{"duplicates count once", []int{0, 0, 1, 1}, 2},
		{"future ignored", []int{-1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var list []sightings.Sighting
			for _, d := range tt.daysAgo {
				list = append(list, sighting("u", "x", TypeBird, d))
			}
			assert.Equal(t, tt.want, Streak(list, now))
		})
	}
}

func TestStreakUsesNowLocation(t *testing.T) {
	t.Parallel()
	tokyo := time.FixedZone("JST", 9*60*60)
	// 2025-07-14 01:00 in Tokyo is still 2025-07-13 in UTC.
	localNow := time.Date(2025, 7, 14, 1, 0, 0, 0, tokyo)
	list := []sightings.Sighting{
		{Timestamp: time.Date(2025, 7, 13, 16, 30, 0, 0, time.UTC)}, // 01:30 on the 14th in Tokyo
		{Timestamp: time.Date(2025, 7, 13, 2, 0, 0, 0, time.UTC)},   // 11:00 on the 13th in Tokyo
	}
	assert.Equal(t, 2, Streak(list, localNow))
	assert.Equal(t, 1, Streak(list, localNow.In(time.UTC)))
}

func TestScore(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 9, Score(5, 2))
	assert.Equal(t, 0, Score(0, 0))
}

func TestForOwner(t *testing.T) {
	t.Parallel()

	all := []sightings.Sighting{
		sighting("me", "Robin", TypeBird, 0),
		sighting("me", "Robin", TypeBird, 1),
		sighting("me", "Fox", TypeMammal, 3),
		sighting("me", "Badger", TypeMammal, 4),
		sighting("other", "Heron", TypeBird, 0),
	}
	all[0].IsAnimal, all[0].Confidence = true, 90
	all[1].IsAnimal, all[1].Confidence = true, 85
	// not counted without the animal flag
	all[2].IsAnimal, all[2].Confidence = false, 99
	// zero confidence is not AI detected
	all[3].IsAnimal = true
	all[0].Rarity = rarity(sightings.RarityRare)
	all[2].Rarity = rarity(sightings.RarityUnexpected)
	all[3].Rarity = rarity(sightings.RarityCommon)

	st := ForOwner(all, "me", now)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, map[string]int{TypeBird: 2, TypeMammal: 2}, st.CountsByType)
	assert.Equal(t, 2, st.Birds)
	assert.Equal(t, 2, st.Mammals)
	assert.Equal(t, TypeBird, st.FavoriteType, "ties go to the first type seen")
	assert.Equal(t, 3, st.UniqueSpecies)
	assert.Equal(t, 2, st.Rare)
	assert.Equal(t, 2, st.AIDetected)
	assert.Equal(t, 88, st.AverageConfidence, "87.5 rounds up")
	assert.Equal(t, 2, st.Streak)
	assert.Equal(t, 8, st.Score)
}

func TestForOwnerEmpty(t *testing.T) {
	t.Parallel()
	st := ForOwner(nil, "nobody", now)
	assert.Zero(t, st.Total)
	assert.Equal(t, "None", st.FavoriteType)
	assert.Zero(t, st.AverageConfidence)
	assert.Empty(t, st.CountsByType)
}

func TestScoreFollowsRarityChanges(t *testing.T) {
	t.Parallel()
	var all []sightings.Sighting
	for i := range 5 {
		all = append(all, sighting("me", "Bird", TypeBird, i))
	}
	all[0].Rarity = rarity(sightings.RarityRare)
	all[1].Rarity = rarity(sightings.RarityUnexpected)
	require.Equal(t, 9, ForOwner(all, "me", now).Score)

	all[1].Rarity = rarity(sightings.RarityCommon)
	assert.Equal(t, 7, ForOwner(all, "me", now).Score)
}

func TestFavoriteTypeMode(t *testing.T) {
	t.Parallel()
	all := []sightings.Sighting{
		sighting("me", "a", "Insect", 0),
		sighting("me", "b", TypeBird, 0),
		sighting("me", "c", TypeBird, 0),
	}
	assert.Equal(t, TypeBird, ForOwner(all, "me", now).FavoriteType)
}
