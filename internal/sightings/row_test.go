package sightings

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowToSighting(t *testing.T) {
	t.Parallel()

	raw := `{
		"id": "7b0c", "user_id": "user-1", "name": "Barn Owl", "type": "Bird",
		"latitude": 52.1, "longitude": 4.3, "timestamp": "2025-03-02T18:45:10.123+00:00",
		"confidence": 77.5, "description": "", "species": "Tyto alba",
		"creature_type": null, "key_characteristics": "Heart-shaped face",
		"rarity": "Rarely found in the area", "is_animal": true, "image_uri": null
	}`
	var row Row
	require.NoError(t, json.Unmarshal([]byte(raw), &row))

	s := row.ToSighting()
	assert.Equal(t, "7b0c", s.ID)
	assert.Equal(t, "user-1", s.UserID)
	assert.InDelta(t, 77.5, s.Confidence, 0.0001)
	assert.True(t, s.IsAnimal)
	assert.Nil(t, s.Description)
	assert.Nil(t, s.CreatureType)
	assert.Nil(t, s.ImageURI)
	assert.Equal(t, "Tyto alba", *s.Species)
	assert.True(t, IsRare(s.Rarity))
	assert.Equal(t, OriginRemote, s.Origin)
	assert.True(t, s.Timestamp.Equal(time.Date(2025, 3, 2, 18, 45, 10, 123_000_000, time.UTC)))
}

func TestRowToSightingNullNumbers(t *testing.T) {
	t.Parallel()
	var row Row
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","confidence":null,"is_animal":null,"timestamp":"garbage"}`), &row))

	s := row.ToSighting()
	assert.Zero(t, s.Confidence)
	assert.False(t, s.IsAnimal)
	assert.True(t, s.Timestamp.IsZero())
}

func TestIsRare(t *testing.T) {
	t.Parallel()
	assert.True(t, IsRare(strPtr(RarityRare)))
	assert.True(t, IsRare(strPtr(RarityUnexpected)))
	assert.False(t, IsRare(strPtr(RarityCommon)))
	assert.False(t, IsRare(strPtr("Unknown")))
	assert.False(t, IsRare(nil))
}
