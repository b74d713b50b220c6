// Package entities defines the GORM models of the local device store.
package entities

import "time"

// PendingSighting is a sighting that was saved locally because the hosted
// store was unreachable or unconfigured. It is removed once reconciled.
type PendingSighting struct {
	LocalID            string `gorm:"primaryKey;size:64"`
	UserID             string `gorm:"index;size:255;not null"`
	Name               string `gorm:"size:255"`
	Type               string `gorm:"size:64"`
	Latitude           float64
	Longitude          float64
	Timestamp          time.Time `gorm:"index"`
	Confidence         float64
	Description        *string `gorm:"type:text"`
	Species            *string `gorm:"size:255"`
	CreatureType       *string `gorm:"size:64"`
	KeyCharacteristics *string `gorm:"type:text"`
	Rarity             *string `gorm:"size:64"`
	IsAnimal           bool
	ImageRef           *string `gorm:"type:text"` // local photo reference to upload on retry
	Attempts           int     `gorm:"not null;default:0"`
	LastError          string  `gorm:"type:text"`
	LastAttempt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SyncStatus records whether a local credential has a remote users row.
type SyncStatus string

const (
	SyncPending  SyncStatus = "pending"
	SyncMirrored SyncStatus = "mirrored"
	SyncFailed   SyncStatus = "failed"
)

// Credential is the authoritative local account record.
type Credential struct {
	Email           string     `gorm:"primaryKey;size:255"`
	Username        string     `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash    string     `gorm:"size:255;not null"` // bcrypt, used for local sign-in
	RemoteHash      string     `gorm:"size:64;not null"`  // sha256 hex, mirrored to the users table
	RemoteID        *string    `gorm:"size:64"`
	SyncStatus      SyncStatus `gorm:"index;size:16;not null;default:pending"`
	SyncError       string     `gorm:"type:text"`
	LastSyncAttempt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Session holds serialized session state under a fixed key.
type Session struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// All returns every model for auto-migration.
func All() []any {
	return []any{&PendingSighting{}, &Credential{}, &Session{}}
}
