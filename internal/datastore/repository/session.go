package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/findrapp/findr/internal/datastore/entities"
)

// SessionRepository is a small key/value store for session state.
type SessionRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a SessionRepository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Get(ctx context.Context, key string) (string, error) {
	var s entities.Session
	if err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&s).Error; err != nil {
		return "", translate(err, ErrSessionNotFound)
	}
	return s.Value, nil
}

// Put upserts the value under key.
func (r *sessionRepository) Put(ctx context.Context, key, value string) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entities.Session{Key: key, Value: value, UpdatedAt: time.Now()}).Error
	return translate(err, ErrSessionNotFound)
}

// Delete removes the key. Deleting a missing key is not an error.
func (r *sessionRepository) Delete(ctx context.Context, key string) error {
	err := r.db.WithContext(ctx).Where("`key` = ?", key).Delete(&entities.Session{}).Error
	return translate(err, ErrSessionNotFound)
}
