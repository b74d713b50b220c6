package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/findrapp/findr/internal/datastore/entities"
)

// PendingSightingRepository queues sightings awaiting reconciliation.
type PendingSightingRepository interface {
	Save(ctx context.Context, p *entities.PendingSighting) error
	Get(ctx context.Context, localID string) (*entities.PendingSighting, error)
	List(ctx context.Context) ([]entities.PendingSighting, error)
	Count(ctx context.Context) (int64, error)
	RecordFailure(ctx context.Context, localID, reason string, at time.Time) error
	Delete(ctx context.Context, localID string) error
}

type pendingSightingRepository struct {
	db *gorm.DB
}

// NewPendingSightingRepository creates a PendingSightingRepository.
func NewPendingSightingRepository(db *gorm.DB) PendingSightingRepository {
	return &pendingSightingRepository{db: db}
}

// Save inserts or replaces the queued record.
func (r *pendingSightingRepository) Save(ctx context.Context, p *entities.PendingSighting) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "local_id"}},
			UpdateAll: true,
		}).
		Create(p).Error
	return translate(err, ErrPendingSightingNotFound)
}

func (r *pendingSightingRepository) Get(ctx context.Context, localID string) (*entities.PendingSighting, error) {
	var p entities.PendingSighting
	err := r.db.WithContext(ctx).Where("local_id = ?", localID).First(&p).Error
	if err != nil {
		return nil, translate(err, ErrPendingSightingNotFound)
	}
	return &p, nil
}

// List returns queued records oldest first.
func (r *pendingSightingRepository) List(ctx context.Context) ([]entities.PendingSighting, error) {
	var out []entities.PendingSighting
	err := r.db.WithContext(ctx).Order("created_at ASC").Order("local_id ASC").Find(&out).Error
	return out, translate(err, ErrPendingSightingNotFound)
}

func (r *pendingSightingRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.PendingSighting{}).Count(&n).Error
	return n, translate(err, ErrPendingSightingNotFound)
}

// RecordFailure bumps the attempt counter and stores the last error.
func (r *pendingSightingRepository) RecordFailure(ctx context.Context, localID, reason string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&entities.PendingSighting{}).
		Where("local_id = ?", localID).
		Updates(map[string]any{
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   reason,
			"last_attempt": at,
		})
	if res.Error != nil {
		return translate(res.Error, ErrPendingSightingNotFound)
	}
	if res.RowsAffected == 0 {
		return ErrPendingSightingNotFound
	}
	return nil
}

func (r *pendingSightingRepository) Delete(ctx context.Context, localID string) error {
	res := r.db.WithContext(ctx).Where("local_id = ?", localID).Delete(&entities.PendingSighting{})
	if res.Error != nil {
		return translate(res.Error, ErrPendingSightingNotFound)
	}
	if res.RowsAffected == 0 {
		return ErrPendingSightingNotFound
	}
	return nil
}
