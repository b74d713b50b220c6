package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/findrapp/findr/internal/datastore/entities"
)

// CredentialRepository stores local accounts.
type CredentialRepository interface {
	// Create inserts a new credential; an existing email or username yields ErrDuplicateKey.
	Create(ctx context.Context, c *entities.Credential) error
	GetByEmail(ctx context.Context, email string) (*entities.Credential, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	ListBySyncStatus(ctx context.Context, statuses ...entities.SyncStatus) ([]entities.Credential, error)
	UpdateSync(ctx context.Context, email string, status entities.SyncStatus, remoteID *string, syncErr string, at time.Time) error
}

type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a CredentialRepository.
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Create(ctx context.Context, c *entities.Credential) error {
	return translate(r.db.WithContext(ctx).Create(c).Error, ErrCredentialNotFound)
}

func (r *credentialRepository) GetByEmail(ctx context.Context, email string) (*entities.Credential, error) {
	var c entities.Credential
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&c).Error; err != nil {
		return nil, translate(err, ErrCredentialNotFound)
	}
	return &c, nil
}

func (r *credentialRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", email)
}

func (r *credentialRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = ?", username)
}

func (r *credentialRepository) exists(ctx context.Context, query string, arg any) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.Credential{}).Where(query, arg).Count(&n).Error
	if err != nil {
		return false, translate(err, ErrCredentialNotFound)
	}
	return n > 0, nil
}

// ListBySyncStatus returns matching credentials oldest first.
func (r *credentialRepository) ListBySyncStatus(ctx context.Context, statuses ...entities.SyncStatus) ([]entities.Credential, error) {
	var out []entities.Credential
	q := r.db.WithContext(ctx).Order("created_at ASC")
	if len(statuses) > 0 {
		q = q.Where("sync_status IN ?", statuses)
	}
	err := q.Find(&out).Error
	return out, translate(err, ErrCredentialNotFound)
}

func (r *credentialRepository) UpdateSync(ctx context.Context, email string, status entities.SyncStatus, remoteID *string, syncErr string, at time.Time) error {
	updates := map[string]any{
		"sync_status":       status,
		"sync_error":        syncErr,
		"last_sync_attempt": at,
	}
	if remoteID != nil {
		updates["remote_id"] = *remoteID
	}

	res := r.db.WithContext(ctx).Model(&entities.Credential{}).Where("email = ?", email).Updates(updates)
	if res.Error != nil {
		return translate(res.Error, ErrCredentialNotFound)
	}
	if res.RowsAffected == 0 {
		return ErrCredentialNotFound
	}
	return nil
}
