// Package repository provides repository interfaces and GORM implementations
// over the local store entities.
package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/findrapp/findr/internal/errors"
)

// Sentinel errors for repository operations.
var (
	// ErrPendingSightingNotFound indicates the local id is not queued.
	ErrPendingSightingNotFound = errors.NewStd("pending sighting not found")

	// ErrCredentialNotFound indicates no local account exists for the email.
	ErrCredentialNotFound = errors.NewStd("credential not found")

	// ErrSessionNotFound indicates no session is stored under the key.
	ErrSessionNotFound = errors.NewStd("session not found")

	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.NewStd("duplicate key")
)

// translate maps GORM errors to repository sentinels.
func translate(err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return ErrDuplicateKey
	default:
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
}

// isUniqueViolation catches driver errors that were not translated by GORM.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}
