package identity

import (
	"context"
	"encoding/json"

	"github.com/findrapp/findr/internal/datastore/repository"
	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/logger"
)

// SessionKey is the key the signed in user is stored under.
const SessionKey = "user_data"

type sessionStore struct {
	repo repository.SessionRepository
	log  logger.Logger
}

func (s sessionStore) save(ctx context.Context, u User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.repo.Put(ctx, SessionKey, string(data))
}

// load returns the stored user. A missing or unreadable session is reported
// as absent.
func (s sessionStore) load(ctx context.Context) (User, bool, error) {
	raw, err := s.repo.Get(ctx, SessionKey)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.log.Warn("discarding unreadable session", logger.Error(err))
		return User{}, false, nil
	}
	return u, true, nil
}

func (s sessionStore) clear(ctx context.Context) error {
	return s.repo.Delete(ctx, SessionKey)
}
