package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/foodloop/assistant/internal/storage"
)

// StorageKey is the key the conversation session identifier is kept under.
const StorageKey = "df_session_id"

// Resolver hands out the stable conversation session identifier of one
// storage scope.
type Resolver struct {
	store storage.Store
	newID func() string

	// mu makes read-then-create atomic for concurrent sends of one scope.
	mu sync.Mutex
}

// NewResolver returns a Resolver reading and writing store.
func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store, newID: uuid.NewString}
}

// GetOrCreateSessionID returns the stored identifier, generating and
// persisting a new one when none exists yet.
func (r *Resolver) GetOrCreateSessionID(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok, err := r.store.Get(ctx, StorageKey)
	if err != nil {
		return "", errors.Wrap(err, "load session id")
	}
	if ok && id != "" {
		return id, nil
	}

	id = r.newID()
	if err := r.store.Set(ctx, StorageKey, id); err != nil {
		return "", errors.Wrap(err, "persist session id")
	}
	log.Info().Str("session_id", id).Msg("created conversation session")
	return id, nil
}
