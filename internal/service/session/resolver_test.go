package session_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodloop/assistant/internal/service/session"
	"github.com/foodloop/assistant/internal/storage"
)

type countingStore struct {
	storage.Store
	sets int
}

func (s *countingStore) Set(ctx context.Context, key, value string) error {
	s.sets++
	return s.Store.Set(ctx, key, value)
}

func TestGetOrCreateSessionIDIsStable(t *testing.T) {
	store := &countingStore{Store: storage.NewMemoryStore()}
	r := session.NewResolver(store)
	ctx := context.Background()

	first, err := r.GetOrCreateSessionID(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := r.GetOrCreateSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.sets, "exactly one identifier persisted")

	stored, ok, err := store.Get(ctx, session.StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first, stored)
}

func TestGetOrCreateSessionIDReturnsExisting(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, session.StorageKey, "existing-id"))

	id, err := session.NewResolver(store).GetOrCreateSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "existing-id", id)
}

func TestGetOrCreateSessionIDAcrossResolvers(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "profile.db")

	s1, err := storage.NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	first, err := session.NewResolver(s1).GetOrCreateSessionID(ctx)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := storage.NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer s2.Close()
	second, err := session.NewResolver(s2).GetOrCreateSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

type slowStore struct {
	storage.Store
	delay time.Duration
}

func (s slowStore) Get(ctx context.Context, key string) (string, bool, error) {
	time.Sleep(s.delay)
	return s.Store.Get(ctx, key)
}

func TestGetOrCreateSessionIDConcurrentFirstUse(t *testing.T) {
	store := slowStore{Store: storage.NewMemoryStore(), delay: 20 * time.Millisecond}
	r := session.NewResolver(store)

	const callers = 4
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := r.GetOrCreateSessionID(context.Background())
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	stored, ok, err := store.Get(context.Background(), session.StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ids[0], stored)
}
