package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailhive/retailhive-backend/pkg/config"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) AccessSessionKey(accessID string) string {
	return "sess:" + accessID
}

func newTestManager(t *testing.T) (*Manager, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	manager, err := NewManager(store, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60})
	require.NoError(t, err)
	return manager, store
}

func TestNewManagerValidatesTTL(t *testing.T) {
	_, err := NewManager(nil, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60})
	assert.Error(t, err)

	_, err = NewManager(newMemoryStore(), config.JWTConfig{ExpirationMinutes: 15})
	assert.Error(t, err)

	_, err = NewManager(newMemoryStore(), config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30})
	assert.Error(t, err)
}

func TestGenerateAndRotate(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager(t)

	token, err := manager.Generate(ctx, "access-1")
	require.NoError(t, err)
	assert.Equal(t, token, store.data["sess:access-1"])
	assert.Equal(t, time.Hour, store.ttls["sess:access-1"])

	_, _, err = manager.Rotate(ctx, "access-1", "wrong")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	newID, newToken, err := manager.Rotate(ctx, "access-1", token)
	require.NoError(t, err)
	assert.NotEqual(t, "access-1", newID)
	assert.NotContains(t, store.data, "sess:access-1")
	assert.Equal(t, newToken, store.data["sess:"+newID])

	_, _, err = manager.Rotate(ctx, "access-1", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevokeAndHasSession(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	_, err := manager.Generate(ctx, "access-2")
	require.NoError(t, err)

	ok, err := manager.HasSession(ctx, "access-2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, manager.Revoke(ctx, "access-2"))
	ok, err = manager.HasSession(ctx, "access-2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = manager.HasSession(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Error(t, manager.Revoke(ctx, " "))
}
