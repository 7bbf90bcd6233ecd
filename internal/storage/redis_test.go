package storage

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/turn-engine/internal/errutil"
	"github.com/jwebster45206/turn-engine/pkg/session"
	sessionstore "github.com/jwebster45206/turn-engine/pkg/storage"
	"github.com/jwebster45206/turn-engine/pkg/storage/storagetest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	store, err := NewRedisStore("redis://"+mr.Addr(), testLogger())
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create redis store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
		mr.Close()
	})
	return store, mr
}

func TestRedisStore_Conformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) sessionstore.SessionStore {
		store, _ := setupTestRedis(t)
		return store
	})
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := setupTestRedis(t)
	store.WithTTL(time.Hour)
	ctx := context.Background()

	key, err := store.Create(ctx, "ttl")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL(sessionKeyPrefix+key))

	mr.FastForward(2 * time.Hour)
	_, err = store.Load(ctx, key)
	errutil.AssertErrorCode(t, err, sessionstore.CodeSessionNotFound)
}

func TestRedisStore_SaveKeepsCreatedAt(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	key, err := store.Create(ctx, "keep")
	require.NoError(t, err)
	created := mr.HGet(sessionKeyPrefix+key, fieldCreatedAt)
	require.NotEmpty(t, created)

	sess, err := store.Load(ctx, key)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, key, sess.PlayerState, sess.WorldState, "hall", 3))

	assert.Equal(t, created, mr.HGet(sessionKeyPrefix+key, fieldCreatedAt))
	assert.Equal(t, "keep", mr.HGet(sessionKeyPrefix+key, fieldScenarioID))
	assert.Equal(t, "3", mr.HGet(sessionKeyPrefix+key, fieldTurnCount))
}

func TestRedisStore_Initializer(t *testing.T) {
	store, _ := setupTestRedis(t)
	store.WithInitializer(func(id string) *session.Session {
		s := session.New(id)
		s.PlayerState.Gold = 99
		return s
	})

	key, err := store.Create(context.Background(), "rich")
	require.NoError(t, err)
	sess, err := store.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 99, sess.PlayerState.Gold)
}

func TestRedisStore_ConnectionLost(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()
	key, err := store.Create(ctx, "down")
	require.NoError(t, err)
	sess, err := store.Load(ctx, key)
	require.NoError(t, err)

	mr.Close()

	err = store.Save(ctx, key, sess.PlayerState, sess.WorldState, "", 1)
	errutil.AssertErrorCode(t, err, sessionstore.CodePersistenceFailure)
	errutil.AssertErrorContext(t, err, "op", "save")
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore("://nope", testLogger())
	assert.Error(t, err)
}

func TestRedisStore_LoadRejectsCorruptWorld(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
	}{
		{name: "invalid world json", field: fieldWorldState, value: "{"},
		{name: "world breaks invariants", field: fieldWorldState, value: `{"time":{"day":0,"phase":"morning"},"turn_count":0}`},
		{name: "null world", field: fieldWorldState, value: "null"},
		{name: "null player", field: fieldPlayerState, value: "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mr := setupTestRedis(t)
			ctx := context.Background()

			key, err := store.Create(ctx, "corrupt")
			require.NoError(t, err)
			mr.HSet(sessionKeyPrefix+key, tt.field, tt.value)

			_, err = store.Load(ctx, key)
			require.ErrorIs(t, err, sessionstore.ErrPersistenceFailure)
			errutil.AssertErrorCode(t, err, sessionstore.CodePersistenceFailure)
		})
	}
}
