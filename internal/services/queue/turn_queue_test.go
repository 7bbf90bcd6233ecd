package queue

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/turn-engine/pkg/queue"
)

func setupTestQueue(t *testing.T) (*TurnQueue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := slog.New(slog.DiscardHandler)

	client, err := NewClient(context.Background(), "redis://"+mr.Addr(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewTurnQueue(client, ""), mr
}

func TestTurnQueue_FIFO(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	first := queue.NewRequest("session-a", "open the door", "")
	second := queue.NewRequest("session-a", "go upstairs", "")
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.RequestID, got.RequestID)
	assert.Equal(t, "open the door", got.Action)

	got, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, second.RequestID, got.RequestID)

	depth, err = q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestTurnQueue_DequeueEmpty(t *testing.T) {
	q, _ := setupTestQueue(t)

	got, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTurnQueue_EnqueueRejectsInvalid(t *testing.T) {
	q, mr := setupTestQueue(t)

	err := q.Enqueue(context.Background(), &queue.Request{Action: "look"})
	require.Error(t, err)
	assert.False(t, mr.Exists(DefaultRequestList))
}

func TestTurnQueue_BadPayload(t *testing.T) {
	q, mr := setupTestQueue(t)
	_, err := mr.Push(DefaultRequestList, "not json")
	require.NoError(t, err)

	_, err = q.Dequeue(context.Background(), time.Second)
	require.Error(t, err)
}

func TestTurnQueue_CustomList(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := NewClientFromRedis(rdb, slog.New(slog.DiscardHandler))
	t.Cleanup(func() { _ = client.Close() })

	q := NewTurnQueue(client, "custom-list")
	require.NoError(t, q.Enqueue(context.Background(), queue.NewRequest("k", "look", "")))
	assert.True(t, mr.Exists("custom-list"))
	assert.Same(t, rdb, client.Redis())
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), "redis://"+addr, slog.New(slog.DiscardHandler))
	require.Error(t, err)

	_, err = NewClient(context.Background(), "::bad-url", slog.New(slog.DiscardHandler))
	require.Error(t, err)
}
