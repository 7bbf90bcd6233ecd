package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/turn-engine/pkg/queue"
)

// DefaultRequestList is the Redis list turn requests are pushed to.
const DefaultRequestList = "turn-requests"

// TurnQueue is a FIFO of turn requests on a Redis list. Requests for the same
// session are not serialized; the worker runs them as they come.
type TurnQueue struct {
	client *Client
	key    string
}

// NewTurnQueue creates a queue on the given list name. An empty name uses
// DefaultRequestList.
func NewTurnQueue(client *Client, list string) *TurnQueue {
	if list == "" {
		list = DefaultRequestList
	}
	return &TurnQueue{client: client, key: list}
}

// Enqueue adds a request to the end of the queue.
func (q *TurnQueue) Enqueue(ctx context.Context, req *queue.Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid turn request: %w", err)
	}
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	q.client.logger.Debug("Turn request queued",
		"request_id", req.RequestID,
		"session_key", req.SessionKey,
		"list", q.key)
	return nil
}

// Dequeue blocks up to timeout for the next request. It returns nil, nil when
// the wait times out with the queue still empty.
func (q *TurnQueue) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Request, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	req, err := queue.FromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// Depth returns the number of requests waiting.
func (q *TurnQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get request queue depth: %w", err)
	}
	return int(count), nil
}
