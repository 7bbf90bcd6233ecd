package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/turn-engine/pkg/session"
	"github.com/jwebster45206/turn-engine/pkg/state"
	sessionstore "github.com/jwebster45206/turn-engine/pkg/storage"
)

const sessionKeyPrefix = "session:"

// Hash fields of a stored session.
const (
	fieldScenarioID   = "scenario_id"
	fieldPlayerState  = "player_state"
	fieldWorldState   = "world_state"
	fieldSceneID      = "current_scene_id"
	fieldTurnCount    = "turn_count"
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"
	fieldLastPlayedAt = "last_played_at"
)

// RedisStore keeps each session in a Redis hash under "session:<key>".
// A save is one MULTI/EXEC write of the mutable fields; created_at and
// scenario_id are only written when missing.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
	init   session.Initializer
}

var _ sessionstore.SessionStore = (*RedisStore)(nil)

// NewRedisStore connects to redisURL (redis://host:port/db).
func NewRedisStore(redisURL string, logger *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewRedisStoreFromClient(redis.NewClient(opt), logger), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger,
		init:   session.New,
	}
}

// WithTTL expires sessions ttl after their last save. Zero keeps them forever.
func (r *RedisStore) WithTTL(ttl time.Duration) *RedisStore {
	r.ttl = ttl
	return r
}

// WithInitializer sets how Create builds a starting snapshot.
func (r *RedisStore) WithInitializer(fn session.Initializer) *RedisStore {
	if fn != nil {
		r.init = fn
	}
	return r
}

// Client returns the underlying Redis client.
func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStore) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Session operations

func (r *RedisStore) Create(ctx context.Context, scenarioID string) (string, error) {
	sess := r.init(scenarioID)
	sess.SessionKey = session.NewKey()

	fields, err := encodeState(sess.PlayerState, sess.WorldState, sess.CurrentSceneID, sess.TurnCount, sess.UpdatedAt)
	if err != nil {
		return "", sessionstore.Failure("create", sess.SessionKey, err)
	}
	fields[fieldScenarioID] = sess.ScenarioID
	fields[fieldCreatedAt] = formatTime(sess.CreatedAt)

	key := sessionKeyPrefix + sess.SessionKey
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to create session", "session_key", sess.SessionKey, "error", err)
		return "", sessionstore.Failure("create", sess.SessionKey, err)
	}

	r.logger.Info("Session created", "session_key", sess.SessionKey, "scenario_id", scenarioID)
	return sess.SessionKey, nil
}

func (r *RedisStore) Save(ctx context.Context, key string, player *state.PlayerState, world *state.WorldState, sceneID string, turnCount int) error {
	now := time.Now().UTC()
	fields, err := encodeState(player, world, sceneID, turnCount, now)
	if err != nil {
		return sessionstore.Failure("save", key, err)
	}

	rkey := sessionKeyPrefix + key
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, rkey, fields)
		pipe.HSetNX(ctx, rkey, fieldCreatedAt, formatTime(now))
		pipe.HSetNX(ctx, rkey, fieldScenarioID, "")
		if r.ttl > 0 {
			pipe.Expire(ctx, rkey, r.ttl)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save session", "session_key", key, "error", err)
		return sessionstore.Failure("save", key, err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, key string) (*session.Session, error) {
	values, err := r.client.HGetAll(ctx, sessionKeyPrefix+key).Result()
	if err != nil {
		r.logger.Error("Failed to load session", "session_key", key, "error", err)
		return nil, sessionstore.Failure("load", key, err)
	}
	if len(values) == 0 {
		r.logger.Warn("Session not found", "session_key", key)
		return nil, sessionstore.NotFound(key)
	}

	sess, err := decodeSession(key, values)
	if err == nil {
		err = sess.Validate()
	}
	if err != nil {
		r.logger.Error("Failed to decode session", "session_key", key, "error", err)
		return nil, sessionstore.Failure("load", key, err)
	}
	return sess, nil
}

func encodeState(player *state.PlayerState, world *state.WorldState, sceneID string, turnCount int, at time.Time) (map[string]any, error) {
	if player == nil || world == nil {
		return nil, fmt.Errorf("player and world state are required")
	}
	p, err := json.Marshal(player)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal player state: %w", err)
	}
	w, err := json.Marshal(world)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal world state: %w", err)
	}
	ts := formatTime(at)
	return map[string]any{
		fieldPlayerState:  string(p),
		fieldWorldState:   string(w),
		fieldSceneID:      sceneID,
		fieldTurnCount:    strconv.Itoa(turnCount),
		fieldUpdatedAt:    ts,
		fieldLastPlayedAt: ts,
	}, nil
}

func decodeSession(key string, values map[string]string) (*session.Session, error) {
	sess := &session.Session{
		SessionKey:     key,
		ScenarioID:     values[fieldScenarioID],
		CurrentSceneID: values[fieldSceneID],
	}
	if err := json.Unmarshal([]byte(values[fieldPlayerState]), &sess.PlayerState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player state: %w", err)
	}
	if err := json.Unmarshal([]byte(values[fieldWorldState]), &sess.WorldState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal world state: %w", err)
	}

	var err error
	if sess.TurnCount, err = strconv.Atoi(values[fieldTurnCount]); err != nil {
		return nil, fmt.Errorf("invalid turn_count: %w", err)
	}
	for field, dst := range map[string]*time.Time{
		fieldCreatedAt:    &sess.CreatedAt,
		fieldUpdatedAt:    &sess.UpdatedAt,
		fieldLastPlayedAt: &sess.LastPlayedAt,
	} {
		if *dst, err = parseTime(values[field]); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", field, err)
		}
	}
	return sess, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
