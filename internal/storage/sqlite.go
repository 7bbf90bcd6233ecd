package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jwebster45206/turn-engine/internal/storage/migrations"
	"github.com/jwebster45206/turn-engine/pkg/session"
	"github.com/jwebster45206/turn-engine/pkg/state"
	sessionstore "github.com/jwebster45206/turn-engine/pkg/storage"
)

// SQLiteStore keeps sessions in a single game_sessions table. Saves are
// one upsert that never touches created_at or scenario_id.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	init   session.Initializer
}

var _ sessionstore.SessionStore = (*SQLiteStore)(nil)

const upsertSessionSQL = `
INSERT INTO game_sessions (
    session_key, scenario_id, player_state, world_state, current_scene_id,
    turn_count, created_at, updated_at, last_played_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_key) DO UPDATE SET
    player_state = excluded.player_state,
    world_state = excluded.world_state,
    current_scene_id = excluded.current_scene_id,
    turn_count = excluded.turn_count,
    updated_at = excluded.updated_at,
    last_played_at = excluded.last_played_at`

const selectSessionSQL = `
SELECT scenario_id, player_state, world_state, current_scene_id, turn_count,
       created_at, updated_at, last_played_at
FROM game_sessions WHERE session_key = ?`

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; SQLite serializes them anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("SQLite session store ready", "path", path)
	return &SQLiteStore{db: db, logger: logger, init: session.New}, nil
}

// WithInitializer sets how Create builds a starting snapshot.
func (s *SQLiteStore) WithInitializer(fn session.Initializer) *SQLiteStore {
	if fn != nil {
		s.init = fn
	}
	return s
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, scenarioID string) (string, error) {
	sess := s.init(scenarioID)
	sess.SessionKey = session.NewKey()

	if err := s.upsert(ctx, sess.SessionKey, sess.ScenarioID, sess.PlayerState, sess.WorldState,
		sess.CurrentSceneID, sess.TurnCount, sess.CreatedAt, sess.UpdatedAt); err != nil {
		s.logger.Error("Failed to create session", "session_key", sess.SessionKey, "error", err)
		return "", sessionstore.Failure("create", sess.SessionKey, err)
	}
	s.logger.Info("Session created", "session_key", sess.SessionKey, "scenario_id", scenarioID)
	return sess.SessionKey, nil
}

func (s *SQLiteStore) Save(ctx context.Context, key string, player *state.PlayerState, world *state.WorldState, sceneID string, turnCount int) error {
	now := time.Now().UTC()
	if err := s.upsert(ctx, key, "", player, world, sceneID, turnCount, now, now); err != nil {
		s.logger.Error("Failed to save session", "session_key", key, "error", err)
		return sessionstore.Failure("save", key, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (*session.Session, error) {
	var (
		playerJSON, worldJSON        string
		created, updated, lastPlayed int64
	)
	sess := &session.Session{SessionKey: key}
	err := s.db.QueryRowContext(ctx, selectSessionSQL, key).Scan(
		&sess.ScenarioID, &playerJSON, &worldJSON, &sess.CurrentSceneID, &sess.TurnCount,
		&created, &updated, &lastPlayed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("Session not found", "session_key", key)
		return nil, sessionstore.NotFound(key)
	}
	if err != nil {
		s.logger.Error("Failed to load session", "session_key", key, "error", err)
		return nil, sessionstore.Failure("load", key, err)
	}

	if err := json.Unmarshal([]byte(playerJSON), &sess.PlayerState); err != nil {
		return nil, sessionstore.Failure("load", key, fmt.Errorf("failed to unmarshal player state: %w", err))
	}
	if err := json.Unmarshal([]byte(worldJSON), &sess.WorldState); err != nil {
		return nil, sessionstore.Failure("load", key, fmt.Errorf("failed to unmarshal world state: %w", err))
	}
	if err := sess.Validate(); err != nil {
		s.logger.Error("Corrupt session snapshot", "session_key", key, "error", err)
		return nil, sessionstore.Failure("load", key, err)
	}
	sess.CreatedAt = fromNanos(created)
	sess.UpdatedAt = fromNanos(updated)
	sess.LastPlayedAt = fromNanos(lastPlayed)
	return sess, nil
}

func (s *SQLiteStore) upsert(ctx context.Context, key, scenarioID string, player *state.PlayerState, world *state.WorldState, sceneID string, turnCount int, createdAt, updatedAt time.Time) error {
	if player == nil || world == nil {
		return fmt.Errorf("player and world state are required")
	}
	p, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("failed to marshal player state: %w", err)
	}
	w, err := json.Marshal(world)
	if err != nil {
		return fmt.Errorf("failed to marshal world state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, upsertSessionSQL,
		key, scenarioID, string(p), string(w), sceneID, turnCount,
		toNanos(createdAt), toNanos(updatedAt), toNanos(updatedAt),
	)
	return err
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(v int64) time.Time {
	return time.Unix(0, v).UTC()
}
