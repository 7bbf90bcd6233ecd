package storage

import (
	"context"

	"github.com/jwebster45206/turn-engine/pkg/session"
	"github.com/jwebster45206/turn-engine/pkg/state"
)

// SessionStore persists session snapshots under an opaque key.
//
// Stores take no per-session lock. Two turns that load the same snapshot and
// save independently race, and the later save wins without merging.
type SessionStore interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Create stores a fresh snapshot for the scenario and returns its key.
	Create(ctx context.Context, scenarioID string) (string, error)

	// Save upserts the snapshot for key. Last write wins.
	Save(ctx context.Context, key string, player *state.PlayerState, world *state.WorldState, sceneID string, turnCount int) error

	// Load returns the snapshot for key or ErrSessionNotFound.
	Load(ctx context.Context, key string) (*session.Session, error)
}
