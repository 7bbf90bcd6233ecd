// Package session defines the persisted snapshot of one game.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/turn-engine/pkg/state"
)

// Session is the persisted snapshot of a game. Stores own it; a turn loads one,
// mutates a copy through state.Manager and saves it back.
type Session struct {
	SessionKey     string             `json:"session_key"`
	ScenarioID     string             `json:"scenario_id"`
	PlayerState    *state.PlayerState `json:"player_state"`
	WorldState     *state.WorldState  `json:"world_state"`
	CurrentSceneID string             `json:"current_scene_id"`
	TurnCount      int                `json:"turn_count"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	LastPlayedAt   time.Time          `json:"last_played_at"`
}

// Initializer builds the starting snapshot for a scenario. The key is assigned
// by the store.
type Initializer func(scenarioID string) *Session

// NewKey returns a fresh opaque session key.
func NewKey() string {
	return uuid.NewString()
}

// New returns a fresh session for a scenario with default player vitals, no
// NPCs and no flags.
func New(scenarioID string) *Session {
	return FromState(scenarioID, state.NewPlayerState(""), state.NewWorldState(""))
}

// FromState wraps initial player and world state in a new session.
func FromState(scenarioID string, player *state.PlayerState, world *state.WorldState) *Session {
	now := time.Now().UTC()
	return &Session{
		ScenarioID:     scenarioID,
		PlayerState:    player,
		WorldState:     world,
		CurrentSceneID: world.Location,
		TurnCount:      world.TurnCount,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastPlayedAt:   now,
	}
}

// Manager returns a state manager over copies of the session's state, so
// mutations do not leak into the snapshot until it is saved.
func (s *Session) Manager() *state.Manager {
	var player *state.PlayerState
	var world *state.WorldState
	if s.PlayerState != nil {
		p := *s.PlayerState
		player = &p
	}
	if s.WorldState != nil {
		w := *s.WorldState
		world = &w
	}
	return state.NewManager(player, world).Clone()
}

// Apply copies the manager's state back into the session.
func (s *Session) Apply(m *state.Manager) {
	c := m.Clone()
	s.PlayerState = c.Player
	s.WorldState = c.World
	s.CurrentSceneID = c.World.Location
	s.TurnCount = c.World.TurnCount
}

// Validate reports a snapshot that is missing state or whose world breaks
// its structural invariants.
func (s *Session) Validate() error {
	if s.PlayerState == nil {
		return errors.New("player state is missing")
	}
	if s.WorldState == nil {
		return errors.New("world state is missing")
	}
	if err := s.WorldState.Validate(); err != nil {
		return fmt.Errorf("world state: %w", err)
	}
	return nil
}

// Ended reports whether the session has reached an ending.
func (s *Session) Ended() bool {
	return s.WorldState != nil && s.WorldState.Ending != ""
}
