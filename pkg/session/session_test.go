package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/turn-engine/pkg/state"
)

func TestNew(t *testing.T) {
	s := New("haunted_manor")

	require.NotNil(t, s.PlayerState)
	require.NotNil(t, s.WorldState)
	assert.Equal(t, "haunted_manor", s.ScenarioID)
	assert.Equal(t, 0, s.TurnCount)
	assert.Equal(t, 0, s.WorldState.TurnCount)
	assert.Empty(t, s.WorldState.NPCs)
	assert.Empty(t, s.WorldState.GlobalFlags)
	assert.Equal(t, state.DefaultHP, s.PlayerState.HP)
	assert.Equal(t, 1, s.WorldState.Time.Day)
	assert.NoError(t, s.WorldState.Validate())
	assert.False(t, s.Ended())
}

func TestManagerIsolation(t *testing.T) {
	s := New("x")
	s.WorldState.AddNPC(state.NewNPC("Guard", 10))

	m := s.Manager()
	_, err := m.UpdateNPCHP("Guard", -10)
	require.NoError(t, err)
	m.IncrementTurn()

	assert.Equal(t, 10, s.WorldState.NPCs["Guard"].HP, "snapshot must not change before Apply")
	assert.Equal(t, 0, s.TurnCount)

	s.Apply(m)
	assert.Equal(t, state.NPCDead, s.WorldState.NPCs["Guard"].Status)
	assert.Equal(t, 1, s.TurnCount)
}

func TestNewKeyUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		k := NewKey()
		if seen[k] {
			t.Fatalf("duplicate key %s", k)
		}
		seen[k] = true
	}
}

func TestSession_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Session)
		wantErr string
	}{
		{name: "fresh session", mutate: func(s *Session) {}},
		{name: "missing player", mutate: func(s *Session) { s.PlayerState = nil }, wantErr: "player state"},
		{name: "missing world", mutate: func(s *Session) { s.WorldState = nil }, wantErr: "world state"},
		{name: "bad day", mutate: func(s *Session) { s.WorldState.Time.Day = 0 }, wantErr: "time.day"},
		{name: "negative stuck count", mutate: func(s *Session) { s.WorldState.StuckCount = -2 }, wantErr: "stuck_count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("validate")
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
