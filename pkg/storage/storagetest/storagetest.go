// Package storagetest holds the behavior every SessionStore must share.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/turn-engine/pkg/state"
	"github.com/jwebster45206/turn-engine/pkg/storage"
)

// Run exercises a SessionStore implementation. newStore must return an empty
// store whose Create uses session.New.
func Run(t *testing.T, newStore func(t *testing.T) storage.SessionStore) {
	t.Run("CreateLoad", func(t *testing.T) { testCreateLoad(t, newStore(t)) })
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("LastWriteWins", func(t *testing.T) { testLastWriteWins(t, newStore(t)) })
	t.Run("ConcurrentSaves", func(t *testing.T) { testConcurrentSaves(t, newStore(t)) })
	t.Run("Timestamps", func(t *testing.T) { testTimestamps(t, newStore(t)) })
	t.Run("CorruptWorldRejected", func(t *testing.T) { testCorruptWorldRejected(t, newStore(t)) })
}

// SampleState returns a populated player and world used by the round-trip test.
func SampleState() (*state.PlayerState, *state.WorldState) {
	player := state.NewPlayerState("cellar")
	player.HP = 73
	player.MaxHP = 120
	player.MP = 4
	player.MaxMP = 9
	player.Sanity = 61
	player.Gold = 42
	player.Inventory = []state.Item{
		{Name: "Zither"},
		{Name: "Amulet", Image: "img/amulet.png"},
		{Name: "Bread"},
	}
	player.Flags["door_open"] = true
	player.Flags["met_guard"] = false
	player.CustomStats["courage"] = 2.75
	player.CustomStats["luck"] = -0.1

	world := state.NewWorldState("cellar")
	world.Time = state.GameTime{Day: 3, Phase: state.PhaseNight}
	world.TurnCount = 17
	world.StuckCount = 2
	world.LastAction = "open door"
	world.GlobalFlags["bell_rung"] = true
	world.AddNPC(state.NPC{
		Name: "Old Man J", HP: 0, MaxHP: 100, Status: state.NPCDead,
		Relationship: 12, Emotion: "still", Location: "foyer",
	})
	world.AddNPC(state.NPC{
		Name: "Guard", HP: 35, MaxHP: 50, Status: state.NPCAlive,
		Relationship: 80, Emotion: "wary", Location: "cellar", IsHostile: true,
	})
	world.AddNPC(state.NPC{
		Name: "Whisper", HP: 5, MaxHP: 5, Status: state.NPCUnknown, Relationship: 50,
	})
	return player, world
}

func testCreateLoad(t *testing.T, s storage.SessionStore) {
	ctx := context.Background()
	key, err := s.Create(ctx, "haunted_manor")
	require.NoError(t, err)
	require.NotEmpty(t, key)

	sess, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, sess.SessionKey)
	assert.Equal(t, "haunted_manor", sess.ScenarioID)
	assert.Equal(t, 0, sess.TurnCount)
	assert.Equal(t, 0, sess.WorldState.TurnCount)
	assert.Empty(t, sess.WorldState.NPCs)

	other, err := s.Create(ctx, "haunted_manor")
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func testRoundTrip(t *testing.T, s storage.SessionStore) {
	ctx := context.Background()
	key, err := s.Create(ctx, "rt")
	require.NoError(t, err)

	player, world := SampleState()
	require.NoError(t, s.Save(ctx, key, player, world, "cellar", 17))

	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, player, got.PlayerState)
	assert.Equal(t, world, got.WorldState)
	assert.Equal(t, "cellar", got.CurrentSceneID)
	assert.Equal(t, 17, got.TurnCount)
	assert.Equal(t, "rt", got.ScenarioID)

	names := make([]string, 0, len(got.PlayerState.Inventory))
	for _, it := range got.PlayerState.Inventory {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"Zither", "Amulet", "Bread"}, names)

	// A second cycle reproduces the same snapshot again.
	require.NoError(t, s.Save(ctx, key, got.PlayerState, got.WorldState, got.CurrentSceneID, got.TurnCount))
	again, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, got.PlayerState, again.PlayerState)
	assert.Equal(t, got.WorldState, again.WorldState)
}

func testNotFound(t *testing.T, s storage.SessionStore) {
	_, err := s.Load(context.Background(), "does-not-exist")
	if !errors.Is(err, storage.ErrSessionNotFound) {
		t.Fatalf("Load() err = %v, want ErrSessionNotFound", err)
	}
}

func testLastWriteWins(t *testing.T, s storage.SessionStore) {
	ctx := context.Background()
	key, err := s.Create(ctx, "lww")
	require.NoError(t, err)

	base, err := s.Load(ctx, key)
	require.NoError(t, err)

	// Two turns start from the same snapshot.
	a := base.Manager()
	b := base.Manager()
	_, err = a.ApplyEffect(state.GoldDelta{Delta: 10})
	require.NoError(t, err)
	a.IncrementTurn()
	_, err = b.ApplyEffect(state.ItemAdd{Item: state.Item{Name: "Rope"}})
	require.NoError(t, err)
	b.IncrementTurn()

	require.NoError(t, s.Save(ctx, key, a.Player, a.World, a.World.Location, a.World.TurnCount))
	require.NoError(t, s.Save(ctx, key, b.Player, b.World, b.World.Location, b.World.TurnCount))

	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, got.PlayerState.Gold, "first save must be overwritten, not merged")
	assert.Equal(t, []state.Item{{Name: "Rope"}}, got.PlayerState.Inventory)
	assert.Equal(t, 1, got.TurnCount)
}

func testConcurrentSaves(t *testing.T, s storage.SessionStore) {
	ctx := context.Background()
	key, err := s.Create(ctx, "race")
	require.NoError(t, err)
	base, err := s.Load(ctx, key)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(gold int) {
			defer wg.Done()
			m := base.Manager()
			m.Player.Gold = gold
			assert.NoError(t, s.Save(ctx, key, m.Player, m.World, m.World.Location, 1))
		}(i)
	}
	wg.Wait()

	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.PlayerState.Gold, 1)
	assert.LessOrEqual(t, got.PlayerState.Gold, 8)
}

func testTimestamps(t *testing.T, s storage.SessionStore) {
	ctx := context.Background()
	key, err := s.Create(ctx, "ts")
	require.NoError(t, err)
	created, err := s.Load(ctx, key)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Save(ctx, key, created.PlayerState, created.WorldState, "", 1))

	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(created.CreatedAt), "created_at must survive saves")
	assert.True(t, got.UpdatedAt.After(created.UpdatedAt) || got.UpdatedAt.Equal(created.UpdatedAt))
	assert.False(t, got.LastPlayedAt.Before(got.CreatedAt))
}

func testCorruptWorldRejected(t *testing.T, s storage.SessionStore) {
	tests := []struct {
		name    string
		corrupt func(w *state.WorldState)
	}{
		{name: "day zero", corrupt: func(w *state.WorldState) { w.Time.Day = 0 }},
		{name: "unknown phase", corrupt: func(w *state.WorldState) { w.Time.Phase = "dusk" }},
		{name: "negative turn count", corrupt: func(w *state.WorldState) { w.TurnCount = -1 }},
		{name: "alive npc at zero hp", corrupt: func(w *state.WorldState) {
			npc := w.NPCs["Guard"]
			npc.HP = 0
			w.NPCs["Guard"] = npc
		}},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := s.Create(ctx, "corrupt")
			require.NoError(t, err)

			player, world := SampleState()
			tt.corrupt(world)
			require.NoError(t, s.Save(ctx, key, player, world, "cellar", 1))

			_, err = s.Load(ctx, key)
			if !errors.Is(err, storage.ErrPersistenceFailure) {
				t.Fatalf("Load() err = %v, want ErrPersistenceFailure", err)
			}
		})
	}
}
