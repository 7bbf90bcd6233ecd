package turn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/turn-engine/internal/services"
	"github.com/jwebster45206/turn-engine/pkg/chat"
	"github.com/jwebster45206/turn-engine/pkg/prompts"
	"github.com/jwebster45206/turn-engine/pkg/scenario"
	"github.com/jwebster45206/turn-engine/pkg/state"
	"github.com/jwebster45206/turn-engine/pkg/storage"
)

const (
	strikeOldMan = "You strike Old Man J. He crumples to the floor.\n" +
		`<effects>[{"kind":"hp_delta","target":"Old Man J","delta":-60}]</effects>`
	noChange = "You wait. Nothing happens.\n<effects>{\"effects\":[]}</effects>"
	garbage  = "The narrator mumbles something unintelligible."
)

func intPtr(n int) *int { return &n }

func testCatalog(t *testing.T) *scenario.Catalog {
	t.Helper()
	sc := &scenario.Scenario{
		ID:         "manor",
		Title:      "The Manor",
		Prologue:   "Rain hammers the gate as you arrive.",
		StartScene: "foyer",
		Scenes: map[string]scenario.Scene{
			"foyer":  {Title: "Foyer", Background: "Dust and portraits.", Hint: "The cellar door is ajar."},
			"cellar": {Title: "Cellar", Background: "Damp stone."},
		},
		NPCs: []scenario.NPC{
			{Name: "Old Man J", HP: 50, MaxHP: 100, Relationship: intPtr(60), Location: "foyer"},
		},
		Player: scenario.PlayerSeed{Gold: 10, Inventory: []string{"Lantern"}},
		Endings: map[string]scenario.Ending{
			"escape": {Title: "Escape", Text: "You run into the night."},
			"death":  {Title: "Death", Text: "The manor keeps you."},
		},
		Settings: scenario.Settings{HPLossPerMove: 5, HPZeroEnding: "death"},
	}
	cat, err := scenario.NewCatalog(sc)
	require.NoError(t, err)
	return cat
}

type fixture struct {
	store    *storage.MemoryStore
	narrator *services.MockNarrator
	metrics  *countingRecorder
	pipeline *Pipeline
}

func newFixture(t *testing.T, responses ...services.MockResponse) *fixture {
	t.Helper()
	cat := testCatalog(t)
	f := &fixture{
		store:    storage.NewMemoryStore().WithInitializer(cat.NewSession),
		narrator: services.NewMockNarrator().Script(responses...),
		metrics:  newCountingRecorder(),
	}
	f.pipeline = NewPipeline(f.store, f.narrator, nil).
		WithScenarios(cat).
		WithMetrics(f.metrics).
		WithModelTimeout(time.Second)
	return f
}

func text(s string) services.MockResponse {
	return services.MockResponse{Text: s, ChunkSize: 5}
}

func (f *fixture) newSession(t *testing.T) string {
	t.Helper()
	key, err := f.store.Create(context.Background(), "manor")
	require.NoError(t, err)
	return key
}

func (f *fixture) run(t *testing.T, key, action string) (*Result, *Collector, error) {
	t.Helper()
	c := &Collector{}
	res, err := f.pipeline.Run(context.Background(), chat.TurnRequest{SessionKey: key, Action: action}, c)
	return res, c, err
}

func (f *fixture) load(t *testing.T, key string) *state.Manager {
	t.Helper()
	sess, err := f.store.Load(context.Background(), key)
	require.NoError(t, err)
	return sess.Manager()
}

// compact collapses runs of token events so sequences are comparable.
func compact(types []EventType) []EventType {
	var out []EventType
	for _, tp := range types {
		if tp == EventToken && len(out) > 0 && out[len(out)-1] == EventToken {
			continue
		}
		out = append(out, tp)
	}
	return out
}

func eventOf(c *Collector, tp EventType) (Event, bool) {
	for _, ev := range c.Events() {
		if ev.Type == tp {
			return ev, true
		}
	}
	return Event{}, false
}

func countOf(c *Collector, tp EventType) int {
	n := 0
	for _, got := range c.Types() {
		if got == tp {
			n++
		}
	}
	return n
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: make(map[string]int)}
}

func (r *countingRecorder) inc(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key]++
}

func (r *countingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

func (r *countingRecorder) TurnFinished(o string)          { r.inc("turn:" + o) }
func (r *countingRecorder) AttemptRetried(string)          { r.inc("retry") }
func (r *countingRecorder) EffectApplied(k string)         { r.inc("effect:" + k) }
func (r *countingRecorder) EffectRejected(c string)        { r.inc("reject:" + c) }
func (r *countingRecorder) NarratorStreamed(time.Duration) { r.inc("stream") }
func (r *countingRecorder) EventEmitted(string)            { r.inc("event") }

func TestPipeline_CommitsEffects(t *testing.T) {
	f := newFixture(t, text(strikeOldMan))
	key := f.newSession(t)

	res, c, err := f.run(t, key, "I attack Old Man J")
	require.NoError(t, err)

	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, res.TurnCount)
	assert.Equal(t, []EventType{
		EventSessionID, EventPrefix, EventToken, EventSectionEnd,
		EventStats, EventWorldState, EventNPCStatus, EventDone,
	}, compact(c.Types()))
	assert.Equal(t, "You strike Old Man J. He crumples to the floor.\n", c.Text())
	assert.NotContains(t, c.Text(), "<effects")

	m := f.load(t, key)
	npc := m.World.NPCs["Old Man J"]
	assert.Equal(t, 0, npc.HP)
	assert.Equal(t, state.NPCDead, npc.Status)
	assert.Equal(t, 1, m.World.TurnCount)
	assert.Equal(t, 1, f.store.Saves())

	ev, ok := eventOf(c, EventNPCStatus)
	require.True(t, ok)
	npcs := ev.Content.([]state.NPC)
	require.Len(t, npcs, 1)
	assert.Equal(t, "Old Man J", npcs[0].Name)
	assert.Equal(t, state.NPCDead, npcs[0].Status)

	ev, ok = eventOf(c, EventSessionID)
	require.True(t, ok)
	assert.Equal(t, key, ev.Content)

	assert.Equal(t, 1, f.metrics.get("turn:committed"))
	assert.Equal(t, 1, f.metrics.get("effect:hp_delta"))
}

func TestPipeline_DeadNPCStaysDead(t *testing.T) {
	f := newFixture(t,
		text(strikeOldMan),
		text("He rises!\n"+`<effects>[{"kind":"hp_delta","target":"Old Man J","delta":40}]</effects>`),
	)
	key := f.newSession(t)

	_, _, err := f.run(t, key, "attack")
	require.NoError(t, err)
	_, _, err = f.run(t, key, "heal him")
	require.NoError(t, err)

	npc := f.load(t, key).World.NPCs["Old Man J"]
	assert.Equal(t, 0, npc.HP)
	assert.Equal(t, state.NPCDead, npc.Status)
}

func TestPipeline_RetriesThenCommits(t *testing.T) {
	for k := 1; k < DefaultMaxAttempts; k++ {
		t.Run(string(rune('0'+k))+"_failures", func(t *testing.T) {
			script := make([]services.MockResponse, 0, k+1)
			for range k {
				script = append(script, text(garbage))
			}
			script = append(script, text("You pocket a coin.\n<effects>[{\"kind\":\"gold_delta\",\"delta\":1}]</effects>"))

			f := newFixture(t, script...)
			key := f.newSession(t)

			res, c, err := f.run(t, key, "search the floor")
			require.NoError(t, err)

			assert.Equal(t, OutcomeCommitted, res.Outcome)
			assert.Equal(t, k+1, res.Attempts)
			assert.Equal(t, k, countOf(c, EventRetry))
			assert.Equal(t, k+1, countOf(c, EventPrefix))
			assert.Equal(t, k+1, f.narrator.CallCount())
			assert.Equal(t, k, f.metrics.get("retry"))

			m := f.load(t, key)
			assert.Equal(t, 11, m.Player.Gold, "effects apply once")
			assert.Equal(t, 1, m.World.TurnCount)

			ev, ok := eventOf(c, EventRetry)
			require.True(t, ok)
			assert.Equal(t, RetryContent{Attempt: 1, Max: DefaultMaxAttempts}, ev.Content)

			// The retry prompt tells the narrator why the last reply failed.
			last := f.narrator.Calls()[k].Messages
			assert.Contains(t, last[len(last)-1].Content, "could not be applied")
		})
	}
}

func TestPipeline_RejectedBatchIsRetried(t *testing.T) {
	f := newFixture(t,
		text("You pay the ghost.\n<effects>[{\"kind\":\"gold_delta\",\"delta\":5},{\"kind\":\"hp_delta\",\"target\":\"Ghost\",\"delta\":-1}]</effects>"),
		text(noChange),
	)
	key := f.newSession(t)

	res, _, err := f.run(t, key, "bribe the ghost")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 1, f.metrics.get("reject:"+state.CodeUnknownEntity))

	m := f.load(t, key)
	assert.Equal(t, 10, m.Player.Gold, "no part of a rejected batch may apply")
}

func TestPipeline_Fallback(t *testing.T) {
	f := newFixture(t, text(garbage))
	key := f.newSession(t)
	before := f.load(t, key)

	res, c, err := f.run(t, key, "do something odd")
	require.NoError(t, err)

	assert.Equal(t, OutcomeFallback, res.Outcome)
	assert.Equal(t, DefaultMaxAttempts, res.Attempts)
	assert.Equal(t, DefaultMaxAttempts, f.narrator.CallCount())
	assert.Equal(t, DefaultMaxAttempts-1, countOf(c, EventRetry))
	assert.Equal(t, 1, countOf(c, EventFallback))
	assert.Equal(t, 0, countOf(c, EventSectionEnd))

	types := compact(c.Types())
	assert.Equal(t, []EventType{
		EventFallback, EventStats, EventWorldState, EventNPCStatus, EventDone,
	}, types[len(types)-5:])

	after := f.load(t, key)
	assert.Equal(t, before.World.TurnCount+1, after.World.TurnCount)
	assert.Equal(t, before.Player, after.Player)
	after.World.TurnCount = before.World.TurnCount
	assert.Equal(t, before.World, after.World)
	assert.Equal(t, 1, f.metrics.get("turn:fallback"))
}

func TestPipeline_ModelTimeout(t *testing.T) {
	slow := services.MockResponse{Text: noChange, Delay: time.Second}
	f := newFixture(t, slow, text(noChange))
	f.pipeline.WithModelTimeout(20 * time.Millisecond)
	key := f.newSession(t)

	res, c, err := f.run(t, key, "wait")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 1, countOf(c, EventRetry))
	assert.Equal(t, 1, f.metrics.get("reject:"+state.CodeModelTimeout))
}

func TestPipeline_NarratorStartError(t *testing.T) {
	f := newFixture(t, services.MockResponse{StartErr: errors.New("connection refused")}, text(noChange))
	key := f.newSession(t)

	res, _, err := f.run(t, key, "wait")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 1, f.metrics.get("reject:"+CodeNarratorFailure))
}

func TestPipeline_CancelledBeforeCommit(t *testing.T) {
	f := newFixture(t, services.MockResponse{Text: strikeOldMan, Delay: 5 * time.Second})
	key := f.newSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Collector{}
	done := make(chan struct{})
	var (
		res *Result
		err error
	)
	go func() {
		defer close(done)
		res, err = f.pipeline.Run(ctx, chat.TurnRequest{SessionKey: key, Action: "attack"}, c)
	}()

	require.Eventually(t, func() bool { return countOf(c, EventPrefix) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, 0, f.store.Saves())
	assert.Equal(t, 0, countOf(c, EventDone))

	m := f.load(t, key)
	assert.Equal(t, 50, m.World.NPCs["Old Man J"].HP)
	assert.Equal(t, 0, m.World.TurnCount)
}

func TestPipeline_EmitterGoneAborts(t *testing.T) {
	f := newFixture(t, text(strikeOldMan))
	key := f.newSession(t)

	var seen int
	emit := EmitterFunc(func(_ context.Context, ev Event) error {
		seen++
		if ev.Type == EventToken {
			return errors.New("broken pipe")
		}
		return nil
	})

	res, err := f.pipeline.Run(context.Background(), chat.TurnRequest{SessionKey: key, Action: "attack"}, emit)
	require.Error(t, err)
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, 0, f.store.Saves())
	assert.Equal(t, 3, seen)
}

func TestPipeline_PersistenceFailure(t *testing.T) {
	f := newFixture(t, text(strikeOldMan))
	key := f.newSession(t)
	f.store.SetSaveError(errors.New("disk full"))

	res, c, err := f.run(t, key, "attack")
	require.ErrorIs(t, err, storage.ErrPersistenceFailure)
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	require.NotNil(t, res.World)
	assert.Equal(t, state.NPCDead, res.World.NPCs["Old Man J"].Status, "result keeps the unsaved state")

	types := compact(c.Types())
	assert.Equal(t, []EventType{
		EventSectionEnd, EventError, EventStats, EventWorldState, EventNPCStatus, EventDone,
	}, types[len(types)-6:])

	ev, _ := eventOf(c, EventError)
	assert.Equal(t, ErrorContent{Message: "failed to save session", Code: storage.CodePersistenceFailure}, ev.Content)

	f.store.SetSaveError(nil)
	assert.Equal(t, 50, f.load(t, key).World.NPCs["Old Man J"].HP)
}

func TestPipeline_SessionNotFound(t *testing.T) {
	f := newFixture(t)

	res, c, err := f.run(t, "missing", "look")
	require.ErrorIs(t, err, storage.ErrSessionNotFound)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, []EventType{EventError}, c.Types())
	assert.Equal(t, 0, f.narrator.CallCount())

	ev := c.Events()[0]
	assert.Equal(t, ErrorContent{Message: "session not found", Code: storage.CodeSessionNotFound}, ev.Content)
}

func TestPipeline_CreatesSessionWithoutKey(t *testing.T) {
	f := newFixture(t, text(noChange))
	c := &Collector{}

	res, err := f.pipeline.Run(context.Background(), chat.TurnRequest{ScenarioID: "manor", Action: "look"}, c)
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionKey)

	ev, ok := eventOf(c, EventSessionID)
	require.True(t, ok)
	assert.Equal(t, res.SessionKey, ev.Content)

	m := f.load(t, res.SessionKey)
	assert.Equal(t, "foyer", m.World.Location)
	assert.Equal(t, []string{"Lantern"}, m.Player.ItemNames())
}

func TestPipeline_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.Run(context.Background(), chat.TurnRequest{SessionKey: "k", Action: "   "}, &Collector{})
	require.Error(t, err)
	assert.Equal(t, 0, f.narrator.CallCount())
}

func TestPipeline_TurnCountIsMonotonic(t *testing.T) {
	f := newFixture(t, text(noChange), text(garbage), text(garbage), text(garbage), text(noChange))
	key := f.newSession(t)

	prev := 0
	for i := range 3 {
		res, _, err := f.run(t, key, "look around "+string(rune('a'+i)))
		require.NoError(t, err)
		assert.Equal(t, prev+1, res.TurnCount)
		prev = res.TurnCount
	}
	assert.Equal(t, 3, f.load(t, key).World.TurnCount)
}

func TestPipeline_StuckPolicy(t *testing.T) {
	f := newFixture(t, text(noChange), text(noChange), text(noChange),
		text("You find a key.\n<effects>[{\"kind\":\"item_add\",\"item\":\"Key\"}]</effects>"))
	key := f.newSession(t)

	_, _, err := f.run(t, key, "Open the door")
	require.NoError(t, err)
	assert.Equal(t, 0, f.load(t, key).World.StuckCount)

	_, _, err = f.run(t, key, "  open   THE door ")
	require.NoError(t, err)
	assert.Equal(t, 1, f.load(t, key).World.StuckCount)

	_, c, err := f.run(t, key, "open the door")
	require.NoError(t, err)
	assert.Equal(t, 2, f.load(t, key).World.StuckCount)
	ev, _ := eventOf(c, EventPrefix)
	assert.Equal(t, "The cellar door is ajar.", ev.Content.(PrefixContent).Hint)

	// The hint reaches the narrator's state prompt.
	calls := f.narrator.Calls()
	assert.Contains(t, calls[2].Messages[1].Content, "HINT:")

	_, _, err = f.run(t, key, "search the rug")
	require.NoError(t, err)
	m := f.load(t, key)
	assert.Equal(t, 0, m.World.StuckCount)
	assert.Empty(t, m.World.LastAction)
}

func TestPipeline_FallbackLeavesStuckCount(t *testing.T) {
	f := newFixture(t, text(noChange), text(noChange), text(garbage))
	key := f.newSession(t)

	for range 2 {
		_, _, err := f.run(t, key, "wait")
		require.NoError(t, err)
	}
	require.Equal(t, 1, f.load(t, key).World.StuckCount)

	res, _, err := f.run(t, key, "wait")
	require.NoError(t, err)
	require.Equal(t, OutcomeFallback, res.Outcome)
	assert.Equal(t, 1, f.load(t, key).World.StuckCount)
}

func TestPipeline_OpeningTurn(t *testing.T) {
	f := newFixture(t, text("Rain hammers the gate.\n<effects>[]</effects>"))
	key := f.newSession(t)

	_, _, err := f.run(t, key, "start")
	require.NoError(t, err)

	msgs := f.narrator.Calls()[0].Messages
	last := msgs[len(msgs)-1]
	assert.Equal(t, chat.ChatRoleSystem, last.Role)
	assert.True(t, strings.HasPrefix(last.Content, prompts.OpeningPrompt))
	assert.Contains(t, last.Content, "Rain hammers the gate as you arrive.")

	m := f.load(t, key)
	assert.Equal(t, 1, m.World.TurnCount)
	assert.Empty(t, m.World.LastAction, "the opening turn is not a stuck attempt")
}

func TestPipeline_MoveCostAndHPEnding(t *testing.T) {
	f := newFixture(t,
		text("You descend.\n<effects>[{\"kind\":\"hp_delta\",\"delta\":-95},{\"kind\":\"scene_move\",\"scene\":\"cellar\"}]</effects>"),
		text(noChange),
	)
	key := f.newSession(t)

	res, c, err := f.run(t, key, "jump down the stairs")
	require.NoError(t, err)
	assert.Equal(t, "death", res.Ending)

	types := compact(c.Types())
	assert.Equal(t, []EventType{
		EventSectionEnd, EventEndingStart, EventStats, EventWorldState, EventNPCStatus, EventDone,
	}, types[len(types)-6:])
	ev, _ := eventOf(c, EventEndingStart)
	assert.Equal(t, EndingContent{ID: "death", Title: "Death", Text: "The manor keeps you."}, ev.Content)

	m := f.load(t, key)
	assert.Equal(t, 0, m.Player.HP)
	assert.Equal(t, "cellar", m.World.Location)
	assert.Equal(t, "death", m.World.Ending)

	// An ended session rejects further turns without touching state.
	saves := f.store.Saves()
	_, c, err = f.run(t, key, "look")
	require.ErrorIs(t, err, ErrSessionEnded)
	assert.Equal(t, []EventType{EventSessionID, EventError}, c.Types())
	assert.Equal(t, 1, f.narrator.CallCount())
	assert.Equal(t, saves, f.store.Saves())
}

func TestPipeline_EndingFromBlock(t *testing.T) {
	f := newFixture(t,
		text("You flee.\n<effects>{\"effects\":[],\"ending\":\"nowhere\"}</effects>"),
		text("You flee.\n<effects>{\"effects\":[],\"ending\":\"escape\"}</effects>"),
	)
	key := f.newSession(t)

	res, _, err := f.run(t, key, "run for the gate")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts, "an unknown ending rejects the attempt")
	assert.Equal(t, "escape", res.Ending)
	assert.Equal(t, "escape", f.load(t, key).World.Ending)
}

func TestPipeline_SceneMoveOutsideScenario(t *testing.T) {
	f := newFixture(t,
		text("You fly to the moon.\n<effects>[{\"kind\":\"scene_move\",\"scene\":\"moon\"}]</effects>"),
		text(noChange),
	)
	key := f.newSession(t)

	res, _, err := f.run(t, key, "fly")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "foyer", f.load(t, key).World.Location)
}
