package runner

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/turn-engine/internal/handlers"
	"github.com/jwebster45206/turn-engine/internal/services"
	"github.com/jwebster45206/turn-engine/pkg/scenario"
	"github.com/jwebster45206/turn-engine/pkg/storage"
	"github.com/jwebster45206/turn-engine/pkg/turn"
)

const (
	coinReply  = "You pocket a coin.\n<effects>[{\"kind\":\"gold_delta\",\"delta\":3}]</effects>"
	fleeReply  = "You bolt for the stairs.\n<effects>{\"effects\":[{\"kind\":\"scene_move\",\"scene\":\"library\"}],\"ending\":\"escape\"}</effects>"
	quietReply = "The house is quiet.\n<effects>[]</effects>"
)

// startAPI serves the real routes over a memory store and a scripted narrator.
func startAPI(t *testing.T, narration ...string) string {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cat, err := scenario.NewCatalog(&scenario.Scenario{
		ID:         "manor",
		Title:      "The Manor",
		StartScene: "foyer",
		Scenes: map[string]scenario.Scene{
			"foyer":   {Title: "Foyer"},
			"library": {Title: "Library"},
		},
		Player:  scenario.PlayerSeed{Gold: 10},
		Endings: map[string]scenario.Ending{"escape": {Title: "Out", Text: "The door slams behind you."}},
	})
	require.NoError(t, err)

	store := storage.NewMemoryStore().WithInitializer(cat.NewSession)
	narrator := services.NewMockNarrator(narration...)
	srv := httptest.NewServer(handlers.Routes(handlers.Deps{
		Logger:  log,
		Store:   store,
		Turns:   turn.NewPipeline(store, narrator, log).WithScenarios(cat),
		Catalog: cat,
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func ptr[T any](v T) *T { return &v }

func TestRunSuite(t *testing.T) {
	r := NewRunner(startAPI(t, coinReply, fleeReply, quietReply) + "/")
	r.ErrorHandlingMode = ErrorHandlingExit

	suite := TestSuite{
		Name:     "coin then flee",
		Scenario: "manor",
		Steps: []TestStep{
			{
				Name:   "search",
				Action: "search the desk",
				Expectations: Expectations{
					Gold:             ptr(13),
					TurnCount:        ptr(1),
					Scene:            ptr("foyer"),
					Events:           []turn.EventType{turn.EventStats, turn.EventDone},
					NoEvents:         []turn.EventType{turn.EventFallback},
					ResponseContains: []string{"COIN"},
				},
			},
			{
				Name:   "flee",
				Action: "run",
				Expectations: Expectations{
					Scene:         ptr("library"),
					Ending:        ptr("escape"),
					TurnCount:     ptr(2),
					Events:        []turn.EventType{turn.EventEndingStart},
					ResponseRegex: `^You bolt`,
				},
			},
			{
				Name:         "after the end",
				Action:       "look",
				Expectations: Expectations{ErrorCode: ptr(turn.CodeSessionEnded), TurnCount: ptr(2)},
			},
			{Name: "fresh start", Action: NewSessionAction},
			{
				Name:         "quiet",
				Action:       "listen",
				Expectations: Expectations{Gold: ptr(10), TurnCount: ptr(1), ResponseMaxLength: ptr(40)},
			},
		},
	}

	result, err := r.RunSuite(context.Background(), suite)
	require.NoError(t, err)
	require.Len(t, result.Results, 5)
	for _, step := range result.Results {
		assert.True(t, step.Success, "%s: %v", step.StepName, step.Error)
	}
	assert.True(t, result.Results[3].IsReset)
	assert.Equal(t, "You pocket a coin.\n", result.Results[0].ResponseText)
	assert.NotEmpty(t, result.SessionKey)
}

func TestRunSuite_FailedExpectation(t *testing.T) {
	r := NewRunner(startAPI(t, coinReply, quietReply))

	suite := TestSuite{
		Name:     "wrong gold",
		Scenario: "manor",
		Steps: []TestStep{
			{Name: "search", Action: "search", Expectations: Expectations{Gold: ptr(99)}},
			{Name: "wait", Action: "wait", Expectations: Expectations{TurnCount: ptr(2)}},
		},
	}

	result, err := r.RunSuite(context.Background(), suite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected gold to be 99, got 13")
	// Continue mode runs the remaining steps.
	require.Len(t, result.Results, 2)
	assert.False(t, result.Results[0].Success)
	assert.True(t, result.Results[1].Success)
}

func TestRunSuite_MissingScenario(t *testing.T) {
	r := NewRunner(startAPI(t))

	_, err := r.RunSuite(context.Background(), TestSuite{Name: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create session returned 400")

	r.ScenarioOverride = "manor"
	result, err := r.RunSuite(context.Background(), TestSuite{Name: "override"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionKey)
}

func TestLoadTestSuiteWithExpansion(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		return path
	}

	write("coin.yaml", `
scenario: manor
steps:
  - name: search
    action: search the desk
    expect:
      gold: 13
      events: [stats, done]
      inventory: [Rope]
`)
	write("inner.yaml", "name: inner\ncases: [coin.yaml]\n")
	seq := write("all.yaml", "name: all\ncases: [inner.yaml, coin.yaml]\n")

	jobs, err := LoadTestSuiteWithExpansion(seq, dir)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "coin", jobs[0].Name)

	step := jobs[0].Suite.Steps[0]
	assert.Equal(t, "search the desk", step.Action)
	assert.Equal(t, 13, *step.Expectations.Gold)
	assert.Equal(t, []turn.EventType{turn.EventStats, turn.EventDone}, step.Expectations.Events)
	assert.Equal(t, []string{"Rope"}, step.Expectations.Inventory)

	write("broken.yaml", "name: broken\ncases: [missing.yaml]\n")
	_, err = LoadTestSuiteWithExpansion(filepath.Join(dir, "broken.yaml"), dir)
	assert.ErrorContains(t, err, "missing.yaml")
}
