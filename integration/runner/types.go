package runner

import (
	"time"

	"github.com/jwebster45206/turn-engine/pkg/turn"
)

// Special action values that trigger non-turn steps
const (
	NewSessionAction = "NEW_SESSION"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name     string     `yaml:"name"`
	Scenario string     `yaml:"scenario,omitempty"` // Used for regular tests
	Steps    []TestStep `yaml:"steps,omitempty"`    // Used for regular tests
	Cases    []string   `yaml:"cases,omitempty"`    // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep defines a single turn and its expected outcomes
// Use action: "NEW_SESSION" to continue the suite on a fresh session
type TestStep struct {
	Name         string       `yaml:"name,omitempty"`
	Action       string       `yaml:"action"`
	Expectations Expectations `yaml:"expect"`
}

// Expectations defines what to check after a step executes
type Expectations struct {
	// Snapshot properties
	Scene     *string           `yaml:"scene,omitempty"`
	TurnCount *int              `yaml:"turn_count,omitempty"`
	Gold      *int              `yaml:"gold,omitempty"`
	HP        *int              `yaml:"hp,omitempty"`
	Inventory []string          `yaml:"inventory,omitempty"` // Full inventory names (order independent)
	Flags     map[string]bool   `yaml:"flags,omitempty"`     // Player flags
	NPCStatus map[string]string `yaml:"npc_status,omitempty"`
	Ending    *string           `yaml:"ending,omitempty"`

	// Stream analysis
	Events              []turn.EventType `yaml:"events,omitempty"`    // Must appear, in any order
	NoEvents            []turn.EventType `yaml:"no_events,omitempty"` // Must not appear
	ErrorCode           *string          `yaml:"error_code,omitempty"`
	ResponseContains    []string         `yaml:"response_contains,omitempty"`
	ResponseNotContains []string         `yaml:"response_not_contains,omitempty"`
	ResponseRegex       string           `yaml:"response_regex,omitempty"`
	ResponseMinLength   *int             `yaml:"response_min_length,omitempty"`
	ResponseMaxLength   *int             `yaml:"response_max_length,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
	IsReset      bool // True for NEW_SESSION steps (not counted toward pass/fail metrics)
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job        TestJob
	Results    []TestResult
	Error      error
	Duration   time.Duration
	SessionKey string // Session used by the last step
}
