package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/turn-engine/pkg/session"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running turn-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration // per step
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
	ScenarioOverride  string // If set, overrides the scenario for all test cases
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{},
		Timeout:           60 * time.Second,
		Logger:            func(string, ...any) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a YAML file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := yaml.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse YAML in %s: %w", filename, err)
	}
	if suite.Name == "" {
		suite.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite on a fresh session
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	scenarioID := suite.Scenario
	if r.ScenarioOverride != "" {
		scenarioID = r.ScenarioOverride
	}

	key, err := CreateSession(ctx, r.Client, r.BaseURL, scenarioID)
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.SessionKey = key

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)

		if step.Action == NewSessionAction {
			stepStart := time.Now()
			key, err = CreateSession(ctx, r.Client, r.BaseURL, scenarioID)
			stepResult := TestResult{StepName: step.Name, IsReset: true, Success: err == nil, Error: err, ResponseText: "[NEW SESSION]"}
			stepResult.Duration = time.Since(stepStart)
			result.Results = append(result.Results, stepResult)
			if err != nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, err)
				break
			}
			result.SessionKey = key
			continue
		}

		stepResult := r.runStep(ctx, key, step)
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// runStep executes a single step and checks expectations.
// A step that times out before the stream finishes is retried once.
func (r *Runner) runStep(ctx context.Context, key string, step TestStep) TestResult {
	for attempt := 1; ; attempt++ {
		result := r.executeStep(ctx, key, step)
		if result.Success || !errors.Is(result.Error, context.DeadlineExceeded) || attempt == 2 {
			return result
		}
		r.Logger("    Timeout detected, retrying step: %s", step.Name)
	}
}

func (r *Runner) executeStep(ctx context.Context, key string, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}

	stepCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	resp, err := PostTurn(stepCtx, r.Client, r.BaseURL, key, step.Action)
	if err != nil {
		result.Error = fmt.Errorf("failed to run turn: %w", err)
		result.Duration = time.Since(start)
		return result
	}
	result.ResponseText = resp.Text

	sess, err := GetSession(stepCtx, r.Client, r.BaseURL, key)
	if err != nil {
		result.Error = fmt.Errorf("failed to get session after turn: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	if err := CheckExpectations(step.Expectations, sess, resp); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// CheckExpectations validates a step's expectations against the session
// snapshot and the streamed response
func CheckExpectations(exp Expectations, sess *session.Session, resp *TurnResponse) error {
	if exp.Scene != nil && sess.CurrentSceneID != *exp.Scene {
		return fmt.Errorf("expected scene %s, got %s", *exp.Scene, sess.CurrentSceneID)
	}

	if exp.TurnCount != nil && sess.TurnCount != *exp.TurnCount {
		return fmt.Errorf("expected turn_count to be %d, got %d", *exp.TurnCount, sess.TurnCount)
	}

	if p := sess.PlayerState; p != nil {
		if exp.Gold != nil && p.Gold != *exp.Gold {
			return fmt.Errorf("expected gold to be %d, got %d", *exp.Gold, p.Gold)
		}
		if exp.HP != nil && p.HP != *exp.HP {
			return fmt.Errorf("expected hp to be %d, got %d", *exp.HP, p.HP)
		}

		// Full inventory check (order independent)
		if len(exp.Inventory) > 0 {
			actual := make([]string, 0, len(p.Inventory))
			for _, item := range p.Inventory {
				actual = append(actual, item.Name)
			}
			for _, want := range exp.Inventory {
				if !slices.Contains(actual, want) {
					return fmt.Errorf("expected inventory to contain '%s', but it's missing. Actual inventory: %v", want, actual)
				}
			}
			for _, got := range actual {
				if !slices.Contains(exp.Inventory, got) {
					return fmt.Errorf("inventory contains unexpected item '%s'. Expected inventory: %v, Actual: %v", got, exp.Inventory, actual)
				}
			}
		}

		for flag, want := range exp.Flags {
			if p.Flags[flag] != want {
				return fmt.Errorf("expected flag %s to be %t, got %t", flag, want, p.Flags[flag])
			}
		}
	}

	if w := sess.WorldState; w != nil {
		for name, want := range exp.NPCStatus {
			npc, ok := w.NPCs[name]
			if !ok {
				return fmt.Errorf("expected NPC %s to exist, but it doesn't", name)
			}
			if string(npc.Status) != want {
				return fmt.Errorf("expected NPC %s to be %s, got %s", name, want, npc.Status)
			}
		}
		if exp.Ending != nil && w.Ending != *exp.Ending {
			return fmt.Errorf("expected ending %q, got %q", *exp.Ending, w.Ending)
		}
	}

	for _, t := range exp.Events {
		if !resp.Has(t) {
			return fmt.Errorf("expected a %s event, but none was streamed", t)
		}
	}
	for _, t := range exp.NoEvents {
		if resp.Has(t) {
			return fmt.Errorf("expected no %s event, but one was streamed", t)
		}
	}

	if exp.ErrorCode != nil {
		if resp.Error == nil {
			return fmt.Errorf("expected error %s, but the turn succeeded", *exp.ErrorCode)
		}
		if resp.Error.Code != *exp.ErrorCode {
			return fmt.Errorf("expected error %s, got %s (%s)", *exp.ErrorCode, resp.Error.Code, resp.Error.Message)
		}
	}

	// Response content checks
	lowerResponse := strings.ToLower(resp.Text)
	for _, want := range exp.ResponseContains {
		if !strings.Contains(lowerResponse, strings.ToLower(want)) {
			return fmt.Errorf("expected response to contain '%s', but it didn't", want)
		}
	}
	for _, unwanted := range exp.ResponseNotContains {
		if strings.Contains(lowerResponse, strings.ToLower(unwanted)) {
			return fmt.Errorf("expected response to NOT contain '%s', but it did", unwanted)
		}
	}

	if exp.ResponseRegex != "" {
		matched, err := regexp.MatchString(exp.ResponseRegex, resp.Text)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		if !matched {
			return fmt.Errorf("response didn't match regex pattern: %s", exp.ResponseRegex)
		}
	}

	if exp.ResponseMinLength != nil && len(resp.Text) < *exp.ResponseMinLength {
		return fmt.Errorf("expected response length >= %d, got %d", *exp.ResponseMinLength, len(resp.Text))
	}
	if exp.ResponseMaxLength != nil && len(resp.Text) > *exp.ResponseMaxLength {
		return fmt.Errorf("expected response length <= %d, got %d", *exp.ResponseMaxLength, len(resp.Text))
	}

	return nil
}
