package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jwebster45206/turn-engine/pkg/scenario"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <scenario.yaml|dir>...\n", os.Args[0])
		os.Exit(1)
	}

	files, err := expand(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	failed := false
	for _, f := range files {
		validator := &ScenarioValidator{}
		fmt.Printf("Validating %s...\n", f)
		if err := validator.validateFile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
	fmt.Println("Scenario files are valid!")
}

// expand replaces each directory argument with the seed files inside it.
func expand(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(arg, pattern))
			if err != nil {
				return nil, err
			}
			files = append(files, matches...)
		}
	}
	sort.Strings(files)
	return files, nil
}

type ScenarioValidator struct {
	errors []string
}

func (v *ScenarioValidator) validateFile(filename string) error {
	baseName := filepath.Base(filename)
	ext := filepath.Ext(baseName)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("scenario file must have .yaml extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ext)
	if !isValidScenarioFilename(nameWithoutExt) {
		return fmt.Errorf("scenario filename '%s' must be lowercase snake_case (e.g., my_scenario.yaml, not my-scenario.yaml or MyScenario.yaml)", baseName)
	}

	// LoadFile rejects unknown fields.
	s, err := scenario.LoadFile(filename)
	if err != nil {
		return err
	}

	v.errors = nil
	if err := s.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			v.addError(line)
		}
	}
	v.validateScenario(s)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

// validateScenario checks naming conventions that Validate leaves alone.
func (v *ScenarioValidator) validateScenario(s *scenario.Scenario) {
	v.validateIDFormat("scenario id", s.ID)
	v.validateIDFormat("start_scene", s.StartScene)

	for sceneID, scene := range s.Scenes {
		v.validateIDFormat("scene ID", sceneID)
		if strings.TrimSpace(scene.Title) == "" {
			v.addError(fmt.Sprintf("scene '%s' has no title", sceneID))
		}
	}
	for endingID, ending := range s.Endings {
		v.validateIDFormat("ending ID", endingID)
		if strings.TrimSpace(ending.Text) == "" {
			v.addError(fmt.Sprintf("ending '%s' has no text", endingID))
		}
	}
	for flag := range s.Player.Flags {
		if !isValidVariableName(flag) {
			v.addError(fmt.Sprintf("player flag '%s' should be lowercase snake_case", flag))
		}
	}
	for stat := range s.Player.Stats {
		if !isValidVariableName(stat) {
			v.addError(fmt.Sprintf("player stat '%s' should be lowercase snake_case", stat))
		}
	}
}

func (v *ScenarioValidator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}

	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase snake_case", fieldName, id))
	}
}

func (v *ScenarioValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var (
	validIDRegex       = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validVarRegex      = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isValidVariableName(name string) bool {
	return validVarRegex.MatchString(name)
}

func isValidScenarioFilename(name string) bool {
	// Allow 'x.' prefix for experimental scenarios
	name = strings.TrimPrefix(name, "x.")
	return validFilenameRegex.MatchString(name)
}
