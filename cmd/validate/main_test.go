package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const goodSeed = `id: tide_caves
title: Tide Caves
start_scene: mouth
scenes:
  mouth:
    title: Cave Mouth
    background: Waves slap the rocks.
endings:
  drowned:
    title: Drowned
    text: The tide comes in.
player:
  flags:
    has_rope: false
`

func TestValidateFile_Valid(t *testing.T) {
	v := &ScenarioValidator{}
	assert.NoError(t, v.validateFile(writeSeed(t, "tide_caves.yaml", goodSeed)))
}

func TestValidateFile_ShippedScenarios(t *testing.T) {
	files, err := expand([]string{filepath.Join("..", "..", "data", "scenarios")})
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, f := range files {
		v := &ScenarioValidator{}
		assert.NoError(t, v.validateFile(f), f)
	}
}

func TestValidateFile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		contains string
	}{
		{"wrong extension", "tide.json", goodSeed, "extension"},
		{"bad filename", "Tide-Caves.yaml", goodSeed, "snake_case"},
		{"unknown field", "tide.yaml", goodSeed + "weather: stormy\n", "weather"},
		{
			name: "bad ids and missing start",
			file: "tide.yaml",
			content: `id: Tide
title: Tide
start_scene: nowhere
scenes:
  Mouth:
    title: Mouth
    background: x
`,
			contains: "scene ID 'Mouth'",
		},
		{
			name: "semantic errors are reported",
			file: "tide.yaml",
			content: `id: tide
title: Tide
start_scene: mouth
scenes:
  mouth:
    title: Mouth
    background: x
settings:
  hp_zero_ending: drowned
`,
			contains: "ending \"drowned\" is not defined",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &ScenarioValidator{}
			err := v.validateFile(writeSeed(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestIsValidScenarioFilename(t *testing.T) {
	assert.True(t, isValidScenarioFilename("haunted_manor"))
	assert.True(t, isValidScenarioFilename("x.draft_scenario"))
	assert.False(t, isValidScenarioFilename("Haunted"))
	assert.False(t, isValidScenarioFilename("haunted-manor"))
	assert.False(t, isValidScenarioFilename("trailing_"))
}
