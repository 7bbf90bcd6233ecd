package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jwebster45206/turn-engine/pkg/chat"
	"github.com/jwebster45206/turn-engine/pkg/scenario"
	"github.com/jwebster45206/turn-engine/pkg/state"
)

// Builder constructs chat messages for one narration attempt using a fluent
// interface. It reads game state but never changes it.
type Builder struct {
	manager     *state.Manager
	scenario    *scenario.Scenario
	action      string
	opening     bool
	retryReason string
	messages    []chat.ChatMessage
}

// New creates a new prompt builder.
func New() *Builder {
	return &Builder{
		messages: make([]chat.ChatMessage, 0),
	}
}

// WithState sets the game state the narration must respect.
func (b *Builder) WithState(m *state.Manager) *Builder {
	b.manager = m
	return b
}

// WithScenario sets the scenario. It may be nil for sessions whose
// scenario is not in the catalog.
func (b *Builder) WithScenario(s *scenario.Scenario) *Builder {
	b.scenario = s
	return b
}

// WithAction sets the player's action for this turn.
func (b *Builder) WithAction(action string) *Builder {
	b.action = action
	return b
}

// AsOpening asks for the prologue and opening scene instead of resolving
// an action.
func (b *Builder) AsOpening(opening bool) *Builder {
	b.opening = opening
	return b
}

// WithRetry notes why the previous attempt was rejected.
func (b *Builder) WithRetry(reason string) *Builder {
	b.retryReason = reason
	return b
}

// Build constructs and returns the final message array for the narrator.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.manager == nil {
		return nil, fmt.Errorf("game state is required")
	}
	if !b.opening && strings.TrimSpace(b.action) == "" {
		return nil, fmt.Errorf("action is required")
	}

	b.messages = make([]chat.ChatMessage, 0, 4)
	b.addSystemPrompt()
	b.addStatePrompt()
	b.addUserMessage()
	if b.retryReason != "" {
		b.messages = append(b.messages, chat.ChatMessage{
			Role:    chat.ChatRoleSystem,
			Content: fmt.Sprintf(RetryPrompt, b.retryReason),
		})
	}
	return b.messages, nil
}

// addSystemPrompt builds the standing instructions from the scenario.
func (b *Builder) addSystemPrompt() {
	var sb strings.Builder

	title := "an untitled adventure"
	if b.scenario != nil && b.scenario.Title != "" {
		title = b.scenario.Title
	}
	sb.WriteString(fmt.Sprintf(BaseSystemPrompt, title))

	if b.scenario != nil {
		if b.scenario.Description != "" {
			sb.WriteString("\n\n### Story\n" + b.scenario.Description)
		}
		if len(b.scenario.Rules) > 0 {
			sb.WriteString("\n\n### Scenario rules\n")
			for i, rule := range b.scenario.Rules {
				sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, rule))
			}
		}
		if len(b.scenario.Scenes) > 0 {
			sb.WriteString("\n\n### Scenes (use these ids for scene_move)\n")
			for _, id := range b.scenario.SceneIDs() {
				sb.WriteString(fmt.Sprintf("- %s: %s\n", id, b.scenario.Scenes[id].Title))
			}
		}
		if len(b.scenario.Endings) > 0 {
			ids := make([]string, 0, len(b.scenario.Endings))
			for id := range b.scenario.Endings {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			sb.WriteString("\n\n### Endings\n")
			sb.WriteString(endingsList(ids, func(id string) string { return b.scenario.Endings[id].Title }))
		}
	}

	sb.WriteString("\n\n" + EffectsProtocol)

	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: sb.String(),
	})
}

// addStatePrompt adds the authoritative state block, the current scene and
// any stuck hint.
func (b *Builder) addStatePrompt() {
	var sb strings.Builder
	sb.WriteString(b.manager.LLMContext())

	var sceneHint string
	if b.scenario != nil {
		if scene, ok := b.scenario.Scene(b.manager.World.Location); ok {
			sb.WriteString(fmt.Sprintf("\n\nCurrent scene: %s\n%s", scene.Title, scene.Background))
			sceneHint = scene.Hint
		}
	}
	if hint := HintPrompt(b.manager.Hint(), sceneHint); hint != "" {
		sb.WriteString("\n\nHINT: " + hint)
	}

	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: sb.String(),
	})
}

func (b *Builder) addUserMessage() {
	if b.opening {
		content := OpeningPrompt
		if b.scenario != nil && b.scenario.Prologue != "" {
			content += "\n\nPrologue:\n" + strings.TrimSpace(b.scenario.Prologue)
		}
		b.messages = append(b.messages, chat.ChatMessage{Role: chat.ChatRoleSystem, Content: content})
		return
	}
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleUser,
		Content: b.action,
	})
}

// BuildMessages is a convenience function for the common case.
func BuildMessages(m *state.Manager, s *scenario.Scenario, action string) ([]chat.ChatMessage, error) {
	return New().
		WithState(m).
		WithScenario(s).
		WithAction(action).
		Build()
}
