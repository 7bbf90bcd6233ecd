package chat

import (
	"fmt"
	"strings"
)

// TurnRequest is the body of a turn submitted to the turn-engine api.
// An empty SessionKey starts a new session for ScenarioID.
type TurnRequest struct {
	SessionKey string `json:"session_key,omitempty"`
	ScenarioID string `json:"scenario_id,omitempty"`
	Action     string `json:"action"`
	Model      string `json:"model,omitempty"` // optional narrator model override
}

const (
	ChatRoleUser   = "user"      // Player
	ChatRoleAgent  = "assistant" // Narrator
	ChatRoleSystem = "system"    // Rules and game state
)

// ChatMessage represents a single message sent to the narrator model.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// StreamChunk is one piece of a streamed narrator response. The last chunk
// on a stream has Done set; Err is only set on that chunk.
type StreamChunk struct {
	Content string
	Err     error
	Done    bool
}

// startCommands open a new game when sent as the first action.
var startCommands = []string{"start", "begin", "시작", "게임시작"}

func (tr *TurnRequest) Validate() error {
	tr.Action = strings.TrimSpace(tr.Action)
	if tr.Action == "" {
		return fmt.Errorf("action cannot be empty")
	}
	if tr.SessionKey == "" && tr.ScenarioID == "" {
		return fmt.Errorf("session_key or scenario_id is required")
	}
	return nil
}

// IsStartCommand reports whether action asks for the opening scene.
func IsStartCommand(action string) bool {
	a := strings.ToLower(strings.TrimSpace(action))
	for _, cmd := range startCommands {
		if a == cmd {
			return true
		}
	}
	return false
}
