package state

import "fmt"

// Phase is the coarse time of day.
type Phase string

const (
	PhaseMorning   Phase = "morning"
	PhaseAfternoon Phase = "afternoon"
	PhaseNight     Phase = "night"
)

// GameTime is the in-world clock. Day starts at 1.
type GameTime struct {
	Day   int   `json:"day"`
	Phase Phase `json:"phase"`
}

func (t GameTime) String() string {
	return fmt.Sprintf("day %d, %s", t.Day, t.Phase)
}

// NPCStatus is one of alive, dead or unknown. dead is terminal.
type NPCStatus string

const (
	NPCAlive   NPCStatus = "alive"
	NPCDead    NPCStatus = "dead"
	NPCUnknown NPCStatus = "unknown"
)

// DefaultRelationship is the neutral starting relationship for a new NPC.
const DefaultRelationship = 50

// NPC is a non-player character tracked by the world state.
type NPC struct {
	Name         string    `json:"name"`
	HP           int       `json:"hp"`
	MaxHP        int       `json:"max_hp"`
	Status       NPCStatus `json:"status"`
	Relationship int       `json:"relationship"`
	Emotion      string    `json:"emotion"`
	Location     string    `json:"location"`
	IsHostile    bool      `json:"is_hostile"`
}

// NewNPC returns a living NPC at full health with a neutral relationship.
func NewNPC(name string, maxHP int) NPC {
	return NPC{
		Name:         name,
		HP:           maxHP,
		MaxHP:        maxHP,
		Status:       NPCAlive,
		Relationship: DefaultRelationship,
	}
}

// IsDead reports whether the NPC has died.
func (n NPC) IsDead() bool {
	return n.Status == NPCDead
}

// WorldState is the authoritative record of world and NPC facts.
type WorldState struct {
	Time        GameTime        `json:"time"`
	TurnCount   int             `json:"turn_count"`
	StuckCount  int             `json:"stuck_count"`
	GlobalFlags map[string]bool `json:"global_flags"`
	NPCs        map[string]NPC  `json:"npcs"`
	Location    string          `json:"location"`

	// LastAction is the normalized signature of the last unproductive action.
	LastAction string `json:"last_action,omitempty"`
	// Ending is set once the session reaches an ending.
	Ending string `json:"ending,omitempty"`
}

// NewWorldState returns a fresh world at turn 0 on the morning of day 1.
func NewWorldState(location string) *WorldState {
	return &WorldState{
		Time:        GameTime{Day: 1, Phase: PhaseMorning},
		GlobalFlags: make(map[string]bool),
		NPCs:        make(map[string]NPC),
		Location:    location,
	}
}

// AddNPC registers an NPC under its name, replacing any existing entry.
func (w *WorldState) AddNPC(npc NPC) {
	if w.NPCs == nil {
		w.NPCs = make(map[string]NPC)
	}
	if npc.Status == "" {
		npc.Status = NPCAlive
	}
	if npc.HP <= 0 {
		npc.HP = 0
		npc.Status = NPCDead
	}
	w.NPCs[npc.Name] = npc
}

// Validate checks the structural invariants of a world snapshot.
func (w *WorldState) Validate() error {
	if w.Time.Day < 1 {
		return fmt.Errorf("time.day must be >= 1, got %d", w.Time.Day)
	}
	switch w.Time.Phase {
	case PhaseMorning, PhaseAfternoon, PhaseNight:
	default:
		return fmt.Errorf("invalid time.phase %q", w.Time.Phase)
	}
	if w.TurnCount < 0 {
		return fmt.Errorf("turn_count must be >= 0, got %d", w.TurnCount)
	}
	if w.StuckCount < 0 {
		return fmt.Errorf("stuck_count must be >= 0, got %d", w.StuckCount)
	}
	for name, npc := range w.NPCs {
		if npc.MaxHP <= 0 {
			return fmt.Errorf("npc %q: max_hp must be > 0", name)
		}
		if npc.HP <= 0 && npc.Status != NPCDead {
			return fmt.Errorf("npc %q: hp %d but status %s", name, npc.HP, npc.Status)
		}
		if npc.Relationship < 0 || npc.Relationship > 100 {
			return fmt.Errorf("npc %q: relationship %d out of range", name, npc.Relationship)
		}
	}
	return nil
}
