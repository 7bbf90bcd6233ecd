package scenario

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// NPC is a roster entry seeded into a new session's world.
type NPC struct {
	Name         string `yaml:"name" json:"name"`
	Background   string `yaml:"background,omitempty" json:"background,omitempty"`
	Personality  string `yaml:"personality,omitempty" json:"personality,omitempty"`
	HP           int    `yaml:"hp,omitempty" json:"hp,omitempty"` // defaults to MaxHP
	MaxHP        int    `yaml:"max_hp" json:"max_hp"`
	Relationship *int   `yaml:"relationship,omitempty" json:"relationship,omitempty"`
	Emotion      string `yaml:"emotion,omitempty" json:"emotion,omitempty"`
	Location     string `yaml:"location,omitempty" json:"location,omitempty"`
	Hostile      bool   `yaml:"hostile,omitempty" json:"hostile,omitempty"`
}

// Scene is a place the player can be. Hint is shown to the player in the
// turn prefix.
type Scene struct {
	Title      string `yaml:"title" json:"title"`
	Background string `yaml:"background" json:"background"`
	Hint       string `yaml:"hint,omitempty" json:"hint,omitempty"`
}

// Ending closes a session.
type Ending struct {
	Title string `yaml:"title" json:"title"`
	Text  string `yaml:"text" json:"text"`
}

// PlayerSeed is the player's starting state. Zero vitals take the engine
// defaults.
type PlayerSeed struct {
	HP        int                `yaml:"hp,omitempty" json:"hp,omitempty"`
	MaxHP     int                `yaml:"max_hp,omitempty" json:"max_hp,omitempty"`
	MP        int                `yaml:"mp,omitempty" json:"mp,omitempty"`
	MaxMP     int                `yaml:"max_mp,omitempty" json:"max_mp,omitempty"`
	Sanity    int                `yaml:"sanity,omitempty" json:"sanity,omitempty"`
	Gold      int                `yaml:"gold,omitempty" json:"gold,omitempty"`
	Inventory []string           `yaml:"inventory,omitempty" json:"inventory,omitempty"`
	Flags     map[string]bool    `yaml:"flags,omitempty" json:"flags,omitempty"`
	Stats     map[string]float64 `yaml:"stats,omitempty" json:"stats,omitempty"`
}

// Settings are per-scenario world rules.
type Settings struct {
	HPLossPerMove     int    `yaml:"hp_loss_per_move,omitempty" json:"hp_loss_per_move,omitempty"`
	SanityLossPerMove int    `yaml:"sanity_loss_per_move,omitempty" json:"sanity_loss_per_move,omitempty"`
	HPZeroEnding      string `yaml:"hp_zero_ending,omitempty" json:"hp_zero_ending,omitempty"`
	SanityZeroEnding  string `yaml:"sanity_zero_ending,omitempty" json:"sanity_zero_ending,omitempty"`
}

// Scenario is the seed for a game session.
type Scenario struct {
	ID          string            `yaml:"id" json:"id"`
	Title       string            `yaml:"title" json:"title"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Prologue    string            `yaml:"prologue,omitempty" json:"prologue,omitempty"`
	Rules       []string          `yaml:"rules,omitempty" json:"rules,omitempty"`
	StartScene  string            `yaml:"start_scene" json:"start_scene"`
	Scenes      map[string]Scene  `yaml:"scenes" json:"scenes"`
	NPCs        []NPC             `yaml:"npcs,omitempty" json:"npcs,omitempty"`
	Player      PlayerSeed        `yaml:"player,omitempty" json:"player,omitempty"`
	Endings     map[string]Ending `yaml:"endings,omitempty" json:"endings,omitempty"`
	Settings    Settings          `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// Parse decodes a YAML seed. Unknown fields are an error.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	return &s, nil
}

// LoadFile reads and parses a single seed file.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate reports every problem in the seed.
func (s *Scenario) Validate() error {
	var errs []error
	if strings.TrimSpace(s.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if len(s.Scenes) == 0 {
		errs = append(errs, errors.New("at least one scene is required"))
	}
	if _, ok := s.Scenes[s.StartScene]; !ok {
		errs = append(errs, fmt.Errorf("start_scene %q is not a scene", s.StartScene))
	}

	seen := make(map[string]bool, len(s.NPCs))
	for i, npc := range s.NPCs {
		name := strings.TrimSpace(npc.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("npcs[%d]: name is required", i))
		case seen[strings.ToLower(name)]:
			errs = append(errs, fmt.Errorf("npcs[%d]: duplicate name %q", i, name))
		}
		seen[strings.ToLower(name)] = true

		if npc.MaxHP <= 0 {
			errs = append(errs, fmt.Errorf("npc %q: max_hp must be positive", name))
		}
		if npc.HP < 0 || npc.HP > npc.MaxHP {
			errs = append(errs, fmt.Errorf("npc %q: hp must be within 0..max_hp", name))
		}
		if npc.Relationship != nil && (*npc.Relationship < 0 || *npc.Relationship > 100) {
			errs = append(errs, fmt.Errorf("npc %q: relationship must be within 0..100", name))
		}
		if npc.Location != "" {
			if _, ok := s.Scenes[npc.Location]; !ok {
				errs = append(errs, fmt.Errorf("npc %q: location %q is not a scene", name, npc.Location))
			}
		}
	}

	p := s.Player
	if p.MaxHP < 0 || p.HP < 0 || p.Sanity < 0 || p.Gold < 0 || p.MP < 0 || p.MaxMP < 0 {
		errs = append(errs, errors.New("player: vitals must not be negative"))
	}
	if p.MaxHP > 0 && p.HP > p.MaxHP {
		errs = append(errs, errors.New("player: hp exceeds max_hp"))
	}

	if s.Settings.HPLossPerMove < 0 || s.Settings.SanityLossPerMove < 0 {
		errs = append(errs, errors.New("settings: per-move losses must not be negative"))
	}
	for field, id := range map[string]string{
		"hp_zero_ending":     s.Settings.HPZeroEnding,
		"sanity_zero_ending": s.Settings.SanityZeroEnding,
	} {
		if id == "" {
			continue
		}
		if _, ok := s.Endings[id]; !ok {
			errs = append(errs, fmt.Errorf("settings.%s: ending %q is not defined", field, id))
		}
	}
	return errors.Join(errs...)
}

// Scene returns the scene with the given id.
func (s *Scenario) Scene(id string) (Scene, bool) {
	sc, ok := s.Scenes[id]
	return sc, ok
}

// Ending returns the ending with the given id.
func (s *Scenario) Ending(id string) (Ending, bool) {
	e, ok := s.Endings[id]
	return e, ok
}

// SceneIDs returns the scene ids in sorted order.
func (s *Scenario) SceneIDs() []string {
	ids := make([]string, 0, len(s.Scenes))
	for id := range s.Scenes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
