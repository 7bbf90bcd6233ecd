package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jwebster45206/turn-engine/pkg/session"
	"github.com/jwebster45206/turn-engine/pkg/state"
)

// Summary is the listing view of a scenario.
type Summary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Catalog holds the loaded scenarios by id. It is read-only after loading
// and safe for concurrent use.
type Catalog struct {
	byID map[string]*Scenario
}

// NewCatalog builds a catalog from already parsed scenarios.
func NewCatalog(scenarios ...*Scenario) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]*Scenario, len(scenarios))}
	for _, s := range scenarios {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.ID, err)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate scenario id %q", s.ID)
		}
		c.byID[s.ID] = s
	}
	return c, nil
}

// LoadDir loads every .yaml and .yml file in dir.
func LoadDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}

	var scenarios []*Scenario
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		s, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return NewCatalog(scenarios...)
}

// Get returns the scenario with the given id.
func (c *Catalog) Get(id string) (*Scenario, bool) {
	if c == nil {
		return nil, false
	}
	s, ok := c.byID[id]
	return s, ok
}

// List returns summaries sorted by id.
func (c *Catalog) List() []Summary {
	if c == nil {
		return []Summary{}
	}
	out := make([]Summary, 0, len(c.byID))
	for _, s := range c.byID {
		out = append(out, Summary{ID: s.ID, Title: s.Title, Description: s.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NewSession seeds a session for scenarioID. An unknown id yields the
// engine defaults: full vitals, empty inventory, no NPCs.
// It satisfies session.Initializer.
func (c *Catalog) NewSession(scenarioID string) *session.Session {
	s, ok := c.Get(scenarioID)
	if !ok {
		return session.New(scenarioID)
	}
	player, world := s.InitialState()
	return session.FromState(scenarioID, player, world)
}

// InitialState builds the starting player and world for this scenario.
func (s *Scenario) InitialState() (*state.PlayerState, *state.WorldState) {
	player := state.NewPlayerState(s.StartScene)
	seed := s.Player
	if seed.MaxHP > 0 {
		player.MaxHP = seed.MaxHP
		player.HP = seed.MaxHP
	}
	if seed.HP > 0 {
		player.HP = seed.HP
	}
	if seed.MaxMP > 0 {
		player.MaxMP = seed.MaxMP
		player.MP = seed.MaxMP
	}
	if seed.MP > 0 {
		player.MP = seed.MP
	}
	if seed.Sanity > 0 {
		player.Sanity = seed.Sanity
	}
	player.Gold = seed.Gold
	for _, name := range seed.Inventory {
		player.Inventory = append(player.Inventory, state.Item{Name: name})
	}
	for k, v := range seed.Flags {
		player.Flags[k] = v
	}
	for k, v := range seed.Stats {
		player.CustomStats[k] = v
	}

	world := state.NewWorldState(s.StartScene)
	for _, n := range s.NPCs {
		npc := state.NewNPC(n.Name, n.MaxHP)
		if n.HP > 0 {
			npc.HP = n.HP
		}
		if n.Relationship != nil {
			npc.Relationship = *n.Relationship
		}
		npc.Emotion = n.Emotion
		npc.Location = n.Location
		npc.IsHostile = n.Hostile
		world.AddNPC(npc)
	}
	return player, world
}
