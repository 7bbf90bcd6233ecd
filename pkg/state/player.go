package state

import "strings"

// Item is an inventory entry. Image is an optional reference for the UI.
type Item struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// PlayerState is the authoritative record of the player's vitals and belongings.
type PlayerState struct {
	HP             int                `json:"hp"`
	MaxHP          int                `json:"max_hp"`
	MP             int                `json:"mp"`
	MaxMP          int                `json:"max_mp"`
	Sanity         int                `json:"sanity"`
	Gold           int                `json:"gold"`
	Inventory      []Item             `json:"inventory"`
	Flags          map[string]bool    `json:"flags"`
	CustomStats    map[string]float64 `json:"custom_stats"`
	CurrentSceneID string             `json:"current_scene_id"`
}

// Default player vitals used when a scenario does not override them.
const (
	DefaultHP     = 100
	DefaultMP     = 0
	DefaultSanity = 100
)

// NewPlayerState returns a player with default vitals in the given scene.
func NewPlayerState(sceneID string) *PlayerState {
	return &PlayerState{
		HP:             DefaultHP,
		MaxHP:          DefaultHP,
		MP:             DefaultMP,
		MaxMP:          DefaultMP,
		Sanity:         DefaultSanity,
		Inventory:      []Item{},
		Flags:          make(map[string]bool),
		CustomStats:    make(map[string]float64),
		CurrentSceneID: sceneID,
	}
}

// itemIndex finds an item by exact name, falling back to a case-insensitive match.
func (p *PlayerState) itemIndex(name string) int {
	for i, it := range p.Inventory {
		if it.Name == name {
			return i
		}
	}
	for i, it := range p.Inventory {
		if strings.EqualFold(it.Name, name) {
			return i
		}
	}
	return -1
}

// ItemNames returns inventory names in insertion order.
func (p *PlayerState) ItemNames() []string {
	names := make([]string, 0, len(p.Inventory))
	for _, it := range p.Inventory {
		names = append(names, it.Name)
	}
	return names
}
