// Package models contains domain models for storyroom.
package models

import (
	"time"
)

// Phase represents the lifecycle stage of a session.
// Transitions are one-way: intro -> active -> done.
type Phase string

const (
	PhaseIntro  Phase = "intro"
	PhaseActive Phase = "active"
	PhaseDone   Phase = "done"
)

// Outcome classifies the result of one applied turn.
type Outcome string

const (
	OutcomeContinued Outcome = "continued"
	OutcomeCompleted Outcome = "completed"
)

// DefaultInventoryCap is the inventory size limit used when a session
// is created without an explicit capacity.
const DefaultInventoryCap = 10

// Session is the mutable game state for one real-time room.
// All mutation goes through the turn engine; everything handed to
// out-of-process callers is a deep copy (see Clone).
type Session struct {
	RoomID           string         `json:"room_id"`
	Phase            Phase          `json:"phase"`
	TurnCount        int            `json:"turn_count"`
	PlayerName       string         `json:"player_name,omitempty"`
	CurrentLocation  string         `json:"current_location"`
	VisitedLocations []string       `json:"visited_locations"`
	Inventory        []string       `json:"inventory"`
	InventoryCap     int            `json:"inventory_cap"`
	DiscoveredLore   []string       `json:"discovered_lore"`
	Relationships    map[string]int `json:"relationships"`
	Health           int            `json:"health"`
	Decisions        []string       `json:"decisions"`
	StartedAt        time.Time      `json:"started_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewSession creates a session in the intro phase at the given starting
// location with full health.
func NewSession(roomID, location string) *Session {
	now := time.Now()
	return &Session{
		RoomID:           roomID,
		Phase:            PhaseIntro,
		CurrentLocation:  location,
		VisitedLocations: []string{location},
		Inventory:        []string{},
		InventoryCap:     DefaultInventoryCap,
		DiscoveredLore:   []string{},
		Relationships:    map[string]int{},
		Health:           100,
		Decisions:        []string{},
		StartedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone returns a deep copy. Slices and maps never alias the receiver,
// so a snapshot can outlive subsequent turns safely.
func (s *Session) Clone() *Session {
	c := *s
	c.VisitedLocations = append([]string(nil), s.VisitedLocations...)
	c.Inventory = append([]string(nil), s.Inventory...)
	c.DiscoveredLore = append([]string(nil), s.DiscoveredLore...)
	c.Decisions = append([]string(nil), s.Decisions...)
	c.Relationships = make(map[string]int, len(s.Relationships))
	for npc, score := range s.Relationships {
		c.Relationships[npc] = score
	}
	return &c
}

// Done reports whether the session has reached its terminal phase.
func (s *Session) Done() bool {
	return s.Phase == PhaseDone
}

// SetPlayerName records the player identity. First non-empty value wins;
// later attempts are no-ops.
func (s *Session) SetPlayerName(name string) {
	if s.PlayerName != "" || name == "" {
		return
	}
	s.PlayerName = name
}

// MoveTo changes the current location and records it as visited.
func (s *Session) MoveTo(location string) {
	if location == "" {
		return
	}
	s.CurrentLocation = location
	if !contains(s.VisitedLocations, location) {
		s.VisitedLocations = append(s.VisitedLocations, location)
	}
}

// AddItem appends an item to the inventory preserving acquisition order.
// Duplicates are rejected and additions beyond capacity are silently
// dropped; both report false.
func (s *Session) AddItem(item string) bool {
	if item == "" || contains(s.Inventory, item) {
		return false
	}
	limit := s.InventoryCap
	if limit <= 0 {
		limit = DefaultInventoryCap
	}
	if len(s.Inventory) >= limit {
		return false
	}
	s.Inventory = append(s.Inventory, item)
	return true
}

// RemoveItem removes an item if present.
func (s *Session) RemoveItem(item string) bool {
	for i, have := range s.Inventory {
		if have == item {
			s.Inventory = append(s.Inventory[:i], s.Inventory[i+1:]...)
			return true
		}
	}
	return false
}

// DiscoverLore records a fact. Duplicates are no-ops.
func (s *Session) DiscoverLore(fact string) {
	if fact == "" || contains(s.DiscoveredLore, fact) {
		return
	}
	s.DiscoveredLore = append(s.DiscoveredLore, fact)
}

// AdjustRelationship applies an additive sentiment delta for an NPC,
// creating the entry at 0 first if the NPC is unknown.
func (s *Session) AdjustRelationship(npc string, delta int) {
	if npc == "" {
		return
	}
	if s.Relationships == nil {
		s.Relationships = map[string]int{}
	}
	s.Relationships[npc] += delta
}

// AdjustHealth applies a health delta clamped to [0, 100].
func (s *Session) AdjustHealth(delta int) {
	s.Health += delta
	if s.Health < 0 {
		s.Health = 0
	}
	if s.Health > 100 {
		s.Health = 100
	}
}

func contains(list []string, want string) bool {
	for _, have := range list {
		if have == want {
			return true
		}
	}
	return false
}
