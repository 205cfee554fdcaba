// Package game implements the turn state machine that advances a
// session in response to free-text player actions.
package game

import "fmt"

// Effect describes the state deltas one branch applies: at most one
// location change and one health delta, any number of item and lore
// changes, and at most one relationship delta per NPC.
type Effect struct {
	MoveTo        string         `yaml:"move_to,omitempty"`
	AddItems      []string       `yaml:"add_items,omitempty"`
	RemoveItems   []string       `yaml:"remove_items,omitempty"`
	Lore          []string       `yaml:"lore,omitempty"`
	Relationships map[string]int `yaml:"relationships,omitempty"`
	HealthDelta   int            `yaml:"health_delta,omitempty"`
}

// Branch is one entry in the ordered dispatch table. The table position
// is the tie-break priority: the first branch whose keyword matches the
// normalized action wins, so multi-keyword actions resolve
// deterministically rather than by incidental map order.
type Branch struct {
	Name      string   `yaml:"name"`
	Keywords  []string `yaml:"keywords,omitempty"`
	Narration string   `yaml:"narration,omitempty"`
	Effect    Effect   `yaml:"effect,omitempty"`

	// Ending marks a narrative completion; Stop marks an explicit
	// player request to end the session. Stop is evaluated first.
	Ending bool `yaml:"ending,omitempty"`
	Stop   bool `yaml:"stop,omitempty"`

	// Fallback marks the generic "world reacts" branch that catches
	// any action no other branch matched. Exactly one per table, last.
	Fallback bool `yaml:"fallback,omitempty"`
}

// ValidateTable checks the structural rules for a dispatch table:
// named branches, keywords on every non-fallback branch, and exactly
// one fallback sitting in the final position.
func ValidateTable(table []Branch) error {
	if len(table) == 0 {
		return fmt.Errorf("branch table is empty")
	}

	fallbacks := 0
	for i, b := range table {
		if b.Name == "" {
			return fmt.Errorf("branch %d: missing name", i)
		}
		if b.Fallback {
			fallbacks++
			if len(b.Keywords) > 0 {
				return fmt.Errorf("branch %q: fallback must not declare keywords", b.Name)
			}
			continue
		}
		if len(b.Keywords) == 0 {
			return fmt.Errorf("branch %q: no keywords", b.Name)
		}
		for _, kw := range b.Keywords {
			if kw == "" {
				return fmt.Errorf("branch %q: empty keyword", b.Name)
			}
		}
	}

	if fallbacks != 1 {
		return fmt.Errorf("branch table needs exactly one fallback, found %d", fallbacks)
	}
	if !table[len(table)-1].Fallback {
		return fmt.Errorf("fallback branch must be last")
	}
	return nil
}
