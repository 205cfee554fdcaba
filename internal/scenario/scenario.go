// Package scenario loads narrative branch tables from YAML files.
// The story content is replaceable data; the dispatch mechanics live
// in the game package.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/veilcraft/storyroom/internal/game"
)

// Scenario is a named branch table plus the opening state it implies.
type Scenario struct {
	Name            string        `yaml:"name"`
	OpeningLocation string        `yaml:"opening_location"`
	MaxTurns        int           `yaml:"max_turns,omitempty"`
	Branches        []game.Branch `yaml:"branches"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates scenario YAML.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario: missing name")
	}
	if sc.OpeningLocation == "" {
		return nil, fmt.Errorf("scenario %q: missing opening_location", sc.Name)
	}
	if err := game.ValidateTable(sc.Branches); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	return &sc, nil
}

// Default returns the compiled-in scenario so the server runs with no
// scenario file on disk.
func Default() *Scenario {
	return &Scenario{
		Name:            "hollow-vale",
		OpeningLocation: "village",
		Branches: []game.Branch{
			{
				Name:      "farewell",
				Keywords:  []string{"stop the game", "end the game", "quit", "goodbye"},
				Stop:      true,
				Narration: "The tale folds itself shut.",
			},
			{
				Name:      "forest",
				Keywords:  []string{"forest", "woods", "trees"},
				Narration: "Mist coils between the trunks as you step off the road.",
				Effect: game.Effect{
					MoveTo: "forest",
					Lore:   []string{"the-hollow-vale"},
				},
			},
			{
				Name:      "ruins",
				Keywords:  []string{"ruins", "tower", "keep"},
				Narration: "Broken stone stairs climb toward a shattered tower.",
				Effect: game.Effect{
					MoveTo: "ruins",
					Lore:   []string{"the-fallen-keep"},
				},
			},
			{
				Name:      "sneak",
				Keywords:  []string{"sneak", "hide", "quietly"},
				Narration: "You keep to the shadows. Someone notices anyway.",
				Effect: game.Effect{
					Relationships: map[string]int{"warden": -1},
				},
			},
			{
				Name:      "distraction",
				Keywords:  []string{"distraction", "distract", "decoy"},
				Narration: "A thrown stone buys you a moment of confusion.",
				Effect: game.Effect{
					Relationships: map[string]int{"warden": -1, "peddler": 1},
				},
			},
			{
				Name:      "take",
				Keywords:  []string{"take", "grab", "pick up", "pocket"},
				Narration: "You slip it into your pack.",
				Effect: game.Effect{
					AddItems: []string{"waystone"},
				},
			},
			{
				Name:      "help",
				Keywords:  []string{"help", "rescue", "bandage"},
				Narration: "Gratitude is a currency of its own here.",
				Effect: game.Effect{
					Relationships: map[string]int{"peddler": 2},
					HealthDelta:   5,
				},
			},
			{
				Name:      "fight",
				Keywords:  []string{"fight", "attack", "strike"},
				Narration: "Steel answers steel. You come away bleeding.",
				Effect: game.Effect{
					HealthDelta:   -15,
					Relationships: map[string]int{"warden": -2},
				},
			},
			{
				Name:      "rest",
				Keywords:  []string{"rest", "sleep", "camp"},
				Narration: "The night passes without incident, for once.",
				Effect: game.Effect{
					HealthDelta: 10,
				},
			},
			{
				Name:      "destroy",
				Keywords:  []string{"destroy", "shatter", "break the"},
				Narration: "The waystone cracks, and the vale exhales at last.",
				Ending:    true,
				Effect: game.Effect{
					RemoveItems: []string{"waystone"},
					Lore:        []string{"the-seal-broken"},
				},
			},
			{
				Name:      "wander",
				Fallback:  true,
				Narration: "The world shifts to meet you halfway.",
			},
		},
	}
}
