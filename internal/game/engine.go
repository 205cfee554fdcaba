package game

import (
	"strings"
	"sync"
	"time"

	"github.com/veilcraft/storyroom/pkg/models"
)

// DefaultMaxTurns ends a session after this many accepted actions when
// no explicit limit is configured.
const DefaultMaxTurns = 50

// maxDecisionLen bounds the action text kept in the decision log.
const maxDecisionLen = 120

// Result reports what one applied turn did.
type Result struct {
	Outcome   models.Outcome `json:"outcome"`
	Branch    string         `json:"branch"`
	Narration string         `json:"narration,omitempty"`
}

// Engine is the turn state machine: a pure transition function from
// (session, action text) to (next session, result). The dispatch table
// can be swapped at runtime for scenario hot reload; in-flight turns
// finish on the table they started with.
type Engine struct {
	mu       sync.RWMutex
	table    []Branch
	maxTurns int
}

// NewEngine builds an engine over a validated dispatch table.
func NewEngine(table []Branch, maxTurns int) (*Engine, error) {
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Engine{table: table, maxTurns: maxTurns}, nil
}

// Swap replaces the dispatch table atomically. The new table is
// validated first; on error the old table stays in effect.
func (e *Engine) Swap(table []Branch) error {
	if err := ValidateTable(table); err != nil {
		return err
	}
	e.mu.Lock()
	e.table = table
	e.mu.Unlock()
	return nil
}

// MaxTurns returns the configured turn limit.
func (e *Engine) MaxTurns() int {
	return e.maxTurns
}

// Advance applies one action to a session and returns the next state.
// The input session is never mutated: deltas apply to a clone, so a
// failed turn leaves the caller's state untouched (all-or-nothing).
func (e *Engine) Advance(s *models.Session, action string) (*models.Session, Result, error) {
	if s.Done() {
		return nil, Result{}, ErrSessionClosed
	}

	normalized := strings.ToLower(strings.TrimSpace(action))
	if normalized == "" {
		return nil, Result{}, ErrInvalidAction
	}

	e.mu.RLock()
	table := e.table
	e.mu.RUnlock()

	branch := match(table, normalized)

	next := s.Clone()
	applyEffect(next, branch.Effect)
	next.TurnCount++
	next.Decisions = append(next.Decisions, summarize(branch.Name, action))
	next.UpdatedAt = time.Now()

	if next.Phase == models.PhaseIntro {
		next.Phase = models.PhaseActive
	}

	// Terminal conditions in priority order: explicit stop, turn
	// limit, narrative ending. First match wins.
	outcome := models.OutcomeContinued
	switch {
	case branch.Stop:
		outcome = models.OutcomeCompleted
	case next.TurnCount >= e.maxTurns:
		outcome = models.OutcomeCompleted
	case branch.Ending:
		outcome = models.OutcomeCompleted
	}
	if outcome == models.OutcomeCompleted {
		next.Phase = models.PhaseDone
	}

	return next, Result{Outcome: outcome, Branch: branch.Name, Narration: branch.Narration}, nil
}

// match scans the table in priority order. ValidateTable guarantees the
// final fallback entry, so a branch is always found.
func match(table []Branch, normalized string) Branch {
	for _, b := range table {
		if b.Fallback {
			return b
		}
		for _, kw := range b.Keywords {
			if strings.Contains(normalized, kw) {
				return b
			}
		}
	}
	return table[len(table)-1]
}

func applyEffect(s *models.Session, e Effect) {
	s.MoveTo(e.MoveTo)
	for _, item := range e.AddItems {
		s.AddItem(item)
	}
	for _, item := range e.RemoveItems {
		s.RemoveItem(item)
	}
	for _, fact := range e.Lore {
		s.DiscoverLore(fact)
	}
	for npc, delta := range e.Relationships {
		s.AdjustRelationship(npc, delta)
	}
	if e.HealthDelta != 0 {
		s.AdjustHealth(e.HealthDelta)
	}
}

func summarize(branch, action string) string {
	action = strings.TrimSpace(action)
	if len(action) > maxDecisionLen {
		action = action[:maxDecisionLen]
	}
	return branch + ": " + action
}
