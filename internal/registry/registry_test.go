package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/veilcraft/storyroom/internal/game"
	"github.com/veilcraft/storyroom/internal/scenario"
	"github.com/veilcraft/storyroom/pkg/models"
)

// RegistrySuite is a test suite for Registry operations.
type RegistrySuite struct {
	suite.Suite
	registry *Registry
}

func (s *RegistrySuite) SetupTest() {
	sc := scenario.Default()
	engine, err := game.NewEngine(sc.Branches, game.DefaultMaxTurns)
	s.Require().NoError(err)
	s.registry = New(engine)
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) register(roomID string) *models.Session {
	sess := models.NewSession(roomID, "village")
	s.Require().NoError(s.registry.Register(sess))
	return sess
}

// TestRegister tests registration and the duplicate rule.
func (s *RegistrySuite) TestRegister() {
	s.register("r1")
	s.Equal(1, s.registry.Len())

	err := s.registry.Register(models.NewSession("r1", "village"))
	s.ErrorIs(err, ErrAlreadyExists)

	err = s.registry.Register(nil)
	s.Error(err)

	err = s.registry.Register(&models.Session{})
	s.Error(err)
}

// TestGet tests snapshot reads.
func (s *RegistrySuite) TestGet() {
	s.register("r1")

	snap, err := s.registry.Get("r1")
	s.Require().NoError(err)
	s.Equal("r1", snap.RoomID)
	s.Equal(models.PhaseIntro, snap.Phase)

	_, err = s.registry.Get("ghost")
	s.ErrorIs(err, ErrNotFound)
}

// TestSnapshotIsolation tests that mutating a returned snapshot never
// leaks into registry-owned state.
func (s *RegistrySuite) TestSnapshotIsolation() {
	s.register("r1")

	snap, err := s.registry.Get("r1")
	s.Require().NoError(err)
	snap.TurnCount = 99
	snap.Inventory = append(snap.Inventory, "smuggled")
	snap.Relationships["ghost"] = -10

	fresh, err := s.registry.Get("r1")
	s.Require().NoError(err)
	s.Equal(0, fresh.TurnCount)
	s.Empty(fresh.Inventory)
	s.Empty(fresh.Relationships)
}

// TestApply tests that a forest action changes location
// at turn 1 and the snapshot reflects the committed state.
func (s *RegistrySuite) TestApply() {
	s.register("r1")

	snap, res, err := s.registry.Apply(context.Background(), "r1", "go to the forest")
	s.Require().NoError(err)
	s.Equal(1, snap.TurnCount)
	s.Equal("forest", snap.CurrentLocation)
	s.Equal(models.OutcomeContinued, res.Outcome)

	got, err := s.registry.Get("r1")
	s.Require().NoError(err)
	s.Equal(snap.TurnCount, got.TurnCount)
	s.Equal(snap.CurrentLocation, got.CurrentLocation)
}

// TestApplyErrors tests error passthrough with no state change.
func (s *RegistrySuite) TestApplyErrors() {
	s.register("r1")

	_, _, err := s.registry.Apply(context.Background(), "ghost", "hello")
	s.ErrorIs(err, ErrNotFound)

	_, _, err = s.registry.Apply(context.Background(), "r1", "   ")
	s.ErrorIs(err, game.ErrInvalidAction)

	snap, err := s.registry.Get("r1")
	s.Require().NoError(err)
	s.Equal(0, snap.TurnCount)
}

// TestMaxTurnsThenClosed tests termination at the turn limit and
// rejection afterwards.
func (s *RegistrySuite) TestMaxTurnsThenClosed() {
	s.register("r1")

	var last *models.Session
	for i := 0; i < game.DefaultMaxTurns; i++ {
		snap, _, err := s.registry.Apply(context.Background(), "r1", fmt.Sprintf("ponder thought %d", i))
		s.Require().NoError(err)
		last = snap
	}
	s.Equal(game.DefaultMaxTurns, last.TurnCount)
	s.Equal(models.PhaseDone, last.Phase)

	_, _, err := s.registry.Apply(context.Background(), "r1", "one more")
	s.ErrorIs(err, game.ErrSessionClosed)

	snap, err := s.registry.Get("r1")
	s.Require().NoError(err)
	s.Equal(game.DefaultMaxTurns, snap.TurnCount)
}

// TestStopIdempotent tests stop twice in a row.
func (s *RegistrySuite) TestStopIdempotent() {
	s.register("r1")

	snap, err := s.registry.Stop("r1")
	s.Require().NoError(err)
	s.Equal(models.PhaseDone, snap.Phase)

	snap, err = s.registry.Stop("r1")
	s.Require().NoError(err)
	s.Equal(models.PhaseDone, snap.Phase)

	_, err = s.registry.Stop("ghost")
	s.ErrorIs(err, ErrNotFound)
}

// TestRemoveIdempotent tests removal of present and absent rooms.
func (s *RegistrySuite) TestRemoveIdempotent() {
	s.register("r1")
	s.Equal(1, s.registry.Len())

	s.registry.Remove("r1")
	s.Equal(0, s.registry.Len())

	// Absent removal is not an error
	s.registry.Remove("r1")
	s.registry.Remove("ghost")
}

// TestRooms tests the id listing.
func (s *RegistrySuite) TestRooms() {
	s.Empty(s.registry.Rooms())

	s.register("r1")
	s.register("r2")

	ids := s.registry.Rooms()
	s.Len(ids, 2)
	s.Contains(ids, "r1")
	s.Contains(ids, "r2")
}

// TestConcurrentRoomAccess tests registration, turns, reads, and
// removal racing across many rooms.
func TestConcurrentRoomAccess(t *testing.T) {
	sc := scenario.Default()
	engine, err := game.NewEngine(sc.Branches, game.DefaultMaxTurns)
	if err != nil {
		t.Fatal(err)
	}
	reg := New(engine)

	var wg sync.WaitGroup
	numRooms := 50

	for i := 0; i < numRooms; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			roomID := fmt.Sprintf("room-%d", n)
			if err := reg.Register(models.NewSession(roomID, "village")); err != nil {
				t.Error(err)
				return
			}

			for j := 0; j < 5; j++ {
				if _, _, err := reg.Apply(context.Background(), roomID, "wander around"); err != nil {
					t.Error(err)
					return
				}
				if _, err := reg.Get(roomID); err != nil {
					t.Error(err)
					return
				}
			}

			snap, err := reg.Get(roomID)
			if err != nil {
				t.Error(err)
				return
			}
			if snap.TurnCount != 5 {
				t.Errorf("room %s: turn count %d, want 5", roomID, snap.TurnCount)
			}

			reg.Remove(roomID)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 0, reg.Len())
}

// TestConcurrentReadsDuringTurns tests that polling reads only ever see
// committed states while one writer drives turns.
func TestConcurrentReadsDuringTurns(t *testing.T) {
	sc := scenario.Default()
	engine, err := game.NewEngine(sc.Branches, game.DefaultMaxTurns)
	if err != nil {
		t.Fatal(err)
	}
	reg := New(engine)
	if err := reg.Register(models.NewSession("r1", "village")); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap, err := reg.Get("r1")
				if err != nil {
					t.Error(err)
					return
				}
				// One decision per accepted turn, always.
				if len(snap.Decisions) != snap.TurnCount {
					t.Errorf("torn read: %d decisions at turn %d", len(snap.Decisions), snap.TurnCount)
					return
				}
			}
		}()
	}

	for i := 0; i < 30; i++ {
		if _, _, err := reg.Apply(context.Background(), "r1", "wander on"); err != nil {
			t.Fatal(err)
		}
	}
	close(done)
	wg.Wait()
}
