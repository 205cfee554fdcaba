// Package registry owns the process-wide mapping from room id to live
// session state and serializes all mutation per room.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veilcraft/storyroom/internal/game"
	"github.com/veilcraft/storyroom/internal/telemetry"
	"github.com/veilcraft/storyroom/pkg/models"
)

var (
	// ErrNotFound is returned when a room id is not registered.
	ErrNotFound = errors.New("room not found")

	// ErrAlreadyExists is returned on duplicate registration. Rooms are
	// not re-creatable; a restart must pick a new room id.
	ErrAlreadyExists = errors.New("room already exists")
)

// room pairs a session with its own mutex so turns in unrelated rooms
// never contend. The outer map lock is held only for lookup.
type room struct {
	mu    sync.Mutex
	state *models.Session
}

// Registry is the keyed store of live sessions. Reads return deep
// snapshots; mutation happens only through Apply and Stop under the
// per-room lock, so a concurrent Get observes pre- or post-state of a
// turn, never a torn middle.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*room
	engine  *game.Engine
	metrics *telemetry.Metrics
}

// New creates an empty registry driven by the given turn engine.
func New(engine *game.Engine) *Registry {
	return &Registry{
		rooms:   make(map[string]*room),
		engine:  engine,
		metrics: telemetry.Get(),
	}
}

// Register inserts a new session under its room id.
func (r *Registry) Register(initial *models.Session) error {
	if initial == nil || initial.RoomID == "" {
		return errors.New("registry: nil or unkeyed session")
	}

	r.mu.Lock()
	if _, exists := r.rooms[initial.RoomID]; exists {
		r.mu.Unlock()
		return ErrAlreadyExists
	}
	r.rooms[initial.RoomID] = &room{state: initial.Clone()}
	count := len(r.rooms)
	r.mu.Unlock()

	r.metrics.SessionStarted(context.Background())
	log.Info().
		Str("roomId", initial.RoomID).
		Int("activeRooms", count).
		Msg("Session registered")
	return nil
}

// Get returns a deep snapshot of the room's current state.
func (r *Registry) Get(roomID string) (*models.Session, error) {
	rm, err := r.lookup(roomID)
	if err != nil {
		return nil, err
	}

	rm.mu.Lock()
	snap := rm.state.Clone()
	rm.mu.Unlock()
	return snap, nil
}

// Apply runs one action through the turn engine under the room's lock
// and commits the result. On failure the committed state is unchanged.
func (r *Registry) Apply(ctx context.Context, roomID, action string) (*models.Session, game.Result, error) {
	rm, err := r.lookup(roomID)
	if err != nil {
		return nil, game.Result{}, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	next, res, err := r.engine.Advance(rm.state, action)
	if err != nil {
		if errors.Is(err, game.ErrInvalidAction) {
			r.metrics.InvalidAction(ctx)
		}
		return nil, game.Result{}, err
	}
	rm.state = next

	r.metrics.TurnApplied(ctx, res.Branch)
	if res.Outcome == models.OutcomeCompleted {
		r.metrics.SessionCompleted(ctx)
	}
	return next.Clone(), res, nil
}

// Stop flips the session to done. Idempotent: stopping a finished room
// succeeds as a no-op. Stopping an unknown room is ErrNotFound.
func (r *Registry) Stop(roomID string) (*models.Session, error) {
	rm, err := r.lookup(roomID)
	if err != nil {
		return nil, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !rm.state.Done() {
		rm.state.Phase = models.PhaseDone
		rm.state.UpdatedAt = time.Now()
		r.metrics.SessionCompleted(context.Background())
		log.Info().Str("roomId", roomID).Msg("Session stopped")
	}
	return rm.state.Clone(), nil
}

// Remove deletes the room. Removing an absent room is not an error.
func (r *Registry) Remove(roomID string) {
	r.mu.Lock()
	_, existed := r.rooms[roomID]
	delete(r.rooms, roomID)
	count := len(r.rooms)
	r.mu.Unlock()

	if existed {
		r.metrics.SessionRemoved(context.Background())
		log.Info().
			Str("roomId", roomID).
			Int("activeRooms", count).
			Msg("Session removed")
	}
}

// Rooms returns the ids of all registered rooms.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) lookup(roomID string) (*room, error) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return rm, nil
}
