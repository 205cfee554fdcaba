// Package room drives live sessions from their real-time transport.
// One WebSocket connection owns one room: connect registers the
// session, each inbound frame is one transcribed action applied in
// order, disconnect tears the room down after a grace period.
package room

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/veilcraft/storyroom/internal/archive"
	"github.com/veilcraft/storyroom/internal/game"
	"github.com/veilcraft/storyroom/internal/registry"
	"github.com/veilcraft/storyroom/internal/server/sse"
	"github.com/veilcraft/storyroom/pkg/models"
)

// Message types on the socket.
const (
	msgAction = "action"
	msgStop   = "stop"
	msgState  = "state"
	msgError  = "error"
)

// inbound is a frame from the voice-pipeline bridge.
type inbound struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// outbound is a frame to the bridge. Session is the committed snapshot
// after the turn; Result classifies what the turn did.
type outbound struct {
	Type    string          `json:"type"`
	Session *models.Session `json:"session,omitempty"`
	Result  *game.Result    `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Ingress accepts real-time connections and runs their session loops.
type Ingress struct {
	registry    *registry.Registry
	archive     *archive.Store
	broadcaster *sse.Broadcaster

	// openingLocation is read per connection so scenario hot reload
	// affects new rooms without touching live ones.
	openingLocation func() string
	inventoryCap    int
	grace           time.Duration

	upgrader websocket.Upgrader
}

// NewIngress wires the ingress. archive may be nil to disable
// persistence of finished sessions.
func NewIngress(reg *registry.Registry, arch *archive.Store, b *sse.Broadcaster,
	openingLocation func() string, inventoryCap int, grace time.Duration) *Ingress {
	return &Ingress{
		registry:        reg,
		archive:         arch,
		broadcaster:     b,
		openingLocation: openingLocation,
		inventoryCap:    inventoryCap,
		grace:           grace,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Trusted-network surface, same as the HTTP routes.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// HandleWS serves one room's session. The room id comes from the URL;
// an optional "player" query parameter names the player up front.
func (in *Ingress) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	sess := models.NewSession(roomID, in.openingLocation())
	if in.inventoryCap > 0 {
		sess.InventoryCap = in.inventoryCap
	}
	sess.SetPlayerName(r.URL.Query().Get("player"))

	// Register before upgrading so a duplicate room is refused with a
	// plain 409 instead of a doomed socket.
	if err := in.registry.Register(sess); err != nil {
		if errors.Is(err, registry.ErrAlreadyExists) {
			http.Error(w, "room already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := in.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("roomId", roomID).Msg("WebSocket upgrade failed")
		in.registry.Remove(roomID)
		return
	}

	in.broadcaster.Broadcast(sse.Event{Type: sse.EventState, RoomID: roomID, Session: sess})
	in.runLoop(r.Context(), conn, roomID)
}

// runLoop processes frames strictly sequentially until the connection
// drops, then tears the room down.
func (in *Ingress) runLoop(ctx context.Context, conn *websocket.Conn, roomID string) {
	completed := false
	defer func() {
		conn.Close()
		in.teardown(roomID, completed)
	}()

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("roomId", roomID).Msg("Session transport closed unexpectedly")
			}
			return
		}

		switch msg.Type {
		case msgAction:
			if in.handleAction(ctx, conn, roomID, msg.Text) {
				completed = true
			}

		case msgStop:
			snap, err := in.registry.Stop(roomID)
			if err != nil {
				in.writeError(conn, roomID, err)
				continue
			}
			completed = true
			_ = conn.WriteJSON(outbound{Type: msgState, Session: snap})
			in.broadcaster.Broadcast(sse.Event{Type: sse.EventEnded, RoomID: roomID, Session: snap})

		default:
			_ = conn.WriteJSON(outbound{
				Type:    msgError,
				Error:   "unknown_message",
				Message: "expected action or stop",
			})
		}
	}
}

// handleAction applies one action; reports whether it completed the
// session. Engine errors never end the loop: the bridge re-prompts the
// player through the conversation channel.
func (in *Ingress) handleAction(ctx context.Context, conn *websocket.Conn, roomID, text string) bool {
	snap, res, err := in.registry.Apply(ctx, roomID, text)
	if err != nil {
		log.Debug().Err(err).Str("roomId", roomID).Msg("Action rejected")
		in.writeError(conn, roomID, err)
		return false
	}

	_ = conn.WriteJSON(outbound{Type: msgState, Session: snap, Result: &res})

	eventType := sse.EventState
	if res.Outcome == models.OutcomeCompleted {
		eventType = sse.EventEnded
	}
	in.broadcaster.Broadcast(sse.Event{Type: eventType, RoomID: roomID, Session: snap})

	return res.Outcome == models.OutcomeCompleted
}

func (in *Ingress) writeError(conn *websocket.Conn, roomID string, err error) {
	code := "internal"
	switch {
	case errors.Is(err, game.ErrInvalidAction):
		code = "invalid_action"
	case errors.Is(err, game.ErrSessionClosed):
		code = "session_closed"
	case errors.Is(err, registry.ErrNotFound):
		code = "not_found"
	}
	_ = conn.WriteJSON(outbound{Type: msgError, Error: code, Message: err.Error()})
}

// teardown finalizes a disconnected room: mark it done, archive the
// terminal snapshot, and remove it after the grace period so pollers
// still observe the final state.
func (in *Ingress) teardown(roomID string, alreadyEnded bool) {
	snap, err := in.registry.Stop(roomID)
	if err != nil {
		// Already removed by an earlier teardown
		return
	}

	if !alreadyEnded {
		in.broadcaster.Broadcast(sse.Event{Type: sse.EventEnded, RoomID: roomID, Session: snap})
	}

	if in.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := in.archive.SaveFinished(ctx, snap, models.OutcomeCompleted); err != nil {
			log.Error().Err(err).Str("roomId", roomID).Msg("Failed to archive finished session")
		}
	}

	log.Info().
		Str("roomId", roomID).
		Int("turns", snap.TurnCount).
		Dur("grace", in.grace).
		Msg("Session torn down")

	if in.grace <= 0 {
		in.registry.Remove(roomID)
		return
	}
	time.AfterFunc(in.grace, func() {
		in.registry.Remove(roomID)
	})
}
