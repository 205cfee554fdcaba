// Package sse streams session snapshots to out-of-process watchers
// over Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veilcraft/storyroom/pkg/models"
)

// DefaultWriteTimeout bounds writes to a single client so one stale
// connection cannot stall a broadcast.
const DefaultWriteTimeout = 2 * time.Second

// Event is one message on the stream. Session carries the same
// snapshot served by GET /state/{roomID}.
type Event struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id,omitempty"`
	Session *models.Session `json:"session,omitempty"`
}

const (
	EventConnected = "connected"
	EventState     = "state"
	EventEnded     = "ended"
)

// Client is one connected SSE subscriber. An empty Room subscribes to
// every room.
type Client struct {
	ID      string
	Room    string
	writer  http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
}

// Broadcaster fans session events out to connected clients.
type Broadcaster struct {
	mu           sync.RWMutex
	clients      map[string]*Client
	writeTimeout time.Duration
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(writeTimeout time.Duration) *Broadcaster {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Broadcaster{
		clients:      make(map[string]*Client),
		writeTimeout: writeTimeout,
	}
}

// AddClient registers a subscriber for the given room filter.
func (b *Broadcaster) AddClient(w http.ResponseWriter, room string) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	client := &Client{
		ID:      uuid.NewString(),
		Room:    room,
		writer:  w,
		flusher: flusher,
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	b.clients[client.ID] = client
	count := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Str("clientId", client.ID).
		Str("room", room).
		Int("totalClients", count).
		Msg("SSE client connected")
	return client, nil
}

// RemoveClient drops a subscriber.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	if _, ok := b.clients[client.ID]; ok {
		delete(b.clients, client.ID)
		close(client.done)
	}
	count := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Str("clientId", client.ID).
		Int("totalClients", count).
		Msg("SSE client disconnected")
}

// ClientCount returns the number of connected subscribers.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast delivers an event to every subscriber whose room filter
// matches. Writes run concurrently with a per-client timeout; clients
// that fail or time out are dropped.
func (b *Broadcaster) Broadcast(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE event")
		return
	}
	message := fmt.Sprintf("data: %s\n\n", payload)

	b.mu.RLock()
	targets := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		if c.Room == "" || c.Room == event.RoomID {
			targets = append(targets, c)
		}
	}
	b.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	dead := make(chan *Client, len(targets))
	var wg sync.WaitGroup
	for _, c := range targets {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			b.write(c, message, dead)
		}(c)
	}
	wg.Wait()
	close(dead)

	for c := range dead {
		b.RemoveClient(c)
	}
}

func (b *Broadcaster) write(c *Client, message string, dead chan<- *Client) {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		if _, err := c.writer.Write([]byte(message)); err != nil {
			dead <- c
			return
		}
		c.flusher.Flush()
	}()

	select {
	case <-finished:
	case <-time.After(b.writeTimeout):
		log.Warn().
			Str("clientId", c.ID).
			Dur("timeout", b.writeTimeout).
			Msg("SSE write timed out, dropping client")
		dead <- c
	case <-c.done:
	}
}

// Handle serves one SSE connection until the client goes away.
// Query parameter "room" narrows the stream to a single room.
func (b *Broadcaster) Handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client, err := b.AddClient(w, r.URL.Query().Get("room"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	hello, _ := json.Marshal(Event{Type: EventConnected})
	fmt.Fprintf(w, "data: %s\n\n", hello)
	client.flusher.Flush()

	select {
	case <-r.Context().Done():
	case <-client.done:
	}
}
