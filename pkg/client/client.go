// Package client is a typed HTTP client for the storyroom control
// surface, used by roomctl and importable by voice-pipeline bridges.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/veilcraft/storyroom/pkg/models"
)

// ErrNotFound is returned for unknown room ids.
var ErrNotFound = errors.New("room not found")

// Client talks to one storyroom server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL, e.g. "http://127.0.0.1:8787".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Health checks the server is up.
func (c *Client) Health(ctx context.Context) error {
	var body struct {
		OK bool `json:"ok"`
	}
	if err := c.get(ctx, "/health", &body); err != nil {
		return err
	}
	if !body.OK {
		return fmt.Errorf("server reported not ok")
	}
	return nil
}

// State fetches the current snapshot for a room.
func (c *Client) State(ctx context.Context, roomID string) (*models.Session, error) {
	var sess models.Session
	if err := c.get(ctx, "/state/"+url.PathEscape(roomID), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Stop requests termination of a room's session.
func (c *Client) Stop(ctx context.Context, roomID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/stop/"+url.PathEscape(roomID), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Rooms lists active room ids.
func (c *Client) Rooms(ctx context.Context) ([]string, error) {
	var body struct {
		Rooms []string `json:"rooms"`
	}
	if err := c.get(ctx, "/rooms", &body); err != nil {
		return nil, err
	}
	return body.Rooms, nil
}

// ArchivedSession mirrors one archived row as served by the API.
type ArchivedSession struct {
	ID         string          `json:"id"`
	RoomID     string          `json:"room_id"`
	PlayerName string          `json:"player_name,omitempty"`
	TurnCount  int             `json:"turn_count"`
	Outcome    models.Outcome  `json:"outcome"`
	Snapshot   *models.Session `json:"snapshot"`
	EndedAt    time.Time       `json:"ended_at"`
}

// Archive lists recently finished sessions.
func (c *Client) Archive(ctx context.Context, limit int) ([]ArchivedSession, error) {
	path := "/archive"
	if limit > 0 {
		path = fmt.Sprintf("/archive?limit=%d", limit)
	}
	var body struct {
		Sessions []ArchivedSession `json:"sessions"`
	}
	if err := c.get(ctx, path, &body); err != nil {
		return nil, err
	}
	return body.Sessions, nil
}

func (c *Client) get(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("unexpected status %d", resp.StatusCode)
}
