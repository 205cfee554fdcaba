// Package archive persists completed sessions to SQLite. The live
// registry stays in memory; only terminal snapshots are written here,
// one row per finished room.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/veilcraft/storyroom/pkg/models"
)

// FinishedSession is one archived row.
type FinishedSession struct {
	ID         string          `json:"id"`
	RoomID     string          `json:"room_id"`
	PlayerName string          `json:"player_name,omitempty"`
	TurnCount  int             `json:"turn_count"`
	Outcome    models.Outcome  `json:"outcome"`
	Snapshot   *models.Session `json:"snapshot"`
	EndedAt    time.Time       `json:"ended_at"`
}

// Store wraps the archive database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS finished_sessions (
	id             TEXT PRIMARY KEY,
	room_id        TEXT NOT NULL,
	player_name    TEXT NOT NULL DEFAULT '',
	turn_count     INTEGER NOT NULL,
	outcome        TEXT NOT NULL,
	snapshot       TEXT NOT NULL,
	ended_at       TEXT NOT NULL,
	ended_at_epoch INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_finished_room
	ON finished_sessions(room_id, ended_at_epoch DESC);
`

// Open opens (creating if needed) the archive database at path.
// WAL mode keeps reads from blocking teardown writes.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	// Single writer; the archive only sees teardown traffic.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveFinished writes the terminal snapshot of a session.
func (s *Store) SaveFinished(ctx context.Context, sess *models.Session, outcome models.Outcome) error {
	snapshot, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	now := time.Now()
	const query = `
		INSERT INTO finished_sessions
		(id, room_id, player_name, turn_count, outcome, snapshot, ended_at, ended_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.NewString(), sess.RoomID, sess.PlayerName, sess.TurnCount,
		string(outcome), string(snapshot),
		now.Format(time.RFC3339), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert finished session: %w", err)
	}
	return nil
}

// GetFinished returns the most recent archived row for a room, or nil
// if the room was never archived.
func (s *Store) GetFinished(ctx context.Context, roomID string) (*FinishedSession, error) {
	const query = `
		SELECT id, room_id, player_name, turn_count, outcome, snapshot, ended_at
		FROM finished_sessions
		WHERE room_id = ?
		ORDER BY ended_at_epoch DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, roomID)
	fs, err := scanFinished(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return fs, err
}

// ListRecent returns up to limit archived sessions, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]FinishedSession, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, room_id, player_name, turn_count, outcome, snapshot, ended_at
		FROM finished_sessions
		ORDER BY ended_at_epoch DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FinishedSession
	for rows.Next() {
		fs, err := scanFinished(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *fs)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFinished(row scanner) (*FinishedSession, error) {
	var fs FinishedSession
	var snapshot, endedAt string
	err := row.Scan(&fs.ID, &fs.RoomID, &fs.PlayerName, &fs.TurnCount,
		&fs.Outcome, &snapshot, &endedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(snapshot), &fs.Snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	fs.EndedAt, _ = time.Parse(time.RFC3339, endedAt)
	return &fs, nil
}
