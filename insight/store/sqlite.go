package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/theimaginaryfoundation/ask-scriptures/insight"
)

// Keys of the kv table. They match the browser storage keys of the web client so an exported
// localStorage dump can be imported row for row.
const (
	keyUserData       = "userData"
	keyChatSessions   = "chatSessions"
	keyCurrentSession = "currentSessionId"
)

// SQLitePersister stores the snapshot in a single key/value table.
type SQLitePersister struct {
	conn *sql.DB
}

// OpenSQLite opens or creates the database at path. ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLitePersister, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}
	if _, err := conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}
	return &SQLitePersister{conn: conn}, nil
}

func (p *SQLitePersister) Close() error {
	return p.conn.Close()
}

func (p *SQLitePersister) Load(ctx context.Context) (Snapshot, bool, error) {
	rows, err := p.conn.QueryContext(ctx, "SELECT key, value FROM kv")
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("sqlite load: %w", err)
	}
	defer rows.Close()

	vals := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Snapshot{}, false, fmt.Errorf("sqlite load: %w", err)
		}
		vals[k] = v
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, false, fmt.Errorf("sqlite load: %w", err)
	}
	if len(vals) == 0 {
		return Snapshot{}, false, nil
	}

	snap := Snapshot{Version: SnapshotVersion}
	if v, ok := vals[keyUserData]; ok {
		var prof insight.UserProfile
		if err := json.Unmarshal([]byte(v), &prof); err != nil {
			return Snapshot{}, true, fmt.Errorf("sqlite load %s: %w", keyUserData, err)
		}
		snap.Profile = prof
	}
	if v, ok := vals[keyChatSessions]; ok {
		if err := json.Unmarshal([]byte(v), &snap.Sessions); err != nil {
			return Snapshot{}, true, fmt.Errorf("sqlite load %s: %w", keyChatSessions, err)
		}
	}
	snap.ActiveSessionID = vals[keyCurrentSession]
	return snap, true, nil
}

func (p *SQLitePersister) Save(ctx context.Context, snap Snapshot) error {
	userData, err := json.Marshal(snap.Profile)
	if err != nil {
		return fmt.Errorf("sqlite save: %w", err)
	}
	sessions := snap.Sessions
	if sessions == nil {
		sessions = []ChatSession{}
	}
	chatSessions, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("sqlite save: %w", err)
	}

	tx, err := p.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite save: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	put := func(k, v string) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v, now)
		return err
	}
	err = errors.Join(
		put(keyUserData, string(userData)),
		put(keyChatSessions, string(chatSessions)),
	)
	if err == nil {
		if snap.ActiveSessionID == "" {
			_, err = tx.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", keyCurrentSession)
		} else {
			err = put(keyCurrentSession, snap.ActiveSessionID)
		}
	}
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite save: %w", err)
	}
	return tx.Commit()
}
