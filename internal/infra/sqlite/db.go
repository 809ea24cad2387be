// Package sqlite provides the persistent post archive. Uses WAL mode
// for concurrent reads and crash-safe writes.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/crumbnet/crumb/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/feed.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "feed.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			pseudonym  TEXT NOT NULL DEFAULT 'anon',
			created_at INTEGER NOT NULL,
			node_id    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at)`,

		`CREATE TABLE IF NOT EXISTS node_info (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Post Archive ───────────────────────────────────────────────────────────

// SavePost persists one post. Saving an already archived ID is a no-op
// so the write-through layer can retry safely.
func (d *DB) SavePost(post domain.Post) error {
	_, err := d.db.Exec(
		`INSERT INTO posts (id, content, pseudonym, created_at, node_id)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		post.ID, post.Content, post.Pseudonym, post.Timestamp.Unix(), post.NodeID,
	)
	return err
}

// LoadPosts returns the full archive ordered oldest first, the order the
// in-memory store replays it in.
func (d *DB) LoadPosts() ([]domain.Post, error) {
	rows, err := d.db.Query(
		`SELECT id, content, pseudonym, created_at, node_id
		 FROM posts ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var p domain.Post
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.Content, &p.Pseudonym, &createdAt, &p.NodeID); err != nil {
			return nil, err
		}
		p.Timestamp = time.Unix(createdAt, 0).UTC()
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// PostCount returns the number of archived posts.
func (d *DB) PostCount() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&n)
	return n, err
}

// ─── Node Info ──────────────────────────────────────────────────────────────

// SetNodeInfo stores a key-value pair in node_info.
func (d *DB) SetNodeInfo(key, value string) error {
	_, err := d.db.Exec(
		`INSERT INTO node_info (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

// GetNodeInfo retrieves a value from node_info, empty if unset.
func (d *DB) GetNodeInfo(key string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM node_info WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
