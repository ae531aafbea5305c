// Package store provides the SQLite-backed persistence layer: chat history
// and the single active credential record.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Message is one persisted chat turn, user or assistant.
// Turns are append-only: never mutated, only bulk-cleared.
type Message struct {
	ID         int64
	Content    string
	IsUser     bool
	CreatedAt  time.Time
	Model      string
	TokenCount *int64
	Cost       *float64
}

// Credential is the single active API key record. PINHash is the one-way
// verifier for the local PIN; the raw PIN is never stored.
type Credential struct {
	APIKey    string
	Provider  string
	PINHash   string
	CreatedAt time.Time
}

// ModelUsage is per-model message/token totals computed from stored turns.
type ModelUsage struct {
	Messages int   `json:"messages"`
	Tokens   int64 `json:"tokens"`
}

// Stats is the persisted-history aggregate, computed by scanning the
// messages table. Independent of the in-memory session analytics.
type Stats struct {
	TotalMessages int                   `json:"total_messages"`
	TotalTokens   int64                 `json:"total_tokens"`
	PerModel      map[string]ModelUsage `json:"per_model"`
}

// DefaultPath returns the XDG-compliant database location.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tokenchat", "tokenchat.db")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "tokenchat", "tokenchat.db")
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertMessage appends one chat turn. The message's ID is filled in.
func (s *Store) InsertMessage(m *Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	isUser := 0
	if m.IsUser {
		isUser = 1
	}

	res, err := s.db.Exec(`INSERT INTO messages
		(content, is_user, created_at, model, token_count, cost)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.Content, isUser, m.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullString(m.Model), m.TokenCount, m.Cost,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

// ListMessages returns up to limit turns ordered by timestamp ascending.
// A limit <= 0 returns everything.
func (s *Store) ListMessages(limit int) ([]Message, error) {
	query := `SELECT id, content, is_user, created_at, model, token_count, cost
		FROM messages ORDER BY created_at ASC, id ASC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		// Keep the most recent turns but preserve ascending order.
		query = `SELECT id, content, is_user, created_at, model, token_count, cost FROM
			(SELECT * FROM messages ORDER BY created_at DESC, id DESC LIMIT ?)
			ORDER BY created_at ASC, id ASC`
		rows, err = s.db.Query(query, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []Message
	for rows.Next() {
		var m Message
		var isUser int
		var createdAt string
		var model sql.NullString
		var tokens sql.NullInt64
		var cost sql.NullFloat64

		if err := rows.Scan(&m.ID, &m.Content, &isUser, &createdAt, &model, &tokens, &cost); err != nil {
			return nil, err
		}
		m.IsUser = isUser != 0
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if model.Valid {
			m.Model = model.String
		}
		if tokens.Valid {
			v := tokens.Int64
			m.TokenCount = &v
		}
		if cost.Valid {
			v := cost.Float64
			m.Cost = &v
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ClearMessages deletes all chat turns. Credentials are untouched.
func (s *Store) ClearMessages() error {
	_, err := s.db.Exec("DELETE FROM messages")
	return err
}

// GetCredential returns the active credential, or nil when none is stored.
func (s *Store) GetCredential() (*Credential, error) {
	var c Credential
	var createdAt string
	err := s.db.QueryRow(`SELECT api_key, provider, pin_hash, created_at
		FROM credentials WHERE id = 1`).
		Scan(&c.APIKey, &c.Provider, &c.PINHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credential: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &c, nil
}

// SetCredential stores the credential, superseding any previous record.
func (s *Store) SetCredential(c Credential) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM credentials"); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO credentials (id, api_key, provider, pin_hash, created_at)
		VALUES (1, ?, ?, ?, ?)`,
		c.APIKey, c.Provider, c.PINHash, c.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearCredential removes the stored credential.
func (s *Store) ClearCredential() error {
	_, err := s.db.Exec("DELETE FROM credentials")
	return err
}

// AggregateStats computes history totals by scanning stored turns.
func (s *Store) AggregateStats() (Stats, error) {
	stats := Stats{PerModel: make(map[string]ModelUsage)}

	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(token_count), 0) FROM messages`).
		Scan(&stats.TotalMessages, &stats.TotalTokens)
	if err != nil {
		return stats, fmt.Errorf("aggregating totals: %w", err)
	}

	rows, err := s.db.Query(`SELECT model, COUNT(*), COALESCE(SUM(token_count), 0)
		FROM messages WHERE model IS NOT NULL AND model != ''
		GROUP BY model`)
	if err != nil {
		return stats, fmt.Errorf("aggregating per model: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var model string
		var mu ModelUsage
		if err := rows.Scan(&model, &mu.Messages, &mu.Tokens); err != nil {
			return stats, err
		}
		stats.PerModel[model] = mu
	}
	return stats, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
