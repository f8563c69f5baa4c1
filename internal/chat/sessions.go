package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists conversation state between turns. The engine never
// touches it; handlers load state before a turn and save the result after.
type SessionStore interface {
	Load(ctx context.Context, conversationID string) (TurnState, error)
	Save(ctx context.Context, conversationID string, state TurnState) error
}

// PostgresSessionStore keeps one JSONB state row per conversation.
type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

// Migrate creates the sessions table if it does not exist yet.
func (s *PostgresSessionStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bellhop_sessions (
			id TEXT PRIMARY KEY,
			state JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) Load(ctx context.Context, conversationID string) (TurnState, error) {
	var raw []byte
	err := s.db.QueryRowContext(
		ctx,
		`SELECT state FROM bellhop_sessions WHERE id = $1`,
		conversationID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return TurnState{}, ErrSessionNotFound
	}
	if err != nil {
		return TurnState{}, fmt.Errorf("load session: %w", err)
	}

	var state TurnState
	if err := json.Unmarshal(raw, &state); err != nil {
		return TurnState{}, fmt.Errorf("decode session state: %w", err)
	}
	return state, nil
}

func (s *PostgresSessionStore) Save(ctx context.Context, conversationID string, state TurnState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO bellhop_sessions (id, state)
		 VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`,
		conversationID,
		raw,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// MemorySessionStore is the fallback when no database is configured. State
// is copied through JSON on both paths so callers never share mutable
// references with the store.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string][]byte)}
}

func (s *MemorySessionStore) Load(_ context.Context, conversationID string) (TurnState, error) {
	s.mu.RLock()
	raw, ok := s.sessions[conversationID]
	s.mu.RUnlock()
	if !ok {
		return TurnState{}, ErrSessionNotFound
	}

	var state TurnState
	if err := json.Unmarshal(raw, &state); err != nil {
		return TurnState{}, fmt.Errorf("decode session state: %w", err)
	}
	return state, nil
}

func (s *MemorySessionStore) Save(_ context.Context, conversationID string, state TurnState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	s.mu.Lock()
	s.sessions[conversationID] = raw
	s.mu.Unlock()
	return nil
}
