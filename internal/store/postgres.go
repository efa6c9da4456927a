package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversational state in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT PRIMARY KEY,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			is_verified INTEGER NOT NULL DEFAULT 1,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user_ts ON conversations (user_id, timestamp);`,
		`CREATE TABLE IF NOT EXISTS context_memory (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			context_type TEXT NOT NULL,
			context_data TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, context_type)
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, userID int64, profile UserProfile) error {
	// is_verified is vestigial: every user is contactable, the column only
	// survives for schema compatibility.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (user_id, username, first_name, last_name, is_verified)
		 VALUES ($1, $2, $3, $4, 1)
		 ON CONFLICT (user_id)
		 DO UPDATE SET username = $2, first_name = $3, last_name = $4, is_verified = 1`,
		userID, profile.Username, profile.FirstName, profile.LastName,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert user: %v", ErrStorage, err)
	}
	return nil
}

func (s *PostgresStore) AddTurn(ctx context.Context, userID int64, role, content string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (user_id, role, content) VALUES ($1, $2, $3)`,
		userID, role, content,
	)
	if err != nil {
		return fmt.Errorf("%w: add turn: %v", ErrStorage, err)
	}
	return nil
}

func (s *PostgresStore) RecentTurns(ctx context.Context, userID int64, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = ContextTurnLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, role, content, timestamp
		 FROM conversations WHERE user_id=$1 ORDER BY timestamp DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query recent turns: %v", ErrStorage, err)
	}
	defer rows.Close()

	turns := make([]Turn, 0, limit)
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: scan turn row: %v", ErrStorage, err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate turn rows: %v", ErrStorage, err)
	}

	// Reverse into chronological order for prompt coherence.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

func (s *PostgresStore) ClearHistory(ctx context.Context, userID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("%w: clear turns: %v", ErrStorage, err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM context_memory WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("%w: clear context facts: %v", ErrStorage, err)
	}
	return nil
}

func (s *PostgresStore) UpsertContextFact(ctx context.Context, userID int64, factType, data string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO context_memory (user_id, context_type, context_data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, context_type)
		 DO UPDATE SET context_data = $3, updated_at = now()`,
		userID, factType, data,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert context fact: %v", ErrStorage, err)
	}
	return nil
}

func (s *PostgresStore) ContextFacts(ctx context.Context, userID int64, factType string) ([]ContextFact, error) {
	query := `SELECT user_id, context_type, context_data, updated_at
		 FROM context_memory WHERE user_id=$1 ORDER BY updated_at DESC`
	args := []any{userID}
	if strings.TrimSpace(factType) != "" {
		query = `SELECT user_id, context_type, context_data, updated_at
		 FROM context_memory WHERE user_id=$1 AND context_type=$2 ORDER BY updated_at DESC`
		args = append(args, factType)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query context facts: %v", ErrStorage, err)
	}
	defer rows.Close()

	var facts []ContextFact
	for rows.Next() {
		var f ContextFact
		if err := rows.Scan(&f.UserID, &f.Type, &f.Data, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan fact row: %v", ErrStorage, err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate fact rows: %v", ErrStorage, err)
	}
	return facts, nil
}

func (s *PostgresStore) ConversationContext(ctx context.Context, userID int64) (ConversationContext, error) {
	turns, err := s.RecentTurns(ctx, userID, ContextTurnLimit)
	if err != nil {
		return ConversationContext{}, err
	}
	facts, err := s.ContextFacts(ctx, userID, "")
	if err != nil {
		return ConversationContext{}, err
	}
	return ConversationContext{
		Turns:      turns,
		Facts:      facts,
		HasContext: len(turns) > 0 || len(facts) > 0,
	}, nil
}

func (s *PostgresStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("%w: query users: %v", ErrStorage, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan user row: %v", ErrStorage, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate user rows: %v", ErrStorage, err)
	}
	return ids, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var _ Store = (*PostgresStore)(nil)
