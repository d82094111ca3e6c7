package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"inboxpilot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(config DatabaseConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.initializeSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("read migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("execute migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, threadID string) (*models.DraftState, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM draft_states WHERE thread_id = $1`,
		threadID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query draft state: %w", err)
	}

	var state models.DraftState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode draft state: %w", err)
	}
	return &state, nil
}

func (s *PostgresStore) Replace(ctx context.Context, state *models.DraftState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode draft state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO draft_states (thread_id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (thread_id) DO UPDATE
		SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		state.ThreadID, payload, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("store draft state: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM draft_states WHERE thread_id = $1`,
		threadID,
	); err != nil {
		return fmt.Errorf("clear draft state: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
