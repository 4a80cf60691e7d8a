package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/animalabs/ragpipe/server/store/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresTraceStore implements TraceStore using PostgreSQL
type PostgresTraceStore struct {
	db *sql.DB
}

// NewPostgresTraceStore creates a PostgreSQL-backed chat-trace store
func NewPostgresTraceStore(dsn string) (TraceStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := runPostgresMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresTraceStore{db: db}, nil
}

func runPostgresMigrations(db *sql.DB) error {
	data, err := migrations.Postgres.ReadFile("postgres/001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	_, err = db.Exec(string(data))
	if err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

func (s *PostgresTraceStore) Add(ctx context.Context, t ChatTrace) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_traces (
			trace_id, chat_id, user_id, user_name, variant, model,
			question, answer, timestamp, elapsed_ms,
			input_tokens, output_tokens, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (trace_id) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			user_id = EXCLUDED.user_id,
			user_name = EXCLUDED.user_name,
			variant = EXCLUDED.variant,
			model = EXCLUDED.model,
			question = EXCLUDED.question,
			answer = EXCLUDED.answer,
			timestamp = EXCLUDED.timestamp,
			elapsed_ms = EXCLUDED.elapsed_ms,
			input_tokens = EXCLUDED.input_tokens,
			output_tokens = EXCLUDED.output_tokens,
			status = EXCLUDED.status`,
		t.TraceID, t.ChatID, t.UserID, t.UserName, t.Variant, t.Model,
		t.Question, t.Answer, t.Timestamp, t.ElapsedMs,
		t.InputTokens, t.OutputTokens, t.Status,
	)
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}
	return nil
}

func (s *PostgresTraceStore) Get(ctx context.Context, id string) (ChatTrace, error) {
	var t ChatTrace
	err := s.db.QueryRowContext(ctx, `
		SELECT trace_id, chat_id, user_id, user_name, variant, model,
			   question, answer, timestamp, elapsed_ms,
			   input_tokens, output_tokens, status
		FROM chat_traces WHERE trace_id = $1`, id).Scan(
		&t.TraceID, &t.ChatID, &t.UserID, &t.UserName, &t.Variant, &t.Model,
		&t.Question, &t.Answer, &t.Timestamp, &t.ElapsedMs,
		&t.InputTokens, &t.OutputTokens, &t.Status,
	)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, fmt.Errorf("query trace: %w", err)
	}
	return t, nil
}

func (s *PostgresTraceStore) List(ctx context.Context) ([]ChatTrace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trace_id, chat_id, user_id, user_name, variant, model,
			   question, answer, timestamp, elapsed_ms,
			   input_tokens, output_tokens, status
		FROM chat_traces ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	var traces []ChatTrace
	for rows.Next() {
		var t ChatTrace
		if err := rows.Scan(
			&t.TraceID, &t.ChatID, &t.UserID, &t.UserName, &t.Variant, &t.Model,
			&t.Question, &t.Answer, &t.Timestamp, &t.ElapsedMs,
			&t.InputTokens, &t.OutputTokens, &t.Status,
		); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		traces = append(traces, t)
	}
	return traces, rows.Err()
}

func (s *PostgresTraceStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_traces WHERE trace_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trace: %w", err)
	}
	return nil
}

func (s *PostgresTraceStore) Summary(ctx context.Context) (MetricsSummary, error) {
	var m MetricsSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			   COALESCE(SUM(input_tokens), 0),
			   COALESCE(SUM(output_tokens), 0),
			   COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
			   COALESCE(AVG(elapsed_ms), 0)
		FROM chat_traces`).Scan(
		&m.TotalTraces, &m.TotalInputTokens, &m.TotalOutputTokens,
		&m.TotalErrors, &m.AvgLatencyMs,
	)
	if err != nil {
		return m, fmt.Errorf("query summary: %w", err)
	}
	return m, nil
}

func (s *PostgresTraceStore) Close() error {
	return s.db.Close()
}
