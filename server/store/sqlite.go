package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/animalabs/ragpipe/server/store/migrations"
	_ "modernc.org/sqlite"
)

// SQLiteTraceStore implements TraceStore using SQLite
type SQLiteTraceStore struct {
	db *sql.DB
}

// NewSQLiteTraceStore creates a SQLite-backed chat-trace store
func NewSQLiteTraceStore(dsn string) (TraceStore, error) {
	if dsn == "" {
		dsn = "data/ragpipe.db"
	}

	dir := filepath.Dir(dsn)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := runSQLiteMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteTraceStore{db: db}, nil
}

func runSQLiteMigrations(db *sql.DB) error {
	data, err := migrations.SQLite.ReadFile("sqlite/001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	_, err = db.Exec(string(data))
	if err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

func (s *SQLiteTraceStore) Add(ctx context.Context, t ChatTrace) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO chat_traces (
			trace_id, chat_id, user_id, user_name, variant, model,
			question, answer, timestamp, elapsed_ms,
			input_tokens, output_tokens, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TraceID, t.ChatID, t.UserID, t.UserName, t.Variant, t.Model,
		t.Question, t.Answer, t.Timestamp, t.ElapsedMs,
		t.InputTokens, t.OutputTokens, t.Status,
	)
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}
	return nil
}

func (s *SQLiteTraceStore) Get(ctx context.Context, id string) (ChatTrace, error) {
	var t ChatTrace
	err := s.db.QueryRowContext(ctx, `
		SELECT trace_id, chat_id, user_id, user_name, variant, model,
			   question, answer, timestamp, elapsed_ms,
			   input_tokens, output_tokens, status
		FROM chat_traces WHERE trace_id = ?`, id).Scan(
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

func (s *SQLiteTraceStore) List(ctx context.Context) ([]ChatTrace, error) {
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

func (s *SQLiteTraceStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_traces WHERE trace_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete trace: %w", err)
	}
	return nil
}

func (s *SQLiteTraceStore) Summary(ctx context.Context) (MetricsSummary, error) {
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

func (s *SQLiteTraceStore) Close() error {
	return s.db.Close()
}
