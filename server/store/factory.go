package store

import (
	"fmt"
	"strings"
)

// NewTraceStore creates a chat-trace store based on the DSN.
// - Empty DSN: SQLite at data/ragpipe.db
// - postgres:// or postgresql://: PostgreSQL
// - Anything else: SQLite at the specified path
func NewTraceStore(dsn string) (TraceStore, error) {
	if dsn == "" {
		return NewSQLiteTraceStore("data/ragpipe.db")
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		ts, err := NewPostgresTraceStore(dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return ts, nil
	}

	return NewSQLiteTraceStore(dsn)
}
