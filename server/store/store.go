// Package store persists chat traces: one record per answered user
// message, with token usage and outcome.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an entity is not found
var ErrNotFound = errors.New("not found")

// Trace statuses.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// ChatTrace records one handled chat request.
type ChatTrace struct {
	TraceID      string `json:"trace_id"`
	ChatID       string `json:"chat_id"`
	UserID       string `json:"user_id"`
	UserName     string `json:"user_name,omitempty"`
	Variant      string `json:"variant"`
	Model        string `json:"model"`
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	Timestamp    int64  `json:"timestamp"`
	ElapsedMs    int64  `json:"elapsed_ms"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Status       string `json:"status"`
}

// MetricsSummary contains aggregated metrics
type MetricsSummary struct {
	TotalTraces       int     `json:"total_traces"`
	TotalInputTokens  int     `json:"total_input_tokens"`
	TotalOutputTokens int     `json:"total_output_tokens"`
	TotalErrors       int     `json:"total_errors"`
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
}

// TraceStore defines the interface for chat-trace persistence
type TraceStore interface {
	Add(ctx context.Context, t ChatTrace) error
	Get(ctx context.Context, id string) (ChatTrace, error)
	List(ctx context.Context) ([]ChatTrace, error)
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context) (MetricsSummary, error)
	Close() error
}
