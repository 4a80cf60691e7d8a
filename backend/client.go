// Package backend holds the RAG backend clients. Each client issues a
// single retrieve-and-generate call per request; retries and caching are
// the caller's concern (and are deliberately absent from the pipeline).
package backend

import (
	"context"

	"github.com/animalabs/ragpipe/citation"
)

// Query is one retrieve-and-generate request.
type Query struct {
	Prompt    string
	UserID    string
	SessionID string

	// Per-request overrides; zero values fall back to client defaults.
	NumberOfResults int
	PromptTemplate  string
}

// Result is the backend's answer: generated text plus raw citations.
type Result struct {
	OutputText string
	Citations  []citation.Record
	// SessionID echoes the backend's session, when it manages one.
	SessionID string
}

// Client is implemented by every RAG backend variant.
type Client interface {
	RetrieveAndGenerate(ctx context.Context, q Query) (*Result, error)
}
