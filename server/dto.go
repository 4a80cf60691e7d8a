package server

import (
	"github.com/animalabs/ragpipe/core"
	"github.com/animalabs/ragpipe/server/store"
)

// PipeRequest mirrors the payload a chat frontend hands to a pipe
// function: the current user message, the conversation so far, and the
// raw framework body with per-request overrides.
type PipeRequest struct {
	UserMessage string         `json:"user_message"`
	Messages    []core.Turn    `json:"messages,omitempty"`
	Body        map[string]any `json:"body,omitempty"`
	User        map[string]any `json:"user,omitempty"`
}

type PipeResponse struct {
	Content  string   `json:"content"`
	ChatID   string   `json:"chat_id"`
	Metadata Metadata `json:"metadata"`
}

type Metadata struct {
	Variant   string `json:"variant"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type TraceListResponse struct {
	Traces []store.ChatTrace `json:"traces"`
}
