// Package trace observes chat requests as they enter and leave the
// pipeline and persists one ChatTrace per answered message. It plays the
// role of the host framework's inlet/outlet filter.
package trace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/animalabs/ragpipe/core"
	"github.com/animalabs/ragpipe/server/store"
)

// ChatIDPrefix marks chat ids minted by the filter when the host
// framework supplies none.
const ChatIDPrefix = "webui-"

type pending struct {
	traceID  string
	chatID   string
	userID   string
	userName string
	model    string
	question string
	started  time.Time
}

// Filter opens a trace on Inlet and completes it on Outlet. Pending
// traces are keyed on chat id, so concurrent chats do not interfere;
// two in-flight requests for the SAME chat would, which matches the
// host framework's one-request-per-chat behavior.
type Filter struct {
	store  store.TraceStore
	logger *zap.Logger

	mu     sync.Mutex
	traces map[string]pending
}

// NewFilter creates a Filter persisting to the given store.
func NewFilter(ts store.TraceStore, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{
		store:  ts,
		logger: logger.Named("trace"),
		traces: make(map[string]pending),
	}
}

// Inlet registers an inbound request. body carries the host payload
// (model, messages, chat_id); user carries the requesting user's
// identity. Returns the resolved chat id.
func (f *Filter) Inlet(body map[string]any, user map[string]any, turns []core.Turn) string {
	chatID := cast.ToString(body["chat_id"])
	if chatID == "" {
		chatID = ChatIDPrefix + uuid.NewString()
	}

	question := ""
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == core.RoleUser {
			question = turns[i].Content.Text()
			break
		}
	}

	p := pending{
		traceID:  uuid.NewString(),
		chatID:   chatID,
		userID:   cast.ToString(user["id"]),
		userName: cast.ToString(user["name"]),
		model:    cast.ToString(body["model"]),
		question: question,
		started:  time.Now(),
	}

	f.mu.Lock()
	f.traces[chatID] = p
	f.mu.Unlock()

	f.logger.Debug("trace opened", zap.String("chat_id", chatID), zap.String("trace_id", p.traceID))
	return chatID
}

// Outlet completes the trace for the chat: it records the assistant's
// answer and token usage and persists the ChatTrace. Unknown chat ids
// are ignored, mirroring requests that never passed through Inlet.
func (f *Filter) Outlet(ctx context.Context, chatID string, variant string, turns []core.Turn, failed bool) {
	f.mu.Lock()
	p, ok := f.traces[chatID]
	if ok {
		delete(f.traces, chatID)
	}
	f.mu.Unlock()
	if !ok {
		return
	}

	answer := ""
	inputTokens, outputTokens := 0, 0
	if last := core.LastAssistantTurn(turns); last != nil {
		answer = last.Content.Text()
		inputTokens, outputTokens = usageFromInfo(last.Info)
	}

	status := store.StatusCompleted
	if failed {
		status = store.StatusError
	}

	t := store.ChatTrace{
		TraceID:      p.traceID,
		ChatID:       p.chatID,
		UserID:       p.userID,
		UserName:     p.userName,
		Variant:      variant,
		Model:        p.model,
		Question:     p.question,
		Answer:       answer,
		Timestamp:    p.started.UnixMilli(),
		ElapsedMs:    time.Since(p.started).Milliseconds(),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Status:       status,
	}

	if err := f.store.Add(ctx, t); err != nil {
		f.logger.Warn("persist trace failed", zap.String("trace_id", p.traceID), zap.Error(err))
		return
	}
	f.logger.Debug("trace completed", zap.String("trace_id", p.traceID), zap.String("status", status))
}

// usageFromInfo reads token counts from an assistant turn's info map,
// accepting both the ollama-style and the openai-style key names.
func usageFromInfo(info map[string]any) (input, output int) {
	if info == nil {
		return 0, 0
	}
	input = cast.ToInt(info["prompt_eval_count"])
	if input == 0 {
		input = cast.ToInt(info["prompt_tokens"])
	}
	output = cast.ToInt(info["eval_count"])
	if output == 0 {
		output = cast.ToInt(info["completion_tokens"])
	}
	return input, output
}
