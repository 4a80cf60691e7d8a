package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/animalabs/ragpipe/core"
	"github.com/animalabs/ragpipe/pipeline"
	"github.com/animalabs/ragpipe/server/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (s *Server) handlePipe(w http.ResponseWriter, r *http.Request) {
	var req PipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body := req.Body
	if body == nil {
		body = make(map[string]any)
	}
	if _, ok := body["user"]; !ok && req.User != nil {
		body["user"] = req.User
	}

	chatID := s.filter.Inlet(body, req.User, req.Messages)
	sess := s.sessions.get(chatID)

	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
	defer cancel()

	content := s.pipe.Pipe(ctx, sess, req.UserMessage, req.Messages, body)
	elapsed := time.Since(start)

	variant := s.pipe.Variant().String()
	turns := append(req.Messages, core.NewAssistantTurn(content))
	s.filter.Outlet(r.Context(), chatID, variant, turns, pipeline.IsErrorMessage(content))

	s.logger.Info("pipe handled",
		zap.String("chat_id", chatID),
		zap.String("variant", variant),
		zap.Int64("elapsed_ms", elapsed.Milliseconds()))

	writeJSON(w, http.StatusOK, PipeResponse{
		Content: content,
		ChatID:  chatID,
		Metadata: Metadata{
			Variant:   variant,
			ElapsedMs: elapsed.Milliseconds(),
		},
	})
}

func (s *Server) handleTraceList(w http.ResponseWriter, r *http.Request) {
	traces, err := s.traces.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if traces == nil {
		traces = []store.ChatTrace{}
	}
	writeJSON(w, http.StatusOK, TraceListResponse{Traces: traces})
}

func (s *Server) handleTraceGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := s.traces.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTraceDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// Deleting a chat's trace also resets its backend session.
	if t, err := s.traces.Get(r.Context(), id); err == nil {
		s.sessions.drop(t.ChatID)
	}
	if err := s.traces.Delete(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.traces.Summary(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
