package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animalabs/ragpipe/backend"
	"github.com/animalabs/ragpipe/citation"
	"github.com/animalabs/ragpipe/config"
	"github.com/animalabs/ragpipe/pipeline"
	"github.com/animalabs/ragpipe/server/store"
)

type fakeBackend struct {
	result *backend.Result
	err    error
	lastQ  backend.Query
}

func (f *fakeBackend) RetrieveAndGenerate(_ context.Context, q backend.Query) (*backend.Result, error) {
	f.lastQ = q
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestServer(t *testing.T, fb *fakeBackend) *Server {
	t.Helper()

	variant, ok := config.ParseVariant("anima-http")
	require.True(t, ok)

	p := pipeline.New(pipeline.Config{
		Variant: variant,
		Client:  fb,
	})
	srv, err := New(Config{
		Pipeline:    p,
		DatabaseDSN: filepath.Join(t.TempDir(), "traces.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func postPipe(t *testing.T, h http.Handler, req PipeRequest) PipeResponse {
	t.Helper()

	payload, err := json.Marshal(req)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pipe", bytes.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PipeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{result: &backend.Result{OutputText: "ok"}})
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestPipeReturnsAnswerAndRecordsTrace(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{
		OutputText: "A resposta.",
		Citations:  []citation.Record{citation.FromURI("s3://bucket/doc.pdf")},
	}}
	srv := newTestServer(t, fb)
	h := srv.Handler()

	resp := postPipe(t, h, PipeRequest{
		UserMessage: "pergunta",
		Body:        map[string]any{"chat_id": "chat-1"},
		User:        map[string]any{"id": "u-1", "name": "Ana"},
	})

	assert.Equal(t, "A resposta.\n\n**Fontes:**\n1. doc.pdf", resp.Content)
	assert.Equal(t, "chat-1", resp.ChatID)
	assert.Equal(t, "anima-http", resp.Metadata.Variant)
	assert.Equal(t, "--- Pergunta Atual do Usuário ---\npergunta", fb.lastQ.Prompt)

	traces, err := srv.traces.List(context.Background())
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, "chat-1", traces[0].ChatID)
	assert.Equal(t, store.StatusCompleted, traces[0].Status)
}

func TestPipeErrorAnswerRecordsErrorTrace(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{result: &backend.Result{OutputText: "ok"}})
	h := srv.Handler()

	// Missing user id makes the pipeline answer with its error literal.
	resp := postPipe(t, h, PipeRequest{
		UserMessage: "pergunta",
		Body:        map[string]any{"chat_id": "chat-2"},
	})
	assert.Equal(t, pipeline.MsgNoUserID, resp.Content)

	traces, err := srv.traces.List(context.Background())
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, store.StatusError, traces[0].Status)
}

func TestPipeGeneratesChatID(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{result: &backend.Result{OutputText: "ok"}})
	h := srv.Handler()

	resp := postPipe(t, h, PipeRequest{
		UserMessage: "pergunta",
		User:        map[string]any{"id": "u-1", "name": "Ana"},
	})
	assert.NotEmpty(t, resp.ChatID)
}

func TestPipeBadJSON(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{result: &backend.Result{OutputText: "ok"}})
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pipe", bytes.NewReader([]byte("{"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTraceAPI(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{result: &backend.Result{OutputText: "ok"}})
	h := srv.Handler()

	postPipe(t, h, PipeRequest{
		UserMessage: "pergunta",
		Body:        map[string]any{"chat_id": "chat-api"},
		User:        map[string]any{"name": "Ana"},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/traces", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list TraceListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Traces, 1)
	id := list.Traces[0].TraceID

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/traces/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got store.ChatTrace
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "chat-api", got.ChatID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/traces/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/traces/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTraceGetUnknown(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{result: &backend.Result{OutputText: "ok"}})
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/traces/absent", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsSummary(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{result: &backend.Result{OutputText: "ok"}})
	h := srv.Handler()

	postPipe(t, h, PipeRequest{
		UserMessage: "pergunta",
		Body:        map[string]any{"chat_id": "chat-m"},
		User:        map[string]any{"name": "Ana"},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary store.MetricsSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, 1, summary.TotalTraces)
}

func TestSessionReusedAcrossRequests(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{OutputText: "ok", SessionID: "sess-1"}}
	srv := newTestServer(t, fb)
	h := srv.Handler()

	req := PipeRequest{
		UserMessage: "pergunta",
		Body:        map[string]any{"chat_id": "chat-s"},
		User:        map[string]any{"name": "Ana"},
	}
	postPipe(t, h, req)
	postPipe(t, h, req)

	// The session id adopted from the first response threads into the
	// second request for the same chat.
	assert.Equal(t, "sess-1", fb.lastQ.SessionID)
}

func TestTraceDeleteResetsChatSession(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{OutputText: "ok", SessionID: "sess-1"}}
	srv := newTestServer(t, fb)
	h := srv.Handler()

	req := PipeRequest{
		UserMessage: "pergunta",
		Body:        map[string]any{"chat_id": "chat-reset"},
		User:        map[string]any{"name": "Ana"},
	}
	postPipe(t, h, req)

	traces, err := srv.traces.List(context.Background())
	require.NoError(t, err)
	require.Len(t, traces, 1)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/traces/"+traces[0].TraceID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	postPipe(t, h, req)
	assert.Empty(t, fb.lastQ.SessionID)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{result: &backend.Result{OutputText: "ok"}})
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/pipe", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
