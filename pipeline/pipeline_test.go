package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animalabs/ragpipe/backend"
	"github.com/animalabs/ragpipe/citation"
	"github.com/animalabs/ragpipe/core"
)

type fakeBackend struct {
	calls   int
	lastQ   backend.Query
	result  *backend.Result
	err     error
	timeout time.Duration
}

func (f *fakeBackend) RetrieveAndGenerate(ctx context.Context, q backend.Query) (*backend.Result, error) {
	f.calls++
	f.lastQ = q
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeBackend) Timeout() time.Duration {
	if f.timeout == 0 {
		return 60 * time.Second
	}
	return f.timeout
}

func validBody() map[string]any {
	return map[string]any{"user": map[string]any{"name": "maria"}}
}

func newTestPipeline(fb *fakeBackend) *Pipeline {
	return New(Config{
		Client:           fb,
		BaseInstructions: "Instruções base.",
	})
}

func TestPipeEmptyUserMessage(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{OutputText: "nunca"}}
	got := newTestPipeline(fb).Pipe(context.Background(), nil, "", nil, validBody())

	assert.Equal(t, MsgNoUserMessage, got)
	assert.Zero(t, fb.calls, "no backend call may be made")
}

func TestPipeMissingUserID(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{OutputText: "nunca"}}
	got := newTestPipeline(fb).Pipe(context.Background(), nil, "oi", nil, map[string]any{})

	assert.Equal(t, MsgNoUserID, got)
	assert.Zero(t, fb.calls)
}

func TestPipeUserIDFallsBackToUserID(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{OutputText: "ok"}}
	got := newTestPipeline(fb).Pipe(context.Background(), nil, "oi", nil, map[string]any{"user_id": "u-77"})

	assert.Equal(t, "ok", got)
	assert.Equal(t, "u-77", fb.lastQ.UserID)
}

func TestPipeAppendsCitations(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{
		OutputText: "A resposta.",
		Citations:  []citation.Record{citation.FromURI("s3://kb/doc.pdf")},
	}}
	got := newTestPipeline(fb).Pipe(context.Background(), nil, "pergunta", nil, validBody())

	assert.Equal(t, "A resposta.\n\n**Fontes:**\n1. doc.pdf", got)
}

func TestPipeNotFoundShortCircuit(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{
		OutputText: NotFoundIndicator,
		Citations:  []citation.Record{citation.FromURI("s3://kb/doc.pdf")},
	}}
	got := newTestPipeline(fb).Pipe(context.Background(), nil, "pergunta", nil, validBody())

	assert.Equal(t, NotFoundIndicator, got)
	assert.NotContains(t, got, "Fontes")
}

func TestPipeCitationsOnly(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{
		Citations: []citation.Record{citation.FromURI("s3://kb/doc.pdf")},
	}}
	got := newTestPipeline(fb).Pipe(context.Background(), nil, "pergunta", nil, validBody())

	assert.Equal(t, "**Fontes:**\n1. doc.pdf", got)
}

func TestPipeEmptyAnswerFallback(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{}}
	got := newTestPipeline(fb).Pipe(context.Background(), nil, "pergunta", nil, validBody())

	assert.Equal(t, MsgEmptyAnswer, got)
}

func TestPipePromptAssembly(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{OutputText: "ok"}}
	turns := []core.Turn{
		core.NewSystemTurn("sistema"),
		core.NewUserTurn("primeira pergunta"),
		core.NewAssistantTurn("primeira resposta\n\n**Fontes:**\n1. a.pdf"),
		core.NewUserTurn("pergunta atual"),
	}

	newTestPipeline(fb).Pipe(context.Background(), nil, "pergunta atual", turns, validBody())

	prompt := fb.lastQ.Prompt
	assert.Contains(t, prompt, "Instruções base.")
	assert.Contains(t, prompt, "--- Histórico da Conversa Anterior ---")
	assert.Contains(t, prompt, "User: primeira pergunta")
	assert.Contains(t, prompt, "Assistant: primeira resposta")
	assert.NotContains(t, prompt, "Fontes")
	assert.NotContains(t, prompt, "System: sistema", "leading system turn is popped")
	assert.Equal(t, 1, strings.Count(prompt, "pergunta atual"), "duplicate final user turn is dropped")
}

func TestPipeOmitsHistoryBlockWhenNoHistory(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{OutputText: "ok"}}
	newTestPipeline(fb).Pipe(context.Background(), nil, "pergunta", nil, validBody())

	assert.NotContains(t, fb.lastQ.Prompt, "Histórico")
}

func TestPipeBodyPromptTemplateOverride(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{OutputText: "ok"}}
	body := validBody()
	body["prompt_template"] = "Instruções customizadas."

	newTestPipeline(fb).Pipe(context.Background(), nil, "pergunta", nil, body)

	assert.Contains(t, fb.lastQ.Prompt, "Instruções customizadas.")
	assert.NotContains(t, fb.lastQ.Prompt, "Instruções base.")
}

func TestPipeBodyOverridesFlowToQuery(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{OutputText: "ok"}}
	body := validBody()
	body["numberOfResults"] = 7
	body["promptTemplate"] = "template $query$"
	body["sessionId"] = "sess-9"

	newTestPipeline(fb).Pipe(context.Background(), nil, "pergunta", nil, body)

	assert.Equal(t, 7, fb.lastQ.NumberOfResults)
	assert.Equal(t, "template $query$", fb.lastQ.PromptTemplate)
	assert.Equal(t, "sess-9", fb.lastQ.SessionID)
}

func TestPipeSessionThreading(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{OutputText: "ok", SessionID: "sess-new"}}
	p := New(Config{Client: fb, BaseInstructions: "base", GenerateSessionID: true})
	sess := &Session{}

	p.Pipe(context.Background(), sess, "primeira", nil, validBody())
	first := fb.lastQ.SessionID
	assert.NotEmpty(t, first, "a session id is minted when absent")
	assert.Equal(t, "sess-new", sess.ID, "backend session id is adopted")

	p.Pipe(context.Background(), sess, "segunda", nil, validBody())
	assert.Equal(t, "sess-new", fb.lastQ.SessionID)
}

func TestPipeLanguageInstruction(t *testing.T) {
	fb := &fakeBackend{result: &backend.Result{OutputText: "ok"}}
	p := New(Config{Client: fb, BaseInstructions: "base", LanguageInstruction: true})

	p.Pipe(context.Background(), nil, "what is the deadline?", nil, validBody())
	assert.Contains(t, fb.lastQ.Prompt, "português brasileiro")
}

func TestPipeErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			"timeout",
			&core.BackendError{Kind: core.KindTimeout, URL: "http://anima/kb", Err: context.DeadlineExceeded},
			"Erro: A API em http://anima/kb demorou muito para responder (timeout de 60s).",
		},
		{
			"auth 401",
			&core.BackendError{Kind: core.KindHTTP, Status: 401, Err: errors.New("unauthorized")},
			"Erro de Autenticação/Autorização (401) ao acessar a API. Verifique a API Key.",
		},
		{
			"auth 403",
			&core.BackendError{Kind: core.KindHTTP, Status: 403, Err: errors.New("forbidden")},
			"Erro de Autenticação/Autorização (403) ao acessar a API. Verifique a API Key.",
		},
		{
			"not found",
			&core.BackendError{Kind: core.KindHTTP, Status: 404, URL: "http://anima/kb", Err: errors.New("gone")},
			"Erro (404): Recurso não encontrado em http://anima/kb. Verifique ID da Base/Endpoint.",
		},
		{
			"rate limited",
			&core.BackendError{Kind: core.KindHTTP, Status: 429, Err: errors.New("slow down")},
			MsgRateLimited,
		},
		{
			"bad request",
			&core.BackendError{Kind: core.KindHTTP, Status: 422, Err: errors.New("bad")},
			"Erro na requisição (422) para a API. Verifique os dados enviados.",
		},
		{
			"backend internal",
			&core.BackendError{Kind: core.KindHTTP, Status: 503, Err: errors.New("boom")},
			"Erro interno na API (503). Tente novamente mais tarde.",
		},
		{
			"connection",
			&core.BackendError{Kind: core.KindConnection, URL: "http://anima/kb", Err: errors.New("refused")},
			"Erro de conexão ao tentar acessar a API em http://anima/kb.",
		},
		{
			"decode",
			&core.BackendError{Kind: core.KindDecode, URL: "http://anima/kb", Err: errors.New("html")},
			"Erro: Resposta inválida (não JSON) recebida da API em http://anima/kb.",
		},
		{
			"unexpected",
			errors.New("something else entirely"),
			"Ocorreu um erro inesperado durante a chamada da API: unknown.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fb := &fakeBackend{err: tc.err}
			got := newTestPipeline(fb).Pipe(context.Background(), nil, "pergunta", nil, validBody())
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPipeNeverReturnsEmpty(t *testing.T) {
	fb := &fakeBackend{err: &core.BackendError{Kind: core.KindOther, Err: errors.New("weird")}}
	got := newTestPipeline(fb).Pipe(context.Background(), nil, "pergunta", nil, validBody())
	require.NotEmpty(t, got)
}
