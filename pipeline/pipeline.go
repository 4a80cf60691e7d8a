// Package pipeline orchestrates one chat request end to end: validate,
// reconcile conversation history, assemble the prompt, issue the single
// backend call and render the final answer with citations.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/animalabs/ragpipe/backend"
	"github.com/animalabs/ragpipe/citation"
	"github.com/animalabs/ragpipe/config"
	"github.com/animalabs/ragpipe/core"
	"github.com/animalabs/ragpipe/prompt"
)

// Config wires a Pipeline.
type Config struct {
	Variant config.Variant
	Client  backend.Client
	// BaseInstructions is the default prompt template; a request body may
	// override it.
	BaseInstructions string
	// Policy filters and renders citations. Zero value means strict.
	Policy citation.Policy
	// LanguageInstruction appends the pt-BR answer instruction to the
	// current question.
	LanguageInstruction bool
	// GenerateSessionID mints a session id when neither the session nor
	// the request body carries one (bedrock-v2 behavior).
	GenerateSessionID bool
	Logger            *zap.Logger
}

// Pipeline forwards chat messages to one RAG backend variant.
type Pipeline struct {
	cfg    Config
	logger *zap.Logger
}

// Session is the per-conversation context. Callers keep one per chat so
// backend session threading survives across requests; it must not be
// shared between conversations.
type Session struct {
	ID string
}

func New(cfg Config) *Pipeline {
	if cfg.Policy.Header == "" {
		cfg.Policy = citation.StrictPolicy()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, logger: logger.Named("pipeline")}
}

// Variant reports which backend the pipeline is bound to.
func (p *Pipeline) Variant() config.Variant {
	return p.cfg.Variant
}

// Pipe handles one user message and always returns display text; every
// failure maps to a literal user-facing string. sess may be nil for
// one-shot calls. body carries host-framework overrides (prompt_template,
// user.name / user_id, numberOfResults, promptTemplate, sessionId).
func (p *Pipeline) Pipe(ctx context.Context, sess *Session, userMessage string, turns []core.Turn, body map[string]any) string {
	if userMessage == "" {
		return MsgNoUserMessage
	}

	userID := resolveUserID(body)
	if userID == "" {
		return MsgNoUserID
	}

	_, conversation := core.PopSystemTurn(turns)
	conversation = prompt.DropDuplicateQuestion(conversation, userMessage)
	history := prompt.FormatHistory(conversation)

	base := p.cfg.BaseInstructions
	if override := cast.ToString(body["prompt_template"]); override != "" {
		base = override
	}

	outbound := prompt.Builder{
		BaseInstructions:    base,
		History:             history,
		UserMessage:         userMessage,
		LanguageInstruction: p.cfg.LanguageInstruction,
	}.Build()

	query := backend.Query{
		Prompt:          outbound,
		UserID:          userID,
		SessionID:       p.resolveSessionID(sess, body),
		NumberOfResults: cast.ToInt(body["numberOfResults"]),
		PromptTemplate:  cast.ToString(body["promptTemplate"]),
	}

	p.logger.Debug("dispatching query",
		zap.String("variant", p.cfg.Variant.String()),
		zap.String("user_id", userID),
		zap.Int("history_turns", len(conversation)))

	result, err := p.cfg.Client.RetrieveAndGenerate(ctx, query)
	if err != nil {
		p.logger.Warn("backend call failed", zap.Error(err))
		return p.errorMessage(err)
	}

	if sess != nil && result.SessionID != "" {
		sess.ID = result.SessionID
	}

	return p.render(result)
}

// render applies the not-found short-circuit and concatenates the output
// text with the citation block.
func (p *Pipeline) render(result *backend.Result) string {
	outputText := strings.TrimSpace(result.OutputText)

	if strings.Contains(outputText, NotFoundIndicator) {
		return outputText
	}

	citations := p.cfg.Policy.Format(result.Citations)

	switch {
	case outputText != "":
		return outputText + citations
	case citations != "":
		return strings.TrimLeftFunc(citations, unicode.IsSpace)
	default:
		return MsgEmptyAnswer
	}
}

func (p *Pipeline) resolveSessionID(sess *Session, body map[string]any) string {
	if sess != nil && sess.ID != "" {
		return sess.ID
	}
	if id := cast.ToString(body["sessionId"]); id != "" {
		return id
	}
	if p.cfg.GenerateSessionID {
		id := uuid.NewString()
		if sess != nil {
			sess.ID = id
		}
		return id
	}
	return ""
}

// resolveUserID reads the user identifier from body["user"]["name"],
// falling back to body["user_id"].
func resolveUserID(body map[string]any) string {
	if user, ok := body["user"].(map[string]any); ok {
		if name := cast.ToString(user["name"]); name != "" {
			return name
		}
	}
	return cast.ToString(body["user_id"])
}

// errorMessage maps a backend failure onto its user-facing literal.
func (p *Pipeline) errorMessage(err error) string {
	var be *core.BackendError
	if !errors.As(err, &be) {
		return msgUnexpected(err)
	}

	switch be.Kind {
	case core.KindTimeout:
		timeout := 60 * time.Second
		if tc, ok := p.cfg.Client.(interface{ Timeout() time.Duration }); ok {
			timeout = tc.Timeout()
		}
		return msgTimeout(be.URL, timeout)
	case core.KindHTTP:
		switch {
		case be.Status == 401 || be.Status == 403:
			return msgAuth(be.Status)
		case be.Status == 404:
			return msgNotFound(be.Status, be.URL)
		case be.Status == 429:
			return MsgRateLimited
		case be.Status >= 400 && be.Status < 500:
			return msgBadRequest(be.Status)
		default:
			return msgBackendInternal(be.Status)
		}
	case core.KindConnection:
		return msgConnection(be.URL)
	case core.KindDecode:
		return msgDecode(be.URL)
	default:
		return msgUnexpected(err)
	}
}
