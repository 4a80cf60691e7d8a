package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/animalabs/ragpipe/citation"
	"github.com/animalabs/ragpipe/core"
)

// AnimaConfig configures a client for the Anima RAG gateway.
type AnimaConfig struct {
	BaseURL         string
	APIKey          string
	ModelName       string
	BedrockModelID  string
	KnowledgeBaseID string
	Timeout         time.Duration
	Logger          *zap.Logger
}

// AnimaClient calls the Anima HTTP gateway's retrieveandgenerate endpoint.
type AnimaClient struct {
	cfg    AnimaConfig
	client *http.Client
	logger *zap.Logger
}

func NewAnimaClient(cfg AnimaConfig) *AnimaClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnimaClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("anima"),
	}
}

// Timeout returns the configured call timeout. The pipeline names it in
// the timeout error message shown to users.
func (c *AnimaClient) Timeout() time.Duration {
	return c.cfg.Timeout
}

// URL returns the endpoint the client posts to.
func (c *AnimaClient) URL() string {
	return fmt.Sprintf("%s/%s/retrieveandgenerate",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.KnowledgeBaseID)
}

type animaRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Prompt    string `json:"prompt"`
	ModelID   string `json:"modelId"`
	Model     string `json:"model"`
	APIKey    string `json:"apiKey"`
	Tag       string `json:"tag"`
}

type animaResponse struct {
	OutputText string            `json:"outputText"`
	Citations  []citation.Record `json:"citations"`
	SessionID  string            `json:"sessionId,omitempty"`
}

func (c *AnimaClient) RetrieveAndGenerate(ctx context.Context, q Query) (*Result, error) {
	url := c.URL()

	body, err := json.Marshal(animaRequest{
		UserID:    q.UserID,
		SessionID: q.SessionID,
		Prompt:    q.Prompt,
		ModelID:   c.cfg.BedrockModelID,
		Model:     c.cfg.ModelName,
		APIKey:    c.cfg.APIKey,
		Tag:       c.cfg.KnowledgeBaseID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("gateway returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("url", url))
		return nil, &core.BackendError{
			Op:     "anima.retrieveandgenerate",
			Kind:   core.KindHTTP,
			Status: resp.StatusCode,
			URL:    url,
			Err:    fmt.Errorf("gateway error: %s", strings.TrimSpace(string(detail))),
		}
	}

	var out animaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &core.BackendError{
			Op:   "anima.retrieveandgenerate",
			Kind: core.KindDecode,
			URL:  url,
			Err:  err,
		}
	}

	c.logger.Debug("call completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("citations", len(out.Citations)))

	return &Result{
		OutputText: strings.TrimSpace(out.OutputText),
		Citations:  out.Citations,
		SessionID:  out.SessionID,
	}, nil
}

func (c *AnimaClient) classifyTransportError(url string, err error) error {
	kind := core.KindConnection
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = core.KindTimeout
	}
	c.logger.Warn("call failed", zap.String("kind", string(kind)), zap.Error(err))
	return &core.BackendError{
		Op:   "anima.retrieveandgenerate",
		Kind: kind,
		URL:  url,
		Err:  err,
	}
}
