// Package ragpipe forwards chat messages to a retrieval-augmented
// generation backend and renders the answer with its source citations.
//
// Example usage:
//
//	valves, err := config.Load()
//	if err != nil { ... }
//
//	pipe, err := pipeline.FromValves(valves, logger)
//	if err != nil { ... }
//
//	sess := &pipeline.Session{}
//	answer := pipe.Pipe(ctx, sess, "Qual o horário de atendimento?", turns, body)
//
// The pipeline entry point never returns an error: every failure maps
// to a fixed user-facing message in Brazilian Portuguese.
package ragpipe

import (
	"github.com/animalabs/ragpipe/backend"
	"github.com/animalabs/ragpipe/citation"
	"github.com/animalabs/ragpipe/config"
	"github.com/animalabs/ragpipe/core"
	"github.com/animalabs/ragpipe/pipeline"
	"github.com/animalabs/ragpipe/server"
)

// Re-export backend variants for convenience
const (
	VariantAnimaHTTP = config.VariantAnimaHTTP
	VariantBedrockV1 = config.VariantBedrockV1
	VariantBedrockV2 = config.VariantBedrockV2
)

// Config aliases
type (
	Valves  = config.Valves
	Variant = config.Variant
)

// Load reads configuration from the environment and an optional .env file.
func Load() (Valves, error) {
	return config.Load()
}

// Pipeline aliases
type (
	Pipeline       = pipeline.Pipeline
	PipelineConfig = pipeline.Config
	Session        = pipeline.Session
)

// NewPipeline creates a pipeline from an explicit configuration.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	return pipeline.New(cfg)
}

// FromValves builds the pipeline the configured variant calls for.
var FromValves = pipeline.FromValves

// Backend aliases
type (
	Backend       = backend.Client
	Query         = backend.Query
	Result        = backend.Result
	AnimaClient   = backend.AnimaClient
	AnimaConfig   = backend.AnimaConfig
	BedrockClient = backend.BedrockClient
	BedrockConfig = backend.BedrockConfig
)

// NewAnimaClient creates an HTTP client for the Anima gateway.
func NewAnimaClient(cfg AnimaConfig) *AnimaClient {
	return backend.NewAnimaClient(cfg)
}

// NewBedrockClient creates a client for Bedrock knowledge bases.
func NewBedrockClient(cfg BedrockConfig) *BedrockClient {
	return backend.NewBedrockClient(cfg)
}

// Core type aliases
type (
	Turn    = core.Turn
	Role    = core.Role
	Content = core.Content
)

// Citation aliases
type (
	CitationRecord = citation.Record
	CitationPolicy = citation.Policy
)

// Server aliases
type (
	Server       = server.Server
	ServerConfig = server.Config
)

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) (*Server, error) {
	return server.New(cfg)
}
