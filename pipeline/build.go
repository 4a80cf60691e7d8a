package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/animalabs/ragpipe/backend"
	"github.com/animalabs/ragpipe/config"
)

// FromValves builds the pipeline the valves describe: it constructs the
// backend client for the configured variant and binds the orchestrator
// to it.
func FromValves(v config.Valves, logger *zap.Logger) (*Pipeline, error) {
	variant, ok := v.BackendVariant()
	if !ok {
		return nil, fmt.Errorf("unknown backend variant %q", v.Variant)
	}

	cfg := Config{
		Variant:          variant,
		BaseInstructions: v.PromptTemplate,
		Logger:           logger,
	}

	switch variant {
	case config.VariantAnimaHTTP:
		modelName := v.AnimaModelName
		if modelName == "" {
			modelName = v.Name
		}
		cfg.Client = backend.NewAnimaClient(backend.AnimaConfig{
			BaseURL:         v.AnimaBaseURL,
			APIKey:          v.AnimaAPIKey,
			ModelName:       modelName,
			BedrockModelID:  v.BedrockModelID,
			KnowledgeBaseID: v.KnowledgeBaseID,
			Timeout:         v.AnimaTimeout,
			Logger:          logger,
		})
		cfg.LanguageInstruction = true

	case config.VariantBedrockV1:
		cfg.Client = backend.NewBedrockClient(backend.BedrockConfig{
			AccessKey:       v.AWSAccessKey,
			SecretKey:       v.AWSSecretKey,
			Region:          v.AWSRegion,
			KnowledgeBaseID: v.KnowledgeBaseID,
			ModelID:         v.BedrockModelID,
			Timeout:         v.BedrockTimeout,
			Logger:          logger,
		})

	case config.VariantBedrockV2:
		cfg.Client = backend.NewBedrockClient(backend.BedrockConfig{
			AccessKey:       v.AWSAccessKey,
			SecretKey:       v.AWSSecretKey,
			Region:          v.AWSRegion,
			KnowledgeBaseID: v.KnowledgeBaseID,
			ModelID:         v.BedrockModelID,
			NumberOfResults: v.NumberOfResults,
			Sessions:        true,
			Timeout:         v.BedrockTimeout,
			Logger:          logger,
		})
		cfg.GenerateSessionID = true
	}

	return New(cfg), nil
}
