// Package config loads the pipeline's valves: the environment-sourced
// settings that pick a backend variant and parameterize it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// DefaultPromptTemplate is the base instruction block sent ahead of the
// conversation history and current question.
const DefaultPromptTemplate = "Você é um assistente que responde perguntas baseando-se " +
	"estritamente em um contexto fornecido internamente pela busca em uma base de " +
	"conhecimento. Use apenas as informações recuperadas para formular sua resposta. " +
	"Seja conciso e direto. Se a informação necessária para responder à pergunta não " +
	"estiver no contexto recuperado, informe explicitamente que não encontrou a " +
	"informação na base de conhecimento. Responda sempre em português brasileiro."

// Valves holds every environment-sourced setting. Anima and Bedrock
// fields coexist; Validate checks only the set the chosen variant needs.
type Valves struct {
	Variant string `env:"RAGPIPE_VARIANT" envDefault:"anima-http"`
	Name    string `env:"RAGPIPE_NAME" envDefault:"ragpipe"`

	// Anima gateway settings.
	AnimaBaseURL   string        `env:"ANIMA_URL_1"`
	AnimaAPIKey    string        `env:"ANIMA_API_KEY" envDefault:"ANIMA_IA"`
	AnimaModelName string        `env:"ANIMA_MODEL_NAME"`
	AnimaTimeout   time.Duration `env:"ANIMA_API_TIMEOUT" envDefault:"60s"`

	// Bedrock settings.
	AWSAccessKey   string        `env:"AWS_ACCESS_KEY"`
	AWSSecretKey   string        `env:"AWS_SECRET_KEY"`
	AWSRegion      string        `env:"AWS_REGION_NAME" envDefault:"us-east-1"`
	BedrockTimeout time.Duration `env:"BEDROCK_API_TIMEOUT" envDefault:"60s"`

	// Shared across variants.
	KnowledgeBaseID string `env:"KNOWLEDGE_BASE_ID"`
	BedrockModelID  string `env:"BEDROCK_MODEL_ID" envDefault:"amazon.nova-lite-v1:0"`
	NumberOfResults int    `env:"DEFAULT_NUMBER_OF_RESULTS" envDefault:"10"`
	PromptTemplate  string `env:"DEFAULT_PROMPT_TEMPLATE"`

	// Server settings.
	Addr        string `env:"ADDR" envDefault:":8000"`
	DatabaseDSN string `env:"DATABASE_DSN"`
}

// Load reads valves from the environment, overloading from a .env file
// in the working directory when one exists.
func Load() (Valves, error) {
	filename, _ := filepath.Abs(filepath.Join(".", ".env"))
	if _, err := os.Stat(filename); err == nil {
		return LoadFrom(filename)
	}
	return parse()
}

// LoadFrom overloads the environment from the given file, then parses.
func LoadFrom(envfile string) (Valves, error) {
	if err := godotenv.Overload(envfile); err != nil {
		return Valves{}, fmt.Errorf("load env file: %w", err)
	}
	return parse()
}

func parse() (Valves, error) {
	var v Valves
	if err := env.Parse(&v); err != nil {
		return Valves{}, fmt.Errorf("parse valves: %w", err)
	}
	if v.PromptTemplate == "" {
		v.PromptTemplate = DefaultPromptTemplate
	}
	if err := v.Validate(); err != nil {
		return Valves{}, err
	}
	return v, nil
}

// BackendVariant resolves the configured variant tag.
func (v Valves) BackendVariant() (Variant, bool) {
	return ParseVariant(v.Variant)
}

// Validate checks the fields the configured variant requires.
func (v Valves) Validate() error {
	variant, ok := v.BackendVariant()
	if !ok {
		return fmt.Errorf("valves: RAGPIPE_VARIANT %q is not one of anima-http, bedrock-v1, bedrock-v2", v.Variant)
	}

	var missing []string
	switch variant {
	case VariantAnimaHTTP:
		if v.AnimaBaseURL == "" {
			missing = append(missing, "ANIMA_URL_1")
		}
		if v.AnimaTimeout <= 0 {
			return errors.New("valves: ANIMA_API_TIMEOUT must be positive")
		}
	case VariantBedrockV1, VariantBedrockV2:
		if v.AWSAccessKey == "" {
			missing = append(missing, "AWS_ACCESS_KEY")
		}
		if v.AWSSecretKey == "" {
			missing = append(missing, "AWS_SECRET_KEY")
		}
		if v.BedrockTimeout <= 0 {
			return errors.New("valves: BEDROCK_API_TIMEOUT must be positive")
		}
	}
	if v.KnowledgeBaseID == "" {
		missing = append(missing, "KNOWLEDGE_BASE_ID")
	}

	if len(missing) > 0 {
		return fmt.Errorf("valves: missing required settings: %v", missing)
	}
	return nil
}
