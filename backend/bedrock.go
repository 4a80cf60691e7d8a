package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/animalabs/ragpipe/citation"
	"github.com/animalabs/ragpipe/core"
)

// BedrockConfig configures a client for AWS Bedrock Knowledge Bases.
type BedrockConfig struct {
	AccessKey       string
	SecretKey       string
	Region          string
	KnowledgeBaseID string
	ModelID         string

	// NumberOfResults and PromptTemplate are defaults for per-request
	// overrides; zero values leave the Bedrock defaults in place.
	NumberOfResults int
	PromptTemplate  string

	// Sessions asks Bedrock to thread calls through a server-side
	// session. Off for the v1 variant, on for v2.
	Sessions bool

	// Timeout bounds one RetrieveAndGenerate call. Defaults to 60s.
	Timeout time.Duration

	Logger *zap.Logger
}

// retrieveAndGenerateAPI is the slice of the Bedrock Agent Runtime
// client the backend uses. Narrowed for testability.
type retrieveAndGenerateAPI interface {
	RetrieveAndGenerate(ctx context.Context, params *bedrockagentruntime.RetrieveAndGenerateInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error)
}

// BedrockClient calls Bedrock Agent Runtime's RetrieveAndGenerate API.
type BedrockClient struct {
	cfg    BedrockConfig
	api    retrieveAndGenerateAPI
	logger *zap.Logger
}

func NewBedrockClient(cfg BedrockConfig) *BedrockClient {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	api := bedrockagentruntime.New(bedrockagentruntime.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	})

	return &BedrockClient{cfg: cfg, api: api, logger: logger.Named("bedrock")}
}

// Timeout returns the configured call timeout. The pipeline names it in
// the timeout error message shown to users.
func (c *BedrockClient) Timeout() time.Duration {
	return c.cfg.Timeout
}

// endpoint is the regional service endpoint, used to name the call
// target in backend errors.
func (c *BedrockClient) endpoint() string {
	return fmt.Sprintf("https://bedrock-agent-runtime.%s.amazonaws.com", c.cfg.Region)
}

func (c *BedrockClient) modelARN() string {
	return fmt.Sprintf("arn:aws:bedrock:%s::foundation-model/%s", c.cfg.Region, c.cfg.ModelID)
}

func (c *BedrockClient) RetrieveAndGenerate(ctx context.Context, q Query) (*Result, error) {
	kbCfg := &bedrocktypes.KnowledgeBaseRetrieveAndGenerateConfiguration{
		KnowledgeBaseId: aws.String(c.cfg.KnowledgeBaseID),
		ModelArn:        aws.String(c.modelARN()),
	}

	results := q.NumberOfResults
	if results == 0 {
		results = c.cfg.NumberOfResults
	}
	if results > 0 {
		kbCfg.RetrievalConfiguration = &bedrocktypes.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &bedrocktypes.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(int32(results)),
			},
		}
	}

	template := q.PromptTemplate
	if template == "" {
		template = c.cfg.PromptTemplate
	}
	if template != "" {
		kbCfg.GenerationConfiguration = &bedrocktypes.GenerationConfiguration{
			PromptTemplate: &bedrocktypes.PromptTemplate{
				TextPromptTemplate: aws.String(template),
			},
		}
	}

	input := &bedrockagentruntime.RetrieveAndGenerateInput{
		Input: &bedrocktypes.RetrieveAndGenerateInput{Text: aws.String(q.Prompt)},
		RetrieveAndGenerateConfiguration: &bedrocktypes.RetrieveAndGenerateConfiguration{
			Type:                       bedrocktypes.RetrieveAndGenerateTypeKnowledgeBase,
			KnowledgeBaseConfiguration: kbCfg,
		},
	}
	if c.cfg.Sessions && q.SessionID != "" {
		input.SessionId = aws.String(q.SessionID)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	out, err := c.api.RetrieveAndGenerate(ctx, input)
	if err != nil {
		return nil, c.classifyError(err)
	}

	result := &Result{}
	if out.Output != nil {
		result.OutputText = aws.ToString(out.Output.Text)
	}
	if c.cfg.Sessions {
		result.SessionID = aws.ToString(out.SessionId)
	}
	for _, cit := range out.Citations {
		for _, ref := range cit.RetrievedReferences {
			if ref.Location == nil || ref.Location.S3Location == nil {
				continue
			}
			if uri := aws.ToString(ref.Location.S3Location.Uri); uri != "" {
				result.Citations = append(result.Citations, citation.FromURI(uri))
			}
		}
	}

	c.logger.Debug("call completed", zap.Int("citations", len(result.Citations)))
	return result, nil
}

func (c *BedrockClient) classifyError(err error) error {
	be := &core.BackendError{Op: "bedrock.retrieveandgenerate", Kind: core.KindOther, URL: c.endpoint(), Err: err}

	var re smithyhttpResponseError
	var ae smithy.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		be.Kind = core.KindTimeout
	case errors.As(err, &re):
		be.Kind = core.KindHTTP
		be.Status = re.HTTPStatusCode()
	case errors.As(err, &ae):
		be.Kind = core.KindHTTP
		be.Status = statusForAPIError(ae)
	}

	c.logger.Warn("call failed", zap.String("kind", string(be.Kind)), zap.Error(err))
	return be
}

// smithyhttpResponseError matches transport/http.ResponseError without
// importing the package for a single assertion.
type smithyhttpResponseError interface {
	error
	HTTPStatusCode() int
}

// statusForAPIError maps the modeled Bedrock exceptions onto the HTTP
// status classes the pipeline's message table keys on.
func statusForAPIError(ae smithy.APIError) int {
	switch ae.(type) {
	case *bedrocktypes.AccessDeniedException:
		return 403
	case *bedrocktypes.ResourceNotFoundException:
		return 404
	case *bedrocktypes.ThrottlingException:
		return 429
	case *bedrocktypes.ServiceQuotaExceededException:
		return 429
	case *bedrocktypes.ValidationException, *bedrocktypes.ConflictException:
		return 400
	default:
		return 500
	}
}
