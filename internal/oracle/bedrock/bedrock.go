// Package bedrock reaches Anthropic models hosted on AWS Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/felipepmaragno/stem-explainer/internal/oracle"
)

const DefaultModelID = "anthropic.claude-3-5-haiku-20241022-v1:0"

// invoker is the subset of the bedrockruntime client used here.
type invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type Provider struct {
	client  invoker
	modelID string
}

func New(ctx context.Context, region, modelID string) (*Provider, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithConfig(cfg, modelID), nil
}

func NewWithConfig(cfg aws.Config, modelID string) *Provider {
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &Provider{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}
}

func (p *Provider) ID() string    { return "bedrock" }
func (p *Provider) Model() string { return p.modelID }

func (p *Provider) Generate(ctx context.Context, req oracle.Request) (*oracle.Response, error) {
	body, err := json.Marshal(toBedrockRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: bedrock invoke model: %v", oracle.ErrUnavailable, err)
	}

	return parseBedrockResponse(output.Body, p.modelID)
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Messages         []bedrockMessage `json:"messages"`
	System           string           `json:"system,omitempty"`
	Temperature      *float64         `json:"temperature,omitempty"`
	TopK             *int             `json:"top_k,omitempty"`
	TopP             *float64         `json:"top_p,omitempty"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockResponse struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      bedrockUsage   `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Claude has no native schema mode; the schema rides along in the system
// prompt and the quiz parser validates the result.
func toBedrockRequest(req oracle.Request) bedrockRequest {
	system := req.System
	if req.Schema != nil {
		if schema, err := json.Marshal(req.Schema.Definition); err == nil {
			system = strings.TrimSpace(system + "\n\nRespond with a single JSON object matching this JSON Schema:\n" + string(schema))
		}
	}

	s := req.Sampling
	maxTokens := s.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	out := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Messages:         []bedrockMessage{{Role: "user", Content: req.Prompt}},
		System:           system,
		Temperature:      aws.Float64(s.Temperature),
	}
	if s.TopK > 0 {
		out.TopK = aws.Int(s.TopK)
	}
	if s.TopP > 0 && s.TopP < 1 {
		out.TopP = aws.Float64(s.TopP)
	}
	return out
}

func parseBedrockResponse(body []byte, model string) (*oracle.Response, error) {
	var resp bedrockResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: unmarshal bedrock response: %v", oracle.ErrUnavailable, err)
	}

	out := &oracle.Response{
		Model: model,
		Usage: oracle.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}

	if resp.StopReason == "refusal" {
		out.BlockReason = "REFUSAL"
		return out, nil
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out.Text = text.String()

	return out, nil
}
