// Package gemini adapts the Google Gemini API to oracle.Oracle.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/felipepmaragno/stem-explainer/internal/oracle"
)

const DefaultModel = "gemini-1.5-flash-latest"

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL    string
	HTTPClient *http.Client
}

type Provider struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Provider{client: client, model: model}, nil
}

func (p *Provider) ID() string    { return "gemini" }
func (p *Provider) Model() string { return p.model }

func (p *Provider) Generate(ctx context.Context, req oracle.Request) (*oracle.Response, error) {
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}},
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, buildConfig(req))
	if err != nil {
		return nil, mapError(err)
	}

	return interpret(result, p.model), nil
}

func buildConfig(req oracle.Request) *genai.GenerateContentConfig {
	s := req.Sampling
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(s.MaxOutputTokens),
		Temperature:     genai.Ptr(float32(s.Temperature)),
		SafetySettings:  buildSafety(s.Safety),
	}
	if s.TopK > 0 {
		config.TopK = genai.Ptr(float32(s.TopK))
	}
	if s.TopP > 0 {
		config.TopP = genai.Ptr(float32(s.TopP))
	}

	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = buildSchema(req.Schema.Definition)
	}

	return config
}

var harmCategories = map[oracle.HarmCategory]genai.HarmCategory{
	oracle.HarmHarassment:       genai.HarmCategoryHarassment,
	oracle.HarmHateSpeech:       genai.HarmCategoryHateSpeech,
	oracle.HarmSexuallyExplicit: genai.HarmCategorySexuallyExplicit,
	oracle.HarmDangerousContent: genai.HarmCategoryDangerousContent,
}

var blockThresholds = map[oracle.BlockThreshold]genai.HarmBlockThreshold{
	oracle.BlockLowAndAbove:    genai.HarmBlockThresholdBlockLowAndAbove,
	oracle.BlockMediumAndAbove: genai.HarmBlockThresholdBlockMediumAndAbove,
	oracle.BlockOnlyHigh:       genai.HarmBlockThresholdBlockOnlyHigh,
}

func buildSafety(settings []oracle.SafetySetting) []*genai.SafetySetting {
	out := make([]*genai.SafetySetting, 0, len(settings))
	for _, s := range settings {
		category, ok := harmCategories[s.Category]
		if !ok {
			continue
		}
		threshold, ok := blockThresholds[s.Threshold]
		if !ok {
			threshold = genai.HarmBlockThresholdBlockMediumAndAbove
		}
		out = append(out, &genai.SafetySetting{Category: category, Threshold: threshold})
	}
	return out
}

// buildSchema converts a JSON Schema definition map to a genai.Schema.
func buildSchema(def map[string]any) *genai.Schema {
	schema := &genai.Schema{}

	if t, ok := def["type"].(string); ok {
		schema.Type = mapType(t)
	}
	if desc, ok := def["description"].(string); ok {
		schema.Description = desc
	}

	if props, ok := def["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for k, v := range props {
			if propDef, ok := v.(map[string]any); ok {
				schema.Properties[k] = buildSchema(propDef)
			}
		}
	}

	if req, ok := def["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	if items, ok := def["items"].(map[string]any); ok {
		schema.Items = buildSchema(items)
	}

	if n, ok := asInt64(def["minItems"]); ok {
		schema.MinItems = genai.Ptr(n)
	}
	if n, ok := asInt64(def["maxItems"]); ok {
		schema.MaxItems = genai.Ptr(n)
	}
	if n, ok := asFloat64(def["minimum"]); ok {
		schema.Minimum = genai.Ptr(n)
	}
	if n, ok := asFloat64(def["maximum"]); ok {
		schema.Maximum = genai.Ptr(n)
	}

	return schema
}

func mapType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

var blockingFinishReasons = map[genai.FinishReason]bool{
	genai.FinishReasonSafety:            true,
	genai.FinishReasonProhibitedContent: true,
	genai.FinishReasonBlocklist:         true,
	genai.FinishReasonSPII:              true,
}

// interpret treats prompt feedback and safety finish reasons as a block.
func interpret(result *genai.GenerateContentResponse, model string) *oracle.Response {
	resp := &oracle.Response{Model: model}

	if result.UsageMetadata != nil {
		resp.Usage = oracle.Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
		}
	}

	if fb := result.PromptFeedback; fb != nil && fb.BlockReason != "" {
		resp.BlockReason = string(fb.BlockReason)
		return resp
	}

	if len(result.Candidates) > 0 {
		if reason := result.Candidates[0].FinishReason; blockingFinishReasons[reason] {
			resp.BlockReason = string(reason)
			return resp
		}
	}

	resp.Text = result.Text()
	return resp
}

func mapError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: gemini status=%d: %s", oracle.ErrUnavailable, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%w: gemini: %v", oracle.ErrUnavailable, err)
}
