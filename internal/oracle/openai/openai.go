// Package openai adapts OpenAI-compatible chat completion APIs to oracle.Oracle.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/felipepmaragno/stem-explainer/internal/oracle"
)

const DefaultModel = "gpt-4o-mini"

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Provider struct {
	client *openai.Client
	model  string
}

func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Provider{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

func (p *Provider) ID() string    { return "openai" }
func (p *Provider) Model() string { return p.model }

func (p *Provider) Generate(ctx context.Context, req oracle.Request) (*oracle.Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            buildMessages(req),
		MaxCompletionTokens: req.Sampling.MaxOutputTokens,
		Temperature:         float32(req.Sampling.Temperature),
		TopP:                float32(req.Sampling.TopP),
	}

	if req.Schema != nil {
		schemaBytes, err := json.Marshal(req.Schema.Definition)
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		// Strict mode rejects minItems/maxItems, the parser enforces those.
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        req.Schema.Name,
				Description: req.Schema.Description,
				Schema:      json.RawMessage(schemaBytes),
				Strict:      false,
			},
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, mapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in openai response", oracle.ErrUnavailable)
	}

	out := &oracle.Response{
		Model: resp.Model,
		Usage: oracle.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}

	choice := resp.Choices[0]
	switch {
	case choice.FinishReason == openai.FinishReasonContentFilter:
		out.BlockReason = "CONTENT_FILTER"
	case choice.Message.Refusal != "":
		out.BlockReason = "REFUSAL"
	default:
		out.Text = choice.Message.Content
	}

	return out, nil
}

func buildMessages(req oracle.Request) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: openai status=%d: %s", oracle.ErrUnavailable, apiErr.HTTPStatusCode, apiErr.Message)
	}
	return fmt.Errorf("%w: openai: %v", oracle.ErrUnavailable, err)
}
