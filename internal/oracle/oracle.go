// Package oracle abstracts the hosted generative model. Callers send an
// instruction and a sampling configuration and get back text or a
// content-safety block; every transport failure is an error wrapping
// ErrUnavailable.
package oracle

import (
	"context"
	"errors"
)

var ErrUnavailable = errors.New("oracle unavailable")

// Oracle is a single request/response exchange with a generative model.
type Oracle interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	ID() string
	Model() string
}

type Request struct {
	// System sets the persona and formatting constraints.
	System string
	// Prompt is the single user turn.
	Prompt string
	// Schema, when set, asks for JSON conforming to it.
	Schema   *Schema
	Sampling Sampling
}

// Schema is a JSON Schema definition for structured output.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

type Sampling struct {
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
	Safety          []SafetySetting
}

type HarmCategory string

const (
	HarmHarassment       HarmCategory = "harassment"
	HarmHateSpeech       HarmCategory = "hate_speech"
	HarmSexuallyExplicit HarmCategory = "sexually_explicit"
	HarmDangerousContent HarmCategory = "dangerous_content"
)

type BlockThreshold string

const (
	BlockLowAndAbove    BlockThreshold = "low_and_above"
	BlockMediumAndAbove BlockThreshold = "medium_and_above"
	BlockOnlyHigh       BlockThreshold = "only_high"
)

type SafetySetting struct {
	Category  HarmCategory
	Threshold BlockThreshold
}

// ModerateSafety blocks medium-or-higher probability harm in every category.
func ModerateSafety() []SafetySetting {
	return []SafetySetting{
		{Category: HarmHarassment, Threshold: BlockMediumAndAbove},
		{Category: HarmHateSpeech, Threshold: BlockMediumAndAbove},
		{Category: HarmSexuallyExplicit, Threshold: BlockMediumAndAbove},
		{Category: HarmDangerousContent, Threshold: BlockMediumAndAbove},
	}
}

// ExplanationSampling favors factual consistency over creativity.
func ExplanationSampling() Sampling {
	return Sampling{
		Temperature:     0.7,
		TopK:            1,
		TopP:            1,
		MaxOutputTokens: 2048,
		Safety:          ModerateSafety(),
	}
}

// QuizSampling leaves room for ten questions with rationales.
func QuizSampling() Sampling {
	return Sampling{
		Temperature:     0.7,
		TopK:            1,
		TopP:            1,
		MaxOutputTokens: 4096,
		Safety:          ModerateSafety(),
	}
}

type Response struct {
	Text string
	// BlockReason is non-empty when the model withheld output for a policy
	// reason, e.g. "SAFETY". Text is empty in that case.
	BlockReason string
	Model       string
	Usage       Usage
}

func (r *Response) Blocked() bool {
	return r.BlockReason != ""
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}
