// Package quiz defines the structured quiz format requested from the oracle
// and turns its raw output into a validated domain.QuizResult.
package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/felipepmaragno/stem-explainer/internal/domain"
	"github.com/felipepmaragno/stem-explainer/internal/oracle"
)

var ErrMalformed = errors.New("malformed quiz")

const schemaURL = "schema://quiz.json"

// Schema is the structured-output contract sent with every quiz request.
func Schema() *oracle.Schema {
	return &oracle.Schema{
		Name:        "quiz",
		Description: "A multiple-choice quiz about a STEM explanation",
		Definition:  definition(),
	}
}

func definition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"quizTitle": map[string]any{
				"type":        "string",
				"description": "A short, catchy title for the quiz",
			},
			"questions": map[string]any{
				"type":     "array",
				"minItems": domain.MinQuizQuestions,
				"maxItems": domain.MaxQuizQuestions,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":           map[string]any{"type": "string"},
						"questionText": map[string]any{"type": "string"},
						"options": map[string]any{
							"type":     "array",
							"minItems": domain.QuizOptionCount,
							"maxItems": domain.QuizOptionCount,
							"items":    map[string]any{"type": "string"},
						},
						"correctAnswerIndex": map[string]any{
							"type":    "integer",
							"minimum": 0,
							"maximum": domain.QuizOptionCount - 1,
						},
						"explanationForCorrectAnswer": map[string]any{"type": "string"},
					},
					"required": []any{"questionText", "options", "correctAnswerIndex"},
				},
			},
		},
		"required": []any{"quizTitle", "questions"},
	}
}

// validationDefinition is definition without the upper bound on questions.
// Parse truncates overlong quizzes instead of rejecting them.
func validationDefinition() map[string]any {
	def := definition()
	questions := def["properties"].(map[string]any)["questions"].(map[string]any)
	delete(questions, "maxItems")
	return def
}

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	// The compiler wants a decoded JSON value, not Go-typed maps.
	raw, err := json.Marshal(validationDefinition())
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	return c.Compile(schemaURL)
})

// Parse validates raw oracle output and returns at most want questions,
// every one with a unique id.
func Parse(raw string, want int) (*domain.QuizResult, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty output", ErrMalformed)
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrMalformed, err)
	}

	schema, err := compiled()
	if err != nil {
		return nil, fmt.Errorf("compile quiz schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: schema validation failed: %v", ErrMalformed, err)
	}

	var result domain.QuizResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrMalformed, err)
	}

	if len(result.Questions) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrMalformed)
	}
	if want > 0 && len(result.Questions) > want {
		result.Questions = result.Questions[:want]
	}

	result.Title = strings.TrimSpace(result.Title)
	RepairIDs(result.Questions)

	return &result, nil
}

// RepairIDs replaces empty or duplicate ids with "q<position>", adding a
// numeric suffix when that fallback is already taken.
func RepairIDs(questions []domain.QuizQuestion) {
	seen := make(map[string]bool, len(questions))
	for i := range questions {
		id := strings.TrimSpace(questions[i].ID)
		if id == "" || seen[id] {
			id = fallbackID(i, seen)
		}
		questions[i].ID = id
		seen[id] = true
	}
}

func fallbackID(i int, seen map[string]bool) string {
	id := fmt.Sprintf("q%d", i+1)
	for n := 2; seen[id]; n++ {
		id = fmt.Sprintf("q%d-%d", i+1, n)
	}
	return id
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
