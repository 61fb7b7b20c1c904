package quiz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipepmaragno/stem-explainer/internal/domain"
)

func question(id string, correct int) string {
	return fmt.Sprintf(`{"id":%q,"questionText":"What is %s?","options":["a","b","c","d"],"correctAnswerIndex":%d}`, id, id, correct)
}

func quizJSON(questions ...string) string {
	return `{"quizTitle":"Cell Division Showdown","questions":[` + strings.Join(questions, ",") + `]}`
}

func TestParse_Valid(t *testing.T) {
	raw := quizJSON(question("q1", 0), question("q2", 3))

	result, err := Parse(raw, 2)

	require.NoError(t, err)
	assert.Equal(t, "Cell Division Showdown", result.Title)
	require.Len(t, result.Questions, 2)
	assert.Equal(t, 3, result.Questions[1].CorrectAnswerIndex)
	assert.Len(t, result.Questions[0].Options, 4)
}

func TestParse_RepairsEmptyIDAtIndexTwo(t *testing.T) {
	raw := quizJSON(question("q1", 0), question("q2", 1), question("", 2))

	result, err := Parse(raw, 3)

	require.NoError(t, err)
	assert.Equal(t, "q3", result.Questions[2].ID)
}

func TestParse_TruncatesExtraQuestions(t *testing.T) {
	raw := quizJSON(question("q1", 0), question("q2", 1), question("q3", 2), question("q4", 3))

	result, err := Parse(raw, 2)

	require.NoError(t, err)
	assert.Len(t, result.Questions, 2)
}

func TestParse_TruncatesBeyondMaximum(t *testing.T) {
	var questions []string
	for i := 1; i <= domain.MaxQuizQuestions+1; i++ {
		questions = append(questions, question(fmt.Sprintf("q%d", i), i%4))
	}

	result, err := Parse(quizJSON(questions...), 5)

	require.NoError(t, err)
	require.Len(t, result.Questions, 5)
	assert.Equal(t, "q5", result.Questions[4].ID)
}

func TestSchema_KeepsUpperBound(t *testing.T) {
	questions := Schema().Definition["properties"].(map[string]any)["questions"].(map[string]any)
	assert.Equal(t, domain.MaxQuizQuestions, questions["maxItems"])
}

func TestParse_StripsCodeFence(t *testing.T) {
	raw := "```json\n" + quizJSON(question("q1", 0)) + "\n```"

	result, err := Parse(raw, 1)

	require.NoError(t, err)
	assert.Len(t, result.Questions, 1)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", "   "},
		{"not json", "Here is your quiz!"},
		{"no questions", `{"quizTitle":"t","questions":[]}`},
		{"missing title", `{"questions":[` + question("q1", 0) + `]}`},
		{"three options", `{"quizTitle":"t","questions":[{"questionText":"x","options":["a","b","c"],"correctAnswerIndex":0}]}`},
		{"index out of range", quizJSON(question("q1", 4))},
		{"negative index", quizJSON(question("q1", -1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Parse(tt.raw, 5)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Nil(t, result)
		})
	}
}

func TestRepairIDs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"all present", []string{"a", "b", "c"}, []string{"a", "b", "c"}},
		{"empty at two", []string{"q1", "q2", ""}, []string{"q1", "q2", "q3"}},
		{"whitespace", []string{" ", "q2"}, []string{"q1", "q2"}},
		{"duplicate", []string{"x", "x"}, []string{"x", "q2"}},
		{"fallback taken", []string{"q2", "q2"}, []string{"q2", "q2-2"}},
		{"later explicit clash", []string{"", "q1"}, []string{"q1", "q2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := make([]domain.QuizQuestion, len(tt.in))
			for i, id := range tt.in {
				qs[i].ID = id
			}

			RepairIDs(qs)

			got := make([]string, len(qs))
			for i := range qs {
				got[i] = qs[i].ID
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchema(t *testing.T) {
	s := Schema()

	assert.Equal(t, "quiz", s.Name)
	assert.Equal(t, "object", s.Definition["type"])
	_, err := compiled()
	require.NoError(t, err)
}
