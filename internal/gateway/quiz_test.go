package gateway

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipepmaragno/stem-explainer/internal/domain"
	"github.com/felipepmaragno/stem-explainer/internal/oracle"
	"github.com/felipepmaragno/stem-explainer/internal/ratelimit"
)

func quizPayload(ids ...string) string {
	qs := make([]string, len(ids))
	for i, id := range ids {
		qs[i] = fmt.Sprintf(`{"id":%q,"questionText":"Q%d?","options":["a","b","c","d"],"correctAnswerIndex":%d,"explanationForCorrectAnswer":"because"}`, id, i+1, i%4)
	}
	return `{"quizTitle":"Photosynthesis Power-Up","questions":[` + strings.Join(qs, ",") + `]}`
}

func quizReq(n int) domain.QuizRequest {
	return domain.QuizRequest{
		Explanation:  "Photosynthesis converts light energy into chemical energy stored in glucose.",
		NumQuestions: n,
		IDToken:      "abc",
	}
}

func TestGenerateQuiz_Success(t *testing.T) {
	env := newTestEnv(t, oracle.MockResponse{Text: quizPayload("q1", "q2", "")})

	result, err := env.svc.GenerateQuiz(context.Background(), quizReq(3))

	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis Power-Up", result.Title)
	require.Len(t, result.Questions, 3)
	assert.Equal(t, "q3", result.Questions[2].ID)

	call := env.oracle.Calls[0]
	require.NotNil(t, call.Schema)
	assert.Contains(t, call.Prompt, "Photosynthesis converts light energy into chemical energy stored in glucose.")
	assert.Contains(t, call.Prompt, "exactly 3 multiple-choice questions")
}

func TestGenerateQuiz_EmbedsExplanationVerbatim(t *testing.T) {
	env := newTestEnv(t, oracle.MockResponse{Text: quizPayload("q1")})
	req := quizReq(1)
	req.Explanation = "\n\n## Mitosis\n\n* Prophase  \n* Metaphase\n\n"

	_, err := env.svc.GenerateQuiz(context.Background(), req)

	require.NoError(t, err)
	assert.Contains(t, env.oracle.Calls[0].Prompt, req.Explanation)
}

func TestGenerateQuiz_DefaultCount(t *testing.T) {
	env := newTestEnv(t, oracle.MockResponse{Text: quizPayload("q1", "q2", "q3", "q4", "q5", "q6")})

	result, err := env.svc.GenerateQuiz(context.Background(), quizReq(0))

	require.NoError(t, err)
	assert.Contains(t, env.oracle.Calls[0].Prompt, "exactly 5 multiple-choice questions")
	assert.Len(t, result.Questions, 5, "extra questions are truncated")
}

func TestGenerateQuiz_CountOutOfRange(t *testing.T) {
	for _, n := range []int{-1, 11, 100} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			env := newTestEnv(t)

			_, err := env.svc.GenerateQuiz(context.Background(), quizReq(n))

			requireKind(t, err, domain.ErrInvalidInput)
			assert.Equal(t, 0, env.oracle.CallCount())
		})
	}
}

func TestGenerateQuiz_EmptyExplanation(t *testing.T) {
	env := newTestEnv(t)

	req := quizReq(3)
	req.Explanation = "  \n"
	_, err := env.svc.GenerateQuiz(context.Background(), req)

	requireKind(t, err, domain.ErrInvalidInput)
}

func TestGenerateQuiz_MalformedOutput(t *testing.T) {
	tests := map[string]string{
		"prose":          "Sure! Here's a quiz about photosynthesis...",
		"no questions":   `{"quizTitle":"t","questions":[]}`,
		"wrong options":  `{"quizTitle":"t","questions":[{"questionText":"x","options":["a","b"],"correctAnswerIndex":0}]}`,
		"index too high": `{"quizTitle":"t","questions":[{"questionText":"x","options":["a","b","c","d"],"correctAnswerIndex":7}]}`,
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, oracle.MockResponse{Text: text})

			result, err := env.svc.GenerateQuiz(context.Background(), quizReq(3))

			requireKind(t, err, domain.ErrOracleUnavailable)
			assert.Nil(t, result)
		})
	}
}

func TestGenerateQuiz_Blocked(t *testing.T) {
	env := newTestEnv(t, oracle.MockResponse{BlockReason: "SAFETY"})

	_, err := env.svc.GenerateQuiz(context.Background(), quizReq(3))

	de := requireKind(t, err, domain.ErrContentBlocked)
	assert.Equal(t, "SAFETY", de.BlockReason)
}

func TestGenerateQuiz_Unauthorized(t *testing.T) {
	env := newTestEnv(t)
	env.svc.verifier = rejectAll()

	_, err := env.svc.GenerateQuiz(context.Background(), quizReq(3))

	requireKind(t, err, domain.ErrUnauthorized)
}

func TestGenerateQuiz_SeparateQuota(t *testing.T) {
	responses := []oracle.MockResponse{}
	for i := 0; i < 5; i++ {
		responses = append(responses, oracle.MockResponse{Text: "explanation"})
	}
	responses = append(responses, oracle.MockResponse{Text: quizPayload("q1")})
	env := newTestEnv(t, responses...)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := env.svc.GenerateExplanation(ctx, explainReq(fmt.Sprintf("Explain topic %d please", i)))
		require.NoError(t, err)
	}

	_, err := env.svc.GenerateQuiz(ctx, quizReq(1))
	assert.NoError(t, err, "explanation quota must not starve the quiz flow")
}

func TestGenerateQuiz_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	limiter := ratelimit.NewInMemoryLimiter(ratelimit.Policy{MaxRequests: 1, Window: time.Minute})
	_, err := limiter.Allow(context.Background(), "user-abc")
	require.NoError(t, err)
	env.svc.quizLimiter = limiter

	_, err = env.svc.GenerateQuiz(context.Background(), quizReq(3))

	de := requireKind(t, err, domain.ErrRateLimited)
	assert.Contains(t, de.Message, "1 requests per 1m0s")
}
