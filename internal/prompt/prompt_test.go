package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felipepmaragno/stem-explainer/internal/domain"
)

var commonRules = []string{
	"Markdown headings",
	"bold",
	"italics",
	"bullet points",
	"numbered lists",
	"`$...$`",
	"`$$...$$`",
}

func TestSystemInstruction_PersonaMarkers(t *testing.T) {
	tests := []struct {
		tone   domain.Tone
		marker string
	}{
		{domain.ToneNormal, MarkerNormal},
		{domain.ToneGenZ, MarkerGenZ},
		{domain.ToneBrutalHonest, MarkerBrutalHonest},
	}

	for _, tt := range tests {
		t.Run(string(tt.tone), func(t *testing.T) {
			got := SystemInstruction(tt.tone)
			assert.True(t, strings.HasPrefix(got, tt.marker), "persona marker must open the instruction")
			for _, rule := range commonRules {
				assert.Contains(t, got, rule)
			}
		})
	}
}

func TestSystemInstruction_OnlyOnePersona(t *testing.T) {
	got := SystemInstruction(domain.ToneGenZ)
	assert.NotContains(t, got, MarkerNormal)
	assert.NotContains(t, got, MarkerBrutalHonest)
}

func TestSystemInstruction_UnknownToneFallsBackToNormal(t *testing.T) {
	assert.Equal(t, SystemInstruction(domain.ToneNormal), SystemInstruction(domain.Tone("pirate")))
	assert.Equal(t, SystemInstruction(domain.ToneNormal), SystemInstruction(""))
}

func TestBuildExplanation_Deterministic(t *testing.T) {
	for _, tone := range []domain.Tone{domain.ToneNormal, domain.ToneGenZ, domain.ToneBrutalHonest} {
		a := BuildExplanation("Explain Newton's second law", tone)
		b := BuildExplanation("Explain Newton's second law", tone)
		assert.Equal(t, a, b)
		assert.Equal(t, "Explain Newton's second law", a.User)
	}
}

func TestBuildQuiz_EmbedsExplanationVerbatim(t *testing.T) {
	explanation := "## Force\n**F = ma** where $m$ is mass.\n$$a = F/m$$"
	got := BuildQuiz(explanation, 3)

	assert.Contains(t, got.User, explanation)
	assert.Contains(t, got.User, "exactly 3 multiple-choice questions")
	assert.Contains(t, got.User, `"q3"`)
	assert.Contains(t, got.User, "exactly 4 options")
	assert.Equal(t, got, BuildQuiz(explanation, 3))
}
