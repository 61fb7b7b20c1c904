// Package prompt builds the instructions sent to the generation oracle.
// Every builder is a pure function of its inputs.
package prompt

import (
	"fmt"
	"strings"

	"github.com/felipepmaragno/stem-explainer/internal/domain"
)

const formattingRules = `Structure your explanation well. Use Markdown for formatting:
- **Headings**: Use Markdown headings (e.g., ` + "`## Sub-topic`" + `). Start with H2 or H3 for main sections.
- **Emphasis**: Use bold (` + "`**text**`" + `) for key terms or important points, and italics (` + "`*text*`" + `) for emphasis.
- **Lists**: Use bullet points (` + "`- point`" + `) or numbered lists (` + "`1. point`" + `).
- **Mathematical Expressions**: For any math, use LaTeX. Inline: ` + "`$...$`" + `. Block: ` + "`$$...$$`" + `.
Ensure the explanation is accurate and clear for the target audience of the chosen tone.`

// Persona markers open each persona block. Tests and log sampling key on them.
const (
	MarkerNormal       = "You are an expert STEM tutor."
	MarkerGenZ         = "You are an AI assistant explaining STEM concepts to a Gen Z audience."
	MarkerBrutalHonest = "You are a brutally honest STEM expert."
)

var personas = map[domain.Tone]func() string{
	domain.ToneNormal: func() string {
		return MarkerNormal + ` Your primary goal is to explain the concept or question in a clear, concise, accurate, and easily understandable manner.
Use simple language where possible, but don't shy away from technical terms if they are essential, and explain them when you use them.
Present information logically. Ensure all information is factually correct. Maintain a professional yet approachable tone.`
	},
	domain.ToneGenZ: func() string {
		return MarkerGenZ + `
Your tone is casual, relatable, engaging, and fun. Use clear language. If it fits naturally you may use Gen Z slang (like "no cap", "bet", "iykyk", "periodt", "vibe check", "main character energy") and emojis (like ✨, 🧠, 🚀, 🤔), but none of it is required and forced slang is worse than none.
Explain concepts as if you're talking to a friend. Being fun never excuses being wrong: keep every fact accurate.`
	},
	domain.ToneBrutalHonest: func() string {
		return MarkerBrutalHonest + ` Your explanations are direct, no-nonsense, and cut straight to the point. You don't sugarcoat anything.
No analogies, no filler, no pep talk. Use short sentences. Accuracy is mandatory: blunt is fine, wrong is not.`
	},
}

// SystemInstruction returns the complete instruction for an explanation in
// the given tone. Tones outside the closed set fall back to normal.
func SystemInstruction(tone domain.Tone) string {
	persona, ok := personas[tone]
	if !ok {
		persona = personas[domain.ToneNormal]
	}
	return persona() + "\n\n" + formattingRules
}

// Explanation is the system instruction plus the user turn for a question.
type Explanation struct {
	System string
	User   string
}

// BuildExplanation returns the instruction pair for a question.
func BuildExplanation(question string, tone domain.Tone) Explanation {
	return Explanation{
		System: SystemInstruction(tone),
		User:   question,
	}
}

const quizSystemPrompt = `You write short multiple-choice quizzes that check a student's understanding of an explanation they just read. Questions stay on the main ideas and anything the explanation highlighted. Keep questions clear and relevant to the text.`

// BuildQuiz returns the system prompt and user message asking for exactly n
// questions about explanation. The explanation is embedded verbatim.
func BuildQuiz(explanation string, n int) Explanation {
	var b strings.Builder

	b.WriteString("Explanation Text:\n")
	b.WriteString("-------------------\n")
	b.WriteString(explanation)
	b.WriteString("\n-------------------\n\n")

	b.WriteString("Instructions:\n")
	b.WriteString(fmt.Sprintf("1. Write exactly %d multiple-choice questions based on the explanation above.\n", n))
	b.WriteString(fmt.Sprintf("2. Each question has exactly %d options. Distractors must be plausible.\n", domain.QuizOptionCount))
	b.WriteString("3. Mark the correct answer with its 0-based index in the options array (correctAnswerIndex).\n")
	b.WriteString("4. Give the quiz one short, catchy title (quizTitle).\n")
	b.WriteString(fmt.Sprintf("5. Give each question a unique id: \"q1\", \"q2\", ... \"q%d\".\n", n))
	b.WriteString("6. Where you can, add a one or two sentence explanationForCorrectAnswer saying why the right answer is right.\n")
	b.WriteString("Respond with JSON only.")

	return Explanation{
		System: quizSystemPrompt,
		User:   b.String(),
	}
}
