package domain

import "time"

// Tone selects the persona used for an explanation.
type Tone string

const (
	ToneNormal       Tone = "normal"
	ToneGenZ         Tone = "genZ"
	ToneBrutalHonest Tone = "brutalHonest"
)

// ParseTone maps a client value to a Tone. Anything unrecognized is normal.
func ParseTone(s string) Tone {
	switch Tone(s) {
	case ToneGenZ:
		return ToneGenZ
	case ToneBrutalHonest:
		return ToneBrutalHonest
	default:
		return ToneNormal
	}
}

const (
	MinQuestionLength = 10
	MaxQuestionLength = 2000

	MinQuizQuestions     = 1
	MaxQuizQuestions     = 10
	DefaultQuizQuestions = 5

	QuizOptionCount = 4
)

type ExplanationRequest struct {
	QuestionText string
	Tone         Tone
	IDToken      string
}

// Quota is the caller's rate-limit position after a request was admitted
// or refused.
type Quota struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Window    time.Duration
}

type ExplanationResult struct {
	Explanation string `json:"explanation"`
	Cached      bool   `json:"-"`
	Quota       *Quota `json:"-"`
}

type QuizQuestion struct {
	ID                 string   `json:"id"`
	QuestionText       string   `json:"questionText"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Rationale          string   `json:"explanationForCorrectAnswer,omitempty"`
}

type QuizResult struct {
	Title     string         `json:"quizTitle"`
	Questions []QuizQuestion `json:"questions"`
	Quota     *Quota         `json:"-"`
}

type QuizRequest struct {
	Explanation  string
	NumQuestions int
	IDToken      string
}

// Identity is a verified caller.
type Identity struct {
	UserID string
	Email  string
}

type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Question  string    `json:"question"`
	UserNotes string    `json:"userNotes"`
	SavedAt   time.Time `json:"savedAt"`
	CreatedAt time.Time `json:"createdAt"`
}

type Feedback struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId,omitempty"`
	Question     string    `json:"question"`
	Explanation  string    `json:"explanation"`
	IsHelpful    bool      `json:"isHelpful"`
	FeedbackText string    `json:"feedbackText,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Draft is the resumable state of a user's explainer page.
type Draft struct {
	Question      string         `json:"question"`
	Tone          Tone           `json:"tone"`
	Explanation   string         `json:"explanation,omitempty"`
	Quiz          *QuizResult    `json:"quiz,omitempty"`
	Answers       map[string]int `json:"answers,omitempty"`
	QuizSubmitted bool           `json:"quizSubmitted"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}
