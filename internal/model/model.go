package model

import (
	"context"
	"time"
)

// SourceKind says how one side of a question was submitted.
type SourceKind string

const (
	SourceText  SourceKind = "text"
	SourceImage SourceKind = "image"
)

// ParseSourceKind maps a form value to a SourceKind. Anything other than
// "image" is treated as text.
func ParseSourceKind(s string) SourceKind {
	if SourceKind(s) == SourceImage {
		return SourceImage
	}
	return SourceText
}

// AnswerSource is one side (model or student) of a question.
type AnswerSource struct {
	Kind     SourceKind
	Text     string
	Image    []byte
	Filename string
}

// QuestionSubmission is a single question as received from the client.
type QuestionSubmission struct {
	Model   AnswerSource
	Student AnswerSource
	// MaxMarks is kept raw; the evaluator applies the lenient parse.
	MaxMarks string
}

// Feedback is the qualitative band assigned to a score.
type Feedback string

const (
	FeedbackExcellent        Feedback = "Excellent"
	FeedbackGood             Feedback = "Good"
	FeedbackFair             Feedback = "Fair"
	FeedbackNeedsImprovement Feedback = "Needs improvement"
)

// MessageID returns the i18n message ID for the band.
func (f Feedback) MessageID() string {
	switch f {
	case FeedbackExcellent:
		return "FeedbackExcellent"
	case FeedbackGood:
		return "FeedbackGood"
	case FeedbackFair:
		return "FeedbackFair"
	default:
		return "FeedbackNeedsImprovement"
	}
}

// QuestionResult holds the grading outcome for one question. FeedbackLabel
// is Feedback translated for the requesting client.
type QuestionResult struct {
	Score         float64  `json:"score"`
	MarksObtained float64  `json:"marks_obtained"`
	MaxMarks      float64  `json:"max_marks"`
	Feedback      Feedback `json:"feedback"`
	FeedbackLabel string   `json:"feedback_label,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// ExamResult aggregates all question results of a submission. Summary is a
// localized one-line description set by the HTTP layer.
type ExamResult struct {
	GrandTotalObtained float64          `json:"grand_total_obtained"`
	GrandTotalMax      float64          `json:"grand_total_max"`
	Results            []QuestionResult `json:"results"`
	Summary            string           `json:"summary,omitempty"`
}

// OCRFailureMode selects what happens to a side whose OCR failed.
type OCRFailureMode string

const (
	// OCRFailureInline scores the diagnostic string as if it were the answer.
	OCRFailureInline OCRFailureMode = "inline"
	// OCRFailureWarn treats the side as empty and records a warning.
	OCRFailureWarn OCRFailureMode = "warn"
)

// IsValidOCRFailureMode checks a configured mode name.
func IsValidOCRFailureMode(s string) bool {
	switch OCRFailureMode(s) {
	case OCRFailureInline, OCRFailureWarn:
		return true
	}
	return false
}

// DefaultMaxMarks is used when a question's marks field is missing or malformed.
const DefaultMaxMarks = 10.0

// GraderConfig holds runtime grading parameters set via CLI flags.
type GraderConfig struct {
	DefaultMarks   float64
	OCRFailureMode OCRFailureMode
	OCREngine      string // tesseract, vision or none
	Lang           string // UI language (en, ru)
	BasePath       string // URL prefix for sub-path deployments
	MaxUploadBytes int64
}

// HistoryEntry is a stored exam evaluation.
type HistoryEntry struct {
	ID            string     `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	QuestionCount int        `json:"question_count"`
	Result        ExamResult `json:"result"`
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}
