// Package grader evaluates exam submissions question by question.
package grader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/answergrader/internal/model"
	"github.com/pavelanni/answergrader/internal/ocr"
	"github.com/pavelanni/answergrader/internal/similarity"
	"github.com/pavelanni/answergrader/internal/textnorm"
)

// ErrInvalidInput marks request-level failures such as a malformed question count.
var ErrInvalidInput = errors.New("invalid input")

// Extractor turns an image into text.
type Extractor interface {
	Extract(ctx context.Context, img []byte) ocr.Extraction
}

// Evaluator grades questions. It holds only configuration and is safe for
// concurrent use.
type Evaluator struct {
	ocr          Extractor
	defaultMarks float64
	failureMode  model.OCRFailureMode
}

// New creates an Evaluator. Zero or negative default marks fall back to
// model.DefaultMaxMarks; an unknown failure mode falls back to warn.
func New(ex Extractor, cfg model.GraderConfig) *Evaluator {
	def := cfg.DefaultMarks
	if def <= 0 {
		def = model.DefaultMaxMarks
	}
	mode := cfg.OCRFailureMode
	if !model.IsValidOCRFailureMode(string(mode)) {
		mode = model.OCRFailureWarn
	}
	if ex == nil {
		ex = ocr.NewAdapter(nil)
	}
	return &Evaluator{ocr: ex, defaultMarks: def, failureMode: mode}
}

// Evaluate grades a single question. Malformed fields never fail it.
func (e *Evaluator) Evaluate(ctx context.Context, q model.QuestionSubmission) model.QuestionResult {
	var warnings []string
	modelText := e.resolve(ctx, q.Model, "model", &warnings)
	studentText := e.resolve(ctx, q.Student, "student", &warnings)
	maxMarks := ParseMaxMarks(q.MaxMarks, e.defaultMarks)

	scoreVal := similarity.Score(textnorm.Normalize(modelText), textnorm.Normalize(studentText))
	rawMarks := scoreVal / 100 * maxMarks

	return model.QuestionResult{
		Score:         RoundOneDecimal(scoreVal),
		MarksObtained: RoundHalf(rawMarks),
		MaxMarks:      maxMarks,
		Feedback:      Band(scoreVal),
		Warnings:      warnings,
	}
}

// resolve returns the raw text of one side, running OCR for images.
func (e *Evaluator) resolve(ctx context.Context, src model.AnswerSource, side string, warnings *[]string) string {
	if src.Kind != model.SourceImage {
		return src.Text
	}
	if len(src.Image) == 0 {
		return ""
	}

	ext := e.ocr.Extract(ctx, src.Image)
	if ext.OK() {
		return ext.Text
	}
	slog.Warn("OCR failed", "side", side, "file", src.Filename, "mode", e.failureMode, "error", ext.Err)
	if e.failureMode == model.OCRFailureInline {
		return ext.Diagnostic()
	}
	*warnings = append(*warnings, fmt.Sprintf("%s answer: ocr failed: %v", side, ext.Err))
	return ""
}

// MaxQuestions is the largest question count one exam may declare.
const MaxQuestions = 1000

// ParseQuestionCount parses the question count of a request. An empty value
// means zero questions.
func ParseQuestionCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: question count %q is not an integer", ErrInvalidInput, raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: question count %d is negative", ErrInvalidInput, n)
	}
	if n > MaxQuestions {
		return 0, fmt.Errorf("%w: question count %d exceeds %d", ErrInvalidInput, n, MaxQuestions)
	}
	return n, nil
}

// EvaluateExam grades questions 0..count-1, where count is parsed from
// rawCount. Indexes missing from subs are graded as blank questions.
func (e *Evaluator) EvaluateExam(ctx context.Context, rawCount string, subs map[int]model.QuestionSubmission) (model.ExamResult, error) {
	n, err := ParseQuestionCount(rawCount)
	if err != nil {
		return model.ExamResult{}, err
	}
	return e.evaluate(ctx, n, min(n, len(subs)), func(i int) model.QuestionSubmission {
		return subs[i]
	})
}

// EvaluateAll grades questions in order and accumulates totals in that same
// order. It stops early only when ctx is done.
func (e *Evaluator) EvaluateAll(ctx context.Context, questions []model.QuestionSubmission) (model.ExamResult, error) {
	return e.evaluate(ctx, len(questions), len(questions), func(i int) model.QuestionSubmission {
		return questions[i]
	})
}

// evaluate grades n questions fetched one at a time from question.
func (e *Evaluator) evaluate(ctx context.Context, n, sizeHint int, question func(i int) model.QuestionSubmission) (model.ExamResult, error) {
	start := time.Now()
	res := model.ExamResult{Results: make([]model.QuestionResult, 0, sizeHint)}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return model.ExamResult{}, fmt.Errorf("question %d: %w", i, err)
		}
		qr := e.Evaluate(ctx, question(i))
		res.GrandTotalObtained += qr.MarksObtained
		res.GrandTotalMax += qr.MaxMarks
		res.Results = append(res.Results, qr)
	}

	slog.Info("evaluated exam",
		"questions", n,
		"obtained", res.GrandTotalObtained,
		"max", res.GrandTotalMax,
		"duration", time.Since(start),
	)
	return res, nil
}
