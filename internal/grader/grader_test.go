package grader

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/pavelanni/answergrader/internal/model"
	"github.com/pavelanni/answergrader/internal/ocr"
)

// fakeExtractor returns canned extractions keyed by image content.
type fakeExtractor struct {
	results map[string]ocr.Extraction
	calls   int
}

func (f *fakeExtractor) Extract(_ context.Context, img []byte) ocr.Extraction {
	f.calls++
	if r, ok := f.results[string(img)]; ok {
		return r
	}
	return ocr.Extraction{Err: errors.New("unreadable")}
}

func textQuestion(modelText, studentText, marks string) model.QuestionSubmission {
	return model.QuestionSubmission{
		Model:    model.AnswerSource{Kind: model.SourceText, Text: modelText},
		Student:  model.AnswerSource{Kind: model.SourceText, Text: studentText},
		MaxMarks: marks,
	}
}

func newTestEvaluator(t *testing.T, ex Extractor, mode model.OCRFailureMode) *Evaluator {
	t.Helper()
	return New(ex, model.GraderConfig{DefaultMarks: 10, OCRFailureMode: mode})
}

func TestEvaluateParisScenario(t *testing.T) {
	e := newTestEvaluator(t, nil, model.OCRFailureWarn)
	qr := e.Evaluate(context.Background(), textQuestion("Paris is the capital of France", "paris is capital of france", "10"))

	if qr.Score <= 70 {
		t.Errorf("Score = %v, want > 70", qr.Score)
	}
	if qr.Feedback != model.FeedbackGood && qr.Feedback != model.FeedbackExcellent {
		t.Errorf("Feedback = %q, want Good or Excellent", qr.Feedback)
	}
	if math.Mod(qr.MarksObtained*2, 1) != 0 {
		t.Errorf("MarksObtained = %v, not a multiple of 0.5", qr.MarksObtained)
	}
	if qr.MaxMarks != 10 {
		t.Errorf("MaxMarks = %v, want 10", qr.MaxMarks)
	}
	if len(qr.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", qr.Warnings)
	}
}

func TestEvaluateIdentical(t *testing.T) {
	e := newTestEvaluator(t, nil, model.OCRFailureWarn)
	qr := e.Evaluate(context.Background(), textQuestion("The Cat", "the   cat", "4"))
	if qr.Score != 100 || qr.MarksObtained != 4 || qr.Feedback != model.FeedbackExcellent {
		t.Errorf("got %+v, want full marks", qr)
	}
}

func TestEvaluateBlankAnswer(t *testing.T) {
	e := newTestEvaluator(t, nil, model.OCRFailureWarn)
	qr := e.Evaluate(context.Background(), textQuestion("Paris", "", "5"))
	if qr.Score != 0 || qr.MarksObtained != 0 || qr.Feedback != model.FeedbackNeedsImprovement {
		t.Errorf("got %+v, want zero score", qr)
	}
	if qr.MaxMarks != 5 {
		t.Errorf("MaxMarks = %v, want 5", qr.MaxMarks)
	}
}

func TestEvaluateMalformedMarks(t *testing.T) {
	e := newTestEvaluator(t, nil, model.OCRFailureWarn)
	qr := e.Evaluate(context.Background(), textQuestion("Paris is the capital", "Paris is the capital", "ten"))
	if qr.MaxMarks != 10 {
		t.Errorf("MaxMarks = %v, want default 10", qr.MaxMarks)
	}
	if qr.MarksObtained != 10 {
		t.Errorf("MarksObtained = %v, want 10", qr.MarksObtained)
	}
}

func TestEvaluateImageSides(t *testing.T) {
	ex := &fakeExtractor{results: map[string]ocr.Extraction{
		"model-img":   {Text: "Water boils at 100 degrees"},
		"student-img": {Text: "water BOILS at 100 degrees"},
	}}
	e := newTestEvaluator(t, ex, model.OCRFailureWarn)

	q := model.QuestionSubmission{
		Model:    model.AnswerSource{Kind: model.SourceImage, Image: []byte("model-img")},
		Student:  model.AnswerSource{Kind: model.SourceImage, Image: []byte("student-img")},
		MaxMarks: "10",
	}
	qr := e.Evaluate(context.Background(), q)
	if qr.Score != 100 {
		t.Errorf("Score = %v, want 100", qr.Score)
	}
	if ex.calls != 2 {
		t.Errorf("OCR calls = %d, want 2", ex.calls)
	}
}

func TestEvaluateImageWithoutFile(t *testing.T) {
	ex := &fakeExtractor{}
	e := newTestEvaluator(t, ex, model.OCRFailureInline)
	q := model.QuestionSubmission{
		Model:   model.AnswerSource{Kind: model.SourceText, Text: "anything at all"},
		Student: model.AnswerSource{Kind: model.SourceImage},
	}
	qr := e.Evaluate(context.Background(), q)
	if qr.Score != 0 {
		t.Errorf("Score = %v, want 0", qr.Score)
	}
	if ex.calls != 0 {
		t.Errorf("OCR calls = %d, want 0", ex.calls)
	}
}

func TestEvaluateOCRFailureModes(t *testing.T) {
	// The model answer shares vocabulary with the diagnostic string, so
	// scoring it inline yields a non-zero score.
	q := model.QuestionSubmission{
		Model:    model.AnswerSource{Kind: model.SourceText, Text: "error extracting text unreadable"},
		Student:  model.AnswerSource{Kind: model.SourceImage, Image: []byte("garbage")},
		MaxMarks: "10",
	}

	t.Run("inline", func(t *testing.T) {
		e := newTestEvaluator(t, &fakeExtractor{}, model.OCRFailureInline)
		qr := e.Evaluate(context.Background(), q)
		if qr.Score == 0 {
			t.Error("inline mode should score the diagnostic text")
		}
		if len(qr.Warnings) != 0 {
			t.Errorf("Warnings = %v, want none in inline mode", qr.Warnings)
		}
	})

	t.Run("warn", func(t *testing.T) {
		e := newTestEvaluator(t, &fakeExtractor{}, model.OCRFailureWarn)
		qr := e.Evaluate(context.Background(), q)
		if qr.Score != 0 {
			t.Errorf("Score = %v, want 0 in warn mode", qr.Score)
		}
		if len(qr.Warnings) != 1 || !strings.HasPrefix(qr.Warnings[0], "student answer: ocr failed") {
			t.Errorf("Warnings = %v", qr.Warnings)
		}
	})

	t.Run("unknown mode falls back to warn", func(t *testing.T) {
		e := newTestEvaluator(t, &fakeExtractor{}, model.OCRFailureMode("explode"))
		qr := e.Evaluate(context.Background(), q)
		if len(qr.Warnings) != 1 {
			t.Errorf("Warnings = %v, want one", qr.Warnings)
		}
	})
}

func TestParseQuestionCount(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"3", 3, false},
		{" 2 ", 2, false},
		{"abc", 0, true},
		{"2.5", 0, true},
		{"-1", 0, true},
		{"1000", 1000, false},
		{"1001", 0, true},
		{"9223372036854775807", 0, true},
		{"99999999999999999999", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseQuestionCount(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseQuestionCount(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ParseQuestionCount(%q) error = %v, want ErrInvalidInput", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("ParseQuestionCount(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestEvaluateExam(t *testing.T) {
	e := newTestEvaluator(t, nil, model.OCRFailureWarn)
	subs := map[int]model.QuestionSubmission{
		0: textQuestion("Paris is the capital of France", "paris is capital of france", "10"),
		1: textQuestion("Water boils at 100 degrees", "ice melts at zero", "5"),
		// index 2 missing
		3: textQuestion("Go has goroutines", "Go has goroutines", "bad"),
	}

	res, err := e.EvaluateExam(context.Background(), "4", subs)
	if err != nil {
		t.Fatalf("EvaluateExam: %v", err)
	}
	if len(res.Results) != 4 {
		t.Fatalf("len(Results) = %d, want 4", len(res.Results))
	}

	var obtained, maxTotal float64
	for _, r := range res.Results {
		obtained += r.MarksObtained
		maxTotal += r.MaxMarks
	}
	if res.GrandTotalObtained != obtained {
		t.Errorf("GrandTotalObtained = %v, want %v", res.GrandTotalObtained, obtained)
	}
	if res.GrandTotalMax != maxTotal {
		t.Errorf("GrandTotalMax = %v, want %v", res.GrandTotalMax, maxTotal)
	}
	if maxTotal != 35 {
		t.Errorf("GrandTotalMax = %v, want 35", maxTotal)
	}

	blank := res.Results[2]
	if blank.Score != 0 || blank.MaxMarks != 10 || blank.Feedback != model.FeedbackNeedsImprovement {
		t.Errorf("missing question = %+v, want blank with default marks", blank)
	}
	if res.Results[3].MarksObtained != 10 {
		t.Errorf("question 3 marks = %v, want 10", res.Results[3].MarksObtained)
	}
}

func TestEvaluateExamZeroQuestions(t *testing.T) {
	e := newTestEvaluator(t, nil, model.OCRFailureWarn)
	for _, raw := range []string{"0", ""} {
		res, err := e.EvaluateExam(context.Background(), raw, nil)
		if err != nil {
			t.Fatalf("EvaluateExam(%q): %v", raw, err)
		}
		if res.GrandTotalObtained != 0 || res.GrandTotalMax != 0 {
			t.Errorf("totals = %v/%v, want 0/0", res.GrandTotalObtained, res.GrandTotalMax)
		}
		if res.Results == nil || len(res.Results) != 0 {
			t.Errorf("Results = %#v, want empty non-nil slice", res.Results)
		}
	}
}

func TestEvaluateExamInvalidCount(t *testing.T) {
	ex := &fakeExtractor{}
	e := newTestEvaluator(t, ex, model.OCRFailureWarn)
	subs := map[int]model.QuestionSubmission{
		0: {Student: model.AnswerSource{Kind: model.SourceImage, Image: []byte("x")}},
	}
	_, err := e.EvaluateExam(context.Background(), "two", subs)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
	if ex.calls != 0 {
		t.Errorf("OCR calls = %d, want none for rejected request", ex.calls)
	}
}

func TestEvaluateExamHugeCount(t *testing.T) {
	ex := &fakeExtractor{}
	e := newTestEvaluator(t, ex, model.OCRFailureWarn)
	subs := map[int]model.QuestionSubmission{
		0: textQuestion("a cat", "a cat", "1"),
	}
	for _, raw := range []string{"9223372036854775807", "100000000"} {
		res, err := e.EvaluateExam(context.Background(), raw, subs)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("EvaluateExam(%q) error = %v, want ErrInvalidInput", raw, err)
		}
		if res.Results != nil {
			t.Errorf("EvaluateExam(%q) results = %d, want none", raw, len(res.Results))
		}
	}
}

func TestEvaluateExamSparseSubmissions(t *testing.T) {
	e := newTestEvaluator(t, nil, model.OCRFailureWarn)
	subs := map[int]model.QuestionSubmission{
		MaxQuestions - 1: textQuestion("a cat", "a cat", "2"),
		MaxQuestions:     textQuestion("ignored", "ignored", "2"),
	}
	res, err := e.EvaluateExam(context.Background(), strconv.Itoa(MaxQuestions), subs)
	if err != nil {
		t.Fatalf("EvaluateExam: %v", err)
	}
	if len(res.Results) != MaxQuestions {
		t.Fatalf("len(Results) = %d, want %d", len(res.Results), MaxQuestions)
	}
	if res.GrandTotalObtained != 2 {
		t.Errorf("GrandTotalObtained = %v, want 2", res.GrandTotalObtained)
	}
	if want := float64(MaxQuestions-1)*10 + 2; res.GrandTotalMax != want {
		t.Errorf("GrandTotalMax = %v, want %v", res.GrandTotalMax, want)
	}
}

func TestEvaluateExamCanceled(t *testing.T) {
	e := newTestEvaluator(t, nil, model.OCRFailureWarn)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.EvaluateExam(ctx, strconv.Itoa(MaxQuestions), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestEvaluateAllCanceled(t *testing.T) {
	e := newTestEvaluator(t, nil, model.OCRFailureWarn)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.EvaluateAll(ctx, []model.QuestionSubmission{textQuestion("a", "b", "1")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
