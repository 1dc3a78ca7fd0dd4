package store

import (
	"testing"

	"github.com/pavelanni/answergrader/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(obtained float64) model.ExamResult {
	return model.ExamResult{
		GrandTotalObtained: obtained,
		GrandTotalMax:      20,
		Results: []model.QuestionResult{
			{Score: 92, MarksObtained: obtained, MaxMarks: 10, Feedback: model.FeedbackExcellent},
			{Score: 0, MarksObtained: 0, MaxMarks: 10, Feedback: model.FeedbackNeedsImprovement,
				Warnings: []string{"student answer: ocr failed: empty image"}},
		},
	}
}

func TestSaveAndGetEvaluation(t *testing.T) {
	s := newTestStore(t)

	id, err := s.SaveEvaluation(sampleResult(9))
	if err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated ID")
	}

	got, err := s.GetEvaluation(id)
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored evaluation")
	}
	if got.QuestionCount != 2 {
		t.Errorf("QuestionCount = %d, want 2", got.QuestionCount)
	}
	if got.Result.GrandTotalObtained != 9 || got.Result.GrandTotalMax != 20 {
		t.Errorf("totals = %v/%v, want 9/20", got.Result.GrandTotalObtained, got.Result.GrandTotalMax)
	}
	if len(got.Result.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(got.Result.Results))
	}
	if got.Result.Results[0].Feedback != model.FeedbackExcellent {
		t.Errorf("Feedback = %q", got.Result.Results[0].Feedback)
	}
	if len(got.Result.Results[1].Warnings) != 1 {
		t.Errorf("Warnings = %v, want one", got.Result.Results[1].Warnings)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestGetEvaluationNotFound(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetEvaluation("missing")
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestListEvaluations(t *testing.T) {
	s := newTestStore(t)

	list, err := s.ListEvaluations(10)
	if err != nil {
		t.Fatalf("ListEvaluations: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}

	for _, obtained := range []float64{1, 2, 3} {
		if _, err := s.SaveEvaluation(sampleResult(obtained)); err != nil {
			t.Fatalf("SaveEvaluation: %v", err)
		}
	}

	tests := []struct {
		name      string
		limit     int
		wantCount int
	}{
		{"all", 0, 3},
		{"limited", 2, 2},
		{"over limit", 10, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListEvaluations(tt.limit)
			if err != nil {
				t.Fatalf("ListEvaluations: %v", err)
			}
			if len(list) != tt.wantCount {
				t.Errorf("expected %d entries, got %d", tt.wantCount, len(list))
			}
		})
	}

	list, err = s.ListEvaluations(1)
	if err != nil {
		t.Fatalf("ListEvaluations: %v", err)
	}
	if list[0].Result.GrandTotalObtained != 3 {
		t.Errorf("newest entry obtained = %v, want 3", list[0].Result.GrandTotalObtained)
	}

	count, err := s.EvaluationCount()
	if err != nil {
		t.Fatalf("EvaluationCount: %v", err)
	}
	if count != 3 {
		t.Errorf("EvaluationCount = %d, want 3", count)
	}
}
