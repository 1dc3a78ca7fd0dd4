package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pavelanni/answergrader/internal/model"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "Answer Grader" {
		t.Errorf("T(AppTitle) = %q, want 'Answer Grader'", got)
	}

	got = T(ctx, "Evaluate")
	if got != "Evaluate Exam" {
		t.Errorf("T(Evaluate) = %q, want 'Evaluate Exam'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "AppTitle")
	if got != "Проверка ответов" {
		t.Errorf("T(AppTitle) = %q, want 'Проверка ответов'", got)
	}
}

func TestFeedbackLabels(t *testing.T) {
	ctx := initLang(t, "en")

	tests := []struct {
		fb   model.Feedback
		want string
	}{
		{model.FeedbackExcellent, "Excellent"},
		{model.FeedbackGood, "Good"},
		{model.FeedbackFair, "Fair"},
		{model.FeedbackNeedsImprovement, "Needs improvement"},
	}
	for _, tt := range tests {
		if got := Feedback(ctx, tt.fb); got != tt.want {
			t.Errorf("Feedback(%s) = %q, want %q", tt.fb, got, tt.want)
		}
	}

	ruCtx := initLang(t, "ru")
	if got := Feedback(ruCtx, model.FeedbackGood); got != "Хорошо" {
		t.Errorf("ru FeedbackGood = %q, want 'Хорошо'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "QuestionsGraded", 1)
	if got1 != "1 question graded." {
		t.Errorf("Tp(QuestionsGraded, 1) = %q, want '1 question graded.'", got1)
	}

	got5 := Tp(ctx, "QuestionsGraded", 5)
	if got5 != "5 questions graded." {
		t.Errorf("Tp(QuestionsGraded, 5) = %q, want '5 questions graded.'", got5)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddlewareAcceptLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	tests := []struct {
		name     string
		accept   string
		wantLang string
		want     string
	}{
		{"no header", "", "en", "Answer Grader"},
		{"russian", "ru-RU,ru;q=0.9,en;q=0.8", "ru", "Проверка ответов"},
		{"unsupported", "ja", "en", "Answer Grader"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotTitle, gotLang string
			h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotTitle = T(r.Context(), "AppTitle")
				gotLang = Lang(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if gotTitle != tt.want {
				t.Errorf("AppTitle = %q, want %q", gotTitle, tt.want)
			}
			if gotLang != tt.wantLang {
				t.Errorf("Lang = %q, want %q", gotLang, tt.wantLang)
			}
		})
	}
}

func TestIsSupported(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for _, lang := range []string{"en", "ru", "en-GB"} {
		if !IsSupported(lang) {
			t.Errorf("IsSupported(%q) = false, want true", lang)
		}
	}
	for _, lang := range []string{"ja", "not a tag"} {
		if IsSupported(lang) {
			t.Errorf("IsSupported(%q) = true, want false", lang)
		}
	}
}
