// Package views renders the grader's HTML pages.
package views

import (
	"context"
	"embed"
	"io/fs"
	"strconv"

	"github.com/pavelanni/answergrader/internal/model"
)

//go:embed static
var staticFS embed.FS

// Static holds the embedded client assets, rooted at the static directory.
var Static, _ = fs.Sub(staticFS, "static")

// clientMessages are the translations the browser script needs.
var clientMessages = []string{
	"Question", "RemoveQuestion", "NeedAtLeastOne", "Evaluating", "Evaluate",
	"EvaluationFailed", "GrandTotal", "Score", "Marks",
	"FeedbackExcellent", "FeedbackGood", "FeedbackFair", "FeedbackNeedsImprovement",
}

// staticPath returns the URL path of an embedded asset under the base path.
func staticPath(ctx context.Context, name string) string {
	return model.BasePathFromContext(ctx) + "/static/" + name
}

func formatMarks(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
