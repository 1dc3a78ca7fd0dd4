package grader

import (
	"math"
	"strconv"
	"strings"

	"github.com/pavelanni/answergrader/internal/model"
)

// ParseMaxMarks parses a question's marks field. Empty, malformed,
// non-finite and negative values fall back to def.
func ParseMaxMarks(raw string, def float64) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return def
	}
	return v
}

// RoundHalf rounds to the nearest multiple of 0.5. Exact ties go to the
// even half-step count, so 6.25 becomes 6.0 and 6.75 becomes 7.0.
func RoundHalf(v float64) float64 {
	return math.RoundToEven(v*2) / 2
}

// RoundOneDecimal rounds a score for display. It rounds the exact binary
// value, so 70.05 (stored as 70.0499...) gives 70.0 and an exact tie such
// as 0.25 goes to the even digit.
func RoundOneDecimal(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// Band maps an unrounded score onto a feedback label. Thresholds are strict,
// so a score of exactly 90, 70 or 40 lands in the band below.
func Band(score float64) model.Feedback {
	switch {
	case score > 90:
		return model.FeedbackExcellent
	case score > 70:
		return model.FeedbackGood
	case score > 40:
		return model.FeedbackFair
	default:
		return model.FeedbackNeedsImprovement
	}
}
