// Package similarity scores how close a student's answer is to a model answer.
//
// The statistic is the cosine similarity of TF-IDF vectors built over a
// corpus made of exactly the two texts being compared, followed by a
// square-root boost. Because the IDF basis is the pair itself, scores are
// only meaningful for that pair and are never cached.
package similarity

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrEmptyVocabulary is returned when no term survives tokenization.
var ErrEmptyVocabulary = errors.New("empty vocabulary")

// Terms are maximal runs of letters, digits and underscores at least two
// characters long.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

const minTokenLen = 2

// Score returns the boosted similarity of two normalized texts in [0, 100].
// Either side empty, or nothing left to compare after tokenization, scores 0.
func Score(text1, text2 string) float64 {
	if text1 == "" || text2 == "" {
		return 0.0
	}
	raw, err := Cosine(text1, text2)
	if err != nil {
		return 0.0
	}
	return math.Min(Boost(raw)*100, 100.0)
}

// Boost maps a raw cosine similarity onto the grading curve sqrt(raw).
// It keeps 0 and 1 fixed and preserves ordering.
func Boost(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	return math.Sqrt(raw)
}

// Cosine returns the cosine similarity of the TF-IDF vectors of text1 and
// text2 within their two-document corpus.
func Cosine(text1, text2 string) (float64, error) {
	vocab, vecs := vectorize(tokenize(text1), tokenize(text2))
	if len(vocab) == 0 {
		return 0, ErrEmptyVocabulary
	}

	var dot, ss1, ss2 float64
	for i := range vocab {
		a, b := vecs[0][i], vecs[1][i]
		dot += a * b
		ss1 += a * a
		ss2 += b * b
	}
	if ss1 == 0 || ss2 == 0 {
		return 0, nil
	}
	// sqrt(ss1*ss2) rather than the product of norms keeps identical
	// documents at exactly 1.
	sim := dot / math.Sqrt(ss1*ss2)
	return math.Max(0, math.Min(sim, 1)), nil
}

func tokenize(text string) []string {
	var tokens []string
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if utf8.RuneCountInString(tok) >= minTokenLen {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// vectorize builds raw-count TF-IDF vectors with smoothed IDF
// (ln((1+n)/(1+df)) + 1) over the given documents. Vocabulary order is sorted
// so results do not depend on map iteration.
func vectorize(docs ...[]string) ([]string, [][]float64) {
	counts := make([]map[string]float64, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		counts[i] = make(map[string]float64)
		for _, tok := range doc {
			if counts[i][tok] == 0 {
				df[tok]++
			}
			counts[i][tok]++
		}
	}

	vocab := make([]string, 0, len(df))
	for term := range df {
		vocab = append(vocab, term)
	}
	sort.Strings(vocab)

	n := float64(len(docs))
	vecs := make([][]float64, len(docs))
	for i := range docs {
		vecs[i] = make([]float64, len(vocab))
		for j, term := range vocab {
			idf := math.Log((1+n)/(1+float64(df[term]))) + 1
			vecs[i][j] = counts[i][term] * idf
		}
	}
	return vocab, vecs
}
