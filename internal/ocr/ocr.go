// Package ocr turns uploaded answer images into text.
//
// Recognition is delegated to an Engine. The Adapter validates the image,
// runs the engine and reports the outcome as an Extraction so that a bad
// upload degrades a single answer instead of failing the whole exam.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DiagnosticPrefix starts every text produced for a failed extraction.
const DiagnosticPrefix = "Error extracting text: "

var (
	// ErrEmptyImage is returned for an image side submitted without bytes.
	ErrEmptyImage = errors.New("empty image")
	// ErrNoEngine is returned when OCR is disabled.
	ErrNoEngine = errors.New("no OCR engine configured")
)

// Engine recognizes text in an encoded image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Extraction is the outcome of one OCR attempt.
type Extraction struct {
	Text string
	Err  error
}

// OK reports whether text was extracted.
func (e Extraction) OK() bool { return e.Err == nil }

// Diagnostic renders a failed extraction the way it is shown in place of
// answer text.
func (e Extraction) Diagnostic() string {
	if e.Err == nil {
		return ""
	}
	return DiagnosticPrefix + e.Err.Error()
}

// Adapter validates images and runs them through an Engine.
type Adapter struct {
	engine Engine
}

// NewAdapter creates an Adapter. A nil engine makes every extraction fail
// with ErrNoEngine.
func NewAdapter(engine Engine) *Adapter {
	return &Adapter{engine: engine}
}

// EngineName returns the configured engine name, or "none".
func (a *Adapter) EngineName() string {
	if a.engine == nil {
		return "none"
	}
	return a.engine.Name()
}

// Extract decodes img and runs OCR on it.
func (a *Adapter) Extract(ctx context.Context, img []byte) Extraction {
	if len(img) == 0 {
		return Extraction{Err: ErrEmptyImage}
	}
	format, err := DetectFormat(img)
	if err != nil {
		return Extraction{Err: fmt.Errorf("decode image: %w", err)}
	}
	if a.engine == nil {
		return Extraction{Err: ErrNoEngine}
	}

	text, err := a.engine.Recognize(ctx, img)
	if err != nil {
		return Extraction{Err: fmt.Errorf("%s: %w", a.engine.Name(), err)}
	}
	slog.Debug("extracted text from image", "engine", a.engine.Name(), "format", format, "chars", len(text))
	return Extraction{Text: text}
}

// ExtractText returns the recognized text, or the diagnostic string when
// extraction failed. It never fails.
func (a *Adapter) ExtractText(ctx context.Context, img []byte) string {
	ext := a.Extract(ctx, img)
	if !ext.OK() {
		slog.Warn("OCR failed", "engine", a.EngineName(), "error", ext.Err)
		return ext.Diagnostic()
	}
	return ext.Text
}
