package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pavelanni/answergrader/internal/model"
)

// examFile is the input of the grade command:
//
//	{"questions": [
//	  {"model": "Paris is the capital of France",
//	   "student": {"type": "image", "path": "scans/q1.png"},
//	   "max_marks": 5}
//	]}
//
// A side given as a plain string is text. Image paths are resolved relative
// to the exam file.
type examFile struct {
	Questions []examQuestion `json:"questions"`
}

type examQuestion struct {
	Model    examSide        `json:"model"`
	Student  examSide        `json:"student"`
	MaxMarks json.RawMessage `json:"max_marks"`
}

type examSide struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Path string `json:"path"`
}

func (s *examSide) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		s.Type = string(model.SourceText)
		return json.Unmarshal(data, &s.Text)
	}
	type plain examSide
	return json.Unmarshal(data, (*plain)(s))
}

// rawMarks turns a JSON number or string into the raw form the grader parses.
func rawMarks(m json.RawMessage) string {
	m = bytes.TrimSpace(m)
	if len(m) == 0 || bytes.Equal(m, []byte("null")) {
		return ""
	}
	if m[0] == '"' {
		if s, err := strconv.Unquote(string(m)); err == nil {
			return s
		}
	}
	return string(m)
}

func loadExamFile(path string) ([]model.QuestionSubmission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var ef examFile
	if err := json.Unmarshal(data, &ef); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	subs := make([]model.QuestionSubmission, 0, len(ef.Questions))
	for i, q := range ef.Questions {
		modelSrc, err := q.Model.source(dir)
		if err != nil {
			return nil, fmt.Errorf("question %d model answer: %w", i+1, err)
		}
		studentSrc, err := q.Student.source(dir)
		if err != nil {
			return nil, fmt.Errorf("question %d student answer: %w", i+1, err)
		}
		subs = append(subs, model.QuestionSubmission{
			Model:    modelSrc,
			Student:  studentSrc,
			MaxMarks: rawMarks(q.MaxMarks),
		})
	}
	return subs, nil
}

func (s examSide) source(dir string) (model.AnswerSource, error) {
	kind := model.ParseSourceKind(s.Type)
	if kind == model.SourceText {
		return model.AnswerSource{Kind: kind, Text: s.Text}, nil
	}
	if s.Path == "" {
		return model.AnswerSource{Kind: kind}, nil
	}
	p := s.Path
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	img, err := os.ReadFile(p)
	if err != nil {
		return model.AnswerSource{}, fmt.Errorf("read image: %w", err)
	}
	return model.AnswerSource{Kind: kind, Image: img, Filename: filepath.Base(p)}, nil
}
