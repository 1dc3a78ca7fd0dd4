package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/pavelanni/answergrader/internal/model"
)

// questionFieldRegex matches per-question form keys such as q_0_model_type,
// q_3_student_data or q_1_marks.
var questionFieldRegex = regexp.MustCompile(`^q_(\d+)_(model_type|model_data|student_type|student_data|marks)$`)

// parseExamForm reads the raw question count and every question submission
// present in the request, keyed by question index. It does not validate the
// count; that is the grader's job.
func parseExamForm(r *http.Request, maxMemory int64) (string, map[int]model.QuestionSubmission, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return "", nil, fmt.Errorf("parse multipart form: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return "", nil, fmt.Errorf("parse form: %w", err)
	}

	indexes := make(map[int]bool)
	collect := func(key string) {
		m := questionFieldRegex.FindStringSubmatch(key)
		if m == nil {
			return
		}
		if i, err := strconv.Atoi(m[1]); err == nil {
			indexes[i] = true
		}
	}
	for key := range r.PostForm {
		collect(key)
	}
	if r.MultipartForm != nil {
		for key := range r.MultipartForm.File {
			collect(key)
		}
	}

	subs := make(map[int]model.QuestionSubmission, len(indexes))
	for i := range indexes {
		modelSrc, err := readSource(r, i, "model")
		if err != nil {
			return "", nil, err
		}
		studentSrc, err := readSource(r, i, "student")
		if err != nil {
			return "", nil, err
		}
		subs[i] = model.QuestionSubmission{
			Model:    modelSrc,
			Student:  studentSrc,
			MaxMarks: r.PostFormValue(fmt.Sprintf("q_%d_marks", i)),
		}
	}
	return r.PostFormValue("question_count"), subs, nil
}

// readSource reads one side of question i. Image sides read the uploaded
// file; a missing upload leaves the image empty.
func readSource(r *http.Request, i int, side string) (model.AnswerSource, error) {
	kind := model.ParseSourceKind(r.PostFormValue(fmt.Sprintf("q_%d_%s_type", i, side)))
	dataKey := fmt.Sprintf("q_%d_%s_data", i, side)
	if kind == model.SourceText {
		return model.AnswerSource{Kind: kind, Text: r.PostFormValue(dataKey)}, nil
	}

	src := model.AnswerSource{Kind: kind}
	if r.MultipartForm == nil {
		return src, nil
	}
	files := r.MultipartForm.File[dataKey]
	if len(files) == 0 {
		return src, nil
	}
	data, err := readFile(files[0])
	if err != nil {
		return src, fmt.Errorf("read %s: %w", dataKey, err)
	}
	src.Image = data
	src.Filename = files[0].Filename
	return src, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
