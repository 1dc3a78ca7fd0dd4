package prompts

import (
	"bytes"
	_ "embed"
	"regexp"
	"strings"
	"text/template"
)

// NoTextMarker is what the model is told to answer for an image without text.
const NoTextMarker = "[NO TEXT]"

var (
	transcriptionTagRegex = regexp.MustCompile(`(?i)</?\s*transcription\b[^>]*>`)
	codeFenceRegex        = regexp.MustCompile("(?s)^```[A-Za-z]*\\s*\\n(.*?)\\n?```$")
)

//go:embed transcribe.txt
var transcribeSource string

var transcribeTemplate = template.Must(
	template.New("transcribe").
		Funcs(template.FuncMap{"join": strings.Join}).
		Parse(transcribeSource),
)

// TranscribeData holds template data for the transcription prompt.
type TranscribeData struct {
	Languages    []string
	NoTextMarker string
}

// BuildTranscribePrompt renders the system prompt for image transcription.
func BuildTranscribePrompt(languages []string) (string, error) {
	var buf bytes.Buffer
	err := transcribeTemplate.Execute(&buf, TranscribeData{
		Languages:    languages,
		NoTextMarker: NoTextMarker,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// CleanTranscription strips markdown fences and transcription tags from a
// model reply. The no-text marker becomes an empty string.
func CleanTranscription(raw string) string {
	s := strings.TrimSpace(raw)
	if m := codeFenceRegex.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	s = transcriptionTagRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == NoTextMarker {
		return ""
	}
	return s
}
