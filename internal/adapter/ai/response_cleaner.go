package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyOutput is returned when the model produced no usable text.
	ErrEmptyOutput = errors.New("empty model output")
	// ErrUnparseableJSON is returned when the output is a JSON object that does not decode.
	ErrUnparseableJSON = errors.New("unparseable analysis json")

	fenceRe  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	bulletRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
)

type analysisPayload struct {
	Summary string   `json:"summary"`
	Points  []string `json:"points"`
}

// ParseAnalysis turns raw model output into a summary and key points. JSON
// of the form {"summary": ..., "points": [...]} is preferred, optionally
// wrapped in a markdown fence or surrounded by prose. Anything else is read
// as plain text: the first paragraph is the summary and bulleted or numbered
// lines are the points.
func ParseAnalysis(raw string) (string, []string, error) {
	text := strings.TrimSpace(removeMarkdownBlocks(raw))
	if text == "" {
		return "", nil, ErrEmptyOutput
	}

	if obj := extractJSON(text); obj != "" {
		var p analysisPayload
		if err := json.Unmarshal([]byte(obj), &p); err == nil && strings.TrimSpace(p.Summary) != "" {
			return strings.TrimSpace(p.Summary), cleanPoints(p.Points), nil
		} else if strings.HasPrefix(text, "{") {
			if err == nil {
				err = errors.New("missing summary")
			}
			return "", nil, fmt.Errorf("%w: %v", ErrUnparseableJSON, err)
		}
	}

	return parsePlainText(text)
}

// removeMarkdownBlocks returns the body of the first fenced block, or the
// input unchanged when there is none.
func removeMarkdownBlocks(response string) string {
	if m := fenceRe.FindStringSubmatch(response); m != nil {
		return m[1]
	}
	response = strings.TrimPrefix(strings.TrimSpace(response), "```json")
	response = strings.TrimPrefix(response, "```")
	return strings.TrimSuffix(response, "```")
}

// extractJSON returns the first balanced {...} object in response, ignoring
// braces inside string literals, or "" when there is none.
func extractJSON(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(response); i++ {
		ch := response[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

func parsePlainText(text string) (string, []string, error) {
	var (
		summary []string
		points  []string
		done    bool
	)
	for _, line := range strings.Split(text, "\n") {
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			if p := strings.TrimSpace(m[1]); p != "" {
				points = append(points, p)
			}
			if len(summary) > 0 {
				done = true
			}
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if len(summary) > 0 {
				done = true
			}
			continue
		}
		if !done {
			summary = append(summary, line)
		}
	}

	s := strings.Join(summary, " ")
	if s == "" && len(points) > 0 {
		s = points[0]
	}
	if s == "" {
		return "", nil, ErrEmptyOutput
	}
	return s, points, nil
}

func cleanPoints(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
