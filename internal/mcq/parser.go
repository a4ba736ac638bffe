// Package mcq parses the fixed textual template the generation prompt asks
// the completion model to follow:
//
//	Question: <text>
//	A. <option>
//	B. <option>
//	C. <option>
//	D. <option>
//	Answer: <letter>
//	Explanation: <text>
//
// blocks separated by a blank line. The template is a prompt instruction,
// not a guarantee, so parsing is best-effort and lenient: unmatched lines
// are dropped, missing answer/explanation fields stay empty, and blocks
// without a question or options are discarded entirely.
package mcq

import (
	"strings"

	"llm-quiz-service/internal/domain"
)

var optionMarkers = []string{"A.", "B.", "C.", "D."}

// Parse splits raw model output on blank-line boundaries and extracts the
// question blocks. Output order equals order of appearance in the input.
func Parse(raw string) []domain.Question {
	var questions []domain.Question
	for _, block := range strings.Split(strings.TrimSpace(raw), "\n\n") {
		// Case-sensitive candidate check; fragments split off a logical
		// block by a stray blank line lack the marker and are dropped.
		if !strings.Contains(block, "Question:") {
			continue
		}
		q := parseBlock(block)
		if q.Valid() {
			questions = append(questions, q)
		}
	}
	return questions
}

func parseBlock(block string) domain.Question {
	var q domain.Question
	for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "question"):
			q.Text = afterColon(line)
		case isOption(line):
			q.Options = append(q.Options, strings.TrimSpace(line))
		case strings.HasPrefix(lower, "answer"):
			q.Answer = afterColon(line)
		case strings.HasPrefix(lower, "explanation"):
			q.Explanation = afterColon(line)
		}
	}
	return q
}

func isOption(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, marker := range optionMarkers {
		if strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	return false
}

// afterColon returns the text after the first ":", or the whole line when
// no colon is present, trimmed either way.
func afterColon(line string) string {
	if _, rest, ok := strings.Cut(line, ":"); ok {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(line)
}
