package domain

import "strings"

// Question is one multiple-choice question as parsed from raw model output.
// Options hold the full labeled texts ("A. ..." through "D. ...") in
// generation order. Answer is the label the model claimed is correct; it is
// not validated against Options at parse time.
type Question struct {
	Text        string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

// Valid reports whether the question carries enough to be asked.
func (q Question) Valid() bool {
	return q.Text != "" && len(q.Options) > 0
}

// Result tags an answered question as correct or not.
type Result string

const (
	ResultCorrect   Result = "Correct"
	ResultIncorrect Result = "Incorrect"
)

// AnswerRecord captures one answered question. Records are immutable once
// appended; their order is the chronological answer order.
type AnswerRecord struct {
	Question      string `json:"question"`
	Selected      string `json:"yourAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	Explanation   string `json:"explanation"`
	Result        Result `json:"result"`
}

// LeaderboardEntry is one completed quiz run. Entries are append-only.
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Topic string `json:"topic"`
	Score int    `json:"score"`
	Total int    `json:"total"`
}

// Label extracts the leading option label: the text before the first "."
// with surrounding whitespace trimmed. "B. 4" and "B" both yield "B".
func Label(option string) string {
	label, _, _ := strings.Cut(option, ".")
	return strings.TrimSpace(label)
}
