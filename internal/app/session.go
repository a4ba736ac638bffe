package app

import (
	"sync"
	"time"

	"llm-quiz-service/internal/domain"
)

// State is the lifecycle phase of a quiz session.
type State string

const (
	// StateGenerating covers content acquisition, question generation,
	// and parsing. Answers are rejected until generation settles.
	StateGenerating State = "generating"
	// StateAwaitingAnswer means the current question is on screen.
	StateAwaitingAnswer State = "awaitingAnswer"
	// StateComplete is terminal; a new session is required to quiz again.
	StateComplete State = "complete"
	// StateFailed means the completion service failed. The participant's
	// name, email, and topic stay on the session so a retry loses nothing.
	StateFailed State = "failed"
)

// QuestionView is the participant-facing shape of the current question.
// The correct answer and explanation are withheld until the question is
// answered.
type QuestionView struct {
	Number  int      `json:"number"`
	Text    string   `json:"question"`
	Options []string `json:"options"`
}

// SessionView is a snapshot of a session safe to hand to the view layer.
type SessionView struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Topic      string               `json:"topic,omitempty"`
	State      State                `json:"state"`
	Score      int                  `json:"score"`
	Answered   int                  `json:"answered"`
	Total      int                  `json:"total"`
	Question   *QuestionView        `json:"question,omitempty"`
	LastAnswer *domain.AnswerRecord `json:"lastAnswer,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// Session drives one participant through one quiz. The session owns its
// question and answer sequences for its lifetime.
type Session struct {
	id        string
	name      string
	email     string
	topic     string
	createdAt time.Time
	now       func() time.Time

	mu          sync.RWMutex
	state       State
	sourceText  string
	questions   []domain.Question
	current     int
	score       int
	answers     []domain.AnswerRecord
	saved       bool
	failure     string
	ready       chan struct{}
	subscribers map[chan SessionView]struct{}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id, name, email, topic string) *Session {
	return newSessionWithClock(id, name, email, topic, time.Now)
}

// newSessionWithClock allows deterministic timestamps in tests.
func newSessionWithClock(id, name, email, topic string, now func() time.Time) *Session {
	return &Session{
		id:          id,
		name:        name,
		email:       email,
		topic:       topic,
		createdAt:   now(),
		now:         now,
		state:       StateGenerating,
		ready:       make(chan struct{}),
		subscribers: make(map[chan SessionView]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Ready is closed once generation settles (questions ready, degenerate
// completion, or failure).
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// finishGeneration installs the parsed questions. Zero questions is the
// silent degenerate path: the session completes immediately with 0 of 0.
// Returns true when the session entered StateComplete.
func (s *Session) finishGeneration(sourceText string, questions []domain.Question) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sourceText = sourceText
	s.questions = questions
	if len(questions) == 0 {
		s.state = StateComplete
	} else {
		s.state = StateAwaitingAnswer
	}
	close(s.ready)
	s.broadcastLocked()
	return s.state == StateComplete
}

func (s *Session) failGeneration(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateFailed
	s.failure = err.Error()
	close(s.ready)
	s.broadcastLocked()
}

// submit records the chosen option against the current question. Returns
// the new record and whether the answer exhausted the question sequence.
func (s *Session) submit(option string) (domain.AnswerRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateGenerating:
		return domain.AnswerRecord{}, false, domain.ErrQuizNotReady
	case StateComplete:
		return domain.AnswerRecord{}, false, domain.ErrQuizComplete
	case StateFailed:
		return domain.AnswerRecord{}, false, domain.ErrGenerationFailed
	}

	question := s.questions[s.current]
	record := domain.AnswerRecord{
		Question:      question.Text,
		Selected:      option,
		CorrectAnswer: question.Answer,
		Explanation:   question.Explanation,
		Result:        domain.ResultIncorrect,
	}
	if domain.Label(option) == domain.Label(question.Answer) {
		record.Result = domain.ResultCorrect
		s.score++
	}
	s.answers = append(s.answers, record)
	s.current++
	if s.current >= len(s.questions) {
		s.state = StateComplete
	}
	s.broadcastLocked()
	return record, s.state == StateComplete, nil
}

// complete ends the quiz early. Early termination and natural exhaustion
// are treated identically downstream. Returns false if the session was
// already terminal (or not yet ready).
func (s *Session) complete() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateGenerating:
		return false, domain.ErrQuizNotReady
	case StateComplete:
		return false, nil
	case StateFailed:
		return false, domain.ErrGenerationFailed
	}

	s.state = StateComplete
	s.broadcastLocked()
	return true, nil
}

// markSaved flips the persist-once guard; only the first caller after the
// session enters StateComplete gets true.
func (s *Session) markSaved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved {
		return false
	}
	s.saved = true
	return true
}

// entry builds the leaderboard row for this session.
func (s *Session) entry() domain.LeaderboardEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.LeaderboardEntry{
		Name:  s.name,
		Email: s.email,
		Topic: s.topic,
		Score: s.score,
		Total: len(s.questions),
	}
}

// Answers returns a copy of the chronological answer records.
func (s *Session) Answers() []domain.AnswerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]domain.AnswerRecord, len(s.answers))
	copy(records, s.answers)
	return records
}

// View returns the current snapshot.
func (s *Session) View() SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) subscribe() (<-chan SessionView, func()) {
	ch := make(chan SessionView, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	snapshot := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Drop the stale frame so a slow client never blocks mutation.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func (s *Session) snapshotLocked() SessionView {
	view := SessionView{
		ID:       s.id,
		Name:     s.name,
		Topic:    s.topic,
		State:    s.state,
		Score:    s.score,
		Answered: len(s.answers),
		Total:    len(s.questions),
		Error:    s.failure,
	}
	if s.state == StateAwaitingAnswer {
		question := s.questions[s.current]
		options := make([]string, len(question.Options))
		copy(options, question.Options)
		view.Question = &QuestionView{
			Number:  s.current + 1,
			Text:    question.Text,
			Options: options,
		}
	}
	if len(s.answers) > 0 {
		last := s.answers[len(s.answers)-1]
		view.LastAnswer = &last
	}
	return view
}
