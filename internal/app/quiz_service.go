package app

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"

	"llm-quiz-service/internal/domain"
	"llm-quiz-service/internal/mcq"
)

// MaxQuestions bounds the requested question count, matching the input
// control's 1-20 range.
const MaxQuestions = 20

// DefaultQuestions is used when no count is supplied.
const DefaultQuestions = 5

// SessionRepository abstracts how live sessions are stored (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
}

// Generator produces context text and raw question text via the completion service.
type Generator interface {
	ExpandTopic(ctx context.Context, topic string) (string, error)
	GenerateQuestions(ctx context.Context, contextText string, n int) (string, error)
}

// Extractor converts an uploaded document into plain text.
type Extractor func(filename string, r io.Reader) (string, error)

// LeaderboardStore persists completed-session results.
type LeaderboardStore interface {
	Append(ctx context.Context, entry domain.LeaderboardEntry) error
	TopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
}

// QuizService contains the quiz use cases: start, answer, complete, rank.
type QuizService struct {
	sessions  SessionRepository
	generator Generator
	extract   Extractor
	store     LeaderboardStore
}

func NewQuizService(sessions SessionRepository, generator Generator, extract Extractor, store LeaderboardStore) *QuizService {
	return &QuizService{
		sessions:  sessions,
		generator: generator,
		extract:   extract,
		store:     store,
	}
}

// StartRequest carries the login-screen inputs.
type StartRequest struct {
	Name         string
	Email        string
	Topic        string
	Filename     string
	Document     io.Reader
	NumQuestions int
}

// StartQuiz validates the participant inputs, creates a session in
// StateGenerating, and runs content acquisition, question generation, and
// parsing asynchronously. The returned view shows the generating state;
// use Await, Get, or Subscribe to observe the transition.
func (s *QuizService) StartQuiz(ctx context.Context, req StartRequest) (SessionView, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" {
		return SessionView{}, domain.ErrNameRequired
	}
	if email == "" {
		return SessionView{}, domain.ErrEmailRequired
	}

	n := req.NumQuestions
	if n <= 0 {
		n = DefaultQuestions
	}
	if n > MaxQuestions {
		n = MaxQuestions
	}

	// The upload is buffered up front; the request body is gone by the
	// time the generation goroutine runs.
	var document []byte
	if req.Document != nil {
		data, err := io.ReadAll(req.Document)
		if err != nil {
			return SessionView{}, err
		}
		document = data
	}

	session := NewSession(uuid.NewString(), name, email, strings.TrimSpace(req.Topic))
	s.sessions.Put(session)

	go s.generate(session, req.Filename, document, n)

	return session.View(), nil
}

// generate runs the slow half of the start transition. Failures park the
// session in StateFailed with the typed inputs intact.
func (s *QuizService) generate(session *Session, filename string, document []byte, n int) {
	ctx := context.Background()

	contextText := ""
	if len(document) > 0 {
		text, err := s.extract(filename, bytes.NewReader(document))
		if err != nil {
			session.failGeneration(err)
			return
		}
		contextText = text
	} else if session.topic != "" {
		text, err := s.generator.ExpandTopic(ctx, session.topic)
		if err != nil {
			session.failGeneration(err)
			return
		}
		contextText = text
	}

	raw, err := s.generator.GenerateQuestions(ctx, contextText, n)
	if err != nil {
		session.failGeneration(err)
		return
	}

	// Zero parsed questions completes the session immediately with 0/0.
	if completed := session.finishGeneration(contextText, mcq.Parse(raw)); completed {
		s.persist(ctx, session)
	}
}

// Await blocks until the session's generation settles or ctx is done.
func (s *QuizService) Await(ctx context.Context, sessionID string) (SessionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}
	select {
	case <-session.Ready():
		return session.View(), nil
	case <-ctx.Done():
		return SessionView{}, ctx.Err()
	}
}

// Get returns the current snapshot of a session.
func (s *QuizService) Get(sessionID string) (SessionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}
	return session.View(), nil
}

// SubmitAnswer scores the chosen option against the current question,
// appends the answer record, and advances. Exhausting the question
// sequence completes the session and persists its leaderboard entry.
func (s *QuizService) SubmitAnswer(ctx context.Context, sessionID, option string) (domain.AnswerRecord, SessionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.AnswerRecord{}, SessionView{}, domain.ErrSessionNotFound
	}
	record, completed, err := session.submit(option)
	if err != nil {
		return domain.AnswerRecord{}, session.View(), err
	}
	if completed {
		s.persist(ctx, session)
	}
	return record, session.View(), nil
}

// CompleteQuiz ends the session early. Early termination and natural
// exhaustion are handled identically downstream.
func (s *QuizService) CompleteQuiz(ctx context.Context, sessionID string) (SessionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}
	entered, err := session.complete()
	if err != nil {
		return session.View(), err
	}
	if entered {
		s.persist(ctx, session)
	}
	return session.View(), nil
}

// Results returns the chronological answer records for export.
func (s *QuizService) Results(sessionID string) ([]domain.AnswerRecord, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Answers(), nil
}

// Leaderboard returns the top n completed runs by score.
func (s *QuizService) Leaderboard(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	return s.store.TopN(ctx, n)
}

// Subscribe returns a channel of session snapshots for the view layer.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(sessionID string) (<-chan SessionView, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Discard drops a session, quiz and all; resetting the view starts over.
func (s *QuizService) Discard(sessionID string) {
	s.sessions.Delete(sessionID)
}

// persist appends the leaderboard entry exactly once per session. A store
// failure is logged rather than returned: the participant still gets
// their final score view.
func (s *QuizService) persist(ctx context.Context, session *Session) {
	if !session.markSaved() {
		return
	}
	if err := s.store.Append(ctx, session.entry()); err != nil {
		log.Printf("leaderboard append failed for session %s: %v", session.ID(), err)
	}
}
