package http

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"llm-quiz-service/internal/app"
	"llm-quiz-service/internal/domain"
	"llm-quiz-service/internal/infra/memory"
)

const twoQuestionRaw = "Question: What is 2+2?\nA. 3\nB. 4\nC. 5\nD. 6\nAnswer: B\nExplanation: Basic math\n\n" +
	"Question: Largest planet?\nA. Mars\nB. Venus\nC. Jupiter\nD. Earth\nAnswer: C\nExplanation: By mass and volume"

func TestStartQuizRejectsMissingName(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.PostForm(server.URL+"/api/quiz/start", url.Values{
		"email": {"alice@example.com"},
		"topic": {"math"},
	})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestQuizFlowOverREST(t *testing.T) {
	server, _ := newTestServer(t)

	view := startQuiz(t, server.URL)
	view = awaitState(t, server.URL, view.ID, app.StateAwaitingAnswer)

	if view.Question == nil || len(view.Question.Options) != 4 {
		t.Fatalf("expected a 4-option question, got %+v", view.Question)
	}

	// Correct answer.
	answer := submitAnswer(t, server.URL, view.ID, "B. 4")
	if answer.Answer.Result != domain.ResultCorrect {
		t.Fatalf("expected Correct, got %s", answer.Answer.Result)
	}
	if answer.Session.Score != 1 {
		t.Fatalf("expected score 1, got %d", answer.Session.Score)
	}

	// Wrong answer finishes the quiz.
	answer = submitAnswer(t, server.URL, view.ID, "A. Mars")
	if answer.Answer.Result != domain.ResultIncorrect {
		t.Fatalf("expected Incorrect, got %s", answer.Answer.Result)
	}
	if answer.Session.State != app.StateComplete {
		t.Fatalf("expected complete, got %s", answer.Session.State)
	}

	// Leaderboard shows the persisted run.
	resp, err := http.Get(server.URL + "/api/leaderboard")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	defer resp.Body.Close()
	var board []domain.LeaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(board) != 1 || board[0].Name != "Alice" || board[0].Score != 1 || board[0].Total != 2 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}
}

func TestCompleteQuizEarlyOverREST(t *testing.T) {
	server, _ := newTestServer(t)

	view := startQuiz(t, server.URL)
	awaitState(t, server.URL, view.ID, app.StateAwaitingAnswer)

	resp, err := http.Post(server.URL+"/api/quiz/"+view.ID+"/complete", "application/json", nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out completeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Session.State != app.StateComplete {
		t.Fatalf("expected complete, got %s", out.Session.State)
	}
	if len(out.Leaderboard) != 1 || out.Leaderboard[0].Score != 0 {
		t.Fatalf("expected persisted 0-score entry, got %+v", out.Leaderboard)
	}
}

func TestExportResultsCSV(t *testing.T) {
	server, _ := newTestServer(t)

	view := startQuiz(t, server.URL)
	awaitState(t, server.URL, view.ID, app.StateAwaitingAnswer)
	submitAnswer(t, server.URL, view.ID, "B. 4")

	resp, err := http.Get(server.URL + "/api/quiz/" + view.ID + "/results.csv")
	if err != nil {
		t.Fatalf("get csv: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}

	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}
	if rows[0][0] != "Question" || rows[0][4] != "Result" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][1] != "B. 4" || rows[1][4] != "Correct" {
		t.Fatalf("unexpected result row %v", rows[1])
	}
}

func TestExportResultsXLSX(t *testing.T) {
	server, _ := newTestServer(t)

	view := startQuiz(t, server.URL)
	awaitState(t, server.URL, view.ID, app.StateAwaitingAnswer)
	submitAnswer(t, server.URL, view.ID, "B. 4")

	resp, err := http.Get(server.URL + "/api/quiz/" + view.ID + "/results.xlsx")
	if err != nil {
		t.Fatalf("get xlsx: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestAnswerUnknownSession(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/quiz/nope/answer", "application/json", strings.NewReader(`{"option":"A. x"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDiscardSession(t *testing.T) {
	server, _ := newTestServer(t)

	view := startQuiz(t, server.URL)

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/quiz/"+view.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	getResp, err := http.Get(server.URL + "/api/quiz/" + view.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after discard, got %d", getResp.StatusCode)
	}
}

func startQuiz(t *testing.T, baseURL string) app.SessionView {
	t.Helper()
	resp, err := http.PostForm(baseURL+"/api/quiz/start", url.Values{
		"name":  {"Alice"},
		"email": {"alice@example.com"},
		"topic": {"math"},
		"count": {"2"},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var view app.SessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if view.ID == "" {
		t.Fatalf("expected session id")
	}
	return view
}

func awaitState(t *testing.T, baseURL, sessionID string, want app.State) app.SessionView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/api/quiz/" + sessionID)
		if err != nil {
			t.Fatalf("get session: %v", err)
		}
		var view app.SessionView
		err = json.NewDecoder(resp.Body).Decode(&view)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode session: %v", err)
		}
		if view.State == want {
			return view
		}
		if view.State == app.StateFailed {
			t.Fatalf("generation failed: %s", view.Error)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session never reached %s", want)
	return app.SessionView{}
}

func submitAnswer(t *testing.T, baseURL, sessionID, option string) answerResponse {
	t.Helper()
	body := fmt.Sprintf(`{"option":%q}`, option)
	resp, err := http.Post(baseURL+"/api/quiz/"+sessionID+"/answer", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out answerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode answer response: %v", err)
	}
	return out
}

func newTestServer(t *testing.T) (*httptest.Server, *app.QuizService) {
	t.Helper()
	service := app.NewQuizService(
		memory.NewSessionStore(),
		&stubGenerator{raw: twoQuestionRaw},
		func(string, io.Reader) (string, error) { return "", nil },
		&stubStore{},
	)
	handler := NewHandler(service, DefaultTopN)
	ws := NewWSHandler(service, 0, DefaultTopN)
	server := httptest.NewServer(NewRouter(handler, ws))
	t.Cleanup(server.Close)
	return server, service
}

type stubGenerator struct {
	raw string
}

func (g *stubGenerator) ExpandTopic(_ context.Context, topic string) (string, error) {
	return "a passage about " + topic, nil
}

func (g *stubGenerator) GenerateQuestions(_ context.Context, _ string, _ int) (string, error) {
	return g.raw, nil
}

type stubStore struct {
	mu   sync.Mutex
	rows []domain.LeaderboardEntry
}

func (s *stubStore) Append(_ context.Context, entry domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, entry)
	return nil
}

func (s *stubStore) TopN(_ context.Context, n int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.rows) {
		n = len(s.rows)
	}
	out := make([]domain.LeaderboardEntry, n)
	copy(out, s.rows[:n])
	return out, nil
}
