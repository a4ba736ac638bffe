// Package http exposes the quiz flow over REST plus a websocket session
// feed: login/start, one-question-at-a-time answering, completion with
// leaderboard, and result export.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"llm-quiz-service/internal/app"
	"llm-quiz-service/internal/domain"
)

// DefaultTopN is the leaderboard size shown on the results screen.
const DefaultTopN = 10

type Handler struct {
	service *app.QuizService
	topN    int
}

func NewHandler(service *app.QuizService, topN int) *Handler {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Handler{service: service, topN: topN}
}

// NewRouter wires the REST routes and the websocket endpoint.
func NewRouter(h *Handler, ws *WSHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/quiz/start", h.StartQuiz).Methods(http.MethodPost)
	api.HandleFunc("/quiz/{sessionID}", h.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/quiz/{sessionID}", h.DiscardSession).Methods(http.MethodDelete)
	api.HandleFunc("/quiz/{sessionID}/answer", h.SubmitAnswer).Methods(http.MethodPost)
	api.HandleFunc("/quiz/{sessionID}/complete", h.CompleteQuiz).Methods(http.MethodPost)
	api.HandleFunc("/quiz/{sessionID}/results.csv", h.ExportResultsCSV).Methods(http.MethodGet)
	api.HandleFunc("/quiz/{sessionID}/results.xlsx", h.ExportResultsXLSX).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", h.GetLeaderboard).Methods(http.MethodGet)

	r.HandleFunc("/ws", ws.ServeWS)
	return r
}

// StartQuiz handles the login screen: name, email, optional topic and
// document, question count. Responds 202 with the session in its
// generating state; clients poll GET or attach to /ws for the transition.
func (h *Handler) StartQuiz(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	count, _ := strconv.Atoi(r.FormValue("count"))
	req := app.StartRequest{
		Name:         r.FormValue("name"),
		Email:        r.FormValue("email"),
		Topic:        r.FormValue("topic"),
		NumQuestions: count,
	}
	if file, header, err := r.FormFile("document"); err == nil {
		defer file.Close()
		req.Document = file
		req.Filename = header.Filename
	}

	view, err := h.service.StartQuiz(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(mux.Vars(r)["sessionID"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) DiscardSession(w http.ResponseWriter, r *http.Request) {
	h.service.Discard(mux.Vars(r)["sessionID"])
	w.WriteHeader(http.StatusNoContent)
}

type answerRequest struct {
	Option string `json:"option"`
}

type answerResponse struct {
	Answer  domain.AnswerRecord `json:"answer"`
	Session app.SessionView     `json:"session"`
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Option == "" {
		writeError(w, http.StatusBadRequest, "option is required")
		return
	}

	record, view, err := h.service.SubmitAnswer(r.Context(), mux.Vars(r)["sessionID"], req.Option)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Answer: record, Session: view})
}

type completeResponse struct {
	Session     app.SessionView           `json:"session"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

func (h *Handler) CompleteQuiz(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.CompleteQuiz(r.Context(), mux.Vars(r)["sessionID"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	board, err := h.service.Leaderboard(r.Context(), h.topN)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, completeResponse{Session: view, Leaderboard: board})
}

func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := h.topN
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	board, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNameRequired), errors.Is(err, domain.ErrEmailRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrQuizNotReady), errors.Is(err, domain.ErrQuizComplete):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrGenerationFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
