package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"llm-quiz-service/internal/app"
)

// WSHandler streams session snapshots to the view layer so it can render
// the generating spinner, the current question, answer feedback, and the
// final leaderboard without polling.
type WSHandler struct {
	service     *app.QuizService
	answerDelay time.Duration
	topN        int
	upgrader    websocket.Upgrader
}

// NewWSHandler builds the handler. answerDelay is the pacing pause between
// answer feedback and the next question frame (~3s in production, zero in
// tests); it lets the participant read the feedback before the next
// question renders.
func NewWSHandler(service *app.QuizService, answerDelay time.Duration, topN int) *WSHandler {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &WSHandler{
		service:     service,
		answerDelay: answerDelay,
		topN:        topN,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wsAnswerPayload struct {
	Option string `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and attaches it to an existing session's
// snapshot feed. Inbound messages drive the answer/complete transitions.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		lastAnswered := -1
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				// Pacing: hold the next-question frame back so the
				// participant sees feedback on the previous answer first.
				if h.answerDelay > 0 && lastAnswered >= 0 && update.Answered > lastAnswered && update.State == app.StateAwaitingAnswer {
					time.Sleep(h.answerDelay)
				}
				lastAnswered = update.Answered
				select {
				case send <- outboundMessage[any]{Type: "session", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload wsAnswerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Option == "" {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			record, view, err := h.service.SubmitAnswer(r.Context(), sessionID, payload.Option)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: record}
			if view.State == app.StateComplete {
				h.sendLeaderboard(r, send)
			}
		case "complete":
			view, err := h.service.CompleteQuiz(r.Context(), sessionID)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			if view.State == app.StateComplete {
				h.sendLeaderboard(r, send)
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) sendLeaderboard(r *http.Request, send chan<- outboundMessage[any]) {
	board, err := h.service.Leaderboard(r.Context(), h.topN)
	if err != nil {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	send <- outboundMessage[any]{Type: "leaderboard", Payload: board}
}
