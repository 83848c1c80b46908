package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quizlink-service/internal/app"
	"quizlink-service/internal/domain"
)

// WSHandler serves a live attempt over one websocket: the taker submits
// answers and completes without re-authenticating per call, and the server
// pushes the expiry transition the moment the deadline passes instead of
// waiting for the next request.
type WSHandler struct {
	engine   *app.SessionEngine
	verifier TokenVerifier
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.SessionEngine, verifier TokenVerifier) *WSHandler {
	return &WSHandler{
		engine:   engine,
		verifier: verifier,
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

type answerPayload struct {
	QuestionID string `json:"questionId"`
	ChoiceID   string `json:"choiceId"`
}

type answerResultPayload struct {
	QuestionID string              `json:"questionId"`
	Accepted   bool                `json:"accepted"`
	State      domain.SessionState `json:"state"`
}

type finishedPayload struct {
	Score scoreView           `json:"score"`
	State domain.SessionState `json:"state"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type wsErrorPayload struct {
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
}

// ServeWS upgrades the request and runs the attempt loop. Browsers cannot set
// headers on websocket dials, so the access token rides in the query string.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	token := r.URL.Query().Get("token")
	if sessionID == "" || token == "" {
		http.Error(w, "missing session or token", http.StatusBadRequest)
		return
	}
	claims, err := h.verifier.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	takerID := claims.UserID()

	session, err := h.engine.Get(r.Context(), takerID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if session.TakerID != takerID {
		// Quiz owners may read a session over REST but not drive it.
		writeError(w, domain.ErrForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	deadlineDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// Push the expiry transition proactively at the deadline. The engine call
	// is the same lazy check every mutating operation performs, so the scoring
	// outcome is identical with or without this timer.
	go func() {
		defer close(deadlineDone)
		if session.Finished() {
			return
		}
		wait := time.Until(session.Deadline())
		if wait < 0 {
			wait = 0
		}
		select {
		case <-time.After(wait):
		case <-closeSignals:
			return
		}
		transitioned, err := h.engine.ExpireOverdue(r.Context(), sessionID)
		if err != nil || !transitioned {
			return
		}
		expired, err := h.engine.Get(r.Context(), takerID, sessionID)
		if err != nil {
			return
		}
		select {
		case send <- outboundMessage[any]{Type: "expired", Payload: finishedPayload{
			Score: *newScoreView(expired.Score),
			State: expired.State,
		}}:
		case <-closeSignals:
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: newSessionView(session)}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: wsErrorPayload{Kind: domain.KindValidation, Message: "invalid answer payload"}}
				continue
			}
			updated, err := h.engine.SubmitAnswer(r.Context(), takerID, sessionID, payload.QuestionID, payload.ChoiceID)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: wsErrorPayload{Kind: domain.KindOf(err), Message: err.Error()}}
				if errIsKind(err, domain.KindExpired) && updated != nil && updated.Score != nil {
					send <- outboundMessage[any]{Type: "expired", Payload: finishedPayload{
						Score: *newScoreView(updated.Score),
						State: updated.State,
					}}
				}
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: answerResultPayload{
				QuestionID: payload.QuestionID,
				Accepted:   true,
				State:      updated.State,
			}}
		case "complete":
			updated, err := h.engine.Complete(r.Context(), takerID, sessionID)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: wsErrorPayload{Kind: domain.KindOf(err), Message: err.Error()}}
				continue
			}
			frame := "completed"
			if updated.State == domain.SessionExpired {
				frame = "expired"
			}
			send <- outboundMessage[any]{Type: frame, Payload: finishedPayload{
				Score: *newScoreView(updated.Score),
				State: updated.State,
			}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: wsErrorPayload{Kind: domain.KindValidation, Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-deadlineDone
	close(send)
	<-writerDone
}
