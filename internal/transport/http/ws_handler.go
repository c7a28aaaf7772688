package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"studyquiz-service/internal/app"
	"studyquiz-service/internal/domain"
)

// WSHandler runs one attempt session per connection: start or resume, answer,
// complete and status requests arrive as messages on the socket.
type WSHandler struct {
	service  *app.AttemptService
	auth     *Authenticator
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService, auth *Authenticator) *WSHandler {
	return &WSHandler{
		service: service,
		auth:    auth,
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

type resumePayload struct {
	AttemptID string `json:"attemptId"`
}

type answerPayload struct {
	QuestionID string   `json:"questionId"`
	OptionIDs  []string `json:"optionIds"`
	Text       string   `json:"text"`
}

type answerSaved struct {
	QuestionID string `json:"questionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// errorMessage classifies err like writeError does. Unclassified errors are
// logged and reported without detail.
func errorMessage(err error) outboundMessage[any] {
	kind := domain.KindOf(err)
	message := err.Error()
	if kind == domain.KindInternal {
		log.Printf("ws internal error: %v", err)
		message = "internal error"
	}
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Kind: string(kind), Message: message}}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the attempt use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	var identity Identity
	if token := r.URL.Query().Get("token"); token != "" {
		parsed, err := h.auth.Parse(token)
		if err != nil {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		identity = parsed
	}
	learnerID := identity.LearnerID

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	ctx := r.Context()
	snapshot, err := h.service.GetStatus(ctx, quizID, learnerID)
	if err != nil {
		send <- errorMessage(err)
		close(send)
		<-writerDone
		return
	}
	send <- outboundMessage[any]{Type: "status", Payload: snapshot}

	// the attempt this connection is working on
	attemptID := snapshot.OpenAttemptID

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			started, err := h.service.StartAttempt(ctx, quizID, learnerID)
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			attemptID = started.AttemptID
			send <- outboundMessage[any]{Type: "started", Payload: started}
		case "resume":
			var payload resumePayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Kind: "BAD_REQUEST", Message: "invalid resume payload"}}
					continue
				}
			}
			if payload.AttemptID == "" {
				payload.AttemptID = attemptID
			}
			resumed, err := h.service.ResumeAttempt(ctx, payload.AttemptID, learnerID)
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			attemptID = resumed.AttemptID
			send <- outboundMessage[any]{Type: "started", Payload: resumed}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Kind: "BAD_REQUEST", Message: "invalid answer payload"}}
				continue
			}
			err := h.service.SubmitAnswer(ctx, attemptID, learnerID, domain.Answer{
				QuestionID: payload.QuestionID,
				OptionIDs:  payload.OptionIDs,
				Text:       payload.Text,
			})
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "answerSaved", Payload: answerSaved{QuestionID: payload.QuestionID}}
		case "complete":
			result, err := h.service.CompleteAttempt(ctx, attemptID, learnerID)
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "completed", Payload: result}
		case "status":
			snapshot, err := h.service.GetStatus(ctx, quizID, learnerID)
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "status", Payload: snapshot}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Kind: "BAD_REQUEST", Message: "unsupported message type"}}
		}
	}

	close(send)
	<-writerDone
}
