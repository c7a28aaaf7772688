package http

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"studyquiz-service/internal/app"
	"studyquiz-service/internal/domain"
	"studyquiz-service/internal/infra/memory"
)

func TestWebSocketAttemptFlow(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	token := env.token(t, "u1", RoleStudent)
	u := "ws" + server.URL[len("http"):] + "/ws?quizId=quiz-1&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect the status snapshot first.
	_, payload := readNext(conn, t, "status")
	if payload["status"] != "NOT_JOINED" {
		t.Fatalf("expected NOT_JOINED, got %v", payload["status"])
	}

	send(t, conn, map[string]any{"type": "start"})
	_, payload = readNext(conn, t, "started")
	if payload["attemptId"] == "" {
		t.Fatalf("expected attempt id in started payload")
	}

	send(t, conn, map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"questionId": "q1",
			"optionIds":  []string{"o2"},
		},
	})
	readNext(conn, t, "answerSaved")

	send(t, conn, map[string]any{"type": "complete"})
	_, payload = readNext(conn, t, "completed")
	if payload["totalPoints"] != float64(1) || payload["percentage"] != float64(1) {
		t.Fatalf("expected full marks, got %v", payload)
	}

	send(t, conn, map[string]any{"type": "status"})
	_, payload = readNext(conn, t, "status")
	if payload["status"] != "SUBMITTED" || payload["canStart"] != false {
		t.Fatalf("expected terminal SUBMITTED, got %v", payload)
	}

	send(t, conn, map[string]any{"type": "start"})
	_, payload = readNext(conn, t, "error")
	if payload["kind"] != "ATTEMPT_LIMIT_EXCEEDED" {
		t.Fatalf("expected attempt limit error, got %v", payload)
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?quizId=quiz-1&token=nope"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %v: %v", msg["type"], err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%v)", expect, msg.Type, msg.Payload)
	}
	return msg.Type, msg.Payload
}

type brokenQuizRepository struct{}

func (brokenQuizRepository) GetQuiz(context.Context, string) (domain.QuizDefinition, error) {
	return domain.QuizDefinition{}, errors.New("dial tcp 10.0.0.7:5432: connection refused")
}

func TestWebSocketMasksInternalErrors(t *testing.T) {
	quizzes := brokenQuizRepository{}
	ledger := app.NewLedger(memory.NewAttemptStore(), memory.NewAttemptStore(), quizzes)
	auth := NewAuthenticator("test-secret")
	server := httptest.NewServer(NewRouter(Services{
		Attempts:   app.NewAttemptService(ledger, quizzes),
		Authoring:  app.NewAuthoringService(memory.NewStaticQuizLoader(nil), nil),
		Statistics: app.NewStatistics(ledger, quizzes),
	}, auth))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?quizId=quiz-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, payload := readNext(conn, t, "error")
	if payload["kind"] != "INTERNAL" || payload["message"] != "internal error" {
		t.Fatalf("expected masked internal error, got %v", payload)
	}
}
