//go:build integration
// +build integration

package integration

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	wsmsg "github.com/gokatarajesh/shakai-quiz/pkg/http/ws"
)

func TestWebSocketSession(t *testing.T) {
	baseWS := envOrDefault("INTEGRATION_WS_URL", "ws://localhost:8080/ws/session")
	dataset := envOrDefault("INTEGRATION_DATASET", "歴史")

	conn, _, err := websocket.DefaultDialer.Dial(baseWS, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	sendMessage(t, conn, wsmsg.TypePing, nil)
	if msg := readMessage(t, conn, 5*time.Second); msg.Type != wsmsg.TypePong {
		t.Fatalf("expected pong, got %s", msg.Type)
	}

	sendMessage(t, conn, wsmsg.TypeSelectDataset, wsmsg.SelectDatasetPayload{Dataset: dataset})
	if msg := readMessage(t, conn, 5*time.Second); msg.Type != wsmsg.TypeView {
		t.Fatalf("expected view, got %s: %s", msg.Type, msg.Payload)
	}

	sendMessage(t, conn, wsmsg.TypeStart, wsmsg.StartPayload{Count: 1})
	msg := readMessage(t, conn, 5*time.Second)
	if msg.Type != wsmsg.TypeView {
		t.Fatalf("expected view, got %s: %s", msg.Type, msg.Payload)
	}
	var view sessionView
	if err := json.Unmarshal(msg.Payload, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Phase != "quiz" {
		t.Fatalf("expected quiz phase, got %s", view.Phase)
	}
}

func sendMessage(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()

	msg, err := wsmsg.NewMessage(msgType, "", payload)
	if err != nil {
		t.Fatalf("build %s message: %v", msgType, err)
	}
	conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("failed to send %s: %v", msgType, err)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) wsmsg.Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(timeout))
	var msg wsmsg.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}
