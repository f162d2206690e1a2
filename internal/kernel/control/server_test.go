package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scarab-sim/scarab/internal/kernel/event"
	"github.com/scarab-sim/scarab/internal/observability/log"
)

func TestClientReceivesBroadcastEvents(t *testing.T) {
	logger := log.New(log.LevelDebug)
	s := New(DefaultConfig(), logger)

	ts := httptest.NewServer(http.HandlerFunc(s.handleUpgrade))
	defer ts.Close()

	u := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// give handleUpgrade time to register the client before broadcasting
	time.Sleep(50 * time.Millisecond)

	payload, _ := json.Marshal(map[string]any{"event_name": "scarab.time.updated", "sim_time": 1})
	s.Observe(event.Event{Name: "scarab.time.updated"}, payload)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["event_name"] != "scarab.time.updated" {
		t.Fatalf("unexpected frame: %+v", got)
	}
}

func TestCommandFrameForwardedToCommandsChannel(t *testing.T) {
	logger := log.New(log.LevelDebug)
	s := New(DefaultConfig(), logger)

	ts := httptest.NewServer(http.HandlerFunc(s.handleUpgrade))
	defer ts.Close()

	u := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(commandFrame{Action: "pause"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case action := <-s.Commands():
		if action != ActionPause {
			t.Fatalf("expected pause, got %q", action)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for command")
	}
}

func TestUnrecognizedActionIsIgnored(t *testing.T) {
	logger := log.New(log.LevelDebug)
	s := New(DefaultConfig(), logger)

	ts := httptest.NewServer(http.HandlerFunc(s.handleUpgrade))
	defer ts.Close()

	u := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(commandFrame{Action: "teleport"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case action := <-s.Commands():
		t.Fatalf("expected no command, got %q", action)
	case <-time.After(200 * time.Millisecond):
	}
}
