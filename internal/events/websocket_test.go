package events

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestFeedStreamsPublishedEvents(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewFeedHandler(hub, "", true))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(srv.URL, "http", "ws", 1)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial activity feed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Wait for the handler goroutine to register its subscription.
	for deadline := time.Now().Add(2 * time.Second); hub.Subscribers() == 0; {
		if time.Now().After(deadline) {
			t.Fatal("feed never subscribed to the hub")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(Event{Type: TypeComplete, User: "Test User", Region: "Welcome"})

	_, payload, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read feed message: %v", err)
	}
	var got Event
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("decode feed message: %v", err)
	}
	if got.Type != TypeComplete || got.User != "Test User" || got.Region != "Welcome" {
		t.Errorf("event = %+v, want the published completion", got)
	}
	if got.Time.IsZero() {
		t.Error("event time not stamped")
	}
}
