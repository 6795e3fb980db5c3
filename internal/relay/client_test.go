package relay_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"scribe/internal/relay"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSubscribeDeliversEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		payload, _ := json.Marshal(relay.Event{
			ID:        "evt-1",
			Kind:      "note",
			Content:   "check this out https://example.com/clip.mp3",
			CreatedAt: time.Now().UTC(),
		})
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := relay.New(wsURL(server), time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan relay.Event, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Subscribe(ctx, func(event relay.Event) {
			select {
			case received <- event:
			default:
			}
		})
	}()

	select {
	case event := <-received:
		if event.ID != "evt-1" {
			t.Fatalf("unexpected event id %q", event.ID)
		}
		if !strings.Contains(event.Content, "clip.mp3") {
			t.Fatalf("unexpected content %q", event.Content)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbound event")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Subscribe did not return after cancellation")
	}
}

func TestSubscribeDropsMalformedFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"note","content":"missing id"}`))
		good, _ := json.Marshal(relay.Event{ID: "evt-good", Kind: "note", Content: "ok"})
		_ = conn.WriteMessage(websocket.TextMessage, good)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := relay.New(wsURL(server), time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan relay.Event, 3)
	go func() {
		_ = client.Subscribe(ctx, func(event relay.Event) {
			received <- event
		})
	}()

	select {
	case event := <-received:
		if event.ID != "evt-good" {
			t.Fatalf("expected only the well-formed event, got %q", event.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the well-formed event")
	}
}

func TestPublishRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverGot := make(chan relay.Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var event relay.Event
			if err := json.Unmarshal(payload, &event); err == nil {
				serverGot <- event
			}
		}
	}))
	defer server.Close()

	client := relay.New(wsURL(server), time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = client.Subscribe(ctx, func(relay.Event) {})
	}()

	// Publish needs a live connection; wait for Subscribe to establish one.
	deadline := time.Now().Add(5 * time.Second)
	event := relay.Event{
		ID:      "result-1",
		Kind:    "transcription",
		Content: "hello world",
		Refs: []relay.Ref{
			{Type: relay.RefEvent, Value: "evt-1"},
			{Type: relay.RefProcessor, Value: "ort"},
		},
		CreatedAt: time.Now().UTC(),
	}
	var err error
	for time.Now().Before(deadline) {
		if err = client.Publish(ctx, event); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Publish never succeeded: %v", err)
	}

	select {
	case got := <-serverGot:
		if got.ID != "result-1" {
			t.Fatalf("unexpected published id %q", got.ID)
		}
		if values := got.RefValues(relay.RefEvent); len(values) != 1 || values[0] != "evt-1" {
			t.Fatalf("unexpected event refs %v", values)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never received the published event")
	}
}

func TestPublishWithoutConnectionFails(t *testing.T) {
	client := relay.New("ws://127.0.0.1:1/relay", time.Second, nil)
	if err := client.Publish(context.Background(), relay.Event{ID: "x"}); err == nil {
		t.Fatal("expected error when no connection is established")
	}
}
