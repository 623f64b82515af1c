package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newHubServer registers every upgraded connection with hub and keeps it open
// until the peer goes away.
func newHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Add(ws)
		defer hub.Remove(ws)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("want %d clients, have %d", n, hub.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubBroadcastDoesNotWaitOnStalledClient(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub)

	// The client never reads, so the server's socket buffers fill up.
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	waitForClients(t, hub, 1)

	payload := strings.Repeat("x", 64<<10)
	start := time.Now()
	for i := 0; i < 400; i++ {
		hub.BooksInvalidated(payload)
	}
	if elapsed := time.Since(start); elapsed >= writeWait/2 {
		t.Fatalf("broadcasts blocked on a stalled client for %v", elapsed)
	}
	waitForClients(t, hub, 0)
}

func TestHubDeliverKeepsOrderPerClient(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	waitForClients(t, hub, 1)

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		hub.BooksInvalidated(id)
	}
	hub.Deliver(Notification{ID: "n1", Variant: VariantSuccess, Message: "Book added successfully!"})

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, id := range ids {
		var e Event
		if err := ws.ReadJSON(&e); err != nil {
			t.Fatalf("read: %v", err)
		}
		if e.Type != EventBooksInvalidated || e.ID != id {
			t.Fatalf("want invalidation %s, got %+v", id, e)
		}
	}
	var last Event
	if err := ws.ReadJSON(&last); err != nil {
		t.Fatalf("read: %v", err)
	}
	if last.Type != EventNotification || last.Notification == nil || last.Notification.ID != "n1" {
		t.Fatalf("last event %+v", last)
	}
}
