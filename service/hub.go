package service

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	EventNotification     = "notification"
	EventBooksInvalidated = "books.invalidated"
)

// Event is one message pushed to dashboard clients.
type Event struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification,omitempty"`
	ID           string        `json:"id,omitempty"`
	At           time.Time     `json:"at"`
}

const (
	sendBuffer = 16
	writeWait  = 2 * time.Second
)

// Hub fans events out to connected websocket clients. Each client has its own
// queue drained by a writer goroutine, so Broadcast never waits on a socket. A
// client whose queue is full is dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*client
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client)}
}

func (h *Hub) Add(ws *websocket.Conn) {
	c := &client{conn: ws, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[ws] = c
	h.mu.Unlock()
	go h.write(c)
}

func (h *Hub) Remove(ws *websocket.Conn) {
	h.mu.Lock()
	h.drop(ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// drop unregisters ws and stops its writer. h.mu must be held.
func (h *Hub) drop(ws *websocket.Conn) {
	if c, ok := h.clients[ws]; ok {
		delete(h.clients, ws)
		close(c.send)
	}
}

// write sends queued messages in order until the queue is closed or a write
// fails.
func (h *Hub) write(c *client) {
	for b := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			h.Remove(c.conn)
			return
		}
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		log.Printf("hub: encode %s: %v", e.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ws, c := range h.clients {
		select {
		case c.send <- b:
		default:
			log.Printf("hub: dropping slow client %s", ws.RemoteAddr())
			h.drop(ws)
			_ = ws.Close()
		}
	}
}

// Deliver implements Sink.
func (h *Hub) Deliver(n Notification) {
	h.Broadcast(Event{Type: EventNotification, Notification: &n})
}

// BooksInvalidated tells clients the collection changed; id is the record the
// mutation touched.
func (h *Hub) BooksInvalidated(id string) {
	h.Broadcast(Event{Type: EventBooksInvalidated, ID: id})
}
