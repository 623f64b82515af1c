package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/kevinaaaquil/bookdash/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventsHandler streams hub events to a websocket client.
type EventsHandler struct {
	Hub *service.Hub
}

func (h *EventsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("events: upgrade: %v", err)
		return
	}
	h.Hub.Add(ws)
	defer h.Hub.Remove(ws)

	// Clients only listen; the read loop notices when they go away.
	ws.SetReadLimit(512)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
