package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/SmitUplenchwar2687/Tempo/internal/journal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev tool.
	},
}

// subscriberBuffer is how many journal events a subscriber may fall
// behind before it is dropped.
const subscriberBuffer = 64

// subscriber is one websocket connection with its outbound queue. A
// dedicated write pump per connection keeps a slow reader from
// stalling Broadcast for everyone else.
type subscriber struct {
	conn *websocket.Conn
	out  chan []byte
}

// Hub fans journal events out to websocket subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// HandleWebSocket upgrades the connection and subscribes it to the
// event feed until the peer goes away.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	sub := &subscriber{conn: conn, out: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go h.writePump(sub)
	go h.readPump(sub)
}

// writePump drains the subscriber's queue onto the wire. It exits when
// the queue is closed by remove or when a write fails.
func (h *Hub) writePump(sub *subscriber) {
	for msg := range sub.out {
		if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(sub)
			// Keep draining so the closed queue does not strand the
			// broadcaster's already-queued messages.
		}
	}
}

// readPump discards inbound frames; its only job is to notice the peer
// hanging up.
func (h *Hub) readPump(sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			h.remove(sub)
			return
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.out)
		sub.conn.Close()
	}
}

// Broadcast queues a journal event for every subscriber. A subscriber
// whose queue is full is dropped rather than waited on.
func (h *Hub) Broadcast(event journal.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.out <- data:
		default:
			log.Printf("websocket subscriber too slow, dropping")
			delete(h.subs, sub)
			close(sub.out)
			sub.conn.Close()
		}
	}
}

// ClientCount returns the number of live subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
