package signal

import (
	"net/http"
	"sync"
	"time"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const subscriberBuffer = 16

// subscriber owns its connection's write side: a single writer goroutine
// drains send, so no two goroutines ever write the conn concurrently.
type subscriber struct {
	conn *websocket.Conn
	send chan ports.AlertEvent
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// AlertHub fans triggered alerts out to connected WebSocket subscribers.
// It implements ports.AlertPublisher. Publish never blocks: each subscriber
// has a buffered queue and a dedicated writer goroutine; a subscriber that
// falls behind or fails a write is dropped.
type AlertHub struct {
	mu      sync.Mutex
	clients map[*subscriber]struct{}

	writeTimeout time.Duration
	logger       *zap.SugaredLogger
}

func NewAlertHub(logger *zap.SugaredLogger) *AlertHub {
	return &AlertHub{
		clients:      make(map[*subscriber]struct{}),
		writeTimeout: 10 * time.Second,
		logger:       logger,
	}
}

// HandleWebSocket upgrades the connection and registers the subscriber. The
// read loop exists only to notice disconnects; subscribers never send data.
func (h *AlertHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan ports.AlertEvent, subscriberBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[sub] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Infow("alert subscriber connected", "subscribers", count)

	go h.writeLoop(sub)
	go func() {
		defer h.remove(sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// writeLoop is the only writer for its connection.
func (h *AlertHub) writeLoop(sub *subscriber) {
	for {
		select {
		case event := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := sub.conn.WriteJSON(event); err != nil {
				h.logger.Warnw("dropping alert subscriber", "error", err)
				h.remove(sub)
				return
			}
		case <-sub.done:
			return
		}
	}
}

// Publish queues the alert event for every subscriber without blocking.
// A subscriber whose queue is full is dropped rather than stalling a tick.
func (h *AlertHub) Publish(event ports.AlertEvent) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.clients))
	for sub := range h.clients {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.send <- event:
		case <-sub.done:
		default:
			h.logger.Warnw("alert subscriber too slow, dropping")
			h.remove(sub)
		}
	}
}

// SubscriberCount reports how many clients are connected.
func (h *AlertHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all subscribers.
func (h *AlertHub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.clients))
	for sub := range h.clients {
		subs = append(subs, sub)
		delete(h.clients, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

func (h *AlertHub) remove(sub *subscriber) {
	h.mu.Lock()
	_, ok := h.clients[sub]
	if ok {
		delete(h.clients, sub)
	}
	h.mu.Unlock()

	sub.close()
}
