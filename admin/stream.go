package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/justconveyor/logger"
)

const (
	streamPath     = "/conveyor/stream"
	eventSnapshot  = "snapshot"
	clientBuffer   = 16
	keepAliveEvery = 30 * time.Second
)

// hub fans snapshot events out to the connected stream clients. Slow
// clients miss events rather than stall the publisher.
type hub struct {
	mu      sync.Mutex
	clients map[string]chan []byte
	closed  bool
}

func newHub() *hub {
	return &hub{clients: make(map[string]chan []byte)}
}

func (h *hub) subscribe(id string) (<-chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan []byte, clientBuffer)
	h.clients[id] = ch
	return ch, true
}

func (h *hub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(ch)
	}
}

// broadcast returns the number of clients that received data.
func (h *hub) broadcast(data []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for _, ch := range h.clients {
		select {
		case ch <- data:
			sent++
		default:
		}
	}
	return sent
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// close disconnects every client and refuses new ones.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.clients {
		delete(h.clients, id)
		close(ch)
	}
}

// publish broadcasts a snapshot every interval until stop is closed.
func (s *Server) publish(interval time.Duration, stop <-chan struct{}) {
	defer s.publishing.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if s.hub.count() == 0 {
				continue
			}
			data, err := json.Marshal(s.source.Snapshot())
			if err != nil {
				s.log.Error("Snapshot encoding failed", logger.Fields(logger.FieldError, err))
				continue
			}
			s.hub.broadcast(data)
		}
	}
}

func (s *Server) stream(c *gin.Context) {
	w := c.Writer
	id := c.GetString("request_id")

	events, ok := s.hub.subscribe(id)
	if !ok {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	defer s.hub.unsubscribe(id)

	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.log.Debug("Could not disable write deadline", logger.Fields(logger.FieldError, err))
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	first, err := json.Marshal(s.source.Snapshot())
	if err != nil {
		s.log.Error("Snapshot encoding failed", logger.Fields(logger.FieldError, err))
		return
	}
	writeEvent(w, eventSnapshot, first)

	keepAlive := time.NewTicker(keepAliveEvery)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, eventSnapshot, data)
		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			w.Flush()
		}
	}
}

func writeEvent(w gin.ResponseWriter, event string, data []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	w.Flush()
}
