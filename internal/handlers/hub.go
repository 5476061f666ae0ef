package handlers

import (
	"errors"
	"sync"
	"time"

	"selfie-mailer/internal/models"
	"selfie-mailer/internal/utils"
)

const (
	// Time allowed to write one message to the peer
	writeWait = 10 * time.Second
	// Events queued per connection before new ones are dropped
	sendBuffer = 16
)

var errSlowConsumer = errors.New("status queue full, event dropped")

type deadlineWriter interface {
	SetWriteDeadline(t time.Time) error
}

// hubConn owns the only goroutine that writes to its socket
type hubConn struct {
	conn utils.JSONWriter
	send chan interface{}
	done chan struct{}
}

func (hc *hubConn) writePump() {
	defer close(hc.done)
	for payload := range hc.send {
		if d, ok := hc.conn.(deadlineWriter); ok {
			_ = d.SetWriteDeadline(time.Now().Add(writeWait))
		}
		if err := utils.SendJSON(hc.conn, payload); err != nil {
			// the read loop notices the broken socket and unregisters it
			utils.LogError(err, "StatusWrite")
		}
	}
}

// StatusHub tracks open status sockets per user email and pushes capture
// events to them. It implements services.Notifier. Notify never blocks on a
// socket: events are queued and written by a per-connection pump.
type StatusHub struct {
	// email -> connectionID -> conn
	conns map[string]map[string]*hubConn
	mu    sync.Mutex
}

func NewStatusHub() *StatusHub {
	return &StatusHub{conns: make(map[string]map[string]*hubConn)}
}

func (h *StatusHub) Register(email, connID string, conn utils.JSONWriter) {
	hc := &hubConn{conn: conn, send: make(chan interface{}, sendBuffer), done: make(chan struct{})}
	go hc.writePump()

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[email]; !ok {
		h.conns[email] = make(map[string]*hubConn)
	}
	if old, ok := h.conns[email][connID]; ok {
		close(old.send)
	}
	h.conns[email][connID] = hc
}

// Unregister stops queuing for the connection and waits until its pump has
// flushed, so the socket can be closed afterwards.
func (h *StatusHub) Unregister(email, connID string) {
	h.mu.Lock()
	var hc *hubConn
	if conns, ok := h.conns[email]; ok {
		if hc = conns[connID]; hc != nil {
			close(hc.send)
			delete(conns, connID)
		}
		if len(conns) == 0 {
			delete(h.conns, email)
		}
	}
	h.mu.Unlock()

	if hc != nil {
		<-hc.done
	}
}

// Notify queues the event for every connection of the user
func (h *StatusHub) Notify(email string, event models.StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID, hc := range h.conns[email] {
		h.enqueueLocked(connID, hc, event)
	}
}

// Send queues one payload for one connection. It reports false when the
// connection is unknown or its queue is full.
func (h *StatusHub) Send(email, connID string, payload interface{}) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	hc, ok := h.conns[email][connID]
	if !ok {
		return false
	}
	return h.enqueueLocked(connID, hc, payload)
}

func (h *StatusHub) enqueueLocked(connID string, hc *hubConn, payload interface{}) bool {
	select {
	case hc.send <- payload:
		return true
	default:
		utils.LogError(errSlowConsumer, "Notify "+connID)
		return false
	}
}

func (h *StatusHub) CountConnections(email string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[email])
}
