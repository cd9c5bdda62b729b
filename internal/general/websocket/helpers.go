package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsWriteClose sends a close control frame with the given code and reason.
func (hub *Hub) wsWriteClose(conn *websocket.Conn, code int, reason string) {
	mu := hub.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsCloseAckWindow),
	)
	hub.writeLocks.Delete(conn)
}

// wsWriteMessage sets a short write deadline and writes a raw message.
func (hub *Hub) wsWriteMessage(conn *websocket.Conn, mt int, payload []byte) error {
	mu := hub.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(mt, payload)
}

// lockOf returns the per-connection write mutex, creating it on first use.
func (hub *Hub) lockOf(conn *websocket.Conn) *sync.Mutex {
	if v, ok := hub.writeLocks.Load(conn); ok {
		if mu, ok := v.(*sync.Mutex); ok && mu != nil {
			return mu
		}
	}
	mu := &sync.Mutex{}
	actual, _ := hub.writeLocks.LoadOrStore(conn, mu)
	return actual.(*sync.Mutex)
}

// envelope is the wire shape for every outbound push: an event name plus
// its typed payload (spec §6's event catalogue).
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// emit marshals an {event,data} envelope and writes it to conn.
func (hub *Hub) emit(conn *websocket.Conn, event string, data any) error {
	payload, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	return hub.wsWriteMessage(conn, websocket.TextMessage, payload)
}

// emitError writes a minimal {event:"error", data:{ack}} frame.
func (hub *Hub) emitError(conn *websocket.Conn, ack any) {
	_ = hub.emit(conn, "error", ack)
}
