package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	sendBufferSize = 32
)

// connection wraps one upgraded client socket with a buffered outbound
// queue: gorilla/websocket requires a single writer per connection, so every
// broadcast and reply goes through send rather than calling WriteJSON
// directly from arbitrary goroutines.
type connection struct {
	ws   *websocket.Conn
	send chan Message
	done chan struct{}
}

func newConnection(ws *websocket.Conn) *connection {
	return &connection{ws: ws, send: make(chan Message, sendBufferSize), done: make(chan struct{})}
}

// enqueue attempts a non-blocking send. It reports false when the
// connection's buffer is saturated, per spec §4.7: "a subscriber whose send
// buffer is saturated is disconnected."
func (c *connection) enqueue(msg Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *connection) readPump(handle func(ClientMessage)) {
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var cm ClientMessage
		if err := json.Unmarshal(raw, &cm); err != nil {
			c.enqueue(Message{Type: "error", Timestamp: nowUTC(), Error: "malformed message", Code: "bad_request"})
			continue
		}
		handle(cm)
	}
}

func (c *connection) close() {
	close(c.done)
	_ = c.ws.Close()
}
