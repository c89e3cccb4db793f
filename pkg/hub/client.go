package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// telemetry is one-way; peers only send pongs and close frames
	maxMessageSize = 4 * 1024

	// sendQueue must hold every greeting message
	sendQueue = 64
)

// Client is one telemetry subscriber. It is sent its greeting first, then
// every message the hub broadcasts, in order.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient queues greeting and registers the client with the hub.
// If the hub has stopped, the client only delivers its greeting.
func NewClient(hub *Hub, conn *websocket.Conn, greeting ...Message) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendQueue),
	}
	for _, msg := range greeting {
		c.send <- msg
	}
	if !hub.join(c) {
		close(c.send)
	}
	return c
}

// Run serves the connection from the websocket handler's goroutine and
// returns once the peer is gone or the hub has dropped the client. The
// connection is not touched after Run returns.
func (c *Client) Run() {
	gone := make(chan struct{})
	go c.readUntilGone(gone)

	if err := c.deliver(gone); err != nil {
		c.hub.logger.Debug("telemetry write stopped", "error", err)
	}
	c.conn.Close()
	<-gone
	c.hub.leave(c)
}

// deliver writes queued messages and keepalive pings until the queue is
// closed, a write fails, or the reader reports the peer gone.
func (c *Client) deliver(gone <-chan struct{}) error {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return c.write(websocket.CloseMessage, nil)
			}
			if err := c.write(msg.frameType(), msg.Data); err != nil {
				return err
			}
		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-gone:
			return nil
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(kind, data)
}

// readUntilGone consumes pongs and close frames and closes gone when the
// connection stops being readable.
func (c *Client) readUntilGone(gone chan<- struct{}) {
	defer close(gone)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("telemetry peer vanished", "error", err)
			}
			return
		}
	}
}

func (m Message) frameType() int {
	if m.Type == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
