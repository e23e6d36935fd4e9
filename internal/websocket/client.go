package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"llmhub/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Releaser deregisters a subscription from the event bus.
type Releaser interface {
	Release(sub *events.Subscription)
}

// Client mirrors one event subscription onto a websocket connection.
// Frames are JSON envelopes: {"type": "<event>", "data": {...}}.
type Client struct {
	conn *websocket.Conn
	sub  *events.Subscription
	bus  Releaser
	log  logrus.FieldLogger
}

func NewClient(conn *websocket.Conn, sub *events.Subscription, bus Releaser, log logrus.FieldLogger) *Client {
	return &Client{
		conn: conn,
		sub:  sub,
		bus:  bus,
		log: log.WithFields(logrus.Fields{
			"component": "websocket",
			"client":    sub.ClientID,
			"room":      sub.RoomCode,
		}),
	}
}

// ReadPump only watches for the peer going away; observers do not send
// anything meaningful. It releases the subscription on exit, which in turn
// stops WritePump.
func (c *Client) ReadPump() {
	defer func() {
		c.bus.Release(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("websocket closed unexpectedly")
			}
			return
		}
	}
}

// WritePump drains the subscription onto the connection and keeps it alive
// with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.sub.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			frame, err := json.Marshal(env)
			if err != nil {
				c.log.WithError(err).Error("failed to encode frame")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.WithError(err).Debug("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
