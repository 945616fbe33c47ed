package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	feedBuffer   = 16
	keepalive    = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Client is one subscriber to a ledger topic. Events flow server to client
// only; a data frame from the peer ends the connection.
type Client struct {
	hub   *Hub
	conn  *ws.Conn
	topic string
	send  chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn, topic string) *Client {
	return &Client{hub: hub, conn: conn, topic: topic, send: make(chan []byte, feedBuffer)}
}

// Run subscribes the client and forwards queued events until the peer
// disconnects, ctx ends, or a write fails.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	// CloseRead services control frames (pongs, close) and cancels ctx when
	// the peer goes away.
	ctx = c.conn.CloseRead(ctx)

	keep := time.NewTicker(keepalive)
	defer keep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok || c.deliver(ctx, msg) != nil {
				return
			}
		case <-keep.C:
			if c.ping(ctx) != nil {
				return
			}
		}
	}
}

func (c *Client) deliver(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}

func (c *Client) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Ping(ctx)
}
