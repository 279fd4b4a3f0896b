// Package client dials the RIS-Live WebSocket endpoint and turns its frame
// stream into an iterator of decoded messages, the live-feed analogue of
// internal/iter's file-based decoders.
package client

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/gorilla/websocket"

	"github.com/route-beacon/mrtkit/internal/rislive"
)

const DefaultURL = "wss://ris-live.ripe.net/v1/ws/"

// Client wraps a single WebSocket connection to a RIS-Live-compatible
// endpoint. It owns no retry/reconnect policy — §5's "no background tasks"
// rule applies here too; the caller drives reconnection.
type Client struct {
	conn *websocket.Conn
}

// Dial opens the connection and, if params is non-zero, sends an initial
// subscribe request.
func Dial(ctx context.Context, url string, params *rislive.SubscribeParams) (*Client, error) {
	if url == "" {
		url = DefaultURL
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rislive/client: dial %s: %w", url, err)
	}
	c := &Client{conn: conn}
	if params != nil {
		if err := c.Subscribe(*params); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Client) Subscribe(params rislive.SubscribeParams) error {
	frame, err := rislive.EncodeSubscribe(params)
	if err != nil {
		return fmt.Errorf("rislive/client: encode subscribe: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) Unsubscribe(subscriptionID string) error {
	frame, err := rislive.EncodeUnsubscribe(subscriptionID)
	if err != nil {
		return fmt.Errorf("rislive/client: encode unsubscribe: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) Ping() error {
	frame, err := rislive.EncodePing()
	if err != nil {
		return fmt.Errorf("rislive/client: encode ping: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) Close() error { return c.conn.Close() }

// Messages streams every decoded server frame until the connection closes
// or the context is cancelled. Non-ris_message frames (pong, subscribe-ok,
// error, rrc-list) are yielded too; callers filter by Type.
func (c *Client) Messages(ctx context.Context) iter.Seq2[rislive.RisMessage, error] {
	return func(yield func(rislive.RisMessage, error) bool) {
		done := ctx.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			_, raw, err := c.conn.ReadMessage()
			if err != nil {
				yield(rislive.RisMessage{}, fmt.Errorf("rislive/client: read: %w", err))
				return
			}
			msg, err := rislive.DecodeRisMessage(raw)
			if !yield(msg, err) {
				return
			}
		}
	}
}
