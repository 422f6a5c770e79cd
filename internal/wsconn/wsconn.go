// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/wsconn/wsconn.go
// Summary: net.Conn adapter over a websocket, for browser-gateway transports.

package wsconn

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn adapts a websocket connection to net.Conn. Each Write becomes one
// binary websocket message; Read drains messages byte-wise so the framing
// layer above can reassemble its own message boundaries.
//
// Reads are decoupled from the websocket by a pump goroutine: gorilla treats
// an expired read deadline as a permanent connection failure, so the short
// poll deadlines the connection loops use must never reach the websocket
// itself. SetReadDeadline is applied against the pump's message queue
// instead, and a deadline hit surfaces as a retryable net.Error timeout.
type Conn struct {
	ws   *websocket.Conn
	msgs chan []byte
	done chan struct{}

	mu           sync.Mutex
	readDeadline time.Time
	readErr      error

	writeMu sync.Mutex
	remain  []byte

	closeOnce sync.Once
}

// New wraps an already-established websocket connection and starts its read
// pump. The wrapper owns all reads on ws from this point on.
func New(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:   ws,
		msgs: make(chan []byte, 32),
		done: make(chan struct{}),
	}
	go c.readPump()
	return c
}

// Dial connects to a websocket endpoint (ws:// or wss://).
func Dial(url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return New(ws), nil
}

// Upgrade converts an incoming HTTP request into a wrapped connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return New(ws), nil
}

// readPump is the sole reader of the websocket. It runs until the websocket
// fails or the wrapper closes, queueing binary payloads for Read.
func (c *Conn) readPump() {
	defer close(c.msgs)
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.readErr = mapCloseError(err)
			c.mu.Unlock()
			return
		}
		if msgType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		select {
		case c.msgs <- data:
		case <-c.done:
			return
		}
	}
}

// mapCloseError folds a clean websocket close into io.EOF so the layers
// above treat it like any other orderly connection shutdown.
func mapCloseError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return io.EOF
	}
	return err
}

func (c *Conn) Read(p []byte) (int, error) {
	for len(c.remain) == 0 {
		data, err := c.nextMessage()
		if err != nil {
			return 0, err
		}
		c.remain = data
	}
	n := copy(p, c.remain)
	c.remain = c.remain[n:]
	return n, nil
}

// nextMessage waits for the pump to deliver a payload, honoring the local
// read deadline. Payloads already queued are delivered even when the
// deadline has passed, so a polling reader never loses data to a timeout.
func (c *Conn) nextMessage() ([]byte, error) {
	c.mu.Lock()
	deadline := c.readDeadline
	c.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		wait := time.Until(deadline)
		if wait <= 0 {
			select {
			case data, ok := <-c.msgs:
				if !ok {
					return nil, c.pumpErr()
				}
				return data, nil
			default:
				return nil, errTimeout
			}
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case data, ok := <-c.msgs:
		if !ok {
			return nil, c.pumpErr()
		}
		return data, nil
	case <-timeout:
		return nil, errTimeout
	}
}

func (c *Conn) pumpErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return c.readErr
	}
	return io.EOF
}

func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.SetWriteDeadline(t)
}

// SetReadDeadline bounds Read against the pump queue only; the websocket's
// own read deadline is never touched.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.readDeadline = t
	c.mu.Unlock()
	return nil
}

func (c *Conn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }

type timeoutError struct{}

func (timeoutError) Error() string   { return "wsconn: read deadline exceeded" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var errTimeout net.Error = timeoutError{}
