// Package ws carries the binary wire protocol over websocket connections:
// an upgrading server for the hub side and a dialler for clients, both
// yielding the same Conn.
package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second

	// Frames buffered between the reader goroutine and the owner. The
	// owner polls with TryReceive, so bursts (a flush of chunk replies)
	// need room.
	recvBuffer = 64
)

// Conn is one websocket connection carrying binary protocol frames.
//
// A Conn owns a reader goroutine feeding an internal queue, so the owner
// can poll with TryReceive without blocking. Send and Receive/TryReceive
// may each be used from one goroutine at a time.
type Conn struct {
	ws   *websocket.Conn
	done chan struct{}

	frames  chan []byte
	readErr error // set by the reader goroutine before it closes frames

	closeOnce sync.Once
}

func newConn(wsConn *websocket.Conn) *Conn {
	c := &Conn{
		ws:     wsConn,
		done:   make(chan struct{}),
		frames: make(chan []byte, recvBuffer),
	}
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	wsConn.SetPingHandler(func(appData string) error {
		_ = wsConn.SetReadDeadline(time.Now().Add(readTimeout))
		return wsConn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
	})
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	for {
		_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
		kind, frame, err := c.ws.ReadMessage()
		if err != nil {
			c.readErr = mapReadError(err)
			close(c.frames)
			return
		}
		if kind != websocket.BinaryMessage {
			c.readErr = &ConnectionError{Err: fmt.Errorf("unexpected frame type %d", kind)}
			close(c.frames)
			return
		}
		select {
		case c.frames <- frame:
		case <-c.done:
			return
		}
	}
}

func mapReadError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ErrClosed
	}
	return &ConnectionError{Err: err}
}

// Send writes one binary frame.
func (c *Conn) Send(frame []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return &ConnectionError{Err: err}
	}
	return nil
}

// Receive blocks until the next frame arrives. After the peer goes away it
// returns ErrClosed or a *ConnectionError.
func (c *Conn) Receive() ([]byte, error) {
	frame, ok := <-c.frames
	if !ok {
		return nil, c.readErr
	}
	return frame, nil
}

// ReceiveTimeout is Receive with an upper bound, for handshakes.
func (c *Conn) ReceiveTimeout(d time.Duration) ([]byte, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case frame, ok := <-c.frames:
		if !ok {
			return nil, c.readErr
		}
		return frame, nil
	case <-timer.C:
		return nil, &ConnectionError{Err: fmt.Errorf("no frame within %v", d)}
	}
}

// TryReceive returns the next queued frame without blocking. ok is false
// when nothing is waiting; err is non-nil once the connection is down and
// the queue drained.
func (c *Conn) TryReceive() (frame []byte, ok bool, err error) {
	select {
	case frame, open := <-c.frames:
		if !open {
			return nil, false, c.readErr
		}
		return frame, true, nil
	default:
		return nil, false, nil
	}
}

// Ping sends a keepalive probe. The peer's pong refreshes our read
// deadline.
func (c *Conn) Ping() error {
	if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
		return &ConnectionError{Err: err}
	}
	return nil
}

// Close sends a close frame and tears the socket down. Safe to call more
// than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.ws.Close()
	})
	return err
}

// Dial connects to a server endpoint (ws://host:port/ws).
func Dial(ctx context.Context, url string) (*Conn, error) {
	wsConn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	return newConn(wsConn), nil
}
