package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dtran2108/collabo-speak/internal/signaling"
)

// ErrNotConnected is returned by Send when no connection is open. Mic
// streaming treats it as "drop the frame", not a failure.
var ErrNotConnected = errors.New("transport not connected")

// Callbacks receive transport lifecycle events. OnDisconnect gets a nil
// error when the connection was closed locally and a non-nil error for
// remote or network failures.
type Callbacks struct {
	OnConnected  func()
	OnMessage    func(raw []byte)
	OnDisconnect func(err error)
}

// WebSocket is the realtime transport for websocket-mode credentials.
// Connect is asynchronous: phase advancement happens only through the
// callbacks, never through Connect's return value.
type WebSocket struct {
	dial func(ctx context.Context, url string) (*websocket.Conn, error)

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	closing bool

	writeMu sync.Mutex
}

func NewWebSocket() *WebSocket {
	return &WebSocket{
		dial: func(ctx context.Context, url string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			return conn, err
		},
	}
}

// Connect starts the connection attempt for a signed-URL credential. There
// is no internal timeout; a hung attempt is abandoned via Close.
//
// The dial is detached from ctx's cancellation: ctx usually belongs to the
// HTTP request that triggered the start, and that request finishes long
// before the dial does. Only Close aborts the attempt.
func (t *WebSocket) Connect(ctx context.Context, cred signaling.Credential, cb Callbacks) error {
	if cred.Mode != signaling.ModeWebSocket {
		return fmt.Errorf("websocket transport cannot open %q credential", cred.Mode)
	}

	t.mu.Lock()
	if t.conn != nil || t.cancel != nil {
		t.mu.Unlock()
		return errors.New("transport already connecting or connected")
	}
	dialCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	t.closing = false
	t.mu.Unlock()

	go t.run(dialCtx, cred.Value, cb)
	return nil
}

func (t *WebSocket) run(ctx context.Context, url string, cb Callbacks) {
	conn, err := t.dial(ctx, url)
	if err != nil {
		t.detach()
		if cb.OnDisconnect != nil {
			cb.OnDisconnect(fmt.Errorf("open realtime socket: %w", err))
		}
		return
	}

	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		_ = conn.Close()
		t.detach()
		if cb.OnDisconnect != nil {
			cb.OnDisconnect(nil)
		}
		return
	}
	t.conn = conn
	t.mu.Unlock()

	if cb.OnConnected != nil {
		cb.OnConnected()
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			closing := t.isClosing()
			t.detach()
			if cb.OnDisconnect != nil {
				if closing || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					cb.OnDisconnect(nil)
				} else {
					cb.OnDisconnect(fmt.Errorf("realtime socket: %w", err))
				}
			}
			return
		}
		if cb.OnMessage != nil {
			cb.OnMessage(msg)
		}
	}
}

// Send writes one binary audio frame.
func (t *WebSocket) Send(data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close tears down the connection, or aborts an in-flight connection
// attempt. Safe to call at any time, including when nothing is open.
func (t *WebSocket) Close() error {
	t.mu.Lock()
	t.closing = true
	conn := t.conn
	cancel := t.cancel
	t.conn = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn == nil {
		return nil
	}

	t.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), closeDeadline())
	t.writeMu.Unlock()
	return conn.Close()
}

func closeDeadline() time.Time {
	return time.Now().Add(time.Second)
}

func (t *WebSocket) isClosing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closing
}

func (t *WebSocket) detach() {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.conn = nil
	t.cancel = nil
	t.mu.Unlock()
}
