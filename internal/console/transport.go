package console

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"Helpdesk/internal/event"
	"Helpdesk/internal/model"
)

const (
	transportWriteWait = 10 * time.Second
	eventBufferSize    = 256
)

// WSTransport is the gorilla/websocket implementation of Transport. It is
// an explicitly owned object with an open/close lifecycle, not ambient
// state: the controller receives it by injection.
type WSTransport struct {
	conn    *websocket.Conn
	events  chan event.WsEvent
	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// DialTransport connects to the socket server, identifying the operator
// through query parameters the way the session provider hands them over.
func DialTransport(ctx context.Context, socketURL string, operator model.Operator) (*WSTransport, error) {
	u, err := url.Parse(socketURL)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}

	q := u.Query()
	q.Set("userId", operator.UserID)
	q.Set("userName", operator.UserName)
	q.Set("userAvatar", operator.UserAvatar)
	q.Set("role", operator.Role)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == 401 {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("dial socket: %w", err)
	}

	t := &WSTransport{
		conn:   conn,
		events: make(chan event.WsEvent, eventBufferSize),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *WSTransport) readLoop() {
	defer close(t.events)

	for {
		var ev event.WsEvent
		if err := t.conn.ReadJSON(&ev); err != nil {
			// Closing the events channel is the drop signal; the
			// controller's Run loop turns it into ErrTransportDropped.
			return
		}
		// A consumer that stopped draining must not pin this goroutine
		// forever; Close releases it through done.
		select {
		case t.events <- ev:
		case <-t.done:
			return
		}
	}
}

// Emit writes one frame. Queued emits are not guaranteed delivered once
// the transport drops; callers treat sends as fire-and-forget.
func (t *WSTransport) Emit(ev event.WsEvent) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(transportWriteWait))
	if err := t.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportDropped, err)
	}
	return nil
}

func (t *WSTransport) Events() <-chan event.WsEvent {
	return t.events
}

func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)

		t.writeMu.Lock()
		deadline := time.Now().Add(transportWriteWait)
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		t.writeMu.Unlock()

		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
