package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"channel-chat/internal/models"

	"github.com/gorilla/websocket"
)

// WebSocketDialer opens the preferred persistent-socket transport.
type WebSocketDialer struct {
	// BaseURL of the server, e.g. "ws://localhost:8080".
	BaseURL string
}

func (d *WebSocketDialer) Dial(ctx context.Context, channelID, token string) (Transport, error) {
	endpoint := fmt.Sprintf("%s/ws?token=%s&channel=%s",
		d.BaseURL, url.QueryEscape(token), url.QueryEscape(channelID))

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: server said %s", ErrRejected, resp.Status)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	t := &wsTransport{
		conn:   conn,
		events: make(chan models.Event, 64),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

type wsTransport struct {
	conn    *websocket.Conn
	events  chan models.Event
	done    chan struct{}
	writeMu sync.Mutex
	once    sync.Once
}

func (t *wsTransport) Send(event models.Event) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return t.conn.WriteJSON(event)
}

func (t *wsTransport) Receive() <-chan models.Event {
	return t.events
}

func (t *wsTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		err = t.conn.Close()
	})
	return err
}

func (t *wsTransport) readLoop() {
	defer close(t.events)
	for {
		var event models.Event
		if err := t.conn.ReadJSON(&event); err != nil {
			return
		}
		select {
		case t.events <- event:
		case <-t.done:
			return
		}
	}
}
