package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"channel-chat/internal/models"
)

// State of a connection session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

var (
	ErrNotConnected = errors.New("not connected to a channel")
	ErrWrongChannel = errors.New("message is for a different channel")

	// ErrRetriesExhausted is the terminal connection error surfaced
	// once the bounded reconnect budget is spent.
	ErrRetriesExhausted = errors.New("connection attempts exhausted")
)

// Events are the manager's side effects, surfaced to the application
// without interpretation.
type Events struct {
	OnConnect      func(channelID string)
	OnConnectError func(channelID string, err error)
	OnError        func(channelID string, err error)
	OnMessage      func(msg models.Message)
}

// Options tune the retry policy. Defaults match the classic client:
// 5 attempts, 1s apart, 10s per dial.
type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	DialTimeout time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 5
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = time.Second
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = 10 * time.Second
	}
	return out
}

// Manager owns a single live transport bound to at most one channel at
// a time. Connect, Disconnect and Send serialize on one mutex, so a
// channel switch fully completes its teardown before any later send is
// accepted; a send can never land on a superseded channel.
type Manager struct {
	dialers []Dialer
	token   string
	events  Events
	opts    Options

	mu        sync.Mutex
	state     State
	channelID string
	transport Transport
	cancel    context.CancelFunc
}

// NewManager builds a session. Dialers are tried in order on every
// attempt; list the preferred socket transport first and the polling
// fallback after it. The token is re-supplied unchanged on every
// reconnect for the life of the session.
func NewManager(dialers []Dialer, token string, events Events, opts Options) *Manager {
	return &Manager{
		dialers: dialers,
		token:   token,
		events:  events,
		opts:    opts.withDefaults(),
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ActiveChannel returns the channel this session is bound to, or "".
func (m *Manager) ActiveChannel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channelID
}

// Connect binds the session to channelID. Already being connected to
// the same channel is a no-op. Any prior binding is fully torn down
// first: its pending reconnects are cancelled, a best-effort leave is
// emitted for it, and its transport is closed. The dial itself runs
// asynchronously; the outcome arrives via OnConnect/OnConnectError.
func (m *Manager) Connect(channelID string) {
	m.mu.Lock()
	if m.state == StateConnected && m.channelID == channelID {
		m.mu.Unlock()
		return
	}

	m.teardownLocked()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = StateConnecting
	m.channelID = channelID
	m.mu.Unlock()

	go m.run(ctx, channelID)
}

// Disconnect emits a leave for the current channel, tears down the
// transport and cancels any pending reconnect. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateDisconnected {
		return
	}
	m.teardownLocked()
	m.state = StateDisconnected
	m.channelID = ""
}

// Send relays a message on the active channel. It fails locally, never
// silently, when the session is not connected or the message names a
// different channel.
func (m *Manager) Send(msg models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected {
		return ErrNotConnected
	}
	if msg.ChannelID != m.channelID {
		return fmt.Errorf("%w: bound to %s, message for %s", ErrWrongChannel, m.channelID, msg.ChannelID)
	}

	return m.transport.Send(models.Event{
		Type:      models.EventMessage,
		ChannelID: msg.ChannelID,
		Content:   msg.Content,
	})
}

// teardownLocked cancels in-flight work for the current binding and
// closes its transport after a best-effort leave frame. Callers hold
// m.mu.
func (m *Manager) teardownLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.transport != nil {
		// Best-effort: a transport failure here just drops the frame,
		// the relay announces the leave on disconnect anyway.
		m.transport.Send(models.Event{Type: models.EventLeave, ChannelID: m.channelID})
		m.transport.Close()
		m.transport = nil
	}
}

// run is the session loop for one binding: dial with the bounded retry
// budget, pump received events, and on a drop go around again with a
// fresh budget. It exits when superseded (ctx cancelled) or when a
// budget is exhausted.
func (m *Manager) run(ctx context.Context, channelID string) {
	for {
		transport, err := m.dial(ctx, channelID)
		if err != nil {
			m.mu.Lock()
			if ctx.Err() != nil {
				// Superseded; no further events for this channel.
				m.mu.Unlock()
				return
			}
			m.state = StateDisconnected
			m.channelID = ""
			m.cancel = nil
			m.mu.Unlock()
			if m.events.OnConnectError != nil {
				m.events.OnConnectError(channelID, err)
			}
			return
		}

		m.mu.Lock()
		if ctx.Err() != nil {
			m.mu.Unlock()
			// The dial resolved after the session moved on. The old
			// channel still gets its one leave frame.
			transport.Send(models.Event{Type: models.EventLeave, ChannelID: channelID})
			transport.Close()
			return
		}
		m.transport = transport
		m.state = StateConnected
		m.mu.Unlock()

		if m.events.OnConnect != nil {
			m.events.OnConnect(channelID)
		}

		m.pump(ctx, transport)
		if ctx.Err() != nil {
			return
		}

		// Transport dropped out from under us.
		m.mu.Lock()
		if ctx.Err() != nil {
			m.mu.Unlock()
			return
		}
		m.state = StateReconnecting
		m.transport = nil
		m.mu.Unlock()
	}
}

// dial tries each transport mechanism in order, up to MaxAttempts
// rounds separated by the fixed RetryDelay. An authorization refusal
// aborts immediately; there is no point retrying it.
func (m *Manager) dial(ctx context.Context, channelID string) (Transport, error) {
	var lastErr error
	for attempt := 1; attempt <= m.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(m.opts.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		for _, dialer := range m.dialers {
			dialCtx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
			transport, err := dialer.Dial(dialCtx, channelID, m.token)
			cancel()
			if err == nil {
				return transport, nil
			}
			if errors.Is(err, ErrRejected) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		}

		m.mu.Lock()
		if ctx.Err() == nil {
			m.state = StateReconnecting
		}
		m.mu.Unlock()
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, m.opts.MaxAttempts, lastErr)
}

// pump dispatches inbound events until the stream ends or the binding
// is superseded.
func (m *Manager) pump(ctx context.Context, transport Transport) {
	for {
		select {
		case event, ok := <-transport.Receive():
			if !ok {
				return
			}
			switch event.Type {
			case models.EventMessage:
				if m.events.OnMessage != nil {
					m.events.OnMessage(event.Msg())
				}
			case models.EventError:
				if m.events.OnError != nil {
					m.events.OnError(event.ChannelID, errors.New(event.Content))
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
