package client

import (
	"context"
	"errors"

	"channel-chat/internal/models"
)

// ErrRejected marks a subscription the server refused on authorization
// grounds. It is not a transport failure, so the manager does not retry
// it.
var ErrRejected = errors.New("subscription refused")

// Transport is one live bidirectional connection bound to a channel.
// The manager only depends on this contract and stays agnostic to
// whether a persistent socket or the polling fallback is underneath.
type Transport interface {
	// Send writes one event. Events sent on one transport instance
	// reach the relay in submission order.
	Send(event models.Event) error

	// Receive returns the inbound event stream. The channel closes
	// when the connection drops or Close is called.
	Receive() <-chan models.Event

	Close() error
}

// Dialer opens a Transport for a channel, carrying the bearer
// credential at open time.
type Dialer interface {
	Dial(ctx context.Context, channelID, token string) (Transport, error)
}
