package models

import "time"

// EventType names the wire-level protocol events the client and relay
// agree on.
type EventType string

const (
	EventJoin    EventType = "join"
	EventLeave   EventType = "leave"
	EventMessage EventType = "message"
	EventError   EventType = "error"
)

// Event is the envelope exchanged over a transport, in both directions.
// The server fills SenderID from the authenticated participant; anything
// the client puts there is ignored.
type Event struct {
	Type      EventType `json:"type"`
	ChannelID string    `json:"channel_id"`
	SenderID  string    `json:"sender_id,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

func NewMessageEvent(msg Message) Event {
	return Event{
		Type:      EventMessage,
		ChannelID: msg.ChannelID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func NewErrorEvent(channelID, reason string) Event {
	return Event{
		Type:      EventError,
		ChannelID: channelID,
		Content:   reason,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// Msg converts a message event back to the message it carries.
func (e Event) Msg() Message {
	return Message{
		ChannelID: e.ChannelID,
		SenderID:  e.SenderID,
		Content:   e.Content,
	}
}
