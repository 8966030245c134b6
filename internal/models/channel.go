package models

import "time"

// Kind is the structural category of a channel. It is fixed at creation
// and determines the membership cardinality rule.
type Kind string

const (
	KindDirect Kind = "direct"
	KindGroup  Kind = "group"
	KindEatup  Kind = "eatup"
)

// Channel is a named communication context with a fixed kind and a
// membership set. Members is kept sorted and free of duplicates by the
// registry. Version backs optimistic concurrency on updates.
type Channel struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Members   []string  `json:"members"`
	EatupRef  string    `json:"eatup_ref,omitempty"`
	IsPublic  bool      `json:"is_public"`
	Version   int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is the wire-level payload relayed within a channel. It is
// only meaningful relative to a channel whose membership includes the
// sender.
type Message struct {
	ChannelID string `json:"channel_id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
}

type CreateChannelRequest struct {
	Name     string   `json:"name" validate:"required,min=2,max=50"`
	Kind     Kind     `json:"kind" validate:"required,oneof=direct group eatup"`
	Members  []string `json:"members" validate:"required,min=1,dive,required"`
	EatupRef string   `json:"eatup_ref,omitempty"`
	IsPublic bool     `json:"is_public"`
}

type MemberRequest struct {
	Members []string `json:"members" validate:"required,min=1,dive,required"`
}
