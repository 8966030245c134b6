package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"channel-chat/internal/models"
	"channel-chat/pkg/logger"
)

// ErrNotMember is the authorization failure for a participant outside
// the target channel's membership. It is checked both at subscribe time
// and again on every publish, because membership can change in between.
var ErrNotMember = errors.New("participant is not a member of the channel")

// ErrWrongChannel means a message named a channel other than the one
// its subscription is bound to.
var ErrWrongChannel = errors.New("message channel does not match subscription")

// Membership is the authorization gate the relay consults. The channel
// registry satisfies it.
type Membership interface {
	IsMember(ctx context.Context, channelID, participantID string) (bool, error)
}

// Relay is the single authority turning "participant said X in channel
// Y" into fan-out to the channel's other subscribers. Fan-out happens
// under a per-channel lock, so each recipient sees messages in relay
// arrival order.
type Relay struct {
	membership Membership

	// echoToSender controls whether a publisher receives its own
	// message back.
	echoToSender bool

	mu       sync.Mutex
	channels map[string]map[*Subscription]bool
}

func New(membership Membership, echoToSender bool) *Relay {
	return &Relay{
		membership:   membership,
		echoToSender: echoToSender,
		channels:     make(map[string]map[*Subscription]bool),
	}
}

// Subscribe binds a participant to a channel's live stream. A
// non-member is refused with ErrNotMember; that is an authorization
// failure, not a transport one. Remaining subscribers are told about
// the join.
func (r *Relay) Subscribe(ctx context.Context, channelID, participantID string) (*Subscription, error) {
	ok, err := r.membership.IsMember(ctx, channelID, participantID)
	if err != nil {
		return nil, fmt.Errorf("membership check failed: %w", err)
	}
	if !ok {
		return nil, ErrNotMember
	}

	sub := &Subscription{
		relay:         r,
		ChannelID:     channelID,
		ParticipantID: participantID,
		events:        make(chan models.Event, subscriptionBuffer),
	}

	r.mu.Lock()
	subs, ok := r.channels[channelID]
	if !ok {
		subs = make(map[*Subscription]bool)
		r.channels[channelID] = subs
	}
	announce := models.Event{Type: models.EventJoin, ChannelID: channelID, SenderID: participantID}
	for other := range subs {
		r.deliverLocked(other, announce)
	}
	subs[sub] = true
	r.mu.Unlock()

	logger.Debug("participant %s subscribed to channel %s", participantID, channelID)
	return sub, nil
}

// Publish relays one message from sub to the channel's other
// subscribers. Membership is re-verified at message time; a participant
// removed since subscribing gets a non-fatal error event on its own
// stream and ErrNotMember back.
func (r *Relay) Publish(ctx context.Context, sub *Subscription, msg models.Message) error {
	if msg.ChannelID != sub.ChannelID {
		return ErrWrongChannel
	}
	msg.SenderID = sub.ParticipantID

	ok, err := r.membership.IsMember(ctx, msg.ChannelID, sub.ParticipantID)
	if err != nil {
		return fmt.Errorf("membership check failed: %w", err)
	}
	if !ok {
		r.mu.Lock()
		r.deliverLocked(sub, models.NewErrorEvent(msg.ChannelID, "not a member of this channel"))
		r.mu.Unlock()
		return ErrNotMember
	}

	event := models.NewMessageEvent(msg)

	r.mu.Lock()
	for recipient := range r.channels[msg.ChannelID] {
		if recipient == sub && !r.echoToSender {
			continue
		}
		r.deliverLocked(recipient, event)
	}
	r.mu.Unlock()
	return nil
}

// Unsubscribe releases sub and announces the leave to the channel's
// remaining subscribers. Membership itself is untouched; a transient
// disconnect is not a data-model mutation. Safe to call more than once.
func (r *Relay) Unsubscribe(sub *Subscription) {
	r.mu.Lock()
	subs, ok := r.channels[sub.ChannelID]
	if !ok || !subs[sub] {
		r.mu.Unlock()
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(r.channels, sub.ChannelID)
	}
	close(sub.events)
	announce := models.Event{Type: models.EventLeave, ChannelID: sub.ChannelID, SenderID: sub.ParticipantID}
	for other := range subs {
		r.deliverLocked(other, announce)
	}
	r.mu.Unlock()

	logger.Debug("participant %s left channel %s", sub.ParticipantID, sub.ChannelID)
}

// SubscriberCount reports how many live subscriptions a channel has.
func (r *Relay) SubscriberCount(channelID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels[channelID])
}

// deliverLocked enqueues an event on one subscriber. A subscriber whose
// buffer is full is dropped rather than allowed to stall the channel.
// Subscribers already evicted have a closed events channel and are
// skipped.
func (r *Relay) deliverLocked(sub *Subscription, event models.Event) {
	if !r.channels[sub.ChannelID][sub] {
		return
	}
	select {
	case sub.events <- event:
	default:
		logger.Error("dropping slow subscriber %s on channel %s", sub.ParticipantID, sub.ChannelID)
		delete(r.channels[sub.ChannelID], sub)
		close(sub.events)
	}
}
