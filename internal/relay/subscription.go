package relay

import "channel-chat/internal/models"

// subscriptionBuffer is the outbound queue depth per subscriber,
// matching the write buffer a pump drains.
const subscriptionBuffer = 256

// Subscription is one participant's live binding to a channel. Events
// arrive on Events() in relay arrival order and the channel is closed
// when the subscription ends, whether by Close or by being dropped as a
// slow consumer.
type Subscription struct {
	relay         *Relay
	ChannelID     string
	ParticipantID string

	events chan models.Event
}

// Events returns the ordered stream of channel events for this
// subscriber.
func (s *Subscription) Events() <-chan models.Event {
	return s.events
}

// Close unsubscribes and announces the leave to remaining members.
func (s *Subscription) Close() {
	s.relay.Unsubscribe(s)
}
