package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"channel-chat/internal/database"
	"channel-chat/internal/models"
	"channel-chat/internal/registry"

	"github.com/stretchr/testify/require"
)

func newTestRelay(t *testing.T, echoToSender bool, members ...string) (*Relay, *registry.Registry, *models.Channel) {
	t.Helper()
	reg := registry.New(database.NewMemoryStore())
	ch, err := reg.Create(context.Background(), &models.CreateChannelRequest{
		Name:    "relay test",
		Kind:    models.KindGroup,
		Members: members,
	})
	require.NoError(t, err)
	return New(reg, echoToSender), reg, ch
}

func receiveEvent(t *testing.T, sub *Subscription) models.Event {
	t.Helper()
	select {
	case event, ok := <-sub.Events():
		require.True(t, ok, "subscription closed unexpectedly")
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return models.Event{}
	}
}

func requireNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case event := <-sub.Events():
		t.Fatalf("unexpected event: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribe_NonMemberRefused(t *testing.T) {
	r, _, ch := newTestRelay(t, false, "alice", "bob")

	_, err := r.Subscribe(context.Background(), ch.ID, "mallory")
	require.ErrorIs(t, err, ErrNotMember)
	require.Zero(t, r.SubscriberCount(ch.ID))
}

func TestSubscribe_AnnouncesJoinToOthers(t *testing.T) {
	r, _, ch := newTestRelay(t, false, "alice", "bob")

	alice, err := r.Subscribe(context.Background(), ch.ID, "alice")
	require.NoError(t, err)

	_, err = r.Subscribe(context.Background(), ch.ID, "bob")
	require.NoError(t, err)

	join := receiveEvent(t, alice)
	require.Equal(t, models.EventJoin, join.Type)
	require.Equal(t, "bob", join.SenderID)
	require.Equal(t, ch.ID, join.ChannelID)
}

func TestPublish_RelaysToOthersAndSuppressesEcho(t *testing.T) {
	r, _, ch := newTestRelay(t, false, "alice", "bob")

	alice, err := r.Subscribe(context.Background(), ch.ID, "alice")
	require.NoError(t, err)
	bob, err := r.Subscribe(context.Background(), ch.ID, "bob")
	require.NoError(t, err)
	receiveEvent(t, alice) // bob's join announcement

	err = r.Publish(context.Background(), alice, models.Message{ChannelID: ch.ID, Content: "hello"})
	require.NoError(t, err)

	got := receiveEvent(t, bob)
	require.Equal(t, models.EventMessage, got.Type)
	require.Equal(t, ch.ID, got.ChannelID)
	require.Equal(t, "alice", got.SenderID)
	require.Equal(t, "hello", got.Content)

	requireNoEvent(t, alice)
}

func TestPublish_EchoToSenderOption(t *testing.T) {
	r, _, ch := newTestRelay(t, true, "alice", "bob")

	alice, err := r.Subscribe(context.Background(), ch.ID, "alice")
	require.NoError(t, err)

	err = r.Publish(context.Background(), alice, models.Message{ChannelID: ch.ID, Content: "hello me"})
	require.NoError(t, err)

	got := receiveEvent(t, alice)
	require.Equal(t, models.EventMessage, got.Type)
	require.Equal(t, "hello me", got.Content)
}

func TestPublish_WrongChannelRejected(t *testing.T) {
	r, _, ch := newTestRelay(t, false, "alice", "bob")

	alice, err := r.Subscribe(context.Background(), ch.ID, "alice")
	require.NoError(t, err)

	err = r.Publish(context.Background(), alice, models.Message{ChannelID: "other", Content: "lost"})
	require.ErrorIs(t, err, ErrWrongChannel)
}

// Membership is re-checked at message time, not only at subscribe time.
func TestPublish_MembershipRevokedMidStream(t *testing.T) {
	r, reg, ch := newTestRelay(t, false, "alice", "bob", "carol")

	carol, err := r.Subscribe(context.Background(), ch.ID, "carol")
	require.NoError(t, err)

	_, err = reg.RemoveMember(context.Background(), ch.ID, "carol")
	require.NoError(t, err)

	err = r.Publish(context.Background(), carol, models.Message{ChannelID: ch.ID, Content: "still here?"})
	require.ErrorIs(t, err, ErrNotMember)

	// The rejection is a non-fatal error event on carol's own stream.
	got := receiveEvent(t, carol)
	require.Equal(t, models.EventError, got.Type)
	require.Equal(t, ch.ID, got.ChannelID)
}

func TestPublish_PerChannelFIFO(t *testing.T) {
	r, _, ch := newTestRelay(t, false, "alice", "bob")

	alice, err := r.Subscribe(context.Background(), ch.ID, "alice")
	require.NoError(t, err)
	bob, err := r.Subscribe(context.Background(), ch.ID, "bob")
	require.NoError(t, err)
	receiveEvent(t, alice) // bob's join announcement

	const n = 50
	for i := 0; i < n; i++ {
		err := r.Publish(context.Background(), alice, models.Message{
			ChannelID: ch.ID,
			Content:   fmt.Sprintf("msg-%d", i),
		})
		require.NoError(t, err)
	}

	for i := 0; i < n; i++ {
		got := receiveEvent(t, bob)
		require.Equal(t, fmt.Sprintf("msg-%d", i), got.Content)
	}
}

func TestUnsubscribe_AnnouncesLeaveToRemaining(t *testing.T) {
	r, _, ch := newTestRelay(t, false, "alice", "bob")

	alice, err := r.Subscribe(context.Background(), ch.ID, "alice")
	require.NoError(t, err)
	bob, err := r.Subscribe(context.Background(), ch.ID, "bob")
	require.NoError(t, err)
	receiveEvent(t, alice) // bob's join announcement

	bob.Close()

	leave := receiveEvent(t, alice)
	require.Equal(t, models.EventLeave, leave.Type)
	require.Equal(t, "bob", leave.SenderID)
	require.Equal(t, 1, r.SubscriberCount(ch.ID))

	// Closing again is safe.
	bob.Close()
	require.Equal(t, 1, r.SubscriberCount(ch.ID))
}

func TestUnsubscribe_MembershipUnaffected(t *testing.T) {
	r, reg, ch := newTestRelay(t, false, "alice", "bob")

	bob, err := r.Subscribe(context.Background(), ch.ID, "bob")
	require.NoError(t, err)
	bob.Close()

	ok, err := reg.IsMember(context.Background(), ch.ID, "bob")
	require.NoError(t, err)
	require.True(t, ok)
}
