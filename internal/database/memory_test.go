package database

import (
	"context"
	"testing"
	"time"

	"channel-chat/internal/models"

	"github.com/stretchr/testify/require"
)

func testChannel(id string, members ...string) *models.Channel {
	now := time.Now()
	return &models.Channel{
		ID:        id,
		Name:      "test channel",
		Kind:      models.KindGroup,
		Members:   members,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.CreateChannel(context.Background(), testChannel("c1", "alice", "bob")))

	ch, err := store.GetChannel(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, ch.Members)

	_, err = store.GetChannel(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.CreateChannel(context.Background(), testChannel("c1", "alice", "bob")))

	ch, err := store.GetChannel(context.Background(), "c1")
	require.NoError(t, err)
	ch.Members[0] = "mallory"

	again, err := store.GetChannel(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, again.Members)
}

func TestMemoryStore_UpdateIsCompareAndSwap(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.CreateChannel(context.Background(), testChannel("c1", "alice", "bob")))

	first, err := store.GetChannel(context.Background(), "c1")
	require.NoError(t, err)
	second, err := store.GetChannel(context.Background(), "c1")
	require.NoError(t, err)

	first.Members = []string{"alice", "bob", "carol"}
	require.NoError(t, store.UpdateChannel(context.Background(), first))
	require.Equal(t, 2, first.Version)

	// The second reader's snapshot is stale now.
	second.Members = []string{"alice", "bob", "dave"}
	require.ErrorIs(t, store.UpdateChannel(context.Background(), second), ErrVersionConflict)

	current, err := store.GetChannel(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob", "carol"}, current.Members)
}

func TestMemoryStore_FindDirectChannel(t *testing.T) {
	store := NewMemoryStore()

	direct := testChannel("d1", "alice", "bob")
	direct.Kind = models.KindDirect
	require.NoError(t, store.CreateChannel(context.Background(), direct))

	found, err := store.FindDirectChannel(context.Background(), []string{"alice", "bob"})
	require.NoError(t, err)
	require.Equal(t, "d1", found.ID)

	_, err = store.FindDirectChannel(context.Background(), []string{"alice", "carol"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListChannelsForMember(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.CreateChannel(context.Background(), testChannel("c1", "alice", "bob")))
	require.NoError(t, store.CreateChannel(context.Background(), testChannel("c2", "bob", "carol")))

	channels, err := store.ListChannelsForMember(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, channels, 2)

	channels, err = store.ListChannelsForMember(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, channels, 1)
	require.Equal(t, "c1", channels[0].ID)
}
