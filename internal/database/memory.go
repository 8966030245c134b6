package database

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"channel-chat/internal/models"
)

// MemoryStore is an in-process ChannelStore. It is the zero-config
// default for local runs and the backing store for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	channels map[string]*models.Channel
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		channels: make(map[string]*models.Channel),
	}
}

func (s *MemoryStore) CreateChannel(ctx context.Context, ch *models.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channels[ch.ID] = cloneChannel(ch)
	return nil
}

func (s *MemoryStore) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.channels[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneChannel(ch), nil
}

func (s *MemoryStore) FindDirectChannel(ctx context.Context, members []string) (*models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.channels {
		if ch.Kind == models.KindDirect && slices.Equal(ch.Members, members) {
			return cloneChannel(ch), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateChannel(ctx context.Context, ch *models.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.channels[ch.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != ch.Version {
		return ErrVersionConflict
	}

	ch.Version++
	ch.UpdatedAt = time.Now()
	s.channels[ch.ID] = cloneChannel(ch)
	return nil
}

func (s *MemoryStore) ListChannelsForMember(ctx context.Context, participantID string) ([]*models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Channel
	for _, ch := range s.channels {
		if slices.Contains(ch.Members, participantID) {
			out = append(out, cloneChannel(ch))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneChannel(ch *models.Channel) *models.Channel {
	cp := *ch
	cp.Members = slices.Clone(ch.Members)
	return &cp
}
