package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"channel-chat/internal/database"
	"channel-chat/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// casRetries bounds re-reads when an optimistic update loses a race.
const casRetries = 3

// Registry owns the set of channels and enforces the kind-specific
// membership invariants on every create and update.
type Registry struct {
	store    database.ChannelStore
	validate *validator.Validate
}

func New(store database.ChannelStore) *Registry {
	return &Registry{
		store:    store,
		validate: validator.New(),
	}
}

// Create validates and persists a new channel. Creating a direct
// channel for a 2-member set that already has one returns the existing
// channel instead of a duplicate.
func (r *Registry) Create(ctx context.Context, req *models.CreateChannelRequest) (*models.Channel, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := r.validate.Struct(req); err != nil {
		return nil, validationf("invalid channel payload: %v", err)
	}

	members := lo.Uniq(req.Members)
	slices.Sort(members)

	if reason := cardinalityViolation(req.Kind, len(members)); reason != "" {
		return nil, validationf("%s", reason)
	}
	if err := checkEatupRef(req.Kind, req.EatupRef); err != nil {
		return nil, err
	}

	if req.Kind == models.KindDirect {
		existing, err := r.store.FindDirectChannel(ctx, members)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up direct channel: %w", err)
		}
	}

	now := time.Now()
	ch := &models.Channel{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Kind:      req.Kind,
		Members:   members,
		EatupRef:  req.EatupRef,
		IsPublic:  req.IsPublic,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.CreateChannel(ctx, ch); err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	return ch, nil
}

func (r *Registry) Get(ctx context.Context, channelID string) (*models.Channel, error) {
	return r.store.GetChannel(ctx, channelID)
}

func (r *Registry) ListForMember(ctx context.Context, participantID string) ([]*models.Channel, error) {
	return r.store.ListChannelsForMember(ctx, participantID)
}

// IsMember is the authorization gate used by the relay for every
// subscription and every inbound message. An unknown channel is simply
// a non-membership.
func (r *Registry) IsMember(ctx context.Context, channelID, participantID string) (bool, error) {
	ch, err := r.store.GetChannel(ctx, channelID)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load channel: %w", err)
	}
	return slices.Contains(ch.Members, participantID), nil
}

// AddMembers adds participants to a channel, re-checking the
// cardinality invariant against the post-mutation state. Already
// present participants are ignored.
func (r *Registry) AddMembers(ctx context.Context, channelID string, participants []string) (*models.Channel, error) {
	return r.mutateMembers(ctx, channelID, func(members []string) ([]string, error) {
		merged := lo.Uniq(append(slices.Clone(members), participants...))
		slices.Sort(merged)
		return merged, nil
	})
}

// RemoveMember removes one participant. A removal that would break the
// kind's cardinality floor fails with a ConstraintViolation and leaves
// membership unchanged.
func (r *Registry) RemoveMember(ctx context.Context, channelID, participantID string) (*models.Channel, error) {
	return r.mutateMembers(ctx, channelID, func(members []string) ([]string, error) {
		if !slices.Contains(members, participantID) {
			return nil, constraintf("participant %s is not a member", participantID)
		}
		out := lo.Without(slices.Clone(members), participantID)
		return out, nil
	})
}

// mutateMembers runs read-mutate-validate-write with a compare-and-swap
// on the channel version, so no concurrent mutation can slip past the
// invariant check.
func (r *Registry) mutateMembers(ctx context.Context, channelID string, mutate func([]string) ([]string, error)) (*models.Channel, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		ch, err := r.store.GetChannel(ctx, channelID)
		if err != nil {
			return nil, err
		}

		members, err := mutate(ch.Members)
		if err != nil {
			return nil, err
		}
		if slices.Equal(members, ch.Members) {
			return ch, nil
		}
		if reason := cardinalityViolation(ch.Kind, len(members)); reason != "" {
			return nil, constraintf("%s", reason)
		}

		ch.Members = members
		err = r.store.UpdateChannel(ctx, ch)
		if errors.Is(err, database.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update channel: %w", err)
		}
		return ch, nil
	}
	return nil, fmt.Errorf("channel %s: too many concurrent updates", channelID)
}

// cardinalityViolation returns a non-empty reason when n members would
// break kind's rule. Callers wrap it as a ValidationError at create
// time and as a ConstraintViolation on mutation.
func cardinalityViolation(kind models.Kind, n int) string {
	switch kind {
	case models.KindDirect:
		if n != 2 {
			return fmt.Sprintf("direct channels require exactly 2 members, got %d", n)
		}
	case models.KindGroup:
		if n < 2 {
			return fmt.Sprintf("group channels require at least 2 members, got %d", n)
		}
	case models.KindEatup:
		if n < 1 {
			return fmt.Sprintf("eatup channels require at least 1 member, got %d", n)
		}
	default:
		return fmt.Sprintf("unknown channel kind %q", kind)
	}
	return ""
}

func checkEatupRef(kind models.Kind, eatupRef string) error {
	if kind == models.KindEatup && eatupRef == "" {
		return validationf("eatup channels require an eatup reference")
	}
	if kind != models.KindEatup && eatupRef != "" {
		return validationf("%s channels must not carry an eatup reference", kind)
	}
	return nil
}
