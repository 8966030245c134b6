package database

import (
	"context"
	"errors"

	"channel-chat/internal/models"
)

var (
	ErrNotFound = errors.New("channel not found")

	// ErrVersionConflict means the channel changed between read and
	// write; the caller must re-read and re-validate before retrying.
	ErrVersionConflict = errors.New("channel version conflict")
)

// ChannelStore persists channels. Implementations must make
// UpdateChannel a compare-and-swap on Channel.Version so that invariant
// checks and writes cannot interleave across callers.
type ChannelStore interface {
	CreateChannel(ctx context.Context, ch *models.Channel) error
	GetChannel(ctx context.Context, id string) (*models.Channel, error)

	// FindDirectChannel looks up a direct channel by its exact
	// 2-member set. Members must be sorted. Returns ErrNotFound when
	// no such channel exists.
	FindDirectChannel(ctx context.Context, members []string) (*models.Channel, error)

	// UpdateChannel writes ch if the stored version still equals
	// ch.Version, then bumps Version and UpdatedAt on ch. Returns
	// ErrVersionConflict otherwise.
	UpdateChannel(ctx context.Context, ch *models.Channel) error

	ListChannelsForMember(ctx context.Context, participantID string) ([]*models.Channel, error)

	Close() error
}
