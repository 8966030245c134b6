package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"channel-chat/internal/models"
	"channel-chat/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateChannel(ctx context.Context, ch *models.Channel) error {
	query := `
		INSERT INTO channels (id, name, kind, members, eatup_ref, is_public, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		ch.ID, ch.Name, string(ch.Kind), ch.Members, ch.EatupRef, ch.IsPublic,
		ch.Version, ch.CreatedAt, ch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	query := `
		SELECT id, name, kind, members, COALESCE(eatup_ref, ''), is_public, version, created_at, updated_at
		FROM channels WHERE id = $1`

	return s.scanChannel(s.pool.QueryRow(ctx, query, id))
}

func (s *PostgresStore) FindDirectChannel(ctx context.Context, members []string) (*models.Channel, error) {
	// Members are stored sorted, so an exact array match is an exact
	// set match.
	query := `
		SELECT id, name, kind, members, COALESCE(eatup_ref, ''), is_public, version, created_at, updated_at
		FROM channels WHERE kind = 'direct' AND members = $1`

	return s.scanChannel(s.pool.QueryRow(ctx, query, members))
}

func (s *PostgresStore) UpdateChannel(ctx context.Context, ch *models.Channel) error {
	query := `
		UPDATE channels
		SET name = $1, members = $2, is_public = $3, version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5`

	tag, err := s.pool.Exec(ctx, query,
		ch.Name, ch.Members, ch.IsPublic, ch.ID, ch.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is gone or someone else won the race.
		if _, err := s.GetChannel(ctx, ch.ID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	ch.Version++
	ch.UpdatedAt = time.Now()
	return nil
}

func (s *PostgresStore) ListChannelsForMember(ctx context.Context, participantID string) ([]*models.Channel, error) {
	query := `
		SELECT id, name, kind, members, COALESCE(eatup_ref, ''), is_public, version, created_at, updated_at
		FROM channels WHERE $1 = ANY(members)
		ORDER BY updated_at DESC`

	rows, err := s.pool.Query(ctx, query, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var channels []*models.Channel
	for rows.Next() {
		ch, err := s.scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanChannel(row rowScanner) (*models.Channel, error) {
	ch := &models.Channel{}
	var kind string
	err := row.Scan(
		&ch.ID, &ch.Name, &kind, &ch.Members, &ch.EatupRef, &ch.IsPublic,
		&ch.Version, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan channel: %w", err)
	}
	ch.Kind = models.Kind(kind)
	return ch, nil
}
