package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avukic/skolar/internal/domain"
)

type ChannelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

func (r *ChannelRepo) Create(ctx context.Context, ch *domain.Channel) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO channels (id, name, kind, creator_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, query, ch.ID, ch.Name, ch.Kind, ch.CreatorID, ch.CreatedAt); err != nil {
		return err
	}

	for _, memberID := range ch.MemberIDs {
		if err := addMember(ctx, tx, ch.ID, memberID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ChannelRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	query := `
		SELECT id, name, kind, creator_id, created_at
		FROM channels
		WHERE id = $1`
	var ch domain.Channel
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&ch.ID, &ch.Name, &ch.Kind, &ch.CreatorID, &ch.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadMembers(ctx, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *ChannelRepo) GetByName(ctx context.Context, name string) (*domain.Channel, error) {
	query := `
		SELECT id, name, kind, creator_id, created_at
		FROM channels
		WHERE name = $1`
	var ch domain.Channel
	err := r.pool.QueryRow(ctx, query, name).Scan(
		&ch.ID, &ch.Name, &ch.Kind, &ch.CreatorID, &ch.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadMembers(ctx, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *ChannelRepo) List(ctx context.Context) ([]domain.Channel, error) {
	query := `
		SELECT c.id, c.name, c.kind, c.creator_id, c.created_at,
			COALESCE(array_agg(m.principal_id) FILTER (WHERE m.principal_id IS NOT NULL), '{}')
		FROM channels c
		LEFT JOIN channel_members m ON m.channel_id = c.id
		GROUP BY c.id
		ORDER BY c.created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []domain.Channel
	for rows.Next() {
		var ch domain.Channel
		if err := rows.Scan(
			&ch.ID, &ch.Name, &ch.Kind, &ch.CreatorID, &ch.CreatedAt, &ch.MemberIDs,
		); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (r *ChannelRepo) AddMembers(ctx context.Context, channelID uuid.UUID, memberIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, memberID := range memberIDs {
		if err := addMember(ctx, tx, channelID, memberID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ChannelRepo) loadMembers(ctx context.Context, ch *domain.Channel) error {
	rows, err := r.pool.Query(ctx,
		`SELECT principal_id FROM channel_members WHERE channel_id = $1`, ch.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ch.MemberIDs = append(ch.MemberIDs, id)
	}
	return rows.Err()
}

func addMember(ctx context.Context, tx pgx.Tx, channelID, memberID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO channel_members (channel_id, principal_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, channelID, memberID)
	return err
}
