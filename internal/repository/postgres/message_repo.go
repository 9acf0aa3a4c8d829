package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avukic/skolar/internal/domain"
	"github.com/avukic/skolar/internal/repository"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

const messageColumns = `m.id, m.scope, m.author_id, m.body, m.client_key,
	m.version, m.created_at, m.edited_at, m.deleted_at`

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO messages (id, scope, author_id, body, client_key, version, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`
	_, err = tx.Exec(ctx, query,
		msg.ID, string(msg.Scope), msg.AuthorID, msg.Body, msg.ClientKey, msg.Version, msg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateClientKey
		}
		return err
	}

	for _, att := range msg.Attachments {
		_, err := tx.Exec(ctx, `
			INSERT INTO attachments (id, message_id, storage_path, filename)
			VALUES ($1, $2, $3, $4)`,
			att.ID, msg.ID, att.StoragePath, att.Filename,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM messages m WHERE m.id = $1`, messageColumns)
	msg, err := r.scanOne(ctx, query, id)
	if err != nil || msg == nil {
		return msg, err
	}
	if err := r.loadDetails(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *MessageRepo) GetByClientKey(ctx context.Context, scope domain.Scope, clientKey string) (*domain.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM messages m
		WHERE m.scope = $1 AND m.client_key = $2`, messageColumns)
	msg, err := r.scanOne(ctx, query, string(scope), clientKey)
	if err != nil || msg == nil {
		return msg, err
	}
	if err := r.loadDetails(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *MessageRepo) ListByScope(ctx context.Context, scope domain.Scope, before *uuid.UUID, limit int) ([]domain.Message, error) {
	var query string
	var args []any

	if before != nil {
		query = fmt.Sprintf(`
			SELECT %s FROM messages m
			WHERE m.scope = $1 AND m.deleted_at IS NULL
				AND m.created_at < (SELECT created_at FROM messages WHERE id = $2)
			ORDER BY m.created_at DESC
			LIMIT %d`, messageColumns, limit)
		args = []any{string(scope), *before}
	} else {
		query = fmt.Sprintf(`
			SELECT %s FROM messages m
			WHERE m.scope = $1 AND m.deleted_at IS NULL
			ORDER BY m.created_at DESC
			LIMIT %d`, messageColumns, limit)
		args = []any{string(scope)}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returns newest-first; reverse to chronological.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	for i := range messages {
		if err := r.loadDetails(ctx, &messages[i]); err != nil {
			return nil, err
		}
	}
	return messages, nil
}

// Update applies an edit against msg.Version. The WHERE clause on version
// is the optimistic-concurrency check: a concurrent editor that committed
// first bumps the version and this update matches zero rows.
func (r *MessageRepo) Update(ctx context.Context, msg *domain.Message) error {
	query := `
		UPDATE messages
		SET body = $1, edited_at = $2, version = version + 1
		WHERE id = $3 AND version = $4 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, msg.Body, time.Now(), msg.ID, msg.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrStaleVersion
	}
	return nil
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	// Idempotent: deleting an already-deleted message matches zero rows
	// and that is fine, the end state is what the caller asked for.
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		time.Now(), id)
	return err
}

func (r *MessageRepo) AddReaction(ctx context.Context, messageID uuid.UUID, reaction domain.Reaction) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reactions (message_id, emoji, principal_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`,
		messageID, reaction.Emoji, reaction.PrincipalID)
	return err
}

func (r *MessageRepo) scanOne(ctx context.Context, query string, args ...any) (*domain.Message, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

func (r *MessageRepo) loadDetails(ctx context.Context, msg *domain.Message) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, storage_path, filename
		FROM attachments
		WHERE message_id = $1
		ORDER BY id`, msg.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		att := domain.Attachment{MessageID: msg.ID}
		if err := rows.Scan(&att.ID, &att.StoragePath, &att.Filename); err != nil {
			return err
		}
		msg.Attachments = append(msg.Attachments, att)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT emoji, principal_id
		FROM reactions
		WHERE message_id = $1`, msg.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var re domain.Reaction
		if err := rows.Scan(&re.Emoji, &re.PrincipalID); err != nil {
			return err
		}
		msg.Reactions = append(msg.Reactions, re)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var msg domain.Message
	var scope string
	var clientKey *string
	err := row.Scan(
		&msg.ID, &scope, &msg.AuthorID, &msg.Body, &clientKey,
		&msg.Version, &msg.CreatedAt, &msg.EditedAt, &msg.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	msg.Scope = domain.Scope(scope)
	if clientKey != nil {
		msg.ClientKey = *clientKey
	}
	return &msg, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "23505")
}
