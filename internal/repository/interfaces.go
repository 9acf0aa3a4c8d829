package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/avukic/skolar/internal/domain"
)

var (
	// ErrStaleVersion is returned by MessageRepository.Update when the
	// stored version no longer matches the version the caller read.
	ErrStaleVersion = errors.New("message version is stale")
	// ErrDuplicateClientKey is returned by Create when a message with the
	// same client key already exists in the scope.
	ErrDuplicateClientKey = errors.New("client key already used in scope")
)

type ChannelRepository interface {
	Create(ctx context.Context, channel *domain.Channel) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error)
	GetByName(ctx context.Context, name string) (*domain.Channel, error)
	List(ctx context.Context) ([]domain.Channel, error)
	// AddMembers grows the member set; adding an existing member is a
	// no-op. Membership never shrinks.
	AddMembers(ctx context.Context, channelID uuid.UUID, memberIDs []uuid.UUID) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	GetByClientKey(ctx context.Context, scope domain.Scope, clientKey string) (*domain.Message, error)
	ListByScope(ctx context.Context, scope domain.Scope, before *uuid.UUID, limit int) ([]domain.Message, error)
	// Update applies an edit against the version stored in msg.Version and
	// bumps it; returns ErrStaleVersion if another writer got there first.
	Update(ctx context.Context, msg *domain.Message) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// AddReaction is idempotent: re-adding an existing (emoji, principal)
	// pair is a no-op.
	AddReaction(ctx context.Context, messageID uuid.UUID, reaction domain.Reaction) error
}
