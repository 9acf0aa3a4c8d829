package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avukic/skolar/internal/access"
	"github.com/avukic/skolar/internal/domain"
	"github.com/avukic/skolar/internal/repository"
)

// Notifier broadcasts real-time events to connected clients. Every event
// goes to all connections on the mutation's scope, including the mutating
// principal's own connection: the broadcast echo, not the synchronous
// response, is the single source of truth for client timelines.
type Notifier interface {
	MessageCreated(msg *domain.Message)
	MessageEdited(msg *domain.Message)
	MessageDeleted(scope domain.Scope, messageID uuid.UUID)
	ReactionAdded(msg *domain.Message)
}

// Indexer receives message mutations for the search index.
type Indexer interface {
	Index(msg *domain.Message)
	Delete(messageID string)
}

type MessageService struct {
	messageRepo repository.MessageRepository
	channelRepo repository.ChannelRepository
	notifier    Notifier
	indexer     Indexer
}

func NewMessageService(messageRepo repository.MessageRepository, channelRepo repository.ChannelRepository) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		channelRepo: channelRepo,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetIndexer sets the search indexer (optional dependency).
func (s *MessageService) SetIndexer(i Indexer) {
	s.indexer = i
}

type AttachmentInput struct {
	StoragePath string `json:"storage_path"`
	Filename    string `json:"filename"`
}

type SendMessageInput struct {
	Body string `json:"body"`
	// ClientKey is the client-generated idempotency key. Resending the
	// same key into the same scope returns the already-stored message
	// instead of creating a duplicate.
	ClientKey   string            `json:"client_key,omitempty"`
	Attachments []AttachmentInput `json:"attachments,omitempty"`
}

type EditMessageInput struct {
	Body string `json:"body"`
	// Version must be the version the editor read. A stale version is
	// rejected with ErrVersionConflict rather than silently overwritten.
	Version int `json:"version"`
}

type HistoryPage struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

func (s *MessageService) Send(ctx context.Context, p domain.Principal, scope domain.Scope, input SendMessageInput) (*domain.Message, error) {
	if err := s.checkScopeAccess(ctx, p, scope); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:         uuid.New(),
		Scope:      scope,
		AuthorID:   p.ID,
		AuthorName: p.DisplayName,
		Body:       input.Body,
		ClientKey:  input.ClientKey,
		Version:    1,
		CreatedAt:  time.Now(),
	}
	for _, att := range input.Attachments {
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			ID:          uuid.New(),
			MessageID:   msg.ID,
			StoragePath: att.StoragePath,
			Filename:    att.Filename,
		})
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrDuplicateClientKey) && input.ClientKey != "" {
			// Retried send: the first attempt already committed.
			return s.messageRepo.GetByClientKey(ctx, scope, input.ClientKey)
		}
		return nil, fmt.Errorf("creating message: %w", err)
	}

	full, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	full.AuthorName = p.DisplayName

	if s.notifier != nil {
		s.notifier.MessageCreated(full)
	}
	if s.indexer != nil {
		s.indexer.Index(full)
	}

	return full, nil
}

func (s *MessageService) History(ctx context.Context, p domain.Principal, scope domain.Scope, before *uuid.UUID, limit int) (*HistoryPage, error) {
	if err := s.checkScopeAccess(ctx, p, scope); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	// Fetch limit+1 to learn whether an older page exists.
	messages, err := s.messageRepo.ListByScope(ctx, scope, before, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[len(messages)-limit:]
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return &HistoryPage{Messages: messages, HasMore: hasMore}, nil
}

func (s *MessageService) Edit(ctx context.Context, p domain.Principal, messageID uuid.UUID, input EditMessageInput) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.AuthorID != p.ID {
		return nil, ErrForbidden
	}
	if msg.Deleted() {
		// Editing an already-deleted message is a no-op: the edit can no
		// longer matter and the end state matches nobody's surprise.
		return msg, nil
	}

	msg.Body = input.Body
	msg.Version = input.Version
	if err := s.messageRepo.Update(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("updating message: %w", err)
	}

	updated, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.MessageEdited(updated)
	}
	if s.indexer != nil {
		s.indexer.Index(updated)
	}

	return updated, nil
}

func (s *MessageService) Delete(ctx context.Context, p domain.Principal, messageID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.AuthorID != p.ID {
		return ErrForbidden
	}
	if msg.Deleted() {
		// Already deleted: success, the end state matches intent.
		return nil
	}

	if err := s.messageRepo.SoftDelete(ctx, messageID); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.MessageDeleted(msg.Scope, messageID)
	}
	if s.indexer != nil {
		s.indexer.Delete(messageID.String())
	}

	return nil
}

// React adds a reaction; any principal with access to the message's scope
// may react, not only the author. Adding the same reaction twice is a
// no-op.
func (s *MessageService) React(ctx context.Context, p domain.Principal, messageID uuid.UUID, emoji string) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.Deleted() {
		return nil, ErrMessageNotFound
	}
	if err := s.checkScopeAccess(ctx, p, msg.Scope); err != nil {
		return nil, err
	}

	reaction := domain.Reaction{Emoji: emoji, PrincipalID: p.ID}
	if err := s.messageRepo.AddReaction(ctx, messageID, reaction); err != nil {
		return nil, fmt.Errorf("adding reaction: %w", err)
	}

	updated, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.ReactionAdded(updated)
	}

	return updated, nil
}

// AuthorizeScope exposes the scope access check to the push transport's
// open handshake.
func (s *MessageService) AuthorizeScope(ctx context.Context, p domain.Principal, scope domain.Scope) error {
	return s.checkScopeAccess(ctx, p, scope)
}

// checkScopeAccess re-enforces the access rules server-side on every read
// and write path; client-side checks are a UX convenience only.
func (s *MessageService) checkScopeAccess(ctx context.Context, p domain.Principal, scope domain.Scope) error {
	if channelID, ok := scope.ChannelID(); ok {
		ch, err := s.channelRepo.GetByID(ctx, channelID)
		if err != nil {
			return err
		}
		if ch == nil {
			return ErrChannelNotFound
		}
		if !access.CanAccess(p, ch) {
			return ErrForbidden
		}
		return nil
	}
	if scope.Includes(p.ID) {
		return nil
	}
	return ErrForbidden
}
