package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avukic/skolar/internal/access"
	"github.com/avukic/skolar/internal/domain"
	"github.com/avukic/skolar/internal/repository"
)

type ChannelService struct {
	channelRepo repository.ChannelRepository
}

func NewChannelService(channelRepo repository.ChannelRepository) *ChannelService {
	return &ChannelService{channelRepo: channelRepo}
}

type CreateChannelInput struct {
	Name string `json:"name"`
}

func (s *ChannelService) Create(ctx context.Context, p domain.Principal, input CreateChannelInput) (*domain.Channel, error) {
	kind := domain.ChannelAdhoc
	if access.IsRoleChannel(input.Name) {
		// The fixed role-scoped channels are portal infrastructure; only
		// admins may (re)create them.
		if p.Role != domain.RoleAdmin {
			return nil, ErrForbidden
		}
		kind = domain.ChannelRole
	}

	existing, err := s.channelRepo.GetByName(ctx, input.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrChannelNameTaken
	}

	ch := &domain.Channel{
		ID:        uuid.New(),
		Name:      input.Name,
		Kind:      kind,
		CreatorID: p.ID,
		CreatedAt: time.Now(),
	}
	if err := s.channelRepo.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("creating channel: %w", err)
	}
	return ch, nil
}

// Invite grows the member set. Membership never shrinks and channels are
// never deleted; there is deliberately no removal path.
func (s *ChannelService) Invite(ctx context.Context, p domain.Principal, channelID uuid.UUID, memberIDs []uuid.UUID) (*domain.Channel, error) {
	ch, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrChannelNotFound
	}
	if !access.CanAccess(p, ch) {
		return nil, ErrForbidden
	}

	if err := s.channelRepo.AddMembers(ctx, channelID, memberIDs); err != nil {
		return nil, fmt.Errorf("adding members: %w", err)
	}

	return s.channelRepo.GetByID(ctx, channelID)
}

func (s *ChannelService) Get(ctx context.Context, p domain.Principal, channelID uuid.UUID) (*domain.Channel, error) {
	ch, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrChannelNotFound
	}
	if !access.CanAccess(p, ch) {
		return nil, ErrForbidden
	}
	return ch, nil
}
