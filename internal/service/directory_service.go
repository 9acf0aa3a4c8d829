package service

import (
	"context"

	"github.com/avukic/skolar/internal/access"
	"github.com/avukic/skolar/internal/domain"
	"github.com/avukic/skolar/internal/repository"
)

// DirectoryService lists the channels visible to a principal: every stored
// channel filtered through the access controller. It is read-only; any
// staleness is resolved by re-fetching, not by incremental sync.
type DirectoryService struct {
	channelRepo repository.ChannelRepository
}

func NewDirectoryService(channelRepo repository.ChannelRepository) *DirectoryService {
	return &DirectoryService{channelRepo: channelRepo}
}

func (s *DirectoryService) List(ctx context.Context, p domain.Principal) ([]domain.Channel, error) {
	all, err := s.channelRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	visible := []domain.Channel{}
	for _, ch := range all {
		if access.CanAccess(p, &ch) {
			visible = append(visible, ch)
		}
	}
	return visible, nil
}
