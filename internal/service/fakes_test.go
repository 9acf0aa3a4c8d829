package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avukic/skolar/internal/domain"
	"github.com/avukic/skolar/internal/repository"
)

// In-memory repositories implementing the store interfaces, so service
// semantics are testable without Postgres.

type fakeChannelRepo struct {
	mu       sync.Mutex
	channels map[uuid.UUID]*domain.Channel
}

func newFakeChannelRepo() *fakeChannelRepo {
	return &fakeChannelRepo{channels: make(map[uuid.UUID]*domain.Channel)}
}

func (r *fakeChannelRepo) Create(_ context.Context, ch *domain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ch
	r.channels[ch.ID] = &cp
	return nil
}

func (r *fakeChannelRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	if !ok {
		return nil, nil
	}
	cp := *ch
	cp.MemberIDs = append([]uuid.UUID(nil), ch.MemberIDs...)
	return &cp, nil
}

func (r *fakeChannelRepo) GetByName(_ context.Context, name string) (*domain.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.channels {
		if ch.Name == name {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeChannelRepo) List(_ context.Context) ([]domain.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Channel
	for _, ch := range r.channels {
		out = append(out, *ch)
	}
	return out, nil
}

func (r *fakeChannelRepo) AddMembers(_ context.Context, channelID uuid.UUID, memberIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := r.channels[channelID]
	for _, id := range memberIDs {
		if !ch.HasMember(id) {
			ch.MemberIDs = append(ch.MemberIDs, id)
		}
	}
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*domain.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[uuid.UUID]*domain.Message)}
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ClientKey != "" {
		for _, m := range r.messages {
			if m.Scope == msg.Scope && m.ClientKey == msg.ClientKey {
				return repository.ErrDuplicateClientKey
			}
		}
	}
	cp := *msg
	r.messages[msg.ID] = &cp
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *msg
	cp.Reactions = append([]domain.Reaction(nil), msg.Reactions...)
	return &cp, nil
}

func (r *fakeMessageRepo) GetByClientKey(_ context.Context, scope domain.Scope, clientKey string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.Scope == scope && m.ClientKey == clientKey {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeMessageRepo) ListByScope(_ context.Context, scope domain.Scope, before *uuid.UUID, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.messages {
		if m.Scope != scope || m.Deleted() {
			continue
		}
		if before != nil {
			cutoff, ok := r.messages[*before]
			if ok && !m.CreatedAt.Before(cutoff.CreatedAt) {
				continue
			}
		}
		out = append(out, *m)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.Before(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *fakeMessageRepo) Update(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.messages[msg.ID]
	if !ok || stored.Deleted() || stored.Version != msg.Version {
		return repository.ErrStaleVersion
	}
	now := time.Now()
	stored.Body = msg.Body
	stored.Version++
	stored.EditedAt = &now
	return nil
}

func (r *fakeMessageRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.messages[id]
	if !ok || stored.Deleted() {
		return nil
	}
	now := time.Now()
	stored.DeletedAt = &now
	return nil
}

func (r *fakeMessageRepo) AddReaction(_ context.Context, messageID uuid.UUID, reaction domain.Reaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.messages[messageID]
	if stored.HasReaction(reaction.Emoji, reaction.PrincipalID) {
		return nil
	}
	stored.Reactions = append(stored.Reactions, reaction)
	return nil
}

// fakeNotifier records broadcast calls in order.
type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) record(kind string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind)
}

func (n *fakeNotifier) MessageCreated(*domain.Message) { n.record("created") }
func (n *fakeNotifier) MessageEdited(*domain.Message) { n.record("edited") }
func (n *fakeNotifier) MessageDeleted(domain.Scope, uuid.UUID) { n.record("deleted") }
func (n *fakeNotifier) ReactionAdded(*domain.Message) { n.record("reaction") }

func (n *fakeNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}
