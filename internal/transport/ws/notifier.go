package ws

import (
	"log"

	"github.com/google/uuid"

	"github.com/avukic/skolar/internal/domain"
)

// HubNotifier implements service.Notifier by routing mutation events
// through the Hub. Every event goes to all connections on the scope,
// including the mutating principal's own, so client reconcilers can treat
// the broadcast echo as the source of truth.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) MessageCreated(msg *domain.Message) {
	n.push(EventTypeMessageCreated, msg)
}

func (n *HubNotifier) MessageEdited(msg *domain.Message) {
	n.push(EventTypeMessageEdited, msg)
}

func (n *HubNotifier) ReactionAdded(msg *domain.Message) {
	n.push(EventTypeReactionAdded, msg)
}

func (n *HubNotifier) MessageDeleted(scope domain.Scope, messageID uuid.UUID) {
	evt, err := NewEvent(EventTypeMessageDeleted, scope, MessageDeletedPayload{ID: messageID, Scope: scope})
	if err != nil {
		log.Printf("ws notifier: marshal error: %v", err)
		return
	}
	n.hub.Broadcast(scope, evt)
}

func (n *HubNotifier) push(eventType string, msg *domain.Message) {
	evt, err := NewEvent(eventType, msg.Scope, MessagePayload{Message: *msg})
	if err != nil {
		log.Printf("ws notifier: marshal error: %v", err)
		return
	}
	n.hub.Broadcast(msg.Scope, evt)
}
