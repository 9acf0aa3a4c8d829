package client

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avukic/skolar/internal/domain"
)

// DeliveryState tracks a locally authored message through its round trip.
type DeliveryState string

const (
	// DeliveryPending: shown optimistically, not yet confirmed.
	DeliveryPending DeliveryState = "pending"
	// DeliverySent: confirmed by the server, either by ack or by echo.
	DeliverySent DeliveryState = "sent"
	// DeliveryFailed: the mutation call errored. The entry stays visible
	// so the author can retry or discard it explicitly.
	DeliveryFailed DeliveryState = "failed"
)

// Entry is one timeline row: the message plus its delivery state.
type Entry struct {
	Message *domain.Message
	State   DeliveryState

	arrival int
}

const echoMatchWindow = 2 * time.Second

// Reconciler merges three message sources for one scope into a single
// consistent timeline: fetched history, optimistic local sends, and the
// live push stream. The send echo and the send ack race freely; either
// order converges on exactly one entry per message, matched by id first,
// then by the client-generated idempotency key, then by an
// author+body+time-window heuristic for echoes that lost their key.
type Reconciler struct {
	mu      sync.Mutex
	closed  bool
	seq     int
	entries []*Entry
	byID    map[uuid.UUID]*Entry
	byKey   map[string]*Entry
}

func NewReconciler() *Reconciler {
	return &Reconciler{
		byID:  make(map[uuid.UUID]*Entry),
		byKey: make(map[string]*Entry),
	}
}

// NewDraft builds an optimistic local message carrying a fresh
// idempotency key. The same draft is handed to ApplyLocal and to the
// send call, so retries of the call land on the same server-side row.
func NewDraft(scope domain.Scope, authorID uuid.UUID, body string) *domain.Message {
	return &domain.Message{
		Scope:     scope,
		AuthorID:  authorID,
		Body:      body,
		ClientKey: uuid.NewString(),
		CreatedAt: time.Now(),
	}
}

// ApplyHistory seeds the timeline from a fetched page. Rows already
// known by id are refreshed in place, not duplicated.
func (r *Reconciler) ApplyHistory(msgs []*domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for _, m := range msgs {
		if e, ok := r.byID[m.ID]; ok {
			e.Message = m
			e.State = DeliverySent
			continue
		}
		r.insert(m, DeliverySent)
	}
}

// ApplyLocal records an optimistic pending entry for a draft about to be
// sent.
func (r *Reconciler) ApplyLocal(draft *domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.insert(draft, DeliveryPending)
}

// ApplyAck resolves a send call. A nil err adopts the server's copy of
// the message; a non-nil err marks the entry failed but keeps it on the
// timeline. After Close the ack is silently discarded: cancelling
// interest in a scope does not turn an in-flight send into an error.
func (r *Reconciler) ApplyAck(clientKey string, msg *domain.Message, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	e, ok := r.byKey[clientKey]
	if !ok {
		if err != nil || msg == nil {
			return
		}
		// The echo may have created the entry already, indexed by id.
		if known, found := r.byID[msg.ID]; found {
			known.Message = msg
			known.State = DeliverySent
			return
		}
		r.insert(msg, DeliverySent)
		return
	}
	if err != nil {
		e.State = DeliveryFailed
		return
	}
	e.Message = msg
	e.State = DeliverySent
	r.byID[msg.ID] = e
}

// ApplyEvent folds one push event into the timeline. Edits, deletes and
// reactions for messages the timeline has never seen are dropped: a
// mutation event without its base row carries nothing displayable.
func (r *Reconciler) ApplyEvent(evt *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	switch evt.Type {
	case EventMessageCreated:
		msg, err := evt.Message()
		if err != nil {
			return err
		}
		r.applyCreated(msg)

	case EventMessageEdited, EventReactionAdded:
		msg, err := evt.Message()
		if err != nil {
			return err
		}
		e, ok := r.byID[msg.ID]
		if !ok {
			return nil
		}
		if msg.Version < e.Message.Version {
			// Out-of-order delivery: a stale payload must not regress
			// an entry that already reflects a newer edit.
			return nil
		}
		e.Message = msg
		e.State = DeliverySent

	case EventMessageDeleted:
		id, _, err := evt.Deleted()
		if err != nil {
			return err
		}
		r.remove(id)
	}
	return nil
}

func (r *Reconciler) applyCreated(msg *domain.Message) {
	if e, ok := r.byID[msg.ID]; ok {
		e.Message = msg
		e.State = DeliverySent
		return
	}
	if msg.ClientKey != "" {
		if e, ok := r.byKey[msg.ClientKey]; ok {
			e.Message = msg
			e.State = DeliverySent
			r.byID[msg.ID] = e
			return
		}
	}
	if e := r.matchPending(msg); e != nil {
		e.Message = msg
		e.State = DeliverySent
		r.byID[msg.ID] = e
		return
	}
	r.insert(msg, DeliverySent)
}

// matchPending is the last-resort echo match: same author, same body,
// created within a short window of the optimistic entry.
func (r *Reconciler) matchPending(msg *domain.Message) *Entry {
	for _, e := range r.entries {
		if e.State != DeliveryPending {
			continue
		}
		if e.Message.AuthorID != msg.AuthorID || e.Message.Body != msg.Body {
			continue
		}
		delta := msg.CreatedAt.Sub(e.Message.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= echoMatchWindow {
			return e
		}
	}
	return nil
}

// Timeline returns the entries ordered by creation time, with arrival
// order breaking ties.
func (r *Reconciler) Timeline() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Message.CreatedAt.Equal(out[j].Message.CreatedAt) {
			return out[i].Message.CreatedAt.Before(out[j].Message.CreatedAt)
		}
		return out[i].arrival < out[j].arrival
	})
	return out
}

// Close stops the reconciler. Later acks and events become no-ops.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *Reconciler) insert(msg *domain.Message, state DeliveryState) {
	e := &Entry{Message: msg, State: state, arrival: r.seq}
	r.seq++
	r.entries = append(r.entries, e)
	if msg.ID != uuid.Nil {
		r.byID[msg.ID] = e
	}
	if msg.ClientKey != "" {
		r.byKey[msg.ClientKey] = e
	}
}

func (r *Reconciler) remove(id uuid.UUID) {
	e, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	if e.Message.ClientKey != "" {
		delete(r.byKey, e.Message.ClientKey)
	}
	for i, cur := range r.entries {
		if cur == e {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
}
