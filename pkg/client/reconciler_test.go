package client

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/avukic/skolar/internal/domain"
)

func messageEvent(t *testing.T, typ string, msg *domain.Message) *Event {
	t.Helper()
	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &Event{Type: typ, Scope: msg.Scope, Payload: payload}
}

func deletedEvent(t *testing.T, id uuid.UUID, scope domain.Scope) *Event {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"id": id, "scope": scope})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &Event{Type: EventMessageDeleted, Scope: scope, Payload: payload}
}

// serverCopy is what the server would hand back for the draft: same key
// and body, with identity and timestamps assigned.
func serverCopy(draft *domain.Message) *domain.Message {
	cp := *draft
	cp.ID = uuid.New()
	cp.Version = 1
	cp.CreatedAt = time.Now()
	return &cp
}

func singleEntry(t *testing.T, r *Reconciler) *Entry {
	t.Helper()
	timeline := r.Timeline()
	if len(timeline) != 1 {
		t.Fatalf("timeline has %d entries, want 1", len(timeline))
	}
	return timeline[0]
}

func TestReconcilerEchoBeforeAck(t *testing.T) {
	r := NewReconciler()
	author := uuid.New()
	draft := NewDraft("channel:1", author, "hello")
	r.ApplyLocal(draft)

	confirmed := serverCopy(draft)
	if err := r.ApplyEvent(messageEvent(t, EventMessageCreated, confirmed)); err != nil {
		t.Fatalf("ApplyEvent: %v", err)
	}
	r.ApplyAck(draft.ClientKey, confirmed, nil)

	e := singleEntry(t, r)
	if e.State != DeliverySent {
		t.Errorf("state = %v, want sent", e.State)
	}
	if e.Message.ID != confirmed.ID {
		t.Error("entry did not adopt the server identity")
	}
}

func TestReconcilerAckBeforeEcho(t *testing.T) {
	r := NewReconciler()
	author := uuid.New()
	draft := NewDraft("channel:1", author, "hello")
	r.ApplyLocal(draft)

	confirmed := serverCopy(draft)
	r.ApplyAck(draft.ClientKey, confirmed, nil)
	if err := r.ApplyEvent(messageEvent(t, EventMessageCreated, confirmed)); err != nil {
		t.Fatalf("ApplyEvent: %v", err)
	}

	e := singleEntry(t, r)
	if e.State != DeliverySent {
		t.Errorf("state = %v, want sent", e.State)
	}
}

func TestReconcilerEchoWithoutKeyMatchesByHeuristic(t *testing.T) {
	r := NewReconciler()
	author := uuid.New()
	draft := NewDraft("channel:1", author, "hello")
	r.ApplyLocal(draft)

	confirmed := serverCopy(draft)
	confirmed.ClientKey = ""
	if err := r.ApplyEvent(messageEvent(t, EventMessageCreated, confirmed)); err != nil {
		t.Fatalf("ApplyEvent: %v", err)
	}

	e := singleEntry(t, r)
	if e.State != DeliverySent {
		t.Errorf("state = %v, want sent", e.State)
	}
}

func TestReconcilerFailedSendStaysVisible(t *testing.T) {
	r := NewReconciler()
	draft := NewDraft("channel:1", uuid.New(), "hello")
	r.ApplyLocal(draft)

	r.ApplyAck(draft.ClientKey, nil, errors.New("boom"))

	e := singleEntry(t, r)
	if e.State != DeliveryFailed {
		t.Errorf("state = %v, want failed", e.State)
	}
	if e.Message.Body != "hello" {
		t.Errorf("body = %q, want the original draft body", e.Message.Body)
	}
}

func TestReconcilerDropsMutationsForUnknownMessages(t *testing.T) {
	r := NewReconciler()
	history := &domain.Message{
		ID: uuid.New(), Scope: "channel:1", AuthorID: uuid.New(),
		Body: "known", CreatedAt: time.Now(),
	}
	r.ApplyHistory([]*domain.Message{history})

	ghost := &domain.Message{
		ID: uuid.New(), Scope: "channel:1", AuthorID: uuid.New(),
		Body: "edited body", CreatedAt: time.Now(),
	}
	if err := r.ApplyEvent(messageEvent(t, EventMessageEdited, ghost)); err != nil {
		t.Fatalf("ApplyEvent edit: %v", err)
	}
	if err := r.ApplyEvent(deletedEvent(t, uuid.New(), "channel:1")); err != nil {
		t.Fatalf("ApplyEvent delete: %v", err)
	}

	e := singleEntry(t, r)
	if e.Message.ID != history.ID || e.Message.Body != "known" {
		t.Error("timeline changed on mutations for unknown messages")
	}
}

func TestReconcilerIgnoresStaleEditVersions(t *testing.T) {
	r := NewReconciler()
	msg := &domain.Message{
		ID: uuid.New(), Scope: "channel:1", AuthorID: uuid.New(),
		Body: "v1", Version: 1, CreatedAt: time.Now(),
	}
	r.ApplyHistory([]*domain.Message{msg})

	v3 := *msg
	v3.Body = "v3"
	v3.Version = 3
	if err := r.ApplyEvent(messageEvent(t, EventMessageEdited, &v3)); err != nil {
		t.Fatalf("ApplyEvent v3: %v", err)
	}

	// the older edit arrives late; it must not regress the entry
	v2 := *msg
	v2.Body = "v2"
	v2.Version = 2
	if err := r.ApplyEvent(messageEvent(t, EventMessageEdited, &v2)); err != nil {
		t.Fatalf("ApplyEvent v2: %v", err)
	}

	e := singleEntry(t, r)
	if e.Message.Body != "v3" || e.Message.Version != 3 {
		t.Errorf("entry = %q v%d after out-of-order edit, want v3/3", e.Message.Body, e.Message.Version)
	}
}

func TestReconcilerDeleteRemovesEntry(t *testing.T) {
	r := NewReconciler()
	msg := &domain.Message{
		ID: uuid.New(), Scope: "channel:1", AuthorID: uuid.New(),
		Body: "bye", CreatedAt: time.Now(),
	}
	r.ApplyHistory([]*domain.Message{msg})

	if err := r.ApplyEvent(deletedEvent(t, msg.ID, msg.Scope)); err != nil {
		t.Fatalf("ApplyEvent: %v", err)
	}
	if got := len(r.Timeline()); got != 0 {
		t.Errorf("timeline has %d entries after delete, want 0", got)
	}
}

func TestReconcilerLateAckAfterCloseIsNoOp(t *testing.T) {
	r := NewReconciler()
	draft := NewDraft("channel:1", uuid.New(), "hello")
	r.ApplyLocal(draft)
	r.Close()

	// neither a success nor a failure ack may mutate a closed timeline
	r.ApplyAck(draft.ClientKey, serverCopy(draft), nil)
	r.ApplyAck(draft.ClientKey, nil, errors.New("boom"))

	e := singleEntry(t, r)
	if e.State != DeliveryPending {
		t.Errorf("state = %v, want pending untouched after Close", e.State)
	}
}

func TestReconcilerTimelineOrdering(t *testing.T) {
	r := NewReconciler()
	base := time.Now()
	later := &domain.Message{
		ID: uuid.New(), Scope: "channel:1", AuthorID: uuid.New(),
		Body: "second", CreatedAt: base.Add(time.Second),
	}
	earlier := &domain.Message{
		ID: uuid.New(), Scope: "channel:1", AuthorID: uuid.New(),
		Body: "first", CreatedAt: base,
	}
	tied := &domain.Message{
		ID: uuid.New(), Scope: "channel:1", AuthorID: uuid.New(),
		Body: "third", CreatedAt: base.Add(time.Second),
	}

	// arrival order differs from creation order
	r.ApplyHistory([]*domain.Message{later, earlier, tied})

	timeline := r.Timeline()
	var bodies []string
	for _, e := range timeline {
		bodies = append(bodies, e.Message.Body)
	}
	want := []string{"first", "second", "third"}
	for i := range want {
		if bodies[i] != want[i] {
			t.Fatalf("timeline order = %v, want %v", bodies, want)
		}
	}
}

func TestReconcilerHistoryRefreshesKnownRows(t *testing.T) {
	r := NewReconciler()
	msg := &domain.Message{
		ID: uuid.New(), Scope: "channel:1", AuthorID: uuid.New(),
		Body: "v1", CreatedAt: time.Now(), Version: 1,
	}
	r.ApplyHistory([]*domain.Message{msg})

	updated := *msg
	updated.Body = "v2"
	updated.Version = 2
	r.ApplyHistory([]*domain.Message{&updated})

	e := singleEntry(t, r)
	if e.Message.Body != "v2" || e.Message.Version != 2 {
		t.Errorf("entry = %q v%d, want refreshed copy", e.Message.Body, e.Message.Version)
	}
}
