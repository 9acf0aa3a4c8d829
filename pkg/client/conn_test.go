package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeTransport struct {
	inbox chan *Event
	done  chan struct{}
	once  sync.Once

	mu     sync.Mutex
	writes []any
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbox: make(chan *Event, 8),
		done:  make(chan struct{}),
	}
}

func (t *fakeTransport) ReadEvent(ctx context.Context) (*Event, error) {
	select {
	case evt := <-t.inbox:
		return evt, nil
	case <-t.done:
		return nil, errors.New("transport closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTransport) WriteJSON(ctx context.Context, v any) error {
	select {
	case <-t.done:
		return errors.New("transport closed")
	default:
	}
	t.mu.Lock()
	t.writes = append(t.writes, v)
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}

// fakeDialer consumes failures from its script, then hands out fresh
// fake transports.
type fakeDialer struct {
	mu    sync.Mutex
	fails []error
	dials int
	conns []*fakeTransport
}

func (d *fakeDialer) Dial(ctx context.Context, scope string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.fails) > 0 {
		err := d.fails[0]
		d.fails = d.fails[1:]
		return nil, err
	}
	t := newFakeTransport()
	d.conns = append(d.conns, t)
	return t, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) transport(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func waitState(t *testing.T, states <-chan State, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func openTestConn(t *testing.T, dialer *fakeDialer) (*Conn, <-chan State) {
	t.Helper()
	states := make(chan State, 32)
	conn, err := Open(context.Background(), dialer, "channel:1",
		WithBackoff(time.Millisecond, 5*time.Millisecond),
		WithPingInterval(time.Hour),
		WithStateListener(func(s State) { states <- s }),
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(conn.Close)
	return conn, states
}

func TestOpenRetriesTimedOutHandshakeOnce(t *testing.T) {
	dialer := &fakeDialer{fails: []error{timeoutError{}}}

	conn, states := openTestConn(t, dialer)
	waitState(t, states, StateOpen)

	if got := dialer.dialCount(); got != 2 {
		t.Errorf("dial count = %d, want 2 (timed-out handshake retried once)", got)
	}
	if conn.State() != StateOpen {
		t.Errorf("state = %v, want open", conn.State())
	}
}

func TestOpenSurfacesNonTimeoutDialError(t *testing.T) {
	dialFail := errors.New("connection refused")
	dialer := &fakeDialer{fails: []error{dialFail}}

	if _, err := Open(context.Background(), dialer, "channel:1"); !errors.Is(err, dialFail) {
		t.Fatalf("Open = %v, want the dial error surfaced without retry", err)
	}
	if got := dialer.dialCount(); got != 1 {
		t.Errorf("dial count = %d, want 1", got)
	}
}

func TestConnReconnectsAfterDrop(t *testing.T) {
	dialFail := errors.New("dial failed")
	dialer := &fakeDialer{}

	conn, states := openTestConn(t, dialer)
	waitState(t, states, StateOpen)

	// the next two redials fail before the third succeeds
	dialer.mu.Lock()
	dialer.fails = []error{dialFail, dialFail}
	dialer.mu.Unlock()

	// simulate the network dropping the handle
	dialer.transport(0).Close()

	waitState(t, states, StateDropped)
	waitState(t, states, StateConnecting)
	waitState(t, states, StateOpen)

	if got := dialer.dialCount(); got != 4 {
		t.Errorf("dial count = %d, want 4 (open + 2 failures + success)", got)
	}
	if conn.State() != StateOpen {
		t.Errorf("state = %v, want open", conn.State())
	}
}

func TestSendWhileReconnectingReturnsNotConnected(t *testing.T) {
	// every redial fails, so the handle stays in connecting
	fails := make([]error, 64)
	for i := range fails {
		fails[i] = errors.New("dial failed")
	}
	dialer := &fakeDialer{}

	conn, states := openTestConn(t, dialer)
	waitState(t, states, StateOpen)

	dialer.mu.Lock()
	dialer.fails = fails
	dialer.mu.Unlock()
	dialer.transport(0).Close()
	waitState(t, states, StateConnecting)

	if err := conn.Send(Event{Type: "x"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send while connecting = %v, want ErrNotConnected", err)
	}
}

func TestCloseIsTerminal(t *testing.T) {
	dialer := &fakeDialer{}
	conn, states := openTestConn(t, dialer)
	waitState(t, states, StateOpen)

	conn.Close()
	waitState(t, states, StateClosed)

	if _, ok := <-conn.Events(); ok {
		t.Error("events channel still open after Close")
	}
	if err := conn.Send(Event{Type: "x"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
	// closed handles never redial
	time.Sleep(20 * time.Millisecond)
	if got := dialer.dialCount(); got != 1 {
		t.Errorf("dial count after Close = %d, want 1", got)
	}
}

func TestConnDeliversEvents(t *testing.T) {
	dialer := &fakeDialer{}
	conn, states := openTestConn(t, dialer)
	waitState(t, states, StateOpen)

	dialer.transport(0).inbox <- &Event{Type: EventMessageCreated, Scope: "channel:1"}

	select {
	case evt := <-conn.Events():
		if evt.Type != EventMessageCreated {
			t.Errorf("event type = %q, want %q", evt.Type, EventMessageCreated)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
