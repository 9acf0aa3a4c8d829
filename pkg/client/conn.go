package client

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// State is the lifecycle of one push handle:
//
//	connecting → open → (closing → closed) | (dropped → connecting)
//
// closed is terminal and reached only through an explicit Close; dropped
// always transitions back to connecting.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateDropped
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateDropped:
		return "dropped"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	defaultBackoffBase = 500 * time.Millisecond
	defaultBackoffCap  = 30 * time.Second
	defaultPingEvery   = 30 * time.Second
	writeTimeout       = 10 * time.Second
	dialTimeout        = 10 * time.Second
)

var errHeartbeat = errors.New("heartbeat lost")

type Option func(*Conn)

// WithBackoff overrides the reconnect backoff parameters.
func WithBackoff(base, cap time.Duration) Option {
	return func(c *Conn) {
		c.backoffBase = base
		c.backoffCap = cap
	}
}

// WithPingInterval overrides the heartbeat interval.
func WithPingInterval(d time.Duration) Option {
	return func(c *Conn) {
		c.pingEvery = d
	}
}

// WithStateListener registers an observer for state transitions. The
// listener runs on the connection's goroutine and must not block.
func WithStateListener(fn func(State)) Option {
	return func(c *Conn) {
		c.onState = fn
	}
}

// Conn is one open push handle for one scope. It owns its transport
// exclusively: on unexpected closure it reconnects by itself with
// exponential backoff and jitter, and it keeps a heartbeat going so a
// dead transport is noticed without waiting on the peer.
type Conn struct {
	dialer Dialer
	scope  string

	backoffBase time.Duration
	backoffCap  time.Duration
	pingEvery   time.Duration
	onState     func(State)

	events chan *Event
	closed chan struct{}

	mu        sync.Mutex
	state     State
	transport Transport
	closeOnce sync.Once
}

// Open establishes a push connection for the scope. It suspends until
// the handshake completes or ctx ends. A timed-out handshake is retried
// once before the error is surfaced; any other dial failure is returned
// to the caller directly.
func Open(ctx context.Context, dialer Dialer, scope string, opts ...Option) (*Conn, error) {
	c := &Conn{
		dialer:      dialer,
		scope:       scope,
		backoffBase: defaultBackoffBase,
		backoffCap:  defaultBackoffCap,
		pingEvery:   defaultPingEvery,
		events:      make(chan *Event, 64),
		closed:      make(chan struct{}),
		state:       StateConnecting,
	}
	for _, opt := range opts {
		opt(c)
	}

	t, err := dialer.Dial(ctx, scope)
	if err != nil && isTimeout(err) && ctx.Err() == nil {
		t, err = dialer.Dial(ctx, scope)
	}
	if err != nil {
		return nil, err
	}
	c.setTransport(t)
	c.setState(StateOpen)

	go c.run(t)
	return c, nil
}

// Events is the stream of inbound push events for this handle. It is
// closed when the handle reaches the closed state.
func (c *Conn) Events() <-chan *Event {
	return c.events
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send writes a payload on the open handle. A handle that is connecting,
// dropped or closed does not queue: the caller gets ErrNotConnected (or
// ErrClosed) and owns the retry.
func (c *Conn) Send(v any) error {
	c.mu.Lock()
	st, t := c.state, c.transport
	c.mu.Unlock()

	switch st {
	case StateClosing, StateClosed:
		return ErrClosed
	case StateOpen:
	default:
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return t.WriteJSON(ctx, v)
}

// Close tears the handle down for good. Closing cancels interest in the
// scope but not any mutation calls already in flight against it; their
// late results are discarded by the reconciler, not errored.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.state == StateClosed || c.state == StateClosing {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	t := c.transport
	c.mu.Unlock()
	if c.onState != nil {
		c.onState(StateClosing)
	}

	c.closeOnce.Do(func() { close(c.closed) })
	if t != nil {
		t.Close()
	}
}

func (c *Conn) run(t Transport) {
	for {
		c.serve(t)

		if c.isShuttingDown() {
			c.finish()
			return
		}
		c.setState(StateDropped)

		var ok bool
		t, ok = c.redial()
		if !ok {
			c.finish()
			return
		}
	}
}

// serve pumps inbound events and heartbeats until the transport fails or
// the handle closes.
func (c *Conn) serve(t Transport) {
	readErr := make(chan error, 1)
	inbound := make(chan *Event, 16)
	go func() {
		for {
			evt, err := t.ReadEvent(context.Background())
			if err != nil {
				readErr <- err
				return
			}
			select {
			case inbound <- evt:
			case <-c.closed:
				return
			}
		}
	}()

	ticker := time.NewTicker(c.pingEvery)
	defer ticker.Stop()

	lastSeen := time.Now()
	probed := false

	for {
		select {
		case <-c.closed:
			t.Close()
			return

		case <-readErr:
			return

		case evt := <-inbound:
			lastSeen = time.Now()
			probed = false
			if evt.Type == eventPong {
				continue
			}
			select {
			case c.events <- evt:
			case <-c.closed:
				t.Close()
				return
			}

		case <-ticker.C:
			if time.Since(lastSeen) > 2*c.pingEvery {
				if probed {
					// The liveness probe went unanswered too; declare
					// the handle dropped instead of waiting on the
					// transport forever.
					t.Close()
					return
				}
				probed = true
			}
			c.writePing(t)
		}
	}
}

// redial reconnects with exponential backoff and ±20% jitter, forever,
// until the dial succeeds or the handle closes.
func (c *Conn) redial() (Transport, bool) {
	c.setState(StateConnecting)
	backoff := c.backoffBase

	for {
		select {
		case <-c.closed:
			return nil, false
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		t, err := c.dialer.Dial(ctx, c.scope)
		cancel()
		if err == nil {
			c.setTransport(t)
			c.setState(StateOpen)
			return t, true
		}

		select {
		case <-time.After(jitter(backoff)):
		case <-c.closed:
			return nil, false
		}
		backoff *= 2
		if backoff > c.backoffCap {
			backoff = c.backoffCap
		}
	}
}

func (c *Conn) writePing(t Transport) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_ = t.WriteJSON(ctx, Event{Type: eventPing})
}

func (c *Conn) finish() {
	c.setState(StateClosed)
	close(c.events)
}

func (c *Conn) isShuttingDown() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Conn) setTransport(t Transport) {
	c.mu.Lock()
	c.transport = t
	c.mu.Unlock()
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.onState != nil {
		c.onState(s)
	}
}

func jitter(d time.Duration) time.Duration {
	// ±20%
	span := int64(d) * 2 / 5
	if span <= 0 {
		return d
	}
	delta := time.Duration(rand.Int63n(span)) - d/5
	return d + delta
}
