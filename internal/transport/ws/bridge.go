package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/avukic/skolar/internal/domain"
)

const bridgeBufSize = 256

// Bridge fans events out across server instances over redis pub/sub. Each
// instance publishes its locally-originated events on "scope:<scope>" and
// pattern-subscribes to all of them; the origin id keeps an instance from
// redelivering its own events.
type Bridge struct {
	rdb *redis.Client
	hub *Hub
	id  string

	// outbound serializes publishes: one drain loop in Run keeps
	// sequential events on the same scope ordered on the wire.
	outbound chan outboundEvent
}

type outboundEvent struct {
	channel string
	payload []byte
}

type bridgeEnvelope struct {
	Origin string          `json:"origin"`
	Scope  domain.Scope    `json:"scope"`
	Data   json.RawMessage `json:"data"`
}

func NewBridge(rdb *redis.Client, hub *Hub) *Bridge {
	return &Bridge{
		rdb:      rdb,
		hub:      hub,
		id:       uuid.NewString(),
		outbound: make(chan outboundEvent, bridgeBufSize),
	}
}

// Publish implements RemotePublisher. It is called from the hub's event
// loop, so it only queues; the redis round-trip happens on Run's
// goroutine, which preserves per-scope event order.
func (b *Bridge) Publish(scope domain.Scope, data []byte) {
	payload, err := json.Marshal(bridgeEnvelope{Origin: b.id, Scope: scope, Data: data})
	if err != nil {
		log.Printf("ws bridge: marshal error: %v", err)
		return
	}
	select {
	case b.outbound <- outboundEvent{channel: "scope:" + string(scope), payload: payload}:
	default:
		log.Printf("ws bridge: outbound buffer full, dropping event on %s", scope)
	}
}

// Run subscribes to all scope channels, delivers remote events to the
// local hub, and drains the outbound queue until the context ends.
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.rdb.PSubscribe(ctx, "scope:*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out := <-b.outbound:
			if err := b.rdb.Publish(ctx, out.channel, out.payload).Err(); err != nil {
				log.Printf("ws bridge: publish error: %v", err)
			}

		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var env bridgeEnvelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				log.Printf("ws bridge: bad payload on %s: %v", m.Channel, err)
				continue
			}
			if env.Origin == b.id {
				continue
			}
			b.hub.DeliverRemote(env.Scope, env.Data)
		}
	}
}
