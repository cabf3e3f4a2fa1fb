// Package bus implements the runtime's in-process typed publish/subscribe
// (spec §4.2). Delivery is synchronous: Publish calls every subscribed
// handler directly from the publishing goroutine, so a handler that blocks
// blocks the publisher. There is no replay and no cross-process fan-out.
package bus

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// bridgeTopic is the single watermill topic every event is republished on,
// so one Bridge subscription observes the whole event stream regardless of
// type (the SSE edge has no fixed list of types to subscribe to ahead of
// time).
const bridgeTopic = "bus.events"

// BridgeMessage is the JSON payload carried by each watermill message on
// the bridge topic.
type BridgeMessage struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// EventType names a class of event the bus carries, e.g. "session.created"
// or "message.part.updated".
type EventType string

// Event is the envelope every subscriber receives.
type Event struct {
	Type EventType
	Data any
}

// Handler consumes one event. It is called synchronously by Publish.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus is a process-local pub/sub. The zero value is not usable; use New.
type Bus struct {
	mu          sync.Mutex
	nextID      int
	byType      map[EventType][]subscription
	all         []subscription
	asyncBridge *gochannel.GoChannel
}

// New constructs an empty Bus. asyncBridge is a watermill GoChannel used
// only by the SSE edge (internal/httpapi) to hop each synchronously
// published event onto a per-connection buffered channel without making
// the bus's own dispatch asynchronous (see DESIGN.md).
func New() *Bus {
	return &Bus{
		byType:      make(map[EventType][]subscription),
		asyncBridge: gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}),
	}
}

// Publish invokes every handler subscribed to typ, then every
// subscribe-all handler, in subscription order. It also republishes onto
// the watermill bridge topic so SSE connections can subscribe via Bridge()
// for a buffered, decoupled feed instead of holding the publisher (spec §5
// "drop the connection on sustained slowness" rather than blocking a turn).
func (b *Bus) Publish(typ EventType, data any) {
	ev := Event{Type: typ, Data: data}

	b.mu.Lock()
	handlers := append([]subscription(nil), b.byType[typ]...)
	handlers = append(handlers, b.all...)
	b.mu.Unlock()

	for _, s := range handlers {
		s.fn(ev)
	}

	if b.asyncBridge != nil {
		payload, err := json.Marshal(BridgeMessage{Type: typ, Data: data})
		if err == nil {
			_ = b.asyncBridge.Publish(bridgeTopic, message.NewMessage(watermill.NewUUID(), payload))
		}
	}
}

// Bridge subscribes to the whole event stream via the watermill GoChannel,
// returning a channel of already-decoded BridgeMessage values. The
// returned unsubscribe func must be called when the caller is done (e.g.
// on SSE client disconnect); it has no effect on the bus's own synchronous
// dispatch. GoChannel delivers to each subscriber independently, so a slow
// SSE client never stalls the turn engine's Publish call; if the caller
// falls behind enough to fill its own buffer, Bridge closes the returned
// channel rather than drop individual events, so a sustained-slow consumer
// loses its connection instead of silently missing history (spec §5).
func (b *Bus) Bridge(ctx context.Context) (<-chan BridgeMessage, func(), error) {
	raw, err := b.asyncBridge.Subscribe(ctx, bridgeTopic)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan BridgeMessage, bridgeBufferSize)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case msg, ok := <-raw:
				if !ok {
					return
				}
				var bm BridgeMessage
				if err := json.Unmarshal(msg.Payload, &bm); err != nil {
					msg.Ack()
					continue
				}
				msg.Ack()
				select {
				case out <- bm:
				default:
					// Consumer is behind; drop the connection instead of
					// the event (spec §5).
					return
				}
			}
		}
	}()

	return out, func() { close(done) }, nil
}

// bridgeBufferSize is the per-connection buffer between the watermill
// bridge and the SSE forwarding loop.
const bridgeBufferSize = 64

// Subscribe registers fn for events of type typ. The returned func
// unsubscribes.
func (b *Bus) Subscribe(typ EventType, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.byType[typ] = append(b.byType[typ], subscription{id: id, fn: fn})
	return func() { b.unsubscribe(typ, id) }
}

// SubscribeAll registers fn for every event published on the bus,
// regardless of type. The returned func unsubscribes.
func (b *Bus) SubscribeAll(fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.all = append(b.all, subscription{id: id, fn: fn})
	return func() { b.unsubscribeAll(id) }
}

func (b *Bus) unsubscribe(typ EventType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.byType[typ]
	for i, s := range subs {
		if s.id == id {
			b.byType[typ] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) unsubscribeAll(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.all {
		if s.id == id {
			b.all = append(b.all[:i], b.all[i+1:]...)
			return
		}
	}
}

// Types returns the event types currently subscribed to, sorted, for
// diagnostics.
func (b *Bus) Types() []EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]EventType, 0, len(b.byType))
	for t := range b.byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
