package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishSynchronousDelivery(t *testing.T) {
	b := New()
	var order []string

	unsub := b.Subscribe(EventSessionCreated, func(ev Event) {
		order = append(order, "typed")
	})
	defer unsub()

	unsubAll := b.SubscribeAll(func(ev Event) {
		order = append(order, "all")
	})
	defer unsubAll()

	b.Publish(EventSessionCreated, map[string]string{"id": "ses_x"})

	// Both handlers must have already run by the time Publish returns.
	require.Equal(t, []string{"typed", "all"}, order)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	unsub := b.Subscribe(EventSessionUpdated, func(ev Event) { calls++ })

	b.Publish(EventSessionUpdated, nil)
	unsub()
	b.Publish(EventSessionUpdated, nil)

	require.Equal(t, 1, calls)
}

func TestSubscribeAllReceivesEveryType(t *testing.T) {
	b := New()
	var types []EventType
	b.SubscribeAll(func(ev Event) { types = append(types, ev.Type) })

	b.Publish(EventSessionCreated, nil)
	b.Publish(EventMessageUpdated, nil)

	require.Equal(t, []EventType{EventSessionCreated, EventMessageUpdated}, types)
}
