package playback

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var got []string
	bus.Subscribe(func(Event) { got = append(got, "first") })
	bus.Subscribe(func(Event) { got = append(got, "second") })

	bus.Publish(NextRequest{})

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestBus_FiltersByType(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var got []EventType
	bus.Subscribe(func(ev Event) { got = append(got, ev.Type()) }, EventPlay, EventPause)

	bus.Publish(PlayEvent{})
	bus.Publish(NextRequest{})
	bus.Publish(PauseEvent{})

	assert.Equal(t, []EventType{EventPlay, EventPause}, got)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	n := 0
	sub := bus.Subscribe(func(Event) { n++ })

	bus.Publish(PlayEvent{})
	sub.Close()
	sub.Close()
	bus.Publish(PlayEvent{})

	assert.Equal(t, 1, n)
	assert.Zero(t, bus.Len())
}

func TestBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	n := 0
	bus.Subscribe(func(Event) { panic("boom") })
	bus.Subscribe(func(Event) { n++ })

	assert.NotPanics(t, func() { bus.Publish(PlayEvent{}) })
	assert.Equal(t, 1, n)
}

func TestBus_HandlerMayPublish(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var got []EventType
	bus.Subscribe(func(ev Event) {
		got = append(got, ev.Type())
		if ev.Type() == EventEnded {
			bus.Publish(NextRequest{})
		}
	})

	bus.Publish(Ended{})

	assert.Equal(t, []EventType{EventEnded, EventNext}, got)
}

func TestBus_ListenDropsWhenFull(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	sub := bus.Listen(EventTimeUpdate)
	defer sub.Close()

	for range eventBufferSize + 5 {
		bus.Publish(TimeUpdate{})
	}
	bus.Publish(PlayEvent{})

	assert.Len(t, sub.Events(), eventBufferSize)
	ev := <-sub.Events()
	assert.Equal(t, EventTimeUpdate, ev.Type())
}

func TestBus_CloseEndsSubscriptions(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	sub := bus.Listen()
	n := 0
	bus.Subscribe(func(Event) { n++ })

	bus.Close()
	bus.Close()
	bus.Publish(PlayEvent{})

	select {
	case <-sub.Done():
	default:
		t.Fatal("subscription not closed")
	}
	assert.Zero(t, n)

	late := bus.Subscribe(func(Event) { n++ })
	require.NotNil(t, late)
	<-late.Done()
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "trackchange", EventTrackChange.String())
	assert.Equal(t, "queueend", EventQueueEnd.String())
	assert.Equal(t, "unknown", EventType(0).String())

	for typ := EventTrackChange; typ <= EventQueueEnd; typ++ {
		assert.NotEqual(t, "unknown", typ.String(), "type %d", typ)
	}
}
