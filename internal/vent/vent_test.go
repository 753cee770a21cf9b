package vent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := New()

	var got []any
	h := bus.Subscribe(ReceiveMessage, func(p any) { got = append(got, p) })

	bus.Publish(ReceiveMessage, "a")
	bus.Publish(MessageSent, "ignored")
	bus.Publish(ReceiveMessage, "b")

	assert.Equal(t, []any{"a", "b"}, got)

	h.Dispose()
	bus.Publish(ReceiveMessage, "c")
	assert.Len(t, got, 2)
	assert.Equal(t, 0, bus.Count(ReceiveMessage))

	// disposing twice is harmless
	h.Dispose()
}

func TestBus_Once(t *testing.T) {
	bus := New()

	calls := 0
	bus.Once("change:conversationStarted", func(any) { calls++ })

	bus.Publish("change:conversationStarted", true)
	bus.Publish("change:conversationStarted", true)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.Count("change:conversationStarted"))
}

func TestBus_HandlerMayDisposeItself(t *testing.T) {
	bus := New()

	var h Handle
	calls := 0
	h = bus.Subscribe("x", func(any) {
		calls++
		h.Dispose()
	})

	bus.Publish("x", nil)
	bus.Publish("x", nil)
	require.Equal(t, 1, calls)
}

func TestTeardown_RunsInReverseOnce(t *testing.T) {
	var order []int
	var td Teardown
	td.Add(HandleFunc(func() { order = append(order, 1) }))
	td.Add(HandleFunc(func() { order = append(order, 2) }))

	td.Run()
	td.Run()
	assert.Equal(t, []int{2, 1}, order)

	// late additions are disposed right away
	td.Add(HandleFunc(func() { order = append(order, 3) }))
	assert.Equal(t, []int{2, 1, 3}, order)
}
