package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	dispatcher := NewInMemoryDispatcher(nil)
	var created, assigned int

	dispatcher.Subscribe(EventTicketCreated, func(ctx context.Context, event Event) error {
		created++
		return nil
	})
	dispatcher.Subscribe(EventTicketCreated, func(ctx context.Context, event Event) error {
		created++
		return nil
	})
	dispatcher.Subscribe(EventTicketAssigned, func(ctx context.Context, event Event) error {
		assigned++
		return nil
	})

	require.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventTicketCreated}))
	assert.Equal(t, 2, created, "every subscriber of the type runs")
	assert.Equal(t, 0, assigned, "other types stay untouched")
}

func TestDispatcherLogsAndDiscardsHandlerErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	dispatcher := NewInMemoryDispatcher(zap.New(core))
	reached := false

	dispatcher.Subscribe(EventCommentAdded, func(ctx context.Context, event Event) error {
		return errors.New("handler failed")
	})
	dispatcher.Subscribe(EventCommentAdded, func(ctx context.Context, event Event) error {
		reached = true
		return nil
	})

	err := dispatcher.Publish(context.Background(), Event{Type: EventCommentAdded, TicketID: "t1"})
	assert.NoError(t, err, "side effects never fail the publisher")
	assert.True(t, reached, "a failing handler does not block the rest")

	entries := logs.FilterMessage("event handler failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, string(EventCommentAdded), fields["event_type"])
	assert.Equal(t, "t1", fields["ticket_id"])
}

func TestDispatcherNoSubscribers(t *testing.T) {
	dispatcher := NewInMemoryDispatcher(nil)
	assert.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventTicketStatusChanged}))
}
