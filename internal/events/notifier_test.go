package events

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrovia/mailsync/pkg/models"
)

func testBus() *Bus {
	return NewBus(slog.New(slog.DiscardHandler))
}

func accountEvent(action models.EventAction, recordID string) models.DomainEvent {
	return models.DomainEvent{
		EntityType:  models.EntityConnectedAccount,
		Action:      action,
		WorkspaceID: "ws-1",
		Records:     []models.EventRecord{{RecordID: recordID, After: struct{}{}}},
	}
}

func TestBusFansOutInOrder(t *testing.T) {
	bus := testBus()

	var first, second []models.DomainEvent
	bus.Subscribe(func(ctx context.Context, event models.DomainEvent) {
		first = append(first, event)
	})
	bus.Subscribe(func(ctx context.Context, event models.DomainEvent) {
		second = append(second, event)
	})

	ctx := context.Background()
	bus.EmitBatch(ctx, accountEvent(models.ActionCreated, "acc-1"))
	bus.EmitBatch(ctx, accountEvent(models.ActionUpdated, "acc-1"))

	// CREATED reaches every subscriber before the UPDATED that
	// references the same record
	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, models.ActionCreated, first[0].Action)
	assert.Equal(t, models.ActionUpdated, first[1].Action)
	assert.Equal(t, models.ActionCreated, second[0].Action)
}

func TestBusIsolatesPanickingSubscriber(t *testing.T) {
	bus := testBus()

	bus.Subscribe(func(ctx context.Context, event models.DomainEvent) {
		panic("subscriber bug")
	})

	var delivered int
	bus.Subscribe(func(ctx context.Context, event models.DomainEvent) {
		delivered++
	})

	assert.NotPanics(t, func() {
		bus.EmitBatch(context.Background(), accountEvent(models.ActionCreated, "acc-1"))
	})
	assert.Equal(t, 1, delivered)
}

func TestBusSkipsEmptyBatches(t *testing.T) {
	bus := testBus()

	var delivered int
	bus.Subscribe(func(ctx context.Context, event models.DomainEvent) {
		delivered++
	})

	bus.EmitBatch(context.Background(), models.DomainEvent{
		EntityType: models.EntityMessageChannel,
		Action:     models.ActionUpdated,
	})

	assert.Zero(t, delivered)
}
