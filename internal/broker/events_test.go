package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cafe-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(t *testing.T, event interface{}) kafka.Message {
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestHandleMessageRoutesOrderPlaced(t *testing.T) {
	eh := NewEventHandler()

	var got *models.OrderPlacedEvent
	eh.OnOrderPlaced(func(_ context.Context, e *models.OrderPlacedEvent) error {
		got = e
		return nil
	})
	eh.OnShipmentReceived(func(context.Context, *models.ShipmentReceivedEvent) error {
		t.Fatal("shipment handler must not be called")
		return nil
	})

	err := eh.HandleMessage(context.Background(), message(t, &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "e-1",
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:       42,
		Price:         decimal.RequireFromString("15.00"),
		IngredientIDs: []int64{1, 2},
	}))

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.OrderID)
	assert.Equal(t, []int64{1, 2}, got.IngredientIDs)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(15)))
}

func TestHandleMessageRoutesShipmentReceived(t *testing.T) {
	eh := NewEventHandler()

	var got *models.ShipmentReceivedEvent
	eh.OnShipmentReceived(func(_ context.Context, e *models.ShipmentReceivedEvent) error {
		got = e
		return nil
	})

	err := eh.HandleMessage(context.Background(), message(t, &models.ShipmentReceivedEvent{
		BaseEvent:    models.BaseEvent{EventID: "e-2", EventType: models.EventTypeShipmentReceived},
		ShipmentID:   7,
		IngredientID: 3,
	}))

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.ShipmentID)
}

func TestHandleMessageIgnoresUnknownTypes(t *testing.T) {
	eh := NewEventHandler()

	err := eh.HandleMessage(context.Background(), message(t, &models.StockLowEvent{
		BaseEvent: models.BaseEvent{EventID: "e-3", EventType: models.EventTypeStockLow},
	}))
	assert.NoError(t, err)
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	eh := NewEventHandler()

	err := eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.Error(t, err)
}
