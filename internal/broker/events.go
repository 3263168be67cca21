package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"cafe-service/internal/models"
	"cafe-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishShipmentReceived publishes ShipmentReceived event
func (ep *EventPublisher) PublishShipmentReceived(ctx context.Context, event *models.ShipmentReceivedEvent) error {
	key := fmt.Sprintf("ingredient-%d", event.IngredientID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishStockLow publishes StockLow event
func (ep *EventPublisher) PublishStockLow(ctx context.Context, event *models.StockLowEvent) error {
	key := fmt.Sprintf("ingredient-%d", event.IngredientID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderPlaced      func(context.Context, *models.OrderPlacedEvent) error
	onShipmentReceived func(context.Context, *models.ShipmentReceivedEvent) error
	logger             *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.ComponentLogger("event_handler")}
}

// OnOrderPlaced registers a handler for OrderPlaced events
func (eh *EventHandler) OnOrderPlaced(handler func(context.Context, *models.OrderPlacedEvent) error) {
	eh.onOrderPlaced = handler
}

// OnShipmentReceived registers a handler for ShipmentReceived events
func (eh *EventHandler) OnShipmentReceived(handler func(context.Context, *models.ShipmentReceivedEvent) error) {
	eh.onShipmentReceived = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderPlaced:
		if eh.onOrderPlaced != nil {
			var event models.OrderPlacedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
			}
			return eh.onOrderPlaced(ctx, &event)
		}

	case models.EventTypeShipmentReceived:
		if eh.onShipmentReceived != nil {
			var event models.ShipmentReceivedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ShipmentReceived event: %w", err)
			}
			return eh.onShipmentReceived(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
