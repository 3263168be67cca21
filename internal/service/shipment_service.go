package service

import (
	"context"
	"fmt"
	"time"

	"cafe-service/internal/models"
	"cafe-service/internal/store"
	"cafe-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReceiveShipmentRequest describes a delivered batch of an ingredient
type ReceiveShipmentRequest struct {
	IngredientID int64
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	ShelfLife    time.Time
}

type ShipmentService struct {
	store          TxRunner
	eventPublisher EventPublisher
	logger         *zap.Logger
}

func NewShipmentService(store TxRunner, eventPublisher EventPublisher) *ShipmentService {
	return &ShipmentService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.ComponentLogger("shipment_service"),
	}
}

// Receive records a shipment together with the single warehouse record
// holding its full quantity
func (s *ShipmentService) Receive(ctx context.Context, req ReceiveShipmentRequest) (*models.Shipment, error) {
	ctx, span := util.StartSpan(ctx, "ShipmentService.Receive", attribute.Int64("ingredient_id", req.IngredientID))
	defer span.End()

	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidShipment)
	}
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidShipment)
	}

	shipment := &models.Shipment{
		IngredientID: req.IngredientID,
		Quantity:     req.Quantity,
		Price:        req.Price,
		ShelfLife:    req.ShelfLife,
	}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		exists, err := tx.IngredientExists(ctx, req.IngredientID)
		if err != nil {
			return fmt.Errorf("failed to check ingredient: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: %d", ErrIngredientNotFound, req.IngredientID)
		}

		if err := tx.CreateShipment(ctx, shipment); err != nil {
			return fmt.Errorf("failed to create shipment: %w", err)
		}

		record := &models.WarehouseRecord{ShipmentID: shipment.ID, Remaining: shipment.Quantity}
		if err := tx.CreateWarehouseRecord(ctx, record); err != nil {
			return fmt.Errorf("failed to create warehouse record: %w", err)
		}
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.ShipmentsReceivedTotal.Inc()
	s.logger.Info("Shipment received",
		zap.Int64("shipment_id", shipment.ID),
		zap.Int64("ingredient_id", shipment.IngredientID),
		zap.String("quantity", shipment.Quantity.String()),
		zap.String("price", shipment.Price.String()))

	if s.eventPublisher != nil {
		event := &models.ShipmentReceivedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeShipmentReceived,
				Timestamp: time.Now(),
			},
			ShipmentID:   shipment.ID,
			IngredientID: shipment.IngredientID,
			Quantity:     shipment.Quantity,
			Price:        shipment.Price,
		}
		if err := s.eventPublisher.PublishShipmentReceived(ctx, event); err != nil {
			s.logger.Error("Failed to publish ShipmentReceived event", zap.Error(err))
		}
	}

	return shipment, nil
}
