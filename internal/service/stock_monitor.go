package service

import (
	"context"
	"fmt"
	"time"

	"cafe-service/internal/models"
	"cafe-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MonitorStore is what the stock monitor reads and records
type MonitorStore interface {
	GetIngredientBalances(ctx context.Context, ingredientIDs []int64) ([]models.IngredientBalance, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// StockMonitor keeps the stock gauge current and raises low stock alerts
type StockMonitor struct {
	store          MonitorStore
	eventPublisher EventPublisher
	logger         *zap.Logger
}

func NewStockMonitor(store MonitorStore, eventPublisher EventPublisher) *StockMonitor {
	return &StockMonitor{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.ComponentLogger("stock_monitor"),
	}
}

// HandleOrderPlaced checks the balances of every ingredient an order consumed
func (m *StockMonitor) HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	ctx, span := util.StartSpan(ctx, "StockMonitor.HandleOrderPlaced")
	defer span.End()

	processed, err := m.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		m.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	balances, err := m.store.GetIngredientBalances(ctx, event.IngredientIDs)
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to load ingredient balances: %w", err)
	}

	for _, balance := range balances {
		m.observe(balance)
		if balance.IsLow() {
			m.alert(ctx, balance)
		}
	}

	if err := m.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		m.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

// HandleShipmentReceived refreshes the balance of the restocked ingredient
func (m *StockMonitor) HandleShipmentReceived(ctx context.Context, event *models.ShipmentReceivedEvent) error {
	ctx, span := util.StartSpan(ctx, "StockMonitor.HandleShipmentReceived")
	defer span.End()

	processed, err := m.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		m.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	balances, err := m.store.GetIngredientBalances(ctx, []int64{event.IngredientID})
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to load ingredient balance: %w", err)
	}
	for _, balance := range balances {
		m.observe(balance)
	}

	if err := m.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		m.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

func (m *StockMonitor) observe(balance models.IngredientBalance) {
	util.IngredientStockRemaining.WithLabelValues(balance.Title).Set(util.Float(balance.Remaining))
}

func (m *StockMonitor) alert(ctx context.Context, balance models.IngredientBalance) {
	util.StockLowAlertsTotal.WithLabelValues(balance.Title).Inc()
	m.logger.Warn("Ingredient stock is low",
		zap.Int64("ingredient_id", balance.IngredientID),
		zap.String("title", balance.Title),
		zap.String("remaining", balance.Remaining.String()+" "+balance.MeasureUnit.Label()),
		zap.String("notify_min_balance", balance.NotifyMinBalance.String()))

	if m.eventPublisher == nil {
		return
	}

	event := &models.StockLowEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeStockLow,
			Timestamp: time.Now(),
		},
		IngredientID:     balance.IngredientID,
		Title:            balance.Title,
		Remaining:        balance.Remaining,
		NotifyMinBalance: balance.NotifyMinBalance,
	}
	if err := m.eventPublisher.PublishStockLow(ctx, event); err != nil {
		m.logger.Error("Failed to publish StockLow event",
			zap.Int64("ingredient_id", balance.IngredientID),
			zap.Error(err))
	}
}
