package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced      = "ORDER_PLACED"
	EventTypeShipmentReceived = "SHIPMENT_RECEIVED"
	EventTypeStockLow         = "STOCK_LOW"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published after a checkout commits
type OrderPlacedEvent struct {
	BaseEvent
	OrderID       int64           `json:"order_id"`
	BasketID      int64           `json:"basket_id"`
	UserID        int64           `json:"user_id"`
	Price         decimal.Decimal `json:"price"`
	Cost          decimal.Decimal `json:"cost"`
	IngredientIDs []int64         `json:"ingredient_ids"`
	Shortages     []StockShortage `json:"shortages,omitempty"`
}

// ShipmentReceivedEvent published when a shipment is stocked
type ShipmentReceivedEvent struct {
	BaseEvent
	ShipmentID   int64           `json:"shipment_id"`
	IngredientID int64           `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
}

// StockLowEvent published when an ingredient balance reaches its threshold
type StockLowEvent struct {
	BaseEvent
	IngredientID     int64           `json:"ingredient_id"`
	Title            string          `json:"title"`
	Remaining        decimal.Decimal `json:"remaining"`
	NotifyMinBalance decimal.Decimal `json:"notify_min_balance"`
}

// StockShortage records an ingredient a checkout could not fully cover
type StockShortage struct {
	IngredientID int64           `json:"ingredient_id"`
	Needed       decimal.Decimal `json:"needed"`
	Available    decimal.Decimal `json:"available"`
}

// Missing is the quantity the ledger could not supply
func (s StockShortage) Missing() decimal.Decimal {
	return s.Needed.Sub(s.Available)
}
