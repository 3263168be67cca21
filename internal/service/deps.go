package service

import (
	"context"
	"errors"
	"time"

	"cafe-service/internal/models"
	"cafe-service/internal/store"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrIngredientNotFound = errors.New("ingredient not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidCount       = errors.New("product count must not be zero")
	ErrInvalidShipment    = errors.New("invalid shipment")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrCheckoutInProgress = errors.New("checkout of this basket is already in progress")
	ErrInvalidPeriod      = errors.New("report period start must precede its end")
)

// TxRunner opens transactions over the cafe database
type TxRunner interface {
	InTx(ctx context.Context, fn func(store.Tx) error) error
}

// Locker guards work that must not run twice at once across instances
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// ObjectCache stores JSON-encodable values with a TTL
type ObjectCache interface {
	GetObject(ctx context.Context, key string, dest interface{}) (bool, error)
	SetObject(ctx context.Context, key string, obj interface{}, ttl time.Duration) error
}

// EventPublisher publishes cafe domain events
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishShipmentReceived(ctx context.Context, event *models.ShipmentReceivedEvent) error
	PublishStockLow(ctx context.Context, event *models.StockLowEvent) error
}
