package service

import (
	"context"
	"errors"
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

// OrderOutcome names what a checkout did
type OrderOutcome string

const (
	OutcomePlaced         OrderOutcome = "placed"
	OutcomeBasketNotFound OrderOutcome = "basket_not_found"
	OutcomeAlreadyPlaced  OrderOutcome = "already_placed"
)

// OrderResult is the result of a checkout
type OrderResult struct {
	Outcome      OrderOutcome           `json:"outcome"`
	BasketID     int64                  `json:"basket_id"`
	Order        *models.Order          `json:"order,omitempty"`
	NextBasketID *int64                 `json:"next_basket_id,omitempty"`
	Shortages    []models.StockShortage `json:"shortages,omitempty"`

	userID        int64
	ingredientIDs []int64
	depleted      int
}

// OrderStore is the persistence the order service needs
type OrderStore interface {
	TxRunner
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
}

// OrderOptions tunes checkout behavior
type OrderOptions struct {
	// StrictStock aborts a checkout that needs more stock than the ledger holds
	StrictStock   bool
	LockTTL       time.Duration
	RetryAttempts int
}

// OrderService turns baskets into orders and consumes the inventory ledger
type OrderService struct {
	store          OrderStore
	locker         Locker
	eventPublisher EventPublisher
	options        OrderOptions
	logger         *zap.Logger
	now            func() time.Time
}

// NewOrderService creates a new order service. locker and eventPublisher may be nil.
func NewOrderService(
	store OrderStore,
	locker Locker,
	eventPublisher EventPublisher,
	options OrderOptions,
) *OrderService {
	if options.RetryAttempts <= 0 {
		options.RetryAttempts = 3
	}
	if options.LockTTL <= 0 {
		options.LockTTL = 10 * time.Second
	}
	return &OrderService{
		store:          store,
		locker:         locker,
		eventPublisher: eventPublisher,
		options:        options,
		logger:         util.ComponentLogger("order_service"),
		now:            time.Now,
	}
}

// PlaceOrder checks out a basket. A missing basket is reported through
// OutcomeBasketNotFound, not as an error.
func (s *OrderService) PlaceOrder(ctx context.Context, basketID int64) (*OrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder", attribute.Int64("basket_id", basketID))
	defer span.End()

	release, err := s.acquireCheckoutLock(ctx, basketID)
	if err != nil {
		util.OrdersRejectedTotal.WithLabelValues("locked").Inc()
		return nil, err
	}
	defer release()

	start := time.Now()
	var result *OrderResult
	for attempt := 1; ; attempt++ {
		result, err = s.fulfill(ctx, basketID)
		if err == nil || !store.IsRetryable(err) || attempt >= s.options.RetryAttempts {
			break
		}
		util.CheckoutRetriesTotal.Inc()
		s.logger.Warn("Retrying checkout after transaction conflict",
			zap.Int64("basket_id", basketID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	util.CheckoutLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := "error"
		if errors.Is(err, ErrInsufficientStock) {
			reason = "insufficient_stock"
		}
		util.OrdersRejectedTotal.WithLabelValues(reason).Inc()
		util.RecordError(span, err)
		return nil, err
	}

	switch result.Outcome {
	case OutcomeBasketNotFound:
		util.OrdersRejectedTotal.WithLabelValues(string(OutcomeBasketNotFound)).Inc()
		s.logger.Info("Checkout of unknown basket ignored", zap.Int64("basket_id", basketID))
	case OutcomeAlreadyPlaced:
		util.OrdersRejectedTotal.WithLabelValues(string(OutcomeAlreadyPlaced)).Inc()
		s.logger.Info("Basket already checked out",
			zap.Int64("basket_id", basketID),
			zap.Int64("order_id", result.Order.ID))
	case OutcomePlaced:
		s.recordPlaced(ctx, result)
	}

	return result, nil
}

// acquireCheckoutLock rejects a second concurrent checkout of the same basket.
// When Redis is unavailable the checkout proceeds; the database locks still
// keep the ledger consistent.
func (s *OrderService) acquireCheckoutLock(ctx context.Context, basketID int64) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	key := fmt.Sprintf("checkout:basket:%d", basketID)
	token, ok, err := s.locker.AcquireLock(ctx, key, s.options.LockTTL)
	if err != nil {
		s.logger.Warn("Could not reach lock service; proceeding without checkout lock",
			zap.Int64("basket_id", basketID),
			zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, ErrCheckoutInProgress
	}

	return func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn("Failed to release checkout lock",
				zap.Int64("basket_id", basketID),
				zap.Error(err))
		}
	}, nil
}

// fulfill runs one checkout attempt inside a single transaction
func (s *OrderService) fulfill(ctx context.Context, basketID int64) (*OrderResult, error) {
	var result *OrderResult

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		result = &OrderResult{BasketID: basketID}

		owner, err := tx.GetBasket(ctx, basketID)
		if errors.Is(err, store.ErrNotFound) {
			result.Outcome = OutcomeBasketNotFound
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load basket: %w", err)
		}

		// user before basket, the same order basket edits lock in
		if _, err := tx.LockUser(ctx, owner.UserID); err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}
		basket, err := tx.GetBasketForUpdate(ctx, basketID)
		if err != nil {
			return fmt.Errorf("failed to lock basket: %w", err)
		}
		result.userID = basket.UserID

		if basket.CheckedOutAt != nil {
			order, err := tx.GetOrderByBasket(ctx, basket.ID)
			if err != nil {
				return fmt.Errorf("failed to load order of checked out basket: %w", err)
			}
			result.Outcome = OutcomeAlreadyPlaced
			result.Order = order
			return nil
		}

		lines, err := tx.ListBasketLines(ctx, basket.ID)
		if err != nil {
			return fmt.Errorf("failed to list basket items: %w", err)
		}

		price, cost := decimal.Zero, decimal.Zero
		for _, line := range lines {
			count := decimal.NewFromInt(int64(line.Count))
			price = price.Add(util.RoundMoney(count.Mul(line.UnitPrice)))

			recipe, err := tx.ListRecipeLines(ctx, line.ProductID)
			if err != nil {
				return fmt.Errorf("failed to load recipe of product %d: %w", line.ProductID, err)
			}

			for _, rl := range recipe {
				used, err := s.consume(ctx, tx, rl.IngredientID, rl.Quantity.Mul(count))
				if err != nil {
					return err
				}

				unitCost := decimal.Zero
				if used.shipment != nil {
					unitCost = used.shipment.Price
				}
				cost = cost.Add(util.RoundMoney(unitCost.Mul(count).Mul(rl.Quantity)))

				if used.shortage != nil {
					result.Shortages = append(result.Shortages, *used.shortage)
				}
				if used.depleted {
					result.depleted++
				}
				result.ingredientIDs = appendUnique(result.ingredientIDs, rl.IngredientID)
			}
		}

		if len(result.Shortages) > 0 && s.options.StrictStock {
			return fmt.Errorf("%w: %d recipe line(s) not covered", ErrInsufficientStock, len(result.Shortages))
		}

		order := &models.Order{BasketID: basket.ID, Price: price, Cost: cost}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		result.Order = order
		result.Outcome = OutcomePlaced

		if len(lines) == 0 {
			return nil
		}

		if err := tx.MarkBasketCheckedOut(ctx, basket.ID, s.now()); err != nil {
			return fmt.Errorf("failed to close basket: %w", err)
		}
		next, err := tx.CreateBasket(ctx, basket.UserID)
		if err != nil {
			return fmt.Errorf("failed to create next basket: %w", err)
		}
		if err := tx.SetActiveBasket(ctx, basket.UserID, next.ID); err != nil {
			return fmt.Errorf("failed to activate next basket: %w", err)
		}
		result.NextBasketID = &next.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type consumption struct {
	shipment *models.Shipment
	shortage *models.StockShortage
	depleted bool
}

// consume deducts needed from the oldest stocked shipment of an ingredient.
// A record that would not keep a positive remainder is deleted outright,
// whatever it held. Without stock the latest shipment only prices the line.
func (s *OrderService) consume(ctx context.Context, tx store.Tx, ingredientID int64, needed decimal.Decimal) (consumption, error) {
	for attempt := 1; ; attempt++ {
		shipment, err := tx.FindStockedShipment(ctx, ingredientID)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return consumption{}, fmt.Errorf("failed to find stocked shipment of ingredient %d: %w", ingredientID, err)
		}

		record, err := tx.WarehouseForUpdate(ctx, shipment.ID)
		if errors.Is(err, store.ErrNotFound) {
			// drained by a concurrent checkout between lookup and lock
			if attempt >= s.options.RetryAttempts {
				return consumption{}, fmt.Errorf("stock of ingredient %d kept changing: %w", ingredientID, err)
			}
			continue
		}
		if err != nil {
			return consumption{}, fmt.Errorf("failed to lock warehouse record of shipment %d: %w", shipment.ID, err)
		}

		used := consumption{shipment: shipment}
		if record.Remaining.GreaterThan(needed) {
			if err := tx.UpdateWarehouseRemaining(ctx, record.ID, record.Remaining.Sub(needed)); err != nil {
				return consumption{}, fmt.Errorf("failed to update warehouse record %d: %w", record.ID, err)
			}
			return used, nil
		}

		if err := tx.DeleteWarehouse(ctx, record.ID); err != nil {
			return consumption{}, fmt.Errorf("failed to delete warehouse record %d: %w", record.ID, err)
		}
		used.depleted = true
		if record.Remaining.LessThan(needed) {
			used.shortage = &models.StockShortage{
				IngredientID: ingredientID,
				Needed:       needed,
				Available:    record.Remaining,
			}
		}
		return used, nil
	}

	used := consumption{shortage: &models.StockShortage{
		IngredientID: ingredientID,
		Needed:       needed,
		Available:    decimal.Zero,
	}}

	latest, err := tx.LatestShipment(ctx, ingredientID)
	if errors.Is(err, store.ErrNotFound) {
		return used, nil
	}
	if err != nil {
		return consumption{}, fmt.Errorf("failed to find latest shipment of ingredient %d: %w", ingredientID, err)
	}
	used.shipment = latest
	return used, nil
}

// recordPlaced emits metrics, logs and the OrderPlaced event after commit
func (s *OrderService) recordPlaced(ctx context.Context, result *OrderResult) {
	order := result.Order

	util.OrdersPlacedTotal.Inc()
	util.OrderRevenueTotal.Add(util.Float(order.Price))
	util.OrderCostTotal.Add(util.Float(order.Cost))
	util.WarehouseRecordsDepletedTotal.Add(float64(result.depleted))
	util.StockShortagesTotal.Add(float64(len(result.Shortages)))

	for _, shortage := range result.Shortages {
		s.logger.Warn("Checkout consumed more stock than available",
			zap.Int64("order_id", order.ID),
			zap.Int64("ingredient_id", shortage.IngredientID),
			zap.String("needed", shortage.Needed.String()),
			zap.String("available", shortage.Available.String()))
	}

	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("basket_id", order.BasketID),
		zap.String("price", order.Price.String()),
		zap.String("cost", order.Cost.String()))

	if s.eventPublisher == nil {
		return
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:       order.ID,
		BasketID:      order.BasketID,
		UserID:        result.userID,
		Price:         order.Price,
		Cost:          order.Cost,
		IngredientIDs: result.ingredientIDs,
		Shortages:     result.Shortages,
	}

	if err := s.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
