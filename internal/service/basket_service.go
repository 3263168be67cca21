package service

import (
	"context"
	"errors"
	"fmt"

	"cafe-service/internal/models"
	"cafe-service/internal/store"
	"cafe-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BasketEditResult describes the basket item after an edit
type BasketEditResult struct {
	BasketID  int64 `json:"basket_id"`
	ProductID int64 `json:"product_id"`
	Count     int   `json:"count"`
	Removed   bool  `json:"removed"`
}

// BasketView is the active basket with its lines and total
type BasketView struct {
	BasketID int64               `json:"basket_id"`
	Lines    []models.BasketLine `json:"lines"`
	Total    decimal.Decimal     `json:"total"`
}

type BasketService struct {
	store  TxRunner
	logger *zap.Logger
}

func NewBasketService(store TxRunner) *BasketService {
	return &BasketService{
		store:  store,
		logger: util.ComponentLogger("basket_service"),
	}
}

// EditItem adds delta to the count of a product in the user's active basket.
// An item whose count would drop to zero or below is removed.
func (s *BasketService) EditItem(ctx context.Context, userID, productID int64, delta int) (*BasketEditResult, error) {
	ctx, span := util.StartSpan(ctx, "BasketService.EditItem",
		attribute.Int64("user_id", userID),
		attribute.Int64("product_id", productID),
		attribute.Int("delta", delta))
	defer span.End()

	if delta == 0 {
		return nil, ErrInvalidCount
	}

	var result *BasketEditResult
	var action string

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		exists, err := tx.ProductExists(ctx, productID)
		if err != nil {
			return fmt.Errorf("failed to check product: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: %d", ErrProductNotFound, productID)
		}

		basket, err := activeBasket(ctx, tx, userID)
		if err != nil {
			return err
		}
		result = &BasketEditResult{BasketID: basket.ID, ProductID: productID}

		item, err := tx.GetBasketItem(ctx, basket.ID, productID)
		if errors.Is(err, store.ErrNotFound) {
			if delta < 0 {
				result.Removed = true
				action = "removed"
				return nil
			}
			item = &models.BasketItem{BasketID: basket.ID, ProductID: productID, Count: delta}
			if err := tx.CreateBasketItem(ctx, item); err != nil {
				return fmt.Errorf("failed to create basket item: %w", err)
			}
			result.Count = delta
			action = "added"
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load basket item: %w", err)
		}

		count := item.Count + delta
		if count <= 0 {
			if err := tx.DeleteBasketItem(ctx, item.ID); err != nil {
				return fmt.Errorf("failed to delete basket item: %w", err)
			}
			result.Removed = true
			action = "removed"
			return nil
		}

		if err := tx.UpdateBasketItemCount(ctx, item.ID, count); err != nil {
			return fmt.Errorf("failed to update basket item: %w", err)
		}
		result.Count = count
		action = "updated"
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.BasketEditsTotal.WithLabelValues(action).Inc()
	s.logger.Debug("Basket edited",
		zap.Int64("user_id", userID),
		zap.Int64("basket_id", result.BasketID),
		zap.Int64("product_id", productID),
		zap.Int("count", result.Count),
		zap.String("action", action))

	return result, nil
}

// ActiveBasket returns the user's active basket, creating it on first use
func (s *BasketService) ActiveBasket(ctx context.Context, userID int64) (*BasketView, error) {
	ctx, span := util.StartSpan(ctx, "BasketService.ActiveBasket", attribute.Int64("user_id", userID))
	defer span.End()

	var view *BasketView
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		basket, err := activeBasket(ctx, tx, userID)
		if err != nil {
			return err
		}

		lines, err := tx.ListBasketLines(ctx, basket.ID)
		if err != nil {
			return fmt.Errorf("failed to list basket items: %w", err)
		}
		if lines == nil {
			lines = []models.BasketLine{}
		}

		total := decimal.Zero
		for _, line := range lines {
			total = total.Add(decimal.NewFromInt(int64(line.Count)).Mul(line.UnitPrice))
		}

		view = &BasketView{BasketID: basket.ID, Lines: lines, Total: util.RoundMoney(total)}
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return view, nil
}

// activeBasket locks the user and returns the basket it points at. A user
// without one, or pointing at a checked out basket, gets a fresh basket.
func activeBasket(ctx context.Context, tx store.Tx, userID int64) (*models.Basket, error) {
	user, err := tx.LockUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}

	if user.ActiveBasketID != nil {
		basket, err := tx.GetBasketForUpdate(ctx, *user.ActiveBasketID)
		if err == nil && basket.CheckedOutAt == nil {
			return basket, nil
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to load active basket: %w", err)
		}
	}

	basket, err := tx.CreateBasket(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create basket: %w", err)
	}
	if err := tx.SetActiveBasket(ctx, userID, basket.ID); err != nil {
		return nil, fmt.Errorf("failed to activate basket: %w", err)
	}
	return basket, nil
}
