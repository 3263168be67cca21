package store

import (
	"context"
	"time"

	"cafe-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Tx is the set of reads and writes bound to one database transaction.
// Lookups of a missing row return an error wrapping ErrNotFound.
type Tx interface {
	// Users and baskets
	LockUser(ctx context.Context, userID int64) (*models.User, error)
	SetActiveBasket(ctx context.Context, userID, basketID int64) error
	CreateBasket(ctx context.Context, userID int64) (*models.Basket, error)
	GetBasket(ctx context.Context, basketID int64) (*models.Basket, error)
	GetBasketForUpdate(ctx context.Context, basketID int64) (*models.Basket, error)
	MarkBasketCheckedOut(ctx context.Context, basketID int64, at time.Time) error
	ListBasketLines(ctx context.Context, basketID int64) ([]models.BasketLine, error)
	GetBasketItem(ctx context.Context, basketID, productID int64) (*models.BasketItem, error)
	CreateBasketItem(ctx context.Context, item *models.BasketItem) error
	UpdateBasketItemCount(ctx context.Context, itemID int64, count int) error
	DeleteBasketItem(ctx context.Context, itemID int64) error

	// Catalog and recipes
	ProductExists(ctx context.Context, productID int64) (bool, error)
	IngredientExists(ctx context.Context, ingredientID int64) (bool, error)
	ListRecipeLines(ctx context.Context, productID int64) ([]models.RecipeLine, error)

	// Inventory ledger
	FindStockedShipment(ctx context.Context, ingredientID int64) (*models.Shipment, error)
	LatestShipment(ctx context.Context, ingredientID int64) (*models.Shipment, error)
	WarehouseForUpdate(ctx context.Context, shipmentID int64) (*models.WarehouseRecord, error)
	UpdateWarehouseRemaining(ctx context.Context, warehouseID int64, remaining decimal.Decimal) error
	DeleteWarehouse(ctx context.Context, warehouseID int64) error
	CreateShipment(ctx context.Context, shipment *models.Shipment) error
	CreateWarehouseRecord(ctx context.Context, record *models.WarehouseRecord) error

	// Orders
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByBasket(ctx context.Context, basketID int64) (*models.Order, error)
}

type sqlTx struct {
	tx *sqlx.Tx
}

// LockUser creates the user row on first sight and locks it
func (t *sqlTx) LockUser(ctx context.Context, userID int64) (*models.User, error) {
	if _, err := t.tx.ExecContext(ctx,
		"INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING", userID); err != nil {
		return nil, err
	}

	var user models.User
	err := t.tx.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1 FOR UPDATE", userID)
	if err != nil {
		return nil, notFound(err, "user %d", userID)
	}
	return &user, nil
}

// SetActiveBasket points the user at the basket future catalog actions use
func (t *sqlTx) SetActiveBasket(ctx context.Context, userID, basketID int64) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE users SET active_basket_id = $1 WHERE id = $2", basketID, userID)
	return err
}

// CreateBasket creates an empty basket
func (t *sqlTx) CreateBasket(ctx context.Context, userID int64) (*models.Basket, error) {
	var basket models.Basket
	err := t.tx.GetContext(ctx, &basket,
		"INSERT INTO baskets (user_id) VALUES ($1) RETURNING *", userID)
	if err != nil {
		return nil, err
	}
	return &basket, nil
}

// GetBasket retrieves a basket without locking it
func (t *sqlTx) GetBasket(ctx context.Context, basketID int64) (*models.Basket, error) {
	var basket models.Basket
	err := t.tx.GetContext(ctx, &basket, "SELECT * FROM baskets WHERE id = $1", basketID)
	if err != nil {
		return nil, notFound(err, "basket %d", basketID)
	}
	return &basket, nil
}

// GetBasketForUpdate retrieves and locks a basket
func (t *sqlTx) GetBasketForUpdate(ctx context.Context, basketID int64) (*models.Basket, error) {
	var basket models.Basket
	err := t.tx.GetContext(ctx, &basket, "SELECT * FROM baskets WHERE id = $1 FOR UPDATE", basketID)
	if err != nil {
		return nil, notFound(err, "basket %d", basketID)
	}
	return &basket, nil
}

// MarkBasketCheckedOut closes a basket after a checkout
func (t *sqlTx) MarkBasketCheckedOut(ctx context.Context, basketID int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE baskets SET checked_out_at = $1 WHERE id = $2", at, basketID)
	return err
}

// ListBasketLines retrieves basket items joined with their products
func (t *sqlTx) ListBasketLines(ctx context.Context, basketID int64) ([]models.BasketLine, error) {
	var lines []models.BasketLine
	err := t.tx.SelectContext(ctx, &lines, `
		SELECT bi.id AS item_id, bi.product_id, p.title AS product_title,
		       p.price AS unit_price, bi.count
		FROM basket_items bi
		JOIN products p ON p.id = bi.product_id
		WHERE bi.basket_id = $1
		ORDER BY bi.id`, basketID)
	return lines, err
}

// GetBasketItem retrieves the item of a product in a basket
func (t *sqlTx) GetBasketItem(ctx context.Context, basketID, productID int64) (*models.BasketItem, error) {
	var item models.BasketItem
	err := t.tx.GetContext(ctx, &item,
		"SELECT * FROM basket_items WHERE basket_id = $1 AND product_id = $2 FOR UPDATE",
		basketID, productID)
	if err != nil {
		return nil, notFound(err, "basket item for product %d", productID)
	}
	return &item, nil
}

// CreateBasketItem creates a new basket item
func (t *sqlTx) CreateBasketItem(ctx context.Context, item *models.BasketItem) error {
	return t.tx.GetContext(ctx, &item.ID,
		"INSERT INTO basket_items (basket_id, product_id, count) VALUES ($1, $2, $3) RETURNING id",
		item.BasketID, item.ProductID, item.Count)
}

// UpdateBasketItemCount sets the count of a basket item
func (t *sqlTx) UpdateBasketItemCount(ctx context.Context, itemID int64, count int) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE basket_items SET count = $1 WHERE id = $2", count, itemID)
	return err
}

// DeleteBasketItem removes a basket item
func (t *sqlTx) DeleteBasketItem(ctx context.Context, itemID int64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM basket_items WHERE id = $1", itemID)
	return err
}

func (t *sqlTx) ProductExists(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", productID)
	return exists, err
}

func (t *sqlTx) IngredientExists(ctx context.Context, ingredientID int64) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM ingredients WHERE id = $1)", ingredientID)
	return exists, err
}

// ListRecipeLines retrieves the recipe of a product
func (t *sqlTx) ListRecipeLines(ctx context.Context, productID int64) ([]models.RecipeLine, error) {
	var lines []models.RecipeLine
	err := t.tx.SelectContext(ctx, &lines,
		"SELECT * FROM recipe_lines WHERE product_id = $1 ORDER BY id", productID)
	return lines, err
}

// FindStockedShipment retrieves the oldest shipment of an ingredient that
// still has a warehouse record. Ties on received_at go to the lowest id.
func (t *sqlTx) FindStockedShipment(ctx context.Context, ingredientID int64) (*models.Shipment, error) {
	var shipment models.Shipment
	err := t.tx.GetContext(ctx, &shipment, `
		SELECT s.* FROM shipments s
		WHERE s.ingredient_id = $1
		  AND EXISTS (SELECT 1 FROM warehouse_records w WHERE w.shipment_id = s.id)
		ORDER BY s.received_at, s.id
		LIMIT 1`, ingredientID)
	if err != nil {
		return nil, notFound(err, "stocked shipment of ingredient %d", ingredientID)
	}
	return &shipment, nil
}

// LatestShipment retrieves the most recent shipment of an ingredient regardless of stock
func (t *sqlTx) LatestShipment(ctx context.Context, ingredientID int64) (*models.Shipment, error) {
	var shipment models.Shipment
	err := t.tx.GetContext(ctx, &shipment, `
		SELECT * FROM shipments
		WHERE ingredient_id = $1
		ORDER BY received_at DESC, id DESC
		LIMIT 1`, ingredientID)
	if err != nil {
		return nil, notFound(err, "shipment of ingredient %d", ingredientID)
	}
	return &shipment, nil
}

// WarehouseForUpdate retrieves and locks the stock record of a shipment
func (t *sqlTx) WarehouseForUpdate(ctx context.Context, shipmentID int64) (*models.WarehouseRecord, error) {
	var record models.WarehouseRecord
	err := t.tx.GetContext(ctx, &record, `
		SELECT * FROM warehouse_records
		WHERE shipment_id = $1
		ORDER BY id
		LIMIT 1
		FOR UPDATE`, shipmentID)
	if err != nil {
		return nil, notFound(err, "warehouse record of shipment %d", shipmentID)
	}
	return &record, nil
}

func (t *sqlTx) UpdateWarehouseRemaining(ctx context.Context, warehouseID int64, remaining decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE warehouse_records SET remaining = $1 WHERE id = $2", remaining, warehouseID)
	return err
}

func (t *sqlTx) DeleteWarehouse(ctx context.Context, warehouseID int64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM warehouse_records WHERE id = $1", warehouseID)
	return err
}

// CreateShipment creates a new shipment
func (t *sqlTx) CreateShipment(ctx context.Context, shipment *models.Shipment) error {
	query := `
		INSERT INTO shipments (ingredient_id, quantity, price, shelf_life)
		VALUES ($1, $2, $3, $4)
		RETURNING id, received_at`

	return t.tx.QueryRowxContext(ctx, query,
		shipment.IngredientID, shipment.Quantity, shipment.Price, shipment.ShelfLife,
	).Scan(&shipment.ID, &shipment.ReceivedAt)
}

// CreateWarehouseRecord creates the stock record of a shipment
func (t *sqlTx) CreateWarehouseRecord(ctx context.Context, record *models.WarehouseRecord) error {
	return t.tx.GetContext(ctx, &record.ID,
		"INSERT INTO warehouse_records (shipment_id, remaining) VALUES ($1, $2) RETURNING id",
		record.ShipmentID, record.Remaining)
}

// CreateOrder creates a new order
func (t *sqlTx) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (basket_id, price, cost)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return t.tx.QueryRowxContext(ctx, query, order.BasketID, order.Price, order.Cost).
		Scan(&order.ID, &order.CreatedAt)
}

// GetOrderByBasket retrieves the latest order placed for a basket
func (t *sqlTx) GetOrderByBasket(ctx context.Context, basketID int64) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE basket_id = $1 ORDER BY id DESC LIMIT 1", basketID)
	if err != nil {
		return nil, notFound(err, "order of basket %d", basketID)
	}
	return &order, nil
}
