package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products on the catalog page
type Category struct {
	ID    int64  `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
	Slug  string `db:"slug" json:"slug"`
}

// Product represents a sellable item
type Product struct {
	ID         int64           `db:"id" json:"id"`
	Title      string          `db:"title" json:"title"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Published  bool            `db:"published" json:"published"`
	CategoryID int64           `db:"category_id" json:"category_id"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// MeasureUnit is the unit an ingredient is counted in
type MeasureUnit string

const (
	MeasureUnitThing    MeasureUnit = "TH"
	MeasureUnitLiter    MeasureUnit = "LI"
	MeasureUnitKilogram MeasureUnit = "KI"
)

// Label returns the human readable unit name
func (u MeasureUnit) Label() string {
	switch u {
	case MeasureUnitLiter:
		return "l"
	case MeasureUnitKilogram:
		return "kg"
	default:
		return "pcs"
	}
}

// Ingredient is a raw material consumed by recipes
type Ingredient struct {
	ID               int64           `db:"id" json:"id"`
	Title            string          `db:"title" json:"title"`
	MeasureUnit      MeasureUnit     `db:"measure_unit" json:"measure_unit"`
	NotifyMinBalance decimal.Decimal `db:"notify_min_balance" json:"notify_min_balance"`
}

// RecipeLine is the quantity of one ingredient needed per unit of product
type RecipeLine struct {
	ID           int64           `db:"id" json:"id"`
	ProductID    int64           `db:"product_id" json:"product_id"`
	IngredientID int64           `db:"ingredient_id" json:"ingredient_id"`
	Quantity     decimal.Decimal `db:"quantity" json:"quantity"`
}

// Shipment is one purchase batch of an ingredient
type Shipment struct {
	ID           int64           `db:"id" json:"id"`
	IngredientID int64           `db:"ingredient_id" json:"ingredient_id"`
	Quantity     decimal.Decimal `db:"quantity" json:"quantity"`
	Price        decimal.Decimal `db:"price" json:"price"`
	ReceivedAt   time.Time       `db:"received_at" json:"received_at"`
	ShelfLife    time.Time       `db:"shelf_life" json:"shelf_life"`
}

// WarehouseRecord holds the remaining stock of exactly one shipment.
// Remaining is always positive; a record that would drop to zero is deleted.
type WarehouseRecord struct {
	ID         int64           `db:"id" json:"id"`
	ShipmentID int64           `db:"shipment_id" json:"shipment_id"`
	Remaining  decimal.Decimal `db:"remaining" json:"remaining"`
}

// User carries the explicit reference to the basket catalog actions attach to
type User struct {
	ID             int64     `db:"id" json:"id"`
	ActiveBasketID *int64    `db:"active_basket_id" json:"active_basket_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Basket represents a user's cart
type Basket struct {
	ID           int64      `db:"id" json:"id"`
	UserID       int64      `db:"user_id" json:"user_id"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	CheckedOutAt *time.Time `db:"checked_out_at" json:"checked_out_at,omitempty"`
}

// BasketItem is the quantity of one product in a basket
type BasketItem struct {
	ID        int64 `db:"id" json:"id"`
	BasketID  int64 `db:"basket_id" json:"basket_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	Count     int   `db:"count" json:"count"`
}

// BasketLine is a basket item joined with its product
type BasketLine struct {
	ItemID       int64           `db:"item_id" json:"item_id"`
	ProductID    int64           `db:"product_id" json:"product_id"`
	ProductTitle string          `db:"product_title" json:"product_title"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unit_price"`
	Count        int             `db:"count" json:"count"`
}

// Order is an immutable record of a completed checkout
type Order struct {
	ID        int64           `db:"id" json:"id"`
	BasketID  int64           `db:"basket_id" json:"basket_id"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Cost      decimal.Decimal `db:"cost" json:"cost"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// IngredientBalance is the stock left across all warehouse records of an ingredient
type IngredientBalance struct {
	IngredientID     int64           `db:"ingredient_id" json:"ingredient_id"`
	Title            string          `db:"title" json:"title"`
	MeasureUnit      MeasureUnit     `db:"measure_unit" json:"measure_unit"`
	Remaining        decimal.Decimal `db:"remaining" json:"remaining"`
	NotifyMinBalance decimal.Decimal `db:"notify_min_balance" json:"notify_min_balance"`
}

// IsLow reports whether the balance reached the notification threshold
func (b IngredientBalance) IsLow() bool {
	return b.Remaining.LessThanOrEqual(b.NotifyMinBalance)
}

// RevenueRow aggregates orders placed on one day
type RevenueRow struct {
	Day     time.Time       `db:"day" json:"day"`
	Orders  int             `db:"orders" json:"orders"`
	Revenue decimal.Decimal `db:"revenue" json:"revenue"`
	Cost    decimal.Decimal `db:"cost" json:"cost"`
}

// RequestError is a persisted record of a failed HTTP request
type RequestError struct {
	ID             int64     `db:"id" json:"id"`
	ExceptionName  string    `db:"exception_name" json:"exception_name"`
	ExceptionValue string    `db:"exception_value" json:"exception_value"`
	ExceptionTB    string    `db:"exception_tb" json:"exception_tb"`
	RequestMethod  string    `db:"request_method" json:"request_method"`
	Path           string    `db:"path" json:"path"`
	Query          []byte    `db:"query" json:"query"`
	Data           []byte    `db:"data" json:"data"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
