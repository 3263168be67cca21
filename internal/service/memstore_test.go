package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cafe-service/internal/models"
	"cafe-service/internal/store"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// memState is the in-memory cafe database. Values are stored by value so a
// shallow map copy is a full snapshot.
type memState struct {
	users       map[int64]models.User
	baskets     map[int64]models.Basket
	items       map[int64]models.BasketItem
	products    map[int64]models.Product
	ingredients map[int64]models.Ingredient
	recipes     []models.RecipeLine
	shipments   map[int64]models.Shipment
	warehouse   map[int64]models.WarehouseRecord
	orders      map[int64]models.Order
	nextID      int64
}

func newMemState() *memState {
	return &memState{
		users:       map[int64]models.User{},
		baskets:     map[int64]models.Basket{},
		items:       map[int64]models.BasketItem{},
		products:    map[int64]models.Product{},
		ingredients: map[int64]models.Ingredient{},
		shipments:   map[int64]models.Shipment{},
		warehouse:   map[int64]models.WarehouseRecord{},
		orders:      map[int64]models.Order{},
		nextID:      1000,
	}
}

func copyMap[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	return &memState{
		users:       copyMap(s.users),
		baskets:     copyMap(s.baskets),
		items:       copyMap(s.items),
		products:    copyMap(s.products),
		ingredients: copyMap(s.ingredients),
		recipes:     append([]models.RecipeLine(nil), s.recipes...),
		shipments:   copyMap(s.shipments),
		warehouse:   copyMap(s.warehouse),
		orders:      copyMap(s.orders),
		nextID:      s.nextID,
	}
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

// memStore runs every transaction against a snapshot and keeps it only
// when the transaction function succeeds
type memStore struct {
	mu    sync.Mutex
	state *memState
	now   time.Time

	// conflicts fails that many commits with a deadlock error
	conflicts int
	// vanish deletes the warehouse record of a shipment right before it is locked
	vanish map[int64]bool
	// failCreateOrder makes CreateOrder fail
	failCreateOrder error

	txCount int
}

func newMemStore() *memStore {
	return &memStore{
		state:  newMemState(),
		now:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		vanish: map[int64]bool{},
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txCount++
	tx := &memTx{m: m, s: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if m.conflicts > 0 {
		m.conflicts--
		return &pq.Error{Code: "40P01", Message: "deadlock detected"}
	}
	m.state = tx.s
	return nil
}

func (m *memStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.state.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	return &order, nil
}

// Fixture helpers, called outside transactions

func (m *memStore) addProduct(id int64, title, price string) {
	m.state.products[id] = models.Product{ID: id, Title: title, Price: decimal.RequireFromString(price), Published: true}
}

func (m *memStore) addIngredient(id int64, title, notifyMin string) {
	m.state.ingredients[id] = models.Ingredient{
		ID:               id,
		Title:            title,
		MeasureUnit:      models.MeasureUnitThing,
		NotifyMinBalance: decimal.RequireFromString(notifyMin),
	}
}

func (m *memStore) addRecipe(productID, ingredientID int64, quantity string) {
	m.state.recipes = append(m.state.recipes, models.RecipeLine{
		ID:           m.state.id(),
		ProductID:    productID,
		IngredientID: ingredientID,
		Quantity:     decimal.RequireFromString(quantity),
	})
}

func (m *memStore) addBasket(id, userID int64) {
	m.state.baskets[id] = models.Basket{ID: id, UserID: userID, CreatedAt: m.now}
	active := id
	m.state.users[userID] = models.User{ID: userID, ActiveBasketID: &active}
}

func (m *memStore) addItem(basketID, productID int64, count int) {
	id := m.state.id()
	m.state.items[id] = models.BasketItem{ID: id, BasketID: basketID, ProductID: productID, Count: count}
}

// addShipment records a shipment; an empty remaining leaves it without stock
func (m *memStore) addShipment(id, ingredientID int64, price, remaining string, receivedAt time.Time) {
	m.state.shipments[id] = models.Shipment{
		ID:           id,
		IngredientID: ingredientID,
		Quantity:     decimal.NewFromInt(100),
		Price:        decimal.RequireFromString(price),
		ReceivedAt:   receivedAt,
	}
	if remaining != "" {
		wid := m.state.id()
		m.state.warehouse[wid] = models.WarehouseRecord{
			ID:         wid,
			ShipmentID: id,
			Remaining:  decimal.RequireFromString(remaining),
		}
	}
}

func (m *memStore) warehouseOf(shipmentID int64) (models.WarehouseRecord, bool) {
	for _, w := range m.state.warehouse {
		if w.ShipmentID == shipmentID {
			return w, true
		}
	}
	return models.WarehouseRecord{}, false
}

func (m *memStore) itemsOf(basketID int64) []models.BasketItem {
	var items []models.BasketItem
	for _, item := range m.state.items {
		if item.BasketID == basketID {
			items = append(items, item)
		}
	}
	return items
}

type memTx struct {
	m *memStore
	s *memState
}

func (t *memTx) LockUser(ctx context.Context, userID int64) (*models.User, error) {
	user, ok := t.s.users[userID]
	if !ok {
		user = models.User{ID: userID, CreatedAt: t.m.now}
		t.s.users[userID] = user
	}
	return &user, nil
}

func (t *memTx) SetActiveBasket(ctx context.Context, userID, basketID int64) error {
	user := t.s.users[userID]
	user.ActiveBasketID = &basketID
	t.s.users[userID] = user
	return nil
}

func (t *memTx) CreateBasket(ctx context.Context, userID int64) (*models.Basket, error) {
	basket := models.Basket{ID: t.s.id(), UserID: userID, CreatedAt: t.m.now}
	t.s.baskets[basket.ID] = basket
	return &basket, nil
}

func (t *memTx) GetBasket(ctx context.Context, basketID int64) (*models.Basket, error) {
	basket, ok := t.s.baskets[basketID]
	if !ok {
		return nil, fmt.Errorf("basket %d: %w", basketID, store.ErrNotFound)
	}
	return &basket, nil
}

func (t *memTx) GetBasketForUpdate(ctx context.Context, basketID int64) (*models.Basket, error) {
	return t.GetBasket(ctx, basketID)
}

func (t *memTx) MarkBasketCheckedOut(ctx context.Context, basketID int64, at time.Time) error {
	basket := t.s.baskets[basketID]
	basket.CheckedOutAt = &at
	t.s.baskets[basketID] = basket
	return nil
}

func (t *memTx) ListBasketLines(ctx context.Context, basketID int64) ([]models.BasketLine, error) {
	var lines []models.BasketLine
	for _, item := range t.s.items {
		if item.BasketID != basketID {
			continue
		}
		product := t.s.products[item.ProductID]
		lines = append(lines, models.BasketLine{
			ItemID:       item.ID,
			ProductID:    item.ProductID,
			ProductTitle: product.Title,
			UnitPrice:    product.Price,
			Count:        item.Count,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID < lines[j].ItemID })
	return lines, nil
}

func (t *memTx) GetBasketItem(ctx context.Context, basketID, productID int64) (*models.BasketItem, error) {
	for _, item := range t.s.items {
		if item.BasketID == basketID && item.ProductID == productID {
			return &item, nil
		}
	}
	return nil, fmt.Errorf("basket item for product %d: %w", productID, store.ErrNotFound)
}

func (t *memTx) CreateBasketItem(ctx context.Context, item *models.BasketItem) error {
	item.ID = t.s.id()
	t.s.items[item.ID] = *item
	return nil
}

func (t *memTx) UpdateBasketItemCount(ctx context.Context, itemID int64, count int) error {
	item := t.s.items[itemID]
	item.Count = count
	t.s.items[itemID] = item
	return nil
}

func (t *memTx) DeleteBasketItem(ctx context.Context, itemID int64) error {
	delete(t.s.items, itemID)
	return nil
}

func (t *memTx) ProductExists(ctx context.Context, productID int64) (bool, error) {
	_, ok := t.s.products[productID]
	return ok, nil
}

func (t *memTx) IngredientExists(ctx context.Context, ingredientID int64) (bool, error) {
	_, ok := t.s.ingredients[ingredientID]
	return ok, nil
}

func (t *memTx) ListRecipeLines(ctx context.Context, productID int64) ([]models.RecipeLine, error) {
	var lines []models.RecipeLine
	for _, line := range t.s.recipes {
		if line.ProductID == productID {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (t *memTx) shipmentsOf(ingredientID int64, stocked bool) []models.Shipment {
	var out []models.Shipment
	for _, sh := range t.s.shipments {
		if sh.IngredientID != ingredientID {
			continue
		}
		if stocked && !t.hasStock(sh.ID) {
			continue
		}
		out = append(out, sh)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.Before(out[j].ReceivedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *memTx) hasStock(shipmentID int64) bool {
	for _, w := range t.s.warehouse {
		if w.ShipmentID == shipmentID {
			return true
		}
	}
	return false
}

func (t *memTx) FindStockedShipment(ctx context.Context, ingredientID int64) (*models.Shipment, error) {
	stocked := t.shipmentsOf(ingredientID, true)
	if len(stocked) == 0 {
		return nil, fmt.Errorf("stocked shipment of ingredient %d: %w", ingredientID, store.ErrNotFound)
	}
	return &stocked[0], nil
}

func (t *memTx) LatestShipment(ctx context.Context, ingredientID int64) (*models.Shipment, error) {
	all := t.shipmentsOf(ingredientID, false)
	if len(all) == 0 {
		return nil, fmt.Errorf("shipment of ingredient %d: %w", ingredientID, store.ErrNotFound)
	}
	return &all[len(all)-1], nil
}

func (t *memTx) WarehouseForUpdate(ctx context.Context, shipmentID int64) (*models.WarehouseRecord, error) {
	var found *models.WarehouseRecord
	for _, w := range t.s.warehouse {
		if w.ShipmentID == shipmentID && (found == nil || w.ID < found.ID) {
			w := w
			found = &w
		}
	}
	if found != nil && t.m.vanish[shipmentID] {
		delete(t.m.vanish, shipmentID)
		delete(t.s.warehouse, found.ID)
		found = nil
	}
	if found == nil {
		return nil, fmt.Errorf("warehouse record of shipment %d: %w", shipmentID, store.ErrNotFound)
	}
	return found, nil
}

func (t *memTx) UpdateWarehouseRemaining(ctx context.Context, warehouseID int64, remaining decimal.Decimal) error {
	w := t.s.warehouse[warehouseID]
	w.Remaining = remaining
	t.s.warehouse[warehouseID] = w
	return nil
}

func (t *memTx) DeleteWarehouse(ctx context.Context, warehouseID int64) error {
	delete(t.s.warehouse, warehouseID)
	return nil
}

func (t *memTx) CreateShipment(ctx context.Context, shipment *models.Shipment) error {
	shipment.ID = t.s.id()
	shipment.ReceivedAt = t.m.now
	t.s.shipments[shipment.ID] = *shipment
	return nil
}

func (t *memTx) CreateWarehouseRecord(ctx context.Context, record *models.WarehouseRecord) error {
	record.ID = t.s.id()
	t.s.warehouse[record.ID] = *record
	return nil
}

func (t *memTx) CreateOrder(ctx context.Context, order *models.Order) error {
	if t.m.failCreateOrder != nil {
		return t.m.failCreateOrder
	}
	order.ID = t.s.id()
	order.CreatedAt = t.m.now
	t.s.orders[order.ID] = *order
	return nil
}

func (t *memTx) GetOrderByBasket(ctx context.Context, basketID int64) (*models.Order, error) {
	var found *models.Order
	for _, o := range t.s.orders {
		if o.BasketID == basketID && (found == nil || o.ID > found.ID) {
			o := o
			found = &o
		}
	}
	if found == nil {
		return nil, fmt.Errorf("order of basket %d: %w", basketID, store.ErrNotFound)
	}
	return found, nil
}

// fakeLocker hands out one lock per key
type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	released []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]string{}}
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return "", false, l.err
	}
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	token := fmt.Sprintf("token-%d", len(l.held)+1)
	l.held[key] = token
	return token, true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] == token {
		delete(l.held, key)
	}
	l.released = append(l.released, key)
	return nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu        sync.Mutex
	placed    []*models.OrderPlacedEvent
	received  []*models.ShipmentReceivedEvent
	stockLows []*models.StockLowEvent
}

func (p *recordingPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, event)
	return nil
}

func (p *recordingPublisher) PublishShipmentReceived(ctx context.Context, event *models.ShipmentReceivedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, event)
	return nil
}

func (p *recordingPublisher) PublishStockLow(ctx context.Context, event *models.StockLowEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stockLows = append(p.stockLows, event)
	return nil
}
