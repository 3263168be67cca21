package store

import (
	"context"
	"time"

	"cafe-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "order %d", id)
	}
	return &order, nil
}

// GetRevenueByDay aggregates orders created in [from, to) per day
func (s *Store) GetRevenueByDay(ctx context.Context, from, to time.Time) ([]models.RevenueRow, error) {
	var rows []models.RevenueRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT date_trunc('day', created_at) AS day,
		       COUNT(*) AS orders,
		       COALESCE(SUM(price), 0) AS revenue,
		       COALESCE(SUM(cost), 0) AS cost
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY 1
		ORDER BY 1`, from, to)
	return rows, err
}

// GetIngredientBalances sums the remaining stock of the given ingredients.
// Ingredients without warehouse records are returned with a zero balance.
func (s *Store) GetIngredientBalances(ctx context.Context, ingredientIDs []int64) ([]models.IngredientBalance, error) {
	if len(ingredientIDs) == 0 {
		return []models.IngredientBalance{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT i.id AS ingredient_id, i.title, i.measure_unit, i.notify_min_balance,
		       COALESCE(SUM(w.remaining), 0) AS remaining
		FROM ingredients i
		LEFT JOIN shipments s ON s.ingredient_id = i.id
		LEFT JOIN warehouse_records w ON w.shipment_id = s.id
		WHERE i.id IN (?)
		GROUP BY i.id
		ORDER BY i.id`, ingredientIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var balances []models.IngredientBalance
	err = s.db.SelectContext(ctx, &balances, query, args...)
	return balances, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

// CreateRequestError records a failed request
func (s *Store) CreateRequestError(ctx context.Context, rec *models.RequestError) error {
	query := `
		INSERT INTO request_errors
			(exception_name, exception_value, exception_tb, request_method, path, query, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		truncate(rec.ExceptionName, 50), truncate(rec.ExceptionValue, 250), rec.ExceptionTB,
		truncate(rec.RequestMethod, 10), truncate(rec.Path, 500), rec.Query, rec.Data,
	).Scan(&rec.ID, &rec.CreatedAt)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
