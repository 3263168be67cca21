package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cafe-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a referenced row does not exist
var ErrNotFound = errors.New("record not found")

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn inside one transaction, committing only when fn succeeds
func (s *Store) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsRetryable reports whether err is a deadlock or serialization failure
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40P01", "40001":
		return true
	}
	return false
}

// notFound maps sql.ErrNoRows to ErrNotFound
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
	}
	return err
}

// GetCategories retrieves all categories
func (s *Store) GetCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories, "SELECT * FROM categories ORDER BY id")
	return categories, err
}

// GetFirstCategory retrieves the category shown when none is selected
func (s *Store) GetFirstCategory(ctx context.Context) (*models.Category, error) {
	var category models.Category
	err := s.db.GetContext(ctx, &category, "SELECT * FROM categories ORDER BY id LIMIT 1")
	if err != nil {
		return nil, notFound(err, "no categories")
	}
	return &category, nil
}

// GetPublishedProducts retrieves published products of a category
func (s *Store) GetPublishedProducts(ctx context.Context, categorySlug string) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, `
		SELECT p.* FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.published AND c.slug = $1
		ORDER BY p.title`, categorySlug)
	return products, err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "product %d", id)
	}
	return &product, nil
}
