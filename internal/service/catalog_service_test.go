package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"cafe-service/internal/models"
	"cafe-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalogStore struct {
	categories []models.Category
	products   map[string][]models.Product
	calls      int
}

func (f *fakeCatalogStore) GetCategories(ctx context.Context) ([]models.Category, error) {
	f.calls++
	return f.categories, nil
}

func (f *fakeCatalogStore) GetFirstCategory(ctx context.Context) (*models.Category, error) {
	if len(f.categories) == 0 {
		return nil, fmt.Errorf("no categories: %w", store.ErrNotFound)
	}
	return &f.categories[0], nil
}

func (f *fakeCatalogStore) GetPublishedProducts(ctx context.Context, slug string) ([]models.Product, error) {
	f.calls++
	return f.products[slug], nil
}

// mapCache mimics the Redis object cache by round-tripping through JSON
type mapCache struct {
	values map[string][]byte
	err    error
}

func newMapCache() *mapCache {
	return &mapCache{values: map[string][]byte{}}
}

func (c *mapCache) GetObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	val, ok := c.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(val, dest)
}

func (c *mapCache) SetObject(ctx context.Context, key string, obj interface{}, ttl time.Duration) error {
	if c.err != nil {
		return c.err
	}
	val, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	c.values[key] = val
	return nil
}

func newCatalog() *fakeCatalogStore {
	return &fakeCatalogStore{
		categories: []models.Category{
			{ID: 1, Title: "Coffee", Slug: "coffee"},
			{ID: 2, Title: "Desserts", Slug: "desserts"},
		},
		products: map[string][]models.Product{
			"coffee":   {{ID: 1, Title: "Latte", Price: dec("5.00"), Published: true, CategoryID: 1}},
			"desserts": {{ID: 2, Title: "Cookie", Price: dec("1.50"), Published: true, CategoryID: 2}},
		},
	}
}

func TestProductsDefaultsToFirstCategory(t *testing.T) {
	svc := NewCatalogService(newCatalog(), nil, time.Minute)

	listing, err := svc.Products(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "coffee", listing.Category)
	require.Len(t, listing.Products, 1)
	assert.Equal(t, "Latte", listing.Products[0].Title)
}

func TestProductsWithoutCategories(t *testing.T) {
	svc := NewCatalogService(&fakeCatalogStore{}, nil, time.Minute)

	listing, err := svc.Products(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, listing.Products)
}

func TestProductsUnknownCategoryIsEmpty(t *testing.T) {
	svc := NewCatalogService(newCatalog(), nil, time.Minute)

	listing, err := svc.Products(context.Background(), "tea")
	require.NoError(t, err)
	assert.NotNil(t, listing.Products)
	assert.Empty(t, listing.Products)
}

func TestCatalogServesFromCache(t *testing.T) {
	catalog := newCatalog()
	svc := NewCatalogService(catalog, newMapCache(), time.Minute)

	first, err := svc.Products(context.Background(), "desserts")
	require.NoError(t, err)
	second, err := svc.Products(context.Background(), "desserts")
	require.NoError(t, err)

	assert.Equal(t, 1, catalog.calls)
	require.Len(t, second.Products, 1)
	assert.Equal(t, first.Products[0].ID, second.Products[0].ID)
	assertDecimal(t, "1.50", second.Products[0].Price)

	_, err = svc.Categories(context.Background())
	require.NoError(t, err)
	categories, err := svc.Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, categories, 2)
	assert.Equal(t, 2, catalog.calls)
}

func TestCatalogFallsBackWhenCacheFails(t *testing.T) {
	catalog := newCatalog()
	cache := newMapCache()
	cache.err = errors.New("redis down")
	svc := NewCatalogService(catalog, cache, time.Minute)

	categories, err := svc.Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, categories, 2)
}
