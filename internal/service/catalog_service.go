package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cafe-service/internal/models"
	"cafe-service/internal/store"
	"cafe-service/internal/util"

	"go.uber.org/zap"
)

// CatalogStore reads the public catalog
type CatalogStore interface {
	GetCategories(ctx context.Context) ([]models.Category, error)
	GetFirstCategory(ctx context.Context) (*models.Category, error)
	GetPublishedProducts(ctx context.Context, categorySlug string) ([]models.Product, error)
}

// ProductListing is the published products of one category
type ProductListing struct {
	Category string           `json:"category"`
	Products []models.Product `json:"products"`
}

type CatalogService struct {
	store  CatalogStore
	cache  ObjectCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCatalogService creates a catalog service. cache may be nil.
func NewCatalogService(store CatalogStore, cache ObjectCache, ttl time.Duration) *CatalogService {
	return &CatalogService{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: util.ComponentLogger("catalog_service"),
	}
}

// Categories lists all categories
func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if s.fromCache(ctx, "categories", &categories) {
		return categories, nil
	}

	categories, err := s.store.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if categories == nil {
		categories = []models.Category{}
	}

	s.toCache(ctx, "categories", categories)
	return categories, nil
}

// Products lists published products of a category. An empty slug selects
// the first category.
func (s *CatalogService) Products(ctx context.Context, categorySlug string) (*ProductListing, error) {
	if categorySlug == "" {
		first, err := s.store.GetFirstCategory(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return &ProductListing{Products: []models.Product{}}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find default category: %w", err)
		}
		categorySlug = first.Slug
	}

	key := "products:" + categorySlug
	listing := &ProductListing{}
	if s.fromCache(ctx, key, listing) {
		return listing, nil
	}

	products, err := s.store.GetPublishedProducts(ctx, categorySlug)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if products == nil {
		products = []models.Product{}
	}

	listing = &ProductListing{Category: categorySlug, Products: products}
	s.toCache(ctx, key, listing)
	return listing, nil
}

func (s *CatalogService) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}

	found, err := s.cache.GetObject(ctx, key, dest)
	if err != nil {
		util.CatalogCacheTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !found {
		util.CatalogCacheTotal.WithLabelValues("miss").Inc()
		return false
	}

	util.CatalogCacheTotal.WithLabelValues("hit").Inc()
	return true
}

func (s *CatalogService) toCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetObject(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("Catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
