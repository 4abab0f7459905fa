package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abarbet/shoply-backend/pkg/db/models"
	pkgerrors "github.com/abarbet/shoply-backend/pkg/errors"
	"github.com/abarbet/shoply-backend/pkg/logger"
	"github.com/abarbet/shoply-backend/pkg/pagination"
	"github.com/abarbet/shoply-backend/pkg/redis"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// cacheCollection is the generation-counter namespace for catalog pages.
const cacheCollection = "products"

// Service exposes catalog management and browse operations.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
}

type productRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*pagination.Result[models.Product], error)
}

type cacheStore interface {
	CacheVersion(ctx context.Context, collection string) (int64, error)
	BumpCacheVersion(ctx context.Context, collection string) (int64, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type service struct {
	repo     productRepository
	cache    cacheStore
	cacheTTL time.Duration
	logg     *logger.Logger
}

// NewService constructs a catalog service. The cache is optional; a nil cache
// disables list caching but leaves every operation functional.
func NewService(repo productRepository, cache cacheStore, cacheTTL time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logg:     logg,
	}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}

	product := &models.Product{
		Name:        name,
		Description: input.Description,
		Category:    input.Category,
		Price:       input.Price,
		Stock:       input.Stock,
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}

	s.invalidateListCache(ctx)
	return FromModel(created), nil
}

func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Category != nil {
		updates["category"] = *input.Category
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		updates["price"] = *input.Price
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
		}
		updates["stock"] = *input.Stock
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, productID, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		s.invalidateListCache(ctx)
	}

	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
	}
	return FromModel(product), nil
}

func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if err := s.repo.Delete(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	s.invalidateListCache(ctx)
	return nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return FromModel(product), nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	input.Pagination = input.Pagination.Normalize()

	cacheKey, usable := s.listCacheKey(ctx, input)
	if usable {
		if cached, found, err := s.cache.Get(ctx, cacheKey); err == nil && found {
			var result ProductListResult
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				return &result, nil
			}
		}
	}

	page, err := s.repo.List(ctx, input.Filters, input.Pagination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	items := make([]ProductDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, *FromModel(&page.Items[i]))
	}
	result := &ProductListResult{
		Items:      items,
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
	}

	if usable {
		if payload, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, cacheKey, string(payload), s.cacheTTL); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "caching product list failed")
			}
		}
	}

	return result, nil
}

// listCacheKey resolves the generation-scoped cache key for a list request.
// It reports false when caching should be skipped for this call.
func (s *service) listCacheKey(ctx context.Context, input ListProductsInput) (string, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return "", false
	}
	version, err := s.cache.CacheVersion(ctx, cacheCollection)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "reading product cache version failed")
		return "", false
	}
	return redis.CacheEntryKey(cacheCollection, version, listDiscriminator(input)), true
}

func listDiscriminator(input ListProductsInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "page_%d_size_%d", input.Pagination.Page, input.Pagination.PageSize)
	if input.Filters.Category != nil && *input.Filters.Category != "" {
		fmt.Fprintf(&b, "_cat_%s", *input.Filters.Category)
	}
	if input.Filters.PriceMin != nil {
		fmt.Fprintf(&b, "_min_%s", input.Filters.PriceMin.String())
	}
	if input.Filters.PriceMax != nil {
		fmt.Fprintf(&b, "_max_%s", input.Filters.PriceMax.String())
	}
	if q := strings.TrimSpace(input.Filters.Query); q != "" {
		fmt.Fprintf(&b, "_q_%s", strings.ToLower(q))
	}
	if input.Filters.InStock {
		b.WriteString("_instock")
	}
	if sortBy := strings.ToLower(input.Filters.SortBy); sortBy != "" {
		fmt.Fprintf(&b, "_sort_%s_%t", sortBy, input.Filters.Descending)
	}
	return b.String()
}

// invalidateListCache advances the generation counter so stale pages are
// never served after a catalog mutation.
func (s *service) invalidateListCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.BumpCacheVersion(ctx, cacheCollection); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "bumping product cache version failed")
	}
}
