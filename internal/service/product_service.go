package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"church-pos/internal/cache"
	"church-pos/internal/model"
	"church-pos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	productCodePrefix   = "PRD-"
	productCachePattern = "products:*"
)

type ProductService interface {
	List(ctx context.Context, filter repository.ProductFilter) ([]model.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Product, error)
	Create(ctx context.Context, actor *model.Actor, req *CreateProductRequest) (*model.Product, error)
	Update(ctx context.Context, actor *model.Actor, id uuid.UUID, req *UpdateProductRequest) (*model.Product, error)
	Delete(ctx context.Context, actor *model.Actor, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, actor *model.Actor, req *CreateCategoryRequest) (*model.Category, error)
}

type CreateProductRequest struct {
	Code        string          `json:"code" validate:"max=50"`
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	CategoryID  *uuid.UUID      `json:"category_id"`
	Active      *bool           `json:"active"`
	Favorite    bool            `json:"favorite"`
}

type UpdateProductRequest struct {
	Code        *string          `json:"code" validate:"omitempty,min=1,max=50"`
	Name        *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	CategoryID  *uuid.UUID       `json:"category_id"`
	Active      *bool            `json:"active"`
	Favorite    *bool            `json:"favorite"`
}

type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type productService struct {
	productRepo repository.ProductRepository
	cache       cache.Store
	cacheTTL    time.Duration
	notifier    Notifier
}

func NewProductService(productRepo repository.ProductRepository, store cache.Store, cacheTTL time.Duration, notifier Notifier) ProductService {
	if store == nil {
		store = cache.NopStore{}
	}
	return &productService{
		productRepo: productRepo,
		cache:       store,
		cacheTTL:    cacheTTL,
		notifier:    notifierOrNop(notifier),
	}
}

func productCacheKey(f repository.ProductFilter) string {
	category := "all"
	if f.CategoryID != nil {
		category = f.CategoryID.String()
	}
	return fmt.Sprintf("products:q=%s:cat=%s:active=%s:fav=%s",
		strings.ToLower(strings.TrimSpace(f.Query)), category, optionalBool(f.Active), optionalBool(f.Favorite))
}

func optionalBool(b *bool) string {
	if b == nil {
		return "any"
	}
	return strconv.FormatBool(*b)
}

func (s *productService) List(ctx context.Context, filter repository.ProductFilter) ([]model.Product, error) {
	key := productCacheKey(filter)

	var products []model.Product
	hit, err := s.cache.GetJSON(ctx, key, &products)
	if err != nil {
		log.Printf("Cache read failed for %s: %v", key, err)
	}
	if hit {
		return products, nil
	}

	products, err = s.productRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, internalErr("failed to list products", err)
	}
	if err := s.cache.SetJSON(ctx, key, products, s.cacheTTL); err != nil {
		log.Printf("Cache write failed for %s: %v", key, err)
	}
	return products, nil
}

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, ErrProductNotFound, "failed to load product")
	}
	return product, nil
}

func (s *productService) Create(ctx context.Context, actor *model.Actor, req *CreateProductRequest) (*model.Product, error) {
	// 1. Validasi
	if err := requirePrivilege(actor, model.PrivProductManage); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.CategoryID != nil {
		if _, err := s.productRepo.FindCategoryByID(ctx, *req.CategoryID); err != nil {
			return nil, notFoundOr(err, ErrCategoryNotFound, "failed to load category")
		}
	}

	// 2. Code: explicit or next PRD-NNN
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		next, err := s.nextCode(ctx)
		if err != nil {
			return nil, err
		}
		code = next
	} else if _, err := s.productRepo.FindByCode(ctx, code); err == nil {
		return nil, ErrDuplicateCode
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	product := &model.Product{
		Code:        code,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		Active:      active,
		Favorite:    req.Favorite,
	}
	product.Stamp(actor.AuditID())

	// 3. Simpan
	if err := s.productRepo.Create(ctx, product); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrDuplicateCode
		}
		return nil, internalErr("failed to create product", err)
	}

	cache.InvalidatePattern(ctx, s.cache, productCachePattern)
	s.notifier.Publish("product_update", map[string]interface{}{
		"action":  "product_created",
		"product": product,
	}, fmt.Sprintf("%s created product '%s'", actor.Name, product.Name))

	return product, nil
}

// nextCode returns the next free PRD-NNN code, counting soft-deleted products
func (s *productService) nextCode(ctx context.Context) (string, error) {
	codes, err := s.productRepo.CodesWithPrefix(ctx, productCodePrefix)
	if err != nil {
		return "", internalErr("failed to generate product code", err)
	}
	highest := 0
	for _, c := range codes {
		n, err := strconv.Atoi(strings.TrimPrefix(c, productCodePrefix))
		if err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%03d", productCodePrefix, highest+1), nil
}

func (s *productService) Update(ctx context.Context, actor *model.Actor, id uuid.UUID, req *UpdateProductRequest) (*model.Product, error) {
	if err := requirePrivilege(actor, model.PrivProductManage); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{"updated_by": actor.AuditID()}
	if req.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Code))
		if existing, err := s.productRepo.FindByCode(ctx, code); err == nil && existing.ID != id {
			return nil, ErrDuplicateCode
		}
		fields["code"] = code
	}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Price != nil {
		fields["price"] = *req.Price
	}
	if req.CategoryID != nil {
		if _, err := s.productRepo.FindCategoryByID(ctx, *req.CategoryID); err != nil {
			return nil, notFoundOr(err, ErrCategoryNotFound, "failed to load category")
		}
		fields["category_id"] = *req.CategoryID
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}
	if req.Favorite != nil {
		fields["favorite"] = *req.Favorite
	}

	if err := s.productRepo.Update(ctx, id, fields); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrDuplicateCode
		}
		return nil, notFoundOr(err, ErrProductNotFound, "failed to update product")
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, ErrProductNotFound, "failed to reload product")
	}

	cache.InvalidatePattern(ctx, s.cache, productCachePattern)
	s.notifier.Publish("product_update", map[string]interface{}{
		"action":  "product_updated",
		"product": product,
	}, fmt.Sprintf("%s updated product '%s'", actor.Name, product.Name))

	return product, nil
}

func (s *productService) Delete(ctx context.Context, actor *model.Actor, id uuid.UUID) error {
	if err := requirePrivilege(actor, model.PrivProductManage); err != nil {
		return err
	}
	if err := s.productRepo.Delete(ctx, id, actor.AuditID()); err != nil {
		return notFoundOr(err, ErrProductNotFound, "failed to delete product")
	}

	cache.InvalidatePattern(ctx, s.cache, productCachePattern)
	s.notifier.Publish("product_update", map[string]interface{}{
		"action":     "product_deleted",
		"product_id": id,
	}, fmt.Sprintf("%s deleted a product", actor.Name))
	return nil
}

func (s *productService) ListCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.productRepo.FindAllCategories(ctx)
	if err != nil {
		return nil, internalErr("failed to list categories", err)
	}
	return categories, nil
}

func (s *productService) CreateCategory(ctx context.Context, actor *model.Actor, req *CreateCategoryRequest) (*model.Category, error) {
	if err := requirePrivilege(actor, model.PrivProductManage); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	category := &model.Category{Name: strings.TrimSpace(req.Name)}
	category.Stamp(actor.AuditID())
	if err := s.productRepo.CreateCategory(ctx, category); err != nil {
		return nil, internalErr("failed to create category", err)
	}
	return category, nil
}
