package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/repository"
)

// CatalogService handles product and category management for a seller.
type CatalogService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
}

func NewCatalogService(products repository.ProductRepository, categories repository.CategoryRepository) *CatalogService {
	return &CatalogService{products: products, categories: categories}
}

// ProductInput carries the editable fields of a product.
type ProductInput struct {
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"original_price"`
	CategoryID    string  `json:"category_id"`
	ImageURL      string  `json:"image_url"`
	Inactive      bool    `json:"inactive"`
}

func (in ProductInput) validate() error {
	if in.Name == "" {
		return fmt.Errorf("product name is required")
	}
	if in.Price < 0 || in.OriginalPrice < 0 {
		return fmt.Errorf("prices must be non-negative")
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, userID string, in ProductInput) (*entity.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	original := in.OriginalPrice
	if original == 0 {
		original = in.Price
	}
	p := &entity.Product{
		ID:            uuid.New().String(),
		UserID:        userID,
		Name:          in.Name,
		Price:         in.Price,
		OriginalPrice: original,
		CategoryID:    in.CategoryID,
		ImageURL:      in.ImageURL,
		Inactive:      in.Inactive,
		CreatedAt:     time.Now(),
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, userID, id string, in ProductInput) (*entity.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.products.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	p.Name = in.Name
	p.Price = in.Price
	p.OriginalPrice = in.OriginalPrice
	p.CategoryID = in.CategoryID
	p.ImageURL = in.ImageURL
	p.Inactive = in.Inactive
	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, userID, id string) error {
	return s.products.Delete(ctx, userID, id)
}

func (s *CatalogService) ListProducts(ctx context.Context, userID string) ([]entity.Product, error) {
	return s.products.FindByUser(ctx, userID)
}

func (s *CatalogService) CreateCategory(ctx context.Context, userID, name string) (*entity.Category, error) {
	if name == "" {
		return nil, fmt.Errorf("category name is required")
	}
	c := &entity.Category{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCategory is physical and does not cascade: dependent products
// keep the dangling id and read as uncategorized.
func (s *CatalogService) DeleteCategory(ctx context.Context, userID, id string) error {
	return s.categories.Delete(ctx, userID, id)
}

func (s *CatalogService) ListCategories(ctx context.Context, userID string) ([]entity.Category, error) {
	return s.categories.FindByUser(ctx, userID)
}
