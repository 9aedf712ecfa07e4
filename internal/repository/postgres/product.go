package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/repository"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new ProductRepository backed by Postgres.
func NewProductRepository(db *sql.DB) repository.ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, p *entity.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, user_id, name, price, original_price, category_id, image_url, inactive, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		p.ID, p.UserID, p.Name, p.Price, p.OriginalPrice, p.CategoryID, p.ImageURL, p.Inactive,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (r *productRepository) Update(ctx context.Context, p *entity.Product) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET name = $1, price = $2, original_price = $3, category_id = $4, image_url = $5, inactive = $6
		 WHERE id = $7 AND user_id = $8`,
		p.Name, p.Price, p.OriginalPrice, p.CategoryID, p.ImageURL, p.Inactive, p.ID, p.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *productRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *productRepository) FindByID(ctx context.Context, userID, id string) (*entity.Product, error) {
	var p entity.Product
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, price, original_price, category_id, image_url, inactive, created_at
		 FROM products WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.Price, &p.OriginalPrice, &p.CategoryID, &p.ImageURL, &p.Inactive, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return &p, nil
}

func (r *productRepository) FindByUser(ctx context.Context, userID string) ([]entity.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, price, original_price, category_id, image_url, inactive, created_at
		 FROM products WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []entity.Product
	for rows.Next() {
		var p entity.Product
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Price, &p.OriginalPrice, &p.CategoryID, &p.ImageURL, &p.Inactive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type categoryRepository struct {
	db *sql.DB
}

// NewCategoryRepository creates a new CategoryRepository backed by Postgres.
func NewCategoryRepository(db *sql.DB) repository.CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, c *entity.Category) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (id, user_id, name, created_at) VALUES ($1, $2, $3, NOW())",
		c.ID, c.UserID, c.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

// Delete is physical and does not cascade: dependent products keep the
// dangling category id and read as uncategorized.
func (r *categoryRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *categoryRepository) FindByUser(ctx context.Context, userID string) ([]entity.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, name, created_at FROM categories WHERE user_id = $1 ORDER BY name",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []entity.Category
	for rows.Next() {
		var c entity.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
