package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/repository"
)

type saleRepository struct {
	db *sql.DB
}

// NewSaleRepository creates a new SaleRepository backed by Postgres.
func NewSaleRepository(db *sql.DB) repository.SaleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) Insert(ctx context.Context, s *entity.Sale) error {
	items, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal sale items: %w", err)
	}
	var metadata []byte
	if len(s.Metadata) > 0 {
		if metadata, err = json.Marshal(s.Metadata); err != nil {
			return fmt.Errorf("failed to marshal sale metadata: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sales (id, user_id, items, subtotal, total, payment_method, payment_status, status, client_id, payment_intent_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())`,
		s.ID, s.UserID, items, s.Subtotal, s.Total, s.PaymentMethod, s.PaymentStatus, s.Status, s.ClientID, s.PaymentIntentID, metadata,
	)
	if err != nil {
		return classifySaleError(err)
	}
	return nil
}

// classifySaleError maps SQLSTATE codes onto messages the API surfaces
// directly. The check-constraint case historically fired on a stock
// constraint the catalog no longer enforces.
func classifySaleError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return fmt.Errorf("failed to insert sale: %w", err)
	}
	switch pqErr.Code {
	case "42P01": // undefined_table
		return fmt.Errorf("sales table does not exist: %w", err)
	case "42501": // insufficient_privilege
		return fmt.Errorf("permission denied inserting sale: %w", err)
	case "23505": // unique_violation
		return fmt.Errorf("sale already exists: %w", err)
	case "23514": // check_violation
		return fmt.Errorf("sale violates a table constraint (%s): %w", pqErr.Constraint, err)
	}
	return fmt.Errorf("failed to insert sale: %w", err)
}

func (r *saleRepository) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*entity.Sale, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, items, subtotal, total, payment_method, payment_status, status, client_id, payment_intent_id, metadata, created_at
		 FROM sales WHERE payment_intent_id = $1 ORDER BY created_at LIMIT 1`,
		paymentIntentID,
	)
	return scanSale(row)
}

func (r *saleRepository) FindByUser(ctx context.Context, userID string, from, to time.Time, limit int) ([]entity.Sale, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, items, subtotal, total, payment_method, payment_status, status, client_id, payment_intent_id, metadata, created_at
		 FROM sales WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at DESC LIMIT $4`,
		userID, from, to, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []entity.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *s)
	}
	return sales, rows.Err()
}

func (r *saleRepository) Summary(ctx context.Context, userID string, from, to time.Time) (*repository.SalesSummary, error) {
	var sum repository.SalesSummary
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(total), 0),
		        COUNT(*) FILTER (WHERE payment_method = 'card'),
		        COUNT(*) FILTER (WHERE payment_method = 'cash')
		 FROM sales WHERE user_id = $1 AND created_at >= $2 AND created_at < $3`,
		userID, from, to,
	).Scan(&sum.Count, &sum.Revenue, &sum.CardCount, &sum.CashCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales summary: %w", err)
	}
	return &sum, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*entity.Sale, error) {
	var s entity.Sale
	var items []byte
	var metadata []byte
	err := row.Scan(&s.ID, &s.UserID, &items, &s.Subtotal, &s.Total, &s.PaymentMethod, &s.PaymentStatus, &s.Status, &s.ClientID, &s.PaymentIntentID, &metadata, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sale: %w", err)
	}
	if err := json.Unmarshal(items, &s.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sale items: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sale metadata: %w", err)
		}
	}
	return &s, nil
}
