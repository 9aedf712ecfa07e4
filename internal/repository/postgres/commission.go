package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/repository"
)

type commissionRepository struct {
	db *sql.DB
}

// NewCommissionRepository creates a new CommissionRepository backed by
// Postgres.
func NewCommissionRepository(db *sql.DB) repository.CommissionRepository {
	return &commissionRepository{db: db}
}

const commissionColumns = `id, connected_account_id, stripe_account_id, payment_intent_id, session_id, customer_email,
	product_name, amount_total, commission_amount, net_amount, currency, status, transfer_id, created_at, updated_at`

// CreatePending seeds the pending row at checkout-session creation. The
// UNIQUE session_id plus ON CONFLICT DO NOTHING makes re-seeding a no-op.
func (r *commissionRepository) CreatePending(ctx context.Context, c *entity.CommissionSale) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO commission_sales (id, connected_account_id, stripe_account_id, payment_intent_id, session_id,
		   customer_email, product_name, amount_total, currency, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		 ON CONFLICT (session_id) DO NOTHING`,
		c.ID, c.ConnectedAccountID, c.StripeAccountID, c.PaymentIntentID, c.SessionID,
		c.CustomerEmail, c.ProductName, c.AmountTotal, c.Currency, entity.CommissionStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pending commission: %w", err)
	}
	return nil
}

func (r *commissionRepository) FindPendingByPaymentIntent(ctx context.Context, paymentIntentID string) (*entity.CommissionSale, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+commissionColumns+` FROM commission_sales
		 WHERE LOWER(payment_intent_id) = LOWER($1) AND status = $2
		 ORDER BY created_at DESC LIMIT 1`,
		paymentIntentID, entity.CommissionStatusPending,
	)
	return scanCommission(row)
}

func (r *commissionRepository) FindPendingBySession(ctx context.Context, sessionID string) (*entity.CommissionSale, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+commissionColumns+` FROM commission_sales
		 WHERE session_id = $1 AND status = $2
		 ORDER BY created_at DESC LIMIT 1`,
		sessionID, entity.CommissionStatusPending,
	)
	return scanCommission(row)
}

func (r *commissionRepository) FindPendingByAmountAndEmail(ctx context.Context, amount float64, email string) (*entity.CommissionSale, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+commissionColumns+` FROM commission_sales
		 WHERE amount_total = $1 AND LOWER(customer_email) = LOWER($2) AND status = $3
		 ORDER BY created_at DESC LIMIT 1`,
		amount, email, entity.CommissionStatusPending,
	)
	return scanCommission(row)
}

// Complete moves pending → completed. The WHERE clause on status keeps the
// transition one-directional even if two reconcilers race on the same row.
func (r *commissionRepository) Complete(ctx context.Context, id, paymentIntentID, stripeAccountID string, commission, net float64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE commission_sales
		 SET status = $1,
		     commission_amount = $2,
		     net_amount = $3,
		     payment_intent_id = CASE WHEN payment_intent_id = '' THEN $4 ELSE payment_intent_id END,
		     stripe_account_id = CASE WHEN stripe_account_id = '' THEN $5 ELSE stripe_account_id END,
		     updated_at = NOW()
		 WHERE id = $6 AND status = $7`,
		entity.CommissionStatusCompleted, commission, net, paymentIntentID, stripeAccountID,
		id, entity.CommissionStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to complete commission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *commissionRepository) SetTransfer(ctx context.Context, id, transferID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE commission_sales SET transfer_id = $1, updated_at = NOW() WHERE id = $2",
		transferID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set transfer id: %w", err)
	}
	return nil
}

func (r *commissionRepository) FindByID(ctx context.Context, id string) (*entity.CommissionSale, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+commissionColumns+` FROM commission_sales WHERE id = $1`, id,
	)
	return scanCommission(row)
}

func (r *commissionRepository) FindByAccount(ctx context.Context, connectedAccountID string, limit int) ([]entity.CommissionSale, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+commissionColumns+` FROM commission_sales
		 WHERE connected_account_id = $1 ORDER BY created_at DESC LIMIT $2`,
		connectedAccountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query commissions: %w", err)
	}
	defer rows.Close()

	var commissions []entity.CommissionSale
	for rows.Next() {
		var c entity.CommissionSale
		if err := rows.Scan(&c.ID, &c.ConnectedAccountID, &c.StripeAccountID, &c.PaymentIntentID, &c.SessionID, &c.CustomerEmail,
			&c.ProductName, &c.AmountTotal, &c.CommissionAmount, &c.NetAmount, &c.Currency, &c.Status, &c.TransferID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan commission: %w", err)
		}
		commissions = append(commissions, c)
	}
	return commissions, rows.Err()
}

func scanCommission(row *sql.Row) (*entity.CommissionSale, error) {
	var c entity.CommissionSale
	err := row.Scan(&c.ID, &c.ConnectedAccountID, &c.StripeAccountID, &c.PaymentIntentID, &c.SessionID, &c.CustomerEmail,
		&c.ProductName, &c.AmountTotal, &c.CommissionAmount, &c.NetAmount, &c.Currency, &c.Status, &c.TransferID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan commission: %w", err)
	}
	return &c, nil
}
