package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/repository"
)

type connectedAccountRepository struct {
	db *sql.DB
}

// NewConnectedAccountRepository creates a new ConnectedAccountRepository
// backed by Postgres.
func NewConnectedAccountRepository(db *sql.DB) repository.ConnectedAccountRepository {
	return &connectedAccountRepository{db: db}
}

const accountColumns = `id, user_id, stripe_account_id, email, business_name, country, commission_rate, status,
	details_submitted, charges_enabled, payouts_enabled, onboarding_completed, created_at, updated_at`

func (r *connectedAccountRepository) Create(ctx context.Context, a *entity.ConnectedAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO connected_accounts (id, user_id, stripe_account_id, email, business_name, country, commission_rate, status,
		   details_submitted, charges_enabled, payouts_enabled, onboarding_completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())`,
		a.ID, a.UserID, a.StripeAccountID, a.Email, a.BusinessName, a.Country, a.CommissionRate, a.Status,
		a.DetailsSubmitted, a.ChargesEnabled, a.PayoutsEnabled, a.OnboardingCompleted,
	)
	if err != nil {
		return fmt.Errorf("failed to insert connected account: %w", err)
	}
	return nil
}

func (r *connectedAccountRepository) Update(ctx context.Context, a *entity.ConnectedAccount) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE connected_accounts SET stripe_account_id = $1, email = $2, business_name = $3, country = $4,
		   commission_rate = $5, status = $6, details_submitted = $7, charges_enabled = $8,
		   payouts_enabled = $9, onboarding_completed = $10, updated_at = NOW()
		 WHERE id = $11`,
		a.StripeAccountID, a.Email, a.BusinessName, a.Country, a.CommissionRate, a.Status,
		a.DetailsSubmitted, a.ChargesEnabled, a.PayoutsEnabled, a.OnboardingCompleted, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update connected account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// FindActiveByUser assumes at most one active account per user; if several
// exist the most recently updated one wins.
func (r *connectedAccountRepository) FindActiveByUser(ctx context.Context, userID string) (*entity.ConnectedAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM connected_accounts
		 WHERE user_id = $1 AND status = $2 ORDER BY updated_at DESC LIMIT 1`,
		userID, entity.AccountStatusActive,
	)
	return scanAccount(row)
}

func (r *connectedAccountRepository) FindByStripeAccount(ctx context.Context, stripeAccountID string) (*entity.ConnectedAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM connected_accounts WHERE stripe_account_id = $1 LIMIT 1`,
		stripeAccountID,
	)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*entity.ConnectedAccount, error) {
	var a entity.ConnectedAccount
	err := row.Scan(&a.ID, &a.UserID, &a.StripeAccountID, &a.Email, &a.BusinessName, &a.Country, &a.CommissionRate, &a.Status,
		&a.DetailsSubmitted, &a.ChargesEnabled, &a.PayoutsEnabled, &a.OnboardingCompleted, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan connected account: %w", err)
	}
	return &a, nil
}
