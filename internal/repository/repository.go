package repository

import (
	"context"
	"errors"
	"time"

	"github.com/puntoventa/backend/internal/entity"
)

// ErrNotFound is returned by lookups when no row matches. Callers decide
// whether that is a hard error or a soft "nothing to do" outcome.
var ErrNotFound = errors.New("not found")

// ProductRepository handles persistence for Products.
type ProductRepository interface {
	Create(ctx context.Context, p *entity.Product) error
	Update(ctx context.Context, p *entity.Product) error
	Delete(ctx context.Context, userID, id string) error
	FindByID(ctx context.Context, userID, id string) (*entity.Product, error)
	FindByUser(ctx context.Context, userID string) ([]entity.Product, error)
}

// CategoryRepository handles persistence for Categories. Deletes are
// physical and do not cascade to products.
type CategoryRepository interface {
	Create(ctx context.Context, c *entity.Category) error
	Delete(ctx context.Context, userID, id string) error
	FindByUser(ctx context.Context, userID string) ([]entity.Category, error)
}

// SalesSummary aggregates the ledger for reporting.
type SalesSummary struct {
	Count     int     `json:"count"`
	Revenue   float64 `json:"revenue"`
	CardCount int     `json:"card_count"`
	CashCount int     `json:"cash_count"`
}

// SaleRepository handles the sales ledger.
type SaleRepository interface {
	Insert(ctx context.Context, s *entity.Sale) error
	// FindByPaymentIntent backs the duplicate guard in sale recording.
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*entity.Sale, error)
	FindByUser(ctx context.Context, userID string, from, to time.Time, limit int) ([]entity.Sale, error)
	Summary(ctx context.Context, userID string, from, to time.Time) (*SalesSummary, error)
}

// ConnectedAccountRepository handles sub-merchant accounts.
type ConnectedAccountRepository interface {
	Create(ctx context.Context, a *entity.ConnectedAccount) error
	Update(ctx context.Context, a *entity.ConnectedAccount) error
	FindActiveByUser(ctx context.Context, userID string) (*entity.ConnectedAccount, error)
	// FindByStripeAccount backs the conflict check for manual claims.
	FindByStripeAccount(ctx context.Context, stripeAccountID string) (*entity.ConnectedAccount, error)
}

// CommissionRepository handles commission bookkeeping rows.
type CommissionRepository interface {
	// CreatePending seeds the pending row at checkout-session creation.
	// The session id is the idempotency key: re-seeding is a no-op.
	CreatePending(ctx context.Context, c *entity.CommissionSale) error
	FindPendingByPaymentIntent(ctx context.Context, paymentIntentID string) (*entity.CommissionSale, error)
	FindPendingBySession(ctx context.Context, sessionID string) (*entity.CommissionSale, error)
	FindPendingByAmountAndEmail(ctx context.Context, amount float64, email string) (*entity.CommissionSale, error)
	// Complete moves pending → completed, stamps the amounts and backfills
	// the external account id when previously empty.
	Complete(ctx context.Context, id, paymentIntentID, stripeAccountID string, commission, net float64) error
	SetTransfer(ctx context.Context, id, transferID string) error
	FindByID(ctx context.Context, id string) (*entity.CommissionSale, error)
	FindByAccount(ctx context.Context, connectedAccountID string, limit int) ([]entity.CommissionSale, error)
}

// SettingsRepository handles per-user settings with read-through defaults.
type SettingsRepository interface {
	Get(ctx context.Context, userID string) (*entity.UserSettings, error)
	Upsert(ctx context.Context, s *entity.UserSettings) error
}

// PaymentSessionRepository records checkout sessions handed to the gateway.
type PaymentSessionRepository interface {
	Create(ctx context.Context, s *entity.PaymentSession) error
	MarkCompleted(ctx context.Context, sessionID string) error
	FindBySession(ctx context.Context, sessionID string) (*entity.PaymentSession, error)
}
