package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/repository"
)

type settingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new SettingsRepository backed by Postgres.
func NewSettingsRepository(db *sql.DB) repository.SettingsRepository {
	return &settingsRepository{db: db}
}

// Get returns defaults when no row exists; a missing row is not an error.
func (r *settingsRepository) Get(ctx context.Context, userID string) (*entity.UserSettings, error) {
	var s entity.UserSettings
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id, business_name, theme, updated_at FROM user_settings WHERE user_id = $1",
		userID,
	).Scan(&s.UserID, &s.BusinessName, &s.Theme, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return &entity.UserSettings{UserID: userID, Theme: "light"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	return &s, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, s *entity.UserSettings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, business_name, theme, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET business_name = $2, theme = $3, updated_at = NOW()`,
		s.UserID, s.BusinessName, s.Theme,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	return nil
}

type paymentSessionRepository struct {
	db *sql.DB
}

// NewPaymentSessionRepository creates a new PaymentSessionRepository
// backed by Postgres.
func NewPaymentSessionRepository(db *sql.DB) repository.PaymentSessionRepository {
	return &paymentSessionRepository{db: db}
}

func (r *paymentSessionRepository) Create(ctx context.Context, s *entity.PaymentSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_sessions (id, user_id, session_id, amount_total, discount, customer_email, completed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW())
		 ON CONFLICT (session_id) DO NOTHING`,
		s.ID, s.UserID, s.SessionID, s.AmountTotal, s.Discount, s.CustomerEmail,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment session: %w", err)
	}
	return nil
}

func (r *paymentSessionRepository) MarkCompleted(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE payment_sessions SET completed = TRUE WHERE session_id = $1",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark payment session completed: %w", err)
	}
	return nil
}

func (r *paymentSessionRepository) FindBySession(ctx context.Context, sessionID string) (*entity.PaymentSession, error) {
	var s entity.PaymentSession
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, session_id, amount_total, discount, customer_email, completed, created_at
		 FROM payment_sessions WHERE session_id = $1`,
		sessionID,
	).Scan(&s.ID, &s.UserID, &s.SessionID, &s.AmountTotal, &s.Discount, &s.CustomerEmail, &s.Completed, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query payment session: %w", err)
	}
	return &s, nil
}
