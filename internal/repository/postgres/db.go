package postgres

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Database connected and migrated")
	return db, nil
}

func migrateDB(db *sql.DB) error {
	// The sales ledger deliberately has NO unique index on
	// payment_intent_id: the duplicate guard is application-level.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (price >= 0),
			original_price DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (original_price >= 0),
			category_id TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			inactive BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			items JSONB NOT NULL,
			subtotal DOUBLE PRECISION NOT NULL DEFAULT 0,
			total DOUBLE PRECISION NOT NULL DEFAULT 0,
			payment_method TEXT NOT NULL DEFAULT 'card',
			payment_status TEXT NOT NULL DEFAULT 'paid',
			status TEXT NOT NULL DEFAULT 'completed',
			client_id TEXT NOT NULL DEFAULT '',
			payment_intent_id TEXT NOT NULL DEFAULT '',
			metadata JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_sales_payment_intent ON sales (payment_intent_id);
		CREATE INDEX IF NOT EXISTS idx_sales_user_created ON sales (user_id, created_at);

		CREATE TABLE IF NOT EXISTS connected_accounts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			stripe_account_id TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			business_name TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			commission_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			details_submitted BOOLEAN NOT NULL DEFAULT FALSE,
			charges_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			payouts_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			onboarding_completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_connected_accounts_user ON connected_accounts (user_id);

		CREATE TABLE IF NOT EXISTS commission_sales (
			id TEXT PRIMARY KEY,
			connected_account_id TEXT NOT NULL,
			stripe_account_id TEXT NOT NULL DEFAULT '',
			payment_intent_id TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL UNIQUE,
			customer_email TEXT NOT NULL DEFAULT '',
			product_name TEXT NOT NULL DEFAULT '',
			amount_total DOUBLE PRECISION NOT NULL DEFAULT 0,
			commission_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			net_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'eur',
			status TEXT NOT NULL DEFAULT 'pending',
			transfer_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_commission_sales_intent ON commission_sales (payment_intent_id);

		CREATE TABLE IF NOT EXISTS user_settings (
			user_id TEXT PRIMARY KEY,
			business_name TEXT NOT NULL DEFAULT '',
			theme TEXT NOT NULL DEFAULT 'light',
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS payment_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL UNIQUE,
			amount_total DOUBLE PRECISION NOT NULL DEFAULT 0,
			discount DOUBLE PRECISION NOT NULL DEFAULT 0,
			customer_email TEXT NOT NULL DEFAULT '',
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
	`)
	return err
}
