package entity

import (
	"time"
)

// SaleRecorded is published after a ledger insert so downstream consumers
// (reporting, notifications) can react without re-querying the ledger.
type SaleRecorded struct {
	SaleID          string     `json:"sale_id"`
	UserID          string     `json:"user_id"`
	Items           []SaleItem `json:"items"`
	Total           float64    `json:"total"`
	PaymentMethod   string     `json:"payment_method"`
	PaymentIntentID string     `json:"payment_intent_id,omitempty"`
	RecordedAt      time.Time  `json:"recorded_at"`
}

func (e SaleRecorded) EventType() string { return "SaleRecorded" }

// PayoutRequested is enqueued when a transfer to a connected account
// fails during reconciliation. The payout worker consumes it and retries;
// bookkeeping completion does not wait for the money movement.
type PayoutRequested struct {
	CommissionSaleID string    `json:"commission_sale_id"`
	StripeAccountID  string    `json:"stripe_account_id"`
	Amount           float64   `json:"amount"`
	Currency         string    `json:"currency"`
	Attempt          int       `json:"attempt"`
	RequestedAt      time.Time `json:"requested_at"`
}

func (e PayoutRequested) EventType() string { return "PayoutRequested" }
