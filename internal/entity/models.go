package entity

import (
	"time"
)

// Product is a catalog entry owned by a seller.
type Product struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	OriginalPrice float64   `json:"original_price"`
	CategoryID    string    `json:"category_id"`
	ImageURL      string    `json:"image_url"`
	Inactive      bool      `json:"inactive"`
	CreatedAt     time.Time `json:"created_at"`
}

// Category groups products. The reference from Product is loose: deleting
// a category leaves dependent products with a dangling id, which readers
// treat as uncategorized.
type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// SaleItem is a line-item snapshot taken at sale time.
type SaleItem struct {
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	UnitPrice     float64 `json:"unit_price"`
	OriginalPrice float64 `json:"original_price,omitempty"`
	Quantity      int     `json:"quantity"`
}

// Subtotal returns the undiscounted sum of the items.
func Subtotal(items []SaleItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.UnitPrice * float64(it.Quantity)
	}
	return sum
}

const (
	SaleStatusCompleted = "completed"

	PaymentStatusPaid    = "paid"
	PaymentStatusPending = "pending"

	PaymentMethodCard = "card"
	PaymentMethodCash = "cash"
)

// Sale is one row in the sales ledger. Rows are written once per completed
// checkout or cash transaction and never updated afterwards.
type Sale struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	Items           []SaleItem        `json:"items"`
	Subtotal        float64           `json:"subtotal"`
	Total           float64           `json:"total"`
	PaymentMethod   string            `json:"payment_method"`
	PaymentStatus   string            `json:"payment_status"`
	Status          string            `json:"status"`
	ClientID        string            `json:"client_id,omitempty"`
	PaymentIntentID string            `json:"payment_intent_id,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

const (
	AccountStatusActive     = "active"
	AccountStatusPending    = "pending"
	AccountStatusRestricted = "restricted"
	AccountStatusInactive   = "inactive"
)

// ConnectedAccount links a seller to a payment-provider sub-merchant
// account. At most one active account per user is assumed by lookups.
type ConnectedAccount struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	StripeAccountID     string    `json:"stripe_account_id"`
	Email               string    `json:"email"`
	BusinessName        string    `json:"business_name"`
	Country             string    `json:"country"`
	CommissionRate      float64   `json:"commission_rate"` // fraction, 0..1
	Status              string    `json:"status"`
	DetailsSubmitted    bool      `json:"details_submitted"`
	ChargesEnabled      bool      `json:"charges_enabled"`
	PayoutsEnabled      bool      `json:"payouts_enabled"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

const (
	CommissionStatusPending   = "pending"
	CommissionStatusCompleted = "completed"
)

// CommissionSale tracks the platform's cut of one checkout. A pending row
// is seeded when the checkout session is created, keyed by the session id,
// and completed by the reconciler once the payment settles. The only legal
// status transition is pending → completed.
type CommissionSale struct {
	ID                 string    `json:"id"`
	ConnectedAccountID string    `json:"connected_account_id"`
	StripeAccountID    string    `json:"stripe_account_id,omitempty"`
	PaymentIntentID    string    `json:"payment_intent_id,omitempty"`
	SessionID          string    `json:"session_id"`
	CustomerEmail      string    `json:"customer_email"`
	ProductName        string    `json:"product_name"`
	AmountTotal        float64   `json:"amount_total"`
	CommissionAmount   float64   `json:"commission_amount"`
	NetAmount          float64   `json:"net_amount"`
	Currency           string    `json:"currency"`
	Status             string    `json:"status"`
	TransferID         string    `json:"transfer_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// UserSettings are per-user presentation preferences with read-through
// defaults; a missing row is not an error.
type UserSettings struct {
	UserID       string    `json:"user_id"`
	BusinessName string    `json:"business_name"`
	Theme        string    `json:"theme"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PaymentSession records a checkout session handed to the gateway, so the
// thank-you flow can correlate redirects back to a cart.
type PaymentSession struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	SessionID     string    `json:"session_id"`
	AmountTotal   float64   `json:"amount_total"`
	Discount      float64   `json:"discount"`
	CustomerEmail string    `json:"customer_email"`
	Completed     bool      `json:"completed"`
	CreatedAt     time.Time `json:"created_at"`
}
