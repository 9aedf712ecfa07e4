// Package payments abstracts the hosted payment gateway. The gateway is
// the source of truth for payment state until the sale recorder runs.
package payments

import (
	"context"
)

// LineItem is one priced line sent to or read back from the gateway.
// Amounts are in the smallest currency unit (cents).
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// CheckoutParams describes a checkout session to create.
type CheckoutParams struct {
	LineItems     []LineItem
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	// Metadata is persisted gateway-side so the verification flow can
	// recover the cart after the hosted page redirects back.
	Metadata map[string]string
}

// CheckoutSession is the gateway's view of a checkout.
type CheckoutSession struct {
	ID              string
	URL             string
	PaymentIntentID string
	PaymentStatus   string // "paid", "unpaid", "no_payment_required"
	AmountTotal     int64
	Currency        string
	CustomerEmail   string
	Metadata        map[string]string
	LineItems       []LineItem
}

// Paid reports whether the session's payment has settled.
func (s *CheckoutSession) Paid() bool {
	return s != nil && s.PaymentStatus == "paid"
}

// PaymentIntent is the gateway's payment record.
type PaymentIntent struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
}

// Account is a connected sub-merchant account at the gateway.
type Account struct {
	ID               string
	Email            string
	Country          string
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
}

// AccountParams describes a connected account to create.
type AccountParams struct {
	Email        string
	Country      string
	BusinessName string
}

// Transfer is a payout of funds to a connected account.
type Transfer struct {
	ID       string
	Amount   int64
	Currency string
}

// TransferParams describes a transfer to issue.
type TransferParams struct {
	Amount      int64
	Currency    string
	Destination string
	// TransferGroup ties the transfer back to the originating payment.
	TransferGroup string
}

// Gateway is the subset of the payment provider's API the backend uses.
// All calls are synchronous request/response.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	// GetCheckoutSession retrieves the session including its line items.
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)
	CreateAccount(ctx context.Context, params AccountParams) (*Account, error)
	// CreateAccountLink returns the hosted onboarding URL for an account.
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	CreateTransfer(ctx context.Context, params TransferParams) (*Transfer, error)
}
