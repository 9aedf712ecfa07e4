package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/payments"
	"github.com/puntoventa/backend/internal/repository"
)

// discountTolerance absorbs float rounding when comparing the item sum
// against the caller-supplied total.
const discountTolerance = 0.01

// CreateSessionInput describes a cart to check out.
type CreateSessionInput struct {
	Items         []entity.SaleItem `json:"items"`
	Total         float64           `json:"total"`
	UserID        string            `json:"user_id"`
	CustomerEmail string            `json:"customer_email,omitempty"`
}

// CreateSessionResult returns the hosted checkout page to redirect to.
type CreateSessionResult struct {
	SessionID   string  `json:"session_id"`
	CheckoutURL string  `json:"checkout_url"`
	Discount    float64 `json:"discount"`
}

// CheckoutService builds checkout sessions against the payment gateway.
type CheckoutService struct {
	gateway     payments.Gateway
	sessions    repository.PaymentSessionRepository
	commissions repository.CommissionRepository
	accounts    repository.ConnectedAccountRepository

	currency      string
	publicBaseURL string
}

func NewCheckoutService(
	gateway payments.Gateway,
	sessions repository.PaymentSessionRepository,
	commissions repository.CommissionRepository,
	accounts repository.ConnectedAccountRepository,
	currency, publicBaseURL string,
) *CheckoutService {
	return &CheckoutService{
		gateway:       gateway,
		sessions:      sessions,
		commissions:   commissions,
		accounts:      accounts,
		currency:      currency,
		publicBaseURL: publicBaseURL,
	}
}

// DetectDiscount compares the undiscounted item sum against the
// authoritative total. A difference beyond the tolerance means the caller
// applied a discount (or surcharge) the line items do not reflect.
func DetectDiscount(items []entity.SaleItem, total float64) (discount float64, discounted bool) {
	sum := entity.Subtotal(items)
	diff := sum - total
	if math.Abs(diff) <= discountTolerance {
		return 0, false
	}
	return round2(diff), true
}

// CreateSession builds a gateway checkout session for the cart. When a
// discount is detected the itemized lines are collapsed into a single
// line priced at the authoritative total, so the hosted page shows the
// amount actually charged. The serialized cart travels in session
// metadata for the verification flow, and a pending commission row is
// seeded keyed by the session id.
func (s *CheckoutService) CreateSession(ctx context.Context, in CreateSessionInput) (*CreateSessionResult, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("cart must have at least one item")
	}
	if in.Total <= 0 {
		return nil, fmt.Errorf("total must be greater than zero")
	}

	discount, discounted := DetectDiscount(in.Items, in.Total)

	var lines []payments.LineItem
	if discounted {
		lines = []payments.LineItem{{
			Name:       collapsedLineName(in.Items),
			UnitAmount: toCents(in.Total),
			Quantity:   1,
		}}
	} else {
		for _, it := range in.Items {
			lines = append(lines, payments.LineItem{
				Name:       it.Name,
				UnitAmount: toCents(it.UnitPrice),
				Quantity:   int64(it.Quantity),
			})
		}
	}

	cart, err := json.Marshal(in.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize cart: %w", err)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutParams{
		LineItems:     lines,
		Currency:      s.currency,
		CustomerEmail: in.CustomerEmail,
		SuccessURL:    s.publicBaseURL + "/gracias?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.publicBaseURL + "/carrito",
		Metadata: map[string]string{
			"user_id":  in.UserID,
			"cart":     string(cart),
			"discount": strconv.FormatFloat(discount, 'f', 2, 64),
			"total":    strconv.FormatFloat(in.Total, 'f', 2, 64),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	if err := s.sessions.Create(ctx, &entity.PaymentSession{
		ID:            uuid.New().String(),
		UserID:        in.UserID,
		SessionID:     session.ID,
		AmountTotal:   in.Total,
		Discount:      discount,
		CustomerEmail: in.CustomerEmail,
		CreatedAt:     time.Now(),
	}); err != nil {
		return nil, err
	}

	s.seedPendingCommission(ctx, in, session.ID)

	slog.Info("Checkout session created", "session_id", session.ID, "user_id", in.UserID, "total", in.Total, "discounted", discounted)

	return &CreateSessionResult{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		Discount:    discount,
	}, nil
}

// seedPendingCommission creates the pending bookkeeping row the
// reconciler later completes. Users without a connected account simply
// get no row. Failures are logged, not fatal: the reconciler's fallback
// matching tolerates a missing row by reporting "not found".
func (s *CheckoutService) seedPendingCommission(ctx context.Context, in CreateSessionInput, sessionID string) {
	account, err := s.accounts.FindActiveByUser(ctx, in.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return
	}
	if err != nil {
		slog.Error("Failed to look up connected account for commission seed", "user_id", in.UserID, "err", err)
		return
	}

	err = s.commissions.CreatePending(ctx, &entity.CommissionSale{
		ID:                 uuid.New().String(),
		ConnectedAccountID: account.ID,
		StripeAccountID:    account.StripeAccountID,
		SessionID:          sessionID,
		CustomerEmail:      in.CustomerEmail,
		ProductName:        collapsedLineName(in.Items),
		AmountTotal:        in.Total,
		Currency:           s.currency,
		Status:             entity.CommissionStatusPending,
	})
	if err != nil {
		slog.Error("Failed to seed pending commission", "session_id", sessionID, "err", err)
	}
}

// collapsedLineName names the single line item shown for discounted carts.
func collapsedLineName(items []entity.SaleItem) string {
	if len(items) == 1 {
		return items[0].Name
	}
	return fmt.Sprintf("%s y %d más", items[0].Name, len(items)-1)
}

// toCents converts a monetary amount in major units to cents.
func toCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// round2 rounds a monetary amount to cents.
func round2(amount float64) float64 {
	f, _ := decimal.NewFromFloat(amount).Round(2).Float64()
	return f
}
