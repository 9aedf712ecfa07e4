package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/payments"
	"github.com/puntoventa/backend/internal/repository"
)

// VerifyResult reports the outcome of checking a checkout session.
type VerifyResult struct {
	Paid       bool                     `json:"paid"`
	Sale       *CreateSaleResult        `json:"sale,omitempty"`
	Commission *ProcessCommissionResult `json:"commission,omitempty"`
	Message    string                   `json:"message,omitempty"`
}

// ErrSessionUserUnknown is returned by CompletePayment when the session
// metadata does not identify the seller.
var ErrSessionUserUnknown = errors.New("session has no user id in metadata")

// VerifyService turns settled gateway sessions into ledger rows and
// completed commissions. It is invoked from several racing entry points
// (thank-you page, seller polling, the no-auth fallback); correctness
// rests on the sale recorder's duplicate guard.
type VerifyService struct {
	gateway     payments.Gateway
	sessions    repository.PaymentSessionRepository
	sales       *SaleService
	commissions *CommissionService
}

func NewVerifyService(
	gateway payments.Gateway,
	sessions repository.PaymentSessionRepository,
	sales *SaleService,
	commissions *CommissionService,
) *VerifyService {
	return &VerifyService{
		gateway:     gateway,
		sessions:    sessions,
		sales:       sales,
		commissions: commissions,
	}
}

// VerifyPayment checks the session's payment status and, when paid,
// drives the sale recorder and the commission reconciler.
func (v *VerifyService) VerifyPayment(ctx context.Context, sessionID, userID string) (*VerifyResult, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	session, err := v.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve session: %w", err)
	}

	if !session.Paid() {
		return &VerifyResult{Paid: false, Message: "Pago no completado"}, nil
	}

	items := sessionItems(session)
	total := float64(session.AmountTotal) / 100

	saleResult, err := v.sales.CreateSale(ctx, CreateSaleInput{
		Items:           items,
		Total:           total,
		UserID:          userID,
		PaymentIntentID: session.PaymentIntentID,
		PaymentMethod:   entity.PaymentMethodCard,
		Metadata:        map[string]string{"session_id": session.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record sale for session %s: %w", sessionID, err)
	}

	if err := v.sessions.MarkCompleted(ctx, sessionID); err != nil {
		slog.Error("Failed to mark payment session completed", "session_id", sessionID, "err", err)
	}

	commissionResult, err := v.commissions.ProcessCommission(ctx, ProcessCommissionInput{
		UserID:          userID,
		PaymentIntentID: session.PaymentIntentID,
		SaleAmount:      total,
		Items:           items,
		CustomerEmail:   session.CustomerEmail,
		SessionID:       session.ID,
	})
	if err != nil {
		// The sale is recorded; a reconciliation failure must not undo it.
		slog.Error("Commission reconciliation failed", "session_id", sessionID, "err", err)
		commissionResult = &ProcessCommissionResult{Processed: false, Message: err.Error()}
	}

	return &VerifyResult{
		Paid:       true,
		Sale:       saleResult,
		Commission: commissionResult,
	}, nil
}

// CompletePayment is the no-auth fallback: the seller identity comes from
// the session metadata written at creation time instead of a caller
// credential.
func (v *VerifyService) CompletePayment(ctx context.Context, sessionID string) (*VerifyResult, error) {
	session, err := v.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve session: %w", err)
	}

	userID := session.Metadata["user_id"]
	if userID == "" {
		// Fall back to the session recorded at creation.
		if ps, psErr := v.sessions.FindBySession(ctx, sessionID); psErr == nil {
			userID = ps.UserID
		}
	}
	if userID == "" {
		return nil, ErrSessionUserUnknown
	}

	return v.VerifyPayment(ctx, sessionID, userID)
}

// sessionItems rebuilds the cart from gateway line items, falling back to
// the serialized cart in metadata. The metadata cart is authoritative for
// discounted checkouts, where the gateway only saw the collapsed line.
func sessionItems(session *payments.CheckoutSession) []entity.SaleItem {
	if cart := session.Metadata["cart"]; cart != "" {
		var items []entity.SaleItem
		if err := json.Unmarshal([]byte(cart), &items); err == nil && len(items) > 0 {
			return items
		}
		slog.Warn("Unreadable cart metadata, using gateway line items", "session_id", session.ID)
	}

	items := make([]entity.SaleItem, 0, len(session.LineItems))
	for _, li := range session.LineItems {
		items = append(items, entity.SaleItem{
			ProductID: li.Name,
			Name:      li.Name,
			UnitPrice: float64(li.UnitAmount) / 100,
			Quantity:  int(li.Quantity),
		})
	}
	return items
}
