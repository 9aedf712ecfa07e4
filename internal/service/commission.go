package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/messaging"
	"github.com/puntoventa/backend/internal/payments"
	"github.com/puntoventa/backend/internal/repository"
)

// ProcessCommissionInput identifies a settled payment whose pending
// commission row should be completed.
type ProcessCommissionInput struct {
	UserID          string            `json:"user_id"`
	PaymentIntentID string            `json:"payment_intent_id,omitempty"`
	SaleAmount      float64           `json:"sale_amount"`
	Items           []entity.SaleItem `json:"items,omitempty"`
	CustomerEmail   string            `json:"customer_email,omitempty"`
	SessionID       string            `json:"session_id,omitempty"`
}

// ProcessCommissionResult reports what the reconciler did. Processed false
// is a soft outcome, not an error.
type ProcessCommissionResult struct {
	Processed        bool    `json:"processed"`
	Message          string  `json:"message,omitempty"`
	CommissionSaleID string  `json:"commission_sale_id,omitempty"`
	CommissionAmount float64 `json:"commission_amount,omitempty"`
	NetAmount        float64 `json:"net_amount,omitempty"`
	TransferID       string  `json:"transfer_id,omitempty"`
}

// CommissionService settles the platform's cut of completed payments.
type CommissionService struct {
	accounts    repository.ConnectedAccountRepository
	commissions repository.CommissionRepository
	gateway     payments.Gateway
	publisher   messaging.Publisher

	platformCountry string
	currency        string
}

func NewCommissionService(
	accounts repository.ConnectedAccountRepository,
	commissions repository.CommissionRepository,
	gateway payments.Gateway,
	publisher messaging.Publisher,
	platformCountry, currency string,
) *CommissionService {
	return &CommissionService{
		accounts:        accounts,
		commissions:     commissions,
		gateway:         gateway,
		publisher:       publisher,
		platformCountry: platformCountry,
		currency:        currency,
	}
}

// SplitAmount computes the commission and net split for a sale amount at
// the given rate. The commission is rounded half-up to cents; the net is
// the exact remainder so the two always sum to the sale amount.
func SplitAmount(saleAmount, rate float64) (commission, net float64) {
	amount := decimal.NewFromFloat(saleAmount)
	c := amount.Mul(decimal.NewFromFloat(rate)).Round(2)
	n := amount.Sub(c)
	commission, _ = c.Float64()
	net, _ = n.Float64()
	return commission, net
}

// ProcessCommission locates the pending commission row for a settled
// payment and completes it, optionally issuing a transfer to the
// sub-merchant's connected account.
//
// Matching is an ordered fallback: payment-intent id, then session id,
// then amount+email. The amount+email path is a heuristic, not a payment
// identity, and can select an unrelated row when a customer has several
// identical pending checkouts.
func (s *CommissionService) ProcessCommission(ctx context.Context, in ProcessCommissionInput) (*ProcessCommissionResult, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if in.SaleAmount <= 0 {
		return nil, fmt.Errorf("sale amount must be greater than zero")
	}

	account, err := s.accounts.FindActiveByUser(ctx, in.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		// Commissions are optional per user.
		return &ProcessCommissionResult{
			Processed: false,
			Message:   "No hay cuenta conectada configurada",
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up connected account: %w", err)
	}

	commission, net := SplitAmount(in.SaleAmount, account.CommissionRate)

	row, err := s.findPending(ctx, in)
	if err != nil {
		return nil, err
	}
	if row == nil {
		slog.Info("No pending commission found", "user_id", in.UserID, "payment_intent_id", in.PaymentIntentID, "session_id", in.SessionID)
		return &ProcessCommissionResult{
			Processed: false,
			Message:   "No se encontró comisión pendiente",
		}, nil
	}

	if err := s.commissions.Complete(ctx, row.ID, in.PaymentIntentID, account.StripeAccountID, commission, net); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lost a race with another reconciler; the row is already done.
			return &ProcessCommissionResult{
				Processed: false,
				Message:   "No se encontró comisión pendiente",
			}, nil
		}
		return nil, fmt.Errorf("failed to complete commission %s: %w", row.ID, err)
	}

	slog.Info("Commission completed",
		"commission_sale_id", row.ID,
		"amount", in.SaleAmount,
		"commission", commission,
		"net", net,
	)

	result := &ProcessCommissionResult{
		Processed:        true,
		CommissionSaleID: row.ID,
		CommissionAmount: commission,
		NetAmount:        net,
	}

	// Money movement is decoupled from bookkeeping: a failed transfer
	// leaves the commission completed and queues a retry.
	if account.Country != s.platformCountry && account.ChargesEnabled {
		transferID, err := s.issueTransfer(ctx, row.ID, account.StripeAccountID, net)
		if err != nil {
			slog.Error("Transfer failed, queueing payout retry", "commission_sale_id", row.ID, "err", err)
			s.enqueuePayout(ctx, entity.PayoutRequested{
				CommissionSaleID: row.ID,
				StripeAccountID:  account.StripeAccountID,
				Amount:           net,
				Currency:         s.currency,
				Attempt:          1,
				RequestedAt:      time.Now(),
			})
		} else {
			result.TransferID = transferID
		}
	}

	return result, nil
}

func (s *CommissionService) findPending(ctx context.Context, in ProcessCommissionInput) (*entity.CommissionSale, error) {
	if in.PaymentIntentID != "" {
		row, err := s.commissions.FindPendingByPaymentIntent(ctx, in.PaymentIntentID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to match commission by payment intent: %w", err)
		}
		if row != nil {
			return row, nil
		}
	}
	if in.SessionID != "" {
		row, err := s.commissions.FindPendingBySession(ctx, in.SessionID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to match commission by session: %w", err)
		}
		if row != nil {
			return row, nil
		}
	}
	if in.CustomerEmail != "" {
		row, err := s.commissions.FindPendingByAmountAndEmail(ctx, in.SaleAmount, in.CustomerEmail)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to match commission by amount and email: %w", err)
		}
		if row != nil {
			return row, nil
		}
	}
	return nil, nil
}

func (s *CommissionService) issueTransfer(ctx context.Context, commissionSaleID, destination string, net float64) (string, error) {
	t, err := s.gateway.CreateTransfer(ctx, payments.TransferParams{
		Amount:        toCents(net),
		Currency:      s.currency,
		Destination:   destination,
		TransferGroup: commissionSaleID,
	})
	if err != nil {
		return "", err
	}
	if err := s.commissions.SetTransfer(ctx, commissionSaleID, t.ID); err != nil {
		slog.Error("Transfer issued but not recorded", "commission_sale_id", commissionSaleID, "transfer_id", t.ID, "err", err)
	}
	slog.Info("Transfer issued", "commission_sale_id", commissionSaleID, "transfer_id", t.ID, "net", net)
	return t.ID, nil
}

// RequeuePayout re-enqueues the payout for a completed commission whose
// transfer never settled. Used by the admin maintenance endpoint.
func (s *CommissionService) RequeuePayout(ctx context.Context, commissionSaleID string) error {
	row, err := s.commissions.FindByID(ctx, commissionSaleID)
	if err != nil {
		return err
	}
	if row.Status != entity.CommissionStatusCompleted {
		return fmt.Errorf("commission %s is not completed", commissionSaleID)
	}
	if row.TransferID != "" {
		return fmt.Errorf("commission %s already has transfer %s", commissionSaleID, row.TransferID)
	}
	s.enqueuePayout(ctx, entity.PayoutRequested{
		CommissionSaleID: row.ID,
		StripeAccountID:  row.StripeAccountID,
		Amount:           row.NetAmount,
		Currency:         row.Currency,
		Attempt:          1,
		RequestedAt:      time.Now(),
	})
	return nil
}

func (s *CommissionService) enqueuePayout(ctx context.Context, req entity.PayoutRequested) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, messaging.TopicPayoutRetry, req.CommissionSaleID, req); err != nil {
		slog.Error("Failed to enqueue payout retry", "commission_sale_id", req.CommissionSaleID, "err", err)
	}
}
