// Package worker runs the background consumers of the backend.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/messaging"
	"github.com/puntoventa/backend/internal/payments"
	"github.com/puntoventa/backend/internal/repository"
)

// PayoutWorker retries transfers that failed during commission
// reconciliation. Reconciliation has already completed the bookkeeping;
// this worker only moves the money.
type PayoutWorker struct {
	gateway     payments.Gateway
	commissions repository.CommissionRepository
	publisher   messaging.Publisher
	subscriber  messaging.Subscriber

	maxAttempts int
}

func NewPayoutWorker(
	gateway payments.Gateway,
	commissions repository.CommissionRepository,
	publisher messaging.Publisher,
	subscriber messaging.Subscriber,
	maxAttempts int,
) *PayoutWorker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &PayoutWorker{
		gateway:     gateway,
		commissions: commissions,
		publisher:   publisher,
		subscriber:  subscriber,
		maxAttempts: maxAttempts,
	}
}

// Run consumes the payout retry topic until the context is cancelled.
func (w *PayoutWorker) Run(ctx context.Context) error {
	return w.subscriber.Consume(ctx, messaging.TopicPayoutRetry, func(ctx context.Context, payload []byte) error {
		var req entity.PayoutRequested
		if err := json.Unmarshal(payload, &req); err != nil {
			return fmt.Errorf("failed to unmarshal payout request: %w", err)
		}
		return w.handle(ctx, req)
	})
}

func (w *PayoutWorker) handle(ctx context.Context, req entity.PayoutRequested) error {
	row, err := w.commissions.FindByID(ctx, req.CommissionSaleID)
	if err != nil {
		return fmt.Errorf("failed to load commission %s: %w", req.CommissionSaleID, err)
	}
	if row.TransferID != "" {
		slog.Info("Payout already settled, skipping", "commission_sale_id", row.ID, "transfer_id", row.TransferID)
		return nil
	}

	amount := int64(math.Round(req.Amount * 100))
	t, err := w.gateway.CreateTransfer(ctx, payments.TransferParams{
		Amount:        amount,
		Currency:      req.Currency,
		Destination:   req.StripeAccountID,
		TransferGroup: req.CommissionSaleID,
	})
	if err == nil {
		if err := w.commissions.SetTransfer(ctx, row.ID, t.ID); err != nil {
			return fmt.Errorf("transfer %s issued but not recorded: %w", t.ID, err)
		}
		slog.Info("Payout retry succeeded", "commission_sale_id", row.ID, "transfer_id", t.ID, "attempt", req.Attempt)
		return nil
	}

	if req.Attempt >= w.maxAttempts {
		slog.Error("Payout abandoned after max attempts",
			"commission_sale_id", row.ID,
			"attempts", req.Attempt,
			"err", err,
		)
		return nil
	}

	slog.Warn("Payout retry failed, requeueing", "commission_sale_id", row.ID, "attempt", req.Attempt, "err", err)
	req.Attempt++
	req.RequestedAt = time.Now()
	if err := w.publisher.PublishEvent(ctx, messaging.TopicPayoutRetry, req.CommissionSaleID, req); err != nil {
		return fmt.Errorf("failed to requeue payout for %s: %w", req.CommissionSaleID, err)
	}
	return nil
}
