package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/messaging"
	"github.com/puntoventa/backend/internal/repository"
)

// CreateSaleInput is a request to record one sale in the ledger.
type CreateSaleInput struct {
	Items           []entity.SaleItem `json:"items"`
	Total           float64           `json:"total"`
	UserID          string            `json:"user_id"`
	ClientID        string            `json:"client_id,omitempty"`
	PaymentIntentID string            `json:"payment_intent_id,omitempty"`
	PaymentMethod   string            `json:"payment_method,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// CreateSaleResult carries the recorded (or previously recorded) sale.
type CreateSaleResult struct {
	Sale             *entity.Sale `json:"sale"`
	AlreadyProcessed bool         `json:"already_processed"`
	Message          string       `json:"message,omitempty"`
}

// ErrInvalidSale flags request validation failures (as opposed to
// upstream database errors).
var ErrInvalidSale = errors.New("invalid sale")

// SaleService records sales in the ledger.
type SaleService struct {
	sales     repository.SaleRepository
	publisher messaging.Publisher
}

func NewSaleService(sales repository.SaleRepository, publisher messaging.Publisher) *SaleService {
	return &SaleService{sales: sales, publisher: publisher}
}

// CreateSale validates the cart, guards against double-recording the same
// payment, and inserts one ledger row.
//
// The duplicate guard is a read followed by a separate insert with no
// transaction spanning them: two concurrent calls with the same payment
// intent can both pass the read and insert two rows. Sequential retries
// are safe.
func (s *SaleService) CreateSale(ctx context.Context, in CreateSaleInput) (*CreateSaleResult, error) {
	if err := validateSale(in); err != nil {
		return nil, err
	}

	if in.PaymentIntentID != "" {
		existing, err := s.sales.FindByPaymentIntent(ctx, in.PaymentIntentID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to check for existing sale: %w", err)
		}
		if existing != nil {
			slog.Info("Sale already recorded for payment intent", "payment_intent_id", in.PaymentIntentID, "sale_id", existing.ID)
			return &CreateSaleResult{
				Sale:             existing,
				AlreadyProcessed: true,
				Message:          "Venta ya procesada",
			}, nil
		}
	}

	method := in.PaymentMethod
	if method == "" {
		if in.PaymentIntentID != "" {
			method = entity.PaymentMethodCard
		} else {
			method = entity.PaymentMethodCash
		}
	}

	sale := &entity.Sale{
		ID:              uuid.New().String(),
		UserID:          in.UserID,
		Items:           in.Items,
		Subtotal:        entity.Subtotal(in.Items),
		Total:           in.Total,
		PaymentMethod:   method,
		PaymentStatus:   entity.PaymentStatusPaid,
		Status:          entity.SaleStatusCompleted,
		ClientID:        in.ClientID,
		PaymentIntentID: in.PaymentIntentID,
		Metadata:        in.Metadata,
		CreatedAt:       time.Now(),
	}

	if err := s.sales.Insert(ctx, sale); err != nil {
		return nil, err
	}

	slog.Info("Sale recorded", "sale_id", sale.ID, "user_id", sale.UserID, "total", sale.Total, "items", len(sale.Items))

	if s.publisher != nil {
		event := entity.SaleRecorded{
			SaleID:          sale.ID,
			UserID:          sale.UserID,
			Items:           sale.Items,
			Total:           sale.Total,
			PaymentMethod:   sale.PaymentMethod,
			PaymentIntentID: sale.PaymentIntentID,
			RecordedAt:      sale.CreatedAt,
		}
		if err := s.publisher.PublishEvent(ctx, messaging.TopicSalesRecorded, sale.ID, event); err != nil {
			// Best effort: the ledger row is the source of truth.
			slog.Error("Failed to publish SaleRecorded", "sale_id", sale.ID, "err", err)
		}
	}

	return &CreateSaleResult{Sale: sale}, nil
}

func validateSale(in CreateSaleInput) error {
	if in.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidSale)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: sale must have at least one item", ErrInvalidSale)
	}
	if in.Total <= 0 {
		return fmt.Errorf("%w: total must be greater than zero", ErrInvalidSale)
	}
	for i, it := range in.Items {
		if it.ProductID == "" || it.Name == "" {
			return fmt.Errorf("%w: item %d is missing id or name", ErrInvalidSale, i)
		}
		if it.UnitPrice < 0 {
			return fmt.Errorf("%w: item %d has a negative price", ErrInvalidSale, i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has a non-positive quantity", ErrInvalidSale, i)
		}
	}
	return nil
}
