package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/payments"
	"github.com/puntoventa/backend/internal/repository"
)

// fakeSaleRepo is an in-memory SaleRepository. An optional barrier lets
// tests force two concurrent duplicate-guard reads to complete before
// either insert runs.
type fakeSaleRepo struct {
	mu    sync.Mutex
	rows  []*entity.Sale
	gate  *sync.WaitGroup
	fail  error
}

func (r *fakeSaleRepo) Insert(ctx context.Context, s *entity.Sale) error {
	if r.fail != nil {
		return r.fail
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeSaleRepo) FindByPaymentIntent(ctx context.Context, pi string) (*entity.Sale, error) {
	r.mu.Lock()
	var found *entity.Sale
	for _, s := range r.rows {
		if s.PaymentIntentID == pi {
			found = s
			break
		}
	}
	r.mu.Unlock()

	if r.gate != nil {
		// Rendezvous: wait until every racing reader has read.
		r.gate.Done()
		r.gate.Wait()
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (r *fakeSaleRepo) FindByUser(ctx context.Context, userID string, from, to time.Time, limit int) ([]entity.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Sale
	for _, s := range r.rows {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeSaleRepo) Summary(ctx context.Context, userID string, from, to time.Time) (*repository.SalesSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := &repository.SalesSummary{}
	for _, s := range r.rows {
		if s.UserID != userID {
			continue
		}
		sum.Count++
		sum.Revenue += s.Total
	}
	return sum, nil
}

func (r *fakeSaleRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// fakeAccountRepo is an in-memory ConnectedAccountRepository.
type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts []*entity.ConnectedAccount
}

func (r *fakeAccountRepo) Create(ctx context.Context, a *entity.ConnectedAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.accounts = append(r.accounts, &cp)
	return nil
}

func (r *fakeAccountRepo) Update(ctx context.Context, a *entity.ConnectedAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.accounts {
		if existing.ID == a.ID {
			cp := *a
			r.accounts[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeAccountRepo) FindActiveByUser(ctx context.Context, userID string) (*entity.ConnectedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserID == userID && a.Status == entity.AccountStatusActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAccountRepo) FindByStripeAccount(ctx context.Context, stripeAccountID string) (*entity.ConnectedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.StripeAccountID == stripeAccountID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// fakeCommissionRepo is an in-memory CommissionRepository.
type fakeCommissionRepo struct {
	mu   sync.Mutex
	rows []*entity.CommissionSale
}

func (r *fakeCommissionRepo) CreatePending(ctx context.Context, c *entity.CommissionSale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.SessionID == c.SessionID {
			return nil // idempotent per session id
		}
	}
	cp := *c
	cp.Status = entity.CommissionStatusPending
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeCommissionRepo) FindPendingByPaymentIntent(ctx context.Context, pi string) (*entity.CommissionSale, error) {
	return r.find(func(c *entity.CommissionSale) bool {
		return strings.EqualFold(c.PaymentIntentID, pi) && c.Status == entity.CommissionStatusPending
	})
}

func (r *fakeCommissionRepo) FindPendingBySession(ctx context.Context, sessionID string) (*entity.CommissionSale, error) {
	return r.find(func(c *entity.CommissionSale) bool {
		return c.SessionID == sessionID && c.Status == entity.CommissionStatusPending
	})
}

func (r *fakeCommissionRepo) FindPendingByAmountAndEmail(ctx context.Context, amount float64, email string) (*entity.CommissionSale, error) {
	return r.find(func(c *entity.CommissionSale) bool {
		return c.AmountTotal == amount && strings.EqualFold(c.CustomerEmail, email) && c.Status == entity.CommissionStatusPending
	})
}

// find returns the most recent matching row.
func (r *fakeCommissionRepo) find(match func(*entity.CommissionSale) bool) (*entity.CommissionSale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *entity.CommissionSale
	for _, c := range r.rows {
		if match(c) && (best == nil || c.CreatedAt.After(best.CreatedAt)) {
			best = c
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *fakeCommissionRepo) Complete(ctx context.Context, id, paymentIntentID, stripeAccountID string, commission, net float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.ID == id && c.Status == entity.CommissionStatusPending {
			c.Status = entity.CommissionStatusCompleted
			c.CommissionAmount = commission
			c.NetAmount = net
			if c.PaymentIntentID == "" {
				c.PaymentIntentID = paymentIntentID
			}
			if c.StripeAccountID == "" {
				c.StripeAccountID = stripeAccountID
			}
			c.UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeCommissionRepo) SetTransfer(ctx context.Context, id, transferID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.ID == id {
			c.TransferID = transferID
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeCommissionRepo) FindByID(ctx context.Context, id string) (*entity.CommissionSale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeCommissionRepo) FindByAccount(ctx context.Context, accountID string, limit int) ([]entity.CommissionSale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.CommissionSale
	for _, c := range r.rows {
		if c.ConnectedAccountID == accountID {
			out = append(out, *c)
		}
	}
	return out, nil
}

// fakeSessionRepo is an in-memory PaymentSessionRepository.
type fakeSessionRepo struct {
	mu   sync.Mutex
	rows []*entity.PaymentSession
}

func (r *fakeSessionRepo) Create(ctx context.Context, s *entity.PaymentSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.SessionID == s.SessionID {
			return nil
		}
	}
	cp := *s
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeSessionRepo) MarkCompleted(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.SessionID == sessionID {
			row.Completed = true
			return nil
		}
	}
	return nil
}

func (r *fakeSessionRepo) FindBySession(ctx context.Context, sessionID string) (*entity.PaymentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.SessionID == sessionID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	Topic string
	Key   string
	Event any
}

func (p *fakePublisher) PublishEvent(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *fakePublisher) published(topic string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// fakeGateway is an in-memory payments.Gateway.
type fakeGateway struct {
	mu sync.Mutex

	sessions     map[string]*payments.CheckoutSession
	accounts     map[string]*payments.Account
	transfers    []payments.TransferParams
	transferErr  error
	sessionCount int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sessions: make(map[string]*payments.CheckoutSession),
		accounts: make(map[string]*payments.Account),
	}
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, params payments.CheckoutParams) (*payments.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionCount++
	var total int64
	for _, li := range params.LineItems {
		total += li.UnitAmount * li.Quantity
	}
	s := &payments.CheckoutSession{
		ID:            fmt.Sprintf("cs_test_%03d", g.sessionCount),
		URL:           "https://checkout.example/" + fmt.Sprint(g.sessionCount),
		PaymentStatus: "unpaid",
		AmountTotal:   total,
		Currency:      params.Currency,
		CustomerEmail: params.CustomerEmail,
		Metadata:      params.Metadata,
		LineItems:     params.LineItems,
	}
	g.sessions[s.ID] = s
	return s, nil
}

func (g *fakeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*payments.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("no such session %s", sessionID)
	}
	cp := *s
	return &cp, nil
}

func (g *fakeGateway) markPaid(sessionID, paymentIntentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[sessionID]; ok {
		s.PaymentStatus = "paid"
		s.PaymentIntentID = paymentIntentID
	}
}

func (g *fakeGateway) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*payments.PaymentIntent, error) {
	return &payments.PaymentIntent{ID: paymentIntentID, Status: "succeeded"}, nil
}

func (g *fakeGateway) CreateAccount(ctx context.Context, params payments.AccountParams) (*payments.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a := &payments.Account{
		ID:      fmt.Sprintf("acct_test_%03d", len(g.accounts)+1),
		Email:   params.Email,
		Country: params.Country,
	}
	g.accounts[a.ID] = a
	return a, nil
}

func (g *fakeGateway) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	return "https://connect.example/onboard/" + accountID, nil
}

func (g *fakeGateway) GetAccount(ctx context.Context, accountID string) (*payments.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if a, ok := g.accounts[accountID]; ok {
		cp := *a
		return &cp, nil
	}
	return &payments.Account{ID: accountID, DetailsSubmitted: true, ChargesEnabled: true, PayoutsEnabled: true}, nil
}

func (g *fakeGateway) CreateTransfer(ctx context.Context, params payments.TransferParams) (*payments.Transfer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transferErr != nil {
		return nil, g.transferErr
	}
	g.transfers = append(g.transfers, params)
	return &payments.Transfer{
		ID:       fmt.Sprintf("tr_test_%03d", len(g.transfers)),
		Amount:   params.Amount,
		Currency: params.Currency,
	}, nil
}
