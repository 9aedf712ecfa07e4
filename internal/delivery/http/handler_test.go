package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	delivery "github.com/puntoventa/backend/internal/delivery/http"
	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/payments"
	"github.com/puntoventa/backend/internal/repository"
	"github.com/puntoventa/backend/internal/service"
)

type memSaleRepo struct {
	mu   sync.Mutex
	rows []*entity.Sale
}

func (r *memSaleRepo) Insert(ctx context.Context, s *entity.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memSaleRepo) FindByPaymentIntent(ctx context.Context, pi string) (*entity.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.PaymentIntentID == pi {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memSaleRepo) FindByUser(ctx context.Context, userID string, from, to time.Time, limit int) ([]entity.Sale, error) {
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

func (r *memSaleRepo) Summary(ctx context.Context, userID string, from, to time.Time) (*repository.SalesSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := &repository.SalesSummary{}
	for _, s := range r.rows {
		if s.UserID != userID {
			continue
		}
		sum.Count++
		sum.Revenue += s.Total
		switch s.PaymentMethod {
		case entity.PaymentMethodCard:
			sum.CardCount++
		case entity.PaymentMethodCash:
			sum.CashCount++
		}
	}
	return sum, nil
}

type memAccountRepo struct {
	repository.ConnectedAccountRepository

	accounts []*entity.ConnectedAccount
}

func (r *memAccountRepo) FindActiveByUser(ctx context.Context, userID string) (*entity.ConnectedAccount, error) {
	for _, a := range r.accounts {
		if a.UserID == userID && a.Status == entity.AccountStatusActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memAccountRepo) FindByStripeAccount(ctx context.Context, stripeAccountID string) (*entity.ConnectedAccount, error) {
	for _, a := range r.accounts {
		if a.StripeAccountID == stripeAccountID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memSettingsRepo struct {
	mu   sync.Mutex
	rows map[string]*entity.UserSettings
}

func (r *memSettingsRepo) Get(ctx context.Context, userID string) (*entity.UserSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rows[userID]; ok {
		cp := *s
		return &cp, nil
	}
	return &entity.UserSettings{UserID: userID, Theme: "light"}, nil
}

func (r *memSettingsRepo) Upsert(ctx context.Context, s *entity.UserSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows == nil {
		r.rows = make(map[string]*entity.UserSettings)
	}
	cp := *s
	r.rows[s.UserID] = &cp
	return nil
}

type stubGateway struct {
	payments.Gateway
}

func (stubGateway) GetAccount(ctx context.Context, accountID string) (*payments.Account, error) {
	return &payments.Account{ID: accountID, DetailsSubmitted: true, ChargesEnabled: true, PayoutsEnabled: true}, nil
}

// newTestServer wires a handler around in-memory stores. Services not
// touched by a test may stay nil.
func newTestServer(h *delivery.Handler) *httptest.Server {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return httptest.NewServer(delivery.EnableCORS(mux))
}

func doJSON(t *testing.T, method, url, userID string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestCreateSaleEndpoint(t *testing.T) {
	sales := &memSaleRepo{}
	saleSvc := service.NewSaleService(sales, nil)
	h := delivery.NewHandler(nil, saleSvc, nil, nil, nil, nil, sales, &memSettingsRepo{}, "")
	srv := newTestServer(h)
	defer srv.Close()

	body := map[string]any{
		"items": []map[string]any{
			{"product_id": "p1", "name": "Café", "unit_price": 10.0, "quantity": 2},
		},
		"total":             20.0,
		"payment_intent_id": "pi_123",
	}

	resp, decoded := doJSON(t, http.MethodPost, srv.URL+"/api/create-sale", "u1", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, decoded["success"])
	require.Equal(t, false, decoded["already_processed"])

	resp, decoded = doJSON(t, http.MethodPost, srv.URL+"/api/create-sale", "u1", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, decoded["already_processed"])
	require.Equal(t, "Venta ya procesada", decoded["message"])
}

func TestCreateSaleEndpointRejectsInvalidBody(t *testing.T) {
	sales := &memSaleRepo{}
	saleSvc := service.NewSaleService(sales, nil)
	h := delivery.NewHandler(nil, saleSvc, nil, nil, nil, nil, sales, &memSettingsRepo{}, "")
	srv := newTestServer(h)
	defer srv.Close()

	// Empty cart fails validation.
	resp, decoded := doJSON(t, http.MethodPost, srv.URL+"/api/create-sale", "u1", map[string]any{"total": 20.0})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, false, decoded["success"])
}

func TestEndpointsRequireUser(t *testing.T) {
	sales := &memSaleRepo{}
	h := delivery.NewHandler(nil, service.NewSaleService(sales, nil), nil, nil, nil, nil, sales, &memSettingsRepo{}, "")
	srv := newTestServer(h)
	defer srv.Close()

	resp, decoded := doJSON(t, http.MethodPost, srv.URL+"/api/create-sale", "", map[string]any{})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "authentication required", decoded["error"])
}

func TestProcessCommissionEndpointSoftOutcome(t *testing.T) {
	comms := service.NewCommissionService(&memAccountRepo{}, nil, nil, nil, "ES", "eur")
	h := delivery.NewHandler(nil, nil, nil, nil, nil, comms, &memSaleRepo{}, &memSettingsRepo{}, "")
	srv := newTestServer(h)
	defer srv.Close()

	resp, decoded := doJSON(t, http.MethodPost, srv.URL+"/api/stripe-connect/process-commission", "u1", map[string]any{
		"sale_amount": 100.0,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, decoded["success"])
	require.Equal(t, false, decoded["processed"])
	require.Equal(t, "No hay cuenta conectada configurada", decoded["message"])
}

func TestManualSaveConflict(t *testing.T) {
	accounts := &memAccountRepo{accounts: []*entity.ConnectedAccount{{
		ID:              "ca-1",
		UserID:          "u1",
		StripeAccountID: "acct_taken",
		Status:          entity.AccountStatusActive,
	}}}
	connect := service.NewAccountService(accounts, stubGateway{}, 0.05, "https://tienda.example")
	h := delivery.NewHandler(nil, nil, nil, nil, connect, nil, &memSaleRepo{}, &memSettingsRepo{}, "")
	srv := newTestServer(h)
	defer srv.Close()

	resp, decoded := doJSON(t, http.MethodPost, srv.URL+"/api/stripe-connect/manual-save", "u2", map[string]any{
		"stripe_account_id": "acct_taken",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, false, decoded["success"])
}

func TestSalesSummaryEndpoint(t *testing.T) {
	sales := &memSaleRepo{}
	require.NoError(t, sales.Insert(context.Background(), &entity.Sale{
		ID: "s1", UserID: "u1", Total: 20, PaymentMethod: entity.PaymentMethodCard,
	}))
	require.NoError(t, sales.Insert(context.Background(), &entity.Sale{
		ID: "s2", UserID: "u1", Total: 10, PaymentMethod: entity.PaymentMethodCash,
	}))
	h := delivery.NewHandler(nil, nil, nil, nil, nil, nil, sales, &memSettingsRepo{}, "")
	srv := newTestServer(h)
	defer srv.Close()

	resp, decoded := doJSON(t, http.MethodGet, srv.URL+"/api/sales/summary", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary, ok := decoded["summary"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(2), summary["count"])
	require.Equal(t, float64(30), summary["revenue"])
	require.Equal(t, float64(1), summary["card_count"])
	require.Equal(t, float64(1), summary["cash_count"])
}

func TestSettingsDefaultsAndUpdate(t *testing.T) {
	settings := &memSettingsRepo{}
	h := delivery.NewHandler(nil, nil, nil, nil, nil, nil, &memSaleRepo{}, settings, "")
	srv := newTestServer(h)
	defer srv.Close()

	resp, decoded := doJSON(t, http.MethodGet, srv.URL+"/api/settings", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got, ok := decoded["settings"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "light", got["theme"])

	resp, decoded = doJSON(t, http.MethodPut, srv.URL+"/api/settings", "u1", map[string]any{
		"business_name": "Tienda Uno",
		"theme":         "dark",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got, ok = decoded["settings"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "dark", got["theme"])
	require.Equal(t, "Tienda Uno", got["business_name"])
}

func TestAdminEndpointRequiresToken(t *testing.T) {
	h := delivery.NewHandler(nil, nil, nil, nil, nil, nil, &memSaleRepo{}, &memSettingsRepo{}, "s3cret")
	srv := newTestServer(h)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/admin/retry-payouts", bytes.NewBufferString(`{"commission_sale_id":"c1"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPost, srv.URL+"/api/admin/retry-payouts", bytes.NewBufferString(`{"commission_sale_id":"c1"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	h := delivery.NewHandler(nil, nil, nil, nil, nil, nil, &memSaleRepo{}, &memSettingsRepo{}, "")
	srv := newTestServer(h)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/products", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
