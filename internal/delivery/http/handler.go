package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/puntoventa/backend/internal/repository"
	"github.com/puntoventa/backend/internal/service"
)

// Handler handles HTTP requests for the application.
type Handler struct {
	catalog  *service.CatalogService
	sales    *service.SaleService
	checkout *service.CheckoutService
	verify   *service.VerifyService
	connect  *service.AccountService
	comms    *service.CommissionService

	saleQueries repository.SaleRepository
	settings    repository.SettingsRepository
	adminToken  string
}

func NewHandler(
	catalog *service.CatalogService,
	sales *service.SaleService,
	checkout *service.CheckoutService,
	verify *service.VerifyService,
	connect *service.AccountService,
	comms *service.CommissionService,
	saleQueries repository.SaleRepository,
	settings repository.SettingsRepository,
	adminToken string,
) *Handler {
	return &Handler{
		catalog:     catalog,
		sales:       sales,
		checkout:    checkout,
		verify:      verify,
		connect:     connect,
		comms:       comms,
		saleQueries: saleQueries,
		settings:    settings,
		adminToken:  adminToken,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/create-sale", h.requireUser(h.handleCreateSale))

	mux.HandleFunc("POST /api/stripe/payment", h.requireUser(h.handleCreatePayment))
	mux.HandleFunc("POST /api/stripe/verify-payment", h.requireUser(h.handleVerifyPayment))
	mux.HandleFunc("POST /api/stripe/complete-payment", h.handleCompletePayment)

	mux.HandleFunc("POST /api/stripe-connect/process-commission", h.requireUser(h.handleProcessCommission))
	mux.HandleFunc("POST /api/stripe-connect/complete-commission", h.requireUser(h.handleCompleteCommission))
	mux.HandleFunc("POST /api/stripe-connect/manual-save", h.requireUser(h.handleManualSave))
	mux.HandleFunc("GET /api/stripe-connect/status", h.requireUser(h.handleConnectStatus))
	mux.HandleFunc("POST /api/stripe-connect/status", h.requireUser(h.handleConnectOnboard))

	mux.HandleFunc("GET /api/products", h.requireUser(h.handleListProducts))
	mux.HandleFunc("POST /api/products", h.requireUser(h.handleCreateProduct))
	mux.HandleFunc("PUT /api/products/{id}", h.requireUser(h.handleUpdateProduct))
	mux.HandleFunc("DELETE /api/products/{id}", h.requireUser(h.handleDeleteProduct))

	mux.HandleFunc("GET /api/categories", h.requireUser(h.handleListCategories))
	mux.HandleFunc("POST /api/categories", h.requireUser(h.handleCreateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", h.requireUser(h.handleDeleteCategory))

	mux.HandleFunc("GET /api/sales", h.requireUser(h.handleListSales))
	mux.HandleFunc("GET /api/sales/summary", h.requireUser(h.handleSalesSummary))

	mux.HandleFunc("GET /api/settings", h.requireUser(h.handleGetSettings))
	mux.HandleFunc("PUT /api/settings", h.requireUser(h.handlePutSettings))

	mux.HandleFunc("POST /api/admin/retry-payouts", RequireAdmin(h.adminToken, h.handleRetryPayouts))
}

// handleRetryPayouts re-enqueues a stuck payout. Maintenance only.
func (h *Handler) handleRetryPayouts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CommissionSaleID string `json:"commission_sale_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CommissionSaleID == "" {
		writeError(w, http.StatusBadRequest, "commission_sale_id is required")
		return
	}
	if err := h.comms.RequeuePayout(r.Context(), req.CommissionSaleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "commission not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true})
}

// --- sales ---

func (h *Handler) handleCreateSale(w http.ResponseWriter, r *http.Request, userID string) {
	var in service.CreateSaleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.UserID = userID

	result, err := h.sales.CreateSale(r.Context(), in)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSale) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("Failed to create sale", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "sale": result.Sale, "already_processed": result.AlreadyProcessed, "message": result.Message})
}

func (h *Handler) handleListSales(w http.ResponseWriter, r *http.Request, userID string) {
	from, to := dateRange(r)
	sales, err := h.saleQueries.FindByUser(r.Context(), userID, from, to, 100)
	if err != nil {
		slog.Error("Failed to list sales", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "sales": sales})
}

func (h *Handler) handleSalesSummary(w http.ResponseWriter, r *http.Request, userID string) {
	from, to := dateRange(r)
	summary, err := h.saleQueries.Summary(r.Context(), userID, from, to)
	if err != nil {
		slog.Error("Failed to summarize sales", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "summary": summary})
}

// dateRange reads from/to query params (RFC 3339 dates), defaulting to
// the last 30 days.
func dateRange(r *http.Request) (time.Time, time.Time) {
	to := time.Now()
	from := to.AddDate(0, 0, -30)
	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			from = t
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			to = t.AddDate(0, 0, 1)
		}
	}
	return from, to
}

// --- payments ---

func (h *Handler) handleCreatePayment(w http.ResponseWriter, r *http.Request, userID string) {
	var in service.CreateSessionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.UserID = userID

	result, err := h.checkout.CreateSession(r.Context(), in)
	if err != nil {
		slog.Error("Failed to create checkout session", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "session_id": result.SessionID, "checkout_url": result.CheckoutURL, "discount": result.Discount})
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request, userID string) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	result, err := h.verify.VerifyPayment(r.Context(), req.SessionID, userID)
	if err != nil {
		slog.Error("Failed to verify payment", "session_id", req.SessionID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "result": result})
}

// handleCompletePayment is the no-auth fallback used by the static
// thank-you page; the seller identity comes from session metadata.
func (h *Handler) handleCompletePayment(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	result, err := h.verify.CompletePayment(r.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionUserUnknown) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		slog.Error("Failed to complete payment", "session_id", req.SessionID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "result": result})
}

// --- commissions / connected accounts ---

func (h *Handler) handleProcessCommission(w http.ResponseWriter, r *http.Request, userID string) {
	var in service.ProcessCommissionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.UserID = userID

	result, err := h.comms.ProcessCommission(r.Context(), in)
	if err != nil {
		slog.Error("Failed to process commission", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Soft "nothing to do" outcomes are 200s with processed:false.
	writeJSON(w, http.StatusOK, envelope{"success": true, "processed": result.Processed, "message": result.Message, "result": result})
}

// handleCompleteCommission reconciles using only a session id, for
// callers that never saw the payment intent (the onboarding return page).
func (h *Handler) handleCompleteCommission(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		SessionID  string  `json:"session_id"`
		SaleAmount float64 `json:"sale_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	result, err := h.comms.ProcessCommission(r.Context(), service.ProcessCommissionInput{
		UserID:     userID,
		SessionID:  req.SessionID,
		SaleAmount: req.SaleAmount,
	})
	if err != nil {
		slog.Error("Failed to complete commission", "session_id", req.SessionID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "processed": result.Processed, "message": result.Message, "result": result})
}

func (h *Handler) handleManualSave(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		StripeAccountID string  `json:"stripe_account_id"`
		CommissionRate  float64 `json:"commission_rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.connect.ManualSave(r.Context(), userID, req.StripeAccountID, req.CommissionRate)
	if err != nil {
		if errors.Is(err, service.ErrAccountClaimed) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		slog.Error("Failed to save connected account", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "account": account})
}

func (h *Handler) handleConnectStatus(w http.ResponseWriter, r *http.Request, userID string) {
	account, err := h.connect.Status(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no connected account")
			return
		}
		slog.Error("Failed to get account status", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "account": account})
}

func (h *Handler) handleConnectOnboard(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Email        string `json:"email"`
		BusinessName string `json:"business_name"`
		Country      string `json:"country"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.connect.Onboard(r.Context(), userID, req.Email, req.BusinessName, req.Country)
	if err != nil {
		slog.Error("Failed to onboard connected account", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "account": result.Account, "onboarding_url": result.OnboardingURL})
}

// --- catalog ---

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request, userID string) {
	products, err := h.catalog.ListProducts(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list products", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "products": products})
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request, userID string) {
	var in service.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	product, err := h.catalog.CreateProduct(r.Context(), userID, in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "product": product})
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request, userID string) {
	var in service.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	product, err := h.catalog.UpdateProduct(r.Context(), userID, r.PathValue("id"), in)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "product": product})
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.catalog.DeleteProduct(r.Context(), userID, r.PathValue("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		slog.Error("Failed to delete product", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true})
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request, userID string) {
	categories, err := h.catalog.ListCategories(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list categories", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "categories": categories})
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	category, err := h.catalog.CreateCategory(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "category": category})
}

func (h *Handler) handleDeleteCategory(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.catalog.DeleteCategory(r.Context(), userID, r.PathValue("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}
		slog.Error("Failed to delete category", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true})
}

// --- settings ---

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request, userID string) {
	settings, err := h.settings.Get(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to get settings", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "settings": settings})
}

func (h *Handler) handlePutSettings(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		BusinessName string `json:"business_name"`
		Theme        string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := h.settings.Get(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load settings", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.BusinessName != "" {
		settings.BusinessName = req.BusinessName
	}
	if req.Theme != "" {
		settings.Theme = req.Theme
	}
	if err := h.settings.Upsert(r.Context(), settings); err != nil {
		slog.Error("Failed to save settings", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "settings": settings})
}
