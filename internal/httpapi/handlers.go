package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"warungpos/backend/internal/domain"
)

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// Auth

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, errInvalidCredentials) || errors.Is(err, errInactiveAccount) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := a.service.CurrentUser(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Stores

func (a *API) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := a.service.ListStores(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": stores})
}

func (a *API) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req domain.StoreCreateRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	st, err := a.service.CreateStore(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (a *API) handleGetStore(w http.ResponseWriter, r *http.Request) {
	st, err := a.service.GetStore(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleUpdateStore(w http.ResponseWriter, r *http.Request) {
	var req domain.StoreUpdateRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	st, err := a.service.UpdateStore(r.Context(), chi.URLParam(r, "storeID"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.Dashboard(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	report, err := a.service.SalesReport(r.Context(), chi.URLParam(r, "storeID"), query.Get("from"), query.Get("to"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), chi.URLParam(r, "storeID"), limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": logs})
}

// Products

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	product, err := a.service.CreateProduct(r.Context(), chi.URLParam(r, "storeID"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListLowStock(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": products})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "productID"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), chi.URLParam(r, "productID")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockAdjustmentRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	product, err := a.service.AdjustStock(r.Context(), chi.URLParam(r, "productID"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleStockMovements(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	movements, err := a.service.ListStockMovements(r.Context(), chi.URLParam(r, "productID"), limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": movements})
}

// Customers

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := a.service.ListCustomers(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": customers})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerCreateRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	customer, err := a.service.CreateCustomer(r.Context(), chi.URLParam(r, "storeID"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (a *API) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerUpdateRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	customer, err := a.service.UpdateCustomer(r.Context(), chi.URLParam(r, "customerID"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteCustomer(r.Context(), chi.URLParam(r, "customerID")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleCustomerDebts(w http.ResponseWriter, r *http.Request) {
	debts, err := a.service.ListCustomerDebts(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": debts})
}

// Transactions

func (a *API) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	query := r.URL.Query()
	from, to, err := a.service.FilterRange(r.Context(), storeID, query.Get("from"), query.Get("to"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	txs, err := a.service.ListTransactions(r.Context(), storeID, domain.TransactionFilter{
		From:   from,
		To:     to,
		Status: strings.TrimSpace(query.Get("status")),
		Limit:  parsePositiveLimit(query.Get("limit"), 0, 500),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": txs})
}

func (a *API) handlePostSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	result, err := a.service.PostSale(r.Context(), chi.URLParam(r, "storeID"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (a *API) handleOfflineSync(w http.ResponseWriter, r *http.Request) {
	var req domain.OfflineSyncRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	resp, err := a.service.SyncOffline(r.Context(), chi.URLParam(r, "storeID"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := a.service.GetTransaction(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (a *API) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.TransactionUpdateRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	tx, err := a.service.UpdateTransaction(r.Context(), chi.URLParam(r, "transactionID"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// handlePaymentCallback is called by the payment gateway, which authenticates
// with the shared X-Callback-Token header instead of a bearer token.
func (a *API) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	if a.callbackToken == "" {
		writeError(w, http.StatusServiceUnavailable, errors.New("payment callback is not configured"))
		return
	}
	provided := strings.TrimSpace(r.Header.Get("X-Callback-Token"))
	if subtle.ConstantTimeCompare([]byte(provided), []byte(a.callbackToken)) != 1 {
		writeError(w, http.StatusUnauthorized, errors.New("invalid callback token"))
		return
	}

	var req domain.PaymentCallbackRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	resp, err := a.service.MarkTransactionPaid(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Debts

func (a *API) handleListDebts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	debts, err := a.service.ListDebts(r.Context(), chi.URLParam(r, "storeID"), domain.DebtFilter{
		CustomerID: strings.TrimSpace(query.Get("customer_id")),
		Status:     strings.TrimSpace(query.Get("status")),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": debts})
}

func (a *API) handleUpdateDebt(w http.ResponseWriter, r *http.Request) {
	var req domain.DebtUpdateRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	debt, err := a.service.UpdateDebt(r.Context(), chi.URLParam(r, "debtID"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, debt)
}

func (a *API) handleDebtPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.DebtPaymentRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	resp, err := a.service.RecordDebtPayment(r.Context(), chi.URLParam(r, "debtID"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDebtReminder(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.SendDebtReminder(r.Context(), chi.URLParam(r, "debtID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Cash flow

func (a *API) handleListCashFlow(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	query := r.URL.Query()
	from, to, err := a.service.FilterRange(r.Context(), storeID, query.Get("from"), query.Get("to"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	resp, err := a.service.ListCashFlow(r.Context(), storeID, domain.CashFlowFilter{
		From: from,
		To:   to,
		Type: strings.TrimSpace(query.Get("type")),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCreateCashFlow(w http.ResponseWriter, r *http.Request) {
	var req domain.CashFlowCreateRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	entry, err := a.service.CreateCashFlow(r.Context(), chi.URLParam(r, "storeID"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) handleUpdateCashFlow(w http.ResponseWriter, r *http.Request) {
	var req domain.CashFlowUpdateRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	entry, err := a.service.UpdateCashFlow(r.Context(), chi.URLParam(r, "entryID"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) handleDeleteCashFlow(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteCashFlow(r.Context(), chi.URLParam(r, "entryID")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Sync

func (a *API) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	letters, err := a.service.ListDeadLetters(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": letters})
}
