/**
 * @description
 * This file contains the HTTP handlers for the wallet service's authenticated
 * API endpoints. Handlers are responsible for parsing incoming requests,
 * calling the appropriate methods on the application service, and writing the
 * HTTP response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * All monetary fields on responses are expressed in naira; the service and
 * store layers work in kobo.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/deepmindfx/izyconnect/internal/app"
	"github.com/deepmindfx/izyconnect/internal/domain"
	"github.com/deepmindfx/izyconnect/internal/store"
)

// WalletHandlers holds the application service that handlers will use.
type WalletHandlers struct {
	service *app.Service
}

// NewWalletHandlers creates a new instance of WalletHandlers.
func NewWalletHandlers(service *app.Service) *WalletHandlers {
	return &WalletHandlers{service: service}
}

// GetWalletHandler returns the authenticated user's wallet balance.
func (h *WalletHandlers) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			h.writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_wallet user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, domain.WalletBalanceResponse{
		Balance:     domain.NairaFromKobo(profile.WalletBalance),
		BalanceKobo: profile.WalletBalance,
		Currency:    "NGN",
	})
}

// GetTransactionHistoryHandler returns the user's ledger entries, newest first.
func (h *WalletHandlers) GetTransactionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	limit, err := parseQueryInt(r, "limit", 50)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, err := parseQueryInt(r, "offset", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	transactions, err := h.service.ListTransactions(r.Context(), userID, domain.TransactionListOptions{Limit: limit, Offset: offset})
	if err != nil {
		log.Printf("level=error component=api endpoint=transaction_history user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// TransferHandler moves wallet funds to another user identified by email.
func (h *WalletHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	var req domain.WalletTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.TransferWallet(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrTransfersDisabled):
			h.writeError(w, http.StatusForbidden, "Wallet transfers are currently disabled")
		case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrTransferOutOfRange):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrSelfTransfer):
			h.writeError(w, http.StatusBadRequest, "Cannot transfer to your own wallet")
		case errors.Is(err, store.ErrProfileNotFound):
			h.writeError(w, http.StatusNotFound, "Recipient not found")
		case errors.Is(err, store.ErrInsufficientFunds):
			h.writeError(w, http.StatusPaymentRequired, "Insufficient wallet balance")
		default:
			log.Printf("level=error component=api endpoint=transfer user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Transfer failed")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transaction_id": result.TransactionID,
		"amount":         domain.NairaFromKobo(result.Amount),
		"charge":         domain.NairaFromKobo(result.Charge),
		"new_balance":    domain.NairaFromKobo(result.SenderNewBalance),
	})
}

// ListPlansHandler returns the purchasable data plans.
func (h *WalletHandlers) ListPlansHandler(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListPlans(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=list_plans err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"plans": plans})
}

// PurchasePlanHandler debits the wallet for a data plan purchase.
func (h *WalletHandlers) PurchasePlanHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	planIDStr := chi.URLParam(r, "planID")
	planID, err := uuid.Parse(planIDStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid plan ID format")
		return
	}

	result, err := h.service.PurchasePlan(r.Context(), userID, planID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPlanNotFound):
			h.writeError(w, http.StatusNotFound, "Plan not found")
		case errors.Is(err, app.ErrPlanInactive):
			h.writeError(w, http.StatusConflict, "Plan is not available for purchase")
		case errors.Is(err, store.ErrInsufficientFunds):
			h.writeError(w, http.StatusPaymentRequired, "Insufficient wallet balance")
		case errors.Is(err, store.ErrProfileNotFound):
			h.writeError(w, http.StatusNotFound, "Profile not found")
		default:
			log.Printf("level=error component=api endpoint=purchase_plan user_id=%s plan_id=%s err=%v", userID, planID, err)
			h.writeError(w, http.StatusInternalServerError, "Purchase failed")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transaction_id": result.TransactionID,
		"plan_id":        result.PlanID,
		"amount":         domain.NairaFromKobo(result.Amount),
		"new_balance":    domain.NairaFromKobo(result.NewBalance),
	})
}

// GetVirtualAccountHandler returns the user's dedicated funding account.
func (h *WalletHandlers) GetVirtualAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	account, err := h.service.GetVirtualAccount(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrVirtualAccountNotFound) {
			h.writeError(w, http.StatusNotFound, "No virtual account on file")
			return
		}
		log.Printf("level=error component=api endpoint=get_virtual_account user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, account)
}

// CreateVirtualAccountHandler provisions a dedicated funding account.
func (h *WalletHandlers) CreateVirtualAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	var req domain.CreateVirtualAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.CreateVirtualAccount(r.Context(), userID, req.BVN)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidBVN):
			h.writeError(w, http.StatusBadRequest, "A valid 11-digit BVN is required")
		case errors.Is(err, app.ErrGatewayNotConfigured):
			h.writeError(w, http.StatusServiceUnavailable, "Virtual accounts are not available right now")
		case errors.Is(err, store.ErrProfileNotFound):
			h.writeError(w, http.StatusNotFound, "Profile not found")
		default:
			log.Printf("level=error component=api endpoint=create_virtual_account user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Virtual account creation failed")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, account)
}

func parseQueryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New("invalid integer")
	}
	return value, nil
}

// writeJSON is a helper for writing JSON responses.
func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
