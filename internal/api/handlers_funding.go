/**
 * @description
 * HTTP handlers for the wallet funding flow: starting a hosted-checkout
 * session with Paystack and manually verifying a payment when the webhook is
 * delayed. Both endpoints require an authenticated user; the webhook handlers
 * in handlers_webhook.go are the unauthenticated, signature-verified entry
 * points into the same settlement path.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/deepmindfx/izyconnect/internal/app"
	"github.com/deepmindfx/izyconnect/internal/domain"
	"github.com/deepmindfx/izyconnect/internal/store"
)

// InitiateDepositHandler starts a Paystack hosted-checkout session for a
// wallet top-up.
func (h *WalletHandlers) InitiateDepositHandler(w http.ResponseWriter, r *http.Request) {
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
		log.Printf("level=error component=api endpoint=initiate_deposit user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var req domain.InitiateDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.InitiateDeposit(r.Context(), profile, req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidAmount):
			h.writeError(w, http.StatusBadRequest, "Amount is outside the allowed funding range")
		case errors.Is(err, app.ErrGatewayInactive):
			h.writeError(w, http.StatusServiceUnavailable, "Paystack checkout is not currently enabled")
		case errors.Is(err, app.ErrGatewayNotConfigured):
			h.writeError(w, http.StatusServiceUnavailable, "Wallet funding is not available right now")
		default:
			log.Printf("level=error component=api endpoint=initiate_deposit user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Could not start checkout")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// VerifyDepositHandler re-checks a payment directly with the gateway and
// settles it if successful. Safe to call repeatedly; a payment that already
// settled (via webhook or a prior call) is acknowledged without a second
// credit.
func (h *WalletHandlers) VerifyDepositHandler(w http.ResponseWriter, r *http.Request) {
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
		log.Printf("level=error component=api endpoint=verify_deposit user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var req domain.VerifyDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Reference == "" {
		h.writeError(w, http.StatusBadRequest, "Reference is required")
		return
	}

	outcome, err := h.service.VerifyDeposit(r.Context(), profile, req.Reference)
	if err != nil {
		var rateLimitErr *app.RateLimitError
		switch {
		case errors.As(err, &rateLimitErr):
			w.Header().Set("Retry-After", strconv.Itoa(rateLimitErr.RetryAfterSeconds))
			h.writeError(w, http.StatusTooManyRequests, "Too many verification attempts. Please wait and try again.")
		case errors.Is(err, app.ErrVerificationPending):
			h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
				"status":  "pending",
				"message": "Verification is taking longer than expected. The wallet will be credited once the payment is confirmed.",
			})
		case errors.Is(err, app.ErrGatewayNotConfigured):
			h.writeError(w, http.StatusServiceUnavailable, "Wallet funding is not available right now")
		case errors.Is(err, store.ErrProfileNotFound), errors.Is(err, app.ErrUserNotResolved):
			h.writeError(w, http.StatusNotFound, "No matching user for this payment")
		default:
			log.Printf("level=error component=api endpoint=verify_deposit user_id=%s reference=%s err=%v", userID, req.Reference, err)
			h.writeError(w, http.StatusInternalServerError, "Verification failed")
		}
		return
	}

	if !outcome.Handled {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "not_successful",
			"message": "The payment has not completed successfully",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"already_processed": outcome.AlreadyProcessed,
		"new_balance":       domain.NairaFromKobo(outcome.NewBalance),
	})
}
