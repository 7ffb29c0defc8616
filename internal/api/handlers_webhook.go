/**
 * @description
 * This file contains the HTTP handlers for the payment gateway webhook
 * endpoints. These are server-to-server callbacks from Paystack and
 * Flutterwave; they carry no user credentials, so each request is
 * authenticated by its gateway signature before the payload is trusted.
 *
 * Response contract:
 * - 200: event settled, or a replay of an already-settled event, or an event
 *   type we deliberately ignore. Gateways stop retrying on 200.
 * - 400: the payment could not be matched to any user.
 * - 401: the signature did not verify.
 * - 404: the resolved user has no profile row.
 * - 500: a transient failure; the gateway should retry.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha512, crypto/subtle, encoding/hex: Signature validation.
 * - internal/app, internal/domain, internal/store: Settlement logic and models.
 */

package api

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"

	"github.com/deepmindfx/izyconnect/internal/app"
	"github.com/deepmindfx/izyconnect/internal/domain"
	"github.com/deepmindfx/izyconnect/internal/store"
)

// WebhookHandlers holds the settlement service and the gateway secrets used
// for signature validation.
type WebhookHandlers struct {
	service *app.Service

	// paystackSecret signs webhook bodies with HMAC-SHA512.
	paystackSecret string
	// flutterwaveHash is the static verif-hash Flutterwave sends verbatim.
	flutterwaveHash string
}

// NewWebhookHandlers creates a new instance of WebhookHandlers.
func NewWebhookHandlers(service *app.Service, paystackSecret, flutterwaveHash string) *WebhookHandlers {
	return &WebhookHandlers{
		service:         service,
		paystackSecret:  paystackSecret,
		flutterwaveHash: flutterwaveHash,
	}
}

// PaystackWebhookHandler settles charge.success events posted by Paystack.
func (h *WebhookHandlers) PaystackWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("level=error component=api endpoint=paystack_webhook msg=\"cannot read body\" err=%v", err)
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	// The signing key is the Paystack secret key, which admins can rotate at
	// runtime; prefer the stored value over the boot-time fallback.
	secret := h.paystackSecret
	if settings, err := h.service.GetSettings(r.Context()); err == nil && settings.PaystackSecretKey != "" {
		secret = settings.PaystackSecretKey
	}
	if !isValidPaystackSignature(secret, r.Header.Get("x-paystack-signature"), body) {
		log.Printf("level=warn component=api endpoint=paystack_webhook msg=\"invalid signature\" remote_addr=%s", r.RemoteAddr)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var payload domain.PaystackWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("level=error component=api endpoint=paystack_webhook msg=\"invalid json\" err=%v", err)
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	event := domain.PaymentEvent{
		Gateway:        domain.GatewayPaystack,
		EventType:      payload.Event,
		Reference:      payload.Data.Reference,
		Amount:         payload.Data.Amount,
		Currency:       payload.Data.Currency,
		CustomerEmail:  payload.Data.Customer.Email,
		MetadataUserID: payload.MetadataUserID(),
		ClientUserID:   payload.Data.UserID,
	}
	h.settle(w, r, event)
}

// FlutterwaveWebhookHandler settles charge.completed events posted by
// Flutterwave, including inbound transfers to dedicated virtual accounts.
func (h *WebhookHandlers) FlutterwaveWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if !h.isValidFlutterwaveHash(r.Header.Get("verif-hash")) {
		log.Printf("level=warn component=api endpoint=flutterwave_webhook msg=\"invalid verif-hash\" remote_addr=%s", r.RemoteAddr)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var payload domain.FlutterwaveWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("level=error component=api endpoint=flutterwave_webhook msg=\"invalid json\" err=%v", err)
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	// Flutterwave reports NGN amounts in naira; the ledger works in kobo.
	event := domain.PaymentEvent{
		Gateway:        domain.GatewayFlutterwave,
		EventType:      payload.Event,
		Reference:      payload.Data.FlwRef,
		Amount:         int64(math.Round(payload.Data.Amount * 100)),
		Currency:       payload.Data.Currency,
		CustomerEmail:  payload.Data.Customer.Email,
		MetadataUserID: payload.MetadataUserID(),
	}
	if event.Reference == "" {
		event.Reference = payload.Data.TxRef
	}
	// Flutterwave uses a status field rather than distinct event names for
	// failures; only successful charges settle.
	if payload.Event == domain.FlutterwaveChargeCompleted && payload.Data.Status != "successful" {
		event.EventType = "charge.failed"
	}
	h.settle(w, r, event)
}

// settle runs a normalized payment event through the settlement service and
// maps the outcome to the webhook response contract.
func (h *WebhookHandlers) settle(w http.ResponseWriter, r *http.Request, event domain.PaymentEvent) {
	outcome, err := h.service.SettleFunding(r.Context(), event)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUserNotResolved), errors.Is(err, app.ErrInvalidPaymentEvent):
			log.Printf("level=warn component=api endpoint=webhook outcome=reject gateway=%s reference=%s err=%v", event.Gateway, event.Reference, err)
			h.writeWebhookError(w, http.StatusBadRequest, "Could not match payment to a user")
		case errors.Is(err, store.ErrProfileNotFound):
			log.Printf("level=warn component=api endpoint=webhook outcome=reject gateway=%s reference=%s err=%v", event.Gateway, event.Reference, err)
			h.writeWebhookError(w, http.StatusNotFound, "User profile not found")
		default:
			log.Printf("level=error component=api endpoint=webhook gateway=%s reference=%s err=%v", event.Gateway, event.Reference, err)
			h.writeWebhookError(w, http.StatusInternalServerError, "Settlement failed")
		}
		return
	}

	if !outcome.Handled {
		h.writeWebhookJSON(w, http.StatusOK, map[string]interface{}{"received": true})
		return
	}

	h.writeWebhookJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"already_processed": outcome.AlreadyProcessed,
		"new_balance":       domain.NairaFromKobo(outcome.NewBalance),
	})
}

// isValidPaystackSignature checks the HMAC-SHA512 hex digest Paystack sends
// in the x-paystack-signature header against the raw request body.
func isValidPaystackSignature(secret, signatureHeader string, body []byte) bool {
	if secret == "" || signatureHeader == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

// isValidFlutterwaveHash checks the static verif-hash header Flutterwave
// echoes back on every webhook delivery.
func (h *WebhookHandlers) isValidFlutterwaveHash(header string) bool {
	if h.flutterwaveHash == "" || header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(h.flutterwaveHash)) == 1
}

func (h *WebhookHandlers) writeWebhookJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode webhook response\" err=%v", err)
	}
}

func (h *WebhookHandlers) writeWebhookError(w http.ResponseWriter, status int, message string) {
	h.writeWebhookJSON(w, status, map[string]string{"error": message})
}
