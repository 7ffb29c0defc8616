/**
 * @description
 * This file sets up the HTTP router for the wallet service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries the secrets the middleware stack needs.
type RouterConfig struct {
	JWTSecret      string
	InternalAPIKey string
}

// WalletRoutes creates and returns the router for the wallet service.
func WalletRoutes(h *WalletHandlers, wh *WebhookHandlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Gateway webhooks authenticate by signature, not by user token.
	r.Route("/webhooks", func(r chi.Router) {
		r.Use(CORSMiddleware)
		r.Post("/paystack", wh.PaystackWebhookHandler)
		r.Post("/flutterwave", wh.FlutterwaveWebhookHandler)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Group routes that require authentication.
		r.Group(func(r chi.Router) {
			r.Use(CORSMiddleware)
			r.Use(AuthMiddleware(cfg.JWTSecret))

			r.Get("/wallet", h.GetWalletHandler)
			r.Get("/wallet/transactions", h.GetTransactionHistoryHandler)
			r.Post("/wallet/transfer", h.TransferHandler)
			r.Post("/wallet/fund/initiate", h.InitiateDepositHandler)
			r.Post("/wallet/fund/verify", h.VerifyDepositHandler)

			r.Get("/plans", h.ListPlansHandler)
			r.Post("/plans/{planID}/purchase", h.PurchasePlanHandler)

			r.Get("/virtual-account", h.GetVirtualAccountHandler)
			r.Post("/virtual-account", h.CreateVirtualAccountHandler)
		})

		// Admin endpoints are guarded by the internal API key.
		r.Group(func(r chi.Router) {
			r.Use(InternalAPIKeyMiddleware(cfg.InternalAPIKey))

			r.Get("/admin/settings", h.ListSettingsHandler)
			r.Put("/admin/settings", h.UpdateSettingsHandler)
		})
	})

	return r
}
