/**
 * @description
 * This file sets up the HTTP router for the wallet-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for chi.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// WalletRoutes creates and returns a new router for the wallet service.
func WalletRoutes(h *WalletHandlers, wh *WebhookHandlers, jwksURL, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	r.Route("/wallet", func(r chi.Router) {
		// Health check endpoint
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("healthy"))
		})

		// Webhooks authenticate with an HMAC signature, not a JWT.
		r.Post("/webhooks/funding", wh.FundingWebhookHandler)
		r.Post("/webhooks/payout", wh.PayoutWebhookHandler)

		// Internal service-to-service and operations endpoints.
		r.Group(func(r chi.Router) {
			r.Use(InternalAPIKeyMiddleware(internalAPIKey))

			r.Post("/accounts", h.ProvisionAccountHandler)
			r.Post("/admin/adjust", h.AdminAdjustHandler)
			r.Post("/admin/withdrawals/{id}/resolve", h.AdminResolveWithdrawalHandler)
		})

		// Group routes that require authentication.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(jwksURL))

			r.Get("/balance", h.GetBalanceHandler)
			r.Get("/ledger", h.ListLedgerHandler)

			r.Post("/purchases", h.PurchaseHandler)

			r.Post("/withdrawals/otp", h.RequestWithdrawalOTPHandler)
			r.Post("/withdrawals", h.SubmitWithdrawalHandler)
			r.Get("/withdrawals/{id}", h.GetWithdrawalHandler)

			r.Post("/banks/resolve", h.ResolveBankHandler)
		})
	})

	return r
}
