/**
 * @description
 * Webhook handlers for the payment and payout processors. Both endpoints
 * authenticate the raw body with an HMAC-SHA512 signature header before any
 * JSON parsing. Replayed deliveries are acknowledged with 200 so the
 * processor's retry loop terminates; the ledger's idempotency keys guarantee
 * the replay has no balance effect.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha512, encoding/hex, encoding/base64: Signature validation.
 */

package api

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/app"
	"github.com/padipay/wallet-service/internal/domain"
)

const webhookSignatureHeader = "X-Wallet-Signature"

// WebhookHandlers holds the service and the shared secret used to
// authenticate processor callbacks.
type WebhookHandlers struct {
	service *app.Service
	secret  string
}

// NewWebhookHandlers creates a new instance of WebhookHandlers.
func NewWebhookHandlers(service *app.Service, secret string) *WebhookHandlers {
	return &WebhookHandlers{service: service, secret: secret}
}

// verifySignature checks the HMAC-SHA512 of the raw body against the
// signature header. Both hex and base64 encodings are accepted.
func (h *WebhookHandlers) verifySignature(body []byte, header string) bool {
	if h.secret == "" || header == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(h.secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	header = strings.TrimSpace(header)
	if decoded, err := hex.DecodeString(header); err == nil && hmac.Equal(decoded, expected) {
		return true
	}
	if decoded, err := base64.StdEncoding.DecodeString(header); err == nil && hmac.Equal(decoded, expected) {
		return true
	}
	return false
}

// readVerifiedBody reads the body and authenticates it, writing the error
// response itself on failure.
func (h *WebhookHandlers) readVerifiedBody(w http.ResponseWriter, r *http.Request, endpoint string) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Unable to read request body", http.StatusBadRequest)
		return nil, false
	}
	if !h.verifySignature(body, r.Header.Get(webhookSignatureHeader)) {
		log.Printf("level=warn component=webhook endpoint=%s outcome=reject reason=invalid_signature", endpoint)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return nil, false
	}
	return body, true
}

// FundingWebhookHandler credits a wallet for a confirmed deposit.
func (h *WebhookHandlers) FundingWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readVerifiedBody(w, r, "funding")
	if !ok {
		return
	}

	var payload struct {
		Reference string `json:"reference"`
		UserID    string `json:"user_id"`
		Amount    int64  `json:"amount"` // in kobo
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID format", http.StatusBadRequest)
		return
	}

	result, err := h.service.HandleFundingEvent(r.Context(), domain.FundingEvent{
		Reference: payload.Reference,
		UserID:    userID,
		Amount:    payload.Amount,
	})
	if err != nil {
		log.Printf("level=error component=webhook endpoint=funding outcome=failed reference=%s err=%v", payload.Reference, err)
		// 5xx prompts the processor to redeliver; the reference makes the
		// retry safe.
		http.Error(w, "Unable to apply funding event", http.StatusInternalServerError)
		return
	}

	log.Printf("level=info component=webhook endpoint=funding outcome=%s reference=%s amount=%d", result.Outcome(), payload.Reference, payload.Amount)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "outcome": string(result.Outcome())})
}

// PayoutWebhookHandler applies a payout status callback to its withdrawal.
func (h *WebhookHandlers) PayoutWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readVerifiedBody(w, r, "payout")
	if !ok {
		return
	}

	var payload struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.HandlePayoutEvent(r.Context(), domain.PayoutStatusEvent{
		PayoutReference: payload.Reference,
		Status:          payload.Status,
		Reason:          payload.Reason,
	}); err != nil {
		log.Printf("level=error component=webhook endpoint=payout outcome=failed reference=%s err=%v", payload.Reference, err)
		http.Error(w, "Unable to apply payout event", http.StatusInternalServerError)
		return
	}

	log.Printf("level=info component=webhook endpoint=payout outcome=applied reference=%s status=%s", payload.Reference, payload.Status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
