/**
 * @description
 * Internal-only handlers: account provisioning for the onboarding service,
 * manual ledger adjustments for the operations team, and manual withdrawal
 * resolution for support cases where the payout processor never calls back.
 * All of these sit behind the internal API key middleware.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/app"
	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/store"
)

// ProvisionAccountHandler creates a wallet for a newly onboarded user. Replays
// return 200 instead of 201 so the caller can retry freely.
func (h *WalletHandlers) ProvisionAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID format", http.StatusBadRequest)
		return
	}

	created, err := h.service.ProvisionAccount(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=provision_account user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to provision wallet")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, map[string]interface{}{
		"user_id": userID.String(),
		"created": created,
	})
}

// AdminAdjustHandler applies a manual credit or debit with a mandatory note.
func (h *WalletHandlers) AdminAdjustHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Type   string `json:"type"` // credit | debit
		Amount int64  `json:"amount"`
		Note   string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID format", http.StatusBadRequest)
		return
	}

	var entryType domain.EntryType
	switch req.Type {
	case string(domain.EntryTypeCredit):
		entryType = domain.EntryTypeCredit
	case string(domain.EntryTypeDebit):
		entryType = domain.EntryTypeDebit
	default:
		http.Error(w, "type must be credit or debit", http.StatusBadRequest)
		return
	}

	log.Printf("level=info component=api endpoint=admin_adjust user_id=%s type=%s amount=%d", userID, req.Type, req.Amount)

	result, err := h.service.Adjust(r.Context(), userID, req.Amount, entryType, req.Note)
	if err != nil {
		log.Printf("level=warn component=api endpoint=admin_adjust outcome=failed user_id=%s err=%v", userID, err)
		switch {
		case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrMissingNote):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, store.ErrInsufficientFunds):
			h.writeError(w, http.StatusPaymentRequired, "Insufficient balance for debit adjustment")
		case errors.Is(err, store.ErrAccountNotFound):
			h.writeError(w, http.StatusNotFound, "Wallet not found")
		case errors.Is(err, store.ErrAccountArchived):
			h.writeError(w, http.StatusForbidden, "Wallet is archived")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"outcome": result.Outcome(),
		"entry":   result.Entry,
	})
}

// AdminResolveWithdrawalHandler manually drives a withdrawal to a terminal
// status. A replayed resolve on a terminal request returns the current row
// with no further balance change.
func (h *WalletHandlers) AdminResolveWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid withdrawal ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"` // completed | failed
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	var failureReason *string
	if req.Status == domain.WithdrawalStatusFailed {
		reason := req.Reason
		if reason == "" {
			reason = "manually failed by operations"
		}
		failureReason = &reason
	}

	log.Printf("level=info component=api endpoint=admin_resolve_withdrawal request_id=%s status=%s", requestID, req.Status)

	request, err := h.service.ResolveWithdrawal(r.Context(), requestID, req.Status, failureReason)
	if err != nil {
		log.Printf("level=warn component=api endpoint=admin_resolve_withdrawal outcome=failed request_id=%s err=%v", requestID, err)
		if errors.Is(err, store.ErrWithdrawalNotFound) {
			h.writeError(w, http.StatusNotFound, "Withdrawal not found")
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, buildWithdrawalResponse(request))
}
