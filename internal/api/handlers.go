/**
 * @description
 * This file contains the HTTP handlers for the wallet-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/app"
	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/store"
)

// WalletHandlers holds the application service that handlers will use.
type WalletHandlers struct {
	service *app.Service
}

// NewWalletHandlers creates a new instance of WalletHandlers.
func NewWalletHandlers(service *app.Service) *WalletHandlers {
	return &WalletHandlers{service: service}
}

type purchaseRequest struct {
	ServiceType    string            `json:"service_type"`
	Amount         int64             `json:"amount"` // in kobo
	Description    string            `json:"description"`
	Reference      string            `json:"reference"`
	ProviderParams map[string]string `json:"provider_params"`
}

type withdrawalResponse struct {
	RequestID     string  `json:"request_id"`
	Status        string  `json:"status"`
	Amount        int64   `json:"amount"`
	Fee           int64   `json:"fee"`
	TotalAmount   int64   `json:"total_amount"`
	BankCode      string  `json:"bank_code"`
	AccountNumber string  `json:"account_number"`
	AccountName   string  `json:"account_name"`
	FailureReason *string `json:"failure_reason,omitempty"`
}

func buildWithdrawalResponse(req *domain.WithdrawalRequest) withdrawalResponse {
	return withdrawalResponse{
		RequestID:     req.ID.String(),
		Status:        req.Status,
		Amount:        req.Amount,
		Fee:           req.Fee,
		TotalAmount:   req.TotalAmount,
		BankCode:      req.BankDetails.BankCode,
		AccountNumber: req.BankDetails.AccountNumber,
		AccountName:   req.BankDetails.AccountName,
		FailureReason: req.FailureReason,
	}
}

// authUserID resolves the authenticated caller to a wallet user id, writing
// the error response itself on failure.
func (h *WalletHandlers) authUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		log.Printf("level=warn component=api outcome=reject reason=invalid_user_id user_id=%s", userIDStr)
		http.Error(w, "Invalid user ID format", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return userID, true
}

// GetBalanceHandler returns the caller's current wallet balance.
func (h *WalletHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authUserID(w, r)
	if !ok {
		return
	}

	account, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			h.writeError(w, http.StatusNotFound, "Wallet not found")
			return
		}
		log.Printf("level=error component=api endpoint=balance user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load balance")
		return
	}

	h.writeJSON(w, http.StatusOK, account)
}

// ListLedgerHandler returns a page of the caller's ledger history, newest first.
func (h *WalletHandlers) ListLedgerHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authUserID(w, r)
	if !ok {
		return
	}

	opts := domain.LedgerListOptions{Limit: 50}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit <= store.MaxLedgerPageSize {
			opts.Limit = limit
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			opts.Offset = offset
		}
	}

	entries, err := h.service.ListLedger(r.Context(), userID, opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=ledger user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load ledger history")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// PurchaseHandler runs a provider-backed purchase for the caller.
func (h *WalletHandlers) PurchaseHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authUserID(w, r)
	if !ok {
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=purchase outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	log.Printf("level=info component=api endpoint=purchase outcome=accepted user_id=%s service_type=%s amount=%d", userID, req.ServiceType, req.Amount)

	result, err := h.service.Purchase(r.Context(), domain.PurchaseParams{
		UserID:            userID,
		ServiceType:       domain.ServiceType(req.ServiceType),
		Amount:            req.Amount,
		Description:       req.Description,
		ExternalReference: req.Reference,
		ProviderParams:    req.ProviderParams,
	})
	if err != nil {
		log.Printf("level=warn component=api endpoint=purchase outcome=failed user_id=%s err=%v", userID, err)
		switch {
		case errors.Is(err, app.ErrUnknownServiceType),
			errors.Is(err, app.ErrInvalidAmount),
			errors.Is(err, app.ErrMissingReference):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, store.ErrAccountNotFound):
			h.writeError(w, http.StatusNotFound, "Wallet not found")
		case errors.Is(err, store.ErrAccountArchived):
			h.writeError(w, http.StatusForbidden, "Wallet is archived")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, purchaseStatusCode(result.Outcome), result)
}

// purchaseStatusCode maps a purchase outcome to an HTTP status. Every outcome
// here is a settled ledger state, so nothing maps to a 5xx that would invite a
// client retry with side effects.
func purchaseStatusCode(outcome domain.Outcome) int {
	switch outcome {
	case domain.OutcomeSuccess, domain.OutcomeDuplicate:
		return http.StatusOK
	case domain.OutcomeInsufficientBalance:
		return http.StatusPaymentRequired
	case domain.OutcomeServiceUnavailable:
		return http.StatusServiceUnavailable
	case domain.OutcomeProviderFailureRefunded:
		return http.StatusBadGateway
	}
	return http.StatusOK
}

// RequestWithdrawalOTPHandler issues a withdrawal OTP to the caller.
func (h *WalletHandlers) RequestWithdrawalOTPHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.RequestWithdrawalOTP(r.Context(), userID); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			h.writeError(w, http.StatusNotFound, "Wallet not found")
			return
		}
		if errors.Is(err, app.ErrOTPThrottled) {
			h.writeError(w, http.StatusTooManyRequests, "An OTP was recently sent. Please wait before requesting another.")
			return
		}
		log.Printf("level=error component=api endpoint=withdrawal_otp user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to issue OTP")
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"message": "OTP sent"})
}

// SubmitWithdrawalHandler submits a withdrawal for the caller.
func (h *WalletHandlers) SubmitWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authUserID(w, r)
	if !ok {
		return
	}

	var req domain.SubmitWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=withdrawal outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	log.Printf("level=info component=api endpoint=withdrawal outcome=accepted user_id=%s amount=%d bank_code=%s", userID, req.Amount, req.BankCode)

	request, err := h.service.SubmitWithdrawal(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=withdrawal outcome=failed user_id=%s err=%v", userID, err)
		switch {
		case errors.Is(err, app.ErrInvalidOTP):
			h.writeError(w, http.StatusUnauthorized, "Invalid OTP")
		case errors.Is(err, app.ErrOTPLocked):
			h.writeError(w, http.StatusLocked, "Too many incorrect OTP attempts. Please request a new code.")
		case errors.Is(err, store.ErrInsufficientFunds):
			h.writeError(w, http.StatusPaymentRequired, "Insufficient balance")
		case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrBankDetailsInvalid):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, store.ErrAccountNotFound):
			h.writeError(w, http.StatusNotFound, "Wallet not found")
		case errors.Is(err, store.ErrAccountArchived):
			h.writeError(w, http.StatusForbidden, "Wallet is archived")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, buildWithdrawalResponse(request))
}

// GetWithdrawalHandler returns one of the caller's withdrawal requests.
func (h *WalletHandlers) GetWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authUserID(w, r)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid withdrawal ID", http.StatusBadRequest)
		return
	}

	request, err := h.service.GetWithdrawal(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, store.ErrWithdrawalNotFound) {
			h.writeError(w, http.StatusNotFound, "Withdrawal not found")
			return
		}
		log.Printf("level=error component=api endpoint=withdrawal_status request_id=%s err=%v", requestID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load withdrawal")
		return
	}
	// Callers can only see their own requests.
	if request.UserID != userID {
		h.writeError(w, http.StatusNotFound, "Withdrawal not found")
		return
	}

	h.writeJSON(w, http.StatusOK, buildWithdrawalResponse(request))
}

// ResolveBankHandler runs a name enquiry for the given bank details.
func (h *WalletHandlers) ResolveBankHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authUserID(w, r); !ok {
		return
	}

	var req struct {
		BankCode      string `json:"bank_code"`
		AccountNumber string `json:"account_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	accountName, err := h.service.ResolveBankAccount(r.Context(), req.BankCode, req.AccountNumber)
	if err != nil {
		if errors.Is(err, app.ErrBankDetailsInvalid) {
			h.writeError(w, http.StatusUnprocessableEntity, "Could not resolve bank account")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Unable to resolve bank account")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"bank_code":      req.BankCode,
		"account_number": req.AccountNumber,
		"account_name":   accountName,
	})
}

// writeJSON is a helper for writing JSON responses.
func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
