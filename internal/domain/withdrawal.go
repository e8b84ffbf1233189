package domain

import (
	"time"

	"github.com/google/uuid"
)

// Withdrawal request statuses. A request moves pending -> processing ->
// completed|failed; both terminal states are absorbing.
const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusFailed     = "failed"
)

// BankDetails identifies the external payout destination for a withdrawal.
type BankDetails struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// WithdrawalRequest tracks one payout attempt. The wallet debit for
// TotalAmount happens at most once, at submission; a failed payout triggers
// exactly one refund of TotalAmount.
type WithdrawalRequest struct {
	ID              uuid.UUID   `json:"id"`
	UserID          uuid.UUID   `json:"user_id"`
	Amount          int64       `json:"amount"` // in kobo
	Fee             int64       `json:"fee"`    // in kobo
	TotalAmount     int64       `json:"total_amount"`
	BankDetails     BankDetails `json:"bank_details"`
	Status          string      `json:"status"`
	PayoutReference string      `json:"payout_reference,omitempty"`
	DebitEntryID    uuid.UUID   `json:"debit_entry_id"`
	FailureReason   *string     `json:"failure_reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// SubmitWithdrawalRequest is the DTO for incoming withdrawal API requests.
type SubmitWithdrawalRequest struct {
	Amount        int64  `json:"amount"` // in kobo
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	OTP           string `json:"otp"`
}
