/**
 * @description
 * This file defines the core domain models for the wallet-service ledger: the
 * custodial Account, the append-only LedgerEntry, and the stable outcome kinds
 * returned to callers of money-movement operations.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (kobo), which
 *   avoids floating-point inaccuracies with financial data.
 * - LedgerEntry rows are immutable once written, except for the single allowed
 *   transition of `status` from pending to success/failed on asynchronous flows.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryType distinguishes the direction of a ledger entry.
type EntryType string

const (
	EntryTypeCredit EntryType = "credit"
	EntryTypeDebit  EntryType = "debit"
)

// Entry statuses. Synchronous mutations are written as success; provider-backed
// flows write pending and settle to success or failed exactly once.
const (
	EntryStatusPending = "pending"
	EntryStatusSuccess = "success"
	EntryStatusFailed  = "failed"
)

// ServiceType labels what a ledger entry paid for.
type ServiceType string

const (
	ServiceFunding         ServiceType = "funding"
	ServiceWithdrawal      ServiceType = "withdrawal"
	ServiceAirtime         ServiceType = "airtime"
	ServiceData            ServiceType = "data"
	ServiceTV              ServiceType = "tv"
	ServiceElectricity     ServiceType = "electricity"
	ServiceBetting         ServiceType = "betting"
	ServiceExamCard        ServiceType = "exam-card"
	ServiceBulkSMS         ServiceType = "bulk-sms"
	ServiceAdminAdjustment ServiceType = "admin-adjustment"
	ServiceRefund          ServiceType = "refund"
)

// Account represents a user's custodial wallet. Balance is only ever mutated by
// the ledger store's atomic primitive.
type Account struct {
	UserID      uuid.UUID `json:"user_id"`
	Balance     int64     `json:"balance"` // in kobo
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// LedgerEntry is the immutable record written alongside every balance mutation.
// This struct maps directly to the `ledger_entries` table.
type LedgerEntry struct {
	ID                    uuid.UUID   `json:"id"`
	UserID                uuid.UUID   `json:"user_id"`
	Type                  EntryType   `json:"type"`
	Amount                int64       `json:"amount"` // in kobo, always positive
	Description           string      `json:"description"`
	Status                string      `json:"status"`
	BalanceBefore         int64       `json:"balance_before"`
	BalanceAfter          int64       `json:"balance_after"`
	ExternalReference     string      `json:"external_reference"`
	ServiceType           ServiceType `json:"service_type"`
	OriginalTransactionID *uuid.UUID  `json:"original_transaction_id,omitempty"`
	ProviderMetadata      []byte      `json:"provider_metadata,omitempty"` // opaque JSON blob
	CreatedAt             time.Time   `json:"created_at"`
}

// LedgerListOptions controls pagination for ledger history reads.
type LedgerListOptions struct {
	Limit  int
	Offset int
}

// Outcome is the small stable set of result kinds surfaced to presentation
// layers instead of raw provider error text.
type Outcome string

const (
	OutcomeSuccess                 Outcome = "success"
	OutcomeDuplicate               Outcome = "duplicate"
	OutcomeInsufficientBalance     Outcome = "insufficient_balance"
	OutcomeServiceUnavailable      Outcome = "service_unavailable"
	OutcomeProviderFailureRefunded Outcome = "provider_failure_refunded"
)

// PurchaseParams carries everything the purchase pipeline needs for one
// provider-backed buy. ProviderParams is passed through to the gateway opaquely
// (phone number, meter number, smartcard number, plan codes and so on).
type PurchaseParams struct {
	UserID            uuid.UUID         `json:"user_id"`
	ServiceType       ServiceType       `json:"service_type"`
	Amount            int64             `json:"amount"` // in kobo
	Description       string            `json:"description"`
	ExternalReference string            `json:"external_reference"`
	ProviderParams    map[string]string `json:"provider_params"`
}

// PurchaseResult is returned to the caller after a purchase attempt settles.
type PurchaseResult struct {
	Outcome      Outcome      `json:"outcome"`
	Message      string       `json:"message"`
	Entry        *LedgerEntry `json:"entry,omitempty"`
	RefundEntry  *LedgerEntry `json:"refund_entry,omitempty"`
	ProviderTxID string       `json:"provider_tx_id,omitempty"`
}

// IsPurchasableService reports whether a service type goes through the
// provider gateway purchase pipeline.
func IsPurchasableService(st ServiceType) bool {
	switch st {
	case ServiceAirtime, ServiceData, ServiceTV, ServiceElectricity,
		ServiceBetting, ServiceExamCard, ServiceBulkSMS:
		return true
	}
	return false
}
