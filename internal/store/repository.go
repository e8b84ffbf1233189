/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the wallet-service. By defining an interface,
 * we decouple the ledger engine from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation and handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/domain"
)

// ApplyEntryParams describes one atomic balance mutation plus the ledger entry
// recording it. ExternalReference is the idempotency key and is claimed in the
// same database transaction as the mutation it guards.
type ApplyEntryParams struct {
	UserID                uuid.UUID
	Type                  domain.EntryType
	Amount                int64 // in kobo, must be positive
	Description           string
	Status                string // EntryStatusSuccess or EntryStatusPending
	ExternalReference     string
	ServiceType           domain.ServiceType
	OriginalTransactionID *uuid.UUID
	ProviderMetadata      []byte
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Account methods
	CreateAccount(ctx context.Context, userID uuid.UUID) (created bool, err error)
	FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)

	// Ledger methods. ApplyLedgerEntry is the sole path by which a balance
	// changes: it claims the idempotency key, enforces the debit precondition,
	// updates the balance, and appends the entry, all in one transaction.
	// When the reference was already claimed it returns the previously written
	// entry with duplicate=true and performs no mutation.
	ApplyLedgerEntry(ctx context.Context, params ApplyEntryParams) (entry *domain.LedgerEntry, duplicate bool, err error)
	SettleLedgerEntry(ctx context.Context, entryID uuid.UUID, status string, providerMetadata []byte) error
	FindLedgerEntryByID(ctx context.Context, entryID uuid.UUID) (*domain.LedgerEntry, error)
	FindLedgerEntryByReference(ctx context.Context, externalReference string) (*domain.LedgerEntry, error)
	ListLedgerEntriesByUserID(ctx context.Context, userID uuid.UUID, opts domain.LedgerListOptions) ([]domain.LedgerEntry, error)

	// Withdrawal methods
	CreateWithdrawalRequest(ctx context.Context, req *domain.WithdrawalRequest) error
	FindWithdrawalByID(ctx context.Context, requestID uuid.UUID) (*domain.WithdrawalRequest, error)
	FindWithdrawalByPayoutReference(ctx context.Context, payoutReference string) (*domain.WithdrawalRequest, error)
	MarkWithdrawalProcessing(ctx context.Context, requestID uuid.UUID, payoutReference string) error
	// TransitionWithdrawalTerminal moves a pending/processing request to a
	// terminal status. It returns transitioned=false (and the current row)
	// when the request is already terminal, so re-resolution is a no-op.
	TransitionWithdrawalTerminal(ctx context.Context, requestID uuid.UUID, status string, failureReason *string) (req *domain.WithdrawalRequest, transitioned bool, err error)
	ListStaleProcessingWithdrawals(ctx context.Context, olderThan time.Time, limit int) ([]domain.WithdrawalRequest, error)
}
