/**
 * @description
 * The atomic balance-mutation primitive. Every balance change in the system
 * flows through ApplyLedgerEntry, which performs the idempotency-key claim,
 * the row-locked balance read-modify-write, and the ledger entry append inside
 * a single database transaction. Nothing else in this codebase writes
 * `accounts.balance`.
 *
 * Concurrency: the SELECT ... FOR UPDATE on the account row linearizes all
 * mutations for one user; two concurrent debits can never both observe the
 * same pre-debit balance. The idempotency INSERT ... ON CONFLICT DO NOTHING
 * is claimed under the same transaction, so two deliveries of the same
 * external event race on the unique key inside the store, not in application
 * code.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/padipay/wallet-service/internal/domain"
)

// maxCommitAttempts bounds internal retries on transient commit contention.
const maxCommitAttempts = 3

func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure and deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// ApplyLedgerEntry commits one balance mutation and its ledger entry, or
// nothing at all. See Repository for the full contract.
func (r *PostgresRepository) ApplyLedgerEntry(ctx context.Context, params ApplyEntryParams) (*domain.LedgerEntry, bool, error) {
	if params.Amount <= 0 {
		return nil, false, fmt.Errorf("apply ledger entry: non-positive amount %d", params.Amount)
	}
	if params.ExternalReference == "" {
		return nil, false, errors.New("apply ledger entry: external reference is required")
	}

	var lastErr error
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		entry, duplicate, err := r.applyLedgerEntryOnce(ctx, params)
		if err == nil {
			return entry, duplicate, nil
		}
		if !isRetryableTxError(err) {
			return nil, false, err
		}
		lastErr = err
	}
	return nil, false, fmt.Errorf("%w: %v", ErrStoreConflict, lastErr)
}

func (r *PostgresRepository) applyLedgerEntryOnce(ctx context.Context, params ApplyEntryParams) (*domain.LedgerEntry, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	claimQuery := `
		INSERT INTO ledger_idempotency (external_reference)
		VALUES ($1)
		ON CONFLICT (external_reference) DO NOTHING
	`
	claimResult, err := tx.Exec(ctx, claimQuery, params.ExternalReference)
	if err != nil {
		return nil, false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if claimResult.RowsAffected() == 0 {
		// Duplicate delivery. The claim and its entry committed together, so
		// the prior entry must be visible; return it as the prior outcome.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			return nil, false, rollbackErr
		}
		prior, err := r.FindLedgerEntryByReference(ctx, params.ExternalReference)
		if err != nil {
			if errors.Is(err, ErrEntryNotFound) {
				return nil, false, fmt.Errorf("%w: claimed reference %q has no entry", ErrStoreConflict, params.ExternalReference)
			}
			return nil, false, err
		}
		return prior, true, nil
	}

	var (
		balance  int64
		archived bool
	)
	lockQuery := `SELECT balance, archived FROM accounts WHERE user_id = $1 FOR UPDATE`
	if err := tx.QueryRow(ctx, lockQuery, params.UserID).Scan(&balance, &archived); err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, ErrAccountNotFound
		}
		return nil, false, err
	}
	if archived {
		return nil, false, ErrAccountArchived
	}

	var newBalance int64
	switch params.Type {
	case domain.EntryTypeDebit:
		if balance < params.Amount {
			return nil, false, ErrInsufficientFunds
		}
		newBalance = balance - params.Amount
	case domain.EntryTypeCredit:
		newBalance = balance + params.Amount
	default:
		return nil, false, fmt.Errorf("apply ledger entry: unknown entry type %q", params.Type)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $1, last_updated = NOW() WHERE user_id = $2`,
		newBalance, params.UserID,
	); err != nil {
		return nil, false, err
	}

	entry := domain.LedgerEntry{
		ID:                    uuid.New(),
		UserID:                params.UserID,
		Type:                  params.Type,
		Amount:                params.Amount,
		Description:           params.Description,
		Status:                params.Status,
		BalanceBefore:         balance,
		BalanceAfter:          newBalance,
		ExternalReference:     params.ExternalReference,
		ServiceType:           params.ServiceType,
		OriginalTransactionID: params.OriginalTransactionID,
		ProviderMetadata:      params.ProviderMetadata,
	}
	insertQuery := `
		INSERT INTO ledger_entries (
			id, user_id, type, amount, description, status, balance_before, balance_after,
			external_reference, service_type, original_transaction_id, provider_metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`
	if err := tx.QueryRow(ctx, insertQuery,
		entry.ID,
		entry.UserID,
		entry.Type,
		entry.Amount,
		entry.Description,
		entry.Status,
		entry.BalanceBefore,
		entry.BalanceAfter,
		entry.ExternalReference,
		entry.ServiceType,
		entry.OriginalTransactionID,
		entry.ProviderMetadata,
	).Scan(&entry.CreatedAt); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return &entry, false, nil
}

// SettleLedgerEntry transitions a pending entry to success or failed. Entries
// are otherwise immutable; settling an entry that already carries the target
// status is a no-op so webhook replays stay harmless.
func (r *PostgresRepository) SettleLedgerEntry(ctx context.Context, entryID uuid.UUID, status string, providerMetadata []byte) error {
	if status != domain.EntryStatusSuccess && status != domain.EntryStatusFailed {
		return fmt.Errorf("settle ledger entry: invalid target status %q", status)
	}

	query := `
		UPDATE ledger_entries
		SET status = $2,
		    provider_metadata = COALESCE($3, provider_metadata)
		WHERE id = $1 AND status = $4
	`
	result, err := r.db.Exec(ctx, query, entryID, status, providerMetadata, domain.EntryStatusPending)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	entry, err := r.FindLedgerEntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.Status == status {
		return nil
	}
	return ErrEntryNotPending
}
