/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface
 * for accounts and ledger reads. The atomic balance-mutation primitive lives in
 * postgres_ledger.go and the withdrawal queries in postgres_withdrawals.go.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/padipay/wallet-service/internal/domain"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountArchived    = errors.New("account archived")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrEntryNotFound      = errors.New("ledger entry not found")
	ErrEntryNotPending    = errors.New("ledger entry is not pending")
	ErrWithdrawalNotFound = errors.New("withdrawal request not found")
	// ErrStoreConflict is surfaced after bounded retries on transient
	// serialization/deadlock failures; callers may retry the whole operation.
	ErrStoreConflict = errors.New("store conflict")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateAccount provisions a zero-balance wallet for a user. Provisioning is
// idempotent: a repeated call for the same user reports created=false.
func (r *PostgresRepository) CreateAccount(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `
		INSERT INTO accounts (user_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING
	`
	result, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// FindAccountByUserID retrieves a user's wallet account.
func (r *PostgresRepository) FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT user_id, balance, archived, created_at, last_updated FROM accounts WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&account.UserID, &account.Balance, &account.Archived, &account.CreatedAt, &account.LastUpdated,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindLedgerEntryByID retrieves a single ledger entry.
func (r *PostgresRepository) FindLedgerEntryByID(ctx context.Context, entryID uuid.UUID) (*domain.LedgerEntry, error) {
	query := ledgerEntrySelect + ` WHERE id = $1`
	return r.scanLedgerEntryRow(r.db.QueryRow(ctx, query, entryID))
}

// FindLedgerEntryByReference retrieves the entry written under an idempotency key.
func (r *PostgresRepository) FindLedgerEntryByReference(ctx context.Context, externalReference string) (*domain.LedgerEntry, error) {
	query := ledgerEntrySelect + ` WHERE external_reference = $1`
	return r.scanLedgerEntryRow(r.db.QueryRow(ctx, query, externalReference))
}

// MaxLedgerPageSize caps one page of ledger history. The HTTP layer accepts
// limits up to the same bound.
const MaxLedgerPageSize = 200

// clampLedgerPage normalizes paging options to the bounds a query will serve.
func clampLedgerPage(opts domain.LedgerListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxLedgerPageSize {
		limit = MaxLedgerPageSize
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListLedgerEntriesByUserID retrieves a user's transaction history, newest first.
func (r *PostgresRepository) ListLedgerEntriesByUserID(ctx context.Context, userID uuid.UUID, opts domain.LedgerListOptions) ([]domain.LedgerEntry, error) {
	limit, offset := clampLedgerPage(opts)

	query := ledgerEntrySelect + `
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0, limit)
	for rows.Next() {
		entry, err := r.scanLedgerEntryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

const ledgerEntrySelect = `
	SELECT id, user_id, type, amount, description, status, balance_before, balance_after,
	       external_reference, service_type, original_transaction_id, provider_metadata, created_at
	FROM ledger_entries
`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanLedgerEntryRow(row rowScanner) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Type,
		&entry.Amount,
		&entry.Description,
		&entry.Status,
		&entry.BalanceBefore,
		&entry.BalanceAfter,
		&entry.ExternalReference,
		&entry.ServiceType,
		&entry.OriginalTransactionID,
		&entry.ProviderMetadata,
		&entry.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}
