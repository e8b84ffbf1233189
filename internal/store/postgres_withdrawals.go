/**
 * @description
 * PostgreSQL queries for the withdrawal request lifecycle. Status transitions
 * use conditional UPDATE ... WHERE status guards so that admin resolution and
 * payout webhooks can race safely: whichever lands first wins, the rest
 * observe an already-terminal row and do nothing.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/padipay/wallet-service/internal/domain"
)

const withdrawalSelect = `
	SELECT id, user_id, amount, fee, total_amount, bank_code, account_number, account_name,
	       status, payout_reference, debit_entry_id, failure_reason, created_at, updated_at
	FROM withdrawal_requests
`

// CreateWithdrawalRequest inserts a new withdrawal request record.
func (r *PostgresRepository) CreateWithdrawalRequest(ctx context.Context, req *domain.WithdrawalRequest) error {
	query := `
		INSERT INTO withdrawal_requests (
			id, user_id, amount, fee, total_amount, bank_code, account_number, account_name,
			status, payout_reference, debit_entry_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		req.ID,
		req.UserID,
		req.Amount,
		req.Fee,
		req.TotalAmount,
		req.BankDetails.BankCode,
		req.BankDetails.AccountNumber,
		req.BankDetails.AccountName,
		req.Status,
		req.PayoutReference,
		req.DebitEntryID,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
}

// FindWithdrawalByID retrieves a single withdrawal request.
func (r *PostgresRepository) FindWithdrawalByID(ctx context.Context, requestID uuid.UUID) (*domain.WithdrawalRequest, error) {
	return r.scanWithdrawalRow(r.db.QueryRow(ctx, withdrawalSelect+` WHERE id = $1`, requestID))
}

// FindWithdrawalByPayoutReference resolves the request a payout webhook refers to.
func (r *PostgresRepository) FindWithdrawalByPayoutReference(ctx context.Context, payoutReference string) (*domain.WithdrawalRequest, error) {
	return r.scanWithdrawalRow(r.db.QueryRow(ctx, withdrawalSelect+` WHERE payout_reference = $1`, payoutReference))
}

// MarkWithdrawalProcessing records the payout reference once the external
// transfer has been initiated. Only a pending request can move to processing.
func (r *PostgresRepository) MarkWithdrawalProcessing(ctx context.Context, requestID uuid.UUID, payoutReference string) error {
	query := `
		UPDATE withdrawal_requests
		SET status = $2, payout_reference = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
	result, err := r.db.Exec(ctx, query, requestID, domain.WithdrawalStatusProcessing, payoutReference, domain.WithdrawalStatusPending)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrWithdrawalNotFound
	}
	return nil
}

// TransitionWithdrawalTerminal moves a request into completed or failed status.
func (r *PostgresRepository) TransitionWithdrawalTerminal(ctx context.Context, requestID uuid.UUID, status string, failureReason *string) (*domain.WithdrawalRequest, bool, error) {
	query := `
		UPDATE withdrawal_requests
		SET status = $2, failure_reason = COALESCE($3, failure_reason), updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)
		RETURNING id, user_id, amount, fee, total_amount, bank_code, account_number, account_name,
		          status, payout_reference, debit_entry_id, failure_reason, created_at, updated_at
	`
	req, err := r.scanWithdrawalRow(r.db.QueryRow(ctx, query,
		requestID, status, failureReason,
		domain.WithdrawalStatusPending, domain.WithdrawalStatusProcessing,
	))
	if err == nil {
		return req, true, nil
	}
	if err != ErrWithdrawalNotFound {
		return nil, false, err
	}

	// No row matched the guard: either unknown id or already terminal.
	current, findErr := r.FindWithdrawalByID(ctx, requestID)
	if findErr != nil {
		return nil, false, findErr
	}
	return current, false, nil
}

// ListStaleProcessingWithdrawals returns processing requests older than the
// given cutoff, for the reconciliation sweeper.
func (r *PostgresRepository) ListStaleProcessingWithdrawals(ctx context.Context, olderThan time.Time, limit int) ([]domain.WithdrawalRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	query := withdrawalSelect + `
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, domain.WithdrawalStatusProcessing, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.WithdrawalRequest
	for rows.Next() {
		req, err := r.scanWithdrawalRow(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func (r *PostgresRepository) scanWithdrawalRow(row rowScanner) (*domain.WithdrawalRequest, error) {
	var req domain.WithdrawalRequest
	err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.Amount,
		&req.Fee,
		&req.TotalAmount,
		&req.BankDetails.BankCode,
		&req.BankDetails.AccountNumber,
		&req.BankDetails.AccountName,
		&req.Status,
		&req.PayoutReference,
		&req.DebitEntryID,
		&req.FailureReason,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &req, nil
}
