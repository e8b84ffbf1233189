/**
 * @description
 * The withdrawal orchestrator: OTP verification, recipient resolution, the
 * single up-front debit of amount+fee, payout initiation, and idempotent
 * terminal resolution. OTP verification and bank account resolution are pure
 * validation with no ledger side effects; the wallet is only touched once
 * both have succeeded.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/store"
	"github.com/padipay/wallet-service/pkg/payoutclient"
)

var (
	ErrOTPNotConfigured     = errors.New("otp verification is not configured")
	ErrBankDetailsInvalid   = errors.New("bank details could not be resolved")
	ErrWithdrawalNotUpdated = errors.New("withdrawal request already resolved")
)

// withdrawalReference derives the ledger idempotency key for a request's
// debit, so a retried submission of the same request id cannot debit twice.
func withdrawalReference(requestID uuid.UUID) string {
	return "wd:" + requestID.String()
}

// RequestWithdrawalOTP issues a fresh OTP for a user and dispatches it via the
// notification exchange. Rate limiting lives inside the OTP store.
func (s *Service) RequestWithdrawalOTP(ctx context.Context, userID uuid.UUID) error {
	if s.otpStore == nil {
		return ErrOTPNotConfigured
	}
	// The account must exist before we invite a withdrawal attempt.
	if _, err := s.repo.FindAccountByUserID(ctx, userID); err != nil {
		return err
	}

	code, err := s.otpStore.Issue(ctx, userID)
	if err != nil {
		return fmt.Errorf("issue otp: %w", err)
	}
	s.notify(ctx, userID, domain.NotifyWithdrawalOTP, 0, code)
	return nil
}

// ResolveBankAccount performs a name enquiry so the caller can confirm the
// recipient before submission. No ledger side effects.
func (s *Service) ResolveBankAccount(ctx context.Context, bankCode, accountNumber string) (string, error) {
	resp, err := s.payoutClient.ResolveAccount(ctx, payoutclient.ResolveAccountRequest{
		BankCode:      bankCode,
		AccountNumber: accountNumber,
	})
	if err != nil {
		log.Printf("level=warn component=withdrawal msg=\"account resolution failed\" bank_code=%s err=%v", bankCode, err)
		return "", ErrBankDetailsInvalid
	}
	return resp.Data.AccountName, nil
}

// SubmitWithdrawal runs the submission leg: verify OTP, resolve the recipient,
// debit amount+fee exactly once, create the request, and initiate the payout.
func (s *Service) SubmitWithdrawal(ctx context.Context, userID uuid.UUID, req domain.SubmitWithdrawalRequest) (*domain.WithdrawalRequest, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(req.BankCode) == "" || strings.TrimSpace(req.AccountNumber) == "" {
		return nil, ErrBankDetailsInvalid
	}
	if s.otpStore == nil {
		return nil, ErrOTPNotConfigured
	}
	if err := s.otpStore.Verify(ctx, userID, req.OTP); err != nil {
		return nil, err
	}

	accountName, err := s.ResolveBankAccount(ctx, req.BankCode, req.AccountNumber)
	if err != nil {
		return nil, err
	}

	request := &domain.WithdrawalRequest{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      req.Amount,
		Fee:         s.withdrawalFee,
		TotalAmount: req.Amount + s.withdrawalFee,
		BankDetails: domain.BankDetails{
			BankCode:      req.BankCode,
			AccountNumber: req.AccountNumber,
			AccountName:   accountName,
		},
		Status: domain.WithdrawalStatusPending,
	}

	// Debit first: amount+fee, pending until the payout settles. The request
	// id keys the idempotency claim.
	debit, err := s.debitPending(ctx, userID, request.TotalAmount,
		fmt.Sprintf("Withdrawal to %s (%s)", accountName, req.AccountNumber),
		withdrawalReference(request.ID), domain.ServiceWithdrawal)
	if err != nil {
		return nil, err
	}
	request.DebitEntryID = debit.Entry.ID
	s.notify(ctx, userID, domain.NotifyDebited, request.TotalAmount, "Withdrawal submitted")

	if err := s.repo.CreateWithdrawalRequest(ctx, request); err != nil {
		// The debit committed but the request row did not: refund immediately.
		log.Printf("level=error component=withdrawal msg=\"request create failed after debit; refunding\" user_id=%s request_id=%s err=%v", userID, request.ID, err)
		if _, refundErr := s.Refund(ctx, userID, request.TotalAmount, "Withdrawal reversal", withdrawalReference(request.ID), debit.Entry.ID); refundErr != nil {
			log.Printf("level=error component=withdrawal msg=\"refund after create failure did not commit\" user_id=%s request_id=%s amount=%d err=%v",
				userID, request.ID, request.TotalAmount, refundErr)
		}
		return nil, fmt.Errorf("create withdrawal request: %w", err)
	}

	// Initiate the payout. An initiation error resolves the request failed,
	// which carries the single refund obligation.
	transfer, err := s.payoutClient.InitiateTransfer(ctx, payoutclient.InitiateTransferRequest{
		Reference:     withdrawalReference(request.ID),
		Amount:        req.Amount,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		AccountName:   accountName,
		Narration:     "Wallet withdrawal",
	})
	if err != nil {
		log.Printf("level=warn component=withdrawal msg=\"payout initiation failed\" user_id=%s request_id=%s err=%v", userID, request.ID, err)
		reason := "payout initiation failed"
		resolved, resolveErr := s.ResolveWithdrawal(ctx, request.ID, domain.WithdrawalStatusFailed, &reason)
		if resolveErr != nil {
			return nil, resolveErr
		}
		return resolved, nil
	}

	if err := s.repo.MarkWithdrawalProcessing(ctx, request.ID, transfer.Data.Reference); err != nil {
		log.Printf("level=error component=withdrawal msg=\"processing transition failed\" request_id=%s err=%v", request.ID, err)
	} else {
		request.Status = domain.WithdrawalStatusProcessing
		request.PayoutReference = transfer.Data.Reference
	}

	return request, nil
}

// ResolveWithdrawal moves a request to a terminal status. Re-invoking it on an
// already-terminal request is a no-op returning the current row: the refund on
// failure happens exactly once, guarded both by the status transition and by
// the refund's own idempotency key.
func (s *Service) ResolveWithdrawal(ctx context.Context, requestID uuid.UUID, status string, failureReason *string) (*domain.WithdrawalRequest, error) {
	if status != domain.WithdrawalStatusCompleted && status != domain.WithdrawalStatusFailed {
		return nil, fmt.Errorf("invalid terminal status %q", status)
	}

	request, transitioned, err := s.repo.TransitionWithdrawalTerminal(ctx, requestID, status, failureReason)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		log.Printf("level=info component=withdrawal msg=\"request already terminal; resolve is a no-op\" request_id=%s status=%s", requestID, request.Status)
		if request.Status == domain.WithdrawalStatusFailed {
			// The settle and the refund are idempotent under the request's
			// deterministic reference, so replaying them here completes a
			// resolve that died between the terminal transition and the
			// refund commit. When both already landed this changes nothing.
			if err := s.repo.SettleLedgerEntry(ctx, request.DebitEntryID, domain.EntryStatusFailed, nil); err != nil {
				log.Printf("level=error component=withdrawal msg=\"debit settle replay failed\" entry_id=%s err=%v", request.DebitEntryID, err)
			}
			if _, err := s.Refund(ctx, request.UserID, request.TotalAmount, "Withdrawal failed; funds returned",
				withdrawalReference(request.ID), request.DebitEntryID); err != nil {
				return nil, fmt.Errorf("withdrawal refund replay errored: %w", err)
			}
		}
		return request, nil
	}

	switch status {
	case domain.WithdrawalStatusCompleted:
		if err := s.repo.SettleLedgerEntry(ctx, request.DebitEntryID, domain.EntryStatusSuccess, nil); err != nil {
			log.Printf("level=error component=withdrawal msg=\"debit settle failed\" entry_id=%s err=%v", request.DebitEntryID, err)
		}
		s.notify(ctx, request.UserID, domain.NotifyWithdrawalStatus, request.Amount, "Withdrawal completed")
	case domain.WithdrawalStatusFailed:
		if err := s.repo.SettleLedgerEntry(ctx, request.DebitEntryID, domain.EntryStatusFailed, nil); err != nil {
			log.Printf("level=error component=withdrawal msg=\"debit settle failed\" entry_id=%s err=%v", request.DebitEntryID, err)
		}
		if _, err := s.Refund(ctx, request.UserID, request.TotalAmount, "Withdrawal failed; funds returned",
			withdrawalReference(request.ID), request.DebitEntryID); err != nil {
			log.Printf("level=error component=withdrawal msg=\"withdrawal refund did not commit\" user_id=%s request_id=%s amount=%d err=%v",
				request.UserID, request.ID, request.TotalAmount, err)
			return nil, fmt.Errorf("withdrawal failed and refund errored: %w", err)
		}
		s.notify(ctx, request.UserID, domain.NotifyWithdrawalStatus, request.Amount, "Withdrawal failed; wallet refunded")
	}

	return request, nil
}

// HandlePayoutEvent applies a payout processor webhook to the owning request.
// Unknown references and replayed terminal events are acknowledged without
// effect so the processor stops retrying.
func (s *Service) HandlePayoutEvent(ctx context.Context, event domain.PayoutStatusEvent) error {
	request, err := s.repo.FindWithdrawalByPayoutReference(ctx, event.PayoutReference)
	if err != nil {
		if errors.Is(err, store.ErrWithdrawalNotFound) {
			log.Printf("level=warn component=withdrawal msg=\"payout event for unknown reference\" payout_reference=%s", event.PayoutReference)
			return nil
		}
		return err
	}

	switch event.Status {
	case payoutclient.TransferStatusSuccess:
		_, err = s.ResolveWithdrawal(ctx, request.ID, domain.WithdrawalStatusCompleted, nil)
	case payoutclient.TransferStatusFailed:
		reason := event.Reason
		if reason == "" {
			reason = "payout reported failed"
		}
		_, err = s.ResolveWithdrawal(ctx, request.ID, domain.WithdrawalStatusFailed, &reason)
	default:
		// Non-terminal statuses carry no ledger obligation.
		return nil
	}
	return err
}
