/**
 * @description
 * The provider-backed purchase pipeline for VTU services (airtime, data, TV,
 * electricity, betting, exam cards, bulk SMS).
 *
 * Ordering policy: pre-flight eligibility checks run before any wallet debit,
 * but the debit is applied before the provider's purchase call. The purchase
 * call is the only step with unbounded latency and partial-failure modes, so
 * every purchase pairs its debit with a deterministic refund-on-failure
 * obligation instead of holding funds in an ambiguous reserved state.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/store"
)

var ErrUnknownServiceType = errors.New("unknown purchasable service type")

// Purchase runs one VTU purchase end to end and classifies the outcome. The
// caller is never left debited without either a delivered good or a restored
// balance.
func (s *Service) Purchase(ctx context.Context, params domain.PurchaseParams) (*domain.PurchaseResult, error) {
	if !domain.IsPurchasableService(params.ServiceType) {
		return nil, ErrUnknownServiceType
	}
	if params.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(params.ExternalReference) == "" {
		return nil, ErrMissingReference
	}
	if params.Description == "" {
		params.Description = fmt.Sprintf("%s purchase", params.ServiceType)
	}

	// 1. Pre-flight: platform float and customer validation, before any debit.
	preflight, err := s.gateway.Preflight(ctx, params)
	if err != nil {
		log.Printf("level=warn component=purchase msg=\"preflight errored\" service=%s reference=%s err=%v", params.ServiceType, params.ExternalReference, err)
		return &domain.PurchaseResult{
			Outcome: domain.OutcomeServiceUnavailable,
			Message: "service temporarily unavailable",
		}, nil
	}
	if !preflight.Eligible {
		return &domain.PurchaseResult{
			Outcome: domain.OutcomeServiceUnavailable,
			Message: preflight.Reason,
		}, nil
	}

	// 2. Debit the wallet, pending settlement. The idempotency claim rides in
	// the same transaction, so a client retry of the same reference lands here
	// and returns the prior outcome instead of double-debiting.
	debit, err := s.debitPending(ctx, params.UserID, params.Amount, params.Description, params.ExternalReference, params.ServiceType)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			return &domain.PurchaseResult{
				Outcome: domain.OutcomeInsufficientBalance,
				Message: "insufficient wallet balance",
			}, nil
		}
		return nil, fmt.Errorf("debit wallet: %w", err)
	}
	if debit.Duplicate {
		return s.priorPurchaseResult(debit.Entry), nil
	}
	s.notify(ctx, params.UserID, domain.NotifyDebited, params.Amount, params.Description)

	// 3. Provider purchase. The gateway absorbs transport errors; outcome is
	// always success or failed, never an exception mid-flight.
	outcome := s.gateway.Purchase(ctx, params)
	if outcome.Success {
		if err := s.repo.SettleLedgerEntry(ctx, debit.Entry.ID, domain.EntryStatusSuccess, outcome.Raw); err != nil {
			log.Printf("level=error component=purchase msg=\"settle success failed\" entry_id=%s err=%v", debit.Entry.ID, err)
		}
		debit.Entry.Status = domain.EntryStatusSuccess
		return &domain.PurchaseResult{
			Outcome:      domain.OutcomeSuccess,
			Message:      outcome.Message,
			Entry:        debit.Entry,
			ProviderTxID: outcome.ProviderTxID,
		}, nil
	}

	// 4. Provider failure after a committed debit: settle the entry failed and
	// issue the compensating credit.
	if err := s.repo.SettleLedgerEntry(ctx, debit.Entry.ID, domain.EntryStatusFailed, outcome.Raw); err != nil {
		log.Printf("level=error component=purchase msg=\"settle failure failed\" entry_id=%s err=%v", debit.Entry.ID, err)
	}
	debit.Entry.Status = domain.EntryStatusFailed

	refund, err := s.Refund(ctx, params.UserID, params.Amount,
		fmt.Sprintf("Refund: %s", params.Description),
		params.ExternalReference, debit.Entry.ID)
	if err != nil {
		// Real money is now stuck; log with full context for manual audit.
		log.Printf("level=error component=purchase msg=\"refund after provider failure did not commit\" user_id=%s amount=%d reference=%s err=%v",
			params.UserID, params.Amount, params.ExternalReference, err)
		return nil, fmt.Errorf("provider purchase failed and refund errored: %w", err)
	}

	message := outcome.Message
	if message == "" {
		message = "provider purchase failed"
	}
	return &domain.PurchaseResult{
		Outcome:     domain.OutcomeProviderFailureRefunded,
		Message:     message,
		Entry:       debit.Entry,
		RefundEntry: refund.Entry,
	}, nil
}

// priorPurchaseResult reconstructs the result of an already-processed purchase
// for a duplicate delivery of the same reference.
func (s *Service) priorPurchaseResult(entry *domain.LedgerEntry) *domain.PurchaseResult {
	result := &domain.PurchaseResult{
		Outcome: domain.OutcomeDuplicate,
		Message: "request already processed",
		Entry:   entry,
	}
	return result
}
