/**
 * @description
 * The debit/credit engine. Credit, Debit, Refund and Adjust are the only four
 * entry points into the ledger store's atomic primitive; every money-movement
 * flow in this service (funding, purchase, withdrawal, admin) is built from
 * them. Input validation happens here, before any store access, so invalid
 * requests never acquire an idempotency claim.
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
)

var (
	ErrInvalidAmount    = errors.New("amount must be a positive integer in kobo")
	ErrMissingReference = errors.New("external reference is required")
	ErrMissingNote      = errors.New("an audit note is required for admin adjustments")
	ErrInvalidOTP       = errors.New("invalid or expired otp")
	ErrOTPLocked        = errors.New("too many otp attempts")
	ErrOTPThrottled     = errors.New("otp recently issued; wait before requesting another")
)

// MutationResult is returned by the engine's four operations.
type MutationResult struct {
	Entry     *domain.LedgerEntry
	Duplicate bool
}

// Outcome maps the result onto the stable outcome vocabulary.
func (r *MutationResult) Outcome() domain.Outcome {
	if r.Duplicate {
		return domain.OutcomeDuplicate
	}
	return domain.OutcomeSuccess
}

type mutationParams struct {
	userID      uuid.UUID
	amount      int64
	description string
	reference   string
	serviceType domain.ServiceType
	status      string
	originalTx  *uuid.UUID
	metadata    []byte
}

func (s *Service) applyMutation(ctx context.Context, entryType domain.EntryType, p mutationParams) (*MutationResult, error) {
	if p.amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(p.reference) == "" {
		return nil, ErrMissingReference
	}
	status := p.status
	if status == "" {
		status = domain.EntryStatusSuccess
	}

	entry, duplicate, err := s.repo.ApplyLedgerEntry(ctx, store.ApplyEntryParams{
		UserID:                p.userID,
		Type:                  entryType,
		Amount:                p.amount,
		Description:           p.description,
		Status:                status,
		ExternalReference:     strings.TrimSpace(p.reference),
		ServiceType:           p.serviceType,
		OriginalTransactionID: p.originalTx,
		ProviderMetadata:      p.metadata,
	})
	if err != nil {
		return nil, err
	}
	if duplicate {
		log.Printf("level=info component=ledger msg=\"duplicate reference; returning prior outcome\" user_id=%s reference=%s", p.userID, p.reference)
	}
	return &MutationResult{Entry: entry, Duplicate: duplicate}, nil
}

// Credit adds funds to a user's wallet. A repeated call with the same
// reference returns the first call's entry and changes nothing.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount int64, description, reference string, serviceType domain.ServiceType) (*MutationResult, error) {
	result, err := s.applyMutation(ctx, domain.EntryTypeCredit, mutationParams{
		userID:      userID,
		amount:      amount,
		description: description,
		reference:   reference,
		serviceType: serviceType,
	})
	if err != nil {
		return nil, err
	}
	if !result.Duplicate {
		s.notify(ctx, userID, domain.NotifyCredited, amount, description)
	}
	return result, nil
}

// Debit removes funds, requiring balance >= amount inside the same atomic unit
// as the write. An insufficient balance surfaces as store.ErrInsufficientFunds
// with no partial deduction and no ledger entry.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount int64, description, reference string, serviceType domain.ServiceType) (*MutationResult, error) {
	result, err := s.applyMutation(ctx, domain.EntryTypeDebit, mutationParams{
		userID:      userID,
		amount:      amount,
		description: description,
		reference:   reference,
		serviceType: serviceType,
	})
	if err != nil {
		return nil, err
	}
	if !result.Duplicate {
		s.notify(ctx, userID, domain.NotifyDebited, amount, description)
	}
	return result, nil
}

// debitPending is the variant used by provider-backed flows: the entry is
// written pending and settled to success/failed after the external call.
func (s *Service) debitPending(ctx context.Context, userID uuid.UUID, amount int64, description, reference string, serviceType domain.ServiceType) (*MutationResult, error) {
	return s.applyMutation(ctx, domain.EntryTypeDebit, mutationParams{
		userID:      userID,
		amount:      amount,
		description: description,
		reference:   reference,
		serviceType: serviceType,
		status:      domain.EntryStatusPending,
	})
}

// RefundReference derives the idempotency key of the compensating credit for
// a given original reference, so a refund is itself at-most-once even when
// the failure-handling path is retried.
func RefundReference(originalReference string) string {
	return "refund:" + originalReference
}

// Refund restores a previously debited amount after a provider failure. The
// compensating entry references the original for audit traceability.
func (s *Service) Refund(ctx context.Context, userID uuid.UUID, amount int64, description, originalReference string, originalTransactionID uuid.UUID) (*MutationResult, error) {
	result, err := s.applyMutation(ctx, domain.EntryTypeCredit, mutationParams{
		userID:      userID,
		amount:      amount,
		description: description,
		reference:   RefundReference(originalReference),
		serviceType: domain.ServiceRefund,
		originalTx:  &originalTransactionID,
	})
	if err != nil {
		return nil, err
	}
	if !result.Duplicate {
		s.notify(ctx, userID, domain.NotifyRefunded, amount, description)
	}
	return result, nil
}

// Adjust is the privileged direct credit/debit used by the admin interface.
// The audit note is mandatory and stored on the resulting entry.
func (s *Service) Adjust(ctx context.Context, userID uuid.UUID, amount int64, entryType domain.EntryType, note string) (*MutationResult, error) {
	if strings.TrimSpace(note) == "" {
		return nil, ErrMissingNote
	}
	if entryType != domain.EntryTypeCredit && entryType != domain.EntryTypeDebit {
		return nil, fmt.Errorf("invalid adjustment type %q", entryType)
	}

	reference := fmt.Sprintf("adj:%s", uuid.New())
	result, err := s.applyMutation(ctx, entryType, mutationParams{
		userID:      userID,
		amount:      amount,
		description: note,
		reference:   reference,
		serviceType: domain.ServiceAdminAdjustment,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=ledger msg=\"admin adjustment applied\" user_id=%s type=%s amount=%d reference=%s", userID, entryType, amount, reference)
	kind := domain.NotifyCredited
	if entryType == domain.EntryTypeDebit {
		kind = domain.NotifyDebited
	}
	s.notify(ctx, userID, kind, amount, note)
	return result, nil
}
