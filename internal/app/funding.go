/**
 * @description
 * Funding event handling. Inbound funding webhooks credit the wallet keyed on
 * the provider's transaction reference, so replayed deliveries collapse onto
 * the original ledger entry.
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

// HandleFundingEvent credits the user's wallet for an inbound deposit. The
// provider reference is the idempotency key: a replayed event returns the
// prior outcome without a second credit.
func (s *Service) HandleFundingEvent(ctx context.Context, event domain.FundingEvent) (*MutationResult, error) {
	if event.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(event.Reference) == "" {
		return nil, ErrMissingReference
	}

	result, err := s.Credit(ctx, event.UserID, event.Amount, "Wallet funding", event.Reference, domain.ServiceFunding)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			log.Printf("level=warn component=funding msg=\"funding event for unknown account\" user_id=%s reference=%s", event.UserID, event.Reference)
		}
		return nil, fmt.Errorf("apply funding credit: %w", err)
	}

	if result.Duplicate {
		log.Printf("level=info component=funding msg=\"replayed funding event; credit already applied\" reference=%s", event.Reference)
	}

	// Credit publishes the credited notification itself on a fresh entry.
	return result, nil
}
