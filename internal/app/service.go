/**
 * @description
 * This file contains the core Service for the wallet-service. The `Service`
 * struct orchestrates all money movement, coordinating between the ledger
 * repository, the provider gateways, the payout processor client, and the
 * message broker.
 *
 * Key features:
 * - Hosts the debit/credit engine (ledger.go), the provider-backed purchase
 *   pipeline (purchase.go), the withdrawal orchestrator (withdrawal.go) and
 *   the funding webhook path (funding.go).
 * - Publishes fire-and-forget notification events after ledger state settles.
 *
 * @dependencies
 * - context, log, time: Standard Go libraries.
 * - internal/domain, internal/store, internal/gateway: models, data access, providers.
 * - pkg/payoutclient, pkg/rabbitmq: external service communication.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/gateway"
	"github.com/padipay/wallet-service/internal/store"
	"github.com/padipay/wallet-service/pkg/payoutclient"
	"github.com/padipay/wallet-service/pkg/rabbitmq"
)

// PayoutInitiator is the slice of the payout processor client the service
// depends on, kept narrow so tests can stub it.
type PayoutInitiator interface {
	ResolveAccount(ctx context.Context, req payoutclient.ResolveAccountRequest) (*payoutclient.ResolveAccountResponse, error)
	InitiateTransfer(ctx context.Context, req payoutclient.InitiateTransferRequest) (*payoutclient.TransferResponse, error)
	GetTransferStatus(ctx context.Context, reference string) (*payoutclient.TransferResponse, error)
}

// Service provides the core business logic for the wallet ledger.
type Service struct {
	repo          store.Repository
	gateway       gateway.Gateway
	payoutClient  PayoutInitiator
	eventProducer rabbitmq.Publisher
	otpStore      OTPStore

	withdrawalFee int64 // in kobo
}

// NewService creates a new wallet service instance.
func NewService(repo store.Repository, gw gateway.Gateway, payout PayoutInitiator, producer rabbitmq.Publisher, withdrawalFeeKobo int64) *Service {
	return &Service{
		repo:          repo,
		gateway:       gw,
		payoutClient:  payout,
		eventProducer: producer,
		withdrawalFee: withdrawalFeeKobo,
	}
}

// SetOTPStore wires the redis-backed OTP store; without one, withdrawal
// submission is rejected at the OTP step.
func (s *Service) SetOTPStore(otp OTPStore) {
	s.otpStore = otp
}

// ProvisionAccount creates the zero-balance wallet for a newly registered user.
func (s *Service) ProvisionAccount(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.repo.CreateAccount(ctx, userID)
}

// GetBalance returns a user's wallet account.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	return s.repo.FindAccountByUserID(ctx, userID)
}

// ListLedger returns a user's transaction history.
func (s *Service) ListLedger(ctx context.Context, userID uuid.UUID, opts domain.LedgerListOptions) ([]domain.LedgerEntry, error) {
	return s.repo.ListLedgerEntriesByUserID(ctx, userID, opts)
}

// GetWithdrawal returns one withdrawal request.
func (s *Service) GetWithdrawal(ctx context.Context, requestID uuid.UUID) (*domain.WithdrawalRequest, error) {
	return s.repo.FindWithdrawalByID(ctx, requestID)
}

// notify publishes a notification event. Best effort: failures are logged and
// never propagate to the caller.
func (s *Service) notify(ctx context.Context, userID uuid.UUID, kind string, amount int64, description string) {
	if s.eventProducer == nil {
		return
	}
	event := domain.NotificationEvent{
		UserID:      userID,
		Kind:        kind,
		Amount:      amount,
		Description: description,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.eventProducer.PublishNotificationEvent(ctx, event); err != nil {
		log.Printf("level=warn component=service msg=\"notification publish failed\" user_id=%s kind=%s err=%v", userID, kind, err)
	}
}
