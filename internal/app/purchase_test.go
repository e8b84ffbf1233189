package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/gateway"
)

func purchaseParams(userID uuid.UUID, reference string) domain.PurchaseParams {
	return domain.PurchaseParams{
		UserID:            userID,
		ServiceType:       domain.ServiceAirtime,
		Amount:            5000,
		Description:       "Airtime top-up",
		ExternalReference: reference,
		ProviderParams:    map[string]string{"phone": "08030000000"},
	}
}

func TestPurchase_Success(t *testing.T) {
	repo := newMemoryRepo()
	svc, gw, _ := newTestService(repo)
	userID := uuid.New()
	repo.seedAccount(userID, 20000)

	result, err := svc.Purchase(context.Background(), purchaseParams(userID, "buy-ok"))
	if err != nil {
		t.Fatalf("Purchase returned error: %v", err)
	}
	if result.Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected success outcome, got %s", result.Outcome)
	}
	if result.Entry.Status != domain.EntryStatusSuccess {
		t.Fatalf("expected settled entry, got status %s", result.Entry.Status)
	}
	if got := repo.balance(userID); got != 15000 {
		t.Fatalf("expected balance 15000, got %d", got)
	}
	if gw.purchaseCalls != 1 {
		t.Fatalf("expected one provider purchase call, got %d", gw.purchaseCalls)
	}
}

func TestPurchase_PreflightFailureNeverDebits(t *testing.T) {
	repo := newMemoryRepo()
	svc, gw, _ := newTestService(repo)
	userID := uuid.New()
	repo.seedAccount(userID, 20000)

	gw.preflight = &gateway.PreflightResult{
		Eligible: false,
		Code:     gateway.ReasonServiceUnavailable,
		Reason:   "provider float exhausted",
	}

	result, err := svc.Purchase(context.Background(), purchaseParams(userID, "buy-preflight"))
	if err != nil {
		t.Fatalf("Purchase returned error: %v", err)
	}
	if result.Outcome != domain.OutcomeServiceUnavailable {
		t.Fatalf("expected service_unavailable outcome, got %s", result.Outcome)
	}
	if got := repo.balance(userID); got != 20000 {
		t.Fatalf("ineligible purchase must not debit, got balance %d", got)
	}
	if n := repo.entryCount(userID); n != 0 {
		t.Fatalf("ineligible purchase must not write entries, got %d", n)
	}
	if gw.purchaseCalls != 0 {
		t.Fatal("provider purchase must not be called after a failed preflight")
	}
}

func TestPurchase_PreflightTransportErrorMapsToServiceUnavailable(t *testing.T) {
	repo := newMemoryRepo()
	svc, gw, _ := newTestService(repo)
	userID := uuid.New()
	repo.seedAccount(userID, 20000)

	gw.preflightErr = errProviderDown

	result, err := svc.Purchase(context.Background(), purchaseParams(userID, "buy-transport"))
	if err != nil {
		t.Fatalf("Purchase returned error: %v", err)
	}
	if result.Outcome != domain.OutcomeServiceUnavailable {
		t.Fatalf("expected service_unavailable outcome, got %s", result.Outcome)
	}
	if got := repo.balance(userID); got != 20000 {
		t.Fatalf("transport error before debit must not touch balance, got %d", got)
	}
}

func TestPurchase_InsufficientBalanceOutcome(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	userID := uuid.New()
	repo.seedAccount(userID, 1000)

	result, err := svc.Purchase(context.Background(), purchaseParams(userID, "buy-poor"))
	if err != nil {
		t.Fatalf("Purchase returned error: %v", err)
	}
	if result.Outcome != domain.OutcomeInsufficientBalance {
		t.Fatalf("expected insufficient_balance outcome, got %s", result.Outcome)
	}
	if got := repo.balance(userID); got != 1000 {
		t.Fatalf("balance must be unchanged, got %d", got)
	}
}

func TestPurchase_ProviderFailureRefundsExactlyOnce(t *testing.T) {
	repo := newMemoryRepo()
	svc, gw, _ := newTestService(repo)
	userID := uuid.New()
	repo.seedAccount(userID, 20000)

	gw.outcome = &gateway.PurchaseOutcome{Success: false, Message: "transaction failed at provider"}

	result, err := svc.Purchase(context.Background(), purchaseParams(userID, "buy-fail"))
	if err != nil {
		t.Fatalf("Purchase returned error: %v", err)
	}
	if result.Outcome != domain.OutcomeProviderFailureRefunded {
		t.Fatalf("expected provider_failure_refunded outcome, got %s", result.Outcome)
	}
	if result.Entry.Status != domain.EntryStatusFailed {
		t.Fatalf("expected failed debit entry, got status %s", result.Entry.Status)
	}
	if result.RefundEntry == nil {
		t.Fatal("expected a refund entry")
	}
	if result.RefundEntry.OriginalTransactionID == nil || *result.RefundEntry.OriginalTransactionID != result.Entry.ID {
		t.Fatal("refund entry must reference the failed debit entry")
	}
	if got := repo.balance(userID); got != 20000 {
		t.Fatalf("net balance change of a refunded failure must be zero, got %d", got)
	}
	if n := repo.entryCount(userID); n != 2 {
		t.Fatalf("expected debit plus refund, got %d entries", n)
	}
}

func TestPurchase_DuplicateReferenceShortCircuitsProvider(t *testing.T) {
	repo := newMemoryRepo()
	svc, gw, _ := newTestService(repo)
	userID := uuid.New()
	repo.seedAccount(userID, 20000)

	if _, err := svc.Purchase(context.Background(), purchaseParams(userID, "buy-once")); err != nil {
		t.Fatalf("first purchase returned error: %v", err)
	}

	result, err := svc.Purchase(context.Background(), purchaseParams(userID, "buy-once"))
	if err != nil {
		t.Fatalf("replayed purchase returned error: %v", err)
	}
	if result.Outcome != domain.OutcomeDuplicate {
		t.Fatalf("expected duplicate outcome, got %s", result.Outcome)
	}
	if gw.purchaseCalls != 1 {
		t.Fatalf("replayed reference must not reach the provider again, got %d calls", gw.purchaseCalls)
	}
	if got := repo.balance(userID); got != 15000 {
		t.Fatalf("balance must reflect a single debit, got %d", got)
	}
}

func TestPurchase_RejectsUnknownServiceType(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	userID := uuid.New()
	repo.seedAccount(userID, 20000)

	params := purchaseParams(userID, "buy-bad")
	params.ServiceType = domain.ServiceFunding

	_, err := svc.Purchase(context.Background(), params)
	if !errors.Is(err, ErrUnknownServiceType) {
		t.Fatalf("expected ErrUnknownServiceType, got %v", err)
	}
}
