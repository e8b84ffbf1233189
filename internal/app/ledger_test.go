package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/store"
)

func TestCredit_WritesConsistentEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	userID := uuid.New()
	repo.seedAccount(userID, 10000)

	result, err := svc.Credit(context.Background(), userID, 2500, "Wallet funding", "fund-1", domain.ServiceFunding)
	if err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}
	if result.Duplicate {
		t.Fatal("first credit must not be a duplicate")
	}
	entry := result.Entry
	if entry.BalanceBefore != 10000 || entry.BalanceAfter != 12500 {
		t.Fatalf("expected balances 10000 -> 12500, got %d -> %d", entry.BalanceBefore, entry.BalanceAfter)
	}
	if entry.BalanceAfter != entry.BalanceBefore+entry.Amount {
		t.Fatalf("credit entry not internally consistent: %d + %d != %d", entry.BalanceBefore, entry.Amount, entry.BalanceAfter)
	}
	if got := repo.balance(userID); got != 12500 {
		t.Fatalf("expected account balance 12500, got %d", got)
	}
}

func TestDebit_InsufficientBalanceLeavesNoTrace(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	userID := uuid.New()
	repo.seedAccount(userID, 1000)

	_, err := svc.Debit(context.Background(), userID, 5000, "Too much", "debit-1", domain.ServiceAirtime)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := repo.balance(userID); got != 1000 {
		t.Fatalf("failed debit must not change the balance, got %d", got)
	}
	if n := repo.entryCount(userID); n != 0 {
		t.Fatalf("failed debit must not write a ledger entry, got %d entries", n)
	}
}

func TestDebit_DuplicateReferenceReturnsPriorEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	userID := uuid.New()
	repo.seedAccount(userID, 10000)

	first, err := svc.Debit(context.Background(), userID, 3000, "Airtime", "ref-dup", domain.ServiceAirtime)
	if err != nil {
		t.Fatalf("first debit returned error: %v", err)
	}

	second, err := svc.Debit(context.Background(), userID, 3000, "Airtime", "ref-dup", domain.ServiceAirtime)
	if err != nil {
		t.Fatalf("second debit returned error: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("second call with the same reference must report duplicate")
	}
	if second.Outcome() != domain.OutcomeDuplicate {
		t.Fatalf("expected duplicate outcome, got %s", second.Outcome())
	}
	if second.Entry.ID != first.Entry.ID {
		t.Fatal("duplicate must return the originally written entry")
	}
	if got := repo.balance(userID); got != 7000 {
		t.Fatalf("balance must be debited exactly once, got %d", got)
	}
	if n := repo.entryCount(userID); n != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", n)
	}
}

func TestDebit_ValidationRejectsBeforeStoreAccess(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	userID := uuid.New()
	repo.seedAccount(userID, 10000)

	tests := []struct {
		name      string
		amount    int64
		reference string
		wantErr   error
	}{
		{name: "zero amount", amount: 0, reference: "r1", wantErr: ErrInvalidAmount},
		{name: "negative amount", amount: -500, reference: "r2", wantErr: ErrInvalidAmount},
		{name: "blank reference", amount: 500, reference: "   ", wantErr: ErrMissingReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Debit(context.Background(), userID, tt.amount, "test", tt.reference, domain.ServiceAirtime)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
	if n := repo.entryCount(userID); n != 0 {
		t.Fatalf("rejected inputs must not write entries, got %d", n)
	}
}

func TestDebit_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	userID := uuid.New()

	const balance = 10000
	const amount = 1500
	const attempts = 20
	repo.seedAccount(userID, balance)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Debit(context.Background(), userID, amount,
				"concurrent debit", uuid.New().String(), domain.ServiceAirtime)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrInsufficientFunds):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	wantSucceeded := balance / amount
	if succeeded != wantSucceeded {
		t.Fatalf("expected exactly %d debits to succeed, got %d", wantSucceeded, succeeded)
	}
	wantBalance := int64(balance - wantSucceeded*amount)
	if got := repo.balance(userID); got != wantBalance {
		t.Fatalf("expected final balance %d, got %d", wantBalance, got)
	}
}

func TestRefund_IsIdempotentPerOriginalReference(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	userID := uuid.New()
	repo.seedAccount(userID, 10000)

	debit, err := svc.Debit(context.Background(), userID, 4000, "Data bundle", "buy-1", domain.ServiceData)
	if err != nil {
		t.Fatalf("debit returned error: %v", err)
	}

	first, err := svc.Refund(context.Background(), userID, 4000, "Refund: Data bundle", "buy-1", debit.Entry.ID)
	if err != nil {
		t.Fatalf("refund returned error: %v", err)
	}
	if first.Duplicate {
		t.Fatal("first refund must not be a duplicate")
	}
	if first.Entry.ServiceType != domain.ServiceRefund {
		t.Fatalf("expected refund service type, got %s", first.Entry.ServiceType)
	}
	if first.Entry.OriginalTransactionID == nil || *first.Entry.OriginalTransactionID != debit.Entry.ID {
		t.Fatal("refund entry must reference the original debit entry")
	}

	second, err := svc.Refund(context.Background(), userID, 4000, "Refund: Data bundle", "buy-1", debit.Entry.ID)
	if err != nil {
		t.Fatalf("repeated refund returned error: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("repeated refund of the same original must be a duplicate")
	}
	if got := repo.balance(userID); got != 10000 {
		t.Fatalf("balance must be restored exactly once, got %d", got)
	}
}

func TestAdjust_RequiresNote(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	userID := uuid.New()
	repo.seedAccount(userID, 10000)

	if _, err := svc.Adjust(context.Background(), userID, 500, domain.EntryTypeCredit, "  "); !errors.Is(err, ErrMissingNote) {
		t.Fatalf("expected ErrMissingNote, got %v", err)
	}

	result, err := svc.Adjust(context.Background(), userID, 500, domain.EntryTypeDebit, "chargeback case #8841")
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	if result.Entry.ServiceType != domain.ServiceAdminAdjustment {
		t.Fatalf("expected admin-adjustment service type, got %s", result.Entry.ServiceType)
	}
	if result.Entry.Description != "chargeback case #8841" {
		t.Fatalf("audit note must be stored on the entry, got %q", result.Entry.Description)
	}
	if got := repo.balance(userID); got != 9500 {
		t.Fatalf("expected balance 9500 after debit adjustment, got %d", got)
	}
}

func TestAdjust_DebitHonorsBalancePrecondition(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	userID := uuid.New()
	repo.seedAccount(userID, 100)

	_, err := svc.Adjust(context.Background(), userID, 500, domain.EntryTypeDebit, "ops correction")
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := repo.balance(userID); got != 100 {
		t.Fatalf("balance must be unchanged, got %d", got)
	}
}
