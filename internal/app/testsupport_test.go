package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/gateway"
	"github.com/padipay/wallet-service/internal/store"
	"github.com/padipay/wallet-service/pkg/payoutclient"
)

// memoryRepo is an in-memory Repository with the same atomicity contract as
// the postgres implementation: every method takes the single mutex, so each
// call is one indivisible unit.
type memoryRepo struct {
	mu          sync.Mutex
	accounts    map[uuid.UUID]*domain.Account
	entries     map[uuid.UUID]*domain.LedgerEntry
	byReference map[string]uuid.UUID
	withdrawals map[uuid.UUID]*domain.WithdrawalRequest
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts:    make(map[uuid.UUID]*domain.Account),
		entries:     make(map[uuid.UUID]*domain.LedgerEntry),
		byReference: make(map[string]uuid.UUID),
		withdrawals: make(map[uuid.UUID]*domain.WithdrawalRequest),
	}
}

func (m *memoryRepo) seedAccount(userID uuid.UUID, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[userID] = &domain.Account{
		UserID:      userID,
		Balance:     balance,
		CreatedAt:   time.Now(),
		LastUpdated: time.Now(),
	}
}

func (m *memoryRepo) balance(userID uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[userID].Balance
}

func (m *memoryRepo) entryCount(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.UserID == userID {
			n++
		}
	}
	return n
}

func (m *memoryRepo) CreateAccount(ctx context.Context, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[userID]; ok {
		return false, nil
	}
	m.accounts[userID] = &domain.Account{
		UserID:      userID,
		CreatedAt:   time.Now(),
		LastUpdated: time.Now(),
	}
	return true, nil
}

func (m *memoryRepo) FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[userID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *memoryRepo) ApplyLedgerEntry(ctx context.Context, params store.ApplyEntryParams) (*domain.LedgerEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prior, ok := m.byReference[params.ExternalReference]; ok {
		copied := *m.entries[prior]
		return &copied, true, nil
	}

	account, ok := m.accounts[params.UserID]
	if !ok {
		return nil, false, store.ErrAccountNotFound
	}
	if account.Archived {
		return nil, false, store.ErrAccountArchived
	}

	before := account.Balance
	var after int64
	switch params.Type {
	case domain.EntryTypeCredit:
		after = before + params.Amount
	case domain.EntryTypeDebit:
		if before < params.Amount {
			return nil, false, store.ErrInsufficientFunds
		}
		after = before - params.Amount
	default:
		return nil, false, fmt.Errorf("unknown entry type %q", params.Type)
	}

	entry := &domain.LedgerEntry{
		ID:                    uuid.New(),
		UserID:                params.UserID,
		Type:                  params.Type,
		Amount:                params.Amount,
		Description:           params.Description,
		Status:                params.Status,
		BalanceBefore:         before,
		BalanceAfter:          after,
		ExternalReference:     params.ExternalReference,
		ServiceType:           params.ServiceType,
		OriginalTransactionID: params.OriginalTransactionID,
		ProviderMetadata:      params.ProviderMetadata,
		CreatedAt:             time.Now(),
	}
	account.Balance = after
	account.LastUpdated = time.Now()
	m.entries[entry.ID] = entry
	m.byReference[params.ExternalReference] = entry.ID

	copied := *entry
	return &copied, false, nil
}

func (m *memoryRepo) SettleLedgerEntry(ctx context.Context, entryID uuid.UUID, status string, providerMetadata []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[entryID]
	if !ok {
		return store.ErrEntryNotFound
	}
	if entry.Status == status {
		return nil
	}
	if entry.Status != domain.EntryStatusPending {
		return store.ErrEntryNotPending
	}
	entry.Status = status
	if providerMetadata != nil {
		entry.ProviderMetadata = providerMetadata
	}
	return nil
}

func (m *memoryRepo) FindLedgerEntryByID(ctx context.Context, entryID uuid.UUID) (*domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[entryID]
	if !ok {
		return nil, store.ErrEntryNotFound
	}
	copied := *entry
	return &copied, nil
}

func (m *memoryRepo) FindLedgerEntryByReference(ctx context.Context, externalReference string) (*domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byReference[externalReference]
	if !ok {
		return nil, store.ErrEntryNotFound
	}
	copied := *m.entries[id]
	return &copied, nil
}

func (m *memoryRepo) ListLedgerEntriesByUserID(ctx context.Context, userID uuid.UUID, opts domain.LedgerListOptions) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memoryRepo) CreateWithdrawalRequest(ctx context.Context, req *domain.WithdrawalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *req
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = time.Now()
	m.withdrawals[req.ID] = &copied
	return nil
}

func (m *memoryRepo) FindWithdrawalByID(ctx context.Context, requestID uuid.UUID) (*domain.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.withdrawals[requestID]
	if !ok {
		return nil, store.ErrWithdrawalNotFound
	}
	copied := *req
	return &copied, nil
}

func (m *memoryRepo) FindWithdrawalByPayoutReference(ctx context.Context, payoutReference string) (*domain.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range m.withdrawals {
		if req.PayoutReference == payoutReference {
			copied := *req
			return &copied, nil
		}
	}
	return nil, store.ErrWithdrawalNotFound
}

func (m *memoryRepo) MarkWithdrawalProcessing(ctx context.Context, requestID uuid.UUID, payoutReference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.withdrawals[requestID]
	if !ok {
		return store.ErrWithdrawalNotFound
	}
	if req.Status != domain.WithdrawalStatusPending {
		return store.ErrWithdrawalNotFound
	}
	req.Status = domain.WithdrawalStatusProcessing
	req.PayoutReference = payoutReference
	req.UpdatedAt = time.Now()
	return nil
}

func (m *memoryRepo) TransitionWithdrawalTerminal(ctx context.Context, requestID uuid.UUID, status string, failureReason *string) (*domain.WithdrawalRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.withdrawals[requestID]
	if !ok {
		return nil, false, store.ErrWithdrawalNotFound
	}
	if req.Status != domain.WithdrawalStatusPending && req.Status != domain.WithdrawalStatusProcessing {
		copied := *req
		return &copied, false, nil
	}
	req.Status = status
	req.FailureReason = failureReason
	req.UpdatedAt = time.Now()
	copied := *req
	return &copied, true, nil
}

func (m *memoryRepo) ListStaleProcessingWithdrawals(ctx context.Context, olderThan time.Time, limit int) ([]domain.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WithdrawalRequest
	for _, req := range m.withdrawals {
		if req.Status == domain.WithdrawalStatusProcessing && req.UpdatedAt.Before(olderThan) {
			out = append(out, *req)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// stubGateway is a scripted provider gateway.
type stubGateway struct {
	preflight    *gateway.PreflightResult
	preflightErr error
	outcome      *gateway.PurchaseOutcome

	preflightCalls int
	purchaseCalls  int
}

func (g *stubGateway) Preflight(ctx context.Context, params domain.PurchaseParams) (*gateway.PreflightResult, error) {
	g.preflightCalls++
	if g.preflightErr != nil {
		return nil, g.preflightErr
	}
	if g.preflight != nil {
		return g.preflight, nil
	}
	return &gateway.PreflightResult{Eligible: true}, nil
}

func (g *stubGateway) Purchase(ctx context.Context, params domain.PurchaseParams) *gateway.PurchaseOutcome {
	g.purchaseCalls++
	if g.outcome != nil {
		return g.outcome
	}
	return &gateway.PurchaseOutcome{Success: true, ProviderTxID: "prov-1", Message: "successful"}
}

// stubPayout is a scripted payout processor.
type stubPayout struct {
	resolveErr   error
	accountName  string
	initiateErr  error
	transferRef  string
	statusResult string
	statusReason string

	initiateCalls int
}

func (p *stubPayout) ResolveAccount(ctx context.Context, req payoutclient.ResolveAccountRequest) (*payoutclient.ResolveAccountResponse, error) {
	if p.resolveErr != nil {
		return nil, p.resolveErr
	}
	resp := &payoutclient.ResolveAccountResponse{}
	resp.Data.AccountName = p.accountName
	resp.Data.AccountNumber = req.AccountNumber
	return resp, nil
}

func (p *stubPayout) InitiateTransfer(ctx context.Context, req payoutclient.InitiateTransferRequest) (*payoutclient.TransferResponse, error) {
	p.initiateCalls++
	if p.initiateErr != nil {
		return nil, p.initiateErr
	}
	resp := &payoutclient.TransferResponse{}
	resp.Data.Reference = p.transferRef
	resp.Data.Status = payoutclient.TransferStatusPending
	return resp, nil
}

func (p *stubPayout) GetTransferStatus(ctx context.Context, reference string) (*payoutclient.TransferResponse, error) {
	resp := &payoutclient.TransferResponse{}
	resp.Data.Reference = reference
	resp.Data.Status = p.statusResult
	resp.Data.Reason = p.statusReason
	return resp, nil
}

// stubOTPStore accepts a single fixed code.
type stubOTPStore struct {
	code      string
	issueErr  error
	verifyErr error
}

func (s *stubOTPStore) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	if s.issueErr != nil {
		return "", s.issueErr
	}
	return s.code, nil
}

func (s *stubOTPStore) Verify(ctx context.Context, userID uuid.UUID, code string) error {
	if s.verifyErr != nil {
		return s.verifyErr
	}
	if code != s.code {
		return ErrInvalidOTP
	}
	return nil
}

// recordingPublisher captures notification events so tests can assert how
// many a flow emitted.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	return nil
}

func (p *recordingPublisher) PublishNotificationEvent(ctx context.Context, event domain.NotificationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) countKind(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func newTestService(repo *memoryRepo) (*Service, *stubGateway, *stubPayout) {
	gw := &stubGateway{}
	payout := &stubPayout{accountName: "ADA OBI", transferRef: "pay-ref-1"}
	svc := NewService(repo, gw, payout, nil, 5000)
	svc.SetOTPStore(&stubOTPStore{code: "123456"})
	return svc, gw, payout
}

var errProviderDown = errors.New("provider unreachable")
