package helius

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Stub Client (for testing and development)
// ---------------------------------------------------------------------------

// StubClient is a mock RPC client for testing. Signature pages are keyed by
// cursor so tests can model multi-page history walks.
type StubClient struct {
	mu          sync.RWMutex
	pages       map[Pubkey][]SignatureInfo // before-cursor -> page ("" = first page)
	txs         map[Pubkey]*TransactionDetail
	holders     map[Pubkey]int
	assets      map[Pubkey]*AssetInfo
	failHolders map[Pubkey]bool
	failAssets  map[Pubkey]bool
	failNext    bool

	credits atomic.Int64

	// Per-method call counters.
	sigCalls    atomic.Int64
	txCalls     atomic.Int64
	holderCalls atomic.Int64
	assetCalls  atomic.Int64
}

// NewStubClient creates a stub RPC client for testing.
func NewStubClient() *StubClient {
	return &StubClient{
		pages:       make(map[Pubkey][]SignatureInfo),
		txs:         make(map[Pubkey]*TransactionDetail),
		holders:     make(map[Pubkey]int),
		assets:      make(map[Pubkey]*AssetInfo),
		failHolders: make(map[Pubkey]bool),
		failAssets:  make(map[Pubkey]bool),
	}
}

// AddPage registers the signature page returned for a before-cursor.
// An empty cursor is the first page.
func (s *StubClient) AddPage(before Pubkey, sigs []SignatureInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[before] = sigs
}

// AddTransaction registers a transaction detail.
func (s *StubClient) AddTransaction(detail TransactionDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[detail.Signature] = &detail
}

// SetHolderCount registers a holder count for a mint.
func (s *StubClient) SetHolderCount(mint Pubkey, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holders[mint] = count
}

// FailHolderCount makes holder lookups for a mint fail.
func (s *StubClient) FailHolderCount(mint Pubkey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failHolders[mint] = true
}

// AddAsset registers asset metadata for a mint.
func (s *StubClient) AddAsset(asset AssetInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[asset.Mint] = &asset
}

// FailAsset makes asset lookups for a mint fail.
func (s *StubClient) FailAsset(mint Pubkey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAssets[mint] = true
}

// SetFailNext makes the next call fail.
func (s *StubClient) SetFailNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = true
}

func (s *StubClient) shouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return true
	}
	return false
}

// SigCalls returns how many signature pages were fetched.
func (s *StubClient) SigCalls() int64 { return s.sigCalls.Load() }

// TxCalls returns how many transactions were fetched.
func (s *StubClient) TxCalls() int64 { return s.txCalls.Load() }

// HolderCalls returns how many holder lookups were made.
func (s *StubClient) HolderCalls() int64 { return s.holderCalls.Load() }

// AssetCalls returns how many asset lookups were made.
func (s *StubClient) AssetCalls() int64 { return s.assetCalls.Load() }

// --- Interface implementation ---

func (s *StubClient) GetSignatures(_ context.Context, _ Pubkey, before Pubkey, limit int) ([]SignatureInfo, error) {
	s.sigCalls.Add(1)
	s.credits.Add(creditCost("getSignaturesForAddress"))
	if s.shouldFail() {
		return nil, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	page := s.pages[before]
	if len(page) > limit {
		page = page[:limit]
	}
	return page, nil
}

func (s *StubClient) GetTransaction(_ context.Context, sig Pubkey) (*TransactionDetail, error) {
	s.txCalls.Add(1)
	s.credits.Add(creditCost("getTransaction"))
	if s.shouldFail() {
		return nil, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tx, ok := s.txs[sig]; ok {
		return tx, nil
	}
	return nil, fmt.Errorf("stub: transaction %s not found", sig)
}

func (s *StubClient) GetHolderCount(_ context.Context, mint Pubkey) (int, error) {
	s.holderCalls.Add(1)
	s.credits.Add(creditCost("getTokenAccounts"))
	if s.shouldFail() {
		return 0, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failHolders[mint] {
		return 0, fmt.Errorf("stub: holder lookup failed for %s", mint)
	}
	return s.holders[mint], nil
}

func (s *StubClient) GetAsset(_ context.Context, mint Pubkey) (*AssetInfo, error) {
	s.assetCalls.Add(1)
	s.credits.Add(creditCost("getAsset"))
	if s.shouldFail() {
		return nil, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failAssets[mint] {
		return nil, fmt.Errorf("stub: asset lookup failed for %s", mint)
	}
	if a, ok := s.assets[mint]; ok {
		return a, nil
	}
	return nil, nil
}

func (s *StubClient) Health(_ context.Context) error {
	if s.shouldFail() {
		return fmt.Errorf("stub: simulated RPC failure")
	}
	return nil
}

func (s *StubClient) Credits() int64 {
	return s.credits.Load()
}

// Stamp returns a unix timestamp the given number of minutes in the past.
// Convenience for building test signatures with relative ages.
func Stamp(minutesAgo int) int64 {
	return time.Now().Add(-time.Duration(minutesAgo) * time.Minute).Unix()
}
