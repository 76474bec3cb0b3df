package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"casino/internal/ledger"
)

var errCreditUnavailable = errors.New("ledger unavailable")

type fakeTx struct {
	PlayerID string
	Type     string
	Amount   int64
	Ref      string
}

// fakeLedger is an in-memory ledger.Service with the same idempotent ref
// semantics as the postgres implementation.
type fakeLedger struct {
	mu          sync.Mutex
	balances    map[string]int64
	refs        map[string]bool
	txs         []fakeTx
	failCredits bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances: make(map[string]int64),
		refs:     make(map[string]bool),
	}
}

func (f *fakeLedger) fund(playerID string, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[playerID] += amount
}

func (f *fakeLedger) Debit(_ context.Context, playerID string, amount int64, txType, ref string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if amount <= 0 {
		return 0, ledger.ErrInvalidAmount
	}
	if f.refs[ref] {
		return f.balances[playerID], nil
	}
	if f.balances[playerID] < amount {
		return f.balances[playerID], ledger.ErrInsufficientBalance
	}
	f.balances[playerID] -= amount
	f.refs[ref] = true
	f.txs = append(f.txs, fakeTx{PlayerID: playerID, Type: txType, Amount: -amount, Ref: ref})
	return f.balances[playerID], nil
}

func (f *fakeLedger) Credit(_ context.Context, playerID string, amount int64, txType, ref string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCredits {
		return 0, errCreditUnavailable
	}
	if amount <= 0 {
		return 0, ledger.ErrInvalidAmount
	}
	if f.refs[ref] {
		return f.balances[playerID], nil
	}
	f.balances[playerID] += amount
	f.refs[ref] = true
	f.txs = append(f.txs, fakeTx{PlayerID: playerID, Type: txType, Amount: amount, Ref: ref})
	return f.balances[playerID], nil
}

func (f *fakeLedger) Balance(_ context.Context, playerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[playerID], nil
}

func (f *fakeLedger) History(_ context.Context, _ string, _ int) ([]ledger.Transaction, error) {
	return nil, nil
}

func (f *fakeLedger) setFailCredits(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCredits = fail
}

// txsOfType copies the recorded transactions matching txType.
func (f *fakeLedger) txsOfType(txType string) []fakeTx {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeTx
	for _, tx := range f.txs {
		if tx.Type == txType {
			out = append(out, tx)
		}
	}
	return out
}

func (f *fakeLedger) balanceOf(playerID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[playerID]
}

// fakeRoundStore records persisted rounds in memory.
type fakeRoundStore struct {
	mu          sync.Mutex
	saved       []*Round
	archived    []*RoundArchive
	deadline    time.Time
	hasDeadline bool
}

func newFakeRoundStore() *fakeRoundStore {
	return &fakeRoundStore{}
}

func (f *fakeRoundStore) SaveRound(_ context.Context, r *Round) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	roundCopy := *r
	f.saved = append(f.saved, &roundCopy)
	return nil
}

func (f *fakeRoundStore) ArchiveRound(_ context.Context, a *RoundArchive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, a)
	return nil
}

func (f *fakeRoundStore) SetDeadline(_ context.Context, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadline = deadline
	f.hasDeadline = true
	return nil
}

func (f *fakeRoundStore) Deadline(_ context.Context) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deadline, f.hasDeadline, nil
}

func (f *fakeRoundStore) archivedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.archived)
}

func (f *fakeRoundStore) lastArchived() *RoundArchive {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.archived) == 0 {
		return nil
	}
	return f.archived[len(f.archived)-1]
}
