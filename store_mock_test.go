package swapd

import (
	"context"
	"fmt"
	"testing"

	"github.com/voltwallet/swapd/swapdb"
)

type storeKey struct {
	id   string
	kind swapdb.SwapKind
}

// storeMock implements a mock client swap store.
type storeMock struct {
	swaps map[storeKey]*swapdb.Swap

	// order holds the insertion order of swap ids, newest last.
	order []storeKey

	// calls records every mutating call in order, so tests can assert
	// that transitions are persisted before anything else happens.
	calls []string

	addErr    error
	updateErr error

	t *testing.T
}

// A compile-time flag to ensure that storeMock implements the SwapStore
// interface.
var _ swapdb.SwapStore = (*storeMock)(nil)

// newStoreMock instantiates a new mock store.
func newStoreMock(t *testing.T) *storeMock {
	return &storeMock{
		swaps: make(map[storeKey]*swapdb.Swap),
		t:     t,
	}
}

// ListSwaps returns all swaps of a kind currently in the store, newest first.
//
// NOTE: Part of the swapdb.SwapStore interface.
func (s *storeMock) ListSwaps(_ context.Context, kind swapdb.SwapKind) (
	[]*swapdb.Swap, error) {

	var result []*swapdb.Swap
	for i := len(s.order) - 1; i >= 0; i-- {
		key := s.order[i]
		if key.kind != kind {
			continue
		}

		result = append(result, s.swaps[key])
	}

	return result, nil
}

// FetchSwap returns a single swap by id.
//
// NOTE: Part of the swapdb.SwapStore interface.
func (s *storeMock) FetchSwap(_ context.Context, id string,
	kind swapdb.SwapKind) (*swapdb.Swap, error) {

	swap, ok := s.swaps[storeKey{id: id, kind: kind}]
	if !ok {
		return nil, swapdb.ErrSwapNotFound
	}

	return swap, nil
}

// AddSwap adds an initiated swap to the store.
//
// NOTE: Part of the swapdb.SwapStore interface.
func (s *storeMock) AddSwap(_ context.Context, swap *swapdb.Swap) error {
	if s.addErr != nil {
		return s.addErr
	}

	key := storeKey{id: swap.Id, kind: swap.Kind}
	if _, ok := s.swaps[key]; ok {
		return swapdb.ErrSwapExists
	}

	// Store a copy so that later in-memory mutations of the caller's swap
	// don't silently change the "persisted" record.
	stored := *swap
	s.swaps[key] = &stored
	s.order = append(s.order, key)
	s.calls = append(s.calls, fmt.Sprintf("AddSwap:%v", swap.Id))

	return nil
}

// UpdateState persists a state transition.
//
// NOTE: Part of the swapdb.SwapStore interface.
func (s *storeMock) UpdateState(_ context.Context, id string,
	kind swapdb.SwapKind, state swapdb.SwapState,
	failureReason string) error {

	s.calls = append(s.calls, fmt.Sprintf("UpdateState:%v", state))

	if s.updateErr != nil {
		return s.updateErr
	}

	swap, ok := s.swaps[storeKey{id: id, kind: kind}]
	if !ok {
		return swapdb.ErrSwapNotFound
	}

	swap.State = state
	if swap.FailureReason == "" && failureReason != "" {
		swap.FailureReason = failureReason
	}

	return nil
}

// SetLockupTransaction attaches a lockup transaction descriptor.
//
// NOTE: Part of the swapdb.SwapStore interface.
func (s *storeMock) SetLockupTransaction(_ context.Context, id string,
	kind swapdb.SwapKind, lockupTx *swapdb.LockupTransaction) error {

	s.calls = append(s.calls, fmt.Sprintf("SetLockupTransaction:%v", id))

	swap, ok := s.swaps[storeKey{id: id, kind: kind}]
	if !ok {
		return swapdb.ErrSwapNotFound
	}

	swap.LockupTransaction = lockupTx

	return nil
}

// Close is a no-op for the mock store.
//
// NOTE: Part of the swapdb.SwapStore interface.
func (s *storeMock) Close() error {
	return nil
}

// assertSwapStored asserts that a swap exists in the store and returns it.
func (s *storeMock) assertSwapStored(id string,
	kind swapdb.SwapKind) *swapdb.Swap {

	s.t.Helper()

	swap, ok := s.swaps[storeKey{id: id, kind: kind}]
	if !ok {
		s.t.Fatalf("swap %v not stored", id)
	}

	return swap
}
