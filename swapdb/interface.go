package swapdb

import (
	"context"
	"errors"
)

var (
	// ErrSwapNotFound is returned when an operation references a swap id
	// that is not present in the store.
	ErrSwapNotFound = errors.New("swap not found")

	// ErrSwapExists is returned when a swap with the same id has already
	// been persisted.
	ErrSwapExists = errors.New("swap already exists")
)

// SwapStore is the persistence contract of the settlement engine. Records are
// ordered most-recent-first and are never deleted automatically; they form an
// append-only audit log the user can inspect or manually prune.
type SwapStore interface {
	// ListSwaps returns all swaps of the given kind, newest first. The
	// ordering is a persistence level invariant, state updates never
	// reorder records.
	ListSwaps(ctx context.Context, kind SwapKind) ([]*Swap, error)

	// FetchSwap returns a single swap by id.
	FetchSwap(ctx context.Context, id string, kind SwapKind) (*Swap, error)

	// AddSwap inserts a newly created swap at the head of the list. The
	// write is fully synchronous with record creation so that secret
	// material is durable before any dependent network round-trip.
	AddSwap(ctx context.Context, swap *Swap) error

	// UpdateState persists a state transition for the given swap. A
	// non-empty failure reason is recorded once and sticks, later calls
	// cannot clear or overwrite it.
	UpdateState(ctx context.Context, id string, kind SwapKind,
		state SwapState, failureReason string) error

	// SetLockupTransaction attaches the fetched lockup transaction
	// descriptor to an existing swap record.
	SetLockupTransaction(ctx context.Context, id string, kind SwapKind,
		tx *LockupTransaction) error

	// Close closes the underlying database.
	Close() error
}
