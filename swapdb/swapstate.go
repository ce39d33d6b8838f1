package swapdb

import "fmt"

// SwapState indicates the current state of a swap. This enumeration is the
// union of submarine and reverse swap states. A single type is used for both
// swap kinds to be able to reduce code duplication that would otherwise be
// required.
type SwapState uint8

const (
	// StateInitiated is the initial state of a swap. The creation call to
	// the server has completed and the record has been persisted, but no
	// status update has been received from the server yet.
	StateInitiated SwapState = 0

	// StateCreated is reached when the server created the hold invoice
	// for a reverse swap and is awaiting its payment.
	StateCreated SwapState = 1

	// StateInvoiceSet means the server registered the invoice of a
	// submarine swap and is awaiting the on-chain lockup transaction.
	StateInvoiceSet SwapState = 2

	// StateTransactionMempool means the lockup transaction has been seen
	// in the mempool but is still unconfirmed.
	StateTransactionMempool SwapState = 3

	// StateTransactionConfirmed means the lockup transaction of a reverse
	// swap confirmed and the client can proceed to claim.
	StateTransactionConfirmed SwapState = 4

	// StateTransactionClaimPending means the server is ready to
	// cooperatively claim a submarine swap and expects the client to
	// produce a partial signature.
	StateTransactionClaimPending SwapState = 5

	// StateTransactionClaimed is the final state of a successfully settled
	// submarine swap.
	StateTransactionClaimed SwapState = 6

	// StateInvoiceSettled is the final state of a successfully settled
	// reverse swap.
	StateInvoiceSettled SwapState = 7

	// StateInvoiceFailedToPay means the invoice of a submarine swap could
	// not be paid by the server. The on-chain lockup can be refunded.
	StateInvoiceFailedToPay SwapState = 8

	// StateTransactionLockupFailed means the on-chain lockup of a
	// submarine swap was invalid. The lockup can be refunded.
	StateTransactionLockupFailed SwapState = 9

	// StateTransactionRefunded is the final state of a submarine swap that
	// has been refunded to the client.
	StateTransactionRefunded SwapState = 10

	// StateInvoiceExpired means the hold invoice of a reverse swap expired
	// before it was paid.
	StateInvoiceExpired SwapState = 11

	// StateTransactionFailed means the claim transaction of a reverse swap
	// could not be broadcast.
	StateTransactionFailed SwapState = 12

	// StateSwapExpired means the timeout block height of the swap has
	// passed. A submarine swap in this state can still be refunded.
	StateSwapExpired SwapState = 13
)

// SwapStateType defines the types of swap states that exist. Every swap state
// defined as type SwapState above falls into one of these SwapStateType
// categories.
type SwapStateType uint8

const (
	// StateTypePending indicates that the swap is still pending.
	StateTypePending SwapStateType = 0

	// StateTypeSuccess indicates that the swap has completed successfully.
	StateTypeSuccess SwapStateType = 1

	// StateTypeFail indicates that the swap has failed.
	StateTypeFail SwapStateType = 2
)

// providerStatus maps the raw status strings pushed by the swap provider to
// our internal states. Raw strings are decoded here, at the api boundary, and
// nowhere else.
var providerStatus = map[string]SwapState{
	"swap.created":              StateCreated,
	"invoice.set":               StateInvoiceSet,
	"transaction.mempool":       StateTransactionMempool,
	"transaction.confirmed":     StateTransactionConfirmed,
	"transaction.claim.pending": StateTransactionClaimPending,
	"transaction.claimed":       StateTransactionClaimed,
	"invoice.settled":           StateInvoiceSettled,
	"invoice.failedToPay":       StateInvoiceFailedToPay,
	"transaction.lockupFailed":  StateTransactionLockupFailed,
	"transaction.refunded":      StateTransactionRefunded,
	"invoice.expired":           StateInvoiceExpired,
	"transaction.failed":        StateTransactionFailed,
	"swap.expired":              StateSwapExpired,
}

// StateFromProviderStatus converts a raw provider status string into a
// SwapState. Unknown statuses are rejected so that new server-side states
// cannot silently drive the settlement logic.
func StateFromProviderStatus(status string) (SwapState, error) {
	state, ok := providerStatus[status]
	if !ok {
		return 0, fmt.Errorf("unknown provider swap status %q", status)
	}

	return state, nil
}

// Type returns the type of the SwapState it is called on.
func (s SwapState) Type() SwapStateType {
	if s.IsPending() {
		return StateTypePending
	}

	if s == StateTransactionClaimed || s == StateInvoiceSettled ||
		s == StateTransactionRefunded {

		return StateTypeSuccess
	}

	return StateTypeFail
}

// IsPending returns true if the swap is in a pending state.
func (s SwapState) IsPending() bool {
	switch s {
	case StateInitiated, StateCreated, StateInvoiceSet,
		StateTransactionMempool, StateTransactionConfirmed,
		StateTransactionClaimPending:

		return true
	}

	return false
}

// IsFinal returns true if the swap is in a final state.
func (s SwapState) IsFinal() bool {
	return !s.IsPending()
}

// Refundable returns true if a submarine swap in this state can still be
// refunded by spending the refund leaf of the swap contract.
func (s SwapState) Refundable() bool {
	return s == StateInvoiceFailedToPay ||
		s == StateTransactionLockupFailed ||
		s == StateSwapExpired
}

// String returns a string representation of the swap's state.
func (s SwapState) String() string {
	switch s {
	case StateInitiated:
		return "Initiated"

	case StateCreated:
		return "Created"

	case StateInvoiceSet:
		return "InvoiceSet"

	case StateTransactionMempool:
		return "TransactionMempool"

	case StateTransactionConfirmed:
		return "TransactionConfirmed"

	case StateTransactionClaimPending:
		return "TransactionClaimPending"

	case StateTransactionClaimed:
		return "TransactionClaimed"

	case StateInvoiceSettled:
		return "InvoiceSettled"

	case StateInvoiceFailedToPay:
		return "InvoiceFailedToPay"

	case StateTransactionLockupFailed:
		return "TransactionLockupFailed"

	case StateTransactionRefunded:
		return "TransactionRefunded"

	case StateInvoiceExpired:
		return "InvoiceExpired"

	case StateTransactionFailed:
		return "TransactionFailed"

	case StateSwapExpired:
		return "SwapExpired"

	default:
		return "Unknown"
	}
}
