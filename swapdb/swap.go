package swapdb

import (
	"errors"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lntypes"
)

// SwapKind indicates the kind of swap.
type SwapKind uint8

const (
	// KindSubmarine is an on-chain to Lightning swap. The client locks
	// funds on-chain and the server pays the swap invoice.
	KindSubmarine SwapKind = iota

	// KindReverse is a Lightning to on-chain swap. The client pays a hold
	// invoice and claims the on-chain lockup with the preimage.
	KindReverse
)

// String returns a string representation of the swap kind.
func (k SwapKind) String() string {
	switch k {
	case KindSubmarine:
		return "Submarine"
	case KindReverse:
		return "Reverse"
	default:
		return "Unknown"
	}
}

// TreeLeaf is a single script-path alternative of the taproot swap contract.
type TreeLeaf struct {
	// Version is the tapscript leaf version.
	Version uint8

	// Output is the hex encoded leaf script.
	Output string
}

// SwapTree is the taproot script-path descriptor returned by the server on
// swap creation. It is immutable once received.
type SwapTree struct {
	// ClaimLeaf allows a cooperative or preimage based claim of the swap
	// output.
	ClaimLeaf TreeLeaf

	// RefundLeaf allows a timeout based refund of the swap output.
	RefundLeaf TreeLeaf
}

// LockupTransaction describes the on-chain transaction that funded the swap
// contract output. It is fetched lazily, only once a refund becomes
// necessary.
type LockupTransaction struct {
	// TxId is the transaction id of the lockup transaction.
	TxId string

	// Hex is the raw transaction in hex encoding.
	Hex string

	// TimeoutBlockHeight is the block height at which the refund leaf
	// becomes spendable.
	TimeoutBlockHeight uint32
}

// Swap is the aggregate swap record that is persisted for every submarine and
// reverse swap. All fields except State, FailureReason and LockupTransaction
// are immutable once the record has been created.
type Swap struct {
	// Id is the server-assigned swap identifier.
	Id string

	// Kind is the kind of this swap.
	Kind SwapKind

	// State is the current state of the swap. It is only mutated by the
	// status tracker through UpdateState.
	State SwapState

	// FailureReason is an optional server-supplied failure description.
	// It is set at most once and never cleared.
	FailureReason string

	// CreatedAt is the time at which the swap was initiated.
	CreatedAt time.Time

	// ExpectedAmount is the amount in sat the client is expected to lock
	// up for a submarine swap.
	ExpectedAmount btcutil.Amount

	// OnchainAmount is the amount in sat the server locks up for a
	// reverse swap.
	OnchainAmount btcutil.Amount

	// TimeoutBlockHeight is the absolute block height after which the
	// swap is expired. It is set once from the server response and never
	// recomputed locally.
	TimeoutBlockHeight uint32

	// LockupAddress is the taproot address of the swap contract output.
	LockupAddress string

	// DestinationAddress is the client address that receives the on-chain
	// funds of a reverse swap.
	DestinationAddress string

	// ClaimPubKey is the hex encoded public key of the claiming party.
	ClaimPubKey string

	// RefundPubKey is the hex encoded public key of the refunding party.
	RefundPubKey string

	// Invoice is the BOLT11 invoice involved in the swap.
	Invoice string

	// SweepFeeRate is the fee rate in sat/vbyte to use for the reverse
	// claim transaction, chosen at creation time.
	SweepFeeRate uint64

	// RefundPrivateKey is the client refund key of a submarine swap. This
	// secret exists only locally and must be persisted before the first
	// network round-trip that depends on it.
	RefundPrivateKey *btcec.PrivateKey

	// ClaimPrivateKey is the client claim key of a reverse swap.
	ClaimPrivateKey *btcec.PrivateKey

	// Preimage is the claim preimage of a reverse swap. Only its hash is
	// ever shared with the server before settlement.
	Preimage *lntypes.Preimage

	// SwapTree is the taproot script tree of the swap contract.
	SwapTree *SwapTree

	// LockupTransaction is the lockup transaction descriptor, attached
	// once it has been fetched for a refund.
	LockupTransaction *LockupTransaction
}

// validateSecrets enforces the secret material invariant of swap records: a
// submarine swap carries exactly the refund private key, a reverse swap
// carries exactly the preimage and claim key.
func (s *Swap) validateSecrets() error {
	switch s.Kind {
	case KindSubmarine:
		if s.RefundPrivateKey == nil {
			return errors.New("submarine swap without refund key")
		}
		if s.Preimage != nil || s.ClaimPrivateKey != nil {
			return errors.New("submarine swap with reverse " +
				"swap secrets")
		}

	case KindReverse:
		if s.Preimage == nil || s.ClaimPrivateKey == nil {
			return errors.New("reverse swap without preimage or " +
				"claim key")
		}
		if s.RefundPrivateKey != nil {
			return errors.New("reverse swap with refund key")
		}

	default:
		return errors.New("unknown swap kind")
	}

	return nil
}
