package swapd

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/voltwallet/swapd/swapdb"
)

// PairFees is the fee schedule the server quotes for one swap direction.
type PairFees struct {
	// Percentage is the relative service fee the server charges.
	Percentage float64

	// MinerFee is the absolute on-chain fee estimate in sat the server
	// includes in its quote.
	MinerFee btcutil.Amount

	// MinimalAmount is the minimum amount in sat the server accepts for
	// a swap.
	MinimalAmount btcutil.Amount

	// MaximalAmount is the maximum amount in sat the server accepts for
	// a swap.
	MaximalAmount btcutil.Amount
}

// FeeSchedule holds the last known fee schedules for both swap directions.
// Either side may be nil if it has never been fetched successfully.
type FeeSchedule struct {
	// Submarine is the schedule for on-chain to Lightning swaps.
	Submarine *PairFees

	// Reverse is the schedule for Lightning to on-chain swaps.
	Reverse *PairFees
}

// SubmarineSwapRequest contains the parameters for a new submarine swap.
type SubmarineSwapRequest struct {
	// Invoice is the BOLT11 invoice the server pays once the on-chain
	// lockup confirmed.
	Invoice string
}

// ReverseSwapRequest contains the parameters for a new reverse swap.
type ReverseSwapRequest struct {
	// Amount is the invoice amount in sat the client will pay.
	Amount btcutil.Amount

	// DestAddr is the client address that receives the on-chain funds.
	DestAddr btcutil.Address

	// SweepFeeRate is the fee rate in sat/vbyte for the claim
	// transaction.
	SweepFeeRate uint64
}

// RefundSwapRequest contains the parameters of a user-triggered refund of a
// failed or expired submarine swap.
type RefundSwapRequest struct {
	// SwapId is the id of the submarine swap to refund.
	SwapId string

	// DestAddr is the address the refund pays out to.
	DestAddr btcutil.Address

	// FeeRate is the fee rate in sat/vbyte for the refund transaction.
	FeeRate uint64
}

// CooperativeClaimTx describes the cooperative claim of a submarine swap. The
// client contributes a partial signature over the server's claim transaction
// instead of a more expensive script-path spend.
type CooperativeClaimTx struct {
	// SwapId is the swap the claim belongs to.
	SwapId string

	// ClaimLeaf and RefundLeaf are the script-path alternatives of the
	// swap contract.
	ClaimLeaf  swapdb.TreeLeaf
	RefundLeaf swapdb.TreeLeaf

	// PrivateKey is the client's refund key as a hex encoded 32-byte
	// big-endian scalar.
	PrivateKey string

	// ServicePubKey is the server's hex encoded public key.
	ServicePubKey string

	// TransactionHash is the sighash of the server's claim transaction.
	TransactionHash string

	// PubNonce is the server's musig2 public nonce.
	PubNonce string
}

// ReverseClaimTx describes the claim transaction of a reverse swap.
type ReverseClaimTx struct {
	// SwapId is the swap the claim belongs to.
	SwapId string

	// ClaimLeaf and RefundLeaf are the script-path alternatives of the
	// swap contract.
	ClaimLeaf  swapdb.TreeLeaf
	RefundLeaf swapdb.TreeLeaf

	// PrivateKey is the client's claim key as a hex encoded 32-byte
	// big-endian scalar.
	PrivateKey string

	// ServicePubKey is the server's hex encoded public key.
	ServicePubKey string

	// Preimage is the hex encoded claim preimage.
	Preimage string

	// LockupTransactionHex is the raw lockup transaction.
	LockupTransactionHex string

	// LockupAddress is the taproot address of the contract output.
	LockupAddress string

	// DestinationAddress is the address the claim pays out to.
	DestinationAddress string

	// FeeRate is the fee rate in sat/vbyte for the claim transaction.
	FeeRate uint64
}

// RefundTx describes the refund transaction of a submarine swap.
type RefundTx struct {
	// SwapId is the swap the refund belongs to.
	SwapId string

	// ClaimLeaf and RefundLeaf are the script-path alternatives of the
	// swap contract.
	ClaimLeaf  swapdb.TreeLeaf
	RefundLeaf swapdb.TreeLeaf

	// TransactionHex is the raw lockup transaction being refunded.
	TransactionHex string

	// PrivateKey is the client's refund key as a hex encoded 32-byte
	// big-endian scalar.
	PrivateKey string

	// ServicePubKey is the server's hex encoded public key.
	ServicePubKey string

	// FeeRate is the fee rate in sat/vbyte for the refund transaction.
	FeeRate uint64

	// DestinationAddress is the address the refund pays out to.
	DestinationAddress string

	// IsTestnet signals the target network to the transaction builder.
	IsTestnet bool
}

// TxBuilder constructs, signs and broadcasts the settlement transactions of
// the engine. Implementations live outside of this module, the engine never
// inspects the resulting transaction bytes.
type TxBuilder interface {
	// BuildCooperativeClaim produces the client's partial signature for
	// a cooperative submarine claim and submits it to the server.
	BuildCooperativeClaim(ctx context.Context,
		tx *CooperativeClaimTx) error

	// BuildReverseClaim constructs and broadcasts the claim transaction
	// of a reverse swap.
	BuildReverseClaim(ctx context.Context, tx *ReverseClaimTx) error

	// BuildRefund constructs and broadcasts the refund transaction of a
	// submarine swap.
	BuildRefund(ctx context.Context, tx *RefundTx) error
}

// InvoiceDecoder extracts the payment hash from a BOLT11 invoice.
type InvoiceDecoder interface {
	// DecodePaymentHash returns the payment hash committed to by the
	// given invoice.
	DecodePaymentHash(invoice string) (lntypes.Hash, error)
}
