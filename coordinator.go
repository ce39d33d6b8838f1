package swapd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/voltwallet/swapd/swapdb"
)

// RetryPolicy is an explicit, injectable retry strategy for transaction
// broadcasts that may fail transiently.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first
	// one.
	MaxAttempts int

	// Delay is the fixed pacing delay between two attempts.
	Delay time.Duration
}

// defaultReverseClaimRetry paces the reverse claim broadcast. On-chain
// propagation is flaky across networks, so the claim is attempted a bounded
// number of times before giving up.
var defaultReverseClaimRetry = RetryPolicy{
	MaxAttempts: 11,
	Delay:       time.Second,
}

// coordinatorConfig contains the collaborators the settlement coordinator
// works with.
type coordinatorConfig struct {
	store swapdb.SwapStore

	server swapServerClient

	builder TxBuilder

	decoder InvoiceDecoder

	// reverseClaimRetry bounds the reverse claim broadcast attempts.
	reverseClaimRetry RetryPolicy

	// createDelayTimer paces retry attempts. Tests inject their own
	// factory to simulate failure sequences deterministically.
	createDelayTimer func(delay time.Duration) <-chan time.Time

	// isTestnet signals the target network to the transaction builder.
	isTestnet bool
}

// coordinator decides, for each state transition of a single swap, whether a
// claim, refund preparation or reverse claim is required, and invokes the
// external transaction builder.
type coordinator struct {
	cfg *coordinatorConfig

	swap *swapdb.Swap

	log *PrefixLog

	// submitted is set once a settlement transaction for this swap has
	// been handed to the builder successfully. It guards against a second
	// settlement attempt within the same subscription. The flag is
	// deliberately not persisted, a process restart may re-attempt once.
	submitted bool
}

// newCoordinator returns a settlement coordinator for a single swap.
func newCoordinator(cfg *coordinatorConfig, swap *swapdb.Swap) *coordinator {
	return &coordinator{
		cfg:  cfg,
		swap: swap,
		log: &PrefixLog{
			Logger: log,
			SwapId: swap.Id,
		},
	}
}

// stateChanged reacts to a single decoded status update. It is invoked by the
// tracker after the transition has been persisted.
func (c *coordinator) stateChanged(ctx context.Context,
	update *ServerUpdate) error {

	state := update.State

	switch {
	// The server is ready for the cooperative claim of a submarine swap
	// and expects our partial signature.
	case c.swap.Kind == swapdb.KindSubmarine &&
		state == swapdb.StateTransactionClaimPending:

		return c.cooperativeClaim(ctx)

	// The server locked up the on-chain funds of a reverse swap. Claim
	// them with the preimage as soon as the lockup is seen.
	case c.swap.Kind == swapdb.KindReverse &&
		(state == swapdb.StateTransactionMempool ||
			state == swapdb.StateTransactionConfirmed):

		return c.reverseClaim(ctx, update)

	// A submarine swap failed or expired. Make sure the lockup
	// transaction descriptor is attached so the manual refund flow
	// becomes available.
	case c.swap.Kind == swapdb.KindSubmarine && state.Refundable():
		return c.ensureLockupTransaction(ctx)
	}

	return nil
}

// cooperativeClaim fetches the claim parameters from the server, verifies the
// revealed preimage against the invoice payment hash and hands the partial
// signature request to the transaction builder.
func (c *coordinator) cooperativeClaim(ctx context.Context) error {
	if c.submitted {
		c.log.Infof("Cooperative claim already submitted, ignoring " +
			"duplicate event")
		return nil
	}

	details, err := c.cfg.server.GetClaimDetails(ctx, c.swap.Id)
	if err != nil {
		return fmt.Errorf("fetch claim details: %w", err)
	}

	preimage, err := lntypes.MakePreimageFromStr(details.Preimage)
	if err != nil {
		return fmt.Errorf("invalid server preimage: %w", err)
	}

	paymentHash, err := c.cfg.decoder.DecodePaymentHash(c.swap.Invoice)
	if err != nil {
		return fmt.Errorf("decode invoice: %w", err)
	}

	// The preimage is our proof that the server actually paid the
	// invoice. If it doesn't match we must not sign anything. The abort
	// is silent towards the user, a later event may retry.
	if !preimage.Matches(paymentHash) {
		c.log.Errorf("Server preimage does not match invoice "+
			"payment hash %v, refusing to sign claim", paymentHash)
		return nil
	}

	if c.swap.SwapTree == nil {
		return errors.New("swap record without swap tree")
	}

	err = c.cfg.builder.BuildCooperativeClaim(ctx, &CooperativeClaimTx{
		SwapId:          c.swap.Id,
		ClaimLeaf:       c.swap.SwapTree.ClaimLeaf,
		RefundLeaf:      c.swap.SwapTree.RefundLeaf,
		PrivateKey:      privKeyHex(c.swap.RefundPrivateKey),
		ServicePubKey:   c.swap.ClaimPubKey,
		TransactionHash: details.TransactionHash,
		PubNonce:        details.PubNonce,
	})
	if err != nil {
		// Leave submitted unset so that a further event may attempt
		// the claim again.
		c.log.Errorf("Cooperative claim failed: %v", err)
		return nil
	}

	c.submitted = true
	c.log.Infof("Cooperative claim signature submitted")

	return nil
}

// reverseClaim broadcasts the claim transaction of a reverse swap, retrying a
// bounded number of times with fixed pacing. Attempts are sequential and
// never overlap.
func (c *coordinator) reverseClaim(ctx context.Context,
	update *ServerUpdate) error {

	if c.submitted {
		c.log.Infof("Reverse claim already submitted, ignoring " +
			"duplicate event")
		return nil
	}

	if update.TransactionHex == "" {
		return errors.New("reverse swap update without lockup " +
			"transaction")
	}

	if c.swap.SwapTree == nil {
		return errors.New("swap record without swap tree")
	}

	claimTx := &ReverseClaimTx{
		SwapId:               c.swap.Id,
		ClaimLeaf:            c.swap.SwapTree.ClaimLeaf,
		RefundLeaf:           c.swap.SwapTree.RefundLeaf,
		PrivateKey:           privKeyHex(c.swap.ClaimPrivateKey),
		ServicePubKey:        c.swap.RefundPubKey,
		Preimage:             c.swap.Preimage.String(),
		LockupTransactionHex: update.TransactionHex,
		LockupAddress:        c.swap.LockupAddress,
		DestinationAddress:   c.swap.DestinationAddress,
		FeeRate:              c.swap.SweepFeeRate,
	}

	policy := c.cfg.reverseClaimRetry

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = c.cfg.builder.BuildReverseClaim(ctx, claimTx)
		if lastErr == nil {
			c.submitted = true
			c.log.Infof("Reverse claim broadcast on attempt %v",
				attempt)

			return nil
		}

		c.log.Warnf("Reverse claim attempt %v/%v failed: %v",
			attempt, policy.MaxAttempts, lastErr)

		if attempt == policy.MaxAttempts {
			break
		}

		select {
		case <-c.cfg.createDelayTimer(policy.Delay):

		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("reverse claim failed after %v attempts: %w",
		policy.MaxAttempts, lastErr)
}

// ensureLockupTransaction fetches and attaches the lockup transaction
// descriptor of a failed submarine swap if it isn't present yet. The attached
// descriptor unlocks the manual refund flow.
func (c *coordinator) ensureLockupTransaction(ctx context.Context) error {
	if c.swap.LockupTransaction != nil {
		return nil
	}

	lockupTx, err := c.cfg.server.GetLockupTransaction(ctx, c.swap.Id)
	if err != nil {
		return fmt.Errorf("fetch lockup transaction: %w", err)
	}

	err = c.cfg.store.SetLockupTransaction(
		ctx, c.swap.Id, c.swap.Kind, lockupTx,
	)
	if err != nil {
		return err
	}

	c.swap.LockupTransaction = lockupTx
	c.log.Infof("Attached lockup transaction %v, swap is refundable",
		lockupTx.TxId)

	return nil
}

// privKeyHex canonicalizes a private key for the external transaction
// builder, which expects a flat hex string over the 32-byte big-endian
// scalar.
func privKeyHex(key *btcec.PrivateKey) string {
	if key == nil {
		return ""
	}

	return hex.EncodeToString(key.Serialize())
}
