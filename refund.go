package swapd

import (
	"context"
	"errors"
	"fmt"

	"github.com/voltwallet/swapd/swapdb"
)

// RefundSwap builds and broadcasts the refund of a failed or expired
// submarine swap. The swap must be in a refundable state and its lockup
// transaction is fetched on demand if it hasn't been attached yet. Retrying
// is left to the caller, each invocation performs exactly one broadcast
// attempt.
func (s *Client) RefundSwap(ctx context.Context,
	request *RefundSwapRequest) error {

	swap, err := s.store.FetchSwap(
		ctx, request.SwapId, swapdb.KindSubmarine,
	)
	if err != nil {
		return err
	}

	if !swap.State.Refundable() {
		return fmt.Errorf("%w: swap %v is in state %v",
			ErrSwapNotRefundable, swap.Id, swap.State)
	}

	if request.DestAddr == nil {
		return errors.New("no destination address")
	}

	if !request.DestAddr.IsForNet(s.chainParams) {
		return ErrAddressWrongNet
	}

	if swap.SwapTree == nil {
		return errors.New("swap record without swap tree")
	}

	lockupTx := swap.LockupTransaction
	if lockupTx == nil {
		lockupTx, err = s.FetchLockupTransaction(ctx, swap.Id)
		if err != nil {
			return fmt.Errorf("fetch lockup transaction: %w", err)
		}
	}

	swapLog := &PrefixLog{Logger: log, SwapId: swap.Id}
	swapLog.Infof("Refunding swap to %v, lockup tx %v",
		request.DestAddr, lockupTx.TxId)

	err = s.builder.BuildRefund(ctx, &RefundTx{
		SwapId:             swap.Id,
		ClaimLeaf:          swap.SwapTree.ClaimLeaf,
		RefundLeaf:         swap.SwapTree.RefundLeaf,
		TransactionHex:     lockupTx.Hex,
		PrivateKey:         privKeyHex(swap.RefundPrivateKey),
		ServicePubKey:      swap.ClaimPubKey,
		FeeRate:            request.FeeRate,
		DestinationAddress: request.DestAddr.String(),
		IsTestnet:          s.isTestnet(),
	})
	if err != nil {
		return fmt.Errorf("build refund: %w", err)
	}

	swapLog.Infof("Refund broadcast")

	return nil
}
