package swapd

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/stretchr/testify/require"
	"github.com/voltwallet/swapd/swapdb"
)

// newTestSubmarineSwap returns a stored submarine swap fixture.
func newTestSubmarineSwap(t *testing.T, id string) *swapdb.Swap {
	t.Helper()

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	return &swapdb.Swap{
		Id:                 id,
		Kind:               swapdb.KindSubmarine,
		State:              swapdb.StateInitiated,
		CreatedAt:          time.Unix(1730000000, 0),
		ExpectedAmount:     250000,
		TimeoutBlockHeight: 840000,
		LockupAddress:      "bcrt1ptestlockupaddress",
		ClaimPubKey:        "02server",
		RefundPubKey:       "03client",
		Invoice:            "lnbcrt_swap_invoice",
		RefundPrivateKey:   key,
		SwapTree: &swapdb.SwapTree{
			ClaimLeaf: swapdb.TreeLeaf{
				Version: 192, Output: "82012088a914",
			},
			RefundLeaf: swapdb.TreeLeaf{
				Version: 192, Output: "a914b2765221",
			},
		},
	}
}

// newTestReverseSwap returns a stored reverse swap fixture.
func newTestReverseSwap(t *testing.T, id string) *swapdb.Swap {
	t.Helper()

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var preimage lntypes.Preimage
	_, err = rand.Read(preimage[:])
	require.NoError(t, err)

	return &swapdb.Swap{
		Id:                 id,
		Kind:               swapdb.KindReverse,
		State:              swapdb.StateInitiated,
		CreatedAt:          time.Unix(1730000000, 0),
		OnchainAmount:      798000,
		TimeoutBlockHeight: 840144,
		LockupAddress:      "bcrt1ptestlockupaddress",
		DestinationAddress: "bcrt1qtestdestaddress",
		ClaimPubKey:        "02client",
		RefundPubKey:       "03server",
		Invoice:            "lnbcrt_mock_hold_invoice",
		SweepFeeRate:       3,
		ClaimPrivateKey:    key,
		Preimage:           &preimage,
		SwapTree: &swapdb.SwapTree{
			ClaimLeaf: swapdb.TreeLeaf{
				Version: 192, Output: "82012088a914",
			},
			RefundLeaf: swapdb.TreeLeaf{
				Version: 192, Output: "a914b2765221",
			},
		},
	}
}
