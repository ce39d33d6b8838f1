package swapd

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/stretchr/testify/require"
	"github.com/voltwallet/swapd/swapdb"
)

var testTime = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// newTestClient assembles a client over the package mocks. The REST server
// client created by NewClient is replaced with the server mock.
func newTestClient(t *testing.T) (*Client, *storeMock, *serverMock,
	*builderMock) {

	t.Helper()

	store := newStoreMock(t)
	server := newServerMock(t)
	builder := newBuilderMock(t)

	client, err := NewClient(store, &ClientConfig{
		ServerURL:      "http://localhost:9061",
		ChainParams:    &chaincfg.RegressionNetParams,
		TxBuilder:      builder,
		InvoiceDecoder: &mockDecoder{server: server},
		Clock:          clock.NewTestClock(testTime),
		ReverseClaimRetry: &RetryPolicy{
			MaxAttempts: 4,
			Delay:       time.Millisecond,
		},
		CreateDelayTimer: immediateTimer,
	})
	require.NoError(t, err)

	client.server = server

	return client, store, server, builder
}

// testAddress derives a fresh p2wpkh address for the given network.
func testAddress(t *testing.T, params *chaincfg.Params) btcutil.Address {
	t.Helper()

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(key.PubKey().SerializeCompressed()), params,
	)
	require.NoError(t, err)

	return addr
}

// TestCreateSubmarineSwap tests the creation flow of a submarine swap,
// including the secret material of the stored record.
func TestCreateSubmarineSwap(t *testing.T) {
	ctx := context.Background()
	client, store, server, _ := newTestClient(t)

	// Make the swap invoice known to the decoder.
	var preimage lntypes.Preimage
	_, err := rand.Read(preimage[:])
	require.NoError(t, err)

	decoder := client.decoder.(*mockDecoder)
	decoder.registerInvoice("lnbcrt_swap_invoice", preimage.Hash())

	swap, err := client.CreateSubmarineSwap(ctx, &SubmarineSwapRequest{
		Invoice: "lnbcrt_swap_invoice",
	})
	require.NoError(t, err)

	stored := store.assertSwapStored(swap.Id, swapdb.KindSubmarine)
	require.Equal(t, swapdb.StateInitiated, stored.State)
	require.Equal(t, testTime, stored.CreatedAt)
	require.Equal(t, btcutil.Amount(250000), stored.ExpectedAmount)
	require.Equal(t, "lnbcrt_swap_invoice", stored.Invoice)
	require.Equal(t, "02server", stored.ClaimPubKey)
	require.NotNil(t, stored.SwapTree)

	// Only the refund key is present, reverse swap secrets must not be.
	require.NotNil(t, stored.RefundPrivateKey)
	require.Nil(t, stored.Preimage)
	require.Nil(t, stored.ClaimPrivateKey)

	// An undecodable invoice fails before the server is involved.
	_, err = client.CreateSubmarineSwap(ctx, &SubmarineSwapRequest{
		Invoice: "lnbcrt_unknown_invoice",
	})
	require.Error(t, err)

	// A server-reported error leaves nothing behind in the store.
	server.createSubmarineErr = ServerError("invalid invoice")
	decoder.registerInvoice("lnbcrt_other_invoice", preimage.Hash())

	_, err = client.CreateSubmarineSwap(ctx, &SubmarineSwapRequest{
		Invoice: "lnbcrt_other_invoice",
	})
	require.ErrorContains(t, err, "invalid invoice")
	require.Len(t, store.swaps, 1)
}

// TestCreateReverseSwap tests the creation flow of a reverse swap. Only the
// preimage hash may reach the server and the returned invoice must commit to
// the locally generated preimage.
func TestCreateReverseSwap(t *testing.T) {
	ctx := context.Background()
	client, store, server, _ := newTestClient(t)

	destAddr := testAddress(t, &chaincfg.RegressionNetParams)

	swap, err := client.CreateReverseSwap(ctx, &ReverseSwapRequest{
		Amount:       800000,
		DestAddr:     destAddr,
		SweepFeeRate: 3,
	})
	require.NoError(t, err)

	stored := store.assertSwapStored(swap.Id, swapdb.KindReverse)
	require.Equal(t, swapdb.StateInitiated, stored.State)
	require.Equal(t, btcutil.Amount(798000), stored.OnchainAmount)
	require.Equal(t, destAddr.String(), stored.DestinationAddress)
	require.Equal(t, uint64(3), stored.SweepFeeRate)
	require.Equal(t, "03server", stored.RefundPubKey)

	// The preimage and claim key exist locally, only the hash went over
	// the wire.
	require.NotNil(t, stored.Preimage)
	require.NotNil(t, stored.ClaimPrivateKey)
	require.Nil(t, stored.RefundPrivateKey)
	require.Equal(t, stored.Preimage.Hash().String(), server.preimageHash)

	// An address for the wrong network is rejected before the server is
	// involved.
	server.preimageHash = ""
	_, err = client.CreateReverseSwap(ctx, &ReverseSwapRequest{
		Amount:   800000,
		DestAddr: testAddress(t, &chaincfg.MainNetParams),
	})
	require.ErrorIs(t, err, ErrAddressWrongNet)
	require.Empty(t, server.preimageHash)

	// A server-reported error leaves nothing behind in the store.
	server.createReverseErr = ServerError("amount too low")
	_, err = client.CreateReverseSwap(ctx, &ReverseSwapRequest{
		Amount:   800000,
		DestAddr: destAddr,
	})
	require.ErrorContains(t, err, "amount too low")
	require.Len(t, store.swaps, 1)
}

// TestCreateReverseSwapInvoiceMismatch asserts that a hold invoice not
// committing to our preimage aborts the swap before anything is persisted.
func TestCreateReverseSwapInvoiceMismatch(t *testing.T) {
	ctx := context.Background()
	client, store, _, _ := newTestClient(t)

	// Swap in a decoder that resolves every invoice to the zero hash, so
	// the handed out invoice no longer commits to our preimage.
	client.decoder = &staticHashDecoder{}

	_, err := client.CreateReverseSwap(ctx, &ReverseSwapRequest{
		Amount:   800000,
		DestAddr: testAddress(t, &chaincfg.RegressionNetParams),
	})
	require.ErrorIs(t, err, ErrInvoiceMismatch)
	require.Empty(t, store.swaps)
}

// staticHashDecoder always resolves to the zero hash.
type staticHashDecoder struct{}

func (d *staticHashDecoder) DecodePaymentHash(string) (lntypes.Hash, error) {
	return lntypes.Hash{}, nil
}

// TestGetFees asserts that fee schedule fetches are independent per swap
// direction and that a failing side keeps its previous value.
func TestGetFees(t *testing.T) {
	ctx := context.Background()
	client, _, server, _ := newTestClient(t)

	fees := client.GetFees(ctx)
	require.NotNil(t, fees.Submarine)
	require.NotNil(t, fees.Reverse)
	require.Equal(t, 0.25, fees.Reverse.Percentage)

	// The reverse side starts failing while the submarine schedule
	// changes. The stale reverse schedule is kept.
	server.reverseFeesErr = ServerError("maintenance")
	server.submarineFees = &PairFees{
		Percentage:    0.5,
		MinerFee:      800,
		MinimalAmount: 50000,
		MaximalAmount: 25000000,
	}

	fees = client.GetFees(ctx)
	require.Equal(t, 0.5, fees.Submarine.Percentage)
	require.NotNil(t, fees.Reverse)
	require.Equal(t, 0.25, fees.Reverse.Percentage)
}

// TestPendingSwaps asserts that only non-terminal swaps of both kinds are
// reported as pending.
func TestPendingSwaps(t *testing.T) {
	ctx := context.Background()
	client, store, _, _ := newTestClient(t)

	add := func(id string, kind swapdb.SwapKind, state swapdb.SwapState) {
		swap := newTestSubmarineSwap(t, id)
		if kind == swapdb.KindReverse {
			swap = newTestReverseSwap(t, id)
		}
		swap.State = state
		require.NoError(t, store.AddSwap(ctx, swap))
	}

	add("sub-pending", swapdb.KindSubmarine, swapdb.StateInvoiceSet)
	add("sub-done", swapdb.KindSubmarine, swapdb.StateTransactionClaimed)
	add("rev-pending", swapdb.KindReverse, swapdb.StateTransactionMempool)
	add("rev-failed", swapdb.KindReverse, swapdb.StateInvoiceExpired)

	pending, err := client.PendingSwaps(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	ids := []string{pending[0].Id, pending[1].Id}
	require.Contains(t, ids, "sub-pending")
	require.Contains(t, ids, "rev-pending")
}

// TestTrackSwap asserts that tracking an existing swap consumes its update
// stream until a terminal state and persists the transitions.
func TestTrackSwap(t *testing.T) {
	ctx := context.Background()
	client, store, server, builder := newTestClient(t)

	swap := newTestReverseSwap(t, "rev-1")
	require.NoError(t, store.AddSwap(ctx, swap))

	server.pushUpdate(swap.Id, swapdb.StateCreated)
	server.pushUpdate(swap.Id, swapdb.StateInvoiceExpired)

	err := client.TrackSwap(ctx, swap.Id, swapdb.KindReverse)
	require.NoError(t, err)

	stored := store.assertSwapStored(swap.Id, swapdb.KindReverse)
	require.Equal(t, swapdb.StateInvoiceExpired, stored.State)

	// Neither state warrants a settlement transaction.
	require.Empty(t, builder.reverseClaims)
	require.Empty(t, builder.cooperativeClaims)

	// Tracking an unknown swap fails up front.
	err = client.TrackSwap(ctx, "missing", swapdb.KindReverse)
	require.ErrorIs(t, err, swapdb.ErrSwapNotFound)
}
