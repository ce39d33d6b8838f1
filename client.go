package swapd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/voltwallet/swapd/swapdb"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrSwapNotRefundable is returned when a refund is requested for a
	// swap that is not in a refundable state.
	ErrSwapNotRefundable = errors.New("swap is not in a refundable state")

	// ErrAddressWrongNet is returned when a destination address does not
	// belong to the configured chain.
	ErrAddressWrongNet = errors.New("address is not for the active " +
		"network")

	// ErrInvoiceMismatch is returned when the hold invoice of a reverse
	// swap does not commit to the preimage hash we submitted.
	ErrInvoiceMismatch = errors.New("server invoice does not commit to " +
		"our preimage")
)

// ClientConfig is the exported configuration structure that is required to
// instantiate the swap client.
type ClientConfig struct {
	// ServerURL is the base URL of the swap server REST api. The push
	// channel endpoint is derived from it.
	ServerURL string

	// ChainParams identify the chain the engine operates on.
	ChainParams *chaincfg.Params

	// TxBuilder constructs, signs and broadcasts settlement
	// transactions.
	TxBuilder TxBuilder

	// InvoiceDecoder extracts payment hashes from BOLT11 invoices. If
	// unset, a zpay32 backed decoder for ChainParams is used.
	InvoiceDecoder InvoiceDecoder

	// Clock is the time source for creation timestamps. If unset, the
	// default wall clock is used.
	Clock clock.Clock

	// ReverseClaimRetry overrides the retry strategy for reverse claim
	// broadcasts. If unset, 11 attempts with one second pacing are used.
	ReverseClaimRetry *RetryPolicy

	// CreateDelayTimer overrides the pacing timer factory. Tests use
	// this to simulate bounded failure sequences deterministically.
	CreateDelayTimer func(delay time.Duration) <-chan time.Time
}

// Client performs the client side part of submarine and reverse swaps. It
// negotiates swaps with the server, persists their secrets and drives their
// settlement.
type Client struct {
	store       swapdb.SwapStore
	server      swapServerClient
	builder     TxBuilder
	decoder     InvoiceDecoder
	clock       clock.Clock
	chainParams *chaincfg.Params

	retryPolicy      RetryPolicy
	createDelayTimer func(delay time.Duration) <-chan time.Time

	// feeMtx guards the cached fee schedule.
	feeMtx sync.Mutex
	fees   FeeSchedule
}

// NewClient returns a new instance to initiate swaps with.
func NewClient(store swapdb.SwapStore, cfg *ClientConfig) (*Client, error) {
	if cfg.ChainParams == nil {
		return nil, errors.New("no chain params configured")
	}

	if cfg.TxBuilder == nil {
		return nil, errors.New("no transaction builder configured")
	}

	server, err := newSwapServerClient(cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	client := &Client{
		store:       store,
		server:      server,
		builder:     cfg.TxBuilder,
		decoder:     cfg.InvoiceDecoder,
		clock:       cfg.Clock,
		chainParams: cfg.ChainParams,
		retryPolicy: defaultReverseClaimRetry,
		createDelayTimer: func(d time.Duration) <-chan time.Time {
			return time.NewTimer(d).C
		},
	}

	if client.decoder == nil {
		client.decoder = &Bolt11Decoder{Params: cfg.ChainParams}
	}

	if client.clock == nil {
		client.clock = clock.NewDefaultClock()
	}

	if cfg.ReverseClaimRetry != nil {
		client.retryPolicy = *cfg.ReverseClaimRetry
	}

	if cfg.CreateDelayTimer != nil {
		client.createDelayTimer = cfg.CreateDelayTimer
	}

	return client, nil
}

// GetFees fetches the current fee schedules of both swap directions from the
// server. A failure on either side is suppressed and leaves the previously
// fetched schedule for that side in place; fetching is not atomic across the
// two directions.
func (s *Client) GetFees(ctx context.Context) *FeeSchedule {
	s.feeMtx.Lock()
	defer s.feeMtx.Unlock()

	submarine, err := s.server.GetSubmarineFees(ctx)
	if err != nil {
		log.Warnf("Fetching submarine fee schedule: %v", err)
	} else {
		s.fees.Submarine = submarine
	}

	reverse, err := s.server.GetReverseFees(ctx)
	if err != nil {
		log.Warnf("Fetching reverse fee schedule: %v", err)
	} else {
		s.fees.Reverse = reverse
	}

	fees := s.fees
	return &fees
}

// CreateSubmarineSwap negotiates a new submarine swap with the server. The
// record, including the freshly generated refund key, is persisted before the
// call returns so the secret survives a process restart.
func (s *Client) CreateSubmarineSwap(ctx context.Context,
	request *SubmarineSwapRequest) (*swapdb.Swap, error) {

	// Make sure the invoice is decodable before we commit to anything.
	_, err := s.decoder.DecodePaymentHash(request.Invoice)
	if err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}

	refundKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	refundPubKey := hex.EncodeToString(
		refundKey.PubKey().SerializeCompressed(),
	)

	resp, err := s.server.CreateSubmarineSwap(
		ctx, &newSubmarineSwapRequest{
			Invoice:         request.Invoice,
			RefundPublicKey: refundPubKey,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create submarine swap: %w", err)
	}

	swap := &swapdb.Swap{
		Id:                 resp.Id,
		Kind:               swapdb.KindSubmarine,
		State:              swapdb.StateInitiated,
		CreatedAt:          s.clock.Now(),
		ExpectedAmount:     btcutil.Amount(resp.ExpectedAmount),
		TimeoutBlockHeight: resp.TimeoutBlockHeight,
		LockupAddress:      resp.Address,
		ClaimPubKey:        resp.ClaimPublicKey,
		RefundPubKey:       refundPubKey,
		Invoice:            request.Invoice,
		RefundPrivateKey:   refundKey,
	}
	if resp.SwapTree != nil {
		swap.SwapTree = resp.SwapTree.toSwapTree()
	}

	if err := s.store.AddSwap(ctx, swap); err != nil {
		return nil, err
	}

	log.Infof("Created submarine swap %v, lockup address %v, expected "+
		"amount %v", swap.Id, swap.LockupAddress, swap.ExpectedAmount)

	return swap, nil
}

// CreateReverseSwap negotiates a new reverse swap with the server. A fresh
// preimage and claim key are generated, only the preimage hash is shared with
// the server, and the record is persisted before the call returns.
func (s *Client) CreateReverseSwap(ctx context.Context,
	request *ReverseSwapRequest) (*swapdb.Swap, error) {

	if request.DestAddr == nil {
		return nil, errors.New("no destination address")
	}

	if !request.DestAddr.IsForNet(s.chainParams) {
		return nil, ErrAddressWrongNet
	}

	var preimage lntypes.Preimage
	if _, err := rand.Read(preimage[:]); err != nil {
		return nil, err
	}

	claimKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	claimPubKey := hex.EncodeToString(
		claimKey.PubKey().SerializeCompressed(),
	)

	resp, err := s.server.CreateReverseSwap(
		ctx, &newReverseSwapRequest{
			InvoiceAmount:  int64(request.Amount),
			ClaimPublicKey: claimPubKey,
			PreimageHash:   preimage.Hash().String(),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create reverse swap: %w", err)
	}

	// The hold invoice must commit to the preimage we generated,
	// otherwise paying it wouldn't entitle us to the on-chain funds.
	invoiceHash, err := s.decoder.DecodePaymentHash(resp.Invoice)
	if err != nil {
		return nil, fmt.Errorf("decode server invoice: %w", err)
	}
	if !preimage.Matches(invoiceHash) {
		return nil, ErrInvoiceMismatch
	}

	swap := &swapdb.Swap{
		Id:                 resp.Id,
		Kind:               swapdb.KindReverse,
		State:              swapdb.StateInitiated,
		CreatedAt:          s.clock.Now(),
		OnchainAmount:      btcutil.Amount(resp.OnchainAmount),
		TimeoutBlockHeight: resp.TimeoutBlockHeight,
		LockupAddress:      resp.LockupAddress,
		DestinationAddress: request.DestAddr.String(),
		ClaimPubKey:        claimPubKey,
		RefundPubKey:       resp.RefundPublicKey,
		Invoice:            resp.Invoice,
		SweepFeeRate:       request.SweepFeeRate,
		ClaimPrivateKey:    claimKey,
		Preimage:           &preimage,
	}
	if resp.SwapTree != nil {
		swap.SwapTree = resp.SwapTree.toSwapTree()
	}

	if err := s.store.AddSwap(ctx, swap); err != nil {
		return nil, err
	}

	log.Infof("Created reverse swap %v, onchain amount %v to %v",
		swap.Id, swap.OnchainAmount, swap.DestinationAddress)

	return swap, nil
}

// ListSwaps returns all swaps of the given kind currently in the store,
// newest first.
func (s *Client) ListSwaps(ctx context.Context, kind swapdb.SwapKind) (
	[]*swapdb.Swap, error) {

	return s.store.ListSwaps(ctx, kind)
}

// PendingSwaps returns all swaps of both kinds that are not in a terminal
// state.
func (s *Client) PendingSwaps(ctx context.Context) ([]*swapdb.Swap, error) {
	var pending []*swapdb.Swap

	for _, kind := range []swapdb.SwapKind{
		swapdb.KindSubmarine, swapdb.KindReverse,
	} {
		swaps, err := s.store.ListSwaps(ctx, kind)
		if err != nil {
			return nil, err
		}

		for _, swap := range swaps {
			if swap.State.IsFinal() {
				continue
			}

			pending = append(pending, swap)
		}
	}

	return pending, nil
}

// TrackSwap subscribes to the updates of a single swap and drives its
// settlement. The call blocks until the swap reaches a terminal state, the
// subscription fails or the context is cancelled.
func (s *Client) TrackSwap(ctx context.Context, swapId string,
	kind swapdb.SwapKind) error {

	swap, err := s.store.FetchSwap(ctx, swapId, kind)
	if err != nil {
		return err
	}

	return s.trackSwap(ctx, swap)
}

// ResumeSwaps restores tracking for all pending swaps in the store. Tracking
// failures of individual swaps are logged and do not affect other swaps.
func (s *Client) ResumeSwaps(ctx context.Context) error {
	pending, err := s.PendingSwaps(ctx)
	if err != nil {
		return err
	}

	var group errgroup.Group
	for _, swap := range pending {
		swap := swap

		group.Go(func() error {
			if err := s.trackSwap(ctx, swap); err != nil {
				log.Errorf("Swap %v tracking stopped: %v",
					swap.Id, err)
			}

			return nil
		})
	}

	return group.Wait()
}

// trackSwap runs a tracker and its settlement coordinator for a single swap.
func (s *Client) trackSwap(ctx context.Context, swap *swapdb.Swap) error {
	coordinator := newCoordinator(&coordinatorConfig{
		store:             s.store,
		server:            s.server,
		builder:           s.builder,
		decoder:           s.decoder,
		reverseClaimRetry: s.retryPolicy,
		createDelayTimer:  s.createDelayTimer,
		isTestnet:         s.isTestnet(),
	}, swap)

	tracker := newTracker(&trackerConfig{
		store:     s.store,
		subscribe: s.server.SubscribeSwapUpdates,
	}, swap, coordinator)

	return tracker.run(ctx)
}

// FetchLockupTransaction fetches and attaches the lockup transaction of a
// submarine swap, making the manual refund flow available.
func (s *Client) FetchLockupTransaction(ctx context.Context,
	swapId string) (*swapdb.LockupTransaction, error) {

	lockupTx, err := s.server.GetLockupTransaction(ctx, swapId)
	if err != nil {
		return nil, err
	}

	err = s.store.SetLockupTransaction(
		ctx, swapId, swapdb.KindSubmarine, lockupTx,
	)
	if err != nil {
		return nil, err
	}

	return lockupTx, nil
}

// isTestnet returns true if the engine runs against anything but mainnet.
func (s *Client) isTestnet() bool {
	return s.chainParams.Net != wire.MainNet
}
