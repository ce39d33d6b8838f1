package swapd

import (
	"context"
	"fmt"
	"testing"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/voltwallet/swapd/swapdb"
)

// serverMock implements a mock swap server.
type serverMock struct {
	submarineFees *PairFees
	reverseFees   *PairFees

	submarineFeesErr error
	reverseFeesErr   error

	createSubmarineErr error
	createReverseErr   error

	// preimageHash records the hash submitted with the latest reverse
	// swap creation request.
	preimageHash string

	// invoiceHashes maps the invoices handed out by the mock to their
	// payment hashes, for use by the mock decoder.
	invoiceHashes map[string]lntypes.Hash

	lockupTx       *swapdb.LockupTransaction
	lockupTxErr    error
	lockupTxCalls  int
	claimDetail    *claimDetails
	claimDetailErr error

	// updateChan and errChan are handed out by SubscribeSwapUpdates, the
	// test pushes updates into them directly.
	updateChan chan *ServerUpdate
	errChan    chan error

	subscribeErr error

	// subscribeCtx records the context the subscription was opened with,
	// so tests can assert its cancellation.
	subscribeCtx context.Context

	t *testing.T
}

// A compile-time flag to ensure that serverMock implements the
// swapServerClient interface.
var _ swapServerClient = (*serverMock)(nil)

func newServerMock(t *testing.T) *serverMock {
	return &serverMock{
		submarineFees: &PairFees{
			Percentage:    0.1,
			MinerFee:      500,
			MinimalAmount: 50000,
			MaximalAmount: 25000000,
		},
		reverseFees: &PairFees{
			Percentage:    0.25,
			MinerFee:      700,
			MinimalAmount: 50000,
			MaximalAmount: 25000000,
		},
		invoiceHashes: make(map[string]lntypes.Hash),
		updateChan:    make(chan *ServerUpdate, 8),
		errChan:       make(chan error, 1),
		t:             t,
	}
}

// testSwapTree is the taproot tree the mock returns on swap creation.
var testSwapTree = &swapTreeWire{
	ClaimLeaf:  treeLeafWire{Version: 192, Output: "82012088a914"},
	RefundLeaf: treeLeafWire{Version: 192, Output: "a914b2765221"},
}

// GetSubmarineFees returns the configured submarine fee schedule.
//
// NOTE: Part of the swapServerClient interface.
func (s *serverMock) GetSubmarineFees(_ context.Context) (*PairFees, error) {
	if s.submarineFeesErr != nil {
		return nil, s.submarineFeesErr
	}

	return s.submarineFees, nil
}

// GetReverseFees returns the configured reverse fee schedule.
//
// NOTE: Part of the swapServerClient interface.
func (s *serverMock) GetReverseFees(_ context.Context) (*PairFees, error) {
	if s.reverseFeesErr != nil {
		return nil, s.reverseFeesErr
	}

	return s.reverseFees, nil
}

// CreateSubmarineSwap accepts any invoice and returns a static quote.
//
// NOTE: Part of the swapServerClient interface.
func (s *serverMock) CreateSubmarineSwap(_ context.Context,
	req *newSubmarineSwapRequest) (*submarineSwapResponse, error) {

	if s.createSubmarineErr != nil {
		return nil, s.createSubmarineErr
	}

	if req.RefundPublicKey == "" {
		return nil, fmt.Errorf("no refund public key")
	}

	return &submarineSwapResponse{
		Id:                 "sub-1",
		Address:            "bcrt1ptestlockupaddress",
		ExpectedAmount:     250000,
		ClaimPublicKey:     "02server",
		TimeoutBlockHeight: 840000,
		SwapTree:           testSwapTree,
	}, nil
}

// CreateReverseSwap records the submitted preimage hash and hands out a mock
// hold invoice committing to it.
//
// NOTE: Part of the swapServerClient interface.
func (s *serverMock) CreateReverseSwap(_ context.Context,
	req *newReverseSwapRequest) (*reverseSwapResponse, error) {

	if s.createReverseErr != nil {
		return nil, s.createReverseErr
	}

	s.preimageHash = req.PreimageHash

	hash, err := lntypes.MakeHashFromStr(req.PreimageHash)
	if err != nil {
		return nil, fmt.Errorf("invalid preimage hash: %v", err)
	}

	invoice := "lnbcrt_mock_hold_invoice"
	s.invoiceHashes[invoice] = hash

	return &reverseSwapResponse{
		Id:                 "rev-1",
		Invoice:            invoice,
		LockupAddress:      "bcrt1ptestlockupaddress",
		RefundPublicKey:    "03server",
		OnchainAmount:      req.InvoiceAmount - 2000,
		TimeoutBlockHeight: 840144,
		SwapTree:           testSwapTree,
	}, nil
}

// GetLockupTransaction returns the configured lockup transaction descriptor.
//
// NOTE: Part of the swapServerClient interface.
func (s *serverMock) GetLockupTransaction(_ context.Context, _ string) (
	*swapdb.LockupTransaction, error) {

	s.lockupTxCalls++

	if s.lockupTxErr != nil {
		return nil, s.lockupTxErr
	}
	if s.lockupTx == nil {
		return nil, fmt.Errorf("no lockup transaction configured")
	}

	return s.lockupTx, nil
}

// GetClaimDetails returns the configured cooperative claim parameters.
//
// NOTE: Part of the swapServerClient interface.
func (s *serverMock) GetClaimDetails(_ context.Context, _ string) (
	*claimDetails, error) {

	if s.claimDetailErr != nil {
		return nil, s.claimDetailErr
	}
	if s.claimDetail == nil {
		return nil, fmt.Errorf("no claim details configured")
	}

	return s.claimDetail, nil
}

// SubscribeSwapUpdates hands out the test-controlled channels.
//
// NOTE: Part of the swapServerClient interface.
func (s *serverMock) SubscribeSwapUpdates(ctx context.Context, _ string) (
	<-chan *ServerUpdate, <-chan error, error) {

	if s.subscribeErr != nil {
		return nil, nil, s.subscribeErr
	}

	s.subscribeCtx = ctx

	return s.updateChan, s.errChan, nil
}

// pushUpdate delivers a status update through the mock subscription.
func (s *serverMock) pushUpdate(swapId string, state swapdb.SwapState) {
	s.updateChan <- &ServerUpdate{
		SwapId: swapId,
		State:  state,
	}
}

// mockDecoder resolves payment hashes for the invoices handed out by the
// server mock.
type mockDecoder struct {
	server *serverMock
}

// A compile-time flag to ensure that mockDecoder implements the
// InvoiceDecoder interface.
var _ InvoiceDecoder = (*mockDecoder)(nil)

// DecodePaymentHash returns the payment hash of a mock invoice.
//
// NOTE: Part of the InvoiceDecoder interface.
func (d *mockDecoder) DecodePaymentHash(invoice string) (lntypes.Hash, error) {
	hash, ok := d.server.invoiceHashes[invoice]
	if !ok {
		return lntypes.Hash{}, fmt.Errorf("unknown invoice %q", invoice)
	}

	return hash, nil
}

// registerInvoice makes an invoice decodable by the mock decoder.
func (d *mockDecoder) registerInvoice(invoice string, hash lntypes.Hash) {
	d.server.invoiceHashes[invoice] = hash
}
