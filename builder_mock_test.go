package swapd

import (
	"context"
	"testing"
	"time"
)

// builderMock implements a mock settlement transaction builder.
type builderMock struct {
	cooperativeClaims []*CooperativeClaimTx
	reverseClaims     []*ReverseClaimTx
	refunds           []*RefundTx

	cooperativeErr error
	refundErr      error

	// reverseErrs is a queue of errors returned by successive
	// BuildReverseClaim calls. Once drained, calls succeed.
	reverseErrs []error

	t *testing.T
}

// A compile-time flag to ensure that builderMock implements the TxBuilder
// interface.
var _ TxBuilder = (*builderMock)(nil)

func newBuilderMock(t *testing.T) *builderMock {
	return &builderMock{t: t}
}

// BuildCooperativeClaim records the claim request.
//
// NOTE: Part of the TxBuilder interface.
func (b *builderMock) BuildCooperativeClaim(_ context.Context,
	tx *CooperativeClaimTx) error {

	if b.cooperativeErr != nil {
		return b.cooperativeErr
	}

	b.cooperativeClaims = append(b.cooperativeClaims, tx)

	return nil
}

// BuildReverseClaim records the claim request, returning queued errors first.
//
// NOTE: Part of the TxBuilder interface.
func (b *builderMock) BuildReverseClaim(_ context.Context,
	tx *ReverseClaimTx) error {

	b.reverseClaims = append(b.reverseClaims, tx)

	if len(b.reverseErrs) > 0 {
		err := b.reverseErrs[0]
		b.reverseErrs = b.reverseErrs[1:]
		return err
	}

	return nil
}

// BuildRefund records the refund request.
//
// NOTE: Part of the TxBuilder interface.
func (b *builderMock) BuildRefund(_ context.Context, tx *RefundTx) error {
	if b.refundErr != nil {
		return b.refundErr
	}

	b.refunds = append(b.refunds, tx)

	return nil
}

// immediateTimer is a retry pacing timer that fires without delay, so tests
// can run bounded failure sequences deterministically.
func immediateTimer(_ time.Duration) <-chan time.Time {
	c := make(chan time.Time, 1)
	c <- time.Time{}
	return c
}
