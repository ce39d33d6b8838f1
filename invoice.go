package swapd

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/zpay32"
)

// Bolt11Decoder is the default InvoiceDecoder, backed by lnd's zpay32.
type Bolt11Decoder struct {
	// Params identify the chain the invoice must be encoded for.
	Params *chaincfg.Params
}

// A compile-time flag to ensure that Bolt11Decoder implements the
// InvoiceDecoder interface.
var _ InvoiceDecoder = (*Bolt11Decoder)(nil)

// DecodePaymentHash returns the payment hash committed to by the given
// invoice.
//
// NOTE: Part of the InvoiceDecoder interface.
func (d *Bolt11Decoder) DecodePaymentHash(invoice string) (lntypes.Hash,
	error) {

	payReq, err := zpay32.Decode(invoice, d.Params)
	if err != nil {
		return lntypes.Hash{}, err
	}

	return lntypes.Hash(*payReq.PaymentHash), nil
}
