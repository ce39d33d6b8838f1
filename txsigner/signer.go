// Package txsigner provides an http backed implementation of the settlement
// transaction builder. The actual transaction construction, signing and
// broadcasting happens in an external signer service that holds the wallet;
// this package only ships the settlement parameters to it.
package txsigner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voltwallet/swapd"
)

// defaultRequestTimeout is the maximum time a signer request may take. Claim
// requests include a broadcast, so this is deliberately generous.
const defaultRequestTimeout = time.Minute

// Config holds the connection parameters of the external signer service.
type Config struct {
	// BaseURL is the base URL of the signer's REST api.
	BaseURL string

	// Timeout overrides the per-request timeout. Zero means the default.
	Timeout time.Duration
}

// HttpTxBuilder forwards settlement transaction requests to an external
// signer service over REST.
type HttpTxBuilder struct {
	baseURL    string
	httpClient *http.Client
}

// A compile-time flag to ensure that HttpTxBuilder implements the TxBuilder
// interface.
var _ swapd.TxBuilder = (*HttpTxBuilder)(nil)

// New returns a transaction builder that talks to the signer service at the
// configured base URL.
func New(cfg *Config) (*HttpTxBuilder, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("no signer url configured")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}

	return &HttpTxBuilder{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// signerResponse is the common response shape of the signer service. A
// non-empty error field carries a semantic failure.
type signerResponse struct {
	TxId  string `json:"txId"`
	Error string `json:"error"`
}

// post ships a settlement request to the signer and surfaces semantic
// failures as errors.
func (b *HttpTxBuilder) post(ctx context.Context, path string,
	body interface{}) (*signerResponse, error) {

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result signerResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("signer status %v",
				resp.StatusCode)
		}

		return nil, err
	}

	if result.Error != "" {
		return nil, errors.New(result.Error)
	}

	return &result, nil
}

// BuildCooperativeClaim produces the client's partial signature for a
// cooperative submarine claim and submits it to the server.
//
// NOTE: Part of the TxBuilder interface.
func (b *HttpTxBuilder) BuildCooperativeClaim(ctx context.Context,
	tx *swapd.CooperativeClaimTx) error {

	_, err := b.post(ctx, "/cooperative-claim", tx)
	if err != nil {
		return err
	}

	log.Debugf("Cooperative claim for swap %v signed", tx.SwapId)

	return nil
}

// BuildReverseClaim constructs and broadcasts the claim transaction of a
// reverse swap.
//
// NOTE: Part of the TxBuilder interface.
func (b *HttpTxBuilder) BuildReverseClaim(ctx context.Context,
	tx *swapd.ReverseClaimTx) error {

	resp, err := b.post(ctx, "/reverse-claim", tx)
	if err != nil {
		return err
	}

	log.Debugf("Reverse claim for swap %v broadcast as %v", tx.SwapId,
		resp.TxId)

	return nil
}

// BuildRefund constructs and broadcasts the refund transaction of a
// submarine swap.
//
// NOTE: Part of the TxBuilder interface.
func (b *HttpTxBuilder) BuildRefund(ctx context.Context,
	tx *swapd.RefundTx) error {

	resp, err := b.post(ctx, "/refund", tx)
	if err != nil {
		return err
	}

	log.Debugf("Refund for swap %v broadcast as %v", tx.SwapId, resp.TxId)

	return nil
}
