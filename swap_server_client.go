package swapd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/gorilla/websocket"
	"github.com/voltwallet/swapd/swapdb"
)

var (
	// serverRequestTimeout is the maximum time a REST request to the
	// server is allowed to take.
	serverRequestTimeout = 30 * time.Second

	// errServerSubscriptionComplete is returned when the server closes
	// the push channel of a swap regularly.
	errServerSubscriptionComplete = errors.New(
		"server subscription complete")
)

// ServerError is an error string reported by the swap server inside a
// response payload. It is surfaced verbatim to the initiating flow.
type ServerError string

// Error implements the error interface.
func (e ServerError) Error() string {
	return string(e)
}

// ServerUpdate is a single status push for a swap, decoded from the raw
// provider envelope at the api boundary.
type ServerUpdate struct {
	// SwapId is the swap the update belongs to.
	SwapId string

	// State is the decoded swap state.
	State swapdb.SwapState

	// FailureReason is an optional failure description.
	FailureReason string

	// TransactionId and TransactionHex describe the lockup transaction
	// if the update carries one (reverse swap mempool/confirmed events).
	TransactionId  string
	TransactionHex string

	// Timestamp is the client receive time of the update.
	Timestamp time.Time
}

// claimDetails are the cooperative claim parameters of a submarine swap,
// fetched from the server when it signals claim readiness.
type claimDetails struct {
	// Preimage is the hex encoded invoice preimage revealed by the
	// server.
	Preimage string

	// TransactionHash is the sighash of the server's claim transaction.
	TransactionHash string

	// PubNonce is the server's musig2 public nonce.
	PubNonce string
}

// newSubmarineSwapRequest are the parameters submitted to the server to
// create a submarine swap.
type newSubmarineSwapRequest struct {
	Invoice         string `json:"invoice"`
	RefundPublicKey string `json:"refundPublicKey"`
}

// newReverseSwapRequest are the parameters submitted to the server to create
// a reverse swap. Only the hash of the preimage is shared.
type newReverseSwapRequest struct {
	InvoiceAmount  int64  `json:"invoiceAmount"`
	ClaimPublicKey string `json:"claimPublicKey"`
	PreimageHash   string `json:"preimageHash"`
}

// swapTreeWire is the wire encoding of the taproot swap tree.
type swapTreeWire struct {
	ClaimLeaf  treeLeafWire `json:"claimLeaf"`
	RefundLeaf treeLeafWire `json:"refundLeaf"`
}

type treeLeafWire struct {
	Version uint8  `json:"version"`
	Output  string `json:"output"`
}

// toSwapTree converts the wire tree into its store representation.
func (t *swapTreeWire) toSwapTree() *swapdb.SwapTree {
	return &swapdb.SwapTree{
		ClaimLeaf: swapdb.TreeLeaf{
			Version: t.ClaimLeaf.Version,
			Output:  t.ClaimLeaf.Output,
		},
		RefundLeaf: swapdb.TreeLeaf{
			Version: t.RefundLeaf.Version,
			Output:  t.RefundLeaf.Output,
		},
	}
}

// submarineSwapResponse is the server response to a submarine swap creation.
type submarineSwapResponse struct {
	Id                 string        `json:"id"`
	Address            string        `json:"address"`
	ExpectedAmount     int64         `json:"expectedAmount"`
	ClaimPublicKey     string        `json:"claimPublicKey"`
	TimeoutBlockHeight uint32        `json:"timeoutBlockHeight"`
	SwapTree           *swapTreeWire `json:"swapTree"`

	Error string `json:"error"`
}

// reverseSwapResponse is the server response to a reverse swap creation.
type reverseSwapResponse struct {
	Id                 string        `json:"id"`
	Invoice            string        `json:"invoice"`
	LockupAddress      string        `json:"lockupAddress"`
	RefundPublicKey    string        `json:"refundPublicKey"`
	OnchainAmount      int64         `json:"onchainAmount"`
	TimeoutBlockHeight uint32        `json:"timeoutBlockHeight"`
	SwapTree           *swapTreeWire `json:"swapTree"`

	Error string `json:"error"`
}

// feesResponse is the fee schedule of a single swap direction.
type feesResponse struct {
	Percentage float64 `json:"percentage"`
	MinerFees  int64   `json:"minerFees"`
	Limits     struct {
		Minimal int64 `json:"minimal"`
		Maximal int64 `json:"maximal"`
	} `json:"limits"`

	Error string `json:"error"`
}

// lockupTransactionResponse is the lockup transaction descriptor of a
// submarine swap.
type lockupTransactionResponse struct {
	Id                 string `json:"id"`
	Hex                string `json:"hex"`
	TimeoutBlockHeight uint32 `json:"timeoutBlockHeight"`

	Error string `json:"error"`
}

// claimDetailsResponse are the cooperative claim parameters of a submarine
// swap.
type claimDetailsResponse struct {
	Preimage        string `json:"preimage"`
	TransactionHash string `json:"transactionHash"`
	PubNonce        string `json:"pubNonce"`

	Error string `json:"error"`
}

// subscribeMessage is the message written to the push channel to subscribe to
// the updates of a single swap.
type subscribeMessage struct {
	Op      string   `json:"op"`
	Channel string   `json:"channel"`
	Args    []string `json:"args"`
}

// updateEnvelope is the message envelope of the push channel.
type updateEnvelope struct {
	Event   string         `json:"event"`
	Channel string         `json:"channel"`
	Args    []updateNotice `json:"args"`
}

// updateNotice is a single swap update inside a push envelope.
type updateNotice struct {
	Id            string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failureReason"`
	Error         string `json:"error"`

	Transaction *struct {
		Id  string `json:"id"`
		Hex string `json:"hex"`
	} `json:"transaction"`
}

// swapServerClient is the client side contract of the swap provider api.
// This interface exists to be able to implement a stub.
type swapServerClient interface {
	// GetSubmarineFees fetches the submarine swap fee schedule.
	GetSubmarineFees(ctx context.Context) (*PairFees, error)

	// GetReverseFees fetches the reverse swap fee schedule.
	GetReverseFees(ctx context.Context) (*PairFees, error)

	// CreateSubmarineSwap creates a new submarine swap order.
	CreateSubmarineSwap(ctx context.Context,
		req *newSubmarineSwapRequest) (*submarineSwapResponse, error)

	// CreateReverseSwap creates a new reverse swap order.
	CreateReverseSwap(ctx context.Context,
		req *newReverseSwapRequest) (*reverseSwapResponse, error)

	// GetLockupTransaction fetches the lockup transaction descriptor of
	// a submarine swap.
	GetLockupTransaction(ctx context.Context, swapId string) (
		*swapdb.LockupTransaction, error)

	// GetClaimDetails fetches the cooperative claim parameters of a
	// submarine swap.
	GetClaimDetails(ctx context.Context, swapId string) (*claimDetails,
		error)

	// SubscribeSwapUpdates opens the push channel for a single swap id.
	// The update channel yields decoded status updates until the error
	// channel signals the end of the subscription.
	SubscribeSwapUpdates(ctx context.Context, swapId string) (
		<-chan *ServerUpdate, <-chan error, error)
}

// restSwapServerClient talks to the swap provider's REST api and websocket
// push channel.
type restSwapServerClient struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
}

// A compile-time flag to ensure that restSwapServerClient implements the
// swapServerClient interface.
var _ swapServerClient = (*restSwapServerClient)(nil)

// newSwapServerClient returns a swap server client for the given base URL.
func newSwapServerClient(serverURL string) (*restSwapServerClient, error) {
	wsURL, err := pushChannelURL(serverURL)
	if err != nil {
		return nil, err
	}

	return &restSwapServerClient{
		baseURL: serverURL,
		wsURL:   wsURL,
		httpClient: &http.Client{
			Timeout: serverRequestTimeout,
		},
	}, nil
}

// pushChannelURL derives the websocket endpoint from the REST base URL.
func pushChannelURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q",
			u.Scheme)
	}

	u.Path = u.Path + "/ws"

	return u.String(), nil
}

// getJSON performs a GET request and decodes the response into result, which
// must carry the shared error field.
func (s *restSwapServerClient) getJSON(ctx context.Context, path string,
	result interface{}) error {

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, s.baseURL+path, nil,
	)
	if err != nil {
		return err
	}

	return s.doJSON(req, result)
}

// postJSON performs a POST request with a JSON body and decodes the response
// into result.
func (s *restSwapServerClient) postJSON(ctx context.Context, path string,
	body, result interface{}) error {

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, s.baseURL+path,
		bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return s.doJSON(req, result)
}

// doJSON executes the request and decodes the response body. Server-reported
// errors take precedence over the HTTP status so their message reaches the
// caller verbatim.
func (s *restSwapServerClient) doJSON(req *http.Request,
	result interface{}) error {

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// The server reports semantic errors inside the payload, both on 2xx
	// and non-2xx responses.
	if err := json.Unmarshal(body, result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server status %v", resp.StatusCode)
		}

		return err
	}

	// A non-OK status without an in-band error message is still an error.
	// When a message is present the caller surfaces it verbatim instead.
	if resp.StatusCode != http.StatusOK {
		var wireErr struct {
			Error string `json:"error"`
		}
		err := json.Unmarshal(body, &wireErr)
		if err != nil || wireErr.Error == "" {
			return fmt.Errorf("server status %v", resp.StatusCode)
		}
	}

	return nil
}

// responseError extracts a server-reported error from a decoded payload.
func responseError(errField string) error {
	if errField == "" {
		return nil
	}

	return ServerError(errField)
}

// GetSubmarineFees fetches the submarine swap fee schedule.
//
// NOTE: Part of the swapServerClient interface.
func (s *restSwapServerClient) GetSubmarineFees(ctx context.Context) (
	*PairFees, error) {

	var resp feesResponse
	if err := s.getJSON(ctx, "/swap/submarine", &resp); err != nil {
		return nil, err
	}
	if err := responseError(resp.Error); err != nil {
		return nil, err
	}

	return feesFromResponse(&resp), nil
}

// GetReverseFees fetches the reverse swap fee schedule.
//
// NOTE: Part of the swapServerClient interface.
func (s *restSwapServerClient) GetReverseFees(ctx context.Context) (*PairFees,
	error) {

	var resp feesResponse
	if err := s.getJSON(ctx, "/swap/reverse", &resp); err != nil {
		return nil, err
	}
	if err := responseError(resp.Error); err != nil {
		return nil, err
	}

	return feesFromResponse(&resp), nil
}

func feesFromResponse(resp *feesResponse) *PairFees {
	return &PairFees{
		Percentage:    resp.Percentage,
		MinerFee:      btcutil.Amount(resp.MinerFees),
		MinimalAmount: btcutil.Amount(resp.Limits.Minimal),
		MaximalAmount: btcutil.Amount(resp.Limits.Maximal),
	}
}

// CreateSubmarineSwap creates a new submarine swap order.
//
// NOTE: Part of the swapServerClient interface.
func (s *restSwapServerClient) CreateSubmarineSwap(ctx context.Context,
	req *newSubmarineSwapRequest) (*submarineSwapResponse, error) {

	var resp submarineSwapResponse
	err := s.postJSON(ctx, "/swap/submarine", req, &resp)
	if err != nil {
		return nil, err
	}
	if err := responseError(resp.Error); err != nil {
		return nil, err
	}

	return &resp, nil
}

// CreateReverseSwap creates a new reverse swap order.
//
// NOTE: Part of the swapServerClient interface.
func (s *restSwapServerClient) CreateReverseSwap(ctx context.Context,
	req *newReverseSwapRequest) (*reverseSwapResponse, error) {

	var resp reverseSwapResponse
	err := s.postJSON(ctx, "/swap/reverse", req, &resp)
	if err != nil {
		return nil, err
	}
	if err := responseError(resp.Error); err != nil {
		return nil, err
	}

	return &resp, nil
}

// GetLockupTransaction fetches the lockup transaction descriptor of a
// submarine swap.
//
// NOTE: Part of the swapServerClient interface.
func (s *restSwapServerClient) GetLockupTransaction(ctx context.Context,
	swapId string) (*swapdb.LockupTransaction, error) {

	var resp lockupTransactionResponse
	path := fmt.Sprintf("/swap/submarine/%s/transaction", swapId)
	if err := s.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	if err := responseError(resp.Error); err != nil {
		return nil, err
	}

	return &swapdb.LockupTransaction{
		TxId:               resp.Id,
		Hex:                resp.Hex,
		TimeoutBlockHeight: resp.TimeoutBlockHeight,
	}, nil
}

// GetClaimDetails fetches the cooperative claim parameters of a submarine
// swap.
//
// NOTE: Part of the swapServerClient interface.
func (s *restSwapServerClient) GetClaimDetails(ctx context.Context,
	swapId string) (*claimDetails, error) {

	var resp claimDetailsResponse
	path := fmt.Sprintf("/swap/submarine/%s/claim", swapId)
	if err := s.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	if err := responseError(resp.Error); err != nil {
		return nil, err
	}

	return &claimDetails{
		Preimage:        resp.Preimage,
		TransactionHash: resp.TransactionHash,
		PubNonce:        resp.PubNonce,
	}, nil
}

// SubscribeSwapUpdates opens the push channel for a single swap id.
//
// NOTE: Part of the swapServerClient interface.
func (s *restSwapServerClient) SubscribeSwapUpdates(ctx context.Context,
	swapId string) (<-chan *ServerUpdate, <-chan error, error) {

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial push channel: %w", err)
	}

	err = conn.WriteJSON(&subscribeMessage{
		Op:      "subscribe",
		Channel: "swap.update",
		Args:    []string{swapId},
	})
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("subscribe swap %v: %w", swapId,
			err)
	}

	updateChan := make(chan *ServerUpdate, 1)
	errChan := make(chan error, 1)

	// Tear down the connection when the caller's context ends. The read
	// loop then fails and exits.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go func() {
		defer close(updateChan)

		for {
			var envelope updateEnvelope
			if err := conn.ReadJSON(&envelope); err != nil {
				select {
				case <-ctx.Done():
					errChan <- ctx.Err()

				default:
					if websocket.IsCloseError(
						err, websocket.CloseNormalClosure,
					) {

						errChan <- errServerSubscriptionComplete
						return
					}

					errChan <- err
				}

				return
			}

			if envelope.Event != "update" {
				continue
			}

			for _, notice := range envelope.Args {
				if notice.Id != "" && notice.Id != swapId {
					continue
				}

				// An explicit provider error terminates the
				// subscription.
				if notice.Error != "" {
					errChan <- ServerError(notice.Error)
					return
				}

				state, err := swapdb.StateFromProviderStatus(
					notice.Status,
				)
				if err != nil {
					errChan <- err
					return
				}

				update := &ServerUpdate{
					SwapId:        swapId,
					State:         state,
					FailureReason: notice.FailureReason,
					Timestamp:     time.Now(),
				}
				if notice.Transaction != nil {
					update.TransactionId = notice.Transaction.Id
					update.TransactionHex = notice.Transaction.Hex
				}

				select {
				case updateChan <- update:
				case <-ctx.Done():
					errChan <- ctx.Err()
					return
				}
			}
		}
	}()

	return updateChan, errChan, nil
}
