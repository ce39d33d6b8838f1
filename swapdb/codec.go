package swapdb

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lntypes"
)

// swapRecord is the JSON shape a swap is persisted in. Secret material is hex
// encoded. The record lives in the local, wallet-encrypted database and is
// never sent anywhere.
type swapRecord struct {
	Id                 string          `json:"id"`
	Kind               uint8           `json:"kind"`
	State              uint8           `json:"state"`
	FailureReason      string          `json:"failureReason,omitempty"`
	CreatedAt          int64           `json:"createdAt"`
	ExpectedAmount     int64           `json:"expectedAmount,omitempty"`
	OnchainAmount      int64           `json:"onchainAmount,omitempty"`
	TimeoutBlockHeight uint32          `json:"timeoutBlockHeight"`
	LockupAddress      string          `json:"lockupAddress,omitempty"`
	DestinationAddress string          `json:"destinationAddress,omitempty"`
	ClaimPubKey        string          `json:"claimPubKey,omitempty"`
	RefundPubKey       string          `json:"refundPubKey,omitempty"`
	Invoice            string          `json:"invoice,omitempty"`
	SweepFeeRate       uint64          `json:"sweepFeeRate,omitempty"`
	RefundPrivateKey   string          `json:"refundPrivateKey,omitempty"`
	ClaimPrivateKey    string          `json:"claimPrivateKey,omitempty"`
	Preimage           string          `json:"preimage,omitempty"`
	SwapTree           *treeRecord     `json:"swapTree,omitempty"`
	LockupTransaction  *lockupTxRecord `json:"lockupTransaction,omitempty"`
}

type treeRecord struct {
	ClaimLeaf  leafRecord `json:"claimLeaf"`
	RefundLeaf leafRecord `json:"refundLeaf"`
}

type leafRecord struct {
	Version uint8  `json:"version"`
	Output  string `json:"output"`
}

type lockupTxRecord struct {
	TxId               string `json:"id"`
	Hex                string `json:"hex"`
	TimeoutBlockHeight uint32 `json:"timeoutBlockHeight"`
}

// serializeSwap encodes a swap record for storage.
func serializeSwap(swap *Swap) ([]byte, error) {
	record := &swapRecord{
		Id:                 swap.Id,
		Kind:               uint8(swap.Kind),
		State:              uint8(swap.State),
		FailureReason:      swap.FailureReason,
		CreatedAt:          swap.CreatedAt.UnixNano(),
		ExpectedAmount:     int64(swap.ExpectedAmount),
		OnchainAmount:      int64(swap.OnchainAmount),
		TimeoutBlockHeight: swap.TimeoutBlockHeight,
		LockupAddress:      swap.LockupAddress,
		DestinationAddress: swap.DestinationAddress,
		ClaimPubKey:        swap.ClaimPubKey,
		RefundPubKey:       swap.RefundPubKey,
		Invoice:            swap.Invoice,
		SweepFeeRate:       swap.SweepFeeRate,
	}

	if swap.RefundPrivateKey != nil {
		record.RefundPrivateKey = hex.EncodeToString(
			swap.RefundPrivateKey.Serialize(),
		)
	}

	if swap.ClaimPrivateKey != nil {
		record.ClaimPrivateKey = hex.EncodeToString(
			swap.ClaimPrivateKey.Serialize(),
		)
	}

	if swap.Preimage != nil {
		record.Preimage = swap.Preimage.String()
	}

	if swap.SwapTree != nil {
		record.SwapTree = &treeRecord{
			ClaimLeaf: leafRecord{
				Version: swap.SwapTree.ClaimLeaf.Version,
				Output:  swap.SwapTree.ClaimLeaf.Output,
			},
			RefundLeaf: leafRecord{
				Version: swap.SwapTree.RefundLeaf.Version,
				Output:  swap.SwapTree.RefundLeaf.Output,
			},
		}
	}

	if swap.LockupTransaction != nil {
		record.LockupTransaction = &lockupTxRecord{
			TxId:               swap.LockupTransaction.TxId,
			Hex:                swap.LockupTransaction.Hex,
			TimeoutBlockHeight: swap.LockupTransaction.TimeoutBlockHeight,
		}
	}

	return json.Marshal(record)
}

// deserializeSwap decodes a stored swap record.
func deserializeSwap(value []byte) (*Swap, error) {
	var record swapRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, err
	}

	swap := &Swap{
		Id:                 record.Id,
		Kind:               SwapKind(record.Kind),
		State:              SwapState(record.State),
		FailureReason:      record.FailureReason,
		CreatedAt:          time.Unix(0, record.CreatedAt),
		ExpectedAmount:     btcutil.Amount(record.ExpectedAmount),
		OnchainAmount:      btcutil.Amount(record.OnchainAmount),
		TimeoutBlockHeight: record.TimeoutBlockHeight,
		LockupAddress:      record.LockupAddress,
		DestinationAddress: record.DestinationAddress,
		ClaimPubKey:        record.ClaimPubKey,
		RefundPubKey:       record.RefundPubKey,
		Invoice:            record.Invoice,
		SweepFeeRate:       record.SweepFeeRate,
	}

	if record.RefundPrivateKey != "" {
		key, err := parsePrivateKey(record.RefundPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("refund key: %w", err)
		}
		swap.RefundPrivateKey = key
	}

	if record.ClaimPrivateKey != "" {
		key, err := parsePrivateKey(record.ClaimPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("claim key: %w", err)
		}
		swap.ClaimPrivateKey = key
	}

	if record.Preimage != "" {
		preimage, err := lntypes.MakePreimageFromStr(record.Preimage)
		if err != nil {
			return nil, fmt.Errorf("preimage: %w", err)
		}
		swap.Preimage = &preimage
	}

	if record.SwapTree != nil {
		swap.SwapTree = &SwapTree{
			ClaimLeaf: TreeLeaf{
				Version: record.SwapTree.ClaimLeaf.Version,
				Output:  record.SwapTree.ClaimLeaf.Output,
			},
			RefundLeaf: TreeLeaf{
				Version: record.SwapTree.RefundLeaf.Version,
				Output:  record.SwapTree.RefundLeaf.Output,
			},
		}
	}

	if record.LockupTransaction != nil {
		swap.LockupTransaction = &LockupTransaction{
			TxId:               record.LockupTransaction.TxId,
			Hex:                record.LockupTransaction.Hex,
			TimeoutBlockHeight: record.LockupTransaction.TimeoutBlockHeight,
		}
	}

	return swap, nil
}

// parsePrivateKey decodes a hex encoded 32-byte secp256k1 scalar.
func parsePrivateKey(keyHex string) (*btcec.PrivateKey, error) {
	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, err
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("invalid key length %v", len(keyBytes))
	}

	key, _ := btcec.PrivKeyFromBytes(keyBytes)
	return key, nil
}

// itob returns an 8-byte big endian representation of v.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	byteOrder.PutUint64(b, v)
	return b
}
