package swapdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var (
	// dbFileName is the default file name of the client-side swap
	// database.
	dbFileName = "swaps.db"

	// submarineBucketKey is a bucket that contains all submarine swaps
	// that are currently pending or completed.
	//
	// maps: recordsBucket, indexBucket
	submarineBucketKey = []byte("submarine-swaps")

	// reverseBucketKey is a bucket that contains all reverse swaps that
	// are currently pending or completed.
	//
	// maps: recordsBucket, indexBucket
	reverseBucketKey = []byte("reverse-swaps")

	// recordsBucketKey is a sub-bucket of each kind bucket holding the
	// serialized swap records, keyed by insertion sequence number. New
	// records always get the next sequence number, so iterating the
	// bucket in reverse yields the most-recent-first ordering.
	//
	// maps: sequence -> serialized swap
	recordsBucketKey = []byte("records")

	// indexBucketKey is a sub-bucket of each kind bucket mapping a swap
	// id to the sequence number its record is stored under. Updates
	// locate records through this index and write them back in place, so
	// a state change never reorders the list.
	//
	// maps: swapId -> sequence
	indexBucketKey = []byte("index")

	byteOrder = binary.BigEndian
)

// fileExists returns true if the file exists, and false otherwise.
func fileExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}

	return true
}

// boltSwapStore stores swap data in boltdb.
type boltSwapStore struct {
	db *bbolt.DB
}

// A compile-time flag to ensure that boltSwapStore implements the SwapStore
// interface.
var _ SwapStore = (*boltSwapStore)(nil)

// NewBoltSwapStore creates a new client swap store.
func NewBoltSwapStore(dbPath string) (*boltSwapStore, error) {
	// If the target path for the swap store doesn't exist, then we'll
	// create it now before we proceed.
	if !fileExists(dbPath) {
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return nil, err
		}
	}

	// Now that we know that path exists, we'll open up bolt, which
	// implements our default swap store.
	path := filepath.Join(dbPath, dbFileName)
	bdb, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	// We'll create all the buckets we need if this is the first time
	// we're starting up. If they already exist, then these calls will be
	// noops.
	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, key := range [][]byte{
			submarineBucketKey, reverseBucketKey,
		} {
			bucket, err := tx.CreateBucketIfNotExists(key)
			if err != nil {
				return err
			}

			_, err = bucket.CreateBucketIfNotExists(
				recordsBucketKey,
			)
			if err != nil {
				return err
			}

			_, err = bucket.CreateBucketIfNotExists(indexBucketKey)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Opened swap database at %v", path)

	return &boltSwapStore{db: bdb}, nil
}

// kindBucketKey returns the root bucket key for the given swap kind.
func kindBucketKey(kind SwapKind) ([]byte, error) {
	switch kind {
	case KindSubmarine:
		return submarineBucketKey, nil
	case KindReverse:
		return reverseBucketKey, nil
	default:
		return nil, fmt.Errorf("unknown swap kind %v", kind)
	}
}

// kindBuckets traverses to the records and index sub-buckets of a kind.
func kindBuckets(tx *bbolt.Tx, kind SwapKind) (*bbolt.Bucket, *bbolt.Bucket,
	error) {

	key, err := kindBucketKey(kind)
	if err != nil {
		return nil, nil, err
	}

	rootBucket := tx.Bucket(key)
	if rootBucket == nil {
		return nil, nil, errors.New("bucket does not exist")
	}

	records := rootBucket.Bucket(recordsBucketKey)
	if records == nil {
		return nil, nil, errors.New("records bucket not found")
	}

	index := rootBucket.Bucket(indexBucketKey)
	if index == nil {
		return nil, nil, errors.New("index bucket not found")
	}

	return records, index, nil
}

// ListSwaps returns all swaps of the given kind, newest first.
//
// NOTE: Part of the swapdb.SwapStore interface.
func (s *boltSwapStore) ListSwaps(_ context.Context, kind SwapKind) ([]*Swap,
	error) {

	var swaps []*Swap

	err := s.db.View(func(tx *bbolt.Tx) error {
		records, _, err := kindBuckets(tx, kind)
		if err != nil {
			return err
		}

		// Walk the sequence keys backwards so the most recently
		// inserted record comes first.
		cursor := records.Cursor()
		for k, v := cursor.Last(); k != nil; k, v = cursor.Prev() {
			swap, err := deserializeSwap(v)
			if err != nil {
				return err
			}

			swaps = append(swaps, swap)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return swaps, nil
}

// FetchSwap returns a single swap by id.
//
// NOTE: Part of the swapdb.SwapStore interface.
func (s *boltSwapStore) FetchSwap(_ context.Context, id string,
	kind SwapKind) (*Swap, error) {

	var swap *Swap

	err := s.db.View(func(tx *bbolt.Tx) error {
		records, index, err := kindBuckets(tx, kind)
		if err != nil {
			return err
		}

		seq := index.Get([]byte(id))
		if seq == nil {
			return ErrSwapNotFound
		}

		value := records.Get(seq)
		if value == nil {
			return fmt.Errorf("record for swap %v missing", id)
		}

		swap, err = deserializeSwap(value)
		return err
	})
	if err != nil {
		return nil, err
	}

	return swap, nil
}

// AddSwap inserts a newly created swap at the head of the list.
//
// NOTE: Part of the swapdb.SwapStore interface.
func (s *boltSwapStore) AddSwap(_ context.Context, swap *Swap) error {
	// Reject records that violate the secret material invariant before
	// anything hits disk.
	if err := swap.validateSecrets(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		records, index, err := kindBuckets(tx, swap.Kind)
		if err != nil {
			return err
		}

		// If the swap already exists, then we'll exit as we don't
		// want to override a swap.
		if index.Get([]byte(swap.Id)) != nil {
			return ErrSwapExists
		}

		// Each new record gets the next monotonically increasing
		// sequence number, which establishes the newest-first list
		// ordering.
		seq, err := records.NextSequence()
		if err != nil {
			return err
		}

		value, err := serializeSwap(swap)
		if err != nil {
			return err
		}

		if err := records.Put(itob(seq), value); err != nil {
			return err
		}

		return index.Put([]byte(swap.Id), itob(seq))
	})
}

// updateSwap locates a swap through the id index, applies f and writes the
// record back under its original sequence key.
func (s *boltSwapStore) updateSwap(id string, kind SwapKind,
	f func(*Swap) error) error {

	return s.db.Update(func(tx *bbolt.Tx) error {
		records, index, err := kindBuckets(tx, kind)
		if err != nil {
			return err
		}

		seq := index.Get([]byte(id))
		if seq == nil {
			return ErrSwapNotFound
		}

		value := records.Get(seq)
		if value == nil {
			return fmt.Errorf("record for swap %v missing", id)
		}

		swap, err := deserializeSwap(value)
		if err != nil {
			return err
		}

		if err := f(swap); err != nil {
			return err
		}

		value, err = serializeSwap(swap)
		if err != nil {
			return err
		}

		return records.Put(seq, value)
	})
}

// UpdateState persists a state transition for the given swap.
//
// NOTE: Part of the swapdb.SwapStore interface.
func (s *boltSwapStore) UpdateState(_ context.Context, id string,
	kind SwapKind, state SwapState, failureReason string) error {

	return s.updateSwap(id, kind, func(swap *Swap) error {
		swap.State = state

		// The failure reason is sticky. The first non-empty value
		// wins and later updates cannot clear it.
		if swap.FailureReason == "" && failureReason != "" {
			swap.FailureReason = failureReason
		}

		return nil
	})
}

// SetLockupTransaction attaches the fetched lockup transaction descriptor to
// an existing swap record.
//
// NOTE: Part of the swapdb.SwapStore interface.
func (s *boltSwapStore) SetLockupTransaction(_ context.Context, id string,
	kind SwapKind, lockupTx *LockupTransaction) error {

	if lockupTx == nil {
		return errors.New("nil lockup transaction")
	}

	return s.updateSwap(id, kind, func(swap *Swap) error {
		swap.LockupTransaction = lockupTx
		return nil
	})
}

// Close closes the underlying database.
//
// NOTE: Part of the swapdb.SwapStore interface.
func (s *boltSwapStore) Close() error {
	return s.db.Close()
}
