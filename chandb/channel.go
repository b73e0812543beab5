package chandb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/types"

	smc "github.com/algorand-smc/smc"
	bolt "go.etcd.io/bbolt"
)

// byteOrder matches channeldb's choice: big endian, so that a bucket's
// natural key ordering isn't disturbed by a little-endian encoding of
// the numeric fields we never actually scan by range here, kept for
// consistency with the rest of the pack's bolt usage.
var byteOrder = binary.BigEndian

// KnownChannels is the recipient's record of every channel it has
// accepted, keyed by the channel's multisig contract address. Both
// Insert implementations must make the check-and-insert atomic: two
// concurrent setup proposals for the same multisig address must never
// both succeed, which is what rules out the "duplicate channel" replay
// in spec.md §8.
type KnownChannels interface {
	// Insert records params under multisigAddr, or returns
	// ErrChannelAlreadyExists if a channel is already recorded there.
	Insert(multisigAddr types.Address, params smc.ChannelParameters) error

	// Get returns the channel recorded under multisigAddr, or
	// ErrChannelNotFound.
	Get(multisigAddr types.Address) (smc.ChannelParameters, error)

	// List returns every recorded channel, in no particular order.
	List() ([]smc.ChannelParameters, error)
}

// BoltKnownChannels implements KnownChannels against a persistent
// chandb.DB, grounded on channeldb's bucket-per-entity-type layout.
type BoltKnownChannels struct {
	db *DB
}

// NewBoltKnownChannels wraps an opened channel database.
func NewBoltKnownChannels(db *DB) *BoltKnownChannels {
	return &BoltKnownChannels{db: db}
}

// Insert implements KnownChannels.
func (b *BoltKnownChannels) Insert(multisigAddr types.Address, params smc.ChannelParameters) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(channelBucket)
		if bucket == nil {
			return ErrNoChanDBExists
		}

		key := multisigAddr[:]
		if bucket.Get(key) != nil {
			return ErrChannelAlreadyExists
		}

		return bucket.Put(key, encodeParams(params))
	})
}

// Get implements KnownChannels.
func (b *BoltKnownChannels) Get(multisigAddr types.Address) (smc.ChannelParameters, error) {
	var params smc.ChannelParameters
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(channelBucket)
		if bucket == nil {
			return ErrNoChanDBExists
		}

		raw := bucket.Get(multisigAddr[:])
		if raw == nil {
			return ErrChannelNotFound
		}

		decoded, err := decodeParams(raw)
		if err != nil {
			return err
		}
		params = decoded
		return nil
	})
	return params, err
}

// List implements KnownChannels.
func (b *BoltKnownChannels) List() ([]smc.ChannelParameters, error) {
	var all []smc.ChannelParameters
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(channelBucket)
		if bucket == nil {
			return ErrNoChanDBExists
		}

		return bucket.ForEach(func(k, v []byte) error {
			params, err := decodeParams(v)
			if err != nil {
				return err
			}
			all = append(all, params)
			return nil
		})
	})
	return all, err
}

// MemKnownChannels is a non-persistent KnownChannels, the default per
// spec.md §6 ("MAY persist channel state across restarts"): a
// recipient is not required to survive a restart with its channel
// history intact, so process-local storage is a legitimate
// implementation.
type MemKnownChannels struct {
	mu       sync.Mutex
	channels map[types.Address]smc.ChannelParameters
}

// NewMemKnownChannels returns an empty in-memory KnownChannels.
func NewMemKnownChannels() *MemKnownChannels {
	return &MemKnownChannels{channels: make(map[types.Address]smc.ChannelParameters)}
}

// Insert implements KnownChannels.
func (m *MemKnownChannels) Insert(multisigAddr types.Address, params smc.ChannelParameters) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.channels[multisigAddr]; ok {
		return ErrChannelAlreadyExists
	}
	m.channels[multisigAddr] = params
	return nil
}

// Get implements KnownChannels.
func (m *MemKnownChannels) Get(multisigAddr types.Address) (smc.ChannelParameters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	params, ok := m.channels[multisigAddr]
	if !ok {
		return smc.ChannelParameters{}, ErrChannelNotFound
	}
	return params, nil
}

// List implements KnownChannels.
func (m *MemKnownChannels) List() ([]smc.ChannelParameters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]smc.ChannelParameters, 0, len(m.channels))
	for _, params := range m.channels {
		all = append(all, params)
	}
	return all, nil
}

func encodeParams(params smc.ChannelParameters) []byte {
	var buf bytes.Buffer
	buf.Write(params.SenderAddr[:])
	buf.Write(params.RecipientAddr[:])
	binary.Write(&buf, byteOrder, params.Nonce)
	binary.Write(&buf, byteOrder, params.MinRefundBlock)
	binary.Write(&buf, byteOrder, params.MaxRefundBlock)
	return buf.Bytes()
}

func decodeParams(raw []byte) (smc.ChannelParameters, error) {
	const wantLen = 32 + 32 + 8 + 8 + 8
	if len(raw) != wantLen {
		return smc.ChannelParameters{}, fmt.Errorf("chandb: corrupt channel record: got %d bytes, want %d", len(raw), wantLen)
	}

	var params smc.ChannelParameters
	r := bytes.NewReader(raw)

	if _, err := r.Read(params.SenderAddr[:]); err != nil {
		return smc.ChannelParameters{}, err
	}
	if _, err := r.Read(params.RecipientAddr[:]); err != nil {
		return smc.ChannelParameters{}, err
	}
	if err := binary.Read(r, byteOrder, &params.Nonce); err != nil {
		return smc.ChannelParameters{}, err
	}
	if err := binary.Read(r, byteOrder, &params.MinRefundBlock); err != nil {
		return smc.ChannelParameters{}, err
	}
	if err := binary.Read(r, byteOrder, &params.MaxRefundBlock); err != nil {
		return smc.ChannelParameters{}, err
	}

	return params, nil
}
