// Package chandb persists the set of channels a recipient has already
// accepted, so a replayed or duplicated setup proposal can be rejected
// without trusting the sender's memory of what was already agreed.
// Grounded on channeldb/db.go and channeldb/error.go's DB-over-bolt
// pattern, narrowed to the single bucket this protocol needs.
package chandb

import (
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

const (
	dbName           = "channels.db"
	dbFilePermission = 0600
)

var channelBucket = []byte("known-channels")

// DB is the recipient's on-disk record of every channel it has ever
// accepted, keyed by multisig address.
type DB struct {
	*bolt.DB
	dbPath string
}

// Open opens (creating if necessary) the channel database rooted at
// dbPath.
func Open(dbPath string) (*DB, error) {
	path := filepath.Join(dbPath, dbName)

	if !fileExists(dbPath) {
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return nil, err
		}
	}

	bdb, err := bolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, err
	}

	db := &DB{DB: bdb, dbPath: dbPath}

	err = bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(channelBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}

	return db, nil
}

// Wipe deletes every recorded channel in a single atomic transaction.
func (d *DB) Wipe() error {
	return d.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(channelBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(channelBucket)
		return err
	})
}

func fileExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}
