// Package bolt persists records in a BoltDB file.
package bolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrhy/hextrie"
	"go.etcd.io/bbolt"
)

// DefaultBucket holds the records unless Options.Bucket says otherwise.
var DefaultBucket = []byte("records")

// Options configures a BoltDB-backed Persist.
type Options struct {
	FilePath string `yaml:"FilePath"`
	ReadOnly bool   `yaml:"ReadOnly"`
	Bucket   string `yaml:"Bucket"`
}

// Persist implements the hextrie.Persist interface on top of BoltDB.
type Persist struct {
	db     *bbolt.DB
	bucket []byte
}

// Open opens (or creates) the BoltDB file at opts.FilePath.
func Open(opts Options) (*Persist, error) {
	bucket := DefaultBucket
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if !opts.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), os.ModePerm); err != nil {
			return nil, fmt.Errorf("could not create dir for BoltDB: %w", err)
		}
	}
	db, err := bbolt.Open(opts.FilePath, 0o600, &bbolt.Options{ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB instance: %w", err)
	}
	if !opts.ReadOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return fmt.Errorf("could not create root bucket: %w", err)
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return &Persist{db: db, bucket: bucket}, nil
}

// Load implements the hextrie.Persist interface.
func (p *Persist) Load(ctx context.Context, name string) ([]byte, error) {
	var val []byte
	err := p.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(p.bucket)
		if b == nil {
			return nil
		}
		// values are only valid inside the transaction
		if v := b.Get([]byte(name)); v != nil {
			val = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, fmt.Errorf("boltdb %s: %w", name, hextrie.ErrNotFound)
	}
	return val, nil
}

// Store implements the hextrie.Persist interface. Names already present
// are left alone. Concurrent stores are coalesced into shared transactions.
func (p *Persist) Store(ctx context.Context, name string, value []byte) error {
	return p.db.Batch(func(tx *bbolt.Tx) error {
		b := tx.Bucket(p.bucket)
		if b.Get([]byte(name)) != nil {
			return nil
		}
		return b.Put([]byte(name), value)
	})
}

// Close releases the database file.
func (p *Persist) Close() error {
	return p.db.Close()
}
