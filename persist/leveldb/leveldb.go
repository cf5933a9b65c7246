// Package leveldb persists records in a LevelDB database.
package leveldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrhy/hextrie"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// Options configures a LevelDB-backed Persist.
type Options struct {
	DataDirectoryPath string `yaml:"DataDirectoryPath"`
	ReadOnly          bool   `yaml:"ReadOnly"`
	// KeyPrefix is prepended to every record name, so records can share a
	// database with other data.
	KeyPrefix string `yaml:"KeyPrefix"`
}

// Persist implements the hextrie.Persist interface on top of LevelDB.
type Persist struct {
	db     *leveldb.DB
	prefix []byte
}

// Open opens (or creates) the database at opts.DataDirectoryPath.
func Open(opts Options) (*Persist, error) {
	o := &opt.Options{
		Filter: filter.NewBloomFilter(10),
	}
	if opts.ReadOnly {
		o.ReadOnly = true
		o.ErrorIfMissing = true
	}
	db, err := leveldb.OpenFile(opts.DataDirectoryPath, o)
	if err != nil {
		return nil, fmt.Errorf("failed to open LevelDB instance: %w", err)
	}
	return &Persist{db: db, prefix: []byte(opts.KeyPrefix)}, nil
}

func (p *Persist) key(name string) []byte {
	k := make([]byte, 0, len(p.prefix)+len(name))
	k = append(k, p.prefix...)
	return append(k, name...)
}

// Load implements the hextrie.Persist interface.
func (p *Persist) Load(ctx context.Context, name string) ([]byte, error) {
	value, err := p.db.Get(p.key(name), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("leveldb %s: %w", name, hextrie.ErrNotFound)
	}
	return value, err
}

// Store implements the hextrie.Persist interface. Names already present
// are left alone.
func (p *Persist) Store(ctx context.Context, name string, value []byte) error {
	k := p.key(name)
	ok, err := p.db.Has(k, nil)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return p.db.Put(k, value, nil)
}

// Close releases the database.
func (p *Persist) Close() error {
	return p.db.Close()
}
