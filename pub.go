package hextrie

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrInvalidKey is returned for empty keys and keys with symbols outside
	// the 16-symbol alphabet.
	ErrInvalidKey = errors.New("invalid key")
	// ErrNotFound means a key has no value in a snapshot, or a digest has
	// no record in the store. It's an ordinary outcome, not a failure.
	ErrNotFound = errors.New("not found")
	// ErrCorruptRecord means a stored record could not be decoded, or its
	// content doesn't match its digest. Unlike ErrNotFound, the data is there
	// but unreadable.
	ErrCorruptRecord = errors.New("corrupt record")
)

// DigestSize is the length in bytes of a record digest.
const DigestSize = 32

// Digest identifies a record by the blake2b-256 hash of its encoding. The
// digest of a trie's root record is that trie's commitment.
type Digest [DigestSize]byte

// EmptyDigest is the commitment of a trie with no keys. Nothing is stored
// under it.
var EmptyDigest Digest

// String renders d as lowercase hex; this is also the name a record is
// persisted under.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsEmpty reports whether d is EmptyDigest.
func (d Digest) IsEmpty() bool {
	return d == EmptyDigest
}

// ParseDigest is the inverse of Digest.String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parse digest: %w", err)
	}
	if len(b) != DigestSize {
		return d, fmt.Errorf("parse digest: want %d bytes, got %d", DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// Persist is the interface for loading and storing serialized records. The given string identity corresponds to the content which is immutable (never modified).
type Persist interface {
	// Store makes the given bytes accessible by the given name. Storing a name that is already present is a no-op.
	Store(context.Context, string, []byte) error
	// Load retrieves the previously-stored bytes by the given name, or an error matching ErrNotFound.
	Load(context.Context, string) ([]byte, error)
}

// ChildRef points from a record to the record of the child in Slot.
type ChildRef struct {
	Slot   byte
	Digest Digest
}

// Record is the committed, immutable form of a trie node.
type Record struct {
	// Fragment is the part of the path this node owns below its parent.
	Fragment Key
	// Value is only meaningful when HasValue is set; a present value may be
	// empty.
	Value    []byte
	HasValue bool
	// Children are in ascending slot order, absent slots omitted.
	Children []ChildRef
}

// Child returns the digest of the child in the given slot.
func (r *Record) Child(slot byte) (Digest, bool) {
	for _, c := range r.Children {
		if c.Slot == slot {
			return c.Digest, true
		}
		if c.Slot > slot {
			break
		}
	}
	return Digest{}, false
}

// DefaultStoreConcurrency bounds the number of records a Commit writes to
// the Persist at once.
const DefaultStoreConcurrency = 40

// Config controls how records are persisted and loaded.
type Config struct {
	// Persist is used to store and load serialized records. Required.
	Persist Persist

	// NodeCache caches decoded records and remembers which digests are
	// already stored. Optional; may be shared by Stores with the same Persist.
	NodeCache NodeCache

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// StoreConcurrency bounds parallel writes during Commit; 0 means
	// DefaultStoreConcurrency.
	StoreConcurrency int
}
