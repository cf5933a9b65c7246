package hextrie

import lru "github.com/hashicorp/golang-lru"

// NodeCache caches the immutable records from a remote storage source.
// It is also used to avoid re-storing records, so care should be taken
// to switch/invalidate NodeCache when the Persist is changed.
type NodeCache interface {
	// Add adds a freshly-persisted or freshly-loaded record to the cache.
	Add(d Digest, r *Record)
	// Contains indicates the record with the given digest has already been persisted.
	Contains(d Digest) bool
	// Get retrieves the already-decoded record with the given digest, if cached.
	Get(d Digest) (*Record, bool)
}

type arcNodeCache struct {
	arc *lru.ARCCache
}

// NewNodeCache creates a new ARC-based record cache of the given size. One
// cache can be shared by any number of Stores over the same Persist.
func NewNodeCache(size int) NodeCache {
	cache, err := lru.NewARC(size)
	if err != nil {
		panic(err)
	}
	return arcNodeCache{cache}
}

func (c arcNodeCache) Add(d Digest, r *Record) {
	c.arc.Add(d, r)
}

func (c arcNodeCache) Contains(d Digest) bool {
	return c.arc.Contains(d)
}

func (c arcNodeCache) Get(d Digest) (*Record, bool) {
	v, ok := c.arc.Get(d)
	if !ok {
		return nil, false
	}
	return v.(*Record), true
}
