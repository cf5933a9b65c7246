package hextrie

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errNoPersist = errors.New("no persistence mechanism set; set Config.Persist")

// Store reads and writes records through a Persist. It holds no mutable
// trie state, so any number of goroutines may resolve, iterate and diff
// snapshots through one Store while Tries commit into it.
type Store struct {
	persist     Persist
	cache       NodeCache
	log         *zap.Logger
	concurrency int
}

// NewStore returns a Store for the given configuration.
func NewStore(cfg Config) *Store {
	s := &Store{
		persist:     cfg.Persist,
		cache:       cfg.NodeCache,
		log:         cfg.Logger,
		concurrency: cfg.StoreConcurrency,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultStoreConcurrency
	}
	return s
}

// Get loads and decodes the record with the given digest, checking that
// the stored bytes hash to it. The returned record is shared and must not
// be modified.
func (s *Store) Get(ctx context.Context, d Digest) (*Record, error) {
	if d.IsEmpty() {
		return nil, fmt.Errorf("record %s: %w", d, ErrNotFound)
	}
	if s.cache != nil {
		if r, ok := s.cache.Get(d); ok {
			return r, nil
		}
	}
	if s.persist == nil {
		return nil, errNoPersist
	}
	b, err := s.persist.Load(ctx, d.String())
	if err != nil {
		return nil, fmt.Errorf("persist load %s: %w", d, err)
	}
	if actual := hashRecord(b); actual != d {
		return nil, fmt.Errorf("record %s: %w", d, corrupt("content hashes to %s", actual))
	}
	r, err := unmarshalRecord(b)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling %s: %w", d, err)
	}
	if s.cache != nil {
		s.cache.Add(d, r)
	}
	return r, nil
}

// Put encodes r and stores it under its digest, which it returns.
func (s *Store) Put(ctx context.Context, r *Record) (Digest, error) {
	encoded, err := marshalRecord(r)
	if err != nil {
		return EmptyDigest, fmt.Errorf("marshal: %w", err)
	}
	d := hashRecord(encoded)
	if err := s.store(ctx, d, encoded, r); err != nil {
		return EmptyDigest, err
	}
	return d, nil
}

func (s *Store) store(ctx context.Context, d Digest, encoded []byte, r *Record) error {
	if s.persist == nil {
		return errNoPersist
	}
	if s.cache != nil && s.cache.Contains(d) {
		return nil
	}
	if err := s.persist.Store(ctx, d.String(), encoded); err != nil {
		return fmt.Errorf("persist store %s: %w", d, err)
	}
	if s.cache != nil {
		s.cache.Add(d, r)
	}
	return nil
}

type commitFrame struct {
	n    *node
	next int
}

// Commit writes every node changed since the last commit (or since the
// trie was opened) to the Store, children before parents, and returns the
// root digest. Unchanged subtrees keep their digests and aren't rewritten,
// so a commit after one insert writes only the records on that key's path.
// An empty trie commits to EmptyDigest without writing anything.
func (t *Trie) Commit(ctx context.Context) (Digest, error) {
	if t.store.persist == nil {
		return EmptyDigest, errNoPersist
	}
	if t.root.isEmpty() {
		return EmptyDigest, nil
	}
	if t.root.digest != nil {
		return *t.root.digest, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.store.concurrency)
	var hashed []*node
	fail := func(err error) (Digest, error) {
		_ = g.Wait()
		for _, n := range hashed {
			n.digest = nil
		}
		return EmptyDigest, err
	}

	stack := []commitFrame{{n: t.root}}
	for len(stack) > 0 {
		if err := gctx.Err(); err != nil {
			// A write failed or ctx is done; report the write's error if
			// there is one.
			if werr := g.Wait(); werr != nil {
				err = werr
			}
			return fail(fmt.Errorf("flush: %w", err))
		}
		top := &stack[len(stack)-1]
		var dirtyChild *node
		for top.next < Radix {
			child, ok := top.n.children[top.next].(*node)
			top.next++
			if ok && child.digest == nil {
				dirtyChild = child
				break
			}
		}
		if dirtyChild != nil {
			stack = append(stack, commitFrame{n: dirtyChild})
			continue
		}
		n := top.n
		stack = stack[:len(stack)-1]

		rec := n.record()
		encoded, err := marshalRecord(rec)
		if err != nil {
			return fail(fmt.Errorf("marshal: %w", err))
		}
		d := hashRecord(encoded)
		n.digest = &d
		hashed = append(hashed, n)
		g.Go(func() error {
			return t.store.store(gctx, d, encoded, rec)
		})
	}
	if err := g.Wait(); err != nil {
		return fail(fmt.Errorf("flush: %w", err))
	}
	root := *t.root.digest
	t.store.log.Debug("committed trie",
		zap.Stringer("root", root),
		zap.Int("records", len(hashed)))
	return root, nil
}

// record builds the Record for n. Every loaded child must already have its
// digest.
func (n *node) record() *Record {
	r := &Record{
		Fragment: n.fragment.clone(),
		HasValue: n.hasValue,
	}
	if n.hasValue {
		r.Value = append([]byte{}, n.value...)
	}
	for i, l := range n.children {
		switch c := l.(type) {
		case nil:
			continue
		case Digest:
			r.Children = append(r.Children, ChildRef{Slot: byte(i), Digest: c})
		case *node:
			if c.digest == nil {
				panic(fmt.Sprintf("bug! child %d of %v has no digest", i, n.fragment))
			}
			r.Children = append(r.Children, ChildRef{Slot: byte(i), Digest: *c.digest})
		}
	}
	return r
}
