package hextrie

import (
	"context"
	"fmt"
)

// Resolve returns the value key had in the snapshot committed as root. It
// reads only stored records, so it answers for any historical root
// regardless of what live tries have done since.
func (s *Store) Resolve(ctx context.Context, root Digest, key Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if root.IsEmpty() {
		return nil, fmt.Errorf("key %v: %w", key, ErrNotFound)
	}
	r, err := s.Get(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("load root: %w", err)
	}
	return s.lookup(ctx, r, key, key)
}

// lookup finds remaining below the record r, whose fragment is matched
// against the front of remaining. key is the whole key, for errors.
func (s *Store) lookup(ctx context.Context, r *Record, remaining, key Key) ([]byte, error) {
	for {
		if r.Fragment.Equal(remaining) {
			if !r.HasValue {
				return nil, fmt.Errorf("key %v: %w", key, ErrNotFound)
			}
			return append([]byte{}, r.Value...), nil
		}
		if !remaining.HasPrefix(r.Fragment) {
			return nil, fmt.Errorf("key %v: %w", key, ErrNotFound)
		}
		remaining = remaining[len(r.Fragment):]
		slot := remaining[0]
		d, ok := r.Child(slot)
		if !ok {
			return nil, fmt.Errorf("key %v: %w", key, ErrNotFound)
		}
		var err error
		r, err = s.loadChild(ctx, d, slot)
		if err != nil {
			return nil, fmt.Errorf("following %d: %w", slot, err)
		}
	}
}

// loadChild loads the record stored in the given slot of its parent.
func (s *Store) loadChild(ctx context.Context, d Digest, slot byte) (*Record, error) {
	r, err := s.Get(ctx, d)
	if err != nil {
		return nil, err
	}
	if len(r.Fragment) == 0 || r.Fragment[0] != slot {
		return nil, fmt.Errorf("record %s: %w", d, corrupt("fragment %v in slot %d", r.Fragment, slot))
	}
	return r, nil
}

type walkItem struct {
	d      Digest
	prefix Key
}

// walk visits every record reachable from d in pre-order, children in slot
// order, passing each record with its absolute path.
func (s *Store) walk(ctx context.Context, d Digest, prefix Key, f func(Digest, Key, *Record) error) error {
	if d.IsEmpty() {
		return nil
	}
	stack := []walkItem{{d, prefix}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		r, err := s.Get(ctx, item.d)
		if err != nil {
			return err
		}
		path := concatKeys(item.prefix, r.Fragment)
		if err := f(item.d, path, r); err != nil {
			return err
		}
		for i := len(r.Children) - 1; i >= 0; i-- {
			stack = append(stack, walkItem{r.Children[i].Digest, path})
		}
	}
	return nil
}

// Iter invokes f for every key and value in the snapshot committed as root,
// in ascending key order. Iteration stops at the first error f returns.
func (s *Store) Iter(ctx context.Context, root Digest, f func(Key, []byte) error) error {
	return s.walk(ctx, root, nil, func(_ Digest, path Key, r *Record) error {
		if !r.HasValue {
			return nil
		}
		return f(path, append([]byte{}, r.Value...))
	})
}

// Links invokes f once for every record digest reachable from root. Equal
// subtrees are stored once and reported once.
func (s *Store) Links(ctx context.Context, root Digest, f func(Digest) error) error {
	if root.IsEmpty() {
		return nil
	}
	seen := map[Digest]struct{}{}
	stack := []Digest{root}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		r, err := s.Get(ctx, d)
		if err != nil {
			return err
		}
		if err := f(d); err != nil {
			return err
		}
		for i := len(r.Children) - 1; i >= 0; i-- {
			stack = append(stack, r.Children[i].Digest)
		}
	}
	return nil
}
