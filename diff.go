package hextrie

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// DiffFunc receives one changed entry. added and removed are both true for
// a key whose value changed. Returning false stops the diff.
type DiffFunc func(added, removed bool, key Key, addedValue, removedValue []byte) (keepGoing bool, err error)

var errStopDiff = errors.New("stop diff")

type entry struct {
	key   Key
	value []byte
}

// Diff invokes f for every entry that differs between the snapshots
// committed as oldRoot and newRoot, in ascending key order. Subtrees with
// the same digest at the same path are skipped without being loaded.
func (s *Store) Diff(ctx context.Context, oldRoot, newRoot Digest, f DiffFunc) error {
	err := s.diff(ctx, oldRoot, newRoot, nil, f)
	if errors.Is(err, errStopDiff) {
		return nil
	}
	return err
}

func (s *Store) diff(ctx context.Context, oldD, newD Digest, prefix Key, f DiffFunc) error {
	if oldD == newD {
		return nil
	}
	if oldD.IsEmpty() {
		return s.walk(ctx, newD, prefix, func(_ Digest, path Key, r *Record) error {
			if !r.HasValue {
				return nil
			}
			return emit(f, true, false, path, r.Value, nil)
		})
	}
	if newD.IsEmpty() {
		return s.walk(ctx, oldD, prefix, func(_ Digest, path Key, r *Record) error {
			if !r.HasValue {
				return nil
			}
			return emit(f, false, true, path, nil, r.Value)
		})
	}
	oldR, err := s.Get(ctx, oldD)
	if err != nil {
		return fmt.Errorf("load old: %w", err)
	}
	newR, err := s.Get(ctx, newD)
	if err != nil {
		return fmt.Errorf("load new: %w", err)
	}
	if !oldR.Fragment.Equal(newR.Fragment) {
		return s.diffEntries(ctx, oldD, newD, prefix, f)
	}
	path := concatKeys(prefix, newR.Fragment)
	switch {
	case oldR.HasValue && newR.HasValue:
		if !bytes.Equal(oldR.Value, newR.Value) {
			if err := emit(f, true, true, path, newR.Value, oldR.Value); err != nil {
				return err
			}
		}
	case newR.HasValue:
		if err := emit(f, true, false, path, newR.Value, nil); err != nil {
			return err
		}
	case oldR.HasValue:
		if err := emit(f, false, true, path, nil, oldR.Value); err != nil {
			return err
		}
	}
	for slot := byte(0); slot < Radix; slot++ {
		oc, _ := oldR.Child(slot)
		nc, _ := newR.Child(slot)
		if err := s.diff(ctx, oc, nc, path, f); err != nil {
			return err
		}
	}
	return nil
}

// diffEntries handles subtrees that were split differently, by merging
// their sorted entries.
func (s *Store) diffEntries(ctx context.Context, oldD, newD Digest, prefix Key, f DiffFunc) error {
	collect := func(d Digest) ([]entry, error) {
		var entries []entry
		err := s.walk(ctx, d, prefix, func(_ Digest, path Key, r *Record) error {
			if r.HasValue {
				entries = append(entries, entry{path, r.Value})
			}
			return nil
		})
		return entries, err
	}
	olds, err := collect(oldD)
	if err != nil {
		return fmt.Errorf("load old: %w", err)
	}
	news, err := collect(newD)
	if err != nil {
		return fmt.Errorf("load new: %w", err)
	}
	i, j := 0, 0
	for i < len(olds) || j < len(news) {
		var cmp int
		switch {
		case i == len(olds):
			cmp = 1
		case j == len(news):
			cmp = -1
		default:
			cmp = olds[i].key.Compare(news[j].key)
		}
		switch {
		case cmp < 0:
			err = emit(f, false, true, olds[i].key, nil, olds[i].value)
			i++
		case cmp > 0:
			err = emit(f, true, false, news[j].key, news[j].value, nil)
			j++
		default:
			if !bytes.Equal(olds[i].value, news[j].value) {
				err = emit(f, true, true, news[j].key, news[j].value, olds[i].value)
			}
			i++
			j++
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func emit(f DiffFunc, added, removed bool, key Key, addedValue, removedValue []byte) error {
	keepGoing, err := f(added, removed, key, addedValue, removedValue)
	if err != nil {
		return fmt.Errorf("callback: %w", err)
	}
	if !keepGoing {
		return errStopDiff
	}
	return nil
}

// DiffLinks invokes f for every record reachable from one root and not the
// other: removed is false for records only newRoot reaches, true for
// records only oldRoot reaches. Copying the added records is enough to make
// newRoot resolvable in a store that already holds oldRoot.
func (s *Store) DiffLinks(ctx context.Context, oldRoot, newRoot Digest, f func(removed bool, d Digest) (keepGoing bool, err error)) error {
	// Everything reachable from oldRoot, with its children.
	oldChildren := map[Digest][]Digest{}
	var oldOrder []Digest
	err := s.Links(ctx, oldRoot, func(d Digest) error {
		r, err := s.Get(ctx, d)
		if err != nil {
			return err
		}
		kids := make([]Digest, len(r.Children))
		for i, c := range r.Children {
			kids[i] = c.Digest
		}
		oldChildren[d] = kids
		oldOrder = append(oldOrder, d)
		return nil
	})
	if err != nil {
		return fmt.Errorf("links old: %w", err)
	}

	call := func(removed bool, d Digest) error {
		keepGoing, err := f(removed, d)
		if err != nil {
			return fmt.Errorf("callback: %w", err)
		}
		if !keepGoing {
			return errStopDiff
		}
		return nil
	}

	// Walk newRoot, stopping at records oldRoot also has: their subtrees
	// are shared entirely.
	shared := map[Digest]struct{}{}
	seen := map[Digest]struct{}{}
	var stack []Digest
	if !newRoot.IsEmpty() {
		stack = append(stack, newRoot)
	}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		if _, ok := oldChildren[d]; ok {
			shared[d] = struct{}{}
			continue
		}
		if err := call(false, d); err != nil {
			if errors.Is(err, errStopDiff) {
				return nil
			}
			return err
		}
		r, err := s.Get(ctx, d)
		if err != nil {
			return fmt.Errorf("load new: %w", err)
		}
		for i := len(r.Children) - 1; i >= 0; i-- {
			stack = append(stack, r.Children[i].Digest)
		}
	}

	// Whatever hangs below a shared record is reachable from newRoot too.
	var sharedStack []Digest
	for d := range shared {
		sharedStack = append(sharedStack, d)
	}
	for len(sharedStack) > 0 {
		d := sharedStack[len(sharedStack)-1]
		sharedStack = sharedStack[:len(sharedStack)-1]
		for _, c := range oldChildren[d] {
			if _, ok := shared[c]; !ok {
				shared[c] = struct{}{}
				sharedStack = append(sharedStack, c)
			}
		}
	}
	for _, d := range oldOrder {
		if _, ok := shared[d]; ok {
			continue
		}
		if err := call(true, d); err != nil {
			if errors.Is(err, errStopDiff) {
				return nil
			}
			return err
		}
	}
	return nil
}
