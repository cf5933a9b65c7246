package hextrie

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// Trie is the live, mutable radix-16 trie. It has exactly one writer: none
// of its methods may be called concurrently with Insert, Delete or Commit.
// Get, Dump and IsDirty only read the trie and may run concurrently with
// each other. Committed snapshots are read through the Store instead, which
// is safe for concurrent use.
type Trie struct {
	store *Store
	root  *node
}

type node struct {
	fragment Key
	value    []byte
	hasValue bool
	// children[i] is nil, a *node, or the Digest of a committed subtree
	// that hasn't been loaded yet.
	children [Radix]interface{}
	// digest is set while the node is unchanged since it was committed or
	// loaded.
	digest *Digest
}

func newLeaf(fragment Key, value []byte) *node {
	return &node{fragment: fragment, value: value, hasValue: true}
}

// NewTrie returns an empty live trie that commits into s.
func (s *Store) NewTrie() *Trie {
	return &Trie{store: s, root: &node{}}
}

// OpenTrie returns a live trie holding the snapshot committed as root.
// Subtrees are loaded from the store only when a mutation or Get walks into
// them; the snapshot itself is never modified, so OpenTrie is how a caller
// forks from any historical root.
func (s *Store) OpenTrie(ctx context.Context, root Digest) (*Trie, error) {
	if root.IsEmpty() {
		return s.NewTrie(), nil
	}
	t := &Trie{store: s}
	n, err := t.load(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("load root: %w", err)
	}
	if len(n.fragment) != 0 {
		return nil, fmt.Errorf("root %s: %w", root, corrupt("root has fragment %v", n.fragment))
	}
	t.root = n
	s.log.Debug("opened trie", zap.Stringer("root", root))
	return t, nil
}

// Store returns the Store the trie commits into.
func (t *Trie) Store() *Store {
	return t.store
}

// IsDirty signifies that the trie has changes that haven't been committed.
func (t *Trie) IsDirty() bool {
	return t.root.digest == nil && !t.root.isEmpty()
}

func (t *Trie) load(ctx context.Context, d Digest) (*node, error) {
	r, err := t.store.Get(ctx, d)
	if err != nil {
		return nil, err
	}
	return newNode(d, r), nil
}

// newNode builds a clean node from the record stored as d. Its children stay
// unloaded.
func newNode(d Digest, r *Record) *node {
	n := &node{
		fragment: r.Fragment.clone(),
		hasValue: r.HasValue,
		digest:   &d,
	}
	if r.HasValue {
		n.value = append([]byte{}, r.Value...)
	}
	for _, c := range r.Children {
		n.children[c.Slot] = c.Digest
	}
	return n
}

// follow returns the child in the given slot, loading it if it's only
// known by digest and keeping it in the trie. It returns nil for an empty
// slot. Only mutations may follow; readers leave unloaded subtrees alone.
func (t *Trie) follow(ctx context.Context, n *node, slot byte) (*node, error) {
	switch l := n.children[slot].(type) {
	case nil:
		return nil, nil
	case *node:
		return l, nil
	case Digest:
		r, err := t.store.loadChild(ctx, l, slot)
		if err != nil {
			return nil, fmt.Errorf("follow load %s: %w", l, err)
		}
		child := newNode(l, r)
		n.children[slot] = child
		return child, nil
	default:
		panic(fmt.Sprintf("don't know how to follow link of type %T", l))
	}
}

func (n *node) isEmpty() bool {
	if n.hasValue {
		return false
	}
	for _, c := range n.children {
		if c != nil {
			return false
		}
	}
	return true
}

func (n *node) childCount() (count int, last byte) {
	for i, c := range n.children {
		if c != nil {
			count++
			last = byte(i)
		}
	}
	return count, last
}

func markDirty(path []*node) {
	for _, n := range path {
		n.digest = nil
	}
}

// Insert adds or replaces the value for the given key.
func (t *Trie) Insert(ctx context.Context, key Key, value []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	key = key.clone()
	value = append([]byte{}, value...)

	path := []*node{t.root}
	n, k := t.root, key
	for {
		slot := k[0]
		child, err := t.follow(ctx, n, slot)
		if err != nil {
			return fmt.Errorf("following %d: %w", slot, err)
		}
		switch {
		case child == nil:
			n.children[slot] = newLeaf(k, value)

		case child.fragment.Equal(k):
			if child.hasValue && bytes.Equal(child.value, value) {
				return nil
			}
			child.value, child.hasValue = value, true
			path = append(path, child)

		default:
			common := commonPrefixLen(k, child.fragment)
			if common == len(child.fragment) {
				path = append(path, child)
				n, k = child, k[common:]
				continue
			}
			child.fragment = child.fragment[common:]
			child.digest = nil
			if common == len(k) {
				// k ends inside the child's fragment: the new node
				// becomes the child's parent.
				parent := newLeaf(k, value)
				parent.children[child.fragment[0]] = child
				n.children[slot] = parent
			} else {
				branch := &node{fragment: k[:common]}
				leaf := newLeaf(k[common:], value)
				branch.children[child.fragment[0]] = child
				branch.children[leaf.fragment[0]] = leaf
				n.children[slot] = branch
			}
		}
		markDirty(path)
		return nil
	}
}

// Get returns the value for key in the live trie, or ErrNotFound. Subtrees
// that haven't been loaded are read from the Store without being attached
// to the trie.
func (t *Trie) Get(ctx context.Context, key Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	n, k := t.root, key
	for {
		var child *node
		switch l := n.children[k[0]].(type) {
		case nil:
			return nil, fmt.Errorf("key %v: %w", key, ErrNotFound)
		case Digest:
			r, err := t.store.loadChild(ctx, l, k[0])
			if err != nil {
				return nil, fmt.Errorf("following %d: %w", k[0], err)
			}
			return t.store.lookup(ctx, r, k, key)
		case *node:
			child = l
		}
		if child.fragment.Equal(k) {
			if !child.hasValue {
				return nil, fmt.Errorf("key %v: %w", key, ErrNotFound)
			}
			return append([]byte{}, child.value...), nil
		}
		if !k.HasPrefix(child.fragment) {
			return nil, fmt.Errorf("key %v: %w", key, ErrNotFound)
		}
		n, k = child, k[len(child.fragment):]
	}
}

type pathEntry struct {
	parent *node
	slot   byte
}

func (p pathEntry) node() *node {
	return p.parent.children[p.slot].(*node)
}

// Delete removes the value for the given key, merging away any node left
// with neither a value nor a second child, so the trie keeps the shape it
// would have had if the key had never been inserted.
func (t *Trie) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	var path []pathEntry
	n, k := t.root, key
	var target *node
	for target == nil {
		child, err := t.follow(ctx, n, k[0])
		if err != nil {
			return fmt.Errorf("following %d: %w", k[0], err)
		}
		if child == nil || !k.HasPrefix(child.fragment) {
			return fmt.Errorf("key %v not present in trie: %w", key, ErrNotFound)
		}
		path = append(path, pathEntry{n, k[0]})
		if len(child.fragment) == len(k) {
			target = child
		} else {
			n, k = child, k[len(child.fragment):]
		}
	}
	if !target.hasValue {
		return fmt.Errorf("key %v not present in trie: %w", key, ErrNotFound)
	}

	// Walk the compaction below without changing anything, loading the
	// child each merge will take, so a load failure leaves the trie as it
	// was.
	removed := -1
	for i := len(path) - 1; i >= 0; i-- {
		cur := path[i].node()
		if cur != target && cur.hasValue {
			break
		}
		count, only := 0, byte(0)
		for slot, c := range cur.children {
			if c != nil && slot != removed {
				count++
				only = byte(slot)
			}
		}
		if count == 1 {
			if _, err := t.follow(ctx, cur, only); err != nil {
				return fmt.Errorf("following %d: %w", only, err)
			}
		}
		if count != 0 {
			break
		}
		removed = int(path[i].slot)
	}

	t.root.digest = nil
	for _, p := range path {
		p.node().digest = nil
	}
	target.value, target.hasValue = nil, false

	for i := len(path) - 1; i >= 0; i-- {
		p := path[i]
		cur := p.node()
		if cur.hasValue {
			break
		}
		count, only := cur.childCount()
		if count == 0 {
			p.parent.children[p.slot] = nil
			continue
		}
		if count == 1 {
			child, err := t.follow(ctx, cur, only)
			if err != nil {
				return fmt.Errorf("following %d: %w", only, err)
			}
			child.fragment = concatKeys(cur.fragment, child.fragment)
			child.digest = nil
			p.parent.children[p.slot] = child
		}
		break
	}
	return nil
}

// Dump writes an indented rendering of the live trie to w. Subtrees that
// haven't been loaded are shown by digest.
func (t *Trie) Dump(w io.Writer) error {
	_, err := fmt.Fprintln(w, "ROOT:")
	if err != nil {
		return err
	}
	return t.root.dump(w, "")
}

func (n *node) dump(w io.Writer, indent string) error {
	for i, l := range n.children {
		var line string
		switch c := l.(type) {
		case nil:
			continue
		case Digest:
			line = fmt.Sprintf("%s[%x] <%s>", indent, i, c)
		case *node:
			line = fmt.Sprintf("%s[%x] %v", indent, i, c.fragment)
			if c.hasValue {
				line += fmt.Sprintf(": %q", c.value)
			}
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if c, ok := l.(*node); ok {
			if err := c.dump(w, indent+strings.Repeat(" ", 2)); err != nil {
				return err
			}
		}
	}
	return nil
}
