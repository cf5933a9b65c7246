package file

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jrhy/hextrie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestFiles(t *testing.T) {
	p, err := NewPersistForPath(filepath.Join(t.TempDir(), "records"))
	require.NoError(t, err)

	err = p.Store(ctx, "foo", []byte("hello"))
	require.NoError(t, err)
	loaded, err := p.Load(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), loaded)

	// content-addressed names never change content
	err = p.Store(ctx, "foo", []byte("goodbye"))
	require.NoError(t, err)
	loaded, err = p.Load(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), loaded)

	_, err = p.Load(ctx, "bar")
	require.ErrorIs(t, err, hextrie.ErrNotFound)
}

func TestTrieOnFiles(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersistForPath(dir)
	require.NoError(t, err)
	store := hextrie.NewStore(hextrie.Config{Persist: p})
	trie := store.NewTrie()
	require.NoError(t, trie.Insert(ctx, hextrie.MustParseKey("abc"), []byte("x")))
	require.NoError(t, trie.Insert(ctx, hextrie.MustParseKey("abcde"), []byte("y")))
	root, err := trie.Commit(ctx)
	require.NoError(t, err)

	reopened, err := NewPersistForPath(dir)
	require.NoError(t, err)
	fresh := hextrie.NewStore(hextrie.Config{Persist: reopened})
	v, err := fresh.Resolve(ctx, root, hextrie.MustParseKey("abcde"))
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), v)
}
