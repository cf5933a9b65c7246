package persist

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jrhy/hextrie"
	"github.com/jrhy/hextrie/persist/bolt"
	"github.com/jrhy/hextrie/persist/dbconfig"
	"github.com/jrhy/hextrie/persist/leveldb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewStoreEachType(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for _, cfg := range []dbconfig.DBConfiguration{
		{Type: dbconfig.InMemoryDB, NodeCacheSize: 10},
		{Type: dbconfig.FileDB, FileOptions: dbconfig.FileOptions{Path: filepath.Join(dir, "files")}},
		{Type: dbconfig.LevelDB, LevelDBOptions: leveldbOptions(dir)},
		{Type: dbconfig.BoltDB, BoltDBOptions: boltOptions(dir), MetricsNamespace: "hextrie"},
	} {
		t.Run(cfg.Type, func(t *testing.T) {
			store, closer, err := NewStore(cfg, zaptest.NewLogger(t), prometheus.NewRegistry())
			require.NoError(t, err)
			defer closer.Close()

			trie := store.NewTrie()
			key := hextrie.MustParseKey("abcde")
			require.NoError(t, trie.Insert(ctx, key, []byte("22")))
			root, err := trie.Commit(ctx)
			require.NoError(t, err)
			v, err := store.Resolve(ctx, root, key)
			require.NoError(t, err)
			require.Equal(t, []byte("22"), v)
		})
	}
}

func TestNewRejectsInvalid(t *testing.T) {
	_, _, err := New(dbconfig.DBConfiguration{Type: dbconfig.LevelDB}, nil)
	require.Error(t, err)
}

func leveldbOptions(dir string) leveldb.Options {
	return leveldb.Options{DataDirectoryPath: filepath.Join(dir, "leveldb")}
}

func boltOptions(dir string) bolt.Options {
	return bolt.Options{FilePath: filepath.Join(dir, "bolt", "records.bolt")}
}

func TestNewClosesOnMetricsFailure(t *testing.T) {
	dir := t.TempDir()
	reg := prometheus.NewRegistry()
	_, closer, err := New(dbconfig.DBConfiguration{Type: dbconfig.InMemoryDB, MetricsNamespace: "hextrie"}, reg)
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	opts := leveldbOptions(dir)
	_, _, err = New(dbconfig.DBConfiguration{Type: dbconfig.LevelDB, LevelDBOptions: opts, MetricsNamespace: "hextrie"}, reg)
	require.ErrorContains(t, err, "metrics")

	// The database lock was released.
	p, err := leveldb.Open(opts)
	require.NoError(t, err)
	require.NoError(t, p.Close())
}
