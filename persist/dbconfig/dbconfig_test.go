package dbconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
Type: leveldb
LevelDBOptions:
  DataDirectoryPath: /var/db/state
  KeyPrefix: "mpt/"
NodeCacheSize: 5000
StoreConcurrency: 16
`))
	require.NoError(t, err)
	require.Equal(t, LevelDB, cfg.Type)
	require.Equal(t, "/var/db/state", cfg.LevelDBOptions.DataDirectoryPath)
	require.Equal(t, "mpt/", cfg.LevelDBOptions.KeyPrefix)
	require.Equal(t, 5000, cfg.NodeCacheSize)
	require.Equal(t, 16, cfg.StoreConcurrency)
}

func TestParseDefaultsToInMemory(t *testing.T) {
	cfg, err := Parse([]byte(`NodeCacheSize: 10`))
	require.NoError(t, err)
	require.Equal(t, InMemoryDB, cfg.Type)
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown type":   "Type: redis",
		"missing path":   "Type: boltdb",
		"missing bucket": "Type: s3\nS3Options:\n  Prefix: x/",
		"negative cache": "NodeCacheSize: -1",
		"not yaml":       "Type: [",
		"unknown field":  "Type: inmemory\nCacheSize: 3",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.yml")
	require.NoError(t, os.WriteFile(path, []byte("Type: boltdb\nBoltDBOptions:\n  FilePath: /tmp/x.bolt\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/x.bolt", cfg.BoltDBOptions.FilePath)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}
