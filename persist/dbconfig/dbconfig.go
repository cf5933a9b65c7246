/*
Package dbconfig is a micropackage that contains record store configuration options.
*/
package dbconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jrhy/hextrie/persist/bolt"
	"github.com/jrhy/hextrie/persist/leveldb"
	"gopkg.in/yaml.v3"
)

// Store types.
const (
	InMemoryDB = "inmemory"
	FileDB     = "file"
	LevelDB    = "leveldb"
	BoltDB     = "boltdb"
	S3DB       = "s3"
)

type (
	// DBConfiguration describes where records are kept. Supported types:
	// [InMemoryDB] (not durable), [FileDB], [LevelDB], [BoltDB] or [S3DB].
	DBConfiguration struct {
		Type           string          `yaml:"Type"`
		FileOptions    FileOptions     `yaml:"FileOptions"`
		LevelDBOptions leveldb.Options `yaml:"LevelDBOptions"`
		BoltDBOptions  bolt.Options    `yaml:"BoltDBOptions"`
		S3Options      S3Options       `yaml:"S3Options"`
		// NodeCacheSize is the number of decoded records kept in memory;
		// 0 disables the cache.
		NodeCacheSize int `yaml:"NodeCacheSize"`
		// StoreConcurrency bounds parallel record writes per commit.
		StoreConcurrency int `yaml:"StoreConcurrency"`
		// MetricsNamespace, when set, instruments the store with
		// Prometheus counters under this namespace.
		MetricsNamespace string `yaml:"MetricsNamespace"`
	}
	// FileOptions configuration for one-file-per-record storage.
	FileOptions struct {
		Path string `yaml:"Path"`
	}
	// S3Options configuration for bucket storage.
	S3Options struct {
		Bucket         string `yaml:"Bucket"`
		Prefix         string `yaml:"Prefix"`
		Region         string `yaml:"Region"`
		Endpoint       string `yaml:"Endpoint"`
		ForcePathStyle bool   `yaml:"ForcePathStyle"`
	}
)

// Load reads a DBConfiguration from the YAML file at path.
func Load(path string) (DBConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DBConfiguration{}, fmt.Errorf("unable to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML DBConfiguration, rejecting unknown fields and types.
func Parse(data []byte) (DBConfiguration, error) {
	cfg := DBConfiguration{Type: InMemoryDB}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return DBConfiguration{}, fmt.Errorf("problem unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return DBConfiguration{}, err
	}
	return cfg, nil
}

// Validate checks that the options required by Type are present.
func (c DBConfiguration) Validate() error {
	switch c.Type {
	case InMemoryDB:
	case FileDB:
		if c.FileOptions.Path == "" {
			return fmt.Errorf("%s: FileOptions.Path is required", c.Type)
		}
	case LevelDB:
		if c.LevelDBOptions.DataDirectoryPath == "" {
			return fmt.Errorf("%s: LevelDBOptions.DataDirectoryPath is required", c.Type)
		}
	case BoltDB:
		if c.BoltDBOptions.FilePath == "" {
			return fmt.Errorf("%s: BoltDBOptions.FilePath is required", c.Type)
		}
	case S3DB:
		if c.S3Options.Bucket == "" {
			return fmt.Errorf("%s: S3Options.Bucket is required", c.Type)
		}
	default:
		return fmt.Errorf("unknown store type %q", c.Type)
	}
	if c.NodeCacheSize < 0 {
		return fmt.Errorf("negative NodeCacheSize %d", c.NodeCacheSize)
	}
	return nil
}
