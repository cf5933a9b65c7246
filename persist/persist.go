// Package persist builds record stores from a dbconfig.DBConfiguration.
package persist

import (
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/jrhy/hextrie"
	"github.com/jrhy/hextrie/persist/bolt"
	"github.com/jrhy/hextrie/persist/dbconfig"
	"github.com/jrhy/hextrie/persist/file"
	"github.com/jrhy/hextrie/persist/leveldb"
	"github.com/jrhy/hextrie/persist/metered"
	"github.com/jrhy/hextrie/persist/s3"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns the Persist described by cfg and a Closer releasing its
// resources. When cfg.MetricsNamespace is set the Persist is metered and
// its collectors are registered on reg.
func New(cfg dbconfig.DBConfiguration, reg prometheus.Registerer) (hextrie.Persist, io.Closer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	var (
		p      hextrie.Persist
		closer io.Closer = nopCloser{}
	)
	switch cfg.Type {
	case dbconfig.InMemoryDB:
		p = hextrie.NewInMemoryStore()
	case dbconfig.FileDB:
		fp, err := file.NewPersistForPath(cfg.FileOptions.Path)
		if err != nil {
			return nil, nil, err
		}
		p = fp
	case dbconfig.LevelDB:
		lp, err := leveldb.Open(cfg.LevelDBOptions)
		if err != nil {
			return nil, nil, err
		}
		p, closer = lp, lp
	case dbconfig.BoltDB:
		bp, err := bolt.Open(cfg.BoltDBOptions)
		if err != nil {
			return nil, nil, err
		}
		p, closer = bp, bp
	case dbconfig.S3DB:
		o := cfg.S3Options
		awsCfg := aws.Config{S3ForcePathStyle: aws.Bool(o.ForcePathStyle)}
		if o.Region != "" {
			awsCfg.Region = aws.String(o.Region)
		}
		if o.Endpoint != "" {
			awsCfg.Endpoint = aws.String(o.Endpoint)
		}
		sess, err := session.NewSession(&awsCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("s3 session: %w", err)
		}
		p = s3.NewPersist(awss3.New(sess), o.Bucket, o.Prefix)
	}
	if cfg.MetricsNamespace != "" {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		mp, err := metered.New(p, reg, cfg.MetricsNamespace)
		if err != nil {
			err = fmt.Errorf("metrics: %w", err)
			if cerr := closer.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("close: %w", cerr))
			}
			return nil, nil, err
		}
		p = mp
	}
	return p, closer, nil
}

// NewStore is New followed by hextrie.NewStore with the cache size and
// write concurrency from cfg.
func NewStore(cfg dbconfig.DBConfiguration, log *zap.Logger, reg prometheus.Registerer) (*hextrie.Store, io.Closer, error) {
	p, closer, err := New(cfg, reg)
	if err != nil {
		return nil, nil, err
	}
	storeCfg := hextrie.Config{
		Persist:          p,
		Logger:           log,
		StoreConcurrency: cfg.StoreConcurrency,
	}
	if cfg.NodeCacheSize > 0 {
		storeCfg.NodeCache = hextrie.NewNodeCache(cfg.NodeCacheSize)
	}
	if log != nil {
		log.Info("opened record store", zap.String("type", cfg.Type))
	}
	return hextrie.NewStore(storeCfg), closer, nil
}
