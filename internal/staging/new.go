package staging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/sasbridge/internal/config"
)

// New builds the store selected by cfg.Backend, wrapped for at-rest
// compression when enabled and bounded by cfg.OperationTimeout.
func New(ctx context.Context, cfg config.StagingConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	opts := Options{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
		Prefix:    cfg.Prefix,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
	}
	switch strings.ToLower(cfg.Backend) {
	case "s3":
		s, err = NewS3Store(ctx, opts)
	case "minio":
		s, err = NewMinioStore(opts)
	case "memory":
		s = NewMemoryStore(cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown staging backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Compress {
		if s, err = Compress(s); err != nil {
			return nil, err
		}
	}
	return WithTimeout(s, cfg.OperationTimeout), nil
}

type timeoutStore struct {
	inner   Store
	timeout time.Duration
}

// WithTimeout bounds every call on s by d. A non-positive d returns s.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &timeoutStore{inner: s, timeout: d}
}

func (s *timeoutStore) Put(ctx context.Context, data []byte, contentType string) (Object, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.Put(ctx, data, contentType)
}

func (s *timeoutStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.Get(ctx, key)
}

func (s *timeoutStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.Delete(ctx, key)
}
