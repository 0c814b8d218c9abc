package staging

import (
	"context"

	"github.com/klauspost/compress/zstd"
)

// zstdStore compresses objects at rest. Keys and content types pass
// through unchanged; Object.Size reports the uncompressed length.
type zstdStore struct {
	inner Store
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// Compress wraps s so that stored bytes are zstd frames. Encoder and
// decoder are used only through EncodeAll/DecodeAll, which are safe for
// concurrent use.
func Compress(s Store) (Store, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, failed("staging.compress", "", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, failed("staging.compress", "", err)
	}
	return &zstdStore{inner: s, enc: enc, dec: dec}, nil
}

func (s *zstdStore) Put(ctx context.Context, data []byte, contentType string) (Object, error) {
	packed := s.enc.EncodeAll(data, make([]byte, 0, len(data)/2))
	obj, err := s.inner.Put(ctx, packed, contentType)
	if err != nil {
		return Object{}, err
	}
	obj.Size = int64(len(data))
	return obj, nil
}

func (s *zstdStore) Get(ctx context.Context, key string) ([]byte, error) {
	packed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := s.dec.DecodeAll(packed, nil)
	if err != nil {
		return nil, failed("staging.get", key, err)
	}
	return data, nil
}

func (s *zstdStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}
