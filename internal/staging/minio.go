package staging

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore stages objects through the MinIO client. It suits
// self-hosted deployments where the S3 SDK's AWS-specific defaults get in
// the way.
type MinioStore struct {
	api    *minio.Client
	bucket string
	prefix string
}

// NewMinioStore connects to opts.Endpoint, given as host:port or a URL. A
// URL scheme overrides opts.UseSSL.
func NewMinioStore(opts Options) (*MinioStore, error) {
	endpoint, useSSL := opts.Endpoint, opts.UseSSL
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint, useSSL = strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint, useSSL = strings.TrimPrefix(endpoint, "http://"), false
	}

	api, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: useSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, failed("staging.minio_client", "", err)
	}
	return &MinioStore{api: api, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

func (s *MinioStore) Put(ctx context.Context, data []byte, contentType string) (Object, error) {
	const op = "staging.put"

	key := newKey(s.prefix, time.Now())
	opts := minio.PutObjectOptions{ContentType: contentType}
	opts.SetMatchETagExcept("*")

	_, err := s.api.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		if minio.ToErrorResponse(err).StatusCode == http.StatusPreconditionFailed {
			return Object{}, failed(op, key, errKeyExists)
		}
		return Object{}, failed(op, key, err)
	}
	return Object{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "staging.get"

	obj, err := s.api.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.getErr(op, key, err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.getErr(op, key, err)
	}
	return data, nil
}

func (s *MinioStore) getErr(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return notFound(op, key)
	}
	return failed(op, key, err)
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).StatusCode != http.StatusNotFound {
		return failed("staging.delete", key, err)
	}
	return nil
}
