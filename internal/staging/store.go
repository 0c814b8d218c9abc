// Package staging keeps uploaded datasets in an object store for the
// lifetime of one conversion.
//
// Every Put writes under a fresh key and never overwrites an existing
// object. Get on a missing key fails with a NotFoundError; Delete on a
// missing key succeeds, so releasing a staged object twice is harmless.
// Stores do not retry. Failures other than a missing key carry
// apperr.Staging.
package staging

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
)

// Store is a blocking object store client.
type Store interface {
	// Put stores data under a newly generated key.
	Put(ctx context.Context, data []byte, contentType string) (Object, error)
	// Get returns the bytes stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Object identifies a staged upload.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// errKeyExists reports a conditional write that found the key taken.
var errKeyExists = errors.New("key already exists")

// ErrNotFound is the sentinel behind every NotFoundError.
var ErrNotFound = errors.New("object not found")

// NotFoundError conveys that a specific key is not in the store.
type NotFoundError struct {
	Key string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return "object not found"
	}
	return fmt.Sprintf("%s: not found", e.Key)
}

func (e NotFoundError) Unwrap() error {
	return ErrNotFound
}

// IsNotFound reports whether err represents a missing staged object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func notFound(op, key string) error {
	return apperr.Wrap(apperr.NotFound, op, "", NotFoundError{Key: key})
}

func failed(op, key string, err error) error {
	return apperr.Wrap(apperr.Staging, op, key, err)
}

// newKey returns prefix + yyyy/mm/dd/<uuid v4>. The date part only groups
// objects for lifecycle rules; uniqueness comes from the UUID.
func newKey(prefix string, now time.Time) string {
	now = now.UTC()
	return prefix + path.Join(now.Format("2006"), now.Format("01"), now.Format("02"), uuid.NewString())
}
