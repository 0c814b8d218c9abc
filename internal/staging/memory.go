package staging

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps objects in process memory. It is meant for local
// development and tests.
type MemoryStore struct {
	prefix string

	mu      sync.Mutex
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore returns an empty store that generates keys under prefix.
func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{prefix: prefix, objects: make(map[string]memObject)}
}

func (s *MemoryStore) Put(ctx context.Context, data []byte, contentType string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, failed("staging.put", "", err)
	}

	key := newKey(s.prefix, time.Now())
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[key]; exists {
		return Object{}, failed("staging.put", key, errKeyExists)
	}
	s.objects[key] = memObject{data: buf, contentType: contentType}
	return Object{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, failed("staging.get", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, notFound("staging.get", key)
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return failed("staging.delete", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
