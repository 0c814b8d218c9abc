package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// FileStore keeps favorites as a JSON array in one file. Writes replace
// the file atomically.
type FileStore struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewFileStore uses path, creating its directory on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) List(ctx context.Context) ([]Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) Save(ctx context.Context, f Favorite) (Favorite, error) {
	f, err := Normalize(f)
	if err != nil {
		return Favorite{}, err
	}
	f.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return Favorite{}, err
	}
	i := slices.IndexFunc(all, func(x Favorite) bool { return x.Name == f.Name })
	if i >= 0 {
		all[i] = f
	} else {
		all = append(all, f)
	}
	if err := s.store(all); err != nil {
		return Favorite{}, err
	}
	return f, nil
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	i := slices.IndexFunc(all, func(x Favorite) bool { return x.Name == name })
	if i < 0 {
		return notFound("favorites.delete", name)
	}
	return s.store(slices.Delete(all, i, i+1))
}

func (s *FileStore) load() ([]Favorite, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Favorite{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read favorites: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []Favorite{}, nil
	}

	var all []Favorite
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse favorites %s: %w", s.path, err)
	}
	return all, nil
}

func (s *FileStore) store(all []Favorite) error {
	slices.SortFunc(all, func(a, b Favorite) int { return strings.Compare(a.Name, b.Name) })

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create favorites dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".favorites-*.json")
	if err != nil {
		return fmt.Errorf("write favorites: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write favorites: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write favorites: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace favorites: %w", err)
	}
	return nil
}
