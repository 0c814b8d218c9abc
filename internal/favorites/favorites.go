// Package favorites persists saved SFTP connection descriptors. A favorite
// never holds a password.
//
// Concurrent writers to the same name are not coordinated: the last write
// wins.
package favorites

import (
	"context"
	"strings"
	"time"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
)

// Favorite is a saved connection.
type Favorite struct {
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Username  string    `json:"username"`
	Path      string    `json:"path,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Store persists favorites keyed by name.
type Store interface {
	List(ctx context.Context) ([]Favorite, error)
	// Save creates or replaces the favorite with f.Name.
	Save(ctx context.Context, f Favorite) (Favorite, error)
	// Delete removes name, failing with apperr.NotFound if it is absent.
	Delete(ctx context.Context, name string) error
}

// Normalize trims fields, applies the default port and validates.
func Normalize(f Favorite) (Favorite, error) {
	const op = "favorites.validate"

	f.Name = strings.TrimSpace(f.Name)
	f.Host = strings.TrimSpace(f.Host)
	f.Username = strings.TrimSpace(f.Username)
	f.Path = strings.TrimSpace(f.Path)
	if f.Port == 0 {
		f.Port = 22
	}

	switch {
	case f.Name == "":
		return f, apperr.New(apperr.Invalid, op, "name is required")
	case strings.ContainsAny(f.Name, "/\\"):
		return f, apperr.New(apperr.Invalid, op, "name must not contain slashes")
	case f.Host == "":
		return f, apperr.New(apperr.Invalid, op, "host is required")
	case f.Username == "":
		return f, apperr.New(apperr.Invalid, op, "username is required")
	case f.Port < 1 || f.Port > 65535:
		return f, apperr.Errorf(apperr.Invalid, op, "port %d out of range", f.Port)
	}
	return f, nil
}

func notFound(op, name string) error {
	return apperr.Errorf(apperr.NotFound, op, "favorite %q not found", name)
}
