package favorites

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sasbridge/internal/config"
)

// New returns the store selected by cfg.Backend. The postgres backend
// needs pool.
func New(cfg config.FavoritesConfig, pool *pgxpool.Pool) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return NewFileStore(cfg.Path), nil
	case "postgres":
		if pool == nil {
			return nil, errors.New("favorites: postgres backend requires DATABASE_URL")
		}
		return NewPostgresStore(pool), nil
	}
	return nil, fmt.Errorf("favorites: unknown backend %q", cfg.Backend)
}
