package favorites

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps favorites in the sftp_favorites table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) List(ctx context.Context) ([]Favorite, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, host, port, username, path, updated_at FROM sftp_favorites ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	all, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Favorite])
	if err != nil {
		return nil, fmt.Errorf("scan favorites: %w", err)
	}
	return all, nil
}

func (s *PostgresStore) Save(ctx context.Context, f Favorite) (Favorite, error) {
	f, err := Normalize(f)
	if err != nil {
		return Favorite{}, err
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO sftp_favorites (name, host, port, username, path, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (name) DO UPDATE
		SET host = EXCLUDED.host, port = EXCLUDED.port, username = EXCLUDED.username,
		    path = EXCLUDED.path, updated_at = EXCLUDED.updated_at
		RETURNING updated_at`,
		f.Name, f.Host, f.Port, f.Username, f.Path,
	).Scan(&f.UpdatedAt)
	if err != nil {
		return Favorite{}, fmt.Errorf("save favorite: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sftp_favorites WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("favorites.delete", name)
	}
	return nil
}
