package history

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecorder stores entries in the conversion_history table.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder creates a recorder backed by pool.
func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{pool: pool}
}

const insertEntry = `
INSERT INTO conversion_history (
    id, file_name, format, status, stage, error_kind, error_text,
    rows_count, column_count, input_bytes, output_bytes, duration_ms,
    subject, ip_address, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

func (p *PostgresRecorder) Record(ctx context.Context, e Entry) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("history id: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err = p.pool.Exec(ctx, insertEntry,
		id, e.FileName, e.Format, string(e.Status), e.Stage,
		toPgText(e.ErrorKind), toPgText(e.Error),
		e.Rows, e.Columns, e.InputBytes, e.OutputBytes, e.DurationMS,
		toPgText(e.Subject), parseIP(e.IPAddress), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

const selectRecent = `
SELECT id, file_name, format, status, stage, error_kind, error_text,
       rows_count, column_count, input_bytes, output_bytes, duration_ms,
       subject, ip_address, created_at
FROM conversion_history
ORDER BY created_at DESC
LIMIT $1`

func (p *PostgresRecorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := p.pool.Query(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return entries, nil
}

func scanEntry(row pgx.CollectableRow) (Entry, error) {
	var (
		e         Entry
		id        uuid.UUID
		status    string
		errorKind pgtype.Text
		errorText pgtype.Text
		subject   pgtype.Text
		ipAddress *netip.Addr
	)
	err := row.Scan(
		&id, &e.FileName, &e.Format, &status, &e.Stage, &errorKind, &errorText,
		&e.Rows, &e.Columns, &e.InputBytes, &e.OutputBytes, &e.DurationMS,
		&subject, &ipAddress, &e.CreatedAt,
	)
	if err != nil {
		return Entry{}, err
	}

	e.ID = id.String()
	e.Status = Status(status)
	e.ErrorKind = errorKind.String
	e.Error = errorText.String
	e.Subject = subject.String
	if ipAddress != nil {
		e.IPAddress = ipAddress.String()
	}
	return e, nil
}

func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// parseIP strips a port if present. Unparseable addresses are stored as NULL.
func parseIP(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}
