// Package dataset holds the in-memory, format-agnostic table produced by the
// SAS7BDAT decoder and consumed by the output encoders.
//
// A Table is built once, validated, handed read-only to an encoder and then
// discarded. Cell values are stored per column as []any with these dynamic
// types:
//
//	nil            missing value (SAS "." or blank)
//	float64        Numeric
//	string         Text
//	time.Time      Date (UTC midnight) and DateTime (UTC)
//	time.Duration  Time (offset from midnight)
package dataset

import (
	"fmt"
	"time"
)

// ColumnType is the logical type of a column.
type ColumnType int

const (
	Numeric ColumnType = iota + 1
	Text
	Date
	DateTime
	Time
)

func (t ColumnType) String() string {
	switch t {
	case Numeric:
		return "numeric"
	case Text:
		return "text"
	case Date:
		return "date"
	case DateTime:
		return "datetime"
	case Time:
		return "time"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// ParseColumnType is the inverse of ColumnType.String.
func ParseColumnType(s string) (ColumnType, error) {
	switch s {
	case "numeric":
		return Numeric, nil
	case "text":
		return Text, nil
	case "date":
		return Date, nil
	case "datetime":
		return DateTime, nil
	case "time":
		return Time, nil
	}
	return 0, fmt.Errorf("unknown column type %q", s)
}

// Column is one named, typed vector of values.
type Column struct {
	Name   string
	Type   ColumnType
	Label  string
	Format string
	// Width is the declared storage width in bytes as recorded by the source.
	Width  int
	Values []any
}

// Metadata describes where a table came from. All fields are optional.
type Metadata struct {
	Name        string
	Created     time.Time
	Modified    time.Time
	Encoding    string
	Compression string
	Release     string
	Platform    string
}

// Table is an ordered set of columns sharing a row count.
type Table struct {
	Columns []Column
	Rows    int
	Meta    Metadata
}

// Validate checks the table invariants: unique non-empty names, every column
// holds exactly Rows values, and every value matches the column type.
func (t *Table) Validate() error {
	if t.Rows < 0 {
		return fmt.Errorf("negative row count %d", t.Rows)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for i, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("column %d has no name", i)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = struct{}{}

		if len(c.Values) != t.Rows {
			return fmt.Errorf("column %q has %d values, table has %d rows", c.Name, len(c.Values), t.Rows)
		}
		for r, v := range c.Values {
			if !valueMatches(c.Type, v) {
				return fmt.Errorf("column %q row %d: value of type %T does not match %s", c.Name, r, v, c.Type)
			}
		}
	}
	return nil
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func valueMatches(ct ColumnType, v any) bool {
	if v == nil {
		return true
	}
	switch ct {
	case Numeric:
		_, ok := v.(float64)
		return ok
	case Text:
		_, ok := v.(string)
		return ok
	case Date, DateTime:
		_, ok := v.(time.Time)
		return ok
	case Time:
		_, ok := v.(time.Duration)
		return ok
	}
	return false
}
