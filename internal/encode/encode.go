// Package encode serializes a dataset.Table into the supported output
// formats.
//
// Encoders are stateless and safe for concurrent use. An encoder either
// returns the complete output or an error; rows are never dropped. The only
// encoder-level failure is a column type the format cannot represent, which
// is reported as an *apperr.E of kind apperr.Encode.
package encode

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
	"github.com/JonMunkholm/sasbridge/internal/dataset"
)

// Format names an output format.
type Format string

const (
	// FormatParquet is an Apache Parquet file.
	FormatParquet Format = "parquet"
	// FormatDelimited is pipe-delimited text ("PDSAS").
	FormatDelimited Format = "pdsas"
)

// Encoder turns a table into the bytes of one output file.
type Encoder interface {
	Encode(t *dataset.Table) ([]byte, error)
	// ContentType is the MIME type of the output.
	ContentType() string
	// Extension is the file extension of the output, including the dot.
	Extension() string
}

// ForFormat returns the encoder for f.
func ForFormat(f Format) (Encoder, error) {
	switch f {
	case FormatParquet:
		return Parquet{}, nil
	case FormatDelimited:
		return Delimited{}, nil
	}
	return nil, apperr.Errorf(apperr.Invalid, "encode.for_format", "unknown output format %q", f)
}

// ParseFormat accepts a format name case-insensitively. "txt" and
// "delimited" are aliases of FormatDelimited.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "parquet":
		return FormatParquet, nil
	case "pdsas", "txt", "delimited":
		return FormatDelimited, nil
	}
	return "", apperr.Errorf(apperr.Invalid, "encode.parse_format", "unknown output format %q", s)
}

func unsupported(op string, c dataset.Column) error {
	return apperr.Errorf(apperr.Encode, op, "column %q has unsupported type %s", c.Name, c.Type)
}

func badValue(op string, c dataset.Column, row int, v any) error {
	return apperr.Wrap(apperr.Encode, op, "", fmt.Errorf("column %q row %d: unexpected %T for %s", c.Name, row, v, c.Type))
}
