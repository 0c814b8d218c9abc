package encode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
	"github.com/JonMunkholm/sasbridge/internal/dataset"
)

// metadataKey holds the JSON description of the source table in the
// file's key/value metadata. It carries what the Parquet schema alone
// cannot: declared SAS types, labels, formats and widths.
const metadataKey = "sasbridge.table"

// Logical type mapping:
//
//	Numeric  -> DOUBLE
//	Text     -> BYTE_ARRAY (STRING)
//	Date     -> INT32 (DATE)
//	DateTime -> INT64 (TIMESTAMP micros, UTC)
//	Time     -> INT64 (TIME micros)
//
// Every column is OPTIONAL; missing values are nulls.
var arrowTypes = map[dataset.ColumnType]arrow.DataType{
	dataset.Numeric:  arrow.PrimitiveTypes.Float64,
	dataset.Text:     arrow.BinaryTypes.String,
	dataset.Date:     arrow.FixedWidthTypes.Date32,
	dataset.DateTime: &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"},
	dataset.Time:     arrow.FixedWidthTypes.Time64us,
}

type columnMeta struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Label  string `json:"label,omitempty"`
	Format string `json:"format,omitempty"`
	Width  int    `json:"width,omitempty"`
}

type tableMeta struct {
	Name        string       `json:"name,omitempty"`
	Created     time.Time    `json:"created,omitzero"`
	Modified    time.Time    `json:"modified,omitzero"`
	Encoding    string       `json:"encoding,omitempty"`
	Compression string       `json:"compression,omitempty"`
	Release     string       `json:"release,omitempty"`
	Platform    string       `json:"platform,omitempty"`
	Columns     []columnMeta `json:"columns"`
}

// Parquet writes a single row group with Zstandard-compressed pages.
type Parquet struct{}

func (Parquet) ContentType() string { return "application/vnd.apache.parquet" }

func (Parquet) Extension() string { return ".parquet" }

func (Parquet) Encode(t *dataset.Table) ([]byte, error) {
	const op = "encode.parquet"

	fields := make([]arrow.Field, len(t.Columns))
	meta := tableMeta{
		Name:        t.Meta.Name,
		Created:     t.Meta.Created,
		Modified:    t.Meta.Modified,
		Encoding:    t.Meta.Encoding,
		Compression: t.Meta.Compression,
		Release:     t.Meta.Release,
		Platform:    t.Meta.Platform,
		Columns:     make([]columnMeta, len(t.Columns)),
	}
	for i, c := range t.Columns {
		dt, ok := arrowTypes[c.Type]
		if !ok {
			return nil, unsupported(op, c)
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt, Nullable: true}
		meta.Columns[i] = columnMeta{
			Name:   c.Name,
			Type:   c.Type.String(),
			Label:  c.Label,
			Format: c.Format,
			Width:  c.Width,
		}
	}
	if err := t.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.Encode, op, "invalid table", err)
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, apperr.Wrap(apperr.Encode, op, "marshal metadata", err)
	}
	md := arrow.NewMetadata([]string{metadataKey}, []string{string(metaJSON)})
	schema := arrow.NewSchema(fields, &md)

	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for i, c := range t.Columns {
		if err := appendColumn(b.Field(i), c); err != nil {
			return nil, apperr.Wrap(apperr.Encode, op, "", err)
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithAllocator(mem),
		parquet.WithCreatedBy("sasbridge"),
	)
	w, err := pqarrow.NewFileWriter(schema, &buf, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return nil, apperr.Wrap(apperr.Encode, op, "create writer", err)
	}
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return nil, apperr.Wrap(apperr.Encode, op, "write rows", err)
	}
	if err := w.Close(); err != nil {
		return nil, apperr.Wrap(apperr.Encode, op, "close writer", err)
	}
	return buf.Bytes(), nil
}

func appendColumn(fb array.Builder, c dataset.Column) error {
	for r, v := range c.Values {
		if v == nil {
			fb.AppendNull()
			continue
		}
		ok := true
		switch b := fb.(type) {
		case *array.Float64Builder:
			var f float64
			if f, ok = v.(float64); ok {
				b.Append(f)
			}
		case *array.StringBuilder:
			var s string
			if s, ok = v.(string); ok {
				b.Append(s)
			}
		case *array.Date32Builder:
			var tm time.Time
			if tm, ok = v.(time.Time); ok {
				b.Append(arrow.Date32FromTime(tm.UTC()))
			}
		case *array.TimestampBuilder:
			var tm time.Time
			if tm, ok = v.(time.Time); ok {
				b.Append(arrow.Timestamp(tm.UnixMicro()))
			}
		case *array.Time64Builder:
			var d time.Duration
			if d, ok = v.(time.Duration); ok {
				b.Append(arrow.Time64(d.Microseconds()))
			}
		default:
			return fmt.Errorf("column %q: no builder for %s", c.Name, c.Type)
		}
		if !ok {
			return fmt.Errorf("column %q row %d: unexpected %T for %s", c.Name, r, v, c.Type)
		}
	}
	return nil
}
