package encode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
	"github.com/JonMunkholm/sasbridge/internal/dataset"
)

// ReadParquet restores a table written by Parquet.Encode. Files without the
// sasbridge metadata are read too; column types are then inferred from the
// Parquet schema and labels, formats and widths are left empty.
func ReadParquet(ctx context.Context, data []byte) (*dataset.Table, error) {
	const op = "encode.read_parquet"

	rdr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.Decode, op, "open file", err)
	}
	defer rdr.Close()

	var meta *tableMeta
	if v := rdr.MetaData().KeyValueMetadata().FindValue(metadataKey); v != nil {
		meta = &tableMeta{}
		if err := json.Unmarshal([]byte(*v), meta); err != nil {
			return nil, apperr.Wrap(apperr.Decode, op, "parse metadata", err)
		}
	}

	mem := memory.NewGoAllocator()
	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, apperr.Wrap(apperr.Decode, op, "arrow reader", err)
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Decode, op, "read rows", err)
	}
	defer tbl.Release()

	out := &dataset.Table{Rows: int(tbl.NumRows())}
	if meta != nil {
		out.Meta = dataset.Metadata{
			Name:        meta.Name,
			Created:     meta.Created,
			Modified:    meta.Modified,
			Encoding:    meta.Encoding,
			Compression: meta.Compression,
			Release:     meta.Release,
			Platform:    meta.Platform,
		}
		if len(meta.Columns) != int(tbl.NumCols()) {
			return nil, apperr.Errorf(apperr.Decode, op, "metadata lists %d columns, file has %d", len(meta.Columns), tbl.NumCols())
		}
	}

	for i := range int(tbl.NumCols()) {
		col := tbl.Column(i)
		c := dataset.Column{Name: col.Name(), Values: make([]any, 0, out.Rows)}
		if meta != nil {
			cm := meta.Columns[i]
			ct, err := dataset.ParseColumnType(cm.Type)
			if err != nil {
				return nil, apperr.Wrap(apperr.Decode, op, "column "+cm.Name, err)
			}
			c.Type, c.Label, c.Format, c.Width = ct, cm.Label, cm.Format, cm.Width
		} else {
			ct, err := inferType(col.DataType())
			if err != nil {
				return nil, apperr.Wrap(apperr.Decode, op, "column "+col.Name(), err)
			}
			c.Type = ct
		}

		for _, chunk := range col.Data().Chunks() {
			vals, err := chunkValues(chunk)
			if err != nil {
				return nil, apperr.Wrap(apperr.Decode, op, "column "+c.Name, err)
			}
			c.Values = append(c.Values, vals...)
		}
		out.Columns = append(out.Columns, c)
	}

	if err := out.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.Decode, op, "invalid table", err)
	}
	return out, nil
}

func inferType(dt arrow.DataType) (dataset.ColumnType, error) {
	switch dt.ID() {
	case arrow.FLOAT64, arrow.FLOAT32, arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return dataset.Numeric, nil
	case arrow.STRING, arrow.LARGE_STRING, arrow.BINARY:
		return dataset.Text, nil
	case arrow.DATE32:
		return dataset.Date, nil
	case arrow.TIMESTAMP:
		return dataset.DateTime, nil
	case arrow.TIME32, arrow.TIME64:
		return dataset.Time, nil
	}
	return 0, fmt.Errorf("unsupported parquet column type %s", dt)
}

func chunkValues(arr arrow.Array) ([]any, error) {
	vals := make([]any, arr.Len())
	for i := range vals {
		if arr.IsNull(i) {
			continue
		}
		switch a := arr.(type) {
		case *array.Float64:
			vals[i] = a.Value(i)
		case *array.Float32:
			vals[i] = float64(a.Value(i))
		case *array.Int8:
			vals[i] = float64(a.Value(i))
		case *array.Int16:
			vals[i] = float64(a.Value(i))
		case *array.Int32:
			vals[i] = float64(a.Value(i))
		case *array.Int64:
			vals[i] = float64(a.Value(i))
		case *array.Uint8:
			vals[i] = float64(a.Value(i))
		case *array.Uint16:
			vals[i] = float64(a.Value(i))
		case *array.Uint32:
			vals[i] = float64(a.Value(i))
		case *array.Uint64:
			vals[i] = float64(a.Value(i))
		case *array.String:
			vals[i] = a.Value(i)
		case *array.LargeString:
			vals[i] = a.Value(i)
		case *array.Binary:
			vals[i] = string(a.Value(i))
		case *array.Date32:
			vals[i] = a.Value(i).ToTime()
		case *array.Timestamp:
			unit := a.DataType().(*arrow.TimestampType).Unit
			vals[i] = a.Value(i).ToTime(unit).UTC()
		case *array.Time64:
			unit := a.DataType().(*arrow.Time64Type).Unit
			vals[i] = time.Duration(a.Value(i)) * unit.Multiplier()
		case *array.Time32:
			unit := a.DataType().(*arrow.Time32Type).Unit
			vals[i] = time.Duration(a.Value(i)) * unit.Multiplier()
		default:
			return nil, fmt.Errorf("unsupported arrow array %T", arr)
		}
	}
	return vals, nil
}
