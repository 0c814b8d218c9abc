package encode

import (
	"bytes"
	"errors"
	"strconv"
	"time"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
	"github.com/JonMunkholm/sasbridge/internal/dataset"
)

const (
	delimiter  = '|'
	terminator = '\n'

	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// Delimited writes a header line of column names followed by one line per
// row, fields separated by '|'. Text is written verbatim: a '|' or newline
// inside a value is not quoted or escaped, which downstream consumers of
// this format expect.
type Delimited struct{}

func (Delimited) ContentType() string { return "text/plain; charset=utf-8" }

func (Delimited) Extension() string { return ".txt" }

func (Delimited) Encode(t *dataset.Table) ([]byte, error) {
	const op = "encode.delimited"

	for _, c := range t.Columns {
		switch c.Type {
		case dataset.Numeric, dataset.Text, dataset.Date, dataset.DateTime, dataset.Time:
		default:
			return nil, unsupported(op, c)
		}
	}
	if err := t.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.Encode, op, "invalid table", err)
	}

	var buf bytes.Buffer
	for i, c := range t.Columns {
		if i > 0 {
			buf.WriteByte(delimiter)
		}
		buf.WriteString(c.Name)
	}
	buf.WriteByte(terminator)

	for r := range t.Rows {
		for i, c := range t.Columns {
			if i > 0 {
				buf.WriteByte(delimiter)
			}
			if err := appendField(&buf, c, c.Values[r]); err != nil {
				return nil, badValue(op, c, r, c.Values[r])
			}
		}
		buf.WriteByte(terminator)
	}
	return buf.Bytes(), nil
}

var errType = errors.New("value does not match column type")

func appendField(buf *bytes.Buffer, c dataset.Column, v any) error {
	if v == nil {
		return nil
	}
	switch c.Type {
	case dataset.Numeric:
		f, ok := v.(float64)
		if !ok {
			return errType
		}
		buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	case dataset.Text:
		s, ok := v.(string)
		if !ok {
			return errType
		}
		buf.WriteString(s)
	case dataset.Date:
		tm, ok := v.(time.Time)
		if !ok {
			return errType
		}
		buf.WriteString(tm.UTC().Format(dateLayout))
	case dataset.DateTime:
		tm, ok := v.(time.Time)
		if !ok {
			return errType
		}
		buf.WriteString(tm.UTC().Format(dateTimeLayout))
	case dataset.Time:
		d, ok := v.(time.Duration)
		if !ok {
			return errType
		}
		buf.WriteString(formatClock(d))
	}
	return nil
}

// formatClock renders a time of day as HH:MM:SS. Hours are not wrapped at
// 24 so durations past midnight stay lossless; negative values get a sign.
func formatClock(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	secs := int64(d / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60
	b := make([]byte, 0, 9)
	b = append(b, sign...)
	b = appendTwo(b, h)
	b = append(b, ':')
	b = appendTwo(b, m)
	b = append(b, ':')
	b = appendTwo(b, s)
	return string(b)
}

func appendTwo(b []byte, n int64) []byte {
	if n < 10 {
		b = append(b, '0')
	}
	return strconv.AppendInt(b, n, 10)
}
