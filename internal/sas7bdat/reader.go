package sas7bdat

import (
	"bytes"
	"fmt"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
	"github.com/JonMunkholm/sasbridge/internal/dataset"
)

const op = "sas7bdat.decode"

// preallocRows caps the per-column capacity reserved up front; larger
// tables grow as rows are read.
const preallocRows = 1 << 16

func decodeErrorf(format string, args ...any) error {
	return apperr.Errorf(apperr.Decode, op, format, args...)
}

// Decode parses a complete SAS7BDAT file. Column order and row count are
// preserved exactly; a body that disagrees with the header is an error.
func Decode(data []byte) (*dataset.Table, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	r := &reader{header: h, data: data}

	if err := r.readMetadata(); err != nil {
		return nil, err
	}
	cols, err := r.buildColumns()
	if err != nil {
		return nil, err
	}
	if err := r.readRows(cols); err != nil {
		return nil, err
	}

	tbl := &dataset.Table{
		Columns: cols,
		Rows:    r.rowCount,
		Meta: dataset.Metadata{
			Name:        h.name,
			Created:     h.created,
			Modified:    h.modified,
			Encoding:    h.encoding.name,
			Compression: r.compressionName(),
			Release:     h.release,
			Platform:    h.platform,
		},
	}
	if err := tbl.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.Decode, op, "invalid table", err)
	}
	return tbl, nil
}

// pointer is one entry of a page's subheader pointer table.
type pointer struct {
	offset      int
	length      int
	compression byte
	typ         byte
}

type columnAttr struct {
	offset  int
	length  int
	numeric bool
}

type columnFormat struct {
	format string
	label  string
}

type reader struct {
	*header
	data []byte

	rowLength   int
	rowCount    int
	mixRowCount int
	colCountP1  int
	colCountP2  int
	columnCount int
	haveRowSize bool
	haveColSize bool

	compression string
	textBlocks  [][]byte
	names       []string
	attrs       []columnAttr
	formats     []columnFormat
}

func (r *reader) page(i int) []byte {
	start := r.headerLen + i*r.pageSize
	return r.data[start : start+r.pageSize]
}

func (r *reader) pageHeader(page []byte) (typ, blocks, subheaders int) {
	b := page[r.bitOffset:]
	typ = int(r.uint(b[offPageType:], 2)) & pageTypeMask
	blocks = int(r.uint(b[offBlockCount:], 2))
	subheaders = int(r.uint(b[offSubheaderCount:], 2))
	return typ, blocks, subheaders
}

func (r *reader) pointers(page []byte, count int) ([]pointer, error) {
	base := r.bitOffset + pointersOffset
	if base+count*r.pointerLen > len(page) {
		return nil, decodeErrorf("subheader pointer table overruns page: %d pointers", count)
	}
	ptrs := make([]pointer, 0, count)
	for i := range count {
		b := page[base+i*r.pointerLen:]
		p := pointer{
			offset:      int(r.uint(b, r.intLen)),
			length:      int(r.uint(b[r.intLen:], r.intLen)),
			compression: b[2*r.intLen],
			typ:         b[2*r.intLen+1],
		}
		if p.length == 0 || p.compression == truncatedSubheader {
			continue
		}
		if p.offset < 0 || p.length < 0 || p.offset > len(page) || p.length > len(page)-p.offset {
			return nil, decodeErrorf("subheader at %d (+%d) overruns page", p.offset, p.length)
		}
		ptrs = append(ptrs, p)
	}
	return ptrs, nil
}

// isRowData reports whether a pointer addresses a compressed row rather than
// a metadata subheader.
func (r *reader) isRowData(page []byte, p pointer) bool {
	if r.compression == "" || p.typ != compressedSubheaderType {
		return false
	}
	if p.compression == compressedSubheader {
		return true
	}
	if p.compression != 0 {
		return false
	}
	if p.length < r.intLen {
		return true
	}
	switch r.signature(page[p.offset:]) {
	case sigRowSize, sigColumnSize, sigSubheaderCounts, sigColumnText,
		sigColumnName, sigColumnAttributes, sigFormatAndLabel, sigColumnList:
		return false
	}
	return true
}

// readMetadata processes subheaders up to and including the first page that
// carries rows.
func (r *reader) readMetadata() error {
	for i := range r.pageCount {
		page := r.page(i)
		typ, _, count := r.pageHeader(page)

		hasRows := typ == pageData || typ == pageMix
		switch typ {
		case pageMeta, pageMeta2, pageAMD, pageMix:
			ptrs, err := r.pointers(page, count)
			if err != nil {
				return err
			}
			for _, p := range ptrs {
				if r.isRowData(page, p) {
					hasRows = true
					continue
				}
				if err := r.processSubheader(page[p.offset : p.offset+p.length]); err != nil {
					return err
				}
			}
		}
		if hasRows {
			break
		}
	}
	if !r.haveRowSize {
		return decodeErrorf("row size subheader not found")
	}
	return nil
}

func (r *reader) processSubheader(sh []byte) error {
	if len(sh) < r.intLen {
		return decodeErrorf("subheader of %d bytes is shorter than its signature", len(sh))
	}
	switch sig := r.signature(sh); sig {
	case sigRowSize:
		return r.processRowSize(sh)
	case sigColumnSize:
		return r.processColumnSize(sh)
	case sigColumnText:
		return r.processColumnText(sh)
	case sigColumnName:
		return r.processColumnName(sh)
	case sigColumnAttributes:
		return r.processColumnAttributes(sh)
	case sigFormatAndLabel:
		return r.processFormatAndLabel(sh)
	case sigSubheaderCounts, sigColumnList:
		return nil
	default:
		return decodeErrorf("unknown subheader signature %#08x", sig)
	}
}

func (r *reader) compressionName() string {
	switch r.compression {
	case literalRLE:
		return CompressionRLE
	case literalRDC:
		return CompressionRDC
	}
	return CompressionNone
}

func (r *reader) buildColumns() ([]dataset.Column, error) {
	want := r.columnCount
	if !r.haveColSize {
		want = r.colCountP1 + r.colCountP2
	}
	if len(r.names) != want || len(r.attrs) != want {
		return nil, decodeErrorf("column count mismatch: header declares %d, found %d names and %d attributes",
			want, len(r.names), len(r.attrs))
	}

	cols := make([]dataset.Column, want)
	for i, a := range r.attrs {
		if a.offset < 0 || a.length <= 0 || a.length > r.rowLength || a.offset > r.rowLength-a.length {
			return nil, decodeErrorf("column %q at byte %d (width %d) overruns a %d byte row",
				r.names[i], a.offset, a.length, r.rowLength)
		}
		c := dataset.Column{
			Name:   r.names[i],
			Type:   dataset.Text,
			Width:  a.length,
			Values: make([]any, 0, min(r.rowCount, preallocRows)),
		}
		if i < len(r.formats) {
			c.Format = r.formats[i].format
			c.Label = r.formats[i].label
		}
		if a.numeric {
			if a.length > 8 {
				return nil, decodeErrorf("numeric column %q has width %d", c.Name, a.length)
			}
			c.Type = numericType(c.Format)
		}
		cols[i] = c
	}
	return cols, nil
}

func (r *reader) readRows(cols []dataset.Column) error {
	read := 0
	for i := 0; i < r.pageCount && read < r.rowCount; i++ {
		page := r.page(i)
		typ, blocks, count := r.pageHeader(page)

		switch typ {
		case pageMeta, pageMeta2:
			ptrs, err := r.pointers(page, count)
			if err != nil {
				return err
			}
			for _, p := range ptrs {
				if read == r.rowCount {
					break
				}
				if !r.isRowData(page, p) {
					continue
				}
				if err := r.appendRow(cols, page[p.offset:p.offset+p.length], read); err != nil {
					return err
				}
				read++
			}

		case pageMix:
			start := r.bitOffset + pointersOffset + count*r.pointerLen
			start += start % 8
			n := min(r.rowCount, r.mixRowCount)
			for j := 0; j < n && read < r.rowCount; j++ {
				if err := r.appendRow(cols, r.rowAt(page, start, j), read); err != nil {
					return err
				}
				read++
			}

		case pageData:
			start := r.bitOffset + pointersOffset
			for j := 0; j < blocks && read < r.rowCount; j++ {
				if err := r.appendRow(cols, r.rowAt(page, start, j), read); err != nil {
					return err
				}
				read++
			}
		}
	}

	if read != r.rowCount {
		return decodeErrorf("row count mismatch: header declares %d rows, found %d", r.rowCount, read)
	}
	return nil
}

// rowAt returns the j-th fixed-width row after start, or nil if it would run
// past the page.
func (r *reader) rowAt(page []byte, start, j int) []byte {
	off := start + j*r.rowLength
	if off+r.rowLength > len(page) {
		return nil
	}
	return page[off : off+r.rowLength]
}

func (r *reader) appendRow(cols []dataset.Column, raw []byte, idx int) error {
	row, err := r.expandRow(raw)
	if err != nil {
		return apperr.Wrap(apperr.Decode, op, fmt.Sprintf("row %d", idx), err)
	}
	for i := range cols {
		a := r.attrs[i]
		cell := row[a.offset : a.offset+a.length]
		if a.numeric {
			cols[i].Values = append(cols[i].Values, convertNumeric(r.number(cell), cols[i].Type))
			continue
		}
		if s := r.encoding.decode(cell); s != "" {
			cols[i].Values = append(cols[i].Values, s)
		} else {
			cols[i].Values = append(cols[i].Values, nil)
		}
	}
	return nil
}

func (r *reader) expandRow(raw []byte) ([]byte, error) {
	if raw == nil {
		return nil, fmt.Errorf("row overruns page")
	}
	if len(raw) >= r.rowLength {
		return raw[:r.rowLength], nil
	}
	switch r.compression {
	case literalRLE:
		return decompressRLE(raw, r.rowLength)
	case literalRDC:
		return decompressRDC(raw, r.rowLength)
	}
	return nil, fmt.Errorf("short row of %d bytes in an uncompressed dataset", len(raw))
}

// text resolves a (block, offset, length) reference into the column-text
// blocks.
func (r *reader) text(block, offset, length int) (string, error) {
	if len(r.textBlocks) == 0 {
		return "", decodeErrorf("column text referenced before any text subheader")
	}
	block = min(block, len(r.textBlocks)-1)
	b := r.textBlocks[block]
	if offset+length > len(b) {
		return "", decodeErrorf("text reference %d+%d overruns block %d of %d bytes", offset, length, block, len(b))
	}
	return r.encoding.decode(b[offset : offset+length]), nil
}

func containsLiteral(b []byte, lit string) bool {
	return bytes.Contains(b, []byte(lit))
}
