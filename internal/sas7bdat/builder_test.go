package sas7bdat

import (
	"encoding/binary"
	"math"
	"testing"

	"golang.org/x/text/encoding"
)

// testColumn describes one column of a generated file.
type testColumn struct {
	name    string
	label   string
	format  string
	numeric bool
	width   int
}

// fileSpec drives buildFile. Zero values give a 64-bit little-endian,
// uncompressed, UTF-8 file with 4 KiB pages.
type fileSpec struct {
	u32         bool
	bigEndian   bool
	encoding    byte
	textEncoder encoding.Encoding
	compression string
	mix         bool
	pageSize    int
	name        string

	cols []testColumn
	rows [][]any

	// Negative test knobs. Zero means "use the real value".
	declaredRows int
	declaredCols int
}

type layout struct {
	order   binary.ByteOrder
	intLen  int
	bitOff  int
	ptrLen  int
	align1  int
	align2  int
	pageLen int
}

func (s fileSpec) layout() layout {
	l := layout{order: binary.LittleEndian, intLen: 8, bitOff: 32, ptrLen: 24, align1: 4, align2: 4, pageLen: 4096}
	if s.u32 {
		l.intLen, l.bitOff, l.ptrLen, l.align1, l.align2 = 4, 16, 12, 0, 0
	}
	if s.bigEndian {
		l.order = binary.BigEndian
	}
	if s.pageSize > 0 {
		l.pageLen = s.pageSize
	}
	return l
}

func (l layout) putUint(b []byte, n int, v uint64) {
	switch n {
	case 1:
		b[0] = byte(v)
	case 2:
		l.order.PutUint16(b, uint16(v))
	case 4:
		l.order.PutUint32(b, uint32(v))
	default:
		l.order.PutUint64(b, v)
	}
}

func (l layout) subheader(sig uint32, length int) []byte {
	sh := make([]byte, length)
	if sig != sigRowSize && sig != sigColumnSize {
		for i := range l.intLen {
			sh[i] = 0xFF
		}
	}
	if l.order == binary.LittleEndian {
		l.order.PutUint32(sh[:4], sig)
	} else {
		l.order.PutUint32(sh[l.intLen-4:l.intLen], sig)
	}
	return sh
}

type textRef struct{ off, length int }

type subheaderEntry struct {
	data        []byte
	compression byte
	typ         byte
}

// buildFile renders spec as SAS7BDAT bytes.
func buildFile(t testing.TB, s fileSpec) []byte {
	t.Helper()
	l := s.layout()
	n := l.intLen

	// Row layout.
	offsets := make([]int, len(s.cols))
	rowLen := 0
	for i, c := range s.cols {
		offsets[i] = rowLen
		rowLen += c.width
	}
	rawRows := make([][]byte, len(s.rows))
	for r, vals := range s.rows {
		row := make([]byte, rowLen)
		for i, c := range s.cols {
			cell := row[offsets[i] : offsets[i]+c.width]
			if c.numeric {
				v := math.NaN()
				if vals[i] != nil {
					v = vals[i].(float64)
				}
				var full [8]byte
				l.order.PutUint64(full[:], math.Float64bits(v))
				if l.order == binary.LittleEndian {
					copy(cell, full[8-c.width:])
				} else {
					copy(cell, full[:c.width])
				}
				continue
			}
			for k := range cell {
				cell[k] = ' '
			}
			if vals[i] != nil {
				str := []byte(vals[i].(string))
				if s.textEncoder != nil {
					var err error
					str, err = s.textEncoder.NewEncoder().Bytes(str)
					if err != nil {
						t.Fatalf("encode %q: %v", vals[i], err)
					}
				}
				copy(cell, str)
			}
		}
		rawRows[r] = row
	}

	// Column text pool.
	block := make([]byte, 8)
	addText := func(str string) textRef {
		ref := textRef{off: len(block), length: len(str)}
		block = append(block, str...)
		for len(block)%4 != 0 {
			block = append(block, ' ')
		}
		return ref
	}
	if s.compression != "" {
		addText(s.compression)
	}
	type colRefs struct{ name, format, label textRef }
	refs := make([]colRefs, len(s.cols))
	for i, c := range s.cols {
		refs[i] = colRefs{name: addText(c.name), format: addText(c.format), label: addText(c.label)}
	}
	l.putUint(block, 2, uint64(len(block)))

	declaredRows := len(s.rows)
	if s.declaredRows != 0 {
		declaredRows = s.declaredRows
	}
	declaredCols := len(s.cols)
	if s.declaredCols != 0 {
		declaredCols = s.declaredCols
	}

	var shs []subheaderEntry
	add := func(b []byte) { shs = append(shs, subheaderEntry{data: b}) }

	rowSizeLen := 480
	if n == 8 {
		rowSizeLen = 808
	}
	rs := l.subheader(sigRowSize, rowSizeLen)
	l.putUint(rs[rowLengthMultiplier*n:], n, uint64(rowLen))
	l.putUint(rs[rowCountMultiplier*n:], n, uint64(declaredRows))
	l.putUint(rs[colCountP1Multiplier*n:], n, uint64(declaredCols))
	add(rs)

	cs := l.subheader(sigColumnSize, 3*n)
	l.putUint(cs[n:], n, uint64(declaredCols))
	add(cs)

	add(l.subheader(sigSubheaderCounts, 4*n))

	text := l.subheader(sigColumnText, n+len(block))
	copy(text[n:], block)
	add(text)

	names := l.subheader(sigColumnName, 2*n+12+8*len(s.cols))
	for i, r := range refs {
		b := names[n+8*(i+1):]
		l.putUint(b, 2, 0)
		l.putUint(b[2:], 2, uint64(r.name.off))
		l.putUint(b[4:], 2, uint64(r.name.length))
	}
	add(names)

	stride := n + 8
	attrs := l.subheader(sigColumnAttributes, 2*n+12+stride*len(s.cols))
	for i, c := range s.cols {
		base := i * stride
		l.putUint(attrs[n+8+base:], n, uint64(offsets[i]))
		l.putUint(attrs[2*n+8+base:], 4, uint64(c.width))
		if c.numeric {
			attrs[2*n+14+base] = 1
		} else {
			attrs[2*n+14+base] = 2
		}
	}
	add(attrs)

	for _, r := range refs {
		f := l.subheader(sigFormatAndLabel, 3*n+64)
		b := f[3*n:]
		l.putUint(b[22:], 2, 0)
		l.putUint(b[24:], 2, uint64(r.format.off))
		l.putUint(b[26:], 2, uint64(r.format.length))
		l.putUint(b[28:], 2, 0)
		l.putUint(b[30:], 2, uint64(r.label.off))
		l.putUint(b[32:], 2, uint64(r.label.length))
		add(f)
	}

	add(l.subheader(sigColumnList, 4*n))

	remaining := rawRows
	if s.compression != "" {
		for _, row := range rawRows {
			packed := compressForTest(s.compression, row)
			if len(packed) >= len(row) {
				packed = row
			}
			shs = append(shs, subheaderEntry{data: packed, compression: compressedSubheader, typ: compressedSubheaderType})
		}
		remaining = nil
	}

	var pages [][]byte

	// First page: every subheader, packed from the end of the page.
	first := make([]byte, l.pageLen)
	end := l.pageLen
	ptrBase := l.bitOff + pointersOffset
	for i, sh := range shs {
		end -= len(sh.data)
		end -= end % 8
		p := first[ptrBase+i*l.ptrLen:]
		l.putUint(p, n, uint64(end))
		l.putUint(p[n:], n, uint64(len(sh.data)))
		p[2*n] = sh.compression
		p[2*n+1] = sh.typ
		copy(first[end:], sh.data)
	}
	pointersEnd := ptrBase + len(shs)*l.ptrLen
	if pointersEnd > end {
		t.Fatalf("subheaders do not fit a %d byte page", l.pageLen)
	}

	pageType := pageMeta
	if s.mix {
		pageType = pageMix
		start := pointersEnd + pointersEnd%8
		fit := (end - start) / rowLen
		k := min(fit, len(remaining))
		for j := range k {
			copy(first[start+j*rowLen:], remaining[j])
		}
		remaining = remaining[k:]
		l.putUint(rs[mixRowsMultiplier*n:], n, uint64(k))
		// rs was copied into the page before the count was known.
		copy(first[firstOffset(l, first, 0):], rs)
	}
	l.putUint(first[l.bitOff+offPageType:], 2, uint64(pageType))
	l.putUint(first[l.bitOff+offBlockCount:], 2, uint64(len(shs)))
	l.putUint(first[l.bitOff+offSubheaderCount:], 2, uint64(len(shs)))
	pages = append(pages, first)

	perPage := (l.pageLen - l.bitOff - pointersOffset) / rowLen
	for len(remaining) > 0 {
		k := min(perPage, len(remaining))
		pg := make([]byte, l.pageLen)
		l.putUint(pg[l.bitOff+offPageType:], 2, pageData)
		l.putUint(pg[l.bitOff+offBlockCount:], 2, uint64(k))
		for j := range k {
			copy(pg[l.bitOff+pointersOffset+j*rowLen:], remaining[j])
		}
		remaining = remaining[k:]
		pages = append(pages, pg)
	}

	// Header.
	const headerLen = 1024
	hdr := make([]byte, headerLen)
	copy(hdr, magic)
	if !s.u32 {
		hdr[offU64Flag] = alignedFlag
		hdr[offAlignFlag] = alignedFlag
	} else {
		hdr[offU64Flag] = '2'
		hdr[offAlignFlag] = '2'
	}
	if !s.bigEndian {
		hdr[offEndianness] = 0x01
	}
	hdr[offEncoding] = s.encoding
	if hdr[offEncoding] == 0 {
		hdr[offEncoding] = 20
	}
	copy(hdr[offDatasetName:offDatasetName+lenDatasetName], padRight(s.name, lenDatasetName))
	copy(hdr[offFileType:], "DATA    ")
	created := 1.9e9 // 2020-03-16 in SAS seconds
	l.order.PutUint64(hdr[offDateCreated+l.align1:], math.Float64bits(created))
	l.order.PutUint64(hdr[offDateModified+l.align1:], math.Float64bits(created))
	l.order.PutUint32(hdr[offHeaderLength+l.align1:], headerLen)
	l.order.PutUint32(hdr[offPageSize+l.align1:], uint32(l.pageLen))
	l.putUint(hdr[offPageCount+l.align1:], n, uint64(len(pages)))
	total := l.align1 + l.align2
	copy(hdr[offRelease+total:], "9.0401M6")
	copy(hdr[offServerType+total:], padRight("X64_10PRO", lenOSField))
	copy(hdr[offOSName+total:], padRight("Linux", lenOSField))

	out := hdr
	for _, pg := range pages {
		out = append(out, pg...)
	}
	return out
}

// firstOffset returns the offset of the i-th subheader on a built page.
func firstOffset(l layout, page []byte, i int) int {
	p := page[l.bitOff+pointersOffset+i*l.ptrLen:]
	if l.intLen == 8 {
		return int(l.order.Uint64(p))
	}
	return int(l.order.Uint32(p))
}

func padRight(s string, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	return b
}

func compressForTest(literal string, row []byte) []byte {
	if literal == literalRDC {
		return encodeRDC(row)
	}
	return encodeRLE(row)
}

// runAt returns the length of the run of identical bytes starting at i,
// capped at limit.
func runAt(b []byte, i, limit int) int {
	j := i
	for j < len(b) && b[j] == b[i] && j-i < limit {
		j++
	}
	return j - i
}

func encodeRLE(row []byte) []byte {
	var out []byte
	i := 0
	for i < len(row) {
		if n := runAt(row, i, 18); n >= 3 {
			out = append(out, 0xC0|byte(n-3), row[i])
			i += n
			continue
		}
		k := i
		for k < len(row) && k-i < 16 && runAt(row, k, 3) < 3 {
			k++
		}
		out = append(out, 0x80|byte(k-i-1))
		out = append(out, row[i:k]...)
		i = k
	}
	return out
}

func encodeRDC(row []byte) []byte {
	var out []byte
	i := 0
	for i < len(row) {
		ctrlPos := len(out)
		out = append(out, 0, 0)
		var ctrl uint16
		for item := 0; item < 16 && i < len(row); item++ {
			if n := runAt(row, i, 18); n >= 3 {
				ctrl |= 0x8000 >> item
				out = append(out, byte(n-3), row[i])
				i += n
				continue
			}
			out = append(out, row[i])
			i++
		}
		out[ctrlPos] = byte(ctrl >> 8)
		out[ctrlPos+1] = byte(ctrl)
	}
	return out
}
