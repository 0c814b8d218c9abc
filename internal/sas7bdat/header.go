package sas7bdat

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

// header holds the layout facts read from the file header.
type header struct {
	order      binary.ByteOrder
	u64        bool
	intLen     int
	bitOffset  int
	pointerLen int
	headerLen  int
	pageSize   int
	pageCount  int
	encoding   textEncoding

	name     string
	fileType string
	created  time.Time
	modified time.Time
	release  string
	server   string
	platform string
}

func parseHeader(data []byte) (*header, error) {
	if len(data) < minHeaderLength {
		return nil, decodeErrorf("file too short for a header: %d bytes", len(data))
	}
	if !bytes.Equal(data[:len(magic)], magic) {
		return nil, decodeErrorf("magic number mismatch")
	}

	h := &header{}
	align2 := 0
	if data[offU64Flag] == alignedFlag {
		h.u64 = true
		h.intLen = 8
		h.bitOffset = pageBitOffset64
		h.pointerLen = pointerLength64
		align2 = alignValue
	} else {
		h.intLen = 4
		h.bitOffset = pageBitOffset32
		h.pointerLen = pointerLength32
	}
	align1 := 0
	if data[offAlignFlag] == alignedFlag {
		align1 = alignValue
	}
	total := align1 + align2

	if data[offEndianness] == 0x01 {
		h.order = binary.LittleEndian
	} else {
		h.order = binary.BigEndian
	}
	h.encoding = encodingFor(data[offEncoding])

	h.name = h.encoding.decode(data[offDatasetName : offDatasetName+lenDatasetName])
	h.fileType = h.encoding.decode(data[offFileType : offFileType+lenFileType])
	h.created = sasTimestamp(h.float(data[offDateCreated+align1:]))
	h.modified = sasTimestamp(h.float(data[offDateModified+align1:]))

	h.headerLen = int(h.order.Uint32(data[offHeaderLength+align1:]))
	h.pageSize = int(h.order.Uint32(data[offPageSize+align1:]))
	h.pageCount = int(h.uint(data[offPageCount+align1:], h.intLen))

	h.release = h.encoding.decode(data[offRelease+total : offRelease+total+lenRelease])
	h.server = h.encoding.decode(data[offServerType+total : offServerType+total+lenOSField])
	h.platform = h.encoding.decode(data[offOSName+total : offOSName+total+lenOSField])
	if h.platform == "" {
		h.platform = h.encoding.decode(data[offOSMaker+total : offOSMaker+total+lenOSField])
	}

	switch {
	case h.headerLen < minHeaderLength || h.headerLen > len(data):
		return nil, decodeErrorf("invalid header length %d for a %d byte file", h.headerLen, len(data))
	case h.pageSize <= h.bitOffset+pointersOffset:
		return nil, decodeErrorf("invalid page size %d", h.pageSize)
	case h.pageCount < 0:
		return nil, decodeErrorf("invalid page count %d", h.pageCount)
	}
	if avail := (len(data) - h.headerLen) / h.pageSize; avail < h.pageCount {
		return nil, decodeErrorf("file truncated: header declares %d pages, found %d", h.pageCount, avail)
	}
	return h, nil
}

// uint reads an unsigned integer of width n (1, 2, 4 or 8) in file byte order.
func (h *header) uint(b []byte, n int) uint64 {
	switch n {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(h.order.Uint16(b))
	case 4:
		return uint64(h.order.Uint32(b))
	default:
		return h.order.Uint64(b)
	}
}

func (h *header) float(b []byte) float64 {
	return math.Float64frombits(h.order.Uint64(b))
}

// signature reads the four significant bytes of a subheader signature.
func (h *header) signature(sh []byte) uint32 {
	if h.order == binary.LittleEndian {
		return h.order.Uint32(sh[:4])
	}
	return h.order.Uint32(sh[h.intLen-4 : h.intLen])
}

// number widens a truncated SAS double of 1 to 8 bytes.
func (h *header) number(b []byte) float64 {
	var buf [8]byte
	if h.order == binary.LittleEndian {
		copy(buf[8-len(b):], b)
	} else {
		copy(buf[:len(b)], b)
	}
	return math.Float64frombits(h.order.Uint64(buf[:]))
}

func sasTimestamp(secs float64) time.Time {
	if math.IsNaN(secs) || math.IsInf(secs, 0) || math.Abs(secs) > maxDateTimeSeconds {
		return time.Time{}
	}
	return time.UnixMicro(sasEpoch.UnixMicro() + int64(math.Round(secs*1e6))).UTC()
}
