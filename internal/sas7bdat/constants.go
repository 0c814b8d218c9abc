package sas7bdat

// magic is the first 32 bytes of every SAS7BDAT file.
var magic = []byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xc2, 0xea, 0x81, 0x60,
	0xb3, 0x14, 0x11, 0xcf, 0xbd, 0x92, 0x08, 0x00,
	0x09, 0xc7, 0x31, 0x8c, 0x18, 0x1f, 0x10, 0x11,
}

// Header field offsets. Fields after the alignment flags shift by align1
// (and by align1+align2 past the release string).
const (
	offU64Flag      = 32
	offAlignFlag    = 35
	offEndianness   = 37
	offEncoding     = 70
	offDatasetName  = 92
	lenDatasetName  = 64
	offFileType     = 156
	lenFileType     = 8
	offDateCreated  = 164
	offDateModified = 172
	offHeaderLength = 196
	offPageSize     = 200
	offPageCount    = 204
	offRelease      = 216
	lenRelease      = 8
	offServerType   = 224
	offOSVersion    = 240
	offOSMaker      = 256
	offOSName       = 272
	lenOSField      = 16

	alignedFlag = '3'
	alignValue  = 4

	// minHeaderLength covers every fixed header field read above.
	minHeaderLength = offOSName + alignValue*2 + lenOSField
)

// Page layout.
const (
	pageBitOffset32 = 16
	pageBitOffset64 = 32
	pointerLength32 = 12
	pointerLength64 = 24

	offPageType       = 0
	offBlockCount     = 2
	offSubheaderCount = 4
	pointersOffset    = 8

	pageTypeMask = 0xF700

	pageMeta  = 0x0000
	pageMeta2 = 0x4000
	pageData  = 0x0100
	pageMix   = 0x0200
	pageAMD   = 0x0400

	// maxRowLength bounds the declared width of one decompressed row.
	maxRowLength = 1 << 24
)

// Subheader pointer flags.
const (
	truncatedSubheader      = 1
	compressedSubheader     = 4
	compressedSubheaderType = 1
)

// Subheader signatures, read as a uint32 in file byte order from the end of
// the signature nearest the subheader start (first four bytes little-endian,
// last four bytes big-endian).
const (
	sigRowSize          uint32 = 0xF7F7F7F7
	sigColumnSize       uint32 = 0xF6F6F6F6
	sigSubheaderCounts  uint32 = 0xFFFFFC00
	sigColumnText       uint32 = 0xFFFFFFFD
	sigColumnName       uint32 = 0xFFFFFFFF
	sigColumnAttributes uint32 = 0xFFFFFFFC
	sigFormatAndLabel   uint32 = 0xFFFFFBFE
	sigColumnList       uint32 = 0xFFFFFFFE
)

// Compression literals found in the first column-text block.
const (
	literalRLE = "SASYZCRL"
	literalRDC = "SASYZCR2"
)

// Compression names recorded in dataset.Metadata.
const (
	CompressionNone = "none"
	CompressionRLE  = "rle"
	CompressionRDC  = "rdc"
)

// Row-size subheader field positions, in multiples of the integer width.
const (
	rowLengthMultiplier  = 5
	rowCountMultiplier   = 6
	colCountP1Multiplier = 9
	colCountP2Multiplier = 10
	mixRowsMultiplier    = 15
)
