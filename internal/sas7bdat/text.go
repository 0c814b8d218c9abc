package sas7bdat

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

type textEncoding struct {
	name string
	enc  encoding.Encoding // nil means the bytes are already UTF-8
}

// encodings maps the header encoding byte to a character set.
var encodings = map[byte]textEncoding{
	20:  {"utf-8", nil},
	28:  {"us-ascii", nil},
	29:  {"latin1", charmap.ISO8859_1},
	30:  {"latin2", charmap.ISO8859_2},
	31:  {"latin3", charmap.ISO8859_3},
	32:  {"latin4", charmap.ISO8859_4},
	33:  {"cyrillic", charmap.ISO8859_5},
	34:  {"arabic", charmap.ISO8859_6},
	35:  {"greek", charmap.ISO8859_7},
	36:  {"hebrew", charmap.ISO8859_8},
	37:  {"latin5", charmap.ISO8859_9},
	38:  {"latin6", charmap.ISO8859_10},
	39:  {"thai", charmap.Windows874},
	40:  {"latin9", charmap.ISO8859_15},
	41:  {"pcoem437", charmap.CodePage437},
	42:  {"pcoem850", charmap.CodePage850},
	43:  {"pcoem852", charmap.CodePage852},
	45:  {"pcoem858", charmap.CodePage858},
	46:  {"pcoem862", charmap.CodePage862},
	48:  {"pcoem865", charmap.CodePage865},
	49:  {"pcoem866", charmap.CodePage866},
	58:  {"pcoem860", charmap.CodePage860},
	59:  {"pcoem863", charmap.CodePage863},
	60:  {"wlatin2", charmap.Windows1250},
	61:  {"wcyrillic", charmap.Windows1251},
	62:  {"wlatin1", charmap.Windows1252},
	63:  {"wgreek", charmap.Windows1253},
	64:  {"wturkish", charmap.Windows1254},
	65:  {"whebrew", charmap.Windows1255},
	66:  {"warabic", charmap.Windows1256},
	67:  {"wbaltic", charmap.Windows1257},
	68:  {"wvietnamese", charmap.Windows1258},
	118: {"ms-950", traditionalchinese.Big5},
	123: {"big5", traditionalchinese.Big5},
	125: {"euc-cn", simplifiedchinese.GBK},
	126: {"ms-936", simplifiedchinese.GBK},
	134: {"euc-jp", japanese.EUCJP},
	136: {"ms-949", korean.EUCKR},
	138: {"shift-jis", japanese.ShiftJIS},
	140: {"euc-kr", korean.EUCKR},
	205: {"gb18030", simplifiedchinese.GB18030},
}

// encodingFor falls back to Windows-1252 for codes it does not know, which
// is what SAS writes on Windows hosts when the session encoding is unset.
func encodingFor(code byte) textEncoding {
	if te, ok := encodings[code]; ok {
		return te
	}
	return textEncoding{name: fmt.Sprintf("unknown(%d)", code), enc: charmap.Windows1252}
}

// decode trims trailing blanks and NULs and transcodes to UTF-8.
func (te textEncoding) decode(b []byte) string {
	b = bytes.TrimRight(b, "\x00 ")
	if len(b) == 0 {
		return ""
	}
	if te.enc == nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	out, err := te.enc.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(out)
}
