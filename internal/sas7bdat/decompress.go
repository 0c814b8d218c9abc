package sas7bdat

import (
	"errors"
	"fmt"
)

var errCorruptRow = errors.New("compressed row overruns its buffer")

// decompressRLE expands a row written with the SASYZCRL scheme. Each control
// byte carries a command in its high nibble and a length in its low nibble.
func decompressRLE(in []byte, rowLength int) ([]byte, error) {
	out := make([]byte, 0, rowLength)
	ip := 0

	literal := func(n int) error {
		if ip+n > len(in) || len(out)+n > rowLength {
			return errCorruptRow
		}
		out = append(out, in[ip:ip+n]...)
		ip += n
		return nil
	}
	fill := func(b byte, n int) error {
		if len(out)+n > rowLength {
			return errCorruptRow
		}
		for range n {
			out = append(out, b)
		}
		return nil
	}
	next := func() (int, error) {
		if ip >= len(in) {
			return 0, errCorruptRow
		}
		b := in[ip]
		ip++
		return int(b), nil
	}

	for ip < len(in) {
		cmd := in[ip] & 0xF0
		low := int(in[ip] & 0x0F)
		ip++

		var err error
		switch cmd {
		case 0x00:
			var n int
			if n, err = next(); err == nil {
				err = literal(n + 64 + low*256)
			}
		case 0x40:
			var n, b int
			if n, err = next(); err == nil {
				if b, err = next(); err == nil {
					err = fill(byte(b), n+18+low*256)
				}
			}
		case 0x60:
			var n int
			if n, err = next(); err == nil {
				err = fill(' ', n+17+low*256)
			}
		case 0x70:
			var n int
			if n, err = next(); err == nil {
				err = fill(0x00, n+17+low*256)
			}
		case 0x80:
			err = literal(low + 1)
		case 0x90:
			err = literal(low + 17)
		case 0xA0:
			err = literal(low + 33)
		case 0xB0:
			err = literal(low + 49)
		case 0xC0:
			var b int
			if b, err = next(); err == nil {
				err = fill(byte(b), low+3)
			}
		case 0xD0:
			err = fill('@', low+2)
		case 0xE0:
			err = fill(' ', low+2)
		case 0xF0:
			err = fill(0x00, low+2)
		default:
			err = fmt.Errorf("unknown RLE control byte %#x", cmd)
		}
		if err != nil {
			return nil, err
		}
	}

	if len(out) != rowLength {
		return nil, fmt.Errorf("RLE row expanded to %d bytes, want %d", len(out), rowLength)
	}
	return out, nil
}

// decompressRDC expands a row written with the SASYZCR2 (Ross Data
// Compression) scheme. A 16-bit control word says, per item, whether the next
// item is a literal byte or a command.
func decompressRDC(in []byte, rowLength int) ([]byte, error) {
	out := make([]byte, 0, rowLength)
	var ctrlBits, ctrlMask uint16
	ip := 0

	need := func(n int) error {
		if ip+n > len(in) {
			return errCorruptRow
		}
		return nil
	}
	repeat := func(b byte, n int) error {
		if len(out)+n > rowLength {
			return errCorruptRow
		}
		for range n {
			out = append(out, b)
		}
		return nil
	}
	copyBack := func(ofs, n int) error {
		start := len(out) - ofs
		if start < 0 || len(out)+n > rowLength {
			return errCorruptRow
		}
		// Byte at a time: source and destination may overlap.
		for k := range n {
			out = append(out, out[start+k])
		}
		return nil
	}

	for ip < len(in) {
		ctrlMask >>= 1
		if ctrlMask == 0 {
			if err := need(2); err != nil {
				return nil, err
			}
			ctrlBits = uint16(in[ip])<<8 | uint16(in[ip+1])
			ip += 2
			ctrlMask = 0x8000
			if ip >= len(in) {
				break
			}
		}

		if ctrlBits&ctrlMask == 0 {
			if len(out) >= rowLength {
				return nil, errCorruptRow
			}
			out = append(out, in[ip])
			ip++
			continue
		}

		cmd := int(in[ip]>>4) & 0x0F
		cnt := int(in[ip] & 0x0F)
		ip++

		var err error
		switch cmd {
		case 0: // short run
			if err = need(1); err == nil {
				err = repeat(in[ip], cnt+3)
				ip++
			}
		case 1: // long run
			if err = need(2); err == nil {
				cnt += int(in[ip])<<4 + 19
				err = repeat(in[ip+1], cnt)
				ip += 2
			}
		case 2: // long pattern
			if err = need(2); err == nil {
				ofs := cnt + 3 + int(in[ip])<<4
				n := int(in[ip+1]) + 16
				ip += 2
				err = copyBack(ofs, n)
			}
		default: // short pattern, cmd is the length
			if err = need(1); err == nil {
				ofs := cnt + 3 + int(in[ip])<<4
				ip++
				err = copyBack(ofs, cmd)
			}
		}
		if err != nil {
			return nil, err
		}
	}

	if len(out) != rowLength {
		return nil, fmt.Errorf("RDC row expanded to %d bytes, want %d", len(out), rowLength)
	}
	return out, nil
}
