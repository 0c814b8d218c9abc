package sas7bdat

func (r *reader) processRowSize(sh []byte) error {
	n := r.intLen
	if len(sh) < (mixRowsMultiplier+1)*n {
		return decodeErrorf("row size subheader too short: %d bytes", len(sh))
	}
	r.rowLength = int(r.uint(sh[rowLengthMultiplier*n:], n))
	r.rowCount = int(r.uint(sh[rowCountMultiplier*n:], n))
	r.colCountP1 = int(r.uint(sh[colCountP1Multiplier*n:], n))
	r.colCountP2 = int(r.uint(sh[colCountP2Multiplier*n:], n))
	r.mixRowCount = int(r.uint(sh[mixRowsMultiplier*n:], n))
	if r.rowLength <= 0 || r.rowLength > maxRowLength || r.rowCount < 0 {
		return decodeErrorf("invalid row geometry: length %d, count %d", r.rowLength, r.rowCount)
	}
	// Every row occupies at least one byte of some page, compressed or not.
	if limit := r.pageCount * r.pageSize; r.rowCount > limit {
		return decodeErrorf("row count mismatch: header declares %d rows in %d page bytes", r.rowCount, limit)
	}
	r.haveRowSize = true
	return nil
}

func (r *reader) processColumnSize(sh []byte) error {
	if len(sh) < 2*r.intLen {
		return decodeErrorf("column size subheader too short: %d bytes", len(sh))
	}
	r.columnCount = int(r.uint(sh[r.intLen:], r.intLen))
	r.haveColSize = true
	return nil
}

// processColumnText stores one block of the shared string pool. Names,
// labels and formats are later resolved as (block, offset, length) triples
// relative to the start of the block, which begins with its own size.
func (r *reader) processColumnText(sh []byte) error {
	if len(sh) < r.intLen+2 {
		return decodeErrorf("column text subheader too short: %d bytes", len(sh))
	}
	body := sh[r.intLen:]
	size := min(int(r.uint(body, 2)), len(body))
	block := body[:size]
	r.textBlocks = append(r.textBlocks, block)

	if len(r.textBlocks) == 1 {
		switch {
		case containsLiteral(block, literalRLE):
			r.compression = literalRLE
		case containsLiteral(block, literalRDC):
			r.compression = literalRDC
		}
	}
	return nil
}

func (r *reader) processColumnName(sh []byte) error {
	count := (len(sh) - 2*r.intLen - 12) / 8
	for i := range count {
		b := sh[r.intLen+8*(i+1):]
		name, err := r.text(int(r.uint(b, 2)), int(r.uint(b[2:], 2)), int(r.uint(b[4:], 2)))
		if err != nil {
			return err
		}
		r.names = append(r.names, name)
	}
	return nil
}

func (r *reader) processColumnAttributes(sh []byte) error {
	n := r.intLen
	stride := n + 8
	count := (len(sh) - 2*n - 12) / stride
	for i := range count {
		base := i * stride
		r.attrs = append(r.attrs, columnAttr{
			offset:  int(r.uint(sh[n+8+base:], n)),
			length:  int(r.uint(sh[2*n+8+base:], 4)),
			numeric: sh[2*n+14+base] == 1,
		})
	}
	return nil
}

func (r *reader) processFormatAndLabel(sh []byte) error {
	base := 3 * r.intLen
	if len(sh) < base+34 {
		return decodeErrorf("format subheader too short: %d bytes", len(sh))
	}
	ref := func(at int) (string, error) {
		b := sh[base+at:]
		return r.text(int(r.uint(b, 2)), int(r.uint(b[2:], 2)), int(r.uint(b[4:], 2)))
	}
	format, err := ref(22)
	if err != nil {
		return err
	}
	label, err := ref(28)
	if err != nil {
		return err
	}
	r.formats = append(r.formats, columnFormat{format: format, label: label})
	return nil
}
