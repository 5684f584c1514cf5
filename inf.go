package bmg

import (
	"fmt"
)

func (c *Container) readINFHeader(inf int) error {
	s := &c.sections.INF1
	s.Offset = inf
	var err error
	if s.Size, err = readU32(c.data, inf+4, len(c.data)); err != nil {
		return fmt.Errorf("%w: INF1 size: %w", ErrInvalidSection, err)
	}
	if s.Count, err = readU16(c.data, inf+8, len(c.data)); err != nil {
		return fmt.Errorf("%w: INF1 count: %w", ErrInvalidSection, err)
	}
	if s.RecordSize, err = readU16(c.data, inf+10, len(c.data)); err != nil {
		return fmt.Errorf("%w: INF1 record size: %w", ErrInvalidSection, err)
	}
	if s.Count > 0 && s.RecordSize < minRecordSize {
		return fmt.Errorf("%w: INF1 record size %d below minimum %d", ErrInvalidSection, s.RecordSize, minRecordSize)
	}
	used := int(s.Count) * int(s.RecordSize)
	s.HeaderSlack = max(0, int(s.Size)-sectionHeaderSize-used)
	s.EntryStart = inf + sectionHeaderSize + s.HeaderSlack
	return nil
}

// decodeEntries reads every INF1 record and registers its string.
// The last four bytes of a record are always the pool offset; everything
// between the group id and that field is kept as 16-bit attributes.
func (c *Container) decodeEntries() error {
	s := c.sections.INF1
	rs := int(s.RecordSize)
	c.entries = make([]Entry, 0, s.Count)
	for i := 0; i < int(s.Count); i++ {
		base := s.EntryStart + i*rs
		if base+rs > len(c.data) {
			return fmt.Errorf("%w: record %d at 0x%X needs %d bytes, buffer has 0x%X",
				ErrTruncatedEntry, i, base, rs, len(c.data))
		}
		e := Entry{Index: i, FieldOffset: base + rs - 4}
		var err error
		if e.MessageID, err = readU16(c.data, base, base+rs); err != nil {
			return fmt.Errorf("%w: record %d: %w", ErrTruncatedEntry, i, err)
		}
		if e.GroupID, err = readU16(c.data, base+2, base+rs); err != nil {
			return fmt.Errorf("%w: record %d: %w", ErrTruncatedEntry, i, err)
		}
		for pos := base + 4; pos+2 <= e.FieldOffset; pos += 2 {
			v, err := readU16(c.data, pos, e.FieldOffset)
			if err != nil {
				return fmt.Errorf("%w: record %d: %w", ErrTruncatedEntry, i, err)
			}
			e.Attributes = append(e.Attributes, v)
		}
		if e.Offset, err = readU32(c.data, e.FieldOffset, base+rs); err != nil {
			return fmt.Errorf("%w: record %d: %w", ErrTruncatedEntry, i, err)
		}
		if e.RawRecord, err = readBytes(c.data, base, rs, len(c.data)); err != nil {
			return fmt.Errorf("%w: record %d: %w", ErrTruncatedEntry, i, err)
		}

		idx := c.ensureSegment(e.Offset)
		seg := &c.segments[idx]
		seg.Kind = SegmentEntry
		seg.Entries = append(seg.Entries, i)
		e.editable = newEditable(seg, idx)
		c.entries = append(c.entries, e)
	}
	return nil
}

// ensureSegment returns the arena index of the string segment at the pool
// offset off, decoding it on first use. Offsets past the pool produce a
// detached segment read against the whole buffer.
func (c *Container) ensureSegment(off uint32) int {
	if idx, ok := c.byOffset[off]; ok {
		return idx
	}
	d := c.sections.DAT1
	abs := d.Base + int(off)
	limit := d.End
	detached := int(off) >= d.PoolSize()
	if detached {
		limit = len(c.data)
		c.diags.add(DiagDanglingOffset, abs, ErrOutOfBounds,
			"pool offset 0x%X lies outside the 0x%X-byte pool", off, d.PoolSize())
	}
	ds := c.cfg.codec.Decode(c.data, abs, limit, c.cfg.limits.MaxStringUnits)
	if ds.Length == 0 {
		detached = true
	}
	switch {
	case ds.Truncated:
		c.diags.add(DiagTruncatedString, abs, ErrLimitExceeded,
			"string stopped after %d units without a terminator", c.cfg.limits.MaxStringUnits)
	case ds.Length > 0 && !ds.Terminated:
		c.diags.add(DiagTruncatedString, abs, ErrOutOfBounds,
			"string runs into 0x%X without a terminator", limit)
	}
	seg := Segment{
		Offset:      off,
		Text:        ds.Text,
		LeadingNull: ds.LeadingNull,
		CrossRef:    -1,
		Parent:      -1,
		Detached:    detached,
	}
	if ds.Length > 0 {
		seg.Bytes, _ = readBytes(c.data, abs, ds.Length, limit)
	}
	c.segments = append(c.segments, seg)
	idx := len(c.segments) - 1
	c.byOffset[off] = idx
	return idx
}

func newEditable(seg *Segment, idx int) editable {
	return editable{
		Text:                seg.Text,
		LeadingNull:         seg.LeadingNull,
		OriginalText:        seg.Text,
		OriginalLeadingNull: seg.LeadingNull,
		OriginalBytes:       seg.Bytes,
		ByteLength:          len(seg.Bytes),
		CalculatedOffset:    seg.Offset,
		Segment:             idx,
	}
}
