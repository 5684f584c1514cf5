package bmg

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// readMIDHeader reads the MID1 table header and cells. Problems here never
// fail the parse: the table is reduced to what the buffer can back and the
// loss is recorded.
func (c *Container) readMIDHeader(mid int) {
	m := &c.sections.MID1
	m.Offset = mid
	size, err := readU32(c.data, mid+4, len(c.data))
	if err != nil {
		c.diags.add(DiagTruncatedTable, mid, ErrInvalidSection, "MID1 header cut off: %v", err)
		return
	}
	m.Present = true
	m.Size = size
	if size == 0 {
		return
	}
	hdr := mid + sectionHeaderSize
	if m.DeclaredRows, err = readU16(c.data, hdr, len(c.data)); err == nil {
		if m.RowSize, err = readU16(c.data, hdr+2, len(c.data)); err == nil {
			m.Reserved, err = readU32(c.data, hdr+4, len(c.data))
		}
	}
	if err != nil {
		c.diags.add(DiagTruncatedTable, hdr, ErrInvalidSection, "MID1 table header cut off: %v", err)
		return
	}
	if m.RowSize == 0 {
		glog.V(1).Infof("bmg: MID1 row size is 0; table ignored")
		return
	}
	m.Columns = max(1, int(m.RowSize)/4)

	start := hdr + midTableHeader
	payload := max(0, int(size)-midTableHeader-sectionHeaderSize)
	rows := payload / int(m.RowSize)
	stride := int(m.RowSize)
	span := max(stride, m.Columns*4)
	for r := 0; r < rows; r++ {
		base := start + r*stride
		if base+span > len(c.data) {
			c.diags.add(DiagTruncatedTable, base, ErrOutOfBounds,
				"MID1 row %d exceeds the buffer; keeping %d of %d rows", r, r, rows)
			break
		}
		cells := make([]uint32, m.Columns)
		for col := range cells {
			// range checked above
			cells[col], _ = readU32(c.data, base+col*4, len(c.data))
		}
		m.Cells = append(m.Cells, cells)
	}
	m.Rows = len(m.Cells)
	if m.Rows != int(m.DeclaredRows) {
		glog.V(1).Infof("bmg: MID1 declares %d rows, %d available", m.DeclaredRows, m.Rows)
	}
}

// resolveCrossRefs decides the MID1 mode and attaches its strings to segments.
func (c *Container) resolveCrossRefs() error {
	m := &c.sections.MID1
	if !m.Present || m.Rows == 0 {
		return nil
	}
	candidates, invalid := 0, 0
	pool := uint32(c.sections.DAT1.PoolSize())
	for _, row := range m.Cells {
		for _, v := range row {
			if v == 0 {
				continue
			}
			candidates++
			if v&^1 >= pool {
				invalid++
			}
		}
	}
	glog.V(1).Infof("bmg: MID1 %dx%d cells, %d non-zero, %d outside pool", m.Rows, m.Columns, candidates, invalid)
	switch {
	case candidates > 0 && invalid == 0:
		m.Mode = CrossRefPointer
		c.resolvePointers()
		return nil
	case m.DeclaredRows > 0:
		m.Mode = CrossRefID
		return c.resolveIDs()
	default:
		return nil
	}
}

func (c *Container) resolvePointers() {
	m := c.sections.MID1
	for r, row := range m.Cells {
		for col, v := range row {
			if v == 0 {
				continue
			}
			idx := c.ensureSegment(v &^ 1)
			seg := &c.segments[idx]
			if seg.Kind != SegmentEntry {
				seg.Kind = SegmentMidPointer
			}
			seg.MidRefs = append(seg.MidRefs, CellRef{Row: r, Column: col, Flags: v & 1, Raw: v})
		}
	}
}

// resolveIDs pairs opaque MID1 ids with pool strings no entry uses. The pool
// is walked forward from offset 0 and the n-th unclaimed string found is
// given the n-th id in row-major table order.
func (c *Container) resolveIDs() error {
	m := &c.sections.MID1
	total := min(int(m.DeclaredRows), m.Rows*m.Columns)
	m.IDs = make([]uint32, 0, total)
	for _, row := range m.Cells {
		for _, v := range row {
			if len(m.IDs) == total {
				break
			}
			m.IDs = append(m.IDs, v)
		}
	}

	d := c.sections.DAT1
	pool := d.PoolSize()
	claimed := c.claimedSpans()
	next := 0
	pos := 0
	for pos < pool && (next < len(m.IDs) || c.cfg.strictCrossRefs) {
		if end, ok := claimed.containing(pos); ok {
			pos = max(end, pos+2)
			continue
		}
		abs := d.Base + pos
		if pos+1 < pool && c.data[abs] == 0 && c.data[abs+1] == 0 {
			pos += 2
			continue
		}
		ds := c.cfg.codec.Decode(c.data, abs, d.End, c.cfg.limits.MaxStringUnits)
		if ds.Length <= 2 || strings.TrimSpace(ds.Text) == "" {
			pos += 2
			continue
		}
		if next == len(m.IDs) {
			// strict: a candidate string is left over after every id was paired
			return fmt.Errorf("%w: unpaired pool string at offset 0x%X after %d ids",
				ErrAmbiguousCrossRef, pos, len(m.IDs))
		}
		idx := c.ensureSegment(uint32(pos))
		seg := &c.segments[idx]
		if seg.Kind != SegmentEntry {
			seg.Kind = SegmentMidID
		}
		seg.MidRefs = append(seg.MidRefs, CellRef{
			Row:    next / m.Columns,
			Column: next % m.Columns,
			Raw:    m.IDs[next],
		})
		claimed.add(pos, int(seg.End()))
		next++
		pos += ds.Length
	}
	if next < len(m.IDs) {
		if c.cfg.strictCrossRefs {
			return fmt.Errorf("%w: found %d pool strings for %d ids", ErrAmbiguousCrossRef, next, len(m.IDs))
		}
		c.diags.add(DiagAmbiguousCrossRef, m.Offset, ErrAmbiguousCrossRef,
			"found %d pool strings for %d MID1 ids; the rest stay unpaired", next, len(m.IDs))
	}
	return nil
}

// spans is a set of [start, end) pool ranges kept sorted by start.
type spans [][2]int

func (c *Container) claimedSpans() spans {
	var s spans
	for _, seg := range c.segments {
		if !seg.Detached {
			s.add(int(seg.Offset), int(seg.End()))
		}
	}
	return s
}

func (s *spans) add(start, end int) {
	if end <= start {
		return
	}
	i := len(*s)
	for i > 0 && (*s)[i-1][0] > start {
		i--
	}
	*s = append(*s, [2]int{})
	copy((*s)[i+1:], (*s)[i:])
	(*s)[i] = [2]int{start, end}
}

// containing returns the furthest end among spans that cover pos.
func (s spans) containing(pos int) (int, bool) {
	end, ok := 0, false
	for _, sp := range s {
		if sp[0] > pos {
			break
		}
		if pos < sp[1] && sp[1] > end {
			end, ok = sp[1], true
		}
	}
	return end, ok
}
