package bmg

import (
	"encoding/binary"
)

// fixture assembles a BMG container byte by byte so tests do not depend on
// the encoder under test.
type fixture struct {
	encoding   byte
	recordSize int // 0 means 8
	entries    []fixtureEntry
	pool       []byte
	mid        *fixtureMID
	// trailer is appended after the last section.
	trailer []byte
}

type fixtureEntry struct {
	msgID, groupID uint16
	attrs          []uint16
	offset         uint32
}

type fixtureMID struct {
	rows    uint16
	rowSize uint16
	cells   []uint32
}

func le16(b []byte, v uint16) []byte { return binary.LittleEndian.AppendUint16(b, v) }

func le32(b []byte, v uint32) []byte { return binary.LittleEndian.AppendUint32(b, v) }

// units encodes raw 16-bit units.
func units(us ...uint16) []byte {
	var b []byte
	for _, u := range us {
		b = le16(b, u)
	}
	return b
}

// lit encodes an ASCII string as 16-bit units without a terminator.
func lit(s string) []byte {
	var b []byte
	for i := 0; i < len(s); i++ {
		b = le16(b, uint16(s[i]))
	}
	return b
}

// str is lit plus a terminator.
func str(s string) []byte { return le16(lit(s), 0) }

func concat(parts ...[]byte) []byte {
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

// Offsets of the fixture layout.
const (
	fxINF = 0x20
)

func (f fixture) infSize() int {
	rs := f.recordSize
	if rs == 0 {
		rs = 8
	}
	return 16 + len(f.entries)*rs
}

// datOffset is the absolute offset of the DAT1 tag.
func (f fixture) datOffset() int { return fxINF + f.infSize() }

// poolBase is the absolute offset of the first pool byte.
func (f fixture) poolBase() int { return f.datOffset() + 8 }

// midOffset is the absolute offset of the MID1 tag.
func (f fixture) midOffset() int { return f.poolBase() + len(f.pool) }

func (f fixture) bytes() []byte {
	rs := f.recordSize
	if rs == 0 {
		rs = 8
	}
	sections := uint32(2)
	if f.mid != nil {
		sections = 3
	}
	b := []byte("MESGbmg1")
	b = le32(b, 0) // patched below
	b = le32(b, sections)
	b = append(b, f.encoding)
	b = append(b, make([]byte, fxINF-len(b))...)

	b = append(b, "INF1"...)
	b = le32(b, uint32(f.infSize()))
	b = le16(b, uint16(len(f.entries)))
	b = le16(b, uint16(rs))
	b = le32(b, 0)
	for _, e := range f.entries {
		rec := le16(nil, e.msgID)
		rec = le16(rec, e.groupID)
		for _, a := range e.attrs {
			rec = le16(rec, a)
		}
		rec = append(rec, make([]byte, rs-4-len(rec))...)
		rec = le32(rec, e.offset)
		b = append(b, rec...)
	}

	b = append(b, "DAT1"...)
	b = le32(b, uint32(8+len(f.pool)))
	b = append(b, f.pool...)

	if m := f.mid; m != nil {
		b = append(b, "MID1"...)
		b = le32(b, uint32(16+int(m.rows)*int(m.rowSize)))
		b = le16(b, m.rows)
		b = le16(b, m.rowSize)
		b = le32(b, 0)
		for _, v := range m.cells {
			b = le32(b, v)
		}
	}
	b = append(b, f.trailer...)
	binary.LittleEndian.PutUint32(b[8:12], uint32(len(b)))
	return b
}

// helloFixture holds one entry whose text carries a one-parameter control code.
func helloFixture() fixture {
	// 10 + 4 + 14 bytes
	pool := concat(lit("Hello"), units(0x1A, 0x0001), str(" World"))
	return fixture{
		encoding: 1,
		entries:  []fixtureEntry{{msgID: 1, offset: 0}},
		pool:     pool,
	}
}

// sharedFixture has entries 0 and 1 both pointing at pool offset 0x20.
func sharedFixture() fixture {
	pool := make([]byte, 0x20)
	copy(pool, str("Intro"))
	pool = append(pool, str("Shared")...)
	pool = append(pool, make([]byte, (4-len(pool)%4)%4)...)
	return fixture{
		encoding: 1,
		entries: []fixtureEntry{
			{msgID: 1, offset: 0x20},
			{msgID: 2, offset: 0x20},
			{msgID: 3, offset: 0},
		},
		pool: pool,
	}
}

// pointerFixture has one entry and a pointer-mode MID1 table with two
// strings, the second referenced through a flagged pointer.
func pointerFixture() fixture {
	pool := concat(str("Alpha"), str("Beta"), str("Gamma"))
	// Alpha at 0 (12 bytes), Beta at 12 (10 bytes), Gamma at 22 (12 bytes)
	pool = append(pool, make([]byte, (4-len(pool)%4)%4)...)
	return fixture{
		encoding: 1,
		entries:  []fixtureEntry{{msgID: 7, offset: 0}},
		pool:     pool,
		mid: &fixtureMID{
			rows:    2,
			rowSize: 4,
			cells:   []uint32{12, 22 | 1},
		},
	}
}

// idFixture has one entry and an id-mode MID1 table whose two ids lie
// outside the pool, so the pool is scanned for the strings they name.
func idFixture() fixture {
	pool := concat(str("Entry"), units(0, 0), str("First"), str(" "), str("Second"))
	pool = append(pool, make([]byte, (4-len(pool)%4)%4)...)
	return fixture{
		encoding: 1,
		entries:  []fixtureEntry{{msgID: 1, offset: 0}},
		pool:     pool,
		mid: &fixtureMID{
			rows:    2,
			rowSize: 4,
			cells:   []uint32{0x00100001, 0x00100002},
		},
	}
}
