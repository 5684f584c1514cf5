package bmg

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, data []byte, opts ...ParseOption) *Container {
	t.Helper()
	c, err := Parse(data, opts...)
	require.NoError(t, err)
	return c
}

func hasDiag(diags []Diagnostic, kind DiagnosticKind) bool {
	for _, d := range diags {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

func TestParseHello(t *testing.T) {
	f := helloFixture()
	data := f.bytes()
	c := mustParse(t, data)

	h := c.Header()
	require.Equal(t, "MESGbmg1", h.Type())
	require.Equal(t, uint32(len(data)), h.FileSize)
	require.Equal(t, uint32(2), h.SectionCount)
	require.Equal(t, EncodingUTF16, h.Encoding)

	s := c.Sections()
	require.Equal(t, fxINF, s.INF1.Offset)
	require.Equal(t, uint16(1), s.INF1.Count)
	require.Equal(t, uint16(8), s.INF1.RecordSize)
	require.Equal(t, fxINF+16, s.INF1.EntryStart)
	require.Equal(t, f.datOffset(), s.DAT1.Offset)
	require.Equal(t, f.poolBase(), s.DAT1.Base)
	require.Equal(t, len(f.pool), s.DAT1.PoolSize())
	require.False(t, s.MID1.Present)
	require.Equal(t, CrossRefNone, c.Mode())

	entries := c.Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	require.Equal(t, uint16(1), e.MessageID)
	require.Equal(t, uint32(1), e.CompositeID())
	require.Equal(t, "Hello[1A:0001] World", e.Text)
	require.Equal(t, len(f.pool), e.ByteLength)
	require.False(t, e.Dirty)
	require.Empty(t, c.CrossRefs())
	require.Empty(t, c.Diagnostics())
	require.Equal(t, data, c.Bytes())
}

func TestParseCopiesInput(t *testing.T) {
	data := helloFixture().bytes()
	c := mustParse(t, data)
	data[0] = 'X'
	require.Equal(t, byte('M'), c.Bytes()[0])
}

func TestParseAttributes(t *testing.T) {
	f := helloFixture()
	f.recordSize = 12
	f.entries[0].groupID = 3
	f.entries[0].attrs = []uint16{5, 6}
	c := mustParse(t, f.bytes())
	e := c.Entries()[0]
	require.Equal(t, []uint16{5, 6}, e.Attributes)
	require.Equal(t, uint32(3)<<16|1, e.CompositeID())
	require.Len(t, e.RawRecord, 12)
	require.Equal(t, "Hello[1A:0001] World", e.Text)
}

func TestParseErrors(t *testing.T) {
	data := helloFixture().bytes()

	_, err := Parse([]byte("MES"))
	require.ErrorIs(t, err, ErrInvalidMagic)
	bad := append([]byte(nil), data...)
	bad[0] = 'X'
	_, err = Parse(bad)
	require.ErrorIs(t, err, ErrInvalidMagic)

	_, err = Parse(data[:12])
	require.ErrorIs(t, err, ErrOutOfBounds)

	noDAT := append([]byte(nil), data...)
	copy(noDAT[helloFixture().datOffset():], "XXXX")
	_, err = Parse(noDAT)
	require.ErrorIs(t, err, ErrSectionNotFound)

	noINF := append([]byte(nil), data...)
	copy(noINF[fxINF:], "XXXX")
	_, err = Parse(noINF)
	require.ErrorIs(t, err, ErrSectionNotFound)

	tooMany := append([]byte(nil), data...)
	binary.LittleEndian.PutUint16(tooMany[fxINF+8:], 100)
	_, err = Parse(tooMany)
	require.ErrorIs(t, err, ErrTruncatedEntry)

	small := append([]byte(nil), data...)
	binary.LittleEndian.PutUint16(small[fxINF+10:], 4)
	_, err = Parse(small)
	require.ErrorIs(t, err, ErrInvalidSection)
}

func TestParseUnsupportedEncoding(t *testing.T) {
	f := helloFixture()
	f.encoding = 0
	c := mustParse(t, f.bytes())
	require.Equal(t, EncodingCP1252, c.Header().Encoding)
	diags := c.Diagnostics()
	require.Len(t, diags, 1)
	require.Equal(t, DiagUnsupportedEncoding, diags[0].Kind)
	require.Equal(t, 16, diags[0].Offset)
	require.True(t, errors.Is(diags[0].Err, ErrUnsupportedEncoding))
	require.Contains(t, diags[0].String(), "unsupported-encoding at 0x10")
}

func TestParseDanglingOffset(t *testing.T) {
	f := helloFixture()
	f.entries = append(f.entries, fixtureEntry{msgID: 2, offset: 0x100})
	c := mustParse(t, f.bytes())
	require.True(t, hasDiag(c.Diagnostics(), DiagDanglingOffset))

	e := c.Entries()[1]
	require.Equal(t, "", e.Text)
	seg := c.Segments()[e.Segment]
	require.True(t, seg.Detached)
	require.Equal(t, uint32(0x100), seg.Offset)
}

func TestParseUnterminatedString(t *testing.T) {
	f := fixture{encoding: 1, entries: []fixtureEntry{{offset: 0}}, pool: lit("abcd")}
	c := mustParse(t, f.bytes())
	require.Equal(t, "abcd", c.Entries()[0].Text)
	require.True(t, hasDiag(c.Diagnostics(), DiagTruncatedString))

	c = mustParse(t, f.bytes(), WithLimits(Limits{MaxStringUnits: 2}))
	require.Equal(t, "ab", c.Entries()[0].Text)
	require.True(t, hasDiag(c.Diagnostics(), DiagTruncatedString))
}

func TestParsePoolEndsAtDeclaredSize(t *testing.T) {
	f := helloFixture()
	f.trailer = []byte("FLW1\x08\x00\x00\x00")
	c := mustParse(t, f.bytes())
	d := c.Sections().DAT1
	require.Equal(t, f.poolBase()+len(f.pool), d.End)
	require.Equal(t, len(f.pool), d.PoolSize())
}

func TestParseSegmentsPartitionPool(t *testing.T) {
	f := sharedFixture()
	c := mustParse(t, f.bytes())
	segs := c.Segments()
	require.Len(t, segs, 4)

	want := []struct {
		off  uint32
		end  uint32
		kind SegmentKind
	}{
		{0, 12, SegmentEntry},
		{12, 32, SegmentRaw},
		{32, 46, SegmentEntry},
		{46, 48, SegmentRaw},
	}
	for i, w := range want {
		require.Equal(t, w.off, segs[i].Offset, "segment %d", i)
		require.Equal(t, w.end, segs[i].End(), "segment %d", i)
		require.Equal(t, w.kind, segs[i].Kind, "segment %d", i)
		require.Equal(t, -1, segs[i].Parent)
	}
	require.Equal(t, []int{0, 1}, segs[2].Entries)
	require.Equal(t, []int{2}, segs[0].Entries)
	require.Equal(t, "Shared", segs[2].Text)
}

func TestParseInteriorSegment(t *testing.T) {
	f := helloFixture()
	f.entries = append(f.entries, fixtureEntry{msgID: 2, offset: 4})
	c := mustParse(t, f.bytes())
	require.Equal(t, "llo[1A:0001] World", c.Entries()[1].Text)

	segs := c.Segments()
	require.Len(t, segs, 2)
	require.Equal(t, -1, segs[0].Parent)
	require.Equal(t, uint32(28), segs[0].SpanEnd)
	require.Equal(t, 0, segs[1].Parent)
	require.Equal(t, uint32(4), segs[1].Offset)
}
