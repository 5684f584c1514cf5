package bmg

import (
	"bytes"

	"github.com/golang/glog"
)

// Chunk is one contiguous run of the rebuilt pool.
type Chunk struct {
	Segment   int // arena index, -1 for alignment filler
	Offset    uint32
	Bytes     []byte
	Reencoded bool
}

// Layout is the planned pool for one build. It is computed fresh on every
// call and never cached on the Container.
type Layout struct {
	Chunks []Chunk
	// SegmentChunk maps a segment to the chunk holding its bytes. Untouched
	// strings that lie inside an untouched neighbour share its chunk.
	SegmentChunk  map[int]int
	SegmentOffset map[int]uint32
	EntryChunk    map[int]int
	EntryOffset   map[int]uint32
	Size          int
	Padding       int
	// Remap maps original pool offsets to their new offsets.
	Remap map[uint32]uint32
}

// PoolSize is the size of the rebuilt pool including alignment padding.
func (l *Layout) PoolSize() int { return l.Size + l.Padding }

type planner struct {
	c      *Container
	l      *Layout
	cursor uint32
	// encoded caches the new bytes of dirty segments.
	encoded map[int][]byte
}

// Plan lays the pool out again for the current edits. Untouched bytes are
// kept verbatim; dirty segments are re-encoded. It fails with a
// *SharedStringConflictError when referrers of one segment disagree.
//
// Plan updates ByteLength and CalculatedOffset of every entry and
// cross-reference so callers can show where each string will land.
func (c *Container) Plan() (*Layout, error) {
	if err := c.CheckShared(); err != nil {
		return nil, err
	}
	p := &planner{
		c: c,
		l: &Layout{
			SegmentChunk:  make(map[int]int),
			SegmentOffset: make(map[int]uint32),
			EntryChunk:    make(map[int]int),
			EntryOffset:   make(map[int]uint32),
			Remap:         make(map[uint32]uint32),
		},
		encoded: make(map[int][]byte),
	}
	for i := range c.segments {
		if c.segmentDirty(i) {
			r := c.referrers(i)[0]
			p.encoded[i] = c.cfg.codec.Encode(r.Text, r.LeadingNull)
		}
	}

	var origCursor uint32
	for i := 0; i < len(c.segments); i++ {
		seg := &c.segments[i]
		if seg.Detached || seg.Parent >= 0 {
			continue
		}
		if c.Mode() == CrossRefID && seg.Offset > origCursor {
			// keep absolute spacing if the partition ever leaves a hole
			p.emit(-1, make([]byte, seg.Offset-origCursor), false)
		}
		origCursor = seg.SpanEnd
		p.placeCluster(i)
	}
	for i := range c.segments {
		if c.segments[i].Detached && c.segmentDirty(i) {
			p.emit(i, p.encoded[i], true)
		}
	}

	l := p.l
	l.Size = int(p.cursor)
	l.Padding = (poolAlign - l.Size%poolAlign) % poolAlign
	p.assign()
	glog.V(2).Infof("bmg: planned %d chunks, %d re-encoded, pool %d+%d bytes",
		len(l.Chunks), len(p.encoded), l.Size, l.Padding)
	return l, nil
}

// placeCluster lays out top-level segment t and the interior segments that
// start inside its span. While t is untouched its original span is copied
// as one chunk and untouched interiors keep their relative position in it;
// everything else gets its own chunk right after.
func (p *planner) placeCluster(t int) {
	c := p.c
	seg := &c.segments[t]
	var members []int
	for j := t + 1; j < len(c.segments) && c.segments[j].Parent == t; j++ {
		members = append(members, j)
	}

	var rest []int
	if b, dirty := p.encoded[t]; dirty {
		p.emit(t, b, true)
		rest = members
	} else {
		d := c.sections.DAT1
		span := c.data[d.Base+int(seg.Offset) : d.Base+int(seg.SpanEnd)]
		base := p.cursor
		chunk := p.emit(t, bytes.Clone(span), false)
		for _, m := range members {
			if _, dirty := p.encoded[m]; dirty {
				rest = append(rest, m)
				continue
			}
			p.place(m, chunk, base+(c.segments[m].Offset-seg.Offset))
		}
	}
	for _, m := range rest {
		if b, dirty := p.encoded[m]; dirty {
			p.emit(m, b, true)
		} else {
			p.emit(m, bytes.Clone(c.segments[m].Bytes), false)
		}
	}
}

func (p *planner) emit(seg int, b []byte, reencoded bool) int {
	l := p.l
	l.Chunks = append(l.Chunks, Chunk{Segment: seg, Offset: p.cursor, Bytes: b, Reencoded: reencoded})
	idx := len(l.Chunks) - 1
	if seg >= 0 {
		p.place(seg, idx, p.cursor)
	}
	p.cursor += uint32(len(b))
	return idx
}

func (p *planner) place(seg, chunk int, off uint32) {
	l := p.l
	l.SegmentChunk[seg] = chunk
	l.SegmentOffset[seg] = off
	// Raw fillers are not string starts; a pointer landing on one is dangling.
	if s := &p.c.segments[seg]; !s.Detached && s.Kind != SegmentRaw {
		l.Remap[s.Offset] = off
	}
}

// assign publishes the planned offsets and lengths on entries and cross-references.
func (p *planner) assign() {
	c, l := p.c, p.l
	length := func(seg int) int {
		if b, ok := p.encoded[seg]; ok {
			return len(b)
		}
		return len(c.segments[seg].Bytes)
	}
	for i := range c.entries {
		e := &c.entries[i]
		if off, ok := l.SegmentOffset[e.Segment]; ok {
			l.EntryChunk[i] = l.SegmentChunk[e.Segment]
			l.EntryOffset[i] = off
			e.CalculatedOffset = off
			e.ByteLength = length(e.Segment)
			continue
		}
		e.CalculatedOffset = e.Offset
		e.ByteLength = len(e.OriginalBytes)
	}
	for i := range c.crossRefs {
		x := &c.crossRefs[i]
		if off, ok := l.SegmentOffset[x.Segment]; ok {
			x.CalculatedOffset = off
			x.ByteLength = length(x.Segment)
			continue
		}
		x.CalculatedOffset = x.Offset
		x.ByteLength = len(x.OriginalBytes)
	}
}
