package bmg

import (
	"sort"

	"github.com/golang/glog"
)

// partitionPool rebuilds the segment arena so that every pool byte belongs to
// exactly one top-level segment. String segments that begin inside an earlier
// segment's span become interior segments of that cluster; bytes no string
// covers become raw segments. Detached segments follow in offset order.
func (c *Container) partitionPool() {
	var inPool, detached []int
	for i := range c.segments {
		if c.segments[i].Detached {
			detached = append(detached, i)
		} else {
			inPool = append(inPool, i)
		}
	}
	byOff := func(idx []int) {
		sort.SliceStable(idx, func(a, b int) bool {
			return c.segments[idx[a]].Offset < c.segments[idx[b]].Offset
		})
	}
	byOff(inPool)
	byOff(detached)

	d := c.sections.DAT1
	pool := d.PoolSize()
	out := make([]Segment, 0, len(c.segments)*2+1)
	moved := make(map[int]int, len(c.segments))
	top, clusterEnd := -1, 0
	interior := 0

	for _, old := range inPool {
		s := c.segments[old]
		off := int(s.Offset)
		if top >= 0 && off < clusterEnd {
			s.Parent = top
			if e := int(s.End()); e > clusterEnd {
				clusterEnd = e
				out[top].SpanEnd = uint32(e)
			}
			moved[old] = len(out)
			out = append(out, s)
			interior++
			continue
		}
		if off > clusterEnd {
			out = append(out, c.rawSegment(clusterEnd, off))
		}
		s.Parent = -1
		s.SpanEnd = s.End()
		top = len(out)
		clusterEnd = int(s.End())
		moved[old] = len(out)
		out = append(out, s)
	}
	if clusterEnd < pool {
		out = append(out, c.rawSegment(clusterEnd, pool))
	}
	for _, old := range detached {
		s := c.segments[old]
		s.Parent = -1
		s.SpanEnd = s.End()
		moved[old] = len(out)
		out = append(out, s)
	}

	c.segments = out
	for off, old := range c.byOffset {
		c.byOffset[off] = moved[old]
	}
	for i := range c.entries {
		c.entries[i].Segment = moved[c.entries[i].Segment]
	}
	if interior > 0 {
		glog.V(1).Infof("bmg: %d strings start inside another string's bytes", interior)
	}
}

func (c *Container) rawSegment(start, end int) Segment {
	b, _ := readBytes(c.data, c.sections.DAT1.Base+start, end-start, c.sections.DAT1.End)
	return Segment{
		Offset:   uint32(start),
		Bytes:    b,
		Kind:     SegmentRaw,
		CrossRef: -1,
		Parent:   -1,
		SpanEnd:  uint32(end),
	}
}

// collectCrossRefs turns every segment owned only by MID1 into a CrossRef,
// numbered in pool order. Segments an entry also uses stay editable through
// that entry.
func (c *Container) collectCrossRefs() {
	for i := range c.segments {
		seg := &c.segments[i]
		if seg.Kind != SegmentMidPointer && seg.Kind != SegmentMidID {
			continue
		}
		x := CrossRef{
			ID:         len(c.crossRefs),
			Offset:     seg.Offset,
			References: seg.MidRefs,
			Kind:       seg.Kind,
			editable:   newEditable(seg, i),
		}
		seg.CrossRef = x.ID
		c.crossRefs = append(c.crossRefs, x)
	}
}

// referrers returns the editable states sharing segment idx.
func (c *Container) referrers(idx int) []*editable {
	seg := &c.segments[idx]
	out := make([]*editable, 0, len(seg.Entries)+1)
	for _, e := range seg.Entries {
		out = append(out, &c.entries[e].editable)
	}
	if seg.CrossRef >= 0 {
		out = append(out, &c.crossRefs[seg.CrossRef].editable)
	}
	return out
}

// segmentDirty reports whether any referrer of segment idx differs from its original text.
func (c *Container) segmentDirty(idx int) bool {
	for _, r := range c.referrers(idx) {
		if r.Dirty {
			return true
		}
	}
	return false
}
