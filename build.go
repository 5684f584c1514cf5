package bmg

import (
	"fmt"

	"github.com/golang/glog"
)

// BuildResult is a rebuilt container.
type BuildResult struct {
	Data        []byte
	Layout      *Layout
	Diagnostics []Diagnostic
}

// Build serializes a new container from the current edits.
//
// Bytes before the pool and after it are copied unchanged; the pool is
// replaced by the planned layout plus alignment padding. The total-size and
// DAT1 size fields move by the pool's growth, every entry offset is patched,
// and in pointer mode every MID1 pointer is remapped with its flag bit kept.
// A pointer with no new position is left as is and reported as a
// diagnostic. No output is returned when planning or verification fails.
func (c *Container) Build(opts ...BuildOption) (*BuildResult, error) {
	cfg := buildConfig{verify: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	l, err := c.Plan()
	if err != nil {
		return nil, err
	}

	d := c.sections.DAT1
	delta := l.PoolSize() - d.PoolSize()
	out := make([]byte, 0, len(c.data)+delta)
	out = append(out, c.data[:d.Base]...)
	for _, ch := range l.Chunks {
		out = append(out, ch.Bytes...)
	}
	out = append(out, make([]byte, l.Padding)...)
	out = append(out, c.data[d.End:]...)

	b := &builder{c: c, out: out, delta: delta}
	b.adjust(8, "container size")
	b.adjust(d.Offset+4, "DAT1 size")
	for i := range c.entries {
		e := &c.entries[i]
		off, ok := l.EntryOffset[i]
		if !ok {
			continue
		}
		b.put(e.FieldOffset, off, fmt.Sprintf("entry %d offset", i))
	}
	if c.Mode() == CrossRefPointer {
		b.remapPointers(l)
	}
	if b.err != nil {
		return nil, b.err
	}
	glog.V(1).Infof("bmg: built %d bytes (pool %d -> %d)", len(b.out), d.PoolSize(), l.PoolSize())

	if cfg.verify {
		if err := c.verify(b.out, l); err != nil {
			return nil, err
		}
	}
	return &BuildResult{Data: b.out, Layout: l, Diagnostics: b.diags.clone()}, nil
}

type builder struct {
	c     *Container
	out   []byte
	delta int
	diags diagnostics
	err   error
}

// position maps an absolute offset of the old buffer into the new one.
// Offsets inside the old pool have no counterpart.
func (b *builder) position(pos int) (int, bool) {
	d := b.c.sections.DAT1
	switch {
	case pos < d.Base:
		return pos, true
	case pos >= d.End:
		return pos + b.delta, true
	default:
		return 0, false
	}
}

func (b *builder) adjust(pos int, what string) {
	old, err := readU32(b.c.data, pos, len(b.c.data))
	if err != nil {
		b.fail(what, err)
		return
	}
	b.put(pos, old+uint32(b.delta), what)
}

func (b *builder) put(pos int, v uint32, what string) {
	if b.err != nil {
		return
	}
	np, ok := b.position(pos)
	if !ok {
		b.diags.add(DiagMisplacedField, pos, ErrInvalidSection, "%s lies inside the string pool; left unchanged", what)
		return
	}
	if err := putU32(b.out, np, v); err != nil {
		b.fail(what, err)
	}
}

func (b *builder) fail(what string, err error) {
	if b.err == nil {
		b.err = fmt.Errorf("bmg: patch %s: %w", what, err)
	}
}

func (b *builder) remapPointers(l *Layout) {
	m := b.c.sections.MID1
	start := m.Offset + sectionHeaderSize + midTableHeader
	for r, row := range m.Cells {
		for col, v := range row {
			if v == 0 {
				continue
			}
			pos := start + r*int(m.RowSize) + col*4
			off, ok := l.Remap[v&^1]
			if !ok {
				b.diags.add(DiagDanglingPointer, pos, ErrDanglingPointer,
					"MID1 row %d column %d pointer 0x%06X has no new position; left unchanged", r, col, v)
				continue
			}
			b.put(pos, off|v&1, fmt.Sprintf("MID1 row %d column %d", r, col))
		}
	}
}

// verify re-parses out and checks that every placed entry, and in pointer
// mode every remapped MID1 cell, reads back the text it was built from.
func (c *Container) verify(out []byte, l *Layout) error {
	nc, err := Parse(out, WithLimits(c.cfg.limits), WithCodec(c.cfg.codec))
	if err != nil {
		return fmt.Errorf("%w: rebuilt container does not parse: %w", ErrValidation, err)
	}
	if len(nc.entries) != len(c.entries) {
		return fmt.Errorf("%w: rebuilt container has %d entries, want %d", ErrValidation, len(nc.entries), len(c.entries))
	}
	for i := range c.entries {
		if _, placed := l.EntryOffset[i]; !placed {
			continue
		}
		want, got := &c.entries[i], &nc.entries[i]
		if got.Text != want.Text || got.LeadingNull != want.LeadingNull {
			return fmt.Errorf("%w: entry %d reads back %q (leading null %t), want %q (leading null %t)",
				ErrValidation, i, got.Text, got.LeadingNull, want.Text, want.LeadingNull)
		}
	}
	if c.Mode() != CrossRefPointer {
		return nil
	}
	if nc.Mode() != CrossRefPointer {
		return fmt.Errorf("%w: rebuilt MID1 table resolves as %s", ErrValidation, nc.Mode())
	}
	for i := range c.crossRefs {
		x := &c.crossRefs[i]
		for _, ref := range x.References {
			if _, ok := l.Remap[ref.Raw&^1]; !ok {
				continue
			}
			cells := nc.sections.MID1.Cells
			if ref.Row >= len(cells) || ref.Column >= len(cells[ref.Row]) {
				return fmt.Errorf("%w: cross-reference %d lost its MID1 cell", ErrValidation, x.ID)
			}
			v := cells[ref.Row][ref.Column]
			idx, ok := nc.byOffset[v&^1]
			if !ok {
				return fmt.Errorf("%w: cross-reference %d lost its string", ErrValidation, x.ID)
			}
			seg := &nc.segments[idx]
			if seg.Text != x.Text || seg.LeadingNull != x.LeadingNull || v&1 != ref.Flags {
				return fmt.Errorf("%w: cross-reference %d reads back %q (leading null %t, flag %d), want %q (leading null %t, flag %d)",
					ErrValidation, x.ID, seg.Text, seg.LeadingNull, v&1, x.Text, x.LeadingNull, ref.Flags)
			}
		}
	}
	return nil
}
