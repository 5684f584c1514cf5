package bmg

import (
	"bytes"
	"fmt"

	"github.com/golang/glog"
)

// Container is a parsed BMG file. It owns a private copy of the input bytes;
// edits are kept on the entries and cross-references and only materialize in
// a new buffer through Build.
type Container struct {
	data      []byte
	header    Header
	sections  Sections
	entries   []Entry
	crossRefs []CrossRef
	segments  []Segment
	diags     diagnostics
	cfg       parseConfig

	// byOffset maps the original pool offset of every string segment
	// (in-pool or detached) to its arena index.
	byOffset map[uint32]int
}

// Parse decodes a BMG container. INF1 and DAT1 are required; a missing or
// malformed MID1 only disables cross-reference resolution.
//
// Conditions that real files are known to contain (truncated strings,
// dangling offsets, short MID1 tables, encodings other than UTF-16) are
// recorded as diagnostics instead of failing the parse.
func Parse(data []byte, opts ...ParseOption) (*Container, error) {
	cfg := newParseConfig(opts)
	c := &Container{
		data:     bytes.Clone(data),
		cfg:      cfg,
		byOffset: make(map[uint32]int),
	}
	if c.data == nil {
		c.data = []byte{}
	}
	if err := c.parseHeader(); err != nil {
		return nil, err
	}
	if err := c.locateSections(); err != nil {
		return nil, err
	}
	if err := c.decodeEntries(); err != nil {
		return nil, err
	}
	if err := c.resolveCrossRefs(); err != nil {
		return nil, err
	}
	c.partitionPool()
	c.collectCrossRefs()
	glog.V(1).Infof("bmg: parsed %d entries, %d cross-references (%s), %d segments, pool %d bytes",
		len(c.entries), len(c.crossRefs), c.sections.MID1.Mode, len(c.segments), c.sections.DAT1.PoolSize())
	return c, nil
}

func (c *Container) parseHeader() error {
	if len(c.data) < len(Magic) || !bytes.Equal(c.data[:len(Magic)], Magic[:]) {
		return ErrInvalidMagic
	}
	tag, err := readBytes(c.data, 0, 8, len(c.data))
	if err != nil {
		return fmt.Errorf("bmg: header tag: %w", err)
	}
	copy(c.header.Tag[:], tag)
	if c.header.FileSize, err = readU32(c.data, 8, len(c.data)); err != nil {
		return fmt.Errorf("bmg: header size: %w", err)
	}
	if c.header.SectionCount, err = readU32(c.data, 12, len(c.data)); err != nil {
		return fmt.Errorf("bmg: header section count: %w", err)
	}
	enc, err := readU8(c.data, 16, len(c.data))
	if err != nil {
		return fmt.Errorf("bmg: header encoding: %w", err)
	}
	c.header.Encoding = Encoding(enc)
	if !c.header.Encoding.Supported() {
		c.diags.add(DiagUnsupportedEncoding, 16, ErrUnsupportedEncoding,
			"encoding 0x%02X (%s); text may render incorrectly", enc, c.header.Encoding)
	}
	return nil
}

func (c *Container) locateSections() error {
	inf, err := findSection(c.data, TagINF1)
	if err != nil {
		return err
	}
	dat, err := findSection(c.data, TagDAT1)
	if err != nil {
		return err
	}
	if err := c.readINFHeader(inf); err != nil {
		return err
	}

	d := &c.sections.DAT1
	d.Offset = dat
	if d.DeclaredSize, err = readU32(c.data, dat+4, len(c.data)); err != nil {
		return fmt.Errorf("%w: DAT1 size: %w", ErrInvalidSection, err)
	}
	d.Base = dat + sectionHeaderSize

	if mid, err := findSection(c.data, TagMID1); err == nil {
		c.readMIDHeader(mid)
	} else {
		glog.V(1).Infof("bmg: no MID1 section")
	}

	d.End = c.poolEnd()
	return nil
}

// poolEnd decides where the string pool stops. A MID1 section that follows
// DAT1 bounds it; otherwise the declared DAT1 size is trusted only when a
// section tag starts there, and the pool runs to the end of the buffer.
func (c *Container) poolEnd() int {
	d := c.sections.DAT1
	m := c.sections.MID1
	if m.Present && m.Offset >= d.Base {
		return m.Offset
	}
	declared := d.Offset + int(d.DeclaredSize)
	if declared > d.Base && declared < len(c.data) && looksLikeTag(c.data, declared) {
		return declared
	}
	return len(c.data)
}

// Bytes returns a copy of the container's original bytes.
func (c *Container) Bytes() []byte { return bytes.Clone(c.data) }

func (c *Container) Header() Header { return c.header }

func (c *Container) Sections() Sections { return c.sections }

// Mode reports how the MID1 table was interpreted.
func (c *Container) Mode() CrossRefMode { return c.sections.MID1.Mode }

// Codec returns the codec used for decoding and re-encoding text.
func (c *Container) Codec() *Codec { return c.cfg.codec }

// Entries returns a snapshot of the INF1 entries with their current text.
func (c *Container) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// CrossRefs returns a snapshot of the strings reachable only through MID1.
func (c *Container) CrossRefs() []CrossRef {
	out := make([]CrossRef, len(c.crossRefs))
	copy(out, c.crossRefs)
	return out
}

// Segments returns the pool partition in original offset order, followed by
// detached segments.
func (c *Container) Segments() []Segment {
	out := make([]Segment, len(c.segments))
	copy(out, c.segments)
	return out
}

func (c *Container) Diagnostics() []Diagnostic { return c.diags.clone() }
