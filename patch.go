package bmg

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

const (
	PatchVersionV1 uint16 = 1

	fixedHeaderSizeV1   uint32 = 32
	sectionHeaderSizeV1        = 16
)

// PatchMagic is the 8-byte signature of a BMG patch file.
var PatchMagic = [8]byte{'B', 'M', 'G', 'P', 'A', 'T', 'C', 'H'}

const (
	// HeaderFlagSourceHash marks SourceHash as meaningful.
	HeaderFlagSourceHash uint16 = 0x0001
)

type SectionType uint16

const (
	SectionEdits SectionType = 1
)

type Compression uint16

const (
	CompNone Compression = 0x0
	CompZIP  Compression = 0x1
	CompZSTD Compression = 0x2
	CompLZ4  Compression = 0x3
	CompBR   Compression = 0x4
	CompS2   Compression = 0x5
)

func (c Compression) String() string {
	switch c {
	case CompNone:
		return "none"
	case CompZIP:
		return "zip"
	case CompZSTD:
		return "zstd"
	case CompLZ4:
		return "lz4"
	case CompBR:
		return "brotli"
	case CompS2:
		return "s2"
	default:
		return fmt.Sprintf("compression(%d)", uint16(c))
	}
}

// ParseCompression maps a name as printed by Compression.String back to its value.
func ParseCompression(name string) (Compression, error) {
	for c := CompNone; c <= CompS2; c++ {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown compression %q", ErrValidation, name)
}

const (
	sectionFlagCompressionMask    uint16 = 0x000F
	sectionFlagHasUncompressedLen uint16 = 0x0010
)

// Edit replaces the text of one entry or cross-reference.
type Edit struct {
	Kind        RefKind
	Index       int
	Text        string
	LeadingNull bool
}

func (e Edit) Ref() Ref { return Ref{Kind: e.Kind, Index: e.Index} }

// EditSet is the gob payload of the edits section.
type EditSet struct {
	SetVersion uint16
	Edits      []Edit
}

// Patch is a portable set of text edits bound to the container it was made from.
//
// SourceSize and SourceHash identify the unmodified source container; a
// zero SourceHash means the patch is not bound to a particular file.
type Patch struct {
	SourceSize uint32
	SourceHash uint64
	Edits      []Edit
}

// Fingerprint is the source hash recorded in patches: xxhash64 of the container bytes.
func Fingerprint(data []byte) uint64 { return xxhash.Sum64(data) }

// CreatePatch collects every edited entry and cross-reference of c.
func CreatePatch(c *Container) *Patch {
	p := &Patch{SourceSize: uint32(len(c.data)), SourceHash: Fingerprint(c.data)}
	for i := range c.entries {
		if e := &c.entries[i]; e.Dirty {
			p.Edits = append(p.Edits, Edit{Kind: RefEntry, Index: i, Text: e.Text, LeadingNull: e.LeadingNull})
		}
	}
	for i := range c.crossRefs {
		if x := &c.crossRefs[i]; x.Dirty {
			p.Edits = append(p.Edits, Edit{Kind: RefCrossRef, Index: i, Text: x.Text, LeadingNull: x.LeadingNull})
		}
	}
	return p
}

// Diff compares the current text of two containers index by index and
// returns the edits that turn base into edited. Both must have the same
// number of entries and cross-references.
func Diff(base, edited *Container) (*Patch, error) {
	if len(base.entries) != len(edited.entries) {
		return nil, fmt.Errorf("%w: entry count %d != %d", ErrValidation, len(base.entries), len(edited.entries))
	}
	if len(base.crossRefs) != len(edited.crossRefs) {
		return nil, fmt.Errorf("%w: cross-reference count %d != %d", ErrValidation, len(base.crossRefs), len(edited.crossRefs))
	}
	p := &Patch{SourceSize: uint32(len(base.data)), SourceHash: Fingerprint(base.data)}
	for i := range base.entries {
		a, b := &base.entries[i], &edited.entries[i]
		if a.Text != b.Text || a.LeadingNull != b.LeadingNull {
			p.Edits = append(p.Edits, Edit{Kind: RefEntry, Index: i, Text: b.Text, LeadingNull: b.LeadingNull})
		}
	}
	for i := range base.crossRefs {
		a, b := &base.crossRefs[i], &edited.crossRefs[i]
		if a.Text != b.Text || a.LeadingNull != b.LeadingNull {
			p.Edits = append(p.Edits, Edit{Kind: RefCrossRef, Index: i, Text: b.Text, LeadingNull: b.LeadingNull})
		}
	}
	return p, nil
}

// ApplyPatch applies every edit of p. The container is left untouched when
// any edit fails. Unless WithIgnoreSource(true) is given, a patch bound to
// a different source container is rejected with ErrSourceMismatch.
func (c *Container) ApplyPatch(p *Patch, opts ...PatchReadOption) error {
	cfg := patchReadConfig{limits: defaultLimits()}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()
	if err := validatePatch(p, cfg.limits); err != nil {
		return err
	}
	if !cfg.ignoreSource && p.SourceHash != 0 {
		if p.SourceSize != uint32(len(c.data)) || p.SourceHash != Fingerprint(c.data) {
			return fmt.Errorf("%w: want %d bytes with hash %016x", ErrSourceMismatch, p.SourceSize, p.SourceHash)
		}
	}

	entries := snapshot(c.entries, func(e *Entry) *editable { return &e.editable })
	crossRefs := snapshot(c.crossRefs, func(x *CrossRef) *editable { return &x.editable })
	for _, ed := range p.Edits {
		if err := c.SetText(ed.Ref(), ed.Text, ed.LeadingNull); err != nil {
			restore(c.entries, entries, func(e *Entry) *editable { return &e.editable })
			restore(c.crossRefs, crossRefs, func(x *CrossRef) *editable { return &x.editable })
			return err
		}
	}
	return nil
}

func snapshot[T any](items []T, get func(*T) *editable) []editable {
	out := make([]editable, len(items))
	for i := range items {
		out[i] = *get(&items[i])
	}
	return out
}

func restore[T any](items []T, saved []editable, get func(*T) *editable) {
	for i := range items {
		*get(&items[i]) = saved[i]
	}
}
