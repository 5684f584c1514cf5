package bmg

import (
	"fmt"
	"unicode/utf8"
)

type RefKind uint8

const (
	RefEntry RefKind = iota
	RefCrossRef
)

func (k RefKind) String() string {
	if k == RefCrossRef {
		return "cross-ref"
	}
	return "entry"
}

// Ref addresses one editable string: an INF1 entry by index or a MID1
// cross-reference by id.
type Ref struct {
	Kind  RefKind
	Index int
}

func EntryRef(i int) Ref { return Ref{Kind: RefEntry, Index: i} }

func CrossRefRef(id int) Ref { return Ref{Kind: RefCrossRef, Index: id} }

func (r Ref) String() string { return fmt.Sprintf("%s %d", r.Kind, r.Index) }

func (c *Container) editableFor(ref Ref) (*editable, error) {
	switch ref.Kind {
	case RefEntry:
		if ref.Index >= 0 && ref.Index < len(c.entries) {
			return &c.entries[ref.Index].editable, nil
		}
	case RefCrossRef:
		if ref.Index >= 0 && ref.Index < len(c.crossRefs) {
			return &c.crossRefs[ref.Index].editable, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidRef, ref)
}

// Text returns the current text and leading-null flag of ref.
func (c *Container) Text(ref Ref) (string, bool, error) {
	e, err := c.editableFor(ref)
	if err != nil {
		return "", false, err
	}
	return e.Text, e.LeadingNull, nil
}

// SetText replaces the text of one string. The input is normalized first
// (line endings, token spelling, raw control characters). Other referrers of
// the same pool segment are left alone, so a lone edit of a shared string is
// reported as a conflict by Plan and Build.
//
// An empty text is stored with the leading-null flag set: a bare terminator
// reads back as a lone null unit, so that is the only form an empty string
// can take in the pool.
func (c *Container) SetText(ref Ref, text string, leadingNull bool) error {
	e, err := c.editableFor(ref)
	if err != nil {
		return err
	}
	text, leadingNull, err = c.prepareText(ref, text, leadingNull)
	if err != nil {
		return err
	}
	e.set(text, leadingNull)
	return nil
}

// SetSharedText applies the edit to every entry and cross-reference that
// shares ref's pool segment.
func (c *Container) SetSharedText(ref Ref, text string, leadingNull bool) error {
	e, err := c.editableFor(ref)
	if err != nil {
		return err
	}
	text, leadingNull, err = c.prepareText(ref, text, leadingNull)
	if err != nil {
		return err
	}
	for _, r := range c.referrers(e.Segment) {
		r.set(text, leadingNull)
	}
	return nil
}

func (c *Container) prepareText(ref Ref, text string, leadingNull bool) (string, bool, error) {
	if !utf8.ValidString(text) {
		return "", false, fmt.Errorf("%w: %s: text is not valid UTF-8", ErrValidation, ref)
	}
	text = c.cfg.codec.Normalize(text)
	if r, found := c.cfg.codec.LiteralParamCode(text); found {
		return "", false, fmt.Errorf("%w: %s: character U+%04X is a control code with parameters; write it as a token",
			ErrValidation, ref, r)
	}
	if text == "" {
		leadingNull = true
	}
	return text, leadingNull, nil
}

// Revert restores ref's original text.
func (c *Container) Revert(ref Ref) error {
	e, err := c.editableFor(ref)
	if err != nil {
		return err
	}
	e.revert()
	return nil
}

func (c *Container) RevertAll() {
	for i := range c.entries {
		c.entries[i].revert()
	}
	for i := range c.crossRefs {
		c.crossRefs[i].revert()
	}
}

// Dirty reports whether any string differs from what was parsed.
func (c *Container) Dirty() bool {
	for i := range c.entries {
		if c.entries[i].Dirty {
			return true
		}
	}
	for i := range c.crossRefs {
		if c.crossRefs[i].Dirty {
			return true
		}
	}
	return false
}

// CheckShared returns a *SharedStringConflictError for the first pool
// segment whose referrers disagree on text or leading-null flag.
func (c *Container) CheckShared() error {
	for i := range c.segments {
		if err := c.checkSegment(i); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) checkSegment(idx int) error {
	refs := c.referrers(idx)
	if len(refs) < 2 {
		return nil
	}
	first := refs[0]
	for _, r := range refs[1:] {
		if r.Text != first.Text || r.LeadingNull != first.LeadingNull {
			seg := &c.segments[idx]
			err := &SharedStringConflictError{Offset: seg.Offset, Entries: append([]int(nil), seg.Entries...)}
			if seg.CrossRef >= 0 {
				err.CrossRefs = []int{seg.CrossRef}
			}
			return err
		}
	}
	return nil
}

func (e *editable) set(text string, leadingNull bool) {
	e.Text = text
	e.LeadingNull = leadingNull
	e.Dirty = text != e.OriginalText || leadingNull != e.OriginalLeadingNull
}

func (e *editable) revert() {
	e.Text = e.OriginalText
	e.LeadingNull = e.OriginalLeadingNull
	e.Dirty = false
	e.ByteLength = len(e.OriginalBytes)
}
