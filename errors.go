package bmg

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidMagic         = errors.New("bmg: invalid magic")
	ErrOutOfBounds          = errors.New("bmg: read out of bounds")
	ErrSectionNotFound      = errors.New("bmg: section not found")
	ErrInvalidSection       = errors.New("bmg: invalid section header")
	ErrTruncatedEntry       = errors.New("bmg: truncated entry table")
	ErrSharedStringConflict = errors.New("bmg: shared string conflict")
	ErrDanglingPointer      = errors.New("bmg: dangling cross-reference pointer")
	ErrUnsupportedEncoding  = errors.New("bmg: unsupported encoding")
	ErrAmbiguousCrossRef    = errors.New("bmg: ambiguous cross-reference table")
	ErrInvalidRef           = errors.New("bmg: invalid reference")
	ErrValidation           = errors.New("bmg: validation failed")
	ErrLimitExceeded        = errors.New("bmg: limit exceeded")

	ErrInvalidPatch       = errors.New("bmg: invalid patch header")
	ErrInvalidPayload     = errors.New("bmg: invalid patch payload")
	ErrUnsupportedVersion = errors.New("bmg: unsupported patch version")
	ErrSourceMismatch     = errors.New("bmg: patch does not match source container")
)

// OutOfBoundsError reports a fixed-width read or write that would cross its limit.
type OutOfBoundsError struct {
	Offset int
	Width  int
	Limit  int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("%v: %d-byte access at 0x%X exceeds limit 0x%X", ErrOutOfBounds, e.Width, e.Offset, e.Limit)
}

func (e *OutOfBoundsError) Unwrap() error { return ErrOutOfBounds }

// SharedStringConflictError names the referrers of one pool segment whose
// current text or leading-null flag disagree.
type SharedStringConflictError struct {
	Offset    uint32
	Entries   []int
	CrossRefs []int
}

func (e *SharedStringConflictError) Error() string {
	var b strings.Builder
	b.WriteString(ErrSharedStringConflict.Error())
	b.WriteString(": ")
	if len(e.Entries) > 0 {
		b.WriteString("entries ")
		b.WriteString(joinInts(e.Entries))
	}
	if len(e.CrossRefs) > 0 {
		if len(e.Entries) > 0 {
			b.WriteString(" and ")
		}
		b.WriteString("cross-references ")
		b.WriteString(joinInts(e.CrossRefs))
	}
	fmt.Fprintf(&b, " share DAT1 offset 0x%06X; keep their text identical", e.Offset)
	return b.String()
}

func (e *SharedStringConflictError) Unwrap() error { return ErrSharedStringConflict }

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
