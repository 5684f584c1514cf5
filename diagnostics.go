package bmg

import (
	"fmt"

	"github.com/golang/glog"
)

// DiagnosticKind classifies a non-fatal condition found while parsing or building.
type DiagnosticKind uint8

const (
	DiagUnsupportedEncoding DiagnosticKind = iota + 1
	DiagTruncatedString
	DiagTruncatedTable
	DiagDanglingOffset
	DiagDanglingPointer
	DiagAmbiguousCrossRef
	DiagMisplacedField
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagUnsupportedEncoding:
		return "unsupported-encoding"
	case DiagTruncatedString:
		return "truncated-string"
	case DiagTruncatedTable:
		return "truncated-table"
	case DiagDanglingOffset:
		return "dangling-offset"
	case DiagDanglingPointer:
		return "dangling-pointer"
	case DiagAmbiguousCrossRef:
		return "ambiguous-cross-ref"
	case DiagMisplacedField:
		return "misplaced-field"
	default:
		return fmt.Sprintf("diagnostic(%d)", uint8(k))
	}
}

// Diagnostic is a condition that degraded a parse or build without aborting it.
// Err wraps the matching sentinel so callers can use errors.Is.
type Diagnostic struct {
	Kind    DiagnosticKind
	Offset  int // absolute offset in the container, -1 when not tied to a position
	Message string
	Err     error
}

func (d Diagnostic) String() string {
	if d.Offset < 0 {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s at 0x%X: %s", d.Kind, d.Offset, d.Message)
}

type diagnostics []Diagnostic

func (d *diagnostics) add(kind DiagnosticKind, offset int, sentinel error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	var err error
	if sentinel != nil {
		err = fmt.Errorf("%w: %s", sentinel, msg)
	}
	diag := Diagnostic{Kind: kind, Offset: offset, Message: msg, Err: err}
	glog.Warningf("bmg: %s", diag)
	*d = append(*d, diag)
}

func (d diagnostics) clone() []Diagnostic {
	if len(d) == 0 {
		return nil
	}
	out := make([]Diagnostic, len(d))
	copy(out, d)
	return out
}
