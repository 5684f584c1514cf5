package bmg

import (
	"fmt"
	"unicode/utf8"
)

func validatePatch(p *Patch, limits Limits) error {
	if p == nil {
		return fmt.Errorf("%w: patch is nil", ErrValidation)
	}
	if len(p.Edits) > limits.MaxPatchEdits {
		return fmt.Errorf("%w: too many edits", ErrLimitExceeded)
	}
	seen := make(map[Ref]struct{}, len(p.Edits))
	for i, ed := range p.Edits {
		switch ed.Kind {
		case RefEntry, RefCrossRef:
		default:
			return fmt.Errorf("%w: edit %d has unknown kind %d", ErrValidation, i, ed.Kind)
		}
		if ed.Index < 0 {
			return fmt.Errorf("%w: edit %d has negative index %d", ErrValidation, i, ed.Index)
		}
		ref := ed.Ref()
		if _, ok := seen[ref]; ok {
			return fmt.Errorf("%w: duplicate edit for %s", ErrValidation, ref)
		}
		seen[ref] = struct{}{}
		if !utf8.ValidString(ed.Text) {
			return fmt.Errorf("%w: edit for %s is not valid UTF-8", ErrValidation, ref)
		}
		if len(ed.Text) > limits.MaxEditTextLen {
			return fmt.Errorf("%w: edit for %s too long", ErrLimitExceeded, ref)
		}
	}
	return nil
}
