package bmg

import (
	"encoding/binary"
	"fmt"
)

// All container reads go through these helpers. The effective limit is the
// smaller of limit and len(b); a read that ends past it fails with
// *OutOfBoundsError instead of touching adjacent bytes.

func effectiveLimit(b []byte, limit int) int {
	if limit > len(b) {
		return len(b)
	}
	return limit
}

func checkRange(b []byte, off, width, limit int) error {
	l := effectiveLimit(b, limit)
	if off < 0 || off+width > l {
		return &OutOfBoundsError{Offset: off, Width: width, Limit: l}
	}
	return nil
}

func readU8(b []byte, off, limit int) (uint8, error) {
	if err := checkRange(b, off, 1, limit); err != nil {
		return 0, err
	}
	return b[off], nil
}

func readU16(b []byte, off, limit int) (uint16, error) {
	if err := checkRange(b, off, 2, limit); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[off : off+2]), nil
}

func readU32(b []byte, off, limit int) (uint32, error) {
	if err := checkRange(b, off, 4, limit); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[off : off+4]), nil
}

func putU32(b []byte, off int, v uint32) error {
	if err := checkRange(b, off, 4, len(b)); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b[off:off+4], v)
	return nil
}

// readBytes returns a copy of b[off:off+n].
func readBytes(b []byte, off, n, limit int) ([]byte, error) {
	if err := checkRange(b, off, n, limit); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b[off:off+n])
	return out, nil
}

// findSection returns the absolute offset of the first occurrence of the
// 4-byte ASCII tag, scanning from byte 0.
func findSection(b []byte, tag string) (int, error) {
	for i := 0; i+4 <= len(b); i++ {
		if b[i] == tag[0] && b[i+1] == tag[1] && b[i+2] == tag[2] && b[i+3] == tag[3] {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrSectionNotFound, tag)
}

// looksLikeTag reports whether b[off:off+4] is four ASCII upper-case letters or digits.
func looksLikeTag(b []byte, off int) bool {
	if off < 0 || off+4 > len(b) {
		return false
	}
	for _, c := range b[off : off+4] {
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
