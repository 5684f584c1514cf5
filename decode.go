package bmg

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
)

// DecodePatch reads a BMGP patch from r.
//
// DecodePatch returns ErrInvalidMagic if r does not hold a patch,
// ErrUnsupportedVersion for versions other than 1, ErrInvalidPatch for
// malformed headers, ErrLimitExceeded when a size limit is crossed and
// ErrValidation when the edits are inconsistent.
func DecodePatch(r io.Reader, opts ...PatchReadOption) (*Patch, error) {
	cfg := patchReadConfig{limits: defaultLimits()}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()

	h, err := readFixedHeader(r)
	if err != nil {
		return nil, err
	}
	if h.Magic != PatchMagic {
		return nil, ErrInvalidMagic
	}
	if h.FixedHdrSize != fixedHeaderSizeV1 {
		return nil, fmt.Errorf("%w: fixed header size %d", ErrInvalidPatch, h.FixedHdrSize)
	}
	if h.Version != PatchVersionV1 {
		return nil, ErrUnsupportedVersion
	}
	if h.Reserved0 != 0 {
		return nil, fmt.Errorf("%w: reserved must be zero", ErrInvalidPatch)
	}
	if h.HeaderFlags&^HeaderFlagSourceHash != 0 {
		return nil, fmt.Errorf("%w: unknown header flags 0x%04X", ErrInvalidPatch, h.HeaderFlags)
	}
	if (h.HeaderFlags&HeaderFlagSourceHash != 0) != (h.SourceHash != 0) {
		return nil, fmt.Errorf("%w: SOURCE_HASH flag does not match source hash", ErrInvalidPatch)
	}

	sh, err := readSectionHeader(r)
	if err != nil {
		return nil, err
	}
	if err := validateSectionHeader(sh, SectionEdits); err != nil {
		return nil, err
	}
	if sh.PayloadLen > cfg.limits.MaxPatchSectionLen {
		return nil, fmt.Errorf("%w: edits section too large", ErrLimitExceeded)
	}
	payload := make([]byte, sh.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	editsGob, err := decompressPayload(sh.compression(), sh.SectionFlags, payload, cfg.limits.MaxPatchUncompressed)
	if err != nil {
		return nil, err
	}
	var set EditSet
	if err := gobDecode(editsGob, &set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if set.SetVersion != PatchVersionV1 {
		return nil, fmt.Errorf("%w: edit set version must be %d", ErrValidation, PatchVersionV1)
	}

	p := &Patch{SourceSize: h.SourceSize, SourceHash: h.SourceHash, Edits: set.Edits}
	if err := validatePatch(p, cfg.limits); err != nil {
		return nil, err
	}
	return p, nil
}

// gobDecode deserializes data into out using Go's gob encoding.
func gobDecode(data []byte, out any) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	return dec.Decode(out)
}
