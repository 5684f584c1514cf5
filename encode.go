package bmg

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
)

// Function variables for testing injection.
var (
	gobEncodeEdits = func(v EditSet) ([]byte, error) { return gobEncode(v) }
)

// EncodePatch writes p to w in the BMGP v1 format: a 32-byte fixed header
// followed by one edits section.
//
// The patch is validated first (see ApplyPatch for the rules). By default
// the edits section is Zstandard-compressed; use WithPatchCompression to
// pick another algorithm and WithPatchWriteLimits to change the limits.
func EncodePatch(w io.Writer, p *Patch, opts ...PatchWriteOption) error {
	cfg := patchWriteConfig{limits: defaultLimits(), compression: CompZSTD}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()
	if err := validatePatch(p, cfg.limits); err != nil {
		return err
	}

	editsGob, err := gobEncodeEdits(EditSet{SetVersion: PatchVersionV1, Edits: p.Edits})
	if err != nil {
		return err
	}
	if uint64(len(editsGob)) > cfg.limits.MaxPatchUncompressed {
		return fmt.Errorf("%w: edit set too large", ErrLimitExceeded)
	}
	flags, payload, err := compressPayload(cfg.compression, editsGob)
	if err != nil {
		return err
	}
	if uint64(len(payload)) > cfg.limits.MaxPatchSectionLen {
		return fmt.Errorf("%w: edits section too large", ErrLimitExceeded)
	}

	var headerFlags uint16
	if p.SourceHash != 0 {
		headerFlags |= HeaderFlagSourceHash
	}
	h := fixedHeaderV1{
		Magic:        PatchMagic,
		Version:      PatchVersionV1,
		HeaderFlags:  headerFlags,
		FixedHdrSize: fixedHeaderSizeV1,
		SourceSize:   p.SourceSize,
		SourceHash:   p.SourceHash,
	}
	if err := writeFixedHeader(w, h); err != nil {
		return err
	}
	sh := sectionHeaderV1{
		SectionType:  uint16(SectionEdits),
		SectionFlags: flags,
		PayloadLen:   uint64(len(payload)),
	}
	if err := writeSectionHeader(w, sh); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// gobEncode serializes v using Go's gob encoding.
func gobEncode[T any](v T) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
