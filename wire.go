package bmg

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-restruct/restruct"
)

type fixedHeaderV1 struct {
	Magic        [8]byte
	Version      uint16
	HeaderFlags  uint16
	FixedHdrSize uint32
	SourceSize   uint32
	Reserved0    uint32
	SourceHash   uint64
}

type sectionHeaderV1 struct {
	SectionType  uint16
	SectionFlags uint16
	PayloadLen   uint64
	Reserved     uint32
}

func readFixedHeader(r io.Reader) (fixedHeaderV1, error) {
	var buf [fixedHeaderSizeV1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return fixedHeaderV1{}, err
	}
	var h fixedHeaderV1
	if err := restruct.Unpack(buf[:], binary.LittleEndian, &h); err != nil {
		return fixedHeaderV1{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return h, nil
}

func writeFixedHeader(w io.Writer, h fixedHeaderV1) error {
	buf, err := restruct.Pack(binary.LittleEndian, &h)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

func readSectionHeader(r io.Reader) (sectionHeaderV1, error) {
	var buf [sectionHeaderSizeV1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return sectionHeaderV1{}, err
	}
	var sh sectionHeaderV1
	if err := restruct.Unpack(buf[:], binary.LittleEndian, &sh); err != nil {
		return sectionHeaderV1{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return sh, nil
}

func writeSectionHeader(w io.Writer, sh sectionHeaderV1) error {
	buf, err := restruct.Pack(binary.LittleEndian, &sh)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

func (sh sectionHeaderV1) compression() Compression {
	return Compression(sh.SectionFlags & sectionFlagCompressionMask)
}

func (sh sectionHeaderV1) hasUncompressedLen() bool {
	return (sh.SectionFlags & sectionFlagHasUncompressedLen) != 0
}

func validateSectionHeader(sh sectionHeaderV1, expected SectionType) error {
	if sh.Reserved != 0 {
		return fmt.Errorf("%w: reserved must be 0", ErrInvalidPatch)
	}
	if SectionType(sh.SectionType) != expected {
		return fmt.Errorf("%w: expected section type %d got %d", ErrInvalidPatch, expected, sh.SectionType)
	}
	comp := sh.compression()
	switch comp {
	case CompNone, CompZIP, CompZSTD, CompLZ4, CompBR, CompS2:
	default:
		return fmt.Errorf("%w: unknown compression %d", ErrInvalidPatch, comp)
	}
	if comp == CompNone {
		if sh.hasUncompressedLen() {
			return fmt.Errorf("%w: COMP_NONE must not set HAS_UNCOMPRESSED_LEN", ErrInvalidPatch)
		}
	} else {
		if !sh.hasUncompressedLen() {
			return fmt.Errorf("%w: compressed payload must set HAS_UNCOMPRESSED_LEN", ErrInvalidPatch)
		}
	}
	if sh.SectionFlags&^(sectionFlagCompressionMask|sectionFlagHasUncompressedLen) != 0 {
		return fmt.Errorf("%w: unknown section flags 0x%04X", ErrInvalidPatch, sh.SectionFlags)
	}
	return nil
}
