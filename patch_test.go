package bmg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"reflect"
	"testing"
)

func samplePatch() *Patch {
	return &Patch{
		SourceSize: 0x40,
		SourceHash: 0xDEADBEEFCAFEF00D,
		Edits: []Edit{
			{Kind: RefEntry, Index: 0, Text: "Hi[1A:0001] World"},
			{Kind: RefEntry, Index: 3, Text: "x", LeadingNull: true},
			{Kind: RefCrossRef, Index: 1, Text: "line one\nline two"},
		},
	}
}

type failingWriter struct {
	n int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, io.ErrClosedPipe
	}
	if len(p) > w.n {
		p = p[:w.n]
	}
	w.n -= len(p)
	return len(p), nil
}

func encodeSample(t *testing.T, opts ...PatchWriteOption) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := EncodePatch(&buf, samplePatch(), opts...); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestWireRoundtrip(t *testing.T) {
	in := fixedHeaderV1{Magic: PatchMagic, Version: PatchVersionV1, HeaderFlags: HeaderFlagSourceHash, FixedHdrSize: fixedHeaderSizeV1, SourceSize: 123, SourceHash: 456}
	var buf bytes.Buffer
	if err := writeFixedHeader(&buf, in); err != nil {
		t.Fatal(err)
	}
	out, err := readFixedHeader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("fixed header mismatch: %#v vs %#v", in, out)
	}

	buf.Reset()
	shIn := sectionHeaderV1{SectionType: uint16(SectionEdits), SectionFlags: uint16(CompNone), PayloadLen: 99, Reserved: 0}
	if err := writeSectionHeader(&buf, shIn); err != nil {
		t.Fatal(err)
	}
	shOut, err := readSectionHeader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(shIn, shOut) {
		t.Fatalf("section header mismatch: %#v vs %#v", shIn, shOut)
	}
}

func TestEncodeDecodeRoundTrip_AllCompressions(t *testing.T) {
	comps := []Compression{CompNone, CompZIP, CompZSTD, CompLZ4, CompBR, CompS2}
	for _, comp := range comps {
		t.Run("comp="+comp.String(), func(t *testing.T) {
			b := encodeSample(t, WithPatchCompression(comp))
			got, err := DecodePatch(bytes.NewReader(b))
			if err != nil {
				t.Fatalf("DecodePatch: %v", err)
			}
			if !reflect.DeepEqual(samplePatch(), got) {
				t.Fatalf("patch mismatch\nwant: %#v\ngot:  %#v", samplePatch(), got)
			}
		})
	}
}

func TestEncodeNilPatch(t *testing.T) {
	var buf bytes.Buffer
	err := EncodePatch(&buf, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestEncodeWriterError(t *testing.T) {
	for _, n := range []int{10, 40} {
		w := &failingWriter{n: n}
		if err := EncodePatch(w, samplePatch(), WithPatchCompression(CompNone)); err == nil {
			t.Fatalf("n=%d: expected error", n)
		}
	}
}

func TestEncode_GobError(t *testing.T) {
	orig := gobEncodeEdits
	gobEncodeEdits = func(EditSet) ([]byte, error) { return nil, io.ErrShortWrite }
	defer func() { gobEncodeEdits = orig }()
	var buf bytes.Buffer
	if err := EncodePatch(&buf, samplePatch()); !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("expected ErrShortWrite, got %v", err)
	}
}

func TestEncode_UnboundPatchHasNoHashFlag(t *testing.T) {
	p := samplePatch()
	p.SourceHash = 0
	var buf bytes.Buffer
	if err := EncodePatch(&buf, p); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	if flags := binary.LittleEndian.Uint16(b[10:12]); flags != 0 {
		t.Fatalf("expected no header flags, got 0x%04X", flags)
	}
	got, err := DecodePatch(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if got.SourceHash != 0 {
		t.Fatal("expected unbound patch")
	}
}

func TestDecode_InvalidMagic(t *testing.T) {
	b := encodeSample(t, WithPatchCompression(CompNone))
	b[0] ^= 0xFF
	_, err := DecodePatch(bytes.NewReader(b))
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestDecode_InvalidFixedHeaderSize(t *testing.T) {
	b := encodeSample(t)
	binary.LittleEndian.PutUint32(b[12:16], 31)
	_, err := DecodePatch(bytes.NewReader(b))
	if !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("expected ErrInvalidPatch, got %v", err)
	}
}

func TestDecode_UnsupportedVersion(t *testing.T) {
	b := encodeSample(t)
	binary.LittleEndian.PutUint16(b[8:10], 2)
	_, err := DecodePatch(bytes.NewReader(b))
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecode_ReservedNonZero(t *testing.T) {
	b := encodeSample(t)
	binary.LittleEndian.PutUint32(b[20:24], 1)
	_, err := DecodePatch(bytes.NewReader(b))
	if !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("expected ErrInvalidPatch, got %v", err)
	}
}

func TestDecode_SourceHashFlagMismatch(t *testing.T) {
	b := encodeSample(t, WithPatchCompression(CompNone))
	binary.LittleEndian.PutUint16(b[10:12], 0)
	_, err := DecodePatch(bytes.NewReader(b))
	if !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("expected ErrInvalidPatch, got %v", err)
	}

	b = encodeSample(t, WithPatchCompression(CompNone))
	binary.LittleEndian.PutUint16(b[10:12], 0x8001)
	_, err = DecodePatch(bytes.NewReader(b))
	if !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("expected ErrInvalidPatch, got %v", err)
	}
}

func TestDecode_SectionTypeMismatch(t *testing.T) {
	b := encodeSample(t, WithPatchCompression(CompNone))
	binary.LittleEndian.PutUint16(b[32:34], 2)
	_, err := DecodePatch(bytes.NewReader(b))
	if !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("expected ErrInvalidPatch, got %v", err)
	}
}

func TestDecode_SectionReservedNonZero(t *testing.T) {
	b := encodeSample(t, WithPatchCompression(CompNone))
	binary.LittleEndian.PutUint32(b[44:48], 1)
	_, err := DecodePatch(bytes.NewReader(b))
	if !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("expected ErrInvalidPatch, got %v", err)
	}
}

func TestDecode_SectionFlagsInvalid(t *testing.T) {
	cases := []struct {
		name  string
		comp  Compression
		flags uint16
	}{
		{"none-with-len", CompNone, sectionFlagHasUncompressedLen},
		{"compressed-missing-len", CompZSTD, uint16(CompZSTD)},
		{"unknown-compression", CompNone, 0x000F},
		{"unknown-bits", CompNone, 0x0100},
	}
	for _, tc := range cases {
		b := encodeSample(t, WithPatchCompression(tc.comp))
		binary.LittleEndian.PutUint16(b[34:36], tc.flags)
		_, err := DecodePatch(bytes.NewReader(b))
		if !errors.Is(err, ErrInvalidPatch) {
			t.Fatalf("%s: expected ErrInvalidPatch, got %v", tc.name, err)
		}
	}
}

func TestDecode_SectionStoredLengthLimitExceeded(t *testing.T) {
	var buf bytes.Buffer
	h := fixedHeaderV1{Magic: PatchMagic, Version: PatchVersionV1, FixedHdrSize: fixedHeaderSizeV1}
	if err := writeFixedHeader(&buf, h); err != nil {
		t.Fatal(err)
	}
	sh := sectionHeaderV1{SectionType: uint16(SectionEdits), SectionFlags: uint16(CompNone), PayloadLen: 9999}
	if err := writeSectionHeader(&buf, sh); err != nil {
		t.Fatal(err)
	}
	_, err := DecodePatch(bytes.NewReader(buf.Bytes()), WithPatchReadLimits(Limits{MaxPatchSectionLen: 1}))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestDecode_TruncatedPayload(t *testing.T) {
	b := encodeSample(t, WithPatchCompression(CompNone))
	_, err := DecodePatch(bytes.NewReader(b[:len(b)-1]))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestDecode_GarbagePayload(t *testing.T) {
	var buf bytes.Buffer
	h := fixedHeaderV1{Magic: PatchMagic, Version: PatchVersionV1, FixedHdrSize: fixedHeaderSizeV1}
	if err := writeFixedHeader(&buf, h); err != nil {
		t.Fatal(err)
	}
	sh := sectionHeaderV1{SectionType: uint16(SectionEdits), SectionFlags: uint16(CompNone), PayloadLen: 4}
	if err := writeSectionHeader(&buf, sh); err != nil {
		t.Fatal(err)
	}
	buf.WriteString("junk")
	_, err := DecodePatch(bytes.NewReader(buf.Bytes()))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestDecode_EditSetVersion(t *testing.T) {
	gobBytes, err := gobEncode(EditSet{SetVersion: 3})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	h := fixedHeaderV1{Magic: PatchMagic, Version: PatchVersionV1, FixedHdrSize: fixedHeaderSizeV1}
	if err := writeFixedHeader(&buf, h); err != nil {
		t.Fatal(err)
	}
	sh := sectionHeaderV1{SectionType: uint16(SectionEdits), SectionFlags: uint16(CompNone), PayloadLen: uint64(len(gobBytes))}
	if err := writeSectionHeader(&buf, sh); err != nil {
		t.Fatal(err)
	}
	buf.Write(gobBytes)
	_, err = DecodePatch(bytes.NewReader(buf.Bytes()))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDecode_EditLimitExceeded(t *testing.T) {
	b := encodeSample(t)
	_, err := DecodePatch(bytes.NewReader(b), WithPatchReadLimits(Limits{MaxPatchEdits: 2}))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestEncode_SectionTooLarge(t *testing.T) {
	var buf bytes.Buffer
	err := EncodePatch(&buf, samplePatch(), WithPatchWriteLimits(Limits{MaxPatchSectionLen: 1}), WithPatchCompression(CompNone))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	err = EncodePatch(&buf, samplePatch(), WithPatchWriteLimits(Limits{MaxPatchUncompressed: 1}))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestDecompressPayload_UncompressedLenLimitExceeded(t *testing.T) {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint64(payload[:8], 10)
	_, err := decompressPayload(CompZSTD, uint16(CompZSTD)|sectionFlagHasUncompressedLen, payload, 1)
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestCreateAndApplyPatch(t *testing.T) {
	src := helloFixture().bytes()
	c, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetText(EntryRef(0), "Hi[1A:0001] World", false); err != nil {
		t.Fatal(err)
	}
	p := CreatePatch(c)
	if len(p.Edits) != 1 || p.SourceHash != Fingerprint(src) || p.SourceSize != uint32(len(src)) {
		t.Fatalf("unexpected patch %+v", p)
	}

	var buf bytes.Buffer
	if err := EncodePatch(&buf, p); err != nil {
		t.Fatal(err)
	}
	got, err := DecodePatch(&buf)
	if err != nil {
		t.Fatal(err)
	}

	fresh, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := fresh.ApplyPatch(got); err != nil {
		t.Fatal(err)
	}
	text, _, _ := fresh.Text(EntryRef(0))
	if text != "Hi[1A:0001] World" {
		t.Fatalf("got %q", text)
	}
}

func TestApplyPatch_SourceMismatch(t *testing.T) {
	c, err := Parse(helloFixture().bytes())
	if err != nil {
		t.Fatal(err)
	}
	p := &Patch{SourceSize: 1, SourceHash: 2, Edits: []Edit{{Kind: RefEntry, Index: 0, Text: "x"}}}
	if err := c.ApplyPatch(p); !errors.Is(err, ErrSourceMismatch) {
		t.Fatalf("expected ErrSourceMismatch, got %v", err)
	}
	if c.Dirty() {
		t.Fatal("container must be untouched")
	}
	if err := c.ApplyPatch(p, WithIgnoreSource(true)); err != nil {
		t.Fatal(err)
	}
	if !c.Dirty() {
		t.Fatal("expected edit to apply")
	}
}

func TestApplyPatch_AtomicOnBadRef(t *testing.T) {
	c, err := Parse(helloFixture().bytes())
	if err != nil {
		t.Fatal(err)
	}
	p := &Patch{Edits: []Edit{
		{Kind: RefEntry, Index: 0, Text: "changed"},
		{Kind: RefEntry, Index: 5, Text: "nowhere"},
	}}
	if err := c.ApplyPatch(p); !errors.Is(err, ErrInvalidRef) {
		t.Fatalf("expected ErrInvalidRef, got %v", err)
	}
	text, _, _ := c.Text(EntryRef(0))
	if text != "Hello[1A:0001] World" || c.Dirty() {
		t.Fatalf("container changed: %q", text)
	}
}

func TestDiff(t *testing.T) {
	src := pointerFixture().bytes()
	base, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	edited, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := edited.SetText(CrossRefRef(1), "Delta", false); err != nil {
		t.Fatal(err)
	}
	p, err := Diff(base, edited)
	if err != nil {
		t.Fatal(err)
	}
	want := []Edit{{Kind: RefCrossRef, Index: 1, Text: "Delta"}}
	if !reflect.DeepEqual(p.Edits, want) {
		t.Fatalf("got %#v", p.Edits)
	}

	other, err := Parse(helloFixture().bytes())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Diff(base, other); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
