package bmg

// Magic is the 4-byte prefix every container's 8-byte format tag starts with.
var Magic = [4]byte{'M', 'E', 'S', 'G'}

const (
	TagINF1 = "INF1"
	TagDAT1 = "DAT1"
	TagMID1 = "MID1"

	fileHeaderMin     = 17 // through the encoding byte
	sectionHeaderSize = 8
	minRecordSize     = 8 // message id + group id + pool offset
	midTableHeader    = 8 // row count, row size, reserved
	poolAlign         = 4
)

// Encoding is the header's encoding id.
type Encoding uint8

const (
	EncodingCP1252   Encoding = 0
	EncodingUTF16    Encoding = 1
	EncodingShiftJIS Encoding = 2
)

func (e Encoding) String() string {
	switch e {
	case EncodingCP1252:
		return "cp1252"
	case EncodingUTF16:
		return "utf-16le"
	case EncodingShiftJIS:
		return "shift-jis"
	default:
		return "unknown"
	}
}

// Supported reports whether the string codec handles e natively.
func (e Encoding) Supported() bool { return e == EncodingUTF16 }

// Header holds the fixed container header fields.
type Header struct {
	Tag          [8]byte
	FileSize     uint32
	SectionCount uint32
	Encoding     Encoding
}

// Type returns the 8-byte format tag as a string, e.g. "MESGbmg1".
func (h Header) Type() string { return string(h.Tag[:]) }

// Sections records where the tagged sections were found.
type Sections struct {
	INF1 INFSection
	DAT1 DATSection
	MID1 MIDSection
}

type INFSection struct {
	Offset      int
	Size        uint32
	Count       uint16
	RecordSize  uint16
	HeaderSlack int
	EntryStart  int
}

type DATSection struct {
	Offset       int
	DeclaredSize uint32
	// Base is the absolute offset of the pool payload; pool offsets are relative to it.
	Base int
	// End is the absolute end of the pool; bytes from End onward are carried verbatim.
	End int
}

// PoolSize is the number of payload bytes in the string pool.
func (d DATSection) PoolSize() int { return d.End - d.Base }

type MIDSection struct {
	Present      bool
	Offset       int
	Size         uint32
	DeclaredRows uint16
	RowSize      uint16
	Reserved     uint32
	Columns      int
	// Rows is the effective row count after clamping to the available bytes.
	Rows  int
	Cells [][]uint32
	Mode  CrossRefMode
	IDs   []uint32
}

// CrossRefMode is the interpretation chosen for the MID1 table.
type CrossRefMode uint8

const (
	CrossRefNone CrossRefMode = iota
	CrossRefPointer
	CrossRefID
)

func (m CrossRefMode) String() string {
	switch m {
	case CrossRefPointer:
		return "pointers"
	case CrossRefID:
		return "ids"
	default:
		return "none"
	}
}

// SegmentKind discriminates who owns a pool segment.
type SegmentKind uint8

const (
	SegmentRaw SegmentKind = iota
	SegmentEntry
	SegmentMidPointer
	SegmentMidID
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentEntry:
		return "entry"
	case SegmentMidPointer:
		return "mid-pointer"
	case SegmentMidID:
		return "mid-id"
	default:
		return "raw"
	}
}

// Segment is a contiguous byte run of the pool keyed by its original offset.
type Segment struct {
	Offset      uint32
	Bytes       []byte // the segment's own string bytes (or filler bytes for raw)
	Text        string
	LeadingNull bool
	Kind        SegmentKind
	Entries     []int     // indices into Container.Entries
	CrossRef    int       // index into Container.CrossRefs, -1 when none
	MidRefs     []CellRef // MID1 cells that resolve to this segment

	// Parent is the index of the top-level segment whose span contains this
	// one, or -1 for top-level segments.
	Parent int
	// SpanEnd is the pool-relative end of a top-level segment's cluster.
	SpanEnd uint32
	// Detached segments start outside the pool and are not laid out unless edited.
	Detached bool
}

// End returns the pool-relative end of the segment's own bytes.
func (s *Segment) End() uint32 { return s.Offset + uint32(len(s.Bytes)) }

// CellRef is one MID1 cell referencing a segment.
type CellRef struct {
	Row    int
	Column int
	Flags  uint32
	Raw    uint32
}

// editable holds the editable state shared by entries and cross-references.
type editable struct {
	Text                string
	LeadingNull         bool
	OriginalText        string
	OriginalLeadingNull bool
	OriginalBytes       []byte
	Dirty               bool
	// ByteLength is the encoded size currently planned for the string.
	ByteLength int
	// CalculatedOffset is the pool offset the string will occupy after a build.
	CalculatedOffset uint32
	Segment          int
}

// Entry is one decoded INF1 record.
type Entry struct {
	Index      int
	MessageID  uint16
	GroupID    uint16
	Attributes []uint16 // 16-bit fields between the ids and the trailing offset
	RawRecord  []byte
	Offset     uint32 // pool offset as stored in the record
	// FieldOffset is the absolute offset of the record's trailing offset field.
	FieldOffset int
	editable
}

// CompositeID packs the group id above the message id.
func (e *Entry) CompositeID() uint32 { return uint32(e.GroupID)<<16 | uint32(e.MessageID) }

// CrossRef is a string reachable only through the MID1 table.
type CrossRef struct {
	ID         int
	Offset     uint32
	References []CellRef
	Kind       SegmentKind
	editable
}

// Flagged reports whether any referencing cell has its low flag bit set.
func (x *CrossRef) Flagged() bool {
	for _, r := range x.References {
		if r.Flags&1 != 0 {
			return true
		}
	}
	return false
}
