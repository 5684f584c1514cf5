package bmg

type Limits struct {
	MaxStringUnits       int    // 16-bit units per string read
	MaxPatchSectionLen   uint64 // stored patch payload length
	MaxPatchUncompressed uint64 // gob bytes after decompression
	MaxPatchEdits        int
	MaxEditTextLen       int // bytes of UTF-8 text per edit
}

func defaultLimits() Limits {
	return Limits{
		MaxStringUnits:       DefaultMaxStringUnits,
		MaxPatchSectionLen:   64 << 20, // 64 MiB
		MaxPatchUncompressed: 64 << 20,
		MaxPatchEdits:        1 << 20,
		MaxEditTextLen:       1 << 20,
	}
}

func (l Limits) withDefaults() Limits {
	d := defaultLimits()
	if l.MaxStringUnits == 0 {
		l.MaxStringUnits = d.MaxStringUnits
	}
	if l.MaxPatchSectionLen == 0 {
		l.MaxPatchSectionLen = d.MaxPatchSectionLen
	}
	if l.MaxPatchUncompressed == 0 {
		l.MaxPatchUncompressed = d.MaxPatchUncompressed
	}
	if l.MaxPatchEdits == 0 {
		l.MaxPatchEdits = d.MaxPatchEdits
	}
	if l.MaxEditTextLen == 0 {
		l.MaxEditTextLen = d.MaxEditTextLen
	}
	return l
}
