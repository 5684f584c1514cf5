package bmg

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
)

// DecodeBestEffort renders raw pool bytes for display when the container
// declares an encoding Codec does not handle. Input stops at the first
// terminator of the encoding's unit width. The result is never fed back
// into a build.
func DecodeBestEffort(raw []byte, enc Encoding) (string, error) {
	switch enc {
	case EncodingUTF16:
		for i := 0; i+1 < len(raw); i += 2 {
			if raw[i] == 0 && raw[i+1] == 0 {
				raw = raw[:i]
				break
			}
		}
		return decodeLiteral(raw[:len(raw)&^1]), nil
	case EncodingCP1252:
		b, err := charmap.Windows1252.NewDecoder().Bytes(cutNUL(raw))
		if err != nil {
			return "", fmt.Errorf("bmg: cp1252: %w", err)
		}
		return string(b), nil
	case EncodingShiftJIS:
		b, err := japanese.ShiftJIS.NewDecoder().Bytes(cutNUL(raw))
		if err != nil {
			return "", fmt.Errorf("bmg: shift-jis: %w", err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("%w: 0x%02X", ErrUnsupportedEncoding, uint8(enc))
	}
}

func cutNUL(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}
