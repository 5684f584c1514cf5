package bmg

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Function variables for testing injection.
var (
	newZstdWriter = func() (*zstd.Encoder, error) { return zstd.NewWriter(nil) }
	newZstdReader = func() (*zstd.Decoder, error) { return zstd.NewReader(nil) }
	zipCreate     = func(zw *zip.Writer, name string) (io.Writer, error) { return zw.Create(name) }
	zipClose      = func(zw *zip.Writer) error { return zw.Close() }
	zipOpen       = func(zf *zip.File) (io.ReadCloser, error) { return zf.Open() }
	readAll       = io.ReadAll
	lz4Close      = func(w *lz4.Writer) error { return w.Close() }
	brotliClose   = func(w *brotli.Writer) error { return w.Close() }
	brotliWrite   = func(w *brotli.Writer, p []byte) (int, error) { return w.Write(p) }
	s2DecodedLen  = s2.DecodedLen
)

const zipEntryName = "edits.gob"

// payloadCodec pairs the two directions of one compression algorithm.
// decompress receives the length announced by the payload prefix and must
// not produce more than that.
type payloadCodec struct {
	compress   func(in []byte) ([]byte, error)
	decompress func(in []byte, expected uint64) ([]byte, error)
}

var payloadCodecs = map[Compression]payloadCodec{
	CompZIP:  {compress: zipCompress, decompress: zipDecompress},
	CompZSTD: {compress: zstdCompress, decompress: zstdDecompress},
	CompLZ4:  {compress: lz4Compress, decompress: lz4Decompress},
	CompBR:   {compress: brotliCompress, decompress: brotliDecompress},
	CompS2:   {compress: s2Compress, decompress: s2Decompress},
}

// compressPayload compresses the gob-encoded edit set with comp and returns
// the section flags to store with it. Compressed payloads start with the
// 8-byte uncompressed length.
func compressPayload(comp Compression, gobBytes []byte) (sectionFlags uint16, payload []byte, err error) {
	if comp == CompNone {
		return uint16(CompNone), gobBytes, nil
	}
	codec, ok := payloadCodecs[comp]
	if !ok {
		return 0, nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidPayload, comp)
	}
	compressed, err := codec.compress(gobBytes)
	if err != nil {
		return 0, nil, fmt.Errorf("bmg: %s compress: %w", comp, err)
	}
	payload = make([]byte, 8, 8+len(compressed))
	binary.LittleEndian.PutUint64(payload, uint64(len(gobBytes)))
	payload = append(payload, compressed...)
	return uint16(comp) | sectionFlagHasUncompressedLen, payload, nil
}

// decompressPayload reverses compressPayload. The announced length is
// checked against maxUncompressed before any decompression starts.
func decompressPayload(comp Compression, sectionFlags uint16, payload []byte, maxUncompressed uint64) ([]byte, error) {
	hasLen := (sectionFlags & sectionFlagHasUncompressedLen) != 0
	if comp == CompNone {
		if hasLen {
			return nil, fmt.Errorf("%w: COMP_NONE with HAS_UNCOMPRESSED_LEN", ErrInvalidPayload)
		}
		return payload, nil
	}
	if !hasLen {
		return nil, fmt.Errorf("%w: missing HAS_UNCOMPRESSED_LEN", ErrInvalidPayload)
	}
	if len(payload) < 8 {
		return nil, fmt.Errorf("%w: payload too short for uncompressed length", ErrInvalidPayload)
	}
	want := binary.LittleEndian.Uint64(payload[:8])
	if want > maxUncompressed {
		return nil, fmt.Errorf("%w: uncompressed length %d exceeds limit", ErrLimitExceeded, want)
	}
	codec, ok := payloadCodecs[comp]
	if !ok {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidPayload, comp)
	}
	out, err := codec.decompress(payload[8:], want)
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) != want {
		return nil, fmt.Errorf("%w: decompressed length %d != expected %d", ErrInvalidPayload, len(out), want)
	}
	return out, nil
}

func zipCompress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zipCreate(zw, zipEntryName)
	if err != nil {
		_ = zipClose(zw)
		return nil, err
	}
	if _, err := entry.Write(in); err != nil {
		_ = zipClose(zw)
		return nil, err
	}
	if err := zipClose(zw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// zipDecompress accepts only an archive holding the single file zipEntryName
// whose recorded size matches expected.
func zipDecompress(zipBytes []byte, expected uint64) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, err
	}
	if len(zr.File) != 1 {
		return nil, fmt.Errorf("%w: zip must contain exactly one entry", ErrInvalidPayload)
	}
	zf := zr.File[0]
	if zf.Name != zipEntryName || zf.FileInfo().IsDir() {
		return nil, fmt.Errorf("%w: zip entry must be the file %s", ErrInvalidPayload, zipEntryName)
	}
	if zf.UncompressedSize64 != expected {
		return nil, fmt.Errorf("%w: zip uncompressed size %d != expected %d", ErrInvalidPayload, zf.UncompressedSize64, expected)
	}
	rc, err := zipOpen(zf)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readAll(io.LimitReader(rc, int64(expected)))
}

func zstdCompress(in []byte) ([]byte, error) {
	enc, err := newZstdWriter()
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(in, nil), nil
}

func zstdDecompress(in []byte, expected uint64) ([]byte, error) {
	dec, err := newZstdReader()
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(in, nil)
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) > expected {
		return nil, fmt.Errorf("%w: zstd expanded beyond expected size", ErrInvalidPayload)
	}
	return out, nil
}

func lz4Compress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(in); err != nil {
		_ = lz4Close(zw)
		return nil, err
	}
	if err := lz4Close(zw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lz4Decompress(in []byte, expected uint64) ([]byte, error) {
	return readBounded(lz4.NewReader(bytes.NewReader(in)), expected, "lz4")
}

func brotliCompress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	if _, err := brotliWrite(bw, in); err != nil {
		_ = brotliClose(bw)
		return nil, err
	}
	if err := brotliClose(bw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func brotliDecompress(in []byte, expected uint64) ([]byte, error) {
	return readBounded(brotli.NewReader(bytes.NewReader(in)), expected, "brotli")
}

func s2Compress(in []byte) ([]byte, error) {
	return s2.Encode(nil, in), nil
}

// s2Decompress checks the block's own length header against expected
// before decoding.
func s2Decompress(in []byte, expected uint64) ([]byte, error) {
	n, err := s2DecodedLen(in)
	if err != nil {
		return nil, err
	}
	if uint64(n) > expected {
		return nil, fmt.Errorf("%w: s2 expanded beyond expected size", ErrInvalidPayload)
	}
	return s2.Decode(nil, in)
}

// readBounded reads at most expected+1 bytes from r.
func readBounded(r io.Reader, expected uint64, name string) ([]byte, error) {
	b, err := readAll(io.LimitReader(r, int64(expected)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(b)) > expected {
		return nil, fmt.Errorf("%w: %s expanded beyond expected size", ErrInvalidPayload, name)
	}
	return b, nil
}
