package store

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// zlib streams start with 0x78 followed by a flag byte that keeps the
// two-byte header a multiple of 31.
func looksZlib(data []byte) bool {
	if len(data) < 2 || data[0] != 0x78 {
		return false
	}
	return (uint16(data[0])<<8|uint16(data[1]))%31 == 0
}

// TryDecompress inspects data for a known compressed-stream signature and
// decompresses on a match. A signature match followed by a failed inflate
// returns the original bytes with wasCompressed=false: upstream formats
// drift, and bytes that merely look compressed must be treated as plain.
func TryDecompress(data []byte) ([]byte, bool) {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return data, false
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return data, false
		}
		return out, true
	case bytes.HasPrefix(data, zstdMagic):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return data, false
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return data, false
		}
		return out, true
	case looksZlib(data):
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return data, false
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return data, false
		}
		return out, true
	default:
		return data, false
	}
}
