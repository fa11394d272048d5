package store

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Algorithm names a content digest. MD5 is the upstream chunk-addressing
// digest, SHA-256 the integrity digest compared against upstream-declared
// checksums, and BLAKE3 the fast digest used for local dedup bookkeeping.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// Hash returns the lowercase hex digest of data under algo.
func Hash(data []byte, algo Algorithm) (string, error) {
	switch algo {
	case MD5:
		sum := md5.Sum(data)
		return hex.EncodeToString(sum[:]), nil
	case SHA1:
		sum := sha1.Sum(data)
		return hex.EncodeToString(sum[:]), nil
	case SHA256:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case BLAKE3:
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("hash: unknown algorithm %q", algo)
	}
}
