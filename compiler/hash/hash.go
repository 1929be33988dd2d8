// Package hash derives stable names and keys from content.
package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
)

// StringHash computes the 31-multiplier 32-bit string hash over the UTF-16
// code units of s, the same value a JavaScript or Java runtime would give
// for it. Negative results are reported as their unsigned bit pattern.
func StringHash(s string) uint32 {
	var h int32
	for _, r := range s {
		if r >= 0x10000 {
			r -= 0x10000
			h = 31*h + int32(0xD800+(r>>10))
			h = 31*h + int32(0xDC00+(r&0x3FF))
			continue
		}
		h = 31*h + int32(r)
	}
	return uint32(h)
}

// TempName returns the binding name a generator uses to hold the value of
// expression text, e.g. "_res110879" for "pet".
func TempName(text string) string {
	return "_res" + strconv.FormatUint(uint64(StringHash(text)), 10)
}

// Digest is a SHA-256 content hash.
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Sum hashes parts in order. Each part is length-prefixed, so ("ab", "c")
// and ("a", "bc") never collide.
func Sum(parts ...string) Digest {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write([]byte(p))
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}
