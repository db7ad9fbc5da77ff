package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashBytes computes the raw SHA-256 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject computes the SHA-256 of the envelope "type len\0content".
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// HashBlob returns the id a blob with the given content is stored under.
func HashBlob(data []byte) Hash {
	return HashObject(TypeBlob, data)
}

// HashCommit returns the id of c without writing it.
func HashCommit(c *Commit) Hash {
	return HashObject(TypeCommit, MarshalCommit(c))
}

// FastChecksum is the auxiliary per-blob checksum: the sum of all bytes
// modulo 2^32. It is a cheap pre-comparison signal only; content identity
// is always decided by the content hash.
func FastChecksum(data []byte) uint32 {
	var sum uint32
	for _, b := range data {
		sum += uint32(b)
	}
	return sum
}

// ValidHash reports whether h looks like a full hex SHA-256 digest.
func ValidHash(h Hash) bool {
	if len(h) != 64 {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
