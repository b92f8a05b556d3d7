package crypto

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
)

var _ primary.Hasher = (*Blake2bHasher)(nil)

// Blake2bHasher computes domain-separated BLAKE2b-256 digests
type Blake2bHasher struct{}

func NewHasher() *Blake2bHasher {
	return &Blake2bHasher{}
}

// Sum hashes domain, a zero byte and each part prefixed by its length
func (Blake2bHasher) Sum(domain string, parts ...[]byte) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(domain))
	h.Write([]byte{0})
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write(p)
	}
	return "b2-" + hex.EncodeToString(h.Sum(nil))
}
