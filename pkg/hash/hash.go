package hash

import (
	"hash"
	"hash/fnv"
)

// Digest accumulates an FNV-1a 64-bit fingerprint of everything written to
// it. Two runs that produce the same report produce the same digest.
type Digest struct {
	h hash.Hash64
}

func NewDigest() *Digest {
	return &Digest{h: fnv.New64a()}
}

func (d *Digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

func (d *Digest) Sum64() uint64 {
	return d.h.Sum64()
}

// FNV returns the FNV-1a 64-bit hash of data.
func FNV(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)

	return h.Sum64()
}
