package freivalds

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// XOF models the extendable-output function used to derive challenges.
type XOF interface {
	Expand(label string, parts ...[]byte) []byte
}

// Shake256XOF is a SHAKE-256 backed implementation of XOF with a fixed output length.
type Shake256XOF struct {
	outLen int
}

// NewShake256XOF returns a SHAKE-256 XOF that emits outLen bytes on every squeeze.
func NewShake256XOF(outLen int) Shake256XOF {
	if outLen <= 0 {
		panic("NewShake256XOF: outLen must be > 0")
	}
	return Shake256XOF{outLen: outLen}
}

// Expand absorbs the length-prefixed label and parts, then squeezes outLen
// bytes. Length prefixes keep ("ab","c") and ("a","bc") apart.
func (s Shake256XOF) Expand(label string, parts ...[]byte) []byte {
	h := sha3.NewShake256()
	writeFramed(h, []byte(label))
	for _, p := range parts {
		writeFramed(h, p)
	}
	out := make([]byte, s.outLen)
	if _, err := h.Read(out); err != nil {
		panic(fmt.Errorf("Shake256XOF: read output: %w", err))
	}
	return out
}

func writeFramed(h sha3.ShakeHash, p []byte) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
	h.Write(n[:])
	h.Write(p)
}

// encodeVec is the canonical little-endian encoding of a vector.
func encodeVec(v []uint64) []byte {
	out := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(out[8*i:], x)
	}
	return out
}
