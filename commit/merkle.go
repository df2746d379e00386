package commit

import (
	"bytes"
	"encoding/binary"

	"filterproof/internal/fault"

	"golang.org/x/crypto/sha3"
)

const (
	leafPrefix byte = 0x00
	nodePrefix byte = 0x01
)

// RowTree is a binary Merkle tree over image rows, so a single row of the
// reference can be audited without revealing the rest.
type RowTree struct {
	width  int
	layers [][][32]byte
}

// NewRowTree splits pix into rows of width bytes and builds the tree. Leaves
// bind the row index; padding leaves hash the empty string.
func NewRowTree(pix []byte, width int) (*RowTree, error) {
	if width <= 0 || len(pix) == 0 || len(pix)%width != 0 {
		return nil, fault.Config("commit.NewRowTree", "%d bytes do not split into rows of %d", len(pix), width)
	}
	n := len(pix) / width
	size := 1
	for size < n {
		size <<= 1
	}
	layer := make([][32]byte, size)
	for i := 0; i < n; i++ {
		layer[i] = leafHash(i, pix[i*width:(i+1)*width])
	}
	for i := n; i < size; i++ {
		layer[i] = shake32([]byte{leafPrefix})
	}
	layers := [][][32]byte{layer}
	for sz := size; sz > 1; sz >>= 1 {
		prev := layers[len(layers)-1]
		next := make([][32]byte, sz/2)
		for i := 0; i < sz; i += 2 {
			next[i/2] = nodeHash(prev[i], prev[i+1])
		}
		layers = append(layers, next)
	}
	return &RowTree{width: width, layers: layers}, nil
}

func (t *RowTree) Root() [32]byte { return t.layers[len(t.layers)-1][0] }

// Leaves is the padded leaf count, a power of two.
func (t *RowTree) Leaves() int { return len(t.layers[0]) }

// Open returns the sibling path for row idx.
func (t *RowTree) Open(idx int) ([][32]byte, error) {
	if idx < 0 || idx >= len(t.layers[0]) {
		return nil, fault.Config("commit.RowTree.Open", "row %d out of range", idx)
	}
	path := make([][32]byte, len(t.layers)-1)
	for lvl := range path {
		path[lvl] = t.layers[lvl][idx^1]
		idx >>= 1
	}
	return path, nil
}

// VerifyRow checks row idx against root.
func VerifyRow(root [32]byte, idx int, row []byte, path [][32]byte) bool {
	h := leafHash(idx, row)
	for _, sib := range path {
		if idx&1 == 0 {
			h = nodeHash(h, sib)
		} else {
			h = nodeHash(sib, h)
		}
		idx >>= 1
	}
	return bytes.Equal(h[:], root[:])
}

func leafHash(idx int, row []byte) [32]byte {
	buf := make([]byte, 1+8+len(row))
	buf[0] = leafPrefix
	binary.LittleEndian.PutUint64(buf[1:], uint64(idx))
	copy(buf[9:], row)
	return shake32(buf)
}

func nodeHash(l, r [32]byte) [32]byte {
	var buf [1 + 32 + 32]byte
	buf[0] = nodePrefix
	copy(buf[1:], l[:])
	copy(buf[33:], r[:])
	return shake32(buf[:])
}

func shake32(data []byte) [32]byte {
	var out [32]byte
	h := sha3.NewShake256()
	_, _ = h.Write(data)
	_, _ = h.Read(out[:])
	return out
}
