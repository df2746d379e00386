// Package wire is the host payload format: little-endian fixed-width scalars
// and vectors prefixed by a uint64 element count.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxElems bounds decoded vector lengths so a corrupt prefix cannot trigger
// a huge allocation.
const MaxElems = 1 << 28

var ErrTruncated = errors.New("wire: truncated payload")

// Writer appends values to an in-memory buffer.
type Writer struct {
	buf bytes.Buffer
}

func (w *Writer) U32(v uint32) { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *Writer) U64(v uint64) { binary.Write(&w.buf, binary.LittleEndian, v) }

// U64s writes len(v) followed by the elements.
func (w *Writer) U64s(v []uint64) {
	w.U64(uint64(len(v)))
	var tmp [8]byte
	for _, x := range v {
		binary.LittleEndian.PutUint64(tmp[:], x)
		w.buf.Write(tmp[:])
	}
}

// Bytes writes len(p) followed by p.
func (w *Writer) Bytes(p []byte) {
	w.U64(uint64(len(p)))
	w.buf.Write(p)
}

// Fixed writes p without a prefix.
func (w *Writer) Fixed(p []byte) { w.buf.Write(p) }

func (w *Writer) Payload() []byte { return w.buf.Bytes() }

// Reader consumes a payload. The first error sticks; check Err once at the end.
type Reader struct {
	r   *bytes.Reader
	err error
}

func NewReader(p []byte) *Reader { return &Reader{r: bytes.NewReader(p)} }

func (r *Reader) read(p []byte) {
	if r.err != nil {
		return
	}
	if _, err := io.ReadFull(r.r, p); err != nil {
		r.err = ErrTruncated
	}
}

func (r *Reader) U32() uint32 {
	var b [4]byte
	r.read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (r *Reader) U64() uint64 {
	var b [8]byte
	r.read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

func (r *Reader) count() int {
	n := r.U64()
	if r.err != nil {
		return 0
	}
	if n > MaxElems {
		r.err = fmt.Errorf("wire: length prefix %d exceeds %d", n, MaxElems)
		return 0
	}
	return int(n)
}

func (r *Reader) U64s() []uint64 {
	n := r.count()
	if r.err != nil {
		return nil
	}
	if int64(n)*8 > int64(r.r.Len()) {
		r.err = ErrTruncated
		return nil
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = r.U64()
	}
	return out
}

func (r *Reader) Bytes() []byte {
	n := r.count()
	if r.err != nil {
		return nil
	}
	if n > r.r.Len() {
		r.err = ErrTruncated
		return nil
	}
	out := make([]byte, n)
	r.read(out)
	return out
}

func (r *Reader) Fixed(p []byte) { r.read(p) }

// Err reports the first failure.
func (r *Reader) Err() error { return r.err }

// Done is Err plus a check that nothing is left over.
func (r *Reader) Done() error {
	if r.err != nil {
		return r.err
	}
	if r.r.Len() != 0 {
		return fmt.Errorf("wire: %d trailing bytes", r.r.Len())
	}
	return nil
}
