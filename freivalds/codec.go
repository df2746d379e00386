package freivalds

import (
	"fmt"

	"filterproof/internal/wire"
)

const transcriptTag uint32 = 0x46525631 // "FRV1"

// MarshalBinary encodes the transcript in the host layout: tag, field name,
// modulus, operator digest, challenge name, then r, t and y as
// length-prefixed u64 vectors.
func (tr *Transcript) MarshalBinary() ([]byte, error) {
	var w wire.Writer
	w.U32(transcriptTag)
	w.Bytes([]byte(tr.Field))
	w.U64(tr.Modulus)
	w.Fixed(tr.Operator[:])
	w.Bytes([]byte(tr.Challenge))
	w.U64s(tr.R)
	w.U64s(tr.T)
	w.U64s(tr.Y)
	return w.Payload(), nil
}

func (tr *Transcript) UnmarshalBinary(p []byte) error {
	r := wire.NewReader(p)
	if tag := r.U32(); r.Err() == nil && tag != transcriptTag {
		return fmt.Errorf("freivalds: payload tag %#x is not a transcript", tag)
	}
	var out Transcript
	out.Field = string(r.Bytes())
	out.Modulus = r.U64()
	r.Fixed(out.Operator[:])
	out.Challenge = string(r.Bytes())
	out.R = r.U64s()
	out.T = r.U64s()
	out.Y = r.U64s()
	if err := r.Done(); err != nil {
		return err
	}
	*tr = out
	return nil
}
