// Package commit binds the reference image to the verdict. The externally
// visible output of a session is a Verdict: the tolerance result next to a
// BLAKE3 hash of the reference pixels.
package commit

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"lukechampine.com/blake3"
)

// Hash is the BLAKE3-256 digest of the reference buffer.
func Hash(ref []byte) [32]byte {
	return blake3.Sum256(ref)
}

// CID returns the CIDv1 (raw codec, BLAKE3 multihash) of ref, the same
// content address an IPFS node would assign to the raw bytes.
func CID(ref []byte) (cid.Cid, error) {
	sum := Hash(ref)
	mh, err := multihash.Encode(sum[:], multihash.BLAKE3)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// VerifyCID checks that s is the content address of ref.
func VerifyCID(ref []byte, s string) error {
	c, err := cid.Decode(s)
	if err != nil {
		return fmt.Errorf("commit: decode cid: %w", err)
	}
	if c.Type() != cid.Raw {
		return fmt.Errorf("commit: cid codec %#x is not raw", c.Type())
	}
	dmh, err := multihash.Decode(c.Hash())
	if err != nil {
		return fmt.Errorf("commit: decode multihash: %w", err)
	}
	var sum []byte
	switch dmh.Code {
	case multihash.BLAKE3:
		h := Hash(ref)
		sum = h[:]
	case multihash.SHA2_256:
		mh, err := multihash.Sum(ref, multihash.SHA2_256, -1)
		if err != nil {
			return err
		}
		dec, _ := multihash.Decode(mh)
		sum = dec.Digest
	default:
		return fmt.Errorf("commit: unsupported multihash %s", multihash.Codes[dmh.Code])
	}
	if !bytes.Equal(sum, dmh.Digest) {
		return fmt.Errorf("commit: cid %s does not match content", s)
	}
	return nil
}

// Commitment is everything published about the reference image.
type Commitment struct {
	Hash    string `json:"blake3"`
	CID     string `json:"cid"`
	RowRoot string `json:"row_root,omitempty"`
}

// Commit hashes ref. When width > 0 it also builds the row tree.
func Commit(ref []byte, width int) (Commitment, error) {
	h := Hash(ref)
	c, err := CID(ref)
	if err != nil {
		return Commitment{}, err
	}
	out := Commitment{Hash: hex.EncodeToString(h[:]), CID: c.String()}
	if width > 0 {
		t, err := NewRowTree(ref, width)
		if err != nil {
			return Commitment{}, err
		}
		root := t.Root()
		out.RowRoot = hex.EncodeToString(root[:])
	}
	return out, nil
}
