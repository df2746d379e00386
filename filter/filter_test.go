package filter

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"testing"

	"filterproof/internal/fault"
	"filterproof/internal/modarith"
	"filterproof/kernel"
	"filterproof/operator"
)

func TestQuantizeRoundsHalfUp(t *testing.T) {
	got := Quantize([]uint64{0, 7, 8, 9, 15, 16, 255 << 4, 300 << 4}, 4)
	want := []byte{0, 0, 1, 1, 1, 1, 255, 255}
	if !bytes.Equal(got, want) {
		t.Fatalf("Quantize: got %v want %v", got, want)
	}
}

func TestScenarioBlurGradient(t *testing.T) {
	img, err := NewImage(8, 1, []byte{10, 20, 30, 40, 50, 60, 70, 80})
	if err != nil {
		t.Fatal(err)
	}
	k, err := kernel.Gaussian(10, 30, kernel.Precision{Bits: 24})
	if err != nil {
		t.Fatal(err)
	}
	out, err := Blur(img, k, operator.Replicate, RoundOnce)
	if err != nil {
		t.Fatal(err)
	}
	// edge-clamped convolution with the exact Gaussian
	ref := make([]float64, 8)
	var norm float64
	for j := -30; j <= 30; j++ {
		norm += math.Exp(-0.5 * float64(j*j) / 100)
	}
	for i := range ref {
		for j := -30; j <= 30; j++ {
			s := min(max(i+j, 0), 7)
			ref[i] += math.Exp(-0.5*float64(j*j)/100) * float64(img.Pix[s])
		}
		ref[i] /= norm
	}
	for i, v := range out.Pix {
		if math.Abs(float64(v)-ref[i]) > 1 {
			t.Fatalf("index %d: got %d, reference %.3f", i, v, ref[i])
		}
	}
	want := []byte{36, 38, 41, 44, 46, 49, 52, 54}
	if !bytes.Equal(out.Pix, want) {
		t.Fatalf("got %v want %v", out.Pix, want)
	}
}

func TestScenarioResizeFourToTwo(t *testing.T) {
	img, _ := NewImage(4, 4, []byte{
		1, 10, 20, 30,
		2, 50, 60, 70,
		80, 90, 100, 110,
		120, 130, 141, 150,
	})
	for _, mode := range []Rounding{RoundOnce, RoundEachPass} {
		out, err := Resize(img, 2, 2, kernel.Bilinear2, operator.Drop, mode)
		if err != nil {
			t.Fatal(err)
		}
		// columns 0 and 2, rows averaged in pairs, half rounds up
		want := []byte{2, 40, 100, 121}
		if out.Width != 2 || out.Height != 2 || !bytes.Equal(out.Pix, want) {
			t.Fatalf("%s: got %dx%d %v want %v", mode, out.Width, out.Height, out.Pix, want)
		}
	}
}

func TestConstantRowStaysConstant(t *testing.T) {
	for _, radius := range []int{0, 1, 4, 20} {
		pix := bytes.Repeat([]byte{173}, 9)
		img, _ := NewImage(9, 1, pix)
		k, _ := kernel.Gaussian(3, radius, kernel.Precision{Bits: 20})
		out, err := Blur(img, k, operator.Replicate, RoundOnce)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(out.Pix, pix) {
			t.Fatalf("radius %d: got %v", radius, out.Pix)
		}
	}
}

func TestRoundOnceMatchesOperator(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	pix := make([]byte, 12*7)
	rng.Read(pix)
	img, _ := NewImage(12, 7, pix)

	k, _ := kernel.Gaussian(2.2, 4, kernel.Precision{Bits: 16})
	op, err := operator.NewBlur(12, 7, k, operator.Replicate)
	if err != nil {
		t.Fatal(err)
	}
	y, _ := op.Apply(modarith.Wrap64{}, img.Wide())
	direct, _ := Blur(img, k, operator.Replicate, RoundOnce)
	if !bytes.Equal(direct.Pix, Quantize(y, op.Shift)) {
		t.Fatalf("blur: direct evaluation disagrees with operator form")
	}

	rop, err := operator.NewResize(12, 7, 5, 3, kernel.Bilinear4, operator.Drop)
	if err != nil {
		t.Fatal(err)
	}
	ry, _ := rop.Apply(modarith.Wrap64{}, img.Wide())
	rdirect, _ := Resize(img, 5, 3, kernel.Bilinear4, operator.Drop, RoundOnce)
	if !bytes.Equal(rdirect.Pix, Quantize(ry, rop.Shift)) {
		t.Fatalf("resize: direct evaluation disagrees with operator form")
	}
}

func TestEachPassWithinOneOfOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	pix := make([]byte, 16*16)
	rng.Read(pix)
	img, _ := NewImage(16, 16, pix)
	a, _ := Resize(img, 9, 5, kernel.Bilinear2, operator.Replicate, RoundOnce)
	b, _ := Resize(img, 9, 5, kernel.Bilinear2, operator.Replicate, RoundEachPass)
	for i := range a.Pix {
		d := int(a.Pix[i]) - int(b.Pix[i])
		if d < -1 || d > 1 {
			t.Fatalf("index %d: once=%d each=%d", i, a.Pix[i], b.Pix[i])
		}
	}
}

func TestBlurRejects(t *testing.T) {
	k, _ := kernel.Gaussian(10, 30, kernel.Precision{Bits: 12})
	img, _ := NewImage(8, 1, make([]byte, 8))
	if _, err := Blur(img, k, operator.Drop, RoundOnce); !errors.Is(err, fault.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	if _, err := NewImage(3, 3, make([]byte, 8)); !errors.Is(err, fault.ErrLength) {
		t.Fatalf("expected ErrLength, got %v", err)
	}
	if _, err := Resize(img, 0, 1, kernel.Bilinear2, operator.Drop, RoundOnce); !errors.Is(err, fault.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestQuantizeNearWordLimit(t *testing.T) {
	got := Quantize([]uint64{math.MaxUint64, 1<<63 - 1, 3, 2}, 1)
	want := []byte{255, 255, 2, 1}
	if !bytes.Equal(got, want) {
		t.Fatalf("Quantize: got %v want %v", got, want)
	}
}

func TestBlurHeadroom(t *testing.T) {
	flat := bytes.Repeat([]byte{200}, 16)
	img, err := NewImage(4, 4, flat)
	if err != nil {
		t.Fatal(err)
	}
	k30, err := kernel.Gaussian(10, 3, kernel.Precision{Bits: 30})
	if err != nil {
		t.Fatal(err)
	}
	// 8 + 2·30 bits do not fit a 64-bit accumulator
	if _, err := Blur(img, k30, operator.Replicate, RoundOnce); !errors.Is(err, fault.ErrConfig) {
		t.Fatalf("30-bit taps, round once: expected ErrConfig, got %v", err)
	}
	out, err := Blur(img, k30, operator.Replicate, RoundEachPass)
	if err != nil {
		t.Fatalf("30-bit taps, each pass: %v", err)
	}
	if !bytes.Equal(out.Pix, flat) {
		t.Fatalf("each pass: got %v", out.Pix)
	}

	k28, err := kernel.Gaussian(10, 3, kernel.Precision{Bits: 28})
	if err != nil {
		t.Fatal(err)
	}
	out, err = Blur(img, k28, operator.Replicate, RoundOnce)
	if err != nil {
		t.Fatalf("28-bit taps, round once: %v", err)
	}
	if !bytes.Equal(out.Pix, flat) {
		t.Fatalf("round once at 28 bits: got %v", out.Pix)
	}
}

func TestBlurChannelsIndependent(t *testing.T) {
	k, _ := kernel.Box(1, kernel.Precision{Bits: 8})
	chans := make([]Image, 3)
	for c := range chans {
		chans[c], _ = NewImage(5, 5, bytes.Repeat([]byte{byte(40 * (c + 1))}, 25))
	}
	out, err := BlurChannels(chans, k, operator.Replicate, RoundOnce)
	if err != nil {
		t.Fatal(err)
	}
	for c := range out {
		single, _ := Blur(chans[c], k, operator.Replicate, RoundOnce)
		if !bytes.Equal(out[c].Pix, single.Pix) {
			t.Fatalf("channel %d differs from single-channel blur", c)
		}
	}
}
