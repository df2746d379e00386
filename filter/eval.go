package filter

import (
	"filterproof/internal/fault"
	"filterproof/kernel"
	"filterproof/operator"
)

// pass1D holds the taps of one axis: output i reads Taps values starting at
// source index Pos[i].
type pass1D struct {
	src, dst int
	taps     int
	pos      []int
	coeffs   []uint64
	bits     uint
}

func blurPass(k kernel.Kernel, n int) pass1D {
	p := pass1D{src: n, dst: n, taps: len(k.Taps), pos: make([]int, n), bits: k.Bits}
	p.coeffs = make([]uint64, 0, n*len(k.Taps))
	for i := 0; i < n; i++ {
		p.pos[i] = i - k.Radius()
		p.coeffs = append(p.coeffs, k.Taps...)
	}
	return p
}

func resizePass(f kernel.ResizeFilter) pass1D {
	return pass1D{src: f.Src, dst: f.Dst, taps: f.Taps, pos: f.Pos, coeffs: f.Coeffs, bits: f.Bits}
}

// rows applies the pass along rows (stride 1) of `lines` lines. in holds
// lines·src samples, the result lines·dst.
func (p pass1D) rows(in []uint64, lines int, b operator.Boundary) []uint64 {
	out := make([]uint64, lines*p.dst)
	for l := 0; l < lines; l++ {
		src := in[l*p.src : (l+1)*p.src]
		dst := out[l*p.dst : (l+1)*p.dst]
		for i := range dst {
			dst[i] = p.dot(src, 1, i, b)
		}
	}
	return out
}

// cols applies the pass down columns of a p.src×width buffer.
func (p pass1D) cols(in []uint64, width int, b operator.Boundary) []uint64 {
	out := make([]uint64, p.dst*width)
	for c := 0; c < width; c++ {
		col := in[c:]
		for i := 0; i < p.dst; i++ {
			out[i*width+c] = p.dot(col, width, i, b)
		}
	}
	return out
}

func (p pass1D) dot(src []uint64, stride, i int, b operator.Boundary) uint64 {
	var acc uint64
	start := p.pos[i]
	for j, w := range p.coeffs[i*p.taps : (i+1)*p.taps] {
		s := start + j
		switch {
		case s >= 0 && s < p.src:
		case b == operator.Drop:
			continue
		case s < 0:
			s = 0
		default:
			s = p.src - 1
		}
		acc += w * src[s*stride]
	}
	return acc
}

func lift(pix []byte) []uint64 {
	out := make([]uint64, len(pix))
	for i, v := range pix {
		out[i] = uint64(v)
	}
	return out
}

// checkHeadroom rejects tap precisions whose widest intermediate, an 8-bit
// pixel times every fixed-point scale still pending, does not fit 64 bits.
func checkHeadroom(op string, h, v pass1D, mode Rounding) error {
	need := 8 + h.bits + v.bits
	if mode == RoundEachPass {
		need = 8 + max(h.bits, v.bits)
	}
	if need > 64 {
		return fault.Config(op, "%s rounding needs a %d-bit accumulator", mode, need)
	}
	return nil
}

func twoPass(img Image, h, v pass1D, b operator.Boundary, mode Rounding) Image {
	x := lift(img.Pix)
	tmp := h.rows(x, img.Height, b)
	var out []byte
	if mode == RoundEachPass {
		tmp = lift(Quantize(tmp, h.bits))
		out = Quantize(v.cols(tmp, h.dst, b), v.bits)
	} else {
		out = Quantize(v.cols(tmp, h.dst, b), h.bits+v.bits)
	}
	return Image{Width: h.dst, Height: v.dst, Pix: out}
}

// Blur convolves img with k along both axes.
func Blur(img Image, k kernel.Kernel, b operator.Boundary, mode Rounding) (Image, error) {
	if _, err := NewImage(img.Width, img.Height, img.Pix); err != nil {
		return Image{}, err
	}
	if len(k.Taps)%2 == 0 {
		return Image{}, fault.Config("filter.Blur", "kernel has %d taps, want an odd count", len(k.Taps))
	}
	if b == operator.Drop && (k.Radius() >= img.Width || k.Radius() >= img.Height) {
		return Image{}, fault.Config("filter.Blur", "radius %d exceeds image %dx%d", k.Radius(), img.Width, img.Height)
	}
	h, v := blurPass(k, img.Width), blurPass(k, img.Height)
	if err := checkHeadroom("filter.Blur", h, v, mode); err != nil {
		return Image{}, err
	}
	return twoPass(img, h, v, b, mode), nil
}

// Resize scales img to dstW×dstH with the named filter configuration.
func Resize(img Image, dstW, dstH int, cfg kernel.ResizeConfig, b operator.Boundary, mode Rounding) (Image, error) {
	if _, err := NewImage(img.Width, img.Height, img.Pix); err != nil {
		return Image{}, err
	}
	hf, err := kernel.Horizontal(img.Width, dstW, cfg)
	if err != nil {
		return Image{}, err
	}
	vf, err := kernel.Vertical(img.Height, dstH, cfg)
	if err != nil {
		return Image{}, err
	}
	h, v := resizePass(hf), resizePass(vf)
	if err := checkHeadroom("filter.Resize", h, v, mode); err != nil {
		return Image{}, err
	}
	return twoPass(img, h, v, b, mode), nil
}

// BlurChannels blurs each channel independently and concurrently.
func BlurChannels(chans []Image, k kernel.Kernel, b operator.Boundary, mode Rounding) ([]Image, error) {
	out := make([]Image, len(chans))
	errs := make([]error, len(chans))
	done := make(chan struct{})
	for i := range chans {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			out[i], errs[i] = Blur(chans[i], k, b, mode)
		}(i)
	}
	for range chans {
		<-done
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
