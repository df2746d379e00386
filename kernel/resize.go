package kernel

import (
	"math"
	"strings"

	"filterproof/internal/fault"
)

// ResizeConfig is a named resize filter: tap count plus fixed-point scale.
type ResizeConfig struct {
	Name      string
	Taps      int
	Precision Precision
}

// The two tap counts used by the scaler are separate configurations rather
// than one tunable constant.
var (
	Bilinear2 = ResizeConfig{Name: "bilinear2", Taps: 2, Precision: Precision{Bits: 14}}
	Bilinear4 = ResizeConfig{Name: "bilinear4", Taps: 4, Precision: Precision{Bits: 11}}
)

// ResizeConfigByName looks up Bilinear2 or Bilinear4.
func ResizeConfigByName(name string) (ResizeConfig, error) {
	switch strings.ToLower(name) {
	case Bilinear2.Name, "":
		return Bilinear2, nil
	case Bilinear4.Name:
		return Bilinear4, nil
	}
	return ResizeConfig{}, fault.Config("kernel.ResizeConfigByName", "unknown resize filter %q", name)
}

func (c ResizeConfig) Validate() error {
	if c.Taps != 2 && c.Taps != 4 {
		return fault.Config("kernel.ResizeConfig", "%s: tap count %d not in {2,4}", c.Name, c.Taps)
	}
	return c.Precision.Validate()
}

// ResizeFilter holds, for every destination sample i, Taps consecutive
// coefficients starting at source index Pos[i]. Pos may be negative or run
// past Src; the operator builder decides what happens to those taps.
type ResizeFilter struct {
	Src, Dst int
	Taps     int
	Bits     uint
	Pos      []int
	Coeffs   []uint64
}

// Row returns the start position and coefficients of destination sample i.
func (f ResizeFilter) Row(i int) (int, []uint64) {
	return f.Pos[i], f.Coeffs[i*f.Taps : (i+1)*f.Taps]
}

// Mass is 2^Bits.
func (f ResizeFilter) Mass() uint64 { return uint64(1) << f.Bits }

func checkExtents(op string, src, dst int, cfg ResizeConfig) error {
	if src <= 0 || dst <= 0 {
		return fault.Config(op, "extents src=%d dst=%d must be positive", src, dst)
	}
	return cfg.Validate()
}

// Horizontal builds the width-axis filter. The step between destination
// samples is the 16.16 ratio src/dst rounded to 17.15; each sample's
// fractional offset is rescaled from 15 bits to the filter precision.
func Horizontal(src, dst int, cfg ResizeConfig) (ResizeFilter, error) {
	if err := checkExtents("kernel.Horizontal", src, dst, cfg); err != nil {
		return ResizeFilter{}, err
	}
	scale := cfg.Precision.Scale()
	xInc := ((uint64(src) << 16) / uint64(dst) + 1) >> 1
	f := ResizeFilter{
		Src: src, Dst: dst, Taps: cfg.Taps, Bits: cfg.Precision.Bits,
		Pos:    make([]int, dst),
		Coeffs: make([]uint64, dst*cfg.Taps),
	}
	for i := 0; i < dst; i++ {
		acc := uint64(i) * xInc
		pos := int(acc >> 15)
		xx := ((acc & 0x7fff) << cfg.Precision.Bits) >> 15
		c := f.Coeffs[i*cfg.Taps : (i+1)*cfg.Taps]
		switch cfg.Taps {
		case 2:
			f.Pos[i] = pos
			c[0] = scale - xx
			c[1] = xx
		case 4:
			// Triangle of half-width 2 centred at pos+frac.
			f.Pos[i] = pos - 1
			c[0] = (scale - xx) / 4
			c[1] = (2*scale - xx) / 4
			c[2] = (scale + xx) / 4
			c[3] = xx / 4
			foldResidual(c, largest(c), scale)
		}
	}
	return f, nil
}

// Vertical builds the height-axis filter. Sample i is centred at
// (i+0.5)·src/dst-0.5; the window starts at ceil(center-taps/2) and uses a
// triangular weight of half-width taps/2, renormalized per row.
func Vertical(src, dst int, cfg ResizeConfig) (ResizeFilter, error) {
	if err := checkExtents("kernel.Vertical", src, dst, cfg); err != nil {
		return ResizeFilter{}, err
	}
	scale := cfg.Precision.Scale()
	half := float64(cfg.Taps) / 2
	f := ResizeFilter{
		Src: src, Dst: dst, Taps: cfg.Taps, Bits: cfg.Precision.Bits,
		Pos:    make([]int, dst),
		Coeffs: make([]uint64, dst*cfg.Taps),
	}
	w := make([]float64, cfg.Taps)
	for i := 0; i < dst; i++ {
		center := (float64(i)+0.5)*float64(src)/float64(dst) - 0.5
		top := int(math.Ceil(center - half))
		var total float64
		for j := range w {
			d := math.Abs(float64(top+j) - center)
			w[j] = math.Max(0, 1-d/half)
			total += w[j]
		}
		c := f.Coeffs[i*cfg.Taps : (i+1)*cfg.Taps]
		for j := range w {
			c[j] = uint64(w[j] * float64(scale) / total)
		}
		foldResidual(c, largest(c), scale)
		f.Pos[i] = top
	}
	return f, nil
}

func largest(c []uint64) int {
	best := 0
	for i, v := range c {
		if v > c[best] {
			best = i
		}
	}
	return best
}
