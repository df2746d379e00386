package bench

import (
	"testing"

	"filterproof/config"
	"filterproof/internal/logging"
	"filterproof/session"
)

// frame fills a w×h plane with a deterministic texture.
func frame(w, h int) []byte {
	pix := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix[y*w+x] = byte((x*7 + y*13 + (x*y)%31) & 0xff)
		}
	}
	return pix
}

func resizeConfig() *config.Config {
	cfg := config.Default()
	cfg.Transform = config.TransformResize
	cfg.Width, cfg.Height = 320, 240
	cfg.Resize.DstWidth, cfg.Resize.DstHeight = 160, 120
	cfg.Resize.Filter = "bilinear4"
	return cfg
}

func blurConfig() *config.Config {
	cfg := config.Default()
	cfg.Width, cfg.Height = 64, 64
	return cfg
}

func newSession(b *testing.B, cfg *config.Config) *session.Session {
	b.Helper()
	s, err := session.New(cfg, logging.Discard())
	if err != nil {
		b.Fatal(err)
	}
	return s
}
