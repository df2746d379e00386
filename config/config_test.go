package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"filterproof/internal/fault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsBlurWithDualThreshold(t *testing.T) {
	cfg := Default()
	assert.Equal(t, TransformBlur, cfg.Transform)
	assert.Equal(t, 10.0, cfg.Blur.Sigma)
	assert.Equal(t, 30, cfg.Blur.Radius)
	assert.Equal(t, uint(24), cfg.Blur.Bits)
	assert.Equal(t, uint8(20), cfg.Tolerance.Limit1)
	assert.Equal(t, uint8(50), cfg.Tolerance.Limit2)
	assert.Equal(t, "outer", cfg.Freivalds.Mode)
	assert.False(t, cfg.Freivalds.TrustProver)
	// size is always supplied by the caller
	require.True(t, errors.Is(cfg.Validate(), fault.ErrConfig))
}

func TestLoadFormats(t *testing.T) {
	files := map[string]string{
		"session.toml": `
transform = "resize"
width = 640
height = 360

[resize]
filter = "bilinear4"
dst_width = 320
dst_height = 180

[freivalds]
field = "prime"
mode = "vector"
`,
		"session.json": `{"transform":"resize","width":640,"height":360,
"resize":{"filter":"bilinear4","dst_width":320,"dst_height":180},
"freivalds":{"field":"prime","mode":"vector"}}`,
		"session.yaml": `
transform: resize
width: 640
height: 360
resize:
  filter: bilinear4
  dst_width: 320
  dst_height: 180
freivalds:
  field: prime
  mode: vector
`,
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(write(t, name, content))
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())
			assert.Equal(t, TransformResize, cfg.Transform)
			assert.Equal(t, "bilinear4", cfg.Resize.Filter)
			assert.Equal(t, 320, cfg.Resize.DstWidth)
			assert.Equal(t, "prime", cfg.Freivalds.Field)
			assert.Equal(t, "vector", cfg.Freivalds.Mode)
			// untouched sections keep their defaults
			assert.Equal(t, "drop", cfg.Resize.Boundary)
			assert.Equal(t, "fiat-shamir", cfg.Freivalds.Challenge)
		})
	}
}

func TestLoadUnknownExtensionFallsBackToTOML(t *testing.T) {
	cfg, err := Load(write(t, "session.conf", "width = 8\nheight = 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Width)
	require.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	_, err = Load(write(t, "bad.toml", "width = ="))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FILTERPROOF_FIELD", "prime")
	t.Setenv("FILTERPROOF_WORKERS", "3")
	t.Setenv("FILTERPROOF_POLICY", "early-exit")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prime", cfg.Freivalds.Field)
	assert.Equal(t, 3, cfg.Freivalds.Workers)
	assert.Equal(t, "early-exit", cfg.Tolerance.Policy)

	t.Setenv("FILTERPROOF_WORKERS", "many")
	_, err = Load("")
	require.True(t, errors.Is(err, fault.ErrConfig))
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"zero width":      func(c *Config) { c.Width = 0 },
		"bad transform":   func(c *Config) { c.Transform = "rotate" },
		"zero sigma":      func(c *Config) { c.Blur.Sigma = 0 },
		"negative radius": func(c *Config) { c.Blur.Radius = -1 },
		"bits":            func(c *Config) { c.Blur.Bits = 31 },
		"bits headroom":   func(c *Config) { c.Blur.Bits = 29 },
		"resize dst": func(c *Config) {
			c.Transform = TransformResize
			c.Resize.DstWidth = 0
		},
		"mode":   func(c *Config) { c.Freivalds.Mode = "matrix" },
		"limits": func(c *Config) { c.Tolerance.Limit1, c.Tolerance.Limit2 = 60, 50 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Width, cfg.Height = 8, 8
			cfg.Resize.DstWidth, cfg.Resize.DstHeight = 4, 4
			mutate(cfg)
			require.True(t, errors.Is(cfg.Validate(), fault.ErrConfig))
		})
	}
}
