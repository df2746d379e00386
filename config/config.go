// Package config loads the parameters of a verification session.
//
// Files may be TOML, JSON or YAML; the format follows the extension and
// falls back to TOML. FILTERPROOF_* environment variables override file
// values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"filterproof/internal/fault"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Transform names.
const (
	TransformBlur   = "blur"
	TransformResize = "resize"
)

// MaxBlurBits is the widest tap precision whose two-axis product with an
// 8-bit pixel fits 64 bits.
const MaxBlurBits = 28

// Config holds every parameter of one session.
type Config struct {
	Transform string `toml:"transform" json:"transform" yaml:"transform"`
	Width     int    `toml:"width" json:"width" yaml:"width"`
	Height    int    `toml:"height" json:"height" yaml:"height"`
	// Channels is the number of 8-bit planes, stored one after another.
	Channels int `toml:"channels" json:"channels" yaml:"channels"`

	Blur      BlurConfig      `toml:"blur" json:"blur" yaml:"blur"`
	Resize    ResizeConfig    `toml:"resize" json:"resize" yaml:"resize"`
	Freivalds FreivaldsConfig `toml:"freivalds" json:"freivalds" yaml:"freivalds"`
	Tolerance ToleranceConfig `toml:"tolerance" json:"tolerance" yaml:"tolerance"`
	Commit    CommitConfig    `toml:"commit" json:"commit" yaml:"commit"`
	Log       LogConfig       `toml:"log" json:"log" yaml:"log"`
}

// BlurConfig selects the blur kernel.
type BlurConfig struct {
	Kernel   string  `toml:"kernel" json:"kernel" yaml:"kernel"`
	Sigma    float64 `toml:"sigma" json:"sigma" yaml:"sigma"`
	Radius   int     `toml:"radius" json:"radius" yaml:"radius"`
	Bits     uint    `toml:"bits" json:"bits" yaml:"bits"`
	Boundary string  `toml:"boundary" json:"boundary" yaml:"boundary"`
	Rounding string  `toml:"rounding" json:"rounding" yaml:"rounding"`
}

// ResizeConfig selects the resize filter and destination size.
type ResizeConfig struct {
	Filter    string `toml:"filter" json:"filter" yaml:"filter"`
	DstWidth  int    `toml:"dst_width" json:"dst_width" yaml:"dst_width"`
	DstHeight int    `toml:"dst_height" json:"dst_height" yaml:"dst_height"`
	Boundary  string `toml:"boundary" json:"boundary" yaml:"boundary"`
	Rounding  string `toml:"rounding" json:"rounding" yaml:"rounding"`
}

// FreivaldsConfig picks arithmetic, challenge provenance and check shape.
type FreivaldsConfig struct {
	Field   string `toml:"field" json:"field" yaml:"field"`
	Modulus uint64 `toml:"modulus" json:"modulus" yaml:"modulus"`
	// Challenge is "fiat-shamir", "verifier-key" or, with TrustProver,
	// "prover-drawn".
	Challenge string `toml:"challenge" json:"challenge" yaml:"challenge"`
	// Mode is "outer" (rank-one challenge) or "vector" (r·y == t·x).
	Mode      string `toml:"mode" json:"mode" yaml:"mode"`
	Workers   int    `toml:"workers" json:"workers" yaml:"workers"`
	ChunkSize int    `toml:"chunk_size" json:"chunk_size" yaml:"chunk_size"`
	// TrustProver replays the legacy protocol: the prover's projection is
	// taken as given and prover-drawn challenges are allowed. A dishonest
	// prover can then make any output pass.
	TrustProver bool `toml:"trust_prover" json:"trust_prover" yaml:"trust_prover"`
}

// ToleranceConfig chooses one comparison policy.
type ToleranceConfig struct {
	Policy string `toml:"policy" json:"policy" yaml:"policy"`
	Limit  uint8  `toml:"limit" json:"limit" yaml:"limit"`
	Limit1 uint8  `toml:"limit1" json:"limit1" yaml:"limit1"`
	Limit2 uint8  `toml:"limit2" json:"limit2" yaml:"limit2"`
}

type CommitConfig struct {
	RowTree bool `toml:"row_tree" json:"row_tree" yaml:"row_tree"`
}

type LogConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`
}

// Default returns the blur setup of the reference pipeline: σ=10, radius 30,
// 24-bit taps, edge replication, dual-threshold tolerance at 20/50.
func Default() *Config {
	return &Config{
		Transform: TransformBlur,
		Channels:  1,
		Blur: BlurConfig{
			Kernel:   "gaussian",
			Sigma:    10,
			Radius:   30,
			Bits:     24,
			Boundary: "replicate",
			Rounding: "once",
		},
		Resize: ResizeConfig{
			Filter:   "bilinear2",
			Boundary: "drop",
			Rounding: "each-pass",
		},
		Freivalds: FreivaldsConfig{
			Field:     "wrap64",
			Challenge: "fiat-shamir",
			Mode:      "outer",
		},
		Tolerance: ToleranceConfig{
			Policy: "dual-threshold",
			Limit:  20,
			Limit1: 20,
			Limit2: 50,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the file at path over Default and applies environment
// overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := Decode(data, filepath.Ext(path), cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses data in the format named by ext into cfg.
func Decode(data []byte, ext string, cfg *Config) error {
	switch ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode config (unknown format): %w", err)
		}
	}
	return nil
}

// ApplyEnvOverrides reads FILTERPROOF_FIELD, FILTERPROOF_CHALLENGE,
// FILTERPROOF_MODE, FILTERPROOF_WORKERS, FILTERPROOF_POLICY and
// FILTERPROOF_LOG_LEVEL.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("FILTERPROOF_FIELD"); v != "" {
		c.Freivalds.Field = v
	}
	if v := os.Getenv("FILTERPROOF_CHALLENGE"); v != "" {
		c.Freivalds.Challenge = v
	}
	if v := os.Getenv("FILTERPROOF_MODE"); v != "" {
		c.Freivalds.Mode = v
	}
	if v := os.Getenv("FILTERPROOF_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fault.Config("config.env", "FILTERPROOF_WORKERS=%q is not an integer", v)
		}
		c.Freivalds.Workers = n
	}
	if v := os.Getenv("FILTERPROOF_POLICY"); v != "" {
		c.Tolerance.Policy = v
	}
	if v := os.Getenv("FILTERPROOF_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks everything that can be checked without building the
// operator. Errors wrap fault.ErrConfig.
func (c *Config) Validate() error {
	const op = "config.Validate"
	if c.Width <= 0 || c.Height <= 0 {
		return fault.Config(op, "image size %dx%d must be positive", c.Width, c.Height)
	}
	if c.Channels <= 0 {
		return fault.Config(op, "channels %d must be positive", c.Channels)
	}
	switch c.Transform {
	case TransformBlur:
		if c.Blur.Kernel != "gaussian" && c.Blur.Kernel != "box" {
			return fault.Config(op, "unknown blur kernel %q", c.Blur.Kernel)
		}
		if c.Blur.Kernel == "gaussian" && c.Blur.Sigma <= 0 {
			return fault.Config(op, "blur sigma %v must be positive", c.Blur.Sigma)
		}
		if c.Blur.Radius < 0 {
			return fault.Config(op, "blur radius %d is negative", c.Blur.Radius)
		}
		// the round-once intermediate holds 8 + 2·bits
		if c.Blur.Bits == 0 || c.Blur.Bits > MaxBlurBits {
			return fault.Config(op, "blur bits %d outside [1,%d]", c.Blur.Bits, MaxBlurBits)
		}
	case TransformResize:
		if c.Resize.DstWidth <= 0 || c.Resize.DstHeight <= 0 {
			return fault.Config(op, "resize destination %dx%d must be positive", c.Resize.DstWidth, c.Resize.DstHeight)
		}
	default:
		return fault.Config(op, "unknown transform %q", c.Transform)
	}
	switch c.Freivalds.Mode {
	case "", "vector", "outer":
	default:
		return fault.Config(op, "unknown freivalds mode %q", c.Freivalds.Mode)
	}
	if c.Freivalds.Workers < 0 || c.Freivalds.ChunkSize < 0 {
		return fault.Config(op, "workers and chunk size must not be negative")
	}
	if c.Tolerance.Policy == "dual-threshold" && c.Tolerance.Limit2 < c.Tolerance.Limit1 {
		return fault.Config(op, "limit2 %d below limit1 %d", c.Tolerance.Limit2, c.Tolerance.Limit1)
	}
	return nil
}
