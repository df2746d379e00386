// Package report renders the externally visible artifact of a session: the
// tolerance verdict next to the reference commitment, as schema-checked JSON,
// plus an optional deviation histogram page.
package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"filterproof/commit"
	"filterproof/config"
	"filterproof/session"
	"filterproof/tolerance"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://filterproof.local/schema/tolerance-report.json"

// ToleranceReport is the JSON document handed to the host.
type ToleranceReport struct {
	Version        int                `json:"version"`
	Transform      string             `json:"transform"`
	Width          int                `json:"width,omitempty"`
	Height         int                `json:"height,omitempty"`
	Field          string             `json:"field,omitempty"`
	Challenge      string             `json:"challenge,omitempty"`
	Mode           string             `json:"mode,omitempty"`
	Policy         string             `json:"policy"`
	WithinLimit    bool               `json:"within_limit"`
	Count1         int                `json:"count1"`
	Count2         int                `json:"count2"`
	Limits         []int              `json:"limits,omitempty"`
	FirstViolation *int               `json:"first_violation,omitempty"`
	Stats          *tolerance.Summary `json:"stats,omitempty"`
	Channels       int                `json:"channels,omitempty"`
	Commitment     commit.Commitment  `json:"commitment"`
}

func base(cfg *config.Config) ToleranceReport {
	r := ToleranceReport{
		Version:   1,
		Transform: cfg.Transform,
		Field:     cfg.Freivalds.Field,
		Challenge: cfg.Freivalds.Challenge,
		Mode:      cfg.Freivalds.Mode,
	}
	if r.Field == "" {
		r.Field = "wrap64"
	}
	if r.Mode == "" {
		r.Mode = "vector"
	}
	return r
}

func limits(cfg *config.Config, policy string) []int {
	if policy == (tolerance.EarlyExit{}).Name() {
		return []int{int(cfg.Tolerance.Limit)}
	}
	return []int{int(cfg.Tolerance.Limit1), int(cfg.Tolerance.Limit2)}
}

// FromResult builds the report of a single-channel session.
func FromResult(cfg *config.Config, res *session.Result) ToleranceReport {
	r := base(cfg)
	r.Width, r.Height = res.Width, res.Height
	r.Policy = res.Tolerance.Policy
	r.WithinLimit = res.Tolerance.WithinLimit
	r.Count1, r.Count2 = res.Tolerance.Count1, res.Tolerance.Count2
	r.Limits = limits(cfg, r.Policy)
	if res.Tolerance.FirstViolation >= 0 {
		fv := res.Tolerance.FirstViolation
		r.FirstViolation = &fv
	}
	st := res.Stats
	r.Stats = &st
	r.Channels = 1
	r.Commitment = res.Commitment
	return r
}

// FromMulti folds per-channel results: counts add up, the maximum deviation
// is the largest over channels.
func FromMulti(cfg *config.Config, res *session.MultiResult) ToleranceReport {
	r := base(cfg)
	r.WithinLimit = res.WithinLimit
	r.Channels = len(res.Channels)
	var st tolerance.Summary
	var n int
	for _, c := range res.Channels {
		r.Width, r.Height = c.Width, c.Height
		r.Policy = c.Tolerance.Policy
		r.Count1 += c.Tolerance.Count1
		r.Count2 += c.Tolerance.Count2
		st.L1 += c.Stats.L1
		st.Max = max(st.Max, c.Stats.Max)
		n += len(c.Output)
	}
	if n > 0 {
		st.Mean = float64(st.L1) / float64(n)
	}
	r.Stats = &st
	r.Limits = limits(cfg, r.Policy)
	r.Commitment = res.Commitment
	return r
}

// Marshal encodes r and checks it against the embedded schema.
func Marshal(r ToleranceReport) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Write marshals r to w.
func Write(w io.Writer, r ToleranceReport) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("report: add schema resource: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Validate checks a JSON document against the ToleranceReport schema.
func Validate(data []byte) error {
	s, err := compiled()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("report: decode: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("report: schema: %w", err)
	}
	return nil
}
