package session

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/rand"
	"testing"

	"filterproof/commit"
	"filterproof/config"
	"filterproof/filter"
	"filterproof/freivalds"
	"filterproof/internal/fault"
	"filterproof/internal/logging"
	"filterproof/internal/modarith"
	"filterproof/kernel"
	"filterproof/operator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blurConfig(w, h int) *config.Config {
	cfg := config.Default()
	cfg.Width, cfg.Height = w, h
	return cfg
}

func resizeConfig(w, h, dw, dh int) *config.Config {
	cfg := config.Default()
	cfg.Transform = config.TransformResize
	cfg.Width, cfg.Height = w, h
	cfg.Resize.DstWidth, cfg.Resize.DstHeight = dw, dh
	return cfg
}

func TestBlurGradientEndToEnd(t *testing.T) {
	s, err := New(blurConfig(8, 1), logging.Discard())
	require.NoError(t, err)
	src := []byte{10, 20, 30, 40, 50, 60, 70, 80}
	claim, err := s.Prove(src)
	require.NoError(t, err)

	ref := []byte{36, 38, 41, 44, 46, 49, 52, 54}
	res, err := s.Verify(claim, src, ref)
	require.NoError(t, err)
	assert.Equal(t, ref, res.Output)
	assert.True(t, res.Tolerance.WithinLimit)
	assert.Zero(t, res.Tolerance.Count1)
	assert.Equal(t, uint8(0), res.Stats.Max)
	h := commit.Hash(ref)
	assert.Equal(t, hex.EncodeToString(h[:]), res.Commitment.Hash)
	assert.Equal(t, 8, res.Histogram[0])
}

func TestTamperedClaimHalts(t *testing.T) {
	for _, mode := range []string{"vector", "outer"} {
		t.Run(mode, func(t *testing.T) {
			cfg := blurConfig(12, 9)
			cfg.Blur.Sigma, cfg.Blur.Radius = 2, 5
			cfg.Freivalds.Mode = mode
			s, err := New(cfg, logging.Discard())
			require.NoError(t, err)
			src := make([]byte, 12*9)
			rand.New(rand.NewSource(1)).Read(src)
			claim, err := s.Prove(src)
			require.NoError(t, err)
			y := claim.Output()
			y[17] += 1 << uint(s.Operator().Shift)
			res, err := s.Verify(claim, src, make([]byte, 12*9))
			require.Nil(t, res)
			require.True(t, errors.Is(err, fault.ErrVerification), "got %v", err)
		})
	}
}

func TestResizeMatchesDirectEvaluator(t *testing.T) {
	for _, field := range []string{"wrap64", "prime"} {
		for _, mode := range []string{"vector", "outer"} {
			cfg := resizeConfig(16, 12, 7, 5)
			cfg.Resize.Filter = "bilinear4"
			cfg.Freivalds.Field = field
			cfg.Freivalds.Mode = mode
			cfg.Freivalds.ChunkSize = 8
			cfg.Commit.RowTree = true
			s, err := New(cfg, logging.Discard())
			require.NoError(t, err)

			src := make([]byte, 16*12)
			rand.New(rand.NewSource(2)).Read(src)
			img, _ := filter.NewImage(16, 12, src)
			direct, err := filter.Resize(img, 7, 5, kernel.Bilinear4, operator.Drop, filter.RoundOnce)
			require.NoError(t, err)

			claim, err := s.Prove(src)
			require.NoError(t, err)
			res, err := s.Verify(claim, src, direct.Pix)
			require.NoError(t, err, "%s/%s", field, mode)
			assert.True(t, bytes.Equal(direct.Pix, res.Output), "%s/%s", field, mode)
			assert.True(t, res.Tolerance.WithinLimit)
			assert.NotEmpty(t, res.Commitment.RowRoot)
		}
	}
}

func TestVerifierKeyMode(t *testing.T) {
	cfg := blurConfig(10, 10)
	cfg.Blur.Sigma, cfg.Blur.Radius = 1.5, 3
	cfg.Freivalds.Challenge = ChallengeVerifierKey
	cfg.Freivalds.Mode = "vector"
	s, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	src := bytes.Repeat([]byte{9, 200}, 50)
	claim, err := s.Prove(src)
	require.NoError(t, err)
	assert.Nil(t, claim.Vector.R)
	_, err = s.Verify(claim, src, make([]byte, 100))
	require.NoError(t, err)

	claim.Vector.Y[0]++
	_, err = s.Verify(claim, src, make([]byte, 100))
	require.True(t, errors.Is(err, fault.ErrVerification))

	cfg.Freivalds.Mode = "outer"
	_, err = New(cfg, logging.Discard())
	require.True(t, errors.Is(err, fault.ErrConfig))
}

// forgeVector builds a vector claim that every output pixel is 200: r is
// derived honestly from the forged y, and t is solved from r·y using x[0] == 1.
func forgeVector(t *testing.T, s *Session, src []byte) *Claim {
	t.Helper()
	op, f := s.Operator(), s.Field()
	x := modarith.FromBytes(src)
	y := make([]uint64, op.OutputLen())
	for i := range y {
		y[i] = f.Reduce(200 << op.Shift)
	}
	fs := freivalds.NewFiatShamir("")
	r, err := fs.Draw(f, len(y), freivalds.Binding{Operator: op.Digest(), X: x, Y: y})
	require.NoError(t, err)
	tv := make([]uint64, len(x))
	tv[0] = freivalds.Portable{}.Dot(f, r, y)
	return &Claim{Vector: &freivalds.Transcript{
		Field: f.Name(), Modulus: f.Modulus(), Operator: op.Digest(),
		Challenge: fs.Name(), R: r, T: tv, Y: y,
	}}
}

func TestForgedProjectionRejected(t *testing.T) {
	src := []byte{1, 20, 30, 40, 50, 60, 70, 80}
	ref := bytes.Repeat([]byte{200}, 8)

	cfg := blurConfig(8, 1)
	cfg.Freivalds.Mode = "vector"
	s, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	res, err := s.Verify(forgeVector(t, s, src), src, ref)
	require.True(t, errors.Is(err, fault.ErrVerification), "forged claim: %v", err)
	assert.Nil(t, res)

	// the default outer mode refuses the vector shape outright
	s, err = New(blurConfig(8, 1), logging.Discard())
	require.NoError(t, err)
	_, err = s.Verify(forgeVector(t, s, src), src, ref)
	require.True(t, errors.Is(err, fault.ErrVerification))

	// the legacy protocol cannot tell
	cfg = blurConfig(8, 1)
	cfg.Freivalds.Mode = "vector"
	cfg.Freivalds.TrustProver = true
	s, err = New(cfg, logging.Discard())
	require.NoError(t, err)
	res, err = s.Verify(forgeVector(t, s, src), src, ref)
	require.NoError(t, err)
	assert.Equal(t, ref, res.Output)
}

func TestProverDrawnNeedsTrust(t *testing.T) {
	cfg := blurConfig(8, 1)
	cfg.Freivalds.Challenge = "prover-drawn"
	_, err := New(cfg, logging.Discard())
	require.True(t, errors.Is(err, fault.ErrConfig), "prover-drawn without trust_prover: %v", err)

	cfg.Freivalds.TrustProver = true
	s, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	src := []byte{10, 20, 30, 40, 50, 60, 70, 80}
	claim, err := s.Prove(src)
	require.NoError(t, err)
	_, err = s.Verify(claim, src, []byte{36, 38, 41, 44, 46, 49, 52, 54})
	require.NoError(t, err)
}

func TestEarlyExitPolicy(t *testing.T) {
	cfg := blurConfig(8, 1)
	cfg.Tolerance.Policy = "early-exit"
	cfg.Tolerance.Limit = 2
	s, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	src := []byte{10, 20, 30, 40, 50, 60, 70, 80}
	claim, err := s.Prove(src)
	require.NoError(t, err)
	res, err := s.Verify(claim, src, []byte{36, 38, 41, 44, 48, 49, 52, 54})
	require.NoError(t, err)
	assert.False(t, res.Tolerance.WithinLimit)
	assert.Equal(t, 4, res.Tolerance.FirstViolation)
}

func TestHeadroomAndConfigErrors(t *testing.T) {
	cfg := blurConfig(8, 8)
	cfg.Blur.Bits = 29
	_, err := New(cfg, logging.Discard())
	require.True(t, errors.Is(err, fault.ErrConfig), "29-bit taps overflow 64 bits: %v", err)

	cfg = blurConfig(8, 8)
	cfg.Blur.Bits = 27
	cfg.Freivalds.Field = "prime"
	_, err = New(cfg, logging.Discard())
	require.True(t, errors.Is(err, fault.ErrConfig), "27-bit taps overflow the prime: %v", err)

	cfg = blurConfig(8, 1)
	cfg.Blur.Boundary = "drop"
	_, err = New(cfg, logging.Discard())
	require.True(t, errors.Is(err, fault.ErrConfig), "radius 30 on width 8 under drop: %v", err)

	cfg = blurConfig(8, 1)
	cfg.Freivalds.Challenge = "oracle"
	_, err = New(cfg, logging.Discard())
	require.True(t, errors.Is(err, fault.ErrConfig))
}

func TestLengthErrors(t *testing.T) {
	s, err := New(blurConfig(8, 1), logging.Discard())
	require.NoError(t, err)
	_, err = s.Prove(make([]byte, 7))
	require.True(t, errors.Is(err, fault.ErrLength))
	claim, err := s.Prove(make([]byte, 8))
	require.NoError(t, err)
	_, err = s.Verify(claim, make([]byte, 8), make([]byte, 9))
	require.True(t, errors.Is(err, fault.ErrLength))
	_, err = s.Verify(&Claim{}, make([]byte, 8), make([]byte, 8))
	require.True(t, errors.Is(err, fault.ErrVerification))
}

func TestChannels(t *testing.T) {
	cfg := blurConfig(6, 4)
	cfg.Blur.Sigma, cfg.Blur.Radius = 1, 2
	cfg.Channels = 3
	s, err := New(cfg, logging.Discard())
	require.NoError(t, err)

	src := make([]byte, 3*24)
	rand.New(rand.NewSource(3)).Read(src)
	claims, err := s.ProveChannels(src)
	require.NoError(t, err)
	require.Len(t, claims, 3)

	ref := make([]byte, 0, 3*24)
	k, _ := BlurKernel(cfg.Blur)
	for c := 0; c < 3; c++ {
		img, _ := filter.NewImage(6, 4, src[c*24:(c+1)*24])
		out, _ := filter.Blur(img, k, operator.Replicate, filter.RoundOnce)
		ref = append(ref, out.Pix...)
	}
	res, err := s.VerifyChannels(claims, src, ref)
	require.NoError(t, err)
	assert.True(t, res.WithinLimit)
	assert.Len(t, res.Channels, 3)
	h := commit.Hash(ref)
	assert.Equal(t, hex.EncodeToString(h[:]), res.Commitment.Hash)

	claims[2].Output()[0]++
	res, err = s.VerifyChannels(claims, src, ref)
	require.Nil(t, res)
	require.True(t, errors.Is(err, fault.ErrVerification))
}
