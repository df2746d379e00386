package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"filterproof/config"
	"filterproof/filter"
	"filterproof/internal/imageio"
	"filterproof/internal/logging"
	"filterproof/kernel"
	"filterproof/measure"
	"filterproof/operator"
	"filterproof/prof"
	"filterproof/report"
	"filterproof/session"
)

func usage() {
	fmt.Println(`usage: filtercheck <eval|prove|verify|run> [options]

Subcommands:
  eval     Apply the configured filter directly and write the output pixels
           Flags:
             -config <path>   session config (toml|json|yaml)
             -in     <path>   source pixels (.txt decimal, .raw/.bin bytes)
             -out    <path>   output pixels

  prove    Produce claims for every channel of the source
           Flags:
             -config, -in
             -claim  <path>   claims file (default: claims.json)

  verify   Verify claims, compare with the reference and commit to it
           Flags:
             -config, -in
             -claim  <path>   claims file (default: claims.json)
             -ref    <path>   reference pixels (required)
             -report <path>   tolerance report (default: stdout)
             -chart  <path>   deviation histogram page (optional)
             -out    <path>   verified output pixels (optional)

  run      prove followed by verify, without writing claims

Environment:
  FILTERPROOF_FIELD, FILTERPROOF_CHALLENGE, FILTERPROOF_MODE,
  FILTERPROOF_WORKERS, FILTERPROOF_POLICY, FILTERPROOF_LOG_LEVEL
  FILTERPROOF_MEASURE=1   print work and size counters`)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "eval":
		runEval(os.Args[2:])
	case "prove":
		runProve(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:], false)
	case "run":
		runVerify(os.Args[2:], true)
	default:
		usage()
	}
}

type common struct {
	config *string
	in     *string
}

func commonFlags(fs *flag.FlagSet) common {
	return common{
		config: fs.String("config", "", "session config file"),
		in:     fs.String("in", "", "source pixels"),
	}
}

func (c common) load() (*config.Config, *logging.Logger, []byte) {
	cfg, err := config.Load(*c.config)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	lcfg := logging.DefaultConfig()
	if lcfg.Level, err = logging.ParseLevel(cfg.Log.Level); err != nil {
		log.Fatalf("config: %v", err)
	}
	if lcfg.Format, err = logging.ParseFormat(cfg.Log.Format); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(lcfg)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	logging.SetDefault(logger)
	if *c.in == "" {
		log.Fatal("-in is required")
	}
	src, err := imageio.LoadFile(*c.in)
	if err != nil {
		log.Fatalf("read source: %v", err)
	}
	return cfg, logger, src
}

func finish() {
	prof.Print(os.Stderr, prof.SnapshotAndReset())
	measure.Global.Dump(os.Stderr)
}

func runEval(args []string) {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	c := commonFlags(fs)
	outPath := fs.String("out", "", "output pixels (default: stdout)")
	fs.Parse(args)

	cfg, _, src := c.load()
	planes, err := session.Planes(src, cfg.Channels, cfg.Width*cfg.Height)
	if err != nil {
		log.Fatalf("source: %v", err)
	}
	var out []byte
	outW := 0
	for _, p := range planes {
		img, err := filter.NewImage(cfg.Width, cfg.Height, p)
		if err != nil {
			log.Fatalf("source: %v", err)
		}
		var res filter.Image
		err = prof.Stage("eval/"+cfg.Transform, func() error {
			res, err = direct(cfg, img)
			return err
		})
		if err != nil {
			log.Fatalf("eval: %v", err)
		}
		out = append(out, res.Pix...)
		outW = res.Width
	}
	if *outPath == "" {
		if err := imageio.WriteText(os.Stdout, out, outW); err != nil {
			log.Fatalf("write: %v", err)
		}
	} else if err := imageio.SaveFile(*outPath, out, outW); err != nil {
		log.Fatalf("write: %v", err)
	}
	finish()
}

func direct(cfg *config.Config, img filter.Image) (filter.Image, error) {
	if cfg.Transform == config.TransformResize {
		b, err := operator.ParseBoundary(cfg.Resize.Boundary)
		if err != nil {
			return filter.Image{}, err
		}
		mode, err := filter.ParseRounding(cfg.Resize.Rounding)
		if err != nil {
			return filter.Image{}, err
		}
		rc, err := kernel.ResizeConfigByName(cfg.Resize.Filter)
		if err != nil {
			return filter.Image{}, err
		}
		return filter.Resize(img, cfg.Resize.DstWidth, cfg.Resize.DstHeight, rc, b, mode)
	}
	b, err := operator.ParseBoundary(cfg.Blur.Boundary)
	if err != nil {
		return filter.Image{}, err
	}
	mode, err := filter.ParseRounding(cfg.Blur.Rounding)
	if err != nil {
		return filter.Image{}, err
	}
	k, err := session.BlurKernel(cfg.Blur)
	if err != nil {
		return filter.Image{}, err
	}
	return filter.Blur(img, k, b, mode)
}

func runProve(args []string) {
	fs := flag.NewFlagSet("prove", flag.ExitOnError)
	c := commonFlags(fs)
	claimPath := fs.String("claim", "claims.json", "claims file")
	fs.Parse(args)

	cfg, logger, src := c.load()
	if cfg.Freivalds.Challenge == session.ChallengeVerifierKey {
		log.Fatal("verifier-key challenges live in one process; use the run subcommand")
	}
	s, err := session.New(cfg, logger)
	if err != nil {
		log.Fatalf("session: %v", err)
	}
	claims, err := s.ProveChannels(src)
	if err != nil {
		log.Fatalf("prove: %v", err)
	}
	data, err := json.Marshal(claims)
	if err != nil {
		log.Fatalf("encode claims: %v", err)
	}
	if err := os.WriteFile(*claimPath, data, 0o644); err != nil {
		log.Fatalf("write claims: %v", err)
	}
	logger.Info("claims written", "path", *claimPath, "channels", len(claims))
	finish()
}

func runVerify(args []string, prove bool) {
	name := "verify"
	if prove {
		name = "run"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	c := commonFlags(fs)
	claimPath := fs.String("claim", "claims.json", "claims file")
	refPath := fs.String("ref", "", "reference pixels")
	reportPath := fs.String("report", "", "tolerance report (default: stdout)")
	chartPath := fs.String("chart", "", "deviation histogram page")
	outPath := fs.String("out", "", "verified output pixels")
	fs.Parse(args)

	cfg, logger, src := c.load()
	if *refPath == "" {
		log.Fatal("-ref is required")
	}
	ref, err := imageio.LoadFile(*refPath)
	if err != nil {
		log.Fatalf("read reference: %v", err)
	}
	s, err := session.New(cfg, logger)
	if err != nil {
		log.Fatalf("session: %v", err)
	}

	var claims []*session.Claim
	if prove {
		measure.Section(os.Stderr, "prove", func() {
			claims, err = s.ProveChannels(src)
		})
		if err != nil {
			log.Fatalf("prove: %v", err)
		}
	} else {
		data, err := os.ReadFile(*claimPath)
		if err != nil {
			log.Fatalf("read claims: %v", err)
		}
		if err := json.Unmarshal(data, &claims); err != nil {
			log.Fatalf("decode claims: %v", err)
		}
	}

	var res *session.MultiResult
	measure.Section(os.Stderr, "verify", func() {
		res, err = s.VerifyChannels(claims, src, ref)
	})
	if err != nil {
		log.Fatalf("verify: %v", err)
	}
	var rep report.ToleranceReport
	if len(res.Channels) == 1 {
		rep = report.FromResult(cfg, res.Channels[0])
	} else {
		rep = report.FromMulti(cfg, res)
	}

	w := os.Stdout
	if *reportPath != "" {
		f, err := os.Create(*reportPath)
		if err != nil {
			log.Fatalf("create report: %v", err)
		}
		defer f.Close()
		w = f
	}
	if err := report.Write(w, rep); err != nil {
		log.Fatalf("report: %v", err)
	}

	if *chartPath != "" {
		f, err := os.Create(*chartPath)
		if err != nil {
			log.Fatalf("create chart: %v", err)
		}
		if err := report.RenderHistograms(f, res.Channels); err != nil {
			log.Fatalf("chart: %v", err)
		}
		f.Close()
	}
	if *outPath != "" {
		var out []byte
		for _, r := range res.Channels {
			out = append(out, r.Output...)
		}
		if err := imageio.SaveFile(*outPath, out, s.Operator().DstW()); err != nil {
			log.Fatalf("write output: %v", err)
		}
	}
	finish()
}
