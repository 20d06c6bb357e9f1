// Command crowdsim runs social-force crowd simulations and generates scenes.
//
//	crowdsim run -c scene.bin -o out.bin [--db runs.db] [--listen :8080]
//	crowdsim generate -o scene.bin [--seed 7] [--mode escape]
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/talgya/crowd-sim/internal/api"
	"github.com/talgya/crowd-sim/internal/config"
	"github.com/talgya/crowd-sim/internal/engine"
	"github.com/talgya/crowd-sim/internal/entropy"
	"github.com/talgya/crowd-sim/internal/output"
	"github.com/talgya/crowd-sim/internal/persistence"
	"github.com/talgya/crowd-sim/internal/world"
)

func main() {
	parser := argparse.NewParser("crowdsim", "Social-force crowd simulation")
	logLevel := parser.Selector("l", "log-level", []string{"debug", "info", "warn", "error"},
		&argparse.Options{Default: "info", Help: "log level (logs go to stderr)"})

	runCmd := parser.NewCommand("run", "Run a simulation from a binary scene configuration")
	configPath := runCmd.String("c", "config", &argparse.Options{Default: "-", Help: "configuration file, - for stdin"})
	outPath := runCmd.String("o", "output", &argparse.Options{Default: "-", Help: "output stream file, - for stdout"})
	seedFlag := runCmd.String("s", "seed", &argparse.Options{Help: "random seed (env CROWDSIM_SEED)"})
	dbPath := runCmd.String("d", "db", &argparse.Options{Help: "record the run in this SQLite file (env CROWDSIM_DB)"})
	listen := runCmd.String("a", "listen", &argparse.Options{Help: "serve status and frame stream on this address (env CROWDSIM_ADDR)"})
	speed := runCmd.Float("r", "speed", &argparse.Options{Default: 0.0, Help: "pace relative to real time, 0 runs flat out"})

	genCmd := parser.NewCommand("generate", "Generate a corridor scene configuration")
	genOut := genCmd.String("o", "output", &argparse.Options{Required: true, Help: "configuration file to write"})
	genWidth := genCmd.Int("W", "width", &argparse.Options{Default: 200, Help: "grid columns"})
	genHeight := genCmd.Int("H", "height", &argparse.Options{Default: 80, Help: "grid rows"})
	genScale := genCmd.Float("x", "scale", &argparse.Options{Default: 0.05, Help: "meters per grid unit"})
	genSeed := genCmd.Int("s", "seed", &argparse.Options{Default: 0, Help: "noise seed, 0 for random"})
	genMode := genCmd.Selector("m", "mode", []string{"flow", "escape"}, &argparse.Options{Default: "flow"})
	genThreshold := genCmd.Float("t", "threshold", &argparse.Options{Default: 0.6, Help: "pillar noise threshold in [0, 1]"})
	genSources := genCmd.Int("p", "panic-sources", &argparse.Options{Default: 0, Help: "number of panic sources"})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		os.Exit(2)
	}

	setupLogger(*logLevel)

	switch {
	case runCmd.Happened():
		opts := runOptions{
			configPath: *configPath,
			outPath:    *outPath,
			seed:       *seedFlag,
			dbPath:     envDefault(*dbPath, "CROWDSIM_DB"),
			listen:     envDefault(*listen, "CROWDSIM_ADDR"),
			speed:      *speed,
		}
		if err := run(opts); err != nil {
			slog.Error("run failed", "error", err)
			os.Exit(1)
		}
	case genCmd.Happened():
		gc := world.DefaultGenConfig()
		gc.Width = uint16(*genWidth)
		gc.Height = uint16(*genHeight)
		gc.Scale = *genScale
		gc.Seed = int64(*genSeed)
		gc.PillarThreshold = *genThreshold
		gc.PanicSources = *genSources
		if *genMode == "escape" {
			gc.Mode = config.ModeEscape
		}
		if err := generate(gc, *genOut); err != nil {
			slog.Error("generate failed", "error", err)
			os.Exit(1)
		}
	}
}

// setupLogger writes text logs on a terminal and JSON otherwise.
func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func envDefault(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

type runOptions struct {
	configPath string
	outPath    string
	seed       string
	dbPath     string
	listen     string
	speed      float64
}

func run(opts runOptions) error {
	cfg, err := readConfig(opts.configPath)
	if err != nil {
		return err
	}

	seed, err := resolveSeed(opts.seed)
	if err != nil {
		return err
	}

	// ── Output ────────────────────────────────────────────────────────
	out := io.Writer(os.Stdout)
	var outFile *os.File
	if opts.outPath != "-" {
		outFile, err = os.Create(opts.outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer outFile.Close()
		out = outFile
	}
	sink := output.NewMulti(output.NewBinary(out))

	var db *persistence.DB
	if opts.dbPath != "" {
		db, err = persistence.Open(opts.dbPath)
		if err != nil {
			return err
		}
		every := engine.NewTime(cfg.Time.EndTime, cfg.Time.Tick).TicksPerSecond()
		sink.Add("sqlite", persistence.NewRecorder(db, every))
		slog.Info("database opened", "path", opts.dbPath, "every", every)
	}

	if opts.listen != "" {
		srv := api.NewServer(opts.listen, db)
		srv.Start()
		sink.Add("api", srv)
	}

	// ── Simulation ────────────────────────────────────────────────────
	runID := uuid.NewString()
	sim := engine.NewSimulation(cfg, seed, sink)
	if err := sim.Start(runID); err != nil {
		return err
	}

	eng := engine.NewEngine(sim)
	eng.Speed = opts.speed
	eng.OnSecond = func(tick uint64) {
		slog.Debug("progress", "tick", humanize.Comma(int64(tick)), "time", sim.Clock.String(),
			"people", sim.Scene.Population(), "completed", sim.Completed)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if sig, ok := <-sigCh; ok {
			slog.Info("received signal, stopping", "signal", sig)
			eng.Stop()
		}
	}()

	start := time.Now()
	if err := eng.Run(); err != nil {
		return err
	}
	if err := sim.Finish(); err != nil {
		return err
	}

	attrs := []any{"run", runID, "seed", seed, "elapsed", time.Since(start).Round(time.Millisecond)}
	if outFile != nil {
		if fi, err := outFile.Stat(); err == nil {
			attrs = append(attrs, "output", humanize.Bytes(uint64(fi.Size())))
		}
	}
	slog.Info("done", attrs...)
	return nil
}

func readConfig(path string) (config.Config, error) {
	in := io.Reader(os.Stdin)
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		in = f
	}
	cfg, err := config.Decode(bufio.NewReader(in))
	if err != nil {
		return config.Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

// resolveSeed prefers the flag, then CROWDSIM_SEED, then a fresh seed.
func resolveSeed(flag string) (int64, error) {
	if flag == "" {
		flag = os.Getenv("CROWDSIM_SEED")
	}
	if flag != "" {
		seed, err := strconv.ParseInt(flag, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse seed %q: %w", flag, err)
		}
		return seed, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	seed := entropy.Seed(ctx, entropy.NewClient(os.Getenv("CROWDSIM_RANDOM_ORG_KEY")))
	slog.Info("seed chosen", "seed", seed)
	return seed, nil
}

func generate(gc world.GenConfig, path string) error {
	cfg := world.Generate(gc)
	if err := cfg.Validate(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := config.Encode(f, cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	size := int64(0)
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}
	slog.Info("scene generated",
		"path", path,
		"size", humanize.Bytes(uint64(size)),
		"grid", fmt.Sprintf("%dx%d", gc.Width, gc.Height),
		"walls", humanize.Comma(int64(len(cfg.Scene.Walls))),
		"panic_sources", len(cfg.Scene.PanicSources),
		"mode", cfg.Mode.String(),
	)
	return nil
}
