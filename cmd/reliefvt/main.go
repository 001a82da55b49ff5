package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/beetlebugorg/reliefvt/internal/archive"
	"github.com/beetlebugorg/reliefvt/internal/asciigrid"
	"github.com/beetlebugorg/reliefvt/internal/logging"
	"github.com/beetlebugorg/reliefvt/pkg/relief"
	"github.com/rs/zerolog"
)

const version = "0.1.0"

const (
	exitOK      = 0
	exitFailed  = 1
	exitPartial = 2
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(exitFailed)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "build":
		os.Exit(handleBuild(args))
	case "edges":
		os.Exit(handleEdges(args))
	case "config":
		os.Exit(handleConfig(args))
	case "version":
		fmt.Printf("reliefvt version %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(exitFailed)
	}
}

func printUsage() {
	fmt.Println(`reliefvt - raster relief to zoom-banded vector tiles

Usage: reliefvt <command> [options]

Commands:
  build      Quantize a raster and write a tile archive
  edges      List tiles that touch the raster boundary
  config     Print the effective configuration as TOML
  version    Show reliefvt version
  help       Show this help message

Build Flags:
  -config <file>       TOML configuration (default: built-in)
  -input <file>        ESRI ASCII grid, optionally gzipped (required)
  -out <path>          Output path (overrides [archive] path)
  -format <name>       mbtiles, pmtiles or dir (default: from path)
  -log-level <level>   trace, debug, info, warn, error

Edges Flags:
  -config <file>       TOML configuration, used for the tile grid
  -input <file>        ESRI ASCII grid (required)
  -zoom <a-b>          Zoom range, e.g. 0-14 (default: config range)

Exit status is 2 when the archive was written but some bands failed.

Environment:
  RELIEFVT_LOG_LEVEL, RELIEFVT_LOG_FORMAT (console|json),
  RELIEFVT_LOG_TIMESTAMP, RELIEFVT_LOG_NOCOLOR`)
}

func loadConfig(path string) (relief.Config, error) {
	if path == "" {
		return relief.DefaultConfig(), nil
	}
	return relief.LoadConfig(path)
}

func handleBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", "", "TOML configuration file")
	input := fs.String("input", "", "ESRI ASCII grid")
	out := fs.String("out", "", "output path")
	format := fs.String("format", "", "archive format")
	level := fs.String("log-level", "", "log level")
	fs.Parse(args)

	logger := logging.ConfigureRuntime("reliefvt")
	if *level != "" {
		lvl, ok := logging.ParseLevel(*level)
		if !ok {
			fmt.Fprintf(os.Stderr, "reliefvt: unknown log level %q\n", *level)
			return exitFailed
		}
		logger = logger.Level(lvl)
	}

	if *input == "" {
		fmt.Fprintln(os.Stderr, "reliefvt: -input is required")
		return exitFailed
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reliefvt: %v\n", err)
		return exitFailed
	}
	if *out != "" {
		cfg.Archive.Path = *out
		if *format == "" {
			cfg.Archive.Format = ""
		}
	}
	if *format != "" {
		cfg.Archive.Format = strings.ToLower(*format)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := build(ctx, cfg, *input, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reliefvt: %v\n", err)
	}
	return code
}

func build(ctx context.Context, cfg relief.Config, input string, logger zerolog.Logger) (int, error) {
	start := time.Now()

	sink, err := archive.NewSink(cfg.Archive.Format, cfg.Archive.Path, logger)
	if err != nil {
		return exitFailed, err
	}

	grid, err := asciigrid.ReadFile(input)
	if err != nil {
		return exitFailed, err
	}
	logger.Info().
		Str("input", input).
		Int("width", grid.Width).
		Int("height", grid.Height).
		Msg("raster loaded")

	planner, err := cfg.Planner()
	if err != nil {
		return exitFailed, err
	}
	p, err := relief.New(planner, cfg.Options(logger))
	if err != nil {
		return exitFailed, err
	}

	res, err := p.Run(ctx, grid)
	if res != nil {
		reportBands(os.Stderr, res, logger)
	}
	if err != nil {
		return exitFailed, err
	}

	if err := sink.Commit(ctx, res.Archive); err != nil {
		var ioErr *relief.IOError
		if errors.As(err, &ioErr) && ioErr.Retryable() {
			logger.Warn().Err(err).Msg("commit failed, safe to retry")
		}
		return exitFailed, err
	}

	logger.Info().
		Str("path", sink.Path()).
		Int("tiles", res.Archive.Len()).
		Bool("partial", res.Partial).
		Dur("elapsed", time.Since(start)).
		Msg("archive written")

	if res.Partial {
		return exitPartial, nil
	}
	return exitOK, nil
}

func reportBands(w io.Writer, res *relief.Result, logger zerolog.Logger) {
	for _, b := range res.Bands {
		if b.OK() {
			fmt.Fprintf(w, "%s: %d features, %d tiles, %d rings reverted\n",
				b.Band, b.Features, b.Tiles.Tiles, len(b.Topology))
			continue
		}
		fmt.Fprintf(w, "%s: FAILED: %v\n", b.Band, b.Err)
	}
	for _, te := range res.Topology() {
		logger.Debug().Err(te).Msg("ring kept as traced")
	}
}

func handleEdges(args []string) int {
	fs := flag.NewFlagSet("edges", flag.ExitOnError)
	configPath := fs.String("config", "", "TOML configuration file")
	input := fs.String("input", "", "ESRI ASCII grid")
	zoom := fs.String("zoom", "", "zoom range a-b")
	fs.Parse(args)

	if *input == "" {
		fmt.Fprintln(os.Stderr, "reliefvt: -input is required")
		return exitFailed
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reliefvt: %v\n", err)
		return exitFailed
	}
	zmin, zmax := cfg.MinZoom, cfg.MaxZoom
	if *zoom != "" {
		if zmin, zmax, err = parseZoomRange(*zoom); err != nil {
			fmt.Fprintf(os.Stderr, "reliefvt: %v\n", err)
			return exitFailed
		}
	}

	grid, err := asciigrid.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reliefvt: %v\n", err)
		return exitFailed
	}

	coords, err := relief.EdgeTiles(cfg.Tiles.Grid, grid.Transform, grid.Width, grid.Height, zmin, zmax)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reliefvt: %v\n", err)
		return exitFailed
	}
	for _, c := range coords {
		fmt.Println(c)
	}
	return exitOK
}

func handleConfig(args []string) int {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "", "TOML configuration file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reliefvt: %v\n", err)
		return exitFailed
	}
	if err := cfg.Encode(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "reliefvt: %v\n", err)
		return exitFailed
	}
	return exitOK
}

// parseZoomRange accepts "z" or "a-b".
func parseZoomRange(s string) (int, int, error) {
	lo, hi, found := strings.Cut(strings.TrimSpace(s), "-")
	zmin, err := strconv.Atoi(lo)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid zoom range %q", s)
	}
	if !found {
		return zmin, zmin, nil
	}
	zmax, err := strconv.Atoi(hi)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid zoom range %q", s)
	}
	return zmin, zmax, nil
}
