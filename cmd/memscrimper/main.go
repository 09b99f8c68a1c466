// Command memscrimper is the CLI entry point for the codec (spec.md
// §6.2), grounded on dargueta-disko's use of github.com/urfave/cli/v2
// for a small set of positional-argument subcommands, and on
// memscrimper.cpp's preflight checks and exit-code discipline.
package main

import (
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mbrengel/memscrimper/internal/artifact"
	"github.com/mbrengel/memscrimper/internal/config"
	"github.com/mbrengel/memscrimper/internal/innercompress"
	"github.com/mbrengel/memscrimper/internal/logging"
	"github.com/mbrengel/memscrimper/internal/pagestore"
	"github.com/mbrengel/memscrimper/internal/service"
)

func main() {
	app := &cli.App{
		Name:  "memscrimper",
		Usage: "compress and decompress memory snapshots against a reference dump",
		Commands: []*cli.Command{
			compressCommand,
			decompressCommand,
			serviceCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log := logging.Logger()
		log.Error().Err(err).Msg("memscrimper failed")
		os.Exit(1)
	}
}

var compressCommand = &cli.Command{
	Name:      "c",
	Usage:     "compress a source dump against a reference dump",
	ArgsUsage: "<ref> <src> <out> <pagesize> <inner> <diffing 0|1> <intra 0|1>",
	Action:    runCompress,
}

var decompressCommand = &cli.Command{
	Name:      "d",
	Usage:     "decompress an artifact back into a dump file",
	ArgsUsage: "<in> <out>",
	Action:    runDecompress,
}

var serviceCommand = &cli.Command{
	Name:      "s",
	Usage:     "run as a long-lived service over a Unix domain socket",
	ArgsUsage: "<thread_count> <socket_path>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "TOML configuration file; positional arguments override its fields",
		},
	},
	Action: runService,
}

func runCompress(c *cli.Context) error {
	if c.Args().Len() != 7 {
		return cli.Exit("invalid number of arguments", 1)
	}

	refPath := c.Args().Get(0)
	srcPath := c.Args().Get(1)
	outPath := c.Args().Get(2)

	pageSize, err := strconv.ParseUint(c.Args().Get(3), 10, 32)
	if err != nil {
		return cli.Exit("invalid pagesize: "+err.Error(), 1)
	}

	inner, err := innercompress.ParseToken(normalizeInnerToken(c.Args().Get(4)))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	diffing := c.Args().Get(5) == "1"
	intra := c.Args().Get(6) == "1"

	if err := preflightCompress(refPath, srcPath, outPath); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ref, err := pagestore.Load(refPath, uint32(pageSize))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	src, err := pagestore.Load(srcPath, uint32(pageSize))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	log := logging.Logger()
	log.Info().
		Str("ref", refPath).
		Str("src", srcPath).
		Str("out", outPath).
		Uint64("pagesize", pageSize).
		Bool("diffing", diffing).
		Bool("intra", intra).
		Msg("compressing")

	if err := artifact.Compress(ref, src, outPath, artifact.Options{
		Inner:   inner,
		Diffing: diffing,
		Intra:   intra,
	}); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return nil
}

// normalizeInnerToken maps the CLI's "0" spelling for no inner
// compressor (spec.md §6.2) onto innercompress's empty-string token.
func normalizeInnerToken(raw string) string {
	if raw == "0" {
		return ""
	}
	return raw
}

func runDecompress(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit("invalid number of arguments", 1)
	}

	inPath := c.Args().Get(0)
	outPath := c.Args().Get(1)

	if err := preflightDecompress(inPath, outPath); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	log := logging.Logger()
	log.Info().Str("in", inPath).Str("out", outPath).Msg("decompressing")

	if err := artifact.Decompress(inPath, outPath, pagestore.Load); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return nil
}

func runService(c *cli.Context) error {
	cfg := config.DefaultService()

	if path := c.String("config"); path != "" {
		loaded, err := config.LoadService(path)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		cfg = loaded
	}

	if c.Args().Len() == 2 {
		threadCount, err := strconv.ParseUint(c.Args().Get(0), 10, 32)
		if err != nil {
			return cli.Exit("invalid thread_count: "+err.Error(), 1)
		}
		cfg.ThreadCount = uint32(threadCount)
		cfg.SocketPath = c.Args().Get(1)
	} else if c.Args().Len() != 0 {
		return cli.Exit("invalid number of arguments", 1)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	logging.SetLevel(level)

	srv := service.New(int(cfg.ThreadCount))

	if err := srv.Listen(cfg.SocketPath); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return nil
}

// preflightCompress mirrors memscrimper.cpp's and compress_interdedup.py's
// checks, run before any artifact file handle is opened: the source and
// reference dumps must exist, and the target must not already exist as
// a non-empty file.
func preflightCompress(refPath, srcPath, outPath string) error {
	if !fileExists(refPath) {
		return cli.Exit("reference dump does not exist: "+refPath, 1)
	}

	if !fileExists(srcPath) {
		return cli.Exit("source dump does not exist: "+srcPath, 1)
	}

	if nonEmptyFileExists(outPath) {
		return cli.Exit("output file already exists and is not empty: "+outPath, 1)
	}

	return nil
}

func preflightDecompress(inPath, outPath string) error {
	if !fileExists(inPath) {
		return cli.Exit("input artifact does not exist: "+inPath, 1)
	}

	if nonEmptyFileExists(outPath) {
		return cli.Exit("output file already exists and is not empty: "+outPath, 1)
	}

	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func nonEmptyFileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() > 0
}
