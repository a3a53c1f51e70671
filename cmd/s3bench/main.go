// Command s3bench benchmarks S3-compatible object stores against a
// deterministic local dataset.
//
// Subcommands:
//
//	generate   build or reuse the dataset and write its manifest
//	run        execute the benchmark against configured providers
//	aggregate  summarize recorded event streams into CSV tables
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"s3bench/internal/aggregate"
	"s3bench/internal/config"
	"s3bench/internal/credentials"
	"s3bench/internal/dataset"
	"s3bench/internal/logging"
	"s3bench/internal/metrics"
	"s3bench/internal/runner"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown handler
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	var err error
	switch os.Args[1] {
	case "generate":
		err = cmdGenerate(ctx, os.Args[2:])
	case "run":
		err = cmdRun(ctx, os.Args[2:])
	case "aggregate":
		err = cmdAggregate(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("interrupted")
			os.Exit(130)
		}
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: s3bench <command> [flags]

commands:
  generate    build the deterministic dataset and manifest
  run         run the benchmark against configured providers
  aggregate   summarize event streams into metric CSVs

run 's3bench <command> -h' for command flags`)
}

// setup loads configuration and initializes logging and metrics.
func setup(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logging.Setup(logging.Config{Format: cfg.Logging.Format, Level: cfg.Logging.Level})
	metrics.Init("s3bench")
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}
	return cfg, nil
}

func cmdGenerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "configuration file")
	force := fs.Bool("force", false, "regenerate even when a matching dataset exists")
	progress := fs.Bool("progress", true, "show a progress bar")
	fs.Parse(args)

	cfg, err := setup(*configPath)
	if err != nil {
		return err
	}

	gen := dataset.NewGenerator(cfg.Dataset, cfg.Dataset.DataPath)
	gen.Progress = *progress

	manifest, err := gen.Generate(ctx, *force)
	if err != nil {
		return err
	}
	if m := metrics.Get(); m != nil {
		m.SetDataset(len(manifest.Files), manifest.TotalBytes())
	}

	color.Green("dataset ready: %d files, %d bytes, manifest at %s",
		len(manifest.Files), manifest.TotalBytes(), dataset.ManifestPath(cfg.Dataset.DataPath))
	return nil
}

func cmdRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "configuration file")
	provider := fs.String("provider", "", "run only this provider id")
	profile := fs.String("profile", "", "AWS shared-credentials profile override")
	envFile := fs.String("env-file", "", "dotenv file to load before resolving credentials")
	fs.Parse(args)

	cfg, err := setup(*configPath)
	if err != nil {
		return err
	}

	resolver := credentials.NewResolver(*envFile)
	if err := runner.RunProviders(ctx, cfg, resolver, *provider, *profile); err != nil {
		return err
	}

	color.Green("benchmark complete; event streams written under %s", cfg.Dataset.DataPath)
	return nil
}

func cmdAggregate(args []string) error {
	fs := flag.NewFlagSet("aggregate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "configuration file")
	dataPath := fs.String("data", "", "dataset directory override")
	writeParquet := fs.Bool("parquet", false, "also export raw events as parquet")
	fs.Parse(args)

	cfg, err := setup(*configPath)
	if err != nil {
		return err
	}

	root := cfg.Dataset.DataPath
	if *dataPath != "" {
		root = *dataPath
	}

	result, err := aggregate.Process(root, aggregate.Options{WriteParquet: *writeParquet})
	if err != nil {
		return err
	}

	printSummary(result)
	return nil
}

// printSummary renders the consolidated table for interactive use. The CSVs
// are the authoritative output.
func printSummary(result *aggregate.Result) {
	bold := color.New(color.Bold)

	bold.Printf("manifest sha256: ")
	fmt.Println(result.ManifestSHA256)

	bold.Printf("%-12s %-8s %10s %10s %10s %10s %10s %8s %8s\n",
		"provider", "op", "p50_ms", "p95_ms", "p99_ms", "avg_ms", "MBps", "err_pct", "samples")
	for _, row := range result.Consolidated {
		line := fmt.Sprintf("%-12s %-8s %10.2f %10.2f %10.2f %10.2f %10.2f %8.2f %8d",
			row.Provider, row.Op, row.P50MS, row.P95MS, row.P99MS, row.AvgMS,
			row.MBps, row.ErrorRatePct, row.Samples)
		if row.ErrorRatePct > 0 {
			color.Yellow(line)
		} else {
			fmt.Println(line)
		}
	}

	for _, provider := range result.Providers {
		fmt.Printf("wrote %s\n", result.ProviderTables[provider])
	}
	fmt.Printf("wrote %s\n", result.ConsolidatedPath)
}
