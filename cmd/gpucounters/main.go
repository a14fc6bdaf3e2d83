// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sustainable-computing-io/gpucounters/config"
	"github.com/sustainable-computing-io/gpucounters/internal/logger"
	"github.com/sustainable-computing-io/gpucounters/internal/version"
)

const appName = "gpucounters"

func main() {
	app := kingpin.New(appName, "Computes derived GPU performance counters from raw hardware counter samples.")
	app.Version(version.Info().String())
	app.HelpFlag.Short('h')

	configFiles := app.Flag("config.file",
		"Path to YAML configuration file; repeat to layer files, later ones win").Strings()
	updateConfig := config.RegisterFlags(app)

	serveCmd := app.Command("serve", "Compute counters from the samples file and export them").Default()
	listCmd := app.Command("list", "Print the public counters of the catalog and their formula status")

	evalCmd := app.Command("eval", "Evaluate a single postfix formula")
	evalFormula := evalCmd.Arg("formula", `Postfix formula, e.g. "0 1 / (100) *"`).Required().String()
	evalType := evalCmd.Flag("type", "Result type of the formula").Short('t').Default("float64").
		Enum("float32", "float64", "uint32", "uint64", "int32", "int64")
	evalSamples := evalCmd.Flag("sample", "Raw sample as type:value, in formula index order; repeatable").
		Short('s').Strings()

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	var skips []config.SkipValidation
	switch cmd {
	case listCmd.FullCommand():
		skips = []config.SkipValidation{config.SkipSamplesValidation}
	case evalCmd.FullCommand():
		skips = []config.SkipValidation{config.SkipCountersValidation, config.SkipSamplesValidation}
	}

	cfg, err := loadConfig(*configFiles, updateConfig, skips)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	switch cmd {
	case serveCmd.FullCommand():
		logVersionInfo(log)
		printConfigInfo(log, cfg)
		err = serve(log, cfg)
	case listCmd.FullCommand():
		err = list(os.Stdout, log, cfg)
	case evalCmd.FullCommand():
		err = eval(os.Stdout, cfg, *evalFormula, *evalType, *evalSamples)
	}

	if err != nil {
		log.Error("gpucounters terminated with an error", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// loadConfig layers the config files over the defaults, then applies the
// explicitly set flags. Input file checks run once, after the flags.
func loadConfig(files []string, updateConfig config.ConfigUpdaterFn, skips []config.SkipValidation) (*config.Config, error) {
	cfg, err := (&config.Builder{}).
		MergeFiles(files...).
		Build(config.SkipCountersValidation, config.SkipSamplesValidation)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := updateConfig(cfg, skips...); err != nil {
		return nil, fmt.Errorf("failed to apply command line flags: %w", err)
	}
	return cfg, nil
}

func logVersionInfo(logger *slog.Logger) {
	v := version.Info()
	logger.Info("gpucounters version information",
		"version", v.Version,
		"buildTime", v.BuildTime,
		"gitBranch", v.GitBranch,
		"gitCommit", v.GitCommit,
		"goVersion", v.GoVersion,
		"goOS", v.GoOS,
		"goArch", v.GoArch,
	)
}

func printConfigInfo(logger *slog.Logger, cfg *config.Config) {
	if !logger.Enabled(context.Background(), slog.LevelInfo) || cfg.Log.Format == "json" {
		return
	}

	fmt.Fprintf(os.Stderr, `
Configuration
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
%s
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`, cfg)
}
