package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-harvester/pkg/watch"
)

// runWatch handles the watch subcommand
func runWatch(args []string) {
	fs := newFlagSet("watch", "watch [options]")
	configFile := fs.String("config", "config.yaml", "Path to config file")
	targets := fs.String("target", "", "Comma-separated target keys to watch")
	all := fs.Bool("all", false, "Watch all configured targets")
	interval := fs.String("interval", "24h", "Re-crawl interval (e.g. 30m, 6h, 7d)")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	parseOrExit(fs, args)

	keys := splitKeys(*targets)
	if !*all && len(keys) == 0 {
		fmt.Fprintln(os.Stderr, "Error: one of -target or -all is required")
		fs.Usage()
		os.Exit(exitUsageError)
	}

	log := setupLogger(*logLevel, os.Stderr)
	ctx, cancel := signalContext(context.Background(), log)
	code := doWatch(ctx, *configFile, keys, *all, *interval, log, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// doWatch re-crawls the targets every interval until ctx is done, printing
// newly found artifacts to stdout. Returns exit code.
func doWatch(ctx context.Context, configPath string, keys []string, all bool, intervalStr string, log *logrus.Logger, stdout, stderr io.Writer) int {
	interval, err := watch.ParseInterval(intervalStr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsageError
	}

	appCfg, err := loadConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}
	if all {
		keys = appCfg.TargetKeys()
	}
	if err := appCfg.ValidateTargetKeys(keys); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}
	for _, key := range keys {
		targetCfg := appCfg.Targets[key]
		if _, err := targetCfg.Validate(); err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			return exitConfigError
		}
	}

	scheduler := watch.NewScheduler(appCfg, keys, interval, logrus.NewEntry(log))
	scheduler.OnChange = func(c watch.Change) {
		for _, a := range c.NewArtifacts {
			fmt.Fprintf(stdout, "[%s] new %s: %s\n", c.Target, a.Kind, a.Value)
		}
	}
	if err := scheduler.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}
	return exitOK
}
