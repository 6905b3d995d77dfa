package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-harvester/pkg/config"
	"github.com/Sriram-PR/site-harvester/pkg/fetch"
	"github.com/Sriram-PR/site-harvester/pkg/models"
	"github.com/Sriram-PR/site-harvester/pkg/orchestrate"
	"github.com/Sriram-PR/site-harvester/pkg/report"
	"github.com/Sriram-PR/site-harvester/pkg/storage"
)

const version = "1.0.0"

// Exit codes
const (
	exitOK          = 0
	exitConfigError = 1
	exitUsageError  = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsageTo(os.Stderr)
		os.Exit(exitUsageError)
	}

	switch os.Args[1] {
	case "crawl":
		runCrawl(os.Args[2:])
	case "scan":
		runScan(os.Args[2:])
	case "interactive":
		runInteractive(os.Args[2:])
	case "report":
		runReport(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "list-targets":
		runListTargets(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("site-harvester %s\n", version)
	case "-h", "--help", "help":
		printUsageTo(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsageTo(os.Stderr)
		os.Exit(exitUsageError)
	}
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `site-harvester - Same-host crawler that harvests emails, sensitive files and PDFs

Usage:
  site-harvester <command> [options]

Commands:
  crawl         Crawl configured targets
  scan          Crawl an ad-hoc seed URL without a config file
  interactive   Prompt for scan parameters, then scan
  report        Render a report from a persisted crawl state
  watch         Re-crawl targets on a schedule and print new artifacts
  validate      Validate configuration file
  list-targets  List available target keys
  mcp-server    Start MCP server for AI tool integration
  version       Show version info

Run 'site-harvester <command> -h' for command-specific help.`)
}

// newFlagSet creates a flag set whose usage output goes to stderr
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: site-harvester %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

// parseOrExit parses args, exiting with the usage code on failure
func parseOrExit(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(exitOK)
		}
		os.Exit(exitUsageError)
	}
}

// setupLogger creates a configured logrus.Logger writing to out.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}

	return log
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. A second
// signal, or a stalled shutdown, forces exit.
func signalContext(parent context.Context, log *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
			cancel()
		case <-ctx.Done():
			return
		}
		select {
		case sig := <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(exitConfigError)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(exitConfigError)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// loadConfig loads the config file and applies global defaults, logging warnings
func loadConfig(path string, log *logrus.Logger) (*config.AppConfig, error) {
	appCfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	warnings, err := appCfg.Validate()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.Debug(w)
	}
	return appCfg, nil
}

// withCrawlTimeout applies the global crawl timeout, if one is configured
func withCrawlTimeout(ctx context.Context, appCfg *config.AppConfig, log *logrus.Logger) (context.Context, context.CancelFunc) {
	if appCfg.GlobalCrawlTimeout > 0 {
		log.Infof("Setting global crawl timeout: %v", appCfg.GlobalCrawlTimeout)
		return context.WithTimeout(ctx, appCfg.GlobalCrawlTimeout)
	}
	return context.WithCancel(ctx)
}

// splitKeys splits a comma-separated flag value
func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// ===========================================================
// == crawl ==
// ===========================================================

type crawlOptions struct {
	configPath string
	targets    []string
	all        bool
	format     string
	output     string
	logLevel   string
	visitedLog string
}

// runCrawl handles the crawl subcommand
func runCrawl(args []string) {
	fs := newFlagSet("crawl", "crawl [options]")
	configFile := fs.String("config", "config.yaml", "Path to config file")
	targets := fs.String("target", "", "Target key, or comma-separated keys for a parallel crawl")
	all := fs.Bool("all", false, "Crawl all configured targets in parallel")
	format := fs.String("format", "", "Report format: text, markdown, html, json, yaml (default: target's report_format)")
	output := fs.String("o", "", "Write the report to this file (a directory when crawling several targets)")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	visitedLog := fs.String("visited-log", "", "Write the sorted visited URLs to this file (single target only)")
	parseOrExit(fs, args)

	opts := crawlOptions{
		configPath: *configFile,
		targets:    splitKeys(*targets),
		all:        *all,
		format:     *format,
		output:     *output,
		logLevel:   *logLevel,
		visitedLog: *visitedLog,
	}
	if !opts.all && len(opts.targets) == 0 {
		fmt.Fprintln(os.Stderr, "Error: one of -target or -all is required")
		fs.Usage()
		os.Exit(exitUsageError)
	}

	log := setupLogger(opts.logLevel, os.Stderr)
	ctx, cancel := signalContext(context.Background(), log)
	code := doCrawl(ctx, opts, log, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// doCrawl runs the configured targets and writes their reports.
// Returns exit code.
func doCrawl(ctx context.Context, opts crawlOptions, log *logrus.Logger, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(opts.configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}
	if opts.format != "" && !config.IsReportFormat(opts.format) {
		fmt.Fprintf(stderr, "Error: unsupported report format '%s'\n", opts.format)
		return exitUsageError
	}

	keys := opts.targets
	if opts.all {
		keys = appCfg.TargetKeys()
	}
	if len(keys) == 0 {
		fmt.Fprintln(stderr, "Error: no targets configured")
		return exitConfigError
	}
	if err := appCfg.ValidateTargetKeys(keys); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}

	ctx, cancel := withCrawlTimeout(ctx, appCfg, log)
	defer cancel()

	if len(keys) == 1 {
		return crawlSingle(ctx, appCfg, keys[0], opts, log, stdout, stderr)
	}

	if opts.visitedLog != "" {
		log.Warn("-visited-log is ignored when crawling several targets")
	}
	results := orchestrate.NewOrchestrator(appCfg, keys, logrus.NewEntry(log)).Run(ctx)
	for _, r := range results {
		if r.Result == nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", r.Key, r.Error)
			continue
		}
		format := reportFormat(opts.format, appCfg.Targets[r.Key])
		if err := emitReport(r.Result, format, multiReportPath(opts.output, r.Key, format), stdout); err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", r.Key, err)
		}
	}
	return exitOK
}

func crawlSingle(ctx context.Context, appCfg *config.AppConfig, key string, opts crawlOptions, log *logrus.Logger, stdout, stderr io.Writer) int {
	entry := logrus.NewEntry(log)
	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, entry.WithField("component", "fetcher"))
	fetcher := fetch.NewFetcher(httpClient, appCfg, entry.WithField("component", "fetcher"))

	targetCfg := appCfg.Targets[key]
	run, err := orchestrate.NewTargetRun(appCfg, key, targetCfg, fetcher, entry)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}

	res, runErr := run.RunThen(ctx, func(store storage.CrawlStore) {
		if opts.visitedLog == "" {
			return
		}
		if err := storage.WriteVisitedLog(store, opts.visitedLog); err != nil {
			log.Errorf("Failed to write visited log: %v", err)
		} else {
			log.Infof("Visited URLs written to %s", opts.visitedLog)
		}
	})
	if runErr != nil {
		log.Warnf("Crawl ended early: %v", runErr)
		if res == nil {
			return exitConfigError
		}
	}

	if err := emitReport(res, reportFormat(opts.format, targetCfg), opts.output, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}
	return exitOK
}

// reportFormat resolves the -format flag against the target's report_format
func reportFormat(flagFormat string, targetCfg config.TargetConfig) string {
	if flagFormat != "" {
		return flagFormat
	}
	return config.GetEffectiveReportFormat(targetCfg)
}

var formatExtensions = map[string]string{
	"text":     "txt",
	"markdown": "md",
	"html":     "html",
	"json":     "json",
	"yaml":     "yaml",
}

// multiReportPath places one report per target under dir, or returns "" for stdout
func multiReportPath(dir, key, format string) string {
	if dir == "" {
		return ""
	}
	ext, ok := formatExtensions[strings.ToLower(format)]
	if !ok {
		ext = "txt"
	}
	return filepath.Join(dir, fmt.Sprintf("%s.%s", key, ext))
}

// emitReport renders res to path, or to stdout when path is empty
func emitReport(res *models.CrawlResult, format, path string, stdout io.Writer) error {
	reporter, err := report.New(format)
	if err != nil {
		return err
	}
	if path == "" {
		return reporter.Render(stdout, res)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := reporter.Render(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ===========================================================
// == report ==
// ===========================================================

// runReport handles the report subcommand
func runReport(args []string) {
	fs := newFlagSet("report", "report [options]")
	configFile := fs.String("config", "config.yaml", "Path to config file")
	target := fs.String("target", "", "Target key whose persisted state to report (required)")
	format := fs.String("format", "", "Report format (default: target's report_format)")
	output := fs.String("o", "", "Write the report to this file")
	parseOrExit(fs, args)

	if *target == "" {
		fmt.Fprintln(os.Stderr, "Error: -target is required")
		fs.Usage()
		os.Exit(exitUsageError)
	}

	log := setupLogger("warn", os.Stderr)
	os.Exit(doReport(*configFile, *target, *format, *output, log, os.Stdout, os.Stderr))
}

// doReport renders the last persisted crawl of target. Returns exit code.
func doReport(configPath, target, format, output string, log *logrus.Logger, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}
	targetCfg, ok := appCfg.Targets[target]
	if !ok {
		fmt.Fprintf(stderr, "Error: target '%s' not found in config\n", target)
		return exitConfigError
	}

	dbPath := storage.DBPath(appCfg.StateDir, target)
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(stderr, "Error: no persisted state for target '%s' at %s (enable persist_state and crawl first)\n", target, dbPath)
		return exitConfigError
	}

	store, err := storage.NewBadgerStore(appCfg.StateDir, target, false, logrus.NewEntry(log).WithField("component", "store"))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}
	defer store.Close()

	res, err := store.LoadResult()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}

	if err := emitReport(res, reportFormat(format, targetCfg), output, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}
	return exitOK
}

// ===========================================================
// == validate / list-targets ==
// ===========================================================

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := newFlagSet("validate", "validate [options]")
	configFile := fs.String("config", "config.yaml", "Path to config file")
	target := fs.String("target", "", "Target key to validate (optional, validates all if empty)")
	parseOrExit(fs, args)

	os.Exit(doValidate(*configFile, *target, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath, target string, stdout, stderr io.Writer) int {
	appCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitConfigError
	}

	keys := appCfg.TargetKeys()
	if target != "" {
		if _, ok := appCfg.Targets[target]; !ok {
			fmt.Fprintf(stderr, "Error: target '%s' not found in config\n", target)
			return exitConfigError
		}
		keys = []string{target}
	}

	hasError := false
	for _, key := range keys {
		targetCfg := appCfg.Targets[key]
		targetWarnings, err := targetCfg.Validate()
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			hasError = true
			continue
		}
		for _, w := range targetWarnings {
			fmt.Fprintf(stdout, "WARN: [%s] %s\n", key, w)
		}
		fmt.Fprintf(stdout, "OK: [%s]\n", key)
	}
	if hasError {
		return exitConfigError
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return exitOK
}

// runListTargets handles the list-targets subcommand
func runListTargets(args []string) {
	fs := newFlagSet("list-targets", "list-targets [options]")
	configFile := fs.String("config", "config.yaml", "Path to config file")
	parseOrExit(fs, args)

	os.Exit(doListTargets(*configFile, os.Stdout, os.Stderr))
}

// doListTargets lists targets and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doListTargets(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}

	fmt.Fprintf(stdout, "Targets in %s:\n\n", configPath)
	for _, key := range appCfg.TargetKeys() {
		target := appCfg.Targets[key]
		fmt.Fprintf(stdout, "  %s\n", key)
		fmt.Fprintf(stdout, "    Seed: %s\n", target.SeedURL)
		fmt.Fprintf(stdout, "    Classifiers: %s\n", strings.Join(config.GetEffectiveClassifiers(target), ", "))
		fmt.Fprintf(stdout, "    Max Depth: %d\n", config.GetEffectiveMaxDepth(target))
		if target.MaxPages > 0 {
			fmt.Fprintf(stdout, "    Max Pages: %d\n", target.MaxPages)
		}
		if config.GetEffectivePersistState(target, *appCfg) {
			fmt.Fprintln(stdout, "    Persisted: yes")
		}
		fmt.Fprintln(stdout)
	}
	return exitOK
}
