package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-harvester/pkg/classify"
	"github.com/Sriram-PR/site-harvester/pkg/config"
	"github.com/Sriram-PR/site-harvester/pkg/fetch"
	"github.com/Sriram-PR/site-harvester/pkg/orchestrate"
)

const (
	scanTargetKey       = "scan"
	defaultScanDelaySec = 0.5
)

// scanOptions holds the parameters of an ad-hoc crawl
type scanOptions struct {
	seed          string
	classifiers   []string
	maxDepth      int
	maxPages      int
	delaySeconds  float64
	workers       int
	respectRobots bool
	format        string
	output        string
	logLevel      string
}

func defaultScanOptions() scanOptions {
	return scanOptions{
		classifiers:   append([]string(nil), config.DefaultClassifiers...),
		maxDepth:      config.DefaultMaxDepth,
		delaySeconds:  defaultScanDelaySec,
		workers:       1,
		respectRobots: true,
		format:        config.DefaultReportFormat,
		logLevel:      "info",
	}
}

// targetConfig turns the options into a validated target
func (o scanOptions) targetConfig() (config.TargetConfig, []string, error) {
	depth := o.maxDepth
	respect := o.respectRobots
	targetCfg := config.TargetConfig{
		SeedURL:       o.seed,
		Classifiers:   o.classifiers,
		MaxDepth:      &depth,
		MaxPages:      o.maxPages,
		Delay:         time.Duration(o.delaySeconds * float64(time.Second)),
		NumWorkers:    o.workers,
		RespectRobots: &respect,
		ReportFormat:  o.format,
	}
	warnings, err := targetCfg.Validate()
	return targetCfg, warnings, err
}

// runScan handles the scan subcommand
func runScan(args []string) {
	defaults := defaultScanOptions()
	fs := newFlagSet("scan", "scan -url <seed> [options]")
	seed := fs.String("url", "", "Seed URL; https:// is assumed when no scheme is given (required)")
	classifiers := fs.String("classifiers", strings.Join(defaults.classifiers, ","), fmt.Sprintf("Comma-separated classifiers (%s)", strings.Join(classify.Names(), ", ")))
	maxDepth := fs.Int("max-depth", defaults.maxDepth, "Maximum link depth from the seed")
	maxPages := fs.Int("max-pages", 0, "Maximum pages to visit, 0 for unlimited")
	delay := fs.Float64("delay", defaults.delaySeconds, "Politeness delay in seconds after each fetch")
	workers := fs.Int("workers", defaults.workers, "Number of concurrent workers")
	noRobots := fs.Bool("ignore-robots", false, "Do not load or honor robots.txt")
	format := fs.String("format", defaults.format, "Report format: text, markdown, html, json, yaml")
	output := fs.String("o", "", "Write the report to this file")
	logLevel := fs.String("log-level", defaults.logLevel, "Log level (debug, info, warn, error)")
	parseOrExit(fs, args)

	if strings.TrimSpace(*seed) == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		fs.Usage()
		os.Exit(exitUsageError)
	}

	opts := scanOptions{
		seed:          *seed,
		classifiers:   splitKeys(strings.ToLower(*classifiers)),
		maxDepth:      *maxDepth,
		maxPages:      *maxPages,
		delaySeconds:  *delay,
		workers:       *workers,
		respectRobots: !*noRobots,
		format:        *format,
		output:        *output,
		logLevel:      *logLevel,
	}

	log := setupLogger(opts.logLevel, os.Stderr)
	ctx, cancel := signalContext(context.Background(), log)
	code := doScan(ctx, opts, log, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// doScan crawls the seed with an in-memory store and writes the report.
// Returns exit code.
func doScan(ctx context.Context, opts scanOptions, log *logrus.Logger, stdout, stderr io.Writer) int {
	if !config.IsReportFormat(opts.format) {
		fmt.Fprintf(stderr, "Error: unsupported report format '%s'\n", opts.format)
		return exitUsageError
	}
	targetCfg, warnings, err := opts.targetConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsageError
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	appCfg := &config.AppConfig{Targets: map[string]config.TargetConfig{scanTargetKey: targetCfg}}
	if _, err := appCfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}

	entry := logrus.NewEntry(log)
	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, entry.WithField("component", "fetcher"))
	fetcher := fetch.NewFetcher(httpClient, appCfg, entry.WithField("component", "fetcher"))

	run, err := orchestrate.NewTargetRun(appCfg, scanTargetKey, targetCfg, fetcher, entry)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}

	res, runErr := run.Run(ctx)
	if runErr != nil {
		log.Warnf("Scan ended early: %v", runErr)
		if res == nil {
			return exitConfigError
		}
	}

	if err := emitReport(res, targetCfg.ReportFormat, opts.output, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}
	return exitOK
}

// ===========================================================
// == interactive ==
// ===========================================================

// runInteractive handles the interactive subcommand
func runInteractive(args []string) {
	fs := newFlagSet("interactive", "interactive [options]")
	format := fs.String("format", config.DefaultReportFormat, "Report format: text, markdown, html, json, yaml")
	output := fs.String("o", "", "Write the report to this file")
	logLevel := fs.String("log-level", "warn", "Log level (debug, info, warn, error)")
	parseOrExit(fs, args)

	opts, err := promptScanOptions(os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitUsageError)
	}
	opts.format, opts.output, opts.logLevel = *format, *output, *logLevel

	log := setupLogger(opts.logLevel, os.Stderr)
	ctx, cancel := signalContext(context.Background(), log)
	code := doScan(ctx, opts, log, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// errNoSeed is returned when the prompt input ends before a seed is given
var errNoSeed = errors.New("no seed URL entered")

// promptScanOptions asks for the scan parameters on in, writing prompts to out.
// Invalid answers fall back to the default with a notice.
func promptScanOptions(in io.Reader, out io.Writer) (scanOptions, error) {
	opts := defaultScanOptions()
	reader := bufio.NewReader(in)

	for opts.seed == "" {
		line, err := ask(reader, out, "Enter the starting URL (e.g., https://example.com): ")
		if line != "" {
			if !strings.HasPrefix(line, "http://") && !strings.HasPrefix(line, "https://") {
				line = "https://" + line
			}
			opts.seed = line
			break
		}
		if err != nil {
			return opts, errNoSeed
		}
	}

	answer, _ := ask(reader, out, fmt.Sprintf("Classifiers, comma-separated (%s) [email]: ", strings.Join(classify.Names(), ", ")))
	if answer != "" {
		names := splitKeys(strings.ToLower(answer))
		valid := len(names) > 0
		for _, n := range names {
			if !classify.IsKnown(n) {
				valid = false
				break
			}
		}
		if valid {
			opts.classifiers = names
		} else {
			fmt.Fprintf(out, "Unknown classifier in '%s', using email\n", answer)
		}
	}

	answer, _ = ask(reader, out, fmt.Sprintf("Enter maximum crawl depth (default %d): ", config.DefaultMaxDepth))
	opts.maxDepth = askInt(out, answer, opts.maxDepth)

	answer, _ = ask(reader, out, "Enter maximum number of pages to visit (default 0 = unlimited): ")
	opts.maxPages = askInt(out, answer, opts.maxPages)

	answer, _ = ask(reader, out, fmt.Sprintf("Enter delay between requests in seconds (default %.1f): ", defaultScanDelaySec))
	if answer != "" {
		if v, err := strconv.ParseFloat(answer, 64); err == nil && v >= 0 {
			opts.delaySeconds = v
		} else {
			fmt.Fprintf(out, "Invalid delay '%s', using %.1f\n", answer, defaultScanDelaySec)
		}
	}

	return opts, nil
}

// ask prints prompt and reads one trimmed line
func ask(reader *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := reader.ReadString('\n')
	return strings.TrimSpace(line), err
}

// askInt parses a non-negative integer answer, falling back to def
func askInt(out io.Writer, answer string, def int) int {
	if answer == "" {
		return def
	}
	v, err := strconv.Atoi(answer)
	if err != nil || v < 0 {
		fmt.Fprintf(out, "Invalid number '%s', using %d\n", answer, def)
		return def
	}
	return v
}
