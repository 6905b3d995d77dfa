package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-harvester/pkg/mcp"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := newFlagSet("mcp-server", "mcp-server [options]")
	configFile := fs.String("config", "config.yaml", "Path to config file")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: site-harvester mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport
  site-harvester mcp-server -config config.yaml

  # Start with SSE transport on port 8080
  site-harvester mcp-server -config config.yaml -transport sse -port 8080

Available MCP Tools:
  list_targets    List all configured targets
  crawl_target    Start a background crawl of a target
  scan_url        Start a background crawl of an ad-hoc URL
  get_job_status  Progress of a crawl job
  get_job_result  Result of a finished crawl job
  cancel_job      Cancel a running crawl job
  classify_url    Classify a single URL
`)
	}
	parseOrExit(fs, args)

	os.Exit(doMcpServer(*configFile, *transport, *port, *logLevel, os.Stderr))
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(configPath, transport string, port int, logLevel string, stderr io.Writer) int {
	if transport != "stdio" && transport != "sse" {
		fmt.Fprintf(stderr, "Error: unknown transport '%s' (supported: stdio, sse)\n", transport)
		return exitUsageError
	}

	// MCP protocol uses stdout, logs go to stderr
	log := setupLogger(logLevel, stderr)

	appCfg, err := loadConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return exitConfigError
	}

	server, err := mcp.NewServer(&mcp.ServerConfig{
		AppConfig:  appCfg,
		ConfigPath: configPath,
		Transport:  transport,
		Port:       port,
		Logger:     log,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return exitConfigError
	}
	defer server.Shutdown(context.Background())

	log.WithFields(logrus.Fields{"transport": transport, "targets": len(appCfg.Targets)}).Info("Starting MCP server")

	if err := server.Run(); err != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", err)
		return exitConfigError
	}

	return exitOK
}
