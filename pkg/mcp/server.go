package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-harvester/pkg/classify"
	"github.com/Sriram-PR/site-harvester/pkg/config"
	"github.com/Sriram-PR/site-harvester/pkg/fetch"
)

const (
	serverName    = "site-harvester"
	serverVersion = "1.0.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
}

// Server exposes crawl targets and ad-hoc scans as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
	fetcher    *fetch.Fetcher
	toolCount  int
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	log := cfg.Logger.WithField("component", "mcp")
	httpClient := fetch.NewClient(cfg.AppConfig.HTTPClientSettings, log)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        log,
		jobManager: NewJobManager(),
		fetcher:    fetch.NewFetcher(httpClient, cfg.AppConfig, log),
	}

	s.registerTools()
	return s, nil
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
	s.toolCount++
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	classifierHelp := fmt.Sprintf("Comma-separated classifiers (%v). Defaults to the target's configuration, or email.", classify.Names())

	s.addTool(mcp.NewTool("list_targets",
		mcp.WithDescription("List all configured crawl targets"),
	), s.handleListTargets)

	s.addTool(mcp.NewTool("crawl_target",
		mcp.WithDescription("Start a background crawl of a configured target. Returns immediately with a job ID."),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Target key from the config file"),
		),
		mcp.WithString("classifiers",
			mcp.Description(classifierHelp),
		),
	), s.handleCrawlTarget)

	s.addTool(mcp.NewTool("scan_url",
		mcp.WithDescription("Start a background crawl of an ad-hoc seed URL, restricted to its host. Returns a job ID."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Seed URL; https:// is assumed when no scheme is given"),
		),
		mcp.WithString("classifiers",
			mcp.Description(classifierHelp),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum link depth from the seed (default 5)"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum pages to visit, 0 for unlimited"),
		),
	), s.handleScanURL)

	s.addTool(mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status and progress of a crawl job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by crawl_target or scan_url"),
		),
	), s.handleGetJobStatus)

	s.addTool(mcp.NewTool("get_job_result",
		mcp.WithDescription("Get the crawl result of a finished job as JSON"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by crawl_target or scan_url"),
		),
	), s.handleGetJobResult)

	s.addTool(mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a running crawl job; its partial result stays available"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID to cancel"),
		),
	), s.handleCancelJob)

	s.addTool(mcp.NewTool("classify_url",
		mcp.WithDescription("Run the link classifiers on a single URL without fetching it"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to classify"),
		),
		mcp.WithString("classifiers",
			mcp.Description("Comma-separated classifiers (default: sensitive,pdf)"),
		),
	), s.handleClassifyURL)

	s.log.Infof("Registered %d MCP tools", s.toolCount)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "", "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
