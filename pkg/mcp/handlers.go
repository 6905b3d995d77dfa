package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/site-harvester/pkg/classify"
	"github.com/Sriram-PR/site-harvester/pkg/config"
	"github.com/Sriram-PR/site-harvester/pkg/orchestrate"
	"github.com/Sriram-PR/site-harvester/pkg/parse"
)

// handleListTargets handles the list_targets tool
func (s *Server) handleListTargets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys := s.cfg.AppConfig.TargetKeys()
	targets := make([]map[string]interface{}, 0, len(keys))

	for _, key := range keys {
		targetCfg := s.cfg.AppConfig.Targets[key]
		info := map[string]interface{}{
			"key":           key,
			"seed_url":      targetCfg.SeedURL,
			"classifiers":   config.GetEffectiveClassifiers(targetCfg),
			"max_depth":     config.GetEffectiveMaxDepth(targetCfg),
			"max_pages":     targetCfg.MaxPages,
			"persist_state": config.GetEffectivePersistState(targetCfg, *s.cfg.AppConfig),
		}
		if job, ok := s.jobManager.GetJobByTarget(key); ok && job.Status.IsActive() {
			info["status"] = "running"
			info["job_id"] = job.ID
		}
		targets = append(targets, info)
	}

	result := map[string]interface{}{
		"targets":       targets,
		"config_path":   s.cfg.ConfigPath,
		"total_targets": len(targets),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCrawlTarget handles the crawl_target tool
func (s *Server) handleCrawlTarget(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := request.GetString("target", "")
	if key == "" {
		return mcp.NewToolResultError("target parameter is required"), nil
	}

	targetCfg, exists := s.cfg.AppConfig.Targets[key]
	if !exists {
		return mcp.NewToolResultError(fmt.Sprintf("target '%s' not found. Available targets: %v", key, s.cfg.AppConfig.TargetKeys())), nil
	}
	if names := splitList(request.GetString("classifiers", "")); len(names) > 0 {
		targetCfg.Classifiers = names
	}

	return s.startJob(key, targetCfg)
}

// handleScanURL handles the scan_url tool
func (s *Server) handleScanURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL := strings.TrimSpace(request.GetString("url", ""))
	if rawURL == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	targetCfg := config.TargetConfig{
		SeedURL:     rawURL,
		Classifiers: splitList(request.GetString("classifiers", "")),
		MaxPages:    request.GetInt("max_pages", 0),
	}
	if depth := request.GetInt("max_depth", -1); depth >= 0 {
		targetCfg.MaxDepth = &depth
	}
	if _, err := targetCfg.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, seed, err := parse.ParseAndNormalize(targetCfg.SeedURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return s.startJob("scan:"+parse.HostKey(seed), targetCfg)
}

// startJob creates a job for key and runs the crawl in the background
func (s *Server) startJob(key string, targetCfg config.TargetConfig) (*mcp.CallToolResult, error) {
	job, created := s.jobManager.CreateJob(key, targetCfg.SeedURL)
	if !created {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "A crawl is already in progress for this target",
			"job_id":  job.ID,
			"target":  key,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	run, err := orchestrate.NewTargetRun(s.cfg.AppConfig, key, targetCfg, s.fetcher, s.log)
	if err != nil {
		s.jobManager.UpdateStatus(job.ID, JobStatusFailed, err.Error())
		return mcp.NewToolResultError(fmt.Sprintf("failed to start crawl: %v", err)), nil
	}

	jobCtx := s.jobManager.Start(job.ID, run.Engine.Progress)
	if jobCtx == nil {
		return mcp.NewToolResultError("job was cancelled before it started"), nil
	}
	go s.runCrawlJob(jobCtx, job.ID, run)

	result := map[string]interface{}{
		"status":  "started",
		"message": "Crawl started successfully",
		"job_id":  job.ID,
		"target":  key,
		"run_id":  run.Engine.RunID(),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runCrawlJob runs a crawl job in the background
func (s *Server) runCrawlJob(ctx context.Context, jobID string, run *orchestrate.TargetRun) {
	jobLog := s.log.WithFields(map[string]interface{}{"job_id": jobID, "target": run.Key})
	jobLog.Info("Crawl job started")

	res, err := run.Run(ctx)
	s.jobManager.Finish(jobID, res, err)

	if err != nil {
		jobLog.Warnf("Crawl job ended early: %v", err)
		return
	}
	jobLog.WithField("pages_visited", res.PagesVisited).Info("Crawl job completed")
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":        job.ID,
		"target":        job.Target,
		"status":        job.Status,
		"started_at":    job.StartedAt.Format(time.RFC3339),
		"pages_visited": job.PagesVisited,
		"pages_queued":  job.PagesQueued,
		"artifacts":     job.Artifacts,
	}
	if job.Seed != "" {
		result["seed"] = job.Seed
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobResult handles the get_job_result tool
func (s *Server) handleGetJobResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}
	res, ok := s.jobManager.Result(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' has no result yet (status: %s)", jobID, job.Status)), nil
	}

	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	if _, ok := s.jobManager.GetJob(jobID); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	cancelled := s.jobManager.CancelJob(jobID)
	job, _ := s.jobManager.GetJob(jobID)
	result := map[string]interface{}{
		"job_id":    jobID,
		"cancelled": cancelled,
		"status":    job.Status,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleClassifyURL handles the classify_url tool
func (s *Server) handleClassifyURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL := strings.TrimSpace(request.GetString("url", ""))
	if rawURL == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	names := splitList(request.GetString("classifiers", ""))
	if len(names) == 0 {
		names = []string{"sensitive", "pdf"}
	}
	set, err := classify.FromNames(names)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !set.HasLinkClassifiers() {
		return mcp.NewToolResultError(fmt.Sprintf("none of %v classifies links", names)), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return mcp.NewToolResultError(fmt.Sprintf("invalid URL '%s'", rawURL)), nil
	}

	result := map[string]interface{}{
		"url":         rawURL,
		"classifiers": set.Names(),
		"matched":     false,
	}
	if kind, ok := set.ClassifyLink(u); ok {
		result["matched"] = true
		result["kind"] = kind
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// splitList splits a comma-separated parameter, dropping empty items
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, strings.ToLower(item))
		}
	}
	return out
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
