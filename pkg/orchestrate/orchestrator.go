// Package orchestrate wires a configured target to its store and crawl engine,
// and runs several targets in parallel.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-harvester/pkg/config"
	"github.com/Sriram-PR/site-harvester/pkg/crawler"
	"github.com/Sriram-PR/site-harvester/pkg/fetch"
	"github.com/Sriram-PR/site-harvester/pkg/models"
	"github.com/Sriram-PR/site-harvester/pkg/storage"
)

// gcInterval is how often a persisted store runs value log GC during a crawl
var gcInterval = 10 * time.Minute

// TargetRun is one prepared crawl: an engine bound to a freshly opened store
type TargetRun struct {
	Key    string
	Engine *crawler.Engine

	store  storage.CrawlStore
	badger *storage.BadgerStore
	log    *logrus.Entry
}

// NewTargetRun validates targetCfg, opens its store and builds the engine.
// Persisted targets always start from an empty state DB.
func NewTargetRun(appCfg *config.AppConfig, key string, targetCfg config.TargetConfig, fetcher *fetch.Fetcher, log *logrus.Entry) (*TargetRun, error) {
	warnings, err := targetCfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("target '%s': %w", key, err)
	}
	for _, w := range warnings {
		log.Warnf("[%s] %s", key, w)
	}

	run := &TargetRun{Key: key, log: log.WithField("target", key)}

	if config.GetEffectivePersistState(targetCfg, *appCfg) {
		bs, err := storage.NewBadgerStore(appCfg.StateDir, key, true, log.WithField("component", "store"))
		if err != nil {
			return nil, fmt.Errorf("failed to create store for '%s': %w", key, err)
		}
		run.store, run.badger = bs, bs
	} else {
		run.store = storage.NewMemoryStore()
	}

	run.Engine, err = crawler.NewEngine(appCfg, key, targetCfg, fetcher, run.store, log)
	if err != nil {
		_ = run.store.Close()
		return nil, err
	}
	return run, nil
}

// Store returns the store backing this run; valid until Run returns
func (r *TargetRun) Store() storage.CrawlStore { return r.store }

// Run crawls the target and closes its store. The result is non-nil even when
// ctx ends the crawl early.
func (r *TargetRun) Run(ctx context.Context) (*models.CrawlResult, error) {
	return r.RunThen(ctx, nil)
}

// RunThen is Run with a hook invoked on the still-open store once the crawl ends
func (r *TargetRun) RunThen(ctx context.Context, after func(storage.CrawlStore)) (*models.CrawlResult, error) {
	gcDone := make(chan struct{})
	gcCtx, stopGC := context.WithCancel(ctx)
	if r.badger != nil {
		go func() {
			defer close(gcDone)
			r.badger.RunGC(gcCtx, gcInterval)
		}()
	} else {
		close(gcDone)
	}

	res, err := r.Engine.Run(ctx)

	if after != nil {
		after(r.store)
	}
	stopGC()
	<-gcDone
	if closeErr := r.store.Close(); closeErr != nil {
		r.log.Errorf("Failed to close store: %v", closeErr)
	}
	return res, err
}

// TargetResult is the outcome of one target in a parallel run
type TargetResult struct {
	Key      string
	Result   *models.CrawlResult
	Error    error
	Duration time.Duration
}

// Success reports whether the target ran to completion
func (r TargetResult) Success() bool { return r.Error == nil }

// Orchestrator crawls several targets in parallel, sharing one HTTP client
type Orchestrator struct {
	appCfg  *config.AppConfig
	keys    []string
	fetcher *fetch.Fetcher
	log     *logrus.Entry

	results   []TargetResult
	resultsMu sync.Mutex
}

// NewOrchestrator creates an orchestrator for keys, which must exist in appCfg
func NewOrchestrator(appCfg *config.AppConfig, keys []string, log *logrus.Entry) *Orchestrator {
	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, log.WithField("component", "fetcher"))
	return &Orchestrator{
		appCfg:  appCfg,
		keys:    keys,
		fetcher: fetch.NewFetcher(httpClient, appCfg, log.WithField("component", "fetcher")),
		log:     log,
		results: make([]TargetResult, 0, len(keys)),
	}
}

// Run crawls every target and waits for all of them. Results follow the key order.
func (o *Orchestrator) Run(ctx context.Context) []TargetResult {
	startTime := time.Now()
	o.log.Infof("Starting parallel crawl of %d targets: %v", len(o.keys), o.keys)

	var wg sync.WaitGroup
	for _, key := range o.keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			result := o.crawlTarget(ctx, key)
			o.resultsMu.Lock()
			o.results = append(o.results, result)
			o.resultsMu.Unlock()
		}(key)
	}
	wg.Wait()

	o.sortResults()
	o.logSummary(time.Since(startTime))
	return o.results
}

func (o *Orchestrator) crawlTarget(ctx context.Context, key string) TargetResult {
	startTime := time.Now()
	result := TargetResult{Key: key}

	targetCfg, exists := o.appCfg.Targets[key]
	if !exists {
		result.Error = fmt.Errorf("target '%s' not found in configuration", key)
		o.log.Error(result.Error)
		return result
	}

	run, err := NewTargetRun(o.appCfg, key, targetCfg, o.fetcher, o.log)
	if err != nil {
		result.Error = err
		o.log.Errorf("Failed to prepare target '%s': %v", key, err)
		return result
	}

	result.Result, result.Error = run.Run(ctx)
	result.Duration = time.Since(startTime)
	if result.Error != nil {
		o.log.Errorf("Crawl of target '%s' ended early: %v", key, result.Error)
	}
	return result
}

func (o *Orchestrator) sortResults() {
	order := make(map[string]int, len(o.keys))
	for i, k := range o.keys {
		order[k] = i
	}
	o.resultsMu.Lock()
	defer o.resultsMu.Unlock()
	sort.SliceStable(o.results, func(i, j int) bool {
		return order[o.results[i].Key] < order[o.results[j].Key]
	})
}

func (o *Orchestrator) logSummary(totalDuration time.Duration) {
	o.log.Infof("Parallel crawl completed in %v", totalDuration)

	var totalPages, failed int
	for _, r := range o.results {
		status := "SUCCESS"
		switch {
		case errors.Is(r.Error, context.Canceled):
			status = "CANCELLED"
			failed++
		case r.Error != nil:
			status = "FAILED"
			failed++
		}
		pages := 0
		if r.Result != nil {
			pages = r.Result.PagesVisited
		}
		totalPages += pages
		o.log.Infof("  %s: %s - %d pages in %v", r.Key, status, pages, r.Duration.Round(time.Millisecond))
	}
	o.log.Infof("Total: %d targets (%d success, %d failed), %d pages visited",
		len(o.results), len(o.results)-failed, failed, totalPages)
}
