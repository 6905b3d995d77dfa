// Package crawler drives a single-domain crawl: it pops frontier entries,
// enforces depth, dedup, robots and page-cap policy, fetches pages and
// dispatches them to the sitemap ingestor or the link extractor and
// classifiers.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/site-harvester/pkg/classify"
	"github.com/Sriram-PR/site-harvester/pkg/config"
	"github.com/Sriram-PR/site-harvester/pkg/fetch"
	"github.com/Sriram-PR/site-harvester/pkg/models"
	"github.com/Sriram-PR/site-harvester/pkg/parse"
	"github.com/Sriram-PR/site-harvester/pkg/process"
	"github.com/Sriram-PR/site-harvester/pkg/queue"
	"github.com/Sriram-PR/site-harvester/pkg/sitemap"
	"github.com/Sriram-PR/site-harvester/pkg/storage"
	"github.com/Sriram-PR/site-harvester/pkg/utils"
)

// stepWorkerKey is the rate limiter key used by Step, which runs on the caller's goroutine
const stepWorkerKey = "step"

// progressInterval is how often Run logs crawl progress
var progressInterval = 30 * time.Second

// Engine holds the complete state of one crawl run
type Engine struct {
	log       *logrus.Entry
	appCfg    *config.AppConfig
	targetKey string

	// Resolved target settings
	seed          *url.URL
	seedCanonical string
	hostKey       string
	maxDepth      int
	maxPages      int
	delay         time.Duration
	numWorkers    int
	respectRobots bool
	disallowed    []*regexp.Regexp

	// Components
	classifiers *classify.Set
	fetcher     *fetch.Fetcher
	robotsGate  *fetch.RobotsGate
	rateLimiter *fetch.RateLimiter
	hostSem     *fetch.HostSemaphorePool
	ingestor    *sitemap.Ingestor
	extractor   *process.LinkExtractor
	frontier    *queue.Frontier
	store       storage.CrawlStore
	results     *classify.ResultSet

	policy *fetch.RobotsPolicy

	// visitMu makes the page-cap check and the visited insert one critical section
	visitMu sync.Mutex

	mu         sync.Mutex
	seeded     bool
	runID      string
	startedAt  time.Time
	finishedAt time.Time
	broken     map[string]struct{}
	attempts   []string
	stats      map[models.EntryState]int
}

// NewEngine builds an engine for one target. targetCfg must already be validated.
func NewEngine(
	appCfg *config.AppConfig,
	targetKey string,
	targetCfg config.TargetConfig,
	fetcher *fetch.Fetcher,
	store storage.CrawlStore,
	baseLog *logrus.Entry,
) (*Engine, error) {
	canonical, seed, err := parse.ParseAndNormalize(targetCfg.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: seed_url for target '%s': %w", utils.ErrConfigValidation, targetKey, err)
	}

	classifiers, err := classify.FromNames(config.GetEffectiveClassifiers(targetCfg))
	if err != nil {
		return nil, err
	}

	disallowed, err := utils.CompileRegexPatterns(targetCfg.DisallowedPathPatterns)
	if err != nil {
		return nil, fmt.Errorf("compiling disallowed patterns for target '%s': %w", targetKey, err)
	}

	hostKey := parse.HostKey(seed)
	log := baseLog.WithFields(logrus.Fields{"component": "crawler", "target": targetKey})
	delay := config.GetEffectiveDelay(targetCfg, *appCfg)
	fetcher = fetcher.WithUserAgent(config.GetEffectiveUserAgent(targetCfg, *appCfg))

	e := &Engine{
		log:           log,
		appCfg:        appCfg,
		targetKey:     targetKey,
		seed:          seed,
		seedCanonical: canonical,
		hostKey:       hostKey,
		maxDepth:      config.GetEffectiveMaxDepth(targetCfg),
		maxPages:      targetCfg.MaxPages,
		delay:         delay,
		numWorkers:    config.GetEffectiveNumWorkers(targetCfg, *appCfg),
		respectRobots: config.GetEffectiveRespectRobots(targetCfg),
		disallowed:    disallowed,
		classifiers:   classifiers,
		fetcher:       fetcher,
		robotsGate:    fetch.NewRobotsGate(fetcher, appCfg.RobotsTimeout, baseLog.WithField("component", "robots")),
		rateLimiter:   fetch.NewRateLimiter(delay, baseLog.WithField("component", "fetcher")),
		hostSem:       fetch.NewHostSemaphorePool(appCfg.MaxRequestsPerHost, baseLog.WithField("component", "fetcher")),
		ingestor:      sitemap.NewIngestor(hostKey, baseLog.WithField("component", "sitemap")),
		extractor:     process.NewLinkExtractor(hostKey, baseLog.WithField("component", "links")),
		frontier:      queue.NewFrontier(baseLog.WithField("component", "frontier")),
		store:         store,
		results:       classify.NewResultSet(),
		runID:         uuid.NewString(),
		broken:        make(map[string]struct{}),
		stats:         make(map[models.EntryState]int),
	}
	return e, nil
}

// RunID identifies this run in logs and reports
func (e *Engine) RunID() string { return e.runID }

// Seed loads the robots policy and places the seed plus every in-domain
// robots sitemap in the frontier at depth 0. It runs once; later calls are no-ops.
func (e *Engine) Seed(ctx context.Context) {
	e.mu.Lock()
	if e.seeded {
		e.mu.Unlock()
		return
	}
	e.seeded = true
	e.startedAt = time.Now()
	e.mu.Unlock()

	e.policy = fetch.AllowAllPolicy()
	if e.respectRobots {
		e.policy = e.robotsGate.Load(ctx, e.seed)
	}

	e.frontier.Push(models.WorkItem{URL: e.seedCanonical, Depth: 0})
	for _, sm := range e.policy.Sitemaps() {
		normalized, err := parse.Normalize(e.seed, sm)
		if err != nil || !parse.SameHost(normalized, e.hostKey) {
			e.log.WithField("sitemap_url", sm).Debug("Ignoring robots sitemap outside the crawl scope")
			continue
		}
		e.frontier.Push(models.WorkItem{URL: normalized, Depth: 0})
	}
	e.log.WithFields(logrus.Fields{
		"seed":        e.seedCanonical,
		"queued":      e.frontier.Len(),
		"max_depth":   e.maxDepth,
		"max_pages":   e.maxPages,
		"classifiers": strings.Join(e.classifiers.Names(), ","),
	}).Info("Frontier seeded")
}

// Step processes exactly one frontier entry on the caller's goroutine.
// It returns false, without processing anything, once the frontier is empty
// or the page cap has been reached.
func (e *Engine) Step(ctx context.Context) (models.EntryState, bool) {
	e.Seed(ctx)
	if e.capReached() {
		return "", false
	}
	item, ok := e.frontier.TryPop()
	if !ok {
		return "", false
	}
	state := e.processItem(ctx, item, stepWorkerKey)
	e.frontier.Done()
	return state, true
}

// Run crawls until the frontier is exhausted, the page cap is reached or ctx
// ends. The result is always returned; the error is non-nil only when the
// crawl was cut short by ctx (or the global crawl timeout).
func (e *Engine) Run(ctx context.Context) (*models.CrawlResult, error) {
	if e.appCfg.GlobalCrawlTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.appCfg.GlobalCrawlTimeout)
		defer cancel()
	}

	e.log.WithFields(logrus.Fields{"run_id": e.runID, "workers": e.numWorkers}).Info("Crawl starting")
	e.Seed(ctx)

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			e.log.Warnf("Crawl context ended: %v", ctx.Err())
			e.frontier.Close()
		case <-stop:
		}
	}()
	go e.reportProgress(ctx, stop)

	var g errgroup.Group
	for i := 1; i <= e.numWorkers; i++ {
		workerKey := "worker-" + strconv.Itoa(i)
		g.Go(func() error {
			e.worker(ctx, workerKey)
			return nil
		})
	}
	_ = g.Wait()
	close(stop)

	res := e.Result()
	if err := e.store.SaveRunInfo(res); err != nil {
		e.log.Errorf("Failed to save run info: %v", err)
	}
	e.log.WithFields(logrus.Fields{
		"duration":     res.FinishedAt.Sub(res.StartedAt).String(),
		"visited":      res.PagesVisited,
		"artifacts":    len(res.Artifacts),
		"broken_links": len(res.BrokenLinks),
	}).Info("Crawl finished")

	return res, ctx.Err()
}

func (e *Engine) worker(ctx context.Context, workerKey string) {
	workerLog := e.log.WithField("worker_id", workerKey)
	workerLog.Debug("Worker starting")
	defer workerLog.Debug("Worker finished")

	for {
		item, ok := e.frontier.Pop()
		if !ok {
			return
		}
		if ctx.Err() != nil {
			e.frontier.Done()
			return
		}
		e.processItem(ctx, item, workerKey)
		e.frontier.Done()

		if e.capReached() {
			workerLog.WithField("max_pages", e.maxPages).Info("Page cap reached, stopping crawl")
			e.frontier.Close()
		}
	}
}

func (e *Engine) reportProgress(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p := e.Progress()
			e.log.WithFields(logrus.Fields{
				"visited":   p.Visited,
				"queued":    p.Queued,
				"in_flight": p.InFlight,
				"artifacts": p.Artifacts,
			}).Info("Crawl progress")
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// processItem runs one frontier entry through the policy checks, the fetch
// and the content dispatch, and returns its terminal state
func (e *Engine) processItem(ctx context.Context, item models.WorkItem, workerKey string) (state models.EntryState) {
	taskLog := e.log.WithFields(logrus.Fields{"url": item.URL, "depth": item.Depth, "worker_id": workerKey})
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			taskLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered while processing entry")
			e.recordPage(item, models.PageStatusFailure, fmt.Errorf("panic: %v", r), nil)
			state = models.EntryFailed
		}
		e.countState(state)
		taskLog.WithFields(logrus.Fields{"duration": time.Since(startTime).String(), "state": state}).Debug("Entry done")
	}()

	if item.Depth > e.maxDepth {
		taskLog.WithField("category", utils.CategorizeError(utils.ErrMaxDepthExceeded)).Debug("Skipping entry beyond max depth")
		return models.EntrySkippedDepth
	}

	isNew, err := e.markVisited(item)
	if err != nil {
		taskLog.WithField("category", utils.CategorizeError(err)).Warnf("Entry not visited: %v", err)
		if errors.Is(err, utils.ErrPageCapReached) {
			return models.EntrySkippedPolicy
		}
		return models.EntryFailed
	}
	if !isNew {
		return models.EntrySkippedDedup
	}

	pageURL, err := url.Parse(item.URL)
	if err != nil {
		e.recordPage(item, models.PageStatusFailure, fmt.Errorf("%w: URL '%s': %w", utils.ErrParsing, item.URL, err), nil)
		return models.EntryFailed
	}

	if e.respectRobots && !e.policy.IsAllowed(pageURL) {
		taskLog.WithField("category", utils.CategorizeError(utils.ErrRobotsDisallowed)).Info("Blocked by robots.txt")
		e.recordPage(item, models.PageStatusSkipped, utils.ErrRobotsDisallowed, nil)
		return models.EntrySkippedPolicy
	}

	page, err := e.fetchPage(ctx, item, workerKey, taskLog)
	if err != nil {
		if utils.IsNotFound(err) {
			e.addBrokenLink(item.URL, taskLog)
		}
		taskLog.WithFields(logrus.Fields{"duration": time.Since(startTime).String(), "category": utils.CategorizeError(err)}).Warnf("Fetch failed: %v", err)
		e.recordPage(item, models.PageStatusFailure, err, page)
		return models.EntryFailed
	}

	if parse.HostKey(page.FinalURL) != e.hostKey {
		err := fmt.Errorf("%w: redirected to %s", utils.ErrScopeViolation, page.FinalURL)
		taskLog.WithField("category", utils.CategorizeError(err)).Warn("Redirect left the crawl domain")
		e.recordPage(item, models.PageStatusFailure, err, page)
		return models.EntryFailed
	}

	e.dispatch(item, page, taskLog)
	e.recordPage(item, models.PageStatusSuccess, nil, page)
	return models.EntryProcessed
}

// markVisited applies the page cap and the visited insert atomically
func (e *Engine) markVisited(item models.WorkItem) (bool, error) {
	e.visitMu.Lock()
	defer e.visitMu.Unlock()
	if e.capReached() {
		return false, fmt.Errorf("%w: %d pages", utils.ErrPageCapReached, e.maxPages)
	}
	return e.store.MarkVisited(item.URL, item.Depth)
}

func (e *Engine) capReached() bool {
	return e.maxPages > 0 && e.store.VisitedCount() >= e.maxPages
}

// fetchPage performs the GET under the host semaphore, then applies the
// worker's politeness delay whatever the outcome
func (e *Engine) fetchPage(ctx context.Context, item models.WorkItem, workerKey string, taskLog *logrus.Entry) (*fetch.Page, error) {
	if err := e.hostSem.Acquire(ctx, e.hostKey, e.appCfg.SemaphoreAcquireTimeout); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.attempts = append(e.attempts, item.URL)
	e.mu.Unlock()

	taskLog.Debug("Fetching")
	page, err := e.fetcher.Get(ctx, item.URL)
	e.hostSem.Release(e.hostKey)

	e.rateLimiter.UpdateLastRequestTime(workerKey)
	e.rateLimiter.ApplyDelay(ctx, workerKey, e.delay)
	return page, err
}

// dispatch routes a fetched page by content type
func (e *Engine) dispatch(item models.WorkItem, page *fetch.Page, taskLog *logrus.Entry) {
	contentType := strings.ToLower(page.ContentType)
	isHTML := strings.Contains(contentType, "html")

	switch {
	case strings.Contains(strings.ToLower(page.FinalURL.Path), "sitemap"),
		strings.Contains(contentType, "xml") && !isHTML:
		for _, next := range e.ingestor.IngestURL(item.URL, page.Body, item.Depth) {
			e.enqueue(next, taskLog)
		}

	case isHTML:
		e.classifyPage(item, page, taskLog)

	default:
		taskLog.WithField("content_type", page.ContentType).Debug("Ignoring content type")
	}
}

func (e *Engine) classifyPage(item models.WorkItem, page *fetch.Page, taskLog *logrus.Entry) {
	links, text := e.extractor.Extract(page.FinalURL, page.Body)

	for _, tc := range e.classifiers.TextClassifiers() {
		for _, value := range tc.ClassifyText(text) {
			e.addArtifact(tc.Kind(), value, item.URL, taskLog)
		}
	}

	queued := 0
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if kind, ok := e.classifiers.ClassifyLink(u); ok {
			e.addArtifact(kind, link, item.URL, taskLog)
			continue
		}
		if item.Depth+1 > e.maxDepth {
			continue
		}
		if e.enqueue(models.WorkItem{URL: link, Depth: item.Depth + 1}, taskLog) {
			queued++
		}
	}
	taskLog.WithFields(logrus.Fields{"links": len(links), "queued": queued}).Debug("Page classified")
}

// enqueue pushes item unless it is already visited or excluded by a disallowed path pattern
func (e *Engine) enqueue(item models.WorkItem, taskLog *logrus.Entry) bool {
	if e.isDisallowedPath(item.URL) {
		taskLog.WithField("link", item.URL).Debug("Link matches a disallowed path pattern")
		return false
	}
	status, _, err := e.store.CheckPageStatus(item.URL)
	if err == nil && status != models.PageStatusNotFound {
		return false
	}
	return e.frontier.Push(item)
}

func (e *Engine) isDisallowedPath(rawURL string) bool {
	if len(e.disallowed) == 0 {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	for _, re := range e.disallowed {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func (e *Engine) addArtifact(kind models.ArtifactKind, value, source string, taskLog *logrus.Entry) {
	if e.results.Add(kind, value, source) {
		taskLog.WithFields(logrus.Fields{"kind": kind, "value": value}).Info("Artifact found")
	}
	a := models.ClassifiedArtifact{Kind: kind, Value: value, Provenance: []string{source}}
	if err := e.store.SaveArtifact(a); err != nil {
		taskLog.Errorf("Failed to store artifact: %v", err)
	}
}

func (e *Engine) addBrokenLink(rawURL string, taskLog *logrus.Entry) {
	e.mu.Lock()
	e.broken[rawURL] = struct{}{}
	e.mu.Unlock()
	if err := e.store.AddBrokenLink(rawURL); err != nil {
		taskLog.Errorf("Failed to store broken link: %v", err)
	}
}

// recordPage stores the outcome of a visited entry
func (e *Engine) recordPage(item models.WorkItem, status models.PageStatus, cause error, page *fetch.Page) {
	now := time.Now()
	entry := &models.PageDBEntry{
		Status:      status,
		LastAttempt: now,
		Depth:       item.Depth,
	}
	if cause != nil {
		entry.ErrorType = utils.CategorizeError(cause)
		entry.StatusCode = utils.StatusCodeOf(cause)
	}
	if page != nil {
		entry.StatusCode = page.StatusCode
		entry.ContentType = page.ContentType
	}
	if status == models.PageStatusSuccess {
		entry.ProcessedAt = now
	}
	if err := e.store.UpdatePageStatus(item.URL, entry); err != nil {
		e.log.WithField("url", item.URL).Errorf("Failed to update page status: %v", err)
	}
}

func (e *Engine) countState(state models.EntryState) {
	e.mu.Lock()
	e.stats[state]++
	e.mu.Unlock()
}

// Progress is a point-in-time view of a running crawl
type Progress struct {
	Visited   int
	Queued    int
	InFlight  int
	Artifacts int
}

// Progress reports current counts; safe to call while Run is active
func (e *Engine) Progress() Progress {
	return Progress{
		Visited:   e.store.VisitedCount(),
		Queued:    e.frontier.Len(),
		InFlight:  e.frontier.InFlight(),
		Artifacts: e.results.Len(),
	}
}

// AttemptLog returns the URLs handed to the fetcher, in order
func (e *Engine) AttemptLog() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.attempts...)
}

// Stats returns the number of entries that ended in each state
func (e *Engine) Stats() map[models.EntryState]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[models.EntryState]int, len(e.stats))
	for k, v := range e.stats {
		out[k] = v
	}
	return out
}

// Result snapshots the accumulated state into a CrawlResult
func (e *Engine) Result() *models.CrawlResult {
	visited, err := e.store.Visited()
	if err != nil {
		e.log.Errorf("Failed to list visited pages: %v", err)
	}

	e.mu.Lock()
	e.finishedAt = time.Now()
	broken := make([]string, 0, len(e.broken))
	for u := range e.broken {
		broken = append(broken, u)
	}
	stats := make(map[string]int, len(e.stats))
	for k, v := range e.stats {
		stats[string(k)] = v
	}
	res := &models.CrawlResult{
		RunID:       e.runID,
		Target:      e.targetKey,
		Seed:        e.seedCanonical,
		Domain:      e.hostKey,
		Classifiers: e.classifiers.Names(),
		StartedAt:   e.startedAt,
		FinishedAt:  e.finishedAt,
		Stats:       stats,
	}
	e.mu.Unlock()

	sort.Strings(broken)
	if visited == nil {
		visited = []string{}
	}
	res.Visited = visited
	res.PagesVisited = len(visited)
	res.BrokenLinks = broken
	res.Artifacts = e.results.Snapshot()
	return res
}
