// Package watch re-crawls targets on a fixed interval and reports artifacts
// that appeared since the previous successful run.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-harvester/pkg/config"
	"github.com/Sriram-PR/site-harvester/pkg/models"
	"github.com/Sriram-PR/site-harvester/pkg/orchestrate"
)

// Change is the outcome of one scheduled crawl of a target
type Change struct {
	Target       string
	Success      bool
	PagesVisited int
	NewArtifacts []models.ClassifiedArtifact
}

// Scheduler manages periodic crawling of targets
type Scheduler struct {
	appCfg   *config.AppConfig
	keys     []string
	interval time.Duration
	log      *logrus.Entry
	state    *StateManager

	// OnChange, if set, is called after every scheduled crawl of a target
	OnChange func(Change)
}

// NewScheduler creates a new watch scheduler. State lives in appCfg.StateDir.
func NewScheduler(appCfg *config.AppConfig, keys []string, interval time.Duration, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		appCfg:   appCfg,
		keys:     keys,
		interval: interval,
		log:      log.WithField("component", "watch"),
		state:    NewStateManager(appCfg.StateDir),
	}
}

// Run crawls due targets now and then on every tick until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.state.Load(); err != nil {
		s.log.Warnf("Failed to load watch state: %v (starting fresh)", err)
	}

	s.log.Infof("Starting watch mode for %d targets with interval %s", len(s.keys), FormatInterval(s.interval))
	s.logSchedule()

	s.RunDue(ctx)

	ticker := time.NewTicker(tickInterval(s.interval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Watch scheduler shutting down...")
			return nil
		case <-ticker.C:
			s.RunDue(ctx)
		}
	}
}

// RunDue crawls every target that is due, in parallel, and saves the state.
// It returns one Change per crawled target, in key order.
func (s *Scheduler) RunDue(ctx context.Context) []Change {
	var due []string
	for _, key := range s.keys {
		if s.state.ShouldRun(key, s.interval) {
			due = append(due, key)
		}
	}
	if len(due) == 0 {
		s.logNextRun()
		return nil
	}

	s.log.Infof("Running crawl for %d due targets: %v", len(due), due)
	results := orchestrate.NewOrchestrator(s.appCfg, due, s.log).Run(ctx)

	changes := make([]Change, 0, len(results))
	for _, r := range results {
		if ctx.Err() != nil && r.Error != nil {
			// Interrupted runs are neither successes nor failures
			continue
		}
		fresh := s.state.Record(r.Key, r.Result, r.Error)
		change := Change{Target: r.Key, Success: r.Success(), NewArtifacts: fresh}
		if r.Result != nil {
			change.PagesVisited = r.Result.PagesVisited
		}
		for _, a := range fresh {
			s.log.WithFields(logrus.Fields{"target": r.Key, "kind": a.Kind}).Infof("New artifact: %s", a.Value)
		}
		changes = append(changes, change)
		if s.OnChange != nil {
			s.OnChange(change)
		}
	}

	if err := s.state.Save(); err != nil {
		s.log.Errorf("Failed to save watch state: %v", err)
	}
	s.logNextRun()
	return changes
}

// tickInterval returns how often to check for due targets: a tenth of the
// interval, clamped to [1m, 10m]
func tickInterval(interval time.Duration) time.Duration {
	check := interval / 10
	if check < time.Minute {
		check = time.Minute
	}
	if check > 10*time.Minute {
		check = 10 * time.Minute
	}
	return check
}

func (s *Scheduler) logSchedule() {
	for _, key := range s.keys {
		st, exists := s.state.Get(key)
		if !exists {
			s.log.Infof("  %s: never run, will run immediately", key)
			continue
		}
		status := "success"
		if !st.LastRunSuccess {
			status = "failed"
		}
		s.log.Infof("  %s: last run %s (%s, %d pages, %d artifacts), next run %s",
			key, st.LastRunTime.Format(time.RFC3339), status, st.PagesVisited, len(st.Artifacts),
			s.state.NextRunTime(key, s.interval).Format(time.RFC3339))
	}
}

func (s *Scheduler) logNextRun() {
	var nextKey string
	var next time.Time
	for _, key := range s.keys {
		t := s.state.NextRunTime(key, s.interval)
		if nextKey == "" || t.Before(next) {
			nextKey, next = key, t
		}
	}
	if nextKey == "" {
		return
	}
	until := time.Until(next)
	if until < 0 {
		until = 0
	}
	s.log.Infof("Next crawl: %s in %v (at %s)", nextKey, until.Round(time.Second), next.Format("15:04:05"))
}

// FormatInterval formats a duration using d/h/m/s units
func FormatInterval(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		hours, mins := int(d.Hours()), int(d.Minutes())%60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days, hours := int(d.Hours())/24, int(d.Hours())%24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// ParseInterval parses a Go duration, also accepting a leading day count ("7d", "1d12h")
func ParseInterval(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("interval must be positive: %s", s)
		}
		return d, nil
	}

	var days int
	var rest string
	if n, _ := fmt.Sscanf(s, "%dd%s", &days, &rest); n >= 1 && days > 0 {
		d := time.Duration(days) * 24 * time.Hour
		if rest != "" {
			extra, err := time.ParseDuration(rest)
			if err != nil {
				return 0, fmt.Errorf("invalid interval format: %s", s)
			}
			d += extra
		}
		return d, nil
	}

	return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
}
