package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/site-harvester/pkg/models"
)

const stateFileName = "watch_state.yaml"

// TargetState is what the scheduler remembers about a target between runs
type TargetState struct {
	LastRunTime    time.Time `yaml:"last_run_time"`
	LastRunSuccess bool      `yaml:"last_run_success"`
	PagesVisited   int       `yaml:"pages_visited"`
	Baselined      bool      `yaml:"baselined"`           // A successful run has recorded Artifacts
	Artifacts      []string  `yaml:"artifacts,omitempty"` // Keys of the last successful run, sorted
	ErrorMessage   string    `yaml:"error_message,omitempty"`
}

// State is the persisted watch state, one entry per target
type State struct {
	Targets   map[string]TargetState `yaml:"targets"`
	UpdatedAt time.Time              `yaml:"updated_at"`
}

// StateManager loads, updates and saves the watch state file
type StateManager struct {
	stateDir  string
	statePath string
	state     State
	mu        sync.RWMutex
}

// NewStateManager creates a state manager for state_dir/watch_state.yaml
func NewStateManager(stateDir string) *StateManager {
	return &StateManager{
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
		state:     State{Targets: make(map[string]TargetState)},
	}
}

// Path returns the state file location
func (m *StateManager) Path() string { return m.statePath }

// Load reads the state file. A missing file is an empty state.
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = State{Targets: make(map[string]TargetState)}
			return nil
		}
		return fmt.Errorf("failed to read watch state: %w", err)
	}

	var loaded State
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse watch state: %w", err)
	}
	if loaded.Targets == nil {
		loaded.Targets = make(map[string]TargetState)
	}
	m.state = loaded
	return nil
}

// Save writes the state file, creating state_dir if needed
func (m *StateManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.UpdatedAt = time.Now()

	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := yaml.Marshal(m.state)
	if err != nil {
		return fmt.Errorf("failed to marshal watch state: %w", err)
	}
	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write watch state: %w", err)
	}
	return nil
}

// Get returns the state of target
func (m *StateManager) Get(target string) (TargetState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.state.Targets[target]
	return st, ok
}

func artifactKey(a models.ClassifiedArtifact) string {
	return string(a.Kind) + " " + a.Value
}

// Record stores the outcome of a run and returns the artifacts that the
// previous successful run did not have. The first successful run only sets
// the baseline. A failed run keeps the previous baseline.
func (m *StateManager) Record(target string, res *models.CrawlResult, runErr error) []models.ClassifiedArtifact {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, hadPrev := m.state.Targets[target]
	next := TargetState{
		LastRunTime:    time.Now(),
		LastRunSuccess: runErr == nil,
		Baselined:      prev.Baselined,
		Artifacts:      prev.Artifacts,
	}
	if res != nil {
		next.PagesVisited = res.PagesVisited
	}
	if runErr != nil {
		next.ErrorMessage = runErr.Error()
		m.state.Targets[target] = next
		return nil
	}

	seen := make(map[string]bool, len(prev.Artifacts))
	for _, k := range prev.Artifacts {
		seen[k] = true
	}
	hasBaseline := hadPrev && prev.Baselined

	var fresh []models.ClassifiedArtifact
	var keys []string
	if res != nil {
		for _, a := range res.Artifacts {
			k := artifactKey(a)
			keys = append(keys, k)
			if hasBaseline && !seen[k] {
				fresh = append(fresh, a)
			}
		}
	}
	sort.Strings(keys)
	next.Artifacts = keys
	next.Baselined = true
	m.state.Targets[target] = next
	return fresh
}

// ShouldRun reports whether target is due: never run, or interval has passed
func (m *StateManager) ShouldRun(target string, interval time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.state.Targets[target]
	if !ok {
		return true
	}
	return time.Since(st.LastRunTime) >= interval
}

// NextRunTime returns when target is next due
func (m *StateManager) NextRunTime(target string, interval time.Duration) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.state.Targets[target]
	if !ok {
		return time.Now()
	}
	return st.LastRunTime.Add(interval)
}
