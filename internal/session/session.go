// Package session provides run persistence: every step of a run is recorded
// so it can be audited and replayed later.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status constants for runs.
const (
	StatusRunning          = "running"
	StatusCompleted        = "completed"
	StatusMaxStepsExceeded = "max_steps_exceeded"
	StatusTakenOver        = "taken_over"
	StatusAborted          = "aborted"
)

// Run is one automation run: a goal, the device it ran on and the full
// step history.
type Run struct {
	ID        string       `json:"id"`
	Goal      string       `json:"goal"`
	DeviceID  string       `json:"device_id,omitempty"`
	Status    string       `json:"status"`
	Summary   string       `json:"summary,omitempty"`
	Error     string       `json:"error,omitempty"`
	Steps     []StepRecord `json:"steps"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// StepRecord is the audit entry for one loop step. RawReply preserves the
// model text verbatim; everything derived from it sits alongside.
type StepRecord struct {
	Index            int           `json:"index"`
	RawReply         string        `json:"raw_reply"`
	Parsed           bool          `json:"parsed"`
	Action           string        `json:"action,omitempty"`
	CommandJSON      string        `json:"command,omitempty"`
	ValidationReason string        `json:"validation_reason,omitempty"`
	ExecutedOK       bool          `json:"executed_ok"`
	FailureKind      string        `json:"failure_kind,omitempty"`
	Attempts         int           `json:"attempts,omitempty"`
	Confirmed        *bool         `json:"confirmed,omitempty"`
	Duration         time.Duration `json:"duration_ns"`
	Timestamp        time.Time     `json:"timestamp"`
}

// Store is the interface for run persistence.
type Store interface {
	Save(run *Run) error
	Load(id string) (*Run, error)
	List() ([]string, error)
}

// Manager manages runs over a store.
type Manager struct {
	store Store
	mu    sync.Mutex
}

// NewManager creates a new run manager.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Create starts a new run record.
func (m *Manager) Create(goal, deviceID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	run := &Run{
		ID:        uuid.NewString(),
		Goal:      goal,
		DeviceID:  deviceID,
		Status:    StatusRunning,
		Steps:     []StepRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}
	return run, nil
}

// Get retrieves a run by ID.
func (m *Manager) Get(id string) (*Run, error) {
	return m.store.Load(id)
}

// List returns the known run IDs.
func (m *Manager) List() ([]string, error) {
	return m.store.List()
}

// AddStep appends a step to the run's history.
func (m *Manager) AddStep(id string, step StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, err := m.store.Load(id)
	if err != nil {
		return err
	}
	run.Steps = append(run.Steps, step)
	run.UpdatedAt = time.Now()
	return m.store.Save(run)
}

// Finish records the terminal status of a run.
func (m *Manager) Finish(id, status, summary, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, err := m.store.Load(id)
	if err != nil {
		return err
	}
	run.Status = status
	run.Summary = summary
	run.Error = errMsg
	run.UpdatedAt = time.Now()
	return m.store.Save(run)
}

// --- FileStore ---

// FileStore stores runs as JSON files.
type FileStore struct {
	dir string
}

// NewFileStore creates a new file store.
func NewFileStore(dir string) *FileStore {
	os.MkdirAll(dir, 0755)
	return &FileStore{dir: dir}
}

// Save writes the run atomically: temp file then rename.
func (s *FileStore) Save(run *Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	filename := filepath.Join(s.dir, run.ID+".json")
	tmpFile := filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpFile, filename); err != nil {
		return fmt.Errorf("failed to rename run file: %w", err)
	}
	return nil
}

// Load reads a run from its JSON file.
func (s *FileStore) Load(id string) (*Run, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse run %s: %w", id, err)
	}
	return &run, nil
}

// Path returns the on-disk location of a run, for the replay tool.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// List returns run IDs, newest first.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	type item struct {
		id  string
		mod time.Time
	}
	var items []item
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, item{id: name[:len(name)-len(".json")], mod: info.ModTime()})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].mod.After(items[j].mod) })
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids, nil
}
