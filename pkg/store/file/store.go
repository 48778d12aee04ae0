// Package file provides a file-backed implementation of the store
// interfaces. Rules and scenarios are persisted as a single YAML document
// so the data file can double as hand-edited project configuration.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shubapp/devproxy/pkg/rule"
	"github.com/shubapp/devproxy/pkg/store"
)

// Current data format version for migration support.
const dataVersion = 1

const dataFileName = "devproxy.yaml"

// Config controls where and how the store persists data.
type Config struct {
	// DataDir is the directory holding the YAML data file.
	DataDir string
	// ReadOnly rejects all mutations with store.ErrReadOnly.
	ReadOnly bool
}

// FileStore implements store.Store using a YAML file on disk. Writes are
// debounced and performed atomically (temp file + rename). Reads return
// copies and writes store copies: the save loop marshals store-owned data,
// so no caller may hold a pointer into it.
type FileStore struct {
	cfg          Config
	mu           sync.RWMutex
	data         *storeData
	dirty        atomic.Bool
	saving       atomic.Bool
	saveDebounce time.Duration
	saveCh       chan struct{}
	closeCh      chan struct{}
	closeOnce    sync.Once
	closedCh     chan struct{} // signals when saveLoop has exited
	log          *slog.Logger
}

// storeData holds all persisted data.
type storeData struct {
	Version          int              `yaml:"version"`
	ActiveScenarioID string           `yaml:"activeScenarioId,omitempty"`
	Mocks            []*rule.MockRule `yaml:"mocks,omitempty"`
	Scenarios        []*rule.Scenario `yaml:"scenarios,omitempty"`
}

// New creates a FileStore rooted at cfg.DataDir.
func New(cfg Config, log *slog.Logger) *FileStore {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	fs := &FileStore{
		cfg:          cfg,
		data:         &storeData{Version: dataVersion},
		saveDebounce: 500 * time.Millisecond,
		saveCh:       make(chan struct{}, 1),
		closeCh:      make(chan struct{}),
		closedCh:     make(chan struct{}),
		log:          log,
	}
	go fs.saveLoop()
	return fs
}

// saveLoop handles debounced saving to prevent excessive disk writes.
func (s *FileStore) saveLoop() {
	defer close(s.closedCh)
	var timer *time.Timer
	for {
		select {
		case <-s.saveCh:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.saveDebounce, func() {
				if s.dirty.Load() && !s.saving.Load() {
					if err := s.doSave(); err != nil {
						s.log.Error("failed to save store data", "error", err)
					}
				}
			})
		case <-s.closeCh:
			if timer != nil {
				timer.Stop()
			}
			// Final save on close.
			if s.dirty.Load() {
				if err := s.doSave(); err != nil {
					s.log.Error("failed to save store data on close", "error", err)
				}
			}
			return
		}
	}
}

// Open initializes the store and loads data from disk.
func (s *FileStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.DataDir != "" {
		if err := os.MkdirAll(s.cfg.DataDir, 0700); err != nil {
			return err
		}
	}

	raw, err := os.ReadFile(s.dataFile())
	if err != nil {
		if os.IsNotExist(err) {
			// No data file yet, start fresh.
			s.data = &storeData{Version: dataVersion}
			return nil
		}
		return err
	}

	var stored storeData
	if err := yaml.Unmarshal(raw, &stored); err != nil {
		return fmt.Errorf("parse %s: %w", s.dataFile(), err)
	}

	s.data = &stored
	s.dirty.Store(false)
	return nil
}

// Close saves any pending changes and stops the save loop. Safe to call
// multiple times.
func (s *FileStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
	})
	<-s.closedCh
	return nil
}

func (s *FileStore) dataFile() string {
	return filepath.Join(s.cfg.DataDir, dataFileName)
}

// doSave performs the actual save operation with an atomic write.
func (s *FileStore) doSave() error {
	if !s.saving.CompareAndSwap(false, true) {
		return nil // already saving
	}
	defer s.saving.Store(false)

	s.mu.RLock()
	if s.cfg.ReadOnly {
		s.mu.RUnlock()
		return store.ErrReadOnly
	}
	s.data.Version = dataVersion
	raw, err := yaml.Marshal(s.data)
	s.mu.RUnlock()

	if err != nil {
		return err
	}

	// Atomic write: write to temp file, then rename.
	tmpFile := s.dataFile() + ".tmp"
	if err := os.WriteFile(tmpFile, raw, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpFile, s.dataFile()); err != nil {
		_ = os.Remove(tmpFile)
		return err
	}

	s.dirty.Store(false)
	return nil
}

// markDirty marks data as needing to be saved and triggers the debounced
// save loop.
func (s *FileStore) markDirty() {
	s.dirty.Store(true)
	select {
	case s.saveCh <- struct{}{}:
	default:
		// save already pending
	}
}

// ForceSave immediately writes data to disk, bypassing the debounce.
func (s *FileStore) ForceSave() error {
	s.dirty.Store(true)
	return s.doSave()
}

// ListMocks returns all stored rules sorted by priority (descending) then by
// creation time (ascending).
func (s *FileStore) ListMocks() ([]*rule.MockRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*rule.MockRule, len(s.data.Mocks))
	for i, m := range s.data.Mocks {
		result[i] = m.Clone()
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// GetMock retrieves a rule by id.
func (s *FileStore) GetMock(id string) (*rule.MockRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.data.Mocks {
		if m.ID == id {
			return m.Clone(), nil
		}
	}
	return nil, fmt.Errorf("mock %s: %w", id, store.ErrNotFound)
}

// CreateMock stores a new rule and schedules a save.
func (s *FileStore) CreateMock(m *rule.MockRule) (*rule.MockRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.ReadOnly {
		return nil, store.ErrReadOnly
	}
	for _, existing := range s.data.Mocks {
		if existing.ID == m.ID {
			return nil, fmt.Errorf("mock %s: %w", m.ID, store.ErrDuplicateID)
		}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.UpdatedAt = m.CreatedAt
	s.data.Mocks = append(s.data.Mocks, m.Clone())
	s.markDirty()
	return m, nil
}

// UpdateMock replaces a stored rule and schedules a save.
func (s *FileStore) UpdateMock(m *rule.MockRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.ReadOnly {
		return store.ErrReadOnly
	}
	for i, existing := range s.data.Mocks {
		if existing.ID == m.ID {
			m.UpdatedAt = time.Now()
			s.data.Mocks[i] = m.Clone()
			s.markDirty()
			return nil
		}
	}
	return fmt.Errorf("mock %s: %w", m.ID, store.ErrNotFound)
}

// DeleteMock removes a rule by id and schedules a save.
func (s *FileStore) DeleteMock(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.ReadOnly {
		return store.ErrReadOnly
	}
	for i, existing := range s.data.Mocks {
		if existing.ID == id {
			s.data.Mocks = append(s.data.Mocks[:i], s.data.Mocks[i+1:]...)
			s.markDirty()
			return nil
		}
	}
	return fmt.Errorf("mock %s: %w", id, store.ErrNotFound)
}

// ListScenarios returns all stored scenarios sorted by creation time.
func (s *FileStore) ListScenarios() ([]*rule.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*rule.Scenario, len(s.data.Scenarios))
	for i, sc := range s.data.Scenarios {
		result[i] = sc.Copy()
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// GetScenario retrieves a scenario by id.
func (s *FileStore) GetScenario(id string) (*rule.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sc := range s.data.Scenarios {
		if sc.ID == id {
			return sc.Copy(), nil
		}
	}
	return nil, fmt.Errorf("scenario %s: %w", id, store.ErrNotFound)
}

// CreateScenario stores a new scenario and schedules a save.
func (s *FileStore) CreateScenario(sc *rule.Scenario) (*rule.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.ReadOnly {
		return nil, store.ErrReadOnly
	}
	for _, existing := range s.data.Scenarios {
		if existing.ID == sc.ID {
			return nil, fmt.Errorf("scenario %s: %w", sc.ID, store.ErrDuplicateID)
		}
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now()
	}
	sc.UpdatedAt = sc.CreatedAt
	s.data.Scenarios = append(s.data.Scenarios, sc.Copy())
	s.markDirty()
	return sc, nil
}

// ActiveScenarioID returns the persisted active-scenario id.
func (s *FileStore) ActiveScenarioID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ActiveScenarioID, nil
}

// SetActiveScenarioID persists the active-scenario id and schedules a save.
func (s *FileStore) SetActiveScenarioID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.ReadOnly {
		return store.ErrReadOnly
	}
	s.data.ActiveScenarioID = id
	s.markDirty()
	return nil
}

// Ensure FileStore implements Store.
var _ store.Store = (*FileStore)(nil)
