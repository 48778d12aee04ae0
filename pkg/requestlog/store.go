package requestlog

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Logger is the minimal interface for recording request entries. The proxy
// dispatcher accepts this interface so it can work with any sink.
type Logger interface {
	Log(entry *Entry)
}

// Filter defines criteria for querying request logs.
type Filter struct {
	// Project filters by resolved project name.
	Project string

	// Method filters by HTTP method.
	Method string

	// Path filters by path prefix.
	Path string

	// Outcome filters by request outcome.
	Outcome string

	// MatchedID filters by matched mock id.
	MatchedID string

	// StatusCode filters by response status code.
	StatusCode int

	// HasError filters by error presence.
	HasError *bool

	// Limit is the maximum number of entries to return.
	Limit int

	// Offset is the number of entries to skip.
	Offset int
}

// Subscriber is a channel that receives new log entries.
type Subscriber chan *Entry

// Store holds request history for inspection and supports real-time
// subscriptions.
type Store interface {
	Logger

	// Get retrieves a log entry by id.
	Get(id string) *Entry

	// List returns entries newest-first, optionally filtered.
	List(filter *Filter) []*Entry

	// Clear removes all log entries.
	Clear()

	// Count returns the number of log entries.
	Count() int

	// Subscribe registers a subscriber for new entries. Returns the
	// channel and an unsubscribe function.
	Subscribe() (Subscriber, func())
}

// InMemoryStore implements Store with a bounded FIFO ring: the oldest entry
// is evicted when capacity is reached.
type InMemoryStore struct {
	entries     []*Entry
	maxEntries  int
	mu          sync.RWMutex
	nextID      int64
	subscribers map[Subscriber]struct{}
	subMu       sync.RWMutex
}

// NewInMemoryStore creates an InMemoryStore holding at most maxEntries.
func NewInMemoryStore(maxEntries int) *InMemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &InMemoryStore{
		entries:     make([]*Entry, 0, maxEntries),
		maxEntries:  maxEntries,
		subscribers: make(map[Subscriber]struct{}),
	}
}

// Log records a request log entry.
func (s *InMemoryStore) Log(entry *Entry) {
	if entry == nil {
		return
	}

	s.mu.Lock()
	if entry.ID == "" {
		s.nextID++
		entry.ID = "req-" + strconv.FormatInt(s.nextID, 36)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	// FIFO eviction: remove oldest if at capacity.
	if len(s.entries) >= s.maxEntries {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	// Notify subscribers without blocking.
	s.subMu.RLock()
	for sub := range s.subscribers {
		select {
		case sub <- entry:
		default:
			// Drop if subscriber is slow.
		}
	}
	s.subMu.RUnlock()
}

// Get retrieves a log entry by id.
func (s *InMemoryStore) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.entries {
		if entry.ID == id {
			return entry
		}
	}
	return nil
}

// List returns entries newest-first, optionally filtered.
func (s *InMemoryStore) List(filter *Filter) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if filter != nil && !matchesFilter(entry, filter) {
			continue
		}
		result = append(result, entry)
	}

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(result) {
				return []*Entry{}
			}
			result = result[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(result) {
			result = result[:filter.Limit]
		}
	}
	return result
}

func matchesFilter(entry *Entry, filter *Filter) bool {
	if filter.Project != "" && entry.Project != filter.Project {
		return false
	}
	if filter.Method != "" && entry.Method != filter.Method {
		return false
	}
	if filter.Path != "" && !strings.HasPrefix(entry.Path, filter.Path) {
		return false
	}
	if filter.Outcome != "" && entry.Outcome != filter.Outcome {
		return false
	}
	if filter.MatchedID != "" && entry.MatchedMockID != filter.MatchedID {
		return false
	}
	if filter.StatusCode != 0 && entry.ResponseStatus != filter.StatusCode {
		return false
	}
	if filter.HasError != nil && (entry.Error != "") != *filter.HasError {
		return false
	}
	return true
}

// Clear removes all log entries.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]*Entry, 0, s.maxEntries)
}

// Count returns the number of log entries.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers a subscriber to receive new log entries.
func (s *InMemoryStore) Subscribe() (Subscriber, func()) {
	ch := make(Subscriber, 100)

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	unsubscribe := func() {
		s.subMu.Lock()
		delete(s.subscribers, ch)
		s.subMu.Unlock()
		close(ch)
	}
	return ch, unsubscribe
}
