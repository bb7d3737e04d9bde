package datasets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinodismyname/mcpclick/config"
	"github.com/vinodismyname/mcpclick/internal/clickstream"
)

// Handle represents a loaded, normalized dataset paired with metadata for TTL
// eviction. The dataset itself is immutable after load; Version captures the
// source file's modification time so cursors can detect stale pagination.
type Handle struct {
	ID        string
	Data      *clickstream.Dataset
	Path      string
	Version   int64
	LoadedAt  time.Time
	ExpiresAt time.Time
	mu        sync.RWMutex
}

// DatasetGate coordinates capacity for open dataset handles (backed by runtime.Controller).
type DatasetGate interface {
	AcquireDataset(ctx context.Context) error
	ReleaseDataset()
}

// PathValidator abstracts filesystem path validation. Implementations should
// return a canonical absolute path if allowed, or an error when denied.
type PathValidator interface {
	ValidateOpenPath(path string) (string, error)
}

// Manager provides lifecycle hooks for opening and closing datasets and a
// TTL-bearing handle cache.
type Manager struct {
	mu           sync.RWMutex
	handles      map[string]*Handle
	byPath       map[string]string
	ttl          time.Duration
	cleanupEvery time.Duration
	clock        func() time.Time
	gate         DatasetGate
	stopCh       chan struct{}
	cleanupWG    sync.WaitGroup
	validator    PathValidator
	observer     OpenObserver
}

// ErrHandleNotFound indicates an unknown or expired handle ID.
var ErrHandleNotFound = errors.New("datasets: handle not found")

// OpenObserver receives the outcome of every Open call for telemetry.
type OpenObserver func(datasetID, path string, rows int, duration time.Duration, err error)

// NewManager constructs a lifecycle manager with TTL-bearing handle cache.
// Pass ttl or cleanupEvery <= 0 to use defaults from config.
// Gate and validator can be nil for tests; clock defaults to time.Now when nil.
func NewManager(ttl, cleanupEvery time.Duration, gate DatasetGate, validator PathValidator, clock func() time.Time) *Manager {
	if ttl <= 0 {
		ttl = config.DefaultDatasetIdleTTL
	}
	if cleanupEvery <= 0 {
		cleanupEvery = config.DefaultDatasetCleanupPeriod
	}
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		handles:      make(map[string]*Handle),
		byPath:       make(map[string]string),
		ttl:          ttl,
		cleanupEvery: cleanupEvery,
		clock:        clock,
		gate:         gate,
		validator:    validator,
		stopCh:       make(chan struct{}),
	}
}

// Start launches periodic eviction of expired handles.
func (m *Manager) Start() {
	m.cleanupWG.Add(1)
	ticker := time.NewTicker(m.cleanupEvery)
	go func() {
		defer m.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.EvictExpired()
			}
		}
	}()
}

// Close stops background cleanup and drops all handles.
func (m *Manager) Close(ctx context.Context) error {
	close(m.stopCh)
	done := make(chan struct{})
	go func() { m.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.handles {
		delete(m.handles, id)
		if m.gate != nil {
			m.gate.ReleaseDataset()
		}
	}
	m.byPath = make(map[string]string)
	return nil
}

// SetObserver registers a callback invoked with the outcome of every Open.
func (m *Manager) SetObserver(obs OpenObserver) {
	m.observer = obs
}

// Open loads the dataset at path, normalizes it, registers a TTL-bearing
// handle, and returns its ID. Capacity is enforced via the gate when provided.
func (m *Manager) Open(ctx context.Context, path string) (string, error) {
	start := m.clock()
	id, rows, err := m.open(ctx, path)
	if m.observer != nil {
		m.observer(id, path, rows, m.clock().Sub(start), err)
	}
	return id, err
}

func (m *Manager) open(ctx context.Context, path string) (string, int, error) {
	if m.validator != nil {
		canonical, err := m.validator.ValidateOpenPath(path)
		if err != nil {
			return "", 0, err
		}
		path = canonical
	}

	// Source-identity cache: reuse an existing handle for the same canonical
	// path as long as the file has not changed since it was loaded.
	if version, err := sourceVersion(path); err == nil {
		if id, rows, ok := m.cached(path, version); ok {
			return id, rows, nil
		}
	}

	if err := m.acquire(ctx); err != nil {
		return "", 0, err
	}

	frame, version, err := LoadFrame(path)
	if err != nil {
		m.release()
		return "", 0, err
	}
	data, err := clickstream.Normalize(frame)
	if err != nil {
		m.release()
		return "", 0, err
	}

	id := uuid.NewString()
	loadedAt := m.clock()
	h := &Handle{
		ID:        id,
		Data:      data,
		Path:      path,
		Version:   version,
		LoadedAt:  loadedAt,
		ExpiresAt: loadedAt.Add(m.ttl),
	}

	m.mu.Lock()
	// Drop a stale handle for the same path so cursors against the old
	// version fail fast instead of reading superseded data.
	var stale string
	if old, ok := m.byPath[path]; ok {
		if _, live := m.handles[old]; live {
			stale = old
			delete(m.handles, old)
		}
	}
	m.handles[id] = h
	m.byPath[path] = id
	m.mu.Unlock()
	if stale != "" {
		m.release()
	}

	return id, len(data.Events), nil
}

// cached returns a live handle for path when its version still matches,
// refreshing the TTL on the hit.
func (m *Manager) cached(path string, version int64) (string, int, bool) {
	m.mu.RLock()
	id, ok := m.byPath[path]
	var h *Handle
	if ok {
		h, ok = m.handles[id]
	}
	m.mu.RUnlock()
	if !ok || h.Version != version {
		return "", 0, false
	}
	now := m.clock()
	h.mu.Lock()
	h.ExpiresAt = now.Add(m.ttl)
	rows := len(h.Data.Events)
	h.mu.Unlock()
	return id, rows, true
}

// Invalidate drops any cached handle for the given path, forcing the next
// Open to reload from disk.
func (m *Manager) Invalidate(path string) {
	if m.validator != nil {
		if canonical, err := m.validator.ValidateOpenPath(path); err == nil {
			path = canonical
		}
	}
	m.mu.Lock()
	id, ok := m.byPath[path]
	if ok {
		delete(m.byPath, path)
		if _, live := m.handles[id]; live {
			delete(m.handles, id)
		} else {
			ok = false
		}
	}
	m.mu.Unlock()
	if ok {
		m.release()
	}
}

// Adopt registers an already-normalized dataset as a managed handle.
// Intended for tests and the CLI front end.
func (m *Manager) Adopt(ctx context.Context, data *clickstream.Dataset) (string, error) {
	if data == nil {
		return "", fmt.Errorf("datasets: nil dataset")
	}
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	id := uuid.NewString()
	loadedAt := m.clock()
	m.mu.Lock()
	m.handles[id] = &Handle{
		ID:        id,
		Data:      data,
		LoadedAt:  loadedAt,
		ExpiresAt: loadedAt.Add(m.ttl),
	}
	m.mu.Unlock()
	return id, nil
}

// Get returns the handle when present and refreshes its TTL.
func (m *Manager) Get(id string) (*Handle, bool) {
	m.mu.RLock()
	h, ok := m.handles[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	// Refresh TTL on access (idle timeout semantics)
	now := m.clock()
	h.mu.Lock()
	h.ExpiresAt = now.Add(m.ttl)
	h.mu.Unlock()
	return h, true
}

// WithRead resolves the handle and executes fn with the immutable dataset
// and its version snapshot.
func (m *Manager) WithRead(id string, fn func(data *clickstream.Dataset, version int64) error) error {
	h, ok := m.Get(id)
	if !ok {
		return ErrHandleNotFound
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fn(h.Data, h.Version)
}

// CloseHandle removes a handle by ID, releasing capacity via the gate.
func (m *Manager) CloseHandle(ctx context.Context, id string) error {
	m.mu.Lock()
	h, ok := m.handles[id]
	if ok {
		delete(m.handles, id)
		if h.Path != "" && m.byPath[h.Path] == id {
			delete(m.byPath, h.Path)
		}
	}
	m.mu.Unlock()
	if !ok {
		return ErrHandleNotFound
	}
	m.release()
	return nil
}

// EvictExpired scans for expired handles and drops them.
func (m *Manager) EvictExpired() {
	now := m.clock()
	var expiredIDs []string

	m.mu.RLock()
	for id, h := range m.handles {
		h.mu.RLock()
		isExpired := now.After(h.ExpiresAt)
		h.mu.RUnlock()
		if isExpired {
			expiredIDs = append(expiredIDs, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expiredIDs {
		m.mu.Lock()
		h, ok := m.handles[id]
		if ok {
			delete(m.handles, id)
			if h.Path != "" && m.byPath[h.Path] == id {
				delete(m.byPath, h.Path)
			}
		}
		m.mu.Unlock()
		if ok {
			m.release()
		}
	}
}

// Count returns the current number of cached handles.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handles)
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	return m.gate.AcquireDataset(ctx)
}

func (m *Manager) release() {
	if m.gate == nil {
		return
	}
	m.gate.ReleaseDataset()
}

// Expired reports whether the handle has reached its TTL.
func (h *Handle) Expired(now time.Time) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return now.After(h.ExpiresAt)
}
