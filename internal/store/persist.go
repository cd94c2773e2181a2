package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"fleetsync/internal/model"
)

// StorageKey is the namespaced key the projection is stored under.
const StorageKey = "fleetmaster-storage"

// Projection is the whitelisted subset of store state that survives a
// restart. Loading flag and draft are deliberately excluded.
type Projection struct {
	CurrentView      model.View    `json:"currentView"`
	RegisteredRoutes []model.Route `json:"registeredRoutes"`
}

// Sink is the durable local storage behind the store. Save is called on
// every state change; Load once at startup.
type Sink interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
}

// ErrNoState is returned by sinks when nothing was saved yet.
var ErrNoState = errors.New("no saved state")

// FileSink keeps one JSON file per key under a state directory.
type FileSink struct {
	Dir string
}

func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileSink{Dir: dir}, nil
}

func (f *FileSink) path(key string) string {
	return filepath.Join(f.Dir, key+".json")
}

func (f *FileSink) Load(key string) ([]byte, error) {
	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoState
	}
	return b, err
}

func (f *FileSink) Save(key string, data []byte) error {
	tmp := f.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path(key))
}

// MemorySink is the in-process sink used in tests and when no state
// directory is configured.
type MemorySink struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{data: map[string][]byte{}}
}

func (m *MemorySink) Load(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, ErrNoState
	}
	return append([]byte(nil), b...), nil
}

func (m *MemorySink) Save(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

// projectionLocked computes the persisted subset. Callers hold mu.
func (s *Store) projectionLocked() Projection {
	return Projection{
		CurrentView:      s.view,
		RegisteredRoutes: append([]model.Route(nil), s.routes...),
	}
}

// persistLocked serializes the projection to the sink, fire-and-forget.
// Callers hold mu.
func (s *Store) persistLocked() {
	if s.sink == nil {
		return
	}
	b, err := json.Marshal(s.projectionLocked())
	if err != nil {
		s.log.Warn("persist: marshal failed", zap.Error(err))
		return
	}
	if err := s.sink.Save(StorageKey, b); err != nil {
		s.log.Warn("persist: save failed", zap.Error(err))
	}
}

// rehydrate restores the projection saved by a previous run. Called from
// New, before any remote fetch.
func (s *Store) rehydrate() {
	if s.sink == nil {
		return
	}
	b, err := s.sink.Load(StorageKey)
	if errors.Is(err, ErrNoState) {
		return
	}
	if err != nil {
		s.log.Warn("rehydrate: load failed", zap.Error(err))
		return
	}
	var p Projection
	if err := json.Unmarshal(b, &p); err != nil {
		s.log.Warn("rehydrate: corrupt state ignored", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CurrentView != "" {
		s.view = p.CurrentView
	}
	if p.RegisteredRoutes != nil {
		s.routes = p.RegisteredRoutes
	}
}
