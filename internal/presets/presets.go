// Package presets manages the in-memory preset list, its atomic
// sidecar persistence, and the cumulative-stats update rule applied
// on successful job completion.
package presets

import (
	"sync"

	"github.com/five82/ffgo/internal/domain"
	"github.com/five82/ffgo/internal/store"
)

// Manager owns the preset list, guarded by its own lock.
type Manager struct {
	dir string

	mu      sync.Mutex
	presets map[string]domain.Preset
}

// NewManager loads presets from dir's sidecar, or starts empty.
func NewManager(dir string) (*Manager, error) {
	loaded, err := store.LoadPresets(dir)
	if err != nil {
		return nil, err
	}
	m := &Manager{dir: dir, presets: make(map[string]domain.Preset, len(loaded))}
	for _, p := range loaded {
		m.presets[p.ID] = p
	}
	return m, nil
}

// Get returns a copy of the preset with id, if present.
func (m *Manager) Get(id string) (domain.Preset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.presets[id]
	return p, ok
}

// List returns a copy of all presets.
func (m *Manager) List() []domain.Preset {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Preset, 0, len(m.presets))
	for _, p := range m.presets {
		out = append(out, p)
	}
	return out
}

// Save inserts or updates a preset and persists atomically.
func (m *Manager) Save(p domain.Preset) ([]domain.Preset, error) {
	m.mu.Lock()
	m.presets[p.ID] = p
	out := m.listLocked()
	m.mu.Unlock()

	if err := store.SavePresets(m.dir, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a preset by id and persists atomically.
func (m *Manager) Delete(id string) ([]domain.Preset, error) {
	m.mu.Lock()
	delete(m.presets, id)
	out := m.listLocked()
	m.mu.Unlock()

	if err := store.SavePresets(m.dir, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Manager) listLocked() []domain.Preset {
	out := make([]domain.Preset, 0, len(m.presets))
	for _, p := range m.presets {
		out = append(out, p)
	}
	return out
}

// RecordSuccess updates cumulative stats on successful completion with
// positive elapsed time and both sizes known, then
// persists atomically.
func (m *Manager) RecordSuccess(presetID string, inputMB, outputMB, elapsedSeconds float64) error {
	if elapsedSeconds <= 0 || inputMB <= 0 || outputMB < 0 {
		return nil
	}

	m.mu.Lock()
	p, ok := m.presets[presetID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	p.Stats.Count++
	p.Stats.TotalInputSizeMB += inputMB
	p.Stats.TotalOutputSizeMB += outputMB
	p.Stats.TotalTimeSeconds += elapsedSeconds
	m.presets[presetID] = p
	out := m.listLocked()
	m.mu.Unlock()

	return store.SavePresets(m.dir, out)
}
