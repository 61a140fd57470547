// Package sessions stores each user's position in the voting guide.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"gopkg.in/yaml.v3"
)

// MemoryStore keeps guide steps in process memory. Handlers run concurrently
// across users, so the map is guarded by a mutex.
type MemoryStore struct {
	mu    sync.RWMutex
	steps map[sharedtypes.DiscordID]waifuwartypes.GuideStep
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{steps: make(map[sharedtypes.DiscordID]waifuwartypes.GuideStep)}
}

func (m *MemoryStore) Get(_ context.Context, userID sharedtypes.DiscordID) (waifuwartypes.GuideStep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.steps[userID], nil
}

func (m *MemoryStore) Set(_ context.Context, userID sharedtypes.DiscordID, step waifuwartypes.GuideStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if step == waifuwartypes.GuideStepNone {
		delete(m.steps, userID)
		return nil
	}
	m.steps[userID] = step
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, userID sharedtypes.DiscordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.steps, userID)
	return nil
}

// Snapshot copies every in-progress guide.
func (m *MemoryStore) Snapshot(context.Context) (map[sharedtypes.DiscordID]waifuwartypes.GuideStep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[sharedtypes.DiscordID]waifuwartypes.GuideStep, len(m.steps))
	for k, v := range m.steps {
		out[k] = v
	}
	return out, nil
}

// Restore merges steps into the store; restored entries win over current ones.
func (m *MemoryStore) Restore(_ context.Context, steps map[sharedtypes.DiscordID]waifuwartypes.GuideStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range steps {
		if v == waifuwartypes.GuideStepNone {
			continue
		}
		m.steps[k] = v
	}
	return nil
}

// Snapshotter is implemented by every store.
type Snapshotter interface {
	Snapshot(ctx context.Context) (map[sharedtypes.DiscordID]waifuwartypes.GuideStep, error)
}

// Restorer is implemented by every store.
type Restorer interface {
	Restore(ctx context.Context, steps map[sharedtypes.DiscordID]waifuwartypes.GuideStep) error
}

// snapshotFile is the on-disk layout of a saved snapshot.
type snapshotFile struct {
	Steps map[string]int `yaml:"steps"`
}

// SaveFile writes the store's snapshot to path so in-progress guides survive a restart.
func SaveFile(ctx context.Context, store Snapshotter, path string) error {
	steps, err := store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot sessions: %w", err)
	}
	file := snapshotFile{Steps: make(map[string]int, len(steps))}
	for k, v := range steps {
		file.Steps[string(k)] = int(v)
	}
	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to encode sessions: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write sessions file: %w", err)
	}
	return nil
}

// LoadFile restores a snapshot written by SaveFile. A missing file is not an error.
func LoadFile(ctx context.Context, store Restorer, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read sessions file: %w", err)
	}
	var file snapshotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to decode sessions file: %w", err)
	}
	steps := make(map[sharedtypes.DiscordID]waifuwartypes.GuideStep, len(file.Steps))
	for k, v := range file.Steps {
		step := waifuwartypes.GuideStep(v)
		if !step.Active() {
			continue
		}
		steps[sharedtypes.DiscordID(k)] = step
	}
	if err := store.Restore(ctx, steps); err != nil {
		return 0, fmt.Errorf("failed to restore sessions: %w", err)
	}
	return len(steps), nil
}
