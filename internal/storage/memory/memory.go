// internal/storage/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/OCAP2/lobbyhost/pkg/core"
)

// DefaultMaxLaunches bounds the launch history when New gets no limit.
const DefaultMaxLaunches = 64

// LaunchRecord is one launched game
type LaunchRecord struct {
	LaunchedAt time.Time
	Settings   *core.GameSettings
}

// Backend keeps the last settings and a bounded launch history in memory.
// Nothing survives a restart.
type Backend struct {
	maxLaunches int
	now         func() time.Time

	last     *core.GameSettings
	launches []LaunchRecord

	mu sync.RWMutex
}

// New creates a new memory backend
func New(maxLaunches int) *Backend {
	if maxLaunches <= 0 {
		maxLaunches = DefaultMaxLaunches
	}
	return &Backend{maxLaunches: maxLaunches, now: time.Now}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) SaveLastSettings(_ context.Context, gs *core.GameSettings) error {
	if gs == nil {
		return fmt.Errorf("no settings to save")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = gs.Clone()
	return nil
}

func (b *Backend) LoadLastSettings(_ context.Context) (*core.GameSettings, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.last == nil {
		return nil, fmt.Errorf("no last settings in memory: %w", fs.ErrNotExist)
	}
	return b.last.Clone(), nil
}

// RecordLaunch appends gs to the history, dropping the oldest entry when
// full.
func (b *Backend) RecordLaunch(_ context.Context, gs *core.GameSettings) error {
	if gs == nil {
		return fmt.Errorf("no settings to record")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.launches) == b.maxLaunches {
		b.launches = b.launches[1:]
	}
	b.launches = append(b.launches, LaunchRecord{LaunchedAt: b.now(), Settings: gs.Clone()})
	return nil
}

// Launches returns up to limit records, newest first. limit <= 0 means all.
func (b *Backend) Launches(limit int) []LaunchRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := len(b.launches)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]LaunchRecord, 0, n)
	for i := len(b.launches) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, b.launches[i])
	}
	return out
}
