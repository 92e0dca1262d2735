package cache

import (
	"fmt"
	"sync"

	"github.com/OCAP2/lobbyhost/pkg/core"
)

// ComputeFunc produces the checksum of the currently selected asset. force
// asks the collaborator to bypass its own memo.
type ComputeFunc func(force bool) (uint32, error)

type entry struct {
	name     string
	value    uint32
	computed bool
	// selection that last triggered a forced refresh
	forcedFor string
}

// ChecksumCache remembers the last checksum per asset category so snapshot
// builds stay cheap. Building happens every tick; folder hashing does not.
type ChecksumCache struct {
	mu      sync.Mutex
	entries map[core.AssetCategory]*entry
}

func NewChecksumCache() *ChecksumCache {
	return &ChecksumCache{
		entries: make(map[core.AssetCategory]*entry),
	}
}

func (c *ChecksumCache) get(cat core.AssetCategory) *entry {
	e, ok := c.entries[cat]
	if !ok {
		e = &entry{}
		c.entries[cat] = e
	}
	return e
}

// Resolve returns the checksum for name, computing it when the selection
// changed. synchFailed forces one recompute per distinct selection, so a
// client that keeps reporting a mismatch cannot cause a refresh storm. A zero
// result is retried once with force set.
func (c *ChecksumCache) Resolve(cat core.AssetCategory, name string, synchFailed bool, compute ComputeFunc) (uint32, error) {
	if name == "" {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.get(cat)
	force := false
	if synchFailed && e.forcedFor != name {
		force = true
		e.forcedFor = name
	}
	if !force && e.computed && e.name == name {
		return e.value, nil
	}

	v, err := compute(force)
	if err != nil {
		return 0, fmt.Errorf("checksum %s %q: %w", cat, name, err)
	}
	if v == 0 && !force {
		if v, err = compute(true); err != nil {
			return 0, fmt.Errorf("checksum %s %q: %w", cat, name, err)
		}
	}

	e.name = name
	e.value = v
	e.computed = true
	return v, nil
}

// Last returns the cached name and value for a category.
func (c *ChecksumCache) Last(cat core.AssetCategory) (string, uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cat]
	if !ok || !e.computed {
		return "", 0, false
	}
	return e.name, e.value, true
}

// Invalidate drops the memo of one category.
func (c *ChecksumCache) Invalidate(cat core.AssetCategory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cat)
}

func (c *ChecksumCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[core.AssetCategory]*entry)
}
