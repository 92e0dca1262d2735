// Package session hands the final lobby settings to the match layer.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/OCAP2/lobbyhost/pkg/core"
)

var ErrAlreadyStarted = errors.New("session already started")

// StartFunc is called once with the settings a match starts from.
type StartFunc func(gs *core.GameSettings)

// Context holds the settings of the running match, if any.
type Context struct {
	mu        sync.RWMutex
	settings  *core.GameSettings
	startedAt time.Time
	onStart   []StartFunc
}

// NewContext creates a Context with no match.
func NewContext() *Context {
	return &Context{}
}

// OnStart registers a callback invoked when the match starts.
func (c *Context) OnStart(fn StartFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStart = append(c.onStart, fn)
}

// Settings returns the settings the match was started with.
func (c *Context) Settings() *core.GameSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// StartedAt returns the time the match started, zero before that.
func (c *Context) StartedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startedAt
}

// Started reports whether a match was handed off.
func (c *Context) Started() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings != nil
}

// Start stores gs and notifies the match layer. It succeeds only once.
func (c *Context) Start(gs *core.GameSettings, now time.Time) error {
	c.mu.Lock()
	if c.settings != nil {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.settings = gs
	c.startedAt = now
	callbacks := append([]StartFunc(nil), c.onStart...)
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(gs)
	}
	return nil
}
