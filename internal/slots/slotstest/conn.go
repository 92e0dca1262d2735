// Package slotstest provides an in-memory slots.Connection for tests.
package slotstest

import (
	"sync"

	"github.com/OCAP2/lobbyhost/pkg/core"
)

// Conn is a scriptable connection handle.
type Conn struct {
	mu sync.Mutex

	Connected     bool
	PlayerName    string
	PlayerUUID    string
	PlayerOS      string
	Lang          string
	Key           uint32
	Status        core.PlayerStatus
	Synch         map[core.AssetCategory]bool
	AllowDownload bool
	AllowCheck    bool
	Closed        bool
}

// NewConn returns a connected, fully synched handle.
func NewConn(name string) *Conn {
	return &Conn{
		Connected:     true,
		PlayerName:    name,
		PlayerUUID:    name + "-uuid",
		PlayerOS:      "linux",
		Lang:          "en",
		AllowDownload: true,
		AllowCheck:    true,
		Synch: map[core.AssetCategory]bool{
			core.CategoryMap:      true,
			core.CategoryTileset:  true,
			core.CategoryTechtree: true,
		},
	}
}

func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Connected && !c.Closed
}

func (c *Conn) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.PlayerName
}

func (c *Conn) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PlayerName = name
}

func (c *Conn) UUID() string       { return c.PlayerUUID }
func (c *Conn) Platform() string   { return c.PlayerOS }
func (c *Conn) Language() string   { return c.Lang }
func (c *Conn) SessionKey() uint32 { return c.Key }

func (c *Conn) NetworkPlayerStatus() core.PlayerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Status
}

// SetSynch flips the ok flag of one category.
func (c *Conn) SetSynch(cat core.AssetCategory, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Synch[cat] = ok
}

func (c *Conn) SynchOK(cat core.AssetCategory) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Synch[cat]
}

func (c *Conn) AllowDownloadDataSynch() bool  { return c.AllowDownload }
func (c *Conn) AllowGameDataSynchCheck() bool { return c.AllowCheck }

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}
