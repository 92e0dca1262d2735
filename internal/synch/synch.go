// Package synch compares the host's asset checksums against what connected
// clients report.
package synch

import (
	"log/slog"
	"sync"

	"github.com/OCAP2/lobbyhost/internal/lang"
	"github.com/OCAP2/lobbyhost/internal/slots"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

// TextSender delivers a text to every client, picking the entry matching
// each client's language.
type TextSender interface {
	SendLocalized(texts map[string]string)
}

// Checker scans network seats for synch failures.
type Checker struct {
	reg     *slots.Registry
	sender  TextSender
	catalog *lang.Catalog
	logger  *slog.Logger

	mu       sync.Mutex
	reported map[core.AssetCategory]string
}

func NewChecker(reg *slots.Registry, sender TextSender, catalog *lang.Catalog, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		reg:      reg,
		sender:   sender,
		catalog:  catalog,
		logger:   logger,
		reported: make(map[core.AssetCategory]string),
	}
}

// eligible returns the connection of seat s if it takes part in the check.
func eligible(s slots.Seat) slots.Connection {
	if s.Control != core.Network || s.Conn == nil || !s.Conn.IsConnected() {
		return nil
	}
	if !s.Conn.AllowDownloadDataSynch() || !s.Conn.AllowGameDataSynchCheck() {
		return nil
	}
	return s.Conn
}

// IsSynched is false as soon as one eligible seat lacks the ok flag for a
// requested category.
func (c *Checker) IsSynched(checkMap, checkTileset, checkTechtree bool) bool {
	want := map[core.AssetCategory]bool{
		core.CategoryMap:      checkMap,
		core.CategoryTileset:  checkTileset,
		core.CategoryTechtree: checkTechtree,
	}
	for _, s := range c.reg.Seats() {
		conn := eligible(s)
		if conn == nil {
			continue
		}
		for _, cat := range core.Categories {
			if want[cat] && !conn.SynchOK(cat) {
				return false
			}
		}
	}
	return true
}

type mismatch struct {
	player string
	cat    core.AssetCategory
}

// Report collects the categories some client disagrees on. Each category
// remembers the asset it last reported; a diagnostic goes out only for the
// categories whose asset changed since.
func (c *Checker) Report(gs *core.GameSettings) map[core.AssetCategory]bool {
	failing := make(map[core.AssetCategory]bool)
	var found []mismatch
	var langs []string

	for _, s := range c.reg.Seats() {
		if s.Conn != nil && s.Conn.IsConnected() {
			langs = append(langs, s.Conn.Language())
		}
		conn := eligible(s)
		if conn == nil {
			continue
		}
		for _, cat := range core.Categories {
			if !conn.SynchOK(cat) {
				failing[cat] = true
				found = append(found, mismatch{player: conn.Name(), cat: cat})
			}
		}
	}
	if len(found) == 0 {
		return failing
	}

	fresh := make(map[core.AssetCategory]bool, len(failing))
	c.mu.Lock()
	for cat := range failing {
		asset := gs.Asset(cat)
		if prev, ok := c.reported[cat]; !ok || prev != asset {
			c.reported[cat] = asset
			fresh[cat] = true
		}
	}
	c.mu.Unlock()
	if len(fresh) == 0 {
		return failing
	}

	langs = lang.Languages(langs...)
	for _, m := range found {
		if !fresh[m.cat] {
			continue
		}
		c.logger.Warn("client data mismatch", "player", m.player, "category", m.cat.String(), "asset", gs.Asset(m.cat))
		if c.sender != nil && len(langs) > 0 {
			c.sender.SendLocalized(c.catalog.Localize(langs, lang.DataMismatch, m.player, m.cat.String(), gs.Asset(m.cat)))
		}
	}
	return failing
}
