package lobby

import (
	"fmt"
	"slices"

	"github.com/OCAP2/lobbyhost/internal/assets"
	"github.com/OCAP2/lobbyhost/internal/lang"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

// SetControlType changes who drives seat i. Opening a network seat that the
// server cannot serve turns it into a CPU seat and raises a notice.
func (l *Lobby) SetControlType(i int, ct core.ControlType) {
	defer l.recoverPanic("set control type")
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setControlLocked(i, ct, false)
}

// SetControlTypeBulk applies ct to seat i and every other non-human seat of
// the map.
func (l *Lobby) SetControlTypeBulk(i int, ct core.ControlType) {
	defer l.recoverPanic("set control type")
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setControlLocked(i, ct, true)
}

func (l *Lobby) setControlLocked(i int, ct core.ControlType, bulk bool) {
	before := l.reg.Seats()
	if bulk {
		l.reg.SetControlTypeBulk(i, ct, l.sel.MapPlayers)
	} else {
		l.reg.SetControlType(i, ct)
	}
	after := l.reg.Seats()

	for j := range after {
		was, now := before[j].Control, after[j].Control
		if was == now {
			continue
		}
		if was.IsNetwork() && !now.IsNetwork() {
			l.reg.DetachConnection(j)
			l.deps.Network.RemoveSlot(j)
		}
		if now == core.Network && !was.IsNetwork() {
			l.openSlotLocked(j)
		}
	}
}

func (l *Lobby) openSlotLocked(i int) {
	err := l.deps.Network.OpenSlot(i)
	if err == nil {
		return
	}
	l.logger.Warn("Opening network seat failed", "seat", i, "error", err)
	l.reg.SetControlType(i, core.Cpu)
	l.notices.Raise("", lang.NetworkSlotFailed, i, err.Error())
}

// SetTeam moves seat i to team. Observers stay on the observer team.
func (l *Lobby) SetTeam(i, team int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if team < 1 || team > l.sel.MapPlayers {
		return false
	}
	return l.reg.SetTeam(i, team)
}

// SetFaction picks a faction of the current techtree, random, or observer
// when observers are allowed.
func (l *Lobby) SetFaction(i int, faction string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.factionAllowedLocked(faction) {
		return false
	}
	return l.reg.SetFaction(i, faction)
}

func (l *Lobby) factionAllowedLocked(faction string) bool {
	switch faction {
	case core.RandomFaction:
		return true
	case core.ObserverFaction:
		return l.flags.Has(core.FlagAllowObservers)
	}
	return slices.Contains(l.factions, faction)
}

func (l *Lobby) SetName(i int, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reg.SetName(i, name)
}

// SetMultiplier stores value on the multiplier grid.
func (l *Lobby) SetMultiplier(i int, value float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reg.SetMultiplierIndex(i, core.MultiplierIndex(value))
}

// SelectMap switches the map and fits the seats to its player count.
func (l *Lobby) SelectMap(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.selectMapLocked(name); err != nil {
		return err
	}
	l.leaveScenarioLocked()
	return nil
}

func (l *Lobby) selectMapLocked(name string) error {
	players, ok := l.deps.Assets.MapPlayers(name)
	if !ok {
		return fmt.Errorf("map %q: %w", name, assets.ErrUnknownAsset)
	}
	if name != l.sel.Map {
		l.mapChanged = true
	}
	l.sel.Map = name
	l.sel.MapPlayers = players
	l.fitSeatsLocked()
	return nil
}

// fitSeatsLocked closes unconnected seats beyond the map and parks
// connected ones there in NetworkUnassigned. Headless lobbies open every
// seat of the map.
func (l *Lobby) fitSeatsLocked() {
	players := l.sel.MapPlayers
	for i, s := range l.reg.Seats() {
		connected := s.Conn != nil && s.Conn.IsConnected()
		if i >= players {
			switch {
			case connected && s.Control == core.Network:
				l.reg.SetControlType(i, core.NetworkUnassigned)
			case !connected && s.Control != core.Closed && s.Control != core.Human:
				l.setControlLocked(i, core.Closed, false)
			}
			continue
		}
		if !l.reg.Interactive() && s.Control == core.Closed {
			l.setControlLocked(i, core.Network, false)
		}
	}
}

func (l *Lobby) SelectTileset(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.selectTilesetLocked(name); err != nil {
		return err
	}
	l.leaveScenarioLocked()
	return nil
}

func (l *Lobby) selectTilesetLocked(name string) error {
	if !slices.Contains(l.deps.Assets.Tilesets(), name) {
		return fmt.Errorf("tileset %q: %w", name, assets.ErrUnknownAsset)
	}
	l.sel.Tileset = name
	return nil
}

// SelectTechtree switches the techtree. Seats whose faction does not exist
// in it fall back to random.
func (l *Lobby) SelectTechtree(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.selectTechtreeLocked(name); err != nil {
		return err
	}
	l.leaveScenarioLocked()
	return nil
}

func (l *Lobby) selectTechtreeLocked(name string) error {
	factions, err := l.deps.Assets.Factions(name)
	if err != nil {
		return fmt.Errorf("techtree %q: %w", name, err)
	}
	l.sel.Techtree = name
	l.factions = factions
	for i, s := range l.reg.Seats() {
		if !core.IsSentinelFaction(s.Faction) && !slices.Contains(factions, s.Faction) {
			l.reg.SetFaction(i, core.RandomFaction)
		}
	}
	return nil
}

// SelectScenario loads a scenario and applies its techtree, tileset and map.
// An empty name leaves scenario mode and keeps the current assets.
func (l *Lobby) SelectScenario(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if name == "" {
		l.sel.Scenario = ""
		return nil
	}
	info, err := l.deps.Assets.Scenario(name)
	if err != nil {
		return err
	}
	if info.Techtree != "" {
		if err := l.selectTechtreeLocked(info.Techtree); err != nil {
			return fmt.Errorf("scenario %s: %w", name, err)
		}
	}
	if info.Tileset != "" {
		if err := l.selectTilesetLocked(info.Tileset); err != nil {
			return fmt.Errorf("scenario %s: %w", name, err)
		}
	}
	if info.Map != "" {
		if err := l.selectMapLocked(info.Map); err != nil {
			return fmt.Errorf("scenario %s: %w", name, err)
		}
	}
	l.sel.Scenario = name
	l.logger.Info("Scenario selected", "scenario", name, "map", info.Map)
	return nil
}

// leaveScenarioLocked drops the scenario once the host picks assets by hand.
func (l *Lobby) leaveScenarioLocked() {
	if l.sel.Scenario != "" {
		l.logger.Info("Leaving scenario", "scenario", l.sel.Scenario)
		l.sel.Scenario = ""
	}
}

// SetFlags replaces the game flags. Turning observers off sends observers
// back to random.
func (l *Lobby) SetFlags(flags core.Flags) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setFlagsLocked(flags)
}

func (l *Lobby) setFlagsLocked(flags core.Flags) {
	l.flags = flags
	if flags.Has(core.FlagAllowObservers) {
		return
	}
	for i, s := range l.reg.Seats() {
		if s.Faction == core.ObserverFaction {
			l.reg.SetFaction(i, core.RandomFaction)
		}
	}
}

// Flags returns the current game flags.
func (l *Lobby) Flags() core.Flags {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flags
}

func (l *Lobby) SetPublishEnabled(on bool) {
	l.deps.Scheduler.SetPublishEnabled(on)
}
