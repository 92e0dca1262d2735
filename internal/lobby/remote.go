package lobby

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/OCAP2/lobbyhost/internal/storage"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

// OfferRemoteSettings queues settings pushed by the masterserver admin for
// the next tick. A newer offer replaces one not yet applied.
func (l *Lobby) OfferRemoteSettings(gs *core.GameSettings) {
	l.remoteMu.Lock()
	defer l.remoteMu.Unlock()
	l.pendingRemote = gs
}

// ApplyRemoteSettings applies externally sourced settings. Settings whose
// counter is not above the last applied one are ignored.
func (l *Lobby) ApplyRemoteSettings(gs *core.GameSettings) bool {
	defer l.recoverPanic("apply remote settings")
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.applyRemoteLocked(gs)
}

func (l *Lobby) applyRemoteLocked(gs *core.GameSettings) bool {
	if gs == nil || gs.UpdateCount <= l.lastRemote {
		l.logger.Debug("Ignoring stale remote settings", "lastApplied", l.lastRemote)
		return false
	}
	l.lastRemote = gs.UpdateCount
	l.applySettingsLocked(gs)
	l.logger.Info("Applied remote settings", "updateCount", gs.UpdateCount)
	return true
}

// RestoreLastSettings applies the settings saved by the last launch. Having
// none saved is not an error.
func (l *Lobby) RestoreLastSettings(ctx context.Context) error {
	if l.deps.Storage == nil {
		return errors.New("no storage configured")
	}
	gs, err := l.deps.Storage.LoadLastSettings(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		l.logger.Info("No last settings to restore")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading last settings: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.applySettingsLocked(gs)
	l.logger.Info("Restored last settings", "map", gs.Map, "techtree", gs.Techtree)
	return nil
}

// applySettingsLocked copies selections, flags and seats from gs. Assets
// this host does not have are skipped. Headless hosts turn human seats into
// network seats.
func (l *Lobby) applySettingsLocked(gs *core.GameSettings) {
	if gs.Techtree != "" && gs.Techtree != l.sel.Techtree {
		if err := l.selectTechtreeLocked(gs.Techtree); err != nil {
			l.logger.Warn("Skipping techtree from settings", "error", err)
		}
	}
	if gs.Tileset != "" {
		if err := l.selectTilesetLocked(gs.Tileset); err != nil {
			l.logger.Warn("Skipping tileset from settings", "error", err)
		}
	}
	if gs.Map != "" {
		if err := l.selectMapLocked(gs.Map); err != nil {
			l.logger.Warn("Skipping map from settings", "error", err)
		}
	}
	l.sel.Scenario = ""
	if gs.Scenario != "" {
		if slices.Contains(l.deps.Assets.Scenarios(), gs.Scenario) {
			l.sel.Scenario = gs.Scenario
		} else {
			l.logger.Warn("Skipping unknown scenario from settings", "scenario", gs.Scenario)
		}
	}
	l.setFlagsLocked(gs.Flags)
	l.aiAccept = gs.AISwitchTeamAcceptPercent
	l.fallbackCpu = gs.FallbackCpuMultiplierIndex

	seen := make(map[int]bool, core.MaxPlayers)
	for _, ss := range gs.Seats {
		i := ss.StartLocation
		if !core.ValidSeat(i) || seen[i] || !ss.Control.Valid() {
			continue
		}
		seen[i] = true

		ct := ss.Control
		if ct == core.Human && !l.reg.Interactive() {
			ct = core.Network
		}
		if ct != l.reg.ControlType(i) {
			l.setControlLocked(i, ct, false)
		}
		if ss.Team >= 1 && ss.Team <= core.ObserverTeam {
			l.reg.SetTeam(i, ss.Team)
		}
		if ss.Faction != core.DataMissingFaction && l.factionAllowedLocked(ss.Faction) {
			l.reg.SetFaction(i, ss.Faction)
		}
		l.reg.SetMultiplierIndex(i, ss.MultiplierIndex)
		if ct == core.Human && ss.PlayerName != "" {
			l.reg.SetName(i, ss.PlayerName)
		}
	}
}
