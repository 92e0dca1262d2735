package lobby

import (
	"context"
	"time"

	"github.com/OCAP2/lobbyhost/internal/lang"
	"github.com/OCAP2/lobbyhost/internal/view"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

// Tick reconciles everything that happened since the last tick and hands a
// new snapshot to the publishers when the content changed.
func (l *Lobby) Tick(ctx context.Context, now time.Time) {
	defer l.recoverPanic("tick")
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gate.Launched() {
		return
	}

	l.remoteMu.Lock()
	remote := l.pendingRemote
	l.pendingRemote = nil
	l.remoteMu.Unlock()
	if remote != nil {
		l.applyRemoteLocked(remote)
	}

	l.reconciler.Apply(l.deps.Switches.TakeAll(), l.sel.MapPlayers, l.flags.Has(core.FlagAllowObservers))
	l.dropDisconnectedLocked()
	l.seatJoinsLocked()
	l.handOffAdminLocked()
	l.refreshLocked(now)
	l.renderLocked()
}

// DefaultTickInterval is used when Run gets no interval.
const DefaultTickInterval = 250 * time.Millisecond

// Run ticks at interval until ctx is done.
func (l *Lobby) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Tick(ctx, now)
		}
	}
}

func (l *Lobby) langs() []string {
	return lang.Languages(append(l.deps.Network.Languages(), l.cfg.Language)...)
}

func (l *Lobby) tellClients(key lang.Key, args ...any) {
	l.deps.Network.SendLocalized(l.catalog.Localize(l.langs(), key, args...))
}

// dropDisconnectedLocked releases seats whose client went away. Overflow
// seats close again; seats inside the map stay open for a rejoin.
func (l *Lobby) dropDisconnectedLocked() {
	for i, s := range l.reg.Seats() {
		if s.Conn == nil || s.Conn.IsConnected() {
			continue
		}
		name := s.Conn.Name()
		l.reg.DetachConnection(i)
		l.deps.Network.Release(i)
		if s.Control == core.NetworkUnassigned && i >= l.sel.MapPlayers {
			l.reg.SetControlType(i, core.Closed)
		}
		l.logger.Info("Player disconnected", "seat", i, "name", name)
		if name == "" {
			name = core.UnconnectedName
		}
		l.tellClients(lang.PlayerDisconnected, name)
	}
}

// seatJoinsLocked gives each new client the first open network seat of the
// map, or an overflow seat in NetworkUnassigned when the map is full.
func (l *Lobby) seatJoinsLocked() {
	for _, c := range l.deps.Network.TakeJoins() {
		if !c.IsConnected() {
			continue
		}
		slot, overflow := l.freeSeatLocked()
		if slot < 0 {
			l.logger.Info("Lobby full, refusing client")
			_ = c.Close()
			continue
		}
		if err := l.deps.Network.Assign(slot, c); err != nil {
			l.logger.Warn("Seating client failed", "seat", slot, "error", err)
			_ = c.Close()
			continue
		}
		if overflow {
			l.reg.SetControlType(slot, core.NetworkUnassigned)
		}
		l.reg.AttachConnection(slot, c)
		l.logger.Info("Player joined", "seat", slot, "overflow", overflow)
		if overflow {
			name := c.Name()
			if name == "" {
				name = core.UnconnectedName
			}
			l.tellClients(lang.PlayerJoinedOverflow, name)
		}
	}
}

func (l *Lobby) freeSeatLocked() (int, bool) {
	seats := l.reg.Seats()
	for i := 0; i < l.sel.MapPlayers && i < core.MaxPlayers; i++ {
		if seats[i].Control == core.Network && seats[i].Conn == nil {
			return i, false
		}
	}
	for i := l.sel.MapPlayers; i < core.MaxPlayers; i++ {
		if seats[i].Control == core.Closed && seats[i].Conn == nil {
			return i, true
		}
	}
	return -1, false
}

// handOffAdminLocked keeps a masterserver admin on headless lobbies: the
// first connected client gets it and it moves on when the admin leaves.
func (l *Lobby) handOffAdminLocked() {
	if l.reg.Interactive() {
		return
	}
	key := l.adminKey.Load()
	first, firstSeat := uint32(0), -1
	firstName := ""
	for i, s := range l.reg.Seats() {
		if s.Conn == nil || !s.Conn.IsConnected() {
			continue
		}
		if key != 0 && s.Conn.SessionKey() == key {
			l.adminSeat = i
			return
		}
		if firstSeat < 0 {
			first, firstSeat, firstName = s.Conn.SessionKey(), i, s.Conn.Name()
		}
	}

	l.adminKey.Store(first)
	l.adminSeat = firstSeat
	if firstSeat >= 0 {
		l.logger.Info("Masterserver admin handed off", "seat", firstSeat, "name", firstName)
		l.tellClients(lang.AdminHandedOff, firstName)
	}
}

// refreshLocked rebuilds the snapshot and publishes it when it changed.
func (l *Lobby) refreshLocked(now time.Time) {
	gs, err := l.builder.Build(l.reg, l.sel, l.options())
	if err != nil {
		l.logger.Error("Building settings failed", "error", err)
		l.notices.Error(err)
		return
	}
	l.synchFailed = l.checker.Report(gs)

	prev := l.current.Load()
	if prev != nil && gs.Equivalent(prev) {
		return
	}
	l.counter++
	gs.UpdateCount = l.counter
	l.current.Store(gs)
	l.deps.Scheduler.SettingsChanged(gs, l.mapChanged, now)
	l.mapChanged = false
	l.logger.Debug("Settings changed", "updateCount", gs.UpdateCount)
}

func (l *Lobby) renderLocked() {
	st := view.State{
		MapPlayers:     l.sel.MapPlayers,
		Factions:       l.factionOptions(),
		AllowObservers: l.flags.Has(core.FlagAllowObservers),
		Interactive:    l.reg.Interactive(),
		Locked:         l.gate.Launched(),
	}
	for _, p := range l.presenters {
		p.Render(l.reg, st)
	}
}

// factionOptions is the selectable list: random, the techtree's factions,
// then observer.
func (l *Lobby) factionOptions() []string {
	out := make([]string, 0, len(l.factions)+2)
	out = append(out, core.RandomFaction)
	out = append(out, l.factions...)
	return append(out, core.ObserverFaction)
}
