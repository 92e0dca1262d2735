// Package switchreq applies client-submitted seat changes to the registry.
package switchreq

import (
	"log/slog"

	"github.com/OCAP2/lobbyhost/internal/slots"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

// SlotSwitcher performs the connection-level part of a seat move.
type SlotSwitcher interface {
	// SwitchSlot moves the client connected on from to the free seat to.
	SwitchSlot(from, to int) bool
	// RemoveSlot releases whatever connection resource seat i holds.
	RemoveSlot(i int)
}

// Reconciler consumes pending switch requests once per tick.
type Reconciler struct {
	reg      *slots.Registry
	switcher SlotSwitcher
	logger   *slog.Logger
}

func New(reg *slots.Registry, switcher SlotSwitcher, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{reg: reg, switcher: switcher, logger: logger}
}

// Apply consumes requests, indexed by source seat. Seats in [0, activeEnd)
// are handled unconditionally; overflow seats only while NetworkUnassigned.
// Every request is dropped afterwards whatever the outcome. It reports
// whether the registry changed.
func (r *Reconciler) Apply(requests []*core.SwitchSetupRequest, activeEnd int, allowObservers bool) bool {
	if activeEnd > core.MaxPlayers {
		activeEnd = core.MaxPlayers
	}
	changed := false

	for i := 0; i < activeEnd && i < len(requests); i++ {
		if requests[i] != nil {
			changed = r.apply(i, requests[i], allowObservers) || changed
			requests[i] = nil
		}
	}
	for i := activeEnd; i < core.MaxPlayers && i < len(requests); i++ {
		req := requests[i]
		if req == nil {
			continue
		}
		if r.reg.ControlType(i) == core.NetworkUnassigned {
			changed = r.apply(i, req, allowObservers) || changed
		} else {
			r.logger.Debug("dropping switch request from overflow seat", "seat", i)
		}
		requests[i] = nil
	}
	return changed
}

func (r *Reconciler) apply(i int, req *core.SwitchSetupRequest, allowObservers bool) bool {
	if !req.IsMove() {
		return r.applyFields(i, req, allowObservers)
	}

	to := req.ToSlot
	if !core.ValidSeat(to) || to == i || !r.canMoveTo(to) {
		r.logger.Debug("switch request rejected", "from", i, "to", to)
		return false
	}
	if !r.switcher.SwitchSlot(i, to) {
		r.logger.Debug("slot switch refused by server", "from", i, "to", to)
		return false
	}

	sourceControl := r.reg.ControlType(i)
	conn := r.reg.DetachConnection(i)
	r.reg.AttachConnection(to, conn)
	r.reg.SetControlType(to, core.Network)
	r.applyFields(to, req, allowObservers)

	if sourceControl == core.NetworkUnassigned {
		r.reg.SetControlType(i, core.Closed)
		r.switcher.RemoveSlot(i)
	}
	r.logger.Info("player switched seat", "from", i, "to", to)
	return true
}

func (r *Reconciler) canMoveTo(to int) bool {
	s := r.reg.Seat(to)
	if s.Control == core.Human || !s.Control.IsNetwork() {
		return false
	}
	return s.Conn == nil || !s.Conn.IsConnected()
}

func (r *Reconciler) applyFields(i int, req *core.SwitchSetupRequest, allowObservers bool) bool {
	before := r.reg.Seat(i)

	if req.Has(core.FieldFaction) && req.Faction != "" && req.Faction != core.DataMissingFaction {
		if req.Faction != core.ObserverFaction || allowObservers {
			r.reg.SetFaction(i, req.Faction)
		}
	}
	if req.Has(core.FieldTeam) {
		r.reg.SetTeam(i, req.Team)
	}
	if req.Has(core.FieldName) {
		if req.PlayerName == core.UnconnectedName {
			r.reg.SetName(i, "")
		} else {
			r.reg.SetName(i, req.PlayerName)
		}
	}
	if req.Has(core.FieldStatus) {
		r.reg.SetStatus(i, req.Status)
	}

	after := r.reg.Seat(i)
	return before.Faction != after.Faction || before.Team != after.Team ||
		before.Name != after.Name || before.Status != after.Status
}
