// Package view translates seat state into what a lobby screen shows per
// seat. It never knows about widgets; a front end implements SeatView.
package view

import (
	"github.com/OCAP2/lobbyhost/internal/slots"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

// Icon is the status marker next to a seat.
type Icon int

const (
	IconNone Icon = iota
	IconHost
	IconAI
	IconWaiting
	IconNotReady
	IconReady
)

func (i Icon) String() string {
	switch i {
	case IconHost:
		return "host"
	case IconAI:
		return "ai"
	case IconWaiting:
		return "waiting"
	case IconNotReady:
		return "not-ready"
	case IconReady:
		return "ready"
	default:
		return "none"
	}
}

// SeatView is the per-seat surface a front end provides.
type SeatView interface {
	SetControlOptions(options []core.ControlType, selected core.ControlType)
	SetFactionOptions(options []string, selected string)
	SetTeamOptions(options []int, selected int)
	SetMultiplier(index int, visible bool)
	SetName(name string, editable bool)
	SetStatusIcon(icon Icon)
	SetVisible(visible bool)
	SetEnabled(enabled bool)
}

// State is the lobby-wide input of a render.
type State struct {
	MapPlayers     int
	Factions       []string
	AllowObservers bool
	Interactive    bool
	// Locked disables every seat, e.g. after launch.
	Locked bool
}

// Presenter pushes registry state into one view per seat.
type Presenter struct {
	views [core.MaxPlayers]SeatView
}

// NewPresenter binds views to seats in order. Missing views are skipped.
func NewPresenter(views ...SeatView) *Presenter {
	p := &Presenter{}
	for i := 0; i < len(views) && i < core.MaxPlayers; i++ {
		p.views[i] = views[i]
	}
	return p
}

// Render updates every bound view.
func (p *Presenter) Render(reg *slots.Registry, st State) {
	seats := reg.Seats()
	for i, v := range p.views {
		if v == nil {
			continue
		}
		renderSeat(v, i, seats[i], st)
	}
}

func renderSeat(v SeatView, i int, s slots.Seat, st State) {
	visible := i < st.MapPlayers
	v.SetVisible(visible)
	v.SetEnabled(visible && !st.Locked)
	if !visible {
		return
	}

	v.SetControlOptions(ControlOptions(s.Control, st.Interactive), s.Control)
	v.SetFactionOptions(FactionOptions(st.Factions, s.Control, st.AllowObservers), s.Faction)
	v.SetTeamOptions(TeamOptions(st.MapPlayers, s.Faction), s.Team)
	v.SetMultiplier(s.MultiplierIndex, s.Control.IsCPU())

	switch {
	case s.Control == core.Human:
		v.SetName(s.Name, !st.Locked)
		v.SetStatusIcon(IconHost)
	case s.Control.IsCPU():
		v.SetName("", false)
		v.SetStatusIcon(IconAI)
	case s.Control.IsNetwork():
		name := core.UnconnectedName
		icon := IconWaiting
		if s.Conn != nil && s.Conn.IsConnected() {
			name = s.Conn.Name()
			icon = statusIcon(s.Conn.NetworkPlayerStatus())
		}
		v.SetName(name, false)
		v.SetStatusIcon(icon)
	default:
		v.SetName("", false)
		v.SetStatusIcon(IconNone)
	}
}

func statusIcon(s core.PlayerStatus) Icon {
	switch s {
	case core.StatusReady:
		return IconReady
	case core.StatusNotReady:
		return IconNotReady
	default:
		return IconWaiting
	}
}

// ControlOptions lists the control types a seat may be switched to.
// NetworkUnassigned is only offered while the seat already is in it; Human
// only on interactive hosts, network AI only on headless ones.
func ControlOptions(current core.ControlType, interactive bool) []core.ControlType {
	out := []core.ControlType{core.Closed, core.CpuEasy, core.Cpu, core.CpuUltra, core.CpuMega, core.Network}
	if current == core.NetworkUnassigned {
		out = append(out, core.NetworkUnassigned)
	}
	if interactive {
		out = append(out, core.Human)
	} else {
		out = append(out, core.NetworkCpuEasy, core.NetworkCpu, core.NetworkCpuUltra, core.NetworkCpuMega)
	}
	return out
}

// FactionOptions filters the faction list for a seat. AI seats never get
// the observer faction, and nobody does when observers are off.
func FactionOptions(factions []string, control core.ControlType, allowObservers bool) []string {
	out := make([]string, 0, len(factions))
	for _, f := range factions {
		if f == core.DataMissingFaction {
			continue
		}
		if f == core.ObserverFaction && (!allowObservers || control.IsCPU()) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// TeamOptions is 1..mapPlayers, or only the observer team for observers.
func TeamOptions(mapPlayers int, faction string) []int {
	if faction == core.ObserverFaction {
		return []int{core.ObserverTeam}
	}
	out := make([]int, 0, mapPlayers)
	for t := 1; t <= mapPlayers; t++ {
		out = append(out, t)
	}
	return out
}
