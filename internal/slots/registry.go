// Package slots owns the per-seat lobby state and its lifecycle rules.
package slots

import (
	"fmt"
	"sync"

	"github.com/OCAP2/lobbyhost/pkg/core"
)

// DefaultPlayerName is used when a seat turns Human without a name to carry.
const DefaultPlayerName = "Player"

// Seat is the mutable state of one lobby position.
type Seat struct {
	Control         core.ControlType
	Team            int
	Faction         string
	MultiplierIndex int
	Name            string
	Status          core.PlayerStatus
	Conn            Connection

	// team to restore when the seat leaves the observer faction
	lastTeam int
}

// Options configures a Registry.
type Options struct {
	// Interactive enables the single-human invariant. Headless hosts have no
	// local player at all.
	Interactive bool
	DefaultName string
}

// Registry holds the fixed set of seats.
type Registry struct {
	mu          sync.RWMutex
	seats       [core.MaxPlayers]Seat
	interactive bool
	defaultName string
}

// NewRegistry creates a registry with every seat closed.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		interactive: opts.Interactive,
		defaultName: opts.DefaultName,
	}
	if r.defaultName == "" {
		r.defaultName = DefaultPlayerName
	}
	r.Reset()
	return r
}

func mustSeat(i int) {
	if !core.ValidSeat(i) {
		panic(fmt.Sprintf("slots: seat index %d out of range", i))
	}
}

// Interactive reports whether a local human is expected.
func (r *Registry) Interactive() bool {
	return r.interactive
}

// DefaultName is the name given to a local human seat with nothing to inherit.
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Reset closes every seat and forgets all connections.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.seats {
		r.seats[i] = Seat{
			Control:         core.Closed,
			Team:            i + 1,
			Faction:         core.RandomFaction,
			MultiplierIndex: core.DefaultMultiplierIndex,
			lastTeam:        i + 1,
		}
	}
}

// ApplyDefaultLayout seeds seats for a fresh lobby: seat 0 is the local human
// (interactive hosts), the rest are CPU, open network seats or closed.
func (r *Registry) ApplyDefaultLayout(openNetworkSlots bool) {
	r.Reset()
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.interactive {
		for i := range r.seats {
			r.seats[i].Control = core.Network
		}
		return
	}

	r.seats[0].Control = core.Human
	r.seats[0].Name = r.defaultName
	for i := 1; i < core.MaxPlayers; i++ {
		switch {
		case openNetworkSlots:
			r.seats[i].Control = core.Network
		case i == 1:
			r.seats[i].Control = core.Cpu
		}
	}
}

// Seats returns a copy of every seat.
func (r *Registry) Seats() [core.MaxPlayers]Seat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seats
}

// Seat returns a copy of seat i.
func (r *Registry) Seat(i int) Seat {
	mustSeat(i)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seats[i]
}

// ControlType returns who drives seat i.
func (r *Registry) ControlType(i int) core.ControlType {
	mustSeat(i)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seats[i].Control
}

// SetControlType changes seat i and restores the single-human invariant.
func (r *Registry) SetControlType(i int, ct core.ControlType) {
	mustSeat(i)
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.seats[i]
	r.setControlLocked(i, ct)
	r.enforceSingleHumanLocked(i, prev)
}

// SetControlTypeBulk changes seat i and every other non-human seat below
// activePlayers to the same type. Seats waiting in NetworkUnassigned are only
// touched when that is the requested type.
func (r *Registry) SetControlTypeBulk(i int, ct core.ControlType, activePlayers int) {
	mustSeat(i)
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.seats[i]
	r.setControlLocked(i, ct)
	if ct != core.Human {
		if activePlayers > core.MaxPlayers {
			activePlayers = core.MaxPlayers
		}
		for j := 0; j < activePlayers; j++ {
			if j == i || r.seats[j].Control == core.Human {
				continue
			}
			if r.seats[j].Control == core.NetworkUnassigned && ct != core.NetworkUnassigned {
				continue
			}
			r.setControlLocked(j, ct)
		}
	}
	r.enforceSingleHumanLocked(i, prev)
}

func (r *Registry) setControlLocked(i int, ct core.ControlType) {
	s := &r.seats[i]
	s.Control = ct

	switch {
	case ct == core.Human:
		s.MultiplierIndex = core.DefaultMultiplierIndex
		if s.Name == "" {
			s.Name = r.defaultName
		}
	case ct.IsCPU():
		if s.Faction == core.ObserverFaction {
			s.Faction = core.RandomFaction
			s.Team = s.lastTeam
		}
	}
}

// enforceSingleHumanLocked keeps at most one human seat on interactive hosts.
// edited is the seat that was just changed and prev its state before the edit.
func (r *Registry) enforceSingleHumanLocked(edited int, prev Seat) {
	if !r.interactive {
		return
	}

	var humans []int
	for j := range r.seats {
		if r.seats[j].Control == core.Human {
			humans = append(humans, j)
		}
	}

	switch {
	case len(humans) > 1:
		survivor := humans[0]
		if r.seats[edited].Control == core.Human {
			survivor = edited
		}
		carried := ""
		for _, j := range humans {
			if j == survivor {
				continue
			}
			if carried == "" {
				carried = r.seats[j].Name
			}
			r.seats[j].Control = core.Closed
		}
		if carried == "" {
			carried = r.defaultName
		}
		r.seats[survivor].Name = carried

	case len(humans) == 0 && r.seats[edited].Control != core.Human:
		for j := range r.seats {
			if j == edited {
				continue
			}
			c := r.seats[j].Control
			if c != core.Closed && !(c.IsCPU() && !c.IsNetworkCPU()) {
				continue
			}
			name := r.defaultName
			if prev.Control == core.Human && prev.Name != "" {
				name = prev.Name
			}
			r.setControlLocked(j, core.Human)
			r.seats[j].Name = name
			return
		}
	}
}

// Team returns the team of seat i.
func (r *Registry) Team(i int) int {
	mustSeat(i)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seats[i].Team
}

// SetTeam assigns a team. Observer seats stay on the observer team and only
// observers may join it. It returns false when the change was refused.
func (r *Registry) SetTeam(i, team int) bool {
	mustSeat(i)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setTeamLocked(i, team)
}

func (r *Registry) setTeamLocked(i, team int) bool {
	s := &r.seats[i]
	if s.Faction == core.ObserverFaction {
		s.Team = core.ObserverTeam
		return team == core.ObserverTeam
	}
	if team < 1 || team > core.MaxPlayers {
		return false
	}
	s.Team = team
	s.lastTeam = team
	return true
}

// Faction returns the faction name of seat i.
func (r *Registry) Faction(i int) string {
	mustSeat(i)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seats[i].Faction
}

// SetFaction assigns a faction. CPU seats can never observe. Choosing the
// observer faction moves the seat to the observer team; leaving it restores
// the last regular team.
func (r *Registry) SetFaction(i int, faction string) bool {
	mustSeat(i)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setFactionLocked(i, faction)
}

func (r *Registry) setFactionLocked(i int, faction string) bool {
	s := &r.seats[i]
	if faction == "" {
		return false
	}
	if faction == core.ObserverFaction {
		if s.Control.IsCPU() {
			return false
		}
		s.Faction = faction
		s.Team = core.ObserverTeam
		return true
	}
	if s.Faction == core.ObserverFaction {
		s.Team = s.lastTeam
	}
	s.Faction = faction
	return true
}

// Name returns the display name of seat i.
func (r *Registry) Name(i int) string {
	mustSeat(i)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seats[i].Name
}

// SetName sets the display name of seat i. A connected handle is renamed too,
// unless the name is being cleared.
func (r *Registry) SetName(i int, name string) {
	mustSeat(i)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seats[i].Name = name
	if c := r.seats[i].Conn; name != "" && c != nil && c.IsConnected() {
		c.SetName(name)
	}
}

// MultiplierIndex returns the resource multiplier grid index of seat i.
func (r *Registry) MultiplierIndex(i int) int {
	mustSeat(i)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seats[i].MultiplierIndex
}

// SetMultiplierIndex stores a resource multiplier grid index.
func (r *Registry) SetMultiplierIndex(i, index int) {
	mustSeat(i)
	if index < 0 {
		index = 0
	}
	if index > core.MultiplierMaxIndex {
		index = core.MultiplierMaxIndex
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seats[i].MultiplierIndex = index
}

// SetStatus records the readiness of seat i.
func (r *Registry) SetStatus(i int, status core.PlayerStatus) {
	mustSeat(i)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seats[i].Status = status
}

// IsConnected reports whether seat i holds a live connection.
func (r *Registry) IsConnected(i int) bool {
	mustSeat(i)
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.seats[i].Conn
	return c != nil && c.IsConnected()
}

// Connection returns the handle attached to seat i, if any.
func (r *Registry) Connection(i int) Connection {
	mustSeat(i)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seats[i].Conn
}

// AttachConnection binds a handle to a network seat.
func (r *Registry) AttachConnection(i int, conn Connection) {
	mustSeat(i)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seats[i].Conn = conn
}

// DetachConnection drops the handle of seat i and returns it.
func (r *Registry) DetachConnection(i int) Connection {
	mustSeat(i)
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.seats[i].Conn
	r.seats[i].Conn = nil
	r.seats[i].Status = core.StatusSetup
	return c
}

// CountControl counts seats with control type ct.
func (r *Registry) CountControl(ct core.ControlType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.seats {
		if s.Control == ct {
			n++
		}
	}
	return n
}
