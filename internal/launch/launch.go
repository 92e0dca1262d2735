// Package launch validates the lobby one last time and hands the final
// settings to the match layer.
package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/lobbyhost/internal/lang"
	"github.com/OCAP2/lobbyhost/internal/session"
	"github.com/OCAP2/lobbyhost/internal/slots"
	"github.com/OCAP2/lobbyhost/internal/snapshot"
	"github.com/OCAP2/lobbyhost/internal/storage"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

var ErrAlreadyLaunched = errors.New("lobby already launched")

// Reason classifies a rejected launch.
type Reason int

const (
	NoTechtrees Reason = iota + 1
	UnassignedSlots
	DataMismatch
	NoHuman
)

func (r Reason) String() string {
	switch r {
	case NoTechtrees:
		return "no tech trees"
	case UnassignedSlots:
		return "unassigned network slot"
	case DataMismatch:
		return "data mismatch"
	case NoHuman:
		return "no human player"
	default:
		return "unknown"
	}
}

// Rejection is a user-facing launch refusal. The lobby stays open.
type Rejection struct {
	Reason Reason
	Header string
	Text   string
}

func (r *Rejection) Error() string {
	return "launch rejected: " + r.Reason.String()
}

// Builder rebuilds the snapshot after launch-time edits.
type Builder interface {
	Build(reg *slots.Registry, sel snapshot.Selection, opts snapshot.Options) (*core.GameSettings, error)
}

// SynchChecker tells whether every eligible client has the host's data.
type SynchChecker interface {
	IsSynched(checkMap, checkTileset, checkTechtree bool) bool
}

// Clients is the part of the network server the gate talks to.
type Clients interface {
	BroadcastSettings(gs *core.GameSettings) error
	SendNotice(headers, texts map[string]string)
	Languages() []string
	RemoveSlot(i int)
}

// Stopper stops the background publishers without waiting on them and
// publishes finalStatus once.
type Stopper interface {
	Stop(ctx context.Context, finalStatus int)
}

// Dependencies wires the gate.
type Dependencies struct {
	Builder   Builder
	Synch     SynchChecker
	Clients   Clients
	Catalog   *lang.Catalog
	Storage   storage.Backend
	Session   *session.Context
	Scheduler Stopper
	Rand      snapshot.Intn
	Logger    *slog.Logger

	// FinalStatus is advertised when the publishers stop.
	FinalStatus int
	// HostLanguage is used for the texts of a rejection.
	HostLanguage string
}

// Input is the lobby state at the moment launch is requested.
type Input struct {
	Registry  *slots.Registry
	Selection snapshot.Selection
	Options   snapshot.Options
	Techtrees []string
	Factions  []string
	// Previous is the last snapshot handed to clients.
	Previous *core.GameSettings
	// Rebuilt is called with every snapshot the gate sends to clients.
	Rebuilt func(gs *core.GameSettings)
	Now     time.Time
}

// Gate is one-shot: after a successful launch every call fails.
type Gate struct {
	deps Dependencies

	mu       sync.Mutex
	launched bool
}

func New(deps Dependencies) (*Gate, error) {
	if deps.Builder == nil || deps.Synch == nil || deps.Session == nil {
		return nil, errors.New("launch: builder, synch checker and session are required")
	}
	if deps.Catalog == nil {
		deps.Catalog = lang.Default()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Gate{deps: deps}, nil
}

// Launched reports whether the match was handed off.
func (g *Gate) Launched() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.launched
}

func (g *Gate) reject(reason Reason, header, text lang.Key) *Rejection {
	l := g.deps.HostLanguage
	return &Rejection{
		Reason: reason,
		Header: g.deps.Catalog.Text(l, header),
		Text:   g.deps.Catalog.Text(l, text),
	}
}

// stamp gives gs the counter of prev when nothing changed, else the next one.
func stamp(gs, prev *core.GameSettings) bool {
	if prev == nil {
		gs.UpdateCount = 1
		return true
	}
	if gs.Equivalent(prev) {
		gs.UpdateCount = prev.UpdateCount
		return false
	}
	gs.UpdateCount = prev.UpdateCount + 1
	return true
}

// TryLaunch runs the launch checks in order; the first failure wins and is
// returned as *Rejection.
func (g *Gate) TryLaunch(ctx context.Context, in Input) (*core.GameSettings, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.launched {
		return nil, ErrAlreadyLaunched
	}
	reg := in.Registry

	if len(in.Techtrees) == 0 {
		return nil, g.reject(NoTechtrees, lang.LaunchHeader, lang.NoTechtrees)
	}

	if g.deps.Rand != nil {
		snapshot.ResolveRandomFactions(reg, in.Factions, g.deps.Rand)
	}
	prev, err := g.rebuild(in, in.Previous)
	if err != nil {
		return nil, err
	}

	if reg.CountControl(core.NetworkUnassigned) > 0 {
		if g.deps.Clients != nil {
			langs := lang.Languages(g.deps.Clients.Languages()...)
			g.deps.Clients.SendNotice(
				g.deps.Catalog.Localize(langs, lang.LaunchHeader),
				g.deps.Catalog.Localize(langs, lang.UnassignedSlots),
			)
		}
		return nil, g.reject(UnassignedSlots, lang.LaunchHeader, lang.UnassignedSlots)
	}

	if !g.deps.Synch.IsSynched(true, true, true) {
		return nil, g.reject(DataMismatch, lang.DataMismatchHeader, lang.DataMismatch)
	}

	if reg.Interactive() && reg.CountControl(core.Human) == 0 {
		return nil, g.reject(NoHuman, lang.LaunchHeader, lang.NoHuman)
	}

	// Plain network seats nobody took are dropped once every check passed.
	if g.closeUnused(reg) {
		if prev, err = g.rebuild(in, prev); err != nil {
			return nil, err
		}
	}

	gs := prev.Clone()
	g.persist(ctx, gs)
	if err := g.deps.Session.Start(gs, in.Now); err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	g.launched = true
	if g.deps.Scheduler != nil {
		g.deps.Scheduler.Stop(ctx, g.deps.FinalStatus)
	}
	g.deps.Logger.Info("Lobby launched",
		"gameUuid", gs.GameUUID,
		"updateCount", gs.UpdateCount,
		"map", gs.Map,
		"factions", gs.FactionCount)
	return gs, nil
}

// closeUnused closes the network seats without a live client and reports
// whether any was closed.
func (g *Gate) closeUnused(reg *slots.Registry) bool {
	closed := false
	for i, s := range reg.Seats() {
		if s.Control == core.Network && (s.Conn == nil || !s.Conn.IsConnected()) {
			reg.SetControlType(i, core.Closed)
			reg.DetachConnection(i)
			if g.deps.Clients != nil {
				g.deps.Clients.RemoveSlot(i)
			}
			closed = true
		}
	}
	return closed
}

// rebuild builds a fresh snapshot and sends it to clients when it differs
// from prev.
func (g *Gate) rebuild(in Input, prev *core.GameSettings) (*core.GameSettings, error) {
	gs, err := g.deps.Builder.Build(in.Registry, in.Selection, in.Options)
	if err != nil {
		return nil, fmt.Errorf("building launch settings: %w", err)
	}
	if !stamp(gs, prev) {
		return prev, nil
	}
	if g.deps.Clients != nil {
		if err := g.deps.Clients.BroadcastSettings(gs); err != nil {
			g.deps.Logger.Warn("Broadcasting launch settings failed", "error", err)
		}
	}
	if in.Rebuilt != nil {
		in.Rebuilt(gs)
	}
	return gs, nil
}

// persist stores the launch settings. Failures are logged; they never block
// a launch.
func (g *Gate) persist(ctx context.Context, gs *core.GameSettings) {
	if g.deps.Storage == nil {
		return
	}
	if err := g.deps.Storage.SaveLastSettings(ctx, gs); err != nil {
		g.deps.Logger.Warn("Saving last settings failed", "error", err)
	}
	if rec, ok := g.deps.Storage.(storage.LaunchRecorder); ok {
		if err := rec.RecordLaunch(ctx, gs); err != nil {
			g.deps.Logger.Warn("Recording launch failed", "error", err)
		}
	}
}
