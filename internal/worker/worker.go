// Package worker turns inbound client messages into state the lobby tick
// consumes: connection identity, pending switch requests and admin settings.
package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/lobbyhost/internal/queue"
	"github.com/OCAP2/lobbyhost/pkg/core"
	"github.com/OCAP2/lobbyhost/pkg/streaming"
)

var (
	// ErrNoSource is returned when an event carries no usable connection.
	ErrNoSource = errors.New("event has no source connection")
	// ErrNotAdmin is returned when a non-admin client pushes settings.
	ErrNotAdmin = errors.New("settings update from non-admin client")
)

// Conn is the per-connection state handlers update.
type Conn interface {
	SessionKey() uint32
	SetIdentity(hello streaming.HelloPayload)
	SetSynchReport(report streaming.SynchReportPayload)
	SetPlayerStatus(status core.PlayerStatus)
	Pong(at time.Time)
}

// RemoteSink receives settings pushed by the masterserver admin.
type RemoteSink interface {
	OfferRemoteSettings(gs *core.GameSettings)
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Switches *queue.Inbox[core.SwitchSetupRequest]
	Remote   RemoteSink
	// IsAdmin reports whether a session key belongs to the masterserver admin.
	IsAdmin func(sessionKey uint32) bool
	Logger  *slog.Logger
}

// Manager owns the inbound message handlers.
type Manager struct {
	deps Dependencies
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{deps: deps}
}

func sourceConn(src any) (Conn, error) {
	c, ok := src.(Conn)
	if !ok || c == nil {
		return nil, ErrNoSource
	}
	return c, nil
}

// at returns the event time, falling back to the wall clock.
func at(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}

// validateSwitch rejects requests that cannot name a seat or team.
func validateSwitch(req *core.SwitchSetupRequest) error {
	if req.ToSlot != -1 && !core.ValidSeat(req.ToSlot) {
		return fmt.Errorf("switch target %d out of range", req.ToSlot)
	}
	if req.Has(core.FieldTeam) && (req.Team < 1 || req.Team > core.ObserverTeam) {
		return fmt.Errorf("switch team %d out of range", req.Team)
	}
	return nil
}
