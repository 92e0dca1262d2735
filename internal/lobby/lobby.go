// Package lobby drives the host side of a game lobby: it owns the seats,
// rebuilds settings every tick, seats joining clients and hands the final
// settings to the match layer.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/OCAP2/lobbyhost/internal/assets"
	"github.com/OCAP2/lobbyhost/internal/cache"
	"github.com/OCAP2/lobbyhost/internal/config"
	"github.com/OCAP2/lobbyhost/internal/influx"
	"github.com/OCAP2/lobbyhost/internal/lang"
	"github.com/OCAP2/lobbyhost/internal/launch"
	"github.com/OCAP2/lobbyhost/internal/publish"
	"github.com/OCAP2/lobbyhost/internal/queue"
	"github.com/OCAP2/lobbyhost/internal/session"
	"github.com/OCAP2/lobbyhost/internal/slots"
	"github.com/OCAP2/lobbyhost/internal/snapshot"
	"github.com/OCAP2/lobbyhost/internal/storage"
	"github.com/OCAP2/lobbyhost/internal/switchreq"
	"github.com/OCAP2/lobbyhost/internal/synch"
	"github.com/OCAP2/lobbyhost/internal/view"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

// Network is the client-facing side of the lobby. *netserver.Server
// satisfies it.
type Network interface {
	TakeJoins() []slots.Connection
	Assign(slot int, c slots.Connection) error
	Release(slot int)
	SwitchSlot(from, to int) bool
	RemoveSlot(i int)
	OpenSlot(i int) error
	BroadcastSettings(gs *core.GameSettings) error
	SendLocalized(texts map[string]string)
	SendNotice(headers, texts map[string]string)
	Languages() []string
}

// Scheduler receives every new snapshot. *publish.Scheduler satisfies it.
type Scheduler interface {
	SettingsChanged(gs *core.GameSettings, mapChanged bool, now time.Time)
	SetPublishEnabled(on bool)
	PublishEnabled() bool
	Stop(ctx context.Context, finalStatus int)
}

// Dependencies holds all dependencies for the lobby
type Dependencies struct {
	Config    config.LobbyConfig
	Assets    assets.Index
	Hasher    snapshot.Checksummer
	Network   Network
	Scheduler Scheduler
	Notices   *Notices
	Storage   storage.Backend
	Session   *session.Context
	Catalog   *lang.Catalog
	Switches  *queue.Inbox[core.SwitchSetupRequest]
	// Views are optional front-end seat views.
	Views  []view.SeatView
	Rand   snapshot.Intn
	Logger *slog.Logger
	Now    func() time.Time
}

// Lobby is the authoritative lobby state. Edits and Tick are serialized;
// OfferRemoteSettings, IsAdmin, Snapshot, Status and LogContext may be
// called from any goroutine.
type Lobby struct {
	deps    Dependencies
	cfg     config.LobbyConfig
	logger  *slog.Logger
	catalog *lang.Catalog
	notices *Notices

	reg        *slots.Registry
	builder    *snapshot.Builder
	reconciler *switchreq.Reconciler
	checker    *synch.Checker
	gate       *launch.Gate
	board      *view.Board
	presenters []*view.Presenter

	gameUUID string
	hostUUID string

	mu          sync.Mutex
	sel         snapshot.Selection
	factions    []string
	flags       core.Flags
	aiAccept    int
	fallbackCpu int
	counter     uint64
	lastRemote  uint64
	mapChanged  bool
	synchFailed map[core.AssetCategory]bool
	adminSeat   int

	adminKey atomic.Uint32
	current  atomic.Pointer[core.GameSettings]

	remoteMu      sync.Mutex
	pendingRemote *core.GameSettings
}

// New builds a lobby with the default seat layout and the first available
// assets selected. Errors here are fatal for the lobby.
func New(deps Dependencies) (*Lobby, error) {
	if deps.Assets == nil || deps.Hasher == nil || deps.Network == nil || deps.Scheduler == nil {
		return nil, errors.New("lobby: assets, hasher, network and scheduler are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Catalog == nil {
		deps.Catalog = lang.Default()
	}
	if deps.Notices == nil {
		deps.Notices = NewNotices(deps.Catalog, deps.Config.Language, deps.Logger)
	}
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	if deps.Switches == nil {
		deps.Switches = queue.NewInbox[core.SwitchSetupRequest](core.MaxPlayers)
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	cfg := deps.Config
	l := &Lobby{
		deps:      deps,
		cfg:       cfg,
		logger:    deps.Logger,
		catalog:   deps.Catalog,
		notices:   deps.Notices,
		gameUUID:  uuid.NewString(),
		hostUUID:  uuid.NewString(),
		adminSeat: -1,
		board:     view.NewBoard(),
		aiAccept:  cfg.AISwitchTeamAcceptPercent,
		flags: core.Flags(0).
			With(core.FlagFogOfWar, cfg.FogOfWar).
			With(core.FlagAllowObservers, cfg.AllowObservers).
			With(core.FlagAllowSwitchTeams, cfg.AllowSwitchTeams).
			With(core.FlagAllowInGameJoin, cfg.AllowInGameJoin),
		fallbackCpu: core.MultiplierIndex(cfg.FallbackCpuMultiplier),
	}
	if cfg.FallbackCpuMultiplier == 0 {
		l.fallbackCpu = core.DefaultMultiplierIndex
	}

	l.reg = slots.NewRegistry(slots.Options{
		Interactive: !cfg.Headless,
		DefaultName: cfg.DefaultPlayerName,
	})
	l.builder = snapshot.NewBuilder(cache.NewChecksumCache(), deps.Hasher, deps.Assets)
	l.reconciler = switchreq.New(l.reg, deps.Network, deps.Logger)
	l.checker = synch.NewChecker(l.reg, deps.Network, deps.Catalog, deps.Logger)
	l.presenters = []*view.Presenter{view.NewPresenter(l.board.Views()...)}
	if len(deps.Views) > 0 {
		l.presenters = append(l.presenters, view.NewPresenter(deps.Views...))
	}

	gate, err := launch.New(launch.Dependencies{
		Builder:      l.builder,
		Synch:        l.checker,
		Clients:      deps.Network,
		Catalog:      deps.Catalog,
		Storage:      deps.Storage,
		Session:      deps.Session,
		Scheduler:    deps.Scheduler,
		Rand:         deps.Rand,
		Logger:       deps.Logger,
		FinalStatus:  publish.StatusInProgress,
		HostLanguage: cfg.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("creating launch gate: %w", err)
	}
	l.gate = gate

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.selectDefaultsLocked(); err != nil {
		return nil, err
	}
	l.reg.ApplyDefaultLayout(cfg.OpenNetworkSlots)
	l.fitSeatsLocked()
	for i, s := range l.reg.Seats() {
		if s.Control == core.Network {
			l.openSlotLocked(i)
		}
	}
	return l, nil
}

func (l *Lobby) selectDefaultsLocked() error {
	l.sel.MapPlayers = core.MaxPlayers
	if maps := l.deps.Assets.Maps(); len(maps) > 0 {
		l.sel.Map = maps[0].Name
		l.sel.MapPlayers = maps[0].Players
	}
	if ts := l.deps.Assets.Tilesets(); len(ts) > 0 {
		l.sel.Tileset = ts[0]
	}
	if tt := l.deps.Assets.Techtrees(); len(tt) > 0 {
		if err := l.selectTechtreeLocked(tt[0]); err != nil {
			return fmt.Errorf("loading default techtree: %w", err)
		}
	}
	return nil
}

// Registry exposes the seats for read access.
func (l *Lobby) Registry() *slots.Registry { return l.reg }

// Notices returns the notice queue.
func (l *Lobby) Notices() *Notices { return l.notices }

// Session returns the match hand-off context.
func (l *Lobby) Session() *session.Context { return l.deps.Session }

// Board returns the rendered seat rows.
func (l *Lobby) Board() *view.Board { return l.board }

// Snapshot returns the latest settings handed to clients, nil before the
// first tick.
func (l *Lobby) Snapshot() *core.GameSettings { return l.current.Load() }

// IsAdmin reports whether key belongs to the masterserver admin. Only
// headless lobbies have one.
func (l *Lobby) IsAdmin(key uint32) bool {
	return key != 0 && key == l.adminKey.Load()
}

// LogContext adds the current game to every log record.
func (l *Lobby) LogContext() []slog.Attr {
	gs := l.current.Load()
	if gs == nil {
		return nil
	}
	return []slog.Attr{
		slog.String("gameUuid", gs.GameUUID),
		slog.Uint64("updateCount", gs.UpdateCount),
	}
}

// Status summarizes the lobby for the monitor.
func (l *Lobby) Status() influx.LobbyStatus {
	st := influx.LobbyStatus{
		Time:           l.deps.Now(),
		Published:      l.deps.Scheduler.PublishEnabled(),
		PendingNotices: l.notices.Pending(),
		Seats:          l.board.Rows(),
	}
	gs := l.current.Load()
	if gs == nil {
		return st
	}
	c := publish.CountSlots(gs)
	st.GameUUID = gs.GameUUID
	st.Map = gs.Map
	st.Techtree = gs.Techtree
	st.UpdateCount = gs.UpdateCount
	st.ActiveSlots = c.Active
	st.NetworkSlots = c.Network
	st.ConnectedClients = c.Connected
	st.GameStatus = publish.LobbyStatus(gs)
	if l.deps.Session.Started() {
		st.GameStatus = publish.StatusInProgress
	}
	return st
}

// recoverPanic turns a panic in a tick or edit into the general error
// notice.
func (l *Lobby) recoverPanic(where string) {
	if r := recover(); r != nil {
		err := fmt.Errorf("%s: %v", where, r)
		l.logger.Error("Recovered panic", "where", where, "error", err, "stack", string(debug.Stack()))
		l.notices.Error(err)
	}
}

func (l *Lobby) options() snapshot.Options {
	return snapshot.Options{
		GameUUID:                   l.gameUUID,
		GameName:                   l.cfg.GameName,
		Flags:                      l.flags,
		AISwitchTeamAcceptPercent:  l.aiAccept,
		FallbackCpuMultiplierIndex: l.fallbackCpu,
		MasterserverAdmin:          l.adminKey.Load(),
		MasterserverAdminSeat:      l.adminSeat,
		HostUUID:                   l.hostUUID,
		HostPlatform:               runtime.GOOS + "-" + runtime.GOARCH,
		HostLanguage:               l.cfg.Language,
		SynchFailed:                l.synchFailed,
	}
}

// Launch validates the lobby and starts the match. A *launch.Rejection is
// also raised as a notice.
func (l *Lobby) Launch(ctx context.Context) (*core.GameSettings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.deps.Now()
	gs, err := l.gate.TryLaunch(ctx, launch.Input{
		Registry:  l.reg,
		Selection: l.sel,
		Options:   l.options(),
		Techtrees: l.deps.Assets.Techtrees(),
		Factions:  l.factions,
		Previous:  l.current.Load(),
		Rebuilt: func(gs *core.GameSettings) {
			l.counter = gs.UpdateCount
			l.current.Store(gs)
			l.deps.Scheduler.SettingsChanged(gs, false, now)
		},
		Now: now,
	})
	var rej *launch.Rejection
	if errors.As(err, &rej) {
		l.notices.Push(Notice{Header: rej.Header, Text: rej.Text, At: now})
	}
	l.renderLocked()
	return gs, err
}

// Shutdown tears the lobby down without launching: publishers are stopped
// with a finished status and every client is dropped.
func (l *Lobby) Shutdown(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.gate.Launched() {
		l.deps.Scheduler.Stop(ctx, publish.StatusFinished)
	}
	for i, s := range l.reg.Seats() {
		if s.Conn != nil {
			l.reg.DetachConnection(i)
			l.deps.Network.RemoveSlot(i)
		}
	}
	l.reg.Reset()
}
