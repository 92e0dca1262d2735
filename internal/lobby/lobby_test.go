package lobby

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/lobbyhost/internal/assets"
	"github.com/OCAP2/lobbyhost/internal/config"
	"github.com/OCAP2/lobbyhost/internal/lang"
	"github.com/OCAP2/lobbyhost/internal/launch"
	"github.com/OCAP2/lobbyhost/internal/publish"
	"github.com/OCAP2/lobbyhost/internal/queue"
	"github.com/OCAP2/lobbyhost/internal/slots"
	"github.com/OCAP2/lobbyhost/internal/slots/slotstest"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

type fakeAssets struct{}

func (fakeAssets) Maps() []assets.MapInfo {
	return []assets.MapInfo{{Name: "island", Players: 4}, {Name: "duel", Players: 2}}
}

func (fakeAssets) MapPlayers(name string) (int, bool) {
	switch name {
	case "island":
		return 4, true
	case "duel":
		return 2, true
	}
	return 0, false
}

func (fakeAssets) Tilesets() []string  { return []string{"forest", "desert"} }
func (fakeAssets) Techtrees() []string { return []string{"megapack", "classic"} }

func (fakeAssets) Factions(techtree string) ([]string, error) {
	switch techtree {
	case "megapack":
		return []string{"tech", "magic"}, nil
	case "classic":
		return []string{"knights"}, nil
	}
	return nil, assets.ErrUnknownAsset
}

func (fakeAssets) Scenarios() []string { return []string{"storming", "broken"} }

func (fakeAssets) Scenario(name string) (assets.ScenarioInfo, error) {
	switch name {
	case "storming":
		return assets.ScenarioInfo{Name: name, Map: "duel", Tileset: "desert", Techtree: "classic"}, nil
	case "broken":
		return assets.ScenarioInfo{Name: name, Map: "atlantis"}, nil
	}
	return assets.ScenarioInfo{}, assets.ErrUnknownAsset
}

func (fakeAssets) ChecksumArgs(cat core.AssetCategory, name string) ([]string, string, string) {
	return []string{"/data"}, name, ""
}

type hasher struct{}

func (hasher) Checksum([]string, string, string, bool) (uint32, error) { return 7, nil }

type fakeNetwork struct {
	joins      []slots.Connection
	seats      map[int]slots.Connection
	openErr    error
	panicJoins bool
	removed    []int
	released   []int
	texts      []map[string]string
	notices    int
	broadcasts int
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{seats: make(map[int]slots.Connection)}
}

func (n *fakeNetwork) TakeJoins() []slots.Connection {
	if n.panicJoins {
		panic("boom")
	}
	out := n.joins
	n.joins = nil
	return out
}

func (n *fakeNetwork) Assign(slot int, c slots.Connection) error {
	if cur, ok := n.seats[slot]; ok && cur != c {
		return fmt.Errorf("slot %d taken", slot)
	}
	n.seats[slot] = c
	return nil
}

func (n *fakeNetwork) Release(slot int) {
	delete(n.seats, slot)
	n.released = append(n.released, slot)
}

func (n *fakeNetwork) SwitchSlot(from, to int) bool {
	c, ok := n.seats[from]
	if !ok {
		return false
	}
	if _, taken := n.seats[to]; taken {
		return false
	}
	delete(n.seats, from)
	n.seats[to] = c
	return true
}

func (n *fakeNetwork) RemoveSlot(i int) {
	if c, ok := n.seats[i]; ok {
		_ = c.Close()
		delete(n.seats, i)
	}
	n.removed = append(n.removed, i)
}

func (n *fakeNetwork) OpenSlot(int) error { return n.openErr }

func (n *fakeNetwork) BroadcastSettings(*core.GameSettings) error {
	n.broadcasts++
	return nil
}

func (n *fakeNetwork) SendLocalized(texts map[string]string) {
	n.texts = append(n.texts, texts)
}

func (n *fakeNetwork) SendNotice(_, texts map[string]string) {
	n.notices++
	n.texts = append(n.texts, texts)
}

func (n *fakeNetwork) Languages() []string { return []string{"en"} }

type fakeScheduler struct {
	changes    []*core.GameSettings
	mapChanged []bool
	enabled    bool
	stops      []int
}

func (s *fakeScheduler) SettingsChanged(gs *core.GameSettings, mapChanged bool, _ time.Time) {
	s.changes = append(s.changes, gs)
	s.mapChanged = append(s.mapChanged, mapChanged)
}

func (s *fakeScheduler) SetPublishEnabled(on bool) { s.enabled = on }
func (s *fakeScheduler) PublishEnabled() bool      { return s.enabled }

func (s *fakeScheduler) Stop(_ context.Context, finalStatus int) {
	s.stops = append(s.stops, finalStatus)
}

type fakeStorage struct {
	last  *core.GameSettings
	saved []*core.GameSettings
}

func (s *fakeStorage) Init() error  { return nil }
func (s *fakeStorage) Close() error { return nil }

func (s *fakeStorage) SaveLastSettings(_ context.Context, gs *core.GameSettings) error {
	s.saved = append(s.saved, gs)
	return nil
}

func (s *fakeStorage) LoadLastSettings(context.Context) (*core.GameSettings, error) {
	if s.last == nil {
		return nil, fmt.Errorf("last settings: %w", fs.ErrNotExist)
	}
	return s.last, nil
}

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	lobby *Lobby
	net   *fakeNetwork
	sched *fakeScheduler
	store *fakeStorage
	inbox *queue.Inbox[core.SwitchSetupRequest]
}

func lobbyConfig(headless bool) config.LobbyConfig {
	return config.LobbyConfig{
		GameName:              "Test",
		Headless:              headless,
		DefaultPlayerName:     "Host",
		Language:              "en",
		AllowObservers:        true,
		FogOfWar:              true,
		FallbackCpuMultiplier: 1.0,
	}
}

func newFixture(t *testing.T, cfg config.LobbyConfig, prep ...func(*fakeNetwork)) *fixture {
	t.Helper()
	f := &fixture{
		net:   newFakeNetwork(),
		sched: &fakeScheduler{},
		store: &fakeStorage{},
		inbox: queue.NewInbox[core.SwitchSetupRequest](core.MaxPlayers),
	}
	for _, p := range prep {
		p(f.net)
	}
	l, err := New(Dependencies{
		Config:    cfg,
		Assets:    fakeAssets{},
		Hasher:    hasher{},
		Network:   f.net,
		Scheduler: f.sched,
		Storage:   f.store,
		Switches:  f.inbox,
		Rand:      rand.New(rand.NewSource(1)),
		Now:       func() time.Time { return t0 },
	})
	require.NoError(t, err)
	f.lobby = l
	return f
}

func (f *fixture) tick() {
	f.lobby.Tick(context.Background(), t0)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Dependencies{})
	assert.Error(t, err)
}

func TestNew_InteractiveDefaults(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	reg := f.lobby.Registry()

	assert.Equal(t, core.Human, reg.ControlType(0))
	assert.Equal(t, "Host", reg.Name(0))
	assert.Equal(t, core.Cpu, reg.ControlType(1))
	assert.Nil(t, f.lobby.Snapshot())
}

func TestNew_HeadlessOpensMapSeats(t *testing.T) {
	f := newFixture(t, lobbyConfig(true))
	reg := f.lobby.Registry()

	for i := 0; i < 4; i++ {
		assert.Equal(t, core.Network, reg.ControlType(i), "seat %d", i)
	}
	for i := 4; i < core.MaxPlayers; i++ {
		assert.Equal(t, core.Closed, reg.ControlType(i), "seat %d", i)
	}
}

func TestNew_NetworkFailureFallsBackToCPU(t *testing.T) {
	f := newFixture(t, lobbyConfig(true), func(n *fakeNetwork) { n.openErr = errors.New("port in use") })
	reg := f.lobby.Registry()

	for i := 0; i < 4; i++ {
		assert.Equal(t, core.Cpu, reg.ControlType(i))
	}
	assert.Equal(t, 4, f.lobby.Notices().Pending())
}

func TestTick_CounterOnlyOnChange(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))

	f.tick()
	gs := f.lobby.Snapshot()
	require.NotNil(t, gs)
	assert.Equal(t, uint64(1), gs.UpdateCount)
	assert.Equal(t, "island", gs.Map)
	assert.Equal(t, uint32(7), gs.MapChecksum)
	require.Len(t, f.sched.changes, 1)

	f.tick()
	assert.Len(t, f.sched.changes, 1, "unchanged lobby publishes nothing")
	assert.Equal(t, uint64(1), f.lobby.Snapshot().UpdateCount)

	f.lobby.SetControlType(2, core.CpuMega)
	f.tick()
	require.Len(t, f.sched.changes, 2)
	assert.Equal(t, uint64(2), f.lobby.Snapshot().UpdateCount)
	assert.Equal(t, 3, f.lobby.Snapshot().FactionCount)
}

func TestSelectMap(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	f.tick()

	f.lobby.SetControlType(3, core.Cpu)
	require.NoError(t, f.lobby.SelectMap("duel"))
	f.tick()

	assert.Equal(t, []bool{false, true}, f.sched.mapChanged)
	assert.Equal(t, core.Closed, f.lobby.Registry().ControlType(3), "seats beyond the map close")
	assert.Equal(t, 2, f.lobby.Snapshot().MapPlayers)

	assert.ErrorIs(t, f.lobby.SelectMap("atlantis"), assets.ErrUnknownAsset)
	assert.ErrorIs(t, f.lobby.SelectTileset("moon"), assets.ErrUnknownAsset)
}

func TestSelectScenario(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))

	require.NoError(t, f.lobby.SelectScenario("storming"))
	f.tick()
	gs := f.lobby.Snapshot()
	assert.Equal(t, "storming", gs.Scenario)
	assert.Equal(t, "duel", gs.Map)
	assert.Equal(t, "desert", gs.Tileset)
	assert.Equal(t, "classic", gs.Techtree)

	assert.ErrorIs(t, f.lobby.SelectScenario("nope"), assets.ErrUnknownAsset)
	assert.ErrorIs(t, f.lobby.SelectScenario("broken"), assets.ErrUnknownAsset)

	require.NoError(t, f.lobby.SelectMap("island"))
	f.tick()
	assert.Empty(t, f.lobby.Snapshot().Scenario, "picking a map by hand leaves the scenario")

	require.NoError(t, f.lobby.SelectScenario("storming"))
	require.NoError(t, f.lobby.SelectScenario(""))
	f.tick()
	assert.Empty(t, f.lobby.Snapshot().Scenario)
	assert.Equal(t, "duel", f.lobby.Snapshot().Map)
}

func TestApplyRemoteSettings_Scenario(t *testing.T) {
	f := newFixture(t, lobbyConfig(true))

	require.True(t, f.lobby.ApplyRemoteSettings(&core.GameSettings{UpdateCount: 1, Map: "duel", Techtree: "classic", Scenario: "storming"}))
	f.tick()
	assert.Equal(t, "storming", f.lobby.Snapshot().Scenario)

	require.True(t, f.lobby.ApplyRemoteSettings(&core.GameSettings{UpdateCount: 2, Map: "duel", Scenario: "lost"}))
	f.tick()
	assert.Empty(t, f.lobby.Snapshot().Scenario, "unknown scenarios are dropped")

	f.store.last = &core.GameSettings{Map: "duel", Scenario: "storming"}
	require.NoError(t, f.lobby.RestoreLastSettings(context.Background()))
	f.tick()
	assert.Equal(t, "storming", f.lobby.Snapshot().Scenario)
}

func TestSelectTechtree_ResetsUnknownFactions(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	require.True(t, f.lobby.SetFaction(0, "tech"))
	assert.False(t, f.lobby.SetFaction(0, "knights"))

	require.NoError(t, f.lobby.SelectTechtree("classic"))
	assert.Equal(t, core.RandomFaction, f.lobby.Registry().Faction(0))
	assert.True(t, f.lobby.SetFaction(0, "knights"))
	assert.Error(t, f.lobby.SelectTechtree("nope"))
}

func TestSetFlags_ObserversOff(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	require.True(t, f.lobby.SetFaction(0, core.ObserverFaction))

	f.lobby.SetFlags(f.lobby.Flags().With(core.FlagAllowObservers, false))
	assert.Equal(t, core.RandomFaction, f.lobby.Registry().Faction(0))
	assert.False(t, f.lobby.SetFaction(0, core.ObserverFaction))
}

func TestSetMultiplierAndTeam(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	f.lobby.SetMultiplier(1, 4.9)
	assert.Equal(t, 44, f.lobby.Registry().MultiplierIndex(1))

	assert.True(t, f.lobby.SetTeam(1, 3))
	assert.False(t, f.lobby.SetTeam(1, 5), "beyond the map's player count")
}

func TestSetControlType_NetworkFailure(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	f.net.openErr = errors.New("not listening")

	f.lobby.SetControlType(2, core.Network)
	assert.Equal(t, core.Cpu, f.lobby.Registry().ControlType(2))

	n, ok := f.lobby.Notices().Current()
	require.True(t, ok)
	assert.Equal(t, lang.Default().Text("en", lang.NetworkSlotFailed, 2, "not listening"), n.Text)
}

func TestSetControlType_ClosingNetworkSeatDropsClient(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	f.lobby.SetControlType(2, core.Network)
	conn := slotstest.NewConn("bob")
	f.net.joins = []slots.Connection{conn}
	f.tick()
	require.Same(t, conn, f.lobby.Registry().Connection(2))

	f.lobby.SetControlType(2, core.Closed)
	assert.Nil(t, f.lobby.Registry().Connection(2))
	assert.Contains(t, f.net.removed, 2)
	assert.True(t, conn.Closed)
}

func TestTick_JoinAndDisconnect(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	f.lobby.SetControlType(2, core.Network)

	conn := slotstest.NewConn("bob")
	f.net.joins = []slots.Connection{conn}
	f.tick()

	reg := f.lobby.Registry()
	assert.Same(t, conn, reg.Connection(2))
	assert.Same(t, conn, f.net.seats[2])
	gs := f.lobby.Snapshot()
	seat, ok := gs.SeatAt(2)
	require.True(t, ok)
	assert.Equal(t, "bob", seat.PlayerName)
	assert.True(t, seat.Connected)

	conn.Connected = false
	f.tick()
	assert.Nil(t, reg.Connection(2))
	assert.Equal(t, core.Network, reg.ControlType(2), "seat stays open for a rejoin")
	assert.Equal(t, []int{2}, f.net.released)
	require.NotEmpty(t, f.net.texts)
	assert.Equal(t, lang.Default().Text("en", lang.PlayerDisconnected, "bob"), f.net.texts[len(f.net.texts)-1]["en"])
}

func TestTick_OverflowJoin(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	require.NoError(t, f.lobby.SelectMap("duel"))

	conn := slotstest.NewConn("late")
	f.net.joins = []slots.Connection{conn}
	f.tick()

	reg := f.lobby.Registry()
	assert.Equal(t, core.NetworkUnassigned, reg.ControlType(2))
	assert.Same(t, conn, reg.Connection(2))
	require.NotEmpty(t, f.net.texts)
	assert.Equal(t, lang.Default().Text("en", lang.PlayerJoinedOverflow, "late"), f.net.texts[0]["en"])

	// launch refuses while the overflow seat is unassigned
	_, err := f.lobby.Launch(context.Background())
	var rej *launch.Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, launch.UnassignedSlots, rej.Reason)

	// leaving frees the overflow seat again
	conn.Connected = false
	f.tick()
	assert.Equal(t, core.Closed, reg.ControlType(2))
}

func TestTick_LobbyFull(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	for i := 2; i < core.MaxPlayers; i++ {
		f.lobby.SetControlType(i, core.Cpu)
	}
	conn := slotstest.NewConn("nobody")
	f.net.joins = []slots.Connection{conn}
	f.tick()
	assert.True(t, conn.Closed)
}

func TestTick_SwitchRequests(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	f.lobby.SetControlType(2, core.Network)
	f.lobby.SetControlType(3, core.Network)
	conn := slotstest.NewConn("bob")
	f.net.joins = []slots.Connection{conn}
	f.tick()

	f.inbox.Put(2, &core.SwitchSetupRequest{CurrentSlot: 2, ToSlot: -1, Faction: "magic", Fields: core.FieldFaction})
	f.tick()
	assert.Equal(t, "magic", f.lobby.Registry().Faction(2))

	f.inbox.Put(2, &core.SwitchSetupRequest{CurrentSlot: 2, ToSlot: 3, Team: 2, Fields: core.FieldTeam})
	f.tick()
	reg := f.lobby.Registry()
	assert.Same(t, conn, reg.Connection(3))
	assert.Nil(t, reg.Connection(2))
	assert.Equal(t, 2, reg.Team(3))
	assert.Zero(t, f.inbox.Pending())
}

func TestApplyRemoteSettings_CounterGate(t *testing.T) {
	f := newFixture(t, lobbyConfig(true))
	remote := func(count uint64, m string) *core.GameSettings {
		return &core.GameSettings{UpdateCount: count, Map: m, Tileset: "desert", Techtree: "megapack", Flags: core.DefaultFlags}
	}

	tests := []struct {
		name    string
		gs      *core.GameSettings
		applied bool
		wantMap string
	}{
		{"first", remote(5, "duel"), true, "duel"},
		{"same counter", remote(5, "island"), false, "duel"},
		{"older counter", remote(4, "island"), false, "duel"},
		{"newer counter", remote(6, "island"), true, "island"},
		{"nil", nil, false, "island"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.applied, f.lobby.ApplyRemoteSettings(tt.gs))
			f.tick()
			assert.Equal(t, tt.wantMap, f.lobby.Snapshot().Map)
		})
	}
	assert.Equal(t, "desert", f.lobby.Snapshot().Tileset)
}

func TestOfferRemoteSettings_AppliedOnTick(t *testing.T) {
	f := newFixture(t, lobbyConfig(true))
	gs := &core.GameSettings{UpdateCount: 1, Map: "duel", Flags: core.DefaultFlags}
	gs.Seats[0] = core.SeatSettings{StartLocation: 0, Control: core.Human, Team: 2, Faction: "tech", MultiplierIndex: 5}
	for i := 1; i < core.MaxPlayers; i++ {
		gs.Seats[i] = core.SeatSettings{StartLocation: i, Control: core.Closed, Team: i + 1, Faction: core.RandomFaction}
	}

	f.lobby.OfferRemoteSettings(&core.GameSettings{UpdateCount: 1, Map: "island"})
	f.lobby.OfferRemoteSettings(gs)
	f.tick()

	reg := f.lobby.Registry()
	assert.Equal(t, "duel", f.lobby.Snapshot().Map)
	assert.Equal(t, core.Network, reg.ControlType(0), "headless hosts have no human seat")
	assert.Equal(t, "tech", reg.Faction(0))
	assert.Equal(t, 2, reg.Team(0))
	assert.Equal(t, core.Closed, reg.ControlType(1))
}

func TestHeadless_AdminHandOff(t *testing.T) {
	f := newFixture(t, lobbyConfig(true))
	first := slotstest.NewConn("first")
	first.Key = 11
	second := slotstest.NewConn("second")
	second.Key = 22
	f.net.joins = []slots.Connection{first, second}
	f.tick()

	assert.True(t, f.lobby.IsAdmin(11))
	assert.False(t, f.lobby.IsAdmin(22))
	assert.False(t, f.lobby.IsAdmin(0))
	gs := f.lobby.Snapshot()
	assert.Equal(t, uint32(11), gs.MasterserverAdmin)
	assert.Equal(t, 0, gs.MasterserverAdminSeat)

	first.Connected = false
	f.tick()
	assert.True(t, f.lobby.IsAdmin(22))
	assert.Equal(t, uint32(22), f.lobby.Snapshot().MasterserverAdmin)
	assert.Equal(t, 1, f.lobby.Snapshot().MasterserverAdminSeat)
}

func TestInteractive_NoAdmin(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	f.lobby.SetControlType(2, core.Network)
	conn := slotstest.NewConn("bob")
	conn.Key = 5
	f.net.joins = []slots.Connection{conn}
	f.tick()
	assert.False(t, f.lobby.IsAdmin(5))
}

func TestLaunch(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	f.tick()

	gs, err := f.lobby.Launch(context.Background())
	require.NoError(t, err)
	assert.True(t, f.lobby.Session().Started())
	assert.Equal(t, []int{publish.StatusInProgress}, f.sched.stops)
	require.Len(t, f.store.saved, 1)
	assert.Equal(t, gs, f.store.saved[0])
	for _, s := range gs.ActiveSeats() {
		assert.NotEqual(t, core.RandomFaction, s.Faction)
	}
	assert.Equal(t, gs, f.lobby.Snapshot())

	changes := len(f.sched.changes)
	f.lobby.SetControlType(2, core.Cpu)
	f.tick()
	assert.Len(t, f.sched.changes, changes, "a launched lobby no longer ticks")

	_, err = f.lobby.Launch(context.Background())
	assert.ErrorIs(t, err, launch.ErrAlreadyLaunched)

	for _, r := range f.lobby.Board().Rows() {
		assert.False(t, r.Enabled)
	}
}

func TestLaunch_RejectionRaisesNotice(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	f.lobby.SetControlType(2, core.NetworkUnassigned)

	_, err := f.lobby.Launch(context.Background())
	require.Error(t, err)

	n, ok := f.lobby.Notices().Current()
	require.True(t, ok)
	assert.Equal(t, lang.Default().Text("en", lang.LaunchHeader), n.Header)
	assert.Equal(t, lang.Default().Text("en", lang.UnassignedSlots), n.Text)
	assert.False(t, f.lobby.Session().Started())
}

func TestTick_RecoversPanic(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	f.net.panicJoins = true

	assert.NotPanics(t, f.tick)
	n, ok := f.lobby.Notices().Current()
	require.True(t, ok)
	assert.Contains(t, n.Text, "boom")

	// the lock is released after a panic
	f.net.panicJoins = false
	f.tick()
	assert.NotNil(t, f.lobby.Snapshot())
}

func TestRestoreLastSettings(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	require.NoError(t, f.lobby.RestoreLastSettings(context.Background()), "nothing saved is fine")

	last := &core.GameSettings{Map: "duel", Tileset: "desert", Techtree: "classic", Flags: core.FlagFogOfWar}
	last.Seats[0] = core.SeatSettings{StartLocation: 0, Control: core.Human, Team: 1, Faction: "knights", PlayerName: "Me", MultiplierIndex: 5}
	last.Seats[1] = core.SeatSettings{StartLocation: 1, Control: core.CpuUltra, Team: 2, Faction: "knights", MultiplierIndex: 10}
	f.store.last = last

	require.NoError(t, f.lobby.RestoreLastSettings(context.Background()))
	f.tick()

	gs := f.lobby.Snapshot()
	assert.Equal(t, "duel", gs.Map)
	assert.Equal(t, "desert", gs.Tileset)
	assert.Equal(t, "classic", gs.Techtree)
	assert.False(t, gs.Flags.Has(core.FlagAllowObservers))
	reg := f.lobby.Registry()
	assert.Equal(t, "Me", reg.Name(0))
	assert.Equal(t, core.CpuUltra, reg.ControlType(1))
	assert.Equal(t, 10, reg.MultiplierIndex(1))
}

func TestRestoreLastSettings_NoStorage(t *testing.T) {
	l, err := New(Dependencies{
		Config:    lobbyConfig(false),
		Assets:    fakeAssets{},
		Hasher:    hasher{},
		Network:   newFakeNetwork(),
		Scheduler: &fakeScheduler{},
	})
	require.NoError(t, err)
	assert.Error(t, l.RestoreLastSettings(context.Background()))
}

func TestStatusAndLogContext(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	assert.Nil(t, f.lobby.LogContext())

	f.lobby.SetControlType(2, core.Network)
	f.net.joins = []slots.Connection{slotstest.NewConn("bob")}
	f.lobby.SetControlType(3, core.Network)
	f.tick()
	f.sched.enabled = true

	st := f.lobby.Status()
	assert.Equal(t, t0, st.Time)
	assert.Equal(t, "island", st.Map)
	assert.Equal(t, 4, st.ActiveSlots)
	assert.Equal(t, 2, st.NetworkSlots)
	assert.Equal(t, 1, st.ConnectedClients)
	assert.Equal(t, publish.StatusWaitingForPlayers, st.GameStatus)
	assert.True(t, st.Published)
	assert.Len(t, st.Seats, 4)

	attrs := f.lobby.LogContext()
	require.Len(t, attrs, 2)
	assert.Equal(t, "gameUuid", attrs[0].Key)
	assert.Equal(t, f.lobby.Snapshot().GameUUID, attrs[0].Value.String())
}

func TestShutdown(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	f.lobby.SetControlType(2, core.Network)
	conn := slotstest.NewConn("bob")
	f.net.joins = []slots.Connection{conn}
	f.tick()

	f.lobby.Shutdown(context.Background())
	assert.Equal(t, []int{publish.StatusFinished}, f.sched.stops)
	assert.True(t, conn.Closed)
	assert.Equal(t, core.Closed, f.lobby.Registry().ControlType(0))
}

func TestSetPublishEnabled(t *testing.T) {
	f := newFixture(t, lobbyConfig(false))
	f.lobby.SetPublishEnabled(true)
	assert.True(t, f.sched.enabled)
}
