package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/lobbyhost/internal/slots"
	"github.com/OCAP2/lobbyhost/internal/slots/slotstest"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

var factions = []string{core.RandomFaction, "tech", "magic", core.ObserverFaction, core.DataMissingFaction}

func TestControlOptions(t *testing.T) {
	tests := []struct {
		name        string
		current     core.ControlType
		interactive bool
		has         []core.ControlType
		hasNot      []core.ControlType
	}{
		{"interactive", core.Cpu, true, []core.ControlType{core.Human, core.Network}, []core.ControlType{core.NetworkUnassigned, core.NetworkCpu}},
		{"headless", core.Network, false, []core.ControlType{core.NetworkCpu, core.NetworkCpuMega}, []core.ControlType{core.Human, core.NetworkUnassigned}},
		{"unassigned stays selectable", core.NetworkUnassigned, true, []core.ControlType{core.NetworkUnassigned}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ControlOptions(tt.current, tt.interactive)
			for _, c := range tt.has {
				assert.Contains(t, got, c)
			}
			for _, c := range tt.hasNot {
				assert.NotContains(t, got, c)
			}
		})
	}
}

func TestFactionOptions(t *testing.T) {
	tests := []struct {
		name           string
		control        core.ControlType
		allowObservers bool
		want           []string
	}{
		{"human with observers", core.Human, true, []string{core.RandomFaction, "tech", "magic", core.ObserverFaction}},
		{"human without observers", core.Human, false, []string{core.RandomFaction, "tech", "magic"}},
		{"cpu never observes", core.CpuMega, true, []string{core.RandomFaction, "tech", "magic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FactionOptions(factions, tt.control, tt.allowObservers))
		})
	}
}

func TestTeamOptions(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4}, TeamOptions(4, "tech"))
	assert.Equal(t, []int{core.ObserverTeam}, TeamOptions(4, core.ObserverFaction))
}

func TestPresenter_Render(t *testing.T) {
	reg := slots.NewRegistry(slots.Options{Interactive: true})
	reg.ApplyDefaultLayout(false)
	reg.SetName(0, "host")
	reg.SetControlType(2, core.Network)
	reg.SetControlType(3, core.Network)
	conn := slotstest.NewConn("bob")
	conn.Status = core.StatusReady
	reg.AttachConnection(3, conn)

	board := NewBoard()
	p := NewPresenter(board.Views()...)
	p.Render(reg, State{MapPlayers: 4, Factions: factions, AllowObservers: true, Interactive: true})

	rows := board.Rows()
	require.Len(t, rows, 4)

	assert.Equal(t, "host", rows[0].Name)
	assert.True(t, rows[0].Editable)
	assert.Equal(t, "host", rows[0].Status)
	assert.Empty(t, rows[0].Multiplier)

	assert.Equal(t, "ai", rows[1].Status)
	assert.Equal(t, "1.0", rows[1].Multiplier)
	assert.NotContains(t, rows[1].Factions, core.ObserverFaction)

	assert.Equal(t, core.UnconnectedName, rows[2].Name)
	assert.Equal(t, "waiting", rows[2].Status)

	assert.Equal(t, "bob", rows[3].Name)
	assert.Equal(t, "ready", rows[3].Status)
	assert.False(t, rows[3].Editable)
	assert.True(t, rows[3].Enabled)

	hidden := board[5].Row()
	assert.False(t, hidden.Visible)
	assert.False(t, hidden.Enabled)
}

func TestPresenter_Locked(t *testing.T) {
	reg := slots.NewRegistry(slots.Options{Interactive: true})
	reg.ApplyDefaultLayout(false)

	board := NewBoard()
	NewPresenter(board.Views()...).Render(reg, State{MapPlayers: 2, Factions: factions, Interactive: true, Locked: true})

	for _, r := range board.Rows() {
		assert.False(t, r.Enabled)
		assert.False(t, r.Editable)
	}
}

func TestPresenter_SkipsMissingViews(t *testing.T) {
	reg := slots.NewRegistry(slots.Options{Interactive: true})
	m := NewModel(0)
	p := NewPresenter(m)
	assert.NotPanics(t, func() { p.Render(reg, State{MapPlayers: 8}) })
	assert.True(t, m.Row().Visible)
}

func TestModel_RowIsCopy(t *testing.T) {
	m := NewModel(1)
	m.SetFactionOptions([]string{"tech"}, "tech")
	r := m.Row()
	r.Factions[0] = "changed"
	assert.Equal(t, "tech", m.Row().Factions[0])
}
