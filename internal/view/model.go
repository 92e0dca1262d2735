package view

import (
	"sync"

	"github.com/OCAP2/lobbyhost/pkg/core"
)

// Row is what one seat currently shows.
type Row struct {
	Seat       int      `json:"seat"`
	Visible    bool     `json:"visible"`
	Enabled    bool     `json:"enabled"`
	Control    string   `json:"control,omitempty"`
	Controls   []string `json:"controls,omitempty"`
	Faction    string   `json:"faction,omitempty"`
	Factions   []string `json:"factions,omitempty"`
	Team       int      `json:"team,omitempty"`
	Teams      []int    `json:"teams,omitempty"`
	Multiplier string   `json:"multiplier,omitempty"`
	Name       string   `json:"name,omitempty"`
	Editable   bool     `json:"editable,omitempty"`
	Status     string   `json:"status,omitempty"`
}

// Model is a SeatView that keeps the rendered state in memory. Headless
// hosts use it to expose seats through the status file.
type Model struct {
	mu  sync.RWMutex
	row Row
}

func NewModel(seat int) *Model {
	return &Model{row: Row{Seat: seat}}
}

func (m *Model) SetControlOptions(options []core.ControlType, selected core.ControlType) {
	names := make([]string, len(options))
	for i, o := range options {
		names[i] = o.String()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row.Controls = names
	m.row.Control = selected.String()
}

func (m *Model) SetFactionOptions(options []string, selected string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row.Factions = append([]string(nil), options...)
	m.row.Faction = selected
}

func (m *Model) SetTeamOptions(options []int, selected int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row.Teams = append([]int(nil), options...)
	m.row.Team = selected
}

func (m *Model) SetMultiplier(index int, visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row.Multiplier = ""
	if visible {
		m.row.Multiplier = core.FormatMultiplier(index)
	}
}

func (m *Model) SetName(name string, editable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row.Name = name
	m.row.Editable = editable
}

func (m *Model) SetStatusIcon(icon Icon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row.Status = icon.String()
}

func (m *Model) SetVisible(visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row.Visible = visible
}

func (m *Model) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row.Enabled = enabled
}

// Row returns a copy of the rendered state.
func (m *Model) Row() Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.row
	r.Controls = append([]string(nil), r.Controls...)
	r.Factions = append([]string(nil), r.Factions...)
	r.Teams = append([]int(nil), r.Teams...)
	return r
}

// Board is one Model per seat.
type Board [core.MaxPlayers]*Model

func NewBoard() *Board {
	var b Board
	for i := range b {
		b[i] = NewModel(i)
	}
	return &b
}

// Views returns the models as SeatViews for NewPresenter.
func (b *Board) Views() []SeatView {
	out := make([]SeatView, len(b))
	for i, m := range b {
		out[i] = m
	}
	return out
}

// Rows returns the visible seats.
func (b *Board) Rows() []Row {
	var out []Row
	for _, m := range b {
		if r := m.Row(); r.Visible {
			out = append(out, r)
		}
	}
	return out
}
