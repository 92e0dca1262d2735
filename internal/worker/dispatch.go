package worker

import (
	"fmt"

	"github.com/OCAP2/lobbyhost/internal/dispatcher"
	"github.com/OCAP2/lobbyhost/pkg/core"
	"github.com/OCAP2/lobbyhost/pkg/streaming"
)

// RegisterHandlers registers all inbound message handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Identity must land before any request from the same client - sync
	d.Register(streaming.TypeHello, m.handleHello, dispatcher.Logged())

	d.Register(streaming.TypeSwitchSetup, m.handleSwitchSetup, dispatcher.Logged())
	d.Register(streaming.TypeSynchReport, m.handleSynchReport, dispatcher.Logged())
	d.Register(streaming.TypePlayerStatus, m.handlePlayerStatus, dispatcher.Logged())
	d.Register(streaming.TypeSettingsUpdate, m.handleSettingsUpdate, dispatcher.Logged())

	// Pongs are frequent and carry nothing the tick waits on - buffered
	d.Register(streaming.TypePong, m.handlePong, dispatcher.Buffered(256))
}

func (m *Manager) handleHello(e dispatcher.Event) (any, error) {
	conn, err := sourceConn(e.Source)
	if err != nil {
		return nil, err
	}
	var hello streaming.HelloPayload
	if err := streaming.DecodePayload(streaming.Envelope{Type: e.Command, Payload: e.Payload}, &hello); err != nil {
		return nil, err
	}
	conn.SetIdentity(hello)
	m.deps.Logger.Info("client identified", "slot", e.Slot, "name", hello.Name, "language", hello.Language)
	return nil, nil
}

// handleSwitchSetup queues the request under the sender's current seat. The
// seat the client claims is ignored.
func (m *Manager) handleSwitchSetup(e dispatcher.Event) (any, error) {
	var req core.SwitchSetupRequest
	if err := streaming.DecodePayload(streaming.Envelope{Type: e.Command, Payload: e.Payload}, &req); err != nil {
		return nil, err
	}
	req.CurrentSlot = e.Slot
	if err := validateSwitch(&req); err != nil {
		return nil, err
	}

	replaced, ok := m.deps.Switches.Put(e.Slot, &req)
	if !ok {
		return nil, fmt.Errorf("switch request from invalid slot %d", e.Slot)
	}
	if replaced != nil {
		m.deps.Logger.Debug("switch request replaced", "slot", e.Slot)
	}
	return "queued", nil
}

func (m *Manager) handleSynchReport(e dispatcher.Event) (any, error) {
	conn, err := sourceConn(e.Source)
	if err != nil {
		return nil, err
	}
	var report streaming.SynchReportPayload
	if err := streaming.DecodePayload(streaming.Envelope{Type: e.Command, Payload: e.Payload}, &report); err != nil {
		return nil, err
	}
	conn.SetSynchReport(report)
	return nil, nil
}

func (m *Manager) handlePlayerStatus(e dispatcher.Event) (any, error) {
	conn, err := sourceConn(e.Source)
	if err != nil {
		return nil, err
	}
	var p streaming.PlayerStatusPayload
	if err := streaming.DecodePayload(streaming.Envelope{Type: e.Command, Payload: e.Payload}, &p); err != nil {
		return nil, err
	}
	if p.Status < core.StatusSetup || p.Status > core.StatusReady {
		return nil, fmt.Errorf("unknown player status %d", p.Status)
	}
	conn.SetPlayerStatus(p.Status)
	return nil, nil
}

func (m *Manager) handlePong(e dispatcher.Event) (any, error) {
	conn, err := sourceConn(e.Source)
	if err != nil {
		return nil, err
	}
	conn.Pong(at(e.Timestamp))
	return nil, nil
}

// handleSettingsUpdate forwards a full snapshot from the masterserver admin.
// Counter ordering is enforced by the sink.
func (m *Manager) handleSettingsUpdate(e dispatcher.Event) (any, error) {
	conn, err := sourceConn(e.Source)
	if err != nil {
		return nil, err
	}
	if m.deps.IsAdmin == nil || !m.deps.IsAdmin(conn.SessionKey()) {
		return nil, ErrNotAdmin
	}
	var p streaming.SettingsPayload
	if err := streaming.DecodePayload(streaming.Envelope{Type: e.Command, Payload: e.Payload}, &p); err != nil {
		return nil, err
	}
	if p.Settings == nil {
		return nil, fmt.Errorf("settings update without settings")
	}
	m.deps.Remote.OfferRemoteSettings(p.Settings)
	return nil, nil
}
