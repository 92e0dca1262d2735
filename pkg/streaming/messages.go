package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/lobbyhost/pkg/core"
)

// Host to client message types.
const (
	TypeSettings     = "settings"
	TypePing         = "ping"
	TypeText         = "text"
	TypeSlotAssigned = "slot_assigned"
	TypeClose        = "close"
	TypeAck          = "ack"
)

// Client to host message types.
const (
	TypeHello          = "hello"
	TypeSwitchSetup    = "switch_setup"
	TypeSynchReport    = "synch_report"
	TypePlayerStatus   = "player_status"
	TypePong           = "pong"
	TypeSettingsUpdate = "settings_update"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the host's acknowledgement response.
type AckMessage struct {
	Type  string `json:"type"` // always "ack"
	For   string `json:"for"`
	Error string `json:"error,omitempty"`
}

// SettingsPayload carries a full lobby snapshot.
type SettingsPayload struct {
	Settings *core.GameSettings `json:"settings"`
}

// PingPayload carries the host clock in unix milliseconds.
type PingPayload struct {
	Time int64 `json:"time"`
}

// TextPayload is a diagnostic already rendered in the client's language.
type TextPayload struct {
	Header string `json:"header,omitempty"`
	Text   string `json:"text"`
}

// SlotAssignedPayload tells a client which seat it now occupies.
type SlotAssignedPayload struct {
	Slot int `json:"slot"`
}

// ClosePayload explains why the host is dropping the connection.
type ClosePayload struct {
	Reason string `json:"reason"`
}

// HelloPayload identifies a client right after it connects.
type HelloPayload struct {
	Name                    string `json:"name"`
	UUID                    string `json:"uuid"`
	Platform                string `json:"platform"`
	Language                string `json:"language"`
	AllowDownloadDataSynch  bool   `json:"allowDownloadDataSynch"`
	AllowGameDataSynchCheck bool   `json:"allowGameDataSynchCheck"`
}

// SynchReportPayload is the client's local checksum verdict per category.
type SynchReportPayload struct {
	MapOK      bool `json:"mapOk"`
	TilesetOK  bool `json:"tilesetOk"`
	TechtreeOK bool `json:"techtreeOk"`
}

// OK returns the verdict for one category.
func (p SynchReportPayload) OK(cat core.AssetCategory) bool {
	switch cat {
	case core.CategoryMap:
		return p.MapOK
	case core.CategoryTileset:
		return p.TilesetOK
	case core.CategoryTechtree:
		return p.TechtreeOK
	}
	return false
}

// PlayerStatusPayload carries the client's ready state.
type PlayerStatusPayload struct {
	Status core.PlayerStatus `json:"status"`
}

// Encode marshals payload into an envelope of the given type.
func Encode(typ string, payload any) ([]byte, error) {
	env := Envelope{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", typ, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// DecodePayload unmarshals the envelope payload into v.
func DecodePayload(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", env.Type, err)
	}
	return nil
}
