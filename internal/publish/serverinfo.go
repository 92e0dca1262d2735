package publish

import (
	"strconv"

	"github.com/OCAP2/lobbyhost/pkg/core"
)

// Game status values advertised to the masterserver.
const (
	StatusWaitingForPlayers = 0
	StatusWaitingForStart   = 1
	StatusInProgress        = 2
	StatusFinished          = 3
)

// Descriptor is the static part of the server advertisement.
type Descriptor struct {
	GlestVersion      string
	Platform          string
	BinaryCompileDate string
	ServerTitle       string
	ExternalPort      int
	PrivacyPlease     bool
}

// SlotCounts summarizes the seats of a snapshot.
type SlotCounts struct {
	Active    int
	Network   int
	Connected int
}

// CountSlots counts non-closed seats, network seats and connected clients.
func CountSlots(gs *core.GameSettings) SlotCounts {
	var c SlotCounts
	for _, s := range gs.ActiveSeats() {
		c.Active++
		if s.Control.IsNetwork() {
			c.Network++
			if s.Connected {
				c.Connected++
			}
		}
	}
	return c
}

// LobbyStatus is waiting-for-start once every network seat is connected.
func LobbyStatus(gs *core.GameSettings) int {
	c := CountSlots(gs)
	if c.Connected < c.Network {
		return StatusWaitingForPlayers
	}
	return StatusWaitingForStart
}

// ServerInfo renders the masterserver descriptor for a snapshot.
func ServerInfo(gs *core.GameSettings, d Descriptor, status int) map[string]string {
	c := CountSlots(gs)
	privacy := "0"
	if d.PrivacyPlease {
		privacy = "1"
	}
	return map[string]string{
		"glestVersion":        d.GlestVersion,
		"platform":            d.Platform,
		"binaryCompileDate":   d.BinaryCompileDate,
		"serverTitle":         d.ServerTitle,
		"tech":                gs.Techtree,
		"map":                 gs.Map,
		"tileset":             gs.Tileset,
		"activeSlots":         strconv.Itoa(c.Active),
		"networkSlots":        strconv.Itoa(c.Network),
		"connectedClients":    strconv.Itoa(c.Connected),
		"externalconnectport": strconv.Itoa(d.ExternalPort),
		"privacyPlease":       privacy,
		"gameStatus":          strconv.Itoa(status),
		"gameUUID":            gs.GameUUID,
	}
}
