package core

import (
	"math"
	"strconv"
)

// MaxPlayers is the fixed number of seats in a lobby.
const MaxPlayers = 8

// ObserverTeam is the reserved team every observer seat is forced onto.
const ObserverTeam = MaxPlayers + 1

// Faction and name sentinels shared with clients.
const (
	RandomFaction      = "*Random*"
	ObserverFaction    = "*Observer*"
	DataMissingFaction = "***DataMissing***"
	UnconnectedName    = "???"
)

// Resource multiplier grid: 0.5 .. 5.0 in 0.1 steps.
const (
	MultiplierMin          = 0.5
	MultiplierStep         = 0.1
	MultiplierMaxIndex     = 45
	DefaultMultiplierIndex = 5
)

// MultiplierValue converts a grid index to its multiplier.
func MultiplierValue(index int) float64 {
	return MultiplierMin + MultiplierStep*float64(index)
}

// MultiplierIndex converts a multiplier to the nearest grid index, clamped to
// the legal range.
func MultiplierIndex(value float64) int {
	idx := int(math.Round((value - MultiplierMin) / MultiplierStep))
	if idx < 0 {
		return 0
	}
	if idx > MultiplierMaxIndex {
		return MultiplierMaxIndex
	}
	return idx
}

// FormatMultiplier renders a grid index the way seat lists show it ("1.0").
func FormatMultiplier(index int) string {
	return strconv.FormatFloat(MultiplierValue(index), 'f', 1, 64)
}

// IsSentinelFaction reports whether name is a placeholder rather than a
// concrete faction.
func IsSentinelFaction(name string) bool {
	return name == RandomFaction || name == ObserverFaction || name == DataMissingFaction || name == ""
}

// ValidSeat reports whether i addresses one of the fixed seats.
func ValidSeat(i int) bool {
	return i >= 0 && i < MaxPlayers
}
