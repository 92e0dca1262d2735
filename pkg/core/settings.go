// pkg/core/settings.go
package core

// AssetCategory names one of the data sets host and clients must agree on.
type AssetCategory int

const (
	CategoryMap AssetCategory = iota
	CategoryTileset
	CategoryTechtree
)

// Categories lists every synch-checked category in report order.
var Categories = []AssetCategory{CategoryMap, CategoryTileset, CategoryTechtree}

func (c AssetCategory) String() string {
	switch c {
	case CategoryMap:
		return "map"
	case CategoryTileset:
		return "tileset"
	case CategoryTechtree:
		return "techtree"
	default:
		return "unknown"
	}
}

// Flags is the lobby option bitset carried in every snapshot.
type Flags uint32

const (
	FlagFogOfWar Flags = 1 << iota
	FlagAllowObservers
	FlagAllowSwitchTeams
	FlagAllowInGameJoin
	FlagSharedTeamUnits
	FlagSharedTeamResources
	FlagNetworkPauseForLaggedClients
	FlagAllowNativeLanguageTechtree
	FlagSynchCheckVerbose
)

// Has reports whether every bit of f is set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

// With returns fl with f set or cleared.
func (fl Flags) With(f Flags, on bool) Flags {
	if on {
		return fl | f
	}
	return fl &^ f
}

// DefaultFlags are applied to a freshly opened lobby.
const DefaultFlags = FlagFogOfWar | FlagAllowObservers | FlagAllowSwitchTeams

// SeatSettings is one faction slot of a snapshot.
type SeatSettings struct {
	StartLocation   int          `json:"startLocation"`
	Control         ControlType  `json:"control"`
	Team            int          `json:"team"`
	Faction         string       `json:"faction"`
	MultiplierIndex int          `json:"multiplierIndex"`
	PlayerName      string       `json:"playerName"`
	PlayerUUID      string       `json:"playerUuid,omitempty"`
	Platform        string       `json:"platform,omitempty"`
	Language        string       `json:"language,omitempty"`
	Status          PlayerStatus `json:"status"`
	Connected       bool         `json:"connected"`
}

// GameSettings is an immutable snapshot of the lobby. A new snapshot
// supersedes the old one; nothing mutates a snapshot once it is handed out.
type GameSettings struct {
	GameUUID    string `json:"gameUuid"`
	UpdateCount uint64 `json:"updateCount"`
	GameName    string `json:"gameName"`

	Map      string `json:"map"`
	Tileset  string `json:"tileset"`
	Techtree string `json:"techtree"`
	Scenario string `json:"scenario,omitempty"`

	MapChecksum      uint32 `json:"mapChecksum"`
	TilesetChecksum  uint32 `json:"tilesetChecksum"`
	TechtreeChecksum uint32 `json:"techtreeChecksum"`

	MapPlayers   int                      `json:"mapPlayers"`
	FactionCount int                      `json:"factionCount"`
	Seats        [MaxPlayers]SeatSettings `json:"seats"`

	Flags                      Flags `json:"flags"`
	AISwitchTeamAcceptPercent  int   `json:"aiSwitchTeamAcceptPercent"`
	FallbackCpuMultiplierIndex int   `json:"fallbackCpuMultiplierIndex"`

	MasterserverAdmin     uint32 `json:"masterserverAdmin"`
	MasterserverAdminSeat int    `json:"masterserverAdminSeat"`
}

// Checksum returns the checksum stored for a category.
func (g *GameSettings) Checksum(c AssetCategory) uint32 {
	switch c {
	case CategoryMap:
		return g.MapChecksum
	case CategoryTileset:
		return g.TilesetChecksum
	case CategoryTechtree:
		return g.TechtreeChecksum
	}
	return 0
}

// Asset returns the selected asset name for a category.
func (g *GameSettings) Asset(c AssetCategory) string {
	switch c {
	case CategoryMap:
		return g.Map
	case CategoryTileset:
		return g.Tileset
	case CategoryTechtree:
		return g.Techtree
	}
	return ""
}

// ActiveSeats returns the dense, non-closed part of Seats.
func (g *GameSettings) ActiveSeats() []SeatSettings {
	return g.Seats[:g.FactionCount]
}

// SeatAt finds the faction slot that was built from start location i.
func (g *GameSettings) SeatAt(i int) (SeatSettings, bool) {
	for _, s := range g.Seats {
		if s.StartLocation == i {
			return s, true
		}
	}
	return SeatSettings{}, false
}

// Clone returns an independent copy. Seats is an array, so a plain copy is
// deep.
func (g *GameSettings) Clone() *GameSettings {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}

// Equivalent compares two snapshots ignoring the update counter.
func (g *GameSettings) Equivalent(o *GameSettings) bool {
	if g == nil || o == nil {
		return g == o
	}
	a, b := *g, *o
	a.UpdateCount, b.UpdateCount = 0, 0
	return a == b
}
