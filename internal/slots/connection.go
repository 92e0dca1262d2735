package slots

import "github.com/OCAP2/lobbyhost/pkg/core"

// Connection is the handle a network seat holds once a client has joined.
// Once connected, the handle is the source of truth for the player's identity.
type Connection interface {
	IsConnected() bool
	Name() string
	SetName(name string)
	UUID() string
	Platform() string
	Language() string
	SessionKey() uint32
	NetworkPlayerStatus() core.PlayerStatus
	SynchOK(category core.AssetCategory) bool
	AllowDownloadDataSynch() bool
	AllowGameDataSynchCheck() bool
	Close() error
}
