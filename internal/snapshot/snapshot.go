// Package snapshot builds immutable GameSettings from the live lobby state.
package snapshot

import (
	"fmt"

	"github.com/OCAP2/lobbyhost/internal/cache"
	"github.com/OCAP2/lobbyhost/internal/slots"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

// Checksummer hashes an asset folder selection.
type Checksummer interface {
	Checksum(paths []string, pattern, ext string, force bool) (uint32, error)
}

// ArgsSource maps a selection to checksum inputs.
type ArgsSource interface {
	ChecksumArgs(cat core.AssetCategory, name string) (paths []string, pattern, ext string)
}

// Selection is the asset choice of the host.
type Selection struct {
	Map        string
	MapPlayers int
	Tileset    string
	Techtree   string
	Scenario   string
}

// Options carries everything else that lands in a snapshot.
type Options struct {
	GameUUID string
	GameName string
	Flags    core.Flags

	AISwitchTeamAcceptPercent  int
	FallbackCpuMultiplierIndex int

	MasterserverAdmin     uint32
	MasterserverAdminSeat int

	// Local player identity for the human seat.
	HostUUID     string
	HostPlatform string
	HostLanguage string

	// Categories a connected client reported as out of synch.
	SynchFailed map[core.AssetCategory]bool
}

// Builder turns registry state into snapshots. It is used from the
// interactive thread and from launch.
type Builder struct {
	checksums *cache.ChecksumCache
	hasher    Checksummer
	args      ArgsSource
}

func NewBuilder(checksums *cache.ChecksumCache, hasher Checksummer, args ArgsSource) *Builder {
	return &Builder{
		checksums: checksums,
		hasher:    hasher,
		args:      args,
	}
}

// Build produces a snapshot. Non-closed seats get dense faction slot indices
// in seat order; closed seats are compacted after them. UpdateCount is left
// zero for the caller to stamp.
func (b *Builder) Build(reg *slots.Registry, sel Selection, opts Options) (*core.GameSettings, error) {
	gs := &core.GameSettings{
		GameUUID:                   opts.GameUUID,
		GameName:                   opts.GameName,
		Map:                        sel.Map,
		MapPlayers:                 sel.MapPlayers,
		Tileset:                    sel.Tileset,
		Techtree:                   sel.Techtree,
		Scenario:                   sel.Scenario,
		Flags:                      opts.Flags,
		AISwitchTeamAcceptPercent:  opts.AISwitchTeamAcceptPercent,
		FallbackCpuMultiplierIndex: opts.FallbackCpuMultiplierIndex,
		MasterserverAdmin:          opts.MasterserverAdmin,
		MasterserverAdminSeat:      opts.MasterserverAdminSeat,
	}

	seats := reg.Seats()
	slot, ai := 0, 0
	var closed []int
	for i, s := range seats {
		if s.Control == core.Closed {
			closed = append(closed, i)
			continue
		}
		ss := core.SeatSettings{
			StartLocation:   i,
			Control:         s.Control,
			Team:            s.Team,
			Faction:         s.Faction,
			MultiplierIndex: s.MultiplierIndex,
			PlayerName:      s.Name,
			Status:          s.Status,
		}
		switch {
		case s.Control.IsCPU():
			ai++
			ss.PlayerName = fmt.Sprintf("AI%d", ai)
		case s.Control == core.Human:
			ss.PlayerUUID = opts.HostUUID
			ss.Platform = opts.HostPlatform
			ss.Language = opts.HostLanguage
			ss.Status = core.StatusReady
			ss.Connected = true
		case s.Control.IsNetwork():
			if s.Conn != nil && s.Conn.IsConnected() {
				ss.PlayerName = s.Conn.Name()
				ss.PlayerUUID = s.Conn.UUID()
				ss.Platform = s.Conn.Platform()
				ss.Language = s.Conn.Language()
				ss.Status = s.Conn.NetworkPlayerStatus()
				ss.Connected = true
			} else {
				ss.PlayerName = core.UnconnectedName
				ss.Status = core.StatusSetup
			}
		}
		gs.Seats[slot] = ss
		slot++
	}
	gs.FactionCount = slot
	for _, i := range closed {
		gs.Seats[slot] = core.SeatSettings{
			StartLocation:   i,
			Control:         core.Closed,
			Team:            seats[i].Team,
			Faction:         seats[i].Faction,
			MultiplierIndex: seats[i].MultiplierIndex,
		}
		slot++
	}

	for _, cat := range core.Categories {
		v, err := b.checksum(cat, gs.Asset(cat), opts.SynchFailed[cat])
		if err != nil {
			return nil, err
		}
		switch cat {
		case core.CategoryMap:
			gs.MapChecksum = v
		case core.CategoryTileset:
			gs.TilesetChecksum = v
		case core.CategoryTechtree:
			gs.TechtreeChecksum = v
		}
	}
	return gs, nil
}

func (b *Builder) checksum(cat core.AssetCategory, name string, synchFailed bool) (uint32, error) {
	return b.checksums.Resolve(cat, name, synchFailed, func(force bool) (uint32, error) {
		paths, pattern, ext := b.args.ChecksumArgs(cat, name)
		return b.hasher.Checksum(paths, pattern, ext, force)
	})
}
