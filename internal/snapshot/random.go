package snapshot

import (
	"github.com/OCAP2/lobbyhost/internal/slots"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

// MaxRandomAttempts bounds resampling for one seat before falling back to
// the first unused faction in list order.
const MaxRandomAttempts = 1000

// Intn is the part of *rand.Rand the resolver needs.
type Intn interface {
	Intn(n int) int
}

// ResolveRandomFactions replaces every RandomFaction seat with a concrete
// faction. Picks made in this pass are never handed out twice while unused
// factions remain. It reports whether any seat changed.
func ResolveRandomFactions(reg *slots.Registry, factions []string, rng Intn) bool {
	var concrete []string
	for _, f := range factions {
		if !core.IsSentinelFaction(f) {
			concrete = append(concrete, f)
		}
	}
	if len(concrete) == 0 {
		return false
	}

	used := make(map[string]bool)
	changed := false
	for i, s := range reg.Seats() {
		if s.Control == core.Closed || s.Faction != core.RandomFaction {
			continue
		}
		pick := ""
		for attempt := 0; attempt < MaxRandomAttempts; attempt++ {
			c := concrete[rng.Intn(len(concrete))]
			if !used[c] {
				pick = c
				break
			}
		}
		if pick == "" {
			for _, c := range concrete {
				if !used[c] {
					pick = c
					break
				}
			}
		}
		if pick == "" {
			pick = concrete[0]
		}
		used[pick] = true
		if reg.SetFaction(i, pick) {
			changed = true
		}
	}
	return changed
}
