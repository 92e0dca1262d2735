package synch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/lobbyhost/internal/lang"
	"github.com/OCAP2/lobbyhost/internal/slots"
	"github.com/OCAP2/lobbyhost/internal/slots/slotstest"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

type recorder struct {
	sent []map[string]string
}

func (r *recorder) SendLocalized(texts map[string]string) {
	r.sent = append(r.sent, texts)
}

func setup() (*slots.Registry, *recorder, *Checker) {
	reg := slots.NewRegistry(slots.Options{Interactive: true})
	reg.ApplyDefaultLayout(true)
	rec := &recorder{}
	return reg, rec, NewChecker(reg, rec, lang.Default(), nil)
}

func TestIsSynched(t *testing.T) {
	tests := []struct {
		name   string
		prep   func(c *slotstest.Conn)
		checks [3]bool
		want   bool
	}{
		{"all ok", func(*slotstest.Conn) {}, [3]bool{true, true, true}, true},
		{"map bad", func(c *slotstest.Conn) { c.SetSynch(core.CategoryMap, false) }, [3]bool{true, true, true}, false},
		{"map bad but not checked", func(c *slotstest.Conn) { c.SetSynch(core.CategoryMap, false) }, [3]bool{false, true, true}, true},
		{"no download synch", func(c *slotstest.Conn) {
			c.SetSynch(core.CategoryTechtree, false)
			c.AllowDownload = false
		}, [3]bool{true, true, true}, true},
		{"synch check disabled", func(c *slotstest.Conn) {
			c.SetSynch(core.CategoryTechtree, false)
			c.AllowCheck = false
		}, [3]bool{true, true, true}, true},
		{"disconnected", func(c *slotstest.Conn) {
			c.SetSynch(core.CategoryTileset, false)
			c.Connected = false
		}, [3]bool{true, true, true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _, chk := setup()
			good := slotstest.NewConn("ok")
			bad := slotstest.NewConn("bad")
			tt.prep(bad)
			reg.AttachConnection(1, good)
			reg.AttachConnection(2, bad)

			assert.Equal(t, tt.want, chk.IsSynched(tt.checks[0], tt.checks[1], tt.checks[2]))
		})
	}
}

func TestIsSynched_OnlyNetworkSeats(t *testing.T) {
	reg, _, chk := setup()
	bad := slotstest.NewConn("bad")
	bad.SetSynch(core.CategoryMap, false)
	reg.AttachConnection(3, bad)
	reg.SetControlType(3, core.NetworkUnassigned)

	assert.True(t, chk.IsSynched(true, true, true))
}

func TestReport_OncePerSignature(t *testing.T) {
	reg, rec, chk := setup()
	bad := slotstest.NewConn("hank")
	bad.Lang = "de"
	bad.SetSynch(core.CategoryTechtree, false)
	reg.AttachConnection(1, bad)
	reg.AttachConnection(2, slotstest.NewConn("ivy"))
	gs := &core.GameSettings{Map: "island", Techtree: "megapack"}

	for i := 0; i < 5; i++ {
		failing := chk.Report(gs)
		assert.Equal(t, map[core.AssetCategory]bool{core.CategoryTechtree: true}, failing)
	}
	assert.Len(t, rec.sent, 1)
	assert.Equal(t, "Player hank has a different techtree: megapack", rec.sent[0]["en"])
	assert.Contains(t, rec.sent[0]["de"], "hank")

	gs2 := &core.GameSettings{Map: "island", Techtree: "classic"}
	chk.Report(gs2)
	assert.Len(t, rec.sent, 2, "new asset name is a new signature")
}

func TestReport_OnlyChangedCategories(t *testing.T) {
	reg, rec, chk := setup()
	hank := slotstest.NewConn("hank")
	hank.SetSynch(core.CategoryTechtree, false)
	reg.AttachConnection(1, hank)
	gs := &core.GameSettings{Map: "island", Techtree: "megapack"}

	chk.Report(gs)
	require.Len(t, rec.sent, 1)

	ivy := slotstest.NewConn("ivy")
	ivy.SetSynch(core.CategoryMap, false)
	reg.AttachConnection(2, ivy)

	failing := chk.Report(gs)
	assert.Equal(t, map[core.AssetCategory]bool{core.CategoryMap: true, core.CategoryTechtree: true}, failing)
	require.Len(t, rec.sent, 2)
	assert.Equal(t, "Player ivy has a different map: island", rec.sent[1]["en"])

	chk.Report(gs)
	assert.Len(t, rec.sent, 2)
}

func TestReport_NothingFailing(t *testing.T) {
	reg, rec, chk := setup()
	reg.AttachConnection(1, slotstest.NewConn("ivy"))

	failing := chk.Report(&core.GameSettings{})
	assert.Empty(t, failing)
	assert.Empty(t, rec.sent)
}
