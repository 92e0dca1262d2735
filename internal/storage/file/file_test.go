package file

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/OCAP2/lobbyhost/internal/config"
	"github.com/OCAP2/lobbyhost/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSettings() *core.GameSettings {
	gs := &core.GameSettings{
		GameUUID:     "7b1c",
		UpdateCount:  12,
		GameName:     "Friday",
		Map:          "island",
		Tileset:      "forest",
		Techtree:     "magic",
		MapChecksum:  0xdeadbeef,
		MapPlayers:   4,
		FactionCount: 2,
		Flags:        core.FlagFogOfWar | core.FlagAllowObservers,
	}
	gs.Seats[0] = core.SeatSettings{StartLocation: 0, Control: core.Human, Team: 1, Faction: "mage", MultiplierIndex: core.DefaultMultiplierIndex, PlayerName: "alice"}
	gs.Seats[1] = core.SeatSettings{StartLocation: 2, Control: core.Cpu, Team: 2, Faction: "tech", MultiplierIndex: 7, PlayerName: "AI2"}
	return gs
}

func TestPath(t *testing.T) {
	tests := []struct {
		cfg  config.FileConfig
		want string
	}{
		{config.FileConfig{Dir: "/x", Format: "json"}, "/x/lastsettings.json"},
		{config.FileConfig{Dir: "/x", Format: "json", Compress: true}, "/x/lastsettings.json.gz"},
		{config.FileConfig{Dir: "/x", Format: "cbor"}, "/x/lastsettings.cbor"},
		{config.FileConfig{Dir: "/x", Format: "yaml", Compress: true}, "/x/lastsettings.json.gz"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.cfg).Path())
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []string{"json", "cbor"} {
		for _, compress := range []bool{false, true} {
			name := format
			if compress {
				name += "+gzip"
			}
			t.Run(name, func(t *testing.T) {
				b := New(config.FileConfig{Dir: filepath.Join(t.TempDir(), "nested"), Format: format, Compress: compress})
				require.NoError(t, b.Init())
				defer b.Close()

				ctx := context.Background()
				want := sampleSettings()
				require.NoError(t, b.SaveLastSettings(ctx, want))

				got, err := b.LoadLastSettings(ctx)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			})
		}
	}
}

func TestLoadMissing(t *testing.T) {
	b := New(config.FileConfig{Dir: t.TempDir(), Format: "json"})
	require.NoError(t, b.Init())

	_, err := b.LoadLastSettings(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestSaveOverwrites(t *testing.T) {
	b := New(config.FileConfig{Dir: t.TempDir(), Format: "json"})
	require.NoError(t, b.Init())
	ctx := context.Background()

	first := sampleSettings()
	require.NoError(t, b.SaveLastSettings(ctx, first))
	second := sampleSettings()
	second.Map = "desert"
	require.NoError(t, b.SaveLastSettings(ctx, second))

	got, err := b.LoadLastSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "desert", got.Map)

	entries, err := os.ReadDir(b.cfg.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCompressedFileIsGzip(t *testing.T) {
	b := New(config.FileConfig{Dir: t.TempDir(), Format: "json", Compress: true})
	require.NoError(t, b.Init())
	require.NoError(t, b.SaveLastSettings(context.Background(), sampleSettings()))

	f, err := os.Open(b.Path())
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(gz).Decode(&decoded))
	assert.Equal(t, "island", decoded["map"])
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	b := New(config.FileConfig{Dir: dir, Format: "json"})
	require.NoError(t, os.WriteFile(b.Path(), []byte("{not json"), 0644))

	_, err := b.LoadLastSettings(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode last settings")
}
