// Package assets enumerates the maps, tilesets and techtrees available in
// the host's data folders.
package assets

import (
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/OCAP2/lobbyhost/pkg/core"
)

// MapExtensions are the map file formats the index recognizes.
var MapExtensions = []string{".gbm", ".mgm"}

var ErrUnknownAsset = errors.New("unknown asset")

// MapInfo describes one playable map.
type MapInfo struct {
	Name    string
	Path    string
	Players int
}

// Index is what the lobby consumes from asset enumeration.
type Index interface {
	Maps() []MapInfo
	MapPlayers(name string) (int, bool)
	Tilesets() []string
	Techtrees() []string
	Factions(techtree string) ([]string, error)
	Scenarios() []string
	Scenario(name string) (ScenarioInfo, error)
	// ChecksumArgs returns the folder checksum inputs for a selection.
	ChecksumArgs(cat core.AssetCategory, name string) (paths []string, pattern, ext string)
}

// Dir indexes one or more data roots. Earlier roots shadow later ones.
type Dir struct {
	roots []string

	mu        sync.RWMutex
	maps      []MapInfo
	tilesets  []string
	techtrees []string
	scenarios []string
}

// NewDir scans roots immediately.
func NewDir(roots ...string) (*Dir, error) {
	d := &Dir{roots: roots}
	if err := d.Scan(); err != nil {
		return nil, err
	}
	return d, nil
}

// Scan rebuilds the index from disk.
func (d *Dir) Scan() error {
	maps, err := d.scanMaps()
	if err != nil {
		return err
	}
	tilesets, err := d.scanDirs("tilesets")
	if err != nil {
		return err
	}
	techtrees, err := d.scanDirs("techs")
	if err != nil {
		return err
	}
	scenarios, err := d.scanDirs("scenarios")
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.maps = maps
	d.tilesets = tilesets
	d.techtrees = techtrees
	d.scenarios = scenarios
	return nil
}

func (d *Dir) scanMaps() ([]MapInfo, error) {
	seen := make(map[string]bool)
	var out []MapInfo
	for _, root := range d.roots {
		entries, err := os.ReadDir(filepath.Join(root, "maps"))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read maps in %s: %w", root, err)
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || !isMapExt(ext) {
				continue
			}
			name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
			if seen[name] {
				continue
			}
			path := filepath.Join(root, "maps", e.Name())
			players, err := ReadMapPlayers(path)
			if err != nil {
				// unreadable maps are not offered
				continue
			}
			seen[name] = true
			out = append(out, MapInfo{Name: name, Path: path, Players: players})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func isMapExt(ext string) bool {
	for _, m := range MapExtensions {
		if ext == m {
			return true
		}
	}
	return false
}

func (d *Dir) scanDirs(sub string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, root := range d.roots {
		entries, err := os.ReadDir(filepath.Join(root, sub))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s in %s: %w", sub, root, err)
		}
		for _, e := range entries {
			if !e.IsDir() || seen[e.Name()] || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			seen[e.Name()] = true
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// mapHeader is the leading part of the map file header: format version
// followed by the maximum number of factions, both little-endian int32.
type mapHeader struct {
	Version     int32
	MaxFactions int32
}

// ReadMapPlayers reads the player count from a map file header.
func ReadMapPlayers(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var h mapHeader
	if err := binary.Read(f, binary.LittleEndian, &h); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("map %s: truncated header", path)
		}
		return 0, fmt.Errorf("map %s: %w", path, err)
	}
	if h.MaxFactions < 1 || h.MaxFactions > core.MaxPlayers {
		return 0, fmt.Errorf("map %s: invalid player count %d", path, h.MaxFactions)
	}
	return int(h.MaxFactions), nil
}

func (d *Dir) Maps() []MapInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]MapInfo(nil), d.maps...)
}

func (d *Dir) MapPlayers(name string) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, m := range d.maps {
		if m.Name == name {
			return m.Players, true
		}
	}
	return 0, false
}

func (d *Dir) Tilesets() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.tilesets...)
}

func (d *Dir) Techtrees() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.techtrees...)
}

// Factions lists the concrete factions of a techtree, sorted.
func (d *Dir) Factions(techtree string) ([]string, error) {
	if !d.hasTechtree(techtree) {
		return nil, fmt.Errorf("techtree %q: %w", techtree, ErrUnknownAsset)
	}
	seen := make(map[string]bool)
	var out []string
	for _, root := range d.roots {
		entries, err := os.ReadDir(filepath.Join(root, "techs", techtree, "factions"))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read factions of %s: %w", techtree, err)
		}
		for _, e := range entries {
			if e.IsDir() && !seen[e.Name()] {
				seen[e.Name()] = true
				out = append(out, e.Name())
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d *Dir) hasTechtree(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, t := range d.techtrees {
		if t == name {
			return true
		}
	}
	return false
}

func (d *Dir) ChecksumArgs(cat core.AssetCategory, name string) ([]string, string, string) {
	switch cat {
	case core.CategoryMap:
		return d.roots, "maps/" + name + ".*", ""
	case core.CategoryTileset:
		return d.roots, "tilesets/" + name + "/*", ".xml"
	default:
		return d.roots, "techs/" + name + "/*", ".xml"
	}
}

// ScenarioInfo is the part of a scenario file the lobby applies.
type ScenarioInfo struct {
	Name     string
	Map      string
	Tileset  string
	Techtree string
}

type scenarioFile struct {
	Map      valueAttr `xml:"map"`
	Tileset  valueAttr `xml:"tileset"`
	Techtree valueAttr `xml:"tech-tree"`
}

type valueAttr struct {
	Value string `xml:"value,attr"`
}

func (d *Dir) Scenarios() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.scenarios...)
}

// Scenario reads scenarios/<name>/<name>.xml from the first root that has it.
func (d *Dir) Scenario(name string) (ScenarioInfo, error) {
	d.mu.RLock()
	known := slices.Contains(d.scenarios, name)
	d.mu.RUnlock()
	if !known {
		return ScenarioInfo{}, fmt.Errorf("scenario %q: %w", name, ErrUnknownAsset)
	}
	for _, root := range d.roots {
		data, err := os.ReadFile(filepath.Join(root, "scenarios", name, name+".xml"))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return ScenarioInfo{}, fmt.Errorf("read scenario %s: %w", name, err)
		}
		var f scenarioFile
		if err := xml.Unmarshal(data, &f); err != nil {
			return ScenarioInfo{}, fmt.Errorf("parse scenario %s: %w", name, err)
		}
		return ScenarioInfo{
			Name:     name,
			Map:      f.Map.Value,
			Tileset:  f.Tileset.Value,
			Techtree: f.Techtree.Value,
		}, nil
	}
	return ScenarioInfo{}, fmt.Errorf("scenario %q has no %s.xml: %w", name, name, ErrUnknownAsset)
}
