// Package file stores the last-used lobby settings in a single file,
// encoded as JSON or CBOR and optionally gzip-compressed.
package file

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/OCAP2/lobbyhost/internal/config"
	"github.com/OCAP2/lobbyhost/pkg/core"
	"github.com/fxamacker/cbor/v2"
)

const baseName = "lastsettings"

// Backend writes settings to <Dir>/lastsettings.<format>[.gz].
type Backend struct {
	cfg config.FileConfig
}

// New creates a file backend. Unknown formats fall back to JSON.
func New(cfg config.FileConfig) *Backend {
	if cfg.Format != "cbor" {
		cfg.Format = "json"
	}
	return &Backend{cfg: cfg}
}

// Path returns the file the backend reads and writes.
func (b *Backend) Path() string {
	name := baseName + "." + b.cfg.Format
	if b.cfg.Compress {
		name += ".gz"
	}
	return filepath.Join(b.cfg.Dir, name)
}

func (b *Backend) Init() error {
	if err := os.MkdirAll(b.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

func (b *Backend) Close() error { return nil }

// SaveLastSettings writes gs through a temp file so a crash never leaves a
// truncated file behind.
func (b *Backend) SaveLastSettings(_ context.Context, gs *core.GameSettings) error {
	path := b.Path()
	tmp, err := os.CreateTemp(b.cfg.Dir, baseName+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := b.encode(tmp, gs); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// LoadLastSettings returns fs.ErrNotExist (wrapped) when no file was saved.
func (b *Backend) LoadLastSettings(_ context.Context) (*core.GameSettings, error) {
	f, err := os.Open(b.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to open last settings: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if b.cfg.Compress {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	gs := &core.GameSettings{}
	switch b.cfg.Format {
	case "cbor":
		err = cbor.NewDecoder(r).Decode(gs)
	default:
		err = json.NewDecoder(r).Decode(gs)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode last settings: %w", err)
	}
	return gs, nil
}

func (b *Backend) encode(w io.Writer, gs *core.GameSettings) error {
	var gz *gzip.Writer
	if b.cfg.Compress {
		gz = gzip.NewWriter(w)
		w = gz
	}

	var err error
	switch b.cfg.Format {
	case "cbor":
		err = cbor.NewEncoder(w).Encode(gs)
	default:
		err = json.NewEncoder(w).Encode(gs)
	}
	if err != nil {
		return fmt.Errorf("failed to encode last settings: %w", err)
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to flush gzip stream: %w", err)
		}
	}
	return nil
}
