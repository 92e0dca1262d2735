// Package storage persists the last-used lobby settings between host runs.
package storage

import (
	"context"
	"io/fs"

	"github.com/OCAP2/lobbyhost/pkg/core"
)

// ErrNotFound is returned by LoadLastSettings when nothing was saved yet.
// Backends report it as fs.ErrNotExist so they do not import this package.
var ErrNotFound = fs.ErrNotExist

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	SaveLastSettings(ctx context.Context, gs *core.GameSettings) error
	LoadLastSettings(ctx context.Context) (*core.GameSettings, error)
}

// LaunchRecorder is an optional interface for backends that keep a
// history of launched games.
type LaunchRecorder interface {
	RecordLaunch(ctx context.Context, gs *core.GameSettings) error
}
