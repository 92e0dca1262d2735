package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/OCAP2/lobbyhost/internal/assets"
	"github.com/OCAP2/lobbyhost/internal/checksum"
	"github.com/OCAP2/lobbyhost/internal/database"
	"github.com/OCAP2/lobbyhost/internal/dispatcher"
	"github.com/OCAP2/lobbyhost/internal/influx"
	"github.com/OCAP2/lobbyhost/internal/lobby"
	"github.com/OCAP2/lobbyhost/internal/logging"
	"github.com/OCAP2/lobbyhost/internal/monitor"
	"github.com/OCAP2/lobbyhost/internal/netserver"
	intOtel "github.com/OCAP2/lobbyhost/internal/otel"
	"github.com/OCAP2/lobbyhost/internal/publish"
	"github.com/OCAP2/lobbyhost/internal/storage"
	"github.com/OCAP2/lobbyhost/internal/worker"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "lobbyhost"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFile *os.File

	SessionStartTime time.Time = time.Now()

	// Services
	dbManager       *database.Manager
	influxManager   *influx.Manager
	storageBackend  storage.Backend
	assetIndex      *assets.Dir
	hasher          *checksum.Hasher
	eventDispatcher *dispatcher.Dispatcher
	workerManager   *worker.Manager
	netServer       *netserver.Server
	scheduler       *publish.Scheduler
	monitorService  *monitor.Service
	theLobby        *lobby.Lobby
)

func init() {
	// Logging is re-setup once the config is loaded
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
