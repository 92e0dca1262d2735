package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/OCAP2/lobbyhost/internal/assets"
	"github.com/OCAP2/lobbyhost/internal/checksum"
	"github.com/OCAP2/lobbyhost/internal/config"
	"github.com/OCAP2/lobbyhost/internal/database"
	"github.com/OCAP2/lobbyhost/internal/dispatcher"
	"github.com/OCAP2/lobbyhost/internal/influx"
	"github.com/OCAP2/lobbyhost/internal/lang"
	"github.com/OCAP2/lobbyhost/internal/lobby"
	"github.com/OCAP2/lobbyhost/internal/logging"
	"github.com/OCAP2/lobbyhost/internal/masterserver"
	"github.com/OCAP2/lobbyhost/internal/monitor"
	"github.com/OCAP2/lobbyhost/internal/netserver"
	intOtel "github.com/OCAP2/lobbyhost/internal/otel"
	"github.com/OCAP2/lobbyhost/internal/publish"
	"github.com/OCAP2/lobbyhost/internal/queue"
	"github.com/OCAP2/lobbyhost/internal/storage"
	"github.com/OCAP2/lobbyhost/internal/worker"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

// zlog feeds the database and influx managers.
var zlog zerolog.Logger = zerolog.Nop()

// lobbyRef lets handlers registered before the lobby exists reach it.
type lobbyRef struct {
	p atomic.Pointer[lobby.Lobby]
}

func (r *lobbyRef) OfferRemoteSettings(gs *core.GameSettings) {
	if l := r.p.Load(); l != nil {
		l.OfferRemoteSettings(gs)
	}
}

func (r *lobbyRef) IsAdmin(key uint32) bool {
	l := r.p.Load()
	return l != nil && l.IsAdmin(key)
}

func (r *lobbyRef) LogContext() []slog.Attr {
	if l := r.p.Load(); l != nil {
		return l.LogContext()
	}
	return nil
}

var currentLobby lobbyRef

// initLogging opens the session log file and rebuilds the slog, zerolog and
// OTel outputs from config.
func initLogging() {
	level := viper.GetString("logLevel")
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}

	path := logging.LogFilePath(logsDir, AppName, SessionStartTime)
	if _, err := os.Stat(path); err == nil {
		_ = os.Rename(path, path+".old")
	}
	var err error
	LogFile, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", path)
		LogFile = nil
	}

	var graylog io.Writer
	if viper.GetBool("graylog.enabled") {
		w, err := logging.NewGraylogWriter(viper.GetString("graylog.address"))
		if err != nil {
			Logger.Error("Failed to set up Graylog", "error", err)
		} else {
			graylog = w
			SlogManager.SetGraylog(w)
		}
	}

	var fileOut io.Writer
	if LogFile != nil {
		fileOut = LogFile
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		oc := intOtel.FromConfig(otelCfg, fileOut)
		oc.ServiceVersion = CurrentVersion
		if host, err := os.Hostname(); err == nil {
			oc.InstanceID = host
		}
		oc.OnError = func(err error) { Logger.Warn("OTel error", "error", err) }
		OTelProvider, err = intOtel.New(oc)
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	// Re-setup logging with file output and optional OTel
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.SetContextProvider(currentLobby.LogContext)
	SlogManager.Setup(fileOut, level, otelLogProvider)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)
	zlog = logging.NewZerolog(fileOut, level, graylog)
	Logger.Info("Logging to file", "path", path)
}

func initStorage() (storage.Backend, error) {
	storageCfg := config.GetStorageConfig()
	dbManager = database.NewManager(zlog)

	backend, err := storage.NewBackend(storageCfg, dbManager)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return nil, err
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return backend, nil
}

func initAssets() (*assets.Dir, error) {
	paths := config.GetLobbyConfig().DataPaths
	idx, err := assets.NewDir(paths...)
	if err != nil {
		return nil, fmt.Errorf("indexing data paths %v: %w", paths, err)
	}
	return idx, nil
}

// publishConfig fills unset cadence values with the stock ones.
func publishConfig(pc config.PublishConfig, nc config.NetConfig) publish.Config {
	cfg := publish.DefaultConfig()
	setIfPositive(&cfg.PublishInterval, pc.Interval)
	setIfPositive(&cfg.MaxWaitResponse, pc.MaxWaitResponse)
	setIfPositive(&cfg.BroadcastInterval, pc.BroadcastInterval)
	setIfPositive(&cfg.MapDelay, pc.MapDelay)
	setIfPositive(&cfg.PingInterval, pc.PingInterval)
	setIfPositive(&cfg.StepInterval, pc.StepInterval)
	setIfPositive(&cfg.ShutdownGrace, pc.ShutdownGrace)
	cfg.Descriptor = publish.Descriptor{
		GlestVersion:      pc.GlestVersion,
		Platform:          runtime.GOOS + "-" + runtime.GOARCH,
		BinaryCompileDate: BuildDate,
		ServerTitle:       pc.ServerTitle,
		ExternalPort:      nc.ExternalPort,
		PrivacyPlease:     pc.PrivacyPlease,
	}
	return cfg
}

func setIfPositive(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// serve wires every service, runs the lobby until ctx is done and tears
// everything down in reverse order.
func serve(ctx context.Context) error {
	initLogging()
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = SlogManager.Flush(flushCtx)
		if OTelProvider != nil {
			_ = OTelProvider.Shutdown(flushCtx)
		}
		if LogFile != nil {
			_ = LogFile.Close()
		}
	}()

	lobbyCfg := config.GetLobbyConfig()
	pubCfg := config.GetPublishConfig()
	netCfg := config.GetNetConfig()
	monCfg := config.GetMonitorConfig()

	Logger.Info("Initializing storage...")
	backend, err := initStorage()
	if err != nil {
		Logger.Warn("Continuing without storage", "error", err)
	} else {
		storageBackend = backend
		defer storageBackend.Close()
	}

	Logger.Info("Initializing influx...")
	var points monitor.PointWriter
	influxManager = influx.NewManager(zlog, filepath.Join(viper.GetString("logsDir"), AppName+"_influx_backup.lp.gz"))
	switch err := influxManager.Connect(ctx); {
	case errors.Is(err, influx.ErrDisabled):
		Logger.Info("Influx disabled")
	case err != nil:
		Logger.Warn("Influx unreachable, writing points to backup file", "error", err)
		points = influxManager
	default:
		points = influxManager
	}
	defer influxManager.Close()

	Logger.Info("Indexing assets...")
	assetIndex, err = initAssets()
	if err != nil {
		return err
	}
	hasher, err = checksum.New(lobbyCfg.ChecksumMemoSize)
	if err != nil {
		return fmt.Errorf("creating checksum memo: %w", err)
	}
	defer hasher.Close()

	eventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	defer eventDispatcher.Close()
	switches := queue.NewInbox[core.SwitchSetupRequest](core.MaxPlayers)
	workerManager = worker.NewManager(worker.Dependencies{
		Switches: switches,
		Remote:   &currentLobby,
		IsAdmin:  currentLobby.IsAdmin,
		Logger:   Logger,
	})
	Logger.Debug("Registering worker handlers with dispatcher")
	workerManager.RegisterHandlers(eventDispatcher)

	netServer = netserver.New(netserver.FromConfig(netCfg), eventDispatcher, Logger)
	if err := netServer.Start(ctx); err != nil {
		// network seats fall back to CPU
		Logger.Error("Failed to start network server", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := netServer.Shutdown(shutdownCtx); err != nil {
			Logger.Warn("Network server shutdown", "error", err)
		}
	}()

	catalog := lang.Default()
	notices := lobby.NewNotices(catalog, lobbyCfg.Language, Logger)
	scheduler, err = publish.New(
		publishConfig(pubCfg, netCfg),
		masterserver.New(pubCfg.MasterserverURL, pubCfg.Timeout),
		netServer,
		notices.MasterserverError,
		notices.Error,
		Logger,
	)
	if err != nil {
		return fmt.Errorf("creating publish scheduler: %w", err)
	}

	theLobby, err = lobby.New(lobby.Dependencies{
		Config:    lobbyCfg,
		Assets:    assetIndex,
		Hasher:    hasher,
		Network:   netServer,
		Scheduler: scheduler,
		Notices:   notices,
		Storage:   storageBackend,
		Catalog:   catalog,
		Switches:  switches,
		Logger:    Logger,
	})
	if err != nil {
		return fmt.Errorf("creating lobby: %w", err)
	}
	currentLobby.p.Store(theLobby)

	if lobbyCfg.RestoreLastSettings && storageBackend != nil {
		if err := theLobby.RestoreLastSettings(ctx); err != nil {
			Logger.Warn("Failed to restore last settings", "error", err)
		}
	}
	if lobbyCfg.Scenario != "" {
		if err := theLobby.SelectScenario(lobbyCfg.Scenario); err != nil {
			Logger.Warn("Failed to load scenario", "scenario", lobbyCfg.Scenario, "error", err)
		}
	}
	theLobby.Session().OnStart(func(gs *core.GameSettings) {
		Logger.Info("Match handed off", "gameUuid", gs.GameUUID, "map", gs.Map, "seats", len(gs.ActiveSeats()))
		if OTelProvider != nil {
			flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := OTelProvider.Flush(flushCtx); err != nil {
				Logger.Warn("OTel flush at hand-off", "error", err)
			}
		}
	})

	theLobby.SetPublishEnabled(pubCfg.Enabled)
	scheduler.Start(ctx)

	if monCfg.Enabled {
		monitorService = monitor.NewService(monitor.Dependencies{
			Status:     theLobby.Status,
			Influx:     points,
			Logger:     Logger,
			StatusFile: monCfg.StatusFile,
			Interval:   monCfg.Interval,
		})
		if err := monitorService.Start(ctx); err != nil {
			Logger.Error("Failed to start status monitor", "error", err)
		}
		defer monitorService.Stop()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go runConsole(runCtx, cancel, os.Stdin, os.Stdout, theLobby)

	Logger.Info("Lobby open", "headless", lobbyCfg.Headless, "listen", netCfg.Listen)
	theLobby.Run(runCtx, lobbyCfg.TickInterval)

	Logger.Info("Shutting down...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), pubCfg.ShutdownGrace+5*time.Second)
	defer cancelShutdown()
	theLobby.Shutdown(shutdownCtx)
	select {
	case <-scheduler.Done():
	case <-shutdownCtx.Done():
		Logger.Warn("Publishers still stopping at exit")
	}
	return nil
}
