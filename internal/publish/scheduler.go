// Package publish pushes lobby state to the masterserver and to connected
// clients from two background workers.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/lobbyhost/pkg/core"
)

const (
	PublishInterval           = 6 * time.Second
	MaxWaitResponse           = 15 * time.Second
	BroadcastSettingsInterval = 4 * time.Second
	BroadcastMapDelay         = 5 * time.Second
	DefaultPingInterval       = 5 * time.Second
	ShutdownGrace             = 15 * time.Second
	DefaultStepInterval       = time.Second
)

// Publisher advertises the server descriptor.
type Publisher interface {
	Publish(ctx context.Context, info map[string]string) error
}

// Broadcaster reaches the connected clients.
type Broadcaster interface {
	BroadcastSettings(gs *core.GameSettings) error
	Ping() error
}

// Config holds the cadence of both workers.
type Config struct {
	PublishInterval   time.Duration
	MaxWaitResponse   time.Duration
	BroadcastInterval time.Duration
	MapDelay          time.Duration
	PingInterval      time.Duration
	StepInterval      time.Duration
	ShutdownGrace     time.Duration
	Descriptor        Descriptor
}

// DefaultConfig returns the stock cadence.
func DefaultConfig() Config {
	return Config{
		PublishInterval:   PublishInterval,
		MaxWaitResponse:   MaxWaitResponse,
		BroadcastInterval: BroadcastSettingsInterval,
		MapDelay:          BroadcastMapDelay,
		PingInterval:      DefaultPingInterval,
		StepInterval:      DefaultStepInterval,
		ShutdownGrace:     ShutdownGrace,
	}
}

// masterState is owned by the masterserver worker.
type masterState struct {
	mu deadlock.Mutex

	enabled       bool
	stopping      bool
	needRepublish bool
	needUnpublish bool
	published     bool
	snapshot      *core.GameSettings
	info          map[string]string
	lastAttempt   time.Time
	firstFailure  time.Time
}

// clientState is owned by the client broadcast worker.
type clientState struct {
	mu deadlock.Mutex

	needBroadcast bool
	snapshot      *core.GameSettings
	lastBroadcast time.Time
	lastMapChange time.Time
	lastPing      time.Time
}

// Scheduler decides when to publish and broadcast. The interactive thread
// feeds it snapshots; the workers call the step methods.
type Scheduler struct {
	cfg         Config
	publisher   Publisher
	broadcaster Broadcaster
	logger      *slog.Logger

	// onMasterError is called once when publishing is given up.
	onMasterError func(error)
	onPanic       func(error)

	master masterState
	client clientState

	masterWorker *Worker
	clientWorker *Worker
	stopOnce     sync.Once
	stopped      chan struct{}

	attempts   metric.Int64Counter
	failures   metric.Int64Counter
	broadcasts metric.Int64Counter
}

// New creates a scheduler with publishing disabled.
func New(cfg Config, publisher Publisher, broadcaster Broadcaster, onMasterError, onPanic func(error), logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cfg:           cfg,
		publisher:     publisher,
		broadcaster:   broadcaster,
		logger:        logger,
		onMasterError: onMasterError,
		onPanic:       onPanic,
		stopped:       make(chan struct{}),
	}

	m := meter()
	var err error
	s.attempts, err = m.Int64Counter(
		"publish.masterserver.attempts",
		metric.WithDescription("Masterserver publish attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating attempts counter: %w", err)
	}
	s.failures, err = m.Int64Counter(
		"publish.masterserver.failures",
		metric.WithDescription("Failed masterserver publish attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}
	s.broadcasts, err = m.Int64Counter(
		"publish.clients.broadcasts",
		metric.WithDescription("Settings broadcasts sent to clients"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating broadcasts counter: %w", err)
	}

	s.masterWorker = NewWorker("masterserver", cfg.StepInterval, s.MasterStep, onPanic, logger)
	s.clientWorker = NewWorker("clients", cfg.StepInterval, s.ClientStep, onPanic, logger)
	return s, nil
}

// Start launches both workers.
func (s *Scheduler) Start(ctx context.Context) {
	s.masterWorker.Start(ctx)
	s.clientWorker.Start(ctx)
}

// Stop signals both workers and returns without waiting. In the background
// it waits for each worker up to the shutdown grace, then publishes
// finalStatus once more if the server was ever advertised. A negative
// finalStatus skips that update. Only the first call has an effect; Done
// closes when the stop completed.
func (s *Scheduler) Stop(ctx context.Context, finalStatus int) {
	s.stopOnce.Do(func() {
		s.master.mu.Lock()
		s.master.stopping = true
		s.master.mu.Unlock()

		go s.stop(context.WithoutCancel(ctx), finalStatus)
	})
}

// Done is closed once a Stop finished its background work.
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

func (s *Scheduler) stop(ctx context.Context, finalStatus int) {
	defer close(s.stopped)
	s.masterWorker.Stop(s.cfg.ShutdownGrace)
	s.clientWorker.Stop(s.cfg.ShutdownGrace)
	if finalStatus < 0 {
		return
	}

	s.master.mu.Lock()
	gs, published := s.master.snapshot, s.master.published
	s.master.published = false
	s.master.mu.Unlock()
	if !published || gs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.MaxWaitResponse)
	defer cancel()
	info := ServerInfo(gs, s.cfg.Descriptor, finalStatus)
	if err := s.publisher.Publish(ctx, info); err != nil {
		s.logger.Warn("final masterserver update failed", "status", finalStatus, "error", err)
	}
}

// SettingsChanged hands a new snapshot to both workers. Locks are taken in
// fixed order: masterserver first, then clients.
func (s *Scheduler) SettingsChanged(gs *core.GameSettings, mapChanged bool, now time.Time) {
	s.master.mu.Lock()
	defer s.master.mu.Unlock()
	s.client.mu.Lock()
	defer s.client.mu.Unlock()

	s.master.snapshot = gs
	if s.master.enabled {
		s.master.needRepublish = true
	}
	s.client.snapshot = gs
	s.client.needBroadcast = true
	if mapChanged {
		s.client.lastMapChange = now
	}
}

// SetPublishEnabled turns masterserver advertisement on or off. Turning it
// off after a successful publish queues a finished-status update.
func (s *Scheduler) SetPublishEnabled(on bool) {
	s.master.mu.Lock()
	defer s.master.mu.Unlock()
	if on == s.master.enabled {
		return
	}
	s.master.enabled = on
	s.master.firstFailure = time.Time{}
	if on {
		s.master.needRepublish = true
		s.master.needUnpublish = false
		return
	}
	s.master.needRepublish = false
	s.master.needUnpublish = s.master.published
}

// PublishEnabled reports whether masterserver advertisement is on.
func (s *Scheduler) PublishEnabled() bool {
	s.master.mu.Lock()
	defer s.master.mu.Unlock()
	return s.master.enabled
}

// NeedRepublish reports whether a masterserver update is pending.
func (s *Scheduler) NeedRepublish() bool {
	s.master.mu.Lock()
	defer s.master.mu.Unlock()
	return s.master.needRepublish
}

// NeedBroadcast reports whether a client broadcast is pending.
func (s *Scheduler) NeedBroadcast() bool {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	return s.client.needBroadcast
}

// MasterStep publishes when due. The lock is released around the HTTP call.
func (s *Scheduler) MasterStep(ctx context.Context, now time.Time) {
	s.master.mu.Lock()
	if s.master.stopping {
		s.master.mu.Unlock()
		return
	}
	if !s.master.enabled {
		unpublish := s.master.needUnpublish && s.master.snapshot != nil
		s.master.needUnpublish = false
		var info map[string]string
		if unpublish {
			info = ServerInfo(s.master.snapshot, s.cfg.Descriptor, StatusFinished)
			s.master.published = false
		}
		s.master.mu.Unlock()
		if unpublish {
			if err := s.publisher.Publish(ctx, info); err != nil {
				s.logger.Debug("masterserver unpublish failed", "error", err)
			}
		}
		return
	}
	due := s.master.needRepublish || now.Sub(s.master.lastAttempt) >= s.cfg.PublishInterval
	if !due || s.master.snapshot == nil {
		s.master.mu.Unlock()
		return
	}
	s.master.info = ServerInfo(s.master.snapshot, s.cfg.Descriptor, LobbyStatus(s.master.snapshot))
	info := s.master.info
	s.master.needRepublish = false
	s.master.lastAttempt = now
	s.master.mu.Unlock()

	s.attempts.Add(ctx, 1)
	err := s.publisher.Publish(ctx, info)

	s.master.mu.Lock()
	s.master.info = nil
	if err == nil {
		s.master.firstFailure = time.Time{}
		s.master.published = true
		s.master.mu.Unlock()
		return
	}
	s.failures.Add(ctx, 1)
	if s.master.firstFailure.IsZero() {
		s.master.firstFailure = now
	}
	giveUp := s.master.enabled && now.Sub(s.master.firstFailure) >= s.cfg.MaxWaitResponse
	if giveUp {
		s.master.enabled = false
		s.master.firstFailure = time.Time{}
	} else if s.master.enabled {
		// retried on the next step
		s.master.needRepublish = true
	}
	s.master.mu.Unlock()

	if giveUp {
		s.logger.Error("masterserver publish failed, disabling", "error", err)
		if s.onMasterError != nil {
			s.onMasterError(err)
		}
		return
	}
	s.logger.Debug("masterserver publish failed, will retry", "error", err)
}

// ClientStep broadcasts pending settings and pings clients. The lock is
// released around socket I/O.
func (s *Scheduler) ClientStep(ctx context.Context, now time.Time) {
	s.client.mu.Lock()
	gs := s.client.snapshot
	broadcast := s.client.needBroadcast && gs != nil &&
		now.Sub(s.client.lastBroadcast) >= s.cfg.BroadcastInterval &&
		now.Sub(s.client.lastMapChange) >= s.cfg.MapDelay
	if broadcast {
		s.client.needBroadcast = false
		s.client.lastBroadcast = now
	}
	ping := now.Sub(s.client.lastPing) >= s.cfg.PingInterval
	if ping {
		s.client.lastPing = now
	}
	s.client.mu.Unlock()

	if broadcast {
		if err := s.broadcaster.BroadcastSettings(gs); err != nil {
			s.logger.Warn("settings broadcast failed", "error", err)
			s.client.mu.Lock()
			s.client.needBroadcast = true
			s.client.mu.Unlock()
		} else {
			s.broadcasts.Add(ctx, 1)
		}
	}
	if ping {
		if err := s.broadcaster.Ping(); err != nil {
			s.logger.Debug("client ping failed", "error", err)
		}
	}
}
