// Package dispatcher routes inbound client messages by type to the handlers
// that turn them into lobby state.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrQueueFull      = errors.New("queue full")
	ErrClosed         = errors.New("dispatcher closed")
)

// Event is one inbound client message.
type Event struct {
	Command string
	// Slot is the seat the sending connection held when the message was read.
	Slot int
	// Source is the connection that sent the message, if any.
	Source    any
	Payload   json.RawMessage
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	queue    int
	blocking bool
	logged   bool
}

// Buffered hands events to a per-type goroutine through a queue of size n.
// Dispatch then answers "queued" without waiting for the handler.
func Buffered(n int) Option {
	return func(o *options) { o.queue = n }
}

// Blocking makes Dispatch wait for room in a full queue instead of dropping.
func Blocking() Option {
	return func(o *options) { o.blocking = true }
}

// Logged logs every event of the type at debug level, and failures at error.
func Logged() Option {
	return func(o *options) { o.logged = true }
}

type route struct {
	handle HandlerFunc
	queue  chan Event
}

// Dispatcher is safe for concurrent Dispatch from every client read loop.
type Dispatcher struct {
	logger Logger

	queued   metric.Int64ObservableGauge
	handled  metric.Int64Counter
	failed   metric.Int64Counter
	dropped  metric.Int64Counter
	duration metric.Float64Histogram

	mu     sync.RWMutex
	routes map[string]*route
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a dispatcher reporting to the global OTel meter.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger: logger,
		routes: make(map[string]*route),
		done:   make(chan struct{}),
	}

	m := meter()
	var err error

	if d.queued, err = m.Int64ObservableGauge(
		"lobby.messages.queued",
		metric.WithDescription("Client messages waiting in a handler queue"),
	); err != nil {
		return nil, fmt.Errorf("creating queued gauge: %w", err)
	}
	if _, err = m.RegisterCallback(d.observeQueues, d.queued); err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}
	if d.handled, err = m.Int64Counter(
		"lobby.messages.handled",
		metric.WithDescription("Client messages handed to a handler"),
	); err != nil {
		return nil, fmt.Errorf("creating handled counter: %w", err)
	}
	if d.failed, err = m.Int64Counter(
		"lobby.messages.failed",
		metric.WithDescription("Client messages whose handler returned an error"),
	); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if d.dropped, err = m.Int64Counter(
		"lobby.messages.dropped",
		metric.WithDescription("Client messages dropped on a full queue"),
	); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if d.duration, err = m.Float64Histogram(
		"lobby.messages.duration",
		metric.WithDescription("Handler time per client message"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return d, nil
}

func (d *Dispatcher) observeQueues(_ context.Context, o metric.Observer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for typ, r := range d.routes {
		if r.queue != nil {
			o.ObserveInt64(d.queued, int64(len(r.queue)), metric.WithAttributes(attribute.String("type", typ)))
		}
	}
	return nil
}

// Register sets the handler for a message type, replacing any earlier one.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	typ := metric.WithAttributes(attribute.String("type", command))
	handle := d.measured(typ, h)
	if o.logged {
		handle = d.logged(command, handle)
	}

	r := &route{handle: handle}
	if o.queue > 0 {
		r.queue = make(chan Event, o.queue)
		d.wg.Add(1)
		go d.drain(r.queue, handle)
	}
	if o.blocking && r.queue != nil {
		r.handle = d.enqueueWait(command, r.queue)
	} else if r.queue != nil {
		r.handle = d.enqueue(command, r.queue, typ)
	}

	d.mu.Lock()
	d.routes[command] = r
	d.mu.Unlock()
}

// Dispatch routes an event to the handler registered for its type.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	r, ok := d.routes[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	return r.handle(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[command]
	return ok
}

// Close rejects further events, lets the queued ones run and waits for the
// queue goroutines to finish. Blocked senders give up with ErrClosed.
func (d *Dispatcher) Close() {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return
	}
	close(d.done)

	d.mu.Lock()
	d.closed = true
	for _, r := range d.routes {
		if r.queue != nil {
			close(r.queue)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) drain(queue chan Event, h HandlerFunc) {
	defer d.wg.Done()
	for e := range queue {
		_, _ = h(e)
	}
}

func (d *Dispatcher) enqueue(command string, queue chan Event, typ metric.MeasurementOption) HandlerFunc {
	return func(e Event) (any, error) {
		select {
		case queue <- e:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, typ)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) enqueueWait(command string, queue chan Event) HandlerFunc {
	return func(e Event) (any, error) {
		select {
		case queue <- e:
			return "queued", nil
		case <-d.done:
			return nil, fmt.Errorf("%w: %s", ErrClosed, command)
		}
	}
}

func (d *Dispatcher) measured(typ metric.MeasurementOption, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		res, err := h(e)
		ctx := context.Background()
		d.handled.Add(ctx, 1, typ)
		d.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, typ)
		if err != nil {
			d.failed.Add(ctx, 1, typ)
		}
		return res, err
	}
}

func (d *Dispatcher) logged(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling message", "type", command, "slot", e.Slot, "bytes", len(e.Payload))

		res, err := h(e)
		if err != nil {
			d.logger.Error("message failed", "type", command, "slot", e.Slot, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("message handled", "type", command, "slot", e.Slot, "duration", time.Since(start))
		}
		return res, err
	}
}
