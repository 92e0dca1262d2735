package netserver

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/OCAP2/lobbyhost/internal/dispatcher"
	"github.com/OCAP2/lobbyhost/pkg/core"
	"github.com/OCAP2/lobbyhost/pkg/streaming"
)

const (
	sendChSize     = 256
	maxMessageSize = 64 << 10
)

// Handle is one connected client. It implements slots.Connection for the
// seat it is attached to and worker.Conn for inbound handlers.
type Handle struct {
	id     uint64
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}

	// gorilla allows one concurrent writer
	wmu       sync.Mutex
	closeOnce sync.Once
	connected atomic.Bool
	slot      atomic.Int32
	dropped   atomic.Uint64

	limiter   *rate.Limiter
	writeWait time.Duration
	logger    *slog.Logger

	mu            sync.RWMutex
	name          string
	uuid          string
	platform      string
	language      string
	sessionKey    uint32
	allowDownload bool
	allowCheck    bool
	synch         streaming.SynchReportPayload
	status        core.PlayerStatus
	lastPong      time.Time
}

func newHandle(id uint64, conn *ws.Conn, sessionKey uint32, limiter *rate.Limiter, writeWait time.Duration, logger *slog.Logger) *Handle {
	h := &Handle{
		id:         id,
		conn:       conn,
		sendCh:     make(chan []byte, sendChSize),
		done:       make(chan struct{}),
		limiter:    limiter,
		writeWait:  writeWait,
		logger:     logger,
		sessionKey: sessionKey,
		language:   "en",
	}
	h.slot.Store(-1)
	h.connected.Store(true)
	return h
}

// ID is unique per server lifetime.
func (h *Handle) ID() uint64 { return h.id }

// Slot returns the seat the handle is attached to, or -1.
func (h *Handle) Slot() int { return int(h.slot.Load()) }

func (h *Handle) setSlot(i int) { h.slot.Store(int32(i)) }

// Dropped counts inbound messages refused by the rate limiter.
func (h *Handle) Dropped() uint64 { return h.dropped.Load() }

func (h *Handle) IsConnected() bool { return h.connected.Load() }

func (h *Handle) Name() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.name
}

func (h *Handle) SetName(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.name = name
}

func (h *Handle) UUID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.uuid
}

func (h *Handle) Platform() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.platform
}

func (h *Handle) Language() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.language
}

func (h *Handle) SessionKey() uint32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessionKey
}

func (h *Handle) NetworkPlayerStatus() core.PlayerStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// SynchOK is true until the client reports a mismatch for category.
func (h *Handle) SynchOK(category core.AssetCategory) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.synch.OK(category)
}

func (h *Handle) AllowDownloadDataSynch() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.allowDownload
}

func (h *Handle) AllowGameDataSynchCheck() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.allowCheck
}

// SetIdentity applies a hello. The session key stays the one the server
// assigned at accept; admin checks rely on it.
func (h *Handle) SetIdentity(hello streaming.HelloPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.name = hello.Name
	h.uuid = hello.UUID
	h.platform = hello.Platform
	if hello.Language != "" {
		h.language = hello.Language
	}
	h.allowDownload = hello.AllowDownloadDataSynch
	h.allowCheck = hello.AllowGameDataSynchCheck
	h.synch = streaming.SynchReportPayload{MapOK: true, TilesetOK: true, TechtreeOK: true}
}

func (h *Handle) SetSynchReport(report streaming.SynchReportPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.synch = report
}

func (h *Handle) SetPlayerStatus(status core.PlayerStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}

func (h *Handle) Pong(at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPong = at
}

// LastPong returns when the client last answered a ping.
func (h *Handle) LastPong() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastPong
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (h *Handle) send(data []byte) {
	if !h.IsConnected() {
		return
	}
	select {
	case h.sendCh <- data:
	default:
		h.logger.Warn("Client send channel full, dropping message", "client", h.id)
	}
}

func (h *Handle) sendEnvelope(typ string, payload any) {
	data, err := streaming.Encode(typ, payload)
	if err != nil {
		h.logger.Error("Encoding message failed", "type", typ, "error", err)
		return
	}
	h.send(data)
}

// writeLoop drains sendCh until the handle is closed.
func (h *Handle) writeLoop() {
	for {
		select {
		case <-h.done:
			return
		case data := <-h.sendCh:
			if err := h.write(ws.TextMessage, data); err != nil {
				h.logger.Warn("Client write error", "client", h.id, "error", err)
				h.shutdown()
				return
			}
		}
	}
}

func (h *Handle) write(messageType int, data []byte) error {
	h.wmu.Lock()
	defer h.wmu.Unlock()
	if err := h.conn.SetWriteDeadline(time.Now().Add(h.writeWait)); err != nil {
		return err
	}
	return h.conn.WriteMessage(messageType, data)
}

// readLoop decodes envelopes and hands them to d until the peer goes away.
func (h *Handle) readLoop(d Dispatcher) {
	defer h.shutdown()
	h.conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := h.conn.ReadMessage()
		if err != nil {
			select {
			case <-h.done:
			default:
				h.logger.Info("Client read ended", "client", h.id, "error", err)
			}
			return
		}

		if !h.limiter.Allow() {
			h.dropped.Add(1)
			continue
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			h.logger.Debug("Malformed client message", "client", h.id, "raw", string(message))
			continue
		}

		_, err = d.Dispatch(dispatcher.Event{
			Command:   env.Type,
			Slot:      h.Slot(),
			Source:    h,
			Payload:   env.Payload,
			Timestamp: time.Now(),
		})
		if env.Type == streaming.TypePong {
			continue
		}
		ack := streaming.AckMessage{Type: streaming.TypeAck, For: env.Type}
		if err != nil {
			ack.Error = err.Error()
		}
		if data, err := json.Marshal(ack); err == nil {
			h.send(data)
		}
	}
}

// shutdown marks the handle disconnected and stops the loops.
func (h *Handle) shutdown() {
	h.closeOnce.Do(func() {
		h.connected.Store(false)
		close(h.done)
		_ = h.conn.Close()
	})
}

// CloseWithReason tells the client why and drops the connection.
func (h *Handle) CloseWithReason(reason string) error {
	if h.IsConnected() {
		if data, err := streaming.Encode(streaming.TypeClose, streaming.ClosePayload{Reason: reason}); err == nil {
			_ = h.write(ws.TextMessage, data)
		}
		_ = h.write(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, reason))
	}
	h.shutdown()
	return nil
}

// Close sends a close frame and shuts the connection down.
func (h *Handle) Close() error {
	return h.CloseWithReason("")
}
