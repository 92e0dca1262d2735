// Package netserver accepts client connections over WebSocket and maps them
// onto lobby seats.
package netserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/OCAP2/lobbyhost/internal/config"
	"github.com/OCAP2/lobbyhost/internal/dispatcher"
	"github.com/OCAP2/lobbyhost/internal/slots"
	"github.com/OCAP2/lobbyhost/pkg/core"
	"github.com/OCAP2/lobbyhost/pkg/streaming"
)

// Path is the HTTP path clients upgrade on.
const Path = "/lobby"

// ErrNotListening is returned by OpenSlot before Start or after Shutdown.
var ErrNotListening = errors.New("network server is not listening")

// Dispatcher routes inbound messages. *dispatcher.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Config holds the listener settings.
type Config struct {
	Listen       string
	RateLimit    float64
	RateBurst    int
	WriteTimeout time.Duration
}

// FromConfig maps the net config section onto Config.
func FromConfig(nc config.NetConfig) Config {
	return Config{
		Listen:       nc.Listen,
		RateLimit:    nc.RateLimit,
		RateBurst:    nc.RateBurst,
		WriteTimeout: nc.WriteTimeout,
	}
}

// Server owns every client handle and the seat each one occupies.
type Server struct {
	cfg      Config
	dispatch Dispatcher
	logger   *slog.Logger
	upgrader ws.Upgrader

	mu        sync.Mutex
	seats     [core.MaxPlayers]*Handle
	joins     []*Handle
	handles   map[uint64]*Handle
	nextID    uint64
	listening bool
	httpSrv   *http.Server
	wg        sync.WaitGroup
}

// New creates a server. Connections are accepted through ServeHTTP; Start
// additionally binds cfg.Listen.
func New(cfg Config, d Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 40
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Server{
		cfg:      cfg,
		dispatch: d,
		logger:   logger,
		upgrader: ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		handles:  make(map[uint64]*Handle),
	}
}

// sessionKey derives a non-zero key from a random UUID.
func sessionKey() uint32 {
	id := uuid.New()
	k := uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3])
	if k == 0 {
		k = 1
	}
	return k
}

// ServeHTTP upgrades the request and queues the new handle as a join.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.mu.Lock()
	s.nextID++
	h := newHandle(s.nextID, conn, sessionKey(),
		rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst),
		s.cfg.WriteTimeout, s.logger)
	s.handles[h.id] = h
	s.joins = append(s.joins, h)
	s.mu.Unlock()

	s.logger.Info("Client connected", "client", h.id, "remote", r.RemoteAddr)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		h.writeLoop()
	}()
	go func() {
		defer s.wg.Done()
		h.readLoop(s.dispatch)
		s.forget(h)
	}()
}

// forget drops a finished handle from the join queue and handle set. Seat
// mappings are left for the lobby to release.
func (s *Server) forget(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, h.id)
	for i, j := range s.joins {
		if j == h {
			s.joins = append(s.joins[:i], s.joins[i+1:]...)
			break
		}
	}
}

// Start binds the listener and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}
	mux := http.NewServeMux()
	mux.Handle(Path, s)

	s.mu.Lock()
	s.httpSrv = &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	srv := s.httpSrv
	s.listening = true
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Network server stopped", "error", err)
		}
		s.mu.Lock()
		s.listening = false
		s.mu.Unlock()
	}()
	s.logger.Info("Network server listening", "addr", ln.Addr().String())
	return nil
}

// MarkListening is for servers mounted on an external mux.
func (s *Server) MarkListening(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listening = on
}

// Listening reports whether new clients can connect.
func (s *Server) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// Shutdown stops accepting, closes every client and waits for their loops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.listening = false
	all := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		all = append(all, h)
	}
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	for _, h := range all {
		_ = h.CloseWithReason("server shutting down")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// TakeJoins returns connected clients that have no seat yet and clears the
// queue.
func (s *Server) TakeJoins() []slots.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]slots.Connection, 0, len(s.joins))
	for _, h := range s.joins {
		if h.IsConnected() {
			out = append(out, h)
		}
	}
	s.joins = nil
	return out
}

// Handle returns the handle seated at slot.
func (s *Server) Handle(slot int) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !core.ValidSeat(slot) {
		return nil
	}
	return s.seats[slot]
}

// Assign seats c at slot and tells the client. c must come from TakeJoins.
func (s *Server) Assign(slot int, c slots.Connection) error {
	h, ok := c.(*Handle)
	if !ok || h == nil {
		return fmt.Errorf("connection %T is not served here", c)
	}
	s.mu.Lock()
	if !core.ValidSeat(slot) {
		s.mu.Unlock()
		return fmt.Errorf("invalid slot %d", slot)
	}
	if cur := s.seats[slot]; cur != nil && cur != h {
		s.mu.Unlock()
		return fmt.Errorf("slot %d already taken by client %d", slot, cur.id)
	}
	if old := h.Slot(); core.ValidSeat(old) && s.seats[old] == h {
		s.seats[old] = nil
	}
	s.seats[slot] = h
	h.setSlot(slot)
	s.mu.Unlock()

	h.sendEnvelope(streaming.TypeSlotAssigned, streaming.SlotAssignedPayload{Slot: slot})
	return nil
}

// Release unseats whatever handle occupies slot.
func (s *Server) Release(slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !core.ValidSeat(slot) {
		return
	}
	if h := s.seats[slot]; h != nil {
		h.setSlot(-1)
		s.seats[slot] = nil
	}
}

// SwitchSlot moves the client at from onto the empty seat to.
func (s *Server) SwitchSlot(from, to int) bool {
	s.mu.Lock()
	if !core.ValidSeat(from) || !core.ValidSeat(to) || from == to {
		s.mu.Unlock()
		return false
	}
	h := s.seats[from]
	if h == nil || s.seats[to] != nil || !h.IsConnected() {
		s.mu.Unlock()
		return false
	}
	s.seats[from] = nil
	s.seats[to] = h
	h.setSlot(to)
	s.mu.Unlock()

	h.sendEnvelope(streaming.TypeSlotAssigned, streaming.SlotAssignedPayload{Slot: to})
	return true
}

// RemoveSlot releases seat i and closes any client still on it.
func (s *Server) RemoveSlot(i int) {
	s.mu.Lock()
	if !core.ValidSeat(i) {
		s.mu.Unlock()
		return
	}
	h := s.seats[i]
	s.seats[i] = nil
	s.mu.Unlock()

	if h != nil {
		h.setSlot(-1)
		_ = h.CloseWithReason("slot removed")
	}
}

// OpenSlot prepares seat i to accept a client.
func (s *Server) OpenSlot(i int) error {
	if !core.ValidSeat(i) {
		return fmt.Errorf("invalid slot %d", i)
	}
	if !s.Listening() {
		return ErrNotListening
	}
	return nil
}

// seated returns every seated, connected handle.
func (s *Server) seated() []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Handle, 0, core.MaxPlayers)
	for _, h := range s.seats {
		if h != nil && h.IsConnected() {
			out = append(out, h)
		}
	}
	return out
}

// BroadcastSettings sends gs to every seated client.
func (s *Server) BroadcastSettings(gs *core.GameSettings) error {
	data, err := streaming.Encode(streaming.TypeSettings, streaming.SettingsPayload{Settings: gs})
	if err != nil {
		return err
	}
	for _, h := range s.seated() {
		h.send(data)
	}
	return nil
}

// Ping sends the host clock to every seated client.
func (s *Server) Ping() error {
	data, err := streaming.Encode(streaming.TypePing, streaming.PingPayload{Time: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	for _, h := range s.seated() {
		h.send(data)
	}
	return nil
}

// pick returns the entry for lang, then English, then any entry.
func pick(texts map[string]string, lang string) string {
	if t, ok := texts[lang]; ok {
		return t
	}
	if t, ok := texts["en"]; ok {
		return t
	}
	for _, t := range texts {
		return t
	}
	return ""
}

// SendLocalized sends each seated client the text in its language.
func (s *Server) SendLocalized(texts map[string]string) {
	s.SendNotice(nil, texts)
}

// SendNotice sends each seated client a header and text in its language.
func (s *Server) SendNotice(headers, texts map[string]string) {
	if len(texts) == 0 {
		return
	}
	for _, h := range s.seated() {
		lang := h.Language()
		h.sendEnvelope(streaming.TypeText, streaming.TextPayload{
			Header: pick(headers, lang),
			Text:   pick(texts, lang),
		})
	}
}

// Languages lists the languages of all seated clients.
func (s *Server) Languages() []string {
	hs := s.seated()
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.Language())
	}
	return out
}
