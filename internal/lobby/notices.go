package lobby

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/lobbyhost/internal/lang"
	"github.com/OCAP2/lobbyhost/internal/masterserver"
	"github.com/OCAP2/lobbyhost/internal/queue"
)

// Notice is one user-facing message.
type Notice struct {
	Header string
	Text   string
	At     time.Time
}

// Notices shows one notice at a time. Notices raised while one is showing
// wait in arrival order until the current one is acknowledged. Safe for
// concurrent use; the publish workers raise into it.
type Notices struct {
	catalog  *lang.Catalog
	language string
	logger   *slog.Logger

	mu      sync.Mutex
	current *Notice
	pending *queue.Queue[Notice]
}

func NewNotices(catalog *lang.Catalog, language string, logger *slog.Logger) *Notices {
	if catalog == nil {
		catalog = lang.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notices{
		catalog:  catalog,
		language: language,
		logger:   logger,
		pending:  queue.New[Notice](),
	}
}

// Push shows n, or defers it behind the current notice.
func (n *Notices) Push(notice Notice) {
	if notice.At.IsZero() {
		notice.At = time.Now()
	}
	n.logger.Warn("Lobby notice", "header", notice.Header, "text", notice.Text)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		n.current = &notice
		return
	}
	n.pending.Push(notice)
}

// Raise localizes key into the host language and pushes it.
func (n *Notices) Raise(header, key lang.Key, args ...any) {
	notice := Notice{Text: n.catalog.Text(n.language, key, args...)}
	if header != "" {
		notice.Header = n.catalog.Text(n.language, header)
	}
	n.Push(notice)
}

// Error raises the general error notice.
func (n *Notices) Error(err error) {
	n.Raise("", lang.GeneralError, err.Error())
}

// MasterserverError raises the notice shown when publishing is given up.
// A rejection shows the masterserver's own reply.
func (n *Notices) MasterserverError(err error) {
	detail := err.Error()
	var rej *masterserver.RejectedError
	if errors.As(err, &rej) && rej.Body != "" {
		detail = rej.Body
	}
	n.Raise("", lang.MasterserverError, detail)
}

// Current returns the notice on display.
func (n *Notices) Current() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notice{}, false
	}
	return *n.current, true
}

// Acknowledge dismisses the current notice and shows the next one.
func (n *Notices) Acknowledge() {
	n.mu.Lock()
	defer n.mu.Unlock()
	next, ok := n.pending.Pop()
	if !ok {
		n.current = nil
		return
	}
	n.current = &next
}

// Pending counts the current and every deferred notice.
func (n *Notices) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return 0
	}
	return 1 + n.pending.Len()
}
