package monitor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/makt28/beacon/internal/notify"
)

// state is the announced reachability of the server.
type state string

const (
	stateUnknown state = "unknown"
	stateOnline  state = "online"
	stateOffline state = "offline"
)

func stateOf(reachable bool) state {
	if reachable {
		return stateOnline
	}
	return stateOffline
}

// Engine turns the raw, possibly flapping stream of observations into a
// debounced, rate-limited stream of announcements. A transition is announced
// once the candidate state has been observed threshold times in a row and at
// least rateLimit has passed since the previous announcement. The engine has
// no clock of its own: every time comparison uses the observation timestamps
// it is fed, so replayed observations produce identical decisions.
type Engine struct {
	mu        sync.Mutex
	threshold int
	rateLimit time.Duration

	announced    state // last state actually announced
	pending      state // candidate state being debounced
	pendingCount int   // consecutive observations agreeing with pending
	lastAnnounce time.Time
}

// NewEngine creates an engine. A threshold below 1 is clamped to 1
// (announce on any change); a rateLimit of 0 disables rate limiting.
func NewEngine(threshold int, rateLimit time.Duration) *Engine {
	if threshold < 1 {
		threshold = 1
	}
	return &Engine{
		threshold: threshold,
		rateLimit: rateLimit,
		announced: stateUnknown,
		pending:   stateUnknown,
	}
}

// Observe records one raw observation and returns the announcement event if
// this observation completes a qualifying transition, nil otherwise. At most
// one event is produced per observation. A suppressed transition is not
// lost: the pending count keeps accumulating, so a later observation can
// complete it once the rate-limit window has passed.
func (e *Engine) Observe(st Status) *notify.Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := stateOf(st.Reachable)
	if s == e.pending {
		e.pendingCount++
	} else {
		e.pending = s
		e.pendingCount = 1
	}

	slog.Debug("status observed",
		"state", s,
		"pending_count", e.pendingCount,
		"announced", e.announced,
	)

	if e.pending == e.announced {
		return nil
	}
	if e.pendingCount < e.threshold {
		return nil
	}
	if e.rateLimit > 0 && !e.lastAnnounce.IsZero() && st.At.Sub(e.lastAnnounce) < e.rateLimit {
		slog.Info("announcement suppressed by rate limit",
			"pending", e.pending,
			"last_announcement", e.lastAnnounce,
		)
		return nil
	}

	e.announced = e.pending
	e.lastAnnounce = st.At
	ev := st.Event()
	return &ev
}
