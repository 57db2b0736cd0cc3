package notify

import (
	"context"
	"time"
)

// Event represents a debounced status change to be announced. It is produced
// by the monitor engine at most once per transition and carries whatever
// server metadata the probe that completed the transition could extract.
type Event struct {
	Online bool
	At     time.Time

	Edition    string // "java" or "bedrock"; empty when the edition is unknown
	Version    string
	MOTD       string
	Players    *int // nil when the probe could not tell
	MaxPlayers *int
	Latency    time.Duration
	Reason     string // failure detail when offline
}

// Notifier is the interface announcement channels must satisfy.
type Notifier interface {
	// Announce delivers a state change announcement to the configured
	// channel. It should return an error if delivery fails; callers do not
	// retry.
	Announce(ctx context.Context, event Event) error
}
