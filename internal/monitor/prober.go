package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/makt28/beacon/internal/notify"
)

// Detail carries the metadata a probe could extract from the server. All
// fields are best-effort; an unreachable probe fills only Err.
type Detail struct {
	Edition    string // "java" or "bedrock"
	Version    string
	MOTD       string
	Players    *int // nil when the probe could not tell
	MaxPlayers *int
	Latency    time.Duration
	Err        string // failure reason when unreachable
}

// Status is the outcome of a single probe: one raw observation.
type Status struct {
	At        time.Time
	Reachable bool
	Detail    Detail
}

// Event converts the observation into its announcement payload.
func (s Status) Event() notify.Event {
	return notify.Event{
		Online:     s.Reachable,
		At:         s.At,
		Edition:    s.Detail.Edition,
		Version:    s.Detail.Version,
		MOTD:       s.Detail.MOTD,
		Players:    s.Detail.Players,
		MaxPlayers: s.Detail.MaxPlayers,
		Latency:    s.Detail.Latency,
		Reason:     s.Detail.Err,
	}
}

// Prober is the interface for all probe protocol implementations. A probe
// never returns an error: network and protocol failures are reported as an
// unreachable Status with the reason in Detail.Err.
type Prober interface {
	Probe(ctx context.Context) Status
}

// DefaultTimeout bounds a single probe attempt.
const DefaultTimeout = 5 * time.Second

// Protocol modes accepted by NewProber.
const (
	ProtocolAuto    = "auto"
	ProtocolJava    = "java"
	ProtocolBedrock = "bedrock"
)

// NewProber creates the prober for a protocol mode. Auto tries Java first
// and falls back to Bedrock. In builds without Bedrock support the bedrock
// prober always reports unreachable.
func NewProber(protocol, host string, port uint16) (Prober, error) {
	switch protocol {
	case ProtocolJava:
		return &JavaProber{Host: host, Port: port, Timeout: DefaultTimeout}, nil
	case ProtocolBedrock:
		return newBedrockProber(host, port), nil
	case ProtocolAuto:
		return &multiProber{probers: []Prober{
			&JavaProber{Host: host, Port: port, Timeout: DefaultTimeout},
			newBedrockProber(host, port),
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported protocol %q", protocol)
	}
}

// BedrockSupported reports whether this build can perform Bedrock probes.
func BedrockSupported() bool { return bedrockSupported }

// --- Auto mode ---

// multiProber tries each prober in order and returns the first reachable
// result. When every attempt fails, the per-protocol reasons are joined so
// the operator can see why each edition was ruled out.
type multiProber struct {
	probers []Prober
}

func (m *multiProber) Probe(ctx context.Context) Status {
	var reasons []string
	for _, p := range m.probers {
		st := p.Probe(ctx)
		if st.Reachable {
			return st
		}
		if st.Detail.Err != "" {
			reasons = append(reasons, fmt.Sprintf("%s: %s", st.Detail.Edition, st.Detail.Err))
		}
	}
	return Status{
		At:     time.Now(),
		Detail: Detail{Err: strings.Join(reasons, "; ")},
	}
}

// unavailableProber stands in for a probe capability that is not compiled
// into this build.
type unavailableProber struct {
	edition string
	reason  string
}

func (p unavailableProber) Probe(context.Context) Status {
	return Status{At: time.Now(), Detail: Detail{Edition: p.edition, Err: p.reason}}
}

// stripFormatting removes Minecraft § formatting codes from server-provided
// text such as MOTDs.
func stripFormatting(s string) string {
	if !strings.ContainsRune(s, '§') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	skip := false
	for _, r := range s {
		if skip {
			skip = false
			continue
		}
		if r == '§' {
			skip = true
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
