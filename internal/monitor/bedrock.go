//go:build !nobedrock

package monitor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// bedrockSupported reports whether Bedrock probing is compiled in.
const bedrockSupported = true

// RakNet unconnected message IDs.
const (
	idUnconnectedPing = 0x01
	idUnconnectedPong = 0x1c
)

// unconnectedMagic is RakNet's offline-message marker, echoed in the pong.
var unconnectedMagic = [16]byte{
	0x00, 0xff, 0xff, 0x00, 0xfe, 0xfe, 0xfe, 0xfe,
	0xfd, 0xfd, 0xfd, 0xfd, 0x12, 0x34, 0x56, 0x78,
}

func newBedrockProber(host string, port uint16) Prober {
	return &BedrockProber{Host: host, Port: port, Timeout: DefaultTimeout}
}

// BedrockProber queries a Bedrock edition server with a RakNet unconnected
// ping over UDP.
type BedrockProber struct {
	Host    string
	Port    uint16
	Timeout time.Duration
}

func (p *BedrockProber) Probe(ctx context.Context) Status {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var d net.Dialer
	addr := net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port)))
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return Status{At: time.Now(), Detail: Detail{Edition: "bedrock", Err: err.Error()}}
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	detail, err := p.ping(conn, start)
	if err != nil {
		return Status{At: time.Now(), Detail: Detail{Edition: "bedrock", Err: err.Error()}}
	}
	return Status{At: time.Now(), Reachable: true, Detail: detail}
}

func (p *BedrockProber) ping(conn net.Conn, start time.Time) (Detail, error) {
	req := make([]byte, 0, 33)
	req = append(req, idUnconnectedPing)
	req = binary.BigEndian.AppendUint64(req, uint64(start.UnixMilli()))
	req = append(req, unconnectedMagic[:]...)
	req = binary.BigEndian.AppendUint64(req, uint64(start.UnixNano())) // client GUID
	if _, err := conn.Write(req); err != nil {
		return Detail{}, fmt.Errorf("ping: %w", err)
	}

	resp := make([]byte, 2048)
	n, err := conn.Read(resp)
	if err != nil {
		return Detail{}, fmt.Errorf("pong: %w", err)
	}
	latency := time.Since(start)

	// Pong layout: ID (1), ping time (8), server GUID (8), magic (16),
	// server ID string length (2), server ID string.
	if n < 35 || resp[0] != idUnconnectedPong {
		return Detail{}, errors.New("malformed pong")
	}
	return parseBedrockPong(resp[35:n], latency)
}

// parseBedrockPong decodes the semicolon-separated server ID string:
// edition;MOTD;protocol;version;online;max;...
func parseBedrockPong(payload []byte, latency time.Duration) (Detail, error) {
	fields := strings.Split(string(payload), ";")
	if len(fields) < 6 {
		return Detail{}, errors.New("malformed server ID string")
	}

	detail := Detail{Edition: "bedrock", Latency: latency}
	detail.MOTD = stripFormatting(fields[1])
	detail.Version = fields[3]
	if online, err := strconv.Atoi(fields[4]); err == nil {
		detail.Players = &online
	}
	if maxPlayers, err := strconv.Atoi(fields[5]); err == nil {
		detail.MaxPlayers = &maxPlayers
	}
	return detail, nil
}
