package monitor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// javaProtocolVersion is sent in the status handshake; -1 is the
// conventional value for a pure status ping.
const javaProtocolVersion = -1

// maxStatusFrame caps the status response size we are willing to read.
// Vanilla responses, favicon included, stay well below this.
const maxStatusFrame = 1 << 21

// JavaProber queries a Java edition server with the Server List Ping
// exchange over TCP. A server that accepts the connection but fails the
// status exchange still counts as reachable, with the exchange error
// recorded in the detail.
type JavaProber struct {
	Host    string
	Port    uint16
	Timeout time.Duration
}

func (p *JavaProber) Probe(ctx context.Context) Status {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var d net.Dialer
	addr := net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port)))
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Status{At: time.Now(), Detail: Detail{Edition: "java", Err: err.Error()}}
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	detail, err := p.queryStatus(conn, start)
	if err != nil {
		// The port accepted our connection, so the host is up even though
		// the status exchange failed.
		return Status{
			At:        time.Now(),
			Reachable: true,
			Detail:    Detail{Edition: "java", Err: fmt.Sprintf("status query failed: %v", err)},
		}
	}
	return Status{At: time.Now(), Reachable: true, Detail: detail}
}

func (p *JavaProber) queryStatus(conn net.Conn, start time.Time) (Detail, error) {
	if err := p.writeHandshake(conn); err != nil {
		return Detail{}, fmt.Errorf("handshake: %w", err)
	}
	// Status request: an empty packet with ID 0x00.
	if _, err := conn.Write([]byte{0x01, 0x00}); err != nil {
		return Detail{}, fmt.Errorf("status request: %w", err)
	}

	frame, err := readFrame(bufio.NewReader(conn))
	if err != nil {
		return Detail{}, fmt.Errorf("status response: %w", err)
	}
	latency := time.Since(start)

	payload := bytes.NewReader(frame)
	id, err := readVarInt(payload)
	if err != nil || id != 0x00 {
		return Detail{}, errors.New("malformed status response")
	}
	jsonLen, err := readVarInt(payload)
	if err != nil || jsonLen < 0 || int(jsonLen) > payload.Len() {
		return Detail{}, errors.New("malformed status response")
	}
	body := make([]byte, jsonLen)
	if _, err := io.ReadFull(payload, body); err != nil {
		return Detail{}, errors.New("malformed status response")
	}
	return parseJavaStatus(body, latency)
}

func (p *JavaProber) writeHandshake(conn net.Conn) error {
	var pkt bytes.Buffer
	writeVarInt(&pkt, 0x00) // packet ID: handshake
	writeVarInt(&pkt, javaProtocolVersion)
	writeVarInt(&pkt, int32(len(p.Host)))
	pkt.WriteString(p.Host)
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], p.Port)
	pkt.Write(port[:])
	writeVarInt(&pkt, 1) // next state: status

	var frame bytes.Buffer
	writeVarInt(&frame, int32(pkt.Len()))
	frame.Write(pkt.Bytes())
	_, err := conn.Write(frame.Bytes())
	return err
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	length, err := readVarInt(r)
	if err != nil {
		return nil, err
	}
	if length <= 0 || length > maxStatusFrame {
		return nil, fmt.Errorf("invalid frame length %d", length)
	}
	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// Minecraft VarInts are 32-bit values in LEB128 encoding, at most 5 bytes.

func writeVarInt(buf *bytes.Buffer, v int32) {
	u := uint32(v)
	for {
		b := byte(u & 0x7f)
		u >>= 7
		if u != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if u == 0 {
			return
		}
	}
}

func readVarInt(r io.ByteReader) (int32, error) {
	var v uint32
	for i := 0; i < 5; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return int32(v), nil
		}
	}
	return 0, errors.New("varint too long")
}

// chatComponent is the subset of the chat component tree needed to flatten
// a description into plain text.
type chatComponent struct {
	Text  string          `json:"text"`
	Extra []chatComponent `json:"extra"`
}

func (c chatComponent) flatten() string {
	s := c.Text
	for _, e := range c.Extra {
		s += e.flatten()
	}
	return s
}

func parseJavaStatus(body []byte, latency time.Duration) (Detail, error) {
	var payload struct {
		Version *struct {
			Name string `json:"name"`
		} `json:"version"`
		Players *struct {
			Online int `json:"online"`
			Max    int `json:"max"`
		} `json:"players"`
		Description json.RawMessage `json:"description"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Detail{}, fmt.Errorf("status JSON: %w", err)
	}

	detail := Detail{Edition: "java", Latency: latency}
	if payload.Version != nil {
		detail.Version = payload.Version.Name
	}
	if payload.Players != nil {
		online, maxPlayers := payload.Players.Online, payload.Players.Max
		detail.Players = &online
		detail.MaxPlayers = &maxPlayers
	}
	detail.MOTD = stripFormatting(motdText(payload.Description))
	return detail, nil
}

// motdText extracts plain text from a description, which servers send as
// either a bare string or a chat component tree.
func motdText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var c chatComponent
	if json.Unmarshal(raw, &c) == nil {
		return c.flatten()
	}
	return ""
}
