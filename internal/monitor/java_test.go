package monitor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listenerAddr splits a listener address into host and port.
func listenerAddr(t *testing.T, addr net.Addr) (string, uint16) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr.String())
	require.NoError(t, err)
	port, err := strconv.ParseUint(portStr, 10, 16)
	require.NoError(t, err)
	return host, uint16(port)
}

func TestJavaProberReadsStatus(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	statusJSON := `{"version":{"name":"1.21"},"players":{"online":3,"max":20},"description":{"text":"Hello ","extra":[{"text":"world"}]}}`
	require.Less(t, len(statusJSON), 128, "the reply is framed with single-byte VarInts")

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Swallow the handshake and status request frames.
		r := bufio.NewReader(conn)
		for i := 0; i < 2; i++ {
			if _, err := readFrame(r); err != nil {
				return
			}
		}

		payload := append([]byte{0x00, byte(len(statusJSON))}, statusJSON...)
		frame := append([]byte{byte(len(payload))}, payload...)
		conn.Write(frame)
	}()

	host, port := listenerAddr(t, ln.Addr())
	p := &JavaProber{Host: host, Port: port, Timeout: 2 * time.Second}

	st := p.Probe(context.Background())
	require.True(t, st.Reachable)
	assert.Equal(t, "java", st.Detail.Edition)
	assert.Equal(t, "1.21", st.Detail.Version)
	assert.Equal(t, "Hello world", st.Detail.MOTD)
	require.NotNil(t, st.Detail.Players)
	assert.Equal(t, 3, *st.Detail.Players)
	require.NotNil(t, st.Detail.MaxPlayers)
	assert.Equal(t, 20, *st.Detail.MaxPlayers)
	assert.Empty(t, st.Detail.Err)
	assert.Positive(t, st.Detail.Latency)
	assert.False(t, st.At.IsZero())
}

func TestJavaProberConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port := listenerAddr(t, ln.Addr())
	require.NoError(t, ln.Close()) // free the port so the dial is refused

	p := &JavaProber{Host: host, Port: port, Timeout: 2 * time.Second}

	st := p.Probe(context.Background())
	assert.False(t, st.Reachable)
	assert.Equal(t, "java", st.Detail.Edition)
	assert.NotEmpty(t, st.Detail.Err)
}

func TestJavaProberOpenPortCountsAsReachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		// Accept and hang up without answering: the status exchange fails
		// but the port is demonstrably open.
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}()

	host, port := listenerAddr(t, ln.Addr())
	p := &JavaProber{Host: host, Port: port, Timeout: 2 * time.Second}

	st := p.Probe(context.Background())
	assert.True(t, st.Reachable)
	assert.NotEmpty(t, st.Detail.Err)
	assert.Empty(t, st.Detail.Version)
}

func TestJavaProberTimeoutOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	hold := make(chan struct{})
	defer close(hold)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		<-hold // keep the connection open without answering
	}()

	host, port := listenerAddr(t, ln.Addr())
	p := &JavaProber{Host: host, Port: port, Timeout: 300 * time.Millisecond}

	start := time.Now()
	st := p.Probe(context.Background())
	assert.Less(t, time.Since(start), 5*time.Second, "the probe must respect its timeout")
	assert.True(t, st.Reachable, "the connection was accepted")
	assert.Contains(t, st.Detail.Err, "status query failed")
}

func TestVarIntNegativeRoundTrip(t *testing.T) {
	// The handshake sends protocol version -1, which encodes to 5 bytes.
	var buf bytes.Buffer
	writeVarInt(&buf, -1)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, buf.Bytes())

	v, err := readVarInt(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)
}

func TestReadVarIntRejectsOverlongEncoding(t *testing.T) {
	_, err := readVarInt(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}))
	assert.Error(t, err)
}

func TestMOTDTextForms(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"bare string", `"A Minecraft Server"`, "A Minecraft Server"},
		{"component", `{"text":"Hello"}`, "Hello"},
		{"nested extras", `{"text":"a","extra":[{"text":"b","extra":[{"text":"c"}]}]}`, "abc"},
		{"absent", ``, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, motdText(json.RawMessage(tc.raw)))
		})
	}
}
