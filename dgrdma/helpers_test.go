package dgrdma

import (
	"bytes"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-dgrdma/control"
	"github.com/momentics/hioload-dgrdma/fake"
	"github.com/momentics/hioload-dgrdma/protocol"
)

const testMTU = 1500

func testMAC(mailbox uint16) net.HardwareAddr {
	return net.HardwareAddr{0x02, 0, 0, 0, byte(mailbox >> 8), byte(mailbox)}
}

// logBuffer is a goroutine-safe zerolog sink.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *logBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

// count returns the number of warn lines containing msg.
func (l *logBuffer) count(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range strings.Split(l.buf.String(), "\n") {
		if strings.Contains(line, `"level":"warn"`) && strings.Contains(line, msg) {
			n++
		}
	}
	return n
}

type peer struct {
	ep     *Endpoint
	sock   *fake.Socket
	region *fake.Region
	logs   *logBuffer
}

func newPeer(t *testing.T, m *fake.Medium, mailbox uint16, tune func(*control.Config)) *peer {
	t.Helper()
	cfg := control.DefaultConfig()
	cfg.Mailbox = mailbox
	cfg.MaxMailboxes = 4
	cfg.AckTimeoutMS = 20
	cfg.ReceiveTimeoutMS = 5
	cfg.ArenaSize = 1 << 16
	if tune != nil {
		tune(cfg)
	}
	logs := &logBuffer{}
	logger := zerolog.New(logs).Level(zerolog.DebugLevel)
	p := &peer{
		sock:   m.Attach("eth0", testMAC(mailbox)),
		region: fake.NewRegion(cfg.ArenaSize),
		logs:   logs,
	}
	ep, err := NewEndpoint(Options{Socket: p.sock, Region: p.region, Config: cfg, Logger: &logger})
	require.NoError(t, err)
	p.ep = ep
	t.Cleanup(func() { ep.Close() })
	return p
}

// connectPair connects a and b both ways and returns a's connection to b.
func connectPair(t *testing.T, a, b *peer) *XferServices {
	t.Helper()
	ab, err := a.ep.Connect(b.ep.Address())
	require.NoError(t, err)
	_, err = b.ep.Connect(a.ep.Address())
	require.NoError(t, err)
	return ab
}

// detached builds a connection whose engine is driven by the test.
func detached(t *testing.T, tune func(*control.Config)) (*XferServices, *peer) {
	t.Helper()
	m := fake.NewMedium(testMTU)
	p := newPeer(t, m, 0, tune)
	p.sock.RecordSent(true)
	remote := Address{
		Interface:    "eth0",
		HardwareAddr: testMAC(1),
		Size:         p.region.Size(),
		Mailbox:      1,
		MaxCount:     4,
	}
	x := newXferServices(p.ep, remote)
	return x, p
}

type sentFrame struct {
	hdr  protocol.FrameHeader
	msgs []protocol.MsgHeader
	data [][]byte
}

func parseFrame(t *testing.T, raw []byte) sentFrame {
	t.Helper()
	require.GreaterOrEqual(t, len(raw), protocol.FrameHeaderLength)
	f := sentFrame{hdr: protocol.DecodeFrameHeader(raw)}
	if !f.hdr.HasMessages() {
		require.Len(t, raw, protocol.FrameHeaderLength)
		return f
	}
	off := protocol.FrameHeaderLength
	for {
		off = protocol.Align(off)
		require.LessOrEqual(t, off+protocol.MsgHeaderLength, len(raw))
		m := protocol.DecodeMsgHeader(raw[off:])
		off += protocol.MsgHeaderLength
		require.LessOrEqual(t, off+int(m.DataLen), len(raw))
		f.msgs = append(f.msgs, m)
		f.data = append(f.data, raw[off:off+int(m.DataLen)])
		off += int(m.DataLen)
		if m.HasNextMsg == 0 {
			break
		}
	}
	require.Equal(t, off, len(raw), "no trailing bytes")
	return f
}

func buildFrame(h protocol.FrameHeader, msgs []protocol.MsgHeader, payloads [][]byte) []byte {
	buf := make([]byte, protocol.FrameHeaderLength)
	h.Encode(buf)
	for i := range msgs {
		for len(buf)%protocol.MessageAlignment != 0 {
			buf = append(buf, 0)
		}
		var mh [protocol.MsgHeaderLength]byte
		msgs[i].Encode(mh[:])
		buf = append(buf, mh[:]...)
		buf = append(buf, payloads[i]...)
	}
	return buf
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, time.Millisecond, msg)
}
