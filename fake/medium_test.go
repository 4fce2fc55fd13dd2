package fake_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-dgrdma/api"
	"github.com/momentics/hioload-dgrdma/fake"
)

var (
	macA = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x0a}
	macB = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x0b}
	macC = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x0c}
)

func TestMediumDeliversToAddressee(t *testing.T) {
	m := fake.NewMedium(1500)
	a := m.Attach("eth0", macA)
	b := m.Attach("eth0", macB)
	c := m.Attach("eth0", macC)
	defer a.Close()
	defer b.Close()
	defer c.Close()

	require.NoError(t, a.Send(macB, [][]byte{{1, 2}, {3}}))

	buf := make([]byte, 1500)
	n, src, err := b.Receive(buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, buf[:n])
	assert.Equal(t, macA, src)

	_, _, err = c.Receive(buf, 20*time.Millisecond)
	assert.ErrorIs(t, err, api.ErrTimeout, "frames for other hosts are filtered")
}

func TestMediumDropAndDuplicate(t *testing.T) {
	m := fake.NewMedium(1500)
	a := m.Attach("eth0", macA)
	b := m.Attach("eth0", macB)
	defer a.Close()
	defer b.Close()

	m.SetDropFilter(func(_, _ net.HardwareAddr, frame []byte) bool { return frame[0] == 0xdd })
	m.SetDuplicateFilter(func(_, _ net.HardwareAddr, frame []byte) bool { return frame[0] == 0x22 })

	require.NoError(t, a.Send(macB, [][]byte{{0xdd}}))
	require.NoError(t, a.Send(macB, [][]byte{{0x22}}))

	buf := make([]byte, 64)
	for i := 0; i < 2; i++ {
		n, _, err := b.Receive(buf, time.Second)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x22}, buf[:n])
	}
	_, _, err := b.Receive(buf, 20*time.Millisecond)
	assert.ErrorIs(t, err, api.ErrTimeout)
	assert.Equal(t, uint64(1), m.Dropped())
}

func TestMediumRejectsOversizedFrame(t *testing.T) {
	m := fake.NewMedium(16)
	a := m.Attach("eth0", macA)
	err := a.Send(macB, [][]byte{make([]byte, 17)})
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestSocketCloseAndErrors(t *testing.T) {
	m := fake.NewMedium(1500)
	a := m.Attach("eth1", macA)
	assert.Equal(t, "eth1", a.Interface())
	assert.Equal(t, 1500, a.MTU())
	assert.Equal(t, macA, a.HardwareAddr())

	a.SetSendError(api.ErrNotSupported)
	assert.ErrorIs(t, a.Send(macB, nil), api.ErrNotSupported)
	a.SetSendError(nil)

	a.RecordSent(true)
	require.NoError(t, a.Send(macB, [][]byte{{7}, {8}}))
	assert.Equal(t, [][]byte{{7, 8}}, a.GetSentData())
	a.ClearSentData()
	assert.Empty(t, a.GetSentData())

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Send(macB, nil), api.ErrTransportClosed)
	_, _, err := a.Receive(make([]byte, 8), time.Second)
	assert.ErrorIs(t, err, api.ErrTransportClosed)
}

func TestInject(t *testing.T) {
	m := fake.NewMedium(1500)
	b := m.Attach("eth0", macB)
	require.NoError(t, b.Inject(macC, []byte{9, 9}))
	buf := make([]byte, 8)
	n, src, err := b.Receive(buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, macC, src)
}

func TestRegionRecordsFlags(t *testing.T) {
	r := fake.NewRegion(64)
	w, err := r.Map(0, 8)
	require.NoError(t, err)
	copy(w, "abcdefgh")
	require.NoError(t, r.StoreFlag(16, 5))
	assert.Equal(t, []fake.FlagStore{{Offset: 16, Value: 5, Writes: 1}}, r.Flags())

	r.FailMapAt(8, api.ErrOutOfRange)
	_, err = r.Map(8, 4)
	assert.ErrorIs(t, err, api.ErrOutOfRange)
	r.ClearFailure()
	_, err = r.Map(8, 4)
	assert.NoError(t, err)
	assert.Equal(t, 2, r.Maps())
}
