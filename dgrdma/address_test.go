package dgrdma

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-dgrdma/api"
)

func TestAddressRoundTrip(t *testing.T) {
	s := "ocpi-ether-rdma:eth0/02:00:00:00:00:0a;1048576.3.16"
	a, err := ParseAddress(s)
	require.NoError(t, err)
	assert.Equal(t, Address{
		Interface:    "eth0",
		HardwareAddr: net.HardwareAddr{0x02, 0, 0, 0, 0, 0x0a},
		Size:         1 << 20,
		Mailbox:      3,
		MaxCount:     16,
	}, a)
	assert.Equal(t, s, a.String())
}

func TestParseAddressErrors(t *testing.T) {
	for _, s := range []string{
		"",
		"ocpi-socket-rdma:eth0/02:00:00:00:00:0a;1.0.2",
		"ocpi-ether-rdma:/02:00:00:00:00:0a;1.0.2",
		"ocpi-ether-rdma:eth0;1.0.2",
		"ocpi-ether-rdma:eth0/zz:00:00:00:00:0a;1.0.2",
		"ocpi-ether-rdma:eth0/02:00:00:00:00:0a;1.0",
		"ocpi-ether-rdma:eth0/02:00:00:00:00:0a;x.0.2",
		"ocpi-ether-rdma:eth0/02:00:00:00:00:0a;1.70000.2",
		"ocpi-ether-rdma:eth0/02:00:00:00:00:0a;1.2.2",
	} {
		_, err := ParseAddress(s)
		assert.ErrorIs(t, err, api.ErrInvalidArgument, s)
	}
}
