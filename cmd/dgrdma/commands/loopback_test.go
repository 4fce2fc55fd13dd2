package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd("test", "none")
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	return &out, root.Execute()
}

func TestLoopbackLossy(t *testing.T) {
	out, err := runRoot(t, "loopback",
		"--count", "5", "--size", "3000", "--loss", "0.1", "--seed", "7",
		"--retransmit", "--ack-timeout-ms", "10")
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.EqualValues(t, 10, summary["transfers"])
	assert.EqualValues(t, 3000, summary["bytes"])
	assert.Greater(t, summary["delivered"].(float64), float64(0))
}

func TestLoopbackCoalesced(t *testing.T) {
	_, err := runRoot(t, "loopback", "--count", "3", "--size", "100", "--coalesce-wait-us", "200")
	require.NoError(t, err)
}

func TestLoopbackRejectsOversize(t *testing.T) {
	_, err := runRoot(t, "loopback", "--count", "1", "--size", "4000000")
	require.Error(t, err)
}

func TestLayout(t *testing.T) {
	l := layout{size: 1 << 16}
	assert.EqualValues(t, 0, l.outbound())
	assert.EqualValues(t, 1<<15, l.inbound())
	assert.EqualValues(t, 1<<16-4, l.doorbell())
	assert.Less(t, l.flagSrc()+4, l.doorbell()+1)

	v := doorbellValue(3, 3000)
	assert.EqualValues(t, 3000, doorbellLength(v))
	assert.EqualValues(t, 3, v>>22)
	assert.EqualValues(t, 1, v&1)
}

func TestConfigOverrides(t *testing.T) {
	g := &globalFlags{}
	cmd := &cobra.Command{Use: "probe"}
	cmd.Flags().Uint16Var(&g.mailbox, "mailbox", 0, "")
	cmd.Flags().BoolVar(&g.retransmit, "retransmit", false, "")
	cmd.Flags().IntVar(&g.mtu, "mtu", 0, "")
	require.NoError(t, cmd.ParseFlags([]string{"--mailbox", "3", "--retransmit", "--mtu", "9000"}))

	cfg, err := g.config(cmd)
	require.NoError(t, err)
	assert.EqualValues(t, 3, cfg.Mailbox)
	assert.True(t, cfg.Retransmit)
	assert.Equal(t, 9000, cfg.MTU)

	require.NoError(t, cmd.ParseFlags([]string{"--mailbox", "99"}))
	_, err = g.config(cmd)
	assert.Error(t, err)
}

func TestApplyLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	applyLogLevel("warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	applyLogLevel("bogus")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestInterfacesListsHeader(t *testing.T) {
	out, err := runRoot(t, "interfaces")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ENDPOINT")
}
