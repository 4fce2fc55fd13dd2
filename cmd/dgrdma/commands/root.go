package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-dgrdma/control"
)

// globalFlags are shared by every sub-command.
type globalFlags struct {
	configPath   string
	debug        bool
	iface        string
	mailbox      uint16
	maxMailboxes uint16
	retransmit   bool
	ackTimeoutMS int
	coalesceUS   int
	mtu          int
}

// NewRootCmd creates the dgrdma command tree.
func NewRootCmd(version, commit string) *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "dgrdma",
		Short: "Reliable datagram RDMA over raw Ethernet",
		Long: `dgrdma moves memory between hosts on one Ethernet segment using
raw frames (EtherType 0xF040), with ACKs, retransmission and coalescing.

Configuration is read from OCPI_* environment variables, an optional
YAML file and the flags below:
  OCPI_ETHER_INTERFACE   local interface for the raw socket
  OCPI_COALESCE_WAIT_US  coalesce delay for partially filled frames
  OCPI_ACK_TIMEOUT_MS    time before a frame counts as lost
  OCPI_RETRANSMIT        resend lost frames`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(g.debug)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "path to configuration file")
	pf.BoolVar(&g.debug, "debug", false, "enable debug logging")
	pf.StringVarP(&g.iface, "iface", "i", "", "network interface (overrides OCPI_ETHER_INTERFACE)")
	pf.Uint16VarP(&g.mailbox, "mailbox", "m", 0, "local mailbox")
	pf.Uint16Var(&g.maxMailboxes, "max-mailboxes", 16, "mailboxes sharing the medium")
	pf.BoolVar(&g.retransmit, "retransmit", false, "resend unacknowledged frames")
	pf.IntVar(&g.ackTimeoutMS, "ack-timeout-ms", 500, "ACK timeout in milliseconds")
	pf.IntVar(&g.coalesceUS, "coalesce-wait-us", 0, "coalesce delay in microseconds")
	pf.IntVar(&g.mtu, "mtu", 0, "frame size override (0 uses the interface MTU)")

	rootCmd.AddCommand(newListenCmd(g))
	rootCmd.AddCommand(newSendCmd(g))
	rootCmd.AddCommand(newLoopbackCmd(g))
	rootCmd.AddCommand(newInterfacesCmd(g))
	return rootCmd
}

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// config loads control.Config and applies flags given on the command line.
func (g *globalFlags) config(cmd *cobra.Command) (*control.Config, error) {
	cfg, err := control.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("iface") {
		cfg.Interface = g.iface
	}
	if flags.Changed("mailbox") {
		cfg.Mailbox = g.mailbox
	}
	if flags.Changed("max-mailboxes") {
		cfg.MaxMailboxes = g.maxMailboxes
	}
	if flags.Changed("retransmit") {
		cfg.Retransmit = g.retransmit
	}
	if flags.Changed("ack-timeout-ms") {
		cfg.AckTimeoutMS = g.ackTimeoutMS
	}
	if flags.Changed("coalesce-wait-us") {
		cfg.CoalesceWaitUS = g.coalesceUS
	}
	if flags.Changed("mtu") {
		cfg.MTU = g.mtu
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !g.debug {
		applyLogLevel(cfg.LogLevel)
	}
	return cfg, nil
}

// applyLogLevel sets the global level; unknown names keep the current one.
func applyLogLevel(name string) {
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		log.Warn().Str("log_level", name).Msg("unknown log level ignored")
		return
	}
	zerolog.SetGlobalLevel(level)
}
