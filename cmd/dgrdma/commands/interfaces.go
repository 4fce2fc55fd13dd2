package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-dgrdma/dgrdma"
	"github.com/momentics/hioload-dgrdma/transport/ether"
)

func newInterfacesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "interfaces",
		Short: "List Ethernet interfaces and the endpoint string each would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config(cmd)
			if err != nil {
				return err
			}
			links, err := ether.Discover()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMTU\tUP\tENDPOINT")
			for _, l := range links {
				addr := dgrdma.Address{
					Interface:    l.Name,
					HardwareAddr: l.HardwareAddr,
					Size:         cfg.ArenaSize,
					Mailbox:      cfg.Mailbox,
					MaxCount:     cfg.MaxMailboxes,
				}
				fmt.Fprintf(w, "%s\t%d\t%t\t%s\n", l.Name, l.MTU, l.Up, addr)
			}
			return w.Flush()
		},
	}
}
