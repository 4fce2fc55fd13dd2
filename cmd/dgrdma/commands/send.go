package commands

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-dgrdma/facade"
)

func newSendCmd(g *globalFlags) *cobra.Command {
	var (
		size    uint32
		count   uint32
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send <remote-endpoint>",
		Short: "Send patterned transfers to a listening peer",
		Long: `Sends --count transfers of --size bytes to the remote endpoint, each
finished by a doorbell that encodes the length. The peer must be running
"dgrdma listen" with this endpoint among its peers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config(cmd)
			if err != nil {
				return err
			}
			tr, err := facade.New(cfg, nil)
			if err != nil {
				return err
			}
			defer tr.Close()

			x, err := tr.Connect(args[0])
			if err != nil {
				return err
			}
			local := layout{size: tr.Arena().Size()}
			remote := layout{size: x.Remote().Size}
			req := x.CreateRequest()

			start := time.Now()
			for seq := uint32(1); seq <= count; seq++ {
				if err := post(req, tr.Arena(), local, remote, seq, size); err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				err := waitStatus(ctx, req)
				cancel()
				if err != nil {
					return err
				}
				log.Debug().Uint32("seq", seq).Msg("transfer complete")
			}
			log.Info().
				Uint32("transfers", count).
				Uint32("bytes", size).
				Dur("elapsed", time.Since(start)).
				Msg("send finished")

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(x.Stats())
		},
	}
	cmd.Flags().Uint32Var(&size, "size", 4096, "bytes per transfer")
	cmd.Flags().Uint32Var(&count, "count", 1, "number of transfers")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "time to wait for each transfer")
	return cmd
}
