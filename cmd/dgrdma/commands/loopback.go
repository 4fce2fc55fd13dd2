package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-dgrdma/control"
	"github.com/momentics/hioload-dgrdma/dgrdma"
	"github.com/momentics/hioload-dgrdma/facade"
	"github.com/momentics/hioload-dgrdma/fake"
)

const loopbackMTU = 1500

func newLoopbackCmd(g *globalFlags) *cobra.Command {
	var (
		size    uint32
		count   uint32
		loss    float64
		seed    uint64
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "loopback",
		Short: "Run two endpoints over an in-memory segment",
		Long: `Runs two endpoints on an in-memory Ethernet segment that drops frames
with probability --loss, and sends --count transfers in each direction
concurrently, verifying every byte. Use --retransmit with --loss.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config(cmd)
			if err != nil {
				return err
			}
			if loss > 0 && !cfg.Retransmit {
				log.Warn().Float64("loss", loss).Msg("lossy segment without retransmission will lose transfers")
			}
			mtu := loopbackMTU
			if cfg.MTU > 0 {
				mtu = cfg.MTU
			}
			medium := fake.NewMedium(mtu)
			medium.SetLossRate(loss, seed)

			a, err := loopbackTransport(medium, cfg, 0)
			if err != nil {
				return err
			}
			defer a.Close()
			b, err := loopbackTransport(medium, cfg, 1)
			if err != nil {
				return err
			}
			defer b.Close()

			ab, err := a.Connect(b.Address())
			if err != nil {
				return err
			}
			ba, err := b.Connect(a.Address())
			if err != nil {
				return err
			}

			start := time.Now()
			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.Go(func() error { return pump(ctx, ab, a, b, count, size, timeout) })
			eg.Go(func() error { return pump(ctx, ba, b, a, count, size, timeout) })
			if err := eg.Wait(); err != nil {
				return err
			}

			summary := map[string]any{
				"transfers": 2 * count,
				"bytes":     size,
				"elapsed":   time.Since(start).String(),
				"delivered": medium.Delivered(),
				"dropped":   medium.Dropped(),
				"a_to_b":    ab.Stats(),
				"b_to_a":    ba.Stats(),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().Uint32Var(&size, "size", 4096, "bytes per transfer")
	cmd.Flags().Uint32Var(&count, "count", 100, "transfers per direction")
	cmd.Flags().Float64Var(&loss, "loss", 0, "frame loss probability")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "loss generator seed")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "time to wait for each transfer")
	return cmd
}

func loopbackTransport(m *fake.Medium, base *control.Config, mailbox uint16) (*facade.Transport, error) {
	cfg := *base
	cfg.Mailbox = mailbox
	mac := net.HardwareAddr{0x02, 0x00, 0x5e, 0x00, 0x00, byte(mailbox + 1)}
	return facade.NewWithSocket(&cfg, m.Attach("loop0", mac), nil)
}

// pump sends count transfers from src to dst and verifies each on arrival.
func pump(ctx context.Context, x *dgrdma.XferServices, src, dst *facade.Transport, count, size uint32, timeout time.Duration) error {
	local := layout{size: src.Arena().Size()}
	remote := layout{size: dst.Arena().Size()}
	req := x.CreateRequest()
	for seq := uint32(1); seq <= count; seq++ {
		if err := post(req, src.Arena(), local, remote, seq, size); err != nil {
			return err
		}
		tctx, cancel := context.WithTimeout(ctx, timeout)
		err := waitStatus(tctx, req)
		if err == nil {
			err = waitDoorbell(tctx, dst.Arena(), remote, doorbellValue(seq, size))
		}
		cancel()
		if err != nil {
			return fmt.Errorf("%s seq %d: %w", x, seq, err)
		}
		if err := verify(dst.Arena(), remote, seq, size); err != nil {
			return err
		}
	}
	return nil
}
