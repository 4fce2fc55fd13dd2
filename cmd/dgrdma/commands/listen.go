package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-dgrdma/api"
	"github.com/momentics/hioload-dgrdma/control"
	"github.com/momentics/hioload-dgrdma/facade"
)

func newListenCmd(g *globalFlags) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "listen [remote-endpoint...]",
		Short: "Accept transfers from the given peers",
		Long: `Opens the local endpoint, connects to every listed peer and reports
each transfer whose doorbell lands in the local arena. Frames from peers
that are not listed are dropped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config(cmd)
			if err != nil {
				return err
			}
			reg := prometheus.NewRegistry()
			tr, err := facade.New(cfg, reg)
			if err != nil {
				return err
			}
			defer tr.Close()
			fmt.Fprintln(cmd.OutOrStdout(), tr.Address())

			for _, remote := range args {
				if _, err := tr.Connect(remote); err != nil {
					return fmt.Errorf("connect %s: %w", remote, err)
				}
			}

			if g.configPath != "" && !g.debug {
				control.RegisterReloadHook(func(c *control.Config) { applyLogLevel(c.LogLevel) })
				if err := control.Watch(g.configPath); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return watchDoorbell(ctx, tr.Arena(), layout{size: tr.Arena().Size()})
			})
			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				eg.Go(func() error {
					if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				eg.Go(func() error {
					<-ctx.Done()
					return srv.Shutdown(context.Background())
				})
			}
			return eg.Wait()
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

// watchDoorbell logs every new doorbell value until ctx ends.
func watchDoorbell(ctx context.Context, region api.Region, l layout) error {
	last, err := region.LoadFlag(l.doorbell())
	if err != nil {
		return err
	}
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
		v, err := region.LoadFlag(l.doorbell())
		if err != nil {
			return err
		}
		if v == last {
			continue
		}
		last = v
		seq, size := v>>22, doorbellLength(v)
		if err := verify(region, l, seq, size); err != nil {
			log.Warn().Err(err).Uint32("seq", seq).Msg("transfer corrupted")
			continue
		}
		log.Info().Uint32("seq", seq).Uint32("bytes", size).Msg("transfer received")
	}
}
