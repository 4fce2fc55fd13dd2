// File: facade/dgrdma.go
// Unified facade layer for the datagram RDMA transport.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transport aggregates the raw Ethernet socket, the local shared memory arena
// and the endpoint behind one value built from control.Config.

package facade

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-dgrdma/api"
	"github.com/momentics/hioload-dgrdma/control"
	"github.com/momentics/hioload-dgrdma/dgrdma"
	"github.com/momentics/hioload-dgrdma/memory"
	"github.com/momentics/hioload-dgrdma/transport/ether"
)

// Transport is the facade type.
type Transport struct {
	cfg      *control.Config
	arena    *memory.Arena
	endpoint *dgrdma.Endpoint
	metrics  *control.Metrics
}

// New opens a raw socket on cfg.Interface and starts the local endpoint.
// Metrics register on reg; nil keeps them private.
func New(cfg *control.Config, reg prometheus.Registerer) (*Transport, error) {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.RequireInterface(); err != nil {
		return nil, err
	}
	sock, err := ether.Open(cfg.Interface, cfg.MTU)
	if err != nil {
		return nil, fmt.Errorf("transport init failure: %w", err)
	}
	t, err := NewWithSocket(cfg, sock, reg)
	if err != nil {
		sock.Close()
		return nil, err
	}
	return t, nil
}

// NewWithSocket starts the local endpoint on an existing socket.
func NewWithSocket(cfg *control.Config, sock api.Socket, reg prometheus.Registerer) (*Transport, error) {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	arena, err := memory.New(cfg.ArenaSize)
	if err != nil {
		return nil, api.SetupError("arena", err)
	}
	metrics := control.NewMetrics(reg)
	logger := log.With().Str("component", "dgrdma").Str("iface", sock.Interface()).Logger()
	ep, err := dgrdma.NewEndpoint(dgrdma.Options{
		Socket:  sock,
		Region:  arena,
		Config:  cfg,
		Metrics: metrics,
		Logger:  &logger,
	})
	if err != nil {
		arena.Close()
		return nil, err
	}
	control.RegisterPlatformProbes(ep)
	return &Transport{cfg: cfg, arena: arena, endpoint: ep, metrics: metrics}, nil
}

// Endpoint returns the local endpoint.
func (t *Transport) Endpoint() *dgrdma.Endpoint { return t.endpoint }

// Arena returns the local shared memory arena.
func (t *Transport) Arena() *memory.Arena { return t.arena }

// Address returns the local endpoint string.
func (t *Transport) Address() string { return t.endpoint.Address().String() }

// Connect opens a connection to the endpoint string remote.
func (t *Transport) Connect(remote string) (*dgrdma.XferServices, error) {
	return t.endpoint.ConnectString(remote)
}

// Close stops every connection, the endpoint and unmaps the arena.
func (t *Transport) Close() error {
	var g errgroup.Group
	for _, x := range t.endpoint.Connections() {
		g.Go(x.Close)
	}
	errs := []error{g.Wait(), t.endpoint.Close(), t.arena.Close()}
	return errors.Join(errs...)
}
