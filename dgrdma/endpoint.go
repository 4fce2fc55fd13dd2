// File: dgrdma/endpoint.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Local endpoint: socket, arena, receiver goroutine and the registry of
// connections keyed by remote mailbox.

package dgrdma

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/momentics/hioload-dgrdma/api"
	"github.com/momentics/hioload-dgrdma/control"
	"github.com/momentics/hioload-dgrdma/protocol"
)

// Options configures a local endpoint.
type Options struct {
	// Socket carries frames; the endpoint takes ownership and closes it.
	Socket api.Socket
	// Region receives remote writes; its Size is advertised in the address.
	Region api.Region
	// Config supplies timeouts and the local mailbox. Nil uses defaults.
	Config *control.Config
	// Metrics collects transport counters. Nil uses a private registry.
	Metrics *control.Metrics
	// Logger overrides the global zerolog logger.
	Logger *zerolog.Logger
}

// Endpoint is the local party on the medium.
type Endpoint struct {
	addr    Address
	sock    api.Socket
	region  api.Region
	cfg     *control.Config
	metrics *control.Metrics
	probes  *control.DebugProbes
	log     zerolog.Logger

	mu    sync.RWMutex
	xfers map[uint16]*XferServices

	running atomic.Bool
	done    chan struct{}
}

var _ api.Control = (*Endpoint)(nil)
var _ api.Debug = (*Endpoint)(nil)

// NewEndpoint creates the local endpoint and starts its receiver.
func NewEndpoint(opts Options) (*Endpoint, error) {
	if opts.Socket == nil || opts.Region == nil {
		return nil, api.SetupError("endpoint needs a socket and a region", api.ErrInvalidArgument)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mtu := opts.Socket.MTU(); mtu < MinMTU {
		return nil, api.SetupError(fmt.Sprintf("MTU %d below minimum %d", mtu, MinMTU), api.ErrInvalidArgument)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = control.NewMetrics(nil)
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	addr := Address{
		Interface:    opts.Socket.Interface(),
		HardwareAddr: opts.Socket.HardwareAddr(),
		Size:         opts.Region.Size(),
		Mailbox:      cfg.Mailbox,
		MaxCount:     cfg.MaxMailboxes,
	}
	if err := addr.Validate(); err != nil {
		return nil, api.SetupError("local endpoint", err)
	}

	e := &Endpoint{
		addr:    addr,
		sock:    opts.Socket,
		region:  opts.Region,
		cfg:     cfg,
		metrics: metrics,
		probes:  control.NewDebugProbes(),
		log:     logger.With().Uint16("mailbox", addr.Mailbox).Logger(),
		xfers:   make(map[uint16]*XferServices),
		done:    make(chan struct{}),
	}
	e.probes.RegisterProbe("endpoint", func() any {
		return map[string]any{
			"address":     e.addr.String(),
			"mtu":         e.sock.MTU(),
			"connections": e.connectionCount(),
		}
	})
	e.running.Store(true)
	go e.receive()
	e.log.Info().Str("address", addr.String()).Int("mtu", opts.Socket.MTU()).Msg("endpoint started")
	return e, nil
}

// Address returns the local endpoint address.
func (e *Endpoint) Address() Address { return e.addr }

// Region returns the local arena.
func (e *Endpoint) Region() api.Region { return e.region }

// Connect creates the connection to remote and starts its transmit engine.
func (e *Endpoint) Connect(remote Address) (*XferServices, error) {
	if !e.running.Load() {
		return nil, api.ErrTransportClosed
	}
	if err := remote.Validate(); err != nil {
		return nil, api.SetupError("remote endpoint", err)
	}
	if remote.Interface != e.addr.Interface {
		return nil, api.SetupError("remote endpoint is on another interface", api.ErrInterfaceMismatch).
			WithContext("local", e.addr.Interface).
			WithContext("remote", remote.Interface)
	}
	if remote.Mailbox == e.addr.Mailbox || remote.Mailbox >= e.addr.MaxCount {
		return nil, api.SetupError("remote mailbox", api.ErrInvalidArgument).
			WithContext("mailbox", remote.Mailbox)
	}
	x := newXferServices(e, remote)
	if err := e.addXfer(remote.Mailbox, x); err != nil {
		return nil, err
	}
	x.engine.start()
	peer := "xfer/" + strconv.Itoa(int(remote.Mailbox))
	e.probes.RegisterProbe(peer, func() any { return x.Stats() })
	x.log.Info().Str("remote", remote.String()).Msg("connection established")
	return x, nil
}

// ConnectString parses an endpoint string and connects to it.
func (e *Endpoint) ConnectString(remote string) (*XferServices, error) {
	addr, err := ParseAddress(remote)
	if err != nil {
		return nil, err
	}
	return e.Connect(addr)
}

func (e *Endpoint) addXfer(mailbox uint16, x *XferServices) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.xfers[mailbox]; ok {
		return fmt.Errorf("connection to mailbox %d: %w", mailbox, api.ErrAlreadyExists)
	}
	e.xfers[mailbox] = x
	return nil
}

// delXfer removes x if it is still the registered connection for mailbox.
func (e *Endpoint) delXfer(mailbox uint16, x *XferServices) {
	e.mu.Lock()
	if cur, ok := e.xfers[mailbox]; ok && cur == x {
		delete(e.xfers, mailbox)
	}
	e.mu.Unlock()
	e.probes.UnregisterProbe("xfer/" + strconv.Itoa(int(mailbox)))
}

func (e *Endpoint) getXfer(mailbox uint16) *XferServices {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.xfers[mailbox]
}

// Connection looks up the connection to the peer at mailbox.
func (e *Endpoint) Connection(mailbox uint16) (*XferServices, error) {
	if x := e.getXfer(mailbox); x != nil {
		return x, nil
	}
	return nil, fmt.Errorf("connection to mailbox %d: %w", mailbox, api.ErrNotFound)
}

// Connections returns the registered connections.
func (e *Endpoint) Connections() []*XferServices {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*XferServices, 0, len(e.xfers))
	for _, x := range e.xfers {
		out = append(out, x)
	}
	return out
}

func (e *Endpoint) connectionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.xfers)
}

// receive is the receiver goroutine.
func (e *Endpoint) receive() {
	defer close(e.done)
	buf := make([]byte, e.sock.MTU())
	timeout := e.cfg.ReceiveTimeout()
	for e.running.Load() {
		n, src, err := e.sock.Receive(buf, timeout)
		switch {
		case err == nil:
		case errors.Is(err, api.ErrTimeout):
			continue
		case errors.Is(err, api.ErrTransportClosed):
			return
		default:
			e.log.Warn().Err(err).Msg("receive failed")
			continue
		}
		if n < protocol.FrameHeaderLength {
			e.log.Debug().Int("len", n).Stringer("src", src).Msg("runt frame dropped")
			continue
		}
		h := protocol.DecodeFrameHeader(buf)
		if h.DstID != e.addr.Mailbox {
			continue
		}
		x := e.getXfer(h.SrcID)
		if x == nil {
			e.log.Debug().Uint16("src_mailbox", h.SrcID).Stringer("src", src).Msg("frame for unknown connection dropped")
			continue
		}
		x.processFrame(h, buf[:n])
	}
}

// Close stops the receiver, closes every connection and the socket.
func (e *Endpoint) Close() error {
	if !e.running.CompareAndSwap(true, false) {
		return nil
	}
	for _, x := range e.Connections() {
		x.Close()
	}
	err := e.sock.Close()
	<-e.done
	e.log.Info().Msg("endpoint stopped")
	return err
}

// Stats implements api.Control.
func (e *Endpoint) Stats() map[string]any {
	e.mu.RLock()
	xfers := make(map[string]*XferServices, len(e.xfers))
	for mb, x := range e.xfers {
		xfers[strconv.Itoa(int(mb))] = x
	}
	e.mu.RUnlock()
	out := make(map[string]any, len(xfers))
	for k, x := range xfers {
		out[k] = x.Stats()
	}
	return out
}

// RegisterDebugProbe implements api.Control.
func (e *Endpoint) RegisterDebugProbe(name string, fn func() any) {
	e.probes.RegisterProbe(name, fn)
}

// RegisterProbe implements api.Debug.
func (e *Endpoint) RegisterProbe(name string, fn func() any) {
	e.probes.RegisterProbe(name, fn)
}

// DumpState implements api.Debug.
func (e *Endpoint) DumpState() map[string]any {
	return e.probes.DumpState()
}
