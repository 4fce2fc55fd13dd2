// File: dgrdma/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// XferServices pairs the local endpoint with one remote mailbox. State shared
// between the receiver goroutine, the transmit engine and the application is
// guarded by mu; everything else belongs to the engine.

package dgrdma

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-dgrdma/api"
	"github.com/momentics/hioload-dgrdma/control"
	"github.com/momentics/hioload-dgrdma/internal/dedup"
)

// rxTxn tracks a multi-message transaction being received.
type rxTxn struct {
	total     uint16
	remaining uint16
	flagAddr  uint32
	flagValue uint32
}

// XferServices is a connection from the local endpoint to one remote mailbox.
type XferServices struct {
	local   *Endpoint
	remote  Address
	log     zerolog.Logger
	metrics *control.PeerMetrics

	mu          sync.Mutex
	dups        *dedup.Filter
	rxTxns      map[uint32]*rxTxn
	acked       map[uint16]struct{} // ACKs received for in-flight frames
	inflight    map[uint16]struct{} // frames awaiting an ACK
	pendingAcks *queue.Queue        // frame_seq values to acknowledge
	txq         *queue.Queue        // posted transactions
	closed      bool

	nextTxn atomic.Uint32
	engine  *engine
}

func newXferServices(local *Endpoint, remote Address) *XferServices {
	peer := strconv.Itoa(int(remote.Mailbox))
	x := &XferServices{
		local:       local,
		remote:      remote,
		log:         local.log.With().Uint16("peer", remote.Mailbox).Logger(),
		metrics:     local.metrics.ForPeer(peer),
		dups:        dedup.New(local.cfg.DedupWindow),
		rxTxns:      make(map[uint32]*rxTxn),
		acked:       make(map[uint16]struct{}),
		inflight:    make(map[uint16]struct{}),
		pendingAcks: queue.New(),
		txq:         queue.New(),
	}
	x.engine = newEngine(x, engineConfig{
		mtu:          local.sock.MTU(),
		coalesceWait: local.cfg.CoalesceWait(),
		ackTimeout:   local.cfg.AckTimeout(),
		retransmit:   local.cfg.Retransmit,
	})
	return x
}

// Remote returns the address of the peer.
func (x *XferServices) Remote() Address { return x.remote }

// Local returns the owning endpoint.
func (x *XferServices) Local() *Endpoint { return x.local }

// CreateRequest returns an empty transfer request on this connection.
func (x *XferServices) CreateRequest() *XferRequest {
	return &XferRequest{x: x}
}

// post queues t for the transmit engine.
func (x *XferServices) post(t *transaction) error {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return api.ErrTransportClosed
	}
	t.id = x.nextTxn.Add(1)
	x.txq.Add(t)
	x.mu.Unlock()

	x.metrics.TransactionsPosted.Inc()
	x.engine.notify(evNewTransaction)
	return nil
}

// Close stops the transmit engine and unregisters the connection.
// Transactions still queued never complete.
func (x *XferServices) Close() error {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return nil
	}
	x.closed = true
	x.mu.Unlock()

	x.engine.stop()
	x.local.delXfer(x.remote.Mailbox, x)
	x.log.Debug().Msg("connection closed")
	return nil
}

// Stats returns a snapshot of the connection state.
func (x *XferServices) Stats() map[string]any {
	x.mu.Lock()
	defer x.mu.Unlock()
	return map[string]any{
		"remote":           x.remote.String(),
		"queued_txns":      x.txq.Length(),
		"inflight_frames":  len(x.inflight),
		"acks_received":    len(x.acked),
		"acks_pending":     x.pendingAcks.Length(),
		"rx_transactions":  len(x.rxTxns),
		"dedup_window":     x.dups.Window(),
		"dedup_remembered": x.dups.Len(),
	}
}

// reportAcks records ACKs piggybacked on an inbound frame. ACKs for frames
// no longer in flight are stale and discarded. Caller holds mu.
func (x *XferServices) reportAcks(start uint16, count uint8) {
	fresh := false
	for i := uint16(0); i < uint16(count); i++ {
		seq := start + i
		if _, ok := x.inflight[seq]; ok {
			x.acked[seq] = struct{}{}
			fresh = true
		}
	}
	if fresh {
		x.engine.notify(evAckReceived)
	}
}

// takeAckRun removes the longest run of consecutive sequence numbers from the
// head of the pending ACK queue.
func (x *XferServices) takeAckRun(max int) (start uint16, count uint8) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.pendingAcks.Length() == 0 {
		return 0, 0
	}
	start = x.pendingAcks.Remove().(uint16)
	count = 1
	for int(count) < max && x.pendingAcks.Length() > 0 && x.pendingAcks.Peek().(uint16) == start+uint16(count) {
		x.pendingAcks.Remove()
		count++
	}
	return start, count
}

func (x *XferServices) String() string {
	return fmt.Sprintf("xfer %d->%d", x.local.addr.Mailbox, x.remote.Mailbox)
}
