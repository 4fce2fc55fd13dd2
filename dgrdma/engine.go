// File: dgrdma/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transmit engine: one goroutine per connection, run as an event loop.
// Wakeup sources are posted transactions, received ACKs, ACKs to send, the
// coalesce deadline of the open frame and the ACK deadline of the oldest
// frame in flight. Frames and messages come from free lists private to the
// engine goroutine.

package dgrdma

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-dgrdma/internal/concurrency"
	"github.com/momentics/hioload-dgrdma/pool"
	"github.com/momentics/hioload-dgrdma/protocol"
)

// event is a set of engine wakeup reasons.
type event uint32

const (
	evNewTransaction event = 1 << iota
	evAckReceived
	evAckPending
	evCoalesceTimeout
	evRetransmitTimeout
	evShutdown
)

var eventNames = [...]string{"new-transaction", "ack-received", "ack-pending", "coalesce-timeout", "retransmit-timeout", "shutdown"}

func (ev event) String() string {
	if ev == 0 {
		return "none"
	}
	var names []string
	for i, name := range eventNames {
		if ev&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

// retransmitLogEvery rate-limits the retransmission warning.
const retransmitLogEvery = 10

type engineConfig struct {
	mtu          int
	coalesceWait time.Duration
	ackTimeout   time.Duration
	retransmit   bool
}

type engine struct {
	x    *XferServices
	cfg  engineConfig
	full int

	// owned by the engine goroutine
	frames      *pool.FreeList[outFrame]
	frag        *fragmenter
	open        *outFrame
	retx        *queue.Queue // *outFrame in transmission order
	nextSeq     uint16
	retransmits uint64
	batch       []*transaction
	acked       []*outFrame
	lost        []*outFrame
	resend      []*outFrame

	events   atomic.Uint32
	wake     *concurrency.Signal
	timer    *concurrency.DeadlineTimer
	quit     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

func newEngine(x *XferServices, cfg engineConfig) *engine {
	return &engine{
		x:      x,
		cfg:    cfg,
		full:   fullSpace(cfg.mtu),
		frames: pool.NewFreeList(resetFrame),
		frag:   newFragmenter(),
		retx:   queue.New(),
		wake:   concurrency.NewSignal(),
		timer:  concurrency.NewDeadlineTimer(),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (e *engine) start() {
	if e.started.CompareAndSwap(false, true) {
		go e.run()
	}
}

// stop requests shutdown and waits for the engine goroutine to exit.
func (e *engine) stop() {
	e.stopOnce.Do(func() { close(e.quit) })
	if e.started.Load() {
		<-e.done
	}
}

// notify records ev and wakes the engine. Safe from any goroutine.
func (e *engine) notify(ev event) {
	e.events.Or(uint32(ev))
	e.wake.Notify()
}

func (e *engine) run() {
	defer close(e.done)
	defer e.timer.Stop()
	for {
		ev := e.wait()
		e.x.log.Trace().Stringer("event", ev).Msg("engine wakeup")
		if ev&evShutdown != 0 {
			e.shutdown()
			return
		}
		e.dispatch(ev, time.Now())
	}
}

// wait blocks until shutdown, a notification or the next deadline. Expired
// deadlines are tagged whichever way the engine woke.
func (e *engine) wait() event {
	tc := e.timer.Arm(e.nextDeadline(), time.Now())
	select {
	case <-e.quit:
		return evShutdown
	case <-e.wake.C():
		return event(e.events.Swap(0)) | e.expired(time.Now())
	case now := <-tc:
		return event(e.events.Swap(0)) | e.expired(now)
	}
}

// expired reports the deadlines that have passed at now.
func (e *engine) expired(now time.Time) event {
	var ev event
	if e.open != nil && !now.Before(e.open.coalesce) {
		ev |= evCoalesceTimeout
	}
	if e.retx.Length() > 0 && !now.Before(e.retx.Peek().(*outFrame).deadline) {
		ev |= evRetransmitTimeout
	}
	return ev
}

// nextDeadline is the earlier of the open frame's coalesce deadline and the
// oldest in-flight frame's ACK deadline; zero when neither is pending.
func (e *engine) nextDeadline() time.Time {
	var coalesce, ack time.Time
	if e.open != nil {
		coalesce = e.open.coalesce
	}
	if e.retx.Length() > 0 {
		ack = e.retx.Peek().(*outFrame).deadline
	}
	return concurrency.EarliestDeadline(coalesce, ack)
}

// allEvents runs every phase of a pass.
const allEvents = evNewTransaction | evAckReceived | evAckPending | evCoalesceTimeout | evRetransmitTimeout

// step runs one full pass of the state machine at time now.
func (e *engine) step(now time.Time) { e.dispatch(allEvents, now) }

// dispatch runs the phases the events in ev call for. Deadline phases still
// check now.
func (e *engine) dispatch(ev event, now time.Time) {
	if ev&(evAckReceived|evRetransmitTimeout) != 0 {
		e.processAcks(now)
	}
	if ev&evNewTransaction != 0 {
		e.drain(now)
		ev |= e.expired(now) & evCoalesceTimeout
	}
	if ev&evCoalesceTimeout != 0 && e.open != nil && !now.Before(e.open.coalesce) {
		e.flush(now)
	}
	// a flushed frame carries at most one ACK run; the rest go out alone
	if ev&(evAckPending|evCoalesceTimeout) != 0 {
		e.sendAcks()
	}
	e.x.metrics.OutstandingFrames.Set(float64(e.retx.Length()))
}

// processAcks frees acknowledged frames and handles expired ones, in
// transmission order, stopping at the first frame still waiting.
func (e *engine) processAcks(now time.Time) {
	x := e.x
	x.mu.Lock()
	for e.retx.Length() > 0 {
		f := e.retx.Peek().(*outFrame)
		seq := f.hdr.FrameSeq
		if _, ok := x.acked[seq]; ok {
			delete(x.acked, seq)
			delete(x.inflight, seq)
			e.retx.Remove()
			e.acked = append(e.acked, f)
			continue
		}
		if now.Before(f.deadline) {
			break
		}
		e.retx.Remove()
		if e.cfg.retransmit {
			e.resend = append(e.resend, f)
			continue
		}
		delete(x.inflight, seq)
		e.lost = append(e.lost, f)
	}
	x.mu.Unlock()

	for _, f := range e.acked {
		if e.cfg.retransmit {
			e.completeMsgs(f)
		}
		e.release(f)
	}
	for _, f := range e.lost {
		x.metrics.FramesDropped.Inc()
		x.log.Warn().
			Uint16("seq", f.hdr.FrameSeq).
			Int("messages", len(f.msgs)).
			Dur("ack_timeout", e.cfg.ackTimeout).
			Msg("frame not acknowledged, dropped")
		e.release(f)
	}
	for _, f := range e.resend {
		e.retransmits++
		x.metrics.FramesRetransmitted.Inc()
		if e.retransmits%retransmitLogEvery == 0 {
			x.log.Warn().
				Uint16("seq", f.hdr.FrameSeq).
				Int("sends", f.sends).
				Uint64("retransmits", e.retransmits).
				Msg("retransmitting frame")
		}
		e.transmit(f, now)
	}
	clear(e.acked)
	clear(e.lost)
	clear(e.resend)
	e.acked, e.lost, e.resend = e.acked[:0], e.lost[:0], e.resend[:0]
}

// drain fragments every queued transaction into frames.
func (e *engine) drain(now time.Time) {
	x := e.x
	x.mu.Lock()
	for x.txq.Length() > 0 {
		e.batch = append(e.batch, x.txq.Remove().(*transaction))
	}
	x.mu.Unlock()

	for _, t := range e.batch {
		e.pack(t, now)
	}
	clear(e.batch)
	e.batch = e.batch[:0]
}

func (e *engine) pack(t *transaction, now time.Time) {
	space := 0
	if e.open != nil {
		space = e.open.space(e.cfg.mtu)
	}
	for _, m := range e.frag.fragment(t, space, e.full) {
		if e.open != nil && !e.open.fits(m, e.cfg.mtu) {
			e.flush(now)
		}
		if e.open == nil {
			e.open = e.newFrame()
			e.open.coalesce = now.Add(e.cfg.coalesceWait)
		}
		e.open.add(m)
	}
}

func (e *engine) newFrame() *outFrame {
	f := e.frames.Acquire()
	f.used = protocol.FrameHeaderLength
	f.hdr = protocol.FrameHeader{
		DstID:    e.x.remote.Mailbox,
		SrcID:    e.x.local.addr.Mailbox,
		FrameSeq: e.nextSeq,
	}
	e.nextSeq++
	return f
}

// flush sends the open frame for the first time.
func (e *engine) flush(now time.Time) {
	f := e.open
	e.open = nil
	f.hdr.Flags = protocol.FlagHasMessages
	f.hdr.AckStart, f.hdr.AckCount = e.x.takeAckRun(protocol.MaxAckCount)

	e.x.mu.Lock()
	e.x.inflight[f.hdr.FrameSeq] = struct{}{}
	e.x.mu.Unlock()

	e.transmit(f, now)
	if !e.cfg.retransmit {
		// best effort: sent counts as delivered
		e.completeMsgs(f)
	}
}

// transmit hands f to the socket and tracks it for acknowledgment.
func (e *engine) transmit(f *outFrame, now time.Time) {
	if err := e.x.local.sock.Send(e.x.remote.HardwareAddr, f.vector()); err != nil {
		e.x.log.Warn().Err(err).Uint16("seq", f.hdr.FrameSeq).Msg("frame send failed")
	}
	f.sends++
	f.deadline = now.Add(e.cfg.ackTimeout)
	e.x.metrics.FramesSent.Inc()
	e.retx.Add(f)
}

// sendAcks emits ACK-only frames while ACKs are pending and no frame is
// open to carry them.
func (e *engine) sendAcks() {
	for e.open == nil {
		start, count := e.x.takeAckRun(protocol.MaxAckCount)
		if count == 0 {
			return
		}
		f := e.newFrame()
		f.hdr.AckStart, f.hdr.AckCount = start, count
		if err := e.x.local.sock.Send(e.x.remote.HardwareAddr, f.vector()); err != nil {
			e.x.log.Warn().Err(err).Uint16("seq", f.hdr.FrameSeq).Msg("ACK send failed")
		}
		e.x.metrics.AckFramesSent.Inc()
		e.frames.Release(f)
	}
}

func (e *engine) completeMsgs(f *outFrame) {
	for _, m := range f.msgs {
		if m.done.complete() {
			e.x.metrics.TransactionsCompleted.Inc()
		}
	}
}

func (e *engine) release(f *outFrame) {
	for _, m := range f.msgs {
		e.frag.release(m)
	}
	e.frames.Release(f)
}

func (e *engine) shutdown() {
	outstanding := e.retx.Length()
	if e.open != nil {
		e.release(e.open)
		e.open = nil
	}
	for e.retx.Length() > 0 {
		e.release(e.retx.Remove().(*outFrame))
	}
	e.x.mu.Lock()
	clear(e.x.inflight)
	clear(e.x.acked)
	e.x.mu.Unlock()
	e.x.metrics.OutstandingFrames.Set(0)
	e.x.log.Debug().Int("outstanding", outstanding).Msg("transmit engine stopped")
}
