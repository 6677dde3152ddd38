// Package dispatch implements C5 StreamDispatch: resolving a received
// frame's stream-unique identifier to a registered consumer and handing
// it off via the non-blocking sink contract, counting what it cannot
// resolve instead of growing any table at dispatch time.
package dispatch

import (
	"sync/atomic"

	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/consumer"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/daqhdr"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/stats"
)

// Key is the (rx_q, stream_id) lookup key spec.md §4.5 resolves in
// O(1) to a source_id.
type Key struct {
	RxQ      int
	StreamID uint8
}

// Dispatcher is C5 StreamDispatch: the (rx_q, stream_id) -> source_id
// table, the consumer table it hands payloads to, and the counters
// that absorb what it cannot resolve or deliver.
type Dispatcher struct {
	sourceOf          map[Key]int
	consumers         *consumer.Table
	unexpectedStream  map[int]*atomic.Uint64
	queueCounters     map[int]*stats.QueueCounters
}

// NewDispatcher builds a Dispatcher over a given consumer table and
// per-queue counters; the (rx_q, stream_id) -> source_id table is
// populated once at conf time via Register and never grown after.
func NewDispatcher(consumers *consumer.Table, queueCounters map[int]*stats.QueueCounters) *Dispatcher {
	d := &Dispatcher{
		sourceOf:         map[Key]int{},
		consumers:        consumers,
		unexpectedStream: map[int]*atomic.Uint64{},
		queueCounters:    queueCounters,
	}
	// Pre-create one counter per known rx-queue so concurrent Dispatch
	// calls from different queues' lcore workers never insert into this
	// map at the same time (each rx-queue is polled by exactly one
	// lcore, so only its own counter is ever mutated concurrently with
	// itself, which atomic.Uint64 already allows).
	for rxQ := range queueCounters {
		d.unexpectedStream[rxQ] = &atomic.Uint64{}
	}
	return d
}

// Register binds (rxQ, streamID) to sourceID, building the resolve
// table. Intended to be called only during init.
func (d *Dispatcher) Register(rxQ int, streamID uint8, sourceID int) {
	d.sourceOf[Key{RxQ: rxQ, StreamID: streamID}] = sourceID
}

// Resolve is spec.md §4.5's resolve(): an O(1) lookup from (rx_q,
// stream_id) to a registered consumer, or ok=false if none exists.
func (d *Dispatcher) Resolve(rxQ int, streamID uint8) (consumer.Sink, bool) {
	sourceID, ok := d.sourceOf[Key{RxQ: rxQ, StreamID: streamID}]
	if !ok {
		return nil, false
	}
	return d.consumers.Lookup(sourceID)
}

// UnexpectedStreamCount returns how many frames arrived with a
// stream-id this dispatcher has no registered source for, keyed by the
// rx-queue they arrived on (spec.md §4.5's unexpected_stream_id
// counter uses "would-be source_id", which this rewrite cannot compute
// without a registered mapping; the rx-queue is the next-best grouping
// key and is what internal/engine's telemetry actually needs).
func (d *Dispatcher) UnexpectedStreamCount(rxQ int) uint64 {
	c, ok := d.unexpectedStream[rxQ]
	if !ok {
		return 0
	}
	return c.Load()
}

// Dispatch is spec.md §4.5's dispatch(): parse the DAQ header, resolve
// a consumer by SUID's stream-id, and hand off payload via try_send.
// A full sink increments frames_dropped_on_full and is not retried; an
// unresolved stream-id increments unexpected_stream_id but never grows
// the consumer table.
func (d *Dispatcher) Dispatch(rxQ int, payload []byte) error {
	hdr, err := daqhdr.Parse(payload)
	if err != nil {
		return err
	}
	sink, ok := d.Resolve(rxQ, hdr.StreamID)
	if !ok {
		if c, exists := d.unexpectedStream[rxQ]; exists {
			c.Add(1)
		}
		return nil
	}
	if err := sink.TrySend(payload); err != nil {
		if qc, ok := d.queueCounters[rxQ]; ok {
			qc.AddDroppedOnFull()
		}
		return nil
	}
	if qc, ok := d.queueCounters[rxQ]; ok {
		qc.AddPacketCopied(len(payload))
	}
	return nil
}
