// Package consumer supplies the one concrete downstream sink
// implementation this module owns end to end: a bounded, non-blocking
// channel sink satisfying the try_send contract spec.md §1 abstracts
// consumers behind. Real detector-side consumers are out of scope
// (spec.md §1 names them an external collaborator); this package exists
// so StreamDispatch and ReceiveEngine are runnable and testable without
// one.
package consumer

import "fmt"

// ErrFull is returned by TrySend when the sink's buffer has no room; the
// caller (StreamDispatch) absorbs it as a frames_dropped_on_full count,
// never retries, per spec.md §4.5.
var ErrFull = fmt.Errorf("consumer: sink full")

// Sink is the non-blocking consumer contract of spec.md §3/§4.5.
type Sink interface {
	// TrySend attempts to hand payload to the consumer without blocking.
	// payload is a slice of the received frame's buffer; an
	// implementation that keeps the bytes after the call copies them, as
	// ChannelSink does.
	TrySend(payload []byte) error
}

// ChannelSink is a fixed-capacity SPSC-shaped sink backed by a buffered
// channel, matching spec.md §5's "single-producer/single-consumer queues
// exposed by the consumer" framing of the hot-path boundary.
type ChannelSink struct {
	ch chan []byte
}

// NewChannelSink creates a sink with room for capacity frames.
func NewChannelSink(capacity int) *ChannelSink {
	return &ChannelSink{ch: make(chan []byte, capacity)}
}

func (s *ChannelSink) TrySend(payload []byte) error {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	select {
	case s.ch <- buf:
		return nil
	default:
		return ErrFull
	}
}

// Drain removes and returns every frame currently queued, for tests and
// for a downstream consumer's own poll loop.
func (s *ChannelSink) Drain() [][]byte {
	var out [][]byte
	for {
		select {
		case b := <-s.ch:
			out = append(out, b)
		default:
			return out
		}
	}
}

// Len reports the number of frames currently queued.
func (s *ChannelSink) Len() int {
	return len(s.ch)
}

// Table is spec.md §3's ConsumerTable: source_id -> consumer handle,
// immutable after start and shared read-only by every IfaceWrapper.
type Table struct {
	sinks map[int]Sink
}

func NewTable() *Table {
	return &Table{sinks: map[int]Sink{}}
}

// Register binds a source_id to a sink. Intended to be called only
// during init, before the table is shared with the receive engines.
func (t *Table) Register(sourceID int, sink Sink) {
	t.sinks[sourceID] = sink
}

// Lookup returns the sink for sourceID, or ok=false if none is
// registered — the table is never grown dynamically at dispatch time
// per spec.md §4.5's anti-runaway guard.
func (t *Table) Lookup(sourceID int) (Sink, bool) {
	s, ok := t.sinks[sourceID]
	return s, ok
}

// Has reports whether sourceID has a registered consumer. root.New
// calls this once per configured source_id to reject, at conf time, a
// Table that a caller built without one — the fatal ConfigurationError
// case spec.md's error taxonomy names. cmd/ingestd builds its own Table
// by registering a sink for every source_id it finds in the config, so
// this never rejects the CLI's own bootstrap; it guards callers of the
// root package that supply a pre-built, possibly incomplete Table.
func (t *Table) Has(sourceID int) bool {
	_, ok := t.sinks[sourceID]
	return ok
}
