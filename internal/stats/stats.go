// Package stats implements spec.md §3's PerQueueCounters and C7
// XstatsProbe. Per-queue counters are plain atomics, written only by the
// owning lcore worker and read by the telemetry thread — the "maps of
// atomics, single writer per key" pattern from spec.md §9. XstatsProbe
// wraps whatever extended-statistics backend the interface bootstrap
// supplies (see internal/ifacewrapper); since there is no real NIC behind this
// rewrite (DESIGN.md), the default backend derives its counters from the
// same per-queue atomics rather than reading hardware registers.
package stats

import (
	"sync/atomic"
)

// QueueCounters are the atomic integers spec.md §3 requires per
// rx-queue.
type QueueCounters struct {
	packetsRx           atomic.Uint64
	bytesRx              atomic.Uint64
	framesDroppedOnFull  atomic.Uint64
	fullBursts           atomic.Uint64
	maxBurst             atomic.Uint64
	packetsCopied        atomic.Uint64
	bytesCopied          atomic.Uint64
}

// QueueSnapshot is a point-in-time, non-atomic read of QueueCounters for
// telemetry export, matching the per-queue shape of spec.md §6's
// telemetry output.
type QueueSnapshot struct {
	PacketsReceived       uint64 `json:"packets_received"`
	BytesReceived         uint64 `json:"bytes_received"`
	PacketsDroppedSpscFull uint64 `json:"packets_dropped_spsc_full"`
	FullRxBurst           uint64 `json:"full_rx_burst"`
	MaxBurstSize          uint64 `json:"max_burst_size"`
	PacketsCopied         uint64 `json:"packets_copied"`
	BytesCopied           uint64 `json:"bytes_copied"`
}

func (c *QueueCounters) AddPacketRx(bytes int) {
	c.packetsRx.Add(1)
	c.bytesRx.Add(uint64(bytes))
}

func (c *QueueCounters) AddDroppedOnFull()  { c.framesDroppedOnFull.Add(1) }
func (c *QueueCounters) AddFullBurst()      { c.fullBursts.Add(1) }
func (c *QueueCounters) AddPacketCopied(n int) {
	c.packetsCopied.Add(1)
	c.bytesCopied.Add(uint64(n))
}

// ObserveBurst updates MaxBurst with the size of a just-completed burst.
func (c *QueueCounters) ObserveBurst(n int) {
	for {
		cur := c.maxBurst.Load()
		if uint64(n) <= cur {
			return
		}
		if c.maxBurst.CompareAndSwap(cur, uint64(n)) {
			return
		}
	}
}

func (c *QueueCounters) Snapshot() QueueSnapshot {
	return QueueSnapshot{
		PacketsReceived:        c.packetsRx.Load(),
		BytesReceived:          c.bytesRx.Load(),
		PacketsDroppedSpscFull: c.framesDroppedOnFull.Load(),
		FullRxBurst:            c.fullBursts.Load(),
		MaxBurstSize:           c.maxBurst.Load(),
		PacketsCopied:          c.packetsCopied.Load(),
		BytesCopied:            c.bytesCopied.Load(),
	}
}

// Reset zeros every counter, per spec.md §4.8's "reset all per-queue
// counters" start step.
func (c *QueueCounters) Reset() {
	c.packetsRx.Store(0)
	c.bytesRx.Store(0)
	c.framesDroppedOnFull.Store(0)
	c.fullBursts.Store(0)
	c.maxBurst.Store(0)
	c.packetsCopied.Store(0)
	c.bytesCopied.Store(0)
}

// CompactStats mirrors the subset of rte_eth_stats spec.md §4.7 names:
// ipackets, opackets, ibytes, obytes, imissed, ierrors, oerrors,
// rx_nombuf.
type CompactStats struct {
	IPackets uint64
	OPackets uint64
	IBytes   uint64
	OBytes   uint64
	IMissed  uint64
	IErrors  uint64
	OErrors  uint64
	RxNombuf uint64
}

// Source is the backend XstatsProbe polls: real hardware in a DPDK
// build, or — as wired here — a software source computed from the
// engine's own counters.
type Source interface {
	Names() []string
	ReadCompact() CompactStats
	ReadExtended() map[string]uint64
	Reset()
}

// Probe is C7 XstatsProbe: query names once at setup, then poll both the
// compact and extended views, and allow resetting both.
type Probe struct {
	source Source
	names  []string
}

// Setup queries the count and names of extended statistics once, per
// spec.md §4.7.
func Setup(source Source) *Probe {
	return &Probe{source: source, names: source.Names()}
}

// Snapshot is the read-only view XstatsProbe.poll() produces.
type Snapshot struct {
	Compact  CompactStats      `json:"compact"`
	Extended map[string]uint64 `json:"extended"`
}

// Poll reads all extended statistics by id and the compact ethdev
// counters.
func (p *Probe) Poll() Snapshot {
	return Snapshot{
		Compact:  p.source.ReadCompact(),
		Extended: p.source.ReadExtended(),
	}
}

// Names returns the extended statistic names captured at Setup.
func (p *Probe) Names() []string {
	return p.names
}

// ResetCounters resets both the compact and extended counters.
func (p *Probe) ResetCounters() {
	p.source.Reset()
}

// SoftwareSource is the Source this rewrite wires by default: it derives
// compact and extended counters from the engine's own per-queue atomics
// instead of reading NIC registers, since there is no real hardware
// behind this Go rewrite (see DESIGN.md). imissed and rx_nombuf report
// the two counters passed to NewSoftwareSource; SoftwareSource never
// increments them itself, and the receive engine does not either.
type SoftwareSource struct {
	queues  []*QueueCounters
	missed  *atomic.Uint64
	nombuf  *atomic.Uint64
}

func NewSoftwareSource(queues []*QueueCounters, missed, nombuf *atomic.Uint64) *SoftwareSource {
	return &SoftwareSource{queues: queues, missed: missed, nombuf: nombuf}
}

func (s *SoftwareSource) Names() []string {
	names := make([]string, 0, len(s.queues)*2)
	for i := range s.queues {
		names = append(names, queueCounterName(i, "packets"), queueCounterName(i, "bytes"))
	}
	return names
}

func queueCounterName(q int, suffix string) string {
	return "rx_q" + itoa(q) + "_" + suffix
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func (s *SoftwareSource) ReadCompact() CompactStats {
	var cs CompactStats
	for _, q := range s.queues {
		snap := q.Snapshot()
		cs.IPackets += snap.PacketsReceived
		cs.IBytes += snap.BytesReceived
	}
	if s.missed != nil {
		cs.IMissed = s.missed.Load()
	}
	if s.nombuf != nil {
		cs.RxNombuf = s.nombuf.Load()
	}
	return cs
}

func (s *SoftwareSource) ReadExtended() map[string]uint64 {
	out := make(map[string]uint64, len(s.queues)*2)
	for i, q := range s.queues {
		snap := q.Snapshot()
		out[queueCounterName(i, "packets")] = snap.PacketsReceived
		out[queueCounterName(i, "bytes")] = snap.BytesReceived
	}
	return out
}

func (s *SoftwareSource) Reset() {
	for _, q := range s.queues {
		q.Reset()
	}
	if s.missed != nil {
		s.missed.Store(0)
	}
	if s.nombuf != nil {
		s.nombuf.Store(0)
	}
}
