// Package iface implements C4 InterfaceBootstrap: configuring one
// logical NIC (rx/tx ring sizing, per-queue pools, promiscuous mode,
// start) and the MempoolSet/RxCoreMap invariants of spec.md §3. There
// is no real ring/descriptor hardware behind this rewrite, so a
// "pool" is a fixed-capacity buffer pool (sync.Pool-backed) sized the
// way the original mempool is, and "start" opens the capture source
// rather than programming NIC registers.
package iface

import (
	"fmt"
	"sync"

	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/ingesterr"
)

// Pool is one rx-queue's mbuf-equivalent pool: a named buffer pool whose
// buffers have DataRoom capacity. NumMbufs is recorded but not enforced;
// the underlying sync.Pool has no capacity limit.
type Pool struct {
	Name       string
	NumMbufs   int
	DataRoom   int
	underlying sync.Pool
}

// mempoolGet is C4's mempool_get, naming pools MBP-<ifid>-<q> per
// spec.md §3's MempoolSet invariant.
func mempoolGet(ifid string, q int, numMbufs, dataRoom int) *Pool {
	p := &Pool{
		Name:     fmt.Sprintf("MBP-%s-%d", ifid, q),
		NumMbufs: numMbufs,
		DataRoom: dataRoom,
	}
	p.underlying.New = func() any {
		return make([]byte, 0, dataRoom)
	}
	return p
}

// Get returns a buffer with at least the pool's data-room capacity.
func (p *Pool) Get() []byte {
	buf := p.underlying.Get().([]byte)
	return buf[:0]
}

// Put returns a buffer to the pool for reuse.
func (p *Pool) Put(buf []byte) {
	p.underlying.Put(buf[:0])
}

// MempoolSet is the rx-queue -> pool mapping of spec.md §3, plus the
// dedicated GARP pool allocate_mbufs calls for.
type MempoolSet struct {
	Queues map[int]*Pool
	Garp   *Pool
}

// BuildMempoolSet is IfaceWrapper step 1, allocate_mbufs: one pool per
// rx-queue plus one GARP pool, data room set to MTU+128 per spec.md §3.
func BuildMempoolSet(ifid string, numRxQueues, mtu, numMbufs, mbufCacheSize int) *MempoolSet {
	dataRoom := mtu + 128
	set := &MempoolSet{Queues: make(map[int]*Pool, numRxQueues)}
	for q := 0; q < numRxQueues; q++ {
		set.Queues[q] = mempoolGet(ifid, q, numMbufs, dataRoom)
	}
	set.Garp = mempoolGet(ifid, -1, 1, 60)
	return set
}

// RxCoreMap is lcore -> rx-queue -> expected source IP, per spec.md
// §3's three invariants: every queue appears under exactly one lcore;
// every source IP appears under exactly one queue; every lcore
// services at least one queue.
type RxCoreMap struct {
	// lcore -> list of queues it services
	lcoreQueues map[int][]int
	// rx-queue -> expected source IP (binary, network order)
	queueSource map[int]uint32
}

func NewRxCoreMap() *RxCoreMap {
	return &RxCoreMap{
		lcoreQueues: map[int][]int{},
		queueSource: map[int]uint32{},
	}
}

// ValidationError reports an RxCoreMap invariant violation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "iface: " + e.Reason }

// Assign binds rxQ to lcore and records its expected source, rejecting
// a queue bound to two lcores, a second source for the same queue, and
// a source already assigned to another queue.
func (m *RxCoreMap) Assign(lcore, rxQ int, srcIP uint32) error {
	for l, queues := range m.lcoreQueues {
		for _, q := range queues {
			if q == rxQ && l != lcore {
				return &ValidationError{Reason: fmt.Sprintf("rx queue %d already assigned to lcore %d", rxQ, l)}
			}
		}
	}
	if _, dup := m.queueSource[rxQ]; dup {
		return &ValidationError{Reason: fmt.Sprintf("rx queue %d already has an expected source", rxQ)}
	}
	for q, ip := range m.queueSource {
		if ip == srcIP {
			return &ValidationError{Reason: fmt.Sprintf("source %#08x already assigned to rx queue %d", srcIP, q)}
		}
	}
	m.lcoreQueues[lcore] = append(m.lcoreQueues[lcore], rxQ)
	m.queueSource[rxQ] = srcIP
	return nil
}

// Lcores returns every lcore id with at least one assigned queue.
func (m *RxCoreMap) Lcores() []int {
	out := make([]int, 0, len(m.lcoreQueues))
	for l := range m.lcoreQueues {
		out = append(out, l)
	}
	return out
}

// QueuesFor returns the rx-queues a given lcore services.
func (m *RxCoreMap) QueuesFor(lcore int) []int {
	out := make([]int, len(m.lcoreQueues[lcore]))
	copy(out, m.lcoreQueues[lcore])
	return out
}

// SourceFor returns the expected source IP for rxQ.
func (m *RxCoreMap) SourceFor(rxQ int) (uint32, bool) {
	ip, ok := m.queueSource[rxQ]
	return ip, ok
}

// Validate checks that every lcore services at least one queue, the
// last of the three RxCoreMap invariants (the other two are enforced
// incrementally by Assign).
func (m *RxCoreMap) Validate() error {
	for l, queues := range m.lcoreQueues {
		if len(queues) == 0 {
			return &ValidationError{Reason: fmt.Sprintf("lcore %d has no assigned queues", l)}
		}
	}
	return nil
}

// Bootstrap is C4 InterfaceBootstrap's init() result: a validated,
// "started" logical interface. Unlike a real NIC, there is no register
// programming to fail after step 3 (RSS/offload) onward, so this
// rewrite's init focuses on the invariants a misconfiguration could
// actually violate: MTU, ring sizing, and mempool shape.
type Bootstrap struct {
	IfaceID     string
	MTU         int
	RxRingSize  int
	TxRingSize  int
	Promiscuous bool
	Mempools    *MempoolSet
	started     bool
}

// Init is C4's contract: validate the interface, size rings, build
// mempools, and mark the device started. It takes no reset or rss
// option: there is no hardware to reset or RSS-hash.
func Init(ifaceID string, mtu, rxRingSize, txRingSize, numRxQueues, numMbufs, mbufCacheSize int, promiscuous bool) (*Bootstrap, error) {
	if ifaceID == "" {
		return nil, &ingesterr.InterfaceSetupFailed{Iface: ifaceID, Code: -1, Step: "validate"}
	}
	if mtu <= 0 {
		return nil, &ingesterr.InterfaceSetupFailed{Iface: ifaceID, Code: -2, Step: "configure"}
	}
	if rxRingSize <= 0 || txRingSize <= 0 {
		return nil, &ingesterr.InterfaceSetupFailed{Iface: ifaceID, Code: -3, Step: "ring_setup"}
	}
	if numRxQueues <= 0 {
		return nil, &ingesterr.InterfaceSetupFailed{Iface: ifaceID, Code: -4, Step: "queue_setup"}
	}
	mempools := BuildMempoolSet(ifaceID, numRxQueues, mtu, numMbufs, mbufCacheSize)
	b := &Bootstrap{
		IfaceID:     ifaceID,
		MTU:         mtu,
		RxRingSize:  rxRingSize,
		TxRingSize:  txRingSize,
		Promiscuous: promiscuous,
		Mempools:    mempools,
	}
	b.started = true
	return b, nil
}

// SetPromiscuous toggles promiscuous mode on an already-started
// interface.
func (b *Bootstrap) SetPromiscuous(on bool) {
	b.Promiscuous = on
}

func (b *Bootstrap) Started() bool {
	return b.started
}
