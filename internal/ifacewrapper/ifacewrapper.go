// Package ifacewrapper implements C8 IfaceWrapper: the ordered
// lifecycle that brings one interface up (mempools, bootstrap, flow
// rules, xstats, workers, GARP) and back down, composing internal/iface,
// internal/flow, internal/stats, internal/engine, and internal/arp.
package ifacewrapper

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/arp"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/capture"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/config"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/consumer"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/dispatch"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/engine"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/flow"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/iface"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/ingesterr"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/logging"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/stats"
)

const garpInterval = time.Second

// Wrapper is C8 IfaceWrapper: one interface's full lifecycle, owning
// its MempoolSet, FlowTable, XstatsProbe, RxCoreMap, and
// PerQueueCounters exclusively, per spec.md §3's ownership model.
type Wrapper struct {
	ifaceID string
	mac     net.HardwareAddr
	ip      net.IP
	cfg     config.InterfaceConfig

	bootstrap *iface.Bootstrap
	rxCores   *iface.RxCoreMap
	flowTable *flow.Table
	probe     *stats.Probe

	queueCounters map[int]*stats.QueueCounters
	dispatcher    *dispatch.Dispatcher
	eng           *engine.Engine

	garpSource capture.Source
	garpQuit   chan struct{}
	garpDone   chan struct{}

	flowEngine *flow.Engine
}

// New constructs a Wrapper for one configured interface. consumers is
// the process-wide, read-only ConsumerTable shared by every interface.
func New(ifaceID string, mac net.HardwareAddr, ip net.IP, cfg config.InterfaceConfig, flowEngine *flow.Engine, consumers *consumer.Table) (*Wrapper, error) {
	w := &Wrapper{
		ifaceID:       ifaceID,
		mac:           mac,
		ip:            ip,
		cfg:           cfg,
		flowEngine:    flowEngine,
		queueCounters: map[int]*stats.QueueCounters{},
	}

	w.rxCores = iface.NewRxCoreMap()
	for _, es := range cfg.ExpectedSources {
		srcIP, err := parseIP(es.IPAddr)
		if err != nil {
			return nil, &ingesterr.ConfigurationError{Reason: err.Error()}
		}
		if err := w.rxCores.Assign(es.Lcore, es.RxQ, srcIP); err != nil {
			return nil, err
		}
	}
	if err := w.rxCores.Validate(); err != nil {
		return nil, err
	}
	// The dispatcher sizes its per-queue unexpected-stream counters from
	// the queues known at construction, so every configured queue must
	// already have an entry here.
	for _, es := range cfg.ExpectedSources {
		w.queueCounters[es.RxQ] = &stats.QueueCounters{}
	}

	w.dispatcher = dispatch.NewDispatcher(consumers, w.queueCounters)
	return w, nil
}

func parseIP(dotted string) (uint32, error) {
	ip := net.ParseIP(dotted)
	if ip == nil || ip.To4() == nil {
		return 0, &ingesterr.ConfigurationError{Reason: "invalid IPv4 address " + dotted}
	}
	v4 := ip.To4()
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3]), nil
}

// AllocateMbufs is lifecycle step 1: one pool per rx-queue plus one
// GARP pool, sized to burst_size. The pools themselves are built by
// iface.Init during SetupInterface; this step exists as an explicit,
// separately callable point in the lifecycle per spec.md §4.8, ahead
// of the interface actually coming up.
func (w *Wrapper) AllocateMbufs() {}

// SetupInterface is lifecycle step 2: delegate to InterfaceBootstrap.
func (w *Wrapper) SetupInterface() error {
	b, err := iface.Init(w.ifaceID, w.cfg.MTU, w.cfg.RxRingSize, w.cfg.TxRingSize,
		numRxQueueCount(w.rxCores), w.cfg.NumMbufs, w.cfg.MbufCacheSize, w.cfg.Promiscuous)
	if err != nil {
		return err
	}
	w.bootstrap = b
	for q := range b.Mempools.Queues {
		w.queueCounters[q] = &stats.QueueCounters{}
	}
	for _, es := range w.cfg.ExpectedSources {
		for _, sm := range es.StreamMapping {
			w.dispatcher.Register(es.RxQ, sm.StreamID, sm.SourceID)
		}
		if _, ok := w.queueCounters[es.RxQ]; !ok {
			w.queueCounters[es.RxQ] = &stats.QueueCounters{}
		}
	}
	return nil
}

func numRxQueueCount(m *iface.RxCoreMap) int {
	seen := map[int]bool{}
	for _, l := range m.Lcores() {
		for _, q := range m.QueuesFor(l) {
			seen[q] = true
		}
	}
	if len(seen) == 0 {
		return 1
	}
	return len(seen)
}

// SetupFlowSteering is lifecycle step 3: flush then install one rule
// per expected source IP, plus a drop-all fallback.
func (w *Wrapper) SetupFlowSteering() error {
	w.flowEngine.Flush(w.ifaceID)
	for _, es := range w.cfg.ExpectedSources {
		srcIP, err := parseIP(es.IPAddr)
		if err != nil {
			return err
		}
		if _, err := w.flowEngine.SteerSrcIP(w.ifaceID, es.RxQ, srcIP, 0xFFFFFFFF); err != nil {
			return &ingesterr.FlowRuleRejected{Iface: w.ifaceID, RxQ: es.RxQ, Reason: err.Error()}
		}
	}
	if _, err := w.flowEngine.DropRemainder(w.ifaceID); err != nil {
		return &ingesterr.FlowRuleRejected{Iface: w.ifaceID, RxQ: -1, Reason: err.Error()}
	}
	w.flowTable = w.flowEngine.Table(w.ifaceID)
	return nil
}

// SetupXstats is lifecycle step 4.
func (w *Wrapper) SetupXstats() {
	queues := make([]*stats.QueueCounters, 0, len(w.queueCounters))
	for q := 0; q < len(w.queueCounters); q++ {
		if qc, ok := w.queueCounters[q]; ok {
			queues = append(queues, qc)
		}
	}
	var missed, nombuf atomic.Uint64
	w.probe = stats.Setup(stats.NewSoftwareSource(queues, &missed, &nombuf))
}

// Start is lifecycle step 5: reset counters, launch GARP, launch
// workers — one per lcore in the RxCoreMap, each bound to the
// per-queue sources bindings supplies.
func (w *Wrapper) Start(bindings map[int]capture.Source, garpSource capture.Source) {
	for _, qc := range w.queueCounters {
		qc.Reset()
	}

	workers := make([]*engine.Worker, 0, len(w.rxCores.Lcores()))
	for _, lcore := range w.rxCores.Lcores() {
		var qbs []engine.QueueBinding
		for _, q := range w.rxCores.QueuesFor(lcore) {
			src, ok := bindings[q]
			if !ok {
				continue
			}
			qbs = append(qbs, engine.QueueBinding{RxQ: q, Source: src, Counters: w.queueCounters[q]})
		}
		workers = append(workers, engine.NewWorker(engine.WorkerConfig{
			Lcore:       lcore,
			Bindings:    qbs,
			Dispatcher:  w.dispatcher,
			LocalMAC:    w.mac,
			LocalIP:     w.ip,
			BurstSize:   w.cfg.BurstSize,
			SleepDur:    time.Duration(w.cfg.LcoreSleepUs) * time.Microsecond,
			PinAffinity: true,
		}))
	}
	w.eng = engine.NewEngine(workers)
	w.eng.Start()

	w.garpSource = garpSource
	w.garpQuit = make(chan struct{})
	w.garpDone = make(chan struct{})
	go w.runGARP()
}

func (w *Wrapper) runGARP() {
	defer close(w.garpDone)
	ticker := time.NewTicker(garpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.garpQuit:
			return
		case <-ticker.C:
			tx := garpTransmitter{source: w.garpSource}
			if err := arp.EmitGARP(tx, w.mac, w.ip); err != nil {
				logging.Warningf("GARP emission failed on %s: %v\n", w.ifaceID, err)
			}
		}
	}
}

type garpTransmitter struct {
	source capture.Source
}

func (g garpTransmitter) TransmitBurst(_ int, frames [][]byte) (int, error) {
	return g.source.TxBurst(frames)
}

// EnableFlow/DisableFlow toggle dispatch on every worker, lifecycle
// step 6.
func (w *Wrapper) EnableFlow() {
	for _, worker := range w.eng.Workers() {
		worker.EnableFlow()
	}
}

func (w *Wrapper) DisableFlow() {
	for _, worker := range w.eng.Workers() {
		worker.DisableFlow()
	}
}

// Stop is lifecycle step 7: signal quit, join the GARP goroutine, let
// lcore workers drain and exit on their own.
func (w *Wrapper) Stop() {
	if w.garpQuit != nil {
		close(w.garpQuit)
		<-w.garpDone
	}
	if w.eng != nil {
		w.eng.Stop()
	}
}

// Scrap is lifecycle step 8: flush flow rules.
func (w *Wrapper) Scrap() {
	w.flowEngine.Flush(w.ifaceID)
}

// Telemetry returns a point-in-time snapshot of every owned rx-queue's
// counters. The xstats probe is not included; Probe exposes it.
func (w *Wrapper) Telemetry() map[int]stats.QueueSnapshot {
	out := make(map[int]stats.QueueSnapshot, len(w.queueCounters))
	for q, qc := range w.queueCounters {
		out[q] = qc.Snapshot()
	}
	return out
}

// Probe exposes the xstats probe for telemetry aggregation.
func (w *Wrapper) Probe() *stats.Probe {
	return w.probe
}
