// Package root implements C9 EngineRoot: binds the EAL once per
// process, builds the MAC/PCI -> iface-id indexes, constructs one
// IfaceWrapper per configured interface, distributes the shared
// ConsumerTable, and exposes a single telemetry() call that walks every
// IfaceWrapper.
package root

import (
	"fmt"
	"net"

	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/capture"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/config"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/consumer"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/eal"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/flow"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/ifacewrapper"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/ingesterr"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/stats"
)

// Root is C9 EngineRoot: exclusive owner of the EAL lifetime and the
// collection of IfaceWrappers, per spec.md §3's ownership model.
type Root struct {
	flowEngine *flow.Engine
	consumers  *consumer.Table

	wrappers  map[string]*ifacewrapper.Wrapper
	byMAC     map[string]string
	byPCI     map[string]string
}

// New binds the EAL with the configured args and builds one Wrapper
// per configured interface, sharing the given ConsumerTable with all of
// them. Every configured source_id must already have a consumer in it.
func New(cfg *config.EngineConfig, consumers *consumer.Table) (*Root, error) {
	if err := eal.Init(cfg.EALArgs); err != nil {
		return nil, &ingesterr.EalInitFailed{Reason: err.Error()}
	}

	r := &Root{
		flowEngine: flow.NewEngine(),
		consumers:  consumers,
		wrappers:   map[string]*ifacewrapper.Wrapper{},
		byMAC:      map[string]string{},
		byPCI:      map[string]string{},
	}

	for _, ifaceCfg := range cfg.Interfaces {
		mac, err := net.ParseMAC(ifaceCfg.MACAddr)
		if err != nil {
			return nil, &ingesterr.InterfaceInvalid{Iface: ifaceCfg.PCIAddr, Cause: err}
		}
		ip := net.ParseIP(ifaceCfg.IPAddr)
		if ip == nil {
			return nil, &ingesterr.InterfaceInvalid{Iface: ifaceCfg.PCIAddr, Cause: fmt.Errorf("invalid ip_addr %q", ifaceCfg.IPAddr)}
		}

		for _, es := range ifaceCfg.ExpectedSources {
			for _, sm := range es.StreamMapping {
				if !consumers.Has(sm.SourceID) {
					return nil, &ingesterr.ConfigurationError{Reason: fmt.Sprintf(
						"interface %s stream_id %d maps to source_id %d with no registered consumer",
						ifaceCfg.PCIAddr, sm.StreamID, sm.SourceID)}
				}
			}
		}

		w, err := ifacewrapper.New(ifaceCfg.PCIAddr, mac, ip, ifaceCfg, r.flowEngine, consumers)
		if err != nil {
			return nil, err
		}
		r.wrappers[ifaceCfg.PCIAddr] = w
		r.byMAC[ifaceCfg.MACAddr] = ifaceCfg.PCIAddr
		r.byPCI[ifaceCfg.PCIAddr] = ifaceCfg.PCIAddr
	}
	return r, nil
}

// IfaceByMAC resolves an interface id from its MAC address.
func (r *Root) IfaceByMAC(mac string) (string, bool) {
	id, ok := r.byMAC[mac]
	return id, ok
}

// Wrapper returns the IfaceWrapper for a given interface id.
func (r *Root) Wrapper(ifaceID string) (*ifacewrapper.Wrapper, bool) {
	w, ok := r.wrappers[ifaceID]
	return w, ok
}

// Wrappers returns every owned IfaceWrapper.
func (r *Root) Wrappers() map[string]*ifacewrapper.Wrapper {
	return r.wrappers
}

// Configure runs setup_interface/setup_flow_steering/setup_xstats on
// every wrapper, the conf edge of spec.md §6.
func (r *Root) Configure() error {
	for _, w := range r.wrappers {
		w.AllocateMbufs()
		if err := w.SetupInterface(); err != nil {
			return err
		}
		if err := w.SetupFlowSteering(); err != nil {
			return err
		}
		w.SetupXstats()
	}
	return nil
}

// Start launches every wrapper's workers and GARP thread, given the
// per-interface rx bindings and GARP transmit source the caller has
// already opened.
func (r *Root) Start(bindings map[string]map[int]capture.Source, garpSources map[string]capture.Source) {
	for ifaceID, w := range r.wrappers {
		w.Start(bindings[ifaceID], garpSources[ifaceID])
	}
}

// StopTriggerSources disables the flow gate on every wrapper without
// stopping the lcore workers, spec.md §6's stop_trigger_sources.
func (r *Root) StopTriggerSources() {
	for _, w := range r.wrappers {
		w.DisableFlow()
	}
}

// Scrap quits every wrapper's workers, waits, and tears down EAL flow
// state.
func (r *Root) Scrap() {
	for _, w := range r.wrappers {
		w.Stop()
		w.Scrap()
	}
	eal.Teardown()
}

// Telemetry walks every IfaceWrapper and returns its per-queue
// snapshot, keyed by interface id then rx-queue.
func (r *Root) Telemetry() map[string]map[int]stats.QueueSnapshot {
	out := make(map[string]map[int]stats.QueueSnapshot, len(r.wrappers))
	for ifaceID, w := range r.wrappers {
		out[ifaceID] = w.Telemetry()
	}
	return out
}
