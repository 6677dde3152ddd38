// Package config defines the configuration schema of spec.md §6 as typed
// Go structs, loaded from a YAML file by the gopkg.in/yaml.v3-based
// LoadFile. cmd/ingestd uses LoadFile too; the configuration is not
// bound through viper, so flags and environment variables do not
// override file values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/ingesterr"
)

// StreamMapping is one (stream_id -> source_id) entry of an
// ExpectedSource's src_streams_mapping.
type StreamMapping struct {
	StreamID uint8 `yaml:"stream_id"`
	SourceID int   `yaml:"source_id"`
}

// ExpectedSource is spec.md §3/§6's ExpectedSource.
type ExpectedSource struct {
	IPAddr        string          `yaml:"ip_addr"`
	RxQ           int             `yaml:"rx_q"`
	Lcore         int             `yaml:"lcore"`
	StreamMapping []StreamMapping `yaml:"src_streams_mapping"`
}

// InterfaceConfig is spec.md §3/§6's IfaceConfig, with every recognized
// key and default from spec.md §6.
type InterfaceConfig struct {
	PCIAddr         string           `yaml:"pci_addr"`
	MACAddr         string           `yaml:"mac_addr"`
	IPAddr          string           `yaml:"ip_addr"`
	MTU             int              `yaml:"mtu"`
	RxRingSize      int              `yaml:"rx_ring_size"`
	TxRingSize      int              `yaml:"tx_ring_size"`
	NumMbufs        int              `yaml:"num_mbufs"`
	MbufCacheSize   int              `yaml:"mbuf_cache_size"`
	BurstSize       int              `yaml:"burst_size"`
	LcoreSleepUs    int              `yaml:"lcore_sleep_us"`
	Promiscuous     bool             `yaml:"promiscuous"`
	WithFlowControl *bool            `yaml:"with_flow_control"`
	ExpectedSources []ExpectedSource `yaml:"expected_sources"`
}

// EngineConfig is the top-level configuration delivered at the conf
// edge (spec.md §1/§6): a free-form EAL command line plus the set of
// interfaces to bring up.
type EngineConfig struct {
	EALArgs    []string          `yaml:"eal_args"`
	Interfaces []InterfaceConfig `yaml:"interfaces"`
}

// Defaults, per spec.md §6.
const (
	DefaultMTU             = 9000
	DefaultRxRingSize      = 1024
	DefaultTxRingSize      = 1024
	DefaultNumMbufs        = 8191
	DefaultMbufCacheSize   = 250
	DefaultBurstSize       = 256
	DefaultLcoreSleepUs    = 1000
	DefaultPromiscuous     = false
	DefaultWithFlowControl = true
)

// ApplyDefaults fills in zero-valued fields of every interface with the
// spec.md §6 defaults. WithFlowControl defaults to true, which a plain
// bool cannot distinguish from an explicit "false" once parsed — hence
// the pointer field; ApplyDefaults is idempotent and safe to call
// multiple times.
func (c *EngineConfig) ApplyDefaults() {
	for i := range c.Interfaces {
		iface := &c.Interfaces[i]
		if iface.WithFlowControl == nil {
			v := DefaultWithFlowControl
			iface.WithFlowControl = &v
		}
		if iface.MTU == 0 {
			iface.MTU = DefaultMTU
		}
		if iface.RxRingSize == 0 {
			iface.RxRingSize = DefaultRxRingSize
		}
		if iface.TxRingSize == 0 {
			iface.TxRingSize = DefaultTxRingSize
		}
		if iface.NumMbufs == 0 {
			iface.NumMbufs = DefaultNumMbufs
		}
		if iface.MbufCacheSize == 0 {
			iface.MbufCacheSize = DefaultMbufCacheSize
		}
		if iface.BurstSize == 0 {
			iface.BurstSize = DefaultBurstSize
		}
		if iface.LcoreSleepUs == 0 {
			iface.LcoreSleepUs = DefaultLcoreSleepUs
		}
	}
}

// LoadFile parses a YAML configuration file into an EngineConfig and
// applies defaults.
func LoadFile(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Validate performs the structural checks that spec.md §7's
// ConfigurationError covers: missing required fields, duplicate expected
// source IPs within one interface, and duplicate rx-queue assignment
// across lcores is checked separately by internal/iface's RxCoreMap
// builder once lcore assignment is known.
func (c *EngineConfig) Validate() error {
	if len(c.Interfaces) == 0 {
		return &ingesterr.ConfigurationError{Reason: "no interfaces configured"}
	}
	for _, iface := range c.Interfaces {
		if iface.PCIAddr == "" {
			return &ingesterr.ConfigurationError{Reason: "interface missing pci_addr"}
		}
		if iface.MACAddr == "" {
			return &ingesterr.ConfigurationError{Reason: fmt.Sprintf("interface %s missing mac_addr", iface.PCIAddr)}
		}
		if iface.IPAddr == "" {
			return &ingesterr.ConfigurationError{Reason: fmt.Sprintf("interface %s missing ip_addr", iface.PCIAddr)}
		}
		seen := map[string]bool{}
		for _, es := range iface.ExpectedSources {
			if es.IPAddr == "" {
				return &ingesterr.ConfigurationError{Reason: fmt.Sprintf("interface %s has an expected source with no ip_addr", iface.PCIAddr)}
			}
			if seen[es.IPAddr] {
				return &ingesterr.ConfigurationError{Reason: fmt.Sprintf("interface %s has duplicate expected source %s", iface.PCIAddr, es.IPAddr)}
			}
			seen[es.IPAddr] = true
		}
	}
	return nil
}
