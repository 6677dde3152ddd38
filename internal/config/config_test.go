package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
eal_args: ["--proc-type=primary"]
interfaces:
  - pci_addr: "0000:ca:00.0"
    mac_addr: "6c:fe:54:47:98:20"
    ip_addr: "10.73.139.26"
    expected_sources:
      - ip_addr: "10.73.139.27"
        rx_q: 0
        lcore: 2
        src_streams_mapping:
          - stream_id: 1
            source_id: 100
`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, cfg.Interfaces, 1)

	iface := cfg.Interfaces[0]
	require.Equal(t, DefaultMTU, iface.MTU)
	require.Equal(t, DefaultRxRingSize, iface.RxRingSize)
	require.Equal(t, DefaultTxRingSize, iface.TxRingSize)
	require.Equal(t, DefaultNumMbufs, iface.NumMbufs)
	require.Equal(t, DefaultMbufCacheSize, iface.MbufCacheSize)
	require.Equal(t, DefaultBurstSize, iface.BurstSize)
	require.Equal(t, DefaultLcoreSleepUs, iface.LcoreSleepUs)
	require.NotNil(t, iface.WithFlowControl)
	require.True(t, *iface.WithFlowControl)

	require.Len(t, iface.ExpectedSources, 1)
	require.Equal(t, "10.73.139.27", iface.ExpectedSources[0].IPAddr)
	require.Equal(t, uint8(1), iface.ExpectedSources[0].StreamMapping[0].StreamID)
	require.Equal(t, 100, iface.ExpectedSources[0].StreamMapping[0].SourceID)
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cfg := &EngineConfig{Interfaces: []InterfaceConfig{{}}}
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsDuplicateExpectedSource(t *testing.T) {
	cfg := &EngineConfig{
		Interfaces: []InterfaceConfig{{
			PCIAddr: "0000:ca:00.0",
			MACAddr: "6c:fe:54:47:98:20",
			IPAddr:  "10.73.139.26",
			ExpectedSources: []ExpectedSource{
				{IPAddr: "10.73.139.27"},
				{IPAddr: "10.73.139.27"},
			},
		}},
	}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyConfig(t *testing.T) {
	cfg := &EngineConfig{}
	require.Error(t, cfg.Validate())
}

func TestValidateAcceptsSampleConfig(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}
