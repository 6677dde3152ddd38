package root

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/capture"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/config"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/consumer"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/eal"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/daqhdr"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/txpath"
	"net"
)

func sampleCfg() *config.EngineConfig {
	cfg := &config.EngineConfig{
		EALArgs: []string{"--proc-type=primary"},
		Interfaces: []config.InterfaceConfig{
			{
				PCIAddr: "0000:ca:00.0",
				MACAddr: "6c:fe:54:47:98:20",
				IPAddr:  "10.73.139.26",
				ExpectedSources: []config.ExpectedSource{
					{
						IPAddr: "10.73.139.27",
						RxQ:    0,
						Lcore:  2,
						StreamMapping: []config.StreamMapping{
							{StreamID: 1, SourceID: 100},
						},
					},
				},
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestRootConfigureAndTelemetry(t *testing.T) {
	eal.Teardown()
	t.Cleanup(eal.Teardown)

	consumers := consumer.NewTable()
	sink := consumer.NewChannelSink(512)
	consumers.Register(100, sink)

	r, err := New(sampleCfg(), consumers)
	require.NoError(t, err)
	require.True(t, eal.Bound())
	require.NoError(t, r.Configure())

	id, ok := r.IfaceByMAC("6c:fe:54:47:98:20")
	require.True(t, ok)
	require.Equal(t, "0000:ca:00.0", id)

	fake := capture.NewFakeSource()
	garp := capture.NewFakeSource()

	a := txpath.Endpoint{MAC: mustMAC(t, "6c:fe:54:47:98:20"), IP: net.ParseIP("10.73.139.26"), Port: 57000}
	b := txpath.Endpoint{MAC: mustMAC(t, "6c:fe:54:47:98:21"), IP: net.ParseIP("10.73.139.27"), Port: 57001}
	suid := daqhdr.SUID{DetID: 2, CrateID: 1, SlotID: 0, StreamID: 1}
	frames, err := txpath.Series(b, a, suid, 0, 4, 16)
	require.NoError(t, err)
	for _, f := range frames {
		fake.Push(f, time.Time{})
	}

	r.Start(
		map[string]map[int]capture.Source{id: {0: fake}},
		map[string]capture.Source{id: garp},
	)

	require.Eventually(t, func() bool {
		return sink.Len() == 4
	}, time.Second, time.Millisecond)

	r.StopTriggerSources()
	r.Scrap()

	telemetry := r.Telemetry()
	require.Contains(t, telemetry, id)
	require.Equal(t, uint64(4), telemetry[id][0].PacketsReceived)
}

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	require.NoError(t, err)
	return mac
}
