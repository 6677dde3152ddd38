package txpath

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/capture"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/codec"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/daqhdr"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	require.NoError(t, err)
	return mac
}

func sampleEndpoints(t *testing.T) (Endpoint, Endpoint) {
	src := Endpoint{
		MAC:  mustMAC(t, "6c:fe:54:47:98:20"),
		IP:   net.ParseIP("10.73.139.27"),
		Port: 57001,
	}
	dst := Endpoint{
		MAC:  mustMAC(t, "6c:fe:54:47:98:21"),
		IP:   net.ParseIP("10.73.139.26"),
		Port: 57000,
	}
	return src, dst
}

func TestBuildFrameRoundTripsHeaderAndPayload(t *testing.T) {
	src, dst := sampleEndpoints(t)
	hdr := daqhdr.Header{DetID: 1, CrateID: 2, SlotID: 3, StreamID: 1, SeqID: 500}
	data := make([]byte, 7180)
	for i := range data {
		data[i] = byte(i)
	}

	frame, err := BuildFrame(src, dst, hdr, data)
	require.NoError(t, err)

	payload, err := codec.ExtractUDPPayload(frame)
	require.NoError(t, err)
	require.Equal(t, daqhdr.Size+len(data), len(payload))

	gotHdr, err := daqhdr.Parse(payload)
	require.NoError(t, err)
	require.Equal(t, hdr, gotHdr)
	require.Equal(t, data, payload[daqhdr.Size:])
}

func TestSeriesProducesSequentialSeqIDs(t *testing.T) {
	src, dst := sampleEndpoints(t)
	suid := daqhdr.SUID{DetID: 1, CrateID: 2, SlotID: 3, StreamID: 1}

	frames, err := Series(src, dst, suid, 4094, 4, 16)
	require.NoError(t, err)
	require.Len(t, frames, 4)

	wantSeq := []uint16{4094, 4095, 0, 1}
	for i, frame := range frames {
		payload, err := codec.ExtractUDPPayload(frame)
		require.NoError(t, err)
		hdr, err := daqhdr.Parse(payload)
		require.NoError(t, err)
		require.Equal(t, wantSeq[i], hdr.SeqID)
	}
}

func TestSenderSendBurstDelegatesToSource(t *testing.T) {
	src, dst := sampleEndpoints(t)
	fake := capture.NewFakeSource()
	sender := NewSender(fake)

	frames, err := Series(src, dst, daqhdr.SUID{StreamID: 1}, 0, 2, 8)
	require.NoError(t, err)

	n, err := sender.SendBurst(frames)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, fake.Sent(), 2)
}
