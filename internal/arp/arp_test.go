package arp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTransmitter struct {
	lastQ      int
	lastFrames [][]byte
	result     int
	err        error
}

func (f *fakeTransmitter) TransmitBurst(txQ int, frames [][]byte) (int, error) {
	f.lastQ = txQ
	f.lastFrames = frames
	if f.err != nil {
		return 0, f.err
	}
	if f.result == 0 && len(frames) > 0 {
		return len(frames), nil
	}
	return f.result, nil
}

func TestBuildGARPShape(t *testing.T) {
	mac, _ := net.ParseMAC("6c:fe:54:47:98:20")
	ip := net.ParseIP("10.73.139.26")

	frame, err := BuildGARP(mac, ip)
	require.NoError(t, err)
	require.Len(t, frame, frameLen)
	require.True(t, IsRequestFor(frame, ip), "a GARP is a request targeting its own IP")
}

func TestEmitGARPUsesTxQueueZeroBurstOfOne(t *testing.T) {
	mac, _ := net.ParseMAC("6c:fe:54:47:98:20")
	ip := net.ParseIP("10.73.139.26")
	tx := &fakeTransmitter{}

	require.NoError(t, EmitGARP(tx, mac, ip))
	require.Equal(t, 0, tx.lastQ)
	require.Len(t, tx.lastFrames, 1)
}

func TestIsRequestForRejectsWrongTarget(t *testing.T) {
	mac, _ := net.ParseMAC("6c:fe:54:47:98:20")
	frame, err := BuildGARP(mac, net.ParseIP("10.0.0.1"))
	require.NoError(t, err)
	require.False(t, IsRequestFor(frame, net.ParseIP("10.0.0.2")))
}

func TestReplyToSwapsAddressesAndRetransmits(t *testing.T) {
	localMAC, _ := net.ParseMAC("6c:fe:54:47:98:20")
	localIP := net.ParseIP("10.73.139.26")
	peerMAC, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	peerIP := net.ParseIP("10.73.139.27")

	req, err := buildARP(peerMAC, peerMAC, peerIP, localIP, localMAC, 1 /* request */)
	require.NoError(t, err)
	require.True(t, IsRequestFor(req, localIP))

	tx := &fakeTransmitter{}
	require.NoError(t, ReplyTo(tx, req, localMAC, localIP))
	require.Equal(t, 0, tx.lastQ)
	require.Len(t, tx.lastFrames, 1)
	require.Len(t, tx.lastFrames[0], frameLen)
}
