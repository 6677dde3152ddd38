package codec

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustMAC(s string) net.HardwareAddr {
	m, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

func TestBuildHeadersThenExtractPayloadRoundTrip(t *testing.T) {
	payload := make([]byte, 7180)
	for i := range payload {
		payload[i] = byte(i)
	}

	hdr, err := BuildHeaders(
		mustMAC("6c:fe:54:47:98:20"),
		mustMAC("aa:bb:cc:dd:ee:ff"),
		net.ParseIP("10.73.139.27"),
		net.ParseIP("10.73.139.26"),
		30000, 40000,
		len(payload),
	)
	require.NoError(t, err)
	require.Len(t, hdr, HeaderLen)

	frame := append(append([]byte{}, hdr...), payload...)
	got, err := ExtractUDPPayload(frame)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestExtractUDPPayloadRejectsShortFrame(t *testing.T) {
	_, err := ExtractUDPPayload(make([]byte, HeaderLen))
	require.Error(t, err)
	require.IsType(t, &MalformedFrame{}, err)
}

func TestExtractUDPPayloadRejectsLengthMismatch(t *testing.T) {
	hdr, err := BuildHeaders(
		mustMAC("6c:fe:54:47:98:20"),
		mustMAC("aa:bb:cc:dd:ee:ff"),
		net.ParseIP("10.73.139.27"),
		net.ParseIP("10.73.139.26"),
		1, 2, 16,
	)
	require.NoError(t, err)

	// Truncate the payload without adjusting the length fields: the UDP
	// dgram_len / IPv4 total_length now disagree with the actual bytes.
	frame := append(append([]byte{}, hdr...), make([]byte, 4)...)
	_, err = ExtractUDPPayload(frame)
	require.Error(t, err)
}

func TestIPv4BinaryDottedRoundTrip(t *testing.T) {
	addrs := []string{"10.73.139.26", "0.0.0.0", "255.255.255.255", "192.168.1.1"}
	for _, a := range addrs {
		bin, err := IPv4BinaryOfDotted(a)
		require.NoError(t, err)
		require.Equal(t, a, IPv4DottedOfBinary(bin))
	}
}

func TestIPv4BinaryOfDottedMSBIsFirstOctet(t *testing.T) {
	bin, err := IPv4BinaryOfDotted("10.73.139.26")
	require.NoError(t, err)
	require.Equal(t, uint32(10), bin>>24)
}
