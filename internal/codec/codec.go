// Package codec implements C1 PacketCodec: construction and inspection
// of the Ethernet+IPv4+UDP header chain used to wrap a detector payload,
// and conversions between the binary and dotted-decimal IPv4 forms. It
// leans on github.com/google/gopacket/layers for header construction
// (the same library the teacher uses in pcap/packet_util.go to build
// test packets) but parses received bytes through explicit accessors
// rather than decoding full packets, since the receive engine only ever
// needs the UDP payload boundary and a handful of header fields.
package codec

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// EthHeaderLen, IPv4HeaderLen, and UDPHeaderLen are the fixed (no IPv4
// options, no UDP extensions) header sizes this codec works with.
const (
	EthHeaderLen  = 14
	IPv4HeaderLen = 20
	UDPHeaderLen  = 8
	HeaderLen     = EthHeaderLen + IPv4HeaderLen + UDPHeaderLen
)

// MalformedFrame is returned when a received packet fails a
// classification-time structural check. It is always recovered locally:
// the receive engine drops the packet. No counter records such drops.
type MalformedFrame struct {
	Reason string
}

func (e *MalformedFrame) Error() string { return "malformed frame: " + e.Reason }

// BuildHeaders constructs the wire bytes of an Ethernet+IPv4+UDP header
// chain per spec.md §4.1: Ethernet type IPv4; IPv4 version 4, IHL 5,
// TOS 0, TTL 8, protocol UDP, total_length = 20+8+payloadLen, checksum
// zeroed for hardware offload; UDP dgram_len = 8+payloadLen, checksum
// zero. The returned slice is exactly HeaderLen bytes; the caller
// appends the payload itself.
func BuildHeaders(dstMAC, srcMAC net.HardwareAddr, srcIP, dstIP net.IP, srcPort, dstPort uint16, payloadLen int) ([]byte, error) {
	eth := &layers.Ethernet{
		DstMAC:       dstMAC,
		SrcMAC:       srcMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TOS:      0,
		Length:   uint16(IPv4HeaderLen + UDPHeaderLen + payloadLen),
		TTL:      8,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    srcIP.To4(),
		DstIP:    dstIP.To4(),
		Checksum: 0,
	}
	udp := &layers.UDP{
		SrcPort:  layers.UDPPort(srcPort),
		DstPort:  layers.UDPPort(dstPort),
		Length:   uint16(UDPHeaderLen + payloadLen),
		Checksum: 0,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: false, ComputeChecksums: false}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp); err != nil {
		return nil, fmt.Errorf("codec: serialize headers: %w", err)
	}
	// gopacket pads a short Ethernet frame to 60 bytes; the payload is
	// appended by the caller, so only the header chain itself is returned.
	return buf.Bytes()[:HeaderLen], nil
}

// ExtractUDPPayload returns the byte range of pkt that holds the UDP
// payload, per spec.md §4.1. It fails with MalformedFrame when pkt is
// shorter than a full header chain plus one byte, or when the UDP
// length field disagrees with the IPv4 total_length field.
func ExtractUDPPayload(pkt []byte) ([]byte, error) {
	if len(pkt) < HeaderLen+1 {
		return nil, &MalformedFrame{Reason: fmt.Sprintf("frame too short: %d bytes", len(pkt))}
	}

	ipHeader := pkt[EthHeaderLen : EthHeaderLen+IPv4HeaderLen]
	ihl := int(ipHeader[0] & 0x0F)
	ipHeaderLen := ihl * 4
	if ipHeaderLen < IPv4HeaderLen {
		return nil, &MalformedFrame{Reason: "invalid IPv4 IHL"}
	}
	totalLength := int(binary.BigEndian.Uint16(ipHeader[2:4]))

	udpOffset := EthHeaderLen + ipHeaderLen
	if len(pkt) < udpOffset+UDPHeaderLen {
		return nil, &MalformedFrame{Reason: "frame too short for UDP header"}
	}
	udpHeader := pkt[udpOffset : udpOffset+UDPHeaderLen]
	dgramLen := int(binary.BigEndian.Uint16(udpHeader[4:6]))

	if dgramLen < UDPHeaderLen {
		return nil, &MalformedFrame{Reason: "UDP dgram_len smaller than header"}
	}
	if ipHeaderLen+dgramLen != totalLength {
		return nil, &MalformedFrame{Reason: fmt.Sprintf(
			"UDP length %d inconsistent with IPv4 total_length %d (ip header %d)",
			dgramLen, totalLength, ipHeaderLen)}
	}

	payloadLen := dgramLen - UDPHeaderLen
	payloadStart := udpOffset + UDPHeaderLen
	if len(pkt) < payloadStart+payloadLen {
		return nil, &MalformedFrame{Reason: "frame shorter than declared UDP payload"}
	}
	return pkt[payloadStart : payloadStart+payloadLen], nil
}

// IPv4BinaryOfDotted returns the network-order 32-bit quantity whose
// most-significant byte is the dotted-decimal address's first octet.
func IPv4BinaryOfDotted(dotted string) (uint32, error) {
	ip := net.ParseIP(dotted)
	if ip == nil {
		return 0, fmt.Errorf("codec: invalid IPv4 address %q", dotted)
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("codec: %q is not an IPv4 address", dotted)
	}
	return binary.BigEndian.Uint32(v4), nil
}

// IPv4DottedOfBinary is the inverse of IPv4BinaryOfDotted.
func IPv4DottedOfBinary(bin uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], bin)
	return net.IP(b[:]).String()
}
