// Package arp implements C2 ArpResponder: gratuitous ARP emission and
// replies to ARP requests targeting an interface's configured IP,
// grounded on original_source/src/arp/ARP.cpp (pktgen_send_garp /
// pktgen_process_arp) and built with github.com/google/gopacket/layers
// the way the teacher builds test frames in pcap/packet_util.go.
package arp

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/logging"
)

// frameLen is the minimum Ethernet frame length; ARP frames are padded
// up to it per spec.md §4.2.
const frameLen = 60

var broadcastMAC = net.HardwareAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// Transmitter is the burst-transmit contract ArpResponder needs from its
// host interface; ifacewrapper's GARP emitter and engine's ARP reply
// path each adapt a capture.Source to it.
type Transmitter interface {
	TransmitBurst(txQ int, frames [][]byte) (int, error)
}

// BuildGARP constructs the wire bytes of a gratuitous ARP request: an
// Ethernet frame broadcast to ff:ff:ff:ff:ff:ff with sender and target
// protocol addresses both equal to localIP, padded to 60 bytes, per
// spec.md §4.2.
func BuildGARP(localMAC net.HardwareAddr, localIP net.IP) ([]byte, error) {
	return buildARP(localMAC, localMAC, localIP, localIP, broadcastMAC, layers.ARPRequest)
}

func buildARP(srcMAC, senderHW net.HardwareAddr, senderIP, targetIP net.IP, dstMAC net.HardwareAddr, opcode uint16) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeARP,
	}
	a := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         opcode,
		SourceHwAddress:   []byte(senderHW),
		SourceProtAddress: senderIP.To4(),
		DstHwAddress:      []byte(dstMAC),
		DstProtAddress:    targetIP.To4(),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: false}
	if err := gopacket.SerializeLayers(buf, opts, eth, a); err != nil {
		return nil, err
	}
	frame := buf.Bytes()
	if len(frame) < frameLen {
		padded := make([]byte, frameLen)
		copy(padded, frame)
		frame = padded
	}
	return frame, nil
}

// EmitGARP builds and transmits one gratuitous ARP on TX queue 0 in a
// burst of 1, per spec.md §4.2. A zero-frame transmit result is logged
// but not retried.
func EmitGARP(tx Transmitter, localMAC net.HardwareAddr, localIP net.IP) error {
	frame, err := BuildGARP(localMAC, localIP)
	if err != nil {
		return err
	}
	n, err := tx.TransmitBurst(0, [][]byte{frame})
	if err != nil {
		return err
	}
	if n == 0 {
		logging.Warningf("GARP transmit burst returned 0 frames for %s\n", localIP)
	}
	return nil
}

// IsRequestFor reports whether frame is an ARP request whose target
// protocol address equals localIP, i.e. whether ReplyTo should handle
// it. frame must already be known to carry EtherType ARP.
func IsRequestFor(frame []byte, localIP net.IP) bool {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	arpLayer := pkt.Layer(layers.LayerTypeARP)
	if arpLayer == nil {
		return false
	}
	a := arpLayer.(*layers.ARP)
	if a.Operation != layers.ARPRequest {
		return false
	}
	return net.IP(a.DstProtAddress).Equal(localIP.To4())
}

// ReplyTo builds an ARP reply to frame in a new buffer and transmits it
// on TX queue 0; frame itself is not modified. The reply swaps sender/
// target addresses of the request, addresses the Ethernet frame back to
// the requester, sets the sender hardware address to localMAC, and
// carries the reply opcode. The caller
// must have already verified IsRequestFor(frame, localIP).
func ReplyTo(tx Transmitter, frame []byte, localMAC net.HardwareAddr, localIP net.IP) error {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	arpLayer := pkt.Layer(layers.LayerTypeARP)
	if ethLayer == nil || arpLayer == nil {
		return &MalformedARP{Reason: "missing Ethernet or ARP layer"}
	}
	eth := ethLayer.(*layers.Ethernet)
	a := arpLayer.(*layers.ARP)

	reply := &layers.Ethernet{
		SrcMAC:       localMAC,
		DstMAC:       eth.SrcMAC,
		EthernetType: layers.EthernetTypeARP,
	}
	replyARP := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   []byte(localMAC),
		SourceProtAddress: a.DstProtAddress,
		DstHwAddress:      a.SourceHwAddress,
		DstProtAddress:    a.SourceProtAddress,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: false}
	if err := gopacket.SerializeLayers(buf, opts, reply, replyARP); err != nil {
		return err
	}
	out := buf.Bytes()
	if len(out) < frameLen {
		padded := make([]byte, frameLen)
		copy(padded, out)
		out = padded
	}

	n, err := tx.TransmitBurst(0, [][]byte{out})
	if err != nil {
		return err
	}
	if n == 0 {
		logging.Warningf("ARP reply transmit burst returned 0 frames for %s\n", localIP)
	}
	return nil
}

// MalformedARP is returned when a frame claimed to be ARP does not carry
// the layers ReplyTo needs to construct a response.
type MalformedARP struct {
	Reason string
}

func (e *MalformedARP) Error() string { return "malformed ARP frame: " + e.Reason }
