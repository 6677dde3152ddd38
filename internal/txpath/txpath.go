// Package txpath builds complete outbound frames: Ethernet/IPv4/UDP
// headers from internal/codec plus a DAQEthHeader from internal/daqhdr,
// followed by a data payload. It is grounded on the synthetic traffic
// generator in original_source/test/apps/generate_tfr_settings.cxx and
// on the (stub) transmit module in original_source/plugins/NICSender.cpp;
// this rewrite gives that generator's frame-construction job a concrete
// home, and reuses it both for a real burst-transmit helper and as the
// synthetic frame builder the receive-engine scenario tests drive.
package txpath

import (
	"net"

	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/capture"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/codec"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/daqhdr"
)

// Endpoint names one side of a frame: link address plus network
// address.
type Endpoint struct {
	MAC  net.HardwareAddr
	IP   net.IP
	Port uint16
}

// BuildFrame serializes a full Ethernet/IPv4/UDP frame carrying hdr
// followed by data as the UDP payload.
func BuildFrame(src, dst Endpoint, hdr daqhdr.Header, data []byte) ([]byte, error) {
	payload := make([]byte, daqhdr.Size+len(data))
	if err := daqhdr.Put(payload, hdr); err != nil {
		return nil, err
	}
	copy(payload[daqhdr.Size:], data)

	headers, err := codec.BuildHeaders(dst.MAC, src.MAC, src.IP, dst.IP, src.Port, dst.Port, len(payload))
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(headers)+len(payload))
	frame = append(frame, headers...)
	frame = append(frame, payload...)
	return frame, nil
}

// Sender wraps a capture.Source to transmit pre-built frames in
// bursts, the real-traffic counterpart of a test's direct
// capture.FakeSource.Push calls.
type Sender struct {
	source capture.Source
}

func NewSender(source capture.Source) *Sender {
	return &Sender{source: source}
}

// SendBurst transmits every frame in one burst and reports how many
// were accepted by the underlying source.
func (s *Sender) SendBurst(frames [][]byte) (int, error) {
	return s.source.TxBurst(frames)
}

// Series generates a run of frames sharing src/dst/SUID with
// sequential seq_ids starting at startSeq, for driving round-trip and
// gap-detection scenarios without a live sender.
func Series(src, dst Endpoint, suid daqhdr.SUID, startSeq uint16, count int, payloadLen int) ([][]byte, error) {
	out := make([][]byte, 0, count)
	seq := startSeq
	for i := 0; i < count; i++ {
		hdr := daqhdr.Header{
			DetID:    suid.DetID,
			CrateID:  suid.CrateID,
			SlotID:   suid.SlotID,
			StreamID: suid.StreamID,
			SeqID:    seq,
		}
		data := make([]byte, payloadLen)
		frame, err := BuildFrame(src, dst, hdr, data)
		if err != nil {
			return nil, err
		}
		out = append(out, frame)
		seq = daqhdr.NextSeqID(seq)
	}
	return out, nil
}
