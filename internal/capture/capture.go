// Package capture supplies ReceiveEngine's packet source: a small
// interface in the style of the teacher's pcapWrapper (pcap/pcap.go),
// split into a real github.com/google/gopacket/pcap-backed
// implementation and an injectable fake for tests, so the poll loop in
// internal/engine never has to touch a live NIC to be exercised.
package capture

import (
	"time"

	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
)

// Frame is one raw Ethernet frame as handed to the receive engine,
// the software analogue of an rte_mbuf.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
}

// Source is what a ReceiveEngine polls: a non-blocking, bounded burst
// read and a burst write, mirroring rte_eth_rx_burst/rte_eth_tx_burst's
// contract of "return immediately with whatever is available, up to n".
type Source interface {
	RxBurst(burstSize int) ([]Frame, error)
	TxBurst(frames [][]byte) (int, error)
	Close() error
}

const defaultSnapLen = 9216

// PcapSource is the live-interface implementation, grounded on
// pcapImpl.capturePackets/getInterfaceAddrs.
type PcapSource struct {
	handle *pcap.Handle
}

// NewPcapSource opens ifaceName for live capture. A short read timeout
// is what makes RxBurst non-blocking once no more packets are queued,
// unlike the teacher's pcap.BlockForever open (that package streams
// indefinitely; this one polls in bursts).
func NewPcapSource(ifaceName string, promiscuous bool) (*PcapSource, error) {
	handle, err := pcap.OpenLive(ifaceName, defaultSnapLen, promiscuous, 10*time.Millisecond)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open pcap on %s", ifaceName)
	}
	return &PcapSource{handle: handle}, nil
}

// SetBPFFilter installs a capture filter, e.g. restricting to the
// interface's own UDP destination port.
func (s *PcapSource) SetBPFFilter(filter string) error {
	if filter == "" {
		return nil
	}
	if err := s.handle.SetBPFFilter(filter); err != nil {
		return errors.Wrap(err, "failed to set BPF filter")
	}
	return nil
}

func (s *PcapSource) RxBurst(burstSize int) ([]Frame, error) {
	frames := make([]Frame, 0, burstSize)
	for len(frames) < burstSize {
		data, ci, err := s.handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			break
		}
		if err != nil {
			return frames, errors.Wrap(err, "pcap read")
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		frames = append(frames, Frame{Data: cp, CapturedAt: ci.Timestamp})
	}
	return frames, nil
}

func (s *PcapSource) TxBurst(frames [][]byte) (int, error) {
	sent := 0
	for _, f := range frames {
		if err := s.handle.WritePacketData(f); err != nil {
			return sent, errors.Wrap(err, "pcap write")
		}
		sent++
	}
	return sent, nil
}

func (s *PcapSource) Close() error {
	s.handle.Close()
	return nil
}

// FakeSource is the injectable test double: callers Push frames onto a
// FIFO queue that RxBurst drains, and every TxBurst call is recorded for
// assertions, in place of a real NIC.
type FakeSource struct {
	pending []Frame
	sent    [][]byte
	closed  bool
}

func NewFakeSource() *FakeSource {
	return &FakeSource{}
}

// Push enqueues a frame as if it had just arrived on the wire.
func (f *FakeSource) Push(data []byte, capturedAt time.Time) {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.pending = append(f.pending, Frame{Data: cp, CapturedAt: capturedAt})
}

func (f *FakeSource) RxBurst(burstSize int) ([]Frame, error) {
	if burstSize > len(f.pending) {
		burstSize = len(f.pending)
	}
	out := f.pending[:burstSize]
	f.pending = f.pending[burstSize:]
	return out, nil
}

func (f *FakeSource) TxBurst(frames [][]byte) (int, error) {
	for _, fr := range frames {
		cp := make([]byte, len(fr))
		copy(cp, fr)
		f.sent = append(f.sent, cp)
	}
	return len(frames), nil
}

// Sent returns every frame handed to TxBurst so far, in order.
func (f *FakeSource) Sent() [][]byte {
	return f.sent
}

// Pending reports how many frames remain unread.
func (f *FakeSource) Pending() int {
	return len(f.pending)
}

func (f *FakeSource) Close() error {
	f.closed = true
	return nil
}

func (f *FakeSource) Closed() bool {
	return f.closed
}
