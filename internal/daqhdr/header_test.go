package daqhdr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutParseRoundTrip(t *testing.T) {
	cases := []Header{
		{DetID: 2, CrateID: 1, SlotID: 0, StreamID: 1, SeqID: 4095, Timestamp: 0xFFFFFF},
		{DetID: 0, CrateID: 0, SlotID: 0, StreamID: 0, SeqID: 0, Timestamp: 0},
		{DetID: 63, CrateID: 1023, SlotID: 15, StreamID: 255, SeqID: 4095, Timestamp: 0xABCDEF},
	}
	for _, h := range cases {
		buf := make([]byte, Size)
		require.NoError(t, Put(buf, h))
		got, err := Parse(buf)
		require.NoError(t, err)
		require.Equal(t, h, got)
	}
}

func TestParseRequiresFullHeader(t *testing.T) {
	_, err := Parse(make([]byte, Size-1))
	require.Error(t, err)
}

func TestNextSeqIDWraps(t *testing.T) {
	require.Equal(t, uint16(0), NextSeqID(4095))
	require.Equal(t, uint16(501), NextSeqID(500))
}

func TestSeqSkip(t *testing.T) {
	// Normal contiguous delivery: no skip.
	require.Equal(t, uint16(0), SeqSkip(499, 500))
	// Scenario S3: seq_id 500 is skipped, next frame observed is 501.
	require.Equal(t, uint16(1), SeqSkip(499, 501))
	// Wraparound from 4095 to 0 is not a skip.
	require.Equal(t, uint16(0), SeqSkip(4095, 0))
}

func TestSUIDString(t *testing.T) {
	s := SUID{DetID: 2, CrateID: 1, SlotID: 0, StreamID: 9}
	require.Contains(t, s.String(), "stream=9")
}
