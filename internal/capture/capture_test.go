package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeSourceRxBurstRespectsCap(t *testing.T) {
	src := NewFakeSource()
	src.Push([]byte{1}, time.Time{})
	src.Push([]byte{2}, time.Time{})
	src.Push([]byte{3}, time.Time{})

	got, err := src.RxBurst(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1, src.Pending())

	got, err = src.RxBurst(2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 0, src.Pending())
}

func TestFakeSourceRxBurstEmpty(t *testing.T) {
	src := NewFakeSource()
	got, err := src.RxBurst(4)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFakeSourceTxBurstRecordsFrames(t *testing.T) {
	src := NewFakeSource()
	n, err := src.TxBurst([][]byte{{1, 2}, {3, 4}})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, [][]byte{{1, 2}, {3, 4}}, src.Sent())
}

func TestFakeSourcePushDoesNotAliasCaller(t *testing.T) {
	src := NewFakeSource()
	buf := []byte{9}
	src.Push(buf, time.Time{})
	buf[0] = 0xFF

	got, _ := src.RxBurst(1)
	require.Equal(t, byte(9), got[0].Data[0])
}

func TestFakeSourceClose(t *testing.T) {
	src := NewFakeSource()
	require.False(t, src.Closed())
	require.NoError(t, src.Close())
	require.True(t, src.Closed())
}
