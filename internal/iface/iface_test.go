package iface

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildMempoolSetNamesAndSizing(t *testing.T) {
	set := BuildMempoolSet("A", 2, 9000, 8191, 250)
	require.Len(t, set.Queues, 2)
	require.Equal(t, "MBP-A-0", set.Queues[0].Name)
	require.Equal(t, "MBP-A-1", set.Queues[1].Name)
	require.Equal(t, 9128, set.Queues[0].DataRoom)
	require.Equal(t, 8191, set.Queues[0].NumMbufs)
	require.NotNil(t, set.Garp)
}

func TestPoolGetPutRoundTrip(t *testing.T) {
	set := BuildMempoolSet("A", 1, 9000, 8191, 250)
	buf := set.Queues[0].Get()
	require.Equal(t, 0, len(buf))
	buf = append(buf, 1, 2, 3)
	set.Queues[0].Put(buf)
}

func TestRxCoreMapEveryQueueUnderOneLcore(t *testing.T) {
	m := NewRxCoreMap()
	require.NoError(t, m.Assign(2, 0, 0xAABBCCDD))
	err := m.Assign(3, 0, 0x11223344)
	require.Error(t, err)
}

func TestRxCoreMapEverySourceUnderOneQueue(t *testing.T) {
	m := NewRxCoreMap()
	require.NoError(t, m.Assign(2, 0, 0xAABBCCDD))
	err := m.Assign(2, 1, 0xAABBCCDD)
	require.Error(t, err)
}

func TestRxCoreMapValidateRequiresAtLeastOneQueuePerLcore(t *testing.T) {
	m := NewRxCoreMap()
	require.NoError(t, m.Assign(2, 0, 1))
	require.NoError(t, m.Validate())
}

func TestRxCoreMapLcoresAndQueues(t *testing.T) {
	m := NewRxCoreMap()
	require.NoError(t, m.Assign(2, 0, 1))
	require.NoError(t, m.Assign(2, 1, 2))
	require.ElementsMatch(t, []int{0, 1}, m.QueuesFor(2))
	require.Equal(t, []int{2}, m.Lcores())
	ip, ok := m.SourceFor(1)
	require.True(t, ok)
	require.Equal(t, uint32(2), ip)
}

func TestInitRejectsBadMTU(t *testing.T) {
	_, err := Init("0000:ca:00.0", 0, 1024, 1024, 1, 8191, 250, false)
	require.Error(t, err)
}

func TestInitRejectsNoQueues(t *testing.T) {
	_, err := Init("0000:ca:00.0", 9000, 1024, 1024, 0, 8191, 250, false)
	require.Error(t, err)
}

func TestInitSucceedsAndStarts(t *testing.T) {
	b, err := Init("0000:ca:00.0", 9000, 1024, 1024, 2, 8191, 250, true)
	require.NoError(t, err)
	require.True(t, b.Started())
	require.Len(t, b.Mempools.Queues, 2)
	require.True(t, b.Promiscuous)
}
