package flow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/codec"
)

func mustIP(t *testing.T, s string) uint32 {
	t.Helper()
	v, err := codec.IPv4BinaryOfDotted(s)
	require.NoError(t, err)
	return v
}

func TestSteerSrcIPExactMatch(t *testing.T) {
	e := NewEngine()
	src := mustIP(t, "10.73.139.27")
	_, err := e.SteerSrcIP("eth0", 0, src, 0xFFFFFFFF)
	require.NoError(t, err)

	rxQ, ok := e.Table("eth0").Classify(src)
	require.True(t, ok)
	require.Equal(t, 0, rxQ)

	_, ok = e.Table("eth0").Classify(mustIP(t, "10.73.139.28"))
	require.False(t, ok)
}

func TestDropRemainderCatchesUnmatched(t *testing.T) {
	e := NewEngine()
	_, err := e.SteerSrcIP("eth0", 0, mustIP(t, "10.73.139.27"), 0xFFFFFFFF)
	require.NoError(t, err)
	_, err = e.DropRemainder("eth0")
	require.NoError(t, err)

	// S6: traffic from an uninstalled source hits the drop rule.
	_, ok := e.Table("eth0").Classify(mustIP(t, "10.73.139.99"))
	require.False(t, ok)
}

func TestEveryExpectedSourceHasExactlyOnePriorityZeroRule(t *testing.T) {
	e := NewEngine()
	sources := []string{"10.73.139.27", "10.73.139.28"}
	for i, s := range sources {
		_, err := e.SteerSrcIP("eth0", i, mustIP(t, s), 0xFFFFFFFF)
		require.NoError(t, err)
	}
	_, err := e.DropRemainder("eth0")
	require.NoError(t, err)

	rules := e.Table("eth0").Rules()
	for _, s := range sources {
		count := 0
		for _, r := range rules {
			if r.Priority == 0 && !r.Drop && r.matches(mustIP(t, s)) {
				count++
			}
		}
		require.Equal(t, 1, count, "source %s must match exactly one priority-0 rule", s)
	}
}

func TestFlushClearsRules(t *testing.T) {
	e := NewEngine()
	_, err := e.SteerSrcIP("eth0", 0, mustIP(t, "10.0.0.1"), 0xFFFFFFFF)
	require.NoError(t, err)
	require.Len(t, e.Table("eth0").Rules(), 1)

	e.Flush("eth0")
	require.Len(t, e.Table("eth0").Rules(), 0)
}

func TestWildcardMaskMatchesAnySource(t *testing.T) {
	e := NewEngine()
	_, err := e.SteerSrcIP("eth0", 3, 0, 0)
	require.NoError(t, err)

	rxQ, ok := e.Table("eth0").Classify(mustIP(t, "8.8.8.8"))
	require.True(t, ok)
	require.Equal(t, 3, rxQ)
}
