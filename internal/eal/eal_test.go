package eal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildArgsShape(t *testing.T) {
	args, err := BuildArgs([]string{"0000:ca:00.0", "0000:ca:00.1"})
	require.NoError(t, err)
	require.Equal(t, []string{
		"--proc-type=primary",
		"-a", "0000:ca:00.0",
		"-a", "0000:ca:00.1",
		"--file-prefix=0000_ca_00_0",
	}, args)
}

func TestBuildArgsRequiresAtLeastOneNIC(t *testing.T) {
	_, err := BuildArgs(nil)
	require.Error(t, err)
}

func TestInitIsIdempotentForSameArgs(t *testing.T) {
	defer Teardown()
	args, err := BuildArgs([]string{"0000:ca:00.0"})
	require.NoError(t, err)

	require.NoError(t, Init(args))
	require.NoError(t, Init(args))
	require.True(t, Bound())
}

func TestInitRejectsRebindWithDifferentArgs(t *testing.T) {
	defer Teardown()
	a1, _ := BuildArgs([]string{"0000:ca:00.0"})
	a2, _ := BuildArgs([]string{"0000:ca:00.1"})

	require.NoError(t, Init(a1))
	require.Error(t, Init(a2))
}

func TestTeardownUnbinds(t *testing.T) {
	args, _ := BuildArgs([]string{"0000:ca:00.0"})
	require.NoError(t, Init(args))
	Teardown()
	require.False(t, Bound())
}
