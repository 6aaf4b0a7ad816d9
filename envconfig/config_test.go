package envconfig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Setenv("PYRAMIDKV_DEBUG", "")
	LoadConfig()
	require.False(t, Debug)
	t.Setenv("PYRAMIDKV_DEBUG", "false")
	LoadConfig()
	require.False(t, Debug)
	t.Setenv("PYRAMIDKV_DEBUG", "1")
	LoadConfig()
	require.True(t, Debug)
	t.Setenv("PYRAMIDKV_DEBUG", "on")
	LoadConfig()
	require.True(t, Debug)
}

func TestHost(t *testing.T) {
	t.Setenv("PYRAMIDKV_HOST", "")
	LoadConfig()
	require.Equal(t, "127.0.0.1:11555", Host)

	t.Setenv("PYRAMIDKV_HOST", "\"0.0.0.0:8080\"")
	LoadConfig()
	require.Equal(t, "0.0.0.0:8080", Host)
}

func TestNumThreads(t *testing.T) {
	t.Setenv("PYRAMIDKV_NUM_THREADS", "3")
	LoadConfig()
	require.Equal(t, 3, NumThreads)

	t.Setenv("PYRAMIDKV_NUM_THREADS", "not-a-number")
	LoadConfig()
	require.Positive(t, NumThreads)
}
