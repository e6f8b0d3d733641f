package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	require.True(t, SkipStartup("receiving"))

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
	require.False(t, SkipStartup("receiving"))
}
