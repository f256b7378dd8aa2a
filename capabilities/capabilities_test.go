package capabilities

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveKnownCapabilities(t *testing.T) {
	caps, err := resolve([]string{"CAP_CHOWN", "CAP_SYS_ADMIN"})
	require.NoError(t, err)
	require.Len(t, caps, 2)
}

func TestResolveUnknownCapability(t *testing.T) {
	_, err := resolve([]string{"CAP_NOT_REAL"})
	require.Error(t, err)
}

func TestApplyNilIsNoop(t *testing.T) {
	require.NoError(t, Apply(nil))
}
