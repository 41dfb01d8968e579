package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weirdgate/weirdgate/internal/appid"
)

func TestAppIdentityLoading(t *testing.T) {
	identity, err := appid.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, identity)

	assert.Equal(t, "weirdgate", identity.BinaryName)
	assert.Equal(t, "WEIRDGATE_", identity.EnvPrefix)
	assert.Equal(t, "weirdgate", identity.ConfigName)
	assert.NotEmpty(t, identity.Vendor)
	assert.Equal(t, "weirdgate", identity.TelemetryNamespace())
}

func TestSamplingEnvVarsFollowIdentityPrefix(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "WEIRDGATE_SAMPLING_THRESHOLD", appid.EnvVar(ctx, "sampling.threshold"))
	assert.Equal(t, "WEIRDGATE_SAMPLING_NORMALIZE_PAIRS", appid.EnvVar(ctx, "sampling.normalize_pairs"))
}
