package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	errwrap "github.com/weirdgate/weirdgate/internal/errors"
)

func TestExitCodeFor(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		err  error
		want foundry.ExitCode
	}{
		{"plain error", errors.New("boom"), foundry.ExitFailure},
		{"store disabled", fmt.Errorf("windows list: %w", errStoreDisabled), foundry.ExitConfigInvalid},
		{"config rejected", errwrap.WrapConfigInvalid(ctx, errors.New("rate must be positive"), "configuration rejected"), foundry.ExitConfigInvalid},
		{"store unreachable", errwrap.WrapDatabaseError(ctx, errors.New("dial"), "open store"), foundry.ExitExternalServiceUnavailable},
		{"invalid input", errwrap.NewInvalidInputError("bad burst"), foundry.ExitFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCodeFor(tc.err))
		})
	}
}

func TestEnvelopeFields(t *testing.T) {
	original := errors.New("disk I/O error")
	env := errwrap.WrapDatabaseError(context.Background(), original, "ledger snapshot failed")

	fields := envelopeFields(env)

	keys := make(map[string]zap.Field, len(fields))
	for _, f := range fields {
		keys[f.Key] = f
	}
	assert.Equal(t, errwrap.CodeDatabase, keys["error_code"].String)
	assert.Equal(t, "ledger snapshot failed", keys["error_message"].String)
	assert.Contains(t, keys, "error_context")
	assert.Contains(t, keys, "error")

	plain := envelopeFields(original)
	assert.Len(t, plain, 1)
	assert.Equal(t, "error", plain[0].Key)
}
