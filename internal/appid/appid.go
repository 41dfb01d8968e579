// Package appid loads the application identity, falling back to the copy
// embedded in the binary when no .fulmen/app.yaml is found.
package appid

import (
	"context"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/weirdgate/weirdgate/internal/assets/appidentity"
)

// DefaultEnvPrefix is used when no identity can be loaded.
const DefaultEnvPrefix = "WEIRDGATE_"

func init() {
	// Explicit identity paths (FULMEN_APP_IDENTITY_PATH) stay authoritative.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// EnvVar names the environment variable that overrides a dotted config key,
// e.g. "sampling.threshold" becomes WEIRDGATE_SAMPLING_THRESHOLD.
func EnvVar(ctx context.Context, key string) string {
	prefix := DefaultEnvPrefix
	if identity, err := Get(ctx); err == nil && identity != nil && identity.EnvPrefix != "" {
		prefix = identity.EnvPrefix
	}
	return prefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
