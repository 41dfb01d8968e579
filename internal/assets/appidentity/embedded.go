// Package appidentityassets embeds the weirdgate app identity so the binary
// works without a .fulmen/app.yaml on disk.
package appidentityassets

import _ "embed"

// YAML names the binary, env prefix (WEIRDGATE_) and telemetry namespace.
//
//go:embed app.yaml
var YAML []byte
