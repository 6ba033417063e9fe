// Package version holds the CLI version, overridable at build time
// with -ldflags "-X .../internal/version.Version=...".
package version

var Version = "0.1.0"
