// Package meta holds build metadata shared by the command-line surfaces.
package meta

// Version is the release version reported by the doctor and serve commands.
// Overridden at build time via -ldflags "-X ...internal/meta.Version=v1.2.3".
var Version = "v0.9.0-dev"
