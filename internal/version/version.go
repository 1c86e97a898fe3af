// Package version holds the CKG version string.
package version

// Version is the current CKG version.
// Overridden at build time via -ldflags "-X ckg/internal/version.Version=...".
var Version = "0.1.0-dev"
