// Package version exposes build-time version metadata for the farol binary.
package version

// These are stamped at build time via -ldflags, e.g.
// -X github.com/rafaelsamenezes/farol/pkg/version.Version=v0.2.0
var (
	// Version is the semantic version of the binary.
	Version = "dev"

	// Commit is the git commit the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)
