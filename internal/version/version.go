// Package version exposes docquery build metadata.
package version

// Set via -ldflags at release time; source builds keep the defaults.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
