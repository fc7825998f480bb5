package main

import "github.com/reewardius/thc-recon/cmd/thc-recon/commands"

// Overridden at build time via -ldflags.
var (
	version   = "1.0.0"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	commands.Execute(version, commit, buildDate)
}
