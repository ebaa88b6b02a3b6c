package main

import (
	"os"

	"github.com/lopesmcc/plotman/internal/cmd"
)

// Populated via -ldflags at build time.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	os.Exit(cmd.Execute())
}
