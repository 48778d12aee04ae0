// devproxy - local front-end development proxy with mocks and scenarios.
package main

import "github.com/shubapp/devproxy/pkg/cli"

// Build-time variables set via ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.BuildDate = buildDate
	cli.Execute()
}
