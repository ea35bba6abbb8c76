// Command covrpc-demo drives the loopback transport end to end as a smoke
// test harness, not a deployment tool.
package main

import (
	"fmt"
	"os"

	"github.com/covrpc/covrpc/cmd/covrpc-demo/commands"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
