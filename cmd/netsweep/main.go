// Command netsweep discovers live IPv4 hosts in network segments and probes
// them for open ports, services and operating system.
package main

import (
	"github.com/anstrom/netsweep/cmd/cli"
)

// Set by ldflags at build time.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
