// droidbridge - bulk file transfers between Android devices and this machine.
package main

import (
	"os"

	"github.com/droidbridge/droidbridge/internal/cli"
	"github.com/droidbridge/droidbridge/internal/version"
)

// Version information, overridden via LDFLAGS on release builds.
var (
	Version   = "v1.0.0"
	BuildTime = "dev"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime
	os.Exit(cli.Execute())
}
