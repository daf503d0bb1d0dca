// Command polyedgectl is the operator CLI for PolyEdge. It talks to the
// same stores as the server and is meant for support and admin tasks.
package main

import (
	"os"

	"github.com/alanyoungcy/polyedge/cmd/polyedgectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
