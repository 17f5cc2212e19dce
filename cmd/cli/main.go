// proxylist - Proxy List Parser
//
// proxylist reads proxy list files and turns every line into a structured
// proxy record using a regular expression with named groups.
package main

import (
	"os"

	"github.com/ccollicutt/proxylist/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
