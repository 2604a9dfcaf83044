// Command partest runs a command across a pool of parallel workers and
// gives those workers a way to coordinate with each other.
package main

import (
	"os"

	"github.com/AbdelazizMoustafa10m/partest/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
