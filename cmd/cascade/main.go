// Command cascade runs incremental multi-phase asset builds.
package main

import (
	"fmt"
	"os"

	"github.com/cascade-build/cascade/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
