// Command nalanda validates CUE slice declarations, runs conformance
// scenarios and inspects persisted traces.
package main

import (
	"fmt"
	"os"

	"github.com/bangle-io/nalanda-sub001/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
