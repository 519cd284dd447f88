// Command disjunct validates models, plans and runs queries against a
// SQLite store, and runs YAML query scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/disjunct/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
