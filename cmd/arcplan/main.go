// Command arcplan optimizes deliverable VMAT plans and inspects planning runs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/arcplan/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
