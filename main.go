// Reqtrace - requirements traceability graph engine.
//
// Reqtrace links requirements, assertions, code, tests, and test
// results into a coverage-aware traceability graph.
package main

import (
	"fmt"
	"os"

	"github.com/reqtrace/reqtrace-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
