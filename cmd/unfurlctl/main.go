// Command unfurlctl is the operator CLI for the unfurl pipeline. It talks to
// the database directly and runs the same orchestrator as the service.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
