// Command readback is the entry point for the readback service.
package main

import (
	"fmt"
	"os"

	"github.com/vhfnav/readback/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "readback: %v\n", err)
		os.Exit(1)
	}
}
