// Command blockplan is a personal time-block week planner.
package main

import (
	"fmt"
	"os"

	"blockplan/internal/cli"
)

// version is set at build time using -ldflags.
var version = "dev"

func main() {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
