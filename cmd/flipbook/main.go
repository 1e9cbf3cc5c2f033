package main

import (
	"fmt"
	"os"

	"github.com/roach88/flipbook/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "flipbook: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
