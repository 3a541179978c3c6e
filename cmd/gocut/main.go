package main

import (
	"errors"
	"fmt"
	"os"

	"gocut/internal/cli/commands"
	"gocut/internal/cli/exitcodes"
	"gocut/internal/process"
)

var version = "dev"

func main() {
	// Child processes re-execute this binary; they run their entry and exit
	// here.
	process.Dispatch()

	rootCmd := commands.NewRootCommand(version)
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitcodes.Error
		if !errors.As(err, &exitErr) || exitErr.Err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitcodes.Code(err))
	}
}
