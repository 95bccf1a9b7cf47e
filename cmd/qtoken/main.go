// Command qtoken resolves query tokens and compiles query requests
// against an entity schema.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/qtoken/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands report their own errors; anything else is a usage error.
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(cli.ExitCommandError)
}
