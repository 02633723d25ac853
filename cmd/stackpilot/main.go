package main

import (
	"os"

	"github.com/stackpilot-io/stackpilot/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
